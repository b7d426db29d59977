package discount

import "time"

// Builder assembles a Definition for the admin authoring flow. It is thin
// glue over the struct: defaults are applied up front, every setter returns
// the builder, and Build normalizes and validates the result.
type Builder struct {
	def Definition
}

// NewBuilder starts a definition with the authoring defaults: active,
// non-stackable, one use per email, admin-sourced.
func NewBuilder(code, name string) *Builder {
	return &Builder{def: Definition{
		Code:             code,
		Name:             name,
		Source:           SourceAdmin,
		IsActive:         true,
		MaxUsagePerEmail: 1,
	}}
}

func (b *Builder) Description(s string) *Builder {
	b.def.Description = s
	return b
}

func (b *Builder) Source(s Source) *Builder {
	b.def.Source = s
	return b
}

func (b *Builder) Active(active bool) *Builder {
	b.def.IsActive = active
	return b
}

// Schedule sets the validity window. Either side may be nil for open-ended.
func (b *Builder) Schedule(startsAt, expiresAt *time.Time) *Builder {
	b.def.StartsAt = startsAt
	b.def.ExpiresAt = expiresAt
	return b
}

func (b *Builder) MinOrder(amount Money) *Builder {
	b.def.MinOrderAmount = amount
	return b
}

func (b *Builder) MaxDiscount(amount Money) *Builder {
	b.def.MaxDiscountAmount = amount
	return b
}

// UsageLimits sets the lifetime and per-email redemption caps. A total of
// zero means unlimited.
func (b *Builder) UsageLimits(total, perEmail int) *Builder {
	b.def.MaxUsageTotal = total
	b.def.MaxUsagePerEmail = perEmail
	return b
}

func (b *Builder) FirstOrderOnly() *Builder {
	b.def.FirstOrderOnly = true
	return b
}

func (b *Builder) Stackable() *Builder {
	b.def.Stackable = true
	return b
}

func (b *Builder) Priority(p int) *Builder {
	b.def.Priority = p
	return b
}

func (b *Builder) Percentage(value int, maxDiscount, minOrder Money) *Builder {
	b.def.Rules = append(b.def.Rules, PercentageRule{
		Value:          value,
		MaxDiscount:    maxDiscount,
		MinOrderAmount: minOrder,
	})
	return b
}

func (b *Builder) FixedAmount(value, minOrder Money) *Builder {
	b.def.Rules = append(b.def.Rules, FixedAmountRule{
		Value:          value,
		MinOrderAmount: minOrder,
	})
	return b
}

func (b *Builder) FreeShipping(minOrder Money) *Builder {
	b.def.Rules = append(b.def.Rules, FreeShippingRule{MinOrderAmount: minOrder})
	return b
}

func (b *Builder) Bogo(buySKU string, buyQty int, getSKU string, getQty, discountPct int) *Builder {
	b.def.Rules = append(b.def.Rules, BogoRule{
		BuyProductSKU:  buySKU,
		BuyQuantity:    buyQty,
		GetProductSKU:  getSKU,
		GetQuantity:    getQty,
		GetDiscountPct: discountPct,
	})
	return b
}

func (b *Builder) RestrictSKU(sku string, include bool) *Builder {
	b.def.Restrictions = append(b.def.Restrictions, Restriction{
		Kind:    RestrictProductSKU,
		Value:   sku,
		Include: include,
	})
	return b
}

func (b *Builder) RestrictEmailDomain(domain string, include bool) *Builder {
	b.def.Restrictions = append(b.def.Restrictions, Restriction{
		Kind:    RestrictEmailDomain,
		Value:   domain,
		Include: include,
	})
	return b
}

func (b *Builder) CreatedBy(who string) *Builder {
	b.def.CreatedBy = who
	return b
}

// Build normalizes the code, stamps the creation time, and validates the
// assembled definition. The builder can be reused after a failed Build once
// the problem is fixed.
func (b *Builder) Build(now time.Time) (*Definition, error) {
	def := b.def
	def.Code = NormalizeCode(def.Code)
	def.CreatedAt = now
	if err := Validate(&def); err != nil {
		return nil, err
	}
	// Copy slices so later builder mutations cannot alias the built value.
	def.Rules = append([]Rule(nil), def.Rules...)
	def.Restrictions = append([]Restriction(nil), def.Restrictions...)
	return &def, nil
}
