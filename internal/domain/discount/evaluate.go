package discount

import (
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// NormalizeCode canonicalizes a customer-facing code for matching and
// storage: trimmed and uppercased.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// NormalizeEmail canonicalizes a customer email for usage scoping.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// EmailDomain extracts the lowercased domain part of an address, or "" when
// the address has no domain.
func EmailDomain(email string) string {
	email = NormalizeEmail(email)
	at := strings.LastIndexByte(email, '@')
	if at < 0 || at == len(email)-1 {
		return ""
	}
	return email[at+1:]
}

// Evaluate computes which of the order's declared codes apply and the
// resulting monetary adjustment. It is a pure function over its inputs:
// definitions are treated as immutable, usage counts are pre-fetched, and no
// I/O happens here, so concurrent evaluations share no state.
func Evaluate(order Order, defs []Definition, usage UsageCounts, now time.Time) Result {
	byCode := make(map[string]*Definition, len(defs))
	for i := range defs {
		byCode[NormalizeCode(defs[i].Code)] = &defs[i]
	}

	subtotal := order.Subtotal()
	domain := EmailDomain(order.Email)

	var result Result

	// Resolve declared codes in declaration order, dropping duplicates and
	// gating each candidate with a specific reason.
	var candidates []*Definition
	seen := make(map[string]bool, len(order.Codes))
	for _, raw := range order.Codes {
		code := NormalizeCode(raw)
		if code == "" || seen[code] {
			continue
		}
		seen[code] = true

		def, ok := byCode[code]
		if !ok {
			result.Rejections = append(result.Rejections, Rejection{Code: code, Reason: ReasonCodeNotFound})
			continue
		}

		if reason, ok := gate(def, order, subtotal, domain, usage[code], now); !ok {
			result.Rejections = append(result.Rejections, Rejection{Code: code, Reason: reason})
			continue
		}
		candidates = append(candidates, def)
	}

	// Priority ascending; SliceStable preserves declaration order on ties.
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Priority < candidates[j].Priority
	})

	// Stacking walk: the first eligible candidate always applies. Each later
	// one applies only when it and everything accepted so far are stackable.
	// A non-stackable candidate that is not first is skipped, never swapped in.
	var accepted []*Definition
	allStackable := true
	for _, def := range candidates {
		if len(accepted) > 0 && (!allStackable || !def.Stackable) {
			result.Rejections = append(result.Rejections, Rejection{
				Code:   NormalizeCode(def.Code),
				Reason: ReasonNotStackable,
			})
			continue
		}
		accepted = append(accepted, def)
		allStackable = allStackable && def.Stackable
	}

	// Contributions are independent per definition: each computes against its
	// own restriction-filtered view of the original order, never against a
	// running discounted total.
	for _, def := range accepted {
		applied := applyDefinition(def, order)
		result.Applied = append(result.Applied, applied)
		result.TotalItemDiscount += applied.Amount
		if applied.FreeShipping {
			result.ShippingWaived = true
		}
	}

	if result.TotalItemDiscount > subtotal {
		result.TotalItemDiscount = subtotal
	}
	if result.TotalItemDiscount < 0 {
		result.TotalItemDiscount = 0
	}

	return result
}

// gate runs the eligibility checks in their fixed order and short-circuits
// on the first failure. Malformed definitions are treated as inactive rather
// than crashing the evaluation.
func gate(def *Definition, order Order, subtotal Money, domain string, usage Usage, now time.Time) (RejectionReason, bool) {
	if Validate(def) != nil || !def.IsActive {
		return ReasonInactive, false
	}
	if def.StartsAt != nil && now.Before(*def.StartsAt) {
		return ReasonNotYetStarted, false
	}
	if def.ExpiresAt != nil && now.After(*def.ExpiresAt) {
		return ReasonExpired, false
	}
	if def.MinOrderAmount > 0 && subtotal < def.MinOrderAmount {
		return ReasonBelowMinimum, false
	}
	if !emailDomainAllowed(def.Restrictions, domain) {
		return ReasonEmailDomainExcluded, false
	}
	if def.FirstOrderOnly && !order.FirstOrder {
		return ReasonNotFirstOrder, false
	}
	if def.MaxUsageTotal > 0 && usage.Total >= def.MaxUsageTotal {
		return ReasonGloballyExhausted, false
	}
	if usage.ByEmail >= def.MaxUsagePerEmail {
		return ReasonPerCustomerExhausted, false
	}
	return "", true
}

// emailDomainAllowed applies EMAIL_DOMAIN restrictions as an intersection:
// every include filter must match and no exclude filter may match.
func emailDomainAllowed(restrictions []Restriction, domain string) bool {
	hasInclude := false
	includeMatch := false
	for _, r := range restrictions {
		if r.Kind != RestrictEmailDomain {
			continue
		}
		value := strings.ToLower(r.Value)
		if r.Include {
			hasInclude = true
			if value == domain {
				includeMatch = true
			}
		} else if value == domain {
			return false
		}
	}
	return !hasInclude || includeMatch
}

// eligibleItems filters line items through the definition's PRODUCT_SKU
// restrictions: include filters keep only the named SKUs, exclude filters
// drop theirs, and multiple restrictions intersect.
func eligibleItems(restrictions []Restriction, items []LineItem) []LineItem {
	includes := make(map[string]bool)
	excludes := make(map[string]bool)
	for _, r := range restrictions {
		if r.Kind != RestrictProductSKU {
			continue
		}
		if r.Include {
			includes[r.Value] = true
		} else {
			excludes[r.Value] = true
		}
	}
	if len(includes) == 0 && len(excludes) == 0 {
		return items
	}

	eligible := make([]LineItem, 0, len(items))
	for _, item := range items {
		if len(includes) > 0 && !includes[item.SKU] {
			continue
		}
		if excludes[item.SKU] {
			continue
		}
		eligible = append(eligible, item)
	}
	return eligible
}

func sumItems(items []LineItem) Money {
	var sum Money
	for _, item := range items {
		sum += Money(item.Quantity) * item.UnitPrice
	}
	return sum
}

// applyDefinition evaluates every rule of an accepted definition against its
// restriction-filtered subtotal, sums the effects, and caps the total at the
// definition's MaxDiscountAmount. A definition whose restrictions filter the
// eligible subtotal to zero simply contributes zero.
func applyDefinition(def *Definition, order Order) Applied {
	eligible := eligibleItems(def.Restrictions, order.Items)
	eligibleSubtotal := sumItems(eligible)

	applied := Applied{
		Code: NormalizeCode(def.Code),
		Name: def.Name,
	}

	for _, rule := range def.Rules {
		switch r := rule.(type) {
		case PercentageRule:
			if r.MinOrderAmount > 0 && eligibleSubtotal < r.MinOrderAmount {
				continue
			}
			amount := percentOf(eligibleSubtotal, r.Value)
			if r.MaxDiscount > 0 && amount > r.MaxDiscount {
				amount = r.MaxDiscount
			}
			applied.Rules = append(applied.Rules, AppliedRule{Kind: RulePercentage, Amount: amount})
			applied.Amount += amount

		case FixedAmountRule:
			if r.MinOrderAmount > 0 && eligibleSubtotal < r.MinOrderAmount {
				continue
			}
			amount := min(r.Value, eligibleSubtotal)
			applied.Rules = append(applied.Rules, AppliedRule{Kind: RuleFixedAmount, Amount: amount})
			applied.Amount += amount

		case FreeShippingRule:
			if r.MinOrderAmount > 0 && eligibleSubtotal < r.MinOrderAmount {
				continue
			}
			applied.Rules = append(applied.Rules, AppliedRule{Kind: RuleFreeShipping})
			applied.FreeShipping = true

		case BogoRule:
			bonus, ok := applyBogo(r, order.Items)
			if !ok {
				continue
			}
			applied.Rules = append(applied.Rules, AppliedRule{
				Kind:       RuleBogo,
				Amount:     percentOf(bonus.Value, bonus.DiscountPct),
				BonusItems: []BonusItem{bonus},
			})
			applied.Amount += percentOf(bonus.Value, bonus.DiscountPct)
		}
	}

	if def.MaxDiscountAmount > 0 && applied.Amount > def.MaxDiscountAmount {
		applied.Amount = def.MaxDiscountAmount
	}
	return applied
}

// applyBogo computes the reward units granted by one BOGO rule against the
// original line quantities. Reward units are bounded only by the get-SKU
// quantity present in the order; when buy and get reference the same SKU a
// unit may serve as both trigger and reward.
func applyBogo(rule BogoRule, items []LineItem) (BonusItem, bool) {
	buyUnits := quantityOf(items, rule.BuyProductSKU)
	if buyUnits < rule.BuyQuantity {
		return BonusItem{}, false
	}

	getUnits := quantityOf(items, rule.GetProductSKU)
	if getUnits == 0 {
		return BonusItem{}, false
	}

	multiples := buyUnits / rule.BuyQuantity
	rewardUnits := min(multiples*rule.GetQuantity, getUnits)

	price := unitPriceOf(items, rule.GetProductSKU)
	return BonusItem{
		SKU:         rule.GetProductSKU,
		Quantity:    rewardUnits,
		Value:       Money(rewardUnits) * price,
		DiscountPct: rule.GetDiscountPct,
	}, true
}

func quantityOf(items []LineItem, sku string) int {
	total := 0
	for _, item := range items {
		if item.SKU == sku {
			total += item.Quantity
		}
	}
	return total
}

func unitPriceOf(items []LineItem, sku string) Money {
	for _, item := range items {
		if item.SKU == sku {
			return item.UnitPrice
		}
	}
	return 0
}

// percentOf returns pct% of amount in minor units, rounded half away from
// zero through exact decimal arithmetic.
func percentOf(amount Money, pct int) Money {
	d := decimal.NewFromInt(amount).
		Mul(decimal.NewFromInt(int64(pct))).
		Div(hundred)
	return d.Round(0).IntPart()
}
