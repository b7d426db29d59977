package discount

import (
	"strings"

	"github.com/go-faster/errors"
)

// Validation error values. Callers match with errors.Is; the wrapped message
// carries the offending field detail.
var (
	ErrEmptyCode         = errors.New("code is blank")
	ErrEmptyName         = errors.New("name is blank")
	ErrNoRules           = errors.New("definition has no rules")
	ErrInvalidDateRange  = errors.New("starts_at is after expires_at")
	ErrInvalidRuleValue  = errors.New("invalid rule value")
	ErrInvalidUsageLimit = errors.New("invalid usage limit")
)

// Validate checks a definition for structural problems before it reaches
// persistence or evaluation. It is pure and does not mutate the definition.
func Validate(def *Definition) error {
	if strings.TrimSpace(def.Code) == "" {
		return ErrEmptyCode
	}
	if strings.TrimSpace(def.Name) == "" {
		return ErrEmptyName
	}
	if len(def.Rules) == 0 {
		return ErrNoRules
	}
	if def.StartsAt != nil && def.ExpiresAt != nil && def.StartsAt.After(*def.ExpiresAt) {
		return ErrInvalidDateRange
	}

	for i, rule := range def.Rules {
		if err := validateRule(rule); err != nil {
			return errors.Wrapf(err, "rule %d (%s)", i, rule.Kind())
		}
	}

	if def.MaxUsagePerEmail < 1 {
		return errors.Wrap(ErrInvalidUsageLimit, "max_usage_per_email must be >= 1")
	}
	if def.MaxUsageTotal < 0 {
		return errors.Wrap(ErrInvalidUsageLimit, "max_usage_total must be >= 1 when set")
	}

	return nil
}

func validateRule(rule Rule) error {
	switch r := rule.(type) {
	case PercentageRule:
		if r.Value < 1 || r.Value > 100 {
			return errors.Wrapf(ErrInvalidRuleValue, "percentage %d outside 1-100", r.Value)
		}
	case FixedAmountRule:
		if r.Value <= 0 {
			return errors.Wrapf(ErrInvalidRuleValue, "fixed amount %d must be > 0", r.Value)
		}
	case FreeShippingRule:
		// No value to check.
	case BogoRule:
		if r.BuyProductSKU == "" || r.GetProductSKU == "" {
			return errors.Wrap(ErrInvalidRuleValue, "bogo SKUs must be set")
		}
		if r.BuyQuantity < 1 || r.GetQuantity < 1 {
			return errors.Wrapf(ErrInvalidRuleValue, "bogo quantities %d/%d must be >= 1",
				r.BuyQuantity, r.GetQuantity)
		}
		if r.GetDiscountPct < 1 || r.GetDiscountPct > 100 {
			return errors.Wrapf(ErrInvalidRuleValue, "bogo discount pct %d outside 1-100", r.GetDiscountPct)
		}
	default:
		return errors.Wrapf(ErrInvalidRuleValue, "unknown rule kind %q", rule.Kind())
	}
	return nil
}
