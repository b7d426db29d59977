package discount

import (
	"fmt"
	"strings"
)

// RejectionReason names why a declared code did not apply. Reasons are
// surfaced verbatim to the storefront so it can explain the failure.
type RejectionReason string

const (
	ReasonCodeNotFound         RejectionReason = "CODE_NOT_FOUND"
	ReasonInactive             RejectionReason = "INACTIVE"
	ReasonNotYetStarted        RejectionReason = "NOT_YET_STARTED"
	ReasonExpired              RejectionReason = "EXPIRED"
	ReasonBelowMinimum         RejectionReason = "BELOW_MINIMUM"
	ReasonEmailDomainExcluded  RejectionReason = "EMAIL_DOMAIN_EXCLUDED"
	ReasonNotFirstOrder        RejectionReason = "NOT_FIRST_ORDER"
	ReasonGloballyExhausted    RejectionReason = "GLOBALLY_EXHAUSTED"
	ReasonPerCustomerExhausted RejectionReason = "PER_CUSTOMER_EXHAUSTED"
	ReasonNotStackable         RejectionReason = "NOT_STACKABLE"
)

// BonusItem describes reward units granted by a BOGO rule.
type BonusItem struct {
	SKU         string
	Quantity    int
	Value       Money
	DiscountPct int
}

// AppliedRule is one rule's contribution within an applied definition,
// before the definition-level cap.
type AppliedRule struct {
	Kind       RuleKind
	Amount     Money
	BonusItems []BonusItem
}

// Applied is one definition that contributed to the order.
type Applied struct {
	Code string
	Name string
	// Amount is the definition's monetary contribution after its
	// MaxDiscountAmount cap.
	Amount       Money
	Rules        []AppliedRule
	FreeShipping bool
}

// Rejection pairs a declared code with the reason it was dropped.
type Rejection struct {
	Code   string
	Reason RejectionReason
}

// Result is the outcome of evaluating an order against its declared codes.
type Result struct {
	// Applied lists the definitions that took effect, in application order.
	Applied []Applied
	// Rejections lists declared-but-dropped codes with specific reasons.
	Rejections []Rejection
	// TotalItemDiscount is the summed monetary discount, bounded by the
	// order's pre-discount subtotal.
	TotalItemDiscount Money
	// ShippingWaived reports whether any applied definition carried a
	// satisfied free-shipping rule.
	ShippingWaived bool
}

// Summary renders a short human-readable description of the result for
// storefront display, e.g. "$6.00 off + free shipping".
func (r *Result) Summary() string {
	var parts []string
	if r.TotalItemDiscount > 0 {
		parts = append(parts, fmt.Sprintf("$%s off", FormatMoney(r.TotalItemDiscount)))
	}
	if r.ShippingWaived {
		if len(parts) == 0 {
			parts = append(parts, "free shipping")
		} else {
			parts = append(parts, "+ free shipping")
		}
	}
	if len(parts) == 0 {
		return "no discount applied"
	}
	return strings.Join(parts, " ")
}

// FormatMoney renders minor units as a decimal string, e.g. 1050 -> "10.50".
func FormatMoney(m Money) string {
	sign := ""
	if m < 0 {
		sign = "-"
		m = -m
	}
	return fmt.Sprintf("%s%d.%02d", sign, m/100, m%100)
}
