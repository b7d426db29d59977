// Package discount holds the promotion data model and the pure evaluation
// semantics: what a discount code means, how its rules combine, how
// restrictions gate eligibility, and how multiple codes interact on one order.
package discount

import (
	"context"
	"time"
)

// Money is a monetary amount in integer minor units (cents).
// All monetary arithmetic in this package is integer-exact.
type Money = int64

// Source records which flow authored a definition.
type Source string

const (
	SourceAdmin     Source = "ADMIN"
	SourceDrip      Source = "DRIP"
	SourceWholesale Source = "WHOLESALE"
)

// Definition is a single authored promotion, identified by its
// customer-facing code. It is immutable during evaluation.
type Definition struct {
	Code        string
	Name        string
	Description string
	Source      Source

	IsActive  bool
	StartsAt  *time.Time
	ExpiresAt *time.Time

	// MinOrderAmount gates the whole definition against the full order
	// subtotal. Zero means no minimum.
	MinOrderAmount Money
	// MaxDiscountAmount caps this definition's total monetary contribution
	// to one order. Zero means uncapped.
	MaxDiscountAmount Money

	// MaxUsageTotal is the lifetime redemption cap across all customers.
	// Zero means unlimited.
	MaxUsageTotal int
	// MaxUsagePerEmail is the redemption cap per customer email. Must be >= 1.
	MaxUsagePerEmail int

	FirstOrderOnly bool
	Stackable      bool
	// Priority orders evaluation when several codes qualify; lower applies
	// first. Ties break on declaration order.
	Priority int

	// Rules is the ordered, non-empty list of pricing mechanisms.
	Rules []Rule
	// Restrictions is the ordered eligibility filter list; empty means
	// unrestricted.
	Restrictions []Restriction

	CreatedAt time.Time
	CreatedBy string
}

// RuleKind discriminates Rule variants on the wire and in storage.
type RuleKind string

const (
	RulePercentage   RuleKind = "PERCENTAGE"
	RuleFixedAmount  RuleKind = "FIXED_AMOUNT"
	RuleFreeShipping RuleKind = "FREE_SHIPPING"
	RuleBogo         RuleKind = "BOGO"
)

// Rule is one pricing mechanism within a definition. The interface is sealed:
// the four variants below are the only implementations, so a rule can never
// carry fields that do not belong to its kind.
type Rule interface {
	Kind() RuleKind
	sealedRule()
}

// PercentageRule discounts a percentage of the definition's eligible
// subtotal.
type PercentageRule struct {
	// Value is the percentage, 1..100.
	Value int
	// MaxDiscount caps this rule's contribution. Zero means uncapped.
	MaxDiscount Money
	// MinOrderAmount is a rule-local floor checked against the eligible
	// subtotal. Zero means no minimum.
	MinOrderAmount Money
}

func (PercentageRule) Kind() RuleKind { return RulePercentage }
func (PercentageRule) sealedRule()    {}

// FixedAmountRule discounts a flat amount, never exceeding the eligible
// subtotal.
type FixedAmountRule struct {
	Value          Money
	MinOrderAmount Money
}

func (FixedAmountRule) Kind() RuleKind { return RuleFixedAmount }
func (FixedAmountRule) sealedRule()    {}

// FreeShippingRule waives the order's shipping cost. It carries no monetary
// value of its own.
type FreeShippingRule struct {
	MinOrderAmount Money
}

func (FreeShippingRule) Kind() RuleKind { return RuleFreeShipping }
func (FreeShippingRule) sealedRule()    {}

// BogoRule grants a discount on reward units of one SKU for every trigger
// quantity of another (possibly the same) SKU in the order.
type BogoRule struct {
	BuyProductSKU string
	BuyQuantity   int
	GetProductSKU string
	GetQuantity   int
	// GetDiscountPct is the percentage off each reward unit, 1..100
	// (100 = free).
	GetDiscountPct int
}

func (BogoRule) Kind() RuleKind { return RuleBogo }
func (BogoRule) sealedRule()    {}

// RestrictionKind discriminates Restriction variants.
type RestrictionKind string

const (
	RestrictProductSKU  RestrictionKind = "PRODUCT_SKU"
	RestrictEmailDomain RestrictionKind = "EMAIL_DOMAIN"
)

// Restriction narrows which products or customers a definition applies to.
//
// PRODUCT_SKU restrictions filter the eligible subtotal: include=true keeps
// only the named SKU, include=false removes it. Several product restrictions
// intersect. EMAIL_DOMAIN restrictions gate the entire definition against
// the customer's email domain.
type Restriction struct {
	Kind    RestrictionKind
	Value   string
	Include bool
}

// LineItem is one order line in the snapshot handed to the evaluator.
type LineItem struct {
	SKU       string
	Quantity  int
	UnitPrice Money
}

// Order is the read-only order snapshot supplied by the checkout subsystem.
type Order struct {
	Items        []LineItem
	Email        string
	Codes        []string
	ShippingCost Money
	FirstOrder   bool
}

// Subtotal returns the full pre-discount order subtotal.
func (o Order) Subtotal() Money {
	var sum Money
	for _, item := range o.Items {
		sum += Money(item.Quantity) * item.UnitPrice
	}
	return sum
}

// Usage holds prior redemption counts for one code, scoped to the customer
// being evaluated.
type Usage struct {
	Total   int
	ByEmail int
}

// UsageCounts maps normalized codes to their redemption counts. Counts are
// read from the external usage store before evaluation; the evaluator never
// performs I/O itself.
type UsageCounts map[string]Usage

// UsageRecord is one successful redemption, appended after checkout.
type UsageRecord struct {
	ID              string
	Code            string
	Email           string
	OrderID         string
	OrderNumber     string
	Subtotal        Money
	DiscountApplied Money
	UsedAt          time.Time
}

// UsageStats aggregates redemptions of one code for the admin UI.
type UsageStats struct {
	TotalUses          int
	UniqueEmails       int
	TotalDiscountGiven Money
	Recent             []UsageRecord
}

// ListFilter narrows DefinitionRepository.List results.
type ListFilter struct {
	Source         Source
	IsActive       *bool
	IncludeExpired bool
	Limit          int
	Offset         int
}

// DefinitionRepository provides persistence for definitions. Lookups by code
// are case-insensitive.
type DefinitionRepository interface {
	FindByCodes(ctx context.Context, codes []string) ([]Definition, error)
	FindByCode(ctx context.Context, code string) (*Definition, error)
	Create(ctx context.Context, def *Definition) error
	Update(ctx context.Context, def *Definition) error
	Delete(ctx context.Context, code string) error
	List(ctx context.Context, filter ListFilter) ([]Definition, int, error)
}

// UsageRepository provides redemption counts and append-only recording.
type UsageRepository interface {
	Counts(ctx context.Context, codes []string, email string) (UsageCounts, error)
	Record(ctx context.Context, rec *UsageRecord) error
	Stats(ctx context.Context, code string) (*UsageStats, error)
}
