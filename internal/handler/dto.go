package handler

import (
	"encoding/json"
	"time"

	"github.com/tortilleria/promo-service/internal/domain/discount"
)

// lineItemDTO is one cart line in an evaluation request. Prices are integer
// minor units (cents).
type lineItemDTO struct {
	SKU       string `json:"sku"`
	Quantity  int    `json:"quantity"`
	UnitPrice int64  `json:"unit_price"`
}

type evaluateRequest struct {
	Items        []lineItemDTO `json:"items"`
	Email        string        `json:"email"`
	Codes        []string      `json:"codes"`
	ShippingCost int64         `json:"shipping_cost"`
	FirstOrder   bool          `json:"first_order"`
}

func (req *evaluateRequest) toOrder() discount.Order {
	items := make([]discount.LineItem, len(req.Items))
	for i, it := range req.Items {
		items[i] = discount.LineItem{
			SKU:       it.SKU,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
		}
	}
	return discount.Order{
		Items:        items,
		Email:        req.Email,
		Codes:        req.Codes,
		ShippingCost: req.ShippingCost,
		FirstOrder:   req.FirstOrder,
	}
}

type bonusItemDTO struct {
	SKU         string `json:"sku"`
	Quantity    int    `json:"quantity"`
	Value       int64  `json:"value"`
	DiscountPct int    `json:"discount_pct"`
}

type appliedRuleDTO struct {
	Kind       string         `json:"kind"`
	Amount     int64          `json:"amount"`
	BonusItems []bonusItemDTO `json:"bonus_items,omitempty"`
}

type appliedDTO struct {
	Code         string           `json:"code"`
	Name         string           `json:"name"`
	Amount       int64            `json:"amount"`
	Rules        []appliedRuleDTO `json:"rules"`
	FreeShipping bool             `json:"free_shipping"`
}

type rejectionDTO struct {
	Code   string `json:"code"`
	Reason string `json:"reason"`
}

type evaluateResponse struct {
	Applied           []appliedDTO   `json:"applied"`
	Rejections        []rejectionDTO `json:"rejections"`
	TotalItemDiscount int64          `json:"total_item_discount"`
	ShippingWaived    bool           `json:"shipping_waived"`
	Summary           string         `json:"summary"`
}

func toEvaluateResponse(res *discount.Result) evaluateResponse {
	resp := evaluateResponse{
		Applied:           make([]appliedDTO, len(res.Applied)),
		Rejections:        make([]rejectionDTO, len(res.Rejections)),
		TotalItemDiscount: res.TotalItemDiscount,
		ShippingWaived:    res.ShippingWaived,
		Summary:           res.Summary(),
	}
	for i, a := range res.Applied {
		rules := make([]appliedRuleDTO, len(a.Rules))
		for j, rule := range a.Rules {
			dto := appliedRuleDTO{Kind: string(rule.Kind), Amount: rule.Amount}
			for _, b := range rule.BonusItems {
				dto.BonusItems = append(dto.BonusItems, bonusItemDTO(b))
			}
			rules[j] = dto
		}
		resp.Applied[i] = appliedDTO{
			Code:         a.Code,
			Name:         a.Name,
			Amount:       a.Amount,
			Rules:        rules,
			FreeShipping: a.FreeShipping,
		}
	}
	for i, rej := range res.Rejections {
		resp.Rejections[i] = rejectionDTO{Code: rej.Code, Reason: string(rej.Reason)}
	}
	return resp
}

type redeemRequest struct {
	Code            string `json:"code"`
	Email           string `json:"email"`
	OrderID         string `json:"order_id"`
	OrderNumber     string `json:"order_number"`
	Subtotal        int64  `json:"subtotal"`
	DiscountApplied int64  `json:"discount_applied"`
}

// definitionDTO is the admin-facing representation of a discount definition.
// Rules and restrictions use the same tagged JSON shape as the database.
type definitionDTO struct {
	Code              string          `json:"code"`
	Name              string          `json:"name"`
	Description       string          `json:"description,omitempty"`
	Source            string          `json:"source,omitempty"`
	Active            bool            `json:"active"`
	StartsAt          *time.Time      `json:"starts_at,omitempty"`
	ExpiresAt         *time.Time      `json:"expires_at,omitempty"`
	MinOrderAmount    int64           `json:"min_order_amount,omitempty"`
	MaxDiscountAmount int64           `json:"max_discount_amount,omitempty"`
	MaxUsageTotal     int             `json:"max_usage_total,omitempty"`
	MaxUsagePerEmail  int             `json:"max_usage_per_email,omitempty"`
	FirstOrderOnly    bool            `json:"first_order_only,omitempty"`
	Stackable         bool            `json:"stackable,omitempty"`
	Priority          int             `json:"priority,omitempty"`
	Rules             json.RawMessage `json:"rules"`
	Restrictions      json.RawMessage `json:"restrictions,omitempty"`
	CreatedAt         time.Time       `json:"created_at,omitzero"`
	CreatedBy         string          `json:"created_by,omitempty"`
}

func (dto *definitionDTO) toDefinition() (*discount.Definition, error) {
	rules, err := discount.UnmarshalRules(dto.Rules)
	if err != nil {
		return nil, err
	}
	restrictions, err := discount.UnmarshalRestrictions(dto.Restrictions)
	if err != nil {
		return nil, err
	}

	source := discount.Source(dto.Source)
	if source == "" {
		source = discount.SourceAdmin
	}
	perEmail := dto.MaxUsagePerEmail
	if perEmail == 0 {
		perEmail = 1
	}

	return &discount.Definition{
		Code:              discount.NormalizeCode(dto.Code),
		Name:              dto.Name,
		Description:       dto.Description,
		Source:            source,
		IsActive:          dto.Active,
		StartsAt:          dto.StartsAt,
		ExpiresAt:         dto.ExpiresAt,
		MinOrderAmount:    dto.MinOrderAmount,
		MaxDiscountAmount: dto.MaxDiscountAmount,
		MaxUsageTotal:     dto.MaxUsageTotal,
		MaxUsagePerEmail:  perEmail,
		FirstOrderOnly:    dto.FirstOrderOnly,
		Stackable:         dto.Stackable,
		Priority:          dto.Priority,
		Rules:             rules,
		Restrictions:      restrictions,
		CreatedBy:         dto.CreatedBy,
	}, nil
}

func toDefinitionDTO(def *discount.Definition) definitionDTO {
	rules := discount.MarshalRules(def.Rules)
	restrictions := discount.MarshalRestrictions(def.Restrictions)
	return definitionDTO{
		Code:              def.Code,
		Name:              def.Name,
		Description:       def.Description,
		Source:            string(def.Source),
		Active:            def.IsActive,
		StartsAt:          def.StartsAt,
		ExpiresAt:         def.ExpiresAt,
		MinOrderAmount:    def.MinOrderAmount,
		MaxDiscountAmount: def.MaxDiscountAmount,
		MaxUsageTotal:     def.MaxUsageTotal,
		MaxUsagePerEmail:  def.MaxUsagePerEmail,
		FirstOrderOnly:    def.FirstOrderOnly,
		Stackable:         def.Stackable,
		Priority:          def.Priority,
		Rules:             rules,
		Restrictions:      restrictions,
		CreatedAt:         def.CreatedAt,
		CreatedBy:         def.CreatedBy,
	}
}

type listResponse struct {
	Items []definitionDTO `json:"items"`
	Total int             `json:"total"`
}

type usageRecordDTO struct {
	ID              string    `json:"id"`
	Code            string    `json:"code"`
	Email           string    `json:"email"`
	OrderID         string    `json:"order_id,omitempty"`
	OrderNumber     string    `json:"order_number,omitempty"`
	Subtotal        int64     `json:"subtotal"`
	DiscountApplied int64     `json:"discount_applied"`
	UsedAt          time.Time `json:"used_at"`
}

type statsResponse struct {
	Code               string           `json:"code"`
	TotalUses          int              `json:"total_uses"`
	UniqueEmails       int              `json:"unique_emails"`
	TotalDiscountGiven int64            `json:"total_discount_given"`
	Recent             []usageRecordDTO `json:"recent"`
}
