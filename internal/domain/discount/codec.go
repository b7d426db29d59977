package discount

import (
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
)

// The rule and restriction lists are persisted as ordered JSON arrays of
// tagged objects. Order matters (restriction intersection, rule evaluation
// order), so the codec is hand-rolled on jx instead of relying on map-based
// marshaling: every field round-trips losslessly and unknown tags fail
// loudly instead of silently producing a zero rule.

// MarshalRules encodes an ordered rule list.
func MarshalRules(rules []Rule) []byte {
	var e jx.Encoder
	e.ArrStart()
	for _, rule := range rules {
		encodeRule(&e, rule)
	}
	e.ArrEnd()
	return e.Bytes()
}

func encodeRule(e *jx.Encoder, rule Rule) {
	e.ObjStart()
	e.FieldStart("type")
	e.Str(string(rule.Kind()))

	switch r := rule.(type) {
	case PercentageRule:
		e.FieldStart("value")
		e.Int(r.Value)
		e.FieldStart("max_discount")
		e.Int64(r.MaxDiscount)
		e.FieldStart("min_order_amount")
		e.Int64(r.MinOrderAmount)
	case FixedAmountRule:
		e.FieldStart("value")
		e.Int64(r.Value)
		e.FieldStart("min_order_amount")
		e.Int64(r.MinOrderAmount)
	case FreeShippingRule:
		e.FieldStart("min_order_amount")
		e.Int64(r.MinOrderAmount)
	case BogoRule:
		e.FieldStart("buy_product_sku")
		e.Str(r.BuyProductSKU)
		e.FieldStart("buy_quantity")
		e.Int(r.BuyQuantity)
		e.FieldStart("get_product_sku")
		e.Str(r.GetProductSKU)
		e.FieldStart("get_quantity")
		e.Int(r.GetQuantity)
		e.FieldStart("get_discount_pct")
		e.Int(r.GetDiscountPct)
	}
	e.ObjEnd()
}

// UnmarshalRules decodes an ordered rule list produced by MarshalRules.
func UnmarshalRules(data []byte) ([]Rule, error) {
	if len(data) == 0 {
		return nil, nil
	}

	var rules []Rule
	d := jx.DecodeBytes(data)
	err := d.Arr(func(d *jx.Decoder) error {
		rule, err := decodeRule(d)
		if err != nil {
			return err
		}
		rules = append(rules, rule)
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "decode rules")
	}
	return rules, nil
}

func decodeRule(d *jx.Decoder) (Rule, error) {
	var (
		kind        RuleKind
		value       int64
		maxDiscount Money
		minOrder    Money
		buySKU      string
		buyQty      int
		getSKU      string
		getQty      int
		getPct      int
	)

	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "type":
			var s string
			s, err = d.Str()
			kind = RuleKind(s)
		case "value":
			value, err = d.Int64()
		case "max_discount":
			maxDiscount, err = d.Int64()
		case "min_order_amount":
			minOrder, err = d.Int64()
		case "buy_product_sku":
			buySKU, err = d.Str()
		case "buy_quantity":
			buyQty, err = d.Int()
		case "get_product_sku":
			getSKU, err = d.Str()
		case "get_quantity":
			getQty, err = d.Int()
		case "get_discount_pct":
			getPct, err = d.Int()
		default:
			err = d.Skip()
		}
		return err
	})
	if err != nil {
		return nil, err
	}

	switch kind {
	case RulePercentage:
		return PercentageRule{
			Value:          int(value),
			MaxDiscount:    maxDiscount,
			MinOrderAmount: minOrder,
		}, nil
	case RuleFixedAmount:
		return FixedAmountRule{
			Value:          value,
			MinOrderAmount: minOrder,
		}, nil
	case RuleFreeShipping:
		return FreeShippingRule{MinOrderAmount: minOrder}, nil
	case RuleBogo:
		return BogoRule{
			BuyProductSKU:  buySKU,
			BuyQuantity:    buyQty,
			GetProductSKU:  getSKU,
			GetQuantity:    getQty,
			GetDiscountPct: getPct,
		}, nil
	default:
		return nil, errors.Errorf("unknown rule type %q", kind)
	}
}

// MarshalRestrictions encodes an ordered restriction list.
func MarshalRestrictions(restrictions []Restriction) []byte {
	var e jx.Encoder
	e.ArrStart()
	for _, r := range restrictions {
		e.ObjStart()
		e.FieldStart("type")
		e.Str(string(r.Kind))
		e.FieldStart("value")
		e.Str(r.Value)
		e.FieldStart("include")
		e.Bool(r.Include)
		e.ObjEnd()
	}
	e.ArrEnd()
	return e.Bytes()
}

// UnmarshalRestrictions decodes a restriction list produced by
// MarshalRestrictions.
func UnmarshalRestrictions(data []byte) ([]Restriction, error) {
	if len(data) == 0 {
		return nil, nil
	}

	var restrictions []Restriction
	d := jx.DecodeBytes(data)
	err := d.Arr(func(d *jx.Decoder) error {
		var r Restriction
		err := d.Obj(func(d *jx.Decoder, key string) error {
			var err error
			switch key {
			case "type":
				var s string
				s, err = d.Str()
				r.Kind = RestrictionKind(s)
			case "value":
				r.Value, err = d.Str()
			case "include":
				r.Include, err = d.Bool()
			default:
				err = d.Skip()
			}
			return err
		})
		if err != nil {
			return err
		}
		if r.Kind != RestrictProductSKU && r.Kind != RestrictEmailDomain {
			return errors.Errorf("unknown restriction type %q", r.Kind)
		}
		restrictions = append(restrictions, r)
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "decode restrictions")
	}
	return restrictions, nil
}
