//go:build integration

package integration

import (
	"fmt"
	"net/http"
	"testing"
	"time"
)

func cornOrder(codes ...string) evaluateRequest {
	return evaluateRequest{
		Items: []lineItem{
			{SKU: "TORT-CORN", Quantity: 2, UnitPrice: 5000},
		},
		Email:      "ana@example.com",
		Codes:      codes,
		FirstOrder: true,
	}
}

func TestEvaluate_Percentage(t *testing.T) {
	resp := doPost(t, "/api/discounts/evaluate", cornOrder("SAVE10"))
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	body := decodeJSON[evaluateResponse](t, resp)
	if len(body.Applied) != 1 {
		t.Fatalf("expected 1 applied, got %d", len(body.Applied))
	}
	if body.Applied[0].Code != "SAVE10" {
		t.Errorf("applied code: got %q, want SAVE10", body.Applied[0].Code)
	}
	if body.TotalItemDiscount != 1000 {
		t.Errorf("total discount: got %d, want 1000", body.TotalItemDiscount)
	}
}

func TestEvaluate_CaseInsensitiveCode(t *testing.T) {
	resp := doPost(t, "/api/discounts/evaluate", cornOrder("save10"))
	defer resp.Body.Close()

	body := decodeJSON[evaluateResponse](t, resp)
	if len(body.Applied) != 1 || body.Applied[0].Code != "SAVE10" {
		t.Fatalf("lowercased code did not apply: %+v", body)
	}
}

func TestEvaluate_UnknownCode(t *testing.T) {
	resp := doPost(t, "/api/discounts/evaluate", cornOrder("DOES-NOT-EXIST"))
	defer resp.Body.Close()

	body := decodeJSON[evaluateResponse](t, resp)
	if len(body.Applied) != 0 {
		t.Fatalf("expected no applied codes, got %d", len(body.Applied))
	}
	if len(body.Rejections) != 1 || body.Rejections[0].Reason != "CODE_NOT_FOUND" {
		t.Fatalf("expected CODE_NOT_FOUND rejection, got %+v", body.Rejections)
	}
}

func TestEvaluate_FirstOrderOnly(t *testing.T) {
	order := cornOrder("WELCOME10")
	order.FirstOrder = false

	resp := doPost(t, "/api/discounts/evaluate", order)
	defer resp.Body.Close()

	body := decodeJSON[evaluateResponse](t, resp)
	if len(body.Rejections) != 1 || body.Rejections[0].Reason != "NOT_FIRST_ORDER" {
		t.Fatalf("expected NOT_FIRST_ORDER rejection, got %+v", body.Rejections)
	}
}

func TestEvaluate_Bogo(t *testing.T) {
	resp := doPost(t, "/api/discounts/evaluate", evaluateRequest{
		Items: []lineItem{
			{SKU: "TORT-CORN", Quantity: 2, UnitPrice: 5000},
			{SKU: "TORT-FLOUR", Quantity: 1, UnitPrice: 6000},
		},
		Email: "bogo@example.com",
		Codes: []string{"BOGO-FLOUR"},
	})
	defer resp.Body.Close()

	body := decodeJSON[evaluateResponse](t, resp)
	if len(body.Applied) != 1 {
		t.Fatalf("expected BOGO-FLOUR to apply, got %+v", body)
	}
	// One flour unit at half price.
	if body.TotalItemDiscount != 3000 {
		t.Errorf("total discount: got %d, want 3000", body.TotalItemDiscount)
	}
}

func TestEvaluate_Idempotent(t *testing.T) {
	var first, second evaluateResponse
	for i, dst := range []*evaluateResponse{&first, &second} {
		resp := doPost(t, "/api/discounts/evaluate", cornOrder("SAVE10"))
		*dst = decodeJSON[evaluateResponse](t, resp)
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("call %d: expected 200, got %d", i+1, resp.StatusCode)
		}
	}

	if first.TotalItemDiscount != second.TotalItemDiscount {
		t.Errorf("evaluation not idempotent: %d vs %d", first.TotalItemDiscount, second.TotalItemDiscount)
	}
}

func TestRedeemAndExhaust(t *testing.T) {
	email := fmt.Sprintf("exhaust-%d@example.com", time.Now().UnixNano())

	// WELCOME10 allows one use per email. Record a redemption, then the next
	// evaluation for the same email must reject it.
	resp := doPost(t, "/api/discounts/redeem", redeemRequest{
		Code:            "WELCOME10",
		Email:           email,
		OrderID:         fmt.Sprintf("ord-%d", time.Now().UnixNano()),
		OrderNumber:     "1001",
		Subtotal:        10000,
		DiscountApplied: 1000,
	})
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("redeem: expected 204, got %d", resp.StatusCode)
	}

	order := cornOrder("WELCOME10")
	order.Email = email

	resp = doPost(t, "/api/discounts/evaluate", order)
	defer resp.Body.Close()

	body := decodeJSON[evaluateResponse](t, resp)
	if len(body.Rejections) != 1 || body.Rejections[0].Reason != "PER_CUSTOMER_EXHAUSTED" {
		t.Fatalf("expected PER_CUSTOMER_EXHAUSTED rejection, got %+v", body)
	}
}

func TestRedeem_MissingEmail(t *testing.T) {
	resp := doPost(t, "/api/discounts/redeem", redeemRequest{Code: "SAVE10"})
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", resp.StatusCode)
	}
}
