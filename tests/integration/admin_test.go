//go:build integration

package integration

import (
	"fmt"
	"net/http"
	"testing"
	"time"
)

func TestAdmin_RequiresAPIKey(t *testing.T) {
	resp := doGet(t, "/api/admin/discounts")
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
}

func TestAdmin_CRUDLifecycle(t *testing.T) {
	code := fmt.Sprintf("ITEST-%d", time.Now().UnixNano()%1_000_000)

	// Create.
	resp := doAuthed(t, http.MethodPost, "/api/admin/discounts", map[string]any{
		"code":   code,
		"name":   "Integration test code",
		"active": true,
		"rules":  []map[string]any{{"type": "FIXED_AMOUNT", "value": 500}},
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d", resp.StatusCode)
	}
	created := decodeJSON[definitionResponse](t, resp)
	resp.Body.Close()
	if created.Code != code {
		t.Fatalf("created code: got %q, want %q", created.Code, code)
	}

	// Fetch.
	resp = doAuthed(t, http.MethodGet, "/api/admin/discounts/"+code, nil)
	got := decodeJSON[definitionResponse](t, resp)
	resp.Body.Close()
	if got.Name != "Integration test code" {
		t.Fatalf("fetched name: got %q", got.Name)
	}

	// The new code must now apply at checkout.
	resp = doPost(t, "/api/discounts/evaluate", cornOrder(code))
	eval := decodeJSON[evaluateResponse](t, resp)
	resp.Body.Close()
	if eval.TotalItemDiscount != 500 {
		t.Fatalf("evaluate new code: got %d, want 500", eval.TotalItemDiscount)
	}

	// Update: deactivate.
	resp = doAuthed(t, http.MethodPut, "/api/admin/discounts/"+code, map[string]any{
		"name":   "Integration test code",
		"active": false,
		"rules":  []map[string]any{{"type": "FIXED_AMOUNT", "value": 500}},
	})
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("update: expected 200, got %d", resp.StatusCode)
	}

	resp = doPost(t, "/api/discounts/evaluate", cornOrder(code))
	eval = decodeJSON[evaluateResponse](t, resp)
	resp.Body.Close()
	if len(eval.Rejections) != 1 || eval.Rejections[0].Reason != "INACTIVE" {
		t.Fatalf("expected INACTIVE after deactivation, got %+v", eval)
	}

	// Delete.
	resp = doAuthed(t, http.MethodDelete, "/api/admin/discounts/"+code, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete: expected 204, got %d", resp.StatusCode)
	}

	resp = doAuthed(t, http.MethodGet, "/api/admin/discounts/"+code, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("fetch after delete: expected 404, got %d", resp.StatusCode)
	}
}

func TestAdmin_ValidationError(t *testing.T) {
	resp := doAuthed(t, http.MethodPost, "/api/admin/discounts", map[string]any{
		"code":  "BAD-PCT",
		"name":  "Too generous",
		"rules": []map[string]any{{"type": "PERCENTAGE", "value": 150}},
	})
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", resp.StatusCode)
	}

	body := decodeJSON[errorResponse](t, resp)
	if body.Message == "" {
		t.Error("expected a validation message")
	}
}

func TestAdmin_Stats(t *testing.T) {
	email := fmt.Sprintf("stats-%d@example.com", time.Now().UnixNano())

	resp := doPost(t, "/api/discounts/redeem", redeemRequest{
		Code:            "SAVE10",
		Email:           email,
		OrderID:         fmt.Sprintf("ord-%d", time.Now().UnixNano()),
		Subtotal:        10000,
		DiscountApplied: 1000,
	})
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("redeem: expected 204, got %d", resp.StatusCode)
	}

	resp = doAuthed(t, http.MethodGet, "/api/admin/discounts/SAVE10/stats", nil)
	defer resp.Body.Close()

	stats := decodeJSON[statsResponse](t, resp)
	if stats.TotalUses < 1 {
		t.Errorf("total uses: got %d, want >= 1", stats.TotalUses)
	}
	if stats.TotalDiscountGiven < 1000 {
		t.Errorf("total discount given: got %d, want >= 1000", stats.TotalDiscountGiven)
	}
}
