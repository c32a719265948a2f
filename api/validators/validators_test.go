package validators

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	pkgerrors "github.com/angelmondragon/stockhold/pkg/errors"
)

type item struct {
	ProductID int64 `json:"product_id" validate:"required,gt=0"`
	Quantity  int   `json:"quantity" validate:"required,gt=0"`
}

type reserveBody struct {
	Items []item `json:"items" validate:"required,min=1,dive"`
}

func decode(t *testing.T, body string) (*reserveBody, *pkgerrors.Error) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	var dest reserveBody
	err := DecodeJSONBody(httptest.NewRecorder(), req, &dest)
	if err == nil {
		return &dest, nil
	}
	var typed *pkgerrors.Error
	if !errors.As(err, &typed) {
		t.Fatalf("expected typed error, got %T", err)
	}
	return nil, typed
}

func TestDecodeJSONBodyAcceptsValidPayload(t *testing.T) {
	dest, err := decode(t, `{"items":[{"product_id":7,"quantity":2}]}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(dest.Items) != 1 || dest.Items[0].Quantity != 2 {
		t.Fatalf("unexpected decode result %+v", dest)
	}
}

func TestDecodeJSONBodyReportsNestedFieldPaths(t *testing.T) {
	_, err := decode(t, `{"items":[{"product_id":7,"quantity":2},{"product_id":8,"quantity":-1}]}`)
	if err == nil || err.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
	details, ok := err.Details().(map[string]string)
	if !ok {
		t.Fatalf("unexpected details type %T", err.Details())
	}
	if details["items[1].quantity"] != "must be greater than 0" {
		t.Fatalf("unexpected details %v", details)
	}
}

func TestDecodeJSONBodyRejections(t *testing.T) {
	cases := map[string]string{
		"empty":         ``,
		"unknown field": `{"items":[{"product_id":7,"quantity":1}],"sku":"x"}`,
		"trailing data": `{"items":[{"product_id":7,"quantity":1}]} {}`,
		"wrong type":    `{"items":[{"product_id":"seven","quantity":1}]}`,
		"no items":      `{"items":[]}`,
		"too large":     `{"items":[` + strings.Repeat(`{"product_id":1,"quantity":1},`, MaxBodyBytes/20) + `]}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := decode(t, body); err == nil || err.Code() != pkgerrors.CodeValidation {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}

func TestSanitizeStringKeepsRunesWhole(t *testing.T) {
	if got := SanitizeString("  damaged pallet  ", 0); got != "damaged pallet" {
		t.Fatalf("unexpected trim result %q", got)
	}
	got := SanitizeString("caja dañada", 8)
	if got != "caja da" {
		t.Fatalf("expected cut before the multi-byte rune, got %q", got)
	}
}

func TestParseQueryIntBounds(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?limit=500&page=x", nil)
	if v, err := ParseQueryInt(req, "missing", 50, 1, 200); err != nil || v != 50 {
		t.Fatalf("expected default, got %d %v", v, err)
	}
	if _, err := ParseQueryInt(req, "limit", 50, 1, 200); err == nil {
		t.Fatal("expected out of range error")
	}
	if _, err := ParseQueryInt(req, "page", 1, 1, 10); err == nil {
		t.Fatal("expected numeric error")
	}
}

func TestParseProductID(t *testing.T) {
	if id, err := ParseProductID("product_id", " 42 "); err != nil || id != 42 {
		t.Fatalf("expected 42, got %d %v", id, err)
	}
	for _, raw := range []string{"", "0", "-3", "abc"} {
		if _, err := ParseProductID("product_id", raw); err == nil {
			t.Fatalf("expected error for %q", raw)
		}
	}
}
