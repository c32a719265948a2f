package erp

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader(body)),
		Header:     http.Header{"Content-Type": []string{"application/json"}},
	}
}

func TestNewClientRequiresSettings(t *testing.T) {
	if _, err := NewClient("", "token"); !errors.Is(err, errBaseURLRequired) {
		t.Fatalf("expected base url error, got %v", err)
	}
	if _, err := NewClient("http://erp.test", " "); !errors.Is(err, errAPITokenRequired) {
		t.Fatalf("expected token error, got %v", err)
	}
}

func TestClientReserveRequest(t *testing.T) {
	var captured *http.Request
	var payload Request
	rt := roundTripFunc(func(req *http.Request) (*http.Response, error) {
		captured = req
		if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		return jsonResponse(http.StatusCreated, `{"reservation_id":"erp-1","available_quantity":41}`), nil
	})
	client, err := NewClient("http://erp.test/api/", "secret", WithHTTPClient(&http.Client{Transport: rt}))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	result := client.Reserve(context.Background(), Request{SKU: "TILE-1", Quantity: 3, Location: "MAIN", IdempotencyKey: "key-1", TTLMinutes: 30})
	if !result.OK || result.ReservationID != "erp-1" || result.AvailableQuantity != 41 {
		t.Fatalf("unexpected result %+v", result)
	}
	if captured.URL.String() != "http://erp.test/api/reservations" {
		t.Fatalf("unexpected url %s", captured.URL)
	}
	if captured.Header.Get("Authorization") != "Bearer secret" {
		t.Fatalf("missing bearer token")
	}
	if captured.Header.Get("Idempotency-Key") != "key-1" {
		t.Fatalf("missing idempotency header")
	}
	if payload.SKU != "TILE-1" || payload.IdempotencyKey != "key-1" || payload.TTLMinutes != 30 {
		t.Fatalf("unexpected payload %+v", payload)
	}
}

func TestClientReserveFailureMapping(t *testing.T) {
	cases := []struct {
		name     string
		rt       roundTripFunc
		wantCode string
		wantMsg  string
	}{
		{
			name: "erp error body",
			rt: func(*http.Request) (*http.Response, error) {
				return jsonResponse(http.StatusConflict, `{"error_code":"OUT_OF_STOCK","message":"only 2 left"}`), nil
			},
			wantCode: "OUT_OF_STOCK",
			wantMsg:  "only 2 left",
		},
		{
			name: "bare status",
			rt: func(*http.Request) (*http.Response, error) {
				return jsonResponse(http.StatusBadGateway, `upstream down`), nil
			},
			wantCode: "HTTP_502",
			wantMsg:  "upstream down",
		},
		{
			name: "network",
			rt: func(*http.Request) (*http.Response, error) {
				return nil, errors.New("connection refused")
			},
			wantCode: CodeNetworkError,
		},
		{
			name: "missing reservation id",
			rt: func(*http.Request) (*http.Response, error) {
				return jsonResponse(http.StatusOK, `{"available_quantity":1}`), nil
			},
			wantCode: CodeInvalidResponse,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			client, err := NewClient("http://erp.test", "secret", WithHTTPClient(&http.Client{Transport: tc.rt}))
			if err != nil {
				t.Fatalf("new client: %v", err)
			}
			result := client.Reserve(context.Background(), Request{SKU: "S", Quantity: 1, IdempotencyKey: "k"})
			if result.OK {
				t.Fatalf("expected failure")
			}
			if result.ErrorCode != tc.wantCode {
				t.Fatalf("expected code %s, got %s", tc.wantCode, result.ErrorCode)
			}
			if tc.wantMsg != "" && result.ErrorMessage != tc.wantMsg {
				t.Fatalf("expected message %q, got %q", tc.wantMsg, result.ErrorMessage)
			}
		})
	}
}

func TestClientReserveTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	client, err := NewClient(srv.URL, "secret", WithTimeout(50*time.Millisecond))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	result := client.Reserve(context.Background(), Request{SKU: "S", Quantity: 1, IdempotencyKey: "k"})
	if result.OK || result.ErrorCode != CodeTimeout {
		t.Fatalf("expected timeout, got %+v", result)
	}
}

func TestKeyIsDeterministic(t *testing.T) {
	a := Key("user-1", "SKU-9", "res-1")
	if a != Key(" user-1", "SKU-9 ", "res-1") {
		t.Fatalf("expected trimmed inputs to produce the same key")
	}
	if a == Key("user-1", "SKU-9", "res-2") {
		t.Fatalf("different attempts must produce different keys")
	}
	if !strings.HasPrefix(a, keyPrefix) || len(a) != len(keyPrefix)+64 {
		t.Fatalf("unexpected key shape %q", a)
	}
}
