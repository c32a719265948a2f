package routes

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/stockhold/internal/reservations"
	"github.com/angelmondragon/stockhold/pkg/auth"
	"github.com/angelmondragon/stockhold/pkg/config"
	"github.com/angelmondragon/stockhold/pkg/db/models"
	"github.com/angelmondragon/stockhold/pkg/enums"
)

type fakeReservations struct {
	calls int
}

func (f *fakeReservations) Reserve(_ context.Context, input reservations.ReserveInput) (*reservations.Result, error) {
	f.calls++
	return &reservations.Result{
		Reservations: []reservations.Record{{ProductID: input.Items[0].ProductID, Quantity: input.Items[0].Quantity}},
		Failures:     []reservations.Failure{{ProductID: 99, Reason: reservations.ReasonNotInStock}},
	}, nil
}

func (f *fakeReservations) Get(context.Context, uuid.UUID) (*models.Reservation, error) {
	return nil, reservations.ErrNotFound
}

func (f *fakeReservations) Release(context.Context, uuid.UUID, string, string) (*models.Reservation, error) {
	return nil, reservations.ErrNotFound
}

func (f *fakeReservations) Fulfill(context.Context, uuid.UUID, string) (*models.Reservation, error) {
	return nil, reservations.ErrNotFound
}

func (f *fakeReservations) ReleaseByCart(context.Context, string, string, string) (int, error) {
	return 0, nil
}

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{Env: "test"},
		JWT: config.JWTConfig{Secret: "secret", Issuer: "stockhold", ExpirationMinutes: 5},
	}
}

func bearer(t *testing.T, cfg *config.Config, role enums.MemberRole) string {
	t.Helper()
	token, err := auth.MintAccessToken(cfg.JWT, time.Now(), auth.AccessTokenPayload{UserID: "user-1", Role: role})
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	return "Bearer " + token
}

func TestRouterHealthLive(t *testing.T) {
	router := NewRouter(testConfig(), nil, Dependencies{})
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if resp.Header().Get("X-Request-Id") == "" {
		t.Fatal("expected request id header")
	}
}

func TestRouterReserveRequiresAuth(t *testing.T) {
	router := NewRouter(testConfig(), nil, Dependencies{Reservations: &fakeReservations{}})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/reservations", strings.NewReader(`{"items":[{"product_id":1,"quantity":1}]}`))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestRouterReservePartialSuccess(t *testing.T) {
	cfg := testConfig()
	svc := &fakeReservations{}
	router := NewRouter(cfg, nil, Dependencies{Reservations: svc})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/reservations", strings.NewReader(`{"items":[{"product_id":1,"quantity":2},{"product_id":99,"quantity":1}]}`))
	req.Header.Set("Authorization", bearer(t, cfg, enums.MemberRoleCustomer))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusMultiStatus {
		t.Fatalf("expected 207 got %d: %s", resp.Code, resp.Body.String())
	}
	if svc.calls != 1 {
		t.Fatalf("expected one reserve call got %d", svc.calls)
	}
}

func TestRouterAdminRequiresAdminRole(t *testing.T) {
	cfg := testConfig()
	router := NewRouter(cfg, nil, Dependencies{})

	req := httptest.NewRequest(http.MethodGet, "/api/admin/v1/movements", nil)
	req.Header.Set("Authorization", bearer(t, cfg, enums.MemberRoleCustomer))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 got %d", resp.Code)
	}
}

func TestRouterMetricsMounted(t *testing.T) {
	metrics := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("# metrics"))
	})
	router := NewRouter(testConfig(), nil, Dependencies{Metrics: metrics})
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if resp.Code != http.StatusOK || resp.Body.String() != "# metrics" {
		t.Fatalf("unexpected metrics response %d %q", resp.Code, resp.Body.String())
	}
}
