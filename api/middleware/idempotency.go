package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"

	"github.com/angelmondragon/stockhold/api/responses"
	pkgerrors "github.com/angelmondragon/stockhold/pkg/errors"
	"github.com/angelmondragon/stockhold/pkg/logger"
	pkgredis "github.com/angelmondragon/stockhold/pkg/redis"
)

const (
	idempotencyHeader = "Idempotency-Key"
	replayHeader      = "Idempotent-Replayed"

	defaultIdempotencyTTL  = 24 * time.Hour
	criticalIdempotencyTTL = 7 * 24 * time.Hour
	// inFlightTTL bounds how long a crashed request can block its key.
	inFlightTTL = 2 * time.Minute
)

// idempotencyRule applies to POSTs whose route matches glob (path.Match
// syntax, so "*" spans one segment, including a chi "{param}").
type idempotencyRule struct {
	glob     string
	ttl      time.Duration
	required bool
}

var idempotencyRules = []idempotencyRule{
	{glob: "/api/v1/reservations", ttl: defaultIdempotencyTTL},
	{glob: "/api/v1/reservations/*/release", ttl: defaultIdempotencyTTL},
	{glob: "/api/v1/reservations/*/fulfill", ttl: defaultIdempotencyTTL},
	{glob: "/api/v1/carts/*/release", ttl: defaultIdempotencyTTL},
	{glob: "/api/admin/v1/inventory/adjust", ttl: criticalIdempotencyTTL, required: true},
}

func routeRule(method, route string) (idempotencyRule, bool) {
	if method != http.MethodPost || route == "" {
		return idempotencyRule{}, false
	}
	for _, rule := range idempotencyRules {
		if ok, _ := path.Match(rule.glob, route); ok {
			return rule, true
		}
	}
	return idempotencyRule{}, false
}

type recordState string

const (
	statePending  recordState = "pending"
	stateComplete recordState = "complete"
)

type idempotencyRecord struct {
	State       recordState `json:"state"`
	RequestHash string      `json:"request_hash"`
	Status      int         `json:"status,omitempty"`
	ContentType string      `json:"content_type,omitempty"`
	Body        []byte      `json:"body,omitempty"`
}

// Idempotency makes the routes in idempotencyRules safe to retry with an
// Idempotency-Key header. The key is claimed with a pending record before the
// handler runs: a concurrent duplicate gets 409, a later one replays the
// stored response, and a reused key with a different body is rejected.
// 5xx responses release the claim so the client can retry.
func Idempotency(store pkgredis.IdempotencyStore, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if store == nil {
			return next
		}
		g := &idempotencyGuard{store: store, logg: logg, next: next}
		return http.HandlerFunc(g.serve)
	}
}

type idempotencyGuard struct {
	store pkgredis.IdempotencyStore
	logg  *logger.Logger
	next  http.Handler
}

func (g *idempotencyGuard) serve(w http.ResponseWriter, r *http.Request) {
	rule, ok := routeRule(r.Method, routePattern(r))
	if !ok {
		g.next.ServeHTTP(w, r)
		return
	}
	clientKey := strings.TrimSpace(r.Header.Get(idempotencyHeader))
	if clientKey == "" {
		if rule.required {
			g.fail(w, r, pkgerrors.New(pkgerrors.CodeValidation, "Idempotency-Key header required"))
			return
		}
		g.next.ServeHTTP(w, r)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		g.fail(w, r, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request"))
		return
	}
	r.Body = io.NopCloser(bytes.NewReader(body))

	ctx := r.Context()
	requestHash := hashBody(body)
	key := g.store.IdempotencyKey(requestScope(r), clientKey)
	claim, err := encodeRecord(idempotencyRecord{State: statePending, RequestHash: requestHash})
	if err != nil {
		g.fail(w, r, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode idempotency claim"))
		return
	}
	won, err := g.store.SetNX(ctx, key, claim, inFlightTTL)
	if err != nil {
		g.fail(w, r, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "claim idempotency key"))
		return
	}
	if !won {
		g.replay(w, r, key, requestHash)
		return
	}

	var captured bytes.Buffer
	ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
	ww.Tee(&captured)
	g.next.ServeHTTP(ww, r)

	status := ww.Status()
	if status == 0 {
		status = http.StatusOK
	}
	if status >= http.StatusInternalServerError {
		if _, err := g.store.CompareAndDelete(ctx, key, claim); err != nil {
			g.logError(ctx, "release idempotency claim", err)
		}
		return
	}
	g.persist(ctx, key, rule.ttl, idempotencyRecord{
		State:       stateComplete,
		RequestHash: requestHash,
		Status:      status,
		ContentType: ww.Header().Get("Content-Type"),
		Body:        captured.Bytes(),
	})
}

func (g *idempotencyGuard) persist(ctx context.Context, key string, ttl time.Duration, record idempotencyRecord) {
	payload, err := encodeRecord(record)
	if err == nil {
		err = g.store.Set(ctx, key, payload, ttl)
	}
	if err != nil {
		g.logError(ctx, "persist idempotency record", err)
	}
}

func (g *idempotencyGuard) replay(w http.ResponseWriter, r *http.Request, key, requestHash string) {
	stored, err := g.store.Get(r.Context(), key)
	if errors.Is(err, redis.Nil) {
		// released or expired between SETNX and GET
		g.fail(w, r, pkgerrors.New(pkgerrors.CodeConflict, "idempotent request state changed, retry"))
		return
	}
	if err != nil {
		g.fail(w, r, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check idempotency"))
		return
	}
	var record idempotencyRecord
	if err := json.Unmarshal([]byte(stored), &record); err != nil {
		g.fail(w, r, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode idempotency record"))
		return
	}

	switch {
	case record.RequestHash != requestHash:
		g.fail(w, r, pkgerrors.New(pkgerrors.CodeIdempotency, "idempotency key reused with different request body"))
	case record.State == statePending:
		g.fail(w, r, pkgerrors.New(pkgerrors.CodeConflict, "a request with this Idempotency-Key is still in progress"))
	default:
		if record.ContentType != "" {
			w.Header().Set("Content-Type", record.ContentType)
		}
		w.Header().Set(replayHeader, "true")
		w.WriteHeader(record.Status)
		_, _ = w.Write(record.Body)
	}
}

func (g *idempotencyGuard) fail(w http.ResponseWriter, r *http.Request, err error) {
	responses.WriteError(r.Context(), g.logg, w, err)
}

func (g *idempotencyGuard) logError(ctx context.Context, msg string, err error) {
	if g.logg != nil {
		g.logg.Error(ctx, msg, err)
	}
}

// requestScope keys the record by caller, method and path so two users can
// share a client key without colliding.
func requestScope(r *http.Request) string {
	return strings.Join([]string{UserIDFromContext(r.Context()), r.Method, r.URL.Path}, "|")
}

func encodeRecord(record idempotencyRecord) (string, error) {
	payload, err := json.Marshal(record)
	return string(payload), err
}

func hashBody(payload []byte) string {
	sum := sha256.Sum256(payload)
	return base64.RawStdEncoding.EncodeToString(sum[:])
}

// routePattern prefers chi's matched pattern. Group middleware runs before
// the subrouter resolves and sees a wildcard pattern, so the raw path is used
// then.
func routePattern(r *http.Request) string {
	if r == nil {
		return ""
	}
	pattern := ""
	if rc := chi.RouteContext(r.Context()); rc != nil {
		pattern = rc.RoutePattern()
	}
	if pattern == "" || strings.HasSuffix(pattern, "*") {
		pattern = r.URL.Path
	}
	if len(pattern) > 1 {
		pattern = strings.TrimSuffix(pattern, "/")
	}
	return pattern
}
