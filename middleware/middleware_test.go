package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	goVerify "github.com/MrEthical07/goVerify"
	"github.com/MrEthical07/goVerify/jwt"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

var signingKey = []byte(strings.Repeat("s", 32))

type noAccounts struct{}

func (noAccounts) FindByRecipient(context.Context, string) (goVerify.Account, error) {
	return goVerify.Account{}, goVerify.ErrAccountNotFound
}
func (noAccounts) FindByID(context.Context, string) (goVerify.Account, error) {
	return goVerify.Account{}, goVerify.ErrAccountNotFound
}
func (noAccounts) UpdateCredential(context.Context, string, string, string) error {
	return goVerify.ErrAccountNotFound
}

func newEngine(t *testing.T) *goVerify.Engine {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run failed: %v", err)
	}
	t.Cleanup(mr.Close)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	cfg := goVerify.DefaultConfig()
	cfg.Secret = "middleware-secret"
	cfg.SignIn.SigningMethod = string(jwt.MethodHS256)
	cfg.SignIn.PrivateKey = signingKey

	engine, err := goVerify.New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithCredentialProvider(noAccounts{}).
		WithSender(goVerify.SenderFunc(func(context.Context, goVerify.Message) error { return nil })).
		Build()
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	t.Cleanup(engine.Close)
	return engine
}

func mint(t *testing.T, now time.Time) string {
	t.Helper()
	m, err := jwt.NewManager(jwt.Config{
		AccessTTL:     time.Minute,
		SigningMethod: jwt.MethodHS256,
		PrivateKey:    signingKey,
	})
	if err != nil {
		t.Fatalf("manager: %v", err)
	}
	tok, _, err := m.WithClock(func() time.Time { return now }).CreateAccess("user-7", "rec-1")
	if err != nil {
		t.Fatalf("create access: %v", err)
	}
	return tok
}

func TestGuard(t *testing.T) {
	engine := newEngine(t)
	var seen string
	h := Guard(engine)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := ClaimsFromContext(r.Context())
		if !ok {
			t.Fatalf("claims missing from context")
		}
		seen = claims.UID
		w.WriteHeader(http.StatusOK)
	}))

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{name: "missing header", header: "", want: http.StatusUnauthorized},
		{name: "wrong scheme", header: "Basic abc", want: http.StatusUnauthorized},
		{name: "garbage token", header: "Bearer not.a.jwt", want: http.StatusUnauthorized},
		{name: "expired token", header: "Bearer " + mint(t, time.Now().Add(-time.Hour)), want: http.StatusUnauthorized},
		{name: "valid token", header: "Bearer " + mint(t, time.Now()), want: http.StatusOK},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/v1/me", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if rec.Code != tc.want {
				t.Fatalf("expected %d, got %d", tc.want, rec.Code)
			}
		})
	}
	if seen != "user-7" {
		t.Fatalf("expected user-7 in claims, got %q", seen)
	}
}

func TestGuardNilEngine(t *testing.T) {
	h := Guard(nil)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatalf("handler must not run")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name    string
		trust   bool
		remote  string
		forward string
		want    string
	}{
		{name: "remote addr", remote: "192.0.2.1:5555", want: "192.0.2.1"},
		{name: "forwarded ignored", remote: "192.0.2.1:5555", forward: "203.0.113.9", want: "192.0.2.1"},
		{name: "forwarded trusted", trust: true, remote: "10.0.0.1:80", forward: "203.0.113.9, 10.0.0.1", want: "203.0.113.9"},
		{name: "bad forwarded falls back", trust: true, remote: "10.0.0.1:80", forward: "unknown", want: "10.0.0.1"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var got string
			h := ClientIP(tc.trust)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got = goVerify.ClientIPFromContext(r.Context())
			}))
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tc.remote
			if tc.forward != "" {
				req.Header.Set("X-Forwarded-For", tc.forward)
			}
			h.ServeHTTP(httptest.NewRecorder(), req)
			if got != tc.want {
				t.Fatalf("expected %q, got %q", tc.want, got)
			}
		})
	}
}
