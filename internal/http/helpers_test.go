package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/savitara/auth-service/internal/apperr"
	"github.com/savitara/auth-service/internal/config"
	api "github.com/savitara/auth-service/internal/http"
	"github.com/savitara/auth-service/internal/log"
	"github.com/savitara/auth-service/internal/oauth"
	"github.com/savitara/auth-service/internal/queue"
	"github.com/savitara/auth-service/internal/repo"
)

const testJWTSecret = "test-secret"

// stubVerifier stands in for the Google credential verifier so handler tests
// never hit the network.
type stubVerifier struct {
	user *oauth.GoogleUser
	err  error
}

func (s *stubVerifier) Verify(context.Context, string) (*oauth.GoogleUser, error) {
	return s.user, s.err
}

type testEnv struct {
	Store    *repo.Memory
	Verifier *stubVerifier
	Handler  *api.Handler
	Router   *gin.Engine
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)
	if _, err := log.Init(false); err != nil {
		t.Fatalf("log init: %v", err)
	}

	store := repo.NewMemory()
	v := &stubVerifier{err: apperr.ErrGoogleVerify}
	cfg := &config.Config{
		JWTSecret:      testJWTSecret,
		AccessTTLMin:   30,
		RefreshTTLDays: 7,
	}
	google := oauth.NewGoogle("", "", "", "state-secret")
	h := api.NewHandler(store, v, google, nil, queue.NewNoop(), cfg)

	return &testEnv{Store: store, Verifier: v, Handler: h, Router: api.NewRouter(h)}
}

type wireError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details"`
}

type wireEnvelope struct {
	Success bool           `json:"success"`
	Message string         `json:"message"`
	Data    map[string]any `json:"data"`
	Error   *wireError     `json:"error"`
}

func (e *testEnv) do(t *testing.T, method, path, body string, hdr map[string]string) (*httptest.ResponseRecorder, wireEnvelope) {
	t.Helper()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	e.Router.ServeHTTP(w, req)

	var env wireEnvelope
	_ = json.Unmarshal(w.Body.Bytes(), &env)
	return w, env
}

func bearer(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
}

func tokensOf(t *testing.T, env wireEnvelope) (access, refresh string) {
	t.Helper()
	access, _ = env.Data["access_token"].(string)
	refresh, _ = env.Data["refresh_token"].(string)
	if access == "" || refresh == "" {
		t.Fatalf("missing tokens in response data: %#v", env.Data)
	}
	return access, refresh
}

func userOf(t *testing.T, env wireEnvelope) map[string]any {
	t.Helper()
	u, ok := env.Data["user"].(map[string]any)
	if !ok {
		t.Fatalf("missing user in response data: %#v", env.Data)
	}
	return u
}
