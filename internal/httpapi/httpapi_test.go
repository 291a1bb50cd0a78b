package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/assistants/agent"
	"github.com/hupe1980/assistants/internal/assistant"
	"github.com/hupe1980/assistants/model"
)

func newServer(t *testing.T, m model.Model, optFns ...func(o *Options)) (*httptest.Server, *assistant.Assistant) {
	t.Helper()

	asst, err := assistant.New(agent.NewModelAgent("helper", m), assistant.Identity{
		AppName:   "test_app",
		UserID:    "default_user",
		SessionID: "http_session",
	})
	require.NoError(t, err)

	srv := httptest.NewServer(New(asst, optFns...))
	t.Cleanup(srv.Close)

	return srv, asst
}

func post(t *testing.T, url, body string) (*http.Response, map[string]string) {
	t.Helper()

	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	require.NoError(t, err)

	defer resp.Body.Close()

	var out map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))

	return resp, out
}

func TestHealth(t *testing.T) {
	srv, _ := newServer(t, model.NewScriptedModel())

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)

	defer resp.Body.Close()

	var out HealthResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, HealthResponse{Status: "ok", Assistant: "helper"}, out)
}

func TestQuery(t *testing.T) {
	srv, _ := newServer(t, model.NewScriptedModel(model.Say("It is sunny.")))

	resp, out := post(t, srv.URL+"/v1/query", `{"message":"weather?"}`)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	assert.Equal(t, "It is sunny.", out["reply"])
	assert.Equal(t, "http_session", out["session_id"])
}

func TestQuery_BadRequest(t *testing.T) {
	srv, _ := newServer(t, model.NewScriptedModel())

	resp, out := post(t, srv.URL+"/v1/query", `{"message":"  "}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "message is required", out["error"])

	resp, out = post(t, srv.URL+"/v1/query", `not json`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "invalid JSON body", out["error"])
}

func TestQuery_BodyTooLarge(t *testing.T) {
	_, asst := newServer(t, model.NewScriptedModel())

	body := `{"message":"` + strings.Repeat("a", MaxBodyBytes) + `"}`
	req := httptest.NewRequest(http.MethodPost, "/v1/query", strings.NewReader(body))
	rec := httptest.NewRecorder()

	New(asst).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)

	var out map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&out))
	assert.Equal(t, "request body too large", out["error"])
}

func TestQuery_ModelError(t *testing.T) {
	srv, _ := newServer(t, model.NewScriptedModel(model.Turn{Err: errors.New("quota exhausted")}))

	resp, out := post(t, srv.URL+"/v1/query", `{"message":"hi"}`)

	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Contains(t, out["error"], "quota exhausted")
}

func TestReset(t *testing.T) {
	srv, asst := newServer(t, model.NewScriptedModel())

	resp, out := post(t, srv.URL+"/v1/reset", "")

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, strings.HasPrefix(out["session_id"], "http_session_"))
	assert.Equal(t, asst.SessionID(), out["session_id"])
}

func TestRateLimit(t *testing.T) {
	srv, _ := newServer(t, model.NewScriptedModel(), func(o *Options) {
		o.RateLimitRPS = 0.001
		o.RateLimitBurst = 1
	})

	first, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	first.Body.Close()

	second, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	second.Body.Close()

	assert.Equal(t, http.StatusOK, first.StatusCode)
	assert.Equal(t, http.StatusTooManyRequests, second.StatusCode)
	assert.Equal(t, "1", second.Header.Get("Retry-After"))
}

func TestRateLimiter_PerKey(t *testing.T) {
	rl := NewRateLimiter(0.001, 1)

	assert.True(t, rl.Allow("a"))
	assert.False(t, rl.Allow("a"))
	assert.True(t, rl.Allow("b"))
}
