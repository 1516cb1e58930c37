package relay

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRelay(t *testing.T, upstream string) *httptest.Server {
	t.Helper()
	h := New(Config{Prefix: "/api/deepseek/", Upstream: upstream, APIKey: "secret-key"})
	mux := http.NewServeMux()
	mux.Handle(h.Pattern(), h)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestRelayForwardsVerbatim(t *testing.T) {
	var gotPath, gotAuth, gotBody, gotRequestID string
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		gotRequestID = r.Header.Get("X-Request-ID")
		raw, _ := io.ReadAll(r.Body)
		gotBody = string(raw)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte(`{"ai_probability":0.3,"reasoning":"r"}`))
	}))
	defer upstream.Close()
	srv := newRelay(t, upstream.URL+"/")

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/api/deepseek/judge", strings.NewReader(`{"model":"default","text":"hi"}`))
	require.NoError(t, err)
	req.Header.Set("X-Request-ID", "req-7")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	assert.Equal(t, http.StatusTeapot, resp.StatusCode)
	assert.Equal(t, `{"ai_probability":0.3,"reasoning":"r"}`, string(body))
	assert.Equal(t, "/judge", gotPath)
	assert.Equal(t, "Bearer secret-key", gotAuth)
	assert.Equal(t, `{"model":"default","text":"hi"}`, gotBody)
	assert.Equal(t, "req-7", gotRequestID)
}

func TestRelayUpstreamFailureIsProxyError(t *testing.T) {
	upstream := httptest.NewServer(http.NotFoundHandler())
	addr := upstream.URL
	upstream.Close()
	srv := newRelay(t, addr)

	resp, err := http.Post(srv.URL+"/api/deepseek/embedding", "application/json", strings.NewReader(`{}`))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	var payload map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	assert.Equal(t, "proxy_error", payload["error"])
	assert.NotEmpty(t, payload["detail"])
}

func TestRelayMissingUpstream(t *testing.T) {
	srv := newRelay(t, "")
	resp, err := http.Post(srv.URL+"/api/deepseek/judge", "application/json", strings.NewReader(`{}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}

func TestRelayRejectsBadRequests(t *testing.T) {
	srv := newRelay(t, "http://127.0.0.1:1")

	resp, err := http.Get(srv.URL + "/api/deepseek/judge")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)

	for _, path := range []string{"/api/deepseek/", "/api/deepseek/a/b"} {
		resp, err := http.Post(srv.URL+path, "application/json", strings.NewReader(`{}`))
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusNotFound, resp.StatusCode, path)
	}
}
