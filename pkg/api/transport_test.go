package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.Handler) (*HTTPClient, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewHTTPClient(ClientConfig{
		Host:    server.URL,
		Token:   "test-token",
		Timeout: 5 * time.Second,
	})
	require.NoError(t, err)
	return client, server
}

func TestDoSuccess(t *testing.T) {
	var gotPath, gotToken, gotRequestID string
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotToken = r.Header.Get("Authtoken")
		gotRequestID = r.Header.Get("X-Request-Id")
		w.Write([]byte(`{"clientProperties": []}`))
	}))

	ok, resp := client.Do(context.Background(), http.MethodGet, "Client", nil)
	require.True(t, ok)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"clientProperties": []}`, string(resp.Body))
	assert.Equal(t, "/api/Client", gotPath)
	assert.Equal(t, "test-token", gotToken)
	assert.NotEmpty(t, gotRequestID, "every request carries a correlation id")
}

func TestDoReportsFailureForNon2xx(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"errorMessage": "entity cache rebuilding", "errorCode": 587}`))
	}))

	ok, resp := client.Do(context.Background(), http.MethodGet, "Client", nil)
	require.False(t, ok)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	text := client.ErrorText(resp)
	assert.Contains(t, text, "entity cache rebuilding")
	assert.Contains(t, text, "587")
}

func TestDoConnectionFailure(t *testing.T) {
	client, server := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	ok, resp := client.Do(context.Background(), http.MethodGet, "Client", nil)
	require.False(t, ok)
	assert.Equal(t, "no response received from server", client.ErrorText(resp))
}

func TestErrorTextFallsBackToStatus(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	text := client.ErrorText(&Response{StatusCode: http.StatusBadGateway, Body: []byte("<html>oops</html>")})
	assert.Contains(t, text, "502")
	assert.Contains(t, text, "Bad Gateway")
}

func TestLoginStoresToken(t *testing.T) {
	var loginCalls int
	var lastToken string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/Login":
			loginCalls++
			require.Equal(t, http.MethodPost, r.Method)
			w.Write([]byte(`{"token": "issued-token"}`))
		default:
			lastToken = r.Header.Get("Authtoken")
			w.Write([]byte(`{}`))
		}
	}))
	t.Cleanup(server.Close)

	client, err := NewHTTPClient(ClientConfig{
		Host:     server.URL,
		Username: "admin",
		Password: "hunter2",
	})
	require.NoError(t, err)

	require.NoError(t, client.Login(context.Background()))
	assert.Equal(t, 1, loginCalls)

	ok, _ := client.Do(context.Background(), http.MethodGet, "Client", nil)
	require.True(t, ok)
	assert.Equal(t, "issued-token", lastToken)

	// a second login is a no-op once a token is held
	require.NoError(t, client.Login(context.Background()))
	assert.Equal(t, 1, loginCalls)
}

func TestLoginRequiresCredentials(t *testing.T) {
	client, err := NewHTTPClient(ClientConfig{Host: "backup.example.com"})
	require.NoError(t, err)

	err = client.Login(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "username and password")
}

func TestNewHTTPClientDefaultsToHTTPS(t *testing.T) {
	client, err := NewHTTPClient(ClientConfig{Host: "backup.example.com", Token: "x"})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(client.baseURL, "https://backup.example.com"))
}

func TestNewHTTPClientRequiresHost(t *testing.T) {
	_, err := NewHTTPClient(ClientConfig{})
	require.Error(t, err)
}

func TestNormalizeFingerprint(t *testing.T) {
	digest := strings.Repeat("ab", 32)

	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{name: "empty", input: "", want: ""},
		{name: "plain hex", input: digest, want: digest},
		{name: "colon separated uppercase", input: strings.TrimSuffix(strings.Repeat("AB:", 32), ":"), want: digest},
		{name: "too short", input: "abcd", wantErr: true},
		{name: "not hex", input: strings.Repeat("zz", 32), wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := normalizeFingerprint(tc.input)
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestEntityDetailEscapesID(t *testing.T) {
	assert.Equal(t, "Client/42", EntityDetail("42"))
	assert.NotContains(t, EntityDetail("a/b"), "a/b")
}
