// Package api provides the HTTP transport to the management server and the
// catalogue of REST services the SDK consumes.
package api

import (
	"bytes"
	"context"
	"crypto/sha256"
	"crypto/tls"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/coveguard/cove-go-sdk/internal/logging"
	"github.com/coveguard/cove-go-sdk/internal/metrics"
	"github.com/rs/zerolog/log"
)

const defaultHTTPTimeout = 30 * time.Second

const maxResponseBodyBytes int64 = 8 * 1024 * 1024

// Response is the raw reply from one management-server request. A nil body
// with a zero status code means the request never reached the server.
type Response struct {
	StatusCode int
	Body       []byte
}

// Transport issues one request against the management server and reports
// whether it succeeded. Failed responses may still carry a server error
// envelope; ErrorText translates it into a caller-facing message. Raw
// transport errors are never surfaced past this interface.
type Transport interface {
	Do(ctx context.Context, method, service string, body any) (bool, *Response)
	ErrorText(resp *Response) string
}

// ClientConfig configures the HTTP transport.
type ClientConfig struct {
	Host        string // host or host:port; scheme defaults to https
	Username    string
	Password    string
	Token       string // pre-issued auth token; skips the login call
	VerifySSL   bool
	Fingerprint string // optional SHA-256 certificate pin
	Timeout     time.Duration
}

// HTTPClient is the HTTP implementation of Transport.
type HTTPClient struct {
	config     ClientConfig
	httpClient *http.Client
	baseURL    string
	token      string
}

// errorEnvelope is the standard error payload the server attaches to
// failed requests.
type errorEnvelope struct {
	ErrorMessage string `json:"errorMessage"`
	ErrorCode    int    `json:"errorCode"`
}

// loginRequest and loginResponse model the token-issuing call.
type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string `json:"token"`
}

// NewHTTPClient creates a transport for the given server. When no token is
// configured, Login must be called before issuing requests.
func NewHTTPClient(cfg ClientConfig) (*HTTPClient, error) {
	host := strings.TrimSpace(cfg.Host)
	if host == "" {
		return nil, fmt.Errorf("api: host is required")
	}

	if !strings.HasPrefix(host, "http://") && !strings.HasPrefix(host, "https://") {
		host = "https://" + host
		log.Debug().Str("host", host).Msg("No protocol specified in host, defaulting to HTTPS")
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultHTTPTimeout
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	tlsConfig, err := buildTLSConfig(!cfg.VerifySSL, cfg.Fingerprint)
	if err != nil {
		return nil, err
	}
	transport.TLSClientConfig = tlsConfig

	return &HTTPClient{
		config: cfg,
		httpClient: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: transport,
		},
		baseURL: strings.TrimSuffix(host, "/") + "/api/",
		token:   cfg.Token,
	}, nil
}

// Login exchanges the configured credentials for an auth token.
func (c *HTTPClient) Login(ctx context.Context) error {
	if c.token != "" {
		return nil
	}
	if c.config.Username == "" || c.config.Password == "" {
		return fmt.Errorf("api: login requires username and password")
	}

	ok, resp := c.Do(ctx, http.MethodPost, "Login", loginRequest{
		Username: c.config.Username,
		Password: c.config.Password,
	})
	if !ok {
		return fmt.Errorf("api: login failed: %s", c.ErrorText(resp))
	}

	var parsed loginResponse
	if err := json.Unmarshal(resp.Body, &parsed); err != nil {
		return fmt.Errorf("api: parse login response: %w", err)
	}
	if parsed.Token == "" {
		return fmt.Errorf("api: login response carried no token")
	}

	c.token = parsed.Token
	return nil
}

// Do sends one request. Success means the request completed with a 2xx
// status; everything else, including connection failures, reports false.
func (c *HTTPClient) Do(ctx context.Context, method, service string, body any) (bool, *Response) {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, requestID := logging.WithRequestID(ctx, "")

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			log.Error().Err(err).Str("service", service).Msg("Failed to encode request body")
			return false, &Response{}
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+service, reader)
	if err != nil {
		log.Error().Err(err).Str("service", service).Msg("Failed to build request")
		return false, &Response{}
	}

	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authtoken", c.token)
	}
	req.Header.Set("X-Request-Id", requestID)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	elapsed := time.Since(start)
	if err != nil {
		metrics.Default().ObserveRequest(method, 0, elapsed)
		log.Debug().
			Err(err).
			Str("method", method).
			Str("service", service).
			Str("request_id", requestID).
			Msg("Request failed before reaching the server")
		return false, &Response{}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodyBytes))
	if err != nil {
		metrics.Default().ObserveRequest(method, resp.StatusCode, elapsed)
		log.Debug().
			Err(err).
			Str("method", method).
			Str("service", service).
			Msg("Failed to read response body")
		return false, &Response{StatusCode: resp.StatusCode}
	}

	metrics.Default().ObserveRequest(method, resp.StatusCode, elapsed)
	log.Debug().
		Str("method", method).
		Str("service", service).
		Int("status", resp.StatusCode).
		Dur("elapsed", elapsed).
		Str("request_id", requestID).
		Msg("Request completed")

	out := &Response{StatusCode: resp.StatusCode, Body: data}
	return resp.StatusCode >= 200 && resp.StatusCode < 300, out
}

// ErrorText translates a failed response into a caller-facing message.
func (c *HTTPClient) ErrorText(resp *Response) string {
	if resp == nil || (resp.StatusCode == 0 && len(resp.Body) == 0) {
		return "no response received from server"
	}

	var envelope errorEnvelope
	if err := json.Unmarshal(resp.Body, &envelope); err == nil && envelope.ErrorMessage != "" {
		if envelope.ErrorCode != 0 {
			return fmt.Sprintf("%s [code: %d]", envelope.ErrorMessage, envelope.ErrorCode)
		}
		return envelope.ErrorMessage
	}

	if text := http.StatusText(resp.StatusCode); text != "" {
		return fmt.Sprintf("server returned %d %s", resp.StatusCode, text)
	}
	return fmt.Sprintf("server returned status %d", resp.StatusCode)
}

func buildTLSConfig(insecureSkipVerify bool, fingerprint string) (*tls.Config, error) {
	normalized, err := normalizeFingerprint(fingerprint)
	if err != nil {
		return nil, err
	}

	tlsConfig := &tls.Config{
		InsecureSkipVerify: insecureSkipVerify,
		MinVersion:         tls.VersionTLS12,
	}

	if normalized != "" {
		tlsConfig.InsecureSkipVerify = true
		tlsConfig.VerifyConnection = func(state tls.ConnectionState) error {
			if len(state.PeerCertificates) == 0 {
				return fmt.Errorf("api: tls pinning failed: missing peer certificate")
			}
			sum := sha256.Sum256(state.PeerCertificates[0].Raw)
			if hex.EncodeToString(sum[:]) != normalized {
				return fmt.Errorf("api: tls pinning failed: certificate fingerprint mismatch")
			}
			return nil
		}
	}

	return tlsConfig, nil
}

func normalizeFingerprint(fingerprint string) (string, error) {
	cleaned := strings.ToLower(strings.TrimSpace(fingerprint))
	if cleaned == "" {
		return "", nil
	}
	cleaned = strings.ReplaceAll(cleaned, ":", "")
	if len(cleaned) != sha256.Size*2 {
		return "", fmt.Errorf("api: fingerprint must be a SHA-256 digest, got %d hex characters", len(cleaned))
	}
	if _, err := hex.DecodeString(cleaned); err != nil {
		return "", fmt.Errorf("api: fingerprint is not valid hex: %w", err)
	}
	return cleaned, nil
}
