package llm

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/s33g/typedchat/internal/chat"
	"github.com/s33g/typedchat/internal/config"
)

// Transport posts an encoded request body to a path and returns the raw
// reply body.
type Transport interface {
	Send(ctx context.Context, path string, body []byte) ([]byte, error)
}

// HTTPTransport is a Transport for OpenAI-compatible HTTP endpoints.
type HTTPTransport struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	headers    map[string]string
}

// NewHTTPTransport builds a transport from the api config section. The API
// key is read from the configured environment variable and may be empty
// (e.g. for local servers).
func NewHTTPTransport(cfg config.APIConfig) *HTTPTransport {
	apiKey := ""
	if cfg.APIKeyEnv != "" {
		apiKey = os.Getenv(cfg.APIKeyEnv)
	}

	return &HTTPTransport{
		httpClient: &http.Client{
			Timeout: cfg.Timeout(),
		},
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  apiKey,
		headers: cfg.Headers,
	}
}

// Send implements Transport. Non-2xx replies carrying an error envelope are
// returned as bodies; other non-2xx replies are TransportErrors.
func (t *HTTPTransport) Send(ctx context.Context, path string, body []byte) ([]byte, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, &TransportError{Path: path, Err: fmt.Errorf("failed to create request: %w", err)}
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	for k, v := range t.headers {
		httpReq.Header.Set(k, v)
	}
	if t.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+t.apiKey)
	}

	resp, err := t.httpClient.Do(httpReq)
	if err != nil {
		return nil, &TransportError{Path: path, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Path: path, StatusCode: resp.StatusCode, Err: fmt.Errorf("failed to read response: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if chat.HasErrorEnvelope(respBody) {
			return respBody, nil
		}
		return nil, &TransportError{
			Path:       path,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("unexpected reply: %s", truncate(strings.TrimSpace(string(respBody)), 200)),
		}
	}

	return respBody, nil
}
