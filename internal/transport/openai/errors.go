package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	openai "github.com/sashabaranov/go-openai"

	"github.com/kailas-cloud/syllabus/internal/domain"
)

// Error type labels for provider error metrics.
const (
	errTypeRateLimited = "rate_limited"
	errTypeServer      = "server_error"
	errTypeClient      = "client_error"
	errTypeTransport   = "transport"
	errTypeCanceled    = "canceled"
)

// classify maps a go-openai error to a domain error wrapping kind.
// 429, 5xx and transport failures also wrap domain.ErrProviderTransient;
// other 4xx responses and caller cancellation do not.
func classify(what string, err, kind error) (errType string, wrapped error) {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return errTypeCanceled, fmt.Errorf("%s request: %w: %w", what, err, kind)
	}

	status, detail := statusOf(err)
	switch {
	case status == http.StatusTooManyRequests:
		return errTypeRateLimited, fmt.Errorf("%s API error %d: %s: %w: %w",
			what, status, detail, kind, domain.ErrProviderTransient)
	case status >= http.StatusInternalServerError:
		return errTypeServer, fmt.Errorf("%s API error %d: %s: %w: %w",
			what, status, detail, kind, domain.ErrProviderTransient)
	case status > 0:
		return errTypeClient, fmt.Errorf("%s API error %d: %s: %w", what, status, detail, kind)
	default:
		return errTypeTransport, fmt.Errorf("%s request failed: %v: %w: %w",
			what, err, kind, domain.ErrProviderTransient)
	}
}

// statusOf extracts the HTTP status and a readable detail from an API error.
// status is 0 when no response was received.
func statusOf(err error) (int, string) {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode, apiErr.Message
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		if detail := extractDetail(reqErr.Body); detail != "" {
			return reqErr.HTTPStatusCode, detail
		}
		return reqErr.HTTPStatusCode, string(reqErr.Body)
	}

	return 0, ""
}

// extractDetail extracts the "detail" field from a JSON error body (Nebius error format).
func extractDetail(body []byte) string {
	var parsed struct {
		Detail string `json:"detail"`
	}
	if json.Unmarshal(body, &parsed) == nil && parsed.Detail != "" {
		return parsed.Detail
	}
	return ""
}
