package chi

import (
	"context"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/kailas-cloud/syllabus/internal/domain"
	"github.com/kailas-cloud/syllabus/internal/logger"
)

// Transport-level error codes outside the domain kinds.
const (
	codeUnauthorized     = "UNAUTHORIZED"
	codeNotFound         = "NOT_FOUND"
	codeMethodNotAllowed = "METHOD_NOT_ALLOWED"
	codeCanceled         = "REQUEST_CANCELED"
	codeTimeout          = "REQUEST_TIMEOUT"
)

// statusClientClosedRequest is the de facto status for a client that went away.
const statusClientClosedRequest = 499

// publicMessages replace internal details of upstream and invariant failures.
var publicMessages = map[domain.ErrorKind]string{
	domain.KindDatabaseError:        "database unavailable",
	domain.KindEmbeddingUnavailable: "embedding provider unavailable",
	domain.KindSearchBackendError:   "search backend unavailable",
	domain.KindChatUnavailable:      "chat provider unavailable",
	domain.KindTopicLeakageDetected: "topic boundary invariant breach",
	domain.KindInternal:             "internal error",
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{Error: message, Code: code})
}

// writeDomainError maps a pipeline failure to its status and body.
func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()
	se, ok := domain.AsSearchError(err)
	if !ok {
		writeContextError(w, r, err)
		return
	}

	annotate(ctx, string(se.Kind), se.IncidentID)
	msg := se.Message
	if !se.Kind.IsInputError() {
		if pub, ok := publicMessages[se.Kind]; ok {
			msg = pub
		}
	}
	writeJSON(w, se.Kind.HTTPStatus(), ErrorResponse{
		Error:      msg,
		Code:       string(se.Kind),
		IncidentID: se.IncidentID,
	})
}

func writeContextError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, context.Canceled):
		annotate(r.Context(), codeCanceled, "")
		writeError(w, statusClientClosedRequest, codeCanceled, "request canceled")
	case errors.Is(err, context.DeadlineExceeded):
		annotate(r.Context(), codeTimeout, "")
		writeError(w, http.StatusGatewayTimeout, codeTimeout, "request timed out")
	default:
		logger.FromContext(r.Context()).Error("Unhandled error", zap.Error(err))
		annotate(r.Context(), string(domain.KindInternal), "")
		writeError(w, http.StatusInternalServerError, string(domain.KindInternal), "internal error")
	}
}
