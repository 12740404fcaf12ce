package web

import (
	"encoding/json"
	stderrors "errors"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/hpungsan/showcase/internal/errors"
)

// errorBody is the envelope of every error response.
type errorBody struct {
	Error errorPayload `json:"error"`
}

type errorPayload struct {
	Code    errors.ErrorCode `json:"code"`
	Message string           `json:"message"`
	Status  int              `json:"status"`
	Details map[string]any   `json:"details,omitempty"`
}

// renderJSON writes a JSON response.
func renderJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// renderError writes err as the JSON error envelope. Internal errors are
// logged with the request id and reported to the client without detail.
func (s *Server) renderError(w http.ResponseWriter, r *http.Request, err error) {
	sErr := errors.As(err)

	payload := errorPayload{
		Code:    sErr.Code,
		Message: sErr.Message,
		Status:  sErr.Status,
		Details: sErr.Details,
	}
	if sErr.Code == errors.ErrInternal {
		s.logger.Error("request failed",
			zap.String("request_id", RequestID(r.Context())),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err))
		payload.Message = "internal error"
		payload.Details = nil
	}

	renderJSON(w, sErr.Status, errorBody{Error: payload})
}

// decodeJSON reads one JSON value from the body into dst, enforcing the
// configured size cap.
func (s *Server) decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	body := http.MaxBytesReader(w, r.Body, s.maxBodyBytes)
	dec := json.NewDecoder(body)
	if err := dec.Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case stderrors.As(err, &tooLarge):
			return errors.NewInvalidRequest("request body too large")
		case stderrors.Is(err, io.EOF):
			return errors.NewInvalidRequest("request body is required")
		default:
			return errors.NewInvalidRequest("malformed JSON body: " + err.Error())
		}
	}
	return nil
}
