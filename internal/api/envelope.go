package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/sugawarayuuta/sonnet"
)

// Error codes carried in the response envelope.
const (
	CodeInvalidInput  = "E001" // malformed body, key, or query parameter
	CodeBatchTooLarge = "E002" // batch exceeds the configured item limit
	CodeStoreDisabled = "E003" // history endpoint without a configured store
	CodeRateLimited   = "E004" // token bucket empty
	CodeNotFound      = "E005" // no stored analysis for the address
	CodeInternal      = "E500" // anything else
)

// Response is the envelope every JSON endpoint returns.
type Response struct {
	Status    string `json:"status"` // "ok" or "error"
	Data      any    `json:"data,omitempty"`
	Error     *Error `json:"error,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// Error is the error part of the envelope.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

func marshal(v any) ([]byte, error) {
	body, err := sonnet.Marshal(v)
	if err != nil {
		return nil, err
	}
	return append(body, '\n'), nil
}

func writeJSON(w http.ResponseWriter, status int, resp Response) {
	body, err := marshal(resp)
	if err != nil {
		http.Error(w, `{"status":"error","error":{"code":"E500","message":"encoding response"}}`,
			http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

func writeOK(w http.ResponseWriter, r *http.Request, data any) {
	writeJSON(w, http.StatusOK, Response{
		Status:    "ok",
		Data:      data,
		RequestID: requestID(r.Context()),
	})
}

func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string, details any) {
	writeJSON(w, status, Response{
		Status:    "error",
		Error:     &Error{Code: code, Message: message, Details: details},
		RequestID: requestID(r.Context()),
	})
}

// decodeBody reads at most limit bytes of JSON into v.
func decodeBody(w http.ResponseWriter, r *http.Request, limit int64, v any) error {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, limit))
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			return fmt.Errorf("body exceeds %d bytes", tooBig.Limit)
		}
		return fmt.Errorf("read body: %w", err)
	}
	if len(data) == 0 {
		return errors.New("empty body")
	}
	if err := sonnet.Unmarshal(data, v); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	return nil
}
