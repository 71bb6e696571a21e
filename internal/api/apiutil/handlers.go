package apiutil

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/rs/zerolog/log"
)

const maxBodyBytes = 1 << 20

type FieldError struct {
	Field  string
	Reason string
}

func (e FieldError) Error() string {
	return fmt.Sprintf("%s %s", e.Field, e.Reason)
}

type HandlerError struct {
	Status  int
	Message string
	// Field names the offending request field, if any.
	Field string
	Err   error
}

func (e HandlerError) Error() string {
	return e.Message
}

func (e HandlerError) Unwrap() error {
	return e.Err
}

// ErrorResponse is the JSON body of every non-2xx API response.
type ErrorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

func DecodeJSON(r *http.Request, dst any) error {
	if r.Body == nil {
		return fmt.Errorf("missing request body")
	}
	defer r.Body.Close()

	decoder := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("missing request body")
		}
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return fmt.Errorf("invalid JSON body")
	}
	return nil
}

func WriteJSON(w http.ResponseWriter, status int, payload any) error {
	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	if err := encoder.Encode(payload); err != nil {
		return err
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, err := w.Write(buf.Bytes())
	return err
}

// WriteError writes err as an ErrorResponse. HandlerErrors keep their status
// and message; FieldErrors become 400; anything else is a 500 whose detail
// is only logged.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	logger := log.Ctx(r.Context())

	herr := HandlerError{Status: http.StatusInternalServerError, Message: "Internal Server Error", Err: err}
	var fieldErr FieldError
	switch {
	case errors.As(err, &herr):
	case errors.As(err, &fieldErr):
		herr = HandlerError{Status: http.StatusBadRequest, Message: fieldErr.Error(), Field: fieldErr.Field, Err: err}
	}

	if herr.Status >= http.StatusInternalServerError {
		logger.Error().Err(herr.Err).Str("path", r.URL.Path).Msg(herr.Message)
	} else {
		logger.Warn().Err(herr.Err).Int("status", herr.Status).Str("path", r.URL.Path).Msg("Request rejected")
	}

	if writeErr := WriteJSON(w, herr.Status, ErrorResponse{Error: herr.Message, Field: herr.Field}); writeErr != nil {
		logger.Error().Err(writeErr).Msg("Failed to write error response")
	}
}
