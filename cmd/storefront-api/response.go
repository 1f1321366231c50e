package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/Sternrassler/storefront-cdn/pkg/catalog"
	"github.com/Sternrassler/storefront-cdn/pkg/client"
	"github.com/Sternrassler/storefront-cdn/pkg/query"
)

// response is the body of every /api reply.
type response struct {
	Data  any       `json:"data"`
	Error *apiError `json:"error"`
	Stale bool      `json:"stale"`
}

type apiError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	HTTPStatus int    `json:"httpStatus,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error().Err(err).Msg("Failed to write JSON response")
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, response{Error: &apiError{Code: code, Message: message}})
}

// writeState renders a query state. With data present the reply is 200
// even if the latest load failed; the error rides along so the client
// can show a degraded view.
func writeState[T any](w http.ResponseWriter, state query.State[T], view func(T) (any, error)) {
	resp := response{Stale: state.Stale}
	if state.Err != nil {
		resp.Error = toAPIError(state.Err)
	}

	if !state.HasData {
		writeJSON(w, statusFor(state.Err), resp)
		return
	}

	data, err := view(state.Data)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "format_failed", err.Error())
		return
	}
	resp.Data = data
	writeJSON(w, http.StatusOK, resp)
}

func toAPIError(err error) *apiError {
	var fetchErr *client.CDNFetchError
	var validationErr *catalog.ValidationError

	switch {
	case errors.Is(err, catalog.ErrNotFound):
		return &apiError{Code: "NOT_FOUND", Message: err.Error(), HTTPStatus: http.StatusNotFound}
	case errors.Is(err, catalog.ErrInvalidParam):
		return &apiError{Code: "INVALID_PARAM", Message: err.Error()}
	case errors.As(err, &validationErr):
		return &apiError{Code: "INVALID_PAYLOAD", Message: validationErr.Error()}
	case errors.As(err, &fetchErr):
		return &apiError{Code: string(fetchErr.Code), Message: fetchErr.Message, HTTPStatus: fetchErr.HTTPStatus}
	default:
		return &apiError{Code: string(client.CodeUnknown), Message: err.Error()}
	}
}

func statusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, catalog.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, catalog.ErrInvalidParam):
		return http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}
