package web

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"ai-image-studio/internal/domain"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Error           string `json:"error"`
	UpgradeRequired bool   `json:"upgrade_required,omitempty"`
}

// writeError maps domain errors onto the HTTP surface. Quota and
// subscription rejections carry the upgrade hint the client renders.
func writeError(w http.ResponseWriter, log *zerolog.Logger, err error) {
	var status int
	body := errorBody{}

	switch {
	case errors.Is(err, domain.ErrUnauthenticated):
		status = http.StatusUnauthorized
		body.Error = "missing or invalid credential"
	case errors.Is(err, domain.ErrNotOwner):
		status = http.StatusForbidden
		body.Error = "not allowed"
	case errors.Is(err, domain.ErrNotFound):
		status = http.StatusNotFound
		body.Error = "not found"
	case errors.Is(err, domain.ErrQuotaExceeded):
		status = http.StatusForbidden
		body.Error = "generation quota exceeded"
		body.UpgradeRequired = true
	case errors.Is(err, domain.ErrNoActiveSubscription):
		status = http.StatusForbidden
		body.Error = "no active subscription"
		body.UpgradeRequired = true
	case errors.Is(err, domain.ErrInvalidArgument), errors.Is(err, domain.ErrInvalidPayload):
		status = http.StatusBadRequest
		body.Error = err.Error()
	case errors.Is(err, domain.ErrInvalidSignature):
		status = http.StatusBadRequest
		body.Error = "invalid signature"
	case errors.Is(err, domain.ErrRateLimited):
		status = http.StatusTooManyRequests
		body.Error = "too many requests"
	case errors.Is(err, domain.ErrUpstream), errors.Is(err, domain.ErrUnrecognizedOutput):
		status = http.StatusBadGateway
		body.Error = "upstream service failure"
	default:
		status = http.StatusInternalServerError
		body.Error = "internal error"
	}

	if status >= 500 {
		log.Error().Err(err).Int("status", status).Msg("request failed")
	} else {
		log.Debug().Err(err).Int("status", status).Msg("request rejected")
	}
	writeJSON(w, status, body)
}
