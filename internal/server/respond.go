package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	svcerr "github.com/lego3072/rentready-ai/internal/errors"
)

func writeJSON[T any](w http.ResponseWriter, status int, v T) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("encode response")
	}
}

type errorBody struct {
	Error           string            `json:"error"`
	Kind            string            `json:"kind,omitempty"`
	PurchaseOptions map[string]string `json:"purchase_options,omitempty"`
}

// writeError maps a service error onto an HTTP status. Payment denials
// carry the checkout endpoints so the client can offer an upgrade directly.
func writeError(w http.ResponseWriter, err error) {
	var se *svcerr.ServiceError
	if !errors.As(err, &se) {
		log.Error().Err(err).Msg("unclassified handler error")
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal error"})
		return
	}

	body := errorBody{Error: publicMessage(se), Kind: string(se.Kind)}
	status := http.StatusInternalServerError
	switch se.Kind {
	case svcerr.KindBadRequest:
		status = http.StatusBadRequest
	case svcerr.KindUnauthorized:
		status = http.StatusUnauthorized
	case svcerr.KindPaymentRequired:
		status = http.StatusPaymentRequired
		body.PurchaseOptions = map[string]string{
			"single": "/api/checkout/single",
			"pro":    "/api/checkout/pro",
		}
	case svcerr.KindForbidden:
		status = http.StatusForbidden
	case svcerr.KindNotFound:
		status = http.StatusNotFound
	case svcerr.KindConflict:
		status = http.StatusConflict
	case svcerr.KindUnavailable:
		status = http.StatusServiceUnavailable
		log.Error().Err(se).Str("op", se.Op).Msg("dependency unavailable")
	}
	writeJSON(w, status, body)
}

// publicMessage keeps internal detail out of unavailable responses; for the
// client-addressable kinds the wrapped message is the point.
func publicMessage(se *svcerr.ServiceError) string {
	if se.Kind == svcerr.KindUnavailable {
		return "service temporarily unavailable"
	}
	if se.Err != nil {
		return se.Err.Error()
	}
	switch se.Kind {
	case svcerr.KindNotFound:
		return "not found"
	case svcerr.KindForbidden:
		return "access denied"
	case svcerr.KindUnauthorized:
		return "invalid credentials"
	case svcerr.KindPaymentRequired:
		return "report limit reached"
	case svcerr.KindConflict:
		return "conflict"
	}
	return "request failed"
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid JSON body"})
		return false
	}
	return true
}
