package registry

import (
	"encoding/json"
	"net/http"

	"github.com/registryx/registryx/pkg/logging"
	"github.com/registryx/registryx/pkg/regerr"
)

type envelopeError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Detail  any    `json:"detail,omitempty"`
}

type envelope struct {
	Errors []envelopeError `json:"errors"`
}

// statusFor maps a RegistryError's Kind/Code to the HTTP status the v2
// protocol expects, centralizing what the donor scattered across handlers
// as inline http.Error/json literals.
func statusFor(re *regerr.RegistryError) int {
	switch re.Kind {
	case regerr.KindValidation:
		return http.StatusBadRequest
	case regerr.KindNotFound:
		return http.StatusNotFound
	case regerr.KindConflict:
		return http.StatusConflict
	case regerr.KindUnauthorized:
		return http.StatusUnauthorized
	case regerr.KindDenied:
		return http.StatusForbidden
	case regerr.KindIntegrity:
		return http.StatusBadRequest
	case regerr.KindRange:
		return http.StatusRequestedRangeNotSatisfiable
	case regerr.KindTransient:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// writeError is the single place every handler funnels an error through,
// mapping Kind/Code to status and the {"errors":[...]} envelope.
func writeError(w http.ResponseWriter, err error) {
	re := regerr.As(err)
	status := statusFor(re)

	logForKind(re)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(envelope{Errors: []envelopeError{
		{Code: re.Code, Message: re.Message, Detail: re.Detail},
	}})
}

func logForKind(re *regerr.RegistryError) {
	entry := logging.WithFields(map[string]any{"code": re.Code})
	switch re.Kind {
	case regerr.KindValidation, regerr.KindNotFound, regerr.KindRange:
		entry.Debug(re.Message)
	case regerr.KindDenied, regerr.KindUnauthorized, regerr.KindConflict, regerr.KindIntegrity:
		entry.Info(re.Message)
	default:
		entry.WithError(re).Error(re.Message)
	}
}
