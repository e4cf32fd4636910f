package errors

import (
	"net/http"

	"github.com/userhub/accounts/internal/logger"
)

// Handler wraps an http.HandlerFunc with error handling capabilities
type Handler func(w http.ResponseWriter, r *http.Request) error

// HandleFunc converts a Handler to a standard http.HandlerFunc. Returned
// errors are rendered as envelopes; server errors are logged with their cause
// first.
func HandleFunc(h Handler) http.HandlerFunc {
	log := logger.Default().WithComponent("http")

	return func(w http.ResponseWriter, r *http.Request) {
		err := h(w, r)
		if err == nil {
			return
		}
		appErr := AsAppError(err)
		if IsServerError(appErr) {
			log.Error(r.Context(), "request failed", appErr, map[string]interface{}{
				"method": r.Method,
				"path":   r.URL.Path,
			})
		}
		WriteError(w, r, appErr)
	}
}
