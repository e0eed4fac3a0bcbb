// Package api serves the scrape-control and health endpoints of the REST
// surface, and adapts run metadata for the streaming bindings.
package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/XavierBriggs/fortuna/internal/apperror"
	"github.com/XavierBriggs/fortuna/internal/domain"
)

// problem is the §7 problem document returned on every failed request.
type problem struct {
	ErrorType   string         `json:"error_type"`
	Message     string         `json:"message"`
	Platform    *domain.Source `json:"platform,omitempty"`
	Recoverable bool           `json:"recoverable"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// respondProblem writes a problem document, carrying the typed taxonomy
// through when the error is an apperror.Error.
func respondProblem(w http.ResponseWriter, log zerolog.Logger, status int, message string, err error) {
	p := problem{ErrorType: http.StatusText(status), Message: message, Recoverable: status >= 500}

	if ae, ok := apperror.As(err); ok {
		p.ErrorType = string(ae.Type)
		p.Platform = ae.Platform
		p.Recoverable = ae.Recoverable
	}
	if err != nil {
		log.Warn().Err(err).Int("status", status).Msg(message)
	}

	respondJSON(w, status, p)
}

func parseIntParam(r *http.Request, param string, defaultValue int) int {
	valueStr := r.URL.Query().Get(param)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
