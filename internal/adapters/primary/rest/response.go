package rest

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/askarthikey/cleverSM/internal/core/domain"
	"github.com/askarthikey/cleverSM/internal/core/ports"
)

const maxBodyBytes = 1 << 20

var errInvalidBody = errors.New("invalid request body")

// envelope : format de réponse commun {statusCode, message, data}.
type envelope struct {
	StatusCode int    `json:"statusCode"`
	Message    string `json:"message"`
	Data       any    `json:"data,omitempty"`
	Error      string `json:"error,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, message string, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(envelope{StatusCode: status, Message: message, Data: data})
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, message := mapDomainError(err)
	if status == http.StatusInternalServerError {
		slog.ErrorContext(r.Context(), "❌ Request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(envelope{
		StatusCode: status,
		Message:    message,
		Error:      http.StatusText(status),
	})
}

// mapDomainError traduit les sentinelles du domaine en statut HTTP.
// Les erreurs internes ne fuitent pas leurs détails techniques.
func mapDomainError(err error) (int, string) {
	if errors.Is(err, errInvalidBody) {
		return http.StatusBadRequest, err.Error()
	}

	switch domain.KindOf(err) {
	case domain.KindBadRequest:
		return http.StatusBadRequest, rootMessage(err)
	case domain.KindUnauthorized:
		return http.StatusUnauthorized, rootMessage(err)
	case domain.KindNotFound:
		return http.StatusNotFound, rootMessage(err)
	case domain.KindConflict:
		return http.StatusConflict, rootMessage(err)
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}

// rootMessage renvoie le message de la sentinelle, sans les préfixes de wrapping.
func rootMessage(err error) string {
	for {
		next := errors.Unwrap(err)
		if next == nil {
			return err.Error()
		}
		err = next
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return fmt.Errorf("%w: %v", errInvalidBody, err)
	}
	return nil
}

// parsePage lit ?page=&limit= ; les valeurs invalides retombent sur les défauts.
func parsePage(r *http.Request) ports.Page {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	limit, _ := strconv.Atoi(q.Get("limit"))
	return ports.Page{Page: page, Limit: limit}.Normalize()
}
