package transport

import (
	"net/http"
	"strconv"
	"strings"

	"ecatalogue/internal/domain"
	"ecatalogue/internal/middleware"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// Envelope is the success body of every catalogue response
type Envelope struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

func respond(w http.ResponseWriter, status int, message string, data interface{}) {
	middleware.RespondWithJSON(w, status, Envelope{Success: true, Message: message, Data: data})
}

// pathID parses a UUID path parameter; label names the record in the error
func pathID(r *http.Request, param, label string) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, param))
	if err != nil {
		return uuid.Nil, domain.NewValidationError(param, "Invalid "+label+" ID")
	}
	return id, nil
}

// queryInt reads an optional integer query parameter. Missing means 0.
func queryInt(r *http.Request, name string) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return 0, nil
	}

	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, domain.NewValidationError(name, "Must be an integer")
	}
	return v, nil
}

// queryBool reads an optional boolean query parameter
func queryBool(r *http.Request, name string) (*bool, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return nil, nil
	}

	v, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, domain.NewValidationError(name, "Must be a boolean")
	}
	return &v, nil
}

// highlightQuery reads the optional featured and trending flags
func highlightQuery(r *http.Request) (featured, trending *bool, err error) {
	if featured, err = queryBool(r, "featured"); err != nil {
		return nil, nil, err
	}
	if trending, err = queryBool(r, "trending"); err != nil {
		return nil, nil, err
	}
	return featured, trending, nil
}

// pageQuery reads the page and limit query parameters. Absent values are
// returned as 0 so the service applies its defaults; explicit values must be
// positive.
func pageQuery(r *http.Request) (page, limit int, err error) {
	for _, p := range []struct {
		name string
		dst  *int
	}{{"page", &page}, {"limit", &limit}} {
		v, err := queryInt(r, p.name)
		if err != nil {
			return 0, 0, err
		}
		if r.URL.Query().Has(p.name) && v < 1 {
			return 0, 0, domain.NewValidationError(p.name, "Must be at least 1")
		}
		*p.dst = v
	}
	return page, limit, nil
}
