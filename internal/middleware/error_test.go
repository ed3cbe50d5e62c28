package middleware

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"ecatalogue/internal/domain"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var kindStatus = []struct {
	kind   error
	status int
}{
	{domain.ErrValidation, http.StatusBadRequest},
	{domain.ErrNotFound, http.StatusNotFound},
	{domain.ErrConflict, http.StatusConflict},
	{domain.ErrAsset, http.StatusBadGateway},
	{domain.ErrStore, http.StatusInternalServerError},
}

// Property: every catalogue error yields the failure envelope with the status
// of its kind and a parseable timestamp
func TestProperty_DomainErrorsShareEnvelope(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("domain errors map to one envelope shape", prop.ForAll(
		func(idx int, message string) bool {
			entry := kindStatus[idx]

			w := httptest.NewRecorder()
			RespondWithDomainError(w, zap.NewNop(), fmt.Errorf("wrapped: %w", domain.NewError(entry.kind, message)))

			if w.Code != entry.status || w.Header().Get("Content-Type") != "application/json" {
				t.Logf("FAIL: kind %v gave %d", entry.kind, w.Code)
				return false
			}

			var response ErrorResponse
			if err := json.Unmarshal(w.Body.Bytes(), &response); err != nil {
				return false
			}
			if response.Success || response.Error.Code != http.StatusText(entry.status) {
				return false
			}
			if _, err := time.Parse(time.RFC3339, response.Error.Timestamp); err != nil {
				return false
			}

			// Client errors carry their own message, server side failures never leak it
			if entry.status < http.StatusInternalServerError {
				return response.Error.Message == message
			}
			return response.Error.Message != message
		},
		gen.IntRange(0, len(kindStatus)-1),
		gen.RegexMatch(`[a-z]{4,12} (not found|is required|already exists)`),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

// Property: field errors survive the trip into details.validation_errors
func TestProperty_ValidationFieldsAreReported(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("validation fields are echoed back", prop.ForAll(
		func(fields []string) bool {
			verr := &domain.ValidationError{Message: "Invalid input data"}
			for _, f := range fields {
				verr.Fields = append(verr.Fields, domain.FieldError{Field: f, Message: f + " is invalid"})
			}

			w := httptest.NewRecorder()
			RespondWithDomainError(w, zap.NewNop(), verr)
			if w.Code != http.StatusBadRequest {
				return false
			}

			var response struct {
				Error struct {
					Message string `json:"message"`
					Details struct {
						ValidationErrors []domain.FieldError `json:"validation_errors"`
					} `json:"details"`
				} `json:"error"`
			}
			if err := json.Unmarshal(w.Body.Bytes(), &response); err != nil {
				return false
			}
			if response.Error.Message != "Invalid input data" || len(response.Error.Details.ValidationErrors) != len(fields) {
				return false
			}
			for i, f := range response.Error.Details.ValidationErrors {
				if f.Field != fields[i] {
					return false
				}
			}
			return true
		},
		gen.SliceOfN(3, gen.OneConstOf("name", "price", "categoryId", "images", "stock")),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestRespondWithDomainErrorStatus(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		status  int
		message string
	}{
		{name: "validation", err: domain.NewValidationError("price", "Must be at least 0"), status: http.StatusBadRequest, message: "Must be at least 0"},
		{name: "validation kind", err: domain.NewError(domain.ErrValidation, "invalid request body"), status: http.StatusBadRequest, message: "invalid request body"},
		{name: "not found", err: fmt.Errorf("load: %w", domain.NewError(domain.ErrNotFound, "product not found")), status: http.StatusNotFound, message: "product not found"},
		{name: "conflict", err: domain.NewError(domain.ErrConflict, "cannot delete category: it has 2 products associated with it"), status: http.StatusConflict, message: "cannot delete category: it has 2 products associated with it"},
		{name: "asset", err: fmt.Errorf("upload: %w", domain.ErrAsset), status: http.StatusBadGateway, message: "image storage is unavailable"},
		{name: "store", err: fmt.Errorf("insert: %w: %w", domain.ErrStore, errors.New("pq: connection refused")), status: http.StatusInternalServerError, message: "internal server error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			RespondWithDomainError(w, zap.NewNop(), tt.err)

			assert.Equal(t, tt.status, w.Code)

			var response ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
			assert.False(t, response.Success)
			assert.Equal(t, tt.message, response.Error.Message)
		})
	}
}

func TestRespondWithDomainErrorIncludesFields(t *testing.T) {
	err := &domain.ValidationError{
		Message: "Invalid input data",
		Fields: []domain.FieldError{
			{Field: "name", Message: "Product name is required"},
			{Field: "price", Message: "Product price is required"},
		},
	}

	w := httptest.NewRecorder()
	RespondWithDomainError(w, zap.NewNop(), err)

	var response struct {
		Error struct {
			Details struct {
				ValidationErrors []domain.FieldError `json:"validation_errors"`
			} `json:"details"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, err.Fields, response.Error.Details.ValidationErrors)
}

func TestErrorHandlingMiddlewareRecoversPanics(t *testing.T) {
	handler := ErrorHandlingMiddleware(zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/products", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}
