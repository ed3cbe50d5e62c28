package service

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"ecatalogue/internal/domain"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// Report fields by their JSON names
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return field.Name
		}
		return name
	})
	return v
}

// validateInput runs struct tag validation and converts failures into a
// domain validation error
func validateInput(v interface{}) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	var fieldErrors validator.ValidationErrors
	if !errors.As(err, &fieldErrors) {
		return fmt.Errorf("failed to validate input: %w", err)
	}

	verr := &domain.ValidationError{Message: "Invalid input data"}
	for _, fe := range fieldErrors {
		verr.Fields = append(verr.Fields, domain.FieldError{Field: fe.Field(), Message: fieldMessage(fe)})
	}
	return verr
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "This field is required"
	case "email":
		return "Invalid email format"
	case "min":
		if fe.Kind() == reflect.String {
			return "Must be at least " + fe.Param() + " characters"
		}
		return "Must be at least " + fe.Param()
	case "max":
		if fe.Kind() == reflect.String {
			return "Cannot exceed " + fe.Param() + " characters"
		}
		return "Must be at most " + fe.Param()
	case "gte":
		return "Must be greater than or equal to " + fe.Param()
	case "lte":
		return "Must be less than or equal to " + fe.Param()
	case "oneof":
		return "Must be one of: " + fe.Param()
	default:
		return "Invalid value"
	}
}

// Pagination describes one page of a listing
type Pagination struct {
	Current int `json:"current"`
	Pages   int `json:"pages"`
	Total   int `json:"total"`
	Limit   int `json:"limit"`
}

func newPagination(page, limit, total int) Pagination {
	pages := 0
	if limit > 0 {
		pages = (total + limit - 1) / limit
	}
	return Pagination{Current: page, Pages: pages, Total: total, Limit: limit}
}

// pageParams applies the default page size and rejects out-of-range values
func pageParams(page, limit, defaultLimit, maxLimit int) (int, int, error) {
	if page == 0 {
		page = 1
	}
	if limit == 0 {
		limit = defaultLimit
	}

	if page < 1 {
		return 0, 0, domain.NewValidationError("page", "Must be at least 1")
	}
	if limit < 1 || limit > maxLimit {
		return 0, 0, domain.NewValidationError("limit", fmt.Sprintf("Must be between 1 and %d", maxLimit))
	}

	return page, limit, nil
}

// statusFilter maps active/inactive/all onto an optional flag
func statusFilter(status string) (*bool, error) {
	switch status {
	case "", "all":
		return nil, nil
	case "active":
		active := true
		return &active, nil
	case "inactive":
		active := false
		return &active, nil
	default:
		return nil, domain.NewValidationError("status", "Must be one of: active inactive all")
	}
}
