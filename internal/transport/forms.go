package transport

import (
	"encoding/json"
	"mime"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"ecatalogue/internal/domain"
	"ecatalogue/internal/middleware"
	"ecatalogue/internal/service"
	"ecatalogue/internal/storage"

	"github.com/google/uuid"
)

// multipartMemory is how much of a multipart body is buffered in memory
// before file parts spill to disk
const multipartMemory = 8 << 20

// multipartForm wraps a parsed form and collects per-field parse failures
type multipartForm struct {
	form   *multipart.Form
	fields []domain.FieldError
}

func isMultipart(r *http.Request) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && strings.HasPrefix(mediaType, "multipart/")
}

// parseMultipart bounds and parses a multipart body. The caller must call
// RemoveAll on the returned form.
func parseMultipart(w http.ResponseWriter, r *http.Request, maxBody int64) (*multipartForm, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBody)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		return nil, domain.NewError(domain.ErrValidation, "invalid multipart body: "+err.Error())
	}
	return &multipartForm{form: r.MultipartForm}, nil
}

func (f *multipartForm) has(name string) bool {
	_, ok := f.form.Value[name]
	return ok
}

func (f *multipartForm) value(name string) string {
	if values := f.form.Value[name]; len(values) > 0 {
		return values[0]
	}
	return ""
}

func (f *multipartForm) invalid(field, message string) {
	f.fields = append(f.fields, domain.FieldError{Field: field, Message: message})
}

func (f *multipartForm) err() error {
	if len(f.fields) == 0 {
		return nil
	}
	return &domain.ValidationError{Message: "Invalid input data", Fields: f.fields}
}

func (f *multipartForm) text(name string) *string {
	if !f.has(name) {
		return nil
	}
	v := f.value(name)
	return &v
}

func (f *multipartForm) integer(name string) *int {
	if !f.has(name) || strings.TrimSpace(f.value(name)) == "" {
		return nil
	}
	v, err := strconv.Atoi(strings.TrimSpace(f.value(name)))
	if err != nil {
		f.invalid(name, "Must be an integer")
		return nil
	}
	return &v
}

func (f *multipartForm) number(name string) *float64 {
	if !f.has(name) || strings.TrimSpace(f.value(name)) == "" {
		return nil
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(f.value(name)), 64)
	if err != nil {
		f.invalid(name, "Must be a number")
		return nil
	}
	return &v
}

func (f *multipartForm) flag(name string) *bool {
	if !f.has(name) || strings.TrimSpace(f.value(name)) == "" {
		return nil
	}
	v, err := strconv.ParseBool(strings.TrimSpace(f.value(name)))
	if err != nil {
		f.invalid(name, "Must be a boolean")
		return nil
	}
	return &v
}

// decode unmarshals a field that carries a JSON document, such as the
// specifications list
func (f *multipartForm) decode(name string, dst interface{}) bool {
	if !f.has(name) || strings.TrimSpace(f.value(name)) == "" {
		return false
	}
	if err := json.Unmarshal([]byte(f.value(name)), dst); err != nil {
		f.invalid(name, "Must be valid JSON")
		return false
	}
	return true
}

// categoryIDs accepts a single categoryId, a repeated or comma separated
// categoryIds field, or a JSON array. An empty value clears the categories.
func (f *multipartForm) categoryIDs() []uuid.UUID {
	var raw []string
	for _, name := range []string{"categoryId", "categoryIds"} {
		for _, v := range f.form.Value[name] {
			v = strings.TrimSpace(v)
			if strings.HasPrefix(v, "[") {
				var list []string
				if err := json.Unmarshal([]byte(v), &list); err != nil {
					f.invalid(name, "Must be a list of category IDs")
					return nil
				}
				raw = append(raw, list...)
				continue
			}
			raw = append(raw, strings.Split(v, ",")...)
		}
	}

	if !f.has("categoryId") && !f.has("categoryIds") {
		return nil
	}

	ids := make([]uuid.UUID, 0, len(raw))
	for _, v := range raw {
		if v = strings.TrimSpace(v); v == "" {
			continue
		}
		id, err := uuid.Parse(v)
		if err != nil {
			f.invalid("categoryId", "Invalid category ID")
			return nil
		}
		ids = append(ids, id)
	}
	return ids
}

// files opens the uploaded parts of the given field
func (f *multipartForm) files(name string) ([]storage.File, error) {
	headers := f.form.File[name]
	files := make([]storage.File, 0, len(headers))
	for _, header := range headers {
		body, err := header.Open()
		if err != nil {
			closeFiles(files)
			return nil, domain.NewError(domain.ErrValidation, "unreadable upload: "+header.Filename)
		}
		files = append(files, storage.File{Filename: header.Filename, Size: header.Size, Body: body})
	}
	return files, nil
}

// closeFiles releases the readers opened by files
func closeFiles(files []storage.File) {
	for _, file := range files {
		if closer, ok := file.Body.(interface{ Close() error }); ok {
			_ = closer.Close()
		}
	}
}

// productJSON also accepts the single categoryId key of older clients
type productJSON struct {
	service.ProductInput
	CategoryID *string `json:"categoryId"`
}

func decodeProductJSON(w http.ResponseWriter, r *http.Request) (service.ProductInput, error) {
	var body productJSON
	if err := middleware.DecodeJSON(w, r, &body); err != nil {
		return service.ProductInput{}, err
	}

	input := body.ProductInput
	if body.CategoryID == nil {
		return input, nil
	}

	ids := []uuid.UUID{}
	if raw := strings.TrimSpace(*body.CategoryID); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return input, domain.NewValidationError("categoryId", "Invalid category ID")
		}
		ids = append(ids, id)
	}
	input.CategoryIDs = append(ids, input.CategoryIDs...)
	return input, nil
}

// productRequest reads a product payload from a multipart form or, for
// updates without new images, a JSON body.
func productRequest(w http.ResponseWriter, r *http.Request, maxBody int64) (service.ProductInput, []storage.File, func(), error) {
	var input service.ProductInput
	noop := func() {}

	if !isMultipart(r) {
		input, err := decodeProductJSON(w, r)
		return input, nil, noop, err
	}

	form, err := parseMultipart(w, r, maxBody)
	if err != nil {
		return input, nil, noop, err
	}

	input = service.ProductInput{
		Name:             form.text("name"),
		Description:      form.text("description"),
		ShortDescription: form.text("shortDescription"),
		Price:            form.number("price"),
		OriginalPrice:    form.number("originalPrice"),
		CategoryIDs:      form.categoryIDs(),
		Tag:              form.text("tag"),
		SKU:              form.text("sku"),
		Stock:            form.integer("stock"),
		Weight:           form.number("weight"),
		IsActive:         form.flag("isActive"),
		Featured:         form.flag("featured"),
		Trending:         form.flag("trending"),
		SEOTitle:         form.text("seoTitle"),
		SEODescription:   form.text("seoDescription"),
		MainImageIndex:   form.integer("mainImageIndex"),
	}

	var specs []domain.Specification
	if form.decode("specifications", &specs) {
		input.Specifications = &specs
	}
	var dims domain.Dimensions
	if form.decode("dimensions", &dims) {
		input.Dimensions = &dims
	}
	if form.has("features") {
		features := form.features()
		input.Features = &features
	}

	cleanup := func() { _ = r.MultipartForm.RemoveAll() }
	if err := form.err(); err != nil {
		cleanup()
		return input, nil, noop, err
	}

	files, err := form.files("images")
	if err != nil {
		cleanup()
		return input, nil, noop, err
	}

	return input, files, func() {
		closeFiles(files)
		cleanup()
	}, nil
}

// features accepts a JSON array or repeated plain values
func (f *multipartForm) features() []string {
	values := f.form.Value["features"]
	if len(values) == 1 && strings.HasPrefix(strings.TrimSpace(values[0]), "[") {
		var list []string
		if f.decode("features", &list) {
			return list
		}
		return nil
	}

	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// categoryRequest reads a category payload and its optional image
func categoryRequest(w http.ResponseWriter, r *http.Request, maxBody int64) (service.CategoryInput, *storage.File, func(), error) {
	var input service.CategoryInput
	noop := func() {}

	if !isMultipart(r) {
		if err := middleware.DecodeJSON(w, r, &input); err != nil {
			return input, nil, noop, err
		}
		return input, nil, noop, nil
	}

	form, err := parseMultipart(w, r, maxBody)
	if err != nil {
		return input, nil, noop, err
	}
	cleanup := func() { _ = r.MultipartForm.RemoveAll() }

	input = service.CategoryInput{
		Name:        form.text("name"),
		Description: form.text("description"),
		SortOrder:   form.integer("sortOrder"),
		IsActive:    form.flag("isActive"),
	}
	if err := form.err(); err != nil {
		cleanup()
		return input, nil, noop, err
	}

	files, err := form.files("image")
	if err != nil {
		cleanup()
		return input, nil, noop, err
	}
	if len(files) == 0 {
		return input, nil, cleanup, nil
	}
	if len(files) > 1 {
		closeFiles(files)
		cleanup()
		return input, nil, noop, domain.NewValidationError("image", "Only one category image is allowed")
	}

	return input, &files[0], func() {
		closeFiles(files)
		cleanup()
	}, nil
}
