// Package storage is the image asset gateway: it stores uploaded images,
// returns a permanent URL plus an opaque asset id, and deletes assets by id.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"ecatalogue/internal/config"
	"ecatalogue/internal/domain"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

const (
	ProductFolder  = "ecatalogue-products"
	CategoryFolder = "ecatalogue-categories"

	// DefaultMaxSize is the per-file upload limit
	DefaultMaxSize = 5 * 1024 * 1024
)

var (
	ErrFileTooLarge       = domain.NewError(domain.ErrValidation, "image exceeds the maximum upload size")
	ErrUnsupportedFormat  = domain.NewError(domain.ErrValidation, "only jpg, jpeg, png and webp images are allowed")
	ErrUnknownDriver      = errors.New("unknown storage driver")
	allowedContentTypes   = map[string]string{"image/jpeg": ".jpg", "image/png": ".png", "image/webp": ".webp"}
	extensionContentTypes = map[string]string{".jpg": "image/jpeg", ".jpeg": "image/jpeg", ".png": "image/png", ".webp": "image/webp"}
)

// File is an image received from a client
type File struct {
	Filename string
	Size     int64
	Body     io.Reader
}

// UploadOptions control where and how an image is stored
type UploadOptions struct {
	Folder  string
	MaxSize int64
}

// Gateway stores and deletes image assets
type Gateway interface {
	Upload(ctx context.Context, file File, opts UploadOptions) (domain.ImageAsset, error)
	Delete(ctx context.Context, assetID string) error
}

// New builds the gateway selected by configuration
func New(cfg config.StorageConfig) (Gateway, error) {
	switch cfg.Driver {
	case "s3":
		return NewS3Gateway(cfg.S3)
	case "local", "":
		return NewLocalGateway(cfg.LocalDir, cfg.PublicBaseURL)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownDriver, cfg.Driver)
	}
}

// readImage enforces the size limit and sniffs the content type. The file
// must carry an allowed extension naming the sniffed format.
func readImage(file File, opts UploadOptions) ([]byte, string, error) {
	maxSize := opts.MaxSize
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}

	if file.Size > maxSize {
		return nil, "", ErrFileTooLarge
	}

	declared, ok := extensionContentTypes[strings.ToLower(path.Ext(file.Filename))]
	if !ok {
		return nil, "", ErrUnsupportedFormat
	}

	data, err := io.ReadAll(io.LimitReader(file.Body, maxSize+1))
	if err != nil {
		return nil, "", fmt.Errorf("failed to read upload: %w", err)
	}
	if int64(len(data)) > maxSize {
		return nil, "", ErrFileTooLarge
	}

	contentType := mimetype.Detect(data).String()
	if contentType != declared {
		return nil, "", ErrUnsupportedFormat
	}

	return data, contentType, nil
}

// objectKey returns folder/<yyyymmdd>_<short uuid><ext>
func objectKey(folder, contentType string) string {
	name := fmt.Sprintf("%s_%s%s", time.Now().UTC().Format("20060102"), uuid.NewString()[:8], allowedContentTypes[contentType])
	if folder == "" {
		return name
	}
	return folder + "/" + name
}

// assetError marks a gateway failure with the asset kind
func assetError(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, domain.ErrAsset, err)
}
