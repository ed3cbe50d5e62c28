package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"ecatalogue/internal/domain"
)

// LocalGateway writes assets below a directory that the server exposes
// under baseURL. The asset id is the path relative to that directory.
type LocalGateway struct {
	root    string
	baseURL string
}

func NewLocalGateway(root, baseURL string) (*LocalGateway, error) {
	if root == "" {
		return nil, errors.New("local storage directory is required")
	}

	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}

	return &LocalGateway{root: root, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

// Root is the directory assets are written to
func (g *LocalGateway) Root() string {
	return g.root
}

func (g *LocalGateway) Upload(ctx context.Context, file File, opts UploadOptions) (domain.ImageAsset, error) {
	data, contentType, err := readImage(file, opts)
	if err != nil {
		return domain.ImageAsset{}, err
	}

	if err := ctx.Err(); err != nil {
		return domain.ImageAsset{}, err
	}

	key := objectKey(opts.Folder, contentType)
	target := filepath.Join(g.root, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return domain.ImageAsset{}, assetError("failed to create folder", err)
	}
	if err := os.WriteFile(target, data, 0o644); err != nil {
		return domain.ImageAsset{}, assetError("failed to write file", err)
	}

	return domain.ImageAsset{URL: g.baseURL + "/" + key, AssetID: key}, nil
}

func (g *LocalGateway) Delete(ctx context.Context, assetID string) error {
	if assetID == "" {
		return nil
	}

	// Asset ids never escape the storage root
	clean := filepath.Clean(filepath.FromSlash(assetID))
	if filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return assetError("failed to delete file", fmt.Errorf("invalid asset id %q", assetID))
	}

	err := os.Remove(filepath.Join(g.root, clean))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return assetError("failed to delete file", err)
	}

	return nil
}
