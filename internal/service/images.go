package service

import (
	"context"
	"fmt"

	"ecatalogue/internal/domain"
	"ecatalogue/internal/storage"

	"go.uber.org/zap"
)

// ImageLifecycle uploads images for catalogue records and deletes the assets
// a record no longer references. Deletes are best effort: a failure is
// logged and never fails the record mutation.
type ImageLifecycle struct {
	gateway storage.Gateway
	maxSize int64
	logger  *zap.Logger
}

func NewImageLifecycle(gateway storage.Gateway, maxSize int64, logger *zap.Logger) *ImageLifecycle {
	return &ImageLifecycle{gateway: gateway, maxSize: maxSize, logger: logger}
}

// UploadAll stores files in order. If any upload fails the ones already
// stored are discarded before the error is returned.
func (l *ImageLifecycle) UploadAll(ctx context.Context, folder string, files []storage.File) ([]domain.ImageAsset, error) {
	assets := make([]domain.ImageAsset, 0, len(files))
	for i, file := range files {
		asset, err := l.gateway.Upload(ctx, file, storage.UploadOptions{Folder: folder, MaxSize: l.maxSize})
		if err != nil {
			l.Discard(ctx, "upload failed", assets...)
			return nil, fmt.Errorf("failed to upload image %d: %w", i+1, err)
		}
		assets = append(assets, asset)
	}

	return assets, nil
}

// Discard deletes freshly uploaded assets whose owning record was not saved
func (l *ImageLifecycle) Discard(ctx context.Context, reason string, assets ...domain.ImageAsset) {
	ids := make([]string, 0, len(assets))
	for _, asset := range assets {
		ids = append(ids, asset.AssetID)
	}
	l.delete(ctx, reason, ids)
}

// ReleaseSuperseded deletes the assets referenced before an update that the
// updated record no longer references
func (l *ImageLifecycle) ReleaseSuperseded(ctx context.Context, before, after []string) {
	keep := make(map[string]struct{}, len(after))
	for _, id := range after {
		keep[id] = struct{}{}
	}

	var released []string
	for _, id := range before {
		if _, ok := keep[id]; !ok {
			released = append(released, id)
		}
	}

	l.delete(ctx, "superseded", released)
}

// ReleaseProduct deletes every asset of a removed product
func (l *ImageLifecycle) ReleaseProduct(ctx context.Context, product *domain.Product) {
	l.delete(ctx, "product deleted", product.AssetIDs())
}

// ReleaseCategory deletes the image of a removed category
func (l *ImageLifecycle) ReleaseCategory(ctx context.Context, category *domain.Category) {
	l.delete(ctx, "category deleted", []string{category.Image.AssetID})
}

func (l *ImageLifecycle) delete(ctx context.Context, reason string, ids []string) {
	// Cleanup must run even if the client has gone away
	ctx = context.WithoutCancel(ctx)

	for _, id := range ids {
		if id == "" {
			continue
		}

		if err := l.gateway.Delete(ctx, id); err != nil {
			l.logger.Warn("Failed to delete image asset",
				zap.String("asset_id", id),
				zap.String("reason", reason),
				zap.Error(err),
			)
			continue
		}

		l.logger.Debug("Deleted image asset", zap.String("asset_id", id), zap.String("reason", reason))
	}
}
