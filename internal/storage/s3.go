package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"ecatalogue/internal/config"
	"ecatalogue/internal/domain"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
)

// S3Gateway stores assets in an S3 bucket. The asset id is the object key.
type S3Gateway struct {
	client  s3iface.S3API
	bucket  string
	baseURL string
}

func NewS3Gateway(cfg config.S3Config) (*S3Gateway, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("s3 bucket is required")
	}

	awsConfig := &aws.Config{Region: aws.String(cfg.Region)}
	if cfg.AccessKeyID != "" {
		awsConfig.Credentials = credentials.NewStaticCredentials(cfg.AccessKeyID, cfg.SecretAccessKey, "")
	}
	if cfg.Endpoint != "" {
		awsConfig.Endpoint = aws.String(cfg.Endpoint)
		awsConfig.S3ForcePathStyle = aws.Bool(true)
	}

	sess, err := session.NewSession(awsConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}

	return NewS3GatewayWithClient(s3.New(sess), cfg), nil
}

// NewS3GatewayWithClient wraps an existing client
func NewS3GatewayWithClient(client s3iface.S3API, cfg config.S3Config) *S3Gateway {
	baseURL := cfg.CDNBaseURL
	if baseURL == "" {
		switch {
		case cfg.Endpoint != "":
			baseURL = fmt.Sprintf("%s/%s", cfg.Endpoint, cfg.Bucket)
		default:
			baseURL = fmt.Sprintf("https://%s.s3.%s.amazonaws.com", cfg.Bucket, cfg.Region)
		}
	}

	return &S3Gateway{client: client, bucket: cfg.Bucket, baseURL: baseURL}
}

func (g *S3Gateway) Upload(ctx context.Context, file File, opts UploadOptions) (domain.ImageAsset, error) {
	data, contentType, err := readImage(file, opts)
	if err != nil {
		return domain.ImageAsset{}, err
	}

	key := objectKey(opts.Folder, contentType)
	_, err = g.client.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(g.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(int64(len(data))),
		CacheControl:  aws.String("public, max-age=31536000, immutable"),
	})
	if err != nil {
		return domain.ImageAsset{}, assetError("failed to upload to S3", err)
	}

	return domain.ImageAsset{URL: g.baseURL + "/" + key, AssetID: key}, nil
}

func (g *S3Gateway) Delete(ctx context.Context, assetID string) error {
	if assetID == "" {
		return nil
	}

	_, err := g.client.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(g.bucket),
		Key:    aws.String(assetID),
	})
	if err != nil {
		return assetError("failed to delete file from S3", err)
	}

	return nil
}
