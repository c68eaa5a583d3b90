package s3

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	appconfig "creator_sync/internal/config"
	"creator_sync/internal/domain"
)

// maxAvatarBytes caps the CDN download; profile images are small.
const maxAvatarBytes = 10 << 20

// AvatarStore re-hosts expiring CDN avatar images at a permanent address in
// an S3-compatible bucket. The object key is stable per (platform, handle),
// so re-persisting the same creator overwrites in place.
type AvatarStore struct {
	client     *s3.Client
	httpClient *http.Client
	cfg        appconfig.StorageConfig
	logger     *slog.Logger
}

func NewAvatarStore(ctx context.Context, cfg appconfig.StorageConfig, logger *slog.Logger) (*AvatarStore, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("storage bucket is required")
	}

	var opts []func(*awsconfig.LoadOptions) error
	opts = append(opts, awsconfig.WithRegion(cfg.Region))

	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	var s3Opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			// Path style is what MinIO and most S3-compatible stores expect.
			o.UsePathStyle = true
		})
	}

	return &AvatarStore{
		client:     s3.NewFromConfig(awsCfg, s3Opts...),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		cfg:        cfg,
		logger:     logger.With("component", "avatar_store"),
	}, nil
}

// Persist downloads the avatar from its (possibly expiring) source URL and
// uploads it to the bucket, returning the permanent public URL.
func (a *AvatarStore) Persist(ctx context.Context, platform domain.Platform, handle, sourceURL string) (string, error) {
	body, contentType, err := a.fetch(ctx, sourceURL)
	if err != nil {
		return "", fmt.Errorf("fetch avatar: %w", err)
	}

	key := a.objectKey(platform, handle, contentType)

	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.cfg.Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("upload avatar: %w", err)
	}

	url := a.publicURL(key)
	a.logger.Info("avatar persisted", "platform", platform, "handle", handle, "url", url)
	return url, nil
}

func (a *AvatarStore) fetch(ctx context.Context, sourceURL string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sourceURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("create request: %w", err)
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxAvatarBytes))
	if err != nil {
		return nil, "", fmt.Errorf("read body: %w", err)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = http.DetectContentType(body)
	}
	return body, contentType, nil
}

func (a *AvatarStore) objectKey(platform domain.Platform, handle, contentType string) string {
	ext := ".jpg"
	switch {
	case strings.Contains(contentType, "png"):
		ext = ".png"
	case strings.Contains(contentType, "webp"):
		ext = ".webp"
	case strings.Contains(contentType, "gif"):
		ext = ".gif"
	}

	key := fmt.Sprintf("%s/%s%s", platform, handle, ext)
	if a.cfg.Prefix != "" {
		key = strings.TrimSuffix(a.cfg.Prefix, "/") + "/" + key
	}
	return key
}

func (a *AvatarStore) publicURL(key string) string {
	if a.cfg.PublicBaseURL != "" {
		return strings.TrimSuffix(a.cfg.PublicBaseURL, "/") + "/" + key
	}
	if a.cfg.Endpoint != "" {
		return fmt.Sprintf("%s/%s/%s", strings.TrimSuffix(a.cfg.Endpoint, "/"), a.cfg.Bucket, key)
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", a.cfg.Bucket, a.cfg.Region, key)
}
