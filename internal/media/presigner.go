package media

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"github.com/streetfix/resolve-service/internal/config"
	apperrors "github.com/streetfix/resolve-service/pkg/util/errorutil"
)

// Purpose says what an upload is for; it decides the key prefix and accepted types.
type Purpose string

const (
	PurposePhoto      Purpose = "photo"
	PurposeVideo      Purpose = "video"
	PurposeAfterPhoto Purpose = "after_photo"
)

var extensions = map[string]string{
	"image/jpeg":      ".jpg",
	"image/png":       ".png",
	"image/webp":      ".webp",
	"image/heic":      ".heic",
	"video/mp4":       ".mp4",
	"video/quicktime": ".mov",
}

// Upload is a presigned PUT the client performs itself.
type Upload struct {
	URL       string    `json:"upload_url"`
	Method    string    `json:"method"`
	Key       string    `json:"key"`
	PublicURL string    `json:"public_url"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Presigner issues upload URLs for report media. Bytes never pass through the service.
type Presigner struct {
	client    *s3.PresignClient
	bucket    string
	publicURL string
	ttl       time.Duration
	now       func() time.Time
}

// NewPresigner builds a presigner from storage settings. Static keys are used when set;
// otherwise the default AWS credential chain applies.
func NewPresigner(ctx context.Context, cfg config.StorageConfig) (*Presigner, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("storage bucket is not configured")
	}
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})

	public := strings.TrimRight(cfg.PublicBaseURL, "/")
	if public == "" {
		public = fmt.Sprintf("https://%s.s3.%s.amazonaws.com", cfg.Bucket, cfg.Region)
	}
	return &Presigner{
		client:    s3.NewPresignClient(client),
		bucket:    cfg.Bucket,
		publicURL: public,
		ttl:       cfg.PresignTTL(),
		now:       time.Now,
	}, nil
}

// Presign returns a PUT URL for one object owned by userID.
func (p *Presigner) Presign(ctx context.Context, userID string, purpose Purpose, contentType string) (*Upload, error) {
	ext, err := validate(purpose, contentType)
	if err != nil {
		return nil, err
	}
	key := fmt.Sprintf("%s/%s/%s%s", purpose, userID, uuid.NewString(), ext)

	req, err := p.client.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(p.bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
	}, func(opts *s3.PresignOptions) {
		opts.Expires = p.ttl
	})
	if err != nil {
		return nil, apperrors.NewInternalError(fmt.Errorf("failed to presign upload: %w", err))
	}
	return &Upload{
		URL:       req.URL,
		Method:    req.Method,
		Key:       key,
		PublicURL: p.publicURL + "/" + key,
		ExpiresAt: p.now().Add(p.ttl),
	}, nil
}

func validate(purpose Purpose, contentType string) (string, error) {
	ext, ok := extensions[contentType]
	if !ok {
		return "", apperrors.NewValidationError("unsupported content type", map[string]any{"content_type": contentType})
	}
	switch purpose {
	case PurposePhoto, PurposeAfterPhoto:
		if !strings.HasPrefix(contentType, "image/") {
			return "", apperrors.NewValidationError("photos must be images", map[string]any{"content_type": contentType})
		}
	case PurposeVideo:
		if !strings.HasPrefix(contentType, "video/") {
			return "", apperrors.NewValidationError("videos must be video files", map[string]any{"content_type": contentType})
		}
	default:
		return "", apperrors.NewValidationError("unknown upload purpose", map[string]any{"purpose": purpose})
	}
	return ext, nil
}
