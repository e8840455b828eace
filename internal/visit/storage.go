package visit

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// S3API is the subset of the S3 client used by the attachment store.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3Store persists lab report files under
// lab-reports/{appointmentID}/{uuid}-{name} and hands back durable URLs.
type S3Store struct {
	bucket  string
	baseURL string
	client  S3API
	log     zerolog.Logger
}

func NewS3Store(client S3API, bucket, baseURL string, log zerolog.Logger) *S3Store {
	return &S3Store{
		bucket:  bucket,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  client,
		log:     log.With().Str("component", "attachments").Logger(),
	}
}

func (s *S3Store) Save(ctx context.Context, appointmentID uuid.UUID, up Upload) (string, error) {
	key := fmt.Sprintf("lab-reports/%s/%s-%s", appointmentID, uuid.NewString(), sanitizeName(up.OriginalName))

	contentType := up.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        up.Data,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("store lab report %s: %w", up.OriginalName, err)
	}

	url := s.baseURL + "/" + key
	s.log.Debug().Str("key", key).Msg("lab report stored")
	return url, nil
}

func (s *S3Store) Delete(ctx context.Context, url string) error {
	key, ok := s.keyFromURL(url)
	if !ok {
		return fmt.Errorf("url %q is not under this store", url)
	}

	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("delete lab report %s: %w", key, err)
	}

	s.log.Debug().Str("key", key).Msg("lab report deleted")
	return nil
}

// ErrStorageDisabled is returned when no attachment backend is configured.
var ErrStorageDisabled = errors.New("attachment storage is not configured")

// NoopStore rejects uploads and ignores deletes. Used when no S3 bucket is
// configured so the rest of the record lifecycle keeps working.
type NoopStore struct{}

func (NoopStore) Save(ctx context.Context, appointmentID uuid.UUID, up Upload) (string, error) {
	return "", ErrStorageDisabled
}

func (NoopStore) Delete(ctx context.Context, url string) error { return nil }

func (s *S3Store) keyFromURL(url string) (string, bool) {
	prefix := s.baseURL + "/"
	if !strings.HasPrefix(url, prefix) {
		return "", false
	}
	return strings.TrimPrefix(url, prefix), true
}

func sanitizeName(name string) string {
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	name = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, name)
	if name == "" || name == "." {
		name = "report"
	}
	return name
}
