package imagestore

import (
	"context"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// URLResolver turns a stored listing image reference into a URL a client can load.
type URLResolver interface {
	Resolve(ctx context.Context, ref string) (string, error)
}

// Passthrough returns references unchanged. It is used when no bucket is configured.
type Passthrough struct{}

func (Passthrough) Resolve(_ context.Context, ref string) (string, error) {
	return ref, nil
}

// GCSSigner signs V4 GET URLs for object names in a Cloud Storage bucket.
// Absolute http(s) references are returned as-is.
type GCSSigner struct {
	client *storage.Client
	bucket string
	ttl    time.Duration
}

func NewGCSSigner(ctx context.Context, bucket, credentialsFile string, ttl time.Duration) (*GCSSigner, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, err
	}
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &GCSSigner{client: client, bucket: bucket, ttl: ttl}, nil
}

func (s *GCSSigner) Resolve(_ context.Context, ref string) (string, error) {
	if isAbsoluteURL(ref) {
		return ref, nil
	}
	object := strings.TrimPrefix(ref, "/")
	return s.client.Bucket(s.bucket).SignedURL(object, &storage.SignedURLOptions{
		Method:  "GET",
		Expires: time.Now().Add(s.ttl),
		Scheme:  storage.SigningSchemeV4,
	})
}

func (s *GCSSigner) Close() error {
	return s.client.Close()
}

func isAbsoluteURL(ref string) bool {
	low := strings.ToLower(ref)
	return strings.HasPrefix(low, "http://") || strings.HasPrefix(low, "https://")
}
