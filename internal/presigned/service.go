package presigned

import (
	"context"
	"net/url"
	"time"

	"github.com/minio/minio-go/v7"
)

// presigner is the slice of minio.Client the service needs.
type presigner interface {
	PresignedGetObject(ctx context.Context, bucketName, objectName string, expiry time.Duration, reqParams url.Values) (*url.URL, error)
}

// Link is a time-limited URL granting read access to one stored object.
type Link struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Service mints presigned download links. Links carry their own expiry and
// need no further authentication, so the caller must have resolved ownership
// before asking for one.
type Service struct {
	client  presigner
	bucket  string
	ttl     time.Duration
	nowFunc func() time.Time
}

// NewService constructs a presigned link service.
func NewService(client presigner, bucket string, ttl time.Duration) *Service {
	return &Service{
		client:  client,
		bucket:  bucket,
		ttl:     ttl,
		nowFunc: time.Now,
	}
}

// DownloadLink generates a presigned GET URL for the stored object key. The
// optional filename is surfaced through a response-content-disposition
// override so browsers save the file under its display name.
func (s *Service) DownloadLink(ctx context.Context, objectKey, filename string) (Link, error) {
	reqParams := make(url.Values)
	if filename != "" {
		reqParams.Set("response-content-disposition", `attachment; filename="`+filename+`"`)
	}

	u, err := s.client.PresignedGetObject(ctx, s.bucket, objectKey, s.ttl, reqParams)
	if err != nil {
		return Link{}, err
	}

	return Link{
		URL:       u.String(),
		ExpiresAt: s.nowFunc().Add(s.ttl),
	}, nil
}

var _ presigner = (*minio.Client)(nil)
