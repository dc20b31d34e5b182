package object

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

type metadataStore interface {
	Create(ctx context.Context, obj StoredObject) (StoredObject, error)
	Get(ctx context.Context, ownerID, objectID uuid.UUID) (StoredObject, error)
	Update(ctx context.Context, ownerID, objectID uuid.UUID, input UpdateInput) (StoredObject, error)
	Delete(ctx context.Context, ownerID, objectID uuid.UUID) error
	List(ctx context.Context, ownerID uuid.UUID, q ListQuery) (Page, error)
	DistinctFolders(ctx context.Context, ownerID uuid.UUID) (FolderIndex, error)
	Stats(ctx context.Context, ownerID uuid.UUID) (StorageStats, error)
}

type objectStore interface {
	Put(ctx context.Context, key string, reader io.Reader, size int64, contentType string, metadata map[string]string) error
	GetStream(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

// Service orchestrates the object ingestion and retrieval pipelines.
type Service struct {
	repo        metadataStore
	store       objectStore
	bucket      string
	spoolDir    string
	maxFileSize int64
	logg        *zap.Logger
}

// NewService constructs an object service.
func NewService(repo metadataStore, store objectStore, bucket, spoolDir string, maxFileSize int64, logg *zap.Logger) *Service {
	if logg == nil {
		logg = zap.NewNop()
	}
	return &Service{
		repo:        repo,
		store:       store,
		bucket:      bucket,
		spoolDir:    spoolDir,
		maxFileSize: maxFileSize,
		logg:        logg,
	}
}

// UploadInput carries one incoming object. Body is consumed exactly once.
type UploadInput struct {
	OwnerID     uuid.UUID
	Name        string
	Folder      string
	ContentType string
	Body        io.Reader
}

// Upload ingests the body: it spools the stream to a temp file while
// accumulating the SHA-256 digest and exact length, writes the blob to the
// object store under a freshly minted key with that exact length, and only
// then inserts the metadata row. Size and digest are always computed from the
// bytes actually stored, never taken from the client. A failed blob write
// aborts before any row exists; a failed row insert triggers a best-effort
// blob delete so neither side is left orphaned.
func (s *Service) Upload(ctx context.Context, input UploadInput) (StoredObject, error) {
	if input.Body == nil {
		return StoredObject{}, fmt.Errorf("missing upload body")
	}

	objectID := uuid.New()
	objectKey := MakeObjectKey(input.OwnerID, objectID)

	spool, err := os.CreateTemp(s.spoolDir, "securedrive-upload-*")
	if err != nil {
		return StoredObject{}, fmt.Errorf("create spool file: %w", err)
	}
	defer func() {
		spool.Close()
		if err := os.Remove(spool.Name()); err != nil && !errors.Is(err, os.ErrNotExist) {
			s.logg.Warn("remove spool file", zap.String("path", spool.Name()), zap.Error(err))
		}
	}()

	counter := newDigestCounter()
	body := input.Body
	if s.maxFileSize > 0 {
		body = io.LimitReader(body, s.maxFileSize+1)
	}
	if _, err := io.Copy(io.MultiWriter(spool, counter), body); err != nil {
		return StoredObject{}, fmt.Errorf("spool upload: %w", err)
	}
	if s.maxFileSize > 0 && counter.Size() > s.maxFileSize {
		return StoredObject{}, ErrObjectTooLarge
	}

	if _, err := spool.Seek(0, io.SeekStart); err != nil {
		return StoredObject{}, fmt.Errorf("rewind spool: %w", err)
	}

	contentType := input.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	originalName := SanitizeName(input.Name)
	metadata := map[string]string{"original-name": originalName}

	if err := s.store.Put(ctx, objectKey, spool, counter.Size(), contentType, metadata); err != nil {
		return StoredObject{}, fmt.Errorf("%w: put %s: %v", ErrStorageUnavailable, objectKey, err)
	}

	obj := StoredObject{
		ID:           objectID,
		OwnerID:      input.OwnerID,
		Bucket:       s.bucket,
		ObjectKey:    objectKey,
		OriginalName: originalName,
		CurrentName:  originalName,
		Folder:       optionalFolder(SanitizeFolder(input.Folder)),
		ContentType:  contentType,
		SizeBytes:    counter.Size(),
		SHA256Hex:    counter.SumHex(),
	}

	stored, err := s.repo.Create(ctx, obj)
	if err != nil {
		if deleteErr := s.store.Delete(ctx, objectKey); deleteErr != nil {
			s.logg.Warn("orphaned blob after failed metadata insert",
				zap.String("object_key", objectKey), zap.Error(deleteErr))
		}
		return StoredObject{}, err
	}

	return stored, nil
}

// Get returns the metadata row without touching the blob.
func (s *Service) Get(ctx context.Context, ownerID, objectID uuid.UUID) (StoredObject, error) {
	return s.repo.Get(ctx, ownerID, objectID)
}

// Download resolves the metadata row and opens the blob stream. The returned
// body is forward-only and verifies on EOF that exactly the recorded number
// of bytes was relayed; the recorded digest is surfaced on the metadata for
// the caller to check, not recomputed here.
func (s *Service) Download(ctx context.Context, ownerID, objectID uuid.UUID) (DownloadResult, error) {
	meta, err := s.repo.Get(ctx, ownerID, objectID)
	if err != nil {
		return DownloadResult{}, err
	}

	stream, err := s.store.GetStream(ctx, meta.ObjectKey)
	if err != nil {
		return DownloadResult{}, fmt.Errorf("%w: get %s: %v", ErrStorageUnavailable, meta.ObjectKey, err)
	}

	return DownloadResult{
		Object: meta,
		Body:   &sizeCheckedReader{rc: stream, expected: meta.SizeBytes},
	}, nil
}

// Update renames and/or moves an object. Only the provided fields change;
// location and integrity columns are untouched by construction.
func (s *Service) Update(ctx context.Context, ownerID, objectID uuid.UUID, input UpdateInput) (StoredObject, error) {
	sanitized := UpdateInput{}
	if input.Name != nil {
		name := SanitizeName(*input.Name)
		sanitized.Name = &name
	}
	if input.Folder != nil {
		folder := SanitizeFolder(*input.Folder)
		sanitized.Folder = &folder
	}
	return s.repo.Update(ctx, ownerID, objectID, sanitized)
}

// Delete removes an object. The blob delete is attempted first and its
// failure is logged and swallowed; the metadata row is removed regardless so
// listings stay consistent, at the cost of a possibly orphaned blob.
func (s *Service) Delete(ctx context.Context, ownerID, objectID uuid.UUID) error {
	meta, err := s.repo.Get(ctx, ownerID, objectID)
	if err != nil {
		return err
	}

	if err := s.store.Delete(ctx, meta.ObjectKey); err != nil {
		s.logg.Warn("blob delete failed, removing metadata anyway",
			zap.String("object_key", meta.ObjectKey), zap.Error(err))
	}

	return s.repo.Delete(ctx, ownerID, objectID)
}

// List returns one page of the owner's objects.
func (s *Service) List(ctx context.Context, ownerID uuid.UUID, q ListQuery) (Page, error) {
	if q.Limit <= 0 {
		q.Limit = defaultListLimit
	}
	if q.Limit > maxListLimit {
		q.Limit = maxListLimit
	}
	if q.Offset < 0 {
		q.Offset = 0
	}
	if q.Folder != nil {
		folder := SanitizeFolder(*q.Folder)
		q.Folder = &folder
	}
	return s.repo.List(ctx, ownerID, q)
}

// Folders returns the owner's folder layout.
func (s *Service) Folders(ctx context.Context, ownerID uuid.UUID) (FolderIndex, error) {
	return s.repo.DistinctFolders(ctx, ownerID)
}

// Stats returns the owner's aggregate usage.
func (s *Service) Stats(ctx context.Context, ownerID uuid.UUID) (StorageStats, error) {
	return s.repo.Stats(ctx, ownerID)
}

func optionalFolder(folder string) *string {
	if folder == "" {
		return nil
	}
	return &folder
}

// sizeCheckedReader relays the blob stream and rejects short reads: an EOF
// before the recorded size becomes ErrSizeMismatch instead of a silent
// truncation. Close always releases the underlying connection.
type sizeCheckedReader struct {
	rc       io.ReadCloser
	expected int64
	read     int64
}

func (r *sizeCheckedReader) Read(p []byte) (int, error) {
	n, err := r.rc.Read(p)
	r.read += int64(n)
	if err == io.EOF && r.read != r.expected {
		return n, fmt.Errorf("%w: got %d bytes, expected %d", ErrSizeMismatch, r.read, r.expected)
	}
	return n, err
}

func (r *sizeCheckedReader) Close() error {
	return r.rc.Close()
}
