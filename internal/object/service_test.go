package object

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
)

func newTestService(t *testing.T, repo *fakeRepo, store *fakeStore) *Service {
	t.Helper()
	return NewService(repo, store, "drive-objects", t.TempDir(), 0, nil)
}

func uploadBytes(t *testing.T, service *Service, ownerID uuid.UUID, name, folder string, content []byte) StoredObject {
	t.Helper()
	stored, err := service.Upload(context.Background(), UploadInput{
		OwnerID:     ownerID,
		Name:        name,
		Folder:      folder,
		ContentType: "application/octet-stream",
		Body:        bytes.NewReader(content),
	})
	if err != nil {
		t.Fatalf("Upload returned error: %v", err)
	}
	return stored
}

func TestUploadComputesSizeAndDigestFromStream(t *testing.T) {
	repo := newFakeRepo()
	store := newFakeStore()
	service := newTestService(t, repo, store)

	ownerID := uuid.New()
	content := []byte("hello world")

	stored := uploadBytes(t, service, ownerID, "notes.txt", "", content)

	if stored.SizeBytes != int64(len(content)) {
		t.Fatalf("size mismatch: %d != %d", stored.SizeBytes, len(content))
	}
	want := sha256.Sum256(content)
	if stored.SHA256Hex != hex.EncodeToString(want[:]) {
		t.Fatalf("digest mismatch: %s", stored.SHA256Hex)
	}
	if stored.ObjectKey != MakeObjectKey(ownerID, stored.ID) {
		t.Fatalf("unexpected object key: %s", stored.ObjectKey)
	}
	if !bytes.Equal(store.objects[stored.ObjectKey], content) {
		t.Fatalf("stored bytes differ from input")
	}
}

func TestUploadDownloadRoundTrip(t *testing.T) {
	repo := newFakeRepo()
	store := newFakeStore()
	service := newTestService(t, repo, store)

	ownerID := uuid.New()
	content := []byte("round trip payload with some length to it")

	stored := uploadBytes(t, service, ownerID, "payload.bin", "", content)

	result, err := service.Download(context.Background(), ownerID, stored.ID)
	if err != nil {
		t.Fatalf("Download returned error: %v", err)
	}
	defer result.Body.Close()

	got, err := io.ReadAll(result.Body)
	if err != nil {
		t.Fatalf("read download body: %v", err)
	}
	if !bytes.Equal(got, content) {
		t.Fatalf("downloaded bytes differ from uploaded bytes")
	}
	if result.Object.SHA256Hex != stored.SHA256Hex {
		t.Fatalf("integrity metadata not surfaced")
	}
}

func TestUploadEmptyBody(t *testing.T) {
	repo := newFakeRepo()
	store := newFakeStore()
	service := newTestService(t, repo, store)

	stored := uploadBytes(t, service, uuid.New(), "empty.txt", "", nil)

	if stored.SizeBytes != 0 {
		t.Fatalf("expected zero size, got %d", stored.SizeBytes)
	}
	const emptySum = "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"
	if stored.SHA256Hex != emptySum {
		t.Fatalf("unexpected digest of empty input: %s", stored.SHA256Hex)
	}
}

func TestUploadSanitizesDangerousNames(t *testing.T) {
	repo := newFakeRepo()
	store := newFakeStore()
	service := newTestService(t, repo, store)

	stored := uploadBytes(t, service, uuid.New(), "../../etc/passwd\x00", "../secret/", []byte("x"))

	for _, field := range []string{stored.OriginalName, stored.CurrentName} {
		if strings.ContainsAny(field, "/\\\x00") {
			t.Fatalf("dangerous characters survived sanitization: %q", field)
		}
	}
	if stored.Folder != nil && strings.ContainsAny(*stored.Folder, "/\\\x00") {
		t.Fatalf("dangerous characters survived folder sanitization: %q", *stored.Folder)
	}
}

func TestUploadPutFailureLeavesNoMetadata(t *testing.T) {
	repo := newFakeRepo()
	store := newFakeStore()
	store.putErr = errors.New("connection reset")

	spoolDir := t.TempDir()
	service := NewService(repo, store, "drive-objects", spoolDir, 0, nil)

	ownerID := uuid.New()
	_, err := service.Upload(context.Background(), UploadInput{
		OwnerID: ownerID,
		Name:    "doomed.txt",
		Body:    bytes.NewReader([]byte("payload")),
	})
	if !errors.Is(err, ErrStorageUnavailable) {
		t.Fatalf("expected ErrStorageUnavailable, got %v", err)
	}

	if len(repo.records) != 0 {
		t.Fatalf("expected no metadata row after put failure, got %d", len(repo.records))
	}

	// The spool must be cleaned up on the failure path too.
	entries, err := os.ReadDir(spoolDir)
	if err != nil {
		t.Fatalf("read spool dir: %v", err)
	}
	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), "securedrive-upload-") {
			t.Fatalf("spool file left behind: %s", filepath.Join(spoolDir, entry.Name()))
		}
	}
}

func TestUploadInsertFailureDeletesBlob(t *testing.T) {
	repo := newFakeRepo()
	repo.createErr = errors.New("deadlock detected")
	store := newFakeStore()
	service := newTestService(t, repo, store)

	_, err := service.Upload(context.Background(), UploadInput{
		OwnerID: uuid.New(),
		Name:    "doomed.txt",
		Body:    bytes.NewReader([]byte("payload")),
	})
	if err == nil {
		t.Fatalf("expected error from metadata insert")
	}

	if store.deleteCalls != 1 {
		t.Fatalf("expected one compensating blob delete, got %d", store.deleteCalls)
	}
	if len(store.objects) != 0 {
		t.Fatalf("expected blob removed after insert failure")
	}
}

func TestUploadEnforcesMaxSize(t *testing.T) {
	repo := newFakeRepo()
	store := newFakeStore()
	service := NewService(repo, store, "drive-objects", t.TempDir(), 8, nil)

	_, err := service.Upload(context.Background(), UploadInput{
		OwnerID: uuid.New(),
		Name:    "big.bin",
		Body:    bytes.NewReader(bytes.Repeat([]byte("a"), 16)),
	})
	if !errors.Is(err, ErrObjectTooLarge) {
		t.Fatalf("expected ErrObjectTooLarge, got %v", err)
	}
	if len(repo.records) != 0 || len(store.objects) != 0 {
		t.Fatalf("oversized upload must leave no state behind")
	}
}

func TestRenameOnlyChangesCurrentName(t *testing.T) {
	repo := newFakeRepo()
	store := newFakeStore()
	service := newTestService(t, repo, store)

	ownerID := uuid.New()
	stored := uploadBytes(t, service, ownerID, "draft.txt", "", []byte("content"))

	newName := "final.txt"
	updated, err := service.Update(context.Background(), ownerID, stored.ID, UpdateInput{Name: &newName})
	if err != nil {
		t.Fatalf("Update returned error: %v", err)
	}

	if updated.CurrentName != "final.txt" {
		t.Fatalf("rename did not apply: %s", updated.CurrentName)
	}
	if updated.OriginalName != stored.OriginalName {
		t.Fatalf("original name must be immutable")
	}
	if updated.ObjectKey != stored.ObjectKey || updated.SHA256Hex != stored.SHA256Hex || updated.SizeBytes != stored.SizeBytes {
		t.Fatalf("rename touched immutable fields")
	}
}

func TestMoveBetweenFoldersAffectsListing(t *testing.T) {
	repo := newFakeRepo()
	store := newFakeStore()
	service := newTestService(t, repo, store)

	ownerID := uuid.New()
	stored := uploadBytes(t, service, ownerID, "report.pdf", "", []byte("content"))

	folder := "archive"
	if _, err := service.Update(context.Background(), ownerID, stored.ID, UpdateInput{Folder: &folder}); err != nil {
		t.Fatalf("move returned error: %v", err)
	}

	inFolder := listIDs(t, service, ownerID, strPtr("archive"))
	if !containsID(inFolder, stored.ID) {
		t.Fatalf("expected object in folder listing after move")
	}
	atRoot := listIDs(t, service, ownerID, strPtr(""))
	if containsID(atRoot, stored.ID) {
		t.Fatalf("expected object absent from root listing after move")
	}

	// Move back to root.
	root := ""
	if _, err := service.Update(context.Background(), ownerID, stored.ID, UpdateInput{Folder: &root}); err != nil {
		t.Fatalf("move to root returned error: %v", err)
	}
	if !containsID(listIDs(t, service, ownerID, strPtr("")), stored.ID) {
		t.Fatalf("expected object back at root")
	}
	if containsID(listIDs(t, service, ownerID, strPtr("archive")), stored.ID) {
		t.Fatalf("expected object gone from folder")
	}
}

func TestDeleteNonexistentReturnsNotFound(t *testing.T) {
	repo := newFakeRepo()
	store := newFakeStore()
	service := newTestService(t, repo, store)

	err := service.Delete(context.Background(), uuid.New(), uuid.New())
	if !errors.Is(err, ErrObjectNotFound) {
		t.Fatalf("expected ErrObjectNotFound, got %v", err)
	}
}

func TestDeleteRemovesFromListing(t *testing.T) {
	repo := newFakeRepo()
	store := newFakeStore()
	service := newTestService(t, repo, store)

	ownerID := uuid.New()
	stored := uploadBytes(t, service, ownerID, "gone.txt", "", []byte("content"))

	if err := service.Delete(context.Background(), ownerID, stored.ID); err != nil {
		t.Fatalf("Delete returned error: %v", err)
	}

	if containsID(listIDs(t, service, ownerID, nil), stored.ID) {
		t.Fatalf("deleted object still listed")
	}
	if _, ok := store.objects[stored.ObjectKey]; ok {
		t.Fatalf("blob not removed")
	}
}

func TestDeleteProceedsWhenBlobDeleteFails(t *testing.T) {
	repo := newFakeRepo()
	store := newFakeStore()
	service := newTestService(t, repo, store)

	ownerID := uuid.New()
	stored := uploadBytes(t, service, ownerID, "sticky.txt", "", []byte("content"))

	store.deleteErr = errors.New("backend offline")

	if err := service.Delete(context.Background(), ownerID, stored.ID); err != nil {
		t.Fatalf("expected metadata delete to succeed despite blob failure, got %v", err)
	}
	if len(repo.records) != 0 {
		t.Fatalf("metadata row not removed")
	}
}

func TestOwnerMismatchReadsAsNotFound(t *testing.T) {
	repo := newFakeRepo()
	store := newFakeStore()
	service := newTestService(t, repo, store)

	stored := uploadBytes(t, service, uuid.New(), "private.txt", "", []byte("content"))

	otherOwner := uuid.New()
	if _, err := service.Download(context.Background(), otherOwner, stored.ID); !errors.Is(err, ErrObjectNotFound) {
		t.Fatalf("expected ErrObjectNotFound for foreign owner, got %v", err)
	}
}

func TestConcurrentUploadsProduceDistinctKeys(t *testing.T) {
	repo := newFakeRepo()
	store := newFakeStore()
	service := newTestService(t, repo, store)

	ownerID := uuid.New()

	var wg sync.WaitGroup
	results := make([]StoredObject, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			stored, err := service.Upload(context.Background(), UploadInput{
				OwnerID: ownerID,
				Name:    fmt.Sprintf("file-%d.txt", i),
				Body:    bytes.NewReader([]byte(fmt.Sprintf("content %d", i))),
			})
			if err != nil {
				t.Errorf("Upload returned error: %v", err)
				return
			}
			results[i] = stored
		}(i)
	}
	wg.Wait()

	if results[0].ID == results[1].ID {
		t.Fatalf("concurrent uploads shared an identifier")
	}
	if results[0].ObjectKey == results[1].ObjectKey {
		t.Fatalf("concurrent uploads shared a key")
	}
	for i, stored := range results {
		result, err := service.Download(context.Background(), ownerID, stored.ID)
		if err != nil {
			t.Fatalf("download %d returned error: %v", i, err)
		}
		got, err := io.ReadAll(result.Body)
		result.Body.Close()
		if err != nil {
			t.Fatalf("read download %d: %v", i, err)
		}
		if string(got) != fmt.Sprintf("content %d", i) {
			t.Fatalf("download %d returned wrong content: %q", i, got)
		}
	}
}

func TestListPagination(t *testing.T) {
	repo := newFakeRepo()
	store := newFakeStore()
	service := newTestService(t, repo, store)

	ownerID := uuid.New()
	for i := 0; i < 250; i++ {
		uploadBytes(t, service, ownerID, fmt.Sprintf("file-%03d.txt", i), "", []byte("x"))
	}

	page, err := service.List(context.Background(), ownerID, ListQuery{Limit: 100, Offset: 0, SortBy: SortByName})
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}

	if len(page.Objects) != 100 {
		t.Fatalf("expected 100 objects, got %d", len(page.Objects))
	}
	if page.TotalCount != 250 {
		t.Fatalf("expected total 250, got %d", page.TotalCount)
	}
	if !page.HasMore {
		t.Fatalf("expected has_more=true")
	}

	last, err := service.List(context.Background(), ownerID, ListQuery{Limit: 100, Offset: 200, SortBy: SortByName})
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if len(last.Objects) != 50 || last.HasMore {
		t.Fatalf("expected final page of 50 with has_more=false, got %d/%v", len(last.Objects), last.HasMore)
	}
}

func TestDownloadDetectsTruncatedStream(t *testing.T) {
	repo := newFakeRepo()
	store := newFakeStore()
	service := newTestService(t, repo, store)

	ownerID := uuid.New()
	stored := uploadBytes(t, service, ownerID, "damaged.bin", "", []byte("complete content"))

	// Simulate backend truncation after ingestion.
	store.objects[stored.ObjectKey] = []byte("complete")

	result, err := service.Download(context.Background(), ownerID, stored.ID)
	if err != nil {
		t.Fatalf("Download returned error: %v", err)
	}
	defer result.Body.Close()

	_, err = io.ReadAll(result.Body)
	if !errors.Is(err, ErrSizeMismatch) {
		t.Fatalf("expected ErrSizeMismatch, got %v", err)
	}
}

func TestFoldersIndex(t *testing.T) {
	repo := newFakeRepo()
	store := newFakeStore()
	service := newTestService(t, repo, store)

	ownerID := uuid.New()
	uploadBytes(t, service, ownerID, "a.txt", "", []byte("x"))
	uploadBytes(t, service, ownerID, "b.txt", "docs", []byte("x"))
	uploadBytes(t, service, ownerID, "c.txt", "docs", []byte("x"))

	index, err := service.Folders(context.Background(), ownerID)
	if err != nil {
		t.Fatalf("Folders returned error: %v", err)
	}
	if index.RootCount != 1 {
		t.Fatalf("expected 1 root object, got %d", index.RootCount)
	}
	if len(index.Folders) != 1 || index.Folders[0].Name != "docs" || index.Folders[0].Count != 2 {
		t.Fatalf("unexpected folder index: %+v", index.Folders)
	}
}

// --- helpers & fakes ---

func strPtr(s string) *string { return &s }

func listIDs(t *testing.T, service *Service, ownerID uuid.UUID, folder *string) []uuid.UUID {
	t.Helper()
	page, err := service.List(context.Background(), ownerID, ListQuery{Folder: folder})
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	ids := make([]uuid.UUID, 0, len(page.Objects))
	for _, obj := range page.Objects {
		ids = append(ids, obj.ID)
	}
	return ids
}

func containsID(ids []uuid.UUID, id uuid.UUID) bool {
	for _, candidate := range ids {
		if candidate == id {
			return true
		}
	}
	return false
}

type fakeRepo struct {
	mu        sync.Mutex
	records   map[uuid.UUID]StoredObject
	createErr error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{records: make(map[uuid.UUID]StoredObject)}
}

func (f *fakeRepo) Create(ctx context.Context, obj StoredObject) (StoredObject, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return StoredObject{}, f.createErr
	}
	if _, ok := f.records[obj.ID]; ok {
		return StoredObject{}, ErrDuplicateObject
	}
	obj.CreatedAt = time.Now()
	f.records[obj.ID] = obj
	return obj, nil
}

func (f *fakeRepo) Get(ctx context.Context, ownerID, objectID uuid.UUID) (StoredObject, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	obj, ok := f.records[objectID]
	if !ok || obj.OwnerID != ownerID {
		return StoredObject{}, ErrObjectNotFound
	}
	return obj, nil
}

func (f *fakeRepo) Update(ctx context.Context, ownerID, objectID uuid.UUID, input UpdateInput) (StoredObject, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	obj, ok := f.records[objectID]
	if !ok || obj.OwnerID != ownerID {
		return StoredObject{}, ErrObjectNotFound
	}
	if input.Name != nil {
		obj.CurrentName = *input.Name
	}
	if input.Folder != nil {
		if *input.Folder == "" {
			obj.Folder = nil
		} else {
			folder := *input.Folder
			obj.Folder = &folder
		}
	}
	f.records[objectID] = obj
	return obj, nil
}

func (f *fakeRepo) Delete(ctx context.Context, ownerID, objectID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	obj, ok := f.records[objectID]
	if !ok || obj.OwnerID != ownerID {
		return ErrObjectNotFound
	}
	delete(f.records, objectID)
	return nil
}

func (f *fakeRepo) List(ctx context.Context, ownerID uuid.UUID, q ListQuery) (Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var matches []StoredObject
	for _, obj := range f.records {
		if obj.OwnerID != ownerID {
			continue
		}
		if q.Folder != nil {
			if *q.Folder == "" {
				if obj.Folder != nil {
					continue
				}
			} else if obj.Folder == nil || *obj.Folder != *q.Folder {
				continue
			}
		}
		if q.Search != "" && !strings.Contains(strings.ToLower(obj.CurrentName), strings.ToLower(q.Search)) {
			continue
		}
		matches = append(matches, obj)
	}

	sort.Slice(matches, func(i, j int) bool {
		var less bool
		switch q.SortBy {
		case SortByName:
			less = matches[i].CurrentName < matches[j].CurrentName
		case SortBySize:
			less = matches[i].SizeBytes < matches[j].SizeBytes
		default:
			less = matches[i].CreatedAt.Before(matches[j].CreatedAt)
		}
		if q.Descending {
			return !less
		}
		return less
	})

	total := len(matches)
	start := q.Offset
	if start > total {
		start = total
	}
	end := start + q.Limit
	if q.Limit <= 0 || end > total {
		end = total
	}

	return Page{
		Objects:    matches[start:end],
		TotalCount: total,
		HasMore:    end < total,
	}, nil
}

func (f *fakeRepo) DistinctFolders(ctx context.Context, ownerID uuid.UUID) (FolderIndex, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	counts := make(map[string]int)
	var index FolderIndex
	for _, obj := range f.records {
		if obj.OwnerID != ownerID {
			continue
		}
		if obj.Folder == nil {
			index.RootCount++
			continue
		}
		counts[*obj.Folder]++
	}
	names := make([]string, 0, len(counts))
	for name := range counts {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		index.Folders = append(index.Folders, FolderStat{Name: name, Count: counts[name]})
	}
	return index, nil
}

func (f *fakeRepo) Stats(ctx context.Context, ownerID uuid.UUID) (StorageStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var stats StorageStats
	for _, obj := range f.records {
		if obj.OwnerID != ownerID {
			continue
		}
		stats.ObjectCount++
		stats.TotalBytes += obj.SizeBytes
	}
	return stats, nil
}

type fakeStore struct {
	mu          sync.Mutex
	objects     map[string][]byte
	putErr      error
	deleteErr   error
	deleteCalls int
}

func newFakeStore() *fakeStore {
	return &fakeStore{objects: make(map[string][]byte)}
}

func (f *fakeStore) Put(ctx context.Context, key string, reader io.Reader, size int64, contentType string, metadata map[string]string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.putErr != nil {
		return f.putErr
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return err
	}
	if int64(len(data)) != size {
		return fmt.Errorf("declared size %d does not match stream length %d", size, len(data))
	}
	f.objects[key] = data
	return nil
}

func (f *fakeStore) GetStream(ctx context.Context, key string) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[key]
	if !ok {
		return nil, fmt.Errorf("no object under key %s", key)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (f *fakeStore) Delete(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleteCalls++
	if f.deleteErr != nil {
		return f.deleteErr
	}
	delete(f.objects, key)
	return nil
}
