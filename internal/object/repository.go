package object

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const repoTimeout = 5 * time.Second

const uniqueViolationCode = "23505"

const objectColumns = `id, owner_id, bucket, object_key, original_name, current_name, folder, content_type, size_bytes, sha256_hex, created_at`

// Repository provides access to object metadata storage. Every operation is
// individually transactional; multi-step flows (blob put plus row insert) are
// coordinated by the service, not the database.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository builds a new object metadata repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts the metadata row for a freshly ingested object.
func (r *Repository) Create(ctx context.Context, obj StoredObject) (StoredObject, error) {
	ctx, cancel := context.WithTimeout(ctx, repoTimeout)
	defer cancel()

	query := `
INSERT INTO objects (id, owner_id, bucket, object_key, original_name, current_name, folder, content_type, size_bytes, sha256_hex)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
RETURNING ` + objectColumns + `;`

	row := r.pool.QueryRow(ctx, query,
		obj.ID,
		obj.OwnerID,
		obj.Bucket,
		obj.ObjectKey,
		obj.OriginalName,
		obj.CurrentName,
		obj.Folder,
		obj.ContentType,
		obj.SizeBytes,
		obj.SHA256Hex,
	)

	stored, err := scanObject(row)
	if err != nil {
		if isUniqueViolation(err) {
			return StoredObject{}, ErrDuplicateObject
		}
		return StoredObject{}, fmt.Errorf("create object metadata: %w", err)
	}
	return stored, nil
}

// Get fetches metadata for a single object, scoped to its owner. An owner
// mismatch reads the same as an unknown identifier.
func (r *Repository) Get(ctx context.Context, ownerID, objectID uuid.UUID) (StoredObject, error) {
	ctx, cancel := context.WithTimeout(ctx, repoTimeout)
	defer cancel()

	query := `SELECT ` + objectColumns + ` FROM objects WHERE id = $1 AND owner_id = $2;`

	stored, err := scanObject(r.pool.QueryRow(ctx, query, objectID, ownerID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return StoredObject{}, ErrObjectNotFound
		}
		return StoredObject{}, fmt.Errorf("get object metadata: %w", err)
	}
	return stored, nil
}

// Update writes only the fields present in input. Location and integrity
// columns are never touched here.
func (r *Repository) Update(ctx context.Context, ownerID, objectID uuid.UUID, input UpdateInput) (StoredObject, error) {
	ctx, cancel := context.WithTimeout(ctx, repoTimeout)
	defer cancel()

	sets := make([]string, 0, 2)
	args := []interface{}{objectID, ownerID}

	if input.Name != nil {
		args = append(args, *input.Name)
		sets = append(sets, fmt.Sprintf("current_name = $%d", len(args)))
	}
	if input.Folder != nil {
		if *input.Folder == "" {
			sets = append(sets, "folder = NULL")
		} else {
			args = append(args, *input.Folder)
			sets = append(sets, fmt.Sprintf("folder = $%d", len(args)))
		}
	}

	if len(sets) == 0 {
		return r.Get(ctx, ownerID, objectID)
	}

	query := fmt.Sprintf(`
UPDATE objects SET %s
WHERE id = $1 AND owner_id = $2
RETURNING %s;`, strings.Join(sets, ", "), objectColumns)

	stored, err := scanObject(r.pool.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return StoredObject{}, ErrObjectNotFound
		}
		return StoredObject{}, fmt.Errorf("update object metadata: %w", err)
	}
	return stored, nil
}

// Delete removes the metadata row.
func (r *Repository) Delete(ctx context.Context, ownerID, objectID uuid.UUID) error {
	ctx, cancel := context.WithTimeout(ctx, repoTimeout)
	defer cancel()

	tag, err := r.pool.Exec(ctx, `DELETE FROM objects WHERE id = $1 AND owner_id = $2;`, objectID, ownerID)
	if err != nil {
		return fmt.Errorf("delete object metadata: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrObjectNotFound
	}
	return nil
}

// List returns one page of the owner's objects plus the total match count.
func (r *Repository) List(ctx context.Context, ownerID uuid.UUID, q ListQuery) (Page, error) {
	ctx, cancel := context.WithTimeout(ctx, repoTimeout)
	defer cancel()

	where := []string{"owner_id = $1"}
	args := []interface{}{ownerID}

	if q.Folder != nil {
		if *q.Folder == "" {
			where = append(where, "folder IS NULL")
		} else {
			args = append(args, *q.Folder)
			where = append(where, fmt.Sprintf("folder = $%d", len(args)))
		}
	}
	if q.Search != "" {
		args = append(args, "%"+q.Search+"%")
		where = append(where, fmt.Sprintf("current_name ILIKE $%d", len(args)))
	}

	whereClause := strings.Join(where, " AND ")

	var total int
	countQuery := fmt.Sprintf(`SELECT COUNT(*) FROM objects WHERE %s;`, whereClause)
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return Page{}, fmt.Errorf("count objects: %w", err)
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 50
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}

	args = append(args, limit, offset)
	listQuery := fmt.Sprintf(`
SELECT %s FROM objects
WHERE %s
ORDER BY %s %s
LIMIT $%d OFFSET $%d;`,
		objectColumns, whereClause, sortColumn(q.SortBy), sortDirection(q.Descending), len(args)-1, len(args))

	rows, err := r.pool.Query(ctx, listQuery, args...)
	if err != nil {
		return Page{}, fmt.Errorf("list objects: %w", err)
	}
	defer rows.Close()

	var objects []StoredObject
	for rows.Next() {
		obj, err := scanObject(rows)
		if err != nil {
			return Page{}, fmt.Errorf("scan object metadata: %w", err)
		}
		objects = append(objects, obj)
	}
	if err := rows.Err(); err != nil {
		return Page{}, fmt.Errorf("iterate objects: %w", err)
	}

	return Page{
		Objects:    objects,
		TotalCount: total,
		HasMore:    offset+len(objects) < total,
	}, nil
}

// DistinctFolders returns the owner's folder names with object counts, plus
// the count of objects at root.
func (r *Repository) DistinctFolders(ctx context.Context, ownerID uuid.UUID) (FolderIndex, error) {
	ctx, cancel := context.WithTimeout(ctx, repoTimeout)
	defer cancel()

	query := `
SELECT folder, COUNT(*) AS object_count
FROM objects
WHERE owner_id = $1
GROUP BY folder
ORDER BY folder NULLS FIRST;`

	rows, err := r.pool.Query(ctx, query, ownerID)
	if err != nil {
		return FolderIndex{}, fmt.Errorf("list folders: %w", err)
	}
	defer rows.Close()

	var index FolderIndex
	for rows.Next() {
		var folder *string
		var count int
		if err := rows.Scan(&folder, &count); err != nil {
			return FolderIndex{}, fmt.Errorf("scan folder: %w", err)
		}
		if folder == nil {
			index.RootCount = count
			continue
		}
		index.Folders = append(index.Folders, FolderStat{Name: *folder, Count: count})
	}
	if err := rows.Err(); err != nil {
		return FolderIndex{}, fmt.Errorf("iterate folders: %w", err)
	}
	return index, nil
}

// Stats aggregates the owner's stored byte total and object count.
func (r *Repository) Stats(ctx context.Context, ownerID uuid.UUID) (StorageStats, error) {
	ctx, cancel := context.WithTimeout(ctx, repoTimeout)
	defer cancel()

	query := `SELECT COUNT(*), COALESCE(SUM(size_bytes), 0) FROM objects WHERE owner_id = $1;`

	var stats StorageStats
	if err := r.pool.QueryRow(ctx, query, ownerID).Scan(&stats.ObjectCount, &stats.TotalBytes); err != nil {
		return StorageStats{}, fmt.Errorf("aggregate storage stats: %w", err)
	}
	return stats, nil
}

func sortColumn(field SortField) string {
	switch field {
	case SortByName:
		return "current_name"
	case SortBySize:
		return "size_bytes"
	default:
		return "created_at"
	}
}

func sortDirection(descending bool) string {
	if descending {
		return "DESC"
	}
	return "ASC"
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanObject(row rowScanner) (StoredObject, error) {
	var obj StoredObject
	err := row.Scan(
		&obj.ID,
		&obj.OwnerID,
		&obj.Bucket,
		&obj.ObjectKey,
		&obj.OriginalName,
		&obj.CurrentName,
		&obj.Folder,
		&obj.ContentType,
		&obj.SizeBytes,
		&obj.SHA256Hex,
		&obj.CreatedAt,
	)
	return obj, err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode
}
