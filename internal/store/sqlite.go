package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"file.share/internal/models"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// goose keeps its dialect and base FS in package globals.
var migrateMu sync.Mutex

// OpenSQLite connects to the database at path (":memory:" works) and brings
// the schema up to date.
func OpenSQLite(ctx context.Context, path string) (*sqlx.DB, error) {
	dsn := path
	if path != ":memory:" {
		if err := ensureDir(path); err != nil {
			return nil, err
		}
		dsn = path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	}

	db, err := sqlx.ConnectContext(ctx, "sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect: %w", err)
	}

	// One connection serializes writers and keeps :memory: databases shared.
	db.SetMaxOpenConns(1)

	if err := migrate(ctx, db.DB); err != nil {
		_ = db.Close()
		return nil, err
	}

	slog.Info("database connected", "driver", "sqlite", "path", path)
	return db, nil
}

func migrate(ctx context.Context, db *sql.DB) error {
	migrateMu.Lock()
	defer migrateMu.Unlock()

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("failed to set dialect: %w", err)
	}

	migrationsDir, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to get migrations directory: %w", err)
	}
	goose.SetBaseFS(migrationsDir)
	goose.SetLogger(goose.NopLogger())

	if err := goose.UpContext(ctx, db, "."); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

var _ Registry = (*SQLiteRegistry)(nil)

// SQLiteRegistry stores file records in the files table. Each mutation is a
// single statement, so SQLite's own locking provides the critical section.
type SQLiteRegistry struct {
	db *sqlx.DB
}

type fileRow struct {
	Token         string `db:"token"`
	OriginalName  string `db:"original_name"`
	StoredPath    string `db:"stored_path"`
	SizeBytes     int64  `db:"size_bytes"`
	UploadedAt    int64  `db:"uploaded_at"`
	DownloadCount int64  `db:"download_count"`
}

func (r fileRow) record() *models.FileRecord {
	return &models.FileRecord{
		Token:         r.Token,
		OriginalName:  r.OriginalName,
		StoredPath:    r.StoredPath,
		SizeBytes:     r.SizeBytes,
		UploadedAt:    time.Unix(0, r.UploadedAt).UTC(),
		DownloadCount: r.DownloadCount,
	}
}

func NewSQLiteRegistry(db *sqlx.DB) *SQLiteRegistry {
	return &SQLiteRegistry{db: db}
}

func (r *SQLiteRegistry) Put(ctx context.Context, file *models.FileRecord) error {
	query := `INSERT INTO files (token, original_name, stored_path, size_bytes, uploaded_at, download_count)
		VALUES (:token, :original_name, :stored_path, :size_bytes, :uploaded_at, :download_count)
		ON CONFLICT(token) DO NOTHING`

	res, err := r.db.NamedExecContext(ctx, query, fileRow{
		Token:         file.Token,
		OriginalName:  file.OriginalName,
		StoredPath:    file.StoredPath,
		SizeBytes:     file.SizeBytes,
		UploadedAt:    file.UploadedAt.UnixNano(),
		DownloadCount: file.DownloadCount,
	})
	if err != nil {
		return fmt.Errorf("failed to insert file %s: %w", file.Token, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return ErrDuplicateToken
	}

	return nil
}

func (r *SQLiteRegistry) Get(ctx context.Context, token string) (*models.FileRecord, error) {
	var row fileRow
	err := r.db.GetContext(ctx, &row, `SELECT token, original_name, stored_path, size_bytes, uploaded_at, download_count
		FROM files WHERE token = ?`, token)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get file %s: %w", token, err)
	}

	return row.record(), nil
}

func (r *SQLiteRegistry) Exists(ctx context.Context, token string) (bool, error) {
	var n int
	if err := r.db.GetContext(ctx, &n, `SELECT COUNT(1) FROM files WHERE token = ?`, token); err != nil {
		return false, fmt.Errorf("failed to check token: %w", err)
	}
	return n > 0, nil
}

func (r *SQLiteRegistry) IncrementDownload(ctx context.Context, token string) (int64, error) {
	var count int64
	err := r.db.GetContext(ctx, &count, `UPDATE files SET download_count = download_count + 1
		WHERE token = ? RETURNING download_count`, token)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrNotFound
		}
		return 0, fmt.Errorf("failed to increment downloads for %s: %w", token, err)
	}

	return count, nil
}

func (r *SQLiteRegistry) List(ctx context.Context) ([]*models.FileRecord, error) {
	var rows []fileRow
	err := r.db.SelectContext(ctx, &rows, `SELECT token, original_name, stored_path, size_bytes, uploaded_at, download_count
		FROM files ORDER BY uploaded_at DESC, token ASC`)
	if err != nil {
		return nil, fmt.Errorf("error selecting files: %w", err)
	}

	files := make([]*models.FileRecord, 0, len(rows))
	for _, row := range rows {
		files = append(files, row.record())
	}
	return files, nil
}

func (r *SQLiteRegistry) Delete(ctx context.Context, token string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM files WHERE token = ?`, token)
	if err != nil {
		return fmt.Errorf("failed to delete file %s: %w", token, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Close is a no-op; the connection belongs to whoever called OpenSQLite.
func (r *SQLiteRegistry) Close() error {
	return nil
}
