package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/tursodatabase/go-libsql"

	"github.com/rendis/flowdesigner/pkg/schema"
)

// LibSQLStore implements the Store interface using libSQL (embedded SQLite fork).
type LibSQLStore struct {
	db *sql.DB
}

// NewLibSQLStore opens a libSQL database at the given path and returns a Store.
// The path should be a file URI, e.g. "file:/path/to/db.db".
func NewLibSQLStore(dbPath string) (*LibSQLStore, error) {
	db, err := sql.Open("libsql", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open libsql: %w", err)
	}
	db.SetMaxOpenConns(1)

	// Apply connection-level PRAGMAs. Some PRAGMAs return rows so we use QueryRow.
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
		"PRAGMA temp_store=MEMORY",
	}
	for _, p := range pragmas {
		var result string
		_ = db.QueryRow(p).Scan(&result)
	}

	return &LibSQLStore{db: db}, nil
}

// DB returns the underlying *sql.DB.
func (s *LibSQLStore) DB() *sql.DB { return s.db }

// Close closes the database.
func (s *LibSQLStore) Close() error { return s.db.Close() }

// Migrate runs all pending database migrations.
func (s *LibSQLStore) Migrate(ctx context.Context) error {
	return runMigrations(ctx, s.db)
}

// Vacuum runs VACUUM on the database.
func (s *LibSQLStore) Vacuum(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, "VACUUM")
	return err
}

// --- Definitions ---

// SaveDefinition inserts or replaces a definition and appends the saved
// document to its revision history, in one transaction.
func (s *LibSQLStore) SaveDefinition(ctx context.Context, def *schema.WorkflowDefinition) (*Definition, error) {
	if def == nil || def.DefinitionID == "" {
		return nil, schema.NewError(schema.ErrCodeValidation, "definition id is required")
	}
	doc, err := json.Marshal(def)
	if err != nil {
		return nil, fmt.Errorf("marshal definition: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, storeError("begin save", err)
	}
	defer tx.Rollback()

	seq, err := appendRevision(ctx, tx, def.DefinitionID, doc)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	_, err = tx.ExecContext(ctx,
		`INSERT INTO definitions (id, name, version, revision, document, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET name=excluded.name, version=excluded.version,
		   revision=excluded.revision, document=excluded.document, updated_at=excluded.updated_at`,
		def.DefinitionID, nullStr(def.Name), def.Version, seq, string(doc), now, now,
	)
	if err != nil {
		return nil, storeError("save definition", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, storeError("commit definition", err)
	}
	return s.GetDefinition(ctx, def.DefinitionID)
}

func (s *LibSQLStore) GetDefinition(ctx context.Context, id string) (*Definition, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, version, revision, document, created_at, updated_at FROM definitions WHERE id = ?`, id)
	d, err := scanDefinition(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storeNotFound("definition", id)
	}
	if err != nil {
		return nil, err
	}
	return d, nil
}

func (s *LibSQLStore) ListDefinitions(ctx context.Context, filter DefinitionFilter) ([]*Definition, error) {
	query := `SELECT id, name, version, revision, document, created_at, updated_at FROM definitions`
	var (
		where []string
		args  []any
	)
	if filter.NamePrefix != "" {
		where = append(where, "name LIKE ?")
		args = append(args, filter.NamePrefix+"%")
	}
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY updated_at DESC, id ASC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
		if filter.Offset > 0 {
			query += " OFFSET ?"
			args = append(args, filter.Offset)
		}
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storeError("list definitions", err)
	}
	defer rows.Close()

	var out []*Definition
	for rows.Next() {
		d, err := scanDefinition(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// DeleteDefinition removes a definition together with its revision history.
func (s *LibSQLStore) DeleteDefinition(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storeError("begin delete", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `DELETE FROM definitions WHERE id = ?`, id)
	if err != nil {
		return storeError("delete definition", err)
	}
	if err := checkRowsAffected(res, "definition", id); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM definition_revisions WHERE definition_id = ?`, id); err != nil {
		return storeError("delete revisions", err)
	}
	if err := tx.Commit(); err != nil {
		return storeError("commit delete", err)
	}
	return nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanDefinition(row rowScanner) (*Definition, error) {
	d := &Definition{}
	var (
		name sql.NullString
		doc  string
	)
	if err := row.Scan(&d.ID, &name, &d.Version, &d.Revision, &doc, &d.CreatedAt, &d.UpdatedAt); err != nil {
		return nil, err
	}
	d.Name = name.String

	var def schema.WorkflowDefinition
	if err := json.Unmarshal([]byte(doc), &def); err != nil {
		return nil, storeError("decode definition "+d.ID, err)
	}
	d.Definition = &def
	return d, nil
}

// --- Descriptors ---

func (s *LibSQLStore) UpsertDescriptor(ctx context.Context, d *schema.ActivityDescriptor) error {
	if d == nil || d.Type == "" || d.Version <= 0 {
		return schema.NewError(schema.ErrCodeValidation, "descriptor needs a type and a positive version")
	}
	doc, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("marshal descriptor: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO descriptors (type, version, category, document, updated_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(type, version) DO UPDATE SET category=excluded.category, document=excluded.document,
		   updated_at=excluded.updated_at`,
		d.Type, d.Version, nullStr(d.Category), string(doc), time.Now().UTC(),
	)
	if err != nil {
		return storeError("upsert descriptor", err)
	}
	return nil
}

func (s *LibSQLStore) ListDescriptors(ctx context.Context) ([]*schema.ActivityDescriptor, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT document FROM descriptors ORDER BY type ASC, version ASC`)
	if err != nil {
		return nil, storeError("list descriptors", err)
	}
	defer rows.Close()

	var out []*schema.ActivityDescriptor
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, err
		}
		var d schema.ActivityDescriptor
		if err := json.Unmarshal([]byte(doc), &d); err != nil {
			return nil, storeError("decode descriptor", err)
		}
		out = append(out, &d)
	}
	return out, rows.Err()
}

func (s *LibSQLStore) DeleteDescriptor(ctx context.Context, activityType string, version int) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM descriptors WHERE type = ? AND version = ?`, activityType, version)
	if err != nil {
		return storeError("delete descriptor", err)
	}
	return checkRowsAffected(res, "descriptor", fmt.Sprintf("%s@%d", activityType, version))
}

// --- Helpers ---

func storeNotFound(resource, id string) *schema.DesignerError {
	return schema.NewErrorf(schema.ErrCodeNotFound, "%s %q not found", resource, id)
}

func storeError(op string, err error) *schema.DesignerError {
	return schema.NewErrorf(schema.ErrCodeStore, "%s: %s", op, err.Error()).WithCause(err)
}

func checkRowsAffected(res sql.Result, resource, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return storeNotFound(resource, id)
	}
	return nil
}

func nullStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}

var _ Store = (*LibSQLStore)(nil)
