package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rendis/flowdesigner/pkg/schema"
)

// appendRevision appends doc to the history of definitionID with the next
// per-definition sequence, inside tx.
func appendRevision(ctx context.Context, tx *sql.Tx, definitionID string, doc []byte) (int64, error) {
	// Acquire the write lock before reading the sequence. In WAL mode
	// BeginTx alone may start a deferred transaction.
	if _, err := tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO schema_version (version, name) VALUES (-1, '_lock_noop')`); err != nil {
		return 0, storeError("acquire write lock", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM schema_version WHERE version = -1`); err != nil {
		return 0, storeError("cleanup write lock", err)
	}

	var seq int64
	err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(sequence), 0) + 1 FROM definition_revisions WHERE definition_id = ?`, definitionID,
	).Scan(&seq)
	if err != nil {
		return 0, storeError("next revision", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO definition_revisions (definition_id, sequence, document, created_at) VALUES (?, ?, ?, ?)`,
		definitionID, seq, string(doc), time.Now().UTC(),
	)
	if err != nil {
		return 0, storeError("insert revision", err)
	}
	return seq, nil
}

// ListRevisions returns the history of a definition, oldest first.
func (s *LibSQLStore) ListRevisions(ctx context.Context, definitionID string) ([]*Revision, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT definition_id, sequence, document, created_at FROM definition_revisions
		 WHERE definition_id = ? ORDER BY sequence ASC`, definitionID)
	if err != nil {
		return nil, storeError("list revisions", err)
	}
	defer rows.Close()

	var out []*Revision
	for rows.Next() {
		r, err := scanRevision(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Sequences must be contiguous; a gap means rows were removed outside the store.
	for i, r := range out {
		if want := int64(i + 1); r.Sequence != want {
			return nil, schema.NewErrorf(schema.ErrCodeStore,
				"revision gap in definition %s: expected %d, got %d", definitionID, want, r.Sequence)
		}
	}
	return out, nil
}

// GetRevision returns one snapshot.
func (s *LibSQLStore) GetRevision(ctx context.Context, definitionID string, sequence int64) (*Revision, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT definition_id, sequence, document, created_at FROM definition_revisions
		 WHERE definition_id = ? AND sequence = ?`, definitionID, sequence)
	r, err := scanRevision(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storeNotFound("revision", fmt.Sprintf("%s#%d", definitionID, sequence))
	}
	return r, err
}

// RestoreRevision saves an older snapshot as the current definition. The
// restore itself becomes a new revision.
func RestoreRevision(ctx context.Context, s Store, definitionID string, sequence int64) (*Definition, error) {
	r, err := s.GetRevision(ctx, definitionID, sequence)
	if err != nil {
		return nil, err
	}
	def, err := r.Decode()
	if err != nil {
		return nil, storeError("decode revision", err)
	}
	return s.SaveDefinition(ctx, def)
}

func scanRevision(row rowScanner) (*Revision, error) {
	r := &Revision{}
	var doc string
	if err := row.Scan(&r.DefinitionID, &r.Sequence, &doc, &r.CreatedAt); err != nil {
		return nil, err
	}
	r.Document = json.RawMessage(doc)
	return r, nil
}
