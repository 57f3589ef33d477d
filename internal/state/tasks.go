package state

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/ShayCichocki/lincoln/internal/queue"
	"github.com/ShayCichocki/lincoln/pkg/models"
)

var _ queue.Store = (*DB)(nil)

// Load returns every stored task ordered by sequence, plus all reserved IDs.
func (db *DB) Load(ctx context.Context) ([]models.AgentTask, []string, error) {
	rows, err := db.Query(ctx, `
		SELECT id, kind, payload, status, seq, created_at, started_at, completed_at, result, error, retries
		FROM tasks ORDER BY seq
	`)
	if err != nil {
		return nil, nil, fmt.Errorf("query tasks: %w", err)
	}
	defer rows.Close()

	var tasks []models.AgentTask
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, nil, err
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate tasks: %w", err)
	}

	idRows, err := db.Query(ctx, "SELECT id FROM reserved_ids")
	if err != nil {
		return nil, nil, fmt.Errorf("query reserved ids: %w", err)
	}
	defer idRows.Close()

	var reserved []string
	for idRows.Next() {
		var id string
		if err := idRows.Scan(&id); err != nil {
			return nil, nil, fmt.Errorf("scan reserved id: %w", err)
		}
		reserved = append(reserved, id)
	}
	if err := idRows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate reserved ids: %w", err)
	}

	return tasks, reserved, nil
}

// Save inserts or replaces a task.
func (db *DB) Save(ctx context.Context, t models.AgentTask) error {
	_, err := db.Exec(ctx, `
		INSERT INTO tasks (id, kind, payload, status, seq, created_at, started_at, completed_at, result, error, retries)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			kind = excluded.kind,
			payload = excluded.payload,
			status = excluded.status,
			seq = excluded.seq,
			created_at = excluded.created_at,
			started_at = excluded.started_at,
			completed_at = excluded.completed_at,
			result = excluded.result,
			error = excluded.error,
			retries = excluded.retries
	`,
		t.ID,
		string(t.Kind),
		nullableJSON(t.Payload),
		string(t.Status),
		t.Seq,
		formatTime(t.CreatedAt),
		formatNullableTime(t.StartedAt),
		formatNullableTime(t.CompletedAt),
		nullableJSON(t.Result),
		t.Error,
		t.Retries,
	)
	if err != nil {
		return fmt.Errorf("save task %s: %w", t.ID, err)
	}
	return nil
}

// Remove deletes a task and records its ID as reserved, atomically.
func (db *DB) Remove(ctx context.Context, id string) error {
	return db.Transaction(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM tasks WHERE id = ?", id); err != nil {
			return fmt.Errorf("delete task %s: %w", id, err)
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT OR IGNORE INTO reserved_ids (id, removed_at) VALUES (?, strftime('%Y-%m-%dT%H:%M:%fZ', 'now'))", id); err != nil {
			return fmt.Errorf("reserve id %s: %w", id, err)
		}
		return nil
	})
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (models.AgentTask, error) {
	var (
		t                      models.AgentTask
		kind, status           string
		payload, result        sql.NullString
		createdAt              string
		startedAt, completedAt sql.NullString
	)
	if err := row.Scan(&t.ID, &kind, &payload, &status, &t.Seq, &createdAt, &startedAt, &completedAt, &result, &t.Error, &t.Retries); err != nil {
		return t, fmt.Errorf("scan task: %w", err)
	}

	t.Kind = models.AgentKind(kind)
	t.Status = models.TaskStatus(status)
	if payload.Valid {
		t.Payload = json.RawMessage(payload.String)
	}
	if result.Valid {
		t.Result = json.RawMessage(result.String)
	}

	var err error
	if t.CreatedAt, err = parseTime(createdAt); err != nil {
		return t, fmt.Errorf("parse created_at for %s: %w", t.ID, err)
	}
	if t.StartedAt, err = parseNullableTime(startedAt); err != nil {
		return t, fmt.Errorf("parse started_at for %s: %w", t.ID, err)
	}
	if t.CompletedAt, err = parseNullableTime(completedAt); err != nil {
		return t, fmt.Errorf("parse completed_at for %s: %w", t.ID, err)
	}
	return t, nil
}

func nullableJSON(raw json.RawMessage) sql.NullString {
	if len(raw) == 0 {
		return sql.NullString{}
	}
	return sql.NullString{String: string(raw), Valid: true}
}
