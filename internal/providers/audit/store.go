package audit

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/SerVas333/WindowsLauncher/backend/internal/domain/events"
)

// DriverName is the database/sql driver registered by modernc.org/sqlite.
const DriverName = "sqlite"

// row is an audit event as stored.
type row struct {
	ID           string `db:"id"`
	Type         string `db:"type"`
	At           int64  `db:"at"`
	InstanceID   string `db:"instance_id"`
	Owner        string `db:"owner"`
	DefinitionID string `db:"definition_id"`
	Kind         string `db:"kind"`
	Detail       string `db:"detail"`
	Data         string `db:"data"`
}

// Store persists lifecycle events to SQLite. It implements events.Sink.
type Store struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// Open opens or creates the audit database at path.
func Open(path string, logger *zap.Logger) (*Store, error) {
	dsn := "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sqlx.Connect(DriverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open audit database: %w", err)
	}
	// SQLite allows one writer; a single connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	s, err := New(db, logger)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// New wraps an open database and creates the schema.
func New(db *sqlx.DB, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := initSchema(db); err != nil {
		return nil, fmt.Errorf("init audit schema: %w", err)
	}
	return &Store{db: db, logger: logger.Named("audit")}, nil
}

func initSchema(db *sqlx.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS lifecycle_events (
			id TEXT PRIMARY KEY,
			type TEXT NOT NULL,
			at INTEGER NOT NULL,
			instance_id TEXT NOT NULL DEFAULT '',
			owner TEXT NOT NULL DEFAULT '',
			definition_id TEXT NOT NULL DEFAULT '',
			kind TEXT NOT NULL DEFAULT '',
			detail TEXT NOT NULL DEFAULT '',
			data TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE INDEX IF NOT EXISTS idx_lifecycle_events_at ON lifecycle_events(at)`,
		`CREATE INDEX IF NOT EXISTS idx_lifecycle_events_owner ON lifecycle_events(owner)`,
		`CREATE INDEX IF NOT EXISTS idx_lifecycle_events_type ON lifecycle_events(type)`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// Record stores one event.
func (s *Store) Record(ctx context.Context, e events.Event) error {
	r := row{
		ID:           e.ID,
		Type:         string(e.Type),
		At:           e.At.UnixMilli(),
		InstanceID:   e.InstanceID,
		Owner:        e.Owner,
		DefinitionID: e.DefinitionID,
		Kind:         e.Kind,
		Detail:       e.Detail,
	}
	if len(e.Data) > 0 {
		data, err := sonic.MarshalString(e.Data)
		if err != nil {
			return fmt.Errorf("encode event data: %w", err)
		}
		r.Data = data
	}

	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO lifecycle_events (id, type, at, instance_id, owner, definition_id, kind, detail, data)
		VALUES (:id, :type, :at, :instance_id, :owner, :definition_id, :kind, :detail, :data)`, r)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

// Filter selects events for Query. Zero fields match everything.
type Filter struct {
	Owner      string
	InstanceID string
	Types      []events.Type
	Since      time.Time
	// Limit defaults to 100.
	Limit int
}

// Query returns matching events, newest first.
func (s *Store) Query(ctx context.Context, f Filter) ([]events.Event, error) {
	var (
		where []string
		args  []any
	)
	if f.Owner != "" {
		where = append(where, "owner = ?")
		args = append(args, f.Owner)
	}
	if f.InstanceID != "" {
		where = append(where, "instance_id = ?")
		args = append(args, f.InstanceID)
	}
	if len(f.Types) > 0 {
		types := make([]string, len(f.Types))
		for i, t := range f.Types {
			types[i] = string(t)
		}
		clause, inArgs, err := sqlx.In("type IN (?)", types)
		if err != nil {
			return nil, err
		}
		where = append(where, clause)
		args = append(args, inArgs...)
	}
	if !f.Since.IsZero() {
		where = append(where, "at >= ?")
		args = append(args, f.Since.UnixMilli())
	}
	if f.Limit <= 0 {
		f.Limit = 100
	}

	query := "SELECT id, type, at, instance_id, owner, definition_id, kind, detail, data FROM lifecycle_events"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY at DESC, rowid DESC LIMIT ?"
	args = append(args, f.Limit)

	var rows []row
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}

	out := make([]events.Event, 0, len(rows))
	for _, r := range rows {
		e := events.Event{
			ID:           r.ID,
			Type:         events.Type(r.Type),
			At:           time.UnixMilli(r.At).UTC(),
			InstanceID:   r.InstanceID,
			Owner:        r.Owner,
			DefinitionID: r.DefinitionID,
			Kind:         r.Kind,
			Detail:       r.Detail,
		}
		if r.Data != "" {
			if err := sonic.UnmarshalString(r.Data, &e.Data); err != nil {
				s.logger.Warn("Skipping undecodable event data", zap.String("id", r.ID), zap.Error(err))
			}
		}
		out = append(out, e)
	}
	return out, nil
}

// Prune deletes events older than retention and returns how many went.
func (s *Store) Prune(ctx context.Context, retention time.Duration) (int64, error) {
	cutoff := time.Now().Add(-retention).UnixMilli()
	res, err := s.db.ExecContext(ctx, `DELETE FROM lifecycle_events WHERE at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune audit events: %w", err)
	}
	n, _ := res.RowsAffected()
	if n > 0 {
		s.logger.Info("Pruned audit events", zap.Int64("count", n), zap.Duration("retention", retention))
	}
	return n, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
