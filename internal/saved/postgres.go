package saved

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/noah-isme/backend-configurator/internal/configurator"
)

// DB is the subset of pgxpool.Pool used by PostgresStore.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// PostgresStore keeps records in the saved_configurations table.
type PostgresStore struct {
	db DB
	base
}

// NewPostgresStore returns a store backed by db.
func NewPostgresStore(db DB, opts ...Option) *PostgresStore {
	return &PostgresStore{db: db, base: newBase(opts)}
}

func newRecordID() string { return uuid.NewString() }

const (
	insertSaved = `INSERT INTO saved_configurations (id, user_id, configuration, created_at)
VALUES ($1, $2, $3, $4)`
	listSaved = `SELECT id::text, user_id, configuration, created_at FROM saved_configurations
WHERE $1 = '' OR user_id = $1 ORDER BY created_at, seq`
)

// Save inserts cfg in a single statement.
func (s *PostgresStore) Save(ctx context.Context, cfg configurator.Configuration, userID string) (Record, error) {
	rec := s.record(cfg, userID)
	payload, err := json.Marshal(rec.Configuration)
	if err != nil {
		return Record{}, fmt.Errorf("encode configuration: %w", err)
	}
	var user any
	if userID != "" {
		user = userID
	}
	if _, err := s.db.Exec(ctx, insertSaved, rec.ID, user, payload, rec.CreatedAt); err != nil {
		return Record{}, fmt.Errorf("insert saved configuration: %w: %w", ErrPersistence, err)
	}
	return rec, nil
}

// List returns the records of userID, or all records when userID is empty.
func (s *PostgresStore) List(ctx context.Context, userID string) ([]Record, error) {
	rows, err := s.db.Query(ctx, listSaved, userID)
	if err != nil {
		return nil, fmt.Errorf("query saved configurations: %w: %w", ErrPersistence, err)
	}
	defer rows.Close()

	records := []Record{}
	for rows.Next() {
		var (
			rec     Record
			user    sql.NullString
			payload []byte
		)
		if err := rows.Scan(&rec.ID, &user, &payload, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan saved configuration: %w: %w", ErrPersistence, err)
		}
		if err := json.Unmarshal(payload, &rec.Configuration); err != nil {
			return nil, fmt.Errorf("decode saved configuration %s: %w: %w", rec.ID, ErrPersistence, err)
		}
		rec.UserID = user.String
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate saved configurations: %w: %w", ErrPersistence, err)
	}
	return records, nil
}
