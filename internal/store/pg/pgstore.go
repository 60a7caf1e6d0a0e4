package pg

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"vendora.app/internal/backend"
	"vendora.app/internal/store"
)

// Store persists session records in postgres.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

var _ store.SessionStore = (*Store)(nil)

// Open connects to postgres with pool defaults tuned for the gateway's
// low-contention workload.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(15 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return NewWithDB(db), nil
}

// NewWithDB wraps an existing connection. Used by tests with sqlmock.
func NewWithDB(db *sql.DB) *Store {
	return &Store{db: db, now: time.Now}
}

func (s *Store) Close() error { return s.db.Close() }

// Ping reports connectivity for the readiness probe.
func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

// EnsureSchema creates the sessions table if it does not exist. The gateway
// owns a single table, so no migration manager is involved.
func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		create table if not exists gateway_sessions (
			sid        text primary key,
			token      text not null,
			profile    jsonb not null,
			created_at timestamptz not null,
			expires_at timestamptz not null
		)`)
	return err
}

func (s *Store) Save(ctx context.Context, rec *store.Record) error {
	profile, err := json.Marshal(rec.User)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		insert into gateway_sessions(sid, token, profile, created_at, expires_at)
		values ($1,$2,$3,$4,$5)
		on conflict (sid) do update
		set token = excluded.token,
		    profile = excluded.profile,
		    expires_at = excluded.expires_at
	`, rec.SID, rec.Token, profile, rec.CreatedAt, rec.ExpiresAt)
	return err
}

func (s *Store) Find(ctx context.Context, sid string) (*store.Record, error) {
	var (
		rec     store.Record
		profile []byte
	)
	err := s.db.QueryRowContext(ctx, `
		select sid, token, profile, created_at, expires_at
		from gateway_sessions where sid=$1
	`, sid).Scan(&rec.SID, &rec.Token, &profile, &rec.CreatedAt, &rec.ExpiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if s.now().After(rec.ExpiresAt) {
		_, _ = s.db.ExecContext(ctx, `delete from gateway_sessions where sid=$1`, sid)
		return nil, store.ErrNotFound
	}
	var user backend.UserProfile
	if err := json.Unmarshal(profile, &user); err != nil {
		return nil, err
	}
	rec.User = user
	return &rec, nil
}

func (s *Store) Delete(ctx context.Context, sid string) error {
	_, err := s.db.ExecContext(ctx, `delete from gateway_sessions where sid=$1`, sid)
	return err
}
