// Package stats keeps a ledger of frags and falls in a SQLite file.
package stats

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

const writeTimeout = 2 * time.Second

var ErrEmptyName = errors.New("stats: name is required")

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	id         TEXT PRIMARY KEY,
	started_at INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS frags (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id TEXT NOT NULL REFERENCES sessions(id),
	shooter    TEXT NOT NULL,
	victim     TEXT NOT NULL,
	at         INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS falls (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id TEXT NOT NULL REFERENCES sessions(id),
	name       TEXT NOT NULL,
	at         INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS frags_session ON frags(session_id);
CREATE INDEX IF NOT EXISTS falls_session ON falls(session_id);
`

// Store persists the ledger.
type Store struct {
	db  *sql.DB
	now func() time.Time
	log *zap.Logger
}

// Open opens or creates the ledger at path.
func Open(path string, log *zap.Logger) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("stats: storage path is required")
	}
	dsn := filepath.Clean(path) + "?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("stats: open sqlite db: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("stats: ping sqlite db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("stats: create schema: %w", err)
	}
	return &Store{db: db, now: time.Now, log: log}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) ensureSession(ctx context.Context, session uuid.UUID) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO sessions (id, started_at) VALUES (?, ?)`,
		session.String(), s.now().UTC().UnixMilli())
	return err
}

// RecordFrag notes that shooter depleted victim.
func (s *Store) RecordFrag(session uuid.UUID, shooter, victim string) error {
	if shooter == "" || victim == "" {
		return ErrEmptyName
	}

	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	if err := s.ensureSession(ctx, session); err != nil {
		return fmt.Errorf("stats: recording session: %w", err)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO frags (session_id, shooter, victim, at) VALUES (?, ?, ?, ?)`,
		session.String(), shooter, victim, s.now().UTC().UnixMilli())
	if err != nil {
		return fmt.Errorf("stats: recording frag: %w", err)
	}
	return nil
}

// RecordFall notes that name fell out of the level.
func (s *Store) RecordFall(session uuid.UUID, name string) error {
	if name == "" {
		return ErrEmptyName
	}

	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	if err := s.ensureSession(ctx, session); err != nil {
		return fmt.Errorf("stats: recording session: %w", err)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO falls (session_id, name, at) VALUES (?, ?, ?)`,
		session.String(), name, s.now().UTC().UnixMilli())
	if err != nil {
		return fmt.Errorf("stats: recording fall: %w", err)
	}
	return nil
}

// Standing is one player's line on the leaderboard.
type Standing struct {
	Name   string
	Frags  int
	Deaths int
	Falls  int
}

func (s Standing) String() string {
	return fmt.Sprintf("%s: %d frags, %d deaths, %d falls", s.Name, s.Frags, s.Deaths, s.Falls)
}

// Leaderboard ranks every player of a session by frags, then by fewest
// deaths and falls, then by name.
func (s *Store) Leaderboard(ctx context.Context, session uuid.UUID) ([]Standing, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, SUM(frags), SUM(deaths), SUM(falls) FROM (
			SELECT shooter AS name, 1 AS frags, 0 AS deaths, 0 AS falls FROM frags WHERE session_id = ?
			UNION ALL
			SELECT victim, 0, 1, 0 FROM frags WHERE session_id = ?
			UNION ALL
			SELECT name, 0, 0, 1 FROM falls WHERE session_id = ?
		)
		GROUP BY name
		ORDER BY SUM(frags) DESC, SUM(deaths) + SUM(falls) ASC, name ASC`,
		session.String(), session.String(), session.String())
	if err != nil {
		return nil, fmt.Errorf("stats: querying leaderboard: %w", err)
	}
	defer rows.Close()

	var board []Standing
	for rows.Next() {
		var st Standing
		if err := rows.Scan(&st.Name, &st.Frags, &st.Deaths, &st.Falls); err != nil {
			return nil, fmt.Errorf("stats: scanning leaderboard: %w", err)
		}
		board = append(board, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("stats: reading leaderboard: %w", err)
	}
	return board, nil
}

// Sessions counts the sessions in the ledger.
func (s *Store) Sessions(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sessions`).Scan(&n); err != nil {
		return 0, fmt.Errorf("stats: counting sessions: %w", err)
	}
	return n, nil
}
