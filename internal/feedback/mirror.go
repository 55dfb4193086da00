package feedback

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// #region dialect

// Dialect selects placeholder syntax and schema details for the SQL mirror.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

func (d Dialect) placeholders(n int) string {
	ph := make([]string, n)
	for i := range ph {
		if d == DialectPostgres {
			ph[i] = fmt.Sprintf("$%d", i+1)
		} else {
			ph[i] = "?"
		}
	}
	return strings.Join(ph, ", ")
}

// #endregion dialect

// #region schema
const sqliteSchema = `
CREATE TABLE IF NOT EXISTS vote_log (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	voted_at    TEXT NOT NULL,
	voter       TEXT NOT NULL,
	vote        TEXT NOT NULL CHECK (vote IN ('up', 'down')),
	text        TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_vote_log_voted_at ON vote_log(voted_at);
`

const postgresSchema = `
CREATE TABLE IF NOT EXISTS vote_log (
	id          BIGSERIAL PRIMARY KEY,
	voted_at    TEXT NOT NULL,
	voter       TEXT NOT NULL,
	vote        TEXT NOT NULL CHECK (vote IN ('up', 'down')),
	text        TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_vote_log_voted_at ON vote_log(voted_at);
`

// #endregion schema

// #region open

// OpenMirror opens the SQL mirror named by dsn. postgres:// and postgresql://
// URLs use lib/pq; anything else is a sqlite path.
func OpenMirror(dsn string) (*sql.DB, Dialect, error) {
	dialect := DialectSQLite
	driver := "sqlite"
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		dialect = DialectPostgres
		driver = "postgres"
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, "", fmt.Errorf("open mirror: %w", err)
	}
	if dialect == DialectSQLite {
		// a single connection keeps :memory: databases coherent and serializes writers
		db.SetMaxOpenConns(1)
		if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
			db.Close()
			return nil, "", fmt.Errorf("pragma: %w", err)
		}
	}
	if err := Migrate(db, dialect); err != nil {
		db.Close()
		return nil, "", err
	}
	return db, dialect, nil
}

// Migrate creates the vote_log table if needed.
func Migrate(db *sql.DB, dialect Dialect) error {
	schema := sqliteSchema
	if dialect == DialectPostgres {
		schema = postgresSchema
	}
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// #endregion open

// #region log-vote

// LogVote inserts one row into vote_log.
func LogVote(ctx context.Context, db *sql.DB, dialect Dialect, r Record) error {
	if r.Timestamp.IsZero() {
		r.Timestamp = time.Now().UTC()
	}
	_, err := db.ExecContext(ctx,
		`INSERT INTO vote_log (voted_at, voter, vote, text) VALUES (`+dialect.placeholders(4)+`)`,
		r.Timestamp.UTC().Format(time.RFC3339Nano),
		r.Voter,
		string(r.Vote),
		r.Text,
	)
	if err != nil {
		return fmt.Errorf("log vote: %w", err)
	}
	return nil
}

// SQLRecorder mirrors votes into a database table.
type SQLRecorder struct {
	db      *sql.DB
	dialect Dialect
}

// NewSQLRecorder wraps an already-migrated database.
func NewSQLRecorder(db *sql.DB, dialect Dialect) *SQLRecorder {
	return &SQLRecorder{db: db, dialect: dialect}
}

func (s *SQLRecorder) Record(ctx context.Context, r Record) error {
	return LogVote(ctx, s.db, s.dialect, r)
}

// #endregion log-vote

// #region list

// ListVotes returns the most recent votes, oldest first. limit <= 0 returns all rows.
func ListVotes(ctx context.Context, db *sql.DB, dialect Dialect, limit int) ([]Record, error) {
	q := `SELECT voted_at, voter, vote, text FROM vote_log ORDER BY id DESC`
	var args []any
	if limit > 0 {
		q += ` LIMIT ` + dialect.placeholders(1)
		args = append(args, limit)
	}
	rows, err := db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list votes: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var votedAt, voter, vote, text string
		if err := rows.Scan(&votedAt, &voter, &vote, &text); err != nil {
			return nil, fmt.Errorf("scan vote: %w", err)
		}
		ts, err := time.Parse(time.RFC3339Nano, votedAt)
		if err != nil {
			return nil, fmt.Errorf("parse voted_at: %w", err)
		}
		out = append(out, Record{Timestamp: ts, Voter: voter, Vote: Vote(vote), Text: text})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// #endregion list
