package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"go.uber.org/zap"
)

//go:embed migrations.sql
var migrations embed.FS

// notifyChannel is the LISTEN/NOTIFY channel shared with the dashboard backend.
const notifyChannel = "helix_state"

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
	// Listen subscribes to notifications from other writers.
	Listen bool
}

func (c DatabaseConfig) connString() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

type PostgresStorage struct {
	db       *sql.DB
	listener *pq.Listener
	instance string
	logger   *zap.Logger
}

// NewPostgresStorage opens the documents table and, when configured, starts
// listening for writes made by other processes.
func NewPostgresStorage(config DatabaseConfig, logger *zap.Logger) (*Store, error) {
	connStr := config.connString()

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("error connecting to the database: %w", err)
	}

	pg := &PostgresStorage{
		db:       db,
		instance: uuid.NewString(),
		logger:   logger,
	}

	// Initialize database schema
	if err := pg.initializeSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("error initializing database schema: %w", err)
	}

	h := newHub()
	if config.Listen {
		if err := pg.listen(connStr, h); err != nil {
			db.Close()
			return nil, err
		}
	}
	return newStore(pg, h), nil
}

func (s *PostgresStorage) initializeSchema() error {
	migrationSQL, err := migrations.ReadFile("migrations.sql")
	if err != nil {
		return fmt.Errorf("error reading migrations file: %w", err)
	}

	if _, err := s.db.Exec(string(migrationSQL)); err != nil {
		return fmt.Errorf("error executing migrations: %w", err)
	}
	return nil
}

func (s *PostgresStorage) listen(connStr string, h *hub) error {
	l := pq.NewListener(connStr, 10*time.Second, time.Minute, func(ev pq.ListenerEventType, err error) {
		if err != nil {
			s.logger.Warn("Postgres listener event", zap.Error(err), zap.Int("event", int(ev)))
		}
	})
	if err := l.Listen(notifyChannel); err != nil {
		l.Close()
		return fmt.Errorf("error listening on %s: %w", notifyChannel, err)
	}
	s.listener = l

	go func() {
		for n := range l.Notify {
			// A nil notification follows a reconnect; anything may have changed meanwhile.
			if n == nil {
				h.publish(Change{})
				continue
			}
			instance, path, ok := strings.Cut(n.Extra, "|")
			if !ok || instance == s.instance {
				continue
			}
			h.publish(Change{Path: path})
		}
	}()
	return nil
}

func (s *PostgresStorage) load(ctx context.Context, key string) ([]byte, error) {
	var raw []byte
	err := s.db.QueryRowContext(ctx, `SELECT value FROM documents WHERE key = $1`, key).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("error querying document %s: %w", key, err)
	}
	return raw, nil
}

func (s *PostgresStorage) loadPrefix(ctx context.Context, prefix string) (map[string][]byte, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM documents WHERE key LIKE $1`, prefix+"%")
	if err != nil {
		return nil, fmt.Errorf("error querying documents: %w", err)
	}
	defer rows.Close()

	out := make(map[string][]byte)
	for rows.Next() {
		var key string
		var raw []byte
		if err := rows.Scan(&key, &raw); err != nil {
			return nil, fmt.Errorf("error scanning document: %w", err)
		}
		out[key] = raw
	}
	return out, rows.Err()
}

func (s *PostgresStorage) mutate(ctx context.Context, key string, fn func(cur []byte) ([]byte, error)) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("error starting transaction: %w", err)
	}
	defer tx.Rollback()

	var cur []byte
	err = tx.QueryRowContext(ctx, `SELECT value FROM documents WHERE key = $1 FOR UPDATE`, key).Scan(&cur)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("error locking document %s: %w", key, err)
	}

	next, err := fn(cur)
	if err != nil {
		return err
	}

	if next == nil {
		_, err = tx.ExecContext(ctx, `DELETE FROM documents WHERE key = $1`, key)
	} else {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO documents (key, value, updated_at)
			VALUES ($1, $2::jsonb, NOW())
			ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`,
			key, string(next))
	}
	if err != nil {
		return fmt.Errorf("error writing document %s: %w", key, err)
	}
	return tx.Commit()
}

func (s *PostgresStorage) publish(ctx context.Context, path string) error {
	_, err := s.db.ExecContext(ctx, `SELECT pg_notify($1, $2)`, notifyChannel, s.instance+"|"+path)
	return err
}

func (s *PostgresStorage) close() error {
	if s.listener != nil {
		s.listener.Close()
	}
	return s.db.Close()
}
