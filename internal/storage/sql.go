package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/mselser95/coinflip/pkg/types"
	"go.uber.org/zap"
)

// Dialect captures the SQL differences between supported backends.
type Dialect struct {
	Name   string
	Schema string
	// Positional reports whether placeholders are $1..$n rather than ?.
	Positional bool
}

//nolint:gochecknoglobals // dialect definitions
var (
	// Postgres stores amounts as NUMERIC(20,0) so the full uint64 range fits.
	Postgres = Dialect{
		Name:       "postgres",
		Positional: true,
		Schema: `
		CREATE TABLE IF NOT EXISTS wagers (
			id               TEXT PRIMARY KEY,
			sequence         BIGINT NOT NULL,
			mode             TEXT NOT NULL,
			player           TEXT NOT NULL,
			stake            NUMERIC(20,0) NOT NULL,
			choice           SMALLINT NOT NULL,
			coefficient      BIGINT NOT NULL,
			potential_payout NUMERIC(20,0) NOT NULL,
			status           SMALLINT NOT NULL,
			outcome          SMALLINT NOT NULL,
			payout           NUMERIC(20,0) NOT NULL,
			created_at       TIMESTAMPTZ NOT NULL,
			settled_at       TIMESTAMPTZ
		);
		CREATE INDEX IF NOT EXISTS wagers_status_idx ON wagers (status, sequence);`,
	}

	// SQLite stores amounts as TEXT; NUMERIC affinity would coerce large values to REAL.
	SQLite = Dialect{
		Name: "sqlite3",
		Schema: `
		CREATE TABLE IF NOT EXISTS wagers (
			id               TEXT PRIMARY KEY,
			sequence         INTEGER NOT NULL,
			mode             TEXT NOT NULL,
			player           TEXT NOT NULL,
			stake            TEXT NOT NULL,
			choice           INTEGER NOT NULL,
			coefficient      INTEGER NOT NULL,
			potential_payout TEXT NOT NULL,
			status           INTEGER NOT NULL,
			outcome          INTEGER NOT NULL,
			payout           TEXT NOT NULL,
			created_at       TIMESTAMP NOT NULL,
			settled_at       TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS wagers_status_idx ON wagers (status, sequence);`,
	}
)

const wagerColumns = `id, sequence, mode, player, stake, choice, coefficient,
	potential_payout, status, outcome, payout, created_at, settled_at`

const (
	upsertWagerQuery = `
		INSERT INTO wagers (` + wagerColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (id) DO UPDATE SET
			status = excluded.status,
			outcome = excluded.outcome,
			payout = excluded.payout,
			settled_at = excluded.settled_at`

	selectWagerQuery   = `SELECT ` + wagerColumns + ` FROM wagers WHERE id = $1`
	selectPendingQuery = `SELECT ` + wagerColumns + ` FROM wagers WHERE status = $1 ORDER BY sequence`
	maxSequenceQuery   = `SELECT COALESCE(MAX(sequence), 0) FROM wagers`
)

// SQLStore implements Store on database/sql.
type SQLStore struct {
	db      *sql.DB
	dialect Dialect
	logger  *zap.Logger
}

// PostgresConfig holds PostgreSQL configuration.
type PostgresConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Database string
	SSLMode  string
	Logger   *zap.Logger
}

// SQLiteConfig holds SQLite configuration.
type SQLiteConfig struct {
	Path   string
	Logger *zap.Logger
}

// NewPostgresStore connects to PostgreSQL and ensures the schema exists.
func NewPostgresStore(ctx context.Context, cfg *PostgresConfig) (*SQLStore, error) {
	connStr := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode,
	)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	err = db.PingContext(ctx)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	cfg.Logger.Info("postgres-storage-connected",
		zap.String("host", cfg.Host),
		zap.String("database", cfg.Database))

	return openSQLStore(ctx, db, Postgres, cfg.Logger)
}

// NewSQLiteStore opens (or creates) a SQLite database file.
func NewSQLiteStore(ctx context.Context, cfg *SQLiteConfig) (*SQLStore, error) {
	db, err := sql.Open("sqlite3", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// SQLite serializes writers; one connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	cfg.Logger.Info("sqlite-storage-opened", zap.String("path", cfg.Path))

	return openSQLStore(ctx, db, SQLite, cfg.Logger)
}

func openSQLStore(ctx context.Context, db *sql.DB, dialect Dialect, logger *zap.Logger) (*SQLStore, error) {
	s := NewSQLStore(db, dialect, logger)
	err := s.EnsureSchema(ctx)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// NewSQLStore wraps an open database handle.
func NewSQLStore(db *sql.DB, dialect Dialect, logger *zap.Logger) *SQLStore {
	return &SQLStore{
		db:      db,
		dialect: dialect,
		logger:  logger,
	}
}

// EnsureSchema creates the wagers table if it is missing.
func (s *SQLStore) EnsureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, s.dialect.Schema)
	if err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// SaveWager upserts w. Only settlement fields change on conflict.
func (s *SQLStore) SaveWager(ctx context.Context, w *types.Wager) (err error) {
	defer s.observe("save", time.Now(), &err)

	var settledAt sql.NullTime
	if w.SettledAt != nil {
		settledAt = sql.NullTime{Time: *w.SettledAt, Valid: true}
	}

	_, err = s.db.ExecContext(ctx, s.rebind(upsertWagerQuery),
		w.ID,
		int64(w.Sequence),
		string(w.Mode),
		w.Player.Hex(),
		formatAmount(w.Stake),
		int64(w.Choice),
		int64(w.Coefficient),
		formatAmount(w.PotentialPayout),
		int64(w.Status),
		int64(w.Outcome),
		formatAmount(w.Payout),
		w.CreatedAt,
		settledAt,
	)
	if err != nil {
		return fmt.Errorf("upsert wager %s: %w", w.ID, err)
	}

	s.logger.Debug("wager-stored",
		zap.String("wager-id", w.ID),
		zap.Stringer("status", w.Status))

	return nil
}

// GetWager loads a single wager.
func (s *SQLStore) GetWager(ctx context.Context, id string) (w *types.Wager, err error) {
	defer s.observe("get", time.Now(), &err)

	row := s.db.QueryRowContext(ctx, s.rebind(selectWagerQuery), id)
	w, err = scanWager(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select wager %s: %w", id, err)
	}
	return w, nil
}

// LoadPending loads every pending wager ordered by sequence.
func (s *SQLStore) LoadPending(ctx context.Context) (pending []*types.Wager, err error) {
	defer s.observe("load-pending", time.Now(), &err)

	rows, err := s.db.QueryContext(ctx, s.rebind(selectPendingQuery), int64(types.StatusPending))
	if err != nil {
		return nil, fmt.Errorf("select pending: %w", err)
	}
	defer rows.Close()

	pending = make([]*types.Wager, 0)
	for rows.Next() {
		w, scanErr := scanWager(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scan pending: %w", scanErr)
		}
		pending = append(pending, w)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("iterate pending: %w", err)
	}
	return pending, nil
}

// MaxSequence returns the highest stored sequence.
func (s *SQLStore) MaxSequence(ctx context.Context) (seq uint64, err error) {
	defer s.observe("max-sequence", time.Now(), &err)

	var raw int64
	err = s.db.QueryRowContext(ctx, maxSequenceQuery).Scan(&raw)
	if err != nil {
		return 0, fmt.Errorf("select max sequence: %w", err)
	}
	return uint64(raw), nil
}

// Close closes the database connection.
func (s *SQLStore) Close() error {
	s.logger.Info("closing-sql-storage", zap.String("dialect", s.dialect.Name))
	return s.db.Close()
}

func (s *SQLStore) observe(op string, start time.Time, err *error) {
	StorageOperationsTotal.WithLabelValues(s.dialect.Name, op).Inc()
	StorageDurationSeconds.WithLabelValues(s.dialect.Name, op).Observe(time.Since(start).Seconds())
	if *err != nil && !errors.Is(*err, ErrNotFound) {
		StorageErrorsTotal.WithLabelValues(s.dialect.Name, op).Inc()
	}
}

// rebind rewrites $n placeholders to ? for dialects without positional parameters.
func (s *SQLStore) rebind(query string) string {
	if s.dialect.Positional {
		return query
	}

	var b strings.Builder
	b.Grow(len(query))
	for i := 0; i < len(query); i++ {
		if query[i] != '$' {
			b.WriteByte(query[i])
			continue
		}
		b.WriteByte('?')
		for i+1 < len(query) && query[i+1] >= '0' && query[i+1] <= '9' {
			i++
		}
	}
	return b.String()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanWager(row rowScanner) (*types.Wager, error) {
	var (
		w                              types.Wager
		sequence, coefficient          int64
		choice, status, outcome        int64
		mode, player                   string
		stake, potentialPayout, payout string
		settledAt                      sql.NullTime
	)

	err := row.Scan(
		&w.ID, &sequence, &mode, &player, &stake, &choice, &coefficient,
		&potentialPayout, &status, &outcome, &payout, &w.CreatedAt, &settledAt,
	)
	if err != nil {
		return nil, err
	}

	w.Sequence = uint64(sequence)
	w.Mode = types.Mode(mode)
	w.Player = common.HexToAddress(player)
	w.Choice = types.Choice(choice)
	w.Coefficient = uint64(coefficient)
	w.Status = types.Status(status)
	w.Outcome = types.Choice(outcome)
	if settledAt.Valid {
		t := settledAt.Time
		w.SettledAt = &t
	}

	w.Stake, err = parseAmount(stake)
	if err != nil {
		return nil, fmt.Errorf("stake: %w", err)
	}
	w.PotentialPayout, err = parseAmount(potentialPayout)
	if err != nil {
		return nil, fmt.Errorf("potential payout: %w", err)
	}
	w.Payout, err = parseAmount(payout)
	if err != nil {
		return nil, fmt.Errorf("payout: %w", err)
	}

	return &w, nil
}

func formatAmount(v uint64) string {
	return strconv.FormatUint(v, 10)
}

func parseAmount(raw string) (uint64, error) {
	return strconv.ParseUint(strings.TrimSpace(raw), 10, 64)
}
