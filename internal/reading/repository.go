package reading

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/mattn/go-sqlite3"
)

// Repository defines the interface for reading persistence.
// This abstraction allows for different implementations (MongoDB, SQLite, mock)
// and enables unit testing without database dependencies.
type Repository interface {
	// Insert stores r and assigns r.ID. The returned ID is the same value.
	// Returns ErrStoreUnavailable or ErrWriteFailure on failure.
	Insert(ctx context.Context, r *Reading) (ID, error)

	// GetByID retrieves a reading by its identifier.
	// Returns ErrNotFound if no reading has that ID.
	GetByID(ctx context.Context, id ID) (*Reading, error)

	// GetLatest retrieves the reading with the greatest date string.
	// Returns ErrNotFound if the store is empty.
	GetLatest(ctx context.Context) (*Reading, error)

	// ListRecent retrieves up to limit readings ordered by date descending.
	ListRecent(ctx context.Context, limit int) ([]Reading, error)
}

// SQLiteRepository implements Repository using SQLite.
// The readings table is created by the embedded migrations.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed repository.
// The db parameter should be an open, migrated SQLite connection.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Insert stores a new reading and assigns its row id.
func (r *SQLiteRepository) Insert(ctx context.Context, rd *Reading) (ID, error) {
	result, err := r.db.ExecContext(ctx,
		`INSERT INTO readings (sensor_id, reading, date) VALUES (?, ?, ?)`,
		rd.SensorID, rd.Value, rd.Date,
	)
	if err != nil {
		return "", r.classify(ctx, err, ErrWriteFailure)
	}

	rowID, err := result.LastInsertId()
	if err != nil {
		return "", fmt.Errorf("%w: reading last insert id: %w", ErrWriteFailure, err)
	}

	rd.ID = ID(strconv.FormatInt(rowID, 10))
	return rd.ID, nil
}

// GetByID retrieves a reading by its row id.
// Identifiers that are not decimal integers cannot exist in this store.
func (r *SQLiteRepository) GetByID(ctx context.Context, id ID) (*Reading, error) {
	rowID, err := strconv.ParseInt(string(id), 10, 64)
	if err != nil || rowID < 0 {
		return nil, ErrNotFound
	}

	row := r.db.QueryRowContext(ctx,
		`SELECT id, sensor_id, reading, date FROM readings WHERE id = ?`, rowID)
	rd, err := scanReading(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, r.classify(ctx, err, nil)
	}
	return rd, nil
}

// GetLatest retrieves the reading with the greatest date.
func (r *SQLiteRepository) GetLatest(ctx context.Context) (*Reading, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, sensor_id, reading, date FROM readings ORDER BY date DESC, id DESC LIMIT 1`)
	rd, err := scanReading(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, r.classify(ctx, err, nil)
	}
	return rd, nil
}

// ListRecent retrieves up to limit readings, newest date first.
func (r *SQLiteRepository) ListRecent(ctx context.Context, limit int) ([]Reading, error) {
	if limit <= 0 {
		return []Reading{}, nil
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, sensor_id, reading, date FROM readings ORDER BY date DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, r.classify(ctx, err, nil)
	}
	defer rows.Close()

	readings := make([]Reading, 0, limit)
	for rows.Next() {
		rd, err := scanReading(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning reading: %w", err)
		}
		readings = append(readings, *rd)
	}
	if err := rows.Err(); err != nil {
		return nil, r.classify(ctx, err, nil)
	}
	return readings, nil
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanReading(s scanner) (*Reading, error) {
	var (
		rowID int64
		rd    Reading
	)
	if err := s.Scan(&rowID, &rd.SensorID, &rd.Value, &rd.Date); err != nil {
		return nil, err
	}
	rd.ID = ID(strconv.FormatInt(rowID, 10))
	return &rd, nil
}

// pingTimeout bounds the liveness check made while classifying an error.
const pingTimeout = time.Second

// classify maps driver errors onto the domain errors.
// Lock contention, unopenable files, closed pools and deadlines mean the
// store is unavailable. database/sql reports a closed pool with an
// unexported error value, so any other failure is followed by a ping and a
// failed ping also means unavailable. Remaining errors are wrapped with
// fallback, or returned as a plain query error when fallback is nil.
func (r *SQLiteRepository) classify(ctx context.Context, err error, fallback error) error {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code {
		case sqlite3.ErrBusy, sqlite3.ErrLocked, sqlite3.ErrCantOpen, sqlite3.ErrIoErr:
			return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
		}
	}
	if errors.Is(err, sql.ErrConnDone) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}

	pingCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), pingTimeout)
	defer cancel()
	if pingErr := r.db.PingContext(pingCtx); pingErr != nil {
		return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}

	if fallback != nil {
		return fmt.Errorf("%w: %w", fallback, err)
	}
	return fmt.Errorf("querying readings: %w", err)
}
