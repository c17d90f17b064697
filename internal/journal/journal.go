// Package journal persists the last value commanded on each output so the
// bridge can restore relays and digital outputs after a restart.
package journal

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nerrad567/plcbridge/internal/infrastructure/database"
)

// ErrEmptyChannel is returned when Save is called without a channel name.
var ErrEmptyChannel = errors.New("journal: channel name is required")

// Store reads and writes the output_state table.
type Store struct {
	db  *database.DB
	now func() time.Time
}

// NewStore returns a Store backed by a migrated database.
func NewStore(db *database.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// Save records the latest value for a channel, replacing any earlier one.
func (s *Store) Save(ctx context.Context, channel string, value int64) error {
	if channel == "" {
		return ErrEmptyChannel
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO output_state (channel, value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(channel) DO UPDATE SET
			value = excluded.value,
			updated_at = excluded.updated_at`,
		channel, value, s.now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("saving state for %s: %w", channel, err)
	}
	return nil
}

// Load returns every journaled channel value.
func (s *Store) Load(ctx context.Context) (map[string]int64, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT channel, value FROM output_state")
	if err != nil {
		return nil, fmt.Errorf("querying output state: %w", err)
	}
	defer rows.Close()

	states := make(map[string]int64)
	for rows.Next() {
		var (
			channel string
			value   int64
		)
		if err := rows.Scan(&channel, &value); err != nil {
			return nil, fmt.Errorf("scanning output state: %w", err)
		}
		states[channel] = value
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating output state: %w", err)
	}
	return states, nil
}

// UpdatedAt returns when a channel was last journaled.
func (s *Store) UpdatedAt(ctx context.Context, channel string) (time.Time, error) {
	var raw string
	err := s.db.QueryRowContext(ctx,
		"SELECT updated_at FROM output_state WHERE channel = ?", channel,
	).Scan(&raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("reading timestamp for %s: %w", channel, err)
	}
	return time.Parse(time.RFC3339Nano, raw)
}
