package archive

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/fleetwatch-core/internal/device"
)

const (
	// DefaultListLimit is used when ListByDevice is called with limit <= 0.
	DefaultListLimit = 50

	// MaxListLimit caps a single ListByDevice page.
	MaxListLimit = 200

	// timestampFormat is fixed-width so stored values sort lexically.
	timestampFormat = "2006-01-02T15:04:05.000000000Z"
)

// Logger is the logging surface used by the repository.
type Logger interface {
	Debug(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Error(string, ...any) {}

// Entry is one archived status change event.
type Entry struct {
	ID         string                `json:"id"`
	DeviceID   string                `json:"device_id"`
	DeviceName string                `json:"device_name"`
	Changes    []device.ChangeDetail `json:"changes"`
	OldStatus  device.DeviceState    `json:"old_status"`
	NewStatus  device.DeviceState    `json:"new_status"`
	OccurredAt time.Time             `json:"occurred_at"`
	CreatedAt  time.Time             `json:"created_at"`
}

// Repository stores status change events and device snapshots in SQLite.
//
// It implements device.Listener so it can be subscribed to the engine
// directly.
type Repository struct {
	db     *sql.DB
	logger Logger
	now    func() time.Time
}

// NewRepository creates a repository over an open, migrated database.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{
		db:     db,
		logger: noopLogger{},
		now:    time.Now,
	}
}

// SetLogger sets the logger. A nil logger restores the no-op default.
func (r *Repository) SetLogger(l Logger) {
	if l == nil {
		r.logger = noopLogger{}
		return
	}
	r.logger = l
}

// SetClock replaces the time source used for created_at and pruning.
func (r *Repository) SetClock(now func() time.Time) {
	if now != nil {
		r.now = now
	}
}

// HandleStatusChange records the event. It satisfies device.Listener.
func (r *Repository) HandleStatusChange(ctx context.Context, event device.StatusChangeEvent) error {
	return r.Record(ctx, event)
}

// Record inserts the event and upserts the device's latest snapshot in one
// transaction.
func (r *Repository) Record(ctx context.Context, event device.StatusChangeEvent) error {
	if event.DeviceID == "" {
		return ErrDeviceIDRequired
	}

	changesJSON, err := json.Marshal(event.Changes)
	if err != nil {
		return fmt.Errorf("marshalling changes: %w", err)
	}
	oldJSON, err := json.Marshal(event.OldStatus)
	if err != nil {
		return fmt.Errorf("marshalling old status: %w", err)
	}
	newJSON, err := json.Marshal(event.NewStatus)
	if err != nil {
		return fmt.Errorf("marshalling new status: %w", err)
	}

	createdAt := formatTimestamp(r.now())
	occurredAt := formatTimestamp(event.Timestamp)
	id := uuid.NewString()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting archive transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // Rollback is no-op after commit

	_, err = tx.ExecContext(ctx,
		`INSERT INTO status_change_events
		 (id, device_id, device_name, changes, old_status, new_status, occurred_at, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		id,
		event.DeviceID,
		event.DeviceName,
		string(changesJSON),
		string(oldJSON),
		string(newJSON),
		occurredAt,
		createdAt,
	)
	if err != nil {
		return fmt.Errorf("inserting status change event: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO device_snapshots (device_id, state, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(device_id) DO UPDATE SET state = excluded.state, updated_at = excluded.updated_at`,
		event.DeviceID,
		string(newJSON),
		createdAt,
	)
	if err != nil {
		return fmt.Errorf("upserting device snapshot: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing archive entry: %w", err)
	}

	r.logger.Debug("status change archived", "device_id", event.DeviceID, "entry_id", id, "changes", len(event.Changes))
	return nil
}

// ListByDevice returns archived events for one device, newest first.
// limit <= 0 uses DefaultListLimit; values above MaxListLimit are capped.
func (r *Repository) ListByDevice(ctx context.Context, deviceID string, limit int) ([]Entry, error) {
	if deviceID == "" {
		return nil, ErrDeviceIDRequired
	}
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, device_id, device_name, changes, old_status, new_status, occurred_at, created_at
		 FROM status_change_events
		 WHERE device_id = ?
		 ORDER BY occurred_at DESC, rowid DESC
		 LIMIT ?`,
		deviceID,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying status change events: %w", err)
	}
	defer rows.Close()

	entries := make([]Entry, 0, limit)
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating status change events: %w", err)
	}

	return entries, nil
}

// Count returns the number of archived events.
func (r *Repository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM status_change_events").Scan(&n); err != nil {
		return 0, fmt.Errorf("counting status change events: %w", err)
	}
	return n, nil
}

// Prune deletes events that occurred more than olderThan ago.
func (r *Repository) Prune(ctx context.Context, olderThan time.Duration) (int64, error) {
	if olderThan <= 0 {
		return 0, ErrInvalidRetention
	}

	cutoff := formatTimestamp(r.now().Add(-olderThan))
	result, err := r.db.ExecContext(ctx,
		"DELETE FROM status_change_events WHERE occurred_at < ?",
		cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("deleting status change events: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("checking rows affected: %w", err)
	}
	return deleted, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (Entry, error) {
	var (
		entry                         Entry
		changesJSON, oldJSON, newJSON string
		occurredAt, createdAt         string
	)

	if err := row.Scan(&entry.ID, &entry.DeviceID, &entry.DeviceName,
		&changesJSON, &oldJSON, &newJSON, &occurredAt, &createdAt); err != nil {
		return Entry{}, fmt.Errorf("scanning status change event: %w", err)
	}

	if err := json.Unmarshal([]byte(changesJSON), &entry.Changes); err != nil {
		return Entry{}, fmt.Errorf("unmarshalling changes: %w", err)
	}
	if err := json.Unmarshal([]byte(oldJSON), &entry.OldStatus); err != nil {
		return Entry{}, fmt.Errorf("unmarshalling old status: %w", err)
	}
	if err := json.Unmarshal([]byte(newJSON), &entry.NewStatus); err != nil {
		return Entry{}, fmt.Errorf("unmarshalling new status: %w", err)
	}

	var err error
	if entry.OccurredAt, err = parseTimestamp(occurredAt); err != nil {
		return Entry{}, err
	}
	if entry.CreatedAt, err = parseTimestamp(createdAt); err != nil {
		return Entry{}, err
	}
	return entry, nil
}

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampFormat)
}

// parseTimestamp accepts the fixed-width format and plain RFC3339.
func parseTimestamp(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, fmt.Errorf("timestamp is empty")
	}
	if t, err := time.Parse(timestampFormat, value); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing timestamp %q: %w", value, err)
	}
	return t.UTC(), nil
}
