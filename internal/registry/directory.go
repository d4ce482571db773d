package registry

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/charmbracelet/log"
)

// Directory is a local, eventually-consistent read replica of every
// instance's active rooms, built by consuming this instance's own
// publishes plus anything a KafkaAnnouncer forwards from other instances
// (spec.md §4.7's "shared directory"). A room created and joined entirely
// within one instance never needs to read from it.
type Directory struct {
	db     *sql.DB
	logger *log.Logger
}

// OpenDirectory opens (creating if needed) the sqlite-backed directory at
// dbPath, using the pure-Go driver to avoid a cgo dependency.
func OpenDirectory(dbPath string, logger *log.Logger) (*Directory, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("registry: cannot open directory db: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("registry: cannot connect to directory db: %w", err)
	}

	d := &Directory{db: db, logger: logger}
	if err := d.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return d, nil
}

func (d *Directory) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS room_directory (
			room_code TEXT PRIMARY KEY,
			instance_id TEXT NOT NULL,
			player_count INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		);
	`
	_, err := d.db.Exec(schema)
	return err
}

// Publish implements registry.DirectoryPublisher for the local-only case
// (no Kafka configured): it upserts directly instead of round-tripping
// through a topic.
func (d *Directory) Publish(event DirectoryEvent) {
	d.Upsert(event, "local")
}

// Upsert applies one announcement, tagging it with the instance that
// produced it. "closed" events delete the row instead of updating it.
func (d *Directory) Upsert(event DirectoryEvent, instanceID string) {
	var err error
	switch event.Kind {
	case "closed":
		_, err = d.db.Exec(`DELETE FROM room_directory WHERE room_code = ?`, event.RoomCode)
	default:
		_, err = d.db.Exec(
			`INSERT INTO room_directory (room_code, instance_id, player_count, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?)
			 ON CONFLICT(room_code) DO UPDATE SET
			   player_count = excluded.player_count,
			   updated_at = excluded.updated_at`,
			event.RoomCode, instanceID, event.PlayerCount, event.CreatedAt, time.Now(),
		)
	}
	if err != nil && d.logger != nil {
		d.logger.Warn("directory upsert failed", "room", event.RoomCode, "err", err)
	}
}

// Lookup reports whether a room code is known to any instance, per the
// local replica's current view.
func (d *Directory) Lookup(roomCode string) (instanceID string, playerCount int, ok bool) {
	row := d.db.QueryRow(`SELECT instance_id, player_count FROM room_directory WHERE room_code = ?`, roomCode)
	if err := row.Scan(&instanceID, &playerCount); err != nil {
		return "", 0, false
	}
	return instanceID, playerCount, true
}

// Sweep deletes rows older than the absolute room TTL, in case a "closed"
// announcement was lost.
func (d *Directory) Sweep(ttl time.Duration) {
	cutoff := time.Now().Add(-ttl)
	if _, err := d.db.Exec(`DELETE FROM room_directory WHERE created_at < ?`, cutoff); err != nil && d.logger != nil {
		d.logger.Warn("directory sweep failed", "err", err)
	}
}

// RunSweeper runs Sweep on the given interval until stop is closed.
func (d *Directory) RunSweeper(interval, ttl time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			d.Sweep(ttl)
		}
	}
}

// Close releases the underlying database handle.
func (d *Directory) Close() error {
	return d.db.Close()
}
