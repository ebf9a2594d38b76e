// Package catalog persists the card library and the trigger event log in a
// local sqlite database.
package catalog

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/kartenwerk/schallpappenspieler/internal/monitoring"
	"github.com/kartenwerk/schallpappenspieler/internal/track"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Card is one entry in the card library. Code is the text encoded in the
// card's QR symbol and is the search string sent to the deck.
type Card struct {
	ID        string    `json:"id"`
	Code      string    `json:"code"`
	Title     string    `json:"title"`
	Artist    string    `json:"artist"`
	CoverPath string    `json:"cover_path,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// TriggerEvent is one logged dispatch.
type TriggerEvent struct {
	ID        string    `json:"id"`
	Side      string    `json:"side"`
	Code      string    `json:"code"`
	Loaded    bool      `json:"loaded"`
	CreatedAt time.Time `json:"created_at"`
}

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("catalog: not found")

// Catalog wraps the sqlite connection.
type Catalog struct {
	*sql.DB
}

// Open opens (or creates) the database at path and applies pending
// migrations.
func Open(path string) (*Catalog, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Serialized access keeps sqlite happy under concurrent writers.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(`PRAGMA journal_mode=WAL; PRAGMA busy_timeout=5000;`); err != nil {
		db.Close()
		return nil, fmt.Errorf("set pragmas: %w", err)
	}

	c := &Catalog{db}
	if err := c.migrateUp(); err != nil {
		db.Close()
		return nil, err
	}
	return c, nil
}

// migrateUp applies all pending migrations from the embedded files.
func (c *Catalog) migrateUp() error {
	source, err := iofs.New(migrationFiles, "migrations")
	if err != nil {
		return fmt.Errorf("open embedded migrations: %w", err)
	}

	driver, err := sqlite.WithInstance(c.DB, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("create sqlite migrate driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}
	// Not closing m: that would close the underlying DB connection.

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up failed: %w", err)
	}
	return nil
}

// AddCard inserts a card, assigning it a fresh id. The code must be unique.
func (c *Catalog) AddCard(code, title, artist, coverPath string) (Card, error) {
	card := Card{
		ID:        uuid.NewString(),
		Code:      code,
		Title:     title,
		Artist:    artist,
		CoverPath: coverPath,
		CreatedAt: time.Now().UTC(),
	}
	_, err := c.Exec(`
		INSERT INTO cards (card_id, code, title, artist, cover_path, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		card.ID, card.Code, card.Title, card.Artist, card.CoverPath, card.CreatedAt)
	if err != nil {
		return Card{}, fmt.Errorf("insert card: %w", err)
	}
	return card, nil
}

// CardByCode returns the card whose QR code text matches code exactly.
func (c *Catalog) CardByCode(code string) (Card, error) {
	var card Card
	err := c.QueryRow(`
		SELECT card_id, code, title, artist, cover_path, created_at
		FROM cards WHERE code = ?`, code).
		Scan(&card.ID, &card.Code, &card.Title, &card.Artist, &card.CoverPath, &card.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Card{}, ErrNotFound
	}
	if err != nil {
		return Card{}, fmt.Errorf("query card: %w", err)
	}
	return card, nil
}

// ListCards returns all cards ordered by insertion time.
func (c *Catalog) ListCards() ([]Card, error) {
	rows, err := c.Query(`
		SELECT card_id, code, title, artist, cover_path, created_at
		FROM cards ORDER BY created_at, card_id`)
	if err != nil {
		return nil, fmt.Errorf("query cards: %w", err)
	}
	defer rows.Close()

	var cards []Card
	for rows.Next() {
		var card Card
		if err := rows.Scan(&card.ID, &card.Code, &card.Title, &card.Artist, &card.CoverPath, &card.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan card: %w", err)
		}
		cards = append(cards, card)
	}
	return cards, rows.Err()
}

// RecordTrigger logs one dispatched trigger event. It satisfies the
// pipeline's event recorder.
func (c *Catalog) RecordTrigger(ev track.Event, loaded bool) error {
	_, err := c.Exec(`
		INSERT INTO trigger_events (event_id, side, code, loaded, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		uuid.NewString(), string(ev.Side), ev.Text, boolToInt(loaded), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("insert trigger event: %w", err)
	}
	return nil
}

// RecentEvents returns up to limit trigger events, newest first.
func (c *Catalog) RecentEvents(limit int) ([]TriggerEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := c.Query(`
		SELECT event_id, side, code, loaded, created_at
		FROM trigger_events
		ORDER BY created_at DESC, event_id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query trigger events: %w", err)
	}
	defer rows.Close()

	var events []TriggerEvent
	for rows.Next() {
		var ev TriggerEvent
		var loaded int
		if err := rows.Scan(&ev.ID, &ev.Side, &ev.Code, &loaded, &ev.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan trigger event: %w", err)
		}
		ev.Loaded = loaded != 0
		events = append(events, ev)
	}
	return events, rows.Err()
}

// Close closes the database, logging rather than returning late errors from
// sqlite checkpointing.
func (c *Catalog) Close() error {
	if err := c.DB.Close(); err != nil {
		monitoring.Logf("catalog: close: %v", err)
		return err
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
