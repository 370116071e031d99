package main

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// DB wraps the SQLite database connection
type DB struct {
	conn *sql.DB
}

// FightSummary is one fight as read back from the journal
type FightSummary struct {
	FightID   string    `json:"fightId"`
	StartedAt time.Time `json:"startedAt"`
	EndedAt   time.Time `json:"endedAt"`
	WinnerID  string    `json:"winnerId,omitempty"`
	Fighters  int       `json:"fighters"`
	Hits      int       `json:"hits"`
}

// OpenDB opens (or creates) the SQLite database
func OpenDB(path string) (*DB, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	// Enable WAL mode for better concurrency
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enable wal: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}

func (db *DB) migrate() error {
	_, err := db.conn.Exec(`
	CREATE TABLE IF NOT EXISTS fight_events (
		id             INTEGER PRIMARY KEY AUTOINCREMENT,
		fight_id       TEXT NOT NULL,
		event_type     TEXT NOT NULL,
		participant_id TEXT,
		data           TEXT,
		created_at     TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_fight_events_fight ON fight_events(fight_id);
	CREATE INDEX IF NOT EXISTS idx_fight_events_created ON fight_events(created_at);
	`)
	return err
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.conn.Close()
}

// RecentFights returns the latest fights, newest first
func (db *DB) RecentFights(limit int) ([]FightSummary, error) {
	rows, err := db.conn.Query(`
		SELECT fight_id,
			MIN(created_at),
			MAX(created_at),
			COALESCE(MAX(CASE WHEN event_type = ? THEN participant_id END), ''),
			SUM(CASE WHEN event_type = ? THEN 1 ELSE 0 END),
			SUM(CASE WHEN event_type IN (?, ?) THEN 1 ELSE 0 END)
		FROM fight_events
		GROUP BY fight_id
		ORDER BY MIN(created_at) DESC
		LIMIT ?
	`, EvtEndFight, EvtFighterJoined, EvtHit, EvtDead, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []FightSummary
	for rows.Next() {
		var f FightSummary
		var started, ended string
		if err := rows.Scan(&f.FightID, &started, &ended, &f.WinnerID, &f.Fighters, &f.Hits); err != nil {
			return nil, err
		}
		f.StartedAt, _ = time.Parse(journalTimeLayout, started)
		f.EndedAt, _ = time.Parse(journalTimeLayout, ended)
		out = append(out, f)
	}
	return out, rows.Err()
}
