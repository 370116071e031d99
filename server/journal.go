package main

import (
	"database/sql"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Journal event types
const (
	EvtWaitingRoom   = "waiting_room"
	EvtFighterJoined = "fighter_joined"
	EvtFightStart    = "fight_start"
	EvtHit           = "hit"
	EvtDead          = "dead"
	EvtEndFight      = "end_fight"
	EvtRestart       = "restart"
)

// journalTimeLayout is fixed-width so created_at sorts lexically.
const journalTimeLayout = "2006-01-02T15:04:05.000000Z07:00"

// JournalEvent is one fight lifecycle record
type JournalEvent struct {
	FightID       string
	Type          string
	ParticipantID string
	Data          string // JSON metadata (optional)
	Timestamp     time.Time
}

// Journal is an append-only audit log of fights with batched background
// writes. It is never read back into session state. A nil *Journal is a
// valid no-op journal.
type Journal struct {
	db        *DB
	log       *zap.Logger
	events    chan JournalEvent
	stop      chan struct{}
	wg        sync.WaitGroup
	interval  time.Duration
	batchSize int
	stopOnce  sync.Once
}

// NewJournal creates and starts the journal background writer
func NewJournal(db *DB, cfg JournalConfig, logger *zap.Logger) *Journal {
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = 2 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	j := &Journal{
		db:        db,
		log:       logger,
		events:    make(chan JournalEvent, 1024),
		stop:      make(chan struct{}),
		interval:  cfg.FlushInterval,
		batchSize: cfg.BatchSize,
	}
	j.wg.Add(1)
	go j.writer()
	return j
}

// Track enqueues an event for async persistence (non-blocking)
func (j *Journal) Track(fightID, evtType, participantID, data string) {
	if j == nil {
		return
	}
	select {
	case j.events <- JournalEvent{
		FightID:       fightID,
		Type:          evtType,
		ParticipantID: participantID,
		Data:          data,
		Timestamp:     time.Now().UTC(),
	}:
	default:
		// Channel full: drop the event, never block the tick loop
	}
}

// RecentFights reads fight summaries back for the HTTP API
func (j *Journal) RecentFights(limit int) ([]FightSummary, error) {
	if j == nil || j.db == nil {
		return nil, nil
	}
	return j.db.RecentFights(limit)
}

// Stop drains pending events and shuts the writer down
func (j *Journal) Stop() {
	if j == nil {
		return
	}
	j.stopOnce.Do(func() {
		close(j.stop)
		j.wg.Wait()
	})
}

// writer is the background goroutine that batches and writes events to DB
func (j *Journal) writer() {
	defer j.wg.Done()

	batch := make([]JournalEvent, 0, 64)
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case evt := <-j.events:
			batch = append(batch, evt)
			if len(batch) >= j.batchSize {
				j.flush(batch)
				batch = batch[:0]
			}
		case <-ticker.C:
			if len(batch) > 0 {
				j.flush(batch)
				batch = batch[:0]
			}
		case <-j.stop:
		drain:
			for {
				select {
				case evt := <-j.events:
					batch = append(batch, evt)
				default:
					break drain
				}
			}
			if len(batch) > 0 {
				j.flush(batch)
			}
			return
		}
	}
}

// flush writes a batch of events to the database
func (j *Journal) flush(events []JournalEvent) {
	if j.db == nil || len(events) == 0 {
		return
	}
	tx, err := j.db.conn.Begin()
	if err != nil {
		j.log.Error("journal: begin tx", zap.Error(err))
		return
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`INSERT INTO fight_events (fight_id, event_type, participant_id, data, created_at) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		j.log.Error("journal: prepare", zap.Error(err))
		return
	}
	defer stmt.Close()

	for _, evt := range events {
		pid := sql.NullString{String: evt.ParticipantID, Valid: evt.ParticipantID != ""}
		data := sql.NullString{String: evt.Data, Valid: evt.Data != ""}
		if _, err := stmt.Exec(evt.FightID, evt.Type, pid, data, evt.Timestamp.Format(journalTimeLayout)); err != nil {
			j.log.Error("journal: insert", zap.String("type", evt.Type), zap.Error(err))
		}
	}
	if err := tx.Commit(); err != nil {
		j.log.Error("journal: commit", zap.Error(err))
	}
}
