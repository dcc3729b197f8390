// Package holdstate tracks drawing-wide first-piece holds. The SQL row
// in drawing_holds is the source of truth; a Redis mirror is kept for
// dashboards and andon displays that poll hold status without touching
// the database. Mirror writes are best effort: a Redis outage degrades
// the displays, never the gate.
package holdstate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"chipsight/store"
)

const keyPrefix = "chipsight:hold:"

type Manager struct {
	db   *store.DB
	rdb  *redis.Client
	logf func(format string, args ...any)
}

// New builds a Manager. rdb may be nil; holds then live in SQL only.
func New(db *store.DB, rdb *redis.Client) *Manager {
	return &Manager{db: db, rdb: rdb, logf: log.Printf}
}

func (m *Manager) SetLogFunc(f func(format string, args ...any)) { m.logf = f }

// Held reports whether a drawing is under a first-piece hold and which
// log imposed it. Always answered from SQL.
func (m *Manager) Held(drawingID int64) (int64, bool, error) {
	h, err := m.db.GetDrawingHold(drawingID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return h.BlockingLogID, true, nil
}

// Set raises the hold for a drawing on behalf of blockingLogID.
func (m *Manager) Set(drawingID, blockingLogID int64) error {
	if err := m.db.SetDrawingHold(drawingID, blockingLogID); err != nil {
		return err
	}
	m.mirrorSet(drawingID, blockingLogID)
	return nil
}

// Clear releases the hold, but only if blockingLogID imposed it. Clearing
// a hold that was already released is not an error.
func (m *Manager) Clear(drawingID, blockingLogID int64) error {
	err := m.db.ClearDrawingHoldByLog(drawingID, blockingLogID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return err
	}
	if err == nil {
		m.mirrorClear(drawingID)
	}
	return nil
}

// Rebuild resyncs the Redis mirror from SQL, called on startup so a
// mirror that drifted during downtime matches the truth again.
func (m *Manager) Rebuild(ctx context.Context) error {
	if m.rdb == nil {
		return nil
	}
	holds, err := m.db.ListDrawingHolds()
	if err != nil {
		return fmt.Errorf("list holds: %w", err)
	}
	iter := m.rdb.Scan(ctx, 0, keyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		if err := m.rdb.Del(ctx, iter.Val()).Err(); err != nil {
			return fmt.Errorf("clear mirror: %w", err)
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("scan mirror: %w", err)
	}
	for _, h := range holds {
		if err := m.rdb.Set(ctx, key(h.DrawingID), h.BlockingLogID, 0).Err(); err != nil {
			return fmt.Errorf("mirror hold for drawing %d: %w", h.DrawingID, err)
		}
	}
	m.logf("holdstate: mirror rebuilt, %d holds", len(holds))
	return nil
}

// MirroredHold reads the Redis mirror, for diagnostics.
func (m *Manager) MirroredHold(ctx context.Context, drawingID int64) (int64, bool, error) {
	if m.rdb == nil {
		return 0, false, nil
	}
	v, err := m.rdb.Get(ctx, key(drawingID)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("bad mirror value %q: %w", v, err)
	}
	return id, true, nil
}

func (m *Manager) mirrorSet(drawingID, blockingLogID int64) {
	if m.rdb == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := m.rdb.Set(ctx, key(drawingID), blockingLogID, 0).Err(); err != nil {
		m.logf("holdstate: mirror set failed for drawing %d: %v", drawingID, err)
	}
}

func (m *Manager) mirrorClear(drawingID int64) {
	if m.rdb == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := m.rdb.Del(ctx, key(drawingID)).Err(); err != nil {
		m.logf("holdstate: mirror clear failed for drawing %d: %v", drawingID, err)
	}
}

func key(drawingID int64) string {
	return keyPrefix + strconv.FormatInt(drawingID, 10)
}
