package workflow

import (
	"fmt"
	"sync"
)

// LockSet hands out named mutexes so actions touching the same log or
// drawing serialize while unrelated work proceeds. Locks are created on
// first use and never discarded; the key space is bounded by live logs
// and drawings.
//
// Lock order is always log before drawing. Both workflow and the quality
// gate share one LockSet so the order holds across packages.
type LockSet struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewLockSet() *LockSet {
	return &LockSet{locks: make(map[string]*sync.Mutex)}
}

// Lock acquires the named mutex and returns its unlock func.
func (ls *LockSet) Lock(key string) func() {
	ls.mu.Lock()
	m, ok := ls.locks[key]
	if !ok {
		m = &sync.Mutex{}
		ls.locks[key] = m
	}
	ls.mu.Unlock()
	m.Lock()
	return m.Unlock
}

func LogKey(logID int64) string         { return fmt.Sprintf("log:%d", logID) }
func DrawingKey(drawingID int64) string { return fmt.Sprintf("drawing:%d", drawingID) }
func MachineKey(machineID int64) string { return fmt.Sprintf("machine:%d", machineID) }
