// Package changelog keeps the append-only audit trail of record
// mutations and answers which entry an undo should revert next.
package changelog

import (
	"sync"
	"time"

	"github.com/mesh-intelligence/stockroom/pkg/types"
)

// Log is an in-memory, append-only sequence of changes. It is safe for
// concurrent use.
type Log struct {
	mu       sync.RWMutex
	now      func() time.Time
	entries  []types.Change
	reverted map[int64]bool
}

// New creates an empty log. A nil now uses time.Now.
func New(now func() time.Time) *Log {
	if now == nil {
		now = time.Now
	}
	return &Log{now: now, reverted: make(map[int64]bool)}
}

// Next builds the change that would be appended next without appending
// it. The caller persists it and then calls Append, so a sink failure
// leaves the log unchanged. Before and After are copied.
func (l *Log) Next(kind types.ChangeKind, before, after *types.Record, reverts int64) types.Change {
	l.mu.RLock()
	seq := int64(len(l.entries)) + 1
	if n := len(l.entries); n > 0 {
		seq = l.entries[n-1].Seq + 1
	}
	l.mu.RUnlock()

	c := types.Change{Seq: seq, Kind: kind, Reverts: reverts, At: l.now().UTC()}
	if before != nil {
		b := before.Clone()
		c.Before = &b
		c.RecordID, c.Group = b.ID, b.GroupName
	}
	if after != nil {
		a := after.Clone()
		c.After = &a
		c.RecordID, c.Group = a.ID, a.GroupName
	}
	return c
}

// Append adds c to the log. Entries must arrive in Seq order; callers
// serialize Next and Append.
func (l *Log) Append(c types.Change) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, c)
	if c.Reverts != 0 {
		l.reverted[c.Reverts] = true
	}
}

// Replace swaps the whole log, used when state is reloaded from a port.
func (l *Log) Replace(changes []types.Change) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append([]types.Change(nil), changes...)
	l.reverted = make(map[int64]bool)
	for _, c := range l.entries {
		if c.Reverts != 0 {
			l.reverted[c.Reverts] = true
		}
	}
}

// Entries returns a copy of the log in append order.
func (l *Log) Entries() []types.Change {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]types.Change(nil), l.entries...)
}

// Len returns the number of entries.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// Undoable returns the most recent change that is neither an undo itself
// nor already undone.
func (l *Log) Undoable() (types.Change, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for i := len(l.entries) - 1; i >= 0; i-- {
		c := l.entries[i]
		if c.Reverts != 0 || l.reverted[c.Seq] {
			continue
		}
		return c, true
	}
	return types.Change{}, false
}

// ForRecord returns the changes touching id in append order.
func (l *Log) ForRecord(id string) []types.Change {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var out []types.Change
	for _, c := range l.entries {
		if c.RecordID == id {
			out = append(out, c)
		}
	}
	return out
}
