package memstore

import (
	"context"
	"sync"

	"gitlab.com/yelinaung/stokvel-bot/internal/models"
)

// AuditLog is an in-memory ledger.AuditSink.
type AuditLog struct {
	mu      sync.Mutex
	entries []models.AuditEntry
	err     error
}

// Append records entry, or returns the error set with FailWith.
func (a *AuditLog) Append(ctx context.Context, entry models.AuditEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.err != nil {
		return a.err
	}
	entry.ID = int64(len(a.entries) + 1)
	a.entries = append(a.entries, entry)
	return nil
}

// FailWith makes every following Append fail with err. Pass nil to recover.
func (a *AuditLog) FailWith(err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.err = err
}

// Entries returns a copy of everything appended so far.
func (a *AuditLog) Entries() []models.AuditEntry {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]models.AuditEntry, len(a.entries))
	copy(out, a.entries)
	return out
}

// Actions returns the action of every entry in order.
func (a *AuditLog) Actions() []string {
	entries := a.Entries()
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Action
	}
	return out
}
