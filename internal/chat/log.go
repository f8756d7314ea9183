package chat

import (
	"errors"
	"time"

	"go.uber.org/zap"

	"companion/internal/gateway"
	"companion/internal/store"
)

// LogEntry is one persisted conversation turn.
type LogEntry struct {
	Role      gateway.Role `json:"role"`
	Speaker   string       `json:"speaker"`
	Text      string       `json:"text"`
	Timestamp time.Time    `json:"timestamp"`
}

// Log persists per-character conversation history in the record store,
// bounded to a maximum entry count. Oldest entries are dropped first.
type Log struct {
	store  store.RecordStore
	logger *zap.Logger
	limit  int
}

// NewLog returns a conversation log keeping at most limit entries per
// character.
func NewLog(rs store.RecordStore, limit int, logger *zap.Logger) *Log {
	if logger == nil {
		logger = zap.NewNop()
	}
	if limit <= 0 {
		limit = 200
	}
	return &Log{store: rs, logger: logger, limit: limit}
}

func (l *Log) key(characterID string) string {
	return characterID + "_history"
}

// Entries returns the stored history for a character, oldest first. A
// missing record is an empty history, not an error.
func (l *Log) Entries(characterID string) ([]LogEntry, error) {
	var entries []LogEntry
	if err := l.store.Load(l.key(characterID), &entries); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return entries, nil
}

// Append adds entries to a character's history, trimming to the configured
// limit, and persists the result.
func (l *Log) Append(characterID string, entries ...LogEntry) error {
	existing, err := l.Entries(characterID)
	if err != nil {
		l.logger.Warn("failed to load conversation history, starting over",
			zap.String("character_id", characterID), zap.Error(err))
		existing = nil
	}

	existing = append(existing, entries...)
	if len(existing) > l.limit {
		existing = existing[len(existing)-l.limit:]
	}
	return l.store.Save(l.key(characterID), existing)
}

// Recent returns up to n of the latest entries as assembler turns, oldest
// first.
func (l *Log) Recent(characterID string, n int) ([]gateway.Turn, error) {
	entries, err := l.Entries(characterID)
	if err != nil {
		return nil, err
	}
	if n > 0 && len(entries) > n {
		entries = entries[len(entries)-n:]
	}
	turns := make([]gateway.Turn, 0, len(entries))
	for _, e := range entries {
		turns = append(turns, gateway.Turn{Role: e.Role, Speaker: e.Speaker, Text: e.Text})
	}
	return turns, nil
}

// Clear removes a character's history.
func (l *Log) Clear(characterID string) error {
	err := l.store.Delete(l.key(characterID))
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	return err
}
