package character

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"companion/internal/store"
)

// ErrNotFound is returned when the requested character does not exist.
var ErrNotFound = errors.New("character not found")

// CreateParams carries the caller-supplied fields for a new character.
type CreateParams struct {
	Name        string   `json:"name"`
	Gender      string   `json:"gender"`
	Age         int      `json:"age"`
	Personality []string `json:"personality"`
	Backstory   string   `json:"backstory"`
	SpeechStyle string   `json:"speech_style"`
	Interests   []string `json:"interests"`
	VoiceTone   string   `json:"voice_tone"`
}

// Manager persists character profiles in the record store, one record per
// character keyed by its identifier.
type Manager struct {
	store  store.RecordStore
	logger *zap.Logger
	now    func() time.Time
}

// NewManager returns a character manager backed by rs.
func NewManager(rs store.RecordStore, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{store: rs, logger: logger, now: time.Now}
}

// Create stores a new character and returns it with a fresh identifier.
func (m *Manager) Create(params CreateParams) (*Character, error) {
	if strings.TrimSpace(params.Name) == "" {
		return nil, errors.New("character name is required")
	}

	c := &Character{
		ID:          NewID(),
		Name:        params.Name,
		Gender:      params.Gender,
		Age:         params.Age,
		Personality: params.Personality,
		Backstory:   params.Backstory,
		SpeechStyle: params.SpeechStyle,
		Interests:   params.Interests,
		VoiceTone:   params.VoiceTone,
		CreatedAt:   m.now(),
	}
	if err := m.store.Save(c.ID, c); err != nil {
		return nil, fmt.Errorf("failed to save character: %w", err)
	}
	m.logger.Info("character created",
		zap.String("character_id", c.ID),
		zap.String("name", c.Name))
	return c, nil
}

// Get loads a character by identifier.
func (m *Manager) Get(id string) (*Character, error) {
	var c Character
	if err := m.store.Load(id, &c); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load character %s: %w", id, err)
	}
	return &c, nil
}

// List returns all stored characters. Records that fail to load are skipped
// with a warning rather than failing the whole listing.
func (m *Manager) List() ([]*Character, error) {
	keys, err := m.store.Keys("char_")
	if err != nil {
		return nil, fmt.Errorf("failed to list characters: %w", err)
	}

	chars := make([]*Character, 0, len(keys))
	for _, key := range keys {
		// Relationship ledgers and chat logs share the key prefix; skip them.
		if strings.HasSuffix(key, "_relationship") || strings.HasSuffix(key, "_history") {
			continue
		}
		var c Character
		if err := m.store.Load(key, &c); err != nil {
			m.logger.Warn("skipping unreadable character record",
				zap.String("key", key), zap.Error(err))
			continue
		}
		chars = append(chars, &c)
	}
	return chars, nil
}

// RecordChat bumps the conversation counter and last-chat timestamp after a
// completed exchange.
func (m *Manager) RecordChat(id string) error {
	c, err := m.Get(id)
	if err != nil {
		return err
	}
	c.ConversationCount++
	ts := m.now()
	c.LastChatAt = &ts
	return m.store.Save(c.ID, c)
}

// Delete removes a character and its relationship ledger.
func (m *Manager) Delete(id string) error {
	if _, err := m.Get(id); err != nil {
		return err
	}
	if err := m.store.Delete(id); err != nil {
		return fmt.Errorf("failed to delete character %s: %w", id, err)
	}
	if err := m.store.Delete(id + "_relationship"); err != nil && !errors.Is(err, store.ErrNotFound) {
		m.logger.Warn("failed to delete relationship ledger",
			zap.String("character_id", id), zap.Error(err))
	}
	m.logger.Info("character deleted", zap.String("character_id", id))
	return nil
}
