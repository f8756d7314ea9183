package relationship

import (
	"time"
)

// HistoryEntry records one affection change in the append-only audit log.
type HistoryEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Change    int       `json:"change"`
	Reason    string    `json:"reason"`
	OldLevel  int       `json:"old_level"`
	NewLevel  int       `json:"new_level"`
}

// Milestone marks a one-time relationship event.
type Milestone struct {
	Type            string    `json:"type"`
	Timestamp       time.Time `json:"timestamp"`
	AffectionAtTime int       `json:"affection_at_time"`
}

// EmotionalMoment captures a significant emotional exchange.
type EmotionalMoment struct {
	Type           string    `json:"type"`
	Description    string    `json:"description"`
	Intensity      int       `json:"intensity"` // 1-10
	Timestamp      time.Time `json:"timestamp"`
	AffectionLevel int       `json:"affection_level"`
}

// Ledger is the durable per-character relationship record. AffectionLevel is
// stored unclamped so history arithmetic stays exact; callers read the
// clamped value through Affection. Stage is never stored, always derived.
type Ledger struct {
	AffectionLevel     int               `json:"affection_level"`
	TotalConversations int               `json:"total_conversations"`
	FirstInteraction   *time.Time        `json:"first_interaction,omitempty"`
	LastInteraction    *time.Time        `json:"last_interaction,omitempty"`
	ConsecutiveDays    int               `json:"consecutive_days"`
	LastDailyCheck     string            `json:"last_daily_check,omitempty"` // calendar date, YYYY-MM-DD
	DaysKnown          int               `json:"days_known"`
	History            []HistoryEntry    `json:"affection_history"`
	Milestones         []Milestone       `json:"milestones"`
	EmotionalMoments   []EmotionalMoment `json:"emotional_moments"`
	QualityScore       float64           `json:"conversation_quality_score"`
}

// NewLedger returns a fresh ledger for a character first seen at now.
func NewLedger(now time.Time) *Ledger {
	first := now
	return &Ledger{
		FirstInteraction: &first,
		History:          []HistoryEntry{},
		Milestones:       []Milestone{},
		EmotionalMoments: []EmotionalMoment{},
	}
}

// Affection returns the display affection level, clamped to [0,100].
func (l *Ledger) Affection() int {
	return ClampScore(l.AffectionLevel)
}

// Stage derives the current relationship stage from the affection level.
func (l *Ledger) Stage() Stage {
	return StageFor(l.AffectionLevel)
}

// HasMilestone reports whether the named milestone has already fired.
func (l *Ledger) HasMilestone(kind string) bool {
	for _, m := range l.Milestones {
		if m.Type == kind {
			return true
		}
	}
	return false
}

// triggerMilestone appends a milestone marker. Callers must dedupe with
// HasMilestone first; the ledger itself does not reject duplicates.
func (l *Ledger) triggerMilestone(kind string, now time.Time) Milestone {
	m := Milestone{
		Type:            kind,
		Timestamp:       now,
		AffectionAtTime: l.Affection(),
	}
	l.Milestones = append(l.Milestones, m)
	return m
}

// AddAffection applies a score delta, appends one history entry, and fires a
// stage-upgrade milestone when the derived stage changes. It reports the
// stage transition so callers can log or react to it.
func (l *Ledger) AddAffection(amount int, reason string, now time.Time) (oldStage, newStage Stage) {
	oldLevel := l.Affection()
	oldStage = l.Stage()

	l.AffectionLevel += amount
	newStage = l.Stage()

	l.History = append(l.History, HistoryEntry{
		Timestamp: now,
		Change:    amount,
		Reason:    reason,
		OldLevel:  oldLevel,
		NewLevel:  l.Affection(),
	})

	if newStage != oldStage {
		kind := "relationship_stage_upgrade_" + string(newStage)
		if !l.HasMilestone(kind) {
			l.triggerMilestone(kind, now)
		}
	}
	return oldStage, newStage
}
