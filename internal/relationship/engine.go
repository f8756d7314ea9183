package relationship

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"companion/internal/store"
)

// Affection deltas per scoring rule.
const (
	gainDailyChat           = 1
	gainDeepConversation    = 3
	gainFirstMorningMessage = 2
	gainLateNightTalk       = 3
	gainWeeklyMilestone     = 5
	penaltyIgnoredTooLong   = -3
)

// deepConversationMinLen is the user-message length beyond which a turn
// counts as a deep conversation.
const deepConversationMinLen = 100

// ConversationResult summarizes the effect of one recorded conversation.
type ConversationResult struct {
	AffectionGained    int      `json:"affection_gained"`
	Reasons            []string `json:"reasons"`
	TotalConversations int      `json:"total_conversations"`
	CurrentStage       Stage    `json:"current_stage"`
}

// Summary is the externally visible relationship snapshot.
type Summary struct {
	AffectionLevel     int         `json:"affection_level"`
	RelationshipStage  Stage       `json:"relationship_stage"`
	TotalConversations int         `json:"total_conversations"`
	DaysKnown          int         `json:"days_known"`
	ConsecutiveDays    int         `json:"consecutive_days"`
	MilestonesCount    int         `json:"milestones_count"`
	RecentMilestones   []Milestone `json:"recent_milestones"`
	EmotionalMoments   int         `json:"emotional_moments_count"`
	LastInteraction    *time.Time  `json:"last_interaction,omitempty"`
	FirstInteraction   *time.Time  `json:"first_interaction,omitempty"`
	QualityScore       float64     `json:"conversation_quality_score"`
}

// Engine owns one character's affection ledger. All mutations are serialized
// through an internal mutex and flushed write-through to the record store.
// The in-memory ledger stays authoritative when a save fails.
type Engine struct {
	characterID string
	store       store.RecordStore
	logger      *zap.Logger
	now         func() time.Time

	mu     sync.Mutex
	ledger *Ledger
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides the engine's time source, used by tests to drive
// streak and time-of-day rules deterministically.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// NewEngine loads the persisted ledger for characterID, falling back to a
// fresh ledger when no record exists or the stored one cannot be read.
func NewEngine(characterID string, rs store.RecordStore, logger *zap.Logger, opts ...Option) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Engine{
		characterID: characterID,
		store:       rs,
		logger:      logger,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}

	var l Ledger
	err := rs.Load(e.storageKey(), &l)
	switch {
	case err == nil:
		e.ledger = &l
	case errors.Is(err, store.ErrNotFound):
		e.ledger = NewLedger(e.now())
	default:
		logger.Warn("failed to load relationship ledger, starting fresh",
			zap.String("character_id", characterID),
			zap.Error(err))
		e.ledger = NewLedger(e.now())
	}
	return e
}

func (e *Engine) storageKey() string {
	return e.characterID + "_relationship"
}

// persist flushes the ledger. Save failures are logged but never roll back
// the in-memory mutation; the next successful save reconciles.
func (e *Engine) persist() {
	if err := e.store.Save(e.storageKey(), e.ledger); err != nil {
		e.logger.Error("failed to persist relationship ledger",
			zap.String("character_id", e.characterID),
			zap.Error(err))
	}
}

// RecordConversation scores one user/assistant exchange and updates the
// ledger. The returned gain covers the conversation rules only; streak
// bonuses and absence penalties are applied with their own history entries.
func (e *Engine) RecordConversation(userMessage, aiResponse string, qualityScore float64) ConversationResult {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.now()
	l := e.ledger

	prevInteraction := l.LastInteraction
	l.TotalConversations++
	ts := now
	l.LastInteraction = &ts
	if l.FirstInteraction == nil {
		l.FirstInteraction = &ts
	}

	e.checkDailyInteraction(now)

	reasons := []string{"daily_chat"}
	gain := gainDailyChat

	if len(userMessage) > deepConversationMinLen {
		reasons = append(reasons, "deep_conversation")
		gain += gainDeepConversation
	}

	hour := now.Hour()
	if hour >= 6 && hour <= 9 {
		if l.TotalConversations == 1 ||
			(prevInteraction != nil && calendarDate(*prevInteraction).Before(calendarDate(now))) {
			reasons = append(reasons, "first_morning_message")
			gain += gainFirstMorningMessage
		}
	}
	if hour >= 22 || hour <= 2 {
		reasons = append(reasons, "late_night_talk")
		gain += gainLateNightTalk
	}

	if qualityScore > 0 {
		l.QualityScore = l.QualityScore*0.9 + qualityScore*0.1
	}

	oldStage, newStage := l.AddAffection(gain, "Conversation ("+strings.Join(reasons, ", ")+")", now)
	if newStage != oldStage {
		e.logger.Info("relationship stage changed",
			zap.String("character_id", e.characterID),
			zap.String("old_stage", string(oldStage)),
			zap.String("new_stage", string(newStage)))
	}

	e.checkMilestones(now)
	e.persist()

	return ConversationResult{
		AffectionGained:    gain,
		Reasons:            reasons,
		TotalConversations: l.TotalConversations,
		CurrentStage:       l.Stage(),
	}
}

// checkDailyInteraction advances the consecutive-day streak, applying the
// weekly bonus and long-absence penalty. Dates are compared as calendar
// days, not timestamps, so two conversations on the same day are a no-op.
func (e *Engine) checkDailyInteraction(now time.Time) {
	l := e.ledger
	today := calendarDate(now)

	if l.LastDailyCheck == "" {
		l.ConsecutiveDays = 1
		l.LastDailyCheck = today.Format("2006-01-02")
	} else {
		lastCheck, err := time.ParseInLocation("2006-01-02", l.LastDailyCheck, now.Location())
		if err != nil {
			e.logger.Warn("unparseable last_daily_check, resetting streak",
				zap.String("character_id", e.characterID),
				zap.String("value", l.LastDailyCheck))
			l.ConsecutiveDays = 1
			l.LastDailyCheck = today.Format("2006-01-02")
		} else if gap := daysBetween(lastCheck, today); gap == 1 {
			l.ConsecutiveDays++
			l.LastDailyCheck = today.Format("2006-01-02")
			if l.ConsecutiveDays%7 == 0 {
				l.AddAffection(gainWeeklyMilestone,
					fmt.Sprintf("weekly_milestone: %d consecutive days of conversation", l.ConsecutiveDays), now)
			}
		} else if gap > 1 {
			if gap > 7 {
				l.AddAffection(penaltyIgnoredTooLong,
					fmt.Sprintf("ignored_too_long: %d days without conversation", gap), now)
			}
			l.ConsecutiveDays = 1
			l.LastDailyCheck = today.Format("2006-01-02")
		}
	}

	if l.FirstInteraction != nil {
		l.DaysKnown = daysBetween(calendarDate(*l.FirstInteraction), today)
	}
}

// checkMilestones fires count- and time-based milestones at most once each.
// Count milestones check exact equality; the engine always increments the
// conversation counter by one, so no value can be skipped.
func (e *Engine) checkMilestones(now time.Time) {
	l := e.ledger

	countMilestones := []struct {
		kind  string
		count int
	}{
		{"first_conversation", 1},
		{"10_conversations", 10},
		{"50_conversations", 50},
		{"100_conversations", 100},
	}
	for _, m := range countMilestones {
		if l.TotalConversations == m.count && !l.HasMilestone(m.kind) {
			l.triggerMilestone(m.kind, now)
			e.logger.Info("milestone reached",
				zap.String("character_id", e.characterID),
				zap.String("milestone", m.kind))
		}
	}

	if l.DaysKnown >= 7 && !l.HasMilestone("1_week_known") {
		l.triggerMilestone("1_week_known", now)
	}
	if l.DaysKnown >= 30 && !l.HasMilestone("1_month_known") {
		l.triggerMilestone("1_month_known", now)
	}
}

// RecordEmotionalMoment appends an emotional moment and applies its
// intensity as an affection delta with its own history entry. Intensity is
// clamped to [1,10].
func (e *Engine) RecordEmotionalMoment(kind, description string, intensity int) EmotionalMoment {
	e.mu.Lock()
	defer e.mu.Unlock()

	if intensity < 1 {
		intensity = 1
	}
	if intensity > 10 {
		intensity = 10
	}

	now := e.now()
	moment := EmotionalMoment{
		Type:           kind,
		Description:    description,
		Intensity:      intensity,
		Timestamp:      now,
		AffectionLevel: e.ledger.Affection(),
	}
	e.ledger.EmotionalMoments = append(e.ledger.EmotionalMoments, moment)

	e.ledger.AddAffection(intensity, "Emotional moment: "+kind, now)
	e.persist()
	return moment
}

// Summary returns a snapshot of the relationship state.
func (e *Engine) Summary() Summary {
	e.mu.Lock()
	defer e.mu.Unlock()

	l := e.ledger
	recent := l.Milestones
	if len(recent) > 5 {
		recent = recent[len(recent)-5:]
	}
	out := make([]Milestone, len(recent))
	copy(out, recent)

	return Summary{
		AffectionLevel:     l.Affection(),
		RelationshipStage:  l.Stage(),
		TotalConversations: l.TotalConversations,
		DaysKnown:          l.DaysKnown,
		ConsecutiveDays:    l.ConsecutiveDays,
		MilestonesCount:    len(l.Milestones),
		RecentMilestones:   out,
		EmotionalMoments:   len(l.EmotionalMoments),
		LastInteraction:    l.LastInteraction,
		FirstInteraction:   l.FirstInteraction,
		QualityScore:       l.QualityScore,
	}
}

// ContextForAI renders the relationship state as a text block injected into
// the persona channel, including recent milestones and stage guidance.
func (e *Engine) ContextForAI() string {
	e.mu.Lock()
	defer e.mu.Unlock()

	l := e.ledger
	stage := l.Stage()

	var b strings.Builder
	b.WriteString("[Current relationship]\n")
	fmt.Fprintf(&b, "- Stage: %s (%s)\n", stage, stage.Description())
	fmt.Fprintf(&b, "- Affection: %d/100\n", l.Affection())
	fmt.Fprintf(&b, "- Days known: %d\n", l.DaysKnown)
	fmt.Fprintf(&b, "- Total conversations: %d\n", l.TotalConversations)
	fmt.Fprintf(&b, "- Consecutive days talking: %d\n", l.ConsecutiveDays)

	if len(l.Milestones) > 0 {
		recent := l.Milestones
		if len(recent) > 3 {
			recent = recent[len(recent)-3:]
		}
		b.WriteString("\n[Recent milestones]\n")
		for _, m := range recent {
			fmt.Fprintf(&b, "- %s\n", m.Type)
		}
	}

	if len(l.EmotionalMoments) > 0 {
		recent := l.EmotionalMoments
		if len(recent) > 3 {
			recent = recent[len(recent)-3:]
		}
		b.WriteString("\n[Recent emotional moments]\n")
		for _, m := range recent {
			fmt.Fprintf(&b, "- %s: %s\n", m.Type, m.Description)
		}
	}

	if g := stage.Guidance(); g != "" {
		b.WriteString("\nGuidance: " + g)
	}
	return b.String()
}

// calendarDate truncates a timestamp to midnight in its own location.
func calendarDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// daysBetween counts whole calendar days from a to b, immune to DST-shortened
// days. Both arguments are expected to be midnight-truncated.
func daysBetween(a, b time.Time) int {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	ua := time.Date(ay, am, ad, 0, 0, 0, 0, time.UTC)
	ub := time.Date(by, bm, bd, 0, 0, 0, 0, time.UTC)
	return int(ub.Sub(ua).Hours() / 24)
}
