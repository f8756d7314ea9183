package relationship

// Stage is a discrete relationship phase derived from the affection score.
type Stage string

const (
	StageStranger     Stage = "stranger"
	StageAcquaintance Stage = "acquaintance"
	StageFriend       Stage = "friend"
	StageCloseFriend  Stage = "close_friend"
	StageRomantic     Stage = "romantic"
)

// stageThresholds maps minimum clamped scores to stages, highest first.
var stageThresholds = []struct {
	min   int
	stage Stage
}{
	{80, StageRomantic},
	{60, StageCloseFriend},
	{40, StageFriend},
	{20, StageAcquaintance},
	{0, StageStranger},
}

// ClampScore bounds a raw affection score to the displayable [0,100] range.
// The ledger keeps the unclamped value; only display and stage lookup clamp.
func ClampScore(score int) int {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

// StageFor derives the relationship stage from a raw affection score.
func StageFor(score int) Stage {
	clamped := ClampScore(score)
	for _, t := range stageThresholds {
		if clamped >= t.min {
			return t.stage
		}
	}
	return StageStranger
}

// Description returns a short human-readable summary of the stage, used when
// building the relationship context handed to the model.
func (s Stage) Description() string {
	switch s {
	case StageStranger:
		return "We have only just met and are cautiously getting to know each other."
	case StageAcquaintance:
		return "We recognize each other and are slowly getting comfortable."
	case StageFriend:
		return "We are friends now and can talk at ease."
	case StageCloseFriend:
		return "We have become close friends who share deeper conversations."
	case StageRomantic:
		return "Our bond is special; we hold deep feelings for each other."
	}
	return string(s)
}

// Guidance returns behavioral advice for the model matching the stage.
func (s Stage) Guidance() string {
	switch s {
	case StageStranger:
		return "You have just met. Be polite and friendly; avoid overly personal questions."
	case StageAcquaintance:
		return "You are getting to know each other. Share interests and look for common ground."
	case StageFriend:
		return "Talk casually as friends. Personal stories are welcome."
	case StageCloseFriend:
		return "Deep trust has formed. Communicate honestly and emotionally."
	case StageRomantic:
		return "This is a special relationship. Express affection and share deep feelings."
	}
	return ""
}
