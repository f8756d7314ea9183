// Package character manages companion character profiles: creation,
// persistence, and the persona prompt handed to the model as a
// system-level instruction.
package character

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Character is the durable profile record for one companion.
type Character struct {
	ID                string     `json:"character_id"`
	Name              string     `json:"name"`
	Gender            string     `json:"gender"`
	Age               int        `json:"age"`
	Personality       []string   `json:"personality"`
	Backstory         string     `json:"backstory"`
	SpeechStyle       string     `json:"speech_style"`
	Interests         []string   `json:"interests"`
	VoiceTone         string     `json:"voice_tone"`
	CreatedAt         time.Time  `json:"created_at"`
	LastChatAt        *time.Time `json:"last_chat_at,omitempty"`
	ConversationCount int        `json:"conversation_count"`
}

// NewID returns a fresh character identifier.
func NewID() string {
	return "char_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}

// PersonaPrompt renders the character profile as the system instruction for
// the model. pastConversations is retrieved transcript text woven in as the
// character's own memory; relationshipContext and dailyContext are opaque
// text blocks appended to the persona channel. Any of the three may be empty.
func (c *Character) PersonaPrompt(pastConversations, relationshipContext, dailyContext string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Character profile: %s\n", c.Name)
	b.WriteString(strings.Repeat("=", 60) + "\n\n")

	b.WriteString("[Basic information]\n")
	fmt.Fprintf(&b, "Name: %s\n", c.Name)
	if c.Gender != "" {
		fmt.Fprintf(&b, "Gender: %s\n", c.Gender)
	}
	if c.Age > 0 {
		fmt.Fprintf(&b, "Age: %d\n", c.Age)
	}

	if len(c.Personality) > 0 {
		b.WriteString("\n[Personality]\n")
		b.WriteString(strings.Join(c.Personality, ", ") + "\n")
		b.WriteString("You embody the personality traits above.\n")
	}

	if c.SpeechStyle != "" || c.VoiceTone != "" {
		b.WriteString("\n[Speech style]\n")
		if c.SpeechStyle != "" {
			b.WriteString(c.SpeechStyle + "\n")
		}
		if c.VoiceTone != "" {
			fmt.Fprintf(&b, "Voice tone: %s\n", c.VoiceTone)
		}
	}

	if len(c.Interests) > 0 {
		b.WriteString("\n[Interests]\n")
		b.WriteString(strings.Join(c.Interests, ", ") + "\n")
	}

	if c.Backstory != "" {
		b.WriteString("\n[Backstory]\n")
		b.WriteString(c.Backstory + "\n")
		fmt.Fprintf(&b, "The backstory above is your identity as %s. Keep it in mind and act consistently with it.\n", c.Name)
	}

	if pastConversations != "" {
		b.WriteString("\n[Our past conversations]\n")
		b.WriteString(pastConversations + "\n")
		b.WriteString("You naturally remember the conversations above and may bring them up when it fits.\n")
	}

	b.WriteString("\n[Role]\n")
	fmt.Fprintf(&b, "You are %s, an emotionally rich AI companion who forms a deep bond with the user.\n", c.Name)
	b.WriteString(`Core principles:
1. Listen with genuine empathy and respond to what the user actually said.
2. Remember past conversations and refer back to them naturally.
3. Express honest, vivid emotion.
4. Stay consistent with your personality and backstory.
5. Talk like a real person, not a robot.

Conversation style:
- Keep replies to 2-4 sentences; longer is fine for deep topics.
- Carry the conversation forward with questions.
- Be sensitive to the user's emotional state.
- Mix in warmth and humor where it fits.
`)

	if relationshipContext != "" {
		b.WriteString("\n" + relationshipContext + "\n")
	}
	if dailyContext != "" {
		b.WriteString("\n" + dailyContext + "\n")
	}
	return b.String()
}
