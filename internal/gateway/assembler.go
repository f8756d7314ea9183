package gateway

import (
	"strings"
)

// DefaultHistoryWindow bounds how many history entries the assembled prompt
// carries (roughly the last five exchanges).
const DefaultHistoryWindow = 15

// Role identifies who produced a history turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one entry of recent conversation history.
type Turn struct {
	Role    Role
	Speaker string
	Text    string
}

// Request carries every optional input that can shape the assembled prompt.
// Persona is deliberately never embedded into the assembled string; it travels
// on the system-instruction channel of the model call.
type Request struct {
	Message string

	// RetrievedContext is ranked text from the document-search collaborator.
	// It is injected into the message body only when Persona is empty; a
	// persona prompt already embeds its own retrieval block.
	RetrievedContext string

	// ExtraContext is a lightweight freeform block (uploaded-file summaries).
	ExtraContext string

	// ReferenceFiles lists display names of files available for reference.
	ReferenceFiles []string

	History []Turn

	Persona string
}

// Assembler builds the user-turn content for a model call. Output is a pure
// function of the request: identical requests yield byte-identical prompts.
type Assembler struct {
	HistoryWindow int
}

// NewAssembler returns an Assembler with the default history window.
func NewAssembler() *Assembler {
	return &Assembler{HistoryWindow: DefaultHistoryWindow}
}

// Assemble combines the raw message with retrieval context, freeform context,
// and recent history, in that fixed order. An empty message passes through;
// input validation belongs to the API layer.
func (a *Assembler) Assemble(req Request) string {
	full := req.Message

	if req.Persona == "" && strings.TrimSpace(req.RetrievedContext) != "" {
		full = wrapRetrievedContext(req.RetrievedContext, req.Message)
	}

	if ctx := formatContext(req.ExtraContext, req.ReferenceFiles); ctx != "" {
		full += ctx
	}

	if history := a.formatHistory(req.History); history != "" {
		full = history + full
	}

	return full
}

func wrapRetrievedContext(retrieved, message string) string {
	var b strings.Builder
	b.WriteString("<reference documents>\n")
	b.WriteString(retrieved)
	b.WriteString("\n</reference documents>\n\n")
	b.WriteString("User question: ")
	b.WriteString(message)
	b.WriteString("\n\n**Important guidance:**\n")
	b.WriteString("- The documents above are reference material. Use them only when the question is actually related to their content.\n")
	b.WriteString("- For general conversation (greetings, weather, small talk), ignore the documents and answer naturally.\n")
	b.WriteString("- Refer to the documents only when the user explicitly mentions uploaded material or the question clearly concerns it.\n")
	b.WriteString("- Cite the source whenever you draw on a document.")
	return b.String()
}

func formatContext(extra string, files []string) string {
	var parts []string

	if extra != "" {
		parts = append(parts, "<uploaded file info>\n"+extra+"\n</uploaded file info>")
	}

	if len(files) > 0 {
		var list strings.Builder
		list.WriteString("<reference files>\n")
		for i, name := range files {
			if i > 0 {
				list.WriteString("\n")
			}
			list.WriteString("- " + name)
		}
		list.WriteString("\n</reference files>")
		parts = append(parts, list.String())
	}

	if len(parts) == 0 {
		return ""
	}

	return "\n\n" + strings.Join(parts, "\n\n") + "\n\nUse the information above as reference when answering."
}

// formatHistory renders the most recent window of history as speaker-labelled
// lines. Turns with unrecognized roles are skipped, not errored.
func (a *Assembler) formatHistory(history []Turn) string {
	if len(history) == 0 {
		return ""
	}

	window := a.HistoryWindow
	if window <= 0 {
		window = DefaultHistoryWindow
	}
	if len(history) > window {
		history = history[len(history)-window:]
	}

	var lines []string
	for _, turn := range history {
		switch turn.Role {
		case RoleUser, RoleAssistant:
			speaker := turn.Speaker
			if speaker == "" {
				if turn.Role == RoleUser {
					speaker = "User"
				} else {
					speaker = "Assistant"
				}
			}
			lines = append(lines, speaker+": "+turn.Text)
		}
	}
	if len(lines) == 0 {
		return ""
	}

	return "\n\n<previous conversation>\n" + strings.Join(lines, "\n") + "\n</previous conversation>\n"
}
