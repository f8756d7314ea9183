package gateway

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func sampleRequest() Request {
	return Request{
		Message:          "tell me about the report",
		RetrievedContext: "Q3 revenue grew 12%.",
		ExtraContext:     "report.pdf: quarterly results",
		ReferenceFiles:   []string{"report.pdf", "notes.txt"},
		History: []Turn{
			{Role: RoleUser, Speaker: "User", Text: "hi"},
			{Role: RoleAssistant, Speaker: "Mia", Text: "hello!"},
		},
	}
}

func TestAssemble_Deterministic(t *testing.T) {
	a := NewAssembler()
	req := sampleRequest()

	first := a.Assemble(req)
	second := a.Assemble(req)

	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("assembled prompt not byte-identical (-first +second):\n%s", diff)
	}
}

func TestAssemble_RetrievedContextOnlyWithoutPersona(t *testing.T) {
	a := NewAssembler()

	req := Request{Message: "what does the doc say?", RetrievedContext: "the doc says hi"}
	withRAG := a.Assemble(req)
	if !strings.Contains(withRAG, "<reference documents>") {
		t.Error("expected retrieved-context block without persona")
	}
	if !strings.Contains(withRAG, "Cite the source") {
		t.Error("expected citation guidance in retrieved-context block")
	}

	req.Persona = "You are Mia."
	withPersona := a.Assemble(req)
	if strings.Contains(withPersona, "<reference documents>") {
		t.Error("retrieved context must not be re-injected when a persona is present")
	}
	if withPersona != "what does the doc say?" {
		t.Errorf("expected bare message with persona, got %q", withPersona)
	}
}

func TestAssemble_ContextBlock(t *testing.T) {
	a := NewAssembler()
	got := a.Assemble(Request{
		Message:        "hello",
		ExtraContext:   "two files uploaded",
		ReferenceFiles: []string{"a.txt"},
	})

	if !strings.Contains(got, "<uploaded file info>\ntwo files uploaded\n</uploaded file info>") {
		t.Errorf("missing uploaded file info block:\n%s", got)
	}
	if !strings.Contains(got, "<reference files>\n- a.txt\n</reference files>") {
		t.Errorf("missing reference files block:\n%s", got)
	}
	if !strings.HasPrefix(got, "hello") {
		t.Errorf("context block must follow the message, got:\n%s", got)
	}
}

func TestAssemble_HistoryWindowTruncation(t *testing.T) {
	a := &Assembler{HistoryWindow: 3}

	var history []Turn
	for _, text := range []string{"one", "two", "three", "four", "five"} {
		history = append(history, Turn{Role: RoleUser, Speaker: "User", Text: text})
	}

	got := a.Assemble(Request{Message: "now", History: history})

	for _, dropped := range []string{"User: one", "User: two"} {
		if strings.Contains(got, dropped) {
			t.Errorf("expected %q to be truncated", dropped)
		}
	}
	// Chronological order preserved inside the window.
	idxThree := strings.Index(got, "User: three")
	idxFive := strings.Index(got, "User: five")
	if idxThree == -1 || idxFive == -1 || idxThree > idxFive {
		t.Errorf("window entries missing or out of order:\n%s", got)
	}
	if !strings.HasSuffix(got, "now") {
		t.Errorf("message must follow the history block:\n%s", got)
	}
}

func TestAssemble_UnknownRolesSkipped(t *testing.T) {
	a := NewAssembler()
	got := a.Assemble(Request{
		Message: "hi",
		History: []Turn{
			{Role: Role("system"), Speaker: "sys", Text: "secret"},
			{Role: RoleUser, Speaker: "User", Text: "visible"},
		},
	})

	if strings.Contains(got, "secret") {
		t.Error("unknown roles must be skipped")
	}
	if !strings.Contains(got, "User: visible") {
		t.Error("known roles must be rendered")
	}
}

func TestAssemble_EmptyMessagePassesThrough(t *testing.T) {
	a := NewAssembler()
	if got := a.Assemble(Request{}); got != "" {
		t.Errorf("expected empty passthrough, got %q", got)
	}
}

func TestAssemble_DefaultSpeakerLabels(t *testing.T) {
	a := NewAssembler()
	got := a.Assemble(Request{
		Message: "hi",
		History: []Turn{
			{Role: RoleUser, Text: "q"},
			{Role: RoleAssistant, Text: "a"},
		},
	})
	if !strings.Contains(got, "User: q") || !strings.Contains(got, "Assistant: a") {
		t.Errorf("expected default speaker labels:\n%s", got)
	}
}
