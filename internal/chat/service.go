// Package chat orchestrates one conversation turn: persona and context
// building, prompt assembly, generation, and relationship bookkeeping.
package chat

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"companion/internal/character"
	"companion/internal/daily"
	"companion/internal/gateway"
	"companion/internal/relationship"
	"companion/internal/retrieval"
	"companion/internal/store"
)

// Options tune the service's behavior.
type Options struct {
	// HistoryWindow is the number of recent log entries fed to the prompt.
	HistoryWindow int
	// HistoryLimit bounds the persisted conversation log per character.
	HistoryLimit int
	// CountFailedResponses controls whether a turn whose reply is the
	// gateway's terminal failure text still advances relationship state.
	CountFailedResponses bool
}

// DefaultOptions mirrors the service defaults.
func DefaultOptions() Options {
	return Options{
		HistoryWindow: gateway.DefaultHistoryWindow,
		HistoryLimit:  200,
	}
}

// Response is the outcome of a completed chat turn.
type Response struct {
	Reply        string                           `json:"response"`
	Relationship *relationship.ConversationResult `json:"relationship,omitempty"`
}

// Service wires the chat pipeline together. It is safe for concurrent use;
// turns for the same character are serialized.
type Service struct {
	characters *character.Manager
	gw         *gateway.Gateway
	assembler  *gateway.Assembler
	searcher   retrieval.Searcher
	log        *Log
	store      store.RecordStore
	logger     *zap.Logger
	opts       Options
	locks      *LockManager
	now        func() time.Time

	mu      sync.Mutex
	engines map[string]*relationship.Engine
}

// NewService builds a chat service on top of the shared record store.
func NewService(rs store.RecordStore, characters *character.Manager, gw *gateway.Gateway, searcher retrieval.Searcher, opts Options, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if searcher == nil {
		searcher = retrieval.NoopSearcher{}
	}
	if opts.HistoryWindow <= 0 {
		opts.HistoryWindow = gateway.DefaultHistoryWindow
	}
	return &Service{
		characters: characters,
		gw:         gw,
		assembler:  &gateway.Assembler{HistoryWindow: opts.HistoryWindow},
		searcher:   searcher,
		log:        NewLog(rs, opts.HistoryLimit, logger.Named("chatlog")),
		store:      rs,
		logger:     logger,
		opts:       opts,
		locks:      NewLockManager(),
		now:        time.Now,
	}
}

// engineFor returns the single relationship engine owned by this process for
// a character, creating it on first use.
func (s *Service) engineFor(characterID string) *relationship.Engine {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.engines[characterID]; ok {
		return e
	}
	if s.engines == nil {
		s.engines = make(map[string]*relationship.Engine)
	}
	e := relationship.NewEngine(characterID, s.store, s.logger.Named("relationship"))
	s.engines[characterID] = e
	return e
}

// Relationship exposes the relationship summary for a character.
func (s *Service) Relationship(characterID string) relationship.Summary {
	return s.engineFor(characterID).Summary()
}

// RecordEmotionalMoment forwards an emotional moment to the character's
// relationship engine.
func (s *Service) RecordEmotionalMoment(characterID, kind, description string, intensity int) relationship.EmotionalMoment {
	return s.engineFor(characterID).RecordEmotionalMoment(kind, description, intensity)
}

// History returns the persisted conversation log for a character.
func (s *Service) History(characterID string) ([]LogEntry, error) {
	return s.log.Entries(characterID)
}

// ClearHistory wipes a character's conversation log.
func (s *Service) ClearHistory(characterID string) error {
	return s.log.Clear(characterID)
}

// prepared carries everything a generation attempt needs.
type prepared struct {
	char    *character.Character
	engine  *relationship.Engine
	prompt  string
	persona string
	storeID string
}

func (s *Service) prepare(ctx context.Context, characterID, message string) (*prepared, error) {
	char, err := s.characters.Get(characterID)
	if err != nil {
		return nil, err
	}
	engine := s.engineFor(characterID)

	rc, err := s.searcher.Search(ctx, characterID, message)
	if err != nil {
		s.logger.Warn("retrieval failed, continuing without context",
			zap.String("character_id", characterID), zap.Error(err))
		rc = retrieval.Context{}
	}

	sum := engine.Summary()
	dailyCtx := daily.FullContext(s.now(), char.Name, sum.LastInteraction)
	persona := char.PersonaPrompt(rc.SearchedText, engine.ContextForAI(), dailyCtx)

	history, err := s.log.Recent(characterID, s.opts.HistoryWindow)
	if err != nil {
		s.logger.Warn("failed to load history, continuing without it",
			zap.String("character_id", characterID), zap.Error(err))
	}

	prompt := s.assembler.Assemble(gateway.Request{
		Message:          message,
		RetrievedContext: rc.SearchedText,
		History:          history,
		Persona:          persona,
	})

	return &prepared{
		char:    char,
		engine:  engine,
		prompt:  prompt,
		persona: persona,
		storeID: rc.StoreName,
	}, nil
}

// finish logs the exchange and advances relationship state. A reply ending in
// the gateway failure text skips relationship scoring unless configured
// otherwise; a suffix match catches mid-stream failures where the terminal
// chunk lands after partial output. The exchange is still written to the
// conversation log so the user-visible transcript stays truthful.
func (s *Service) finish(p *prepared, characterID, message, reply string) *relationship.ConversationResult {
	now := s.now()
	if err := s.log.Append(characterID,
		LogEntry{Role: gateway.RoleUser, Speaker: "User", Text: message, Timestamp: now},
		LogEntry{Role: gateway.RoleAssistant, Speaker: p.char.Name, Text: reply, Timestamp: now},
	); err != nil {
		s.logger.Warn("failed to append conversation log",
			zap.String("character_id", characterID), zap.Error(err))
	}

	if strings.HasSuffix(reply, gateway.FailureText) && !s.opts.CountFailedResponses {
		return nil
	}

	result := p.engine.RecordConversation(message, reply, 0)
	if err := s.characters.RecordChat(characterID); err != nil {
		s.logger.Warn("failed to update character chat stats",
			zap.String("character_id", characterID), zap.Error(err))
	}
	return &result
}

// ChatWithCharacter runs one full chat turn and returns the reply together
// with the relationship outcome.
func (s *Service) ChatWithCharacter(ctx context.Context, characterID, message string) (*Response, error) {
	unlock := s.locks.Lock(characterID)
	defer unlock()

	p, err := s.prepare(ctx, characterID, message)
	if err != nil {
		return nil, err
	}

	reply := s.gw.Generate(ctx, p.prompt, p.persona, p.storeID)
	result := s.finish(p, characterID, message, reply)

	return &Response{Reply: reply, Relationship: result}, nil
}

// ChatWithCharacterStream runs one chat turn in streaming mode. Chunks are
// forwarded as the provider emits them; relationship state is recorded only
// after the stream completes in full. A cancellation mid-stream records
// nothing. The result channel delivers at most one value, after the chunk
// channel closes.
func (s *Service) ChatWithCharacterStream(ctx context.Context, characterID, message string) (<-chan string, <-chan *relationship.ConversationResult, error) {
	unlock := s.locks.Lock(characterID)

	p, err := s.prepare(ctx, characterID, message)
	if err != nil {
		unlock()
		return nil, nil, err
	}

	out := make(chan string, 100)
	resultCh := make(chan *relationship.ConversationResult, 1)
	go func() {
		defer unlock()
		defer close(resultCh)
		defer close(out)

		stream := s.gw.GenerateStream(ctx, p.prompt, p.persona, p.storeID)
		var full []byte
		for chunk := range stream {
			full = append(full, chunk...)
			select {
			case out <- chunk:
			case <-ctx.Done():
				// Drain so the gateway goroutine can exit.
				for range stream {
				}
				return
			}
		}
		if ctx.Err() != nil {
			return
		}
		if result := s.finish(p, characterID, message, string(full)); result != nil {
			resultCh <- result
		}
	}()
	return out, resultCh, nil
}

// globalKey names the pseudo-character backing the character-less chat path.
const globalKey = "global"

// Chat runs a plain turn with no persona: retrieval context, when present, is
// injected into the message body by the assembler. No relationship state is
// involved.
func (s *Service) Chat(ctx context.Context, message string) (string, error) {
	unlock := s.locks.Lock(globalKey)
	defer unlock()

	prompt, storeID := s.preparePlain(ctx, message)
	reply := s.gw.Generate(ctx, prompt, "", storeID)
	s.appendPlain(message, reply)
	return reply, nil
}

// ChatStream is the streaming variant of Chat.
func (s *Service) ChatStream(ctx context.Context, message string) <-chan string {
	unlock := s.locks.Lock(globalKey)

	prompt, storeID := s.preparePlain(ctx, message)
	out := make(chan string, 100)
	go func() {
		defer unlock()
		defer close(out)

		stream := s.gw.GenerateStream(ctx, prompt, "", storeID)
		var full []byte
		for chunk := range stream {
			full = append(full, chunk...)
			select {
			case out <- chunk:
			case <-ctx.Done():
				for range stream {
				}
				return
			}
		}
		if ctx.Err() != nil {
			return
		}
		s.appendPlain(message, string(full))
	}()
	return out
}

func (s *Service) preparePlain(ctx context.Context, message string) (prompt, storeID string) {
	rc, err := s.searcher.Search(ctx, globalKey, message)
	if err != nil {
		s.logger.Warn("retrieval failed, continuing without context", zap.Error(err))
		rc = retrieval.Context{}
	}
	history, err := s.log.Recent(globalKey, s.opts.HistoryWindow)
	if err != nil {
		s.logger.Warn("failed to load history, continuing without it", zap.Error(err))
	}
	prompt = s.assembler.Assemble(gateway.Request{
		Message:          message,
		RetrievedContext: rc.SearchedText,
		History:          history,
	})
	return prompt, rc.StoreName
}

func (s *Service) appendPlain(message, reply string) {
	now := s.now()
	if err := s.log.Append(globalKey,
		LogEntry{Role: gateway.RoleUser, Speaker: "User", Text: message, Timestamp: now},
		LogEntry{Role: gateway.RoleAssistant, Speaker: "Assistant", Text: reply, Timestamp: now},
	); err != nil {
		s.logger.Warn("failed to append chat log", zap.Error(err))
	}
}

// GlobalHistory returns the character-less chat transcript.
func (s *Service) GlobalHistory() ([]LogEntry, error) {
	return s.log.Entries(globalKey)
}

// ClearGlobalHistory wipes the character-less chat transcript.
func (s *Service) ClearGlobalHistory() error {
	return s.log.Clear(globalKey)
}
