package toolloop

import (
	"context"
	"sync"

	"chefbot/llm"
)

// Session keeps one conversation across several user turns. Each Send is
// bounded by the loop's iteration cap.
type Session struct {
	loop *Loop

	mu       sync.Mutex
	messages []llm.Message
}

func (l *Loop) NewSession() *Session {
	return &Session{loop: l, messages: []llm.Message{llm.System(l.cfg.SystemPrompt)}}
}

func (s *Session) Send(ctx context.Context, userMessage string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv := append(s.messages[:len(s.messages):len(s.messages)], llm.User(userMessage))
	conv, out, err := s.loop.run(ctx, conv)
	s.messages = conv
	return out, err
}

// Messages returns a copy of the conversation so far.
func (s *Session) Messages() []llm.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]llm.Message, len(s.messages))
	copy(out, s.messages)
	return out
}
