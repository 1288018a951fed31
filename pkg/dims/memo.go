package dims

import "sync"

// Memo remembers accepted answers per prompt so that re-analyzing an unchanged input does not ask
// the operator again. Answers are only remembered once Commit confirms the last one was accepted.
type Memo struct {
	provider InputProvider

	mu       sync.Mutex
	answers  map[string][]string
	lastMsg  string
	lastToks []string
}

// NewMemo wraps provider
func NewMemo(provider InputProvider) *Memo {
	return &Memo{provider: provider, answers: make(map[string][]string)}
}

func (m *Memo) Prompt(msg string) ([]string, error) {
	m.mu.Lock()
	if answer, ok := m.answers[msg]; ok {
		m.mu.Unlock()
		return append([]string(nil), answer...), nil
	}
	m.mu.Unlock()

	tokens, err := m.provider.Prompt(msg)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.lastMsg, m.lastToks = msg, tokens
	m.mu.Unlock()
	return tokens, nil
}

// Report forwards to the wrapped provider and forgets the rejected answer
func (m *Memo) Report(err error) {
	m.mu.Lock()
	m.lastMsg, m.lastToks = "", nil
	m.mu.Unlock()
	report(m.provider, err)
}

// Commit remembers the most recent answer
func (m *Memo) Commit() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.lastMsg != "" {
		m.answers[m.lastMsg] = m.lastToks
	}
	m.lastMsg, m.lastToks = "", nil
}

// Discard drops the most recent answer without remembering it
func (m *Memo) Discard() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastMsg, m.lastToks = "", nil
}
