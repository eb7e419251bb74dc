package core

import (
	"sort"
	"sync"
)

// Presence tracks how many live sessions each username currently has.
// A user is online while at least one session is identified as them, so a
// second browser tab neither duplicates the roster entry nor knocks the user
// offline when it closes.
type Presence struct {
	mu       sync.Mutex
	sessions map[string]int
}

// NewPresence creates an empty presence registry.
func NewPresence() *Presence {
	return &Presence{sessions: make(map[string]int)}
}

// Register records one more session for username. It reports whether the
// user just transitioned from offline to online.
func (p *Presence) Register(username string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sessions[username]++
	return p.sessions[username] == 1
}

// Deregister records one fewer session for username. It reports whether the
// user just transitioned from online to offline. Deregistering an unknown
// username is a no-op.
func (p *Presence) Deregister(username string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	n, ok := p.sessions[username]
	if !ok {
		return false
	}
	if n <= 1 {
		delete(p.sessions, username)
		return true
	}
	p.sessions[username] = n - 1
	return false
}

// Online returns the usernames currently online, sorted for stable output.
func (p *Presence) Online() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.sessions))
	for username := range p.sessions {
		out = append(out, username)
	}
	sort.Strings(out)
	return out
}

// IsOnline reports whether username has at least one live session.
func (p *Presence) IsOnline(username string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sessions[username] > 0
}
