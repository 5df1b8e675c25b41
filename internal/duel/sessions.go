package duel

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kapu/duelchess/internal/rules"
)

// SessionTable is the authoritative registry of active sessions. The keyed
// table and the player → opponent reverse index always change together under
// one lock, so a player is never half in a game and partial teardown is never
// observable.
type SessionTable struct {
	mu       sync.RWMutex
	byKey    map[SessionKey]*Session
	opponent map[PlayerID]PlayerID
}

func NewSessionTable() *SessionTable {
	return &SessionTable{
		byKey:    make(map[SessionKey]*Session),
		opponent: make(map[PlayerID]PlayerID),
	}
}

// Create registers a fresh session between white and black. It fails when the
// pair already has a session or either player is in another game.
func (t *SessionTable) Create(white, black PlayerID, startFEN string) (*Session, error) {
	now := time.Now()
	s := &Session{
		Key:       KeyFor(white, black),
		UUID:      uuid.NewString(),
		WhiteID:   white,
		BlackID:   black,
		FEN:       startFEN,
		Turn:      rules.SideWhite,
		CreatedAt: now,
		UpdatedAt: now,
	}
	return s, t.insert(s)
}

// Adopt reinstates a restored session, e.g. from a startup snapshot.
func (t *SessionTable) Adopt(s *Session) error {
	return t.insert(s)
}

func (t *SessionTable) insert(s *Session) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.byKey[s.Key]; ok {
		return ErrDuplicateSession
	}
	if _, ok := t.opponent[s.WhiteID]; ok {
		return ErrAlreadyInGame
	}
	if _, ok := t.opponent[s.BlackID]; ok {
		return ErrAlreadyInGame
	}
	t.byKey[s.Key] = s
	t.opponent[s.WhiteID] = s.BlackID
	t.opponent[s.BlackID] = s.WhiteID
	return nil
}

// Get returns the session for key, or nil.
func (t *SessionTable) Get(key SessionKey) *Session {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.byKey[key]
}

// ForPlayer resolves p's session key through the reverse index.
func (t *SessionTable) ForPlayer(p PlayerID) (SessionKey, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	opp, ok := t.opponent[p]
	if !ok {
		return SessionKey{}, false
	}
	return KeyFor(p, opp), true
}

// InGame reports whether p currently belongs to a session.
func (t *SessionTable) InGame(p PlayerID) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.opponent[p]
	return ok
}

// Destroy removes the session and both reverse pointers as one unit.
func (t *SessionTable) Destroy(key SessionKey) {
	t.mu.Lock()
	if s, ok := t.byKey[key]; ok {
		delete(t.opponent, s.WhiteID)
		delete(t.opponent, s.BlackID)
		delete(t.byKey, key)
	}
	t.mu.Unlock()
}
