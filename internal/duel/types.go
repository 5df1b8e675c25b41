// Package duel implements the session orchestration layer for two-player
// games mediated through a chat transport: the invitation handshake, the
// active-session registry, turn enforcement, draw negotiation and terminal
// stats transactions.
package duel

import (
	"errors"
	"time"

	"github.com/kapu/duelchess/internal/rules"
)

// PlayerID identifies a chat participant. Opaque; issued by the transport.
type PlayerID string

// SessionKey is the canonical unordered pair of two distinct players. A is
// always the smaller ID so lookups are independent of argument order.
type SessionKey struct {
	A PlayerID
	B PlayerID
}

// KeyFor canonicalizes the pair (p, q).
func KeyFor(p, q PlayerID) SessionKey {
	if q < p {
		p, q = q, p
	}
	return SessionKey{A: p, B: q}
}

// Invitation is one outstanding invite from Inviter to Invitee.
type Invitation struct {
	Inviter   PlayerID
	Invitee   PlayerID
	CreatedAt time.Time

	// seq orders invitations globally; when several inviters target the
	// same invitee, the newest wins.
	seq uint64
}

// MoveRecord is one submitted move. Records are append-only and removed only
// by whole-session teardown.
type MoveRecord struct {
	From string
	To   string
	SAN  string
}

// Session is the live state of one in-progress game.
type Session struct {
	Key       SessionKey
	UUID      string
	WhiteID   PlayerID
	BlackID   PlayerID
	FEN       string
	MovesUCI  []string
	Moves     []MoveRecord
	Turn      rules.Side
	DrawOffer PlayerID // offering player, or empty when no offer pending
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ColorOf returns the side p plays in this session.
func (s *Session) ColorOf(p PlayerID) (rules.Side, bool) {
	switch p {
	case s.WhiteID:
		return rules.SideWhite, true
	case s.BlackID:
		return rules.SideBlack, true
	}
	return "", false
}

// Opponent returns the other participant.
func (s *Session) Opponent(p PlayerID) PlayerID {
	if p == s.WhiteID {
		return s.BlackID
	}
	return s.WhiteID
}

// toAct returns the player whose turn it is.
func (s *Session) toAct() PlayerID {
	if s.Turn == rules.SideWhite {
		return s.WhiteID
	}
	return s.BlackID
}

// Recoverable, user-reported failures. None of these unwind past the
// orchestrator boundary.
var (
	ErrSelfInvite       = errors.New("cannot invite yourself")
	ErrAlreadyInGame    = errors.New("player already has an active game")
	ErrNoInvitation     = errors.New("no active invitation")
	ErrNoActiveGame     = errors.New("no active game")
	ErrNotYourTurn      = errors.New("not your turn")
	ErrBadMoveFormat    = errors.New("invalid move format")
	ErrIllegalMove      = errors.New("illegal move for the selected piece")
	ErrDuplicateOffer   = errors.New("draw already offered")
	ErrNoOfferToAccept  = errors.New("no draw offer to accept")
	ErrDuplicateSession = errors.New("session already exists for this pair")

	// ErrSessionNotFound means the reverse index pointed at a session the
	// table no longer holds. That is a registry bug, not user error; it is
	// logged and surfaced instead of crashing.
	ErrSessionNotFound = errors.New("session missing despite active-game pointer")
)
