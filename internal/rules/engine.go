// Package rules adapts the external chess rules engine to the orchestration
// layer. The orchestrator never inspects a position itself; move legality,
// application and terminal detection all cross this boundary.
package rules

import (
	"errors"
	"fmt"
	"strings"

	nchess "github.com/corentings/chess/v2"
)

var (
	// ErrBadSquare reports from/to text that does not name board squares.
	ErrBadSquare = errors.New("malformed square coordinates")
	// ErrIllegalMove reports a well-formed move that is not legal in the
	// current position.
	ErrIllegalMove = errors.New("move is not legal in this position")
)

// Side identifies a color in a game.
type Side string

const (
	SideWhite Side = "white"
	SideBlack Side = "black"
)

// Other returns the opposing side.
func (s Side) Other() Side {
	if s == SideWhite {
		return SideBlack
	}
	return SideWhite
}

// Verdict is the engine's report after applying one move.
type Verdict struct {
	FEN       string
	SAN       string
	Next      Side
	Checkmate bool
	AutoDraw  bool   // stalemate, insufficient material, repetition, 75-move
	Method    string // terminal method name when the game ended, else empty
}

// Engine wraps corentings/chess. Sessions store only the UCI move list; every
// call replays it from the start position so the engine stays stateless.
type Engine struct{}

func New() *Engine { return &Engine{} }

// StartFEN returns the initial position.
func (e *Engine) StartFEN() string {
	return nchess.NewGame().FEN()
}

// SideToMove reports whose turn it is after the given moves.
func (e *Engine) SideToMove(movesUCI []string) (Side, error) {
	game, err := reconstruct(movesUCI)
	if err != nil {
		return "", err
	}
	return sideFrom(game.Position().Turn()), nil
}

// Apply replays movesUCI and plays uci on top. It returns ErrIllegalMove when
// the move is not in the legal-move set, or a wrapped error when the stored
// move list itself no longer replays (a corrupt session).
func (e *Engine) Apply(movesUCI []string, uci string) (*Verdict, error) {
	game, err := reconstruct(movesUCI)
	if err != nil {
		return nil, err
	}
	pos := game.Position()
	mv, err := nchess.UCINotation{}.Decode(pos, strings.ToLower(strings.TrimSpace(uci)))
	if err != nil {
		return nil, ErrIllegalMove
	}
	san := nchess.AlgebraicNotation{}.Encode(pos, mv)
	if err := game.Move(mv, nil); err != nil {
		return nil, ErrIllegalMove
	}

	v := &Verdict{
		FEN:  game.FEN(),
		SAN:  san,
		Next: sideFrom(game.Position().Turn()),
	}
	switch game.Outcome() {
	case nchess.WhiteWon, nchess.BlackWon:
		v.Checkmate = true
		v.Method = methodName(game.Method())
	case nchess.Draw:
		v.AutoDraw = true
		v.Method = methodName(game.Method())
	}
	return v, nil
}

// ParseUCI validates a from/to square pair and returns the move in UCI text.
// The destination may carry a promotion suffix, e.g. "e8q".
func ParseUCI(from, to string) (string, error) {
	from = strings.ToLower(strings.TrimSpace(from))
	to = strings.ToLower(strings.TrimSpace(to))
	if !validSquare(from) {
		return "", ErrBadSquare
	}
	promo := ""
	if len(to) == 3 {
		promo = to[2:]
		if !strings.Contains("qrbn", promo) {
			return "", ErrBadSquare
		}
		to = to[:2]
	}
	if !validSquare(to) || from == to {
		return "", ErrBadSquare
	}
	return from + to + promo, nil
}

func validSquare(s string) bool {
	return len(s) == 2 && s[0] >= 'a' && s[0] <= 'h' && s[1] >= '1' && s[1] <= '8'
}

func reconstruct(movesUCI []string) (*nchess.Game, error) {
	game := nchess.NewGame()
	for i, mv := range movesUCI {
		if err := game.PushNotationMove(mv, nchess.UCINotation{}, nil); err != nil {
			return nil, fmt.Errorf("replay move %d (%s): %w", i+1, mv, err)
		}
	}
	return game, nil
}

func sideFrom(c nchess.Color) Side {
	if c == nchess.White {
		return SideWhite
	}
	return SideBlack
}

func methodName(m nchess.Method) string {
	switch m {
	case nchess.Checkmate:
		return "checkmate"
	case nchess.Stalemate:
		return "stalemate"
	case nchess.InsufficientMaterial:
		return "insufficient material"
	case nchess.FivefoldRepetition:
		return "fivefold repetition"
	case nchess.SeventyFiveMoveRule:
		return "seventy-five move rule"
	default:
		return ""
	}
}
