// Package dueldto carries transport-facing payloads. Fields are plain strings
// so the chat layer can render them without importing domain types.
package dueldto

// Kind discriminates the success payload of an orchestrator operation.
type Kind string

const (
	KindInvited         Kind = "INVITED"
	KindInviteCancelled Kind = "INVITE_CANCELLED"
	KindGameStarted     Kind = "GAME_STARTED"
	KindPosition        Kind = "POSITION"
	KindStatus          Kind = "STATUS"
	KindMoved           Kind = "MOVED"
	KindDrawOffered     Kind = "DRAW_OFFERED"
	KindCheckmate       Kind = "CHECKMATE"
	KindDraw            Kind = "DRAW"
	KindResigned        Kind = "RESIGNED"
)

// Move is one entry of a game's move history.
type Move struct {
	From string
	To   string
	SAN  string
}

// Outcome is returned by every orchestrator operation that succeeds. FEN is
// set whenever the transport should render the position.
type Outcome struct {
	Kind     Kind
	White    string
	Black    string
	FEN      string
	SAN      string // last move in algebraic notation, when one was played
	Moves    []Move
	NextTurn string // player expected to act next, when the game continues
	Winner   string
	Method   string // terminal method: checkmate, resignation, draw agreed, ...
	Warning  string // non-fatal persistence problem, surfaced rather than swallowed
}

// Profile is the transport-facing view of a player's aggregate record.
type Profile struct {
	Player      string
	Wins        int
	Losses      int
	Draws       int
	GamesPlayed int
	Rating      int
}
