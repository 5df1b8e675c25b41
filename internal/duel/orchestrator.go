package duel

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kapu/duelchess/internal/archive"
	"github.com/kapu/duelchess/internal/obslog"
	"github.com/kapu/duelchess/internal/rules"
	"github.com/kapu/duelchess/internal/snapshot"
	"github.com/kapu/duelchess/internal/stats"
	"github.com/kapu/duelchess/pkg/dueldto"
)

// Rules is the chess rules engine boundary consumed by the orchestrator.
type Rules interface {
	StartFEN() string
	Apply(movesUCI []string, uci string) (*rules.Verdict, error)
}

// Orchestrator is the façade the transport layer calls. It is the sole
// mutator of invitation, session and stats state; every transition runs
// under one lock so concurrent commands from independent users can never
// interleave half-applied.
type Orchestrator struct {
	mu sync.Mutex

	engine   Rules
	invites  *InviteBook
	sessions *SessionTable
	stats    *stats.Store

	snaps *snapshot.Store     // optional warm-restart session mirror
	arch  *archive.Repository // optional finished-game history
}

func NewOrchestrator(engine Rules, st *stats.Store) *Orchestrator {
	return &Orchestrator{
		engine:   engine,
		invites:  NewInviteBook(),
		sessions: NewSessionTable(),
		stats:    st,
	}
}

// AttachSnapshots wires the Redis session mirror.
func (o *Orchestrator) AttachSnapshots(s *snapshot.Store) {
	if o != nil {
		o.snaps = s
	}
}

// AttachArchive wires the finished-game repository.
func (o *Orchestrator) AttachArchive(r *archive.Repository) {
	if o != nil {
		o.arch = r
	}
}

// Restore repopulates the session registry from Redis snapshots. Call once at
// startup, before serving commands. Returns the number of sessions adopted.
func (o *Orchestrator) Restore(ctx context.Context) (int, error) {
	if o.snaps == nil {
		return 0, nil
	}
	snaps, err := o.snaps.LoadAll(ctx)
	if err != nil {
		return 0, err
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	adopted := 0
	for _, sn := range snaps {
		s := sessionFromSnapshot(sn)
		if s == nil {
			continue
		}
		if err := o.sessions.Adopt(s); err != nil {
			obslog.L().Warn("duel_restore_skip", zap.String("session", sn.UUID), zap.Error(err))
			continue
		}
		adopted++
	}
	if adopted > 0 {
		obslog.L().Info("duel_restore", zap.Int("sessions", adopted))
	}
	return adopted, nil
}

// Invite records an invitation from inviter to invitee. A repeat invite from
// the same inviter overwrites the previous one.
func (o *Orchestrator) Invite(ctx context.Context, inviter, invitee PlayerID) (*dueldto.Outcome, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if inviter == invitee {
		return nil, ErrSelfInvite
	}
	if o.sessions.InGame(inviter) || o.sessions.InGame(invitee) {
		return nil, ErrAlreadyInGame
	}
	if _, err := o.invites.Put(inviter, invitee); err != nil {
		return nil, err
	}
	obslog.L().Info("duel_invite",
		zap.String("inviter", string(inviter)),
		zap.String("invitee", string(invitee)),
	)
	return &dueldto.Outcome{
		Kind:  dueldto.KindInvited,
		White: string(inviter),
		Black: string(invitee),
	}, nil
}

// CancelInvite withdraws inviter's outstanding invitation.
func (o *Orchestrator) CancelInvite(ctx context.Context, inviter PlayerID) (*dueldto.Outcome, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.invites.Get(inviter) == nil {
		return nil, ErrNoInvitation
	}
	o.invites.Remove(inviter)
	obslog.L().Info("duel_invite_cancel", zap.String("inviter", string(inviter)))
	return &dueldto.Outcome{Kind: dueldto.KindInviteCancelled, White: string(inviter)}, nil
}

// Accept converts the newest invitation targeting accepter into a session.
// The inviter takes White, the accepter Black.
func (o *Orchestrator) Accept(ctx context.Context, accepter PlayerID) (*dueldto.Outcome, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	inv := o.invites.FindForInvitee(accepter)
	if inv == nil {
		return nil, ErrNoInvitation
	}
	if o.sessions.InGame(inv.Inviter) || o.sessions.InGame(accepter) {
		return nil, ErrAlreadyInGame
	}
	s, err := o.sessions.Create(inv.Inviter, accepter, o.engine.StartFEN())
	if err != nil {
		return nil, err
	}
	o.invites.Remove(inv.Inviter)

	warning := ""
	if _, err := o.stats.GetOrCreate(string(s.WhiteID)); err != nil {
		warning = err.Error()
	}
	if _, err := o.stats.GetOrCreate(string(s.BlackID)); err != nil {
		warning = err.Error()
	}
	if warning != "" {
		obslog.L().Warn("duel_stats_persist_error", zap.String("session", s.UUID), zap.String("error", warning))
	}
	o.saveSnapshot(ctx, s)
	obslog.L().Info("duel_start",
		zap.String("session", s.UUID),
		zap.String("white", string(s.WhiteID)),
		zap.String("black", string(s.BlackID)),
	)
	return &dueldto.Outcome{
		Kind:     dueldto.KindGameStarted,
		White:    string(s.WhiteID),
		Black:    string(s.BlackID),
		FEN:      s.FEN,
		NextTurn: string(s.WhiteID),
		Warning:  warning,
	}, nil
}

// Start reports the current position of the requester's game. Purely
// informational; no state changes.
func (o *Orchestrator) Start(ctx context.Context, requester PlayerID) (*dueldto.Outcome, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	s, err := o.sessionFor(requester)
	if err != nil {
		return nil, err
	}
	return &dueldto.Outcome{
		Kind:     dueldto.KindPosition,
		White:    string(s.WhiteID),
		Black:    string(s.BlackID),
		FEN:      s.FEN,
		NextTurn: string(s.toAct()),
	}, nil
}

// Status returns the move history of the requester's game.
func (o *Orchestrator) Status(ctx context.Context, requester PlayerID) (*dueldto.Outcome, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	s, err := o.sessionFor(requester)
	if err != nil {
		return nil, err
	}
	moves := make([]dueldto.Move, 0, len(s.Moves))
	for _, m := range s.Moves {
		moves = append(moves, dueldto.Move{From: m.From, To: m.To, SAN: m.SAN})
	}
	return &dueldto.Outcome{
		Kind:     dueldto.KindStatus,
		White:    string(s.WhiteID),
		Black:    string(s.BlackID),
		FEN:      s.FEN,
		Moves:    moves,
		NextTurn: string(s.toAct()),
	}, nil
}

// Move validates and applies one move for requester. Validation order follows
// the protocol: active game, session integrity, turn, format, legality.
func (o *Orchestrator) Move(ctx context.Context, requester PlayerID, from, to string) (*dueldto.Outcome, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	s, err := o.sessionFor(requester)
	if err != nil {
		return nil, err
	}
	color, _ := s.ColorOf(requester)
	if s.Turn != color {
		return nil, ErrNotYourTurn
	}
	uci, err := rules.ParseUCI(from, to)
	if err != nil {
		return nil, ErrBadMoveFormat
	}
	verdict, err := o.engine.Apply(s.MovesUCI, uci)
	if errors.Is(err, rules.ErrIllegalMove) {
		return nil, ErrIllegalMove
	}
	if err != nil {
		return nil, fmt.Errorf("apply move: %w", err)
	}

	s.MovesUCI = append(s.MovesUCI, uci)
	s.Moves = append(s.Moves, MoveRecord{From: uci[:2], To: uci[2:4], SAN: verdict.SAN})
	s.FEN = verdict.FEN
	s.Turn = verdict.Next
	s.UpdatedAt = time.Now()

	obslog.L().Info("duel_move",
		zap.String("session", s.UUID),
		zap.String("player", string(requester)),
		zap.String("uci", uci),
		zap.String("san", verdict.SAN),
	)

	if verdict.Checkmate {
		return o.finishDecisive(ctx, s, requester, verdict.Method), nil
	}
	if verdict.AutoDraw {
		return o.finishDraw(ctx, s, verdict.Method), nil
	}
	o.saveSnapshot(ctx, s)
	return &dueldto.Outcome{
		Kind:     dueldto.KindMoved,
		White:    string(s.WhiteID),
		Black:    string(s.BlackID),
		FEN:      s.FEN,
		SAN:      verdict.SAN,
		NextTurn: string(s.toAct()),
	}, nil
}

// OfferDraw records a directional draw offer. Offers do not expire; they are
// consumed by acceptance or by session teardown.
func (o *Orchestrator) OfferDraw(ctx context.Context, offerer PlayerID) (*dueldto.Outcome, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	s, err := o.sessionFor(offerer)
	if err != nil {
		return nil, err
	}
	if s.DrawOffer == offerer {
		return nil, ErrDuplicateOffer
	}
	s.DrawOffer = offerer
	s.UpdatedAt = time.Now()
	o.saveSnapshot(ctx, s)
	obslog.L().Info("duel_draw_offer",
		zap.String("session", s.UUID),
		zap.String("offerer", string(offerer)),
	)
	return &dueldto.Outcome{
		Kind:     dueldto.KindDrawOffered,
		White:    string(s.WhiteID),
		Black:    string(s.BlackID),
		NextTurn: string(s.Opponent(offerer)),
	}, nil
}

// AcceptDraw concludes the game when the accepter's opponent has a pending
// offer. A player cannot accept their own offer.
func (o *Orchestrator) AcceptDraw(ctx context.Context, accepter PlayerID) (*dueldto.Outcome, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	s, err := o.sessionFor(accepter)
	if err != nil {
		return nil, err
	}
	if s.DrawOffer == "" || s.DrawOffer != s.Opponent(accepter) {
		return nil, ErrNoOfferToAccept
	}
	return o.finishDraw(ctx, s, "draw agreed"), nil
}

// Resign ends the game immediately; the opponent's consent is not requested.
func (o *Orchestrator) Resign(ctx context.Context, resigner PlayerID) (*dueldto.Outcome, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	s, err := o.sessionFor(resigner)
	if err != nil {
		return nil, err
	}
	return o.finishDecisive(ctx, s, s.Opponent(resigner), "resignation"), nil
}

// Profile returns the stats record for player, lazily creating the default.
func (o *Orchestrator) Profile(ctx context.Context, player PlayerID) (*dueldto.Profile, error) {
	rec, err := o.stats.GetOrCreate(string(player))
	if err != nil {
		obslog.L().Warn("duel_stats_persist_error", zap.String("player", string(player)), zap.Error(err))
	}
	return &dueldto.Profile{
		Player:      string(player),
		Wins:        rec.Wins,
		Losses:      rec.Losses,
		Draws:       rec.Draws,
		GamesPlayed: rec.GamesPlayed,
		Rating:      rec.Rating,
	}, nil
}

// sessionFor resolves requester's active session, distinguishing "no game"
// from a broken reverse index.
func (o *Orchestrator) sessionFor(requester PlayerID) (*Session, error) {
	key, ok := o.sessions.ForPlayer(requester)
	if !ok {
		return nil, ErrNoActiveGame
	}
	s := o.sessions.Get(key)
	if s == nil {
		obslog.L().Error("duel_registry_inconsistent", zap.String("player", string(requester)))
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// finishDecisive tears the session down and applies the win/loss transaction.
// Teardown always completes; persistence trouble becomes a warning.
func (o *Orchestrator) finishDecisive(ctx context.Context, s *Session, winner PlayerID, method string) *dueldto.Outcome {
	loser := s.Opponent(winner)
	o.teardown(ctx, s)

	warning := ""
	err := o.stats.Apply([]stats.Delta{
		{Player: string(winner), Wins: 1, Games: 1, Rating: 10},
		{Player: string(loser), Losses: 1, Games: 1, Rating: -5},
	})
	if err != nil {
		warning = err.Error()
		obslog.L().Error("duel_stats_persist_error", zap.String("session", s.UUID), zap.Error(err))
	}

	result := "white"
	if winner == s.BlackID {
		result = "black"
	}
	o.archiveGame(ctx, s, result, method)
	obslog.L().Info("duel_finish",
		zap.String("session", s.UUID),
		zap.String("winner", string(winner)),
		zap.String("method", method),
	)

	kind := dueldto.KindCheckmate
	if method == "resignation" {
		kind = dueldto.KindResigned
	}
	return &dueldto.Outcome{
		Kind:    kind,
		White:   string(s.WhiteID),
		Black:   string(s.BlackID),
		FEN:     s.FEN,
		Winner:  string(winner),
		Method:  method,
		Warning: warning,
	}
}

// finishDraw tears the session down and credits both players with a draw.
func (o *Orchestrator) finishDraw(ctx context.Context, s *Session, method string) *dueldto.Outcome {
	o.teardown(ctx, s)

	warning := ""
	err := o.stats.Apply([]stats.Delta{
		{Player: string(s.WhiteID), Draws: 1, Games: 1, Rating: 5},
		{Player: string(s.BlackID), Draws: 1, Games: 1, Rating: 5},
	})
	if err != nil {
		warning = err.Error()
		obslog.L().Error("duel_stats_persist_error", zap.String("session", s.UUID), zap.Error(err))
	}
	o.archiveGame(ctx, s, "draw", method)
	obslog.L().Info("duel_finish",
		zap.String("session", s.UUID),
		zap.String("winner", ""),
		zap.String("method", method),
	)
	return &dueldto.Outcome{
		Kind:    dueldto.KindDraw,
		White:   string(s.WhiteID),
		Black:   string(s.BlackID),
		FEN:     s.FEN,
		Method:  method,
		Warning: warning,
	}
}

// teardown removes the session and its Redis mirror. The registry removal is
// the atomic part; the mirror delete is best-effort.
func (o *Orchestrator) teardown(ctx context.Context, s *Session) {
	o.sessions.Destroy(s.Key)
	if o.snaps == nil {
		return
	}
	if err := o.snaps.Delete(ctx, s.UUID); err != nil {
		obslog.L().Warn("duel_snapshot_delete_error", zap.String("session", s.UUID), zap.Error(err))
	}
}

func (o *Orchestrator) saveSnapshot(ctx context.Context, s *Session) {
	if o.snaps == nil {
		return
	}
	snap := &snapshot.Snapshot{
		UUID:      s.UUID,
		WhiteID:   string(s.WhiteID),
		BlackID:   string(s.BlackID),
		FEN:       s.FEN,
		MovesUCI:  append([]string(nil), s.MovesUCI...),
		MovesSAN:  sanList(s.Moves),
		Turn:      string(s.Turn),
		DrawOffer: string(s.DrawOffer),
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt,
	}
	if err := o.snaps.Save(ctx, snap); err != nil {
		obslog.L().Warn("duel_snapshot_save_error", zap.String("session", s.UUID), zap.Error(err))
	}
}

func (o *Orchestrator) archiveGame(ctx context.Context, s *Session, result, method string) {
	if o.arch == nil {
		return
	}
	g := &archive.Game{
		UUID:      s.UUID,
		WhiteID:   string(s.WhiteID),
		BlackID:   string(s.BlackID),
		Result:    result,
		Method:    method,
		MovesUCI:  append([]string(nil), s.MovesUCI...),
		MovesSAN:  sanList(s.Moves),
		StartedAt: s.CreatedAt,
		EndedAt:   time.Now(),
	}
	if err := o.arch.SaveGame(ctx, g); err != nil {
		obslog.L().Error("duel_archive_error", zap.String("session", s.UUID), zap.Error(err))
	}
}

func sanList(moves []MoveRecord) []string {
	out := make([]string, 0, len(moves))
	for _, m := range moves {
		out = append(out, m.SAN)
	}
	return out
}

func sessionFromSnapshot(sn *snapshot.Snapshot) *Session {
	if sn == nil || sn.WhiteID == "" || sn.BlackID == "" || sn.WhiteID == sn.BlackID {
		return nil
	}
	s := &Session{
		Key:       KeyFor(PlayerID(sn.WhiteID), PlayerID(sn.BlackID)),
		UUID:      sn.UUID,
		WhiteID:   PlayerID(sn.WhiteID),
		BlackID:   PlayerID(sn.BlackID),
		FEN:       sn.FEN,
		MovesUCI:  append([]string(nil), sn.MovesUCI...),
		Turn:      rules.Side(sn.Turn),
		DrawOffer: PlayerID(sn.DrawOffer),
		CreatedAt: sn.CreatedAt,
		UpdatedAt: sn.UpdatedAt,
	}
	for i, uci := range sn.MovesUCI {
		if len(uci) < 4 {
			return nil
		}
		rec := MoveRecord{From: uci[:2], To: uci[2:4]}
		if i < len(sn.MovesSAN) {
			rec.SAN = sn.MovesSAN[i]
		}
		s.Moves = append(s.Moves, rec)
	}
	return s
}
