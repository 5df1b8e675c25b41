package duel

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/kapu/duelchess/internal/rules"
	"github.com/kapu/duelchess/internal/snapshot"
	"github.com/kapu/duelchess/internal/stats"
	"github.com/kapu/duelchess/pkg/dueldto"
)

func newTestOrchestrator(t *testing.T) *Orchestrator {
	t.Helper()
	store, err := stats.NewStore(stats.NewFileStore(filepath.Join(t.TempDir(), "stats.json")))
	if err != nil {
		t.Fatalf("stats store: %v", err)
	}
	return NewOrchestrator(rules.New(), store)
}

func startGame(t *testing.T, o *Orchestrator, inviter, invitee PlayerID) {
	t.Helper()
	ctx := context.Background()
	if _, err := o.Invite(ctx, inviter, invitee); err != nil {
		t.Fatalf("Invite: %v", err)
	}
	if _, err := o.Accept(ctx, invitee); err != nil {
		t.Fatalf("Accept: %v", err)
	}
}

func mustMove(t *testing.T, o *Orchestrator, p PlayerID, from, to string) *dueldto.Outcome {
	t.Helper()
	out, err := o.Move(context.Background(), p, from, to)
	if err != nil {
		t.Fatalf("Move %s %s-%s: %v", p, from, to, err)
	}
	return out
}

func TestInviteAndAccept(t *testing.T) {
	o := newTestOrchestrator(t)
	ctx := context.Background()

	out, err := o.Invite(ctx, "alice", "bob")
	if err != nil {
		t.Fatalf("Invite: %v", err)
	}
	if out.Kind != dueldto.KindInvited {
		t.Fatalf("expected KindInvited, got %q", out.Kind)
	}

	out, err = o.Accept(ctx, "bob")
	if err != nil {
		t.Fatalf("Accept: %v", err)
	}
	if out.Kind != dueldto.KindGameStarted {
		t.Fatalf("expected KindGameStarted, got %q", out.Kind)
	}
	if out.White != "alice" || out.Black != "bob" {
		t.Fatalf("expected inviter to play white, got white=%s black=%s", out.White, out.Black)
	}
	if out.NextTurn != "alice" {
		t.Fatalf("expected white to move first, got %q", out.NextTurn)
	}

	// the consumed invitation cannot be accepted twice
	if _, err := o.Accept(ctx, "bob"); !errors.Is(err, ErrNoInvitation) {
		t.Fatalf("expected ErrNoInvitation, got %v", err)
	}
}

func TestInviteRejections(t *testing.T) {
	o := newTestOrchestrator(t)
	ctx := context.Background()

	if _, err := o.Invite(ctx, "alice", "alice"); !errors.Is(err, ErrSelfInvite) {
		t.Fatalf("expected ErrSelfInvite, got %v", err)
	}

	startGame(t, o, "alice", "bob")
	if _, err := o.Invite(ctx, "alice", "carol"); !errors.Is(err, ErrAlreadyInGame) {
		t.Fatalf("expected ErrAlreadyInGame for busy inviter, got %v", err)
	}
	if _, err := o.Invite(ctx, "carol", "bob"); !errors.Is(err, ErrAlreadyInGame) {
		t.Fatalf("expected ErrAlreadyInGame for busy invitee, got %v", err)
	}
}

func TestAcceptNewestInvitationWins(t *testing.T) {
	o := newTestOrchestrator(t)
	ctx := context.Background()

	if _, err := o.Invite(ctx, "alice", "carol"); err != nil {
		t.Fatalf("Invite: %v", err)
	}
	if _, err := o.Invite(ctx, "bob", "carol"); err != nil {
		t.Fatalf("Invite: %v", err)
	}
	out, err := o.Accept(ctx, "carol")
	if err != nil {
		t.Fatalf("Accept: %v", err)
	}
	if out.White != "bob" {
		t.Fatalf("expected newest inviter bob to play white, got %q", out.White)
	}
	// alice's older invitation is untouched and still acceptable later
	if _, err := o.CancelInvite(ctx, "alice"); err != nil {
		t.Fatalf("CancelInvite: %v", err)
	}
}

func TestCancelInvite(t *testing.T) {
	o := newTestOrchestrator(t)
	ctx := context.Background()

	if _, err := o.CancelInvite(ctx, "alice"); !errors.Is(err, ErrNoInvitation) {
		t.Fatalf("expected ErrNoInvitation, got %v", err)
	}
	if _, err := o.Invite(ctx, "alice", "bob"); err != nil {
		t.Fatalf("Invite: %v", err)
	}
	if _, err := o.CancelInvite(ctx, "alice"); err != nil {
		t.Fatalf("CancelInvite: %v", err)
	}
	if _, err := o.Accept(ctx, "bob"); !errors.Is(err, ErrNoInvitation) {
		t.Fatalf("expected cancelled invitation to be gone, got %v", err)
	}
}

func TestMoveFlow(t *testing.T) {
	o := newTestOrchestrator(t)
	ctx := context.Background()
	startGame(t, o, "alice", "bob")

	// black cannot open
	if _, err := o.Move(ctx, "bob", "e7", "e5"); !errors.Is(err, ErrNotYourTurn) {
		t.Fatalf("expected ErrNotYourTurn, got %v", err)
	}
	if _, err := o.Move(ctx, "carol", "e2", "e4"); !errors.Is(err, ErrNoActiveGame) {
		t.Fatalf("expected ErrNoActiveGame for bystander, got %v", err)
	}
	if _, err := o.Move(ctx, "alice", "e2", "e9"); !errors.Is(err, ErrBadMoveFormat) {
		t.Fatalf("expected ErrBadMoveFormat, got %v", err)
	}
	if _, err := o.Move(ctx, "alice", "e2", "e5"); !errors.Is(err, ErrIllegalMove) {
		t.Fatalf("expected ErrIllegalMove, got %v", err)
	}

	out := mustMove(t, o, "alice", "e2", "e4")
	if out.Kind != dueldto.KindMoved {
		t.Fatalf("expected KindMoved, got %q", out.Kind)
	}
	if out.SAN != "e4" {
		t.Fatalf("expected SAN e4, got %q", out.SAN)
	}
	if out.NextTurn != "bob" {
		t.Fatalf("expected bob to move next, got %q", out.NextTurn)
	}

	// white cannot move twice in a row
	if _, err := o.Move(ctx, "alice", "d2", "d4"); !errors.Is(err, ErrNotYourTurn) {
		t.Fatalf("expected ErrNotYourTurn, got %v", err)
	}

	st, err := o.Status(ctx, "bob")
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if len(st.Moves) != 1 || st.Moves[0].SAN != "e4" {
		t.Fatalf("unexpected move history: %+v", st.Moves)
	}
}

func TestCheckmateEndsGameAndSettlesStats(t *testing.T) {
	o := newTestOrchestrator(t)
	ctx := context.Background()
	startGame(t, o, "alice", "bob")

	mustMove(t, o, "alice", "f2", "f3")
	mustMove(t, o, "bob", "e7", "e5")
	mustMove(t, o, "alice", "g2", "g4")
	out := mustMove(t, o, "bob", "d8", "h4")

	if out.Kind != dueldto.KindCheckmate {
		t.Fatalf("expected KindCheckmate, got %q", out.Kind)
	}
	if out.Winner != "bob" {
		t.Fatalf("expected winner bob, got %q", out.Winner)
	}

	// session is gone, both players are free
	if _, err := o.Move(ctx, "alice", "e2", "e4"); !errors.Is(err, ErrNoActiveGame) {
		t.Fatalf("expected ErrNoActiveGame after checkmate, got %v", err)
	}
	if _, err := o.Invite(ctx, "alice", "bob"); err != nil {
		t.Fatalf("expected rematch invite to work, got %v", err)
	}

	winner, err := o.Profile(ctx, "bob")
	if err != nil {
		t.Fatalf("Profile: %v", err)
	}
	if winner.Wins != 1 || winner.GamesPlayed != 1 || winner.Rating != 60 {
		t.Fatalf("unexpected winner profile: %+v", winner)
	}
	loser, err := o.Profile(ctx, "alice")
	if err != nil {
		t.Fatalf("Profile: %v", err)
	}
	if loser.Losses != 1 || loser.GamesPlayed != 1 || loser.Rating != 45 {
		t.Fatalf("unexpected loser profile: %+v", loser)
	}
}

func TestDrawNegotiation(t *testing.T) {
	o := newTestOrchestrator(t)
	ctx := context.Background()
	startGame(t, o, "alice", "bob")

	// nothing to accept yet
	if _, err := o.AcceptDraw(ctx, "bob"); !errors.Is(err, ErrNoOfferToAccept) {
		t.Fatalf("expected ErrNoOfferToAccept, got %v", err)
	}

	if _, err := o.OfferDraw(ctx, "alice"); err != nil {
		t.Fatalf("OfferDraw: %v", err)
	}
	if _, err := o.OfferDraw(ctx, "alice"); !errors.Is(err, ErrDuplicateOffer) {
		t.Fatalf("expected ErrDuplicateOffer, got %v", err)
	}
	// the offerer cannot accept their own offer
	if _, err := o.AcceptDraw(ctx, "alice"); !errors.Is(err, ErrNoOfferToAccept) {
		t.Fatalf("expected ErrNoOfferToAccept for own offer, got %v", err)
	}

	out, err := o.AcceptDraw(ctx, "bob")
	if err != nil {
		t.Fatalf("AcceptDraw: %v", err)
	}
	if out.Kind != dueldto.KindDraw {
		t.Fatalf("expected KindDraw, got %q", out.Kind)
	}

	for _, p := range []PlayerID{"alice", "bob"} {
		prof, err := o.Profile(ctx, p)
		if err != nil {
			t.Fatalf("Profile: %v", err)
		}
		if prof.Draws != 1 || prof.GamesPlayed != 1 || prof.Rating != 55 {
			t.Fatalf("unexpected profile for %s: %+v", p, prof)
		}
	}
}

func TestCounterOfferReplacesPending(t *testing.T) {
	o := newTestOrchestrator(t)
	ctx := context.Background()
	startGame(t, o, "alice", "bob")

	if _, err := o.OfferDraw(ctx, "alice"); err != nil {
		t.Fatalf("OfferDraw: %v", err)
	}
	// bob counters instead of accepting; his offer becomes the pending one
	if _, err := o.OfferDraw(ctx, "bob"); err != nil {
		t.Fatalf("counter OfferDraw: %v", err)
	}
	if _, err := o.AcceptDraw(ctx, "bob"); !errors.Is(err, ErrNoOfferToAccept) {
		t.Fatalf("expected ErrNoOfferToAccept after counter, got %v", err)
	}
	if _, err := o.AcceptDraw(ctx, "alice"); err != nil {
		t.Fatalf("AcceptDraw: %v", err)
	}
}

func TestResign(t *testing.T) {
	o := newTestOrchestrator(t)
	ctx := context.Background()
	startGame(t, o, "alice", "bob")
	mustMove(t, o, "alice", "e2", "e4")

	out, err := o.Resign(ctx, "alice")
	if err != nil {
		t.Fatalf("Resign: %v", err)
	}
	if out.Kind != dueldto.KindResigned {
		t.Fatalf("expected KindResigned, got %q", out.Kind)
	}
	if out.Winner != "bob" {
		t.Fatalf("expected winner bob, got %q", out.Winner)
	}
	if out.Method != "resignation" {
		t.Fatalf("expected method resignation, got %q", out.Method)
	}

	prof, err := o.Profile(ctx, "bob")
	if err != nil {
		t.Fatalf("Profile: %v", err)
	}
	if prof.Wins != 1 || prof.Rating != 60 {
		t.Fatalf("unexpected winner profile: %+v", prof)
	}
}

func TestStartAndStatusWithoutGame(t *testing.T) {
	o := newTestOrchestrator(t)
	ctx := context.Background()
	if _, err := o.Start(ctx, "alice"); !errors.Is(err, ErrNoActiveGame) {
		t.Fatalf("expected ErrNoActiveGame, got %v", err)
	}
	if _, err := o.Status(ctx, "alice"); !errors.Is(err, ErrNoActiveGame) {
		t.Fatalf("expected ErrNoActiveGame, got %v", err)
	}
}

func TestProfileLazyCreation(t *testing.T) {
	o := newTestOrchestrator(t)
	prof, err := o.Profile(context.Background(), "newcomer")
	if err != nil {
		t.Fatalf("Profile: %v", err)
	}
	if prof.Rating != stats.DefaultRating || prof.GamesPlayed != 0 {
		t.Fatalf("unexpected fresh profile: %+v", prof)
	}
}

func TestSnapshotRestoreRoundTrip(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	ctx := context.Background()

	o := newTestOrchestrator(t)
	o.AttachSnapshots(snapshot.NewWithClient(rdb))
	startGame(t, o, "alice", "bob")
	mustMove(t, o, "alice", "e2", "e4")
	mustMove(t, o, "bob", "e7", "e5")
	if _, err := o.OfferDraw(ctx, "alice"); err != nil {
		t.Fatalf("OfferDraw: %v", err)
	}

	// a fresh process adopts the mirrored session
	o2 := newTestOrchestrator(t)
	o2.AttachSnapshots(snapshot.NewWithClient(rdb))
	n, err := o2.Restore(ctx)
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 restored session, got %d", n)
	}

	st, err := o2.Status(ctx, "bob")
	if err != nil {
		t.Fatalf("Status after restore: %v", err)
	}
	if len(st.Moves) != 2 {
		t.Fatalf("expected 2 restored moves, got %+v", st.Moves)
	}
	if st.NextTurn != "alice" {
		t.Fatalf("expected alice to move after restore, got %q", st.NextTurn)
	}
	// the pending draw offer survived the restart
	if _, err := o2.AcceptDraw(ctx, "bob"); err != nil {
		t.Fatalf("AcceptDraw after restore: %v", err)
	}
	// ending the game removed the mirror
	n, err = o2.Restore(ctx)
	if err != nil {
		t.Fatalf("second Restore: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected empty mirror after finish, got %d", n)
	}
	// both players are free for a rematch
	startGame(t, o2, "bob", "alice")
	mustMove(t, o2, "bob", "d2", "d4")
}
