package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/kapu/duelchess/internal/duel"
	"github.com/kapu/duelchess/internal/msgcat"
	"github.com/kapu/duelchess/pkg/dueldto"
)

// runConsole reads "<player> <command> [args]" lines from stdin and feeds
// them to the orchestrator, e.g. "alice invite bob" or "alice move e2 e4".
func runConsole(ctx context.Context, orch *duel.Orchestrator, cat *msgcat.Catalog) {
	sc := bufio.NewScanner(os.Stdin)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		fmt.Println(handleLine(ctx, orch, cat, line))
	}
}

func handleLine(ctx context.Context, orch *duel.Orchestrator, cat *msgcat.Catalog, line string) string {
	parts := strings.Fields(line)
	if len(parts) < 2 {
		return renderKey(cat, "help", nil)
	}
	player := duel.PlayerID(parts[0])
	cmd := strings.ToLower(parts[1])
	args := parts[2:]

	var (
		out *dueldto.Outcome
		err error
	)
	switch cmd {
	case "invite":
		if len(args) != 1 {
			return renderKey(cat, "errors.bad_move_format", nil)
		}
		out, err = orch.Invite(ctx, player, duel.PlayerID(args[0]))
	case "cancel":
		out, err = orch.CancelInvite(ctx, player)
	case "accept":
		out, err = orch.Accept(ctx, player)
	case "start":
		out, err = orch.Start(ctx, player)
	case "move":
		if len(args) != 2 {
			return renderKey(cat, "errors.bad_move_format", nil)
		}
		out, err = orch.Move(ctx, player, args[0], args[1])
	case "status":
		out, err = orch.Status(ctx, player)
	case "draw":
		out, err = orch.OfferDraw(ctx, player)
	case "acceptdraw":
		out, err = orch.AcceptDraw(ctx, player)
	case "resign":
		out, err = orch.Resign(ctx, player)
	case "profile":
		p, perr := orch.Profile(ctx, player)
		if perr != nil {
			return perr.Error()
		}
		return renderKey(cat, "duel.profile", map[string]any{
			"Player": p.Player, "Wins": p.Wins, "Losses": p.Losses,
			"Draws": p.Draws, "GamesPlayed": p.GamesPlayed, "Rating": p.Rating,
		})
	default:
		return renderKey(cat, "help", nil)
	}
	if err != nil {
		return renderError(cat, err)
	}
	return renderOutcome(cat, out)
}

func renderOutcome(cat *msgcat.Catalog, out *dueldto.Outcome) string {
	data := map[string]any{
		"White": out.White, "Black": out.Black,
		"FEN": out.FEN, "SAN": out.SAN,
		"NextTurn": out.NextTurn, "Winner": out.Winner,
		"Method": out.Method, "MoveCount": len(out.Moves),
	}
	var key string
	switch out.Kind {
	case dueldto.KindInvited:
		key = "duel.invited"
		data["Inviter"], data["Invitee"] = out.White, out.Black
	case dueldto.KindInviteCancelled:
		key = "duel.invite_cancelled"
	case dueldto.KindGameStarted:
		key = "duel.game_started"
	case dueldto.KindPosition:
		key = "duel.position"
	case dueldto.KindStatus:
		key = "duel.status"
	case dueldto.KindMoved:
		key = "duel.moved"
	case dueldto.KindDrawOffered:
		key = "duel.draw_offered"
	case dueldto.KindCheckmate:
		key = "duel.checkmate"
	case dueldto.KindDraw:
		key = "duel.draw"
	case dueldto.KindResigned:
		key = "duel.resigned"
	default:
		return fmt.Sprintf("%+v", out)
	}
	text := renderKey(cat, key, data)
	if out.Kind == dueldto.KindStatus {
		text += historyText(out.Moves)
	}
	if out.Warning != "" {
		text += "\n(warning: " + out.Warning + ")"
	}
	return text
}

func historyText(moves []dueldto.Move) string {
	var b strings.Builder
	for i, m := range moves {
		b.WriteString(fmt.Sprintf("\n%d. %s to %s (%s)", i+1, m.From, m.To, m.SAN))
	}
	return b.String()
}

func renderError(cat *msgcat.Catalog, err error) string {
	key := ""
	switch {
	case errors.Is(err, duel.ErrSelfInvite):
		key = "errors.self_invite"
	case errors.Is(err, duel.ErrAlreadyInGame):
		key = "errors.already_in_game"
	case errors.Is(err, duel.ErrNoInvitation):
		key = "errors.no_invitation"
	case errors.Is(err, duel.ErrNoActiveGame):
		key = "errors.no_active_game"
	case errors.Is(err, duel.ErrSessionNotFound):
		key = "errors.session_not_found"
	case errors.Is(err, duel.ErrNotYourTurn):
		key = "errors.not_your_turn"
	case errors.Is(err, duel.ErrBadMoveFormat):
		key = "errors.bad_move_format"
	case errors.Is(err, duel.ErrIllegalMove):
		key = "errors.illegal_move"
	case errors.Is(err, duel.ErrDuplicateOffer):
		key = "errors.duplicate_offer"
	case errors.Is(err, duel.ErrNoOfferToAccept):
		key = "errors.no_offer_to_accept"
	default:
		return err.Error()
	}
	return renderKey(cat, key, nil)
}

func renderKey(cat *msgcat.Catalog, key string, data any) string {
	text, err := cat.Render(key, data)
	if err != nil {
		return key
	}
	return text
}
