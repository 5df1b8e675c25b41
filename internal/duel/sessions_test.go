package duel

import (
	"errors"
	"testing"
)

const startFEN = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"

func TestKeyForCanonicalOrder(t *testing.T) {
	if KeyFor("b", "a") != KeyFor("a", "b") {
		t.Fatalf("expected canonical key independent of argument order")
	}
	k := KeyFor("b", "a")
	if k.A != "a" || k.B != "b" {
		t.Fatalf("unexpected canonical key: %+v", k)
	}
}

func TestCreateAndLookup(t *testing.T) {
	tb := NewSessionTable()
	s, err := tb.Create("alice", "bob", startFEN)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if s.UUID == "" {
		t.Fatalf("expected session UUID")
	}
	if got := tb.Get(KeyFor("bob", "alice")); got != s {
		t.Fatalf("expected lookup to be order-independent")
	}
	for _, p := range []PlayerID{"alice", "bob"} {
		key, ok := tb.ForPlayer(p)
		if !ok || key != s.Key {
			t.Fatalf("ForPlayer(%s): ok=%v key=%+v", p, ok, key)
		}
	}
}

func TestCreateRejectsDuplicates(t *testing.T) {
	tb := NewSessionTable()
	if _, err := tb.Create("alice", "bob", startFEN); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := tb.Create("bob", "alice", startFEN); !errors.Is(err, ErrDuplicateSession) {
		t.Fatalf("expected ErrDuplicateSession, got %v", err)
	}
	if _, err := tb.Create("alice", "carol", startFEN); !errors.Is(err, ErrAlreadyInGame) {
		t.Fatalf("expected ErrAlreadyInGame, got %v", err)
	}
	if _, err := tb.Create("carol", "bob", startFEN); !errors.Is(err, ErrAlreadyInGame) {
		t.Fatalf("expected ErrAlreadyInGame, got %v", err)
	}
}

func TestDestroyRemovesEverythingTogether(t *testing.T) {
	tb := NewSessionTable()
	s, err := tb.Create("alice", "bob", startFEN)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	tb.Destroy(s.Key)
	if tb.Get(s.Key) != nil {
		t.Fatalf("expected session removed")
	}
	for _, p := range []PlayerID{"alice", "bob"} {
		if tb.InGame(p) {
			t.Fatalf("expected %s to be free after destroy", p)
		}
	}
	// both players can start fresh games immediately
	if _, err := tb.Create("alice", "carol", startFEN); err != nil {
		t.Fatalf("Create after destroy: %v", err)
	}
}
