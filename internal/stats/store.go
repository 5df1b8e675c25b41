// Package stats keeps long-lived per-player aggregates. The in-memory table
// is authoritative; the persister rewrites the whole table after every
// mutation, and a failed write never rolls the memory state back.
package stats

import (
	"fmt"
	"sync"
)

// DefaultRating seeds a freshly created record.
const DefaultRating = 50

// Record is one player's aggregate across all finished games.
type Record struct {
	Wins        int `json:"wins"`
	Losses      int `json:"losses"`
	Draws       int `json:"draws"`
	GamesPlayed int `json:"games_played"`
	Rating      int `json:"rating"`
}

// Delta is one player's share of a terminal-game transaction.
type Delta struct {
	Player string
	Wins   int
	Losses int
	Draws  int
	Games  int
	Rating int
}

// Persister loads the table at startup and durably rewrites it in full.
type Persister interface {
	Load() (map[string]Record, error)
	Save(map[string]Record) error
}

// Store is the shared stats table. Safe for concurrent use.
type Store struct {
	mu        sync.Mutex
	table     map[string]Record
	persister Persister
}

// NewStore loads the persisted table once; a missing table starts empty.
func NewStore(p Persister) (*Store, error) {
	table, err := p.Load()
	if err != nil {
		return nil, fmt.Errorf("load stats table: %w", err)
	}
	if table == nil {
		table = make(map[string]Record)
	}
	return &Store{table: table, persister: p}, nil
}

// GetOrCreate returns the record for player, lazily creating the default on
// first reference. A creation is a mutation and is persisted immediately; the
// returned record is valid even when the write failed.
func (s *Store) GetOrCreate(player string) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec, ok := s.table[player]; ok {
		return rec, nil
	}
	rec := Record{Rating: DefaultRating}
	s.table[player] = rec
	return rec, s.persist()
}

// Apply applies every delta as one logical unit, then rewrites the table. The
// in-memory mutation stands even when persistence fails; the error is for the
// caller to surface as a warning.
func (s *Store) Apply(deltas []Delta) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range deltas {
		rec, ok := s.table[d.Player]
		if !ok {
			rec = Record{Rating: DefaultRating}
		}
		rec.Wins += d.Wins
		rec.Losses += d.Losses
		rec.Draws += d.Draws
		rec.GamesPlayed += d.Games
		rec.Rating += d.Rating
		s.table[d.Player] = rec
	}
	return s.persist()
}

func (s *Store) persist() error {
	snap := make(map[string]Record, len(s.table))
	for k, v := range s.table {
		snap[k] = v
	}
	if err := s.persister.Save(snap); err != nil {
		return fmt.Errorf("persist stats table: %w", err)
	}
	return nil
}
