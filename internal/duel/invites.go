package duel

import (
	"sync"
	"time"
)

// InviteBook tracks outstanding invitations keyed by inviter. A second invite
// from the same inviter overwrites the first; there is no queue and no expiry.
type InviteBook struct {
	mu        sync.RWMutex
	byInviter map[PlayerID]*Invitation
	seq       uint64
}

func NewInviteBook() *InviteBook {
	return &InviteBook{byInviter: make(map[PlayerID]*Invitation)}
}

// Put records an invitation, replacing any previous one from the same inviter.
func (b *InviteBook) Put(inviter, invitee PlayerID) (*Invitation, error) {
	if inviter == invitee {
		return nil, ErrSelfInvite
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.seq++
	inv := &Invitation{
		Inviter:   inviter,
		Invitee:   invitee,
		CreatedAt: time.Now(),
		seq:       b.seq,
	}
	b.byInviter[inviter] = inv
	return inv, nil
}

// Get returns the outstanding invitation from inviter, or nil.
func (b *InviteBook) Get(inviter PlayerID) *Invitation {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.byInviter[inviter]
}

// FindForInvitee returns the newest invitation targeting invitee, or nil.
// Map iteration order is undefined, so the sequence number breaks ties.
func (b *InviteBook) FindForInvitee(invitee PlayerID) *Invitation {
	b.mu.RLock()
	defer b.mu.RUnlock()
	var best *Invitation
	for _, inv := range b.byInviter {
		if inv.Invitee != invitee {
			continue
		}
		if best == nil || inv.seq > best.seq {
			best = inv
		}
	}
	return best
}

// Remove deletes the invitation keyed by inviter.
func (b *InviteBook) Remove(inviter PlayerID) {
	b.mu.Lock()
	delete(b.byInviter, inviter)
	b.mu.Unlock()
}
