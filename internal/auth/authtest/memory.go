// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 cr0n Contributors

// Package authtest provides in-memory auth repositories for tests.
package authtest

import (
	"context"
	"maps"
	"sort"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/cr0nhq/cr0n/internal/auth"
)

// Store holds users, sessions, resets and verifications in memory. The
// repositories it hands out share its state, so session lookups can join
// against users.
type Store struct {
	mu            sync.Mutex
	users         map[ulid.ULID]auth.User
	sessions      map[ulid.ULID]auth.Session
	resets        map[ulid.ULID]auth.PasswordReset
	verifications map[ulid.ULID]auth.EmailVerification
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{
		users:         make(map[ulid.ULID]auth.User),
		sessions:      make(map[ulid.ULID]auth.Session),
		resets:        make(map[ulid.ULID]auth.PasswordReset),
		verifications: make(map[ulid.ULID]auth.EmailVerification),
	}
}

// Users returns the user repository.
func (s *Store) Users() *Users { return &Users{s: s} }

// Sessions returns the session repository.
func (s *Store) Sessions() *Sessions { return &Sessions{s: s} }

// Resets returns the password reset repository.
func (s *Store) Resets() *Resets { return &Resets{s: s} }

// Verifications returns the verification repository.
func (s *Store) Verifications() *Verifications { return &Verifications{s: s} }

// InTransaction runs fn and restores every table to its prior contents when
// fn fails. Writers outside fn are not isolated from it.
func (s *Store) InTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	s.mu.Lock()
	users := maps.Clone(s.users)
	sessions := maps.Clone(s.sessions)
	resets := maps.Clone(s.resets)
	verifications := maps.Clone(s.verifications)
	s.mu.Unlock()

	if err := fn(ctx); err != nil {
		s.mu.Lock()
		s.users, s.sessions, s.resets, s.verifications = users, sessions, resets, verifications
		s.mu.Unlock()
		return err
	}
	return nil
}

// SessionCount returns the number of stored sessions of the user.
func (s *Store) SessionCount(userID ulid.ULID) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, sess := range s.sessions {
		if sess.UserID == userID {
			n++
		}
	}
	return n
}

// SetUserStatus changes an account state directly.
func (s *Store) SetUserStatus(id ulid.ULID, status auth.Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[id]; ok {
		u.Status = status
		s.users[id] = u
	}
}

// LatestVerification returns the newest verification of the user.
func (s *Store) LatestVerification(userID ulid.ULID) (auth.EmailVerification, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var (
		latest auth.EmailVerification
		found  bool
	)
	for _, v := range s.verifications {
		if v.UserID == userID && (!found || v.CreatedAt.After(latest.CreatedAt)) {
			latest, found = v, true
		}
	}
	return latest, found
}

// Users implements auth.UserRepository.
type Users struct{ s *Store }

func (r *Users) Create(_ context.Context, user *auth.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.users {
		if u.Email == user.Email {
			return auth.ErrEmailTaken
		}
	}
	r.s.users[user.ID] = *user
	return nil
}

func (r *Users) GetByID(_ context.Context, id ulid.ULID) (*auth.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return nil, auth.ErrNotFound
	}
	return &u, nil
}

func (r *Users) GetByEmail(_ context.Context, email string) (*auth.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	email = auth.NormalizeEmail(email)
	for _, u := range r.s.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, auth.ErrNotFound
}

func (r *Users) update(id ulid.ULID, fn func(u *auth.User)) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return auth.ErrNotFound
	}
	fn(&u)
	u.UpdatedAt = time.Now().UTC()
	r.s.users[id] = u
	return nil
}

func (r *Users) UpdatePassword(_ context.Context, id ulid.ULID, passwordHash string) error {
	return r.update(id, func(u *auth.User) { u.PasswordHash = passwordHash })
}

func (r *Users) UpdateLastLogin(_ context.Context, id ulid.ULID, at time.Time) error {
	return r.update(id, func(u *auth.User) { u.LastLoginAt = &at })
}

func (r *Users) MarkEmailVerified(_ context.Context, id ulid.ULID) error {
	return r.update(id, func(u *auth.User) { u.EmailVerified = true })
}

func (r *Users) SetExternalRefs(_ context.Context, id ulid.ULID, refs auth.ExternalRefs) error {
	return r.update(id, func(u *auth.User) {
		if refs.BillingCustomerID != nil {
			u.BillingCustomerID = refs.BillingCustomerID
		}
		if refs.CRMContactID != nil {
			u.CRMContactID = refs.CRMContactID
		}
	})
}

func (r *Users) ApplyBillingUpdate(_ context.Context, update auth.BillingUpdate) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for id, u := range r.s.users {
		if u.BillingCustomerID == nil || *u.BillingCustomerID != update.CustomerID {
			continue
		}
		u.Plan = update.Plan
		u.BillingSubscriptionID = update.SubscriptionID
		u.CurrentPeriodEnd = update.CurrentPeriodEnd
		r.s.users[id] = u
		n++
	}
	return n, nil
}

// Sessions implements auth.SessionRepository.
type Sessions struct{ s *Store }

func (r *Sessions) Create(_ context.Context, session *auth.Session) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.sessions[session.ID] = *session
	return nil
}

func (r *Sessions) GetWithUserByTokenHash(_ context.Context, tokenHash string) (*auth.SessionWithUser, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, sess := range r.s.sessions {
		if sess.TokenHash != tokenHash {
			continue
		}
		u, ok := r.s.users[sess.UserID]
		if !ok {
			return nil, auth.ErrNotFound
		}
		return &auth.SessionWithUser{Session: &sess, User: &u}, nil
	}
	return nil, auth.ErrNotFound
}

func (r *Sessions) ListByUser(_ context.Context, userID ulid.ULID) ([]*auth.Session, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*auth.Session
	for _, sess := range r.s.sessions {
		if sess.UserID == userID {
			out = append(out, &sess)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID.Compare(out[j].ID) > 0
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (r *Sessions) DeleteByTokenHash(_ context.Context, tokenHash string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for id, sess := range r.s.sessions {
		if sess.TokenHash == tokenHash {
			delete(r.s.sessions, id)
		}
	}
	return nil
}

func (r *Sessions) DeleteByIDs(_ context.Context, ids []ulid.ULID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, id := range ids {
		delete(r.s.sessions, id)
	}
	return nil
}

func (r *Sessions) DeleteByUser(_ context.Context, userID ulid.ULID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for id, sess := range r.s.sessions {
		if sess.UserID == userID {
			delete(r.s.sessions, id)
		}
	}
	return nil
}

func (r *Sessions) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for id, sess := range r.s.sessions {
		if sess.IsExpiredAt(now) {
			delete(r.s.sessions, id)
			n++
		}
	}
	return n, nil
}

// Resets implements auth.PasswordResetRepository.
type Resets struct{ s *Store }

func (r *Resets) Create(_ context.Context, reset *auth.PasswordReset) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.resets[reset.ID] = *reset
	return nil
}

func (r *Resets) GetByTokenHash(_ context.Context, tokenHash string) (*auth.PasswordReset, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, reset := range r.s.resets {
		if reset.TokenHash == tokenHash && !reset.Used {
			return &reset, nil
		}
	}
	return nil, auth.ErrNotFound
}

func (r *Resets) MarkUsed(_ context.Context, id ulid.ULID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	reset, ok := r.s.resets[id]
	if !ok || reset.Used {
		return auth.ErrNotFound
	}
	reset.Used = true
	r.s.resets[id] = reset
	return nil
}

func (r *Resets) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for id, reset := range r.s.resets {
		if reset.IsExpiredAt(now) {
			delete(r.s.resets, id)
			n++
		}
	}
	return n, nil
}

// Verifications implements auth.VerificationRepository.
type Verifications struct{ s *Store }

func (r *Verifications) Create(_ context.Context, v *auth.EmailVerification) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.verifications[v.ID] = *v
	return nil
}

func (r *Verifications) GetByTokenHash(_ context.Context, tokenHash string) (*auth.EmailVerification, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, v := range r.s.verifications {
		if v.TokenHash == tokenHash {
			return &v, nil
		}
	}
	return nil, auth.ErrNotFound
}

func (r *Verifications) Delete(_ context.Context, id ulid.ULID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.verifications[id]; !ok {
		return auth.ErrNotFound
	}
	delete(r.s.verifications, id)
	return nil
}

func (r *Verifications) DeleteByUser(_ context.Context, userID ulid.ULID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for id, v := range r.s.verifications {
		if v.UserID == userID {
			delete(r.s.verifications, id)
		}
	}
	return nil
}

func (r *Verifications) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for id, v := range r.s.verifications {
		if v.IsExpiredAt(now) {
			delete(r.s.verifications, id)
			n++
		}
	}
	return n, nil
}

var (
	_ auth.UserRepository          = (*Users)(nil)
	_ auth.SessionRepository       = (*Sessions)(nil)
	_ auth.PasswordResetRepository = (*Resets)(nil)
	_ auth.VerificationRepository  = (*Verifications)(nil)
)
