package hunt

import (
	"context"
	"errors"
	"log/slog"
	"slices"
)

// Toggler grants and revokes the gating roles for sets of candidates and
// remembers what it revoked in the current round.
type Toggler struct {
	reg     *Registry
	roles   RoleMutator
	retry   RetryPolicy
	log     *slog.Logger
	guildID string

	round   int
	journal []string
}

// NewToggler creates a toggler that keeps reg up to date.
func NewToggler(reg *Registry, roles RoleMutator, guildID string, retry RetryPolicy, log *slog.Logger) *Toggler {
	return &Toggler{
		reg:     reg,
		roles:   roles,
		retry:   retry,
		log:     log,
		guildID: guildID,
	}
}

// BeginRound starts a new journal.
func (t *Toggler) BeginRound(round int) {
	t.round = round
	t.journal = t.journal[:0]
}

// Revoke removes every qualifying role from the candidates. Roles already
// removed are skipped. On failure the roles removed so far stay recorded in
// the journal and the registry.
//
// Cancelling ctx stops the batch between members with ErrStopped; a call
// already issued runs to completion.
func (t *Toggler) Revoke(ctx context.Context, cs []Candidate) error {
	mctx := context.WithoutCancel(ctx)
	for _, c := range cs {
		if ctx.Err() != nil {
			return ErrStopped
		}
		for _, role := range t.reg.pendingRoles(c.ID, true) {
			err := t.retry.Do(mctx, func(ctx context.Context) error {
				return t.roles.RemoveRole(ctx, t.guildID, c.ID, role)
			})
			if err != nil {
				return &AccessMutationError{Round: t.round, Op: "revoke", UserID: c.ID, RoleID: role, Err: err}
			}
			t.reg.setRemoved(c.ID, role, true)
			if !slices.Contains(t.journal, c.ID) {
				t.journal = append(t.journal, c.ID)
			}
		}
	}
	return nil
}

// Grant gives back every qualifying role this session removed from the
// candidates. It stops between members like Revoke.
func (t *Toggler) Grant(ctx context.Context, cs []Candidate) error {
	mctx := context.WithoutCancel(ctx)
	for _, c := range cs {
		if ctx.Err() != nil {
			return ErrStopped
		}
		for _, role := range t.reg.pendingRoles(c.ID, false) {
			err := t.retry.Do(mctx, func(ctx context.Context) error {
				return t.roles.AddRole(ctx, t.guildID, c.ID, role)
			})
			if err != nil {
				return &AccessMutationError{Round: t.round, Op: "grant", UserID: c.ID, RoleID: role, Err: err}
			}
			t.reg.setRemoved(c.ID, role, false)
		}
	}
	return nil
}

// RollbackRound grants back everything revoked since BeginRound. It keeps
// going past failures so one stuck member does not strand the rest, and it
// ignores cancellation of ctx.
func (t *Toggler) RollbackRound(ctx context.Context) error {
	ctx = context.WithoutCancel(ctx)
	var errs []error
	for _, id := range t.journal {
		if err := t.Grant(ctx, []Candidate{{ID: id}}); err != nil {
			t.log.Error("Round rollback failed", "round", t.round, "user", id, "err", err)
			errs = append(errs, err)
		}
	}
	t.journal = t.journal[:0]
	return errors.Join(errs...)
}
