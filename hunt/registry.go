package hunt

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"
)

type registryEntry struct {
	candidate Candidate
	// held are the qualifying roles the member had when the session started.
	held []string
	// removed tracks which of held are currently taken away by this session.
	removed map[string]bool
}

func (e *registryEntry) revoked() bool {
	for _, r := range e.held {
		if e.removed[r] {
			return true
		}
	}
	return false
}

// Registry holds the suspect pool and every member's original and current
// access state.
type Registry struct {
	dir     MemberDirectory
	roles   RoleMutator
	retry   RetryPolicy
	log     *slog.Logger
	guildID string
	roleIDs []string

	mu      sync.Mutex
	order   []string
	entries map[string]*registryEntry
}

// NewRegistry creates an empty registry for one guild and role set.
func NewRegistry(p Platform, guildID string, roleIDs []string, retry RetryPolicy, log *slog.Logger) *Registry {
	return &Registry{
		dir:     p,
		roles:   p,
		retry:   retry,
		log:     log,
		guildID: guildID,
		roleIDs: roleIDs,
		entries: make(map[string]*registryEntry),
	}
}

// Load enumerates all members holding a qualifying role. The returned pool
// keeps the platform's order.
func (r *Registry) Load(ctx context.Context) ([]Candidate, error) {
	members, err := r.dir.MembersWithRoles(ctx, r.guildID, r.roleIDs)
	if err != nil {
		return nil, &EnumerationError{Err: err}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.order = r.order[:0]
	clear(r.entries)

	pool := make([]Candidate, 0, len(members))
	for _, m := range members {
		if _, dup := r.entries[m.ID]; dup {
			continue
		}
		var held []string
		for _, role := range m.RoleIDs {
			if slices.Contains(r.roleIDs, role) {
				held = append(held, role)
			}
		}
		if len(held) == 0 {
			continue
		}

		m.RoleIDs = slices.Clone(m.RoleIDs)
		m.OriginallyPrivileged = true
		r.entries[m.ID] = &registryEntry{
			candidate: m,
			held:      held,
			removed:   make(map[string]bool),
		}
		r.order = append(r.order, m.ID)
		pool = append(pool, m)
	}
	return pool, nil
}

// Candidates returns a snapshot of every loaded candidate.
func (r *Registry) Candidates() []Candidate {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Candidate, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.entries[id].candidate)
	}
	return out
}

// IsRevoked reports whether the session currently holds any of the member's
// roles away from them.
func (r *Registry) IsRevoked(userID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[userID]
	return ok && e.revoked()
}

// Revoked returns the ids of members with at least one removed role.
func (r *Registry) Revoked() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var ids []string
	for _, id := range r.order {
		if r.entries[id].revoked() {
			ids = append(ids, id)
		}
	}
	return ids
}

// pendingRoles returns the roles that would change if the member was moved to
// the requested state.
func (r *Registry) pendingRoles(userID string, revoke bool) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[userID]
	if !ok {
		return nil
	}
	var roles []string
	for _, role := range e.held {
		if e.removed[role] != revoke {
			roles = append(roles, role)
		}
	}
	return roles
}

func (r *Registry) setRemoved(userID, roleID string, removed bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.entries[userID]; ok {
		if removed {
			e.removed[roleID] = true
		} else {
			delete(e.removed, roleID)
		}
	}
}

// RestoreAll re-adds every role this session removed. Members already in
// their original state cost no requests, so repeated calls are free. Failures
// do not stop the sweep; they are joined and returned.
func (r *Registry) RestoreAll(ctx context.Context) error {
	var errs []error
	for _, id := range r.Revoked() {
		for _, role := range r.pendingRoles(id, false) {
			err := r.retry.Do(ctx, func(ctx context.Context) error {
				return r.roles.AddRole(ctx, r.guildID, id, role)
			})
			if err != nil {
				r.log.Error("Failed to restore role", "user", id, "role", role, "err", err)
				errs = append(errs, &AccessMutationError{Op: "restore", UserID: id, RoleID: role, Err: err})
				continue
			}
			r.setRemoved(id, role, false)
		}
	}
	return errors.Join(errs...)
}
