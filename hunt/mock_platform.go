package hunt

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"
)

// ErrMockObservation is what MockPlatform breaks subscriptions with when
// FailObservations is set.
var ErrMockObservation = errors.New("mock: leak channel stream broken")

// Mutation is a role change recorded by MockPlatform.
type Mutation struct {
	Op     string // "add" or "remove"
	UserID string
	RoleID string
}

// MockPlatform is an in-memory Platform. Exactly one member, LeakerID, copies
// every probe it can see into LeakChannelID. It can see a probe while holding
// any of GatingRoles.
type MockPlatform struct {
	Account       string
	LeakerID      string
	LeakChannelID string
	GatingRoles   []string

	// LeakDelay is how long the leaker takes to copy a probe.
	LeakDelay time.Duration

	// FailObservations breaks every open leak channel stream on the next n
	// probes instead of leaking.
	FailObservations int

	// Failure hooks. A nil hook never fails.
	MembersErr error
	WatchErr   error
	PostErr    func(content string) error
	RemoveErr  func(userID, roleID string) error
	AddErr     func(userID, roleID string) error

	// OnPost runs after a probe was accepted and before it is leaked.
	OnPost func(content string)

	mu        sync.Mutex
	order     []string
	members   map[string]Candidate
	roles     map[string]map[string]bool
	original  map[string][]string
	mutations []Mutation
	posts     []string
	subs      []*mockSubscription
}

// NewMockPlatform creates a platform with members in their given order and
// role sets.
func NewMockPlatform(members []Candidate, gatingRoles []string, leakChannelID string) *MockPlatform {
	m := &MockPlatform{
		Account:       "mock-account",
		LeakChannelID: leakChannelID,
		GatingRoles:   gatingRoles,
		members:       make(map[string]Candidate),
		roles:         make(map[string]map[string]bool),
		original:      make(map[string][]string),
	}
	for _, c := range members {
		m.order = append(m.order, c.ID)
		m.members[c.ID] = c
		m.original[c.ID] = slices.Clone(c.RoleIDs)
		set := make(map[string]bool)
		for _, r := range c.RoleIDs {
			set[r] = true
		}
		m.roles[c.ID] = set
	}
	return m
}

func (m *MockPlatform) Whoami(ctx context.Context) (string, error) {
	return m.Account, nil
}

func (m *MockPlatform) MembersWithRoles(ctx context.Context, guildID string, roleIDs []string) ([]Candidate, error) {
	if m.MembersErr != nil {
		return nil, m.MembersErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []Candidate
	for _, id := range m.order {
		held := m.heldLocked(id)
		if !slices.ContainsFunc(held, func(r string) bool { return slices.Contains(roleIDs, r) }) {
			continue
		}
		c := m.members[id]
		c.RoleIDs = held
		out = append(out, c)
	}
	return out, nil
}

func (m *MockPlatform) heldLocked(userID string) []string {
	var held []string
	for r, ok := range m.roles[userID] {
		if ok {
			held = append(held, r)
		}
	}
	slices.Sort(held)
	return held
}

func (m *MockPlatform) AddRole(ctx context.Context, guildID, userID, roleID string) error {
	if m.AddErr != nil {
		if err := m.AddErr(userID, roleID); err != nil {
			return err
		}
	}
	return m.setRole(userID, roleID, true)
}

func (m *MockPlatform) RemoveRole(ctx context.Context, guildID, userID, roleID string) error {
	if m.RemoveErr != nil {
		if err := m.RemoveErr(userID, roleID); err != nil {
			return err
		}
	}
	return m.setRole(userID, roleID, false)
}

func (m *MockPlatform) setRole(userID, roleID string, held bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	set, ok := m.roles[userID]
	if !ok {
		return fmt.Errorf("mock: unknown member %s", userID)
	}
	op := "remove"
	if held {
		op = "add"
	}
	m.mutations = append(m.mutations, Mutation{Op: op, UserID: userID, RoleID: roleID})
	if held {
		set[roleID] = true
	} else {
		delete(set, roleID)
	}
	return nil
}

func (m *MockPlatform) PostMessage(ctx context.Context, channelID, content string) error {
	return m.post(content)
}

func (m *MockPlatform) PostWebhook(ctx context.Context, webhookURL, content string) error {
	return m.post(content)
}

func (m *MockPlatform) post(content string) error {
	if m.PostErr != nil {
		if err := m.PostErr(content); err != nil {
			return err
		}
	}

	m.mu.Lock()
	m.posts = append(m.posts, content)
	breakStreams := m.FailObservations > 0
	if breakStreams {
		m.FailObservations--
	}
	leaks := !breakStreams && m.canSeeLocked(m.LeakerID)
	subs := slices.Clone(m.subs)
	m.mu.Unlock()

	if m.OnPost != nil {
		m.OnPost(content)
	}

	if breakStreams {
		for _, s := range subs {
			s.fail(ErrMockObservation)
		}
		return nil
	}
	if !leaks {
		return nil
	}

	msg := Message{ID: fmt.Sprintf("leak-%d", len(content)), ChannelID: m.LeakChannelID, AuthorID: m.LeakerID, Content: content}
	deliver := func() {
		for _, s := range subs {
			s.deliver(msg)
		}
	}
	if m.LeakDelay > 0 {
		time.AfterFunc(m.LeakDelay, deliver)
	} else {
		deliver()
	}
	return nil
}

func (m *MockPlatform) canSeeLocked(userID string) bool {
	for _, r := range m.GatingRoles {
		if m.roles[userID][r] {
			return true
		}
	}
	return false
}

func (m *MockPlatform) Watch(ctx context.Context, channelID string) (Subscription, error) {
	if m.WatchErr != nil {
		return nil, m.WatchErr
	}
	s := &mockSubscription{
		ch:   make(chan Message, 16),
		done: make(chan struct{}),
	}
	if channelID != m.LeakChannelID {
		return s, nil
	}

	m.mu.Lock()
	m.subs = append(m.subs, s)
	m.mu.Unlock()
	return s, nil
}

// Mutations returns every role change made so far.
func (m *MockPlatform) Mutations() []Mutation {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.mutations)
}

// Posts returns the content of every probe accepted so far.
func (m *MockPlatform) Posts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.posts)
}

// HasRole reports whether the member currently holds the role.
func (m *MockPlatform) HasRole(userID, roleID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.roles[userID][roleID]
}

// Drifted returns the members whose roles differ from the ones they started
// with.
func (m *MockPlatform) Drifted() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	var ids []string
	for _, id := range m.order {
		want := slices.Clone(m.original[id])
		slices.Sort(want)
		if !slices.Equal(want, m.heldLocked(id)) {
			ids = append(ids, id)
		}
	}
	return ids
}

type mockSubscription struct {
	ch   chan Message
	done chan struct{}

	once sync.Once
	mu   sync.Mutex
	err  error
}

func (s *mockSubscription) Messages() <-chan Message { return s.ch }
func (s *mockSubscription) Done() <-chan struct{}    { return s.done }

func (s *mockSubscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *mockSubscription) Close() error {
	s.once.Do(func() { close(s.done) })
	return nil
}

func (s *mockSubscription) fail(err error) {
	s.once.Do(func() {
		s.mu.Lock()
		s.err = err
		s.mu.Unlock()
		close(s.done)
	})
}

func (s *mockSubscription) deliver(msg Message) {
	select {
	case <-s.done:
	case s.ch <- msg:
	default:
	}
}
