package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/streetfix/resolve-service/internal/domain"
)

type memTxKey struct{}

// MemoryStore keeps every table in process memory. It implements all repository
// interfaces and Transactor; a transaction holds the store lock for its whole duration and
// restores a snapshot when fn fails. It backs the service when no database is configured.
type MemoryStore struct {
	mu  sync.Mutex
	seq int64

	tickets       map[string]domain.Ticket
	ticketSeq     map[string]int64
	history       []domain.TicketHistory
	users         map[string]domain.User
	userSeq       map[string]int64
	usernames     map[string]string
	requests      map[string]domain.FriendRequest
	neighbors     map[[2]string]domain.NeighborEdge
	notifications []domain.Notification
	outbox        map[string]domain.OutboxEntry
	outboxSeq     map[string]int64
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		tickets:   make(map[string]domain.Ticket),
		ticketSeq: make(map[string]int64),
		users:     make(map[string]domain.User),
		userSeq:   make(map[string]int64),
		usernames: make(map[string]string),
		requests:  make(map[string]domain.FriendRequest),
		neighbors: make(map[[2]string]domain.NeighborEdge),
		outbox:    make(map[string]domain.OutboxEntry),
		outboxSeq: make(map[string]int64),
	}
}

// RunInTransaction implements Transactor.
func (s *MemoryStore) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if s.inTx(ctx) {
		return fn(ctx)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.snapshot()
	if err := fn(context.WithValue(ctx, memTxKey{}, s)); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

func (s *MemoryStore) inTx(ctx context.Context) bool {
	owner, ok := ctx.Value(memTxKey{}).(*MemoryStore)
	return ok && owner == s
}

// with runs fn under the store lock unless ctx already carries this store's transaction.
func (s *MemoryStore) with(ctx context.Context, fn func() error) error {
	if !s.inTx(ctx) {
		s.mu.Lock()
		defer s.mu.Unlock()
	}
	return fn()
}

func (s *MemoryStore) next() int64 {
	s.seq++
	return s.seq
}

type memSnapshot struct {
	seq           int64
	tickets       map[string]domain.Ticket
	ticketSeq     map[string]int64
	history       []domain.TicketHistory
	users         map[string]domain.User
	userSeq       map[string]int64
	usernames     map[string]string
	requests      map[string]domain.FriendRequest
	neighbors     map[[2]string]domain.NeighborEdge
	notifications []domain.Notification
	outbox        map[string]domain.OutboxEntry
	outboxSeq     map[string]int64
}

func (s *MemoryStore) snapshot() memSnapshot {
	return memSnapshot{
		seq:           s.seq,
		tickets:       copyMap(s.tickets),
		ticketSeq:     copyMap(s.ticketSeq),
		history:       append([]domain.TicketHistory(nil), s.history...),
		users:         copyMap(s.users),
		userSeq:       copyMap(s.userSeq),
		usernames:     copyMap(s.usernames),
		requests:      copyMap(s.requests),
		neighbors:     copyMap(s.neighbors),
		notifications: append([]domain.Notification(nil), s.notifications...),
		outbox:        copyMap(s.outbox),
		outboxSeq:     copyMap(s.outboxSeq),
	}
}

func (s *MemoryStore) restore(snap memSnapshot) {
	s.seq = snap.seq
	s.tickets = snap.tickets
	s.ticketSeq = snap.ticketSeq
	s.history = snap.history
	s.users = snap.users
	s.userSeq = snap.userSeq
	s.usernames = snap.usernames
	s.requests = snap.requests
	s.neighbors = snap.neighbors
	s.notifications = snap.notifications
	s.outbox = snap.outbox
	s.outboxSeq = snap.outboxSeq
}

// Stored values are cloned on the way in and out, so a shallow map copy is a valid snapshot.
func copyMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func cloneUser(u domain.User) domain.User {
	if u.Username != nil {
		v := *u.Username
		u.Username = &v
	}
	if u.ReferredBy != nil {
		v := *u.ReferredBy
		u.ReferredBy = &v
	}
	if u.LastKnownLocation != nil {
		v := *u.LastKnownLocation
		u.LastKnownLocation = &v
	}
	if u.Zone != nil {
		u.Zone = append(domain.Zone(nil), u.Zone...)
	}
	return u
}

// Tickets exposes the ticket table.
func (s *MemoryStore) Tickets() TicketRepository { return memTickets{s} }

// History exposes the ticket history table.
func (s *MemoryStore) History() TicketHistoryRepository { return memHistory{s} }

// Users exposes the user table.
func (s *MemoryStore) Users() UserRepository { return memUsers{s} }

// FriendRequests exposes the friend request table.
func (s *MemoryStore) FriendRequests() FriendRequestRepository { return memRequests{s} }

// Neighbors exposes the neighbor edge table.
func (s *MemoryStore) Neighbors() NeighborRepository { return memNeighbors{s} }

// Notifications exposes the notification streams.
func (s *MemoryStore) Notifications() NotificationRepository { return memNotifications{s} }

// Outbox exposes the notification outbox.
func (s *MemoryStore) Outbox() OutboxRepository { return memOutbox{s} }

type memTickets struct{ s *MemoryStore }

func (r memTickets) Create(ctx context.Context, ticket *domain.Ticket) error {
	return r.s.with(ctx, func() error {
		if ticket.ID == "" {
			ticket.ID = uuid.NewString()
		}
		if _, exists := r.s.tickets[ticket.ID]; exists {
			return ErrDuplicate
		}
		r.s.tickets[ticket.ID] = *ticket.Clone()
		r.s.ticketSeq[ticket.ID] = r.s.next()
		return nil
	})
}

func (r memTickets) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	var out *domain.Ticket
	err := r.s.with(ctx, func() error {
		t, ok := r.s.tickets[id]
		if !ok {
			return ErrNotFound
		}
		out = t.Clone()
		return nil
	})
	return out, err
}

func (r memTickets) UpdateIfStatus(ctx context.Context, ticket *domain.Ticket, expected domain.TicketStatus) error {
	return r.s.with(ctx, func() error {
		current, ok := r.s.tickets[ticket.ID]
		if !ok {
			return ErrNotFound
		}
		if current.Status != expected {
			return ErrStaleWrite
		}
		r.s.tickets[ticket.ID] = *ticket.Clone()
		return nil
	})
}

func (r memTickets) List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	var out []domain.Ticket
	err := r.s.with(ctx, func() error {
		statuses := make(map[domain.TicketStatus]bool, len(filter.Statuses))
		for _, st := range filter.Statuses {
			statuses[st] = true
		}
		for _, t := range r.s.tickets {
			if filter.UserID != nil && t.UserID != *filter.UserID {
				continue
			}
			if filter.AssignedTo != nil && !t.IsAssignedTo(*filter.AssignedTo) {
				continue
			}
			if len(statuses) > 0 && !statuses[t.Status] {
				continue
			}
			if !filter.IncludeMerged && t.Status == domain.TicketStatusMerged {
				continue
			}
			if !filter.IncludeSocial && t.Kind == domain.TicketKindSocial {
				continue
			}
			out = append(out, *t.Clone())
		}
		sort.Slice(out, func(i, j int) bool {
			if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
				return out[i].CreatedAt.After(out[j].CreatedAt)
			}
			return r.s.ticketSeq[out[i].ID] > r.s.ticketSeq[out[j].ID]
		})
		return nil
	})
	return out, err
}

type memHistory struct{ s *MemoryStore }

func (r memHistory) Create(ctx context.Context, history *domain.TicketHistory) error {
	return r.s.with(ctx, func() error {
		if history.ID == "" {
			history.ID = uuid.NewString()
		}
		r.s.history = append(r.s.history, *history)
		return nil
	})
}

func (r memHistory) ListByTicket(ctx context.Context, ticketID string) ([]domain.TicketHistory, error) {
	var out []domain.TicketHistory
	err := r.s.with(ctx, func() error {
		for _, h := range r.s.history {
			if h.TicketID == ticketID {
				out = append(out, h)
			}
		}
		return nil
	})
	return out, err
}

type memUsers struct{ s *MemoryStore }

func (r memUsers) Create(ctx context.Context, user *domain.User) error {
	return r.s.with(ctx, func() error {
		if user.ID == "" {
			user.ID = uuid.NewString()
		}
		for _, existing := range r.s.users {
			if existing.ID == user.ID || existing.Email == user.Email ||
				(user.ReferralCode != "" && existing.ReferralCode == user.ReferralCode) {
				return ErrDuplicate
			}
		}
		r.s.users[user.ID] = cloneUser(*user)
		r.s.userSeq[user.ID] = r.s.next()
		return nil
	})
}

func (r memUsers) Update(ctx context.Context, user *domain.User) error {
	return r.s.with(ctx, func() error {
		current, ok := r.s.users[user.ID]
		if !ok {
			return ErrNotFound
		}
		current.Name = user.Name
		current.EngineerStatus = user.EngineerStatus
		current.LastKnownLocation = user.LastKnownLocation
		current.Zone = user.Zone
		current.UpdatedAt = user.UpdatedAt
		r.s.users[user.ID] = cloneUser(current)
		return nil
	})
}

func (r memUsers) GetByID(ctx context.Context, id string) (*domain.User, error) {
	return r.find(ctx, func(u domain.User) bool { return u.ID == id })
}

func (r memUsers) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.find(ctx, func(u domain.User) bool { return u.Email == email })
}

func (r memUsers) GetByReferralCode(ctx context.Context, code string) (*domain.User, error) {
	return r.find(ctx, func(u domain.User) bool { return u.ReferralCode == code })
}

func (r memUsers) find(ctx context.Context, match func(domain.User) bool) (*domain.User, error) {
	var out *domain.User
	err := r.s.with(ctx, func() error {
		for _, u := range r.s.users {
			if match(u) {
				c := cloneUser(u)
				out = &c
				return nil
			}
		}
		return ErrNotFound
	})
	return out, err
}

func (r memUsers) ListByRole(ctx context.Context, role domain.Role) ([]domain.User, error) {
	return r.filter(ctx, func(u domain.User) bool { return u.Role == role })
}

func (r memUsers) ListAvailableEngineers(ctx context.Context) ([]domain.User, error) {
	return r.filter(ctx, func(u domain.User) bool {
		return u.Role == domain.RoleEngineer && u.EngineerStatus == domain.EngineerAvailable
	})
}

func (r memUsers) filter(ctx context.Context, match func(domain.User) bool) ([]domain.User, error) {
	var out []domain.User
	err := r.s.with(ctx, func() error {
		for _, u := range r.s.users {
			if match(u) {
				out = append(out, cloneUser(u))
			}
		}
		sort.Slice(out, func(i, j int) bool {
			if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
				return out[i].CreatedAt.Before(out[j].CreatedAt)
			}
			return r.s.userSeq[out[i].ID] < r.s.userSeq[out[j].ID]
		})
		return nil
	})
	return out, err
}

func (r memUsers) ClaimUsername(ctx context.Context, username, userID string) error {
	return r.s.with(ctx, func() error {
		if _, taken := r.s.usernames[username]; taken {
			return ErrDuplicate
		}
		user, ok := r.s.users[userID]
		if !ok {
			return ErrNotFound
		}
		r.s.usernames[username] = userID
		name := username
		user.Username = &name
		r.s.users[userID] = user
		return nil
	})
}

func (r memUsers) RecordReport(ctx context.Context, userID string, policy domain.ReferralPolicy) (domain.ReferralOutcome, error) {
	var outcome domain.ReferralOutcome
	err := r.s.RunInTransaction(ctx, func(ctx context.Context) error {
		user, ok := r.s.users[userID]
		if !ok {
			return ErrNotFound
		}
		user.ReportCount++
		outcome = domain.ReferralOutcome{ReportCount: user.ReportCount}

		if user.ReportCount >= policy.Threshold && user.ReferralStatus == domain.ReferralStatusPending &&
			user.ReferredBy != nil && *user.ReferredBy != "" {
			referrer, ok := r.s.users[*user.ReferredBy]
			if !ok {
				return fmt.Errorf("referrer %s: %w", *user.ReferredBy, ErrNotFound)
			}
			referrer.Balance += policy.Reward
			r.s.users[referrer.ID] = referrer

			user.Balance += policy.Reward
			user.ReferralStatus = domain.ReferralStatusCompleted
			outcome.PaidOut = true
			outcome.ReferrerID = referrer.ID
			outcome.Reward = policy.Reward
		}
		r.s.users[userID] = user
		return nil
	})
	if err != nil {
		return domain.ReferralOutcome{}, err
	}
	return outcome, nil
}

func (r memUsers) AdjustNeighborCount(ctx context.Context, userID string, delta int) error {
	return r.s.with(ctx, func() error {
		user, ok := r.s.users[userID]
		if !ok {
			return ErrNotFound
		}
		user.NeighborCount += delta
		if user.NeighborCount < 0 {
			user.NeighborCount = 0
		}
		r.s.users[userID] = user
		return nil
	})
}

func (r memUsers) SetNeighborCount(ctx context.Context, userID string, count int) error {
	return r.s.with(ctx, func() error {
		user, ok := r.s.users[userID]
		if !ok {
			return ErrNotFound
		}
		user.NeighborCount = count
		r.s.users[userID] = user
		return nil
	})
}

type memRequests struct{ s *MemoryStore }

func (r memRequests) Create(ctx context.Context, req *domain.FriendRequest) error {
	return r.s.with(ctx, func() error {
		for _, existing := range r.s.requests {
			if existing.FromID == req.FromID && existing.ToID == req.ToID {
				return ErrDuplicate
			}
		}
		if req.ID == "" {
			req.ID = uuid.NewString()
		}
		r.s.requests[req.ID] = *req
		return nil
	})
}

func (r memRequests) GetByID(ctx context.Context, id string) (*domain.FriendRequest, error) {
	var out *domain.FriendRequest
	err := r.s.with(ctx, func() error {
		req, ok := r.s.requests[id]
		if !ok {
			return ErrNotFound
		}
		out = &req
		return nil
	})
	return out, err
}

func (r memRequests) FindByPair(ctx context.Context, fromID, toID string) (*domain.FriendRequest, error) {
	var out *domain.FriendRequest
	err := r.s.with(ctx, func() error {
		for _, req := range r.s.requests {
			if req.FromID == fromID && req.ToID == toID {
				found := req
				out = &found
				return nil
			}
		}
		return ErrNotFound
	})
	return out, err
}

func (r memRequests) UpdateStatus(ctx context.Context, id string, status domain.FriendRequestStatus) error {
	return r.s.with(ctx, func() error {
		req, ok := r.s.requests[id]
		if !ok {
			return ErrNotFound
		}
		req.Status = status
		r.s.requests[id] = req
		return nil
	})
}

func (r memRequests) Delete(ctx context.Context, id string) error {
	return r.s.with(ctx, func() error {
		if _, ok := r.s.requests[id]; !ok {
			return ErrNotFound
		}
		delete(r.s.requests, id)
		return nil
	})
}

func (r memRequests) ListForUser(ctx context.Context, userID string, incoming bool) ([]domain.FriendRequest, error) {
	var out []domain.FriendRequest
	err := r.s.with(ctx, func() error {
		for _, req := range r.s.requests {
			if (incoming && req.ToID == userID) || (!incoming && req.FromID == userID) {
				out = append(out, req)
			}
		}
		sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
		return nil
	})
	return out, err
}

type memNeighbors struct{ s *MemoryStore }

func edgeKey(a, b string) [2]string {
	e := domain.NewNeighborEdge(a, b, time.Time{})
	return [2]string{e.UserLow, e.UserHigh}
}

func (r memNeighbors) Create(ctx context.Context, edge domain.NeighborEdge) error {
	return r.s.with(ctx, func() error {
		key := edgeKey(edge.UserLow, edge.UserHigh)
		if _, exists := r.s.neighbors[key]; exists {
			return ErrDuplicate
		}
		r.s.neighbors[key] = domain.NewNeighborEdge(key[0], key[1], edge.CreatedAt)
		return nil
	})
}

func (r memNeighbors) Delete(ctx context.Context, a, b string) (bool, error) {
	var removed bool
	err := r.s.with(ctx, func() error {
		key := edgeKey(a, b)
		_, removed = r.s.neighbors[key]
		delete(r.s.neighbors, key)
		return nil
	})
	return removed, err
}

func (r memNeighbors) Exists(ctx context.Context, a, b string) (bool, error) {
	var exists bool
	err := r.s.with(ctx, func() error {
		_, exists = r.s.neighbors[edgeKey(a, b)]
		return nil
	})
	return exists, err
}

func (r memNeighbors) ListForUser(ctx context.Context, userID string) ([]domain.Neighbor, error) {
	var out []domain.Neighbor
	err := r.s.with(ctx, func() error {
		for _, edge := range r.s.neighbors {
			if edge.UserLow != userID && edge.UserHigh != userID {
				continue
			}
			other := edge.Other(userID)
			out = append(out, domain.Neighbor{UserID: other, Name: r.s.users[other].Name, Since: edge.CreatedAt})
		}
		sort.Slice(out, func(i, j int) bool { return out[i].Since.After(out[j].Since) })
		return nil
	})
	return out, err
}

func (r memNeighbors) CountForUser(ctx context.Context, userID string) (int, error) {
	var count int
	err := r.s.with(ctx, func() error {
		for _, edge := range r.s.neighbors {
			if edge.UserLow == userID || edge.UserHigh == userID {
				count++
			}
		}
		return nil
	})
	return count, err
}

type memNotifications struct{ s *MemoryStore }

func (r memNotifications) Append(ctx context.Context, n domain.Notification) error {
	return r.s.with(ctx, func() error {
		if n.ID == "" {
			n.ID = uuid.NewString()
		}
		for _, existing := range r.s.notifications {
			if existing.ID == n.ID {
				return nil
			}
		}
		r.s.notifications = append(r.s.notifications, n)
		return nil
	})
}

func (r memNotifications) ListForUser(ctx context.Context, userID string, unreadOnly bool, limit int) ([]domain.Notification, error) {
	if limit <= 0 {
		limit = 50
	}
	var out []domain.Notification
	err := r.s.with(ctx, func() error {
		for i := len(r.s.notifications) - 1; i >= 0 && len(out) < limit; i-- {
			n := r.s.notifications[i]
			if n.UserID != userID || (unreadOnly && n.Read) {
				continue
			}
			out = append(out, n)
		}
		return nil
	})
	return out, err
}

func (r memNotifications) MarkRead(ctx context.Context, userID, id string) error {
	return r.s.with(ctx, func() error {
		for i := range r.s.notifications {
			if r.s.notifications[i].ID == id && r.s.notifications[i].UserID == userID {
				r.s.notifications[i].Read = true
				return nil
			}
		}
		return ErrNotFound
	})
}

func (r memNotifications) MarkAllRead(ctx context.Context, userID string) (int, error) {
	var changed int
	err := r.s.with(ctx, func() error {
		for i := range r.s.notifications {
			if r.s.notifications[i].UserID == userID && !r.s.notifications[i].Read {
				r.s.notifications[i].Read = true
				changed++
			}
		}
		return nil
	})
	return changed, err
}

type memOutbox struct{ s *MemoryStore }

func (r memOutbox) Enqueue(ctx context.Context, entries ...domain.OutboxEntry) error {
	return r.s.with(ctx, func() error {
		for _, e := range entries {
			if e.ID == "" {
				e.ID = uuid.NewString()
			}
			if e.State == "" {
				e.State = domain.OutboxPending
			}
			r.s.outbox[e.ID] = e
			r.s.outboxSeq[e.ID] = r.s.next()
		}
		return nil
	})
}

func (r memOutbox) ClaimDue(ctx context.Context, now time.Time, limit int, lease time.Duration) ([]domain.OutboxEntry, error) {
	var out []domain.OutboxEntry
	err := r.s.with(ctx, func() error {
		var due []domain.OutboxEntry
		for _, e := range r.s.outbox {
			if e.State == domain.OutboxPending && !e.NextAttemptAt.After(now) {
				due = append(due, e)
			}
		}
		sort.Slice(due, func(i, j int) bool {
			if !due[i].NextAttemptAt.Equal(due[j].NextAttemptAt) {
				return due[i].NextAttemptAt.Before(due[j].NextAttemptAt)
			}
			return r.s.outboxSeq[due[i].ID] < r.s.outboxSeq[due[j].ID]
		})
		if limit > 0 && len(due) > limit {
			due = due[:limit]
		}
		for _, e := range due {
			claimed := e
			claimed.NextAttemptAt = now.Add(lease)
			r.s.outbox[e.ID] = claimed
			out = append(out, claimed)
		}
		return nil
	})
	return out, err
}

func (r memOutbox) MarkDelivered(ctx context.Context, id string, at time.Time) error {
	return r.s.with(ctx, func() error {
		e, ok := r.s.outbox[id]
		if !ok {
			return ErrNotFound
		}
		e.State = domain.OutboxDelivered
		e.Attempts++
		e.DeliveredAt = &at
		r.s.outbox[id] = e
		return nil
	})
}

func (r memOutbox) MarkFailed(ctx context.Context, id string, attempts int, next time.Time, lastErr string, dead bool) error {
	return r.s.with(ctx, func() error {
		e, ok := r.s.outbox[id]
		if !ok {
			return ErrNotFound
		}
		e.Attempts = attempts
		e.NextAttemptAt = next
		e.LastError = lastErr
		if dead {
			e.State = domain.OutboxDead
		}
		r.s.outbox[id] = e
		return nil
	})
}

// OutboxEntries returns every staged entry in enqueue order.
func (s *MemoryStore) OutboxEntries() []domain.OutboxEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.OutboxEntry, 0, len(s.outbox))
	for _, e := range s.outbox {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return s.outboxSeq[out[i].ID] < s.outboxSeq[out[j].ID] })
	return out
}
