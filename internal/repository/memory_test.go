package repository

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/streetfix/resolve-service/internal/domain"
)

var policy = domain.ReferralPolicy{Threshold: 5, Reward: 10}

func seedUser(t *testing.T, store *MemoryStore, id string, mutate func(*domain.User)) {
	t.Helper()
	u := &domain.User{
		ID:             id,
		Email:          id + "@example.com",
		Role:           domain.RoleCitizen,
		Name:           id,
		ReferralCode:   "code-" + id,
		ReferralStatus: domain.ReferralStatusNone,
	}
	if mutate != nil {
		mutate(u)
	}
	require.NoError(t, store.Users().Create(context.Background(), u))
}

func TestMemoryStore_TransactionRollsBack(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	seedUser(t, store, "u1", nil)

	boom := errors.New("boom")
	err := store.RunInTransaction(ctx, func(ctx context.Context) error {
		ticket := &domain.Ticket{ID: "t1", UserID: "u1", Status: domain.TicketStatusSubmitted}
		require.NoError(t, store.Tickets().Create(ctx, ticket))
		require.NoError(t, store.Users().AdjustNeighborCount(ctx, "u1", 3))
		return boom
	})
	require.ErrorIs(t, err, boom)

	_, err = store.Tickets().GetByID(ctx, "t1")
	assert.ErrorIs(t, err, ErrNotFound)
	u, err := store.Users().GetByID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 0, u.NeighborCount)
}

func TestMemoryStore_NestedTransactionJoins(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	seedUser(t, store, "u1", nil)

	err := store.RunInTransaction(ctx, func(ctx context.Context) error {
		return store.RunInTransaction(ctx, func(ctx context.Context) error {
			return store.Users().SetNeighborCount(ctx, "u1", 2)
		})
	})
	require.NoError(t, err)

	u, err := store.Users().GetByID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, u.NeighborCount)
}

func TestMemoryStore_UpdateIfStatus(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	ticket := &domain.Ticket{UserID: "u1", Status: domain.TicketStatusSubmitted}
	require.NoError(t, store.Tickets().Create(ctx, ticket))
	require.NotEmpty(t, ticket.ID)

	ticket.Status = domain.TicketStatusAssigned
	require.NoError(t, store.Tickets().UpdateIfStatus(ctx, ticket, domain.TicketStatusSubmitted))

	ticket.Status = domain.TicketStatusUnderReview
	assert.ErrorIs(t, store.Tickets().UpdateIfStatus(ctx, ticket, domain.TicketStatusSubmitted), ErrStaleWrite)

	missing := &domain.Ticket{ID: "nope"}
	assert.ErrorIs(t, store.Tickets().UpdateIfStatus(ctx, missing, domain.TicketStatusSubmitted), ErrNotFound)
}

func TestMemoryStore_ListFiltersMergedAndSocial(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	now := time.Now()

	for _, tk := range []domain.Ticket{
		{ID: "a", UserID: "u1", Kind: domain.TicketKindIssue, Status: domain.TicketStatusSubmitted, CreatedAt: now},
		{ID: "b", UserID: "u1", Kind: domain.TicketKindIssue, Status: domain.TicketStatusMerged, CreatedAt: now.Add(time.Second)},
		{ID: "c", UserID: "u1", Kind: domain.TicketKindSocial, Status: domain.TicketStatusSubmitted, CreatedAt: now.Add(2 * time.Second)},
		{ID: "d", UserID: "u2", Kind: domain.TicketKindIssue, Status: domain.TicketStatusSubmitted, CreatedAt: now.Add(3 * time.Second)},
	} {
		tk := tk
		require.NoError(t, store.Tickets().Create(ctx, &tk))
	}

	all, err := store.Tickets().List(ctx, TicketFilter{})
	require.NoError(t, err)
	assert.Equal(t, []string{"d", "a"}, ticketIDs(all))

	withMerged, err := store.Tickets().List(ctx, TicketFilter{IncludeMerged: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"d", "b", "a"}, ticketIDs(withMerged))

	owner := "u1"
	mine, err := store.Tickets().List(ctx, TicketFilter{UserID: &owner, IncludeMerged: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "a"}, ticketIDs(mine))
}

func ticketIDs(tickets []domain.Ticket) []string {
	ids := make([]string, len(tickets))
	for i, t := range tickets {
		ids[i] = t.ID
	}
	return ids
}

func TestMemoryStore_RecordReportPaysOnce(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	seedUser(t, store, "referrer", nil)
	seedUser(t, store, "citizen", func(u *domain.User) {
		ref := "referrer"
		u.ReferredBy = &ref
		u.ReferralStatus = domain.ReferralStatusPending
		u.ReportCount = 4
	})

	outcome, err := store.Users().RecordReport(ctx, "citizen", policy)
	require.NoError(t, err)
	assert.True(t, outcome.PaidOut)
	assert.Equal(t, 5, outcome.ReportCount)
	assert.Equal(t, "referrer", outcome.ReferrerID)

	outcome, err = store.Users().RecordReport(ctx, "citizen", policy)
	require.NoError(t, err)
	assert.False(t, outcome.PaidOut)
	assert.Equal(t, 6, outcome.ReportCount)

	citizen, _ := store.Users().GetByID(ctx, "citizen")
	referrer, _ := store.Users().GetByID(ctx, "referrer")
	assert.Equal(t, int64(10), citizen.Balance)
	assert.Equal(t, int64(10), referrer.Balance)
	assert.Equal(t, domain.ReferralStatusCompleted, citizen.ReferralStatus)
}

func TestMemoryStore_RecordReportConcurrent(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	seedUser(t, store, "referrer", nil)
	seedUser(t, store, "citizen", func(u *domain.User) {
		ref := "referrer"
		u.ReferredBy = &ref
		u.ReferralStatus = domain.ReferralStatusPending
		u.ReportCount = 4
	})

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		payouts int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			outcome, err := store.Users().RecordReport(ctx, "citizen", policy)
			assert.NoError(t, err)
			if outcome.PaidOut {
				mu.Lock()
				payouts++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, payouts)
	referrer, _ := store.Users().GetByID(ctx, "referrer")
	assert.Equal(t, int64(10), referrer.Balance)
	citizen, _ := store.Users().GetByID(ctx, "citizen")
	assert.Equal(t, 12, citizen.ReportCount)
}

func TestMemoryStore_RecordReportMissingReferrerRollsBack(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	seedUser(t, store, "citizen", func(u *domain.User) {
		ref := "ghost"
		u.ReferredBy = &ref
		u.ReferralStatus = domain.ReferralStatusPending
		u.ReportCount = 4
	})

	_, err := store.Users().RecordReport(ctx, "citizen", policy)
	require.ErrorIs(t, err, ErrNotFound)

	citizen, _ := store.Users().GetByID(ctx, "citizen")
	assert.Equal(t, 4, citizen.ReportCount)
}

func TestMemoryStore_ClaimUsername(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	seedUser(t, store, "u1", nil)
	seedUser(t, store, "u2", nil)

	require.NoError(t, store.Users().ClaimUsername(ctx, "pothole_hunter", "u1"))
	assert.ErrorIs(t, store.Users().ClaimUsername(ctx, "pothole_hunter", "u2"), ErrDuplicate)

	u1, _ := store.Users().GetByID(ctx, "u1")
	require.NotNil(t, u1.Username)
	assert.Equal(t, "pothole_hunter", *u1.Username)
}

func TestMemoryStore_NeighborEdgeIsSymmetric(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	seedUser(t, store, "alice", nil)
	seedUser(t, store, "bob", nil)

	require.NoError(t, store.Neighbors().Create(ctx, domain.NewNeighborEdge("bob", "alice", time.Now())))
	assert.ErrorIs(t, store.Neighbors().Create(ctx, domain.NewNeighborEdge("alice", "bob", time.Now())), ErrDuplicate)

	for _, pair := range [][2]string{{"alice", "bob"}, {"bob", "alice"}} {
		ok, err := store.Neighbors().Exists(ctx, pair[0], pair[1])
		require.NoError(t, err)
		assert.True(t, ok)
	}

	list, err := store.Neighbors().ListForUser(ctx, "bob")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "alice", list[0].UserID)
	assert.Equal(t, "alice", list[0].Name)

	removed, err := store.Neighbors().Delete(ctx, "alice", "bob")
	require.NoError(t, err)
	assert.True(t, removed)

	count, err := store.Neighbors().CountForUser(ctx, "alice")
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestMemoryStore_FriendRequestPairUnique(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	first := &domain.FriendRequest{FromID: "a", ToID: "b", Status: domain.FriendRequestPending}
	require.NoError(t, store.FriendRequests().Create(ctx, first))
	assert.ErrorIs(t, store.FriendRequests().Create(ctx, &domain.FriendRequest{FromID: "a", ToID: "b"}), ErrDuplicate)
	require.NoError(t, store.FriendRequests().Create(ctx, &domain.FriendRequest{FromID: "b", ToID: "a"}))

	incoming, err := store.FriendRequests().ListForUser(ctx, "b", true)
	require.NoError(t, err)
	require.Len(t, incoming, 1)
	assert.Equal(t, first.ID, incoming[0].ID)
}

func TestMemoryStore_OutboxClaimLease(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, store.Outbox().Enqueue(ctx,
		domain.OutboxEntry{RecipientID: "u1", Title: "first", NextAttemptAt: now},
		domain.OutboxEntry{RecipientID: "u1", Title: "later", NextAttemptAt: now.Add(time.Hour)},
	))

	claimed, err := store.Outbox().ClaimDue(ctx, now, 10, time.Minute)
	require.NoError(t, err)
	require.Len(t, claimed, 1)
	assert.Equal(t, "first", claimed[0].Title)

	again, err := store.Outbox().ClaimDue(ctx, now, 10, time.Minute)
	require.NoError(t, err)
	assert.Empty(t, again)

	require.NoError(t, store.Outbox().MarkDelivered(ctx, claimed[0].ID, now))
	entries := store.OutboxEntries()
	assert.Equal(t, domain.OutboxDelivered, entries[0].State)
	assert.Equal(t, domain.OutboxPending, entries[1].State)
}

func TestMemoryStore_NotificationAppendIdempotent(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	n := domain.Notification{ID: "n1", UserID: "u1", Title: "hi"}
	require.NoError(t, store.Notifications().Append(ctx, n))
	require.NoError(t, store.Notifications().Append(ctx, n))

	list, err := store.Notifications().ListForUser(ctx, "u1", true, 0)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	require.NoError(t, store.Notifications().MarkRead(ctx, "u1", "n1"))
	assert.ErrorIs(t, store.Notifications().MarkRead(ctx, "u2", "n1"), ErrNotFound)

	unread, err := store.Notifications().ListForUser(ctx, "u1", true, 0)
	require.NoError(t, err)
	assert.Empty(t, unread)
}
