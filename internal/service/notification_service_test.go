package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/streetfix/resolve-service/internal/domain"
	apperrors "github.com/streetfix/resolve-service/pkg/util/errorutil"
)

func TestStage_ExpandsRolesAtStagingTime(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.addUser(t, "citizen", domain.RoleCitizen)
	h.addUser(t, "dispatcher-1", domain.RoleDispatcher)
	h.addUser(t, "dispatcher-2", domain.RoleDispatcher)

	staged, err := h.notifier.Stage(ctx,
		ToUser("citizen", domain.NotificationTicketUpdate, "Report received", "Thanks").About("ticket-1"),
		ToRole(domain.RoleDispatcher, domain.NotificationNewTicket, "New report", "Pothole"),
		ToRole(domain.RoleQA, domain.NotificationVerification, "Nobody", "No QA accounts yet"),
	)
	require.NoError(t, err)
	assert.Equal(t, 3, staged)
	assert.Equal(t, []string{"New report"}, h.outboxFor("dispatcher-1"))
	assert.Equal(t, []string{"New report"}, h.outboxFor("dispatcher-2"))

	entries := h.store.OutboxEntries()
	require.Len(t, entries, 3)
	require.NotNil(t, entries[0].TicketID)
	assert.Equal(t, "ticket-1", *entries[0].TicketID)
	assert.Equal(t, domain.OutboxPending, entries[0].State)

	// a dispatcher hired later does not see earlier notices
	h.addUser(t, "dispatcher-3", domain.RoleDispatcher)
	assert.Empty(t, h.outboxFor("dispatcher-3"))

	staged, err = h.notifier.Stage(ctx)
	require.NoError(t, err)
	assert.Zero(t, staged)
}

func TestNotificationStream_ReadState(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	repo := h.store.Notifications()
	for _, n := range []domain.Notification{
		{ID: "n1", UserID: "citizen", Title: "first", CreatedAt: h.clock.Now()},
		{ID: "n2", UserID: "citizen", Title: "second", CreatedAt: h.clock.Now()},
		{ID: "n3", UserID: "citizen", Title: "third", CreatedAt: h.clock.Now()},
		{ID: "n4", UserID: "someone-else", Title: "theirs", CreatedAt: h.clock.Now()},
	} {
		require.NoError(t, repo.Append(ctx, n))
	}

	list, err := h.notifier.ListForUser(ctx, "citizen", false, 2)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "third", list[0].Title)
	assert.Equal(t, "second", list[1].Title)

	require.NoError(t, h.notifier.MarkRead(ctx, "citizen", "n3"))

	err = h.notifier.MarkRead(ctx, "citizen", "n4")
	assert.True(t, apperrors.Is(err, apperrors.CodeNotFound), "cannot mark another account's notification")
	err = h.notifier.MarkRead(ctx, "citizen", " ")
	assert.True(t, apperrors.Is(err, apperrors.CodeValidation))

	unread, err := h.notifier.ListForUser(ctx, "citizen", true, 0)
	require.NoError(t, err)
	assert.Len(t, unread, 2)

	changed, err := h.notifier.MarkAllRead(ctx, "citizen")
	require.NoError(t, err)
	assert.Equal(t, 2, changed)

	unread, err = h.notifier.ListForUser(ctx, "citizen", true, 0)
	require.NoError(t, err)
	assert.NotNil(t, unread)
	assert.Empty(t, unread)

	theirs, err := h.notifier.ListForUser(ctx, "someone-else", true, 0)
	require.NoError(t, err)
	assert.Len(t, theirs, 1)
}
