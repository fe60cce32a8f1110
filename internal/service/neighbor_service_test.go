package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/streetfix/resolve-service/internal/domain"
	"github.com/streetfix/resolve-service/internal/events"
	apperrors "github.com/streetfix/resolve-service/pkg/util/errorutil"
)

func TestNeighbors_RequestAcceptRemove(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.addUser(t, "alice", domain.RoleCitizen)
	h.addUser(t, "bob", domain.RoleCitizen)

	_, err := h.neighbors.SendRequest(ctx, "alice", "alice")
	assert.True(t, apperrors.Is(err, apperrors.CodeValidation))

	req, err := h.neighbors.SendRequest(ctx, "alice", "bob")
	require.NoError(t, err)
	assert.Equal(t, domain.FriendRequestPending, req.Status)
	assert.Equal(t, "alice", req.FromName)
	assert.Equal(t, []string{"New neighbor request"}, h.outboxFor("bob"))
	assert.Equal(t, []string{"Request sent"}, h.outboxFor("alice"))

	_, err = h.neighbors.SendRequest(ctx, "alice", "bob")
	require.True(t, apperrors.Is(err, apperrors.CodeConflict))
	assert.Contains(t, err.Error(), "already sent")

	// a crossing invitation is settled by the acceptance
	_, err = h.neighbors.SendRequest(ctx, "bob", "alice")
	require.NoError(t, err)

	_, err = h.neighbors.AcceptRequest(ctx, req.ID, "alice")
	assert.True(t, apperrors.Is(err, apperrors.CodeForbidden))

	neighbor, err := h.neighbors.AcceptRequest(ctx, req.ID, "bob")
	require.NoError(t, err)
	assert.Equal(t, "alice", neighbor.UserID)
	assert.Equal(t, 1, h.user(t, "alice").NeighborCount)
	assert.Equal(t, 1, h.user(t, "bob").NeighborCount)
	assert.Contains(t, h.outboxFor("alice"), "Request accepted")
	assert.Contains(t, h.outboxFor("bob"), "New neighbor")

	for _, id := range []string{"alice", "bob"} {
		incoming, err := h.neighbors.ListRequests(ctx, id, true)
		require.NoError(t, err)
		assert.Empty(t, incoming, id)
	}

	list, err := h.neighbors.ListNeighbors(ctx, "bob")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "alice", list[0].UserID)

	_, err = h.neighbors.SendRequest(ctx, "bob", "alice")
	require.True(t, apperrors.Is(err, apperrors.CodeConflict))
	assert.Contains(t, err.Error(), "already neighbors")

	require.NoError(t, h.neighbors.RemoveNeighbor(ctx, "bob", "alice"))
	assert.Zero(t, h.user(t, "alice").NeighborCount)
	assert.Zero(t, h.user(t, "bob").NeighborCount)
	assert.Contains(t, h.outboxFor("alice"), "Neighbor removed")

	err = h.neighbors.RemoveNeighbor(ctx, "bob", "alice")
	assert.True(t, apperrors.Is(err, apperrors.CodeNotFound))

	changes := h.events(events.EventNeighborChanged)
	require.Len(t, changes, 4)
	assert.Equal(t, NeighborRemoved, changes[3].Payload.(events.NeighborChangedPayload).Change)
}

func TestNeighbors_DeclineAndClear(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.addUser(t, "alice", domain.RoleCitizen)
	h.addUser(t, "bob", domain.RoleCitizen)
	h.addUser(t, "carol", domain.RoleCitizen)

	req, err := h.neighbors.SendRequest(ctx, "carol", "bob")
	require.NoError(t, err)

	err = h.neighbors.ClearRequest(ctx, req.ID, "carol")
	assert.True(t, apperrors.Is(err, apperrors.CodeConflict), "pending requests cannot be cleared")

	_, err = h.neighbors.DeclineRequest(ctx, req.ID, "alice")
	assert.True(t, apperrors.Is(err, apperrors.CodeForbidden))

	declined, err := h.neighbors.DeclineRequest(ctx, req.ID, "bob")
	require.NoError(t, err)
	assert.Equal(t, domain.FriendRequestDeclined, declined.Status)

	_, err = h.neighbors.AcceptRequest(ctx, req.ID, "bob")
	assert.True(t, apperrors.Is(err, apperrors.CodeConflict))

	_, err = h.neighbors.SendRequest(ctx, "carol", "bob")
	assert.True(t, apperrors.Is(err, apperrors.CodeConflict), "a declined request blocks resending until cleared")

	err = h.neighbors.ClearRequest(ctx, req.ID, "alice")
	assert.True(t, apperrors.Is(err, apperrors.CodeForbidden))

	require.NoError(t, h.neighbors.ClearRequest(ctx, req.ID, "carol"))
	sent, err := h.neighbors.ListRequests(ctx, "carol", false)
	require.NoError(t, err)
	assert.Empty(t, sent)

	_, err = h.neighbors.SendRequest(ctx, "carol", "bob")
	assert.NoError(t, err)

	assert.Zero(t, h.user(t, "bob").NeighborCount)
	assert.Zero(t, h.user(t, "carol").NeighborCount)
}

func TestNeighbors_UnknownParties(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.addUser(t, "alice", domain.RoleCitizen)

	_, err := h.neighbors.SendRequest(ctx, "alice", "ghost")
	assert.True(t, apperrors.Is(err, apperrors.CodeNotFound))

	_, err = h.neighbors.AcceptRequest(ctx, "missing", "alice")
	assert.True(t, apperrors.Is(err, apperrors.CodeNotFound))

	h.addUser(t, "dana", domain.RoleDispatcher)
	_, err = h.neighbors.SendRequest(ctx, "alice", "dana")
	assert.True(t, apperrors.Is(err, apperrors.CodeValidation), "staff accounts cannot answer requests")
	_, err = h.neighbors.SendRequest(ctx, "dana", "alice")
	assert.True(t, apperrors.Is(err, apperrors.CodeValidation))

	outgoing, err := h.neighbors.ListRequests(ctx, "alice", false)
	require.NoError(t, err)
	assert.Empty(t, outgoing)
	assert.Empty(t, h.store.OutboxEntries())
}
