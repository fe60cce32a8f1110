package workflow

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/streetfix/resolve-service/internal/domain"
)

var now = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func strPtr(s string) *string { return &s }

func ticketIn(status domain.TicketStatus) domain.Ticket {
	t := domain.Ticket{ID: "t1", Kind: domain.TicketKindIssue, Status: status}
	switch status {
	case domain.TicketStatusAssigned, domain.TicketStatusInProgress, domain.TicketStatusResolved,
		domain.TicketStatusVerified, domain.TicketStatusReopened:
		t.AssignedTo = strPtr("eng-1")
	}
	return t
}

func TestCanTransitionTo_MatchesTable(t *testing.T) {
	edges := map[domain.TicketStatus][]domain.TicketStatus{
		domain.TicketStatusDraft:      {domain.TicketStatusSubmitted},
		domain.TicketStatusSubmitted:  {domain.TicketStatusAssigned, domain.TicketStatusUnderReview},
		domain.TicketStatusAssigned:   {domain.TicketStatusInProgress},
		domain.TicketStatusInProgress: {domain.TicketStatusResolved},
		domain.TicketStatusResolved:   {domain.TicketStatusVerified, domain.TicketStatusReopened},
		domain.TicketStatusReopened:   {domain.TicketStatusAssigned},
	}
	for _, from := range Statuses() {
		for _, to := range Statuses() {
			want := false
			for _, allowed := range edges[from] {
				if allowed == to {
					want = true
				}
			}
			assert.Equal(t, want, CanTransitionTo(from, to), "%s -> %s", from, to)
		}
	}

	assert.False(t, CanTransitionTo(domain.TicketStatusVerified, domain.TicketStatusResolved))
	assert.True(t, CanTransitionTo(domain.TicketStatusResolved, domain.TicketStatusVerified))
}

func TestCanAssign(t *testing.T) {
	assignable := map[domain.TicketStatus]bool{
		domain.TicketStatusSubmitted:   true,
		domain.TicketStatusReopened:    true,
		domain.TicketStatusUnderReview: true,
	}
	for _, status := range Statuses() {
		assert.Equal(t, assignable[status], CanAssign(status), string(status))
	}
}

func TestApply_AssignGuard(t *testing.T) {
	for _, status := range []domain.TicketStatus{
		domain.TicketStatusAssigned, domain.TicketStatusInProgress,
		domain.TicketStatusResolved, domain.TicketStatusVerified,
	} {
		_, err := Apply(ticketIn(status), Assign("eng-2", now))
		require.Error(t, err, status)
		assert.True(t, errors.Is(err, ErrIllegal))

		var te *TransitionError
		require.True(t, errors.As(err, &te))
		assert.Equal(t, status, te.From)
	}

	for _, status := range []domain.TicketStatus{
		domain.TicketStatusSubmitted, domain.TicketStatusReopened, domain.TicketStatusUnderReview,
	} {
		next, err := Apply(ticketIn(status), Assign("eng-2", now))
		require.NoError(t, err, status)
		assert.Equal(t, domain.TicketStatusAssigned, next.Status)
		assert.Equal(t, "eng-2", *next.AssignedTo)
	}
}

func TestApply_AssignRequiresEngineer(t *testing.T) {
	_, err := Apply(ticketIn(domain.TicketStatusSubmitted), Assign("  ", now))
	assert.ErrorIs(t, err, ErrUnassigned)
}

func TestApply_ResolveRequiresEvidence(t *testing.T) {
	cases := []struct {
		name  string
		notes string
		photo string
	}{
		{"missing notes", "", "https://cdn/after.jpg"},
		{"blank notes", "   ", "https://cdn/after.jpg"},
		{"missing photo", "Replaced bulb", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Apply(ticketIn(domain.TicketStatusInProgress), Resolve(tc.notes, tc.photo, now))
			assert.ErrorIs(t, err, ErrEvidenceRequired)
		})
	}
}

func TestApply_ResolveFromAssignedWalksThroughInProgress(t *testing.T) {
	next, err := Apply(ticketIn(domain.TicketStatusAssigned), Resolve("Replaced bulb", "after.jpg", now))
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusResolved, next.Status)
	assert.Equal(t, "Replaced bulb", next.ResolutionNotes)
	assert.Equal(t, "after.jpg", *next.AfterPhoto)
	require.NotNil(t, next.ResolvedAt)
	assert.Equal(t, now, *next.ResolvedAt)

	_, err = Apply(ticketIn(domain.TicketStatusSubmitted), Resolve("notes", "after.jpg", now))
	assert.ErrorIs(t, err, ErrIllegal)
}

func TestApply_VerifyFailsClosed(t *testing.T) {
	for _, status := range Statuses() {
		_, err := Apply(ticketIn(status), Verify(now))
		if status == domain.TicketStatusResolved {
			assert.NoError(t, err)
			continue
		}
		assert.ErrorIs(t, err, ErrIllegal, status)
	}
}

func TestApply_ReopenKeepsEngineer(t *testing.T) {
	next, err := Apply(ticketIn(domain.TicketStatusResolved), Reopen("Light still out", now))
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusReopened, next.Status)
	assert.Equal(t, "eng-1", *next.AssignedTo)
	assert.Equal(t, "Light still out", next.RejectionReason)
	require.NotNil(t, next.ReopenedAt)

	_, err = Apply(ticketIn(domain.TicketStatusResolved), Reopen("", now))
	assert.ErrorIs(t, err, ErrReasonRequired)
}

func TestApply_MergeBypassesTable(t *testing.T) {
	for _, status := range Statuses() {
		next, err := Apply(ticketIn(status), Merge("parent", now))
		if status == domain.TicketStatusMerged {
			assert.ErrorIs(t, err, ErrIllegal)
			continue
		}
		require.NoError(t, err, status)
		assert.Equal(t, domain.TicketStatusMerged, next.Status)
		assert.Equal(t, "parent", *next.MergedInto)
		assert.Contains(t, next.ResolutionNotes, "parent")
	}

	_, err := Apply(ticketIn(domain.TicketStatusSubmitted), Merge("t1", now))
	assert.ErrorIs(t, err, ErrIllegal, "a ticket cannot be merged into itself")
}

func TestApply_SocialPostsRejected(t *testing.T) {
	post := ticketIn(domain.TicketStatusSubmitted)
	post.Kind = domain.TicketKindSocial
	_, err := Apply(post, Assign("eng-1", now))
	assert.ErrorIs(t, err, ErrNotAnIssue)
}

func TestApply_DoesNotMutateInput(t *testing.T) {
	original := ticketIn(domain.TicketStatusSubmitted)
	original.Photos = []string{"a.jpg"}
	next, err := Apply(original, Assign("eng-9", now))
	require.NoError(t, err)

	next.Photos[0] = "b.jpg"
	assert.Equal(t, domain.TicketStatusSubmitted, original.Status)
	assert.Nil(t, original.AssignedTo)
	assert.Equal(t, "a.jpg", original.Photos[0])
}

func TestApply_VerifiedIsTerminal(t *testing.T) {
	verified := ticketIn(domain.TicketStatusVerified)
	for _, action := range []Action{
		Submit(now), Review(now), Assign("eng-1", now), StartWork(now),
		Resolve("n", "p", now), Verify(now), Reopen("r", now),
	} {
		_, err := Apply(verified, action)
		assert.Error(t, err, action.Type)
	}
}
