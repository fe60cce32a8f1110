package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/streetfix/resolve-service/internal/config"
	"github.com/streetfix/resolve-service/internal/domain"
	"github.com/streetfix/resolve-service/internal/events"
	"github.com/streetfix/resolve-service/internal/repository"
)

// tickingClock advances one second on every read so orderings are deterministic.
type tickingClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *tickingClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Second)
	return c.t
}

type harness struct {
	store      *repository.MemoryStore
	clock      *tickingClock
	dispatcher events.Dispatcher
	published  *[]events.Event
	notifier   *NotificationService
	tickets    *TicketService
	neighbors  *NeighborService
	users      *UserService
	staff      *StaffService
	auth       *AuthService
	assignment *AssignmentService
}

func testConfig() config.Config {
	return config.Config{
		Auth: config.AuthConfig{JWTSecret: "test-secret", AccessTokenTTLMinutes: 15, BcryptCost: 4},
	}
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	store := repository.NewMemoryStore()
	clock := &tickingClock{t: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}
	dispatcher := events.NewInMemoryDispatcher()

	var mu sync.Mutex
	published := []events.Event{}
	dispatcher.SubscribeAll(func(_ context.Context, e events.Event) error {
		mu.Lock()
		defer mu.Unlock()
		published = append(published, e)
		return nil
	})

	notifier := NewNotificationService(NotificationDependencies{
		UserRepo:         store.Users(),
		OutboxRepo:       store.Outbox(),
		NotificationRepo: store.Notifications(),
		Clock:            clock.Now,
	})
	cfg := testConfig()
	return &harness{
		store:      store,
		clock:      clock,
		dispatcher: dispatcher,
		published:  &published,
		notifier:   notifier,
		tickets: NewTicketService(TicketDependencies{
			Transactor:   store,
			TicketRepo:   store.Tickets(),
			HistoryRepo:  store.History(),
			UserRepo:     store.Users(),
			NeighborRepo: store.Neighbors(),
			Notifier:     notifier,
			Dispatcher:   dispatcher,
			Referral:     domain.ReferralPolicy{Threshold: 5, Reward: 10},
			Clock:        clock.Now,
		}),
		neighbors: NewNeighborService(NeighborDependencies{
			Transactor:   store,
			RequestRepo:  store.FriendRequests(),
			NeighborRepo: store.Neighbors(),
			UserRepo:     store.Users(),
			Notifier:     notifier,
			Dispatcher:   dispatcher,
			Clock:        clock.Now,
		}),
		users: NewUserService(UserDependencies{
			UserRepo:     store.Users(),
			NeighborRepo: store.Neighbors(),
			Clock:        clock.Now,
		}),
		staff: NewStaffService(cfg, StaffDependencies{
			Transactor: store,
			UserRepo:   store.Users(),
			Clock:      clock.Now,
		}),
		auth: NewAuthService(cfg, AuthDependencies{
			Transactor: store,
			UserRepo:   store.Users(),
			Clock:      clock.Now,
		}),
		assignment: NewAssignmentService(AssignmentDependencies{
			TicketRepo: store.Tickets(),
			UserRepo:   store.Users(),
		}),
	}
}

func (h *harness) addUser(t *testing.T, id string, role domain.Role, mutate ...func(*domain.User)) *domain.User {
	t.Helper()
	now := h.clock.Now()
	u := &domain.User{
		ID:             id,
		Email:          id + "@city.example",
		Role:           role,
		Name:           id,
		ReferralCode:   "CODE" + id,
		ReferralStatus: domain.ReferralStatusNone,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if role == domain.RoleEngineer {
		u.EngineerStatus = domain.EngineerAvailable
	}
	for _, m := range mutate {
		m(u)
	}
	require.NoError(t, h.store.Users().Create(context.Background(), u))
	return u
}

// outboxFor returns titles of entries staged for userID, in staging order.
func (h *harness) outboxFor(userID string) []string {
	var titles []string
	for _, e := range h.store.OutboxEntries() {
		if e.RecipientID == userID {
			titles = append(titles, e.Title)
		}
	}
	return titles
}

func (h *harness) user(t *testing.T, id string) *domain.User {
	t.Helper()
	u, err := h.store.Users().GetByID(context.Background(), id)
	require.NoError(t, err)
	return u
}

func (h *harness) events(typ events.EventType) []events.Event {
	var out []events.Event
	for _, e := range *h.published {
		if e.Type == typ {
			out = append(out, e)
		}
	}
	return out
}

func streetlight() domain.NewTicketInput {
	return domain.NewTicketInput{
		Title:     "Broken streetlight",
		Category:  "street_light",
		Latitude:  52.24,
		Longitude: -0.90,
		Address:   "High Street",
		Photos:    []string{"https://media.example.org/photo/a.jpg"},
	}
}
