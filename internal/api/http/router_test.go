package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/streetfix/resolve-service/internal/api/http/handlers"
	"github.com/streetfix/resolve-service/internal/auth"
	"github.com/streetfix/resolve-service/internal/config"
	"github.com/streetfix/resolve-service/internal/domain"
	"github.com/streetfix/resolve-service/internal/events"
	"github.com/streetfix/resolve-service/internal/observability"
	"github.com/streetfix/resolve-service/internal/repository"
	"github.com/streetfix/resolve-service/internal/service"
)

type testServer struct {
	app     *fiber.App
	staff   *service.StaffService
	metrics *observability.Metrics
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	cfg := config.Config{
		App:      config.AppConfig{Name: "resolve-test", Version: "test"},
		Auth:     config.AuthConfig{JWTSecret: "router-secret", AccessTokenTTLMinutes: 15, BcryptCost: 4},
		Referral: config.ReferralConfig{Threshold: 5, Reward: 10},
	}
	store := repository.NewMemoryStore()
	dispatcher := events.NewInMemoryDispatcher()
	logger := zap.NewNop()
	metrics := observability.NewMetrics()

	notifier := service.NewNotificationService(service.NotificationDependencies{
		UserRepo:         store.Users(),
		OutboxRepo:       store.Outbox(),
		NotificationRepo: store.Notifications(),
	})
	tickets := service.NewTicketService(service.TicketDependencies{
		Transactor:   store,
		TicketRepo:   store.Tickets(),
		HistoryRepo:  store.History(),
		UserRepo:     store.Users(),
		NeighborRepo: store.Neighbors(),
		Notifier:     notifier,
		Dispatcher:   dispatcher,
		Referral:     domain.ReferralPolicy{Threshold: cfg.Referral.Threshold, Reward: cfg.Referral.Reward},
	})
	users := service.NewUserService(service.UserDependencies{
		UserRepo:     store.Users(),
		NeighborRepo: store.Neighbors(),
	})
	staff := service.NewStaffService(cfg, service.StaffDependencies{Transactor: store, UserRepo: store.Users()})
	authService := service.NewAuthService(cfg, service.AuthDependencies{Transactor: store, UserRepo: store.Users()})
	assignment := service.NewAssignmentService(service.AssignmentDependencies{
		TicketRepo: store.Tickets(),
		UserRepo:   store.Users(),
	})
	neighbors := service.NewNeighborService(service.NeighborDependencies{
		Transactor:   store,
		RequestRepo:  store.FriendRequests(),
		NeighborRepo: store.Neighbors(),
		UserRepo:     store.Users(),
		Notifier:     notifier,
		Dispatcher:   dispatcher,
	})

	app := NewApp(cfg.App.Name)
	RegisterMiddlewares(app, logger, metrics, 0)
	RegisterRoutes(app, RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, nil, nil, metrics),
		Users:          handlers.NewUsersHandler(authService, users),
		Tickets:        handlers.NewTicketsHandler(tickets),
		StaffTickets:   handlers.NewStaffTicketsHandler(tickets, assignment),
		Staff:          handlers.NewStaffHandler(staff),
		Neighbors:      handlers.NewNeighborsHandler(neighbors),
		Notifications:  handlers.NewNotificationsHandler(notifier),
		Media:          handlers.NewMediaHandler(nil),
		AuthMiddleware: auth.NewAuthMiddleware(authService.TokenManager(), users),
	})
	return &testServer{app: app, staff: staff, metrics: metrics}
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) (int, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	out := map[string]any{}
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	}
	return resp.StatusCode, out
}

func (s *testServer) login(t *testing.T, email, password string) string {
	t.Helper()
	status, body := s.do(t, fiber.MethodPost, "/auth/login", "", map[string]any{"email": email, "password": password})
	require.Equal(t, fiber.StatusOK, status, body)
	return body["data"].(map[string]any)["auth"].(map[string]any)["token"].(string)
}

func errorCode(body map[string]any) string {
	envelope, ok := body["error"].(map[string]any)
	if !ok {
		return ""
	}
	code, _ := envelope["code"].(string)
	return code
}

func TestRouter_CitizenToDispatcherFlow(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	_, err := s.staff.CreateStaff(ctx, service.StaffInput{
		Role: domain.RoleDispatcher, Name: "Dana", Email: "dana@city.example", Password: "dispatch-pass",
	})
	require.NoError(t, err)
	engineer, err := s.staff.CreateStaff(ctx, service.StaffInput{
		Role: domain.RoleEngineer, Name: "Eli", Email: "eli@city.example", Password: "engineer-pass",
	})
	require.NoError(t, err)

	status, body := s.do(t, fiber.MethodPost, "/auth/register", "", map[string]any{
		"name":     "Casey",
		"email":    "casey@example.org",
		"username": "casey",
		"password": "citizen-pass",
	})
	require.Equal(t, fiber.StatusCreated, status, body)
	data := body["data"].(map[string]any)
	assert.Equal(t, "citizen", data["user"].(map[string]any)["role"])
	citizenToken := data["auth"].(map[string]any)["token"].(string)
	require.NotEmpty(t, citizenToken)

	status, body = s.do(t, fiber.MethodPost, "/tickets", citizenToken, map[string]any{
		"title":     "Pothole on Mill Lane",
		"category":  "pothole",
		"latitude":  52.2,
		"longitude": -0.9,
		"photos":    []string{"https://media.example.org/p.jpg"},
	})
	require.Equal(t, fiber.StatusCreated, status, body)
	ticket := body["data"].(map[string]any)
	assert.Equal(t, "submitted", ticket["status"])
	ticketID := ticket["id"].(string)

	status, body = s.do(t, fiber.MethodGet, "/tickets/mine", citizenToken, nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Len(t, body["data"], 1)

	dispatcherToken := s.login(t, "dana@city.example", "dispatch-pass")

	status, body = s.do(t, fiber.MethodPost, "/dispatch/tickets/"+ticketID+"/assign", dispatcherToken,
		map[string]any{"engineer_id": engineer.ID})
	require.Equal(t, fiber.StatusOK, status, body)
	assert.Equal(t, "assigned", body["data"].(map[string]any)["status"])
	assert.Equal(t, engineer.ID, body["data"].(map[string]any)["assigned_to"])

	status, body = s.do(t, fiber.MethodPost, "/dispatch/tickets/"+ticketID+"/assign", dispatcherToken,
		map[string]any{"engineer_id": engineer.ID})
	assert.Equal(t, fiber.StatusConflict, status)
	assert.Equal(t, "ILLEGAL_TRANSITION", errorCode(body))
	details := body["error"].(map[string]any)["details"].(map[string]any)
	assert.Equal(t, "assigned", details["current_status"])

	status, body = s.do(t, fiber.MethodGet, "/tickets/"+ticketID+"/history", citizenToken, nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Len(t, body["data"], 2)

	status, body = s.do(t, fiber.MethodGet, "/notifications", citizenToken, nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.NotNil(t, body["data"])
}

func TestRouter_AuthAndRoleGuards(t *testing.T) {
	s := newTestServer(t)

	status, body := s.do(t, fiber.MethodPost, "/tickets", "", map[string]any{"title": "x"})
	assert.Equal(t, fiber.StatusUnauthorized, status)
	assert.Equal(t, "UNAUTHORIZED", errorCode(body))

	status, body = s.do(t, fiber.MethodGet, "/me", "not-a-token", nil)
	assert.Equal(t, fiber.StatusUnauthorized, status)
	assert.Equal(t, "UNAUTHORIZED", errorCode(body))

	status, body = s.do(t, fiber.MethodPost, "/auth/register", "", map[string]any{
		"name": "Robin", "email": "robin@example.org", "username": "robin", "password": "citizen-pass",
	})
	require.Equal(t, fiber.StatusCreated, status, body)
	token := s.login(t, "robin@example.org", "citizen-pass")

	for _, path := range []string{"/dispatch/tickets", "/engineer/jobs", "/qa/tickets"} {
		status, body = s.do(t, fiber.MethodGet, path, token, nil)
		assert.Equal(t, fiber.StatusForbidden, status, path)
		assert.Equal(t, "FORBIDDEN", errorCode(body), path)
	}

	status, body = s.do(t, fiber.MethodGet, "/me", token, nil)
	require.Equal(t, fiber.StatusOK, status)
	me := body["data"].(map[string]any)
	assert.Equal(t, "robin", me["username"])
	assert.NotContains(t, me, "password_hash")

	status, body = s.do(t, fiber.MethodPost, "/auth/login", "", map[string]any{
		"email": "robin@example.org", "password": "wrong-password",
	})
	assert.Equal(t, fiber.StatusUnauthorized, status)
	assert.Equal(t, "invalid credentials", body["error"].(map[string]any)["message"])
}

func TestRouter_ErrorEnvelope(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(fiber.MethodPost, "/auth/register", bytes.NewReader([]byte("{not json")))
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "VALIDATION_FAILED", errorCode(body))

	status, body := s.do(t, fiber.MethodPost, "/auth/register", "", map[string]any{
		"name": "Sam", "email": "sam@example.org", "username": "sam", "password": "short",
	})
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "password", body["error"].(map[string]any)["details"].(map[string]any)["field"])

	status, body = s.do(t, fiber.MethodPost, "/auth/register", "", map[string]any{
		"name": "Sam", "email": "sam@example.org", "username": "sam", "password": "long-enough",
	})
	require.Equal(t, fiber.StatusCreated, status, body)
	token := s.login(t, "sam@example.org", "long-enough")

	status, body = s.do(t, fiber.MethodGet, "/tickets/unknown", token, nil)
	assert.Equal(t, fiber.StatusNotFound, status)
	assert.Equal(t, "NOT_FOUND", errorCode(body))

	status, body = s.do(t, fiber.MethodPost, "/media/uploads", token, map[string]any{
		"purpose": "photo", "content_type": "image/jpeg",
	})
	assert.Equal(t, fiber.StatusServiceUnavailable, status)
	assert.Equal(t, "STORAGE_UNAVAILABLE", errorCode(body))

	var failures int64
	for _, n := range s.metrics.Snapshot().Errors {
		failures += n
	}
	assert.GreaterOrEqual(t, failures, int64(4))
}

func TestRouter_Health(t *testing.T) {
	s := newTestServer(t)

	status, body := s.do(t, fiber.MethodGet, "/health/live", "", nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "alive", body["status"])

	status, body = s.do(t, fiber.MethodGet, "/health/ready", "", nil)
	require.Equal(t, fiber.StatusOK, status)
	deps := body["dependencies"].(map[string]any)
	assert.Equal(t, "in-memory", deps["postgres"])
	assert.Equal(t, "disabled", deps["redis"])
}

func TestRouter_RequestID(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(fiber.MethodGet, "/health/live", nil)
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	resp.Body.Close()
	assert.NotEmpty(t, resp.Header.Get(fiber.HeaderXRequestID))

	req = httptest.NewRequest(fiber.MethodGet, "/health/live", nil)
	req.Header.Set(fiber.HeaderXRequestID, "trace-42")
	resp, err = s.app.Test(req, -1)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "trace-42", resp.Header.Get(fiber.HeaderXRequestID))
}

func TestRouter_ForbiddenNamesRequiredRole(t *testing.T) {
	s := newTestServer(t)
	status, body := s.do(t, fiber.MethodPost, "/auth/register", "", map[string]any{
		"name": "Kim", "email": "kim@example.org", "username": "kim", "password": "citizen-pass",
	})
	require.Equal(t, fiber.StatusCreated, status, body)
	token := s.login(t, "kim@example.org", "citizen-pass")

	status, body = s.do(t, fiber.MethodPost, "/qa/tickets/any/verify", token, nil)
	require.Equal(t, fiber.StatusForbidden, status)
	envelope := body["error"].(map[string]any)
	assert.Equal(t, "requires role qa", envelope["message"])
	assert.Equal(t, []any{"qa"}, envelope["details"].(map[string]any)["required_roles"])
}

func TestRouter_MergeParentSurvivesLaterRequests(t *testing.T) {
	s := newTestServer(t)
	_, err := s.staff.CreateStaff(context.Background(), service.StaffInput{
		Role: domain.RoleDispatcher, Name: "Dana", Email: "dana@city.example", Password: "dispatch-pass",
	})
	require.NoError(t, err)

	status, body := s.do(t, fiber.MethodPost, "/auth/register", "", map[string]any{
		"name": "Casey", "email": "casey@example.org", "username": "casey", "password": "citizen-pass",
	})
	require.Equal(t, fiber.StatusCreated, status, body)
	citizenToken := body["data"].(map[string]any)["auth"].(map[string]any)["token"].(string)

	submit := func(title string) string {
		status, body := s.do(t, fiber.MethodPost, "/tickets", citizenToken, map[string]any{
			"title": title, "category": "pothole", "latitude": 52.2, "longitude": -0.9,
		})
		require.Equal(t, fiber.StatusCreated, status, body)
		return body["data"].(map[string]any)["id"].(string)
	}
	parentID := submit("Pothole on Mill Lane")
	duplicateID := submit("Hole near the mill")

	dispatcherToken := s.login(t, "dana@city.example", "dispatch-pass")
	status, body = s.do(t, fiber.MethodPost, "/dispatch/tickets/"+parentID+"/merge", dispatcherToken,
		map[string]any{"duplicate_ids": []string{duplicateID}})
	require.Equal(t, fiber.StatusOK, status, body)

	// same-length ids reuse the request buffer the merge was read from
	for i := 0; i < 100; i++ {
		status, _ := s.do(t, fiber.MethodGet, fmt.Sprintf("/tickets/%036d", i), citizenToken, nil)
		require.Equal(t, fiber.StatusNotFound, status)
	}

	status, body = s.do(t, fiber.MethodGet, "/tickets/"+duplicateID, citizenToken, nil)
	require.Equal(t, fiber.StatusOK, status, body)
	ticket := body["data"].(map[string]any)
	assert.Equal(t, "merged", ticket["status"])
	assert.Equal(t, parentID, ticket["merged_into"])
}
