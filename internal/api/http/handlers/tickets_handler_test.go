package handlers_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/harborview/support-service/internal/api/dto"
	apihttp "github.com/harborview/support-service/internal/api/http"
	"github.com/harborview/support-service/internal/api/http/handlers"
	"github.com/harborview/support-service/internal/auth"
	"github.com/harborview/support-service/internal/config"
	"github.com/harborview/support-service/internal/domain"
	"github.com/harborview/support-service/internal/events"
	"github.com/harborview/support-service/internal/observability"
	"github.com/harborview/support-service/internal/policy"
	"github.com/harborview/support-service/internal/repository"
	"github.com/harborview/support-service/internal/service"
)

type apiFixture struct {
	app    *fiber.App
	tokens *auth.TokenManager
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()

	store := repository.NewMemoryStore()
	supportCfg := config.SupportConfig{
		Categories: []config.Lookup{
			{Value: "billing", Label: "Billing & Invoicing"},
			{Value: "other", Label: "Other"},
		},
		OverdueThresholds: domain.OverdueThresholds{
			domain.TicketPriorityLow:    14,
			domain.TicketPriorityMedium: 10,
			domain.TicketPriorityHigh:   5,
			domain.TicketPriorityUrgent: 2,
		},
	}
	ticketService := service.NewTicketService(service.TicketDependencies{
		TicketRepo:  store,
		CommentRepo: store.Comments(),
		Policy:      policy.New(),
		Dispatcher:  events.NewInMemoryDispatcher(),
		Support:     supportCfg,
	})

	tokens := auth.NewTokenManager("test-secret")
	logger := zap.NewNop()

	app := fiber.New()
	apihttp.RegisterMiddlewares(app, logger, observability.NewMetrics(), 5*time.Second)
	apihttp.RegisterRoutes(app, apihttp.RouteConfig{
		Health:         handlers.NewHealthHandler("support-service", "test", nil, nil),
		Tickets:        handlers.NewTicketsHandler(ticketService),
		Lookups:        handlers.NewLookupsHandler(supportCfg),
		AuthMiddleware: auth.NewAuthMiddleware(tokens),
	})
	return &apiFixture{app: app, tokens: tokens}
}

func (f *apiFixture) request(t *testing.T, actor *domain.Actor, method, path string, body any) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(encoded)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if actor != nil {
		token, err := f.tokens.IssueToken(*actor, time.Hour)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := f.app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func decodeData[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var envelope struct {
		Data T `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
	return envelope.Data
}

func decodeError(t *testing.T, resp *http.Response) (code, message string) {
	t.Helper()
	defer resp.Body.Close()
	var envelope struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
	return envelope.Error.Code, envelope.Error.Message
}

var (
	apiPatient = domain.Actor{ID: "patient-1", Role: domain.RolePatient}
	apiAdmin   = domain.Actor{ID: "admin-1", Role: domain.RoleAdministrator}
)

func (f *apiFixture) createTicket(t *testing.T, actor domain.Actor, team string) dto.TicketResponse {
	t.Helper()
	resp := f.request(t, &actor, fiber.MethodPost, "/api/v1/tickets", dto.CreateTicketRequest{
		Title:        "Cannot download statement",
		Description:  "The PDF link returns an error page",
		Category:     "billing",
		Priority:     "high",
		AssignedTeam: team,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	return decodeData[dto.TicketResponse](t, resp)
}

func TestAPIRequiresBearerToken(t *testing.T) {
	f := newAPIFixture(t)

	resp := f.request(t, nil, fiber.MethodGet, "/api/v1/tickets", nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	code, _ := decodeError(t, resp)
	assert.Equal(t, "UNAUTHORIZED", code)

	req := httptest.NewRequest(fiber.MethodGet, "/api/v1/tickets", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	resp, err := f.app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestAPICreateAndFetchTicket(t *testing.T) {
	f := newAPIFixture(t)

	created := f.createTicket(t, apiPatient, "COORDINATOR")
	assert.NotEmpty(t, created.ID)
	assert.Regexp(t, `^HSP-`, created.ExternalKey)
	assert.Equal(t, domain.TicketStatusNew, created.Status)
	assert.Equal(t, domain.TicketPriorityHigh, created.Priority)
	assert.Equal(t, apiPatient.ID, created.CreatedBy)
	assert.Equal(t, 0, created.DaysOpen)
	assert.False(t, created.IsUrgent)

	resp := f.request(t, &apiPatient, fiber.MethodGet, "/api/v1/tickets/"+created.ID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	detail := decodeData[dto.TicketDetailResponse](t, resp)
	assert.Equal(t, created.ID, detail.ID)
	assert.Empty(t, detail.Transitions)

	resp = f.request(t, &apiPatient, fiber.MethodGet, "/api/v1/tickets/does-not-exist", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	code, _ := decodeError(t, resp)
	assert.Equal(t, "NOT_FOUND", code)
}

func TestAPICreateTicketErrors(t *testing.T) {
	f := newAPIFixture(t)

	resp := f.request(t, &apiPatient, fiber.MethodPost, "/api/v1/tickets", dto.CreateTicketRequest{
		Title: "", Description: "d", Category: "billing", AssignedTeam: "COORDINATOR",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	code, _ := decodeError(t, resp)
	assert.Equal(t, "VALIDATION_FAILED", code)

	// Administrators may not route tickets to their own team.
	resp = f.request(t, &apiAdmin, fiber.MethodPost, "/api/v1/tickets", dto.CreateTicketRequest{
		Title: "t", Description: "d", Category: "other", AssignedTeam: "ADMINISTRATOR",
	})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	code, _ = decodeError(t, resp)
	assert.Equal(t, "POLICY_VIOLATION", code)
}

func TestAPIStatusLifecycle(t *testing.T) {
	f := newAPIFixture(t)
	created := f.createTicket(t, apiPatient, "COORDINATOR")

	resp := f.request(t, &apiAdmin, fiber.MethodPatch, "/api/v1/tickets/"+created.ID+"/status",
		dto.UpdateStatusRequest{Status: "in_progress", Notes: "on it"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	updated := decodeData[dto.TicketResponse](t, resp)
	assert.Equal(t, domain.TicketStatusInProgress, updated.Status)

	// NEW -> RESOLVED is not an edge anymore; the ticket is IN_PROGRESS, and
	// IN_PROGRESS -> NEW never is.
	resp = f.request(t, &apiAdmin, fiber.MethodPatch, "/api/v1/tickets/"+created.ID+"/status",
		dto.UpdateStatusRequest{Status: "NEW"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	code, _ := decodeError(t, resp)
	assert.Equal(t, "INVALID_TRANSITION", code)

	resp = f.request(t, &apiAdmin, fiber.MethodPatch, "/api/v1/tickets/"+created.ID+"/status",
		dto.UpdateStatusRequest{Status: "RESOLVED", Notes: "fixed"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = f.request(t, &apiAdmin, fiber.MethodGet, "/api/v1/tickets/"+created.ID, nil)
	detail := decodeData[dto.TicketDetailResponse](t, resp)
	require.Len(t, detail.Transitions, 2)
	assert.Equal(t, 1, detail.Transitions[0].Seq)
	assert.Equal(t, domain.TicketStatusResolved, detail.Transitions[1].ToStatus)
	assert.Equal(t, apiAdmin.ID, detail.Transitions[0].ActorID)

	resp = f.request(t, &apiAdmin, fiber.MethodPatch, "/api/v1/tickets/"+created.ID+"/status",
		dto.UpdateStatusRequest{Status: ""})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAPIListAndStats(t *testing.T) {
	f := newAPIFixture(t)
	f.createTicket(t, apiPatient, "COORDINATOR")
	f.createTicket(t, apiPatient, "ADMINISTRATOR")

	// Administrators see the coordinator queue only.
	resp := f.request(t, &apiAdmin, fiber.MethodGet, "/api/v1/tickets?status=NEW&priority=high", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	page := decodeData[dto.TicketListResponse](t, resp)
	assert.Equal(t, 1, page.Total)
	require.Len(t, page.Items, 1)
	assert.Equal(t, domain.TeamCoordinator, page.Items[0].AssignedTeam)

	resp = f.request(t, &apiPatient, fiber.MethodGet, "/api/v1/tickets?my_tickets=true&page_size=1", nil)
	page = decodeData[dto.TicketListResponse](t, resp)
	assert.Equal(t, 2, page.Total)
	assert.Len(t, page.Items, 1)

	resp = f.request(t, &apiPatient, fiber.MethodGet, "/api/v1/tickets/stats", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	stats := decodeData[dto.DashboardStatsResponse](t, resp)
	assert.Equal(t, 2, stats.Total)
	assert.Equal(t, 2, stats.ByStatus["NEW"])
	assert.Equal(t, 2, stats.MyTickets)
}

func TestAPICommentThread(t *testing.T) {
	f := newAPIFixture(t)
	created := f.createTicket(t, apiPatient, "COORDINATOR")

	for i := 1; i <= 2; i++ {
		resp := f.request(t, &apiAdmin, fiber.MethodPost, "/api/v1/tickets/"+created.ID+"/comments",
			dto.CreateCommentRequest{Body: fmt.Sprintf("note %d", i)})
		require.Equal(t, http.StatusCreated, resp.StatusCode)
		comment := decodeData[dto.CommentResponse](t, resp)
		assert.Equal(t, i, comment.Seq)
	}

	resp := f.request(t, &apiAdmin, fiber.MethodGet, "/api/v1/tickets/"+created.ID+"/comments", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	thread := decodeData[[]dto.CommentResponse](t, resp)
	require.Len(t, thread, 2)
	assert.Equal(t, "note 1", thread[0].Body)
	assert.Equal(t, "note 2", thread[1].Body)

	resp = f.request(t, &apiAdmin, fiber.MethodPost, "/api/v1/tickets/"+created.ID+"/comments",
		dto.CreateCommentRequest{Body: "  "})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAPILookupsAndHealth(t *testing.T) {
	f := newAPIFixture(t)

	resp := f.request(t, &apiPatient, fiber.MethodGet, "/api/v1/lookups/categories", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	categories := decodeData[[]config.Lookup](t, resp)
	require.Len(t, categories, 2)
	assert.Equal(t, "billing", categories[0].Value)

	resp = f.request(t, &apiPatient, fiber.MethodGet, "/api/v1/lookups/teams", nil)
	teams := decodeData[[]config.Lookup](t, resp)
	assert.Len(t, teams, 2)

	// Health endpoints stay outside the auth boundary.
	resp = f.request(t, nil, fiber.MethodGet, "/health/live", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
