package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/amirphl/leaddesk/app/dto"
	businessflow "github.com/amirphl/leaddesk/business_flow"
	"github.com/amirphl/leaddesk/models"
	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingQueryFlow struct {
	businessflow.LeadQueryFlow
	last *dto.LeadListRequest
	err  error
}

func (f *recordingQueryFlow) ListLeads(ctx context.Context, req *dto.LeadListRequest) (*dto.LeadListResponse, error) {
	f.last = req
	if f.err != nil {
		return nil, f.err
	}
	return &dto.LeadListResponse{Data: []*models.LeadWithLastCall{}, QueryType: businessflow.QueryTypeFast}, nil
}

type fixedLeadFlow struct {
	businessflow.LeadFlow
	leads map[uint]*models.Lead
}

func (f *fixedLeadFlow) GetLead(ctx context.Context, id uint) (*models.Lead, error) {
	lead, ok := f.leads[id]
	if !ok {
		return nil, businessflow.NewBusinessError("LEAD_NOT_FOUND", "Lead not found", businessflow.ErrLeadNotFound)
	}
	return lead, nil
}

// newLeadTestApp mounts the lead handler behind a stand-in for Authenticate
func newLeadTestApp(h *LeadHandler, username, userType string) *fiber.App {
	app := fiber.New()
	app.Use(func(c fiber.Ctx) error {
		c.Locals("username", username)
		c.Locals("user_type", userType)
		return c.Next()
	})
	app.Get("/leads", h.ListLeads)
	app.Get("/leads/:id", h.GetLead)
	return app
}

// apiBody mirrors dto.APIResponse with a typed error detail
type apiBody struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   dto.ErrorDetail `json:"error"`
}

func doGet(t *testing.T, app *fiber.App, target string) (int, apiBody) {
	t.Helper()
	resp, err := app.Test(httptest.NewRequest(http.MethodGet, target, nil))
	require.NoError(t, err)
	defer resp.Body.Close()

	var body apiBody
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return resp.StatusCode, body
}

func TestListLeadsStatusParameters(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  models.StatusFilter
	}{
		{"NoStatus", "", models.AllStatuses()},
		{"LiteralAllMeansPending", "?callStatus=All", models.PendingStatus()},
		{"ExactValue", "?callStatus=Interested", models.ExactStatus("Interested")},
		{"ModeWins", "?statusMode=all&callStatus=All", models.AllStatuses()},
		{"ExplicitPending", "?statusMode=PENDING", models.PendingStatus()},
		{"ExactMode", "?statusMode=EXACT&callStatus=All", models.ExactStatus("All")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			flow := &recordingQueryFlow{}
			app := newLeadTestApp(NewLeadHandler(&fixedLeadFlow{}, flow), "bo", models.UserTypeTL)

			status, body := doGet(t, app, "/leads"+tt.query)
			assert.Equal(t, fiber.StatusOK, status)
			assert.True(t, body.Success)
			require.NotNil(t, flow.last)
			assert.Equal(t, tt.want, flow.last.Status)
		})
	}

	t.Run("UnknownMode", func(t *testing.T) {
		flow := &recordingQueryFlow{}
		app := newLeadTestApp(NewLeadHandler(&fixedLeadFlow{}, flow), "bo", models.UserTypeTL)

		status, body := doGet(t, app, "/leads?statusMode=SOME")
		assert.Equal(t, fiber.StatusBadRequest, status)
		assert.Equal(t, "INVALID_STATUS_MODE", body.Error.Code)
		assert.Nil(t, flow.last)
	})

	t.Run("MalformedDate", func(t *testing.T) {
		app := newLeadTestApp(NewLeadHandler(&fixedLeadFlow{}, &recordingQueryFlow{}), "bo", models.UserTypeTL)

		status, body := doGet(t, app, "/leads?startDate=2026-13-01&endDate=2026-01-02")
		assert.Equal(t, fiber.StatusBadRequest, status)
		assert.Equal(t, "INVALID_DATE", body.Error.Code)
	})

	t.Run("ReversedRange", func(t *testing.T) {
		flow := &recordingQueryFlow{err: businessflow.NewBusinessError("LEAD_FILTER_INVALID", "Invalid date range", businessflow.ErrStartDateAfterEndDate)}
		app := newLeadTestApp(NewLeadHandler(&fixedLeadFlow{}, flow), "bo", models.UserTypeTL)

		status, body := doGet(t, app, "/leads?startDate=2026-02-01&endDate=2026-01-01")
		assert.Equal(t, fiber.StatusBadRequest, status)
		assert.Equal(t, "INVALID_DATE_RANGE", body.Error.Code)
	})
}

func TestListLeadsContactFilter(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  string
	}{
		{"CamelCase", "?contactNumber=9876", "9876"},
		{"Capitalised", "?ContactNumber=9876", "9876"},
		{"CamelCaseWins", "?contactNumber=111&ContactNumber=222", "111"},
		{"Absent", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			flow := &recordingQueryFlow{}
			app := newLeadTestApp(NewLeadHandler(&fixedLeadFlow{}, flow), "bo", models.UserTypeTL)

			status, _ := doGet(t, app, "/leads"+tt.query)
			assert.Equal(t, fiber.StatusOK, status)
			require.NotNil(t, flow.last)
			assert.Equal(t, tt.want, flow.last.ContactSubstring)
		})
	}
}

func TestListLeadsAgentScope(t *testing.T) {
	flow := &recordingQueryFlow{}
	agentApp := newLeadTestApp(NewLeadHandler(&fixedLeadFlow{}, flow), "ann", models.UserTypeAgent)

	_, _ = doGet(t, agentApp, "/leads?callby=cy")
	require.NotNil(t, flow.last)
	assert.Equal(t, "ann", flow.last.CallBy)

	tlApp := newLeadTestApp(NewLeadHandler(&fixedLeadFlow{}, flow), "bo", models.UserTypeTL)
	_, _ = doGet(t, tlApp, "/leads?callby=cy&page=2&limit=5")
	assert.Equal(t, "cy", flow.last.CallBy)
	assert.Equal(t, 2, flow.last.Page)
	assert.Equal(t, 5, flow.last.Limit)
}

func TestGetLeadOwnership(t *testing.T) {
	leads := &fixedLeadFlow{leads: map[uint]*models.Lead{
		1: {ID: 1, CallBy: "ann"},
		2: {ID: 2, CallBy: "cy"},
	}}
	h := NewLeadHandler(leads, &recordingQueryFlow{})

	agent := newLeadTestApp(h, "ann", models.UserTypeAgent)
	status, _ := doGet(t, agent, "/leads/1")
	assert.Equal(t, fiber.StatusOK, status)

	status, body := doGet(t, agent, "/leads/2")
	assert.Equal(t, fiber.StatusNotFound, status)
	assert.Equal(t, "LEAD_NOT_FOUND", body.Error.Code)

	admin := newLeadTestApp(h, "root", models.UserTypeAdmin)
	status, _ = doGet(t, admin, "/leads/2")
	assert.Equal(t, fiber.StatusOK, status)

	status, _ = doGet(t, admin, "/leads/99")
	assert.Equal(t, fiber.StatusNotFound, status)

	status, body = doGet(t, admin, "/leads/abc")
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "INVALID_LEAD_ID", body.Error.Code)
}
