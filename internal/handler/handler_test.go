package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/it-helpdesk/internal/config"
	"github.com/iliyamo/it-helpdesk/internal/database"
	"github.com/iliyamo/it-helpdesk/internal/database/dbtest"
	"github.com/iliyamo/it-helpdesk/internal/handler"
	"github.com/iliyamo/it-helpdesk/internal/middleware"
	"github.com/iliyamo/it-helpdesk/internal/model"
	"github.com/iliyamo/it-helpdesk/internal/queue"
	"github.com/iliyamo/it-helpdesk/internal/repository"
	"github.com/iliyamo/it-helpdesk/internal/router"
	"github.com/iliyamo/it-helpdesk/internal/service"
	"github.com/iliyamo/it-helpdesk/internal/utils"
)

const testSecret = "test-secret"

var testChecklist = []string{"equipment_intact", "accessories_returned", "powers_on"}

// app is the full route table over a fresh SQLite database.  Events are
// delivered in-process so notifications appear synchronously.
type app struct {
	e           *echo.Echo
	db          *database.DB
	cfg         config.Config
	users       *repository.UserRepo
	invalidated int

	adminID, techID, managerID uint64
	admin, tech, manager       string // bearer tokens
}

func newApp(t *testing.T) *app {
	t.Helper()
	d := dbtest.Open(t)
	a := &app{
		db: d,
		cfg: config.Config{
			JWTSecret:             testSecret,
			AccessTTLMin:          15,
			RefreshTTLDays:        7,
			BcryptCost:            4,
			PublicSessionTTLHours: 1,
			UploadDir:             t.TempDir(),
			MaxUploadBytes:        64,
		},
		users: repository.NewUserRepo(d),
	}

	sessions := repository.NewSessionRepo(d)
	publics := repository.NewPublicUserRepo(d)
	tickets := repository.NewTicketRepo(d)
	notifier := service.NewNotificationService(repository.NewNotificationRepo(d), a.users)
	events := queue.DirectPublisher{Sink: notifier}

	sla := service.NewSLA(nil)
	ticketSvc := service.NewTicketService(tickets, repository.NewMessageRepo(d), publics, a.users, events, sla)
	inventorySvc := service.NewInventoryService(d, events, testChecklist)

	a.e = echo.New()
	router.Register(a.e, router.Deps{
		JWTSecret:     testSecret,
		Sessions:      sessions,
		Health:        handler.NewHealthHandler(d),
		Auth:          handler.NewAuthHandler(a.cfg, a.users, repository.NewTokenRepo(d)),
		PublicAuth:    handler.NewPublicAuthHandler(a.cfg, publics, sessions),
		Tickets:       handler.NewTicketHandler(ticketSvc, service.NewAttachmentService(ticketSvc, a.cfg.UploadDir, a.cfg.MaxUploadBytes)),
		Inventory:     handler.NewInventoryHandler(inventorySvc),
		Reports:       handler.NewReportHandler(service.NewReportService(tickets, inventorySvc.Equipment, inventorySvc.Terms, sla)),
		Articles:      handler.NewArticleHandler(repository.NewArticleRepo(d), func(context.Context) { a.invalidated++ }),
		Notifications: handler.NewNotificationHandler(notifier),
	})

	a.adminID, a.admin = a.staff(t, "admin@corp.io", "Admin", model.RoleAdmin)
	a.techID, a.tech = a.staff(t, "tech@corp.io", "Tech", model.RoleITStaff)
	a.managerID, a.manager = a.staff(t, "boss@corp.io", "Boss", model.RoleManager)
	return a
}

// staff creates an internal user with password "password1" and returns its
// id and a bearer token.
func (a *app) staff(t *testing.T, email, name, role string) (uint64, string) {
	t.Helper()
	id, err := a.users.Create(context.Background(), email, name, "password1", role, 4)
	if err != nil {
		t.Fatalf("create %s: %v", email, err)
	}
	tok, err := utils.NewAccessToken(testSecret, id, role, 15)
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	return id, tok.Token
}

// publicToken logs a requester in and returns the x-user-token.
func (a *app) publicToken(t *testing.T, email string) string {
	t.Helper()
	rec := a.do(t, http.MethodPost, "/api/public-auth/login", echo.Map{"email": email, "name": "Req", "department": "Finance"}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("public login: %d %s", rec.Code, rec.Body.String())
	}
	var out struct {
		Token string `json:"token"`
	}
	decode(t, rec, &out)
	return out.Token
}

func bearer(tok string) map[string]string { return map[string]string{"Authorization": "Bearer " + tok} }

func public(tok string) map[string]string { return map[string]string{middleware.PublicTokenHeader: tok} }

// do sends body as JSON (nil for none) with the given headers.
func (a *app) do(t *testing.T, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	a.e.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
}

func expect(t *testing.T, rec *httptest.ResponseRecorder, code int) {
	t.Helper()
	if rec.Code != code {
		t.Fatalf("expected %d, got %d: %s", code, rec.Code, rec.Body.String())
	}
}

func errorOf(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error string `json:"error"`
	}
	decode(t, rec, &body)
	return body.Error
}

func TestHealth(t *testing.T) {
	a := newApp(t)
	rec := a.do(t, http.MethodGet, "/healthz", nil, nil)
	expect(t, rec, http.StatusOK)
	if rec.Body.String() != "ok" {
		t.Fatalf("unexpected body %q", rec.Body.String())
	}
}

func TestIDsBeyondInt64AreRejected(t *testing.T) {
	a := newApp(t)
	for _, path := range []string{
		"/api/tickets/18446744073709551615",
		"/api/inventory/equipment/18446744073709551615",
		"/api/inventory/terms/9223372036854775808",
		"/api/inventory/terms?equipment_id=9223372036854775808",
		"/api/tickets?assigned_to=9223372036854775808",
	} {
		expect(t, a.do(t, http.MethodGet, path, nil, bearer(a.admin)), http.StatusBadRequest)
	}
	expect(t, a.do(t, http.MethodGet, "/api/inventory/terms/9223372036854775807", nil, bearer(a.admin)), http.StatusNotFound)
}
