package handler_test

import (
	"bytes"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

type ticketResp struct {
	ID         uint64  `json:"id"`
	Status     string  `json:"status"`
	Priority   string  `json:"priority"`
	CreatedBy  uint64  `json:"created_by"`
	AssignedTo *uint64 `json:"assigned_to"`
	SLA        struct {
		State       string `json:"state"`
		TargetHours int    `json:"target_hours"`
	} `json:"sla"`
}

func (a *app) openTicket(t *testing.T, tok string) ticketResp {
	t.Helper()
	rec := a.do(t, http.MethodPost, "/api/tickets",
		echo.Map{"title": "VPN down", "description": "cannot connect", "urgency": 3, "impact": 3}, public(tok))
	expect(t, rec, http.StatusCreated)
	var tk ticketResp
	decode(t, rec, &tk)
	return tk
}

func TestPriorityPreview(t *testing.T) {
	a := newApp(t)
	rec := a.do(t, http.MethodGet, "/api/tickets/priority?urgency=2&impact=3", nil, bearer(a.tech))
	expect(t, rec, http.StatusOK)
	var out struct {
		Priority string `json:"priority"`
		SLAHours int    `json:"sla_hours"`
	}
	decode(t, rec, &out)
	if out.Priority != "high" || out.SLAHours != 24 {
		t.Fatalf("unexpected preview %+v", out)
	}

	rec = a.do(t, http.MethodGet, "/api/tickets/priority?urgency=4&impact=1", nil, bearer(a.tech))
	expect(t, rec, http.StatusBadRequest)
	rec = a.do(t, http.MethodGet, "/api/tickets/priority?urgency=1&impact=1", nil, nil)
	expect(t, rec, http.StatusUnauthorized)
}

func TestPublicTicketVisibility(t *testing.T) {
	a := newApp(t)
	ana := a.publicToken(t, "ana@example.org")
	bob := a.publicToken(t, "bob@example.org")

	tk := a.openTicket(t, ana)
	if tk.Priority != "critical" || tk.Status != "open" || tk.SLA.State != "pending" || tk.SLA.TargetHours != 4 {
		t.Fatalf("unexpected ticket %+v", tk)
	}
	a.openTicket(t, bob)

	path := fmt.Sprintf("/api/tickets/%d", tk.ID)
	expect(t, a.do(t, http.MethodGet, path, nil, public(ana)), http.StatusOK)
	expect(t, a.do(t, http.MethodGet, path, nil, public(bob)), http.StatusForbidden)
	expect(t, a.do(t, http.MethodGet, path, nil, nil), http.StatusUnauthorized)
	expect(t, a.do(t, http.MethodGet, "/api/tickets/999", nil, bearer(a.tech)), http.StatusNotFound)
	expect(t, a.do(t, http.MethodGet, "/api/tickets/abc", nil, bearer(a.tech)), http.StatusBadRequest)

	var page struct {
		Data  []ticketResp `json:"data"`
		Total int          `json:"total"`
	}
	rec := a.do(t, http.MethodGet, "/api/tickets", nil, public(ana))
	expect(t, rec, http.StatusOK)
	decode(t, rec, &page)
	if page.Total != 1 || page.Data[0].ID != tk.ID {
		t.Fatalf("public list must only hold own tickets, got %+v", page)
	}

	rec = a.do(t, http.MethodGet, "/api/tickets?priority=critical&page_size=5", nil, bearer(a.manager))
	expect(t, rec, http.StatusOK)
	decode(t, rec, &page)
	if page.Total != 2 {
		t.Fatalf("manager should see both tickets, got %d", page.Total)
	}
	expect(t, a.do(t, http.MethodGet, "/api/tickets?status=reopened", nil, bearer(a.tech)), http.StatusBadRequest)
}

func TestStaffTicketUpdate(t *testing.T) {
	a := newApp(t)
	ana := a.publicToken(t, "ana@example.org")
	tk := a.openTicket(t, ana)
	path := fmt.Sprintf("/api/tickets/%d", tk.ID)

	expect(t, a.do(t, http.MethodPatch, path, echo.Map{"status": "closed"}, public(ana)), http.StatusForbidden)
	expect(t, a.do(t, http.MethodPatch, path, echo.Map{"status": "closed"}, bearer(a.manager)), http.StatusForbidden)
	expect(t, a.do(t, http.MethodPatch, path, echo.Map{"status": "done"}, bearer(a.tech)), http.StatusBadRequest)
	expect(t, a.do(t, http.MethodPatch, path, echo.Map{"assigned_to": a.managerID}, bearer(a.tech)), http.StatusBadRequest)

	rec := a.do(t, http.MethodPatch, path, echo.Map{"status": "resolved", "assigned_to": a.techID}, bearer(a.tech))
	expect(t, rec, http.StatusOK)
	var got ticketResp
	decode(t, rec, &got)
	if got.Status != "resolved" || got.AssignedTo == nil || *got.AssignedTo != a.techID || got.SLA.State != "met" {
		t.Fatalf("unexpected update result %+v", got)
	}

	expect(t, a.do(t, http.MethodDelete, path, nil, bearer(a.tech)), http.StatusForbidden)
	expect(t, a.do(t, http.MethodDelete, path, nil, bearer(a.admin)), http.StatusNoContent)
	expect(t, a.do(t, http.MethodGet, path, nil, bearer(a.admin)), http.StatusNotFound)
}

func TestTicketThread(t *testing.T) {
	a := newApp(t)
	ana := a.publicToken(t, "ana@example.org")
	tk := a.openTicket(t, ana)
	path := fmt.Sprintf("/api/tickets/%d/messages", tk.ID)

	expect(t, a.do(t, http.MethodPost, path, echo.Map{"message": "  "}, public(ana)), http.StatusBadRequest)
	expect(t, a.do(t, http.MethodPost, path, echo.Map{"message": "secret", "is_internal": true}, public(ana)), http.StatusForbidden)
	expect(t, a.do(t, http.MethodPost, path, echo.Map{"message": "still broken"}, public(ana)), http.StatusCreated)
	expect(t, a.do(t, http.MethodPost, path, echo.Map{"message": "check the router", "is_internal": true}, bearer(a.tech)), http.StatusCreated)
	expect(t, a.do(t, http.MethodPost, path, echo.Map{"message": "notes"}, bearer(a.manager)), http.StatusForbidden)

	var thread struct {
		Data []struct {
			Message    string `json:"message"`
			IsInternal bool   `json:"is_internal"`
		} `json:"data"`
	}
	rec := a.do(t, http.MethodGet, path, nil, public(ana))
	expect(t, rec, http.StatusOK)
	decode(t, rec, &thread)
	if len(thread.Data) != 1 || thread.Data[0].IsInternal {
		t.Fatalf("requester must not see internal notes, got %+v", thread.Data)
	}

	rec = a.do(t, http.MethodGet, path, nil, bearer(a.tech))
	expect(t, rec, http.StatusOK)
	decode(t, rec, &thread)
	if len(thread.Data) != 2 {
		t.Fatalf("staff should see the whole thread, got %+v", thread.Data)
	}
}

func (a *app) upload(t *testing.T, path, name string, content []byte, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", name)
	if err != nil {
		t.Fatalf("form file: %v", err)
	}
	if _, err := fw.Write(content); err != nil {
		t.Fatalf("write form: %v", err)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close form: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set(echo.HeaderContentType, mw.FormDataContentType())
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	a.e.ServeHTTP(rec, req)
	return rec
}

func TestAttachments(t *testing.T) {
	a := newApp(t)
	ana := a.publicToken(t, "ana@example.org")
	bob := a.publicToken(t, "bob@example.org")
	tk := a.openTicket(t, ana)
	path := fmt.Sprintf("/api/tickets/%d/attachments", tk.ID)

	content := []byte("log line 1\nlog line 2\n")
	rec := a.upload(t, path, "vpn.log", content, public(ana))
	expect(t, rec, http.StatusCreated)
	var att struct {
		ID           uint64 `json:"id"`
		OriginalName string `json:"original_name"`
		SizeBytes    int64  `json:"size_bytes"`
	}
	decode(t, rec, &att)
	if att.OriginalName != "vpn.log" || att.SizeBytes != int64(len(content)) {
		t.Fatalf("unexpected attachment %+v", att)
	}

	expect(t, a.upload(t, path, "big.bin", bytes.Repeat([]byte("x"), 65), public(ana)), http.StatusRequestEntityTooLarge)
	expect(t, a.upload(t, path, "other.txt", []byte("hi"), public(bob)), http.StatusForbidden)

	var list struct {
		Data []struct {
			ID uint64 `json:"id"`
		} `json:"data"`
	}
	rec = a.do(t, http.MethodGet, path, nil, bearer(a.tech))
	expect(t, rec, http.StatusOK)
	decode(t, rec, &list)
	if len(list.Data) != 1 {
		t.Fatalf("expected one stored attachment, got %+v", list.Data)
	}

	rec = a.do(t, http.MethodGet, fmt.Sprintf("%s/%d", path, att.ID), nil, public(ana))
	expect(t, rec, http.StatusOK)
	if !bytes.Equal(rec.Body.Bytes(), content) {
		t.Fatalf("downloaded body differs: %q", rec.Body.String())
	}
	if cd := rec.Header().Get(echo.HeaderContentDisposition); cd == "" {
		t.Fatalf("expected a Content-Disposition header")
	}
	expect(t, a.do(t, http.MethodGet, fmt.Sprintf("%s/%d", path, att.ID+1), nil, public(ana)), http.StatusNotFound)
}
