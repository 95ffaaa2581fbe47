package staff

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/bloodconnect/bloodconnect/internal/platform/auth"
	"github.com/bloodconnect/bloodconnect/internal/platform/db"
)

func TestHandler_Create_DefaultsToContextOrg(t *testing.T) {
	h := NewHandler(NewService(NewMemberRepoMemory()))
	e := echo.New()
	org := uuid.New()

	body := `{"name":"Kofi Boateng","email":"kofi@example.org","role":"Request Handler"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/staff", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req = req.WithContext(db.WithOrg(req.Context(), org))
	rec := httptest.NewRecorder()

	if err := h.Create(e.NewContext(req, rec)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	var m Member
	json.Unmarshal(rec.Body.Bytes(), &m)
	if m.OrgID != org || m.Role != auth.RoleRequestHandler {
		t.Errorf("unexpected member %+v", m)
	}
}

func TestHandler_Get_NotFound(t *testing.T) {
	h := NewHandler(NewService(NewMemberRepoMemory()))
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues(uuid.New().String())

	err := h.Get(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %v", err)
	}
}

func TestHandler_SetStatus_InvalidID(t *testing.T) {
	h := NewHandler(NewService(NewMemberRepoMemory()))
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodPatch, "/", nil), httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues("not-a-uuid")

	err := h.SetStatus(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %v", err)
	}
}
