package donor

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/bloodconnect/bloodconnect/internal/domain/blood"
	"github.com/bloodconnect/bloodconnect/internal/platform/db"
)

func orgRequest(method, body string, org uuid.UUID) *http.Request {
	req := httptest.NewRequest(method, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	return req.WithContext(db.WithOrg(req.Context(), org))
}

func TestHandler_Register(t *testing.T) {
	h, e := NewHandler(newTestService()), echo.New()
	org := uuid.New()
	body := `{"full_name":"Jane Smith","blood_group":"a-","age":28,"contact_number":"+1 (555) 987-6543",
		"email":"jane.smith@example.com","last_donation_date":"2025-01-10T00:00:00Z"}`
	rec := httptest.NewRecorder()

	if err := h.Register(e.NewContext(orgRequest(http.MethodPost, body, org), rec)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	var d Donor
	json.Unmarshal(rec.Body.Bytes(), &d)
	if d.OrgID != org || d.BloodGroup != blood.ANeg || d.Status != StatusAvailable {
		t.Errorf("unexpected donor %+v", d)
	}
}

func TestHandler_Register_Underage(t *testing.T) {
	h, e := NewHandler(newTestService()), echo.New()
	body := `{"full_name":"Sam Young","blood_group":"B+","age":16,"contact_number":"5551234567","email":"sam@example.com"}`
	err := h.Register(e.NewContext(orgRequest(http.MethodPost, body, uuid.New()), httptest.NewRecorder()))
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusUnprocessableEntity {
		t.Errorf("expected 422, got %v", err)
	}
}

func TestHandler_RecordDonation(t *testing.T) {
	svc := newTestService()
	h, e := NewHandler(svc), echo.New()
	d := register(t, svc, validDonor())

	rec := httptest.NewRecorder()
	c := e.NewContext(orgRequest(http.MethodPost, `{"date":"2025-03-09T00:00:00Z"}`, d.OrgID), rec)
	c.SetParamNames("id")
	c.SetParamValues(d.ID.String())
	if err := h.RecordDonation(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var got Donor
	json.Unmarshal(rec.Body.Bytes(), &got)
	if got.TotalDonations != 1 || got.Status != StatusTemporaryDeferral {
		t.Errorf("unexpected donor %+v", got)
	}
}

func TestHandler_Reevaluate(t *testing.T) {
	h, e := NewHandler(newTestService()), echo.New()
	rec := httptest.NewRecorder()
	if err := h.Reevaluate(e.NewContext(orgRequest(http.MethodPost, "", uuid.New()), rec)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(rec.Body.String(), `"reinstated":0`) {
		t.Errorf("unexpected body %s", rec.Body.String())
	}
}
