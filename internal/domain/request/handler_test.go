package request

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/bloodconnect/bloodconnect/internal/domain/blood"
	"github.com/bloodconnect/bloodconnect/internal/platform/apperr"
	"github.com/bloodconnect/bloodconnect/internal/platform/db"
	"github.com/bloodconnect/bloodconnect/pkg/pagination"
)

func jsonRequest(method, target, body string, org uuid.UUID) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if org != uuid.Nil {
		req = req.WithContext(db.WithOrg(req.Context(), org))
	}
	return req
}

func withID(c echo.Context, id string) echo.Context {
	c.SetParamNames("id")
	c.SetParamValues(id)
	return c
}

func expectCode(t *testing.T, err error, code int) *echo.HTTPError {
	t.Helper()
	he, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected echo.HTTPError, got %T (%v)", err, err)
	}
	if he.Code != code {
		t.Errorf("expected %d, got %d (%v)", code, he.Code, he.Message)
	}
	return he
}

func TestHandler_Submit(t *testing.T) {
	f := newFixture(t)
	h, e := NewHandler(f.svc), echo.New()

	body := fmt.Sprintf(`{"blood_group":"o-","component_type":"PRBC","quantity":2,
		"required_date":%q,"actor_id":%q}`, testNow.Add(2*time.Hour).Format(time.RFC3339), f.clerk)
	rec := httptest.NewRecorder()
	c := e.NewContext(jsonRequest(http.MethodPost, "/api/v1/requests", body, f.hospital), rec)

	if err := h.Submit(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	var r BloodRequest
	if err := json.Unmarshal(rec.Body.Bytes(), &r); err != nil {
		t.Fatal(err)
	}
	if r.BloodGroup != blood.ONeg || r.ComponentType != blood.PackedRBC || r.Urgency != UrgencyCritical {
		t.Errorf("unexpected request %+v", r)
	}
	if r.RequesterOrgID != f.hospital || r.Status != StatusPending {
		t.Errorf("unexpected request %+v", r)
	}
}

func TestHandler_Submit_MissingActor(t *testing.T) {
	f := newFixture(t)
	h, e := NewHandler(f.svc), echo.New()
	body := `{"blood_group":"O-","component_type":"Plasma","quantity":1,"required_date":"2025-03-11T00:00:00Z"}`
	c := e.NewContext(jsonRequest(http.MethodPost, "/api/v1/requests", body, f.hospital), httptest.NewRecorder())
	expectCode(t, h.Submit(c), http.StatusUnprocessableEntity)
}

func TestHandler_Decide_ShortStock(t *testing.T) {
	f := newFixture(t)
	h, e := NewHandler(f.svc), echo.New()
	f.seed(t, f.bank, blood.ONeg, blood.PackedRBC, 1)
	r := f.submit(t, SubmitInput{Quantity: 2})

	body := fmt.Sprintf(`{"decision":"Accept","actor_id":%q}`, f.operator)
	rec := httptest.NewRecorder()
	c := withID(e.NewContext(jsonRequest(http.MethodPost, "/", body, f.bank), rec), r.ID.String())
	if err := h.Decide(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var got BloodRequest
	json.Unmarshal(rec.Body.Bytes(), &got)
	if got.Status != StatusPartial || got.Shortfall != 1 {
		t.Errorf("expected Partial with shortfall 1, got %s %d", got.Status, got.Shortfall)
	}
}

func TestHandler_Decide_NoStockIs422WithShortfall(t *testing.T) {
	f := newFixture(t)
	h, e := NewHandler(f.svc), echo.New()
	r := f.submit(t, SubmitInput{Quantity: 3})

	body := fmt.Sprintf(`{"decision":"Accept","actor_id":%q}`, f.operator)
	c := withID(e.NewContext(jsonRequest(http.MethodPost, "/", body, f.bank), httptest.NewRecorder()), r.ID.String())
	he := expectCode(t, h.Decide(c), http.StatusUnprocessableEntity)
	b, ok := he.Message.(apperr.Body)
	if !ok || b.Details["shortfall"] != 3 {
		t.Errorf("expected shortfall 3 in details, got %#v", he.Message)
	}
}

func TestHandler_Cancel_CompletedIs409(t *testing.T) {
	f := newFixture(t)
	h, e := NewHandler(f.svc), echo.New()
	f.seed(t, f.bank, blood.ONeg, blood.PackedRBC, 2)
	r := f.submit(t, SubmitInput{Quantity: 2})
	f.svc.Decide(context.Background(), r.ID, DecisionAccept, f.operator)
	f.svc.Decide(context.Background(), r.ID, DecisionComplete, f.operator)

	body := fmt.Sprintf(`{"actor_id":%q}`, f.clerk)
	c := withID(e.NewContext(jsonRequest(http.MethodPost, "/", body, f.hospital), httptest.NewRecorder()), r.ID.String())
	expectCode(t, h.Cancel(c), http.StatusConflict)
}

func TestHandler_Escalate(t *testing.T) {
	f := newFixture(t)
	h, e := NewHandler(f.svc), echo.New()
	r := f.submit(t, SubmitInput{RequiredDate: testNow.AddDate(0, 0, 3)})

	body := fmt.Sprintf(`{"reason":"mass casualty","actor_id":%q}`, f.clerk)
	rec := httptest.NewRecorder()
	c := withID(e.NewContext(jsonRequest(http.MethodPost, "/", body, f.hospital), rec), r.ID.String())
	if err := h.Escalate(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var got BloodRequest
	json.Unmarshal(rec.Body.Bytes(), &got)
	if got.Urgency != UrgencyCritical || got.Escalation == nil || got.Escalation.PreviousUrgency != UrgencyNormal {
		t.Errorf("unexpected request %+v", got)
	}
}

func TestHandler_Get(t *testing.T) {
	f := newFixture(t)
	h, e := NewHandler(f.svc), echo.New()

	c := withID(e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder()), "bad")
	expectCode(t, h.Get(c), http.StatusBadRequest)

	c = withID(e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder()), uuid.NewString())
	expectCode(t, h.Get(c), http.StatusNotFound)
}

func TestHandler_History(t *testing.T) {
	f := newFixture(t)
	h, e := NewHandler(f.svc), echo.New()
	r := f.submit(t, SubmitInput{})

	rec := httptest.NewRecorder()
	c := withID(e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec), r.ID.String())
	if err := h.History(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var changes []StatusChange
	json.Unmarshal(rec.Body.Bytes(), &changes)
	if len(changes) != 1 || changes[0].To != StatusPending {
		t.Errorf("unexpected history %+v", changes)
	}
}

func TestHandler_List(t *testing.T) {
	f := newFixture(t)
	h, e := NewHandler(f.svc), echo.New()
	f.submit(t, SubmitInput{})
	f.submit(t, SubmitInput{BloodGroup: blood.BPos})

	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/api/v1/requests?blood_group=b%2B&page=1&pageSize=5", nil), rec)
	if err := h.List(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var resp struct {
		pagination.Response
		Data []BloodRequest `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Total != 1 || len(resp.Data) != 1 || resp.Data[0].BloodGroup != blood.BPos {
		t.Errorf("unexpected page %+v", resp)
	}
}

func TestHandler_List_BadFilter(t *testing.T) {
	f := newFixture(t)
	h, e := NewHandler(f.svc), echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/api/v1/requests?status=Lost&target_org_id=x", nil), httptest.NewRecorder())
	he := expectCode(t, h.List(c), http.StatusUnprocessableEntity)
	b := he.Message.(apperr.Body)
	if vs := b.Details["violations"].([]apperr.Violation); len(vs) != 2 {
		t.Errorf("expected 2 violations, got %v", vs)
	}
}

func TestHandler_Cancel_AcceptsCamelCaseActor(t *testing.T) {
	f := newFixture(t)
	h, e := NewHandler(f.svc), echo.New()
	r := f.submit(t, SubmitInput{})

	body := fmt.Sprintf(`{"actorId":%q}`, f.clerk)
	rec := httptest.NewRecorder()
	c := withID(e.NewContext(jsonRequest(http.MethodPost, "/", body, f.hospital), rec), r.ID.String())
	if err := h.Cancel(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var got BloodRequest
	json.Unmarshal(rec.Body.Bytes(), &got)
	if got.Status != StatusCancelled {
		t.Errorf("expected Cancelled, got %s", got.Status)
	}
}
