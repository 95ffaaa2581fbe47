package request

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/bloodconnect/bloodconnect/internal/domain/blood"
	"github.com/bloodconnect/bloodconnect/internal/platform/apperr"
	"github.com/bloodconnect/bloodconnect/internal/platform/auth"
	"github.com/bloodconnect/bloodconnect/internal/platform/db"
	"github.com/bloodconnect/bloodconnect/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts the request API. Mutations are authorized per actor
// by the service, so no role guard is applied here.
func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/requests", h.Submit)
	api.GET("/requests", h.List)
	api.GET("/requests/:id", h.Get)
	api.GET("/requests/:id/history", h.History)
	api.POST("/requests/:id/decision", h.Decide)
	api.POST("/requests/:id/cancel", h.Cancel)
	api.POST("/requests/:id/escalate", h.Escalate)
}

type submitRequest struct {
	RequesterOrgID *uuid.UUID  `json:"requester_org_id"`
	BloodGroup     string      `json:"blood_group"`
	ComponentType  string      `json:"component_type"`
	Quantity       int         `json:"quantity"`
	RequiredDate   time.Time   `json:"required_date"`
	ClinicalFlag   bool        `json:"clinical_flag"`
	RequestType    RequestType `json:"request_type"`
	TargetOrgIDs   []uuid.UUID `json:"target_org_ids"`
	Notes          string      `json:"notes"`
	actorRef
}

type decisionRequest struct {
	Decision string `json:"decision"`
	Reason   string `json:"reason"`
	actorRef
}

// actorRef names the acting staff member. Older clients send actorId.
type actorRef struct {
	ActorID       *uuid.UUID `json:"actor_id"`
	ActorIDLegacy *uuid.UUID `json:"actorId"`
}

func (r actorRef) fromBody() *uuid.UUID {
	if r.ActorID != nil {
		return r.ActorID
	}
	return r.ActorIDLegacy
}

// actorID prefers the body and falls back to the token subject.
func actorID(c echo.Context, ref actorRef) uuid.UUID {
	if fromBody := ref.fromBody(); fromBody != nil {
		return *fromBody
	}
	id, err := uuid.Parse(auth.UserIDFromContext(c.Request().Context()))
	if err != nil {
		return uuid.Nil
	}
	return id
}

func requestID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}

func (h *Handler) Submit(c echo.Context) error {
	var in submitRequest
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	group, _ := blood.ParseGroup(in.BloodGroup)
	component, _ := blood.ParseComponent(in.ComponentType)

	requester := db.OrgFromContext(c.Request().Context())
	if in.RequesterOrgID != nil {
		requester = *in.RequesterOrgID
	}

	r, err := h.svc.Submit(c.Request().Context(), SubmitInput{
		RequesterOrgID: requester,
		ActorID:        actorID(c, in.actorRef),
		BloodGroup:     group,
		ComponentType:  component,
		Quantity:       in.Quantity,
		RequiredDate:   in.RequiredDate,
		ClinicalFlag:   in.ClinicalFlag,
		RequestType:    in.RequestType,
		TargetOrgIDs:   in.TargetOrgIDs,
		Notes:          in.Notes,
	})
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusCreated, r)
}

func parseFilter(c echo.Context) (Filter, error) {
	var f Filter
	var vs []apperr.Violation
	if v := c.QueryParam("status"); v != "" {
		if f.Status = Status(v); !f.Status.Valid() {
			vs = append(vs, apperr.Violation{Field: "status", Message: "unknown status"})
		}
	}
	if v := c.QueryParam("urgency"); v != "" {
		if f.Urgency = Urgency(v); !f.Urgency.Valid() {
			vs = append(vs, apperr.Violation{Field: "urgency", Message: "unknown urgency"})
		}
	}
	if v := c.QueryParam("blood_group"); v != "" {
		var ok bool
		if f.BloodGroup, ok = blood.ParseGroup(v); !ok {
			vs = append(vs, apperr.Violation{Field: "blood_group", Message: "unknown blood group"})
		}
	}
	for param, dst := range map[string]*uuid.UUID{"requester_org_id": &f.RequesterOrgID, "target_org_id": &f.TargetOrgID} {
		if v := c.QueryParam(param); v != "" {
			id, err := uuid.Parse(v)
			if err != nil {
				vs = append(vs, apperr.Violation{Field: param, Message: "must be a uuid"})
				continue
			}
			*dst = id
		}
	}
	return f, apperr.NewValidationError(vs)
}

func (h *Handler) List(c echo.Context) error {
	f, err := parseFilter(c)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.List(c.Request().Context(), f, pg)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg))
}

func (h *Handler) Get(c echo.Context) error {
	id, err := requestID(c)
	if err != nil {
		return err
	}
	r, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, r)
}

func (h *Handler) History(c echo.Context) error {
	id, err := requestID(c)
	if err != nil {
		return err
	}
	changes, err := h.svc.History(c.Request().Context(), id)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	if changes == nil {
		changes = []StatusChange{}
	}
	return c.JSON(http.StatusOK, changes)
}

func (h *Handler) Decide(c echo.Context) error {
	id, err := requestID(c)
	if err != nil {
		return err
	}
	var in decisionRequest
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	r, err := h.svc.Decide(c.Request().Context(), id, Decision(in.Decision), actorID(c, in.actorRef))
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, r)
}

func (h *Handler) Cancel(c echo.Context) error {
	id, err := requestID(c)
	if err != nil {
		return err
	}
	var in decisionRequest
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	r, err := h.svc.Cancel(c.Request().Context(), id, actorID(c, in.actorRef))
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, r)
}

func (h *Handler) Escalate(c echo.Context) error {
	id, err := requestID(c)
	if err != nil {
		return err
	}
	var in decisionRequest
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	r, err := h.svc.Escalate(c.Request().Context(), id, in.Reason, actorID(c, in.actorRef))
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, r)
}
