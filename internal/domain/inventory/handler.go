package inventory

import (
	"net/http"
	"strconv"
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

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/inventory", h.ListUnits)
	api.GET("/inventory/availability", h.Availability)
	api.GET("/inventory/summary", h.Summary)
	api.GET("/inventory/:id", h.GetUnit)

	write := api.Group("", auth.RequireRole(auth.RoleInventoryManager))
	write.POST("/inventory", h.AddUnit)
	write.PATCH("/inventory/:id/status", h.UpdateStatus)
	write.POST("/inventory/expire", h.Expire)
}

type addUnitRequest struct {
	BloodGroup     string     `json:"blood_group"`
	ComponentType  string     `json:"component_type"`
	QuantityML     int        `json:"quantity_ml"`
	CollectionDate time.Time  `json:"collection_date"`
	ExpiryDate     time.Time  `json:"expiry_date"`
	Status         UnitStatus `json:"status"`
}

func (h *Handler) AddUnit(c echo.Context) error {
	orgID, err := db.RequireOrg(c)
	if err != nil {
		return err
	}
	var in addUnitRequest
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	group, _ := blood.ParseGroup(in.BloodGroup)
	component, _ := blood.ParseComponent(in.ComponentType)
	u := &Unit{
		OrgID:          orgID,
		BloodGroup:     group,
		ComponentType:  component,
		QuantityML:     in.QuantityML,
		CollectionDate: in.CollectionDate,
		ExpiryDate:     in.ExpiryDate,
		Status:         in.Status,
	}
	if err := h.svc.AddUnit(c.Request().Context(), u); err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusCreated, u)
}

func (h *Handler) GetUnit(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	u, err := h.svc.GetUnit(c.Request().Context(), id)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, u)
}

func (h *Handler) ListUnits(c echo.Context) error {
	orgID, err := db.RequireOrg(c)
	if err != nil {
		return err
	}
	f := Filter{Status: UnitStatus(c.QueryParam("status"))}
	if g := c.QueryParam("blood_group"); g != "" {
		f.Group, _ = blood.ParseGroup(g)
	}
	if comp := c.QueryParam("component_type"); comp != "" {
		f.Component, _ = blood.ParseComponent(comp)
	}

	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListUnits(c.Request().Context(), orgID, f, pg)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	if items == nil {
		items = []*Unit{}
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg))
}

func (h *Handler) UpdateStatus(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var body struct {
		Status UnitStatus `json:"status"`
	}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if !body.Status.Valid() {
		return apperr.ToHTTP(apperr.Invalid("status", "unknown status "+string(body.Status)))
	}
	u, err := h.svc.UpdateStatus(c.Request().Context(), id, body.Status)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, u)
}

func (h *Handler) Availability(c echo.Context) error {
	orgID, err := db.RequireOrg(c)
	if err != nil {
		return err
	}

	var vs []apperr.Violation
	group, ok := blood.ParseGroup(c.QueryParam("blood_group"))
	if !ok {
		vs = append(vs, apperr.Violation{Field: "blood_group", Message: "unknown blood group"})
	}
	component, ok := blood.ParseComponent(c.QueryParam("component_type"))
	if !ok {
		vs = append(vs, apperr.Violation{Field: "component_type", Message: "unknown component"})
	}
	qty := 1
	if raw := c.QueryParam("quantity"); raw != "" {
		if qty, err = strconv.Atoi(raw); err != nil || qty < 1 {
			vs = append(vs, apperr.Violation{Field: "quantity", Message: "must be a positive integer"})
		}
	}
	if err := apperr.NewValidationError(vs); err != nil {
		return apperr.ToHTTP(err)
	}

	res, err := h.svc.Availability(c.Request().Context(), orgID, MatchQuery{Group: group, Component: component, Quantity: qty})
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, res)
}

func (h *Handler) Summary(c echo.Context) error {
	orgID, err := db.RequireOrg(c)
	if err != nil {
		return err
	}
	s, err := h.svc.Summary(c.Request().Context(), orgID)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, s)
}

func (h *Handler) Expire(c echo.Context) error {
	orgID, err := db.RequireOrg(c)
	if err != nil {
		return err
	}
	n, err := h.svc.ExpireUnits(c.Request().Context(), orgID)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, map[string]int{"expired": n})
}
