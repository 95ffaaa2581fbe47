package donor

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

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/donors", h.List)
	api.GET("/donors/:id", h.Get)

	write := api.Group("", auth.RequireRole(auth.RoleInventoryManager))
	write.POST("/donors", h.Register)
	write.POST("/donors/reevaluate", h.Reevaluate)
	write.PUT("/donors/:id", h.Update)
	write.POST("/donors/:id/donations", h.RecordDonation)
	write.POST("/donors/:id/deactivate", h.Deactivate)
}

type donorRequest struct {
	FullName         string     `json:"full_name"`
	BloodGroup       string     `json:"blood_group"`
	Age              int        `json:"age"`
	ContactNumber    string     `json:"contact_number"`
	Email            string     `json:"email"`
	LastDonationDate *time.Time `json:"last_donation_date"`
}

func (in donorRequest) donor() *Donor {
	group, _ := blood.ParseGroup(in.BloodGroup)
	return &Donor{
		FullName:         in.FullName,
		BloodGroup:       group,
		Age:              in.Age,
		ContactNumber:    in.ContactNumber,
		Email:            in.Email,
		LastDonationDate: in.LastDonationDate,
	}
}

func parseID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}

func (h *Handler) Register(c echo.Context) error {
	orgID, err := db.RequireOrg(c)
	if err != nil {
		return err
	}
	var in donorRequest
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	d := in.donor()
	d.OrgID = orgID
	if err := h.svc.Register(c.Request().Context(), d); err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusCreated, d)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	d, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) List(c echo.Context) error {
	orgID, err := db.RequireOrg(c)
	if err != nil {
		return err
	}
	f := Filter{Status: Status(c.QueryParam("status")), Search: c.QueryParam("q")}
	if g := c.QueryParam("blood_group"); g != "" {
		f.BloodGroup, _ = blood.ParseGroup(g)
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.List(c.Request().Context(), orgID, f, pg)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	if items == nil {
		items = []*Donor{}
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg))
}

func (h *Handler) Update(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var in donorRequest
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	d, err := h.svc.Update(c.Request().Context(), id, in.donor())
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) RecordDonation(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var body struct {
		Date time.Time `json:"date"`
	}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	d, err := h.svc.RecordDonation(c.Request().Context(), id, body.Date)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) Deactivate(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	d, err := h.svc.Deactivate(c.Request().Context(), id)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) Reevaluate(c echo.Context) error {
	orgID, err := db.RequireOrg(c)
	if err != nil {
		return err
	}
	n, err := h.svc.Reevaluate(c.Request().Context(), orgID)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, map[string]int{"reinstated": n})
}
