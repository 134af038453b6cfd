package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yeremiapane/restaurant-dashboard/middlewares"
	"github.com/yeremiapane/restaurant-dashboard/services"
	"github.com/yeremiapane/restaurant-dashboard/utils"
)

const (
	IdempotencyHeader = "X-Idempotency-Key"
	ReplayedHeader    = "Idempotent-Replayed"
)

type ReservationController struct {
	reservations *services.ReservationService
	kpis         *services.KPIService
}

func NewReservationController(reservations *services.ReservationService, kpis *services.KPIService) *ReservationController {
	return &ReservationController{reservations: reservations, kpis: kpis}
}

type listReservationsRequest struct {
	Date    string               `json:"date"`
	Filters services.ListFilters `json:"filters"`
}

// ListReservations -> POST /functions/v1/list-reservations
func (rc *ReservationController) ListReservations(c *gin.Context) {
	var req listReservationsRequest
	if !bindJSON(c, &req) {
		return
	}

	reservations, err := rc.reservations.List(c.Request.Context(), middlewares.TenantID(c), req.Date, req.Filters)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.RespondData(c, http.StatusOK, reservations, nil)
}

// CreateReservation -> POST /functions/v1/create-reservation. A replayed idempotency key answers
// 200 with the stored booking instead of 201.
func (rc *ReservationController) CreateReservation(c *gin.Context) {
	var in services.CreateReservationInput
	if !bindJSON(c, &in) {
		return
	}
	in.IdempotencyKey = c.GetHeader(IdempotencyHeader)

	reservation, replayed, err := rc.reservations.Create(c.Request.Context(), middlewares.TenantID(c), in)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	respondCreated(c, reservation, replayed)
}

// respondCreated answers a replay exactly like the original creation, flagged by header.
func respondCreated(c *gin.Context, reservation *services.Reservation, replayed bool) {
	if replayed {
		c.Header(ReplayedHeader, "true")
	}
	utils.RespondData(c, http.StatusCreated, reservation, nil)
}

type kpiRequest struct {
	Date string `json:"date"`
}

// GetKPIs -> GET /functions/v1/get-kpis?date= or POST with {"date": ...}
func (rc *ReservationController) GetKPIs(c *gin.Context) {
	var req kpiRequest
	if c.Request.Method == http.MethodPost && c.Request.ContentLength != 0 {
		if !bindJSON(c, &req) {
			return
		}
	} else {
		req.Date = c.Query("date")
	}

	result, err := rc.kpis.Compute(c.Request.Context(), middlewares.TenantID(c), req.Date)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.RespondData(c, http.StatusOK, result.Cards, result.Meta)
}

// GetBooking -> GET /api/v1/bookings/:id
func (rc *ReservationController) GetBooking(c *gin.Context) {
	reservation, err := rc.reservations.Get(c.Request.Context(), middlewares.TenantID(c), c.Param("id"))
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.RespondData(c, http.StatusOK, reservation, nil)
}

// UpdateBookingStatus -> PATCH /api/v1/bookings/:id/status
func (rc *ReservationController) UpdateBookingStatus(c *gin.Context) {
	var body struct {
		Status string `json:"status" binding:"required"`
	}
	if !bindJSON(c, &body) {
		return
	}

	reservation, err := rc.reservations.UpdateStatus(c.Request.Context(), middlewares.TenantID(c), c.Param("id"), body.Status)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.InfoLogger.WithField("booking_id", reservation.ID).Infof("booking status changed to %s", reservation.Status)
	utils.RespondData(c, http.StatusOK, reservation, nil)
}
