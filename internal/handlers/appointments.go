package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"medibook/internal/logging"
	"medibook/internal/middleware"
	"medibook/internal/models"
	"medibook/internal/services"
	"medibook/internal/utils"
)

// AppointmentHandler handles appointment related requests.
type AppointmentHandler struct {
	Appointments   *services.AppointmentService
	Logger         *logging.Logger
	AllowAnonymous bool
}

// NewAppointmentHandler creates a new AppointmentHandler.
func NewAppointmentHandler(appointments *services.AppointmentService, logger *logging.Logger, allowAnonymous bool) *AppointmentHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &AppointmentHandler{Appointments: appointments, Logger: logger, AllowAnonymous: allowAnonymous}
}

// CreateAppointmentRequest represents the request body for booking an appointment.
// Presence is checked by the service so that all missing fields share one message.
type CreateAppointmentRequest struct {
	DoctorID string `json:"doctorId"`
	UserID   string `json:"userId"`
	Username string `json:"username"`
	Date     string `json:"date"`
	Time     string `json:"time"`
	Status   string `json:"status"`
}

// UpdateStatusRequest represents the request body for a status change.
type UpdateStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// CreateAppointment handles booking an appointment.
func (h *AppointmentHandler) CreateAppointment(c *gin.Context) {
	var req CreateAppointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, "Invalid request payload")
		return
	}

	if strings.TrimSpace(req.UserID) != "" && !h.authorizeFor(c, strings.TrimSpace(req.UserID)) {
		return
	}
	if req.Username == "" {
		if identity, ok := middleware.GetIdentityFromContext(c); ok {
			req.Username = identity.Username
		}
	}

	appointment, err := h.Appointments.Create(c.Request.Context(), services.CreateAppointmentInput{
		DoctorID: req.DoctorID,
		UserID:   req.UserID,
		Username: req.Username,
		Date:     req.Date,
		Time:     req.Time,
		Status:   req.Status,
	})
	if err != nil {
		h.fail(c, err, "Failed to create appointment")
		return
	}

	utils.Created(c, "Appointment created", gin.H{
		"success":       true,
		"appointmentId": appointment.ID,
		"appointment":   appointment,
	})
}

// GetAppointments handles fetching a user's appointments by query parameter.
func (h *AppointmentHandler) GetAppointments(c *gin.Context) {
	userID := strings.TrimSpace(c.Query("userId"))
	if userID == "" {
		utils.BadRequest(c, "User ID is required")
		return
	}
	if !h.authorizeFor(c, userID) {
		return
	}

	appointments, err := h.Appointments.ListForUser(c.Request.Context(), userID)
	if err != nil {
		h.fail(c, err, "Failed to fetch appointments")
		return
	}

	utils.Success(c, "Appointments fetched successfully", gin.H{"appointments": appointments})
}

// GetUserAppointments handles fetching a user's appointments by path parameter.
// The response is a bare array.
func (h *AppointmentHandler) GetUserAppointments(c *gin.Context) {
	userID := strings.TrimSpace(c.Param("userId"))
	if !h.authorizeFor(c, userID) {
		return
	}

	appointments, err := h.Appointments.ListForUser(c.Request.Context(), userID)
	if err != nil {
		h.fail(c, err, "Failed to fetch appointments")
		return
	}

	c.JSON(http.StatusOK, appointments)
}

// GetDoctorAppointments handles fetching a doctor's schedule.
func (h *AppointmentHandler) GetDoctorAppointments(c *gin.Context) {
	doctorID := strings.TrimSpace(c.Param("doctorId"))
	if !h.authorizeFor(c, doctorID) {
		return
	}

	appointments, err := h.Appointments.ListForDoctor(c.Request.Context(), doctorID)
	if err != nil {
		h.fail(c, err, "Failed to fetch appointments")
		return
	}

	utils.Success(c, "Appointments fetched successfully", gin.H{"appointments": appointments})
}

// UpdateAppointmentStatus handles status changes. The booked doctor may set
// any status; the booking user may only cancel.
func (h *AppointmentHandler) UpdateAppointmentStatus(c *gin.Context) {
	var req UpdateStatusRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	appointmentID := c.Param("id")
	existing, err := h.Appointments.Get(c.Request.Context(), appointmentID)
	if err != nil {
		h.fail(c, err, "Failed to update appointment")
		return
	}

	if identity, ok := middleware.GetIdentityFromContext(c); ok {
		switch {
		case identity.Role == models.RoleDoctor && identity.ID == existing.DoctorID:
		case identity.ID == existing.UserID && strings.EqualFold(strings.TrimSpace(req.Status), string(models.StatusCancelled)):
		default:
			utils.Forbidden(c, "You do not have permission to update this appointment.")
			return
		}
	} else if !h.AllowAnonymous {
		utils.Unauthorized(c, "User not authenticated")
		return
	}

	appointment, err := h.Appointments.UpdateStatus(c.Request.Context(), appointmentID, req.Status)
	if err != nil {
		h.fail(c, err, "Failed to update appointment")
		return
	}

	utils.Success(c, "Appointment status updated", gin.H{"appointment": appointment})
}

// authorizeFor checks that the caller acts on its own id. Anonymous callers
// pass only when anonymous access is enabled.
func (h *AppointmentHandler) authorizeFor(c *gin.Context, id string) bool {
	identity, ok := middleware.GetIdentityFromContext(c)
	if !ok {
		if h.AllowAnonymous {
			return true
		}
		utils.Unauthorized(c, "User not authenticated")
		return false
	}
	if identity.ID.String() != id {
		utils.Forbidden(c, "You can only access your own appointments.")
		return false
	}
	return true
}

func (h *AppointmentHandler) fail(c *gin.Context, err error, message string) {
	switch {
	case errors.Is(err, services.ErrValidation):
		utils.BadRequest(c, "Missing required fields")
	case errors.Is(err, services.ErrInvalidStatus):
		utils.BadRequest(c, "Invalid status")
	case errors.Is(err, services.ErrNotFound):
		utils.NotFound(c, "Appointment not found")
	default:
		h.Logger.Error(message, "error", err, "path", c.FullPath())
		utils.InternalServerError(c, message)
	}
}
