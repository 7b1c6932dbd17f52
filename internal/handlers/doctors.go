package handlers

import (
	"github.com/gin-gonic/gin"

	"medibook/internal/logging"
	"medibook/internal/services"
	"medibook/internal/utils"
)

// DoctorHandler serves the doctor directory.
type DoctorHandler struct {
	Doctors *services.DoctorService
	Logger  *logging.Logger
}

// NewDoctorHandler creates a new DoctorHandler.
func NewDoctorHandler(doctors *services.DoctorService, logger *logging.Logger) *DoctorHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &DoctorHandler{Doctors: doctors, Logger: logger}
}

// GetDoctors handles fetching all doctors. Credentials never leave the store.
func (h *DoctorHandler) GetDoctors(c *gin.Context) {
	doctors, err := h.Doctors.List(c.Request.Context())
	if err != nil {
		h.Logger.Error("failed to fetch doctors", "error", err)
		utils.InternalServerError(c, "Failed to fetch doctors")
		return
	}

	utils.Success(c, "Doctors fetched successfully", gin.H{"doctors": doctors})
}
