package services

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"

	"medibook/internal/logging"
	"medibook/internal/models"
	"medibook/internal/repository"
)

var doctorsTracer = otel.Tracer("medibook.internal.services.doctors")

// DoctorService lists the doctor directory.
type DoctorService struct {
	repo   repository.DoctorRepository
	logger *logging.Logger
}

// NewDoctorService constructs a doctor directory service.
func NewDoctorService(repo repository.DoctorRepository, logger *logging.Logger) *DoctorService {
	if repo == nil {
		panic("services: doctor repository required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &DoctorService{repo: repo, logger: logger}
}

// List returns every doctor. Credentials are excluded by the repository
// projection, never filtered here.
func (s *DoctorService) List(ctx context.Context) ([]models.Doctor, error) {
	ctx, span := doctorsTracer.Start(ctx, "doctors.list")
	defer span.End()

	doctors, err := s.repo.List(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("services: list doctors: %w", err)
	}
	return doctors, nil
}
