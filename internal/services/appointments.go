package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"medibook/internal/logging"
	"medibook/internal/metrics"
	"medibook/internal/models"
	"medibook/internal/repository"
)

var appointmentsTracer = otel.Tracer("medibook.internal.services.appointments")

// Listener is notified after an appointment has been booked.
type Listener func(ctx context.Context, appointment models.Appointment)

// CreateAppointmentInput is a booking request. Status is optional.
type CreateAppointmentInput struct {
	DoctorID string `validate:"required"`
	UserID   string `validate:"required"`
	Username string
	Date     string `validate:"required"`
	Time     string `validate:"required"`
	Status   string
}

func (in *CreateAppointmentInput) trim() {
	in.DoctorID = strings.TrimSpace(in.DoctorID)
	in.UserID = strings.TrimSpace(in.UserID)
	in.Username = strings.TrimSpace(in.Username)
	in.Date = strings.TrimSpace(in.Date)
	in.Time = strings.TrimSpace(in.Time)
}

// AppointmentService books and lists appointments.
type AppointmentService struct {
	repo    repository.AppointmentRepository
	logger  *logging.Logger
	metrics *metrics.Metrics
	now     func() time.Time

	mu        sync.RWMutex
	listeners map[int]Listener
	order     []int
	nextID    int
}

// NewAppointmentService constructs an appointment service. m may be nil.
func NewAppointmentService(repo repository.AppointmentRepository, logger *logging.Logger, m *metrics.Metrics) *AppointmentService {
	if repo == nil {
		panic("services: appointment repository required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &AppointmentService{
		repo:      repo,
		logger:    logger,
		metrics:   m,
		now:       time.Now,
		listeners: map[int]Listener{},
	}
}

// Subscribe registers l to be called after every successful booking.
// Listeners run synchronously in subscription order.
func (s *AppointmentService) Subscribe(l Listener) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++
	s.listeners[id] = l
	s.order = append(s.order, id)

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			delete(s.listeners, id)
			for i, v := range s.order {
				if v == id {
					s.order = append(s.order[:i], s.order[i+1:]...)
					break
				}
			}
		})
	}
}

func (s *AppointmentService) notify(ctx context.Context, appointment models.Appointment) {
	s.mu.RLock()
	listeners := make([]Listener, 0, len(s.order))
	for _, id := range s.order {
		listeners = append(listeners, s.listeners[id])
	}
	s.mu.RUnlock()

	for _, l := range listeners {
		l(ctx, appointment)
	}
}

// Create validates and stores one appointment. Only presence is checked:
// doctor and user ids are not resolved and overlapping bookings are allowed.
func (s *AppointmentService) Create(ctx context.Context, in CreateAppointmentInput) (*models.Appointment, error) {
	ctx, span := appointmentsTracer.Start(ctx, "appointments.create")
	defer span.End()

	in.trim()
	if err := validate.Struct(in); err != nil {
		return nil, fmt.Errorf("%w: missing required fields", ErrValidation)
	}
	status, err := models.ParseStatus(in.Status)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, in.Status)
	}

	appointment := models.Appointment{
		DoctorID:  models.ID(in.DoctorID),
		UserID:    models.ID(in.UserID),
		Username:  in.Username,
		Date:      in.Date,
		Time:      in.Time,
		Status:    status,
		CreatedAt: s.now().UTC(),
	}
	span.SetAttributes(
		attribute.String("medibook.doctor_id", in.DoctorID),
		attribute.String("medibook.user_id", in.UserID),
	)

	if err := s.repo.Insert(ctx, &appointment); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("services: create appointment: %w", err)
	}

	s.metrics.AppointmentCreated()
	s.logger.Info("appointment created",
		"appointment_id", appointment.ID,
		"doctor_id", appointment.DoctorID,
		"user_id", appointment.UserID,
		"date", appointment.Date,
		"time", appointment.Time,
	)
	s.notify(ctx, appointment)
	return &appointment, nil
}

// ListForUser returns the user's appointments with doctor summaries joined.
// Appointments whose doctor no longer exists are returned without a summary.
func (s *AppointmentService) ListForUser(ctx context.Context, userID string) ([]models.Appointment, error) {
	ctx, span := appointmentsTracer.Start(ctx, "appointments.list_for_user")
	defer span.End()

	id, err := models.ParseID(userID)
	if err != nil {
		return nil, fmt.Errorf("%w: user id is required", ErrValidation)
	}
	appointments, err := s.repo.ListForUser(ctx, id)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("services: list appointments: %w", err)
	}
	return appointments, nil
}

// ListForDoctor returns the bookings made with a doctor.
func (s *AppointmentService) ListForDoctor(ctx context.Context, doctorID string) ([]models.Appointment, error) {
	ctx, span := appointmentsTracer.Start(ctx, "appointments.list_for_doctor")
	defer span.End()

	id, err := models.ParseID(doctorID)
	if err != nil {
		return nil, fmt.Errorf("%w: doctor id is required", ErrValidation)
	}
	appointments, err := s.repo.ListForDoctor(ctx, id)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("services: list doctor appointments: %w", err)
	}
	return appointments, nil
}

// Get returns one appointment.
func (s *AppointmentService) Get(ctx context.Context, appointmentID string) (*models.Appointment, error) {
	id, err := models.ParseID(appointmentID)
	if err != nil {
		return nil, fmt.Errorf("%w: appointment id is required", ErrValidation)
	}
	appointment, err := s.repo.FindByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("services: get appointment: %w", err)
	}
	return appointment, nil
}

// UpdateStatus moves an appointment to another status of the closed set.
func (s *AppointmentService) UpdateStatus(ctx context.Context, appointmentID, status string) (*models.Appointment, error) {
	ctx, span := appointmentsTracer.Start(ctx, "appointments.update_status")
	defer span.End()

	id, err := models.ParseID(appointmentID)
	if err != nil {
		return nil, fmt.Errorf("%w: appointment id is required", ErrValidation)
	}
	if strings.TrimSpace(status) == "" {
		return nil, fmt.Errorf("%w: status is required", ErrValidation)
	}
	parsed, err := models.ParseStatus(status)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}

	appointment, err := s.repo.UpdateStatus(ctx, id, parsed)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("services: update appointment status: %w", err)
	}
	s.logger.Info("appointment status updated", "appointment_id", id, "status", parsed)
	return appointment, nil
}
