package client

import (
	"context"

	"medibook/internal/models"
)

// Booking describes an appointment to book for the signed-in user.
type Booking struct {
	DoctorID string
	Date     string
	Time     string
}

// AppointmentService lists and books appointments for the session user and
// signals completed bookings to in-process subscribers.
type AppointmentService struct {
	session *Session
	booked  listeners[models.ID]
}

func NewAppointmentService(session *Session) *AppointmentService {
	return &AppointmentService{session: session}
}

// ListMine returns the signed-in user's appointments.
func (s *AppointmentService) ListMine(ctx context.Context) ([]models.Appointment, error) {
	user := s.session.CurrentUser()
	if user == nil {
		return nil, ErrNotAuthenticated
	}
	return s.session.API().ListAppointments(ctx, user.ID)
}

// Book creates an appointment for the signed-in user and notifies
// subscribers with the new id.
func (s *AppointmentService) Book(ctx context.Context, b Booking) (models.ID, error) {
	user := s.session.CurrentUser()
	if user == nil {
		return "", ErrNotAuthenticated
	}
	id, err := s.session.API().CreateAppointment(ctx, CreateAppointmentRequest{
		DoctorID: b.DoctorID,
		UserID:   user.ID.String(),
		Username: user.Username,
		Date:     b.Date,
		Time:     b.Time,
		Status:   string(models.StatusPending),
	})
	if err != nil {
		return "", err
	}
	s.booked.emit(id)
	return id, nil
}

// Subscribe registers fn to run after each completed booking.
func (s *AppointmentService) Subscribe(fn func(models.ID)) (unsubscribe func()) {
	return s.booked.add(fn)
}
