// Package memory implements the repository ports in process memory. The
// behaviour mirrors the MongoDB adapters: listings never carry credentials
// and appointments are left-joined to their doctor.
package memory

import (
	"context"
	"sync"

	"medibook/internal/models"
	"medibook/internal/repository"
)

// Store holds all collections behind one lock so joins see a consistent view.
type Store struct {
	mu           sync.RWMutex
	doctors      []models.Doctor
	appointments []models.Appointment
	users        []models.User
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{}
}

// Doctors returns the doctor repository view of the store.
func (s *Store) Doctors() *DoctorRepository { return &DoctorRepository{s: s} }

// Appointments returns the appointment repository view of the store.
func (s *Store) Appointments() *AppointmentRepository { return &AppointmentRepository{s: s} }

// Users returns the user repository view of the store.
func (s *Store) Users() *UserRepository { return &UserRepository{s: s} }

var (
	_ repository.DoctorRepository      = (*DoctorRepository)(nil)
	_ repository.AppointmentRepository = (*AppointmentRepository)(nil)
	_ repository.UserRepository        = (*UserRepository)(nil)
)

// DoctorRepository is the in-memory doctors collection.
type DoctorRepository struct{ s *Store }

func (r *DoctorRepository) List(ctx context.Context) ([]models.Doctor, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	doctors := make([]models.Doctor, 0, len(r.s.doctors))
	for _, d := range r.s.doctors {
		d.Password = ""
		doctors = append(doctors, d)
	}
	return doctors, nil
}

func (r *DoctorRepository) FindByUsername(ctx context.Context, username string) (*models.Doctor, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, d := range r.s.doctors {
		if d.Username == username {
			return &d, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *DoctorRepository) Upsert(ctx context.Context, doctor *models.Doctor) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for i, d := range r.s.doctors {
		if d.Username == doctor.Username {
			doctor.ID = d.ID
			if doctor.Password == "" {
				doctor.Password = d.Password
			}
			r.s.doctors[i] = *doctor
			return nil
		}
	}
	if doctor.ID.IsZero() {
		doctor.ID = models.NewID()
	}
	r.s.doctors = append(r.s.doctors, *doctor)
	return nil
}

// AppointmentRepository is the in-memory appointments collection.
type AppointmentRepository struct{ s *Store }

func (r *AppointmentRepository) Insert(ctx context.Context, appointment *models.Appointment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if appointment.ID.IsZero() {
		appointment.ID = models.NewID()
	}
	stored := *appointment
	stored.Doctor = nil
	r.s.appointments = append(r.s.appointments, stored)
	return nil
}

func (r *AppointmentRepository) ListForUser(ctx context.Context, userID models.ID) ([]models.Appointment, error) {
	return r.list(func(a models.Appointment) bool { return sameID(a.UserID, userID) }), nil
}

func (r *AppointmentRepository) ListForDoctor(ctx context.Context, doctorID models.ID) ([]models.Appointment, error) {
	return r.list(func(a models.Appointment) bool { return sameID(a.DoctorID, doctorID) }), nil
}

func (r *AppointmentRepository) list(match func(models.Appointment) bool) []models.Appointment {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	appointments := []models.Appointment{}
	for _, a := range r.s.appointments {
		if !match(a) {
			continue
		}
		a.Doctor = r.s.doctorSummary(a.DoctorID)
		appointments = append(appointments, a)
	}
	return appointments
}

func (r *AppointmentRepository) FindByID(ctx context.Context, id models.ID) (*models.Appointment, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, a := range r.s.appointments {
		if sameID(a.ID, id) {
			return &a, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *AppointmentRepository) UpdateStatus(ctx context.Context, id models.ID, status models.AppointmentStatus) (*models.Appointment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for i := range r.s.appointments {
		if sameID(r.s.appointments[i].ID, id) {
			r.s.appointments[i].Status = status
			updated := r.s.appointments[i]
			return &updated, nil
		}
	}
	return nil, repository.ErrNotFound
}

// doctorSummary must be called with the lock held.
func (s *Store) doctorSummary(id models.ID) *models.DoctorSummary {
	for _, d := range s.doctors {
		if sameID(d.ID, id) {
			return d.Summary()
		}
	}
	return nil
}

// UserRepository is the in-memory users collection.
type UserRepository struct{ s *Store }

func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, u := range r.s.users {
		if u.Username == user.Username {
			return repository.ErrDuplicate
		}
	}
	if user.ID.IsZero() {
		user.ID = models.NewID()
	}
	r.s.users = append(r.s.users, *user)
	return nil
}

func (r *UserRepository) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	return r.find(func(u models.User) bool { return u.Username == username })
}

func (r *UserRepository) FindByID(ctx context.Context, id models.ID) (*models.User, error) {
	return r.find(func(u models.User) bool { return sameID(u.ID, id) })
}

func (r *UserRepository) find(match func(models.User) bool) (*models.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, u := range r.s.users {
		if match(u) {
			return &u, nil
		}
	}
	return nil, repository.ErrNotFound
}

// sameID matches ids the way the Mongo adapters do: ObjectID hex values are
// compared as ObjectIDs, so the hex case does not matter.
func sameID(a, b models.ID) bool {
	if a == b {
		return true
	}
	ao, aok := a.ObjectID()
	bo, bok := b.ObjectID()
	return aok && bok && ao == bo
}
