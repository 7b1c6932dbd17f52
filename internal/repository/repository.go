// Package repository defines the persistence ports used by the services and
// their MongoDB adapters.
package repository

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"medibook/internal/models"
)

// Collection names.
const (
	DoctorsCollection      = "doctors"
	AppointmentsCollection = "appointments"
	UsersCollection        = "users"
)

var (
	// ErrNotFound is returned when a lookup matches nothing.
	ErrNotFound = errors.New("repository: not found")
	// ErrDuplicate is returned when a unique key is already taken.
	ErrDuplicate = errors.New("repository: duplicate key")
)

// DoctorRepository reads the doctor directory.
type DoctorRepository interface {
	// List returns every doctor without credentials.
	List(ctx context.Context) ([]models.Doctor, error)
	// FindByUsername returns the doctor including the password hash.
	FindByUsername(ctx context.Context, username string) (*models.Doctor, error)
	// Upsert creates or replaces a doctor keyed by username.
	Upsert(ctx context.Context, doctor *models.Doctor) error
}

// AppointmentRepository stores bookings.
type AppointmentRepository interface {
	// Insert stores a new appointment, assigning its ID when unset.
	Insert(ctx context.Context, appointment *models.Appointment) error
	// ListForUser returns the user's appointments with doctor summaries.
	ListForUser(ctx context.Context, userID models.ID) ([]models.Appointment, error)
	// ListForDoctor returns the doctor's appointments with doctor summaries.
	ListForDoctor(ctx context.Context, doctorID models.ID) ([]models.Appointment, error)
	FindByID(ctx context.Context, id models.ID) (*models.Appointment, error)
	UpdateStatus(ctx context.Context, id models.ID, status models.AppointmentStatus) (*models.Appointment, error)
}

// UserRepository stores accounts.
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	FindByUsername(ctx context.Context, username string) (*models.User, error)
	FindByID(ctx context.Context, id models.ID) (*models.User, error)
}

// CollectionProvider hands out collections on a shared connection.
// *database.Holder satisfies it.
type CollectionProvider interface {
	Collection(ctx context.Context, name string) (*mongo.Collection, error)
}

// IDCandidates lists every stored representation an id may have: the raw
// string and, when it parses as one, the ObjectID.
func IDCandidates(id models.ID) bson.A {
	candidates := bson.A{id.String()}
	if oid, ok := id.ObjectID(); ok {
		candidates = append(candidates, oid)
	}
	return candidates
}

func idFilter(field string, id models.ID) bson.D {
	return bson.D{{Key: field, Value: bson.D{{Key: "$in", Value: IDCandidates(id)}}}}
}
