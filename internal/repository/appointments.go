package repository

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"medibook/internal/models"
)

// MongoAppointmentRepository stores appointments.
type MongoAppointmentRepository struct {
	db CollectionProvider
}

// NewMongoAppointmentRepository creates an appointment repository on the shared connection.
func NewMongoAppointmentRepository(db CollectionProvider) *MongoAppointmentRepository {
	if db == nil {
		panic("repository: collection provider required")
	}
	return &MongoAppointmentRepository{db: db}
}

// Insert stores one appointment.
func (r *MongoAppointmentRepository) Insert(ctx context.Context, appointment *models.Appointment) error {
	coll, err := r.db.Collection(ctx, AppointmentsCollection)
	if err != nil {
		return err
	}

	if appointment.ID.IsZero() {
		appointment.ID = models.NewID()
	}
	doc := *appointment
	doc.Doctor = nil
	if _, err := coll.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("repository: insert appointment: %w", err)
	}
	return nil
}

// ListForUser returns all appointments booked by userID.
func (r *MongoAppointmentRepository) ListForUser(ctx context.Context, userID models.ID) ([]models.Appointment, error) {
	return r.aggregate(ctx, AppointmentsWithDoctorPipeline("userId", userID))
}

// ListForDoctor returns all appointments booked with doctorID.
func (r *MongoAppointmentRepository) ListForDoctor(ctx context.Context, doctorID models.ID) ([]models.Appointment, error) {
	return r.aggregate(ctx, AppointmentsWithDoctorPipeline("doctorId", doctorID))
}

func (r *MongoAppointmentRepository) aggregate(ctx context.Context, pipeline mongo.Pipeline) ([]models.Appointment, error) {
	coll, err := r.db.Collection(ctx, AppointmentsCollection)
	if err != nil {
		return nil, err
	}

	cursor, err := coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("repository: aggregate appointments: %w", err)
	}
	appointments := []models.Appointment{}
	if err := cursor.All(ctx, &appointments); err != nil {
		return nil, fmt.Errorf("repository: decode appointments: %w", err)
	}
	return appointments, nil
}

// FindByID returns a single appointment without doctor details.
func (r *MongoAppointmentRepository) FindByID(ctx context.Context, id models.ID) (*models.Appointment, error) {
	coll, err := r.db.Collection(ctx, AppointmentsCollection)
	if err != nil {
		return nil, err
	}

	var appointment models.Appointment
	err = coll.FindOne(ctx, idFilter("_id", id)).Decode(&appointment)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("repository: find appointment: %w", err)
	}
	return &appointment, nil
}

// UpdateStatus sets the status and returns the updated appointment.
func (r *MongoAppointmentRepository) UpdateStatus(ctx context.Context, id models.ID, status models.AppointmentStatus) (*models.Appointment, error) {
	coll, err := r.db.Collection(ctx, AppointmentsCollection)
	if err != nil {
		return nil, err
	}

	var appointment models.Appointment
	err = coll.FindOneAndUpdate(ctx,
		idFilter("_id", id),
		bson.D{{Key: "$set", Value: bson.D{{Key: "status", Value: status}}}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&appointment)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("repository: update appointment status: %w", err)
	}
	return &appointment, nil
}

// AppointmentsWithDoctorPipeline matches appointments whose field equals id
// in either stored representation and joins a doctor summary. Appointments
// without a matching doctor are kept with no summary.
func AppointmentsWithDoctorPipeline(field string, id models.ID) mongo.Pipeline {
	return mongo.Pipeline{
		{{Key: "$match", Value: idFilter(field, id)}},
		{{Key: "$lookup", Value: bson.D{
			{Key: "from", Value: DoctorsCollection},
			{Key: "localField", Value: "doctorId"},
			{Key: "foreignField", Value: "_id"},
			{Key: "as", Value: "doctor"},
		}}},
		{{Key: "$unwind", Value: bson.D{
			{Key: "path", Value: "$doctor"},
			{Key: "preserveNullAndEmptyArrays", Value: true},
		}}},
		{{Key: "$project", Value: bson.D{
			{Key: "doctorId", Value: 1},
			{Key: "userId", Value: 1},
			{Key: "username", Value: 1},
			{Key: "date", Value: 1},
			{Key: "time", Value: 1},
			{Key: "status", Value: 1},
			{Key: "createdAt", Value: 1},
			{Key: "doctor._id", Value: 1},
			{Key: "doctor.name", Value: 1},
			{Key: "doctor.speciality", Value: 1},
		}}},
	}
}
