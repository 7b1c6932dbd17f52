package repository

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"medibook/internal/models"
)

// credentialProjection keeps password hashes out of listing queries.
var credentialProjection = bson.D{{Key: "password", Value: 0}}

// MongoDoctorRepository reads the doctors collection.
type MongoDoctorRepository struct {
	db CollectionProvider
}

// NewMongoDoctorRepository creates a doctor repository on the shared connection.
func NewMongoDoctorRepository(db CollectionProvider) *MongoDoctorRepository {
	if db == nil {
		panic("repository: collection provider required")
	}
	return &MongoDoctorRepository{db: db}
}

// List returns all doctors. The password is excluded by the query
// projection so it is never decoded.
func (r *MongoDoctorRepository) List(ctx context.Context) ([]models.Doctor, error) {
	coll, err := r.db.Collection(ctx, DoctorsCollection)
	if err != nil {
		return nil, err
	}

	cursor, err := coll.Find(ctx, bson.D{}, options.Find().SetProjection(credentialProjection))
	if err != nil {
		return nil, fmt.Errorf("repository: find doctors: %w", err)
	}
	doctors := []models.Doctor{}
	if err := cursor.All(ctx, &doctors); err != nil {
		return nil, fmt.Errorf("repository: decode doctors: %w", err)
	}
	return doctors, nil
}

// FindByUsername returns the doctor with its password hash for login.
func (r *MongoDoctorRepository) FindByUsername(ctx context.Context, username string) (*models.Doctor, error) {
	coll, err := r.db.Collection(ctx, DoctorsCollection)
	if err != nil {
		return nil, err
	}

	var doctor models.Doctor
	err = coll.FindOne(ctx, bson.D{{Key: "username", Value: username}}).Decode(&doctor)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("repository: find doctor: %w", err)
	}
	return &doctor, nil
}

// Upsert writes the doctor keyed by username and sets its ID when the
// document was created.
func (r *MongoDoctorRepository) Upsert(ctx context.Context, doctor *models.Doctor) error {
	coll, err := r.db.Collection(ctx, DoctorsCollection)
	if err != nil {
		return err
	}

	set := bson.D{
		{Key: "id", Value: doctor.Number},
		{Key: "name", Value: doctor.Name},
		{Key: "username", Value: doctor.Username},
		{Key: "speciality", Value: doctor.Speciality},
		{Key: "fees", Value: doctor.Fees},
		{Key: "availability", Value: doctor.Availability},
		{Key: "rating", Value: doctor.Rating},
		{Key: "image", Value: doctor.Image},
	}
	if doctor.Password != "" {
		set = append(set, bson.E{Key: "password", Value: doctor.Password})
	}

	res, err := coll.UpdateOne(ctx,
		bson.D{{Key: "username", Value: doctor.Username}},
		bson.D{{Key: "$set", Value: set}},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("repository: upsert doctor: %w", err)
	}
	if oid, ok := res.UpsertedID.(primitive.ObjectID); ok {
		doctor.ID = models.IDFromObjectID(oid)
	}
	return nil
}
