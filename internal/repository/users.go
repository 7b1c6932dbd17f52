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

// MongoUserRepository stores accounts in the users collection.
type MongoUserRepository struct {
	db CollectionProvider
}

// NewMongoUserRepository creates a user repository on the shared connection.
func NewMongoUserRepository(db CollectionProvider) *MongoUserRepository {
	if db == nil {
		panic("repository: collection provider required")
	}
	return &MongoUserRepository{db: db}
}

// Create inserts a user. A taken username yields ErrDuplicate.
func (r *MongoUserRepository) Create(ctx context.Context, user *models.User) error {
	coll, err := r.db.Collection(ctx, UsersCollection)
	if err != nil {
		return err
	}

	if user.ID.IsZero() {
		user.ID = models.NewID()
	}
	if _, err := coll.InsertOne(ctx, user); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("repository: insert user: %w", err)
	}
	return nil
}

// FindByUsername returns the user including the password hash.
func (r *MongoUserRepository) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	return r.findOne(ctx, bson.D{{Key: "username", Value: username}})
}

// FindByID returns the user with the given id.
func (r *MongoUserRepository) FindByID(ctx context.Context, id models.ID) (*models.User, error) {
	return r.findOne(ctx, idFilter("_id", id))
}

func (r *MongoUserRepository) findOne(ctx context.Context, filter bson.D) (*models.User, error) {
	coll, err := r.db.Collection(ctx, UsersCollection)
	if err != nil {
		return nil, err
	}

	var user models.User
	err = coll.FindOne(ctx, filter).Decode(&user)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("repository: find user: %w", err)
	}
	return &user, nil
}

// EnsureIndexes creates the unique and lookup indexes the repositories rely on.
func EnsureIndexes(ctx context.Context, db CollectionProvider) error {
	indexes := map[string][]mongo.IndexModel{
		UsersCollection: {
			{Keys: bson.D{{Key: "username", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		DoctorsCollection: {
			{Keys: bson.D{{Key: "username", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		AppointmentsCollection: {
			{Keys: bson.D{{Key: "userId", Value: 1}}},
			{Keys: bson.D{{Key: "doctorId", Value: 1}}},
		},
	}

	for name, specs := range indexes {
		coll, err := db.Collection(ctx, name)
		if err != nil {
			return err
		}
		if _, err := coll.Indexes().CreateMany(ctx, specs); err != nil {
			return fmt.Errorf("repository: create %s indexes: %w", name, err)
		}
	}
	return nil
}
