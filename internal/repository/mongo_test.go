package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"

	"medibook/internal/models"
)

// mockProvider hands out collections of the mock deployment's database.
type mockProvider struct {
	db *mongo.Database
}

func (p mockProvider) Collection(_ context.Context, name string) (*mongo.Collection, error) {
	return p.db.Collection(name), nil
}

func newMock(t *testing.T) *mtest.T {
	return mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
}

func ns(mt *mtest.T, coll string) string {
	return mt.DB.Name() + "." + coll
}

func TestMongoAppointmentRepository(t *testing.T) {
	mt := newMock(t)
	ctx := context.Background()

	mt.Run("list for user joins doctor summary", func(mt *mtest.T) {
		repo := NewMongoAppointmentRepository(mockProvider{mt.DB})
		doctorID := primitive.NewObjectID()
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns(mt, AppointmentsCollection), mtest.FirstBatch,
			bson.D{
				{Key: "_id", Value: primitive.NewObjectID()},
				{Key: "doctorId", Value: doctorID},
				{Key: "userId", Value: "u1"},
				{Key: "date", Value: "2024-05-01"},
				{Key: "time", Value: "10:00"},
				{Key: "status", Value: "pending"},
				{Key: "doctor", Value: bson.D{
					{Key: "_id", Value: doctorID},
					{Key: "name", Value: "Dr. Grey"},
					{Key: "speciality", Value: "Surgery"},
				}},
			},
			bson.D{
				{Key: "_id", Value: primitive.NewObjectID()},
				{Key: "doctorId", Value: "d-missing"},
				{Key: "userId", Value: "u1"},
				{Key: "date", Value: "2024-05-02"},
				{Key: "time", Value: "09:00"},
				{Key: "status", Value: "pending"},
			},
		))

		got, err := repo.ListForUser(ctx, "u1")
		require.NoError(mt, err)
		require.Len(mt, got, 2)

		require.NotNil(mt, got[0].Doctor)
		assert.Equal(mt, models.IDFromObjectID(doctorID), got[0].DoctorID)
		assert.Equal(mt, models.IDFromObjectID(doctorID), got[0].Doctor.ID)
		assert.Equal(mt, "Dr. Grey", got[0].Doctor.Name)
		assert.Equal(mt, "Surgery", got[0].Doctor.Speciality)
		assert.Equal(mt, models.StatusPending, got[0].Status)

		assert.Equal(mt, models.ID("d-missing"), got[1].DoctorID)
		assert.Nil(mt, got[1].Doctor)

		evt := mt.GetStartedEvent()
		require.NotNil(mt, evt)
		assert.Equal(mt, "aggregate", evt.CommandName)
		cmd := evt.Command
		assert.Equal(mt, AppointmentsCollection, cmd.Lookup("aggregate").StringValue())
		assert.Equal(mt, "u1", cmd.Lookup("pipeline", "0", "$match", "userId", "$in", "0").StringValue())
		assert.Equal(mt, DoctorsCollection, cmd.Lookup("pipeline", "1", "$lookup", "from").StringValue())
		assert.Equal(mt, "$doctor", cmd.Lookup("pipeline", "2", "$unwind", "path").StringValue())
		assert.True(mt, cmd.Lookup("pipeline", "2", "$unwind", "preserveNullAndEmptyArrays").Boolean())
		_, err = cmd.LookupErr("pipeline", "3", "$project")
		assert.NoError(mt, err)
	})

	mt.Run("list for doctor matches both id forms", func(mt *mtest.T) {
		repo := NewMongoAppointmentRepository(mockProvider{mt.DB})
		doctorID := primitive.NewObjectID()
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns(mt, AppointmentsCollection), mtest.FirstBatch))

		got, err := repo.ListForDoctor(ctx, models.IDFromObjectID(doctorID))
		require.NoError(mt, err)
		assert.NotNil(mt, got)
		assert.Empty(mt, got)

		in := mt.GetStartedEvent().Command.Lookup("pipeline", "0", "$match", "doctorId", "$in")
		values, err := in.Array().Values()
		require.NoError(mt, err)
		require.Len(mt, values, 2)
		assert.Equal(mt, doctorID.Hex(), values[0].StringValue())
		assert.Equal(mt, doctorID, values[1].ObjectID())
	})

	mt.Run("insert stores ids natively and never the doctor summary", func(mt *mtest.T) {
		repo := NewMongoAppointmentRepository(mockProvider{mt.DB})
		mt.AddMockResponses(mtest.CreateSuccessResponse())

		appt := &models.Appointment{
			DoctorID: "d1",
			UserID:   "u1",
			Date:     "2024-05-01",
			Time:     "10:00",
			Status:   models.StatusPending,
			Doctor:   &models.DoctorSummary{Name: "Dr. Grey"},
		}
		require.NoError(mt, repo.Insert(ctx, appt))
		assert.False(mt, appt.ID.IsZero())

		cmd := mt.GetStartedEvent().Command
		assert.Equal(mt, AppointmentsCollection, cmd.Lookup("insert").StringValue())
		assert.Equal(mt, bsontype.ObjectID, cmd.Lookup("documents", "0", "_id").Type)
		assert.Equal(mt, "d1", cmd.Lookup("documents", "0", "doctorId").StringValue())
		assert.Equal(mt, "u1", cmd.Lookup("documents", "0", "userId").StringValue())
		_, err := cmd.LookupErr("documents", "0", "doctor")
		assert.Error(mt, err)
	})

	mt.Run("insert failure is wrapped", func(mt *mtest.T) {
		repo := NewMongoAppointmentRepository(mockProvider{mt.DB})
		mt.AddMockResponses(mtest.CreateCommandErrorResponse(mtest.CommandError{Code: 8000, Message: "boom", Name: "AtlasError"}))

		err := repo.Insert(ctx, &models.Appointment{DoctorID: "d1", UserID: "u1"})
		require.Error(mt, err)
		assert.Contains(mt, err.Error(), "repository: insert appointment")
	})

	mt.Run("find by id", func(mt *mtest.T) {
		repo := NewMongoAppointmentRepository(mockProvider{mt.DB})
		id := primitive.NewObjectID()
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns(mt, AppointmentsCollection), mtest.FirstBatch, bson.D{
			{Key: "_id", Value: id},
			{Key: "doctorId", Value: "d1"},
			{Key: "userId", Value: "u1"},
			{Key: "status", Value: "confirmed"},
		}))

		got, err := repo.FindByID(ctx, models.IDFromObjectID(id))
		require.NoError(mt, err)
		assert.Equal(mt, models.IDFromObjectID(id), got.ID)
		assert.Equal(mt, models.StatusConfirmed, got.Status)
	})

	mt.Run("find by id not found", func(mt *mtest.T) {
		repo := NewMongoAppointmentRepository(mockProvider{mt.DB})
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns(mt, AppointmentsCollection), mtest.FirstBatch))

		_, err := repo.FindByID(ctx, "missing")
		assert.ErrorIs(mt, err, ErrNotFound)
	})

	mt.Run("update status returns the new document", func(mt *mtest.T) {
		repo := NewMongoAppointmentRepository(mockProvider{mt.DB})
		id := primitive.NewObjectID()
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "value", Value: bson.D{
			{Key: "_id", Value: id},
			{Key: "doctorId", Value: "d1"},
			{Key: "userId", Value: "u1"},
			{Key: "status", Value: "cancelled"},
		}}))

		got, err := repo.UpdateStatus(ctx, models.IDFromObjectID(id), models.StatusCancelled)
		require.NoError(mt, err)
		assert.Equal(mt, models.StatusCancelled, got.Status)

		cmd := mt.GetStartedEvent().Command
		assert.Equal(mt, "cancelled", cmd.Lookup("update", "$set", "status").StringValue())
		assert.True(mt, cmd.Lookup("new").Boolean())
	})

	mt.Run("update status not found", func(mt *mtest.T) {
		repo := NewMongoAppointmentRepository(mockProvider{mt.DB})
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "value", Value: nil}))

		_, err := repo.UpdateStatus(ctx, "missing", models.StatusConfirmed)
		assert.ErrorIs(mt, err, ErrNotFound)
	})
}

func TestMongoDoctorRepository(t *testing.T) {
	mt := newMock(t)
	ctx := context.Background()

	mt.Run("list projects out the password", func(mt *mtest.T) {
		repo := NewMongoDoctorRepository(mockProvider{mt.DB})
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns(mt, DoctorsCollection), mtest.FirstBatch,
			bson.D{
				{Key: "_id", Value: primitive.NewObjectID()},
				{Key: "name", Value: "Dr. Grey"},
				{Key: "username", Value: "mgrey"},
				{Key: "fees", Value: 120.5},
			},
		))

		got, err := repo.List(ctx)
		require.NoError(mt, err)
		require.Len(mt, got, 1)
		assert.Equal(mt, "Dr. Grey", got[0].Name)
		assert.Equal(mt, 120.5, got[0].Fees)
		assert.Empty(mt, got[0].Password)

		var cmd struct {
			Find       string `bson:"find"`
			Projection struct {
				Password *int `bson:"password"`
			} `bson:"projection"`
		}
		require.NoError(mt, bson.Unmarshal(mt.GetStartedEvent().Command, &cmd))
		assert.Equal(mt, DoctorsCollection, cmd.Find)
		require.NotNil(mt, cmd.Projection.Password)
		assert.Equal(mt, 0, *cmd.Projection.Password)
	})

	mt.Run("find by username keeps the hash", func(mt *mtest.T) {
		repo := NewMongoDoctorRepository(mockProvider{mt.DB})
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns(mt, DoctorsCollection), mtest.FirstBatch,
			bson.D{
				{Key: "_id", Value: primitive.NewObjectID()},
				{Key: "username", Value: "mgrey"},
				{Key: "password", Value: "$2a$10$hash"},
			},
		))

		got, err := repo.FindByUsername(ctx, "mgrey")
		require.NoError(mt, err)
		assert.Equal(mt, "$2a$10$hash", got.Password)
	})

	mt.Run("find by username not found", func(mt *mtest.T) {
		repo := NewMongoDoctorRepository(mockProvider{mt.DB})
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns(mt, DoctorsCollection), mtest.FirstBatch))

		_, err := repo.FindByUsername(ctx, "nobody")
		assert.ErrorIs(mt, err, ErrNotFound)
	})

	mt.Run("upsert assigns the created id", func(mt *mtest.T) {
		repo := NewMongoDoctorRepository(mockProvider{mt.DB})
		oid := primitive.NewObjectID()
		mt.AddMockResponses(mtest.CreateSuccessResponse(
			bson.E{Key: "n", Value: 1},
			bson.E{Key: "nModified", Value: 0},
			bson.E{Key: "upserted", Value: bson.A{bson.D{
				{Key: "index", Value: 0},
				{Key: "_id", Value: oid},
			}}},
		))

		doctor := &models.Doctor{Username: "mgrey", Name: "Dr. Grey", Password: "$2a$10$hash"}
		require.NoError(mt, repo.Upsert(ctx, doctor))
		assert.Equal(mt, models.IDFromObjectID(oid), doctor.ID)

		cmd := mt.GetStartedEvent().Command
		assert.Equal(mt, "mgrey", cmd.Lookup("updates", "0", "q", "username").StringValue())
		assert.True(mt, cmd.Lookup("updates", "0", "upsert").Boolean())
		assert.Equal(mt, "$2a$10$hash", cmd.Lookup("updates", "0", "u", "$set", "password").StringValue())
	})

	mt.Run("upsert of existing doctor keeps id and stored password", func(mt *mtest.T) {
		repo := NewMongoDoctorRepository(mockProvider{mt.DB})
		mt.AddMockResponses(mtest.CreateSuccessResponse(
			bson.E{Key: "n", Value: 1},
			bson.E{Key: "nModified", Value: 1},
		))

		doctor := &models.Doctor{ID: "kept", Username: "mgrey", Name: "Dr. Grey"}
		require.NoError(mt, repo.Upsert(ctx, doctor))
		assert.Equal(mt, models.ID("kept"), doctor.ID)

		_, err := mt.GetStartedEvent().Command.LookupErr("updates", "0", "u", "$set", "password")
		assert.Error(mt, err)
	})
}

func TestMongoUserRepository(t *testing.T) {
	mt := newMock(t)
	ctx := context.Background()

	mt.Run("create", func(mt *mtest.T) {
		repo := NewMongoUserRepository(mockProvider{mt.DB})
		mt.AddMockResponses(mtest.CreateSuccessResponse())

		user := &models.User{Username: "alice", Role: models.RoleUser}
		require.NoError(mt, repo.Create(ctx, user))
		assert.False(mt, user.ID.IsZero())
		assert.Equal(mt, UsersCollection, mt.GetStartedEvent().Command.Lookup("insert").StringValue())
	})

	mt.Run("duplicate username", func(mt *mtest.T) {
		repo := NewMongoUserRepository(mockProvider{mt.DB})
		mt.AddMockResponses(mtest.CreateWriteErrorsResponse(mtest.WriteError{
			Index:   0,
			Code:    11000,
			Message: "E11000 duplicate key error collection: users index: username_1",
		}))

		err := repo.Create(ctx, &models.User{Username: "alice"})
		assert.ErrorIs(mt, err, ErrDuplicate)
	})

	mt.Run("find by id", func(mt *mtest.T) {
		repo := NewMongoUserRepository(mockProvider{mt.DB})
		id := primitive.NewObjectID()
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns(mt, UsersCollection), mtest.FirstBatch, bson.D{
			{Key: "_id", Value: id},
			{Key: "username", Value: "alice"},
			{Key: "role", Value: "user"},
		}))

		got, err := repo.FindByID(ctx, models.IDFromObjectID(id))
		require.NoError(mt, err)
		assert.Equal(mt, "alice", got.Username)
		assert.Equal(mt, models.RoleUser, got.Role)
	})

	mt.Run("find by username not found", func(mt *mtest.T) {
		repo := NewMongoUserRepository(mockProvider{mt.DB})
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns(mt, UsersCollection), mtest.FirstBatch))

		_, err := repo.FindByUsername(ctx, "nobody")
		assert.ErrorIs(mt, err, ErrNotFound)
	})
}

func TestEnsureIndexes(t *testing.T) {
	mt := newMock(t)

	mt.Run("creates indexes on every collection", func(mt *mtest.T) {
		mt.AddMockResponses(
			mtest.CreateSuccessResponse(),
			mtest.CreateSuccessResponse(),
			mtest.CreateSuccessResponse(),
		)

		require.NoError(mt, EnsureIndexes(context.Background(), mockProvider{mt.DB}))

		created := map[string]bool{}
		for _, evt := range mt.GetAllStartedEvents() {
			require.Equal(mt, "createIndexes", evt.CommandName)
			created[evt.Command.Lookup("createIndexes").StringValue()] = true
		}
		assert.Equal(mt, map[string]bool{
			UsersCollection:        true,
			DoctorsCollection:      true,
			AppointmentsCollection: true,
		}, created)
	})
}
