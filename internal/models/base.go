package models

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"gorm.io/gorm"
)

// ErrInvalidID is returned by ParseID for empty identifiers.
var ErrInvalidID = errors.New("invalid identifier")

// ID identifies a document. Values that are valid ObjectID hex strings are
// stored as ObjectIDs, anything else is stored as a plain string.
type ID string

// NewID returns a fresh store-native identifier.
func NewID() ID {
	return ID(primitive.NewObjectID().Hex())
}

// ParseID validates an identifier received at a boundary.
func ParseID(s string) (ID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", ErrInvalidID
	}
	return ID(s), nil
}

// IDFromObjectID converts a store-native id.
func IDFromObjectID(oid primitive.ObjectID) ID {
	return ID(oid.Hex())
}

func (id ID) String() string {
	return string(id)
}

// IsZero lets bson omitempty skip unset ids.
func (id ID) IsZero() bool {
	return id == ""
}

// ObjectID reports the store-native form of the id, if it has one.
func (id ID) ObjectID() (primitive.ObjectID, bool) {
	oid, err := primitive.ObjectIDFromHex(string(id))
	if err != nil {
		return primitive.NilObjectID, false
	}
	return oid, true
}

// MarshalBSONValue implements bson.ValueMarshaler.
func (id ID) MarshalBSONValue() (bsontype.Type, []byte, error) {
	if oid, ok := id.ObjectID(); ok {
		return bson.MarshalValue(oid)
	}
	return bson.MarshalValue(string(id))
}

// UnmarshalBSONValue implements bson.ValueUnmarshaler.
func (id *ID) UnmarshalBSONValue(t bsontype.Type, data []byte) error {
	raw := bson.RawValue{Type: t, Value: data}
	switch t {
	case bsontype.ObjectID:
		*id = IDFromObjectID(raw.ObjectID())
	case bsontype.String:
		*id = ID(raw.StringValue())
	case bsontype.Null, bsontype.Undefined:
		*id = ""
	default:
		return fmt.Errorf("cannot decode %s into an ID", t)
	}
	return nil
}

// BaseModel contains common columns for SQL tables
type BaseModel struct {
	ID        string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// BeforeCreate will set a UUID rather than numeric ID
func (base *BaseModel) BeforeCreate(tx *gorm.DB) error {
	if base.ID == "" {
		base.ID = uuid.New().String()
	}
	return nil
}
