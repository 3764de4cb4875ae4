package verifications

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// CollectionName is where verification records land in MongoDB.
const CollectionName = "student_verifications"

// MongoRepo stores one document per submission, mirroring the flat record
// appended to the tabular store plus a server-side timestamp.
type MongoRepo struct {
	col *mongo.Collection
}

func NewMongoRepo(col *mongo.Collection) *MongoRepo {
	return &MongoRepo{col: col}
}

func (m *MongoRepo) Save(ctx context.Context, record map[string]string) (string, error) {
	doc := bson.M{"submittedAt": time.Now().UTC()}
	for k, v := range record {
		doc[k] = v
	}
	res, err := m.col.InsertOne(ctx, doc)
	if err != nil {
		return "", fmt.Errorf("insert verification: %w", err)
	}
	if oid, ok := res.InsertedID.(primitive.ObjectID); ok {
		return oid.Hex(), nil
	}
	return fmt.Sprintf("%v", res.InsertedID), nil
}
