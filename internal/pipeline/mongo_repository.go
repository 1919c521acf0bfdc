package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"go.pipelinehub.dev/internal/common/repository"
	"go.pipelinehub.dev/internal/common/tsid"
)

// MongoRepository stores pipelines in a MongoDB collection. New records get
// time-sorted ids from a TSID generator.
type MongoRepository struct {
	collection *mongo.Collection
	ids        *tsid.Generator
}

var _ repository.Repository[Entity, int64] = (*MongoRepository)(nil)

// NewMongoRepository creates a repository over the pipelines collection of db.
func NewMongoRepository(db *mongo.Database) *MongoRepository {
	return &MongoRepository{
		collection: db.Collection(Collection),
		ids:        tsid.NewGenerator(),
	}
}

func (r *MongoRepository) FindAll(ctx context.Context) ([]Entity, error) {
	cursor, err := r.collection.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	out := []Entity{}
	if err := cursor.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *MongoRepository) FindByID(ctx context.Context, id int64) (*Entity, error) {
	var e Entity
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&e)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (r *MongoRepository) Save(ctx context.Context, e Entity) (Entity, error) {
	if e.ID == 0 {
		e.ID = r.ids.Next()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC().Truncate(time.Millisecond)
	}

	if _, err := r.collection.InsertOne(ctx, e); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return Entity{}, fmt.Errorf("pipeline %d: %w", e.ID, repository.ErrDuplicateKey)
		}
		return Entity{}, err
	}
	return e, nil
}

// Update replaces every field except _id and created_at.
func (r *MongoRepository) Update(ctx context.Context, e Entity) (Entity, error) {
	if e.ID == 0 {
		return Entity{}, repository.ErrMissingID
	}

	var stored Entity
	err := r.collection.FindOneAndUpdate(ctx,
		bson.M{"_id": e.ID},
		bson.M{"$set": bson.M{
			"name":  e.Name,
			"email": e.Email,
			"age":   e.Age,
		}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&stored)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return Entity{}, fmt.Errorf("pipeline %d: %w", e.ID, repository.ErrNotFound)
	}
	if err != nil {
		return Entity{}, err
	}
	return stored, nil
}

func (r *MongoRepository) Delete(ctx context.Context, e Entity) error {
	if e.ID == 0 {
		return repository.ErrMissingID
	}
	return r.DeleteByID(ctx, e.ID)
}

// DeleteByID removes the record. Deleting an absent id is not an error.
func (r *MongoRepository) DeleteByID(ctx context.Context, id int64) error {
	_, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	return err
}

func (r *MongoRepository) SaveOrUpdate(ctx context.Context, e Entity) (Entity, error) {
	if e.ID == 0 {
		return r.Save(ctx, e)
	}
	return r.Update(ctx, e)
}
