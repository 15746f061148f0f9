package reading

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/x/mongo/driver/topology"
)

// recentSort orders by date descending with the ObjectID as tie-break.
// ObjectIDs embed creation time, so later inserts win on equal dates.
var recentSort = bson.D{{Key: "date", Value: -1}, {Key: "_id", Value: -1}}

// mongoReading is the stored document shape.
type mongoReading struct {
	ID       primitive.ObjectID `bson:"_id,omitempty"`
	SensorID int                `bson:"sensorId"`
	Value    float64            `bson:"reading"`
	Date     string             `bson:"date"`
}

func toMongoReading(r *Reading) mongoReading {
	return mongoReading{
		SensorID: r.SensorID,
		Value:    r.Value,
		Date:     r.Date,
	}
}

func (d mongoReading) toReading() Reading {
	return Reading{
		ID:       ID(d.ID.Hex()),
		SensorID: d.SensorID,
		Value:    d.Value,
		Date:     d.Date,
	}
}

// MongoRepository implements Repository over a MongoDB collection.
type MongoRepository struct {
	coll *mongo.Collection
}

// NewMongoRepository creates a repository backed by coll.
func NewMongoRepository(coll *mongo.Collection) *MongoRepository {
	return &MongoRepository{coll: coll}
}

// EnsureIndexes creates the date index used by latest and recent queries.
// Creating an index that already exists is a no-op on the server.
func (r *MongoRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    recentSort,
		Options: options.Index().SetName("date_desc_id_desc"),
	})
	if err != nil {
		return classifyMongoError(err, nil)
	}
	return nil
}

// Insert stores rd with a freshly generated ObjectID.
func (r *MongoRepository) Insert(ctx context.Context, rd *Reading) (ID, error) {
	doc := toMongoReading(rd)
	doc.ID = primitive.NewObjectID()

	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		return "", classifyMongoError(err, ErrWriteFailure)
	}

	rd.ID = ID(doc.ID.Hex())
	return rd.ID, nil
}

// GetByID retrieves a reading by its hex ObjectID.
func (r *MongoRepository) GetByID(ctx context.Context, id ID) (*Reading, error) {
	oid, err := primitive.ObjectIDFromHex(string(id))
	if err != nil {
		return nil, ErrNotFound
	}
	return r.findOne(ctx, bson.M{"_id": oid}, options.FindOne())
}

// GetLatest retrieves the reading with the greatest date.
func (r *MongoRepository) GetLatest(ctx context.Context) (*Reading, error) {
	return r.findOne(ctx, bson.M{}, options.FindOne().SetSort(recentSort))
}

// ListRecent retrieves up to limit readings, newest date first.
func (r *MongoRepository) ListRecent(ctx context.Context, limit int) ([]Reading, error) {
	if limit <= 0 {
		return []Reading{}, nil
	}

	opts := options.Find().SetSort(recentSort).SetLimit(int64(limit))
	cursor, err := r.coll.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, classifyMongoError(err, nil)
	}
	defer cursor.Close(ctx)

	var docs []mongoReading
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, classifyMongoError(err, nil)
	}

	readings := make([]Reading, 0, len(docs))
	for _, d := range docs {
		readings = append(readings, d.toReading())
	}
	return readings, nil
}

func (r *MongoRepository) findOne(ctx context.Context, filter any, opts *options.FindOneOptions) (*Reading, error) {
	var doc mongoReading
	err := r.coll.FindOne(ctx, filter, opts).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, classifyMongoError(err, nil)
	}
	rd := doc.toReading()
	return &rd, nil
}

// classifyMongoError maps driver errors onto the domain errors.
// Network failures, timeouts and a disconnected client mean the store is
// unavailable. Anything else is wrapped with fallback when non-nil.
func classifyMongoError(err error, fallback error) error {
	if mongo.IsNetworkError(err) ||
		mongo.IsTimeout(err) ||
		errors.Is(err, mongo.ErrClientDisconnected) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}

	var selectionErr topology.ServerSelectionError
	if errors.As(err, &selectionErr) {
		return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}

	if fallback != nil {
		return fmt.Errorf("%w: %w", fallback, err)
	}
	return fmt.Errorf("querying readings: %w", err)
}
