package repository

import (
	"context"
	"fmt"
	"time"

	"bazaar-api/internal/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

// MongoNotificationStore implements NotificationStore using MongoDB.
type MongoNotificationStore struct {
	client     *mongo.Client
	collection *mongo.Collection
}

// notificationDocument represents a document in MongoDB.
type notificationDocument struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	Recipient string             `bson:"recipient"`
	Message   string             `bson:"message"`
	CreatedAt time.Time          `bson:"created_at"`
	Read      bool               `bson:"is_read"`
}

// NewMongoNotificationStore connects to MongoDB and ensures the mailbox indexes.
func NewMongoNotificationStore(ctx context.Context, uri, database, collection string, logger *zap.Logger) (*MongoNotificationStore, error) {
	connectCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	clientOpts := options.Client().
		ApplyURI(uri).
		SetMaxPoolSize(50).
		SetMinPoolSize(5).
		SetMaxConnIdleTime(5 * time.Minute).
		SetRetryWrites(true)

	client, err := mongo.Connect(connectCtx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(connectCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	coll := client.Database(database).Collection(collection)

	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "recipient", Value: 1}, {Key: "is_read", Value: 1}, {Key: "created_at", Value: 1}}},
		{Keys: bson.D{{Key: "created_at", Value: 1}}},
	}
	if _, err := coll.Indexes().CreateMany(connectCtx, indexes); err != nil {
		logger.Warn("failed to create notification indexes", zap.Error(err))
	}

	logger.Info("connected to MongoDB", zap.String("database", database), zap.String("collection", collection))
	return &MongoNotificationStore{client: client, collection: coll}, nil
}

func (r *MongoNotificationStore) Append(ctx context.Context, n *model.Notification) error {
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}

	doc := notificationDocument{
		Recipient: n.Recipient,
		Message:   n.Message,
		CreatedAt: n.CreatedAt,
		Read:      n.Read,
	}
	res, err := r.collection.InsertOne(ctx, doc)
	if err != nil {
		return fmt.Errorf("failed to append notification: %w", err)
	}
	if oid, ok := res.InsertedID.(primitive.ObjectID); ok {
		n.ID = oid.Hex()
	}
	return nil
}

// Unread returns unread notifications for recipient, oldest first.
func (r *MongoNotificationStore) Unread(ctx context.Context, recipient string) ([]model.Notification, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})
	cursor, err := r.collection.Find(ctx, bson.M{"recipient": recipient, "is_read": false}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to get unread notifications: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []notificationDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode notifications: %w", err)
	}

	out := make([]model.Notification, 0, len(docs))
	for _, d := range docs {
		out = append(out, model.Notification{
			ID:        d.ID.Hex(),
			Recipient: d.Recipient,
			Message:   d.Message,
			CreatedAt: d.CreatedAt,
			Read:      d.Read,
		})
	}
	return out, nil
}

func (r *MongoNotificationStore) CountUnread(ctx context.Context, recipient string) (int, error) {
	n, err := r.collection.CountDocuments(ctx, bson.M{"recipient": recipient, "is_read": false})
	if err != nil {
		return 0, fmt.Errorf("failed to count unread notifications: %w", err)
	}
	return int(n), nil
}

func (r *MongoNotificationStore) MarkRead(ctx context.Context, recipient string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	oids := make([]primitive.ObjectID, 0, len(ids))
	for _, id := range ids {
		oid, err := primitive.ObjectIDFromHex(id)
		if err != nil {
			return fmt.Errorf("invalid notification id %q: %w", id, err)
		}
		oids = append(oids, oid)
	}

	filter := bson.M{"recipient": recipient, "_id": bson.M{"$in": oids}}
	if _, err := r.collection.UpdateMany(ctx, filter, bson.M{"$set": bson.M{"is_read": true}}); err != nil {
		return fmt.Errorf("failed to mark notifications read: %w", err)
	}
	return nil
}

func (r *MongoNotificationStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.collection.DeleteMany(ctx, bson.M{"created_at": bson.M{"$lt": cutoff}})
	if err != nil {
		return 0, fmt.Errorf("failed to delete old notifications: %w", err)
	}
	return res.DeletedCount, nil
}

// Close disconnects from MongoDB.
func (r *MongoNotificationStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return r.client.Disconnect(ctx)
}

var _ NotificationStore = (*MongoNotificationStore)(nil)
