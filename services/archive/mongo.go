// Package archive keeps every provider snapshot in MongoDB so a stock's
// metric history survives the overwrite in the main store.
package archive

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"stock_screener/services/marketdata"
)

// MongoDB database and collection names
const (
	MongoDBName         = "stock_screener"
	SnapshotsCollection = "snapshots"
)

// ErrDisabled is returned by reads when no MongoDB URI is configured
var ErrDisabled = errors.New("snapshot archive disabled")

// MongoArchive stores raw snapshots in MongoDB. The zero configuration
// (empty URI) yields an archive whose writes are no-ops.
type MongoArchive struct {
	client     *mongo.Client
	collection *mongo.Collection
	mu         sync.RWMutex
}

// NewMongoArchive connects to uri. An empty uri disables the archive.
func NewMongoArchive(ctx context.Context, uri string) (*MongoArchive, error) {
	if uri == "" {
		log.Info().Msg("MONGODB_URI not set, snapshot archive disabled")
		return &MongoArchive{}, nil
	}

	a := &MongoArchive{}
	if err := a.connect(ctx, uri); err != nil {
		return nil, err
	}
	return a, nil
}

func (a *MongoArchive) connect(ctx context.Context, uri string) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	clientOptions := options.Client().
		ApplyURI(uri).
		SetMaxPoolSize(10).
		SetMaxConnIdleTime(30 * time.Second).
		SetConnectTimeout(10 * time.Second).
		SetRetryWrites(true).
		SetRetryReads(true)

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(ctx)
		return fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	collection := client.Database(MongoDBName).Collection(SnapshotsCollection)
	_, err = collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "symbol", Value: 1}, {Key: "fetched_at", Value: -1}},
	})
	if err != nil {
		log.Warn().Err(err).Msg("Failed to create snapshot index")
	}

	a.mu.Lock()
	a.client = client
	a.collection = collection
	a.mu.Unlock()

	log.Info().Str("collection", SnapshotsCollection).Msg("MongoDB snapshot archive connected")
	return nil
}

// IsConfigured returns whether MongoDB is configured and connected
func (a *MongoArchive) IsConfigured() bool {
	return a.snapshots() != nil
}

func (a *MongoArchive) snapshots() *mongo.Collection {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.collection
}

// Record inserts one snapshot
func (a *MongoArchive) Record(ctx context.Context, snap *marketdata.Snapshot) error {
	collection := a.snapshots()
	if collection == nil {
		return nil
	}

	if _, err := collection.InsertOne(ctx, snap); err != nil {
		return fmt.Errorf("failed to archive snapshot for %s: %w", snap.Symbol, err)
	}
	return nil
}

// History returns up to limit snapshots of symbol, newest first
func (a *MongoArchive) History(ctx context.Context, symbol string, limit int64) ([]marketdata.Snapshot, error) {
	collection := a.snapshots()
	if collection == nil {
		return nil, ErrDisabled
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "fetched_at", Value: -1}}).
		SetLimit(limit)
	cursor, err := collection.Find(ctx, bson.M{"symbol": symbol}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to load history for %s: %w", symbol, err)
	}
	defer cursor.Close(ctx)

	snaps := []marketdata.Snapshot{}
	if err := cursor.All(ctx, &snaps); err != nil {
		return nil, fmt.Errorf("failed to decode history for %s: %w", symbol, err)
	}
	return snaps, nil
}

// Close closes the MongoDB connection
func (a *MongoArchive) Close(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.client == nil {
		return nil
	}
	err := a.client.Disconnect(ctx)
	a.client = nil
	a.collection = nil
	return err
}
