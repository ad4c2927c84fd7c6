package state

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/Lumos-Labs-HQ/orgseed/internal/types"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const mongoCollection = "rule_snapshots"

type mongoSnapshot struct {
	Session                      string `bson:"session_id"`
	types.ValidationRuleSnapshot `bson:",inline"`
}

type MongoStore struct {
	client     *mongo.Client
	collection *mongo.Collection
}

func OpenMongo(ctx context.Context, url string) (*MongoStore, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(url))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}
	return &MongoStore{
		client:     client,
		collection: client.Database(mongoDatabaseName(url)).Collection(mongoCollection),
	}, nil
}

// mongoDatabaseName takes the database from the URL path, defaulting to "orgseed".
func mongoDatabaseName(url string) string {
	rest := url
	if idx := strings.Index(rest, "://"); idx >= 0 {
		rest = rest[idx+3:]
	}
	slash := strings.Index(rest, "/")
	if slash < 0 {
		return "orgseed"
	}
	name := rest[slash+1:]
	if idx := strings.Index(name, "?"); idx >= 0 {
		name = name[:idx]
	}
	if name == "" || name == "admin" {
		return "orgseed"
	}
	return name
}

func (m *MongoStore) PutRuleSnapshot(ctx context.Context, session string, snap types.ValidationRuleSnapshot) error {
	filter := bson.M{"session_id": session, "full_name": snap.FullName}
	doc := mongoSnapshot{Session: session, ValidationRuleSnapshot: snap}
	_, err := m.collection.ReplaceOne(ctx, filter, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to persist snapshot %s: %w", snap.FullName, err)
	}
	return nil
}

func (m *MongoStore) DeleteRuleSnapshot(ctx context.Context, session, fullName string) error {
	if _, err := m.collection.DeleteOne(ctx, bson.M{"session_id": session, "full_name": fullName}); err != nil {
		return fmt.Errorf("failed to delete snapshot %s: %w", fullName, err)
	}
	return nil
}

func (m *MongoStore) ListRuleSnapshots(ctx context.Context, session string) ([]types.ValidationRuleSnapshot, error) {
	cursor, err := m.collection.Find(ctx, bson.M{"session_id": session})
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []mongoSnapshot
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode snapshots: %w", err)
	}
	snaps := make([]types.ValidationRuleSnapshot, 0, len(docs))
	for _, doc := range docs {
		snaps = append(snaps, doc.ValidationRuleSnapshot)
	}
	sortSnapshots(snaps)
	return snaps, nil
}

func (m *MongoStore) PendingSessions(ctx context.Context) ([]string, error) {
	values, err := m.collection.Distinct(ctx, "session_id", bson.M{})
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	sessions := make([]string, 0, len(values))
	for _, v := range values {
		if s, ok := v.(string); ok {
			sessions = append(sessions, s)
		}
	}
	sort.Strings(sessions)
	return sessions, nil
}

func (m *MongoStore) Close() error {
	return m.client.Disconnect(context.Background())
}
