package utils

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/joho/godotenv"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// loadTestEnv loads the project .env file and returns MONGO_URI.
func loadTestEnv() string {
	_, filename, _, _ := runtime.Caller(0)
	projectRoot := filepath.Join(filepath.Dir(filename), "..", "..")
	if err := godotenv.Load(filepath.Join(projectRoot, ".env")); err != nil {
		_ = godotenv.Load()
	}
	return os.Getenv("MONGO_URI")
}

// SetupTestDB connects to the MongoDB named by MONGO_URI and drops the given collections.
// The test is skipped when MONGO_URI is not set. The client is disconnected on cleanup.
func SetupTestDB(t *testing.T, dbName string, collections ...string) (*mongo.Client, *mongo.Database) {
	t.Helper()
	uri := loadTestEnv()
	if uri == "" {
		t.Skip("MONGO_URI not set, skipping MongoDB integration test")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	require.NoError(t, err, "Failed to connect to MongoDB")
	t.Cleanup(func() { _ = client.Disconnect(context.Background()) })

	database := client.Database(dbName)
	for _, collection := range collections {
		_ = database.Collection(collection).Drop(context.Background())
	}
	return client, database
}
