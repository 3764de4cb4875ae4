package database

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ConnectMongoWithRetry retries ConnectMongo with exponential backoff to
// tolerate startup races against the database container.
func ConnectMongoWithRetry(ctx context.Context, uri string, timeout time.Duration, attempts int) (*mongo.Client, error) {
	backoff := time.Second
	var client *mongo.Client
	var err error
	for i := 1; i <= attempts; i++ {
		client, err = ConnectMongo(ctx, uri, timeout)
		if err == nil {
			return client, nil
		}
		if i < attempts {
			time.Sleep(backoff)
			backoff *= 2
		}
	}
	return nil, fmt.Errorf("after %d attempts: %w", attempts, err)
}

// ConnectMongo opens a connection and returns the client. Caller should call client.Disconnect(ctx).
func ConnectMongo(ctx context.Context, uri string, timeout time.Duration) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	clientOpts := options.Client().ApplyURI(uri)
	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("mongo ping: %w", err)
	}
	return client, nil
}
