package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func ConnectMongoDB(ctx context.Context, uri, database string) (*mongo.Database, error) {
	clientOpts := options.Client().
		ApplyURI(uri).
		SetConnectTimeout(10 * time.Second).
		SetServerSelectionTimeout(5 * time.Second).
		SetMaxPoolSize(10)

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	return client.Database(database), nil
}

func ConnectRedis(ctx context.Context, addr, password string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           0,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}
	return client, nil
}

type Backend string

const (
	BackendSQLite Backend = "sqlite"
	BackendRedis  Backend = "redis"
	BackendMongo  Backend = "mongo"
)

type Options struct {
	Backend          Backend
	Key              string
	SQLitePath       string
	SQLiteMigrations string
	RedisAddr        string
	RedisPassword    string
	MongoURI         string
	MongoDBName      string
}

// Open connects the configured backend and returns it ready for use.
func Open(ctx context.Context, opts Options) (SnapshotStore, error) {
	switch opts.Backend {
	case BackendSQLite, "":
		store, err := NewSQLiteStore(opts.SQLitePath, opts.Key)
		if err != nil {
			return nil, err
		}
		if err := store.RunMigrations(opts.SQLiteMigrations); err != nil {
			_ = store.Close()
			return nil, err
		}
		return store, nil
	case BackendRedis:
		client, err := ConnectRedis(ctx, opts.RedisAddr, opts.RedisPassword)
		if err != nil {
			return nil, err
		}
		return NewRedisStore(client, opts.Key), nil
	case BackendMongo:
		db, err := ConnectMongoDB(ctx, opts.MongoURI, opts.MongoDBName)
		if err != nil {
			return nil, err
		}
		return NewMongoStore(db, opts.Key), nil
	default:
		return nil, fmt.Errorf("unknown cart store backend %q", opts.Backend)
	}
}
