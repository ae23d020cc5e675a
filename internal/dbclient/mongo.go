package dbclient

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// MongoSettings describes the MongoDB deployment used as a cache backend.
type MongoSettings struct {
	// URI is a full mongodb:// or mongodb+srv:// connection string. When
	// empty one is built from Host and Port.
	URI      string
	Host     string
	Port     int
	Username string
	Password string
	Database string
}

// ConnectMongo connects and pings MongoDB, returning the client and the
// database name to use.
func ConnectMongo(ctx context.Context, s MongoSettings, logger zerolog.Logger) (*mongo.Client, string, error) {
	uri := mongoURI(s)
	dbName := s.Database
	if dbName == "" {
		dbName = databaseFromURI(uri)
	}

	logURI := uri
	if s.Password != "" {
		logURI = strings.ReplaceAll(logURI, s.Password, "***")
	}
	logger.Info().Str("uri", logURI).Str("database", dbName).Msg("connecting to mongo")

	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, "", fmt.Errorf("connect mongo: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, "", fmt.Errorf("ping mongo: %w", err)
	}
	return client, dbName, nil
}

func mongoURI(s MongoSettings) string {
	if strings.HasPrefix(s.URI, "mongodb+srv://") || strings.HasPrefix(s.URI, "mongodb://") {
		uri := s.URI
		// Atlas connection strings carry a password placeholder
		if s.Password != "" {
			uri = strings.ReplaceAll(uri, "<password>", s.Password)
			uri = strings.ReplaceAll(uri, "<db_password>", s.Password)
		}
		return uri
	}
	host := pick(s.Host, "localhost")
	port := s.Port
	if port == 0 {
		port = 27017
	}
	if s.Username != "" {
		return fmt.Sprintf("mongodb://%s:%s@%s:%d", s.Username, s.Password, host, port)
	}
	return fmt.Sprintf("mongodb://%s:%d", host, port)
}

// databaseFromURI extracts the path segment of user:pass@host/DB?params,
// falling back to "awful".
func databaseFromURI(uri string) string {
	rest := uri
	for _, prefix := range []string{"mongodb+srv://", "mongodb://"} {
		if strings.HasPrefix(rest, prefix) {
			rest = rest[len(prefix):]
			break
		}
	}
	if at := strings.Index(rest, "@"); at != -1 {
		rest = rest[at+1:]
	}
	if slash := strings.Index(rest, "/"); slash != -1 {
		path := rest[slash+1:]
		if q := strings.Index(path, "?"); q != -1 {
			path = path[:q]
		}
		if path != "" {
			return path
		}
	}
	return "awful"
}
