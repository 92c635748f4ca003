// Package connection opens MongoDB connections, optionally through an SSH
// tunnel, and runs units of work against them.
package connection

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/peternagy/mongobrowse/internal/core"
	"github.com/peternagy/mongobrowse/internal/types"
)

// AppName is reported to the server in the connection handshake.
const AppName = "mongobrowse"

// Cursor iterates query results. *mongo.Cursor satisfies it.
type Cursor interface {
	Next(ctx context.Context) bool
	Decode(v interface{}) error
	Err() error
	Close(ctx context.Context) error
}

// Client is the live connection handed to a unit of work.
type Client interface {
	ListDatabaseNames(ctx context.Context) ([]string, error)
	ListCollectionNames(ctx context.Context, database string) ([]string, error)
	Find(ctx context.Context, ns types.Namespace, filter bson.D, opts *options.FindOptions) (Cursor, error)
	Aggregate(ctx context.Context, ns types.Namespace, pipeline []bson.D) (Cursor, error)
	InsertOne(ctx context.Context, ns types.Namespace, doc bson.D) (interface{}, error)
	ReplaceOneUpsert(ctx context.Context, ns types.Namespace, id interface{}, doc bson.D) error
	DeleteOne(ctx context.Context, ns types.Namespace, id interface{}) (int64, error)
	DropCollection(ctx context.Context, ns types.Namespace) error
	DropDatabase(ctx context.Context, database string) error
	RunCommand(ctx context.Context, database string, cmd bson.D) (bson.D, error)
	Disconnect(ctx context.Context) error
}

// DialRequest is what a Dialer needs for one connection. Hosts are either the
// target's own addresses or the loopback end of a tunnel.
type DialRequest struct {
	Target types.ServerTarget
	Hosts  []types.Address
	Direct bool
}

// Dialer opens clients.
type Dialer interface {
	Dial(ctx context.Context, req DialRequest) (Client, error)
}

// MongoDialer opens clients with the official driver.
type MongoDialer struct {
	ConnectTimeout time.Duration
}

// NewMongoDialer creates a dialer using the default connect timeout.
func NewMongoDialer() *MongoDialer {
	return &MongoDialer{ConnectTimeout: core.DefaultConnectTimeout}
}

// ClientOptions translates a dial request into driver options.
func (d *MongoDialer) ClientOptions(req DialRequest) (*options.ClientOptions, error) {
	hosts := make([]string, len(req.Hosts))
	for i, h := range req.Hosts {
		hosts[i] = h.String()
	}

	opts := options.Client().SetHosts(hosts).SetAppName(AppName)
	if d.ConnectTimeout > 0 {
		opts.SetConnectTimeout(d.ConnectTimeout).SetServerSelectionTimeout(d.ConnectTimeout)
	}
	if req.Direct {
		opts.SetDirect(true)
	}

	t := req.Target
	if t.Auth != nil {
		opts.SetAuth(options.Credential{
			Username:      t.Auth.Username,
			Password:      t.Auth.Password,
			AuthSource:    t.Auth.AuthDatabase,
			AuthMechanism: t.Auth.Mechanism,
		})
	}

	if t.TLS {
		tlsConfig := &tls.Config{MinVersion: tls.VersionTLS12}
		// Through a tunnel the driver dials 127.0.0.1, so the certificate is
		// checked against the real server name.
		if req.Direct && len(t.Addresses) > 0 {
			tlsConfig.ServerName = t.Addresses[0].Host
		}
		opts.SetTLSConfig(tlsConfig)
	}

	if t.ReadPreference != "" {
		mode, err := readpref.ModeFromString(string(t.ReadPreference))
		if err != nil {
			return nil, &core.ConfigurationError{Field: "readPreference", Reason: err.Error()}
		}
		rp, err := readpref.New(mode)
		if err != nil {
			return nil, &core.ConfigurationError{Field: "readPreference", Reason: err.Error()}
		}
		opts.SetReadPreference(rp)
	}

	if err := opts.Validate(); err != nil {
		return nil, &core.ConfigurationError{Reason: err.Error()}
	}
	return opts, nil
}

// Dial connects and pings the server. A client that fails the ping is
// disconnected before returning.
func (d *MongoDialer) Dial(ctx context.Context, req DialRequest) (Client, error) {
	opts, err := d.ClientOptions(req)
	if err != nil {
		return nil, err
	}

	ctx, cancel := core.WithTimeout(ctx, d.ConnectTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect: %w", err)
	}

	// Ping with the configured read preference; secondary-only targets
	// would fail a primary ping.
	if err := client.Ping(ctx, opts.ReadPreference); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping: %w", err)
	}
	return &mongoClient{client: client}, nil
}

type mongoClient struct {
	client *mongo.Client
}

func (c *mongoClient) coll(ns types.Namespace) *mongo.Collection {
	return c.client.Database(ns.Database).Collection(ns.Collection)
}

func (c *mongoClient) ListDatabaseNames(ctx context.Context) ([]string, error) {
	return c.client.ListDatabaseNames(ctx, bson.D{})
}

func (c *mongoClient) ListCollectionNames(ctx context.Context, database string) ([]string, error) {
	return c.client.Database(database).ListCollectionNames(ctx, bson.D{})
}

func (c *mongoClient) Find(ctx context.Context, ns types.Namespace, filter bson.D, opts *options.FindOptions) (Cursor, error) {
	cur, err := c.coll(ns).Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	return cur, nil
}

func (c *mongoClient) Aggregate(ctx context.Context, ns types.Namespace, pipeline []bson.D) (Cursor, error) {
	cur, err := c.coll(ns).Aggregate(ctx, mongo.Pipeline(pipeline))
	if err != nil {
		return nil, err
	}
	return cur, nil
}

func (c *mongoClient) InsertOne(ctx context.Context, ns types.Namespace, doc bson.D) (interface{}, error) {
	res, err := c.coll(ns).InsertOne(ctx, doc)
	if err != nil {
		return nil, err
	}
	return res.InsertedID, nil
}

func (c *mongoClient) ReplaceOneUpsert(ctx context.Context, ns types.Namespace, id interface{}, doc bson.D) error {
	_, err := c.coll(ns).ReplaceOne(ctx, bson.D{{Key: "_id", Value: id}}, doc, options.Replace().SetUpsert(true))
	return err
}

func (c *mongoClient) DeleteOne(ctx context.Context, ns types.Namespace, id interface{}) (int64, error) {
	res, err := c.coll(ns).DeleteOne(ctx, bson.D{{Key: "_id", Value: id}})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

func (c *mongoClient) DropCollection(ctx context.Context, ns types.Namespace) error {
	return c.coll(ns).Drop(ctx)
}

func (c *mongoClient) DropDatabase(ctx context.Context, database string) error {
	return c.client.Database(database).Drop(ctx)
}

func (c *mongoClient) RunCommand(ctx context.Context, database string, cmd bson.D) (bson.D, error) {
	var out bson.D
	if err := c.client.Database(database).RunCommand(ctx, cmd).Decode(&out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *mongoClient) Disconnect(ctx context.Context) error {
	return c.client.Disconnect(ctx)
}
