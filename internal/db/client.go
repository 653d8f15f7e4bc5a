// Package db stores bike paths and pipeline runs in SurrealDB over an
// auto-reconnecting WebSocket connection.
package db

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/surrealdb/surrealdb.go"
	"github.com/surrealdb/surrealdb.go/contrib/rews"
	"github.com/surrealdb/surrealdb.go/pkg/connection"
	"github.com/surrealdb/surrealdb.go/pkg/connection/gorillaws"
	"github.com/surrealdb/surrealdb.go/pkg/logger"
	"github.com/surrealdb/surrealdb.go/surrealcbor"
)

func init() {
	// WebSocket upgrades fail when ALPN negotiates HTTP/2.
	gorillaws.DefaultDialer.TLSClientConfig = &tls.Config{
		NextProtos: []string{"http/1.1"},
	}
}

// Config holds SurrealDB connection configuration.
type Config struct {
	URL       string
	Namespace string
	Database  string
	Username  string
	Password  string
	AuthLevel string // "root" or "database"

	// Table holds the bike paths. Defaults to DefaultTable.
	Table string
}

// Client is a SurrealDB session scoped to one namespace, database and
// bike path table.
type Client struct {
	conn   *rews.Connection[*gorillaws.Connection]
	db     *surrealdb.DB
	table  string
	logger logger.Logger
}

// NewClient connects, signs in and selects the namespace and database.
// Connection failures wrap ErrConnection.
func NewClient(ctx context.Context, cfg Config, log *slog.Logger) (*Client, error) {
	table := cfg.Table
	if table == "" {
		table = DefaultTable
	}
	if !validTableName(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}

	if log == nil {
		log = slog.Default()
	}
	sdkLogger := logger.New(log.Handler())

	conn := dial(cfg.URL, sdkLogger)
	sdkLogger.Info("connecting to SurrealDB", "url", cfg.URL, "table", table)
	if err := conn.Connect(ctx); err != nil {
		return nil, fmt.Errorf("%w: connect: %w", ErrConnection, err)
	}

	db, err := surrealdb.FromConnection(ctx, conn)
	if err != nil {
		_ = conn.Close(ctx)
		return nil, fmt.Errorf("%w: from connection: %w", ErrConnection, err)
	}

	if err := signIn(ctx, db, cfg); err != nil {
		_ = conn.Close(ctx)
		return nil, fmt.Errorf("signin as %s: %w", cfg.Username, err)
	}
	if err := db.Use(ctx, cfg.Namespace, cfg.Database); err != nil {
		_ = conn.Close(ctx)
		return nil, fmt.Errorf("use %s/%s: %w", cfg.Namespace, cfg.Database, err)
	}

	sdkLogger.Info("SurrealDB ready", "namespace", cfg.Namespace, "database", cfg.Database)
	return &Client{conn: conn, db: db, table: table, logger: sdkLogger}, nil
}

// dial builds a reconnecting connection. gorillaws appends /rpc itself.
func dial(url string, sdkLogger logger.Logger) *rews.Connection[*gorillaws.Connection] {
	baseURL := strings.TrimSuffix(url, "/rpc")
	codec := surrealcbor.New()

	conn := rews.New(
		func(ctx context.Context) (*gorillaws.Connection, error) {
			return gorillaws.New(&connection.Config{
				BaseURL:     baseURL,
				Marshaler:   codec,
				Unmarshaler: codec,
				Logger:      sdkLogger,
			}), nil
		},
		5*time.Second,
		codec,
		sdkLogger,
	)

	retryer := rews.NewExponentialBackoffRetryer()
	retryer.InitialDelay = time.Second
	retryer.MaxDelay = 30 * time.Second
	retryer.Multiplier = 2.0
	retryer.MaxRetries = 10
	conn.Retryer = retryer
	return conn
}

func signIn(ctx context.Context, db *surrealdb.DB, cfg Config) error {
	auth := surrealdb.Auth{Username: cfg.Username, Password: cfg.Password}
	if cfg.AuthLevel == "database" {
		auth.Namespace = cfg.Namespace
		auth.Database = cfg.Database
	}
	_, err := db.SignIn(ctx, auth)
	return err
}

// Close closes the SurrealDB connection.
func (c *Client) Close(ctx context.Context) error {
	c.logger.Info("closing SurrealDB connection")
	return c.conn.Close(ctx)
}

// Ping checks that the database answers queries.
func (c *Client) Ping(ctx context.Context) error {
	if _, err := surrealdb.Query[any](ctx, c.db, "RETURN 1", nil); err != nil {
		return fmt.Errorf("ping: %w", wrapQueryError(err))
	}
	return nil
}

// InitSchema defines tables, fields and indexes. Every statement is
// IF NOT EXISTS, so it is safe to run on each start.
func (c *Client) InitSchema(ctx context.Context) error {
	if _, err := surrealdb.Query[any](ctx, c.db, SchemaSQL(c.table), nil); err != nil {
		return fmt.Errorf("init schema: %w", wrapQueryError(err))
	}
	c.logger.Info("schema ready", "table", c.table)
	return nil
}

// EnsureIndexes makes sure the uniqueness and geospatial indexes exist
// before any bike path is written.
func (c *Client) EnsureIndexes(ctx context.Context) error {
	return c.InitSchema(ctx)
}

// WipeData deletes bike paths, the snapshot and run history, keeping the
// schema. Tests only.
func (c *Client) WipeData(ctx context.Context) error {
	for _, table := range []string{c.table, snapshotTable(c.table), RunTable} {
		if _, err := surrealdb.Query[any](ctx, c.db, "DELETE type::table($table)", map[string]any{"table": table}); err != nil {
			return fmt.Errorf("delete %s: %w", table, err)
		}
	}
	c.logger.Warn("wiped bike path data", "table", c.table)
	return nil
}
