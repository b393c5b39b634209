package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5"
	_ "github.com/mattn/go-sqlite3"
)

// PostgresClient holds one pgx connection
type PostgresClient struct {
	conn *pgx.Conn
}

// NewPostgresClient connects and pings
func NewPostgresClient(ctx context.Context, connString string) (*PostgresClient, error) {
	conn, err := pgx.Connect(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := conn.Ping(ctx); err != nil {
		_ = conn.Close(ctx)
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &PostgresClient{conn: conn}, nil
}

// Close closes the connection
func (c *PostgresClient) Close(ctx context.Context) error {
	return c.conn.Close(ctx)
}

// GetConnection returns the underlying connection
func (c *PostgresClient) GetConnection() *pgx.Conn {
	return c.conn
}

// SQLClient holds a database/sql pool; MySQL and SQLite catalogs share it
type SQLClient struct {
	db *sql.DB
}

// NewMySQLClient opens a MySQL pool from a bare DSN
func NewMySQLClient(ctx context.Context, dsn string) (*SQLClient, error) {
	return openSQL(ctx, "mysql", dsn)
}

// NewSQLiteClient opens a SQLite database file
func NewSQLiteClient(ctx context.Context, path string) (*SQLClient, error) {
	return openSQL(ctx, "sqlite3", path)
}

func openSQL(ctx context.Context, driver, dsn string) (*SQLClient, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", driver, err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping %s database: %w", driver, err)
	}
	return &SQLClient{db: db}, nil
}

// Close closes the pool
func (c *SQLClient) Close() error {
	return c.db.Close()
}

// GetDB returns the underlying pool
func (c *SQLClient) GetDB() *sql.DB {
	return c.db
}

// ParseDatabaseName returns the database named in a MySQL DSN
func ParseDatabaseName(dsn string) (string, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return "", fmt.Errorf("invalid MySQL DSN: %w", err)
	}
	if cfg.DBName == "" {
		return "", errors.New("MySQL DSN does not name a database")
	}
	return cfg.DBName, nil
}
