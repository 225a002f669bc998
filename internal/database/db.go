package database

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/iliyamo/it-helpdesk/internal/config"
)

// DB is a connection pool tagged with the SQL dialect it speaks.
// Repositories write queries with ? placeholders and pass them through
// Rebind before executing.
type DB struct {
	*sql.DB
	Dialect Dialect
}

// Open connects to the database selected by cfg.DBDriver and verifies the
// connection.
func Open(cfg config.Config) (*DB, error) {
	switch cfg.DBDriver {
	case "postgres":
		return openPostgres(cfg)
	case "mysql":
		return openMySQL(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	case "sqlite":
		return OpenSQLite(context.Background(), cfg.DBPath)
	}
	return nil, fmt.Errorf("unsupported driver %q", cfg.DBDriver)
}

func openPostgres(cfg config.Config) (*DB, error) {
	u := url.URL{
		Scheme:   "postgres",
		Host:     cfg.DBHost + ":" + cfg.DBPort,
		Path:     "/" + cfg.DBName,
		RawQuery: "sslmode=" + url.QueryEscape(cfg.DBSSLMode),
	}
	if cfg.DBPass != "" {
		u.User = url.UserPassword(cfg.DBUser, cfg.DBPass)
	} else {
		u.User = url.User(cfg.DBUser)
	}
	db, err := sql.Open("postgres", u.String())
	if err != nil {
		return nil, err
	}
	return finish(db, Postgres)
}

func openMySQL(user, pass, host, port, name string) (*DB, error) {
	auth := user
	if pass != "" {
		auth = fmt.Sprintf("%s:%s", user, pass)
	}
	// parseTime=true -> DATETIME -> time.Time | loc=UTC keeps times consistent
	dsn := fmt.Sprintf("%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=true&loc=UTC&clientFoundRows=true",
		auth, host, port, name)

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, err
	}
	return finish(db, MySQL)
}

// OpenSQLite opens (creating if needed) a SQLite file.  Writers take the
// database lock at BEGIN so concurrent transactions queue on busy_timeout
// instead of failing on upgrade.
func OpenSQLite(ctx context.Context, path string) (*DB, error) {
	dsn := "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)&_txlock=immediate&_time_format=sqlite"
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping db: %w", err)
	}
	return &DB{DB: conn, Dialect: SQLite}, nil
}

func finish(db *sql.DB, d Dialect) (*DB, error) {
	// Pool settings
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(30 * time.Minute)

	// Ping with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return &DB{DB: db, Dialect: d}, nil
}

// Rebind is shorthand for d.Dialect.Rebind.
func (d *DB) Rebind(query string) string { return d.Dialect.Rebind(query) }
