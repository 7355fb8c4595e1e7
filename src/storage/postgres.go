package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"portfolio-stream/src/logger"
	"portfolio-stream/src/models"

	_ "github.com/lib/pq"
)

// -----------------------------------------------------------------------------

type PostgresDB struct {
	Config  *models.MConfig
	DB      *sql.DB
	Schema  string
	Logger  *logger.Logger
	dialect dialect
}

// -----------------------------------------------------------------------------

// NewPostgresDB uses storage.schema, or the executable name when unset.
func NewPostgresDB(cfg *models.MConfig, log *logger.Logger) (*PostgresDB, error) {
	schema := cfg.Storage.Schema
	if schema == "" {
		exe, err := os.Executable()
		if err != nil {
			return nil, fmt.Errorf("failed to get executable name: %w", err)
		}
		schema = strings.TrimSuffix(filepath.Base(exe), filepath.Ext(exe))
	}

	return &PostgresDB{
		Config:  cfg,
		Schema:  schema,
		Logger:  log,
		dialect: postgresDialect(schema),
	}, nil
}

func postgresDialect(schema string) dialect {
	return dialect{
		table: func(name string) string {
			return fmt.Sprintf(`"%s"."%s"`, schema, name)
		},
		bind:     rebindDollar,
		realType: "DOUBLE PRECISION",
		intType:  "BIGINT",
	}
}

// rebindDollar turns "?" placeholders into $1, $2, ...
func rebindDollar(query string) string {
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) Initialize() error {
	dsn := d.Config.Storage.DBConnectionString
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return err
	}

	d.DB = db

	// Create Schema
	if _, err := d.DB.Exec(fmt.Sprintf(`CREATE SCHEMA IF NOT EXISTS "%s"`, d.Schema)); err != nil {
		return fmt.Errorf("failed to create schema %s: %w", d.Schema, err)
	}

	if err := createTables(db, d.dialect); err != nil {
		return err
	}

	d.Logger.Info("PostgresDB initialized successfully (Schema: %s)", d.Schema)
	return nil
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) LoadPortfolio(ctx context.Context, userID string) (*models.MPortfolio, error) {
	return loadPortfolio(ctx, d.DB, d.dialect, userID)
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) SavePortfolio(ctx context.Context, p *models.MPortfolio) error {
	return savePortfolio(ctx, d.DB, d.dialect, p)
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) UpsertPortfolio(ctx context.Context, p *models.MPortfolio) error {
	if d.DB == nil {
		return fmt.Errorf("postgres store not initialized")
	}
	return upsertPortfolio(ctx, d.DB, d.dialect, p)
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) Close() error {
	if d.DB != nil {
		return d.DB.Close()
	}
	return nil
}
