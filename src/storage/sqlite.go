package storage

import (
	"context"
	"database/sql"
	"fmt"

	"portfolio-stream/src/logger"
	"portfolio-stream/src/models"

	_ "modernc.org/sqlite"
)

var sqliteDialect = dialect{
	table:    func(name string) string { return name },
	bind:     func(query string) string { return query },
	realType: "REAL",
	intType:  "INTEGER",
}

// -----------------------------------------------------------------------------

type AsyncSQLiteDB struct {
	Config *models.MConfig
	DB     *sql.DB
	Logger *logger.Logger
}

// -----------------------------------------------------------------------------

func NewAsyncSQLiteDB(cfg *models.MConfig, log *logger.Logger) (*AsyncSQLiteDB, error) {
	return &AsyncSQLiteDB{
		Config: cfg,
		Logger: log,
	}, nil
}

// -----------------------------------------------------------------------------

func (d *AsyncSQLiteDB) Initialize() error {
	dsn := d.Config.Storage.DBPath

	// Open DB
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return err
	}

	// single writer
	db.SetMaxOpenConns(1)
	d.DB = db

	// PRAGMA optimizations
	if _, err := db.Exec("PRAGMA journal_mode = WAL;"); err != nil {
		d.Logger.Warning("Failed to set WAL mode: %v", err)
	}
	if _, err := db.Exec("PRAGMA synchronous = NORMAL;"); err != nil {
		d.Logger.Warning("Failed to set synchronous mode: %v", err)
	}

	if err := createTables(db, sqliteDialect); err != nil {
		return err
	}

	d.Logger.Info("SQLite portfolio store ready at %s", dsn)
	return nil
}

// -----------------------------------------------------------------------------

func (d *AsyncSQLiteDB) LoadPortfolio(ctx context.Context, userID string) (*models.MPortfolio, error) {
	return loadPortfolio(ctx, d.DB, sqliteDialect, userID)
}

// -----------------------------------------------------------------------------

func (d *AsyncSQLiteDB) SavePortfolio(ctx context.Context, p *models.MPortfolio) error {
	return savePortfolio(ctx, d.DB, sqliteDialect, p)
}

// -----------------------------------------------------------------------------

// UpsertPortfolio seeds or replaces a whole portfolio.
func (d *AsyncSQLiteDB) UpsertPortfolio(ctx context.Context, p *models.MPortfolio) error {
	if d.DB == nil {
		return fmt.Errorf("sqlite store not initialized")
	}
	return upsertPortfolio(ctx, d.DB, sqliteDialect, p)
}

// -----------------------------------------------------------------------------

func (d *AsyncSQLiteDB) Close() error {
	if d.DB != nil {
		return d.DB.Close()
	}
	return nil
}
