package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"portfolio-stream/src/helpers"
	"portfolio-stream/src/models"
)

// dialect holds the few spots where SQLite and Postgres SQL differ.
type dialect struct {
	// table returns the (possibly schema-qualified) name of a table.
	table func(name string) string
	// bind rewrites "?" placeholders into the driver's syntax.
	bind     func(query string) string
	realType string
	intType  string
}

func (d dialect) q(format string, tables ...any) string {
	return d.bind(fmt.Sprintf(format, tables...))
}

// -----------------------------------------------------------------------------

func (d dialect) schemaStatements() []string {
	return []string{
		fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				user_id TEXT PRIMARY KEY,
				name TEXT NOT NULL DEFAULT '',
				currency TEXT NOT NULL DEFAULT 'USD',
				total_value %s NOT NULL DEFAULT 0,
				initial_investment %s NOT NULL DEFAULT 0,
				total_return %s NOT NULL DEFAULT 0,
				last_updated %s NOT NULL DEFAULT 0
			);
		`, d.table("portfolios"), d.realType, d.realType, d.realType, d.intType),
		fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				user_id TEXT NOT NULL,
				symbol TEXT NOT NULL,
				name TEXT NOT NULL DEFAULT '',
				asset_type TEXT NOT NULL DEFAULT '',
				quantity %s NOT NULL DEFAULT 0,
				purchase_price %s NOT NULL DEFAULT 0,
				current_price %s NOT NULL DEFAULT 0,
				PRIMARY KEY (user_id, symbol)
			);
		`, d.table("holdings"), d.realType, d.realType, d.realType),
	}
}

func createTables(db *sql.DB, d dialect) error {
	for _, stmt := range d.schemaStatements() {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to create tables: %w", err)
		}
	}
	return nil
}

// -----------------------------------------------------------------------------

func loadPortfolio(ctx context.Context, db *sql.DB, d dialect, userID string) (*models.MPortfolio, error) {
	p := &models.MPortfolio{UserID: userID}
	var lastUpdated int64

	row := db.QueryRowContext(ctx, d.q(`
		SELECT name, currency, total_value, initial_investment, total_return, last_updated
		FROM %s WHERE user_id = ?
	`, d.table("portfolios")), userID)
	err := row.Scan(&p.Name, &p.Currency, &p.TotalValue, &p.InitialInvestment, &p.TotalReturn, &lastUpdated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, helpers.NewStorageError("load portfolio for "+userID, helpers.ErrPortfolioNotFound)
	}
	if err != nil {
		return nil, helpers.NewStorageError("load portfolio for "+userID, err)
	}
	if lastUpdated > 0 {
		p.LastUpdated = time.UnixMilli(lastUpdated).UTC()
	}

	rows, err := db.QueryContext(ctx, d.q(`
		SELECT symbol, name, asset_type, quantity, purchase_price, current_price
		FROM %s WHERE user_id = ? ORDER BY symbol
	`, d.table("holdings")), userID)
	if err != nil {
		return nil, helpers.NewStorageError("load holdings for "+userID, err)
	}
	defer rows.Close()

	for rows.Next() {
		var h models.MHolding
		if err := rows.Scan(&h.Symbol, &h.Name, &h.AssetType, &h.Quantity, &h.PurchasePrice, &h.CurrentPrice); err != nil {
			return nil, helpers.NewStorageError("scan holding for "+userID, err)
		}
		p.Holdings = append(p.Holdings, h)
	}
	if err := rows.Err(); err != nil {
		return nil, helpers.NewStorageError("load holdings for "+userID, err)
	}

	return p, nil
}

// -----------------------------------------------------------------------------

// savePortfolio writes recomputed totals and refreshed holding prices. The
// portfolio must already exist.
func savePortfolio(ctx context.Context, db *sql.DB, d dialect, p *models.MPortfolio) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return helpers.NewStorageError("begin save", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, d.q(`
		UPDATE %s SET total_value = ?, initial_investment = ?, total_return = ?, last_updated = ?
		WHERE user_id = ?
	`, d.table("portfolios")), p.TotalValue, p.InitialInvestment, p.TotalReturn, p.LastUpdated.UnixMilli(), p.UserID)
	if err != nil {
		return helpers.NewStorageError("save portfolio for "+p.UserID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return helpers.NewStorageError("save portfolio for "+p.UserID, helpers.ErrPortfolioNotFound)
	}

	stmt, err := tx.PrepareContext(ctx, d.q(`
		UPDATE %s SET current_price = ? WHERE user_id = ? AND symbol = ?
	`, d.table("holdings")))
	if err != nil {
		return helpers.NewStorageError("prepare holding update", err)
	}
	defer stmt.Close()

	for _, h := range p.Holdings {
		if _, err := stmt.ExecContext(ctx, h.CurrentPrice, p.UserID, h.Symbol); err != nil {
			return helpers.NewStorageError("save holding "+h.Symbol, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return helpers.NewStorageError("commit save", err)
	}
	return nil
}

// -----------------------------------------------------------------------------

// upsertPortfolio creates or fully replaces a portfolio and its holdings.
func upsertPortfolio(ctx context.Context, db *sql.DB, d dialect, p *models.MPortfolio) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return helpers.NewStorageError("begin upsert", err)
	}
	defer tx.Rollback()

	currency := p.Currency
	if currency == "" {
		currency = "USD"
	}

	_, err = tx.ExecContext(ctx, d.q(`
		INSERT INTO %s (user_id, name, currency, total_value, initial_investment, total_return, last_updated)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id) DO UPDATE SET
			name = excluded.name,
			currency = excluded.currency,
			total_value = excluded.total_value,
			initial_investment = excluded.initial_investment,
			total_return = excluded.total_return,
			last_updated = excluded.last_updated
	`, d.table("portfolios")), p.UserID, p.Name, currency, p.TotalValue, p.InitialInvestment, p.TotalReturn, p.LastUpdated.UnixMilli())
	if err != nil {
		return helpers.NewStorageError("upsert portfolio for "+p.UserID, err)
	}

	if _, err := tx.ExecContext(ctx, d.q(`DELETE FROM %s WHERE user_id = ?`, d.table("holdings")), p.UserID); err != nil {
		return helpers.NewStorageError("clear holdings for "+p.UserID, err)
	}

	stmt, err := tx.PrepareContext(ctx, d.q(`
		INSERT INTO %s (user_id, symbol, name, asset_type, quantity, purchase_price, current_price)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, d.table("holdings")))
	if err != nil {
		return helpers.NewStorageError("prepare holding insert", err)
	}
	defer stmt.Close()

	for _, h := range p.Holdings {
		symbol := strings.ToUpper(strings.TrimSpace(h.Symbol))
		if _, err := stmt.ExecContext(ctx, p.UserID, symbol, h.Name, h.AssetType, h.Quantity, h.PurchasePrice, h.CurrentPrice); err != nil {
			return helpers.NewStorageError("insert holding "+symbol, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return helpers.NewStorageError("commit upsert", err)
	}
	return nil
}
