package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"synth-market/models"
)

// PostgresPriceGuide keeps known used-price ranges per instrument in
// PostgreSQL. It is an offline alternative to the marketplace price guide.
type PostgresPriceGuide struct {
	db *sql.DB
}

// NewPostgresPriceGuide opens a connection to PostgreSQL, runs schema
// migrations, and returns a ready-to-use PostgresPriceGuide.
func NewPostgresPriceGuide(ctx context.Context, dsn string) (*PostgresPriceGuide, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}

	for i := 0; i < 10; i++ {
		if err = db.PingContext(ctx); err == nil {
			break
		}
		select {
		case <-ctx.Done():
			_ = db.Close()
			return nil, fmt.Errorf("postgres: ping: %w", ctx.Err())
		case <-time.After(2 * time.Second):
		}
	}
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres: ping failed after retries: %w", err)
	}

	pg := &PostgresPriceGuide{db: db}
	if err := pg.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres: migrate: %w", err)
	}
	return pg, nil
}

func (pg *PostgresPriceGuide) migrate(ctx context.Context) error {
	_, err := pg.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS price_guide (
			query       TEXT          PRIMARY KEY,
			price_low   NUMERIC(12,2) NOT NULL DEFAULT 0,
			price_high  NUMERIC(12,2) NOT NULL DEFAULT 0,
			currency    CHAR(3)       NOT NULL DEFAULT 'EUR',
			updated_at  TIMESTAMPTZ   NOT NULL DEFAULT NOW()
		);
	`)
	return err
}

// PriceGuideKey normalises a "brand model" query into the table key.
func PriceGuideKey(query string) string {
	return strings.Join(strings.Fields(strings.ToLower(query)), " ")
}

// GetPriceGuide returns the stored range for query, or nil when the
// instrument is unknown.
func (pg *PostgresPriceGuide) GetPriceGuide(ctx context.Context, query string) (*models.PriceGuideEntry, error) {
	entry := &models.PriceGuideEntry{}
	err := pg.db.QueryRowContext(ctx, `
		SELECT price_low, price_high, currency
		FROM price_guide
		WHERE query = $1
	`, PriceGuideKey(query)).Scan(&entry.Min, &entry.Max, &entry.Currency)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: lookup %q: %w", query, err)
	}
	entry.Currency = strings.TrimSpace(entry.Currency)
	return entry, nil
}

// Save upserts the range for query. Used to seed the table from
// aggregated listing metrics.
func (pg *PostgresPriceGuide) Save(ctx context.Context, query string, entry models.PriceGuideEntry) error {
	_, err := pg.db.ExecContext(ctx, `
		INSERT INTO price_guide (query, price_low, price_high, currency, updated_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (query) DO UPDATE
		SET price_low = EXCLUDED.price_low,
		    price_high = EXCLUDED.price_high,
		    currency = EXCLUDED.currency,
		    updated_at = NOW()
	`, PriceGuideKey(query), entry.Min, entry.Max, entry.Currency)
	if err != nil {
		return fmt.Errorf("postgres: save %q: %w", query, err)
	}
	return nil
}

func (pg *PostgresPriceGuide) Close() error {
	return pg.db.Close()
}
