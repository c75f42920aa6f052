package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mattn/go-sqlite3"

	"equityTriggerBot/internal/domain"
	"equityTriggerBot/internal/ports"
)

// Repository implements ports.OrderRepository and ports.TradeRepository on
// SQLite. It is an append-only audit store: the venue's in-memory books stay
// authoritative during the session, the database is what survives a restart.
type Repository struct {
	db     *sql.DB
	logger ports.Logger
}

// Config holds configuration for the SQLite repository.
type Config struct {
	DBPath string
	Logger ports.Logger
}

// NewRepository opens (or creates) the audit database and ensures its schema.
func NewRepository(cfg Config) (*Repository, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for SQLite repository")
	}
	dbPath := cfg.DBPath
	if dbPath == "" {
		dbPath = "./data/trigger_bot.db"
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		err = fmt.Errorf("failed to create data directory '%s': %w", filepath.Dir(dbPath), err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	// WAL mode for better concurrency between the resolution goroutines and
	// status reads.
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		err = fmt.Errorf("failed to open database at '%s': %w", dbPath, err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		err = fmt.Errorf("failed to ping database at '%s': %w", dbPath, err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	// The Go driver benefits from a single connection; SQLite serializes
	// writers anyway.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	repo := &Repository{db: db, logger: cfg.Logger}
	if err := repo.initializeSchema(context.Background()); err != nil {
		db.Close()
		err = fmt.Errorf("failed to initialize database schema: %w", err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	cfg.Logger.Info(context.Background(), "SQLite audit store ready", map[string]interface{}{"path": dbPath})
	return repo, nil
}

// initializeSchema creates tables if they don't exist.
func (r *Repository) initializeSchema(ctx context.Context) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS orders (
		id TEXT PRIMARY KEY,
		symbol TEXT NOT NULL,
		exchange TEXT NOT NULL,
		side TEXT NOT NULL,
		order_type TEXT NOT NULL,
		quantity INTEGER NOT NULL,
		status TEXT NOT NULL,
		fill_price REAL NOT NULL DEFAULT 0,
		placed_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	);

	CREATE TABLE IF NOT EXISTS trades (
		id TEXT PRIMARY KEY,
		order_id TEXT NOT NULL,
		symbol TEXT NOT NULL,
		exchange TEXT NOT NULL,
		side TEXT NOT NULL,
		quantity INTEGER NOT NULL,
		price REAL NOT NULL,
		executed_at TIMESTAMP NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_orders_symbol_placed_at ON orders (symbol, exchange, placed_at);
	CREATE INDEX IF NOT EXISTS idx_trades_symbol_executed_at ON trades (symbol, exchange, executed_at);
	CREATE INDEX IF NOT EXISTS idx_trades_order_id ON trades (order_id);
	`
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to execute schema initialization: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (r *Repository) Close() error {
	if r.db != nil {
		r.logger.Info(context.Background(), "Closing SQLite database connection")
		return r.db.Close()
	}
	return nil
}

// --- OrderRepository Implementation ---

// RecordOrder saves an order in its terminal state. Recording the same order
// id twice returns ErrDuplicateEntry via the primary key.
func (r *Repository) RecordOrder(ctx context.Context, order *domain.Order) error {
	const query = `
	INSERT INTO orders (id, symbol, exchange, side, order_type, quantity, status, fill_price, placed_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query,
		order.ID, order.Instrument.Symbol, order.Instrument.Exchange, order.Side, order.Type,
		order.Quantity, order.Status, order.FillPrice, order.PlacedAt, order.UpdatedAt)
	if err != nil {
		if isConstraintErr(err) {
			return fmt.Errorf("order %s: %w", order.ID, ports.ErrDuplicateEntry)
		}
		return fmt.Errorf("failed to insert order %s: %w", order.ID, err)
	}
	r.logger.Debug(ctx, "Order recorded", map[string]interface{}{"orderID": order.ID, "status": order.Status})
	return nil
}

// FindOrdersByInstrument retrieves the most recent orders for an instrument,
// up to a limit.
func (r *Repository) FindOrdersByInstrument(ctx context.Context, key domain.InstrumentKey, limit int) ([]*domain.Order, error) {
	const query = `
	SELECT id, symbol, exchange, side, order_type, quantity, status, fill_price, placed_at, updated_at
	FROM orders
	WHERE symbol = ? AND exchange = ? ORDER BY placed_at DESC LIMIT ?`

	rows, err := r.db.QueryContext(ctx, query, key.Symbol, key.Exchange, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query orders for %s: %w", key, err)
	}
	defer rows.Close()

	orders := make([]*domain.Order, 0)
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order row: %w", err)
		}
		orders = append(orders, order)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating order rows: %w", err)
	}
	return orders, nil
}

// --- TradeRepository Implementation ---

// RecordTrade saves a trade record.
func (r *Repository) RecordTrade(ctx context.Context, trade *domain.Trade) error {
	const query = `
	INSERT INTO trades (id, order_id, symbol, exchange, side, quantity, price, executed_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query,
		trade.ID, trade.OrderID, trade.Instrument.Symbol, trade.Instrument.Exchange,
		trade.Side, trade.Quantity, trade.Price, trade.ExecutedAt)
	if err != nil {
		if isConstraintErr(err) {
			return fmt.Errorf("trade %s: %w", trade.ID, ports.ErrDuplicateEntry)
		}
		return fmt.Errorf("failed to insert trade %s: %w", trade.ID, err)
	}
	r.logger.Debug(ctx, "Trade recorded", map[string]interface{}{"tradeID": trade.ID, "orderID": trade.OrderID})
	return nil
}

// FindTradesByInstrument retrieves the most recent trades for an instrument,
// up to a limit.
func (r *Repository) FindTradesByInstrument(ctx context.Context, key domain.InstrumentKey, limit int) ([]*domain.Trade, error) {
	const query = `
	SELECT id, order_id, symbol, exchange, side, quantity, price, executed_at
	FROM trades
	WHERE symbol = ? AND exchange = ? ORDER BY executed_at DESC LIMIT ?`

	rows, err := r.db.QueryContext(ctx, query, key.Symbol, key.Exchange, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query trades for %s: %w", key, err)
	}
	defer rows.Close()

	trades := make([]*domain.Trade, 0)
	for rows.Next() {
		trade, err := scanTrade(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan trade row: %w", err)
		}
		trades = append(trades, trade)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating trade rows: %w", err)
	}
	return trades, nil
}

// CountTradesToday counts trades executed today across all instruments.
func (r *Repository) CountTradesToday(ctx context.Context) (int, error) {
	const query = `SELECT COUNT(*) FROM trades WHERE date(executed_at) = date('now', 'localtime')`
	var count int
	if err := r.db.QueryRowContext(ctx, query).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count today's trades: %w", err)
	}
	return count, nil
}

// --- Helper Scan Functions ---

// isConstraintErr reports whether the driver rejected the write for a
// primary key or unique constraint violation.
func isConstraintErr(err error) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint
}

// scanner defines an interface compatible with *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanOrder(s scanner) (*domain.Order, error) {
	o := &domain.Order{}
	var side, orderType, status string
	err := s.Scan(
		&o.ID, &o.Instrument.Symbol, &o.Instrument.Exchange, &side, &orderType,
		&o.Quantity, &status, &o.FillPrice, &o.PlacedAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}
	o.Side = domain.OrderSide(side)
	o.Type = domain.OrderType(orderType)
	o.Status = domain.OrderStatus(status)
	return o, nil
}

func scanTrade(s scanner) (*domain.Trade, error) {
	tr := &domain.Trade{}
	var side string
	err := s.Scan(
		&tr.ID, &tr.OrderID, &tr.Instrument.Symbol, &tr.Instrument.Exchange,
		&side, &tr.Quantity, &tr.Price, &tr.ExecutedAt)
	if err != nil {
		return nil, err
	}
	tr.Side = domain.OrderSide(side)
	return tr, nil
}
