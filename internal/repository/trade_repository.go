package repository

import (
	"database/sql"
	"time"

	"quanthybrid/internal/models"
)

// TradeRepository - работа с таблицей trades.
// Записи о сделках неизменяемы после создания
// (кроме поздней атрибуции PNL).
type TradeRepository struct {
	db *sql.DB
}

// NewTradeRepository создает новый экземпляр репозитория
func NewTradeRepository(db *sql.DB) *TradeRepository {
	return &TradeRepository{db: db}
}

// Create создает запись о сделке
func (r *TradeRepository) Create(trade *models.Trade) error {
	query := `
		INSERT INTO trades (order_id, instrument_id, symbol, transaction_type, quantity, price, strategy, portfolio_type, pnl, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id`

	if trade.Timestamp.IsZero() {
		trade.Timestamp = time.Now()
	}

	return r.db.QueryRow(
		query,
		trade.OrderID,
		trade.InstrumentID,
		trade.Symbol,
		trade.TransactionType,
		trade.Quantity,
		trade.Price,
		trade.Strategy,
		trade.PortfolioType,
		trade.PNL,
		trade.Timestamp,
	).Scan(&trade.ID)
}

// UpdatePNL обновляет PNL сделки (поздняя атрибуция)
func (r *TradeRepository) UpdatePNL(id int, pnl float64) error {
	query := `UPDATE trades SET pnl = $1 WHERE id = $2`

	result, err := r.db.Exec(query, pnl, id)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return sql.ErrNoRows
	}

	return nil
}

// GetRecent возвращает последние сделки
func (r *TradeRepository) GetRecent(limit int) ([]*models.Trade, error) {
	query := `
		SELECT id, order_id, instrument_id, symbol, transaction_type, quantity, price, strategy, portfolio_type, pnl, timestamp
		FROM trades
		ORDER BY timestamp DESC
		LIMIT $1`

	rows, err := r.db.Query(query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanTrades(rows)
}

// GetSince возвращает сделки начиная с указанного времени.
// Используется режимом восстановления для оценки win rate
// и монитором безопасности для проверки частоты сделок.
func (r *TradeRepository) GetSince(since time.Time) ([]*models.Trade, error) {
	query := `
		SELECT id, order_id, instrument_id, symbol, transaction_type, quantity, price, strategy, portfolio_type, pnl, timestamp
		FROM trades
		WHERE timestamp >= $1
		ORDER BY timestamp`

	rows, err := r.db.Query(query, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanTrades(rows)
}

// CountSince возвращает количество сделок начиная с указанного времени
func (r *TradeRepository) CountSince(since time.Time) (int, error) {
	query := `SELECT COUNT(*) FROM trades WHERE timestamp >= $1`

	var count int
	if err := r.db.QueryRow(query, since).Scan(&count); err != nil {
		return 0, err
	}

	return count, nil
}

// scanTrades читает строки результата в срез сделок
func scanTrades(rows *sql.Rows) ([]*models.Trade, error) {
	var trades []*models.Trade
	for rows.Next() {
		trade := &models.Trade{}
		err := rows.Scan(
			&trade.ID,
			&trade.OrderID,
			&trade.InstrumentID,
			&trade.Symbol,
			&trade.TransactionType,
			&trade.Quantity,
			&trade.Price,
			&trade.Strategy,
			&trade.PortfolioType,
			&trade.PNL,
			&trade.Timestamp,
		)
		if err != nil {
			return nil, err
		}
		trades = append(trades, trade)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return trades, nil
}
