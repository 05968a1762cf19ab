package repository

import (
	"database/sql"
	"errors"
	"strings"
	"time"

	"quanthybrid/internal/models"
)

// Ошибки репозитория ордеров
var (
	ErrOrderNotFound  = errors.New("order not found")
	ErrDuplicateOrder = errors.New("order with this broker id already exists")
)

// OrderRepository - работа с таблицей orders
type OrderRepository struct {
	db *sql.DB
}

// NewOrderRepository создает новый экземпляр репозитория
func NewOrderRepository(db *sql.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

// Create создает запись об ордере.
// Возвращает ErrDuplicateOrder при повторном broker_order_id
// (уникальный индекс в БД).
func (r *OrderRepository) Create(order *models.Order) error {
	query := `
		INSERT INTO orders (broker_order_id, instrument_id, symbol, side, order_type, quantity, price, trigger_price, status, strategy, portfolio_type, error_message, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING id`

	order.CreatedAt = time.Now()
	order.UpdatedAt = order.CreatedAt

	err := r.db.QueryRow(
		query,
		order.BrokerOrderID,
		order.InstrumentID,
		order.Symbol,
		order.Side,
		order.OrderType,
		order.Quantity,
		order.Price,
		order.TriggerPrice,
		order.Status,
		order.Strategy,
		order.PortfolioType,
		order.ErrorMessage,
		order.CreatedAt,
		order.UpdatedAt,
	).Scan(&order.ID)

	if err != nil {
		if isDuplicateKeyError(err) {
			return ErrDuplicateOrder
		}
		return err
	}

	return nil
}

// GetByBrokerOrderID возвращает ордер по идентификатору брокера
func (r *OrderRepository) GetByBrokerOrderID(brokerOrderID string) (*models.Order, error) {
	query := `
		SELECT id, broker_order_id, instrument_id, symbol, side, order_type, quantity, price, trigger_price, status, strategy, portfolio_type, error_message, created_at, updated_at, executed_at
		FROM orders
		WHERE broker_order_id = $1`

	order := &models.Order{}
	err := r.db.QueryRow(query, brokerOrderID).Scan(
		&order.ID,
		&order.BrokerOrderID,
		&order.InstrumentID,
		&order.Symbol,
		&order.Side,
		&order.OrderType,
		&order.Quantity,
		&order.Price,
		&order.TriggerPrice,
		&order.Status,
		&order.Strategy,
		&order.PortfolioType,
		&order.ErrorMessage,
		&order.CreatedAt,
		&order.UpdatedAt,
		&order.ExecutedAt,
	)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}

	return order, nil
}

// UpdateStatus обновляет статус ордера
func (r *OrderRepository) UpdateStatus(brokerOrderID, status string) error {
	query := `
		UPDATE orders
		SET status = $1, updated_at = $2
		WHERE broker_order_id = $3`

	result, err := r.db.Exec(query, status, time.Now(), brokerOrderID)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrOrderNotFound
	}

	return nil
}

// MarkExecuted переводит ордер в EXECUTED и фиксирует время исполнения
func (r *OrderRepository) MarkExecuted(brokerOrderID string, executedAt time.Time) error {
	query := `
		UPDATE orders
		SET status = $1, executed_at = $2, updated_at = $3
		WHERE broker_order_id = $4`

	result, err := r.db.Exec(query, models.OrderStatusExecuted, executedAt, time.Now(), brokerOrderID)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrOrderNotFound
	}

	return nil
}

// GetActive возвращает ордера в нефинальных статусах
// (PENDING, PLACED, MODIFIED). Используется при восстановлении
// после перезапуска для сверки с книгой ордеров брокера.
func (r *OrderRepository) GetActive() ([]*models.Order, error) {
	query := `
		SELECT id, broker_order_id, instrument_id, symbol, side, order_type, quantity, price, trigger_price, status, strategy, portfolio_type, error_message, created_at, updated_at, executed_at
		FROM orders
		WHERE status IN ($1, $2, $3)
		ORDER BY created_at`

	rows, err := r.db.Query(query, models.OrderStatusPending, models.OrderStatusPlaced, models.OrderStatusModified)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanOrders(rows)
}

// GetRecent возвращает последние ордера
func (r *OrderRepository) GetRecent(limit int) ([]*models.Order, error) {
	query := `
		SELECT id, broker_order_id, instrument_id, symbol, side, order_type, quantity, price, trigger_price, status, strategy, portfolio_type, error_message, created_at, updated_at, executed_at
		FROM orders
		ORDER BY created_at DESC
		LIMIT $1`

	rows, err := r.db.Query(query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanOrders(rows)
}

// CountSince возвращает количество ордеров по символу начиная с указанного времени.
// Используется монитором безопасности для проверки частоты ордеров.
func (r *OrderRepository) CountSince(symbol string, since time.Time) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM orders
		WHERE symbol = $1 AND created_at >= $2`

	var count int
	if err := r.db.QueryRow(query, symbol, since).Scan(&count); err != nil {
		return 0, err
	}

	return count, nil
}

// scanOrders читает строки результата в срез ордеров
func scanOrders(rows *sql.Rows) ([]*models.Order, error) {
	var orders []*models.Order
	for rows.Next() {
		order := &models.Order{}
		err := rows.Scan(
			&order.ID,
			&order.BrokerOrderID,
			&order.InstrumentID,
			&order.Symbol,
			&order.Side,
			&order.OrderType,
			&order.Quantity,
			&order.Price,
			&order.TriggerPrice,
			&order.Status,
			&order.Strategy,
			&order.PortfolioType,
			&order.ErrorMessage,
			&order.CreatedAt,
			&order.UpdatedAt,
			&order.ExecutedAt,
		)
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return orders, nil
}

// isDuplicateKeyError проверяет ошибку нарушения уникальности
// (PostgreSQL код 23505)
func isDuplicateKeyError(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "duplicate key") || strings.Contains(errStr, "23505")
}
