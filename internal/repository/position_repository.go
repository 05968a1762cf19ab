package repository

import (
	"database/sql"
	"errors"
	"time"

	"quanthybrid/internal/models"
)

// Ошибки репозитория позиций
var (
	ErrPositionNotFound = errors.New("position not found")
)

// PositionRepository - работа с таблицей positions.
// Позиция уникальна по паре (instrument_id, strategy):
// Upsert обновляет существующую запись вместо создания дубликата.
type PositionRepository struct {
	db *sql.DB
}

// NewPositionRepository создает новый экземпляр репозитория
func NewPositionRepository(db *sql.DB) *PositionRepository {
	return &PositionRepository{db: db}
}

// Upsert создает позицию или обновляет существующую
// по ключу (instrument_id, strategy)
func (r *PositionRepository) Upsert(position *models.Position) error {
	query := `
		INSERT INTO positions (instrument_id, symbol, quantity, average_price, current_price, pnl, unrealized_pnl, strategy, portfolio_type, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (instrument_id, strategy) DO UPDATE
		SET quantity = EXCLUDED.quantity,
		    average_price = EXCLUDED.average_price,
		    current_price = EXCLUDED.current_price,
		    pnl = EXCLUDED.pnl,
		    unrealized_pnl = EXCLUDED.unrealized_pnl,
		    timestamp = EXCLUDED.timestamp
		RETURNING id`

	position.Timestamp = time.Now()

	return r.db.QueryRow(
		query,
		position.InstrumentID,
		position.Symbol,
		position.Quantity,
		position.AveragePrice,
		position.CurrentPrice,
		position.PNL,
		position.UnrealizedPNL,
		position.Strategy,
		position.PortfolioType,
		position.Timestamp,
	).Scan(&position.ID)
}

// GetAll возвращает все текущие позиции
func (r *PositionRepository) GetAll() ([]*models.Position, error) {
	query := `
		SELECT id, instrument_id, symbol, quantity, average_price, current_price, pnl, unrealized_pnl, strategy, portfolio_type, timestamp
		FROM positions
		ORDER BY symbol`

	rows, err := r.db.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var positions []*models.Position
	for rows.Next() {
		position := &models.Position{}
		err := rows.Scan(
			&position.ID,
			&position.InstrumentID,
			&position.Symbol,
			&position.Quantity,
			&position.AveragePrice,
			&position.CurrentPrice,
			&position.PNL,
			&position.UnrealizedPNL,
			&position.Strategy,
			&position.PortfolioType,
			&position.Timestamp,
		)
		if err != nil {
			return nil, err
		}
		positions = append(positions, position)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return positions, nil
}

// GetByInstrument возвращает позицию по инструменту и стратегии
func (r *PositionRepository) GetByInstrument(instrumentID, strategy string) (*models.Position, error) {
	query := `
		SELECT id, instrument_id, symbol, quantity, average_price, current_price, pnl, unrealized_pnl, strategy, portfolio_type, timestamp
		FROM positions
		WHERE instrument_id = $1 AND strategy = $2`

	position := &models.Position{}
	err := r.db.QueryRow(query, instrumentID, strategy).Scan(
		&position.ID,
		&position.InstrumentID,
		&position.Symbol,
		&position.Quantity,
		&position.AveragePrice,
		&position.CurrentPrice,
		&position.PNL,
		&position.UnrealizedPNL,
		&position.Strategy,
		&position.PortfolioType,
		&position.Timestamp,
	)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPositionNotFound
		}
		return nil, err
	}

	return position, nil
}

// DeleteFlat удаляет позиции с нулевым количеством
func (r *PositionRepository) DeleteFlat() (int64, error) {
	result, err := r.db.Exec(`DELETE FROM positions WHERE quantity = 0`)
	if err != nil {
		return 0, err
	}

	return result.RowsAffected()
}
