// Package strategy содержит торговые стратегии и движок,
// который прогоняет их сигналы через риск-менеджер к исполнению.
package strategy

import (
	"quanthybrid/internal/models"
)

// Действия сигнала
const (
	ActionBuy  = "BUY"
	ActionSell = "SELL"
)

// Signal - торговый сигнал стратегии
type Signal struct {
	Action string `json:"action"`
	Symbol string `json:"symbol"`
	Reason string `json:"reason"`
}

// Strategy - торговая стратегия.
//
// Evaluate принимает историю цен и последнюю котировку инструмента
// и возвращает сигнал либо nil (нет сигнала). Реализация не должна
// хранить ссылки на переданный срез истории.
type Strategy interface {
	Name() string
	Evaluate(prices []float64, tick models.Tick) *Signal

	// TrendStrength возвращает силу тренда по истории цен
	// для передачи в риск-менеджер
	TrendStrength(prices []float64) float64
}
