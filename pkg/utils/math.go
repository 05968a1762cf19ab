package utils

import (
	"math"
)

// math.go - математические утилиты для торговых расчётов
//
// Назначение:
// Вспомогательные математические функции для риск-менеджмента и исполнения.
// Все функции являются чистыми (pure functions) без побочных эффектов.
//
// Функции:
// - CalculatePNL: прибыль/убыток по позиции
// - CalculateExposure: нотиональная экспозиция позиции
// - WinRate: доля прибыльных сделок
// - CalculateSpreadPercent: ширина спреда bid/ask в процентах
// - FloorToInt: безопасное округление размера позиции вниз

// CalculatePNL расчитывает прибыль/убыток по позиции.
//
// Формулы:
//   - BUY  PNL = (P_текущая - P_средняя) × qty
//   - SELL PNL = (P_средняя - P_текущая) × qty
//
// Параметры:
//   - side: "BUY" или "SELL"
//   - avgPrice: средняя цена входа
//   - currentPrice: текущая цена
//   - quantity: объём позиции (штук/лотов)
//
// Возвращает:
//   - PNL в валюте котировки
func CalculatePNL(side string, avgPrice, currentPrice float64, quantity int) float64 {
	if quantity <= 0 {
		return 0
	}

	switch side {
	case "BUY":
		// Лонг: прибыль если цена выросла
		return (currentPrice - avgPrice) * float64(quantity)
	case "SELL":
		// Шорт: прибыль если цена упала
		return (avgPrice - currentPrice) * float64(quantity)
	default:
		return 0
	}
}

// CalculateExposure возвращает абсолютную нотиональную экспозицию позиции.
//
// Формула: |quantity × avgPrice|
//
// Знак количества не важен - экспозиция всегда неотрицательна.
func CalculateExposure(quantity int, avgPrice float64) float64 {
	return math.Abs(float64(quantity) * avgPrice)
}

// WinRate возвращает долю прибыльных сделок в выборке.
//
// Параметры:
//   - pnls: PNL каждой сделки
//
// Возвращает:
//   - Долю в диапазоне [0, 1]; 0 при пустой выборке
func WinRate(pnls []float64) float64 {
	if len(pnls) == 0 {
		return 0
	}

	wins := 0
	for _, pnl := range pnls {
		if pnl > 0 {
			wins++
		}
	}
	return float64(wins) / float64(len(pnls))
}

// CalculateSpreadPercent расчитывает ширину спреда bid/ask в процентах.
//
// Формула: ((ask - bid) / bid) × 100
//
// Возвращает 0 при некорректных входных данных (bid <= 0 или ask < bid).
func CalculateSpreadPercent(bid, ask float64) float64 {
	if bid <= 0 || ask < bid {
		return 0
	}
	return (ask - bid) / bid * 100
}

// FloorToInt округляет размер позиции вниз до целого.
//
// Округление вниз гарантирует, что расчётный размер не превысит
// разрешённый лимитами объём.
func FloorToInt(value float64) int {
	if value <= 0 {
		return 0
	}
	return int(math.Floor(value))
}

// Mean возвращает среднее арифметическое выборки.
//
// Используется для усреднения латентности по скользящему окну.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}

	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// Abs возвращает абсолютное значение числа.
func Abs(x float64) float64 {
	return math.Abs(x)
}

// Clamp ограничивает значение диапазоном [min, max].
func Clamp(value, min, max float64) float64 {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}
