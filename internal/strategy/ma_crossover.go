package strategy

import (
	"quanthybrid/internal/models"
	"quanthybrid/pkg/utils"
)

// MACrossover - стратегия пересечения скользящих средних.
//
// Быстрая MA пересекает медленную снизу вверх - сигнал на покупку,
// сверху вниз - сигнал на продажу. Сигнал генерируется только
// в момент пересечения, а не пока быстрая MA остаётся выше/ниже.
type MACrossover struct {
	name       string
	fastPeriod int
	slowPeriod int
	minVolume  float64
}

// MACrossoverParams - параметры стратегии
type MACrossoverParams struct {
	FastPeriod int
	SlowPeriod int
	MinVolume  float64
}

// DefaultMACrossoverParams возвращает параметры по умолчанию: MA 9/21
func DefaultMACrossoverParams() MACrossoverParams {
	return MACrossoverParams{
		FastPeriod: 9,
		SlowPeriod: 21,
		MinVolume:  100000,
	}
}

// NewMACrossover создаёт стратегию пересечения скользящих средних
func NewMACrossover(params MACrossoverParams) *MACrossover {
	return &MACrossover{
		name:       "ma_crossover",
		fastPeriod: params.FastPeriod,
		slowPeriod: params.SlowPeriod,
		minVolume:  params.MinVolume,
	}
}

// Name возвращает имя стратегии
func (s *MACrossover) Name() string { return s.name }

// Evaluate проверяет пересечение скользящих средних.
// Требует истории минимум на медленный период плюс один тик
// (для предыдущих значений MA).
func (s *MACrossover) Evaluate(prices []float64, tick models.Tick) *Signal {
	if len(prices) < s.slowPeriod+1 {
		return nil
	}

	if tick.Volume < s.minVolume {
		return nil
	}

	fastNow := movingAverage(prices, s.fastPeriod)
	slowNow := movingAverage(prices, s.slowPeriod)

	prev := prices[:len(prices)-1]
	fastPrev := movingAverage(prev, s.fastPeriod)
	slowPrev := movingAverage(prev, s.slowPeriod)

	prevDiff := fastPrev - slowPrev
	currDiff := fastNow - slowNow

	switch {
	case prevDiff <= 0 && currDiff > 0:
		return &Signal{
			Action: ActionBuy,
			Symbol: tick.Symbol,
			Reason: "bullish MA crossover",
		}
	case prevDiff >= 0 && currDiff < 0:
		return &Signal{
			Action: ActionSell,
			Symbol: tick.Symbol,
			Reason: "bearish MA crossover",
		}
	default:
		return nil
	}
}

// TrendStrength возвращает силу тренда как процентное расхождение
// быстрой и медленной MA. Чем дальше MA разошлись, тем сильнее тренд.
func (s *MACrossover) TrendStrength(prices []float64) float64 {
	if len(prices) < s.slowPeriod {
		return 0
	}

	fast := movingAverage(prices, s.fastPeriod)
	slow := movingAverage(prices, s.slowPeriod)
	if slow == 0 {
		return 0
	}

	return utils.Abs(fast-slow) / slow * 100
}

// movingAverage считает среднее последних period цен
func movingAverage(prices []float64, period int) float64 {
	if len(prices) < period {
		return 0
	}
	return utils.Mean(prices[len(prices)-period:])
}
