package strategy

import (
	"testing"
	"time"

	"quanthybrid/internal/models"
)

func testParams() MACrossoverParams {
	return MACrossoverParams{
		FastPeriod: 2,
		SlowPeriod: 3,
		MinVolume:  0,
	}
}

func marketTick(symbol string, price, volume float64) models.Tick {
	return models.Tick{
		InstrumentID: "NSE:" + symbol,
		Symbol:       symbol,
		LastPrice:    price,
		Bid:          price - 0.05,
		Ask:          price + 0.05,
		Volume:       volume,
		Timestamp:    time.Now(),
	}
}

func TestEvaluate_Crossovers(t *testing.T) {
	tests := []struct {
		name   string
		prices []float64
		action string // "" = нет сигнала
	}{
		{
			name:   "бычье пересечение",
			prices: []float64{10, 10, 10, 13},
			action: ActionBuy,
		},
		{
			name:   "медвежье пересечение",
			prices: []float64{10, 10, 10, 7},
			action: ActionSell,
		},
		{
			name:   "быстрая MA уже выше: пересечения нет",
			prices: []float64{10, 10, 13, 14},
			action: "",
		},
		{
			name:   "плоский рынок",
			prices: []float64{10, 10, 10, 10},
			action: "",
		},
		{
			name:   "недостаточно истории",
			prices: []float64{10, 10, 10},
			action: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewMACrossover(testParams())

			signal := s.Evaluate(tt.prices, marketTick("RELIANCE", 100, 500000))

			if tt.action == "" {
				if signal != nil {
					t.Fatalf("unexpected signal: %+v", signal)
				}
				return
			}

			if signal == nil {
				t.Fatalf("expected %s signal, got none", tt.action)
			}
			if signal.Action != tt.action {
				t.Errorf("action = %s, expected %s", signal.Action, tt.action)
			}
			if signal.Symbol != "RELIANCE" {
				t.Errorf("symbol = %s, expected RELIANCE", signal.Symbol)
			}
		})
	}
}

// Сигнал не генерируется на неликвидном инструменте
func TestEvaluate_LowVolume(t *testing.T) {
	params := testParams()
	params.MinVolume = 100000
	s := NewMACrossover(params)

	prices := []float64{10, 10, 10, 13}

	if signal := s.Evaluate(prices, marketTick("RELIANCE", 13, 500)); signal != nil {
		t.Errorf("signal on low volume: %+v", signal)
	}
	if signal := s.Evaluate(prices, marketTick("RELIANCE", 13, 500000)); signal == nil {
		t.Error("expected signal with sufficient volume")
	}
}

func TestTrendStrength(t *testing.T) {
	s := NewMACrossover(testParams())

	if got := s.TrendStrength([]float64{10, 10}); got != 0 {
		t.Errorf("trend strength = %f, expected 0 without history", got)
	}

	if got := s.TrendStrength([]float64{10, 10, 10, 10}); got != 0 {
		t.Errorf("trend strength = %f, expected 0 for flat prices", got)
	}

	if got := s.TrendStrength([]float64{10, 11, 12, 13}); got <= 0 {
		t.Errorf("trend strength = %f, expected positive for trending prices", got)
	}
}

func TestDefaultParams(t *testing.T) {
	params := DefaultMACrossoverParams()

	if params.FastPeriod >= params.SlowPeriod {
		t.Errorf("fast period %d must be shorter than slow %d",
			params.FastPeriod, params.SlowPeriod)
	}
}
