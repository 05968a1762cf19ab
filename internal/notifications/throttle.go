package notifications

import (
	"sync"
	"time"
)

// throttle.go - rate gate для уведомлений по типу события
//
// Throttle только информирует о превышении частоты, он НЕ
// отбрасывает уведомления из очереди: решение остаётся
// за вызывающим кодом.

// ThrottleStatus - состояние rate gate для типа события
type ThrottleStatus struct {
	IsThrottled  bool `json:"is_throttled"`
	SentInWindow int  `json:"sent_in_window"`
}

// Throttle считает отправки по типу события в скользящем окне
type Throttle struct {
	mu sync.Mutex

	window       time.Duration
	maxPerWindow int
	events       map[string][]time.Time
}

// NewThrottle создаёт rate gate
func NewThrottle(window time.Duration, maxPerWindow int) *Throttle {
	return &Throttle{
		window:       window,
		maxPerWindow: maxPerWindow,
		events:       make(map[string][]time.Time),
	}
}

// Record фиксирует отправку уведомления указанного типа
func (t *Throttle) Record(alertType string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.events[alertType] = append(t.prune(alertType), time.Now())
}

// Status возвращает состояние rate gate для типа события
func (t *Throttle) Status(alertType string) ThrottleStatus {
	t.mu.Lock()
	defer t.mu.Unlock()

	recent := t.prune(alertType)
	t.events[alertType] = recent

	return ThrottleStatus{
		IsThrottled:  len(recent) >= t.maxPerWindow,
		SentInWindow: len(recent),
	}
}

// prune удаляет события за пределами окна.
// Вызывается под mutex.
func (t *Throttle) prune(alertType string) []time.Time {
	cutoff := time.Now().Add(-t.window)
	events := t.events[alertType]

	kept := events[:0]
	for _, ts := range events {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	return kept
}
