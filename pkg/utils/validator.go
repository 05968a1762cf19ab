package utils

import (
	"fmt"
	"strings"
)

// validator.go - валидация входных данных
//
// Проверка корректности параметров ордеров и рыночных данных
// ДО обращения к брокеру или базе данных.
//
// Все функции возвращают error с описанием проблемы или nil.

// Допустимые стороны сделки
const (
	SideBuy  = "BUY"
	SideSell = "SELL"
)

// ValidateInstrumentID проверяет идентификатор инструмента.
//
// Идентификатор обязателен и не может состоять из пробелов.
func ValidateInstrumentID(instrumentID string) error {
	if strings.TrimSpace(instrumentID) == "" {
		return fmt.Errorf("instrument id is required")
	}
	return nil
}

// ValidateSide проверяет сторону сделки.
func ValidateSide(side string) error {
	if side != SideBuy && side != SideSell {
		return fmt.Errorf("invalid side: %q (expected %s or %s)", side, SideBuy, SideSell)
	}
	return nil
}

// ValidateQuantity проверяет объём ордера.
//
// Объём должен быть строго положительным целым.
func ValidateQuantity(quantity int) error {
	if quantity <= 0 {
		return fmt.Errorf("quantity must be positive, got %d", quantity)
	}
	return nil
}

// ValidatePrice проверяет цену.
//
// Цена опциональна для рыночных ордеров (0 допустим),
// но отрицательная цена всегда некорректна.
func ValidatePrice(price float64) error {
	if price < 0 {
		return fmt.Errorf("price cannot be negative, got %f", price)
	}
	return nil
}

// ValidateQuote проверяет корректность котировки из рыночных данных.
//
// Отрицательные цена или объём считаются испорченными данными
// и отклоняются до попадания в расчёты.
func ValidateQuote(price, volume float64) error {
	if price < 0 {
		return fmt.Errorf("quote price cannot be negative, got %f", price)
	}
	if volume < 0 {
		return fmt.Errorf("quote volume cannot be negative, got %f", volume)
	}
	return nil
}
