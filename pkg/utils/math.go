package utils

import (
	"math"
)

// math.go - математические утилиты торгового ядра
//
// Назначение:
// Вспомогательные математические функции для расчётов баланса, PNL и сеток.
// Все функции являются чистыми (pure functions) без побочных эффектов.
//
// Функции:
// - Round8: округление денежных значений до 8 знаков
// - PctChange: процентное изменение цены
// - Clamp: ограничение значения диапазоном
// - WeightedAverage: средневзвешенная цена покупки

// Round8 округляет значение до 8 знаков после запятой.
//
// Используется для нормализации денежных величин после цепочек
// floating-point операций (комиссии, PNL циклов сетки).
//
// Примеры:
//   - Round8(0.1+0.2) = 0.3
//   - Round8(1.123456789) = 1.12345679
func Round8(value float64) float64 {
	return math.Round(value*1e8) / 1e8
}

// RoundTo округляет значение до указанного количества знаков.
//
// Параметры:
//   - value: исходное значение
//   - decimals: количество знаков после запятой (>= 0)
func RoundTo(value float64, decimals int) float64 {
	if decimals < 0 {
		return value
	}
	factor := math.Pow(10, float64(decimals))
	return math.Round(value*factor) / factor
}

// PctChange возвращает процентное изменение от from к to.
//
// Формула: (to - from) / from × 100
//
// Возвращает 0, если from == 0 (деление на ноль невозможно).
//
// Примеры:
//   - PctChange(100, 102) = 2.0
//   - PctChange(100, 95) = -5.0
func PctChange(from, to float64) float64 {
	if from == 0 {
		return 0
	}
	return (to - from) / from * 100
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

// WeightedAverage возвращает средневзвешенную цену для набора покупок.
//
// Параметры:
//   - prices: цены исполнения
//   - quantities: объёмы (веса), той же длины что и prices
//
// Возвращает:
//   - Средневзвешенную цену
//   - 0, если суммарный объём равен нулю или длины не совпадают
//
// Используется для расчёта средней цены входа DCA и avg buy price сетки.
func WeightedAverage(prices, quantities []float64) float64 {
	if len(prices) != len(quantities) || len(prices) == 0 {
		return 0
	}

	var totalValue, totalQty float64
	for i := range prices {
		totalValue += prices[i] * quantities[i]
		totalQty += quantities[i]
	}

	if totalQty == 0 {
		return 0
	}
	return totalValue / totalQty
}

// AlmostEqual сравнивает два float64 с допуском epsilon.
//
// Используется в проверках инвариантов, где накапливается
// погрешность floating-point арифметики.
func AlmostEqual(a, b, epsilon float64) bool {
	return math.Abs(a-b) <= epsilon
}
