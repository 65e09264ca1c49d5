// Package money содержит примитивы для работы с денежными суммами.
// Все суммы хранятся и передаются в целых минорных единицах валюты
// (пенсы, центы и т.д.) — плавающая арифметика допустима только в
// момент округления процента.
package money

import "math"

// MinorUnitsPerMajor количество минорных единиц в одной мажорной (100 пенсов в фунте)
const MinorUnitsPerMajor = 100

// FromMajor конвертирует сумму в мажорных единицах (legacy-поле price)
// в минорные единицы с округлением до ближайшей целой
func FromMajor(major float64) int64 {
	return int64(math.Round(major * MinorUnitsPerMajor))
}

// PercentRoundHalfUp вычисляет percent% от amount с округлением
// "половина вверх" до ближайшей минорной единицы.
// Для отрицательных amount не определено — суммы всегда неотрицательны.
func PercentRoundHalfUp(amount int64, percent float64) int64 {
	return int64(math.Floor(float64(amount)*percent/100.0 + 0.5))
}

// Min возвращает меньшую из двух сумм
func Min(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}

// NonNegative обрезает отрицательную сумму до нуля
func NonNegative(v int64) int64 {
	if v < 0 {
		return 0
	}
	return v
}
