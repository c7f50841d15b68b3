package utils

import (
	"math"
)

// Clamp limits a value between min and max
func Clamp(value, min, max float64) float64 {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}

// RoundTo rounds a float to specified decimal places
func RoundTo(value float64, places int) float64 {
	factor := math.Pow(10, float64(places))
	return math.Round(value*factor) / factor
}

// Lerp performs linear interpolation between two values
func Lerp(a, b, t float64) float64 {
	return a + t*(b-a)
}

// Frac returns the fractional part of a non-negative value, so Frac(1.25) == 0.25.
func Frac(value float64) float64 {
	return value - math.Floor(value)
}

// MetersPerSecond converts a speed in km/h to m/s
func MetersPerSecond(kmh float64) float64 {
	return kmh * 1000 / 3600
}
