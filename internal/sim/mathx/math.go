package mathx

import "math"

func ClampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Clamp01 maps NaN to 0.
func Clamp01(v float32) float32 {
	if v != v || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// InverseLerp returns 0 for a degenerate range.
func InverseLerp(a, b, v float32) float32 {
	if a == b {
		return 0
	}
	return Clamp01((v - a) / (b - a))
}

// RoundToInt rounds half to even.
func RoundToInt(v float32) int {
	return int(math.RoundToEven(float64(v)))
}

func mix64(z uint64) uint64 {
	z += 0x9e3779b97f4a7c15
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}

// DeriveSeed splits one seed into independent streams keyed by salt.
func DeriveSeed(seed int64, salt uint64) int64 {
	return int64(mix64(uint64(seed) ^ (salt * 0xc2b2ae3d27d4eb4f)))
}
