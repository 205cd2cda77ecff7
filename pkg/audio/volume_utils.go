package audio

import "math"

// volumeToPower maps a linear 0..1 volume onto beep's base-2 exponent:
// 1 is unity gain, 0.5 is one halving. Near-zero is clamped to silence.
func volumeToPower(vol float64) float64 {
	if vol <= 0.01 {
		return -10
	}
	return math.Log2(vol)
}
