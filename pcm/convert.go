// Package pcm converts between the 24-bit fixed-point samples carried in
// the sync signal (syncsignal.Sample) and the 32-bit float samples used on
// audio-callback boundaries, per the linear mapping in spec.md §4.5:
// float = int24 << 8, treated as a Q31 fixed-point value, divided by 2^31.
package pcm

const (
	signBit  = 1 << 23
	signExt  = ^int32(0xFFFFFF)
	fullScale = float32(1 << 31)
)

// Int24ToFloat32 sign-extends the 24-bit sample held in the low 24 bits of
// s, widens it to Q31 by shifting left 8 bits, and normalizes to the
// [-1, 1) range.
func Int24ToFloat32(s uint32) float32 {
	raw := int32(s & 0xFFFFFF)
	if s&signBit != 0 {
		raw |= signExt
	}
	q31 := raw << 8
	return float32(q31) / fullScale
}

// Float32ToInt24 reverses Int24ToFloat32: it denormalizes f to Q31,
// narrows back to 24 bits, and returns the value in the low 24 bits of a
// uint32 (as syncsignal.Sample expects).
func Float32ToInt24(f float32) uint32 {
	if f > 1 {
		f = 1
	} else if f < -1 {
		f = -1
	}
	// Widen through int64 first: f*fullScale can reach 2^31, one past
	// int32's range, so converting straight to int32 would overflow.
	q31 := int64(float64(f) * float64(fullScale))
	if q31 > 1<<31-1 {
		q31 = 1<<31 - 1
	} else if q31 < -(1 << 31) {
		q31 = -(1 << 31)
	}
	raw := (int32(q31) >> 8) & 0xFFFFFF
	return uint32(raw)
}
