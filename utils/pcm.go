// SPDX-License-Identifier: EPL-2.0

package utils

const (
	maxInt16 = 1<<15 - 1
	maxInt24 = 1<<23 - 1
	maxInt32 = 1<<31 - 1
)

func clamp(x float32) float32 {
	if x > 1 {
		return 1
	}
	if x < -1 {
		return -1
	}
	return x
}

func Float32ToInt16(x float32) int16 {
	return int16(clamp(x) * maxInt16)
}

// Float32ToInt24 scales x into the signed 24-bit range. The result is
// returned in an int32 since Go has no 24-bit integer type.
func Float32ToInt24(x float32) int32 {
	return int32(float64(clamp(x)) * maxInt24)
}

// FloatToPCM scales x to a signed integer of the given bit depth
// (8, 16, 24 or 32). Unknown depths are treated as 16-bit.
func FloatToPCM(x float32, bitDepth int) int {
	switch bitDepth {
	case 8:
		return int(clamp(x) * 127)
	case 24:
		return int(Float32ToInt24(x))
	case 32:
		return int(float64(clamp(x)) * maxInt32)
	default:
		return int(Float32ToInt16(x))
	}
}

// PCMToFloat normalizes a signed integer sample of the given bit depth to
// [-1, 1).
func PCMToFloat(v int, bitDepth int) float32 {
	switch bitDepth {
	case 8:
		return float32(v) / 128.0
	case 24:
		return float32(float64(v) / 8388608.0)
	case 32:
		return float32(float64(v) / 2147483648.0)
	default:
		return float32(v) / 32768.0
	}
}
