package audio

// Smoothstep returns the smoothstep interpolation for t in [0,1]: 3t^2 - 2t^3.
func Smoothstep(t float64) float64 {
	if t <= 0 {
		return 0
	}
	if t >= 1 {
		return 1
	}
	return t * t * (3 - 2*t)
}

// ApplyFade scales a frame by the smoothstep gain at progress (0.0 = silent,
// 1.0 = unchanged). The input frame is not modified.
func ApplyFade(frame []int16, progress float64) []int16 {
	gain := Smoothstep(progress)
	out := make([]int16, len(frame))
	for i, s := range frame {
		v := float64(s) * gain
		if v > 32767 {
			v = 32767
		} else if v < -32768 {
			v = -32768
		}
		out[i] = int16(v)
	}
	return out
}
