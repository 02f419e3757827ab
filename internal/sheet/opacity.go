package sheet

// OpacityFor maps position through the piecewise-linear curve defined by
// inputRange and outputRange, clamping outside the input range. inputRange
// must be monotonic but may run in either direction. Mismatched or empty
// ranges yield 0.
func OpacityFor(position float64, inputRange, outputRange []float64) float64 {
	n := len(inputRange)
	if n == 0 || n != len(outputRange) {
		return 0
	}
	if n == 1 {
		return outputRange[0]
	}

	in, out := inputRange, outputRange
	if in[0] > in[n-1] {
		in, out = reversed(in), reversed(out)
	}

	if position <= in[0] {
		return out[0]
	}
	if position >= in[n-1] {
		return out[n-1]
	}

	for i := 1; i < n; i++ {
		if position > in[i] {
			continue
		}
		lo, hi := in[i-1], in[i]
		if hi == lo {
			return out[i]
		}
		t := (position - lo) / (hi - lo)
		return out[i-1] + t*(out[i]-out[i-1])
	}
	return out[n-1]
}

func reversed(s []float64) []float64 {
	out := make([]float64, len(s))
	for i, v := range s {
		out[len(s)-1-i] = v
	}
	return out
}

// Block names a region of sheet content whose opacity follows the position.
type Block int

const (
	// Quick facts of the selected station.
	DetailBlock Block = iota
	// Full station details; only visible when opened past Half.
	ExtendedBlock
	// Radius presets and pin controls.
	RadiusBlock
)

// Curve returns the interpolation ranges of block for the given snap points.
func (p SnapPoints) Curve(block Block, selected bool) (inputRange, outputRange []float64) {
	switch block {
	case DetailBlock:
		return []float64{p.Collapsed, p.Peek, p.Half}, []float64{0, 1, 1}
	case ExtendedBlock:
		return []float64{p.Peek, p.Half, p.Expanded}, []float64{0, 0.5, 1}
	default:
		if selected {
			return []float64{p.Collapsed, p.Peek}, []float64{0, 0.3}
		}
		return []float64{p.Collapsed, p.Peek}, []float64{1, 1}
	}
}

// Visibility holds the opacity of every content block at one position.
type Visibility struct {
	Detail   float64 `json:"detail"`
	Extended float64 `json:"extended"`
	Radius   float64 `json:"radius"`
}

func (p SnapPoints) Visibility(position float64, selected bool) Visibility {
	eval := func(b Block) float64 {
		in, out := p.Curve(b, selected)
		return OpacityFor(position, in, out)
	}
	return Visibility{
		Detail:   eval(DetailBlock),
		Extended: eval(ExtendedBlock),
		Radius:   eval(RadiusBlock),
	}
}
