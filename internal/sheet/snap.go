package sheet

import "fmt"

// Snap names one of the four resting positions of the sheet, ordered from
// most open to least open.
type Snap int

const (
	Expanded Snap = iota
	Half
	Peek
	Collapsed
)

var snapOrder = [...]Snap{Expanded, Half, Peek, Collapsed}

func (s Snap) String() string {
	switch s {
	case Expanded:
		return "expanded"
	case Half:
		return "half"
	case Peek:
		return "peek"
	case Collapsed:
		return "collapsed"
	default:
		return fmt.Sprintf("snap(%d)", int(s))
	}
}

// ParseSnap is the inverse of Snap.String.
func ParseSnap(name string) (Snap, error) {
	for _, s := range snapOrder {
		if s.String() == name {
			return s, nil
		}
	}
	return 0, fmt.Errorf("unknown snap %q", name)
}

// SnapPoints holds the vertical offset of the sheet's top edge for each snap,
// measured from the top of the screen. Smaller offsets are more open.
type SnapPoints struct {
	Expanded  float64
	Half      float64
	Peek      float64
	Collapsed float64
}

// ForScreenHeight derives snap points from the window height: the collapsed
// sheet leaves 100 units for the handle and title.
func ForScreenHeight(h float64) SnapPoints {
	return SnapPoints{
		Expanded:  h * 0.2,
		Half:      h * 0.5,
		Peek:      h * 0.6,
		Collapsed: h - 100,
	}
}

func (p SnapPoints) Validate() error {
	if !(p.Expanded < p.Half && p.Half < p.Peek && p.Peek < p.Collapsed) {
		return fmt.Errorf("snap points must satisfy expanded < half < peek < collapsed, got %+v", p)
	}
	return nil
}

func (p SnapPoints) Offset(s Snap) float64 {
	switch s {
	case Expanded:
		return p.Expanded
	case Half:
		return p.Half
	case Peek:
		return p.Peek
	default:
		return p.Collapsed
	}
}

// Clamp limits pos to [Expanded, Collapsed].
func (p SnapPoints) Clamp(pos float64) float64 {
	if pos < p.Expanded {
		return p.Expanded
	}
	if pos > p.Collapsed {
		return p.Collapsed
	}
	return pos
}

// Nearest returns the snap closest to pos by bisecting adjacent snaps at
// their midpoint. A position exactly on a midpoint resolves to the more open
// snap. Positions outside the range resolve to the nearest end.
func (p SnapPoints) Nearest(pos float64) Snap {
	for i := 0; i < len(snapOrder)-1; i++ {
		open, closed := snapOrder[i], snapOrder[i+1]
		mid := (p.Offset(open) + p.Offset(closed)) / 2
		if pos <= mid {
			return open
		}
	}
	return Collapsed
}
