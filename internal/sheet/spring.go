package sheet

import "math"

// Spring parameters of a damped harmonic oscillator with unit mass.
type Spring struct {
	Stiffness float64
	Damping   float64
}

const (
	// Integration sub-step in seconds.
	substep = 0.001

	restSpeed        = 0.001
	restDisplacement = 0.001
)

// SpringFromBounciness converts the bounciness/speed pair of a gesture
// panel spring into stiffness and damping, following the Origami mapping.
func SpringFromBounciness(bounciness, speed float64) Spring {
	b := projectNormal(normalize(bounciness/1.7, 0, 20), 0, 0.8)
	s := normalize(speed/1.7, 0, 20)

	tension := projectNormal(s, 0.5, 200)
	friction := quadraticOutInterpolation(b, noBounceFriction(tension), 0.01)

	return Spring{
		Stiffness: (tension-30)*3.62 + 194,
		Damping:   (friction-8)*3 + 25,
	}
}

// Default springs: opening and drag release use bounciness 4 at speed 12,
// collapsing uses bounciness 1.
var (
	OpenSpring  = SpringFromBounciness(4, 12)
	CloseSpring = SpringFromBounciness(1, 12)
)

// advance integrates the spring for dt seconds in fixed sub-steps using
// semi-implicit Euler and reports the new position and velocity.
func (s Spring) advance(pos, vel, target, dt float64) (float64, float64) {
	for dt > 0 {
		h := math.Min(substep, dt)
		acc := -s.Stiffness*(pos-target) - s.Damping*vel
		vel += acc * h
		pos += vel * h
		dt -= h
	}
	return pos, vel
}

func atRest(pos, vel, target float64) bool {
	return math.Abs(vel) < restSpeed && math.Abs(pos-target) < restDisplacement
}

func normalize(value, start, end float64) float64 {
	return (value - start) / (end - start)
}

func projectNormal(n, start, end float64) float64 {
	return start + n*(end-start)
}

func linearInterpolation(t, start, end float64) float64 {
	return t*end + (1-t)*start
}

func quadraticOutInterpolation(t, start, end float64) float64 {
	return linearInterpolation(2*t-t*t, start, end)
}

func noBounceFriction(tension float64) float64 {
	switch {
	case tension <= 18:
		return 0.0007*math.Pow(tension, 3) - 0.031*math.Pow(tension, 2) + 0.64*tension + 1.28
	case tension <= 44:
		return 0.000044*math.Pow(tension, 3) - 0.006*math.Pow(tension, 2) + 0.36*tension + 2
	default:
		return 0.00000045*math.Pow(tension, 3) - 0.000332*math.Pow(tension, 2) + 0.1078*tension + 5.84
	}
}
