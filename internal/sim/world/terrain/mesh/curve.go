package mesh

import "sort"

// Keyframe is one control point of a Curve. Tangents are slopes (dValue/dTime).
type Keyframe struct {
	Time       float32
	Value      float32
	InTangent  float32
	OutTangent float32
}

// Curve is a piecewise cubic Hermite curve. Outside the key range it holds the
// first/last value. An empty curve evaluates to 0.
type Curve struct {
	keys []Keyframe
}

func NewCurve(keys ...Keyframe) *Curve {
	c := &Curve{keys: append([]Keyframe(nil), keys...)}
	sort.SliceStable(c.keys, func(i, j int) bool { return c.keys[i].Time < c.keys[j].Time })
	return c
}

// LinearCurve maps [0,1] onto itself.
func LinearCurve() *Curve {
	return NewCurve(
		Keyframe{Time: 0, Value: 0, InTangent: 1, OutTangent: 1},
		Keyframe{Time: 1, Value: 1, InTangent: 1, OutTangent: 1},
	)
}

func (c *Curve) Keys() []Keyframe {
	if c == nil {
		return nil
	}
	return append([]Keyframe(nil), c.keys...)
}

func (c *Curve) Len() int {
	if c == nil {
		return 0
	}
	return len(c.keys)
}

// SmoothTangents replaces every tangent with the finite-difference slope of
// the neighbouring keys.
func (c *Curve) SmoothTangents() *Curve {
	n := len(c.keys)
	for i := range c.keys {
		var slope float32
		switch {
		case n < 2:
		case i == 0:
			slope = secant(c.keys[0], c.keys[1])
		case i == n-1:
			slope = secant(c.keys[n-2], c.keys[n-1])
		default:
			slope = secant(c.keys[i-1], c.keys[i+1])
		}
		c.keys[i].InTangent = slope
		c.keys[i].OutTangent = slope
	}
	return c
}

func secant(a, b Keyframe) float32 {
	dt := b.Time - a.Time
	if dt == 0 {
		return 0
	}
	return (b.Value - a.Value) / dt
}

func (c *Curve) Evaluate(t float32) float32 {
	if c == nil || len(c.keys) == 0 {
		return 0
	}
	first, last := c.keys[0], c.keys[len(c.keys)-1]
	if t <= first.Time {
		return first.Value
	}
	if t >= last.Time {
		return last.Value
	}
	i := sort.Search(len(c.keys), func(i int) bool { return c.keys[i].Time > t })
	k0, k1 := c.keys[i-1], c.keys[i]
	dt := k1.Time - k0.Time
	if dt == 0 {
		return k1.Value
	}
	s := (t - k0.Time) / dt
	s2 := s * s
	s3 := s2 * s
	h00 := 2*s3 - 3*s2 + 1
	h10 := s3 - 2*s2 + s
	h01 := -2*s3 + 3*s2
	h11 := s3 - s2
	return h00*k0.Value + h10*dt*k0.OutTangent + h01*k1.Value + h11*dt*k1.InTangent
}

func (c *Curve) Clone() *Curve {
	if c == nil {
		return nil
	}
	return &Curve{keys: append([]Keyframe(nil), c.keys...)}
}
