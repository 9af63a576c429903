package mesh

import (
	"errors"
	"fmt"
)

// HeightLaw shapes a normalized height before it is multiplied into a vertex.
type HeightLaw int

const (
	LawIdentity HeightLaw = iota
	LawSquare
	LawCube
	LawCurveOnly
	LawSquareCurve
	LawCubeCurve
)

var ErrUnknownLaw = errors.New("unknown height law")

var lawNames = [...]string{
	LawIdentity:    "identity",
	LawSquare:      "square",
	LawCube:        "cube",
	LawCurveOnly:   "curve",
	LawSquareCurve: "square_curve",
	LawCubeCurve:   "cube_curve",
}

func (l HeightLaw) String() string {
	if l < 0 || int(l) >= len(lawNames) {
		return fmt.Sprintf("HeightLaw(%d)", int(l))
	}
	return lawNames[l]
}

func ParseHeightLaw(s string) (HeightLaw, error) {
	if s == "" {
		return LawIdentity, nil
	}
	for i, name := range lawNames {
		if name == s {
			return HeightLaw(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownLaw, s)
}

func (l HeightLaw) Apply(v float32, c *Curve) float32 {
	switch l {
	case LawSquare:
		return v * v
	case LawCube:
		return v * v * v
	case LawCurveOnly:
		return c.Evaluate(v)
	case LawSquareCurve:
		return v * v * c.Evaluate(v)
	case LawCubeCurve:
		return v * v * v * c.Evaluate(v)
	default:
		return v
	}
}
