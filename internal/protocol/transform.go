package protocol

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Vector is an x/y/z triple.
type Vector [3]float64

// Transform carries the optional translation, rotation and scale triples of
// a "T=(x y z) R=(x y z) S=(x y z)" string. Absent components are nil.
type Transform struct {
	Translation *Vector `yaml:"translation,omitempty"`
	Rotation    *Vector `yaml:"rotation,omitempty"`
	Scale       *Vector `yaml:"scale,omitempty"`
}

var transformPart = regexp.MustCompile(`([TRS])=\(([^)]*)\)`)

// ParseTransform extracts the tagged triples from s. Each of T, R and S is
// optional; text outside the tagged groups is ignored.
//
// Postcondition: Returns an error for a repeated tag or a group that does
// not hold exactly three numbers.
func ParseTransform(s string) (Transform, error) {
	var t Transform
	for _, m := range transformPart.FindAllStringSubmatch(s, -1) {
		v, err := parseVector(m[2])
		if err != nil {
			return Transform{}, fmt.Errorf("parsing %s=(%s): %w", m[1], m[2], err)
		}
		var slot **Vector
		switch m[1] {
		case "T":
			slot = &t.Translation
		case "R":
			slot = &t.Rotation
		case "S":
			slot = &t.Scale
		}
		if *slot != nil {
			return Transform{}, fmt.Errorf("duplicate %s= component", m[1])
		}
		*slot = &v
	}
	return t, nil
}

func parseVector(s string) (Vector, error) {
	fields := strings.Fields(s)
	if len(fields) != 3 {
		return Vector{}, fmt.Errorf("expected 3 values, got %d", len(fields))
	}
	var v Vector
	for i, f := range fields {
		n, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return Vector{}, err
		}
		v[i] = n
	}
	return v, nil
}

// IsZero reports whether no component is present.
func (t Transform) IsZero() bool {
	return t.Translation == nil && t.Rotation == nil && t.Scale == nil
}

// Merge returns t with every component present in o replacing its own.
func (t Transform) Merge(o Transform) Transform {
	if o.Translation != nil {
		v := *o.Translation
		t.Translation = &v
	}
	if o.Rotation != nil {
		v := *o.Rotation
		t.Rotation = &v
	}
	if o.Scale != nil {
		v := *o.Scale
		t.Scale = &v
	}
	return t
}

// String renders the present components in T, R, S order.
func (t Transform) String() string {
	var parts []string
	add := func(tag string, v *Vector) {
		if v == nil {
			return
		}
		parts = append(parts, fmt.Sprintf("%s=(%s %s %s)", tag,
			formatFloat(v[0]), formatFloat(v[1]), formatFloat(v[2])))
	}
	add("T", t.Translation)
	add("R", t.Rotation)
	add("S", t.Scale)
	return strings.Join(parts, " ")
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}
