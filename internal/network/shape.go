package network

import "fmt"

// Shape is the passenger-destination category of a station.
type Shape uint8

const (
	Circle Shape = iota
	Triangle
	Square
	Star
	Heart
)

// NumShapes is the number of distinct shapes.
const NumShapes = 5

var shapeNames = [NumShapes]string{"circle", "triangle", "square", "star", "heart"}

// AllShapes returns the shapes in canonical order.
func AllShapes() []Shape { return []Shape{Circle, Triangle, Square, Star, Heart} }

func (s Shape) String() string {
	if int(s) < NumShapes {
		return shapeNames[s]
	}
	return fmt.Sprintf("shape(%d)", uint8(s))
}

// ParseShape converts a shape name into a Shape.
func ParseShape(name string) (Shape, error) {
	for i, n := range shapeNames {
		if n == name {
			return Shape(i), nil
		}
	}
	return 0, fmt.Errorf("unknown shape %q", name)
}

func (s Shape) MarshalText() ([]byte, error) {
	if int(s) >= NumShapes {
		return nil, fmt.Errorf("invalid shape %d", uint8(s))
	}
	return []byte(shapeNames[s]), nil
}

func (s *Shape) UnmarshalText(b []byte) error {
	v, err := ParseShape(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// Size classifies a station's footprint, which fixes its capacity.
type Size string

const (
	Small  Size = "small"
	Medium Size = "medium"
	Large  Size = "large"
)

// Capacity is the number of waiting passengers a station of this size holds
// before it counts as critically congested.
func (s Size) Capacity() int {
	switch s {
	case Small:
		return 30
	case Large:
		return 100
	default:
		return 60
	}
}
