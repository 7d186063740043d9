package chroma

import (
	"fmt"
	"math"
	"sort"
)

// Distance computes the distance between two vectors in the given space.
// Smaller is closer in every space.
func Distance(space string, a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: embedding dimension %d does not match %d", ErrInvalidArgument, len(a), len(b))
	}
	switch space {
	case SpaceL2, "":
		var sum float64
		for i := range a {
			d := float64(a[i]) - float64(b[i])
			sum += d * d
		}
		return sum, nil
	case SpaceIP:
		return 1 - dot(a, b), nil
	case SpaceCosine:
		na, nb := dot(a, a), dot(b, b)
		if na == 0 || nb == 0 {
			return 1, nil
		}
		return 1 - dot(a, b)/(math.Sqrt(na)*math.Sqrt(nb)), nil
	default:
		return 0, fmt.Errorf("%w: unknown space %q", ErrInvalidArgument, space)
	}
}

// ValidSpace reports whether space names a supported distance function.
func ValidSpace(space string) bool {
	switch space {
	case SpaceL2, SpaceCosine, SpaceIP:
		return true
	}
	return false
}

// Neighbor is a scored candidate.
type Neighbor struct {
	Record   Record
	Distance float64
}

// Nearest returns the n records closest to query, ties broken by input order.
func Nearest(space string, query []float32, records []Record, n int) ([]Neighbor, error) {
	scored := make([]Neighbor, 0, len(records))
	for _, r := range records {
		d, err := Distance(space, query, r.Embedding)
		if err != nil {
			return nil, err
		}
		scored = append(scored, Neighbor{Record: r, Distance: d})
	}
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Distance < scored[j].Distance
	})
	if n >= 0 && len(scored) > n {
		scored = scored[:n]
	}
	return scored, nil
}

func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}
