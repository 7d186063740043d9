package chroma

import (
	"fmt"
	"regexp"
)

var collectionNamePattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]{1,61}[a-zA-Z0-9]$`)

// ValidateName checks a collection name: 3-63 characters from [a-zA-Z0-9._-],
// starting and ending with an alphanumeric character, with no consecutive periods.
func ValidateName(name string) error {
	if !collectionNamePattern.MatchString(name) {
		return fmt.Errorf("%w: collection name %q must be 3-63 characters of [a-zA-Z0-9._-] and start and end with a letter or digit", ErrInvalidArgument, name)
	}
	for i := 1; i < len(name); i++ {
		if name[i] == '.' && name[i-1] == '.' {
			return fmt.Errorf("%w: collection name %q must not contain two consecutive periods", ErrInvalidArgument, name)
		}
	}
	return nil
}

// CheckDimension verifies every vector has dimension dim. A dim of 0 accepts the first
// vector's dimension and returns it.
func CheckDimension(dim int, vectors [][]float32) (int, error) {
	for _, v := range vectors {
		if dim == 0 {
			dim = len(v)
		}
		if len(v) != dim {
			return 0, fmt.Errorf("%w: embedding dimension %d does not match collection dimensionality %d", ErrInvalidArgument, len(v), dim)
		}
	}
	return dim, nil
}
