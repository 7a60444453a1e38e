package probe

import (
	"fmt"
	"strconv"
	"strings"
)

// ParsePixel reads a "col,row" pair. Spaces, semicolons and tabs also separate the values.
func ParsePixel(s string) (col, row int, err error) {
	a, b, err := splitPair(s)
	if err != nil {
		return 0, 0, err
	}

	if col, err = strconv.Atoi(a); err != nil {
		return 0, 0, fmt.Errorf("column %q: %w", a, err)
	}
	if row, err = strconv.Atoi(b); err != nil {
		return 0, 0, fmt.Errorf("row %q: %w", b, err)
	}

	return col, row, nil
}

// ParseLonLat reads a "lon,lat" pair in decimal degrees.
func ParseLonLat(s string) (lon, lat float64, err error) {
	a, b, err := splitPair(s)
	if err != nil {
		return 0, 0, err
	}

	if lon, err = strconv.ParseFloat(a, 64); err != nil {
		return 0, 0, fmt.Errorf("longitude %q: %w", a, err)
	}
	if lat, err = strconv.ParseFloat(b, 64); err != nil {
		return 0, 0, fmt.Errorf("latitude %q: %w", b, err)
	}

	return lon, lat, nil
}

func splitPair(s string) (string, string, error) {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ';' || r == ' ' || r == '\t'
	})
	if len(fields) != 2 {
		return "", "", fmt.Errorf("want two values, got %q", s)
	}

	return fields[0], fields[1], nil
}
