package pointcloud

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/woozymasta/geolens/internal/geo"
)

// ReadXYZ reads whitespace or comma separated "x y z" lines.
//
// Columns after the third are ignored, as are blank lines and lines starting with '#' or "//".
// A non-numeric first line is taken as a column header.
func ReadXYZ(r io.Reader) (*Cloud, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)

	cloud := &Cloud{}
	line := 0
	headerSeen := false
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") || strings.HasPrefix(text, "//") {
			continue
		}

		fields := strings.FieldsFunc(text, func(r rune) bool {
			return r == ',' || r == ';' || r == ' ' || r == '\t'
		})
		if len(fields) < 3 {
			return nil, fmt.Errorf("line %d: want at least 3 columns, got %d", line, len(fields))
		}

		var xyz [3]float64
		var err error
		for i := range xyz {
			if xyz[i], err = strconv.ParseFloat(fields[i], 64); err != nil {
				break
			}
		}
		if err != nil {
			if len(cloud.Points) == 0 && !headerSeen {
				headerSeen = true
				continue
			}
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		cloud.Points = append(cloud.Points, geo.Point{X: xyz[0], Y: xyz[1], Z: xyz[2]})
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}

	return cloud, nil
}
