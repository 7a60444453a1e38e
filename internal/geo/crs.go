package geo

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/ctessum/geom/proj"
)

// WGS84EPSG is the code of the geodetic system every lookup ends in.
const WGS84EPSG = 4326

// ErrUnknownCRS is returned when an identifier has no known definition.
var ErrUnknownCRS = errors.New("unknown coordinate reference system")

// CRS is a coordinate reference system as named by the caller (ID)
// together with the PROJ or WKT definition it resolves to (Def).
type CRS struct {
	ID  string
	Def string
}

// Built-in definitions for the systems GeoTIFFs and LAS files usually come in.
// UTM zones on WGS 84 are generated in epsgDefinition.
var builtinDefs = map[int]string{
	4326: "+proj=longlat +datum=WGS84 +no_defs",
	4258: "+proj=longlat +ellps=GRS80 +towgs84=0,0,0,0,0,0,0 +no_defs",
	4269: "+proj=longlat +datum=NAD83 +no_defs",
	3857: "+proj=merc +a=6378137 +b=6378137 +lat_ts=0 +lon_0=0 +x_0=0 +y_0=0 +k=1 +units=m +no_defs",
	3395: "+proj=merc +lon_0=0 +k=1 +x_0=0 +y_0=0 +datum=WGS84 +units=m +no_defs",
}

// WGS84 returns the geodetic WGS 84 system.
func WGS84() CRS {
	return CRS{ID: "EPSG:4326", Def: builtinDefs[WGS84EPSG]}
}

// EPSG builds a CRS from an EPSG code using the built-in table.
func EPSG(code int) (CRS, error) {
	return ParseCRS(fmt.Sprintf("EPSG:%d", code), nil)
}

// ParseCRS resolves an identifier to a CRS.
//
// Accepted forms are "EPSG:<code>", a bare code, a PROJ string ("+proj=...") and a WKT string.
// defs holds extra definitions keyed by identifier (usually loaded from the config file);
// they take precedence over the built-in table.
func ParseCRS(id string, defs map[string]string) (CRS, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return CRS{}, fmt.Errorf("%w: empty identifier", ErrUnknownCRS)
	}

	if def, ok := lookupDef(id, defs); ok {
		return CRS{ID: id, Def: def}, nil
	}

	if strings.HasPrefix(id, "+") || isWKT(id) {
		return CRS{ID: id, Def: id}, nil
	}

	code, ok := epsgCode(id)
	if !ok {
		return CRS{}, fmt.Errorf("%w: %q", ErrUnknownCRS, id)
	}

	def, ok := epsgDefinition(code)
	if !ok {
		return CRS{}, fmt.Errorf("%w: EPSG:%d has no built-in definition", ErrUnknownCRS, code)
	}

	return CRS{ID: fmt.Sprintf("EPSG:%d", code), Def: def}, nil
}

// IsWGS84 reports whether the system is geodetic WGS 84, where reprojection is the identity.
func (c CRS) IsWGS84() bool {
	if code, ok := epsgCode(c.ID); ok && code == WGS84EPSG {
		return true
	}

	def := strings.ToLower(c.Def)
	if !strings.Contains(def, "+proj=longlat") && !strings.Contains(def, "+proj=latlong") {
		return false
	}

	return strings.Contains(def, "+datum=wgs84") || strings.Contains(def, "+ellps=wgs84")
}

func (c CRS) String() string {
	return c.ID
}

func lookupDef(id string, defs map[string]string) (string, bool) {
	if len(defs) == 0 {
		return "", false
	}
	if def, ok := defs[id]; ok {
		return def, true
	}
	if code, ok := epsgCode(id); ok {
		if def, ok := defs[fmt.Sprintf("EPSG:%d", code)]; ok {
			return def, true
		}
	}

	return "", false
}

func epsgCode(id string) (int, bool) {
	s := strings.TrimSpace(id)
	if len(s) > 5 && strings.EqualFold(s[:5], "EPSG:") {
		s = s[5:]
	}

	code, err := strconv.Atoi(s)
	if err != nil || code <= 0 {
		return 0, false
	}

	return code, true
}

func epsgDefinition(code int) (string, bool) {
	if def, ok := builtinDefs[code]; ok {
		return def, true
	}

	switch {
	case code >= 32601 && code <= 32660:
		return fmt.Sprintf("+proj=utm +zone=%d +datum=WGS84 +units=m +no_defs", code-32600), true
	case code >= 32701 && code <= 32760:
		return fmt.Sprintf("+proj=utm +zone=%d +south +datum=WGS84 +units=m +no_defs", code-32700), true
	}

	return "", false
}

func isWKT(s string) bool {
	upper := strings.ToUpper(s)
	for _, prefix := range []string{"PROJCS[", "GEOGCS[", "PROJCRS[", "GEOGCRS["} {
		if strings.HasPrefix(upper, prefix) {
			return true
		}
	}

	return false
}

// Transformer reprojects a single coordinate.
type Transformer func(x, y float64) (float64, float64, error)

func identity(x, y float64) (float64, float64, error) {
	return x, y, nil
}

// NewTransformer builds a reprojection function from src to dst.
// Geographic WGS 84 on both sides yields the identity.
func NewTransformer(src, dst CRS) (Transformer, error) {
	if src.IsWGS84() && dst.IsWGS84() {
		return identity, nil
	}

	srcSR, err := proj.Parse(src.Def)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", src.ID, err)
	}
	dstSR, err := proj.Parse(dst.Def)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", dst.ID, err)
	}

	fwd, err := srcSR.NewTransform(dstSR)
	if err != nil {
		return nil, fmt.Errorf("transform %s -> %s: %w", src.ID, dst.ID, err)
	}

	return func(x, y float64) (float64, float64, error) {
		return fwd(x, y)
	}, nil
}
