// Package geo builds PostGIS expressions for geography(Point, 4326) columns.
//
// Every builder binds its numeric inputs through a dbx.Args collector and
// returns only the SQL fragment, so values never end up inlined in the query
// text. Column names are checked against a plain identifier pattern.
package geo

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/dmitrijs2005/petmatch/internal/common"
	"github.com/dmitrijs2005/petmatch/internal/dbx"
)

// SRID is WGS 84, the reference system of every stored point.
const SRID = 4326

var identifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// Point is a longitude/latitude pair in degrees.
type Point struct {
	Longitude float64 `json:"longitude"`
	Latitude  float64 `json:"latitude"`
}

// Validate rejects NaN, infinities and out-of-range coordinates.
func (p Point) Validate() error {
	if err := finite("longitude", p.Longitude); err != nil {
		return err
	}
	if err := finite("latitude", p.Latitude); err != nil {
		return err
	}
	if p.Longitude < -180 || p.Longitude > 180 {
		return common.Validationf("longitude %v out of range [-180, 180]", p.Longitude)
	}
	if p.Latitude < -90 || p.Latitude > 90 {
		return common.Validationf("latitude %v out of range [-90, 90]", p.Latitude)
	}
	return nil
}

func finite(name string, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return common.Validationf("%s must be a finite number", name)
	}
	return nil
}

func column(name string) (string, error) {
	if !identifier.MatchString(name) {
		return "", common.Validationf("invalid column %q", name)
	}
	return name, nil
}

func point(args *dbx.Args, p Point) string {
	return fmt.Sprintf("ST_SetSRID(ST_MakePoint(%s, %s), %d)", args.Add(p.Longitude), args.Add(p.Latitude), SRID)
}

// MakePoint returns an expression constructing a geography point, suitable as
// an INSERT or UPDATE value.
func MakePoint(args *dbx.Args, lon, lat float64) (string, error) {
	p := Point{Longitude: lon, Latitude: lat}
	if err := p.Validate(); err != nil {
		return "", err
	}
	return point(args, p) + "::geography", nil
}

// WithinRadius returns a boolean predicate that holds when col lies within
// meters of (lon, lat).
func WithinRadius(args *dbx.Args, col string, lon, lat, meters float64) (string, error) {
	c, err := column(col)
	if err != nil {
		return "", err
	}
	p := Point{Longitude: lon, Latitude: lat}
	if err := p.Validate(); err != nil {
		return "", err
	}
	if err := finite("radius", meters); err != nil {
		return "", err
	}
	if meters < 0 {
		return "", common.Validationf("radius must not be negative")
	}
	return fmt.Sprintf("ST_DWithin(%s, %s::geography, %s)", c, point(args, p), args.Add(meters)), nil
}

// Distance returns an expression evaluating to the distance in meters between
// col and (lon, lat).
func Distance(args *dbx.Args, col string, lon, lat float64) (string, error) {
	c, err := column(col)
	if err != nil {
		return "", err
	}
	p := Point{Longitude: lon, Latitude: lat}
	if err := p.Validate(); err != nil {
		return "", err
	}
	return fmt.Sprintf("ST_Distance(%s, %s::geography)", c, point(args, p)), nil
}

// ExtractCoordinates returns two select expressions yielding the longitude and
// latitude of col. Both are NULL when col is NULL.
func ExtractCoordinates(col string) (string, error) {
	c, err := column(col)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("ST_X(%[1]s::geometry) AS longitude, ST_Y(%[1]s::geometry) AS latitude", c), nil
}

// ParseFloat parses a numeric request parameter, reporting malformed input as
// a validation error naming the parameter.
func ParseFloat(name, raw string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0, common.Validationf("%s must be a number", name)
	}
	if err := finite(name, v); err != nil {
		return 0, err
	}
	return v, nil
}

// ParsePoint parses an optional coordinate pair. Both values empty yields
// nil; exactly one empty is a validation error.
func ParsePoint(lonRaw, latRaw string) (*Point, error) {
	lonRaw, latRaw = strings.TrimSpace(lonRaw), strings.TrimSpace(latRaw)
	if lonRaw == "" && latRaw == "" {
		return nil, nil
	}
	if lonRaw == "" || latRaw == "" {
		return nil, common.Validationf("longitude and latitude must be given together")
	}
	lon, err := ParseFloat("longitude", lonRaw)
	if err != nil {
		return nil, err
	}
	lat, err := ParseFloat("latitude", latRaw)
	if err != nil {
		return nil, err
	}
	p := &Point{Longitude: lon, Latitude: lat}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}
