// Package geo holds location helpers and the one-shot location lookup.
package geo

import (
	"fmt"

	"github.com/paulmach/orb"
	orbgeo "github.com/paulmach/orb/geo"
	"github.com/uber/h3-go/v4"

	"vibewalk/pkg/model"
)

// LogResolution is the H3 resolution used when a location must be logged.
// Cells at this resolution are roughly 5 km², coarse enough to keep the
// exact fix out of log files.
const LogResolution = 7

var world = orb.Bound{Min: orb.Point{-180, -90}, Max: orb.Point{180, 90}}

// ToPoint converts coordinates to an orb point (lon, lat order).
func ToPoint(c model.Coordinates) orb.Point {
	return orb.Point{c.Lon, c.Lat}
}

// Validate returns an error if c is not a usable fix.
func Validate(c model.Coordinates) error {
	if !c.Valid() || !world.Contains(ToPoint(c)) {
		return fmt.Errorf("coordinates out of range: lat %v, lon %v", c.Lat, c.Lon)
	}
	return nil
}

// Distance returns the great-circle distance between a and b in meters.
func Distance(a, b model.Coordinates) float64 {
	return orbgeo.Distance(ToPoint(a), ToPoint(b))
}

// Cell returns the H3 cell containing c at LogResolution, or "" if c cannot
// be indexed.
func Cell(c model.Coordinates) string {
	cell, err := h3.LatLngToCell(h3.NewLatLng(c.Lat, c.Lon), LogResolution)
	if err != nil {
		return ""
	}
	return cell.String()
}
