// Package geo holds great-circle helpers for radius search.
package geo

import (
	"math"

	"localdir/internal/domain"
)

const earthRadiusMiles = 3958.8

// DistanceMiles returns the haversine distance between a and b.
func DistanceMiles(a, b domain.Coords) float64 {
	φ1 := a.Lat * math.Pi / 180
	φ2 := b.Lat * math.Pi / 180
	Δφ := (b.Lat - a.Lat) * math.Pi / 180
	Δλ := (b.Lng - a.Lng) * math.Pi / 180
	h := math.Sin(Δφ/2)*math.Sin(Δφ/2) + math.Cos(φ1)*math.Cos(φ2)*math.Sin(Δλ/2)*math.Sin(Δλ/2)
	return earthRadiusMiles * 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// Offset moves c north by dNorth miles and east by dEast miles. Good enough
// for the short distances a radius search deals with.
func Offset(c domain.Coords, dNorth, dEast float64) domain.Coords {
	lat := c.Lat + (dNorth/earthRadiusMiles)*180/math.Pi
	lng := c.Lng + (dEast/(earthRadiusMiles*math.Cos(c.Lat*math.Pi/180)))*180/math.Pi
	return domain.Coords{Lat: lat, Lng: lng}
}

// BoundingBox returns a rectangle holding every point within miles of c.
// Near the poles or across the antimeridian it spans all longitudes.
func BoundingBox(c domain.Coords, miles float64) domain.Box {
	dLat := miles / earthRadiusMiles * 180 / math.Pi
	b := domain.Box{
		MinLat: math.Max(-90, c.Lat-dLat),
		MaxLat: math.Min(90, c.Lat+dLat),
		MinLng: -180,
		MaxLng: 180,
	}
	// longitude degrees per mile grow toward the poles; size for the worse edge
	edge := math.Max(math.Abs(b.MinLat), math.Abs(b.MaxLat))
	if edge >= 89.9 {
		return b
	}
	dLng := miles / (earthRadiusMiles * math.Cos(edge*math.Pi/180)) * 180 / math.Pi
	if c.Lng-dLng < -180 || c.Lng+dLng > 180 {
		return b
	}
	b.MinLng, b.MaxLng = c.Lng-dLng, c.Lng+dLng
	return b
}
