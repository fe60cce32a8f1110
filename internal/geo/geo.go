// Package geo provides the distance and containment tests used by auto-assignment.
package geo

import (
	"math"

	"github.com/streetfix/resolve-service/internal/domain"
)

const earthRadiusKm = 6371.0

// UnknownDistanceKm is returned when either coordinate is missing.
const UnknownDistanceKm = 9999.0

// DistanceKm returns the great-circle distance between a and b using the haversine formula.
func DistanceKm(a, b *domain.Coordinate) float64 {
	if a == nil || b == nil {
		return UnknownDistanceKm
	}
	dLat := toRadians(b.Latitude - a.Latitude)
	dLng := toRadians(b.Longitude - a.Longitude)
	lat1 := toRadians(a.Latitude)
	lat2 := toRadians(b.Latitude)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return earthRadiusKm * 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// Contains reports whether point lies inside polygon (ray casting, longitude as x).
// Polygons with fewer than three vertices contain nothing.
func Contains(polygon domain.Zone, point domain.Coordinate) bool {
	if len(polygon) < 3 {
		return false
	}
	inside := false
	x, y := point.Longitude, point.Latitude
	for i, j := 0, len(polygon)-1; i < len(polygon); j, i = i, i+1 {
		xi, yi := polygon[i].Longitude, polygon[i].Latitude
		xj, yj := polygon[j].Longitude, polygon[j].Latitude
		if (yi > y) != (yj > y) && x < (xj-xi)*(y-yi)/(yj-yi)+xi {
			inside = !inside
		}
	}
	return inside
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}
