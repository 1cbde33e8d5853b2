package utils

import (
	"fmt"
	"math"
)

type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type Bounds struct {
	Northeast Point `json:"northeast"`
	Southwest Point `json:"southwest"`
}

type Polygon []Point

func (p Point) String() string {
	return fmt.Sprintf("%.6f,%.6f", p.Lat, p.Lng)
}

func (p Point) isFinite() bool {
	return !math.IsNaN(p.Lat) && !math.IsNaN(p.Lng) && !math.IsInf(p.Lat, 0) && !math.IsInf(p.Lng, 0)
}

func CalculateBounds(points []Point) *Bounds {
	if len(points) == 0 {
		return nil
	}

	minLat, maxLat := points[0].Lat, points[0].Lat
	minLng, maxLng := points[0].Lng, points[0].Lng

	for _, point := range points {
		if point.Lat < minLat {
			minLat = point.Lat
		}
		if point.Lat > maxLat {
			maxLat = point.Lat
		}
		if point.Lng < minLng {
			minLng = point.Lng
		}
		if point.Lng > maxLng {
			maxLng = point.Lng
		}
	}

	return &Bounds{
		Northeast: Point{Lat: maxLat, Lng: maxLng},
		Southwest: Point{Lat: minLat, Lng: minLng},
	}
}

// IsPointInPolygon uses even-odd ray casting with lng as x and lat as y. The
// ring is implicitly closed. Points exactly on an edge or vertex may land on
// either side depending on vertex order.
func IsPointInPolygon(point Point, polygon Polygon) bool {
	n := len(polygon)
	if n < 3 || !point.isFinite() {
		return false
	}

	x, y := point.Lng, point.Lat
	inside := false

	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		xi, yi := polygon[i].Lng, polygon[i].Lat
		xj, yj := polygon[j].Lng, polygon[j].Lat

		if (yi > y) != (yj > y) {
			xinters := (xj-xi)*(y-yi)/(yj-yi) + xi
			if x < xinters {
				inside = !inside
			}
		}
	}

	return inside
}

// IsPointInCircle is boundary inclusive, so a zero radius contains its own
// center. Negative and NaN radii contain nothing.
func IsPointInCircle(point Point, center Point, radiusMeters float64) bool {
	if !point.isFinite() || !center.isFinite() {
		return false
	}
	if math.IsNaN(radiusMeters) || radiusMeters < 0 {
		return false
	}
	distance := CalculateDistance(center.Lat, center.Lng, point.Lat, point.Lng)
	return distance <= radiusMeters
}
