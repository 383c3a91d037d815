package routing

import "github.com/waypoint-labs/fuel-router/geo"

// Traffic levels derived from a segment's own timing. Not a live feed: a
// slow segment on a clear road still classifies as congested.
const (
	TrafficHeavy    = "heavy"
	TrafficModerate = "moderate"
	TrafficLight    = "light"
	TrafficUnknown  = "unknown"
)

// TrafficLevel classifies a segment from its distance in kilometers and
// duration in seconds. Speed below 20 km/h is heavy, below 40 moderate,
// anything faster light. Zero distance is unclassifiable.
func TrafficLevel(distanceKm, durationSec float64) string {
	if distanceKm == 0 || durationSec <= 0 {
		return TrafficUnknown
	}
	speed := distanceKm / (durationSec / 3600)
	switch {
	case speed < 20:
		return TrafficHeavy
	case speed < 40:
		return TrafficModerate
	default:
		return TrafficLight
	}
}

// decodePolyline decodes a Google encoded polyline (1e-5 precision) into
// coordinates. Malformed tails are dropped rather than erroring; partial
// geometry is still useful for the region filter.
func decodePolyline(encoded string) []geo.Coordinate {
	var points []geo.Coordinate
	var lat, lon int64
	i := 0
	for i < len(encoded) {
		dLat, n, ok := decodeVarint(encoded[i:])
		if !ok {
			break
		}
		i += n
		dLon, n, ok := decodeVarint(encoded[i:])
		if !ok {
			break
		}
		i += n
		lat += dLat
		lon += dLon
		points = append(points, geo.Coordinate{
			Latitude:  float64(lat) / 1e5,
			Longitude: float64(lon) / 1e5,
		})
	}
	return points
}

func decodeVarint(s string) (value int64, read int, ok bool) {
	var result int64
	var shift uint
	for i := 0; i < len(s); i++ {
		b := int64(s[i]) - 63
		if b < 0 {
			return 0, 0, false
		}
		result |= (b & 0x1f) << shift
		if b < 0x20 {
			if result&1 != 0 {
				return ^(result >> 1), i + 1, true
			}
			return result >> 1, i + 1, true
		}
		shift += 5
	}
	return 0, 0, false
}
