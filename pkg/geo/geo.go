package geo

import "math"

// Point is a WGS84 coordinate. Longitude first, matching the wire order of
// the routing responses we consume.
type Point struct {
	Lon float64 `json:"lon"`
	Lat float64 `json:"lat"`
}

const earthRadiusMeters = 6378137

func toRad(deg float64) float64 { return deg * math.Pi / 180 }
func toDeg(rad float64) float64 { return rad * 180 / math.Pi }

// MetersBetween returns the haversine distance between two coordinates.
func MetersBetween(a, b Point) float64 {
	dLat := toRad(b.Lat - a.Lat)
	dLon := toRad(b.Lon - a.Lon)
	lat1 := toRad(a.Lat)
	lat2 := toRad(b.Lat)

	sinDlat := math.Sin(dLat / 2)
	sinDlon := math.Sin(dLon / 2)
	h := sinDlat*sinDlat + math.Cos(lat1)*math.Cos(lat2)*sinDlon*sinDlon
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return earthRadiusMeters * c
}

// Bearing returns the initial great-circle bearing from a to b in degrees,
// normalized to [0, 360).
func Bearing(a, b Point) float64 {
	dLon := toRad(b.Lon - a.Lon)
	y := math.Sin(dLon) * math.Cos(toRad(b.Lat))
	x := math.Cos(toRad(a.Lat))*math.Sin(toRad(b.Lat)) -
		math.Sin(toRad(a.Lat))*math.Cos(toRad(b.Lat))*math.Cos(dLon)
	brng := toDeg(math.Atan2(y, x))
	return math.Mod(brng+360, 360)
}

// HeadingDiff returns the absolute difference between two headings in
// degrees, normalized to [0, 180].
func HeadingDiff(a, b float64) float64 {
	return math.Abs(math.Mod(a-b+540, 360) - 180)
}

// MinDistanceToPath returns the minimum haversine distance from p to any
// vertex of the path. Vertex distance is enough at the densities routing
// geometries come in; segment projection is not worth the spherical math.
func MinDistanceToPath(p Point, path []Point) float64 {
	nearest := math.Inf(1)
	for _, v := range path {
		if d := MetersBetween(p, v); d < nearest {
			nearest = d
		}
	}
	return nearest
}

// DecodePolyline decodes an encoded polyline (precision 5, the Google
// variant) into lon/lat points. The input comes off the wire, so a
// truncated varint ends decoding with the points recovered so far instead
// of reading past the string.
func DecodePolyline(s string) []Point {
	var (
		index, lat, lng int
		points          []Point
	)
	const factor = 1e5

	for index < len(s) {
		dlat, next, ok := decodeVarint(s, index)
		if !ok {
			break
		}
		dlng, after, ok := decodeVarint(s, next)
		if !ok {
			break
		}
		index = after
		lat += dlat
		lng += dlng

		points = append(points, Point{
			Lon: float64(lng) / factor,
			Lat: float64(lat) / factor,
		})
	}
	return points
}

// decodeVarint reads one zigzag varint starting at index. ok is false when
// the string ends while a continuation bit is still set.
func decodeVarint(s string, index int) (val, next int, ok bool) {
	var shift, result int
	for {
		if index >= len(s) {
			return 0, index, false
		}
		b := int(s[index]) - 63
		index++
		result |= (b & 0x1f) << shift
		shift += 5
		if b < 0x20 {
			break
		}
	}
	if result&1 != 0 {
		return ^(result >> 1), index, true
	}
	return result >> 1, index, true
}
