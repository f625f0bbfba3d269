// Package movement derives bike movements from consecutive bike_status observations.
package movement

import (
	"math"

	"github.com/saviobatista/bike-logger/internal/types"
)

const earthRadiusM = 6371000.0

// Confidence scores
const (
	ConfidenceStationToStation = 100
	ConfidenceDefault          = 50
)

// Candidate pairs a bike's newest observation with the one before it
type Candidate struct {
	BikeNumber string
	Prev       types.Observation
	Curr       types.Observation
}

// Haversine returns the great-circle distance between a and b in metres
func Haversine(a, b types.Point) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLng := (b.Lng - a.Lng) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusM * math.Asin(math.Min(1, math.Sqrt(h)))
}

// FromCandidate builds a movement when the bike changed place between the two
// observations. It returns false when either place is unknown or both are equal.
func FromCandidate(c Candidate) (types.BikeMovement, bool) {
	if c.Prev.PlaceUID == nil || c.Curr.PlaceUID == nil {
		return types.BikeMovement{}, false
	}
	if *c.Prev.PlaceUID == *c.Curr.PlaceUID {
		return types.BikeMovement{}, false
	}

	m := types.BikeMovement{
		BikeNumber: c.BikeNumber,
		Start:      c.Prev,
		End:        c.Curr,
		Confidence: ConfidenceDefault,
	}

	if c.Prev.Position != nil && c.Curr.Position != nil {
		d := int64(math.Round(Haversine(*c.Prev.Position, *c.Curr.Position)))
		m.DistanceM = &d
	}

	if secs := int64(c.Curr.FetchedAt.Sub(c.Prev.FetchedAt).Seconds()); secs > 0 {
		m.DurationSeconds = secs
	}

	if c.Prev.Spot && c.Curr.Spot {
		m.StationToStation = true
		m.Confidence = ConfidenceStationToStation
	}
	return m, true
}

// Infer returns the movements implied by candidates, preserving their order
func Infer(candidates []Candidate) []types.BikeMovement {
	var out []types.BikeMovement
	for _, c := range candidates {
		if m, ok := FromCandidate(c); ok {
			out = append(out, m)
		}
	}
	return out
}
