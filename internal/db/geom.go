package db

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/saviobatista/bike-logger/internal/types"
)

// pointEWKT renders a WGS84 point for a ::geometry cast, or NULL when either coordinate is missing
func pointEWKT(lat, lng *float64) any {
	if lat == nil || lng == nil {
		return nil
	}
	return fmt.Sprintf("SRID=4326;POINT(%s %s)", ftoa(*lng), ftoa(*lat))
}

// envelopeEWKT renders a bounding box as a polygon for a ::geometry cast
func envelopeEWKT(b *types.Bounds) any {
	if b == nil {
		return nil
	}
	minX, minY := ftoa(b.SouthWest.Lng), ftoa(b.SouthWest.Lat)
	maxX, maxY := ftoa(b.NorthEast.Lng), ftoa(b.NorthEast.Lat)
	return fmt.Sprintf("SRID=4326;POLYGON((%s %s,%s %s,%s %s,%s %s,%s %s))",
		minX, minY, minX, maxY, maxX, maxY, maxX, minY, minX, minY)
}

// jsonb passes raw JSON as text. lib/pq would send []byte as bytea.
func jsonb(raw json.RawMessage, fallback string) any {
	if len(raw) == 0 {
		if fallback == "" {
			return nil
		}
		return fallback
	}
	return string(raw)
}

func ftoa(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
