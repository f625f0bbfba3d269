package testutils

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// FeedPlace describes one place of a generated live feed
type FeedPlace struct {
	UID   int64
	Name  string
	Spot  bool
	Lat   float64
	Lng   float64
	Bikes []string
}

// LiveFeed builds a live-feed document with one country and one city holding places
func LiveFeed(domain string, cityUID int64, places ...FeedPlace) json.RawMessage {
	placeList := make([]map[string]any, 0, len(places))
	total := 0
	for _, p := range places {
		bikes := make([]map[string]any, 0, len(p.Bikes))
		for _, n := range p.Bikes {
			bikes = append(bikes, map[string]any{
				"number":          n,
				"bike_type":       196,
				"lock_types":      []string{"frame_lock"},
				"active":          true,
				"state":           "ok",
				"electric_lock":   true,
				"boardcomputer":   1000000 + len(bikes),
				"pedelec_battery": nil,
				"battery_pack":    map[string]any{"percentage": 80},
			})
		}
		total += len(bikes)
		placeList = append(placeList, map[string]any{
			"uid":                     p.UID,
			"name":                    p.Name,
			"number":                  p.UID % 10000,
			"spot":                    p.Spot,
			"terminal_type":           "free",
			"lat":                     p.Lat,
			"lng":                     p.Lng,
			"bike":                    !p.Spot,
			"bikes":                   len(bikes),
			"bikes_available_to_rent": len(bikes),
			"bike_racks":              10,
			"free_racks":              10 - len(bikes),
			"place_type":              "0",
			"rack_locks":              false,
			"maintenance":             false,
			"bike_list":               bikes,
		})
	}

	doc := map[string]any{
		"countries": []map[string]any{{
			"domain":       domain,
			"name":         "nextbike Test",
			"country":      "DE",
			"country_name": "Germany",
			"timezone":     "Europe/Berlin",
			"currency":     "EUR",
			"cities": []map[string]any{{
				"uid":             cityUID,
				"domain":          domain,
				"name":            "Testcity",
				"lat":             50.1109,
				"lng":             8.6821,
				"zoom":            13,
				"refresh_rate":    "10000",
				"available_bikes": total,
				"booked_bikes":    0,
				"set_point_bikes": total,
				"bike_types":      map[string]int{"196": total},
				"bounds": map[string]any{
					"south_west": map[string]float64{"lat": 50.0, "lng": 8.5},
					"north_east": map[string]float64{"lat": 50.2, "lng": 8.8},
				},
				"places": placeList,
			}},
		}},
	}

	raw, err := json.Marshal(doc)
	if err != nil {
		panic(fmt.Sprintf("marshal live feed fixture: %v", err))
	}
	return raw
}

// WaitForCondition waits for a condition to be true with timeout
func WaitForCondition(condition func() bool, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("timeout waiting for condition")
		case <-ticker.C:
			if condition() {
				return nil
			}
		}
	}
}
