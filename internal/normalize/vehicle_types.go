package normalize

import (
	"encoding/json"
	"fmt"

	"github.com/saviobatista/bike-logger/internal/types"
)

type vehicleTypesFeed struct {
	Data struct {
		VehicleTypes []struct {
			ID             flexString `json:"vehicle_type_id"`
			Name           flexString `json:"name"`
			FormFactor     flexString `json:"form_factor"`
			PropulsionType flexString `json:"propulsion_type"`
			MaxRangeMeters *float64   `json:"max_range_meters"`
		} `json:"vehicle_types"`
	} `json:"data"`
}

// VehicleTypes reads the vehicle_types list of a GBFS vehicle_types document.
// Entries without an id are dropped.
func VehicleTypes(raw json.RawMessage) ([]types.VehicleType, error) {
	if isNull(raw) {
		return nil, nil
	}

	var feed vehicleTypesFeed
	if err := json.Unmarshal(raw, &feed); err != nil {
		return nil, fmt.Errorf("decode vehicle types: %w", err)
	}

	var out []types.VehicleType
	for _, vt := range feed.Data.VehicleTypes {
		id := vt.ID.Ptr()
		if id == nil {
			continue
		}
		out = append(out, types.VehicleType{
			ID:             *id,
			Name:           vt.Name.Ptr(),
			FormFactor:     vt.FormFactor.Ptr(),
			PropulsionType: vt.PropulsionType.Ptr(),
			MaxRangeMeters: vt.MaxRangeMeters,
		})
	}
	return out, nil
}
