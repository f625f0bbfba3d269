package normalize

import (
	"encoding/json"
	"fmt"

	"github.com/saviobatista/bike-logger/internal/types"
)

type featureCollection struct {
	Features []feature `json:"features"`
}

type feature struct {
	ID         flexString      `json:"id"`
	Geometry   json.RawMessage `json:"geometry"`
	Properties json.RawMessage `json:"properties"`
}

type zoneProperties struct {
	FlexzoneID flexString `json:"flexzoneId"`
	Name       flexString `json:"name"`
	Type       flexString `json:"type"`
	Category   flexString `json:"category"`
}

// ZoneFeatures maps a GeoJSON feature collection onto zones of cityUID.
// Features without a resolvable id or without a geometry are skipped and counted.
func ZoneFeatures(raw json.RawMessage, cityUID int64, source string) ([]types.Zone, int, error) {
	var fc featureCollection
	if err := json.Unmarshal(raw, &fc); err != nil {
		return nil, 0, fmt.Errorf("decode %s feature collection: %w", source, err)
	}

	var (
		zones   []types.Zone
		skipped int
	)
	for _, f := range fc.Features {
		props := objectOrEmpty(f.Properties)

		var p zoneProperties
		// Properties that are not an object carry no id or type hints
		_ = json.Unmarshal(props, &p)

		id := firstNonEmpty(f.ID, p.FlexzoneID, p.Name)
		if id == nil || isNull(f.Geometry) {
			skipped++
			continue
		}

		zoneType := p.Type.Ptr()
		if zoneType == nil {
			zoneType = p.Category.Ptr()
		}

		zones = append(zones, types.Zone{
			ID:         *id,
			CityUID:    cityUID,
			Source:     source,
			Type:       zoneType,
			Name:       p.Name.Ptr(),
			Geometry:   f.Geometry,
			Properties: props,
		})
	}
	return zones, skipped, nil
}

func firstNonEmpty(values ...flexString) *string {
	for _, v := range values {
		if p := v.Ptr(); p != nil {
			return p
		}
	}
	return nil
}
