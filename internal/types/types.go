package types

import (
	"encoding/json"
	"time"
)

// Zone sources
const (
	ZoneSourceService  = "zone-service"
	ZoneSourceFlexzone = "flexzone"
)

// Point is a WGS84 position
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Bounds is a city bounding box
type Bounds struct {
	SouthWest Point `json:"south_west"`
	NorthEast Point `json:"north_east"`
}

// Country represents an operator domain
type Country struct {
	Domain             string  `json:"domain"`
	Name               *string `json:"name"`
	CountryCode        *string `json:"country_code"`
	CountryName        *string `json:"country_name"`
	Timezone           *string `json:"timezone"`
	Currency           *string `json:"currency"`
	Hotline            *string `json:"hotline"`
	Email              *string `json:"email"`
	Website            *string `json:"website"`
	Terms              *string `json:"terms"`
	Policy             *string `json:"policy"`
	Pricing            *string `json:"pricing"`
	OperatorAddress    *string `json:"operator_address"`
	CountryCallingCode *string `json:"country_calling_code"`
}

// City represents a city served by a domain
type City struct {
	UID           int64    `json:"uid"`
	Domain        string   `json:"domain"`
	Name          *string  `json:"name"`
	Alias         *string  `json:"alias"`
	Lat           *float64 `json:"lat"`
	Lng           *float64 `json:"lng"`
	Zoom          *int     `json:"zoom"`
	Bounds        *Bounds  `json:"bounds"`
	RefreshRateMS *int     `json:"refresh_rate_ms"`
	Website       *string  `json:"website"`
}

// Place represents a docking station or a free-floating spot
type Place struct {
	UID                  int64    `json:"uid"`
	CityUID              int64    `json:"city_uid"`
	Name                 *string  `json:"name"`
	Number               *int64   `json:"number"`
	Spot                 *bool    `json:"spot"`
	TerminalType         *string  `json:"terminal_type"`
	Lat                  *float64 `json:"lat"`
	Lng                  *float64 `json:"lng"`
	Maintenance          *bool    `json:"maintenance"`
	ActivePlace          *int     `json:"active_place"`
	Bike                 *bool    `json:"bike"`
	BookedBikes          *int     `json:"booked_bikes"`
	Bikes                *int     `json:"bikes"`
	BikesAvailableToRent *int     `json:"bikes_available_to_rent"`
	BikeRacks            *int     `json:"bike_racks"`
	FreeRacks            *int     `json:"free_racks"`
	SpecialRacks         *int     `json:"special_racks"`
	FreeSpecialRacks     *int     `json:"free_special_racks"`
	RackLocks            *bool    `json:"rack_locks"`
	PlaceType            *string  `json:"place_type"`
	Address              *string  `json:"address"`
}

// Bike holds the slowly changing attributes of a bike
type Bike struct {
	Number        string    `json:"number"`
	BoardComputer *int64    `json:"boardcomputer"`
	TypeID        *string   `json:"bike_type_id"`
	ElectricLock  *bool     `json:"electric_lock"`
	LockTypes     []string  `json:"lock_types"`
	SeenAt        time.Time `json:"seen_at"`
}

// VehicleType describes a bike type
type VehicleType struct {
	ID             string   `json:"vehicle_type_id"`
	Name           *string  `json:"name"`
	FormFactor     *string  `json:"form_factor"`
	PropulsionType *string  `json:"propulsion_type"`
	MaxRangeMeters *float64 `json:"max_range_meters"`
}

// Zone is a geospatial zone attached to a city
type Zone struct {
	ID         string          `json:"zone_id"`
	CityUID    int64           `json:"city_uid"`
	Source     string          `json:"zone_source"`
	Type       *string         `json:"zone_type"`
	Name       *string         `json:"name"`
	Geometry   json.RawMessage `json:"geometry"`
	Properties json.RawMessage `json:"properties"`
}

// Snapshot is one poll cycle's observation batch
type Snapshot struct {
	ID        int64           `json:"snapshot_id"`
	FetchedAt time.Time       `json:"fetched_at"`
	Domain    string          `json:"domain"`
	Source    string          `json:"source"`
	RawJSON   json.RawMessage `json:"raw_json,omitempty"`
}

// CityStatus is a per-snapshot city observation
type CityStatus struct {
	CityUID        int64           `json:"city_uid"`
	BookedBikes    *int            `json:"booked_bikes"`
	SetPointBikes  *int            `json:"set_point_bikes"`
	AvailableBikes *int            `json:"available_bikes"`
	BikeTypes      json.RawMessage `json:"bike_types"`
}

// PlaceStatus is a per-snapshot place observation
type PlaceStatus struct {
	PlaceUID             int64 `json:"place_uid"`
	BookedBikes          *int  `json:"booked_bikes"`
	Bikes                *int  `json:"bikes"`
	BikesAvailableToRent *int  `json:"bikes_available_to_rent"`
	BikeRacks            *int  `json:"bike_racks"`
	FreeRacks            *int  `json:"free_racks"`
	SpecialRacks         *int  `json:"special_racks"`
	FreeSpecialRacks     *int  `json:"free_special_racks"`
}

// BikeStatus is a per-snapshot bike observation
type BikeStatus struct {
	BikeNumber     string   `json:"bike_number"`
	PlaceUID       *int64   `json:"place_uid"`
	Active         *bool    `json:"active"`
	State          *string  `json:"state"`
	PedelecBattery *int     `json:"pedelec_battery"`
	BatteryPackPct *int     `json:"battery_pack_pct"`
	Lat            *float64 `json:"lat"`
	Lng            *float64 `json:"lng"`
}

// SnapshotGap records an abnormal interval between two snapshots of a domain
type SnapshotGap struct {
	Domain            string    `json:"domain"`
	GapStart          time.Time `json:"gap_start"`
	GapEnd            time.Time `json:"gap_end"`
	GapSeconds        int64     `json:"gap_seconds"`
	ExpectedIntervalS int64     `json:"expected_interval_s"`
	MissingCount      int64     `json:"missing_count"`
}

// Observation is one bike_status row as seen by movement inference
type Observation struct {
	SnapshotID int64     `json:"snapshot_id"`
	FetchedAt  time.Time `json:"fetched_at"`
	PlaceUID   *int64    `json:"place_uid"`
	Position   *Point    `json:"position"`
	Spot       bool      `json:"spot"`
}

// BikeMovement links two consecutive observations of a bike at different places
type BikeMovement struct {
	BikeNumber       string      `json:"bike_number"`
	Start            Observation `json:"start"`
	End              Observation `json:"end"`
	DistanceM        *int64      `json:"distance_m"`
	DurationSeconds  int64       `json:"duration_seconds"`
	StationToStation bool        `json:"is_station_to_station"`
	Confidence       int         `json:"confidence"`
}

// CycleResult summarizes one committed ingestion cycle
type CycleResult struct {
	SnapshotID    int64        `json:"snapshot_id"`
	FetchedAt     time.Time    `json:"fetched_at"`
	Domain        string       `json:"domain"`
	CityCount     int          `json:"cities"`
	PlaceCount    int          `json:"places"`
	BikeCount     int          `json:"bikes"`
	MovementCount int64        `json:"movements"`
	ZoneCount     int          `json:"zones"`
	Gap           *SnapshotGap `json:"gap,omitempty"`
}
