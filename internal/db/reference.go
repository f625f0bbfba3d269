package db

import (
	"context"
	"fmt"

	"github.com/lib/pq"

	"github.com/saviobatista/bike-logger/internal/types"
)

// UpsertCountry stores the operator domain, last write wins
func (t *Tx) UpsertCountry(ctx context.Context, c types.Country) error {
	query := `
		INSERT INTO country (
			domain, name, country_code, country_name, timezone, currency, hotline,
			email, website, terms, policy, pricing, operator_address, country_calling_code
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (domain) DO UPDATE SET
			name = EXCLUDED.name,
			country_code = EXCLUDED.country_code,
			country_name = EXCLUDED.country_name,
			timezone = EXCLUDED.timezone,
			currency = EXCLUDED.currency,
			hotline = EXCLUDED.hotline,
			email = EXCLUDED.email,
			website = EXCLUDED.website,
			terms = EXCLUDED.terms,
			policy = EXCLUDED.policy,
			pricing = EXCLUDED.pricing,
			operator_address = EXCLUDED.operator_address,
			country_calling_code = EXCLUDED.country_calling_code
	`
	_, err := t.tx.ExecContext(ctx, query,
		c.Domain, c.Name, c.CountryCode, c.CountryName, c.Timezone, c.Currency, c.Hotline,
		c.Email, c.Website, c.Terms, c.Policy, c.Pricing, c.OperatorAddress, c.CountryCallingCode,
	)
	if err != nil {
		return fmt.Errorf("upsert country %s: %w", c.Domain, err)
	}
	return nil
}

// UpsertCities stores cities, last write wins
func (t *Tx) UpsertCities(ctx context.Context, cities []types.City) error {
	query := `
		INSERT INTO city (
			city_uid, domain, name, alias, lat, lng, zoom, bounds, refresh_rate_ms, website
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8::geometry, $9, $10)
		ON CONFLICT (city_uid) DO UPDATE SET
			domain = EXCLUDED.domain,
			name = EXCLUDED.name,
			alias = EXCLUDED.alias,
			lat = EXCLUDED.lat,
			lng = EXCLUDED.lng,
			zoom = EXCLUDED.zoom,
			bounds = EXCLUDED.bounds,
			refresh_rate_ms = EXCLUDED.refresh_rate_ms,
			website = EXCLUDED.website
	`
	for _, c := range cities {
		_, err := t.tx.ExecContext(ctx, query,
			c.UID, c.Domain, c.Name, c.Alias, c.Lat, c.Lng, c.Zoom,
			envelopeEWKT(c.Bounds), c.RefreshRateMS, c.Website,
		)
		if err != nil {
			return fmt.Errorf("upsert city %d: %w", c.UID, err)
		}
	}
	return nil
}

// UpsertPlaces stores places and their current counters, last write wins
func (t *Tx) UpsertPlaces(ctx context.Context, places []types.Place) error {
	query := `
		INSERT INTO place (
			place_uid, city_uid, name, number, spot, terminal_type, lat, lng, geom,
			maintenance, active_place, bike, booked_bikes, bikes, bikes_available_to_rent,
			bike_racks, free_racks, special_racks, free_special_racks, rack_locks,
			place_type, address
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9::geometry,
			$10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22
		)
		ON CONFLICT (place_uid) DO UPDATE SET
			city_uid = EXCLUDED.city_uid,
			name = EXCLUDED.name,
			number = EXCLUDED.number,
			spot = EXCLUDED.spot,
			terminal_type = EXCLUDED.terminal_type,
			lat = EXCLUDED.lat,
			lng = EXCLUDED.lng,
			geom = EXCLUDED.geom,
			maintenance = EXCLUDED.maintenance,
			active_place = EXCLUDED.active_place,
			bike = EXCLUDED.bike,
			booked_bikes = EXCLUDED.booked_bikes,
			bikes = EXCLUDED.bikes,
			bikes_available_to_rent = EXCLUDED.bikes_available_to_rent,
			bike_racks = EXCLUDED.bike_racks,
			free_racks = EXCLUDED.free_racks,
			special_racks = EXCLUDED.special_racks,
			free_special_racks = EXCLUDED.free_special_racks,
			rack_locks = EXCLUDED.rack_locks,
			place_type = EXCLUDED.place_type,
			address = EXCLUDED.address
	`
	for _, p := range places {
		_, err := t.tx.ExecContext(ctx, query,
			p.UID, p.CityUID, p.Name, p.Number, p.Spot, p.TerminalType, p.Lat, p.Lng,
			pointEWKT(p.Lat, p.Lng),
			p.Maintenance, p.ActivePlace, p.Bike, p.BookedBikes, p.Bikes, p.BikesAvailableToRent,
			p.BikeRacks, p.FreeRacks, p.SpecialRacks, p.FreeSpecialRacks, p.RackLocks,
			p.PlaceType, p.Address,
		)
		if err != nil {
			return fmt.Errorf("upsert place %d: %w", p.UID, err)
		}
	}
	return nil
}

// EnsureVehicleTypes inserts bare vehicle types so bikes can reference them
func (t *Tx) EnsureVehicleTypes(ctx context.Context, ids []string) error {
	for _, id := range ids {
		if _, err := t.tx.ExecContext(ctx,
			"INSERT INTO vehicle_type (vehicle_type_id) VALUES ($1) ON CONFLICT DO NOTHING", id,
		); err != nil {
			return fmt.Errorf("insert vehicle type %s: %w", id, err)
		}
	}
	return nil
}

// UpsertBikes merges bikes. Incoming nulls never erase known attributes,
// the board computer is never replaced once known, first_seen_at is only set
// on insert and last_seen_at always advances.
func (t *Tx) UpsertBikes(ctx context.Context, bikes []types.Bike) error {
	query := `
		INSERT INTO bike (
			bike_number, boardcomputer, bike_type_id, electric_lock, lock_types,
			first_seen_at, last_seen_at
		) VALUES ($1, $2, $3, $4, $5, $6, $6)
		ON CONFLICT (bike_number) DO UPDATE SET
			boardcomputer = COALESCE(bike.boardcomputer, EXCLUDED.boardcomputer),
			bike_type_id = COALESCE(EXCLUDED.bike_type_id, bike.bike_type_id),
			electric_lock = COALESCE(EXCLUDED.electric_lock, bike.electric_lock),
			lock_types = COALESCE(EXCLUDED.lock_types, bike.lock_types),
			last_seen_at = EXCLUDED.last_seen_at
	`
	for _, b := range bikes {
		_, err := t.tx.ExecContext(ctx, query,
			b.Number, b.BoardComputer, b.TypeID, b.ElectricLock, pq.Array(b.LockTypes), b.SeenAt,
		)
		if err != nil {
			return fmt.Errorf("upsert bike %s: %w", b.Number, err)
		}
	}
	return nil
}
