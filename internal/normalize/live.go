// Package normalize maps provider JSON documents onto the relational entity set.
package normalize

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/saviobatista/bike-logger/internal/types"
)

// ErrMissingCountry is returned when the live feed has no country entry for the requested domain
var ErrMissingCountry = errors.New("no country data returned for domain")

// Live is the normalized content of one live-feed document
type Live struct {
	Country        types.Country
	Cities         []types.City
	CityStatuses   []types.CityStatus
	Places         []types.Place
	PlaceStatuses  []types.PlaceStatus
	Bikes          []types.Bike
	BikeStatuses   []types.BikeStatus
	VehicleTypeIDs []string
}

type liveFeed struct {
	Countries []liveCountry `json:"countries"`
}

type liveCountry struct {
	Domain                flexString `json:"domain"`
	Name                  flexString `json:"name"`
	Country               flexString `json:"country"`
	CountryName           flexString `json:"country_name"`
	Timezone              flexString `json:"timezone"`
	Currency              flexString `json:"currency"`
	Hotline               flexString `json:"hotline"`
	Email                 flexString `json:"email"`
	Website               flexString `json:"website"`
	Terms                 flexString `json:"terms"`
	Policy                flexString `json:"policy"`
	Pricing               flexString `json:"pricing"`
	SystemOperatorAddress flexString `json:"system_operator_address"`
	CountryCallingCode    flexString `json:"country_calling_code"`
	Cities                []liveCity `json:"cities"`
}

type livePoint struct {
	Lat *float64 `json:"lat"`
	Lng *float64 `json:"lng"`
}

type liveBounds struct {
	SouthWest json.RawMessage `json:"south_west"`
	NorthEast json.RawMessage `json:"north_east"`
}

type liveCity struct {
	UID            *int64          `json:"uid"`
	Domain         flexString      `json:"domain"`
	Name           flexString      `json:"name"`
	Alias          flexString      `json:"alias"`
	Lat            *float64        `json:"lat"`
	Lng            *float64        `json:"lng"`
	Zoom           *int            `json:"zoom"`
	Bounds         json.RawMessage `json:"bounds"`
	RefreshRate    flexString      `json:"refresh_rate"`
	Website        flexString      `json:"website"`
	BookedBikes    *int            `json:"booked_bikes"`
	SetPointBikes  *int            `json:"set_point_bikes"`
	AvailableBikes *int            `json:"available_bikes"`
	BikeTypes      json.RawMessage `json:"bike_types"`
	Places         []livePlace     `json:"places"`
}

type livePlace struct {
	UID                  *int64     `json:"uid"`
	Name                 flexString `json:"name"`
	Number               flexString `json:"number"`
	Spot                 *bool      `json:"spot"`
	TerminalType         flexString `json:"terminal_type"`
	Lat                  *float64   `json:"lat"`
	Lng                  *float64   `json:"lng"`
	Maintenance          *bool      `json:"maintenance"`
	ActivePlace          *int       `json:"active_place"`
	Bike                 *bool      `json:"bike"`
	BookedBikes          *int       `json:"booked_bikes"`
	Bikes                *int       `json:"bikes"`
	BikesAvailableToRent *int       `json:"bikes_available_to_rent"`
	BikeRacks            *int       `json:"bike_racks"`
	FreeRacks            *int       `json:"free_racks"`
	SpecialRacks         *int       `json:"special_racks"`
	FreeSpecialRacks     *int       `json:"free_special_racks"`
	RackLocks            *bool      `json:"rack_locks"`
	PlaceType            flexString `json:"place_type"`
	Address              flexString `json:"address"`
	BikeList             []liveBike `json:"bike_list"`
}

type liveBike struct {
	Number         flexString      `json:"number"`
	BikeType       flexString      `json:"bike_type"`
	BoardComputer  *int64          `json:"boardcomputer"`
	ElectricLock   *bool           `json:"electric_lock"`
	LockTypes      []string        `json:"lock_types"`
	Active         *bool           `json:"active"`
	State          flexString      `json:"state"`
	PedelecBattery *float64        `json:"pedelec_battery"`
	BatteryPack    json.RawMessage `json:"battery_pack"`
}

type liveBatteryPack struct {
	Percentage *float64 `json:"percentage"`
}

// LiveFeed normalizes a live-feed document for domain observed at fetchedAt.
// Cities and places without a uid, and bikes without a number, are dropped.
func LiveFeed(raw json.RawMessage, domain string, fetchedAt time.Time) (*Live, error) {
	var feed liveFeed
	if err := json.Unmarshal(raw, &feed); err != nil {
		return nil, fmt.Errorf("decode live feed: %w", err)
	}

	country := findCountry(feed.Countries, domain)
	if country == nil {
		return nil, fmt.Errorf("%w %q", ErrMissingCountry, domain)
	}

	out := &Live{Country: country.toCountry(domain)}
	typeIDs := make(map[string]struct{})
	bikeIndex := make(map[string]int)

	for _, c := range country.Cities {
		if c.UID == nil {
			continue
		}
		out.Cities = append(out.Cities, c.toCity(out.Country.Domain))
		out.CityStatuses = append(out.CityStatuses, types.CityStatus{
			CityUID:        *c.UID,
			BookedBikes:    c.BookedBikes,
			SetPointBikes:  c.SetPointBikes,
			AvailableBikes: c.AvailableBikes,
			BikeTypes:      objectOrEmpty(c.BikeTypes),
		})

		for _, p := range c.Places {
			if p.UID == nil {
				continue
			}
			out.Places = append(out.Places, p.toPlace(*c.UID))
			out.PlaceStatuses = append(out.PlaceStatuses, types.PlaceStatus{
				PlaceUID:             *p.UID,
				BookedBikes:          p.BookedBikes,
				Bikes:                p.Bikes,
				BikesAvailableToRent: p.BikesAvailableToRent,
				BikeRacks:            p.BikeRacks,
				FreeRacks:            p.FreeRacks,
				SpecialRacks:         p.SpecialRacks,
				FreeSpecialRacks:     p.FreeSpecialRacks,
			})

			for _, b := range p.BikeList {
				number := strings.TrimSpace(b.Number.Value)
				if number == "" {
					continue
				}

				typeID := b.BikeType.Ptr()
				if typeID != nil {
					typeIDs[*typeID] = struct{}{}
				}

				bike := types.Bike{
					Number:        number,
					BoardComputer: b.BoardComputer,
					TypeID:        typeID,
					ElectricLock:  b.ElectricLock,
					LockTypes:     b.LockTypes,
					SeenAt:        fetchedAt,
				}
				// A bike listed twice in one document keeps its last entry
				if i, ok := bikeIndex[number]; ok {
					out.Bikes[i] = bike
				} else {
					bikeIndex[number] = len(out.Bikes)
					out.Bikes = append(out.Bikes, bike)
				}

				status := types.BikeStatus{
					BikeNumber:     number,
					PlaceUID:       p.UID,
					Active:         b.Active,
					State:          b.State.Ptr(),
					PedelecBattery: roundPtr(b.PedelecBattery),
					Lat:            p.Lat,
					Lng:            p.Lng,
				}
				var pack liveBatteryPack
				if decodeObject(b.BatteryPack, &pack) {
					status.BatteryPackPct = roundPtr(pack.Percentage)
				}
				out.BikeStatuses = append(out.BikeStatuses, status)
			}
		}
	}

	for id := range typeIDs {
		out.VehicleTypeIDs = append(out.VehicleTypeIDs, id)
	}
	sort.Strings(out.VehicleTypeIDs)

	return out, nil
}

func findCountry(countries []liveCountry, domain string) *liveCountry {
	for i := range countries {
		if strings.EqualFold(countries[i].Domain.Value, domain) {
			return &countries[i]
		}
	}
	return nil
}

func (c liveCountry) toCountry(domain string) types.Country {
	d := c.Domain.Value
	if d == "" {
		d = domain
	}
	return types.Country{
		Domain:             d,
		Name:               c.Name.Ptr(),
		CountryCode:        c.Country.Ptr(),
		CountryName:        c.CountryName.Ptr(),
		Timezone:           c.Timezone.Ptr(),
		Currency:           c.Currency.Ptr(),
		Hotline:            c.Hotline.Ptr(),
		Email:              c.Email.Ptr(),
		Website:            c.Website.Ptr(),
		Terms:              c.Terms.Ptr(),
		Policy:             c.Policy.Ptr(),
		Pricing:            c.Pricing.Ptr(),
		OperatorAddress:    c.SystemOperatorAddress.Ptr(),
		CountryCallingCode: c.CountryCallingCode.Ptr(),
	}
}

func (c liveCity) toCity(countryDomain string) types.City {
	domain := c.Domain.Value
	if domain == "" {
		domain = countryDomain
	}

	city := types.City{
		UID:     *c.UID,
		Domain:  domain,
		Name:    c.Name.Ptr(),
		Alias:   c.Alias.Ptr(),
		Lat:     c.Lat,
		Lng:     c.Lng,
		Zoom:    c.Zoom,
		Website: c.Website.Ptr(),
	}

	// Zero or unparsable refresh rates are stored as NULL
	if ms, ok := c.RefreshRate.Int(); ok && ms != 0 {
		v := int(ms)
		city.RefreshRateMS = &v
	}

	var (
		bounds liveBounds
		sw, ne livePoint
	)
	if decodeObject(c.Bounds, &bounds) &&
		decodeObject(bounds.SouthWest, &sw) && sw.complete() &&
		decodeObject(bounds.NorthEast, &ne) && ne.complete() {
		city.Bounds = &types.Bounds{
			SouthWest: types.Point{Lat: *sw.Lat, Lng: *sw.Lng},
			NorthEast: types.Point{Lat: *ne.Lat, Lng: *ne.Lng},
		}
	}
	return city
}

func (p livePoint) complete() bool {
	return p.Lat != nil && p.Lng != nil
}

func (p livePlace) toPlace(cityUID int64) types.Place {
	place := types.Place{
		UID:                  *p.UID,
		CityUID:              cityUID,
		Name:                 p.Name.Ptr(),
		Spot:                 p.Spot,
		TerminalType:         p.TerminalType.Ptr(),
		Lat:                  p.Lat,
		Lng:                  p.Lng,
		Maintenance:          p.Maintenance,
		ActivePlace:          p.ActivePlace,
		Bike:                 p.Bike,
		BookedBikes:          p.BookedBikes,
		Bikes:                p.Bikes,
		BikesAvailableToRent: p.BikesAvailableToRent,
		BikeRacks:            p.BikeRacks,
		FreeRacks:            p.FreeRacks,
		SpecialRacks:         p.SpecialRacks,
		FreeSpecialRacks:     p.FreeSpecialRacks,
		RackLocks:            p.RackLocks,
		PlaceType:            p.PlaceType.Ptr(),
		Address:              p.Address.Ptr(),
	}
	if n, ok := p.Number.Int(); ok {
		place.Number = &n
	}
	return place
}

func roundPtr(f *float64) *int {
	if f == nil {
		return nil
	}
	v := int(math.Round(*f))
	return &v
}

// objectOrEmpty returns raw when it holds a JSON object and {} otherwise
func objectOrEmpty(raw json.RawMessage) json.RawMessage {
	if !isObject(raw) {
		return json.RawMessage(`{}`)
	}
	return raw
}

// decodeObject decodes raw into v only when raw is a well-formed JSON object.
// Arrays, scalars, null and mistyped objects leave v untouched.
func decodeObject(raw json.RawMessage, v any) bool {
	if !isObject(raw) {
		return false
	}
	return json.Unmarshal(raw, v) == nil
}

func isObject(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && trimmed[0] == '{'
}
