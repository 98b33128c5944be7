// Copyright 2017 Pilosa Corp.
//
// Redistribution and use in source and binary forms, with or without
// modification, are permitted provided that the following conditions
// are met:
//
// 1. Redistributions of source code must retain the above copyright
// notice, this list of conditions and the following disclaimer.
//
// 2. Redistributions in binary form must reproduce the above copyright
// notice, this list of conditions and the following disclaimer in the
// documentation and/or other materials provided with the distribution.
//
// 3. Neither the name of the copyright holder nor the names of its
// contributors may be used to endorse or promote products derived
// from this software without specific prior written permission.
//
// THIS SOFTWARE IS PROVIDED BY THE COPYRIGHT HOLDERS AND
// CONTRIBUTORS "AS IS" AND ANY EXPRESS OR IMPLIED WARRANTIES,
// INCLUDING, BUT NOT LIMITED TO, THE IMPLIED WARRANTIES OF
// MERCHANTABILITY AND FITNESS FOR A PARTICULAR PURPOSE ARE
// DISCLAIMED. IN NO EVENT SHALL THE COPYRIGHT HOLDER OR
// CONTRIBUTORS BE LIABLE FOR ANY DIRECT, INDIRECT, INCIDENTAL,
// SPECIAL, EXEMPLARY, OR CONSEQUENTIAL DAMAGES (INCLUDING,
// BUT NOT LIMITED TO, PROCUREMENT OF SUBSTITUTE GOODS OR
// SERVICES; LOSS OF USE, DATA, OR PROFITS; OR BUSINESS
// INTERRUPTION) HOWEVER CAUSED AND ON ANY THEORY OF LIABILITY,
// WHETHER IN CONTRACT, STRICT LIABILITY, OR TORT (INCLUDING
// NEGLIGENCE OR OTHERWISE) ARISING IN ANY WAY OUT OF THE USE
// OF THIS SOFTWARE, EVEN IF ADVISED OF THE POSSIBILITY OF SUCH
// DAMAGE.

package bikeshare

import (
	"sort"

	"github.com/pkg/errors"
)

// Contract names registered by NewDefaultRegistry.
const (
	ContractNeighbourhoods                = "neighbourhoods"
	ContractStations                      = "stations"
	ContractStationsEnriched              = "stations_neighbourhoods"
	ContractInstitutions                  = "institutions"
	ContractInstitutionsEnriched          = "institutions_neighbourhoods"
	ContractTransitStops                  = "transit_stops"
	ContractTransitStopsEnriched          = "transit_stops_neighbourhoods"
	ContractPOIs                          = "points_of_interest"
	ContractPOIsEnriched                  = "points_of_interest_neighbourhoods"
	ContractCulturalHotspots              = "cultural_hotspots"
	ContractCulturalHotspotsEnriched      = "cultural_hotspots_neighbourhoods"
	ContractDemographics                  = "demographics"
	ContractNeighbourhoodAggregate        = "neighbourhood_aggregate"
	ContractNeighbourhoodAggregateReduced = "neighbourhood_aggregate_reduced"
	ContractStationStats                  = "station_stats"
	ContractStationStatsReduced           = "station_stats_reduced"
	ContractTripsRaw                      = "trips_raw"
	ContractTrips                         = "trips"
	ContractTripsStations                 = "trips_stations"
	ContractStationHourly                 = "station_hourly"
	ContractAreaHourly                    = "area_hourly"
)

// Registry holds the contracts of a pipeline run. It is built once at
// startup and passed by reference to every stage; it is not modified after
// construction.
type Registry struct {
	contracts map[string]*Contract
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{contracts: make(map[string]*Contract)}
}

// Register adds c. Registering a name twice is an error.
func (r *Registry) Register(cs ...*Contract) error {
	for _, c := range cs {
		if _, ok := r.contracts[c.Name]; ok {
			return errors.Errorf("contract '%s' registered twice", c.Name)
		}
		r.contracts[c.Name] = c
	}
	return nil
}

// Get returns the named contract.
func (r *Registry) Get(name string) (*Contract, error) {
	c, ok := r.contracts[name]
	if !ok {
		return nil, errors.Errorf("unknown contract '%s'", name)
	}
	return c, nil
}

// Validate checks t against the named contract.
func (r *Registry) Validate(name string, t *Table) error {
	c, err := r.Get(name)
	if err != nil {
		return err
	}
	return c.Validate(t)
}

// Conform selects the named contract's columns from t and validates them.
func (r *Registry) Conform(name string, t *Table) (*Table, error) {
	c, err := r.Get(name)
	if err != nil {
		return nil, err
	}
	return c.Conform(t)
}

// Contracts returns every registered contract sorted by name.
func (r *Registry) Contracts() []*Contract {
	ret := make([]*Contract, 0, len(r.contracts))
	for _, c := range r.contracts {
		ret = append(ret, c)
	}
	sort.Slice(ret, func(i, j int) bool { return ret[i].Name < ret[j].Name })
	return ret
}

// RegistryOptions parameterizes the default contracts.
type RegistryOptions struct {
	// ValidYears is the set of years trip start times must fall in.
	ValidYears []int
}

// DefaultValidYears are the trip years the pipeline accepts unless
// configured otherwise.
var DefaultValidYears = []int{2021, 2022}

var weekdays = InSet("Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday")

// NewDefaultRegistry builds the contracts of every dataset the pipeline reads
// or produces.
func NewDefaultRegistry(opts RegistryOptions) (*Registry, error) {
	years := opts.ValidYears
	if len(years) == 0 {
		years = DefaultValidYears
	}
	lat := InRange(-90, 90)
	lon := InRange(-180, 180)
	flag := InSet(int64(0), int64(1))
	userTypes := InSet(AnnualMember, CasualMember)

	neighbourhoods := NewContract(ContractNeighbourhoods,
		Col(AreaID, Integer).Uniq(),
		Col(AreaShortCode, String).Null(),
		Col(AreaLongCode, String).Null(),
		Col(AreaName, String).Uniq(),
		Col(ShapeArea, Float).Allow(NonNegative()),
		Col(AreaLatitude, Float).Allow(lat),
		Col(AreaLongitude, Float).Allow(lon),
		Col(GeometryColumn, GeometryType),
	)

	// enrichment appends the containing polygon's name and area
	tagged := []Column{Col(AreaName, String), Col(ShapeArea, Float).Allow(NonNegative())}

	stations := NewContract(ContractStations,
		Col(StationID, Integer).Uniq(),
		Col(Name, String).Uniq(),
		Col(PhysicalConfiguration, String).Null(),
		Col(Lat, Float).Allow(lat),
		Col(Lon, Float).Allow(lon),
		Col(Altitude, Float).Null(),
		Col(Address, String).Null(),
		Col(Capacity, Integer).Allow(NonNegative()),
		Col(PhysicalKey, Integer).Allow(flag),
		Col(TransitCard, Integer).Allow(flag),
		Col(CreditCard, Integer).Allow(flag),
		Col(Phone, Integer).Allow(flag),
	)
	institutions := NewContract(ContractInstitutions,
		Col(InstitutionID, Integer).Uniq(),
		Col(InstitutionName, String).Uniq(),
		Col(Lat, Float).Allow(lat),
		Col(Lon, Float).Allow(lon),
	)
	transitStops := NewContract(ContractTransitStops,
		Col(StopID, Integer).Uniq(),
		Col(StopCode, Integer).Null(),
		Col(StopName, String),
		Col(StopLat, Float).Allow(lat),
		Col(StopLon, Float).Allow(lon),
		Col(WheelchairBoarding, Integer).Null().Allow(InSet(int64(0), int64(1), int64(2))),
	)
	pois := NewContract(ContractPOIs,
		Col(ID, Integer).Uniq(),
		Col(Name, String).Uniq(),
		Col(Category, String).Null(),
		Col(POILatitude, Float).Allow(lat),
		Col(POILongitude, Float).Allow(lon),
	)
	hotspots := NewContract(ContractCulturalHotspots,
		Col(ID, Integer).Uniq(),
		Col(Name, String),
		Col(POILatitude, Float).Allow(lat),
		Col(POILongitude, Float).Allow(lon),
	)
	demographics := NewContract(ContractDemographics,
		Col(AreaName, String).Uniq(),
		Col(Population, String).Null(),
		Col(Youth15To24, String).Null(),
		Col(WorkingAge25To54, String).Null(),
	)

	count := func(name string) Column { return Col(name, Integer).Allow(NonNegative()) }
	neighAgg := NewContract(ContractNeighbourhoodAggregate,
		Col(AreaName, String).Uniq(),
		Col(NeighShapeArea, Float).Allow(NonNegative()),
		Col(NeighAreaLatitude, Float).Allow(lat),
		Col(NeighAreaLongitude, Float).Allow(lon),
		count(NeighStations),
		count(NeighTransitStops),
		count(NeighCollegesUnivs),
		count(NeighCulturalAttractions),
		count(NeighPlacesOfInterest),
		Col(NeighPopulation, Float).Null().Allow(NonNegative()),
		Col(NeighYouth15To24, Float).Null().Allow(NonNegative()),
		Col(NeighWorkingAge25To54, Float).Null().Allow(NonNegative()),
		Col(GeometryColumn, GeometryType),
	)
	neighAggReduced := neighAgg.Without(ContractNeighbourhoodAggregateReduced,
		NeighStations, NeighTransitStops, NeighCulturalAttractions, NeighPlacesOfInterest,
		NeighPopulation, NeighYouth15To24, NeighWorkingAge25To54)

	stationsEnriched := stations.Extend(ContractStationsEnriched, tagged...)
	stationStats := func(name string, agg *Contract) *Contract {
		return stationsEnriched.Without(name, ShapeArea).
			Extend(name, agg.Without("", AreaName, GeometryColumn).Columns...)
	}

	tripsRaw := NewContract(ContractTripsRaw,
		Col(TripID, Integer),
		Col(TripDuration, Integer).Allow(NonNegative()),
		Col(StartStationID, Integer).Null(),
		Col(StartStationName, String).Null(),
		Col(StartTime, Timestamp).Allow(YearIn(years...)),
		Col(EndStationID, Integer).Null(),
		Col(EndStationName, String).Null(),
		Col(EndTime, Timestamp).Null(),
		Col(BikeID, Integer).Null(),
		Col(UserType, String).Allow(userTypes),
	)
	trips := tripsRaw.Extend(ContractTrips,
		Col(StartStationName, String),
		Col(StartYear, Integer).Allow(InSet(intsToValues(years)...)),
		Col(StartMonth, Integer).Allow(InRange(1, 12)),
		Col(StartDay, Integer).Allow(InRange(1, 31)),
		Col(StartHour, Integer).Allow(InRange(0, 23)),
		Col(StartWeekday, String).Allow(weekdays),
		Col(EndYear, Integer).Null(),
		Col(EndMonth, Integer).Null().Allow(InRange(1, 12)),
		Col(EndDay, Integer).Null().Allow(InRange(1, 31)),
		Col(EndHour, Integer).Null().Allow(InRange(0, 23)),
		Col(EndWeekday, String).Null().Allow(weekdays),
	).WithKey(TripID, StartTime)

	sourceCols := []Column{
		Col(SourceFileColumn, String),
		Col(CSVFileColumn, String),
		Col(DownloadedColumn, Boolean),
		Col(LastModifiedColumn, Timestamp).Null(),
	}

	statsFull := stationStats(ContractStationStats, neighAgg)
	statsReduced := stationStats(ContractStationStatsReduced, neighAggReduced)

	stationHourly := NewContract(ContractStationHourly,
		Col(StationName, String),
		Col(Year, Integer),
		Col(Month, Integer).Allow(InRange(1, 12)),
		Col(Day, Integer).Allow(InRange(1, 31)),
		Col(Hour, Integer).Allow(InRange(0, 23)),
		Col(UserType, String).Allow(userTypes),
		Col(StationType, String).Allow(InSet(StationTypeStart, StationTypeEnd)),
		Col(NumTrips, Integer).Allow(InRange(1, 1<<62)),
		Col(DurationMin, Float),
		Col(DurationMedian, Float),
		Col(DurationMean, Float),
		Col(DurationMax, Float),
	).Extend(ContractStationHourly, statsFull.Without("", Name).Columns...).
		Extend(ContractStationHourly, sourceCols...).
		WithKey(SourceFileColumn, StationName, Year, Month, Day, Hour, UserType, StationType)

	tripsStations := trips.Extend(ContractTripsStations, statsReduced.Without("", Name).Columns...)

	areaHourly := NewContract(ContractAreaHourly,
		Col(AreaName, String),
		Col(UserType, String).Allow(userTypes),
		Col(StartYear, Integer),
		Col(StartMonth, Integer).Allow(InRange(1, 12)),
		Col(StartWeekday, String).Allow(weekdays),
		Col(StartHour, Integer).Allow(InRange(0, 23)),
		Col(TripDuration, Integer).Allow(NonNegative()),
		Col(NumTrips, Integer).Allow(InRange(1, 1<<62)),
		Col(NumStations, Integer).Allow(NonNegative()),
		Col(NumDocks, Integer).Allow(NonNegative()),
		count(NumTripsPhysicalKey),
		count(NumTripsTransitCard),
		count(NumTripsCreditCard),
		count(NumTripsPhone),
		count(NeighCollegesUnivs),
	).Extend(ContractAreaHourly, sourceCols...).
		WithKey(SourceFileColumn, CSVFileColumn, AreaName, UserType, StartYear, StartMonth, StartWeekday, StartHour)

	r := NewRegistry()
	err := r.Register(
		neighbourhoods,
		stations, stationsEnriched,
		institutions, institutions.Extend(ContractInstitutionsEnriched, tagged...),
		transitStops, transitStops.Extend(ContractTransitStopsEnriched, tagged...),
		pois, pois.Extend(ContractPOIsEnriched, tagged...),
		hotspots, hotspots.Extend(ContractCulturalHotspotsEnriched, tagged...),
		demographics,
		neighAgg, neighAggReduced,
		statsFull, statsReduced,
		tripsRaw, trips, tripsStations,
		stationHourly, areaHourly,
	)
	if err != nil {
		return nil, errors.Wrap(err, "registering default contracts")
	}
	return r, nil
}

func intsToValues(is []int) []interface{} {
	ret := make([]interface{}, len(is))
	for i, v := range is {
		ret[i] = int64(v)
	}
	return ret
}
