package bikeshare

// Neighbourhood polygon columns.
const (
	AreaID         = "AREA_ID"
	AreaShortCode  = "AREA_SHORT_CODE"
	AreaLongCode   = "AREA_LONG_CODE"
	AreaName       = "AREA_NAME"
	ShapeArea      = "SHAPE_AREA"
	AreaLatitude   = "AREA_LATITUDE"
	AreaLongitude  = "AREA_LONGITUDE"
	GeometryColumn = "GEOMETRY"
)

// Point dataset columns.
const (
	StationID             = "STATION_ID"
	Name                  = "NAME"
	PhysicalConfiguration = "PHYSICAL_CONFIGURATION"
	Lat                   = "LAT"
	Lon                   = "LON"
	Altitude              = "ALTITUDE"
	Address               = "ADDRESS"
	Capacity              = "CAPACITY"
	PhysicalKey           = "PHYSICALKEY"
	TransitCard           = "TRANSITCARD"
	CreditCard            = "CREDITCARD"
	Phone                 = "PHONE"

	InstitutionID   = "INSTITUTION_ID"
	InstitutionName = "INSTITUTION_NAME"

	StopID             = "STOP_ID"
	StopCode           = "STOP_CODE"
	StopName           = "STOP_NAME"
	StopLat            = "STOP_LAT"
	StopLon            = "STOP_LON"
	WheelchairBoarding = "WHEELCHAIR_BOARDING"

	ID           = "ID"
	Category     = "CATEGORY"
	POILatitude  = "POI_LATITUDE"
	POILongitude = "POI_LONGITUDE"
)

// Demographic profile columns, string encoded with thousands separators.
const (
	Population       = "POPULATION"
	Youth15To24      = "YOUTH_15_24"
	WorkingAge25To54 = "WORKING_AGE_25_54"
)

// Neighbourhood aggregate columns.
const (
	NeighPrefix              = "NEIGH_"
	NeighShapeArea           = "NEIGH_SHAPE_AREA"
	NeighAreaLatitude        = "NEIGH_AREA_LATITUDE"
	NeighAreaLongitude       = "NEIGH_AREA_LONGITUDE"
	NeighStations            = "NEIGH_STATIONS"
	NeighTransitStops        = "NEIGH_TRANSIT_STOPS"
	NeighCollegesUnivs       = "NEIGH_COLLEGES_UNIVS"
	NeighCulturalAttractions = "NEIGH_CULTURAL_ATTRACTIONS"
	NeighPlacesOfInterest    = "NEIGH_PLACES_OF_INTEREST"
	NeighPopulation          = "NEIGH_POPULATION"
	NeighYouth15To24         = "NEIGH_YOUTH_15_24"
	NeighWorkingAge25To54    = "NEIGH_WORKING_AGE_25_54"
)

// Trip columns.
const (
	TripID           = "TRIP_ID"
	TripDuration     = "TRIP_DURATION"
	StartStationID   = "START_STATION_ID"
	StartStationName = "START_STATION_NAME"
	StartTime        = "START_TIME"
	EndStationID     = "END_STATION_ID"
	EndStationName   = "END_STATION_NAME"
	EndTime          = "END_TIME"
	BikeID           = "BIKE_ID"
	UserType         = "USER_TYPE"

	StartYear    = "START_YEAR"
	StartMonth   = "START_MONTH"
	StartDay     = "START_DAY"
	StartHour    = "START_HOUR"
	StartWeekday = "START_WEEKDAY"
	EndYear      = "END_YEAR"
	EndMonth     = "END_MONTH"
	EndDay       = "END_DAY"
	EndHour      = "END_HOUR"
	EndWeekday   = "END_WEEKDAY"
)

// Station-hour aggregate columns.
const (
	StationName    = "STATION_NAME"
	Year           = "YEAR"
	Month          = "MONTH"
	Day            = "DAY"
	Hour           = "HOUR"
	StationType    = "STATION_TYPE"
	NumTrips       = "NUM_TRIPS"
	DurationMin    = "DURATION_MIN"
	DurationMedian = "DURATION_MEDIAN"
	DurationMean   = "DURATION_MEAN"
	DurationMax    = "DURATION_MAX"

	NumStations         = "NUM_STATIONS"
	NumDocks            = "NUM_DOCKS"
	NumTripsPhysicalKey = "NUM_TRIPS_PHYSICALKEY"
	NumTripsTransitCard = "NUM_TRIPS_TRANSITCARD"
	NumTripsCreditCard  = "NUM_TRIPS_CREDITCARD"
	NumTripsPhone       = "NUM_TRIPS_PHONE"
)

// Source metadata columns carried by every persisted aggregate row.
const (
	SourceFileColumn   = "source_file"
	CSVFileColumn      = "csv_file"
	DownloadedColumn   = "downloaded_file"
	LastModifiedColumn = "last_modified_timestamp"
)

// User types and station types.
const (
	AnnualMember = "Annual Member"
	CasualMember = "Casual Member"

	StationTypeStart = "start"
	StationTypeEnd   = "end"
)
