package enrich

import "github.com/pilosa/bikeshare"

var torontoInstitutions = []struct {
	name     string
	lat, lon float64
}{
	{"centennial", 43.7854, -79.22664},
	{"george-brown", 43.6761, -79.4111},
	{"humber", 43.7290, -79.6074},
	{"ocad", 43.6530, -79.3912},
	{"ryerson", 43.6577, -79.3788},
	{"seneca", 43.7955, -79.3496},
	{"tynedale", 43.7970, -79.3945},
	{"uoft-scarborough", 43.7844, -79.1851},
	{"uoft", 43.6629, -79.5019},
	{"yorku", 43.7735, -79.5019},
	{"yorku-glendon", 43.7279, -79.3780},
}

// DefaultInstitutions returns the colleges and universities of Toronto, used
// when no institutions file is configured.
func DefaultInstitutions() *bikeshare.Table {
	t := bikeshare.NewTable(bikeshare.ContractInstitutions,
		bikeshare.InstitutionID, bikeshare.InstitutionName, bikeshare.Lat, bikeshare.Lon)
	for i, inst := range torontoInstitutions {
		// the arity always matches
		_ = t.Append(int64(i), inst.name, inst.lat, inst.lon)
	}
	return t
}
