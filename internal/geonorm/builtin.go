package geonorm

// builtinMajorCities is a small seed set of major-city canonical records.
// Real deployments are expected to supply their own mappings via New's
// userMappings parameter; these exist so Normalize has sensible out-of-the-
// box behavior for common cases and for the test suite.
var builtinMajorCities = []Canonical{
	{Name: "New York City", Lat: 40.7128, Lng: -74.0060, HasCoord: true},
	{Name: "Los Angeles", Lat: 34.0522, Lng: -118.2437, HasCoord: true},
	{Name: "Chicago", Lat: 41.8781, Lng: -87.6298, HasCoord: true},
	{Name: "London", Lat: 51.5072, Lng: -0.1276, HasCoord: true},
	{Name: "Tokyo", Lat: 35.6762, Lng: 139.6503, HasCoord: true},
	{Name: "San Francisco", Lat: 37.7749, Lng: -122.4194, HasCoord: true},
}

// builtinAliases maps common alternate names to a canonical name key (looked
// up via normalizeKey against builtinMajorCities).
var builtinAliases = map[string]string{
	"nyc":            "New York City",
	"new york":       "New York City",
	"the big apple":  "New York City",
	"la":             "Los Angeles",
	"sf":             "San Francisco",
	"san fran":       "San Francisco",
	"chi town":       "Chicago",
	"windy city":     "Chicago",
}
