package models

// stateNames maps two-letter postal codes to the full state names used by
// the Congress.gov API. DC is included because delegates appear in the data.
var stateNames = map[string]string{
	"AL": "Alabama", "AK": "Alaska", "AZ": "Arizona", "AR": "Arkansas",
	"CA": "California", "CO": "Colorado", "CT": "Connecticut", "DE": "Delaware",
	"FL": "Florida", "GA": "Georgia", "HI": "Hawaii", "ID": "Idaho",
	"IL": "Illinois", "IN": "Indiana", "IA": "Iowa", "KS": "Kansas",
	"KY": "Kentucky", "LA": "Louisiana", "ME": "Maine", "MD": "Maryland",
	"MA": "Massachusetts", "MI": "Michigan", "MN": "Minnesota", "MS": "Mississippi",
	"MO": "Missouri", "MT": "Montana", "NE": "Nebraska", "NV": "Nevada",
	"NH": "New Hampshire", "NJ": "New Jersey", "NM": "New Mexico", "NY": "New York",
	"NC": "North Carolina", "ND": "North Dakota", "OH": "Ohio", "OK": "Oklahoma",
	"OR": "Oregon", "PA": "Pennsylvania", "RI": "Rhode Island", "SC": "South Carolina",
	"SD": "South Dakota", "TN": "Tennessee", "TX": "Texas", "UT": "Utah",
	"VT": "Vermont", "VA": "Virginia", "WA": "Washington", "WV": "West Virginia",
	"WI": "Wisconsin", "WY": "Wyoming", "DC": "District of Columbia",
}

var stateCodes = func() map[string]string {
	codes := make(map[string]string, len(stateNames))
	for code, name := range stateNames {
		codes[name] = code
	}
	return codes
}()

// StateName returns the full name for a postal code, or false when the code
// is unknown.
func StateName(code string) (string, bool) {
	name, ok := stateNames[code]
	return name, ok
}

// StateCode returns the postal code for a full state name as reported by the
// API. Unknown names return the input unchanged so raw data is never lost.
func StateCode(name string) string {
	if code, ok := stateCodes[name]; ok {
		return code
	}
	return name
}

// ValidStateCode reports whether code is a known two-letter postal code.
func ValidStateCode(code string) bool {
	_, ok := stateNames[code]
	return ok
}
