package resolve

import (
	"regexp"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/AssetVal/HeatMap/pkg/verify"
)

var zipPattern = regexp.MustCompile(`^\d{5}(-\d{4})?$`)

// stateCodes lists valid US state, district, territory, and military
// abbreviations accepted as input.
var stateCodes = map[string]bool{
	"AL": true, "AK": true, "AZ": true, "AR": true, "CA": true, "CO": true,
	"CT": true, "DE": true, "FL": true, "GA": true, "HI": true, "ID": true,
	"IL": true, "IN": true, "IA": true, "KS": true, "KY": true, "LA": true,
	"ME": true, "MD": true, "MA": true, "MI": true, "MN": true, "MS": true,
	"MO": true, "MT": true, "NE": true, "NV": true, "NH": true, "NJ": true,
	"NM": true, "NY": true, "NC": true, "ND": true, "OH": true, "OK": true,
	"OR": true, "PA": true, "RI": true, "SC": true, "SD": true, "TN": true,
	"TX": true, "UT": true, "VT": true, "VA": true, "WA": true, "WV": true,
	"WI": true, "WY": true,
	"DC": true, "PR": true, "VI": true, "GU": true, "AS": true, "MP": true,
	"AA": true, "AE": true, "AP": true,
}

// ValidateInput checks the basic shape of a structured address before any
// network call is made.
func ValidateInput(addr verify.Address) error {
	if strings.TrimSpace(addr.Street) == "" {
		return eris.Wrap(ErrInvalidInput, "resolve: street is required")
	}
	if strings.TrimSpace(addr.City) == "" {
		return eris.Wrap(ErrInvalidInput, "resolve: city is required")
	}
	state := strings.ToUpper(strings.TrimSpace(addr.State))
	if !stateCodes[state] {
		return eris.Wrapf(ErrInvalidInput, "resolve: unknown state code %q", addr.State)
	}
	if !zipPattern.MatchString(strings.TrimSpace(addr.Zip)) {
		return eris.Wrapf(ErrInvalidInput, "resolve: malformed zip %q", addr.Zip)
	}
	return nil
}
