package resolve

import (
	"github.com/AssetVal/HeatMap/pkg/verify"
)

// Merge combines two partially valid provider results into one. The tie-break
// is asymmetric and must stay that way: the primary provider wins on address
// fields and geocode, the secondary wins on suggestions.
//
//   - issues: primary's then secondary's, concatenated, duplicates allowed
//   - suggestions: secondary's set (corrective hints)
//   - validatedAddress: per field, primary's value if non-empty else secondary's
//   - geocode: secondary's fields overlaid by primary's (primary wins on overlap)
//
// Either side may be nil when that provider failed outright.
func Merge(primary, secondary *verify.Result) *verify.Result {
	if primary == nil && secondary == nil {
		return nil
	}
	if primary == nil {
		out := *secondary
		out.AllValid = false
		return &out
	}
	if secondary == nil {
		out := *primary
		out.AllValid = false
		return &out
	}

	merged := &verify.Result{
		AllValid:    false,
		Issues:      append(append([]verify.Issue{}, primary.Issues...), secondary.Issues...),
		Suggestions: secondary.Suggestions,
		Validated: verify.ValidatedAddress{
			Street:     pick(primary.Validated.Street, secondary.Validated.Street),
			UnitNumber: pick(primary.Validated.UnitNumber, secondary.Validated.UnitNumber),
			City:       pick(primary.Validated.City, secondary.Validated.City),
			State:      pick(primary.Validated.State, secondary.Validated.State),
			Zip:        pick(primary.Validated.Zip, secondary.Validated.Zip),
			County:     pick(primary.Validated.County, secondary.Validated.County),
		},
		Geocode: mergeGeocode(primary.Geocode, secondary.Geocode),
	}
	return merged
}

// mergeGeocode starts from the secondary geocode and overlays every primary
// field that is set.
func mergeGeocode(primary, secondary verify.Geocode) verify.Geocode {
	out := secondary
	if primary.Latitude != 0 || primary.Longitude != 0 {
		out.Latitude = primary.Latitude
		out.Longitude = primary.Longitude
	}
	if primary.PlaceID != "" {
		out.PlaceID = primary.PlaceID
	}
	if primary.Bounds != nil {
		out.Bounds = primary.Bounds
	}
	return out
}

func pick(primary, secondary string) string {
	if primary != "" {
		return primary
	}
	return secondary
}
