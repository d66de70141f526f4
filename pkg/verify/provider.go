// Package verify validates postal addresses via Google Address Validation
// (primary) and Lob US verification (secondary), normalizing both vendors
// into one contract.
package verify

import (
	"context"

	"github.com/rotisserie/eris"
)

// Confirmation levels reported for address components.
const (
	Confirmed             = "CONFIRMED"
	UnconfirmedPlausible  = "UNCONFIRMED_BUT_PLAUSIBLE"
	UnconfirmedSuspicious = "UNCONFIRMED_AND_SUSPICIOUS"
	ConfirmationInferred  = "INFERRED"
)

// Sentinel errors distinguishing provider failure modes. A provider that
// resolves an address but cannot confirm every field returns a Result with
// AllValid=false, not an error.
var (
	// ErrUnavailable indicates a network or server-side failure.
	ErrUnavailable = eris.New("verify: provider unavailable")
	// ErrRejected indicates the vendor reported a structural error for the request.
	ErrRejected = eris.New("verify: provider rejected request")
	// ErrDataInvalid indicates the vendor response lacked required geocode fields.
	ErrDataInvalid = eris.New("verify: provider response missing geocode")
)

// Address is a structured US postal address submitted for validation.
type Address struct {
	Street     string `json:"street"`
	UnitNumber string `json:"unitNumber,omitempty"`
	City       string `json:"city"`
	State      string `json:"state"`
	Zip        string `json:"zip"`
}

// ValidatedAddress is the canonical address a provider settled on.
type ValidatedAddress struct {
	Street     string `json:"street"`
	UnitNumber string `json:"unitNumber,omitempty"`
	City       string `json:"city"`
	State      string `json:"state"`
	Zip        string `json:"zip"`
	County     string `json:"county,omitempty"`
}

// LatLng is a coordinate pair.
type LatLng struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Viewport is an optional bounding box around the geocoded location.
type Viewport struct {
	Low  LatLng `json:"low"`
	High LatLng `json:"high"`
}

// Geocode is the location a provider resolved for an address.
type Geocode struct {
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	PlaceID   string    `json:"placeId,omitempty"`
	Bounds    *Viewport `json:"bounds,omitempty"`
}

// Issue is one field-level discrepancy flagged by a provider.
type Issue struct {
	ComponentType     string `json:"componentType"`
	ConfirmationLevel string `json:"confirmationLevel"`
	Inferred          bool   `json:"inferred"`
	SpellCorrected    bool   `json:"spellCorrected"`
	Replaced          bool   `json:"replaced"`
	Unexpected        bool   `json:"unexpected"`
}

// Suggestions holds corrective hints for fields a provider replaced or corrected.
type Suggestions struct {
	Street string `json:"street,omitempty"`
	Zip    string `json:"zip,omitempty"`
	State  string `json:"state,omitempty"`
}

// Result is the normalized validation verdict shared by both adapters.
type Result struct {
	AllValid    bool             `json:"allValid"`
	Validated   ValidatedAddress `json:"validatedAddress"`
	Geocode     Geocode          `json:"geocode"`
	Issues      []Issue          `json:"issues"`
	Suggestions Suggestions      `json:"suggestions"`
}

// Provider validates a structured address against one vendor.
type Provider interface {
	// Name identifies the provider in resolution results ("Primary" or "Secondary").
	Name() string

	// Validate submits the address and normalizes the vendor response.
	Validate(ctx context.Context, addr Address) (*Result, error)
}
