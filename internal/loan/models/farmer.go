package models

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// AcreToSqm converts sign-up farm sizes given in acres.
const AcreToSqm = 4046.86

// FarmerInput is the canonical scoring payload and the snapshot stored on an
// application. TotalYieldKsh is always derived server side.
type FarmerInput struct {
	Location            string  `json:"location" bson:"location"`
	CropType            string  `json:"crop_type" bson:"crop_type"`
	PriceOfCrop         float64 `json:"price_of_crop" bson:"price_of_crop"`
	CropYieldPerSqm     float64 `json:"crop_yield_per_sqm" bson:"crop_yield_per_sqm"`
	FarmSizeSqm         float64 `json:"farm_size_sqm" bson:"farm_size_sqm"`
	TotalYieldKsh       float64 `json:"total_yield_ksh" bson:"total_yield_ksh"`
	PreviousLoansCount  int     `json:"previous_loans_count" bson:"previous_loans_count"`
	DefaultedLoansCount int     `json:"defaulted_loans_count" bson:"defaulted_loans_count"`
	SeasonalExpense     float64 `json:"seasonal_expense" bson:"seasonal_expense"`
}

// Coordinates are decimal degrees.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// FarmProfile is the farm data captured at sign-up. FarmSizeSqm wins over
// FarmSizeAcres when both are set.
type FarmProfile struct {
	FarmSizeSqm   *float64     `json:"farm_size_sqm,omitempty"`
	FarmSizeAcres *float64     `json:"farm_size_acres,omitempty"`
	Location      *Coordinates `json:"location,omitempty"`
}

// RawInput is what a farmer types into the application form. Every scalar
// may arrive as a JSON number or a numeric string.
type RawInput struct {
	CropType            string     `json:"crop_type"`
	PriceOfCrop         FlexNumber `json:"price_of_crop"`
	CropYieldPerSqm     FlexNumber `json:"crop_yield_per_sqm"`
	PreviousLoansCount  FlexNumber `json:"previous_loans_count"`
	DefaultedLoansCount FlexNumber `json:"defaulted_loans_count"`
	SeasonalExpense     FlexNumber `json:"seasonal_expense"`
	// Ignored: always recomputed. Accepted so clients echoing it are not rejected.
	TotalYieldKsh FlexNumber `json:"total_yield_ksh"`
}

// FlexNumber holds the raw text of a scalar that may be a JSON number, a
// numeric string, null or absent.
type FlexNumber struct {
	raw string
	set bool
}

// NewFlexNumber builds a FlexNumber from text, mainly for tests.
func NewFlexNumber(s string) FlexNumber {
	return FlexNumber{raw: s, set: true}
}

// Number builds a FlexNumber from a float.
func Number(f float64) FlexNumber {
	return FlexNumber{raw: strconv.FormatFloat(f, 'f', -1, 64), set: true}
}

func (n *FlexNumber) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	switch {
	case trimmed == "null":
		*n = FlexNumber{}
	case strings.HasPrefix(trimmed, `"`):
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*n = FlexNumber{raw: strings.TrimSpace(s), set: true}
	case strings.HasPrefix(trimmed, "{"), strings.HasPrefix(trimmed, "["),
		trimmed == "true", trimmed == "false":
		return fmt.Errorf("expected a number or numeric string, got %s", trimmed)
	default:
		*n = FlexNumber{raw: trimmed, set: true}
	}
	return nil
}

func (n FlexNumber) MarshalJSON() ([]byte, error) {
	if n.Missing() {
		return []byte("null"), nil
	}
	return json.Marshal(n.raw)
}

// Missing reports an absent, null or empty value.
func (n FlexNumber) Missing() bool {
	return !n.set || n.raw == ""
}

// Raw returns the text as received.
func (n FlexNumber) Raw() string {
	return n.raw
}
