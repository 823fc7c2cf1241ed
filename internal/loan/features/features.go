// Package features turns farmer-entered form data into the canonical scoring
// payload. Everything here is pure: no I/O and no clock.
package features

import (
	"math"
	"strconv"
	"strings"

	"kilimokredo/internal/loan/models"
	dErrors "kilimokredo/pkg/domain-errors"
)

// TotalYield is the one formula for total yield value in KSh. The simulator
// uses it too, so persisted and simulated payloads agree.
func TotalYield(farmSizeSqm, pricePerUnit, yieldPerSqm float64) float64 {
	return farmSizeSqm * pricePerUnit * yieldPerSqm
}

// Derive validates raw form input against the farm profile and returns the
// canonical FarmerInput. Any caller-supplied total_yield_ksh is discarded.
func Derive(raw models.RawInput, profile models.FarmProfile) (models.FarmerInput, error) {
	cropType := strings.TrimSpace(raw.CropType)
	if cropType == "" {
		return models.FarmerInput{}, dErrors.New(dErrors.CodeValidation, "crop_type is required")
	}

	price, err := nonNegative("price_of_crop", raw.PriceOfCrop)
	if err != nil {
		return models.FarmerInput{}, err
	}
	yield, err := nonNegative("crop_yield_per_sqm", raw.CropYieldPerSqm)
	if err != nil {
		return models.FarmerInput{}, err
	}
	expense, err := nonNegative("seasonal_expense", raw.SeasonalExpense)
	if err != nil {
		return models.FarmerInput{}, err
	}
	previous, err := count("previous_loans_count", raw.PreviousLoansCount)
	if err != nil {
		return models.FarmerInput{}, err
	}
	defaulted, err := count("defaulted_loans_count", raw.DefaultedLoansCount)
	if err != nil {
		return models.FarmerInput{}, err
	}

	size, err := FarmSize(profile)
	if err != nil {
		return models.FarmerInput{}, err
	}
	if profile.Location == nil {
		return models.FarmerInput{}, dErrors.New(dErrors.CodeValidation, "farm location is required")
	}
	location, err := FormatLocation(*profile.Location)
	if err != nil {
		return models.FarmerInput{}, err
	}

	return models.FarmerInput{
		Location:            location,
		CropType:            cropType,
		PriceOfCrop:         price,
		CropYieldPerSqm:     yield,
		FarmSizeSqm:         size,
		TotalYieldKsh:       TotalYield(size, price, yield),
		PreviousLoansCount:  previous,
		DefaultedLoansCount: defaulted,
		SeasonalExpense:     expense,
	}, nil
}

// FarmSize resolves the profile's farm size in m².
func FarmSize(profile models.FarmProfile) (float64, error) {
	var size float64
	switch {
	case profile.FarmSizeSqm != nil:
		size = *profile.FarmSizeSqm
	case profile.FarmSizeAcres != nil:
		size = *profile.FarmSizeAcres * models.AcreToSqm
	default:
		return 0, dErrors.New(dErrors.CodeValidation, "farm size is required")
	}
	if !finite(size) || size <= 0 {
		return 0, dErrors.New(dErrors.CodeValidation, "farm size must be a positive number")
	}
	return size, nil
}

// ParseLocation reads a "lat,lng" string. Surrounding quotes are stripped.
func ParseLocation(s string) (models.Coordinates, error) {
	s = strings.Trim(strings.TrimSpace(s), `"'`)
	latStr, lngStr, ok := strings.Cut(s, ",")
	if !ok {
		return models.Coordinates{}, dErrors.Newf(dErrors.CodeValidation, "location %q must be \"lat,lng\"", s)
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(latStr), 64)
	if err != nil {
		return models.Coordinates{}, dErrors.Newf(dErrors.CodeValidation, "location latitude %q is not a number", latStr)
	}
	lng, err := strconv.ParseFloat(strings.TrimSpace(lngStr), 64)
	if err != nil {
		return models.Coordinates{}, dErrors.Newf(dErrors.CodeValidation, "location longitude %q is not a number", lngStr)
	}
	c := models.Coordinates{Lat: lat, Lng: lng}
	if err := checkCoordinates(c); err != nil {
		return models.Coordinates{}, err
	}
	return c, nil
}

// FormatLocation renders coordinates as "lat,lng".
func FormatLocation(c models.Coordinates) (string, error) {
	if err := checkCoordinates(c); err != nil {
		return "", err
	}
	return strconv.FormatFloat(c.Lat, 'f', -1, 64) + "," + strconv.FormatFloat(c.Lng, 'f', -1, 64), nil
}

func checkCoordinates(c models.Coordinates) error {
	if !finite(c.Lat) || c.Lat < -90 || c.Lat > 90 {
		return dErrors.Newf(dErrors.CodeValidation, "latitude %v out of range", c.Lat)
	}
	if !finite(c.Lng) || c.Lng < -180 || c.Lng > 180 {
		return dErrors.Newf(dErrors.CodeValidation, "longitude %v out of range", c.Lng)
	}
	return nil
}

func number(field string, n models.FlexNumber) (float64, error) {
	if n.Missing() {
		return 0, dErrors.Newf(dErrors.CodeValidation, "%s is required", field)
	}
	v, err := strconv.ParseFloat(n.Raw(), 64)
	if err != nil || !finite(v) {
		return 0, dErrors.Newf(dErrors.CodeValidation, "%s must be a finite number, got %q", field, n.Raw())
	}
	return v, nil
}

func nonNegative(field string, n models.FlexNumber) (float64, error) {
	v, err := number(field, n)
	if err != nil {
		return 0, err
	}
	if v < 0 {
		return 0, dErrors.Newf(dErrors.CodeValidation, "%s must not be negative", field)
	}
	return v, nil
}

func count(field string, n models.FlexNumber) (int, error) {
	v, err := nonNegative(field, n)
	if err != nil {
		return 0, err
	}
	if v != math.Trunc(v) || v > math.MaxInt32 {
		return 0, dErrors.Newf(dErrors.CodeValidation, "%s must be a whole number", field)
	}
	return int(v), nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// LoanAmount parses the requested amount, which must be positive and finite.
func LoanAmount(n models.FlexNumber) (float64, error) {
	v, err := number("loanAmountRequested", n)
	if err != nil {
		return 0, err
	}
	if v <= 0 {
		return 0, dErrors.New(dErrors.CodeValidation, "loanAmountRequested must be greater than zero")
	}
	return v, nil
}
