package models

import (
	"encoding/json"
	"math"
)

// ModelFeatures are the engineered variables the scorer reports back for
// explainability. Missing fields decode as zero.
type ModelFeatures struct {
	NDVI                float64 `json:"NDVI" bson:"NDVI"`
	AvgRainfall         float64 `json:"avg_rainfall" bson:"avg_rainfall"`
	AvgTemp             float64 `json:"avg_temp" bson:"avg_temp"`
	CropType            string  `json:"crop_type" bson:"crop_type"`
	CropYieldPerSqm     float64 `json:"crop_yield_per_sqm" bson:"crop_yield_per_sqm"`
	DefaultRate         float64 `json:"default_rate" bson:"default_rate"`
	DefaultedLoansCount float64 `json:"defaulted_loans_count" bson:"defaulted_loans_count"`
	ExpensePerSqm       float64 `json:"expense_per_sqm" bson:"expense_per_sqm"`
	ExpenseRatio        float64 `json:"expense_ratio" bson:"expense_ratio"`
	FarmSizeSqm         float64 `json:"farm_size_sqm" bson:"farm_size_sqm"`
	Latitude            float64 `json:"latitude" bson:"latitude"`
	Longitude           float64 `json:"longitude" bson:"longitude"`
	NDVIxRainfall       float64 `json:"ndvi_x_rainfall" bson:"ndvi_x_rainfall"`
	NetIncome           float64 `json:"net_income" bson:"net_income"`
	PreviousLoansCount  float64 `json:"previous_loans_count" bson:"previous_loans_count"`
	PriceOfCrop         float64 `json:"price_of_crop" bson:"price_of_crop"`
	PriceXYield         float64 `json:"price_x_yield" bson:"price_x_yield"`
	ProfitMargin        float64 `json:"profit_margin" bson:"profit_margin"`
	SeasonalExpense     float64 `json:"seasonal_expense" bson:"seasonal_expense"`
	TempXRainfall       float64 `json:"temp_x_rainfall" bson:"temp_x_rainfall"`
	TotalYieldKsh       float64 `json:"total_yield_ksh" bson:"total_yield_ksh"`
	YieldValuePerSqm    float64 `json:"yield_value_per_sqm" bson:"yield_value_per_sqm"`
}

// ModelPredictions are the scorer's numeric outputs.
//
// Units: CreditScore is roughly 300-850, InterestRate is in basis points,
// LoanDuration is in days and LoanLimit is in KSh.
type ModelPredictions struct {
	CreditScore  float64 `json:"predicted_credit_score"`
	InterestRate float64 `json:"predicted_interest_rate"`
	LoanDuration float64 `json:"predicted_loan_duration"`
	LoanLimit    float64 `json:"predicted_loan_limit"`
}

// UnmarshalJSON also accepts predicted_credict_score, the key the deployed
// model actually emits. The correctly spelled key wins when both are present.
func (p *ModelPredictions) UnmarshalJSON(data []byte) error {
	var wire struct {
		CreditScore  *float64 `json:"predicted_credit_score"`
		CredictScore *float64 `json:"predicted_credict_score"`
		InterestRate float64  `json:"predicted_interest_rate"`
		LoanDuration float64  `json:"predicted_loan_duration"`
		LoanLimit    float64  `json:"predicted_loan_limit"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	*p = ModelPredictions{
		InterestRate: wire.InterestRate,
		LoanDuration: wire.LoanDuration,
		LoanLimit:    wire.LoanLimit,
	}
	switch {
	case wire.CreditScore != nil:
		p.CreditScore = *wire.CreditScore
	case wire.CredictScore != nil:
		p.CreditScore = *wire.CredictScore
	}
	return nil
}

// InterestRatePercent converts the basis-point rate to percent.
func (p ModelPredictions) InterestRatePercent() float64 {
	return p.InterestRate / 100
}

// DurationMonths converts the duration in days to whole 30-day months.
func (p ModelPredictions) DurationMonths() int {
	return int(math.Round(p.LoanDuration / 30))
}

// ModelOutput is one successful scoring result.
type ModelOutput struct {
	FeaturesUsedByModel ModelFeatures    `json:"features_used_by_model"`
	Predictions         ModelPredictions `json:"predictions"`
}

// SimulationPayload is a FarmerInput with officer-adjusted environmental
// features placed next to it, sent to the scorer for what-if runs.
type SimulationPayload struct {
	FarmerInput
	AvgRainfall float64 `json:"avg_rainfall"`
	AvgTemp     float64 `json:"avg_temp"`
	NDVI        float64 `json:"NDVI"`
}
