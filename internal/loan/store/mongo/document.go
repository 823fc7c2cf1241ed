package mongo

import (
	"time"

	"kilimokredo/internal/loan/models"
)

// applicationDoc mirrors the loanapplications collection layout.
type applicationDoc struct {
	ID        string             `bson:"_id"`
	FarmerID  string             `bson:"farmerId"`
	User      models.FarmerInput `bson:"user"`
	Output    outputDoc          `bson:"output"`
	Others    othersDoc          `bson:"others"`
	CreatedAt time.Time          `bson:"createdAt"`
	UpdatedAt time.Time          `bson:"updatedAt"`
	DecidedAt *time.Time         `bson:"decidedAt,omitempty"`
}

type outputDoc struct {
	FeaturesUsedByModel models.ModelFeatures `bson:"features_used_by_model"`
	Predictions         predictionsDoc       `bson:"predictions"`
}

// predictionsDoc reads documents written with either spelling of the credit
// score key and always writes the correct one.
type predictionsDoc struct {
	CreditScore  *float64 `bson:"predicted_credit_score,omitempty"`
	CredictScore *float64 `bson:"predicted_credict_score,omitempty"`
	InterestRate float64  `bson:"predicted_interest_rate"`
	LoanDuration float64  `bson:"predicted_loan_duration"`
	LoanLimit    float64  `bson:"predicted_loan_limit"`
}

type othersDoc struct {
	LoanAmountRequested float64 `bson:"loanAmountRequested"`
	LoanStatus          string  `bson:"loanStatus"`
}

func toDoc(app *models.LoanApplication) applicationDoc {
	score := app.Output.Predictions.CreditScore
	return applicationDoc{
		ID:       app.ID,
		FarmerID: app.FarmerID,
		User:     app.User,
		Output: outputDoc{
			FeaturesUsedByModel: app.Output.FeaturesUsedByModel,
			Predictions: predictionsDoc{
				CreditScore:  &score,
				InterestRate: app.Output.Predictions.InterestRate,
				LoanDuration: app.Output.Predictions.LoanDuration,
				LoanLimit:    app.Output.Predictions.LoanLimit,
			},
		},
		Others: othersDoc{
			LoanAmountRequested: app.Others.LoanAmountRequested,
			LoanStatus:          string(app.Others.LoanStatus),
		},
		CreatedAt: app.CreatedAt.UTC(),
		UpdatedAt: app.UpdatedAt.UTC(),
		DecidedAt: app.DecidedAt,
	}
}

func (d applicationDoc) toModel() *models.LoanApplication {
	p := d.Output.Predictions
	var score float64
	switch {
	case p.CreditScore != nil:
		score = *p.CreditScore
	case p.CredictScore != nil:
		score = *p.CredictScore
	}
	return &models.LoanApplication{
		ID:       d.ID,
		FarmerID: d.FarmerID,
		User:     d.User,
		Output: models.ModelOutput{
			FeaturesUsedByModel: d.Output.FeaturesUsedByModel,
			Predictions: models.ModelPredictions{
				CreditScore:  score,
				InterestRate: p.InterestRate,
				LoanDuration: p.LoanDuration,
				LoanLimit:    p.LoanLimit,
			},
		},
		Others: models.Others{
			LoanAmountRequested: d.Others.LoanAmountRequested,
			LoanStatus:          models.LoanStatus(d.Others.LoanStatus),
		},
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
		DecidedAt: d.DecidedAt,
	}
}
