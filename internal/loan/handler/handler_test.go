package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"kilimokredo/internal/loan/handler/mocks"
	"kilimokredo/internal/loan/models"
	"kilimokredo/internal/loan/service"
	"kilimokredo/internal/loan/store"
	dErrors "kilimokredo/pkg/domain-errors"
	"kilimokredo/pkg/testutil"
)

//go:generate mockgen -source=handler.go -destination=mocks/service-mocks.go -package=mocks Service

type LoanHandlerSuite struct {
	suite.Suite
	svc    *mocks.MockService
	router chi.Router
}

func TestLoanHandlerSuite(t *testing.T) {
	suite.Run(t, new(LoanHandlerSuite))
}

func (s *LoanHandlerSuite) SetupTest() {
	s.router = s.newRouter()
}

func (s *LoanHandlerSuite) newRouter(opts ...Option) chi.Router {
	ctrl := gomock.NewController(s.T())
	s.svc = mocks.NewMockService(ctrl)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	r := chi.NewRouter()
	New(s.svc, logger, opts...).Register(r)
	return r
}

func application(id string, status models.LoanStatus) *models.LoanApplication {
	created := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	app := models.NewLoanApplication(id, "f1", models.FarmerInput{CropType: "maize"}, models.ModelOutput{
		Predictions: models.ModelPredictions{CreditScore: 712},
	}, 50000, created)
	if status != models.LoanStatusPending {
		app.ApplyDecision(status, created.Add(time.Hour))
	}
	return app
}

func submitBody(farmerID string) map[string]any {
	return map[string]any{
		"applicationData": map[string]any{
			"crop_type":             "maize",
			"price_of_crop":         "50",
			"crop_yield_per_sqm":    0.6,
			"previous_loans_count":  1,
			"defaulted_loans_count": 0,
			"seasonal_expense":      12000,
		},
		"farmProfile": map[string]any{
			"farm_size_sqm": 10000,
			"location":      map[string]float64{"lat": -1.28, "lng": 36.82},
		},
		"loanAmountRequested": 50000,
		"farmerId":            farmerID,
	}
}

func (s *LoanHandlerSuite) TestSubmit() {
	s.Run("authenticated farmer gets 201", func() {
		s.svc.EXPECT().Submit(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, req service.SubmitRequest) (*models.LoanApplication, error) {
				s.Equal("f1", req.FarmerID)
				s.Equal("maize", req.Raw.CropType)
				s.Equal("50", req.Raw.PriceOfCrop.Raw())
				return application("a1", models.LoanStatusPending), nil
			})

		req := testutil.WithFarmer(testutil.NewJSONRequest(s.T(), http.MethodPost, "/applications", submitBody("")), "f1")
		rec := testutil.Serve(s.router, req)

		s.Equal(http.StatusCreated, rec.Code, rec.Body.String())
		got := testutil.DecodeJSON[models.LoanApplication](s.T(), rec)
		s.Equal("a1", got.ID)
		s.Equal(models.LoanStatusPending, got.Others.LoanStatus)
		s.Equal(712.0, got.Output.Predictions.CreditScore)
	})

	s.Run("body farmerId ignored outside placeholder mode", func() {
		s.svc.EXPECT().Submit(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, req service.SubmitRequest) (*models.LoanApplication, error) {
				s.Empty(req.FarmerID)
				return nil, dErrors.New(dErrors.CodeUnauthorized, "Not Authenticated")
			})

		rec := testutil.Serve(s.router, testutil.NewJSONRequest(s.T(), http.MethodPost, "/applications", submitBody("f9")))
		testutil.AssertError(s.T(), rec, http.StatusUnauthorized, "unauthorized")
	})

	s.Run("malformed body never reaches the service", func() {
		rec := testutil.Serve(s.router, testutil.NewRawRequest(s.T(), http.MethodPost, "/applications", "{not json"))
		testutil.AssertError(s.T(), rec, http.StatusBadRequest, "bad_request")
	})

	s.Run("scorer outage is 502", func() {
		s.svc.EXPECT().Submit(gomock.Any(), gomock.Any()).
			Return(nil, dErrors.New(dErrors.CodeInferenceUnavailable, "scoring service timed out"))

		req := testutil.WithFarmer(testutil.NewJSONRequest(s.T(), http.MethodPost, "/applications", submitBody("")), "f1")
		rec := testutil.Serve(s.router, req)
		testutil.AssertError(s.T(), rec, http.StatusBadGateway, "inference_unavailable")
	})

	s.Run("model rejection is 400 with the reason", func() {
		s.svc.EXPECT().Submit(gomock.Any(), gomock.Any()).
			Return(nil, dErrors.New(dErrors.CodeModelRejected, "unknown crop_type: kale"))

		req := testutil.WithFarmer(testutil.NewJSONRequest(s.T(), http.MethodPost, "/applications", submitBody("")), "f1")
		rec := testutil.Serve(s.router, req)
		testutil.AssertError(s.T(), rec, http.StatusBadRequest, "model_rejected")
		body := testutil.DecodeJSON[map[string]string](s.T(), rec)
		s.Equal("unknown crop_type: kale", body["error_description"])
	})
}

func (s *LoanHandlerSuite) TestSubmitPlaceholderIdentity() {
	router := s.newRouter(WithPlaceholderIdentity(true))

	s.Run("body farmerId stands in for a principal", func() {
		s.svc.EXPECT().Submit(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, req service.SubmitRequest) (*models.LoanApplication, error) {
				s.Equal("f1", req.FarmerID)
				return application("a1", models.LoanStatusPending), nil
			})
		rec := testutil.Serve(router, testutil.NewJSONRequest(s.T(), http.MethodPost, "/applications", submitBody(" f1 ")))
		s.Equal(http.StatusCreated, rec.Code)
	})

	s.Run("principal wins over body", func() {
		s.svc.EXPECT().Submit(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, req service.SubmitRequest) (*models.LoanApplication, error) {
				s.Equal("f2", req.FarmerID)
				return application("a2", models.LoanStatusPending), nil
			})
		req := testutil.WithFarmer(testutil.NewJSONRequest(s.T(), http.MethodPost, "/applications", submitBody("f1")), "f2")
		rec := testutil.Serve(router, req)
		s.Equal(http.StatusCreated, rec.Code)
	})
}

func (s *LoanHandlerSuite) TestGet() {
	s.Run("found", func() {
		s.svc.EXPECT().Get(gomock.Any(), "a1").Return(application("a1", models.LoanStatusApproved), nil)
		rec := testutil.Serve(s.router, testutil.NewJSONRequest(s.T(), http.MethodGet, "/applications/a1", nil))
		s.Equal(http.StatusOK, rec.Code)
		got := testutil.DecodeJSON[models.LoanApplication](s.T(), rec)
		s.Equal(models.LoanStatusApproved, got.Others.LoanStatus)
		s.NotNil(got.DecidedAt)
	})

	s.Run("missing", func() {
		s.svc.EXPECT().Get(gomock.Any(), "nope").Return(nil, dErrors.New(dErrors.CodeNotFound, "application not found"))
		rec := testutil.Serve(s.router, testutil.NewJSONRequest(s.T(), http.MethodGet, "/applications/nope", nil))
		testutil.AssertError(s.T(), rec, http.StatusNotFound, "not_found")
	})
}

func (s *LoanHandlerSuite) TestUpdateStatus() {
	s.Run("unknown status is 400 and nothing changes", func() {
		rec := testutil.Serve(s.router, testutil.NewJSONRequest(s.T(), http.MethodPatch, "/applications/a1/status",
			map[string]string{"status": "Banana"}))
		testutil.AssertError(s.T(), rec, http.StatusBadRequest, "validation_error")
	})

	s.Run("status is case sensitive", func() {
		rec := testutil.Serve(s.router, testutil.NewJSONRequest(s.T(), http.MethodPatch, "/applications/a1/status",
			map[string]string{"status": "approved"}))
		testutil.AssertError(s.T(), rec, http.StatusBadRequest, "validation_error")
	})

	s.Run("decision on a decided application is 409", func() {
		s.svc.EXPECT().UpdateStatus(gomock.Any(), "a1", models.LoanStatusApproved).
			Return(nil, dErrors.New(dErrors.CodeInvalidTransition, "application already Rejected"))
		rec := testutil.Serve(s.router, testutil.NewJSONRequest(s.T(), http.MethodPatch, "/applications/a1/status",
			map[string]string{"status": "Approved"}))
		testutil.AssertError(s.T(), rec, http.StatusConflict, "invalid_transition")
	})

	s.Run("approve pending", func() {
		s.svc.EXPECT().UpdateStatus(gomock.Any(), "a2", models.LoanStatusApproved).
			Return(application("a2", models.LoanStatusApproved), nil)
		rec := testutil.Serve(s.router, testutil.NewJSONRequest(s.T(), http.MethodPatch, "/applications/a2/status",
			map[string]string{"status": "Approved"}))
		s.Equal(http.StatusOK, rec.Code)
		got := testutil.DecodeJSON[models.LoanApplication](s.T(), rec)
		s.Equal(models.LoanStatusApproved, got.Others.LoanStatus)
	})

	s.Run("empty body", func() {
		req := testutil.NewRawRequest(s.T(), http.MethodPatch, "/applications/a1/status", "")
		testutil.AssertError(s.T(), testutil.Serve(s.router, req), http.StatusBadRequest, "bad_request")
	})
}

func (s *LoanHandlerSuite) TestListAll() {
	s.Run("no filter", func() {
		s.svc.EXPECT().ListAll(gomock.Any()).Return(nil, nil)
		rec := testutil.Serve(s.router, testutil.NewJSONRequest(s.T(), http.MethodGet, "/applications", nil))
		s.Equal(http.StatusOK, rec.Code)
		got := testutil.DecodeJSON[ListResponse](s.T(), rec)
		s.NotNil(got.Applications)
		s.Zero(got.Count)
	})

	s.Run("status filter", func() {
		s.svc.EXPECT().ListAll(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, opts ...service.ListOption) ([]*models.LoanApplication, error) {
				var f store.Filter
				for _, opt := range opts {
					opt(&f)
				}
				s.Equal(models.LoanStatusPending, f.Status)
				return []*models.LoanApplication{application("a1", models.LoanStatusPending)}, nil
			})
		rec := testutil.Serve(s.router, testutil.NewJSONRequest(s.T(), http.MethodGet, "/applications?status=Pending", nil))
		s.Equal(http.StatusOK, rec.Code)
		s.Equal(1, testutil.DecodeJSON[ListResponse](s.T(), rec).Count)
	})

	s.Run("bad filter", func() {
		rec := testutil.Serve(s.router, testutil.NewJSONRequest(s.T(), http.MethodGet, "/applications?status=Done", nil))
		testutil.AssertError(s.T(), rec, http.StatusBadRequest, "validation_error")
	})
}

func (s *LoanHandlerSuite) TestListByFarmer() {
	s.Run("explicit farmer and limit", func() {
		s.svc.EXPECT().ListByFarmer(gomock.Any(), "f1", 5).
			Return([]*models.LoanApplication{application("a1", models.LoanStatusPending)}, nil)
		rec := testutil.Serve(s.router, testutil.NewJSONRequest(s.T(), http.MethodGet, "/farmers/f1/applications?limit=5", nil))
		s.Equal(http.StatusOK, rec.Code)
	})

	s.Run("me uses the principal", func() {
		s.svc.EXPECT().ListByFarmer(gomock.Any(), "f7", 0).Return(nil, nil)
		req := testutil.WithFarmer(testutil.NewJSONRequest(s.T(), http.MethodGet, "/farmers/me/applications", nil), "f7")
		s.Equal(http.StatusOK, testutil.Serve(s.router, req).Code)
	})

	s.Run("me without a principal", func() {
		s.svc.EXPECT().ListByFarmer(gomock.Any(), "", 0).
			Return(nil, dErrors.New(dErrors.CodeUnauthorized, "Not Authenticated"))
		rec := testutil.Serve(s.router, testutil.NewJSONRequest(s.T(), http.MethodGet, "/farmers/me/applications", nil))
		testutil.AssertError(s.T(), rec, http.StatusUnauthorized, "unauthorized")
	})

	s.Run("bad limit", func() {
		rec := testutil.Serve(s.router, testutil.NewJSONRequest(s.T(), http.MethodGet, "/farmers/f1/applications?limit=zero", nil))
		testutil.AssertError(s.T(), rec, http.StatusBadRequest, "validation_error")
	})
}

func (s *LoanHandlerSuite) TestStats() {
	s.svc.EXPECT().Stats(gomock.Any()).Return(&models.Stats{Total: 3, Pending: 1, Approved: 1, Rejected: 1}, nil)
	rec := testutil.Serve(s.router, testutil.NewJSONRequest(s.T(), http.MethodGet, "/applications/stats", nil))
	s.Equal(http.StatusOK, rec.Code)
	s.Equal(models.Stats{Total: 3, Pending: 1, Approved: 1, Rejected: 1}, testutil.DecodeJSON[models.Stats](s.T(), rec))
}

func (s *LoanHandlerSuite) TestSimulate() {
	s.Run("returns predictions", func() {
		s.svc.EXPECT().SimulateByID(gomock.Any(), "a1", gomock.Any()).DoAndReturn(
			func(_ context.Context, _ string, ov service.Overrides) (*models.ModelPredictions, error) {
				s.Require().NotNil(ov.PriceOfCrop)
				s.Equal(65.0, *ov.PriceOfCrop)
				s.Nil(ov.AvgTemp)
				s.Require().NotNil(ov.NDVI)
				s.Equal(0.4, *ov.NDVI)
				return &models.ModelPredictions{CreditScore: 690}, nil
			})
		rec := testutil.Serve(s.router, testutil.NewJSONRequest(s.T(), http.MethodPost, "/applications/a1/simulate",
			map[string]float64{"price_of_crop": 65, "NDVI": 0.4}))
		s.Equal(http.StatusOK, rec.Code, rec.Body.String())
		got := testutil.DecodeJSON[SimulateResponse](s.T(), rec)
		s.Require().NotNil(got.Predictions)
		s.Equal(690.0, got.Predictions.CreditScore)
	})

	s.Run("out of range override is rejected before scoring", func() {
		rec := testutil.Serve(s.router, testutil.NewJSONRequest(s.T(), http.MethodPost, "/applications/a1/simulate",
			map[string]float64{"NDVI": 2}))
		testutil.AssertError(s.T(), rec, http.StatusBadRequest, "validation_error")
	})
}

func (s *LoanHandlerSuite) TestScoringMiddlewareScope() {
	var hits []string
	mark := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			hits = append(hits, r.Method+" "+r.URL.Path)
			next.ServeHTTP(w, r)
		})
	}
	router := s.newRouter(WithScoringMiddleware(mark))

	s.svc.EXPECT().Get(gomock.Any(), "a1").Return(application("a1", models.LoanStatusPending), nil)
	s.svc.EXPECT().SimulateByID(gomock.Any(), "a1", gomock.Any()).Return(&models.ModelPredictions{}, nil)

	testutil.Serve(router, testutil.NewJSONRequest(s.T(), http.MethodGet, "/applications/a1", nil))
	testutil.Serve(router, testutil.NewJSONRequest(s.T(), http.MethodPost, "/applications/a1/simulate", map[string]any{}))

	s.Equal([]string{"POST /applications/a1/simulate"}, hits)
}
