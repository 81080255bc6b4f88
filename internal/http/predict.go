package http

import (
	"errors"
	"net/http"

	"github.com/jmehdipour/satisfaction-predictor/internal/ensemble"
	"github.com/jmehdipour/satisfaction-predictor/internal/model"
	"github.com/jmehdipour/satisfaction-predictor/internal/service/prediction"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// predictReq keeps numerics as pointers so an absent field is told apart
// from an explicit zero.
type predictReq struct {
	ProcessingTimeDays *float64 `json:"processing_time_days"`
	DeliveryTimeDays   *float64 `json:"delivery_time_days"`
	DeliveryDelayDays  *float64 `json:"delivery_delay_days"`
	ReviewTimeDays     *float64 `json:"review_time_days"`
	PaymentValue       *float64 `json:"payment_value"`

	CustomerState   string `json:"new_customer_state"`
	ProductCategory string `json:"product_category_name_english"`
	OrderStatus     string `json:"order_status"`
	PaymentType     string `json:"payment_type"`
}

func (r predictReq) record() (model.FeatureRecord, model.ValidationErrors) {
	var missing model.ValidationErrors
	num := func(name string, v *float64) float64 {
		if v == nil {
			missing = append(missing, model.ValidationError{Field: name, Message: "required"})
			return 0
		}
		return *v
	}

	rec := model.FeatureRecord{
		ProcessingTimeDays: num(model.FeatureProcessingTime, r.ProcessingTimeDays),
		DeliveryTimeDays:   num(model.FeatureDeliveryTime, r.DeliveryTimeDays),
		DeliveryDelayDays:  num(model.FeatureDeliveryDelay, r.DeliveryDelayDays),
		ReviewTimeDays:     num(model.FeatureReviewTime, r.ReviewTimeDays),
		PaymentValue:       num(model.FeaturePaymentValue, r.PaymentValue),
		CustomerState:      r.CustomerState,
		ProductCategory:    r.ProductCategory,
		OrderStatus:        r.OrderStatus,
		PaymentType:        r.PaymentType,
	}
	return rec, missing
}

type predictResp struct {
	ID         string             `json:"id"`
	Label      model.Label        `json:"label"`
	Prediction string             `json:"prediction"`
	Votes      ensemble.VoteTally `json:"votes"`
	Models     int                `json:"models"`
}

func predictHandler(svc *prediction.Service, logger *zap.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req predictReq
		if err := c.Bind(&req); err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "bad request"})
		}

		if !svc.Ready() {
			return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": ensemble.ErrEmptyEnsemble.Error()})
		}

		rec, missing := req.record()
		if len(missing) > 0 {
			return c.JSON(http.StatusUnprocessableEntity, map[string]any{
				"error":  prediction.ErrInvalidRecord.Error(),
				"fields": missing,
			})
		}

		out, err := svc.Predict(c.Request().Context(), rec)
		if err != nil {
			return predictError(c, logger, err)
		}

		return c.JSON(http.StatusOK, predictResp{
			ID:         out.ID,
			Label:      out.Label,
			Prediction: out.Label.String(),
			Votes:      out.Tally,
			Models:     out.Models,
		})
	}
}

func predictError(c echo.Context, logger *zap.Logger, err error) error {
	var (
		verrs model.ValidationErrors
		pf    *ensemble.PredictionFailure
	)
	switch {
	case errors.Is(err, ensemble.ErrEmptyEnsemble):
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": err.Error()})
	case errors.As(err, &verrs):
		return c.JSON(http.StatusUnprocessableEntity, map[string]any{
			"error":  prediction.ErrInvalidRecord.Error(),
			"fields": verrs,
		})
	case errors.As(err, &pf):
		return c.JSON(http.StatusUnprocessableEntity, map[string]any{
			"error": "prediction failed",
			"model": pf.Source,
			"cause": pf.Err.Error(),
		})
	}

	logger.Error("predict failed", zap.Error(err))

	return c.JSON(http.StatusInternalServerError, map[string]string{"error": "internal error"})
}

func vocabularyHandler(svc *prediction.Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.JSON(http.StatusOK, svc.Vocabulary())
	}
}

type loadFailureResp struct {
	Source  string `json:"source"`
	Missing bool   `json:"missing"`
	Error   string `json:"error"`
}

func modelsHandler(svc *prediction.Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		st := svc.Status()
		failures := make([]loadFailureResp, 0, len(st.Failures))
		for _, f := range st.Failures {
			failures = append(failures, loadFailureResp{
				Source:  f.Source,
				Missing: f.Missing(),
				Error:   f.Err.Error(),
			})
		}
		loaded := st.Loaded
		if loaded == nil {
			loaded = []string{}
		}
		warnings := st.Warnings
		if warnings == nil {
			warnings = []string{}
		}

		return c.JSON(http.StatusOK, map[string]any{
			"ready":    svc.Ready(),
			"loaded":   loaded,
			"failures": failures,
			"warnings": warnings,
		})
	}
}

func readyHandler(svc *prediction.Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		if !svc.Ready() {
			return c.String(http.StatusServiceUnavailable, "no models loaded")
		}
		return c.String(http.StatusOK, "ok")
	}
}
