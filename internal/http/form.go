package http

import (
	"embed"
	"errors"
	"html/template"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/jmehdipour/satisfaction-predictor/internal/ensemble"
	"github.com/jmehdipour/satisfaction-predictor/internal/model"
	"github.com/jmehdipour/satisfaction-predictor/internal/service/prediction"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

//go:embed templates/*.html
var templatesFS embed.FS

type templateRenderer struct {
	t *template.Template
}

func newTemplateRenderer() *templateRenderer {
	return &templateRenderer{t: template.Must(template.ParseFS(templatesFS, "templates/*.html"))}
}

func (r *templateRenderer) Render(w io.Writer, name string, data any, _ echo.Context) error {
	return r.t.ExecuteTemplate(w, name, data)
}

type numericField struct {
	Name  string
	Label string
	Value float64
}

type selectField struct {
	Name     string
	Label    string
	Options  []string
	Selected string
}

type formResult struct {
	Prediction string
	Satisfied  bool
	Votes      string
}

type formPage struct {
	Warnings []string
	Numeric  []numericField
	Selects  []selectField
	Ready    bool
	Result   *formResult
	Error    string
}

func newFormPage(svc *prediction.Service, rec model.FeatureRecord) formPage {
	v := svc.Vocabulary()
	return formPage{
		Warnings: svc.Status().Warnings,
		Ready:    svc.Ready(),
		Numeric: []numericField{
			{model.FeatureProcessingTime, "Processing time (days)", rec.ProcessingTimeDays},
			{model.FeatureDeliveryTime, "Delivery time (days)", rec.DeliveryTimeDays},
			{model.FeatureDeliveryDelay, "Delivery delay (days)", rec.DeliveryDelayDays},
			{model.FeatureReviewTime, "Review time (days)", rec.ReviewTimeDays},
			{model.FeaturePaymentValue, "Payment value", rec.PaymentValue},
		},
		Selects: []selectField{
			{model.FeatureCustomerState, "Customer region", v.Regions, rec.CustomerState},
			{model.FeatureProductCategory, "Product category", v.Categories, rec.ProductCategory},
			{model.FeatureOrderStatus, "Order status", v.OrderStatuses, rec.OrderStatus},
			{model.FeaturePaymentType, "Payment type", v.PaymentTypes, rec.PaymentType},
		},
	}
}

// defaultRecord has every numeric at zero and every select on its first option.
func defaultRecord(v model.Vocabulary) model.FeatureRecord {
	first := func(opts []string) string {
		if len(opts) == 0 {
			return ""
		}
		return opts[0]
	}
	return model.FeatureRecord{
		CustomerState:   first(v.Regions),
		ProductCategory: first(v.Categories),
		OrderStatus:     first(v.OrderStatuses),
		PaymentType:     first(v.PaymentTypes),
	}
}

func formHandler(svc *prediction.Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.Render(http.StatusOK, "index.html", newFormPage(svc, defaultRecord(svc.Vocabulary())))
	}
}

func formSubmitHandler(svc *prediction.Service, logger *zap.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		rec, perrs := recordFromForm(c)
		page := newFormPage(svc, rec)
		if !svc.Ready() {
			page.Error = formErrorMessage(ensemble.ErrEmptyEnsemble)
			return c.Render(http.StatusServiceUnavailable, "index.html", page)
		}
		if len(perrs) > 0 {
			page.Error = "Invalid input: " + perrs.Error()
			return c.Render(http.StatusUnprocessableEntity, "index.html", page)
		}

		out, err := svc.Predict(c.Request().Context(), rec)
		if err != nil {
			page.Error = formErrorMessage(err)
			if errors.Is(err, ensemble.ErrEmptyEnsemble) {
				return c.Render(http.StatusServiceUnavailable, "index.html", page)
			}
			if !errors.Is(err, prediction.ErrInvalidRecord) {
				logger.Warn("form prediction failed", zap.Error(err))
			}
			return c.Render(http.StatusUnprocessableEntity, "index.html", page)
		}

		page.Result = &formResult{
			Prediction: out.Label.String(),
			Satisfied:  out.Label == model.LabelSatisfied,
			Votes:      out.Tally.String(),
		}
		return c.Render(http.StatusOK, "index.html", page)
	}
}

func formErrorMessage(err error) string {
	var (
		verrs model.ValidationErrors
		pf    *ensemble.PredictionFailure
	)
	switch {
	case errors.Is(err, ensemble.ErrEmptyEnsemble):
		return "Model not loaded, cannot predict."
	case errors.As(err, &verrs):
		return "Invalid input: " + verrs.Error()
	case errors.As(err, &pf):
		return "Error during prediction: " + pf.Err.Error()
	default:
		return "Error during prediction: " + err.Error()
	}
}

// recordFromForm reads the submitted fields. Empty numeric inputs count as 0.
func recordFromForm(c echo.Context) (model.FeatureRecord, model.ValidationErrors) {
	var errs model.ValidationErrors
	num := func(name string) float64 {
		raw := strings.TrimSpace(c.FormValue(name))
		if raw == "" {
			return 0
		}
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			errs = append(errs, model.ValidationError{Field: name, Message: "must be a number"})
			return 0
		}
		return f
	}
	str := func(name string) string { return strings.TrimSpace(c.FormValue(name)) }

	rec := model.FeatureRecord{
		ProcessingTimeDays: num(model.FeatureProcessingTime),
		DeliveryTimeDays:   num(model.FeatureDeliveryTime),
		DeliveryDelayDays:  num(model.FeatureDeliveryDelay),
		ReviewTimeDays:     num(model.FeatureReviewTime),
		PaymentValue:       num(model.FeaturePaymentValue),
		CustomerState:      str(model.FeatureCustomerState),
		ProductCategory:    str(model.FeatureProductCategory),
		OrderStatus:        str(model.FeatureOrderStatus),
		PaymentType:        str(model.FeaturePaymentType),
	}
	return rec, errs
}
