package model

import (
	"fmt"
	"math"
	"slices"
	"strings"
)

var (
	// Regions are the grouped Brazilian customer regions offered by the form.
	Regions = []string{
		"Tenggara (Sudeste)",
		"Selatan (Sul)",
		"Timur Laut (Nordeste)",
		"Tengah-Barat (Centro-Oeste)",
		"Utara (Norte)",
	}

	OrderStatuses = []string{"delivered", "canceled"}

	PaymentTypes = []string{
		"credit_card",
		"boleto",
		"voucher",
		"debit_card",
		"credit_card,voucher",
		"voucher,credit_card",
	}
)

// Vocabulary holds the allowed values of every categorical feature.
type Vocabulary struct {
	Regions       []string `json:"regions"`
	Categories    []string `json:"product_categories"`
	OrderStatuses []string `json:"order_statuses"`
	PaymentTypes  []string `json:"payment_types"`
}

// NewVocabulary combines the fixed lists with product categories loaded at startup.
func NewVocabulary(categories []string) Vocabulary {
	return Vocabulary{
		Regions:       slices.Clone(Regions),
		Categories:    slices.Clone(categories),
		OrderStatuses: slices.Clone(OrderStatuses),
		PaymentTypes:  slices.Clone(PaymentTypes),
	}
}

// ValidationError describes one invalid field of a FeatureRecord.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationErrors is returned by Vocabulary.Validate when a record is rejected.
type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	parts := make([]string, 0, len(v))
	for _, e := range v {
		parts = append(parts, e.Field+": "+e.Message)
	}
	return strings.Join(parts, "; ")
}

// Validate checks that every numeric field is finite and every categorical
// field belongs to its vocabulary. It returns nil or ValidationErrors.
func (v Vocabulary) Validate(r FeatureRecord) error {
	var errs ValidationErrors

	numeric := []struct {
		name  string
		value float64
	}{
		{FeatureProcessingTime, r.ProcessingTimeDays},
		{FeatureDeliveryTime, r.DeliveryTimeDays},
		{FeatureDeliveryDelay, r.DeliveryDelayDays},
		{FeatureReviewTime, r.ReviewTimeDays},
		{FeaturePaymentValue, r.PaymentValue},
	}
	for _, n := range numeric {
		if math.IsNaN(n.value) || math.IsInf(n.value, 0) {
			errs = append(errs, ValidationError{Field: n.name, Message: "must be a finite number"})
		}
	}

	categorical := []struct {
		name    string
		value   string
		allowed []string
	}{
		{FeatureCustomerState, r.CustomerState, v.Regions},
		{FeatureProductCategory, r.ProductCategory, v.Categories},
		{FeatureOrderStatus, r.OrderStatus, v.OrderStatuses},
		{FeaturePaymentType, r.PaymentType, v.PaymentTypes},
	}
	for _, c := range categorical {
		switch {
		case len(c.allowed) == 0:
			errs = append(errs, ValidationError{Field: c.name, Message: "no valid values available"})
		case c.value == "":
			errs = append(errs, ValidationError{Field: c.name, Message: "required"})
		case !slices.Contains(c.allowed, c.value):
			errs = append(errs, ValidationError{Field: c.name, Message: fmt.Sprintf("unknown value %q", c.value)})
		}
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}
