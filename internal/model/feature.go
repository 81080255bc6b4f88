package model

// Feature column names, as the classifiers were trained on them.
const (
	FeatureProcessingTime  = "processing_time_days"
	FeatureDeliveryTime    = "delivery_time_days"
	FeatureDeliveryDelay   = "delivery_delay_days"
	FeatureReviewTime      = "review_time_days"
	FeaturePaymentValue    = "payment_value"
	FeatureCustomerState   = "new_customer_state"
	FeatureProductCategory = "product_category_name_english"
	FeatureOrderStatus     = "order_status"
	FeaturePaymentType     = "payment_type"
)

// FeatureRecord is one fully populated order row consumed by every classifier.
type FeatureRecord struct {
	ProcessingTimeDays float64 `json:"processing_time_days"`
	DeliveryTimeDays   float64 `json:"delivery_time_days"`
	DeliveryDelayDays  float64 `json:"delivery_delay_days"`
	ReviewTimeDays     float64 `json:"review_time_days"`
	PaymentValue       float64 `json:"payment_value"`

	CustomerState   string `json:"new_customer_state"`
	ProductCategory string `json:"product_category_name_english"`
	OrderStatus     string `json:"order_status"`
	PaymentType     string `json:"payment_type"`
}

// Numeric returns the numeric columns keyed by feature name.
func (r FeatureRecord) Numeric() map[string]float64 {
	return map[string]float64{
		FeatureProcessingTime: r.ProcessingTimeDays,
		FeatureDeliveryTime:   r.DeliveryTimeDays,
		FeatureDeliveryDelay:  r.DeliveryDelayDays,
		FeatureReviewTime:     r.ReviewTimeDays,
		FeaturePaymentValue:   r.PaymentValue,
	}
}

// Categorical returns the categorical columns keyed by feature name.
func (r FeatureRecord) Categorical() map[string]string {
	return map[string]string{
		FeatureCustomerState:   r.CustomerState,
		FeatureProductCategory: r.ProductCategory,
		FeatureOrderStatus:     r.OrderStatus,
		FeaturePaymentType:     r.PaymentType,
	}
}
