package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/jmehdipour/satisfaction-predictor/internal/config"
	"github.com/jmehdipour/satisfaction-predictor/internal/model"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newPredictCmd(cfgPath *string) *cobra.Command {
	var (
		rec    model.FeatureRecord
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "predict",
		Short: "Predict satisfaction for one order",
		Example: `  satisfaction-predictor predict --processing-time-days 2 --delivery-time-days 8 \
    --payment-value 129.9 --customer-state "Tenggara (Sudeste)" \
    --product-category toys --order-status delivered --payment-type credit_card`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*cfgPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			// one-shot output stays free of log lines; warnings are printed below
			svc := loadService(cfg, zap.NewNop())
			for _, w := range svc.Status().Warnings {
				fmt.Fprintln(cmd.ErrOrStderr(), "warning:", w)
			}

			out, err := svc.Predict(cmd.Context(), rec)
			if err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				return enc.Encode(map[string]any{
					"id":         out.ID,
					"label":      out.Label,
					"prediction": out.Label.String(),
					"votes":      out.Tally,
					"models":     out.Models,
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Prediction: %s\nVotes: %s\nModels: %d\n", out.Label, out.Tally, out.Models)
			return nil
		},
	}

	f := cmd.Flags()
	f.Float64Var(&rec.ProcessingTimeDays, "processing-time-days", 0, "days between purchase and carrier hand-off")
	f.Float64Var(&rec.DeliveryTimeDays, "delivery-time-days", 0, "days between purchase and delivery")
	f.Float64Var(&rec.DeliveryDelayDays, "delivery-delay-days", 0, "days delivered after the estimate (negative when early)")
	f.Float64Var(&rec.ReviewTimeDays, "review-time-days", 0, "days between delivery and review")
	f.Float64Var(&rec.PaymentValue, "payment-value", 0, "total paid for the order")
	f.StringVar(&rec.CustomerState, "customer-state", "", "customer region")
	f.StringVar(&rec.ProductCategory, "product-category", "", "product category (from the category list)")
	f.StringVar(&rec.OrderStatus, "order-status", "", "order status")
	f.StringVar(&rec.PaymentType, "payment-type", "", "payment type")
	f.BoolVar(&asJSON, "json", false, "print the result as JSON")

	return cmd
}
