package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/jmehdipour/satisfaction-predictor/internal/config"
	"github.com/jmehdipour/satisfaction-predictor/internal/ensemble"
	"github.com/jmehdipour/satisfaction-predictor/internal/model"
	"github.com/jmehdipour/satisfaction-predictor/internal/service/prediction"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type stubClassifier struct {
	label model.Label
	err   error
}

func (s stubClassifier) Predict(model.FeatureRecord) (model.Label, error) { return s.label, s.err }

func newTestServer(t *testing.T, svc *prediction.Service) *Server {
	t.Helper()
	return NewServer(config.Config{}, svc, nil, zaptest.NewLogger(t))
}

func serviceWith(t *testing.T, members []ensemble.Member, status prediction.Status) *prediction.Service {
	t.Helper()
	return prediction.New(ensemble.New(members...), model.NewVocabulary([]string{"toys", "auto"}), status, zaptest.NewLogger(t))
}

func votingService(t *testing.T, labels ...model.Label) *prediction.Service {
	t.Helper()
	members := make([]ensemble.Member, len(labels))
	for i, l := range labels {
		members[i] = ensemble.Member{Source: fmt.Sprintf("fold%d", i+1), Classifier: stubClassifier{label: l}}
	}
	return serviceWith(t, members, prediction.Status{})
}

const validBody = `{
	"processing_time_days": 2,
	"delivery_time_days": 8,
	"delivery_delay_days": -3,
	"review_time_days": 1,
	"payment_value": 129.9,
	"new_customer_state": "Tenggara (Sudeste)",
	"product_category_name_english": "toys",
	"order_status": "delivered",
	"payment_type": "credit_card"
}`

func do(s *Server, method, target, contentType, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if contentType != "" {
		req.Header.Set(echo.HeaderContentType, contentType)
	}
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func TestPredict_OK(t *testing.T) {
	s := newTestServer(t, votingService(t, 1, 0, 1))

	rec := do(s, http.MethodPost, "/v1/predict", echo.MIMEApplicationJSON, validBody)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp["id"], 26)
	assert.Equal(t, 1.0, resp["label"])
	assert.Equal(t, "Satisfied", resp["prediction"])
	assert.Equal(t, 3.0, resp["models"])
	assert.Contains(t, rec.Body.String(), `"votes":{"1":2,"0":1}`)
	assert.Len(t, rec.Header().Get(echo.HeaderXRequestID), 26)
}

func TestPredict_TieUsesFirstVote(t *testing.T) {
	s := newTestServer(t, votingService(t, 0, 1, 1, 0))

	rec := do(s, http.MethodPost, "/v1/predict", echo.MIMEApplicationJSON, validBody)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"prediction":"Not Satisfied"`)
}

func TestPredict_Errors(t *testing.T) {
	boom := errors.New("unknown category \"voucher\"")
	failing := serviceWith(t, []ensemble.Member{
		{Source: "fold1", Classifier: stubClassifier{label: 1}},
		{Source: "fold2", Classifier: stubClassifier{err: boom}},
	}, prediction.Status{})

	tests := []struct {
		name     string
		svc      *prediction.Service
		body     string
		wantCode int
		wantBody []string
	}{
		{
			name:     "malformed json",
			svc:      votingService(t, 1),
			body:     `{"processing_time_days": "fast"`,
			wantCode: http.StatusBadRequest,
			wantBody: []string{`"error":"bad request"`},
		},
		{
			name:     "missing numeric",
			svc:      votingService(t, 1),
			body:     `{"new_customer_state":"Selatan (Sul)","product_category_name_english":"toys","order_status":"delivered","payment_type":"boleto"}`,
			wantCode: http.StatusUnprocessableEntity,
			wantBody: []string{`"field":"processing_time_days"`, `"message":"required"`},
		},
		{
			name:     "value outside vocabulary",
			svc:      votingService(t, 1),
			body:     strings.Replace(validBody, `"toys"`, `"spaceships"`, 1),
			wantCode: http.StatusUnprocessableEntity,
			wantBody: []string{`"field":"product_category_name_english"`, `unknown value`},
		},
		{
			name:     "no models",
			svc:      votingService(t),
			body:     validBody,
			wantCode: http.StatusServiceUnavailable,
			wantBody: []string{`"error":"cannot predict, no models available"`},
		},
		{
			name:     "no models wins over missing fields",
			svc:      votingService(t),
			body:     `{"payment_type":"boleto"}`,
			wantCode: http.StatusServiceUnavailable,
			wantBody: []string{`"error":"cannot predict, no models available"`},
		},
		{
			name:     "member failure",
			svc:      failing,
			body:     validBody,
			wantCode: http.StatusUnprocessableEntity,
			wantBody: []string{`"error":"prediction failed"`, `"model":"fold2"`, `voucher`},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(newTestServer(t, tt.svc), http.MethodPost, "/v1/predict", echo.MIMEApplicationJSON, tt.body)

			assert.Equal(t, tt.wantCode, rec.Code)
			for _, want := range tt.wantBody {
				assert.Contains(t, rec.Body.String(), want)
			}
		})
	}
}

func TestVocabulary(t *testing.T) {
	s := newTestServer(t, votingService(t, 1))

	rec := do(s, http.MethodGet, "/v1/vocabulary", "", "")

	require.Equal(t, http.StatusOK, rec.Code)
	var v model.Vocabulary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	assert.Equal(t, []string{"toys", "auto"}, v.Categories)
	assert.Equal(t, model.Regions, v.Regions)
	assert.Equal(t, model.PaymentTypes, v.PaymentTypes)
}

func TestModels(t *testing.T) {
	missing := ensemble.LoadFailure{Source: "fold3.json", Err: fmt.Errorf("read model: %w", fs.ErrNotExist)}
	svc := serviceWith(t,
		[]ensemble.Member{{Source: "fold1.json", Classifier: stubClassifier{}}},
		prediction.Status{
			Loaded:   []string{"fold1.json"},
			Failures: []ensemble.LoadFailure{missing},
			Warnings: []string{missing.Error()},
		},
	)

	rec := do(newTestServer(t, svc), http.MethodGet, "/v1/models", "", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{
		"ready": true,
		"loaded": ["fold1.json"],
		"failures": [{"source": "fold3.json", "missing": true, "error": "read model: file does not exist"}],
		"warnings": ["failed to load model \"fold3.json\": read model: file does not exist"]
	}`, rec.Body.String())
}

func TestHealth(t *testing.T) {
	ready := newTestServer(t, votingService(t, 1))
	empty := newTestServer(t, votingService(t))

	assert.Equal(t, http.StatusOK, do(ready, http.MethodGet, "/healthz", "", "").Code)
	assert.Equal(t, http.StatusOK, do(empty, http.MethodGet, "/healthz", "", "").Code)
	assert.Equal(t, http.StatusOK, do(ready, http.MethodGet, "/readyz", "", "").Code)
	assert.Equal(t, http.StatusServiceUnavailable, do(empty, http.MethodGet, "/readyz", "", "").Code)
	assert.Equal(t, http.StatusOK, do(ready, http.MethodGet, "/metrics", "", "").Code)
}

func formBody(overrides map[string]string) string {
	v := url.Values{}
	v.Set(model.FeatureProcessingTime, "2")
	v.Set(model.FeatureDeliveryTime, "8")
	v.Set(model.FeatureDeliveryDelay, "0")
	v.Set(model.FeatureReviewTime, "1")
	v.Set(model.FeaturePaymentValue, "54.2")
	v.Set(model.FeatureCustomerState, "Selatan (Sul)")
	v.Set(model.FeatureProductCategory, "auto")
	v.Set(model.FeatureOrderStatus, "delivered")
	v.Set(model.FeaturePaymentType, "boleto")
	for k, val := range overrides {
		v.Set(k, val)
	}
	return v.Encode()
}

func TestForm_Get(t *testing.T) {
	status := prediction.Status{Warnings: []string{`category list "kategori.txt" not found`}}
	svc := serviceWith(t, []ensemble.Member{{Source: "fold1", Classifier: stubClassifier{}}}, status)

	rec := do(newTestServer(t, svc), http.MethodGet, "/", "", "")

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `name="processing_time_days"`)
	assert.Contains(t, body, `<option value="toys" selected>toys</option>`)
	assert.Contains(t, body, `<option value="auto">auto</option>`)
	assert.Contains(t, body, `<option value="Tenggara (Sudeste)" selected>`)
	assert.Contains(t, body, `category list &#34;kategori.txt&#34; not found`)
	assert.NotContains(t, body, "disabled")
}

func TestForm_Submit(t *testing.T) {
	s := newTestServer(t, votingService(t, 0, 0, 1))

	rec := do(s, http.MethodPost, "/", echo.MIMEApplicationForm, formBody(nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "<strong>Not Satisfied</strong>")
	assert.Contains(t, body, "Votes: {0: 2, 1: 1}")
	assert.Contains(t, body, `<option value="auto" selected>auto</option>`)
	assert.Contains(t, body, `<option value="boleto" selected>boleto</option>`)
}

func TestForm_SubmitErrors(t *testing.T) {
	tests := []struct {
		name      string
		svc       *prediction.Service
		overrides map[string]string
		wantCode  int
		want      string
	}{
		{"no models", votingService(t), nil, http.StatusServiceUnavailable, "Model not loaded, cannot predict."},
		{"no models and bad input", votingService(t), map[string]string{model.FeaturePaymentValue: "lots"}, http.StatusServiceUnavailable, "Model not loaded, cannot predict."},
		{"not a number", votingService(t, 1), map[string]string{model.FeaturePaymentValue: "lots"}, http.StatusUnprocessableEntity, "payment_value: must be a number"},
		{"unknown status", votingService(t, 1), map[string]string{model.FeatureOrderStatus: "lost"}, http.StatusUnprocessableEntity, "order_status: unknown value"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(newTestServer(t, tt.svc), http.MethodPost, "/", echo.MIMEApplicationForm, formBody(tt.overrides))

			assert.Equal(t, tt.wantCode, rec.Code)
			assert.Contains(t, rec.Body.String(), `<p class="error" id="error">`)
			assert.Contains(t, rec.Body.String(), tt.want)
			assert.NotContains(t, rec.Body.String(), `id="result"`)
		})
	}
}

func rateLimitedServer(t *testing.T, proxies ...string) *Server {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	cfg := config.Config{
		HTTP:      config.HTTPConfig{TrustedProxies: proxies},
		RateLimit: config.RateLimitConfig{RPS: 1, KeyPrefix: "rl:ip:", Window: time.Hour},
	}
	return NewServer(cfg, votingService(t, 1), rdb, zaptest.NewLogger(t))
}

func predictFrom(s *Server, remote, forwardedFor string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/v1/predict", strings.NewReader(validBody))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.RemoteAddr = remote
	if forwardedFor != "" {
		req.Header.Set(echo.HeaderXForwardedFor, forwardedFor)
		req.Header.Set(echo.HeaderXRealIP, forwardedFor)
	}
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func TestRateLimit_IgnoresForwardedHeadersByDefault(t *testing.T) {
	s := rateLimitedServer(t)

	assert.Equal(t, http.StatusOK, predictFrom(s, "203.0.113.7:4000", "1.1.1.1").Code)
	assert.Equal(t, http.StatusTooManyRequests, predictFrom(s, "203.0.113.7:4001", "2.2.2.2").Code)
	assert.Equal(t, http.StatusTooManyRequests, predictFrom(s, "203.0.113.7:4002", "3.3.3.3").Code)
	assert.Equal(t, http.StatusOK, predictFrom(s, "203.0.113.8:4000", "").Code)
}

func TestRateLimit_TrustedProxy(t *testing.T) {
	s := rateLimitedServer(t, "10.0.0.0/8")

	// behind the proxy, each forwarded client gets its own window
	assert.Equal(t, http.StatusOK, predictFrom(s, "10.1.2.3:4000", "198.51.100.1").Code)
	assert.Equal(t, http.StatusOK, predictFrom(s, "10.1.2.3:4001", "198.51.100.2").Code)
	assert.Equal(t, http.StatusTooManyRequests, predictFrom(s, "10.1.2.3:4002", "198.51.100.1").Code)

	// an untrusted peer cannot pick its own address
	assert.Equal(t, http.StatusOK, predictFrom(s, "203.0.113.7:4000", "198.51.100.3").Code)
	assert.Equal(t, http.StatusTooManyRequests, predictFrom(s, "203.0.113.7:4001", "198.51.100.4").Code)
}

func TestIPExtractor_InvalidProxy(t *testing.T) {
	_, err := ipExtractor([]string{"10.0.0.1", "not-an-ip"})
	assert.ErrorContains(t, err, "not-an-ip")

	_, err = ipExtractor([]string{"10.0.0.0/33"})
	assert.Error(t, err)
}
