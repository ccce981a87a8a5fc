package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"diagnosis-service/internal/common"
	"diagnosis-service/internal/metrics"
	"diagnosis-service/internal/ml"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const scenarioJSON = `{
	"age": 30, "sex": "M", "temperature": 38, "heart_rate": 90,
	"symptom_fever": 1, "symptom_cough": 1, "symptom_fatigue": 0,
	"symptom_headache": 1, "symptom_nausea": 0, "symptom_vomiting": 0,
	"symptom_diarrhea": 0, "symptom_sore_throat": 1,
	"symptom_shortness_of_breath": 0,
	"comorb_diabetes": 0, "comorb_htn": 0
}`

func newTestServer(t *testing.T, model ml.Classifier) (*Server, *metrics.Metrics) {
	t.Helper()
	m := metrics.NewWithRegistry(prometheus.NewRegistry())
	p, err := ml.NewPredictor(model, metrics.NewWrapper(m))
	require.NoError(t, err)

	s, err := New(Config{Addr: ":0", MetricsEnabled: true}, p, m)
	require.NoError(t, err)
	return s, m
}

func stubModel() *ml.StubClassifier {
	return &ml.StubClassifier{
		Labels: []string{"Common Cold", "Influenza", "Migraine"},
		Probs:  []float64{0.123456, 0.654321, 0.222223},
	}
}

func do(t *testing.T, h http.Handler, method, target, contentType, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestNew_RequiresPredictor(t *testing.T) {
	_, err := New(Config{}, nil, nil)
	assert.ErrorIs(t, err, common.ErrModelNotLoaded)
}

func TestPredict_JSONRankedAndRounded(t *testing.T) {
	s, _ := newTestServer(t, stubModel())

	rec := do(t, s.Handler(), http.MethodPost, "/predict", "application/json", scenarioJSON)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var resp PredictResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	assert.Equal(t, common.Disclaimer, resp.Disclaimer)
	assert.Equal(t, []ml.Prediction{
		{Diagnosis: "Influenza", Probability: 0.6543},
		{Diagnosis: "Migraine", Probability: 0.2222},
		{Diagnosis: "Common Cold", Probability: 0.1235},
	}, resp.Predictions)
}

func TestPredict_JSONWithCharset(t *testing.T) {
	s, _ := newTestServer(t, stubModel())

	rec := do(t, s.Handler(), http.MethodPost, "/predict", "application/json; charset=utf-8", scenarioJSON)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestPredict_SyntheticForest(t *testing.T) {
	s, _ := newTestServer(t, ml.SyntheticForest())

	rec := do(t, s.Handler(), http.MethodPost, "/predict", "application/json", scenarioJSON)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp PredictResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Predictions, len(ml.SyntheticClasses))

	sum := 0.0
	for i, p := range resp.Predictions {
		sum += p.Probability
		if i > 0 {
			assert.GreaterOrEqual(t, resp.Predictions[i-1].Probability, p.Probability)
		}
	}
	assert.InDelta(t, 1.0, sum, 0.001)
}

func TestPredict_MissingFieldJSON(t *testing.T) {
	s, m := newTestServer(t, stubModel())

	body := strings.Replace(scenarioJSON, `"age": 30, `, "", 1)
	rec := do(t, s.Handler(), http.MethodPost, "/predict", "application/json", body)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"Missing field: age"}`, rec.Body.String())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ValidationErrors.WithLabelValues("age", "missing")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.Predictions))
}

func TestPredict_InvalidFieldJSON(t *testing.T) {
	s, _ := newTestServer(t, stubModel())

	body := strings.Replace(scenarioJSON, `"heart_rate": 90`, `"heart_rate": "fast"`, 1)
	rec := do(t, s.Handler(), http.MethodPost, "/predict", "application/json", body)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"Invalid field: heart_rate"}`, rec.Body.String())
}

func TestPredict_MalformedJSON(t *testing.T) {
	s, _ := newTestServer(t, stubModel())

	for _, body := range []string{`{"age":`, `[1,2,3]`, `null`} {
		rec := do(t, s.Handler(), http.MethodPost, "/predict", "application/json", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
		assert.JSONEq(t, `{"error":"invalid request body"}`, rec.Body.String(), body)
	}
}

func TestPredict_Form(t *testing.T) {
	s, _ := newTestServer(t, stubModel())

	form := url.Values{
		"age":             {"30"},
		"sex":             {"F"},
		"temperature":     {"38"},
		"heart_rate":      {"90"},
		"symptom_fever":   {"1"},
		"comorb_diabetes": {"0"},
		"comorb_htn":      {"1"},
	}
	rec := do(t, s.Handler(), http.MethodPost, "/predict", "application/x-www-form-urlencoded", form.Encode())

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")

	body := rec.Body.String()
	assert.Contains(t, body, common.Disclaimer)
	influenza := strings.Index(body, "Influenza")
	migraine := strings.Index(body, "Migraine")
	cold := strings.Index(body, "Common Cold")
	require.True(t, influenza >= 0 && migraine >= 0 && cold >= 0)
	assert.Less(t, influenza, migraine)
	assert.Less(t, migraine, cold)
	assert.Contains(t, body, "0.6543")
}

func TestPredict_FormErrorPage(t *testing.T) {
	s, _ := newTestServer(t, stubModel())

	form := url.Values{
		"age":             {"30"},
		"sex":             {"M"},
		"temperature":     {"37.5"},
		"heart_rate":      {"90"},
		"comorb_diabetes": {"0"},
		"comorb_htn":      {"0"},
	}
	rec := do(t, s.Handler(), http.MethodPost, "/predict", "application/x-www-form-urlencoded", form.Encode())

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rec.Body.String(), "Invalid field: temperature")
}

func TestPredict_ModelFailure(t *testing.T) {
	model := stubModel()
	model.Err = errors.New("boom")
	s, m := newTestServer(t, model)

	rec := do(t, s.Handler(), http.MethodPost, "/predict", "application/json", scenarioJSON)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"prediction failed"}`, rec.Body.String())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PredictionFailures))
}

func TestPredict_BodyTooLarge(t *testing.T) {
	m := metrics.NewWithRegistry(prometheus.NewRegistry())
	p, err := ml.NewPredictor(stubModel(), metrics.NewWrapper(m))
	require.NoError(t, err)
	s, err := New(Config{MaxBodyBytes: 64}, p, m)
	require.NoError(t, err)

	rec := do(t, s.Handler(), http.MethodPost, "/predict", "application/json", scenarioJSON)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPredict_MethodNotAllowed(t *testing.T) {
	s, _ := newTestServer(t, stubModel())

	rec := do(t, s.Handler(), http.MethodGet, "/predict", "", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestIndex(t *testing.T) {
	s, _ := newTestServer(t, stubModel())

	rec := do(t, s.Handler(), http.MethodGet, "/", "", "")
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.Contains(t, body, `action="/predict"`)
	assert.Contains(t, body, `name="symptom_shortness_of_breath"`)
	assert.Contains(t, body, "Shortness of breath")

	rec = do(t, s.Handler(), http.MethodGet, "/nope", "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t, ml.SyntheticForest())

	rec := do(t, s.Handler(), http.MethodGet, "/health", "", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "synthetic-1", resp.ModelVersion)
	assert.Equal(t, len(ml.SyntheticClasses), resp.Classes)
}

func TestModelInfo(t *testing.T) {
	s, _ := newTestServer(t, ml.SyntheticForest())

	rec := do(t, s.Handler(), http.MethodGet, "/model/info", "", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var info ml.Metadata
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &info))
	assert.Equal(t, ml.SyntheticClasses, info.Classes)
	assert.Len(t, info.Features, 15)
	assert.Equal(t, "age", info.Features[0])
}

func TestMetricsEndpoint(t *testing.T) {
	s, m := newTestServer(t, stubModel())
	h := s.Handler()

	do(t, h, http.MethodPost, "/predict", "application/json", scenarioJSON)
	rec := do(t, h, http.MethodGet, "/metrics", "", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "diagnosis_predictions_total 1")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequests.WithLabelValues("POST /predict", "200")))
}

func TestMetricsEndpoint_Disabled(t *testing.T) {
	p, err := ml.NewPredictor(stubModel(), nil)
	require.NoError(t, err)
	s, err := New(Config{}, p, nil)
	require.NoError(t, err)

	rec := do(t, s.Handler(), http.MethodGet, "/metrics", "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, s.Handler(), http.MethodPost, "/predict", "application/json", scenarioJSON)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequestID(t *testing.T) {
	s, _ := newTestServer(t, stubModel())

	rec := do(t, s.Handler(), http.MethodGet, "/health", "", "")
	assert.NotEmpty(t, rec.Header().Get(requestIDHeader))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(requestIDHeader, "abc-123")
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, "abc-123", rec.Header().Get(requestIDHeader))
}

func TestRecoverMiddleware(t *testing.T) {
	s, _ := newTestServer(t, stubModel())

	h := s.recoverMiddleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestFieldLabel(t *testing.T) {
	tests := map[string]string{
		"symptom_sore_throat": "Sore throat",
		"symptom_fever":       "Fever",
		"comorb_htn":          "Comorb htn",
		"":                    "",
	}
	for in, want := range tests {
		assert.Equal(t, want, fieldLabel(in), in)
	}
}
