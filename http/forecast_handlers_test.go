package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"retailcast/forecast"
)

// fakeForecastService scripts the service responses for handler tests.
type fakeForecastService struct {
	resp   *forecast.Response
	err    error
	status forecast.Status

	lastReq forecast.Request
}

func (f *fakeForecastService) Predict(req forecast.Request) (*forecast.Response, error) {
	f.lastReq = req
	return f.resp, f.err
}

func (f *fakeForecastService) Status() forecast.Status { return f.status }

func forecastMux(svc ForecastService) *http.ServeMux {
	mux := http.NewServeMux()
	RegisterForecastHandlers(mux, svc)
	return mux
}

func TestHandlePredictOK(t *testing.T) {
	actual := 12.0
	fake := &fakeForecastService{
		resp: &forecast.Response{
			Forecast: []forecast.Row{{
				Date:              "2024-03-30",
				SKUID:             "SKU001",
				ProductName:       "Sparkling Water",
				Category:          "Beverages",
				ActualQuantity:    &actual,
				PredictedQuantity: 11.4,
				ForecastHorizon:   7,
			}},
			Summary:       forecast.Summary{TotalActual: &actual, TotalPredicted: 11.4},
			Horizon:       7,
			Category:      "Beverages",
			ForecastStart: "2024-03-24",
			ForecastEnd:   "2024-03-30",
		},
	}
	mux := forecastMux(fake)

	body := `{"category":"Beverages","horizon":7}`
	req := httptest.NewRequest(http.MethodPost, "/api/forecast/predict", strings.NewReader(body))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body %s", rec.Code, rec.Body.String())
	}
	if fake.lastReq.Category != "Beverages" || fake.lastReq.Horizon != 7 {
		t.Fatalf("request not decoded: %+v", fake.lastReq)
	}

	var payload map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatal(err)
	}
	if payload["success"] != true {
		t.Fatalf("success flag missing: %v", payload)
	}
	if payload["forecast_end"] != "2024-03-30" {
		t.Fatalf("forecast_end = %v", payload["forecast_end"])
	}
	rows, ok := payload["forecast"].([]interface{})
	if !ok || len(rows) != 1 {
		t.Fatalf("forecast rows = %v", payload["forecast"])
	}
}

func TestHandlePredictErrors(t *testing.T) {
	cases := []struct {
		name string
		body string
		err  error
		want int
	}{
		{"malformed json", "{not json", nil, http.StatusBadRequest},
		{"validation", `{"horizon":7}`, &forecast.ValidationError{Reason: "category is required"}, http.StatusBadRequest},
		{"unknown product", `{"category":"X","horizon":7}`, forecast.ErrNotFound, http.StatusNotFound},
		{"no history", `{"category":"X","horizon":7}`, forecast.ErrNoHistory, http.StatusNotFound},
		{"short history", `{"category":"X","horizon":30}`, forecast.ErrInsufficientData, http.StatusBadRequest},
		{"model missing", `{"category":"X","horizon":7}`, forecast.ErrModelUnavailable, http.StatusServiceUnavailable},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			mux := forecastMux(&fakeForecastService{err: tc.err})
			req := httptest.NewRequest(http.MethodPost, "/api/forecast/predict", strings.NewReader(tc.body))
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, req)

			if rec.Code != tc.want {
				t.Fatalf("status = %d, want %d", rec.Code, tc.want)
			}
			var payload map[string]string
			if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
				t.Fatal(err)
			}
			if payload["error"] == "" {
				t.Fatalf("error body missing: %s", rec.Body.String())
			}
		})
	}
}

func TestHandleForecastStatus(t *testing.T) {
	available := forecast.Status{
		Available:         true,
		Status:            "available",
		ModelType:         "gradient_boosting",
		SupportedHorizons: []int{7, 14, 30},
	}
	mux := forecastMux(&fakeForecastService{status: available})

	req := httptest.NewRequest(http.MethodGet, "/api/forecast/status", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var payload forecast.Status
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatal(err)
	}
	if payload.Status != "available" || payload.ModelType != "gradient_boosting" {
		t.Fatalf("unexpected body: %s", rec.Body.String())
	}
}

func TestHandleForecastStatusUnavailable(t *testing.T) {
	mux := forecastMux(&fakeForecastService{status: forecast.Status{
		Status:  "unavailable",
		Message: "Model not loaded. Please train the model first.",
	}})

	req := httptest.NewRequest(http.MethodGet, "/api/forecast/status", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
}
