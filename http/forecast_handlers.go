package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"retailcast/forecast"
)

// ForecastService is the slice of the forecast service the handlers
// need; tests substitute a fake.
type ForecastService interface {
	Predict(req forecast.Request) (*forecast.Response, error)
	Status() forecast.Status
}

// RegisterForecastHandlers wires the forecast endpoints against an
// injected service.
func RegisterForecastHandlers(mux *http.ServeMux, svc ForecastService) {
	mux.HandleFunc("POST /api/forecast/predict", handlePredict(svc))
	mux.HandleFunc("GET /api/forecast/status", handleForecastStatus(svc))
}

func handlePredict(svc ForecastService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req forecast.Request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid json body")
			return
		}

		resp, err := svc.Predict(req)
		if err != nil {
			writeError(w, forecastStatusCode(err), err.Error())
			return
		}

		writeJSON(w, http.StatusOK, map[string]interface{}{
			"success":        true,
			"forecast":       resp.Forecast,
			"summary":        resp.Summary,
			"horizon":        resp.Horizon,
			"category":       resp.Category,
			"product":        resp.Product,
			"forecast_start": resp.ForecastStart,
			"forecast_end":   resp.ForecastEnd,
		})
	}
}

func handleForecastStatus(svc ForecastService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := svc.Status()
		if !status.Available {
			writeJSON(w, http.StatusServiceUnavailable, status)
			return
		}
		writeJSON(w, http.StatusOK, status)
	}
}

// forecastStatusCode maps the service error taxonomy to HTTP codes.
func forecastStatusCode(err error) int {
	var verr *forecast.ValidationError
	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest
	case errors.Is(err, forecast.ErrNotFound), errors.Is(err, forecast.ErrNoHistory):
		return http.StatusNotFound
	case errors.Is(err, forecast.ErrInsufficientData):
		return http.StatusBadRequest
	case errors.Is(err, forecast.ErrModelUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
