// Package forecast serves demand predictions from a persisted model
// bundle.
package forecast

import (
	"errors"
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"

	"retailcast/dataset"
	"retailcast/db"
	"retailcast/ml"
)

// SupportedHorizons is the closed set of forecast windows, in days.
var SupportedHorizons = []int{7, 14, 30}

// Request is one forecast query from the HTTP layer.
type Request struct {
	Category string `json:"category"`
	Product  string `json:"product"`
	Horizon  int    `json:"horizon"`
}

// Row is one forecast observation.
type Row struct {
	Date              string   `json:"date"`
	SKUID             string   `json:"sku_id"`
	ProductName       string   `json:"product_name"`
	Category          string   `json:"category"`
	ActualQuantity    *float64 `json:"actual_quantity"`
	PredictedQuantity float64  `json:"predicted_quantity"`
	ForecastHorizon   int      `json:"forecast_horizon"`
}

// Summary totals a forecast window.
type Summary struct {
	TotalActual    *float64 `json:"total_actual,omitempty"`
	TotalPredicted float64  `json:"total_predicted"`
}

// Response is a completed forecast.
type Response struct {
	Forecast      []Row   `json:"forecast"`
	Summary       Summary `json:"summary"`
	Horizon       int     `json:"horizon"`
	Category      string  `json:"category"`
	Product       string  `json:"product,omitempty"`
	ForecastStart string  `json:"forecast_start"`
	ForecastEnd   string  `json:"forecast_end"`
}

// Status reports model availability.
type Status struct {
	Available         bool   `json:"-"`
	Status            string `json:"status"`
	ModelType         string `json:"model_type,omitempty"`
	SupportedHorizons []int  `json:"supported_horizons,omitempty"`
	TrainedAt         string `json:"trained_at,omitempty"`
	Message           string `json:"message,omitempty"`
}

// ValidationError rejects a request before any computation.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

// Sentinel errors for the data-availability and model-availability
// taxonomy. The HTTP layer maps them to status codes.
var (
	ErrModelUnavailable = errors.New("forecasting model not available")
	ErrNotFound         = errors.New("no products found for selected category/product")
	ErrNoHistory        = errors.New("no historical data found for selected product(s)")
	ErrInsufficientData = errors.New("insufficient data for requested horizon")
)

// EventPublisher receives model status and forecast events. The
// monitoring hub implements it; a nil publisher disables events.
type EventPublisher interface {
	Publish(eventType string, data interface{})
}

// Config locates the artifact bundle and the engineered dataset.
type Config struct {
	ModelDir  string `yaml:"model_dir"`
	DataPath  string `yaml:"data_path"`
	CacheSize int    `yaml:"cache_size"`
}

// Service answers forecast requests against one lazily-loaded model. The
// bundle and dataset are loaded at most once per process; a failed load
// parks the service in an unavailable state instead of crashing callers.
// After a successful load all state is read-only, so concurrent Predict
// calls need no locking beyond the response cache's own.
type Service struct {
	cfg    Config
	events EventPublisher

	once    sync.Once
	model   *ml.DemandModel
	data    *dataset.Frame
	loadErr error

	cache *lru.Cache[string, *Response]
}

// New builds an unloaded service; the model is read on first use.
func New(cfg Config, events EventPublisher) (*Service, error) {
	size := cfg.CacheSize
	if size <= 0 {
		size = 128
	}
	cache, err := lru.New[string, *Response](size)
	if err != nil {
		return nil, err
	}
	return &Service{cfg: cfg, events: events, cache: cache}, nil
}

func (s *Service) ensureLoaded() error {
	s.once.Do(func() {
		model := ml.NewDemandModel()
		if err := model.Load(s.cfg.ModelDir); err != nil {
			s.loadErr = fmt.Errorf("load model bundle: %w", err)
			zap.S().Errorw("forecast model load failed", "dir", s.cfg.ModelDir, "error", err)
			return
		}
		data, err := dataset.Load(s.cfg.DataPath)
		if err != nil {
			s.loadErr = fmt.Errorf("load dataset: %w", err)
			zap.S().Errorw("forecast dataset load failed", "path", s.cfg.DataPath, "error", err)
			return
		}
		s.model = model
		s.data = data
		zap.S().Infow("forecast model loaded",
			"dir", s.cfg.ModelDir,
			"features", model.Metadata().NumFeatures,
			"trained_at", model.Metadata().TrainedAt,
		)
		s.publish("model_status", s.statusLocked())
	})
	if s.loadErr != nil {
		return ErrModelUnavailable
	}
	return nil
}

// Predict validates the request, resolves its SKU set from the database,
// slices the trailing horizon window out of the dataset, and runs the
// model over it.
func (s *Service) Predict(req Request) (*Response, error) {
	if req.Category == "" {
		return nil, &ValidationError{Reason: "category is required"}
	}
	if !horizonSupported(req.Horizon) {
		return nil, &ValidationError{Reason: fmt.Sprintf("horizon must be one of %v days, got %d", SupportedHorizons, req.Horizon)}
	}

	if err := s.ensureLoaded(); err != nil {
		return nil, err
	}

	key := fmt.Sprintf("%s|%s|%d", req.Category, req.Product, req.Horizon)
	if cached, ok := s.cache.Get(key); ok {
		return cached, nil
	}

	products, err := db.FindProducts(req.Category, req.Product)
	if err != nil {
		return nil, fmt.Errorf("product lookup: %w", err)
	}
	if len(products) == 0 {
		return nil, ErrNotFound
	}

	skus := make(map[string]bool, len(products))
	names := make(map[string]string, len(products))
	for _, p := range products {
		skus[p.SKUID] = true
		names[p.SKUID] = p.ProductName
	}

	history, err := s.data.FilterSKUs(skus)
	if err != nil {
		return nil, err
	}
	if history.Len() == 0 {
		return nil, ErrNoHistory
	}

	maxDate, _ := history.MaxDate()
	start := maxDate.AddDate(0, 0, -(req.Horizon - 1))
	window, err := history.FilterSince(start)
	if err != nil {
		return nil, err
	}
	if window.Len() == 0 {
		return nil, ErrInsufficientData
	}

	preds, err := s.model.Predict(window)
	if err != nil {
		return nil, fmt.Errorf("prediction failed: %w", err)
	}

	resp := buildResponse(req, window, preds, names, start, maxDate)
	s.cache.Add(key, resp)
	s.publish("forecast_event", map[string]interface{}{
		"category":        req.Category,
		"product":         req.Product,
		"horizon":         req.Horizon,
		"rows":            len(resp.Forecast),
		"total_predicted": resp.Summary.TotalPredicted,
	})
	return resp, nil
}

// Status reports availability; the first call triggers the lazy load.
func (s *Service) Status() Status {
	if err := s.ensureLoaded(); err != nil {
		return Status{
			Status:  "unavailable",
			Message: "Model not loaded. Please train the model first.",
		}
	}
	return s.statusLocked()
}

func (s *Service) statusLocked() Status {
	return Status{
		Available:         true,
		Status:            "available",
		ModelType:         "gradient_boosting",
		SupportedHorizons: append([]int(nil), SupportedHorizons...),
		TrainedAt:         s.model.Metadata().TrainedAt,
	}
}

func (s *Service) publish(eventType string, data interface{}) {
	if s.events != nil {
		s.events.Publish(eventType, data)
	}
}

func horizonSupported(h int) bool {
	for _, sh := range SupportedHorizons {
		if h == sh {
			return true
		}
	}
	return false
}

func buildResponse(req Request, window *dataset.Frame, preds []float64, names map[string]string, start, end time.Time) *Response {
	dates := window.Dates()
	skus := window.SKUs()
	actuals, hasActuals := window.Num("quantity")

	rows := make([]Row, window.Len())
	for i := range rows {
		name, ok := names[skus[i]]
		if !ok {
			name = fmt.Sprintf("Unknown SKU: %s", skus[i])
		}
		row := Row{
			Date:              dates[i].Format("2006-01-02"),
			SKUID:             skus[i],
			ProductName:       name,
			Category:          req.Category,
			PredictedQuantity: preds[i],
			ForecastHorizon:   req.Horizon,
		}
		if hasActuals {
			actual := actuals[i]
			row.ActualQuantity = &actual
		}
		rows[i] = row
	}

	summary := Summary{TotalPredicted: floats.Sum(preds)}
	if hasActuals {
		total := floats.Sum(actuals)
		summary.TotalActual = &total
	}

	return &Response{
		Forecast:      rows,
		Summary:       summary,
		Horizon:       req.Horizon,
		Category:      req.Category,
		Product:       req.Product,
		ForecastStart: start.Format("2006-01-02"),
		ForecastEnd:   end.Format("2006-01-02"),
	}
}
