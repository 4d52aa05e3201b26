// Package http exposes the retail analytics API.
package http

import (
	"encoding/json"
	"net/http"

	"retailcast/db"
)

// RegisterProductHandlers wires the catalog query endpoints.
func RegisterProductHandlers(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/health", handleHealth)
	mux.HandleFunc("GET /api/products/categories", handleCategories)
	mux.HandleFunc("GET /api/products/products", handleProducts)
	mux.HandleFunc("GET /api/products/products/{category}", handleProductsByCategory)
}

// RegisterSalesHandlers wires the sales query endpoints.
func RegisterSalesHandlers(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/sales/year-range", handleYearRange)
	mux.HandleFunc("POST /api/sales/subcategory-by-category-size", handleSubCategorySales)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func handleCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := db.GetCategories()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"categories": categories})
}

func handleProducts(w http.ResponseWriter, r *http.Request) {
	products, err := db.GetProducts()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, products)
}

func handleProductsByCategory(w http.ResponseWriter, r *http.Request) {
	category := r.PathValue("category")
	if category == "" {
		writeError(w, http.StatusBadRequest, "category is required")
		return
	}
	products, err := db.GetProductsByCategory(category)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, products)
}

func handleYearRange(w http.ResponseWriter, r *http.Request) {
	minYear, maxYear, err := db.GetYearRange()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"min_year": minYear, "max_year": maxYear})
}

type subCategorySalesRequest struct {
	Category    string `json:"category"`
	SubCategory string `json:"sub_category"`
	Size        string `json:"size"`
	StartDate   string `json:"start_date"`
	EndDate     string `json:"end_date"`
}

func handleSubCategorySales(w http.ResponseWriter, r *http.Request) {
	var req subCategorySalesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if req.Category == "" || req.SubCategory == "" {
		writeError(w, http.StatusBadRequest, "category and sub_category are required")
		return
	}
	records, err := db.SalesBySubCategory(req.Category, req.SubCategory, req.Size, req.StartDate, req.EndDate)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, records)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
