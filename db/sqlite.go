// Package db wraps the product/sales SQLite database.
package db

import (
	"database/sql"
	"errors"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

var database *sql.DB

// InitDB opens the SQLite database and creates the schema.
func InitDB(path string) error {
	var err error
	database, err = sql.Open("sqlite3", path)
	if err != nil {
		return err
	}

	query := `
    CREATE TABLE IF NOT EXISTS products (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        sku_id VARCHAR(40) UNIQUE,
        product_name TEXT,
        category TEXT,
        sub_category TEXT,
        brand TEXT,
        product_type TEXT,
        size_label TEXT,
        price_tier TEXT,
        unit_price REAL
    );
    CREATE TABLE IF NOT EXISTS transactions (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        sku_id VARCHAR(40),
        date DATETIME,
        quantity INTEGER,
        unit_price REAL,
        discount_pct REAL,
        promo_flag INTEGER,
        size TEXT,
        line_total REAL
    );
    CREATE INDEX IF NOT EXISTS idx_transactions_sku_date ON transactions(sku_id, date);
    CREATE TABLE IF NOT EXISTS training_log (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        model_name VARCHAR(50),
        mae REAL,
        rmse REAL,
        r2 REAL,
        mape REAL,
        trained_at DATETIME,
        data_points INTEGER
    );`

	_, err = database.Exec(query)
	return err
}

// DB exposes the underlying handle for callers that need transactions.
func DB() *sql.DB { return database }

// Close closes the database.
func Close() error {
	if database == nil {
		return nil
	}
	return database.Close()
}

func ready() error {
	if database == nil {
		return errors.New("database not initialized")
	}
	return nil
}

// Product is one catalog entry.
type Product struct {
	SKUID       string `json:"sku_id"`
	ProductName string `json:"product_name"`
	Category    string `json:"category"`
	SubCategory string `json:"sub_category"`
}

// GetCategories returns the distinct product categories, sorted.
func GetCategories() ([]string, error) {
	if err := ready(); err != nil {
		return nil, err
	}
	rows, err := database.Query("SELECT DISTINCT category FROM products ORDER BY category")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var categories []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, err
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

// GetProducts returns the whole catalog.
func GetProducts() ([]Product, error) {
	return queryProducts("SELECT sku_id, product_name, category, sub_category FROM products ORDER BY product_name")
}

// GetProductsByCategory returns the catalog entries in one category.
func GetProductsByCategory(category string) ([]Product, error) {
	return queryProducts(
		"SELECT sku_id, product_name, category, sub_category FROM products WHERE category = ? ORDER BY product_name",
		category,
	)
}

// FindProducts resolves the SKU set for a forecast request: all products
// in a category, or a single named product within it.
func FindProducts(category, productName string) ([]Product, error) {
	if productName != "" {
		return queryProducts(
			"SELECT sku_id, product_name, category, sub_category FROM products WHERE product_name = ? AND category = ?",
			productName, category,
		)
	}
	return queryProducts(
		"SELECT sku_id, product_name, category, sub_category FROM products WHERE category = ?",
		category,
	)
}

func queryProducts(query string, args ...interface{}) ([]Product, error) {
	if err := ready(); err != nil {
		return nil, err
	}
	rows, err := database.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var products []Product
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.SKUID, &p.ProductName, &p.Category, &p.SubCategory); err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

// GetYearRange returns the earliest and latest transaction years.
func GetYearRange() (int, int, error) {
	if err := ready(); err != nil {
		return 0, 0, err
	}
	row := database.QueryRow(
		"SELECT CAST(MIN(strftime('%Y', date)) AS INTEGER), CAST(MAX(strftime('%Y', date)) AS INTEGER) FROM transactions",
	)
	var minYear, maxYear sql.NullInt64
	if err := row.Scan(&minYear, &maxYear); err != nil {
		return 0, 0, err
	}
	if !minYear.Valid || !maxYear.Valid {
		return 0, 0, errors.New("no transactions recorded")
	}
	return int(minYear.Int64), int(maxYear.Int64), nil
}

// SalesRecord is one aggregated daily sales row.
type SalesRecord struct {
	Date          string  `json:"date"`
	SubCategory   string  `json:"sub_category"`
	Size          string  `json:"size"`
	TotalQuantity float64 `json:"total_quantity"`
	TotalRevenue  float64 `json:"total_revenue"`
}

// SalesBySubCategory aggregates daily sales for a sub-category within a
// category and date range. An empty or "0" size means all sizes.
func SalesBySubCategory(category, subCategory, size, startDate, endDate string) ([]SalesRecord, error) {
	if err := ready(); err != nil {
		return nil, err
	}

	query := `
        SELECT date(t.date), p.sub_category, COALESCE(t.size, ''),
               SUM(t.quantity), SUM(t.line_total)
        FROM transactions t
        JOIN products p ON t.sku_id = p.sku_id
        WHERE p.category = ? AND p.sub_category = ?
          AND date(t.date) >= date(?) AND date(t.date) <= date(?)`
	args := []interface{}{category, subCategory, startDate, endDate}
	if size != "" && size != "0" {
		query += " AND t.size = ?"
		args = append(args, size)
	}
	query += " GROUP BY date(t.date), p.sub_category, t.size ORDER BY date(t.date)"

	rows, err := database.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []SalesRecord
	for rows.Next() {
		var r SalesRecord
		if err := rows.Scan(&r.Date, &r.SubCategory, &r.Size, &r.TotalQuantity, &r.TotalRevenue); err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// InsertTrainingLog records one training run.
func InsertTrainingLog(modelName string, mae, rmse, r2, mape float64, trainedAt time.Time, dataPoints int) error {
	if err := ready(); err != nil {
		return err
	}
	_, err := database.Exec(
		"INSERT INTO training_log (model_name, mae, rmse, r2, mape, trained_at, data_points) VALUES (?, ?, ?, ?, ?, ?, ?)",
		modelName, mae, rmse, r2, mape, trainedAt, dataPoints,
	)
	return err
}

// InsertProduct upserts one catalog entry, used by the CSV importer.
func InsertProduct(skuID, productName, category, subCategory, brand, productType, sizeLabel, priceTier string, unitPrice float64) error {
	if err := ready(); err != nil {
		return err
	}
	_, err := database.Exec(`
        INSERT INTO products (sku_id, product_name, category, sub_category, brand, product_type, size_label, price_tier, unit_price)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT(sku_id) DO UPDATE SET
            product_name = excluded.product_name,
            category = excluded.category,
            sub_category = excluded.sub_category,
            brand = excluded.brand,
            product_type = excluded.product_type,
            size_label = excluded.size_label,
            price_tier = excluded.price_tier,
            unit_price = excluded.unit_price`,
		skuID, productName, category, subCategory, brand, productType, sizeLabel, priceTier, unitPrice,
	)
	return err
}

// InsertTransaction records one sales line, used by the CSV importer.
func InsertTransaction(skuID string, date time.Time, quantity int, unitPrice, discountPct float64, promoFlag int, size string, lineTotal float64) error {
	if err := ready(); err != nil {
		return err
	}
	_, err := database.Exec(
		"INSERT INTO transactions (sku_id, date, quantity, unit_price, discount_pct, promo_flag, size, line_total) VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
		skuID, date, quantity, unitPrice, discountPct, promoFlag, size, lineTotal,
	)
	return err
}
