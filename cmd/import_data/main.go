// Command import_data loads product and transaction CSV exports into the
// analytics database. Exports from legacy POS systems are often not
// UTF-8; -encoding transcodes them on the fly. With -watch it keeps
// running and imports CSVs as they land in the drop directory.
package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/transform"

	"retailcast/db"
)

func main() {
	dbPath := flag.String("db", "", "sqlite database path")
	productsPath := flag.String("products", "", "products CSV")
	transactionsPath := flag.String("transactions", "", "transactions CSV")
	watchDir := flag.String("watch", "", "drop directory to watch for CSVs")
	enc := flag.String("encoding", "utf8", "input encoding: utf8, gbk or latin1")
	flag.Parse()

	if *dbPath == "" {
		log.Fatal("db is required")
	}
	if *productsPath == "" && *transactionsPath == "" && *watchDir == "" {
		log.Fatal("nothing to do: pass -products, -transactions or -watch")
	}

	if err := db.InitDB(*dbPath); err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	if *productsPath != "" {
		if err := importFile(*productsPath, *enc); err != nil {
			log.Fatalf("import %s: %v", *productsPath, err)
		}
	}
	if *transactionsPath != "" {
		if err := importFile(*transactionsPath, *enc); err != nil {
			log.Fatalf("import %s: %v", *transactionsPath, err)
		}
	}

	if *watchDir != "" {
		if err := watch(*watchDir, *enc); err != nil {
			log.Fatalf("watch %s: %v", *watchDir, err)
		}
	}
}

// watch imports any products*.csv or transactions*.csv written into dir
// until interrupted.
func watch(dir, enc string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()
	if err := watcher.Add(dir); err != nil {
		return err
	}
	log.Printf("watching %s for CSV drops", dir)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			if !strings.EqualFold(filepath.Ext(event.Name), ".csv") {
				continue
			}
			// Writers may still be flushing when the event fires.
			time.Sleep(200 * time.Millisecond)
			if err := importFile(event.Name, enc); err != nil {
				log.Printf("import %s failed: %v", event.Name, err)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Printf("watcher error: %v", err)
		case <-quit:
			log.Printf("stopping watcher")
			return nil
		}
	}
}

func importFile(path, enc string) error {
	base := strings.ToLower(filepath.Base(path))
	switch {
	case strings.HasPrefix(base, "products"):
		return importProducts(path, enc)
	case strings.HasPrefix(base, "transactions"):
		return importTransactions(path, enc)
	default:
		return fmt.Errorf("unrecognized file %s: expected products*.csv or transactions*.csv", base)
	}
}

func importProducts(path, enc string) error {
	rows, header, err := readCSV(path, enc)
	if err != nil {
		return err
	}
	col, err := headerIndex(header, "sku_id", "product_name", "category", "sub_category")
	if err != nil {
		return err
	}

	count := 0
	for _, row := range rows {
		err := db.InsertProduct(
			row[col["sku_id"]],
			row[col["product_name"]],
			row[col["category"]],
			row[col["sub_category"]],
			optional(row, header, "brand"),
			optional(row, header, "product_type"),
			optional(row, header, "size_label"),
			optional(row, header, "price_tier"),
			optionalFloat(row, header, "unit_price"),
		)
		if err != nil {
			return fmt.Errorf("row %d: %w", count+1, err)
		}
		count++
	}
	log.Printf("imported %d products from %s", count, path)
	return nil
}

func importTransactions(path, enc string) error {
	rows, header, err := readCSV(path, enc)
	if err != nil {
		return err
	}
	col, err := headerIndex(header, "sku_id", "date", "quantity")
	if err != nil {
		return err
	}

	count := 0
	for _, row := range rows {
		date, err := time.Parse("2006-01-02", row[col["date"]])
		if err != nil {
			return fmt.Errorf("row %d: bad date %q", count+1, row[col["date"]])
		}
		quantity, err := strconv.Atoi(row[col["quantity"]])
		if err != nil {
			return fmt.Errorf("row %d: bad quantity %q", count+1, row[col["quantity"]])
		}
		err = db.InsertTransaction(
			row[col["sku_id"]],
			date,
			quantity,
			optionalFloat(row, header, "unit_price"),
			optionalFloat(row, header, "discount_pct"),
			int(optionalFloat(row, header, "promo_flag")),
			optional(row, header, "size"),
			optionalFloat(row, header, "line_total"),
		)
		if err != nil {
			return fmt.Errorf("row %d: %w", count+1, err)
		}
		count++
	}
	log.Printf("imported %d transactions from %s", count, path)
	return nil
}

func readCSV(path, enc string) ([][]string, []string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer file.Close()

	var reader io.Reader = file
	decoder, err := decoderFor(enc)
	if err != nil {
		return nil, nil, err
	}
	if decoder != nil {
		reader = transform.NewReader(file, decoder)
	}

	records, err := csv.NewReader(reader).ReadAll()
	if err != nil {
		return nil, nil, err
	}
	if len(records) == 0 {
		return nil, nil, fmt.Errorf("%s is empty", path)
	}
	return records[1:], records[0], nil
}

func decoderFor(enc string) (transform.Transformer, error) {
	var e encoding.Encoding
	switch strings.ToLower(enc) {
	case "", "utf8", "utf-8":
		return nil, nil
	case "gbk":
		e = simplifiedchinese.GBK
	case "latin1", "iso8859-1":
		e = charmap.ISO8859_1
	default:
		return nil, fmt.Errorf("unsupported encoding %q", enc)
	}
	return e.NewDecoder(), nil
}

func headerIndex(header []string, required ...string) (map[string]int, error) {
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[strings.TrimSpace(name)] = i
	}
	for _, name := range required {
		if _, ok := col[name]; !ok {
			return nil, fmt.Errorf("missing required column %q", name)
		}
	}
	return col, nil
}

func optional(row, header []string, name string) string {
	for i, h := range header {
		if strings.TrimSpace(h) == name {
			return row[i]
		}
	}
	return ""
}

func optionalFloat(row, header []string, name string) float64 {
	v := optional(row, header, name)
	if v == "" {
		return 0
	}
	parsed, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0
	}
	return parsed
}
