package pipeline

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/aluiziolira/go-scrape-catalog/models"
)

// Table describes how a record type flattens into CSV rows.
type Table[T any] struct {
	Header []string
	Row    func(T) []string
}

// RawTable flattens CatalogItems with the same column names as the JSON
// artifact.
var RawTable = Table[models.CatalogItem]{
	Header: []string{"title", "price", "description", "rating", "reviews"},
	Row: func(item models.CatalogItem) []string {
		return []string{
			item.Title,
			item.PriceText,
			item.Description,
			strconv.Itoa(item.Rating),
			strconv.Itoa(item.Reviews),
		}
	},
}

// ProcessedTable expands PriceData into price_* columns. Nil amounts are
// written as empty cells.
var ProcessedTable = Table[models.ProcessedItem]{
	Header: []string{
		"title", "description", "rating", "reviews",
		"price_raw", "price_currency", "price_amount",
		"price_converted_currency", "price_converted_amount",
	},
	Row: func(item models.ProcessedItem) []string {
		return []string{
			item.Title,
			item.Description,
			strconv.Itoa(item.Rating),
			strconv.Itoa(item.Reviews),
			item.PriceData.Raw,
			item.PriceData.Currency,
			formatAmount(item.PriceData.Amount),
			item.PriceData.ConvertedCurrency,
			formatAmount(item.PriceData.ConvertedAmount),
		}
	},
}

func formatAmount(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

// CSVWriter writes records to CSV.
type CSVWriter[T any] struct {
	file   *os.File
	writer *csv.Writer
	table  Table[T]
}

// NewCSVWriter initialises a CSV writer and writes the header row.
func NewCSVWriter[T any](filename string, table Table[T]) (*CSVWriter[T], error) {
	if err := ensureDir(filename); err != nil {
		return nil, err
	}

	f, err := os.Create(filename)
	if err != nil {
		return nil, fmt.Errorf("create csv file: %w", err)
	}

	writer := csv.NewWriter(f)
	if err := writer.Write(table.Header); err != nil {
		f.Close()
		return nil, fmt.Errorf("write csv header: %w", err)
	}

	return &CSVWriter[T]{
		file:   f,
		writer: writer,
		table:  table,
	}, nil
}

// Write appends records to the CSV output.
func (cw *CSVWriter[T]) Write(records []T) error {
	for _, record := range records {
		if err := cw.writer.Write(cw.table.Row(record)); err != nil {
			return fmt.Errorf("write csv record: %w", err)
		}
	}
	cw.writer.Flush()
	if err := cw.writer.Error(); err != nil {
		return fmt.Errorf("flush csv records: %w", err)
	}
	return nil
}

// Close flushes and closes the file handle.
func (cw *CSVWriter[T]) Close() error {
	cw.writer.Flush()
	if err := cw.writer.Error(); err != nil {
		cw.file.Close()
		return fmt.Errorf("flush csv writer: %w", err)
	}
	return cw.file.Close()
}

// WriteCSV writes header and records to filename in one call.
func WriteCSV[T any](filename string, table Table[T], records []T) error {
	w, err := NewCSVWriter(filename, table)
	if err != nil {
		return err
	}
	if err := w.Write(records); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}

// WriteJSON writes v as an indented JSON document.
func WriteJSON(filename string, v any) error {
	if err := ensureDir(filename); err != nil {
		return err
	}

	f, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("create json file: %w", err)
	}

	buffer := bufio.NewWriter(f)
	encoder := json.NewEncoder(buffer)
	encoder.SetIndent("", "    ")
	encoder.SetEscapeHTML(false)
	if err := encoder.Encode(v); err != nil {
		f.Close()
		return fmt.Errorf("encode json: %w", err)
	}
	if err := buffer.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("flush json writer: %w", err)
	}
	return f.Close()
}

func ensureDir(filename string) error {
	dir := filepath.Dir(filename)
	if dir == "" || dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory %q: %w", dir, err)
	}
	return nil
}
