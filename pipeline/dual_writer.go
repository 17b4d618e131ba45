package pipeline

import (
	"fmt"
)

// DualWriter outputs one record set to both a JSON array and a CSV table.
type DualWriter[T any] struct {
	JSONFilename string
	CSVFilename  string
	Table        Table[T]
}

// NewDualWriter creates a dual writer for the given artifact pair.
func NewDualWriter[T any](jsonFilename, csvFilename string, table Table[T]) DualWriter[T] {
	return DualWriter[T]{
		JSONFilename: jsonFilename,
		CSVFilename:  csvFilename,
		Table:        table,
	}
}

// Write writes records as JSON, then CSV.
func (dw DualWriter[T]) Write(records []T) error {
	if err := dw.WriteJSON(records); err != nil {
		return err
	}
	return dw.WriteCSV(records)
}

// WriteJSON writes only the JSON artifact.
func (dw DualWriter[T]) WriteJSON(records []T) error {
	if err := WriteJSON(dw.JSONFilename, records); err != nil {
		return fmt.Errorf("JSON write failed: %w", err)
	}
	return nil
}

// WriteCSV writes only the CSV artifact.
func (dw DualWriter[T]) WriteCSV(records []T) error {
	if err := WriteCSV(dw.CSVFilename, dw.Table, records); err != nil {
		return fmt.Errorf("CSV write failed: %w", err)
	}
	return nil
}
