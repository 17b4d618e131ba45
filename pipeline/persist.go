package pipeline

import (
	"errors"
	"log/slog"

	"github.com/aluiziolira/go-scrape-catalog/config"
	"github.com/aluiziolira/go-scrape-catalog/models"
)

// Persister writes the run artifacts named in an OutputConfig. Empty
// record sets are skipped with a warning.
type Persister struct {
	raw       DualWriter[models.CatalogItem]
	processed DualWriter[models.ProcessedItem]
	failed    string
	logger    *slog.Logger
}

func NewPersister(output config.OutputConfig, logger *slog.Logger) *Persister {
	if logger == nil {
		logger = slog.Default()
	}
	return &Persister{
		raw:       NewDualWriter(output.RawJSONFilename, output.RawCSVFilename, RawTable),
		processed: NewDualWriter(output.JSONFilename, output.CSVFilename, ProcessedTable),
		failed:    output.FailedJSONFilename,
		logger:    logger.With(slog.String("component", "persister")),
	}
}

// SaveRaw writes the raw JSON artifact, then the raw CSV artifact.
func (p *Persister) SaveRaw(items []models.CatalogItem) error {
	if len(items) == 0 {
		p.logger.Warn("no raw data to save")
		return nil
	}
	if err := p.raw.Write(items); err != nil {
		return err
	}
	p.logger.Info("raw data saved",
		slog.String("json_file", p.raw.JSONFilename),
		slog.String("csv_file", p.raw.CSVFilename),
		slog.Int("product_count", len(items)),
	)
	return nil
}

// SaveProcessed writes the processed CSV artifact, then the processed JSON
// artifact.
func (p *Persister) SaveProcessed(items []models.ProcessedItem) error {
	if len(items) == 0 {
		p.logger.Warn("no structured data to save")
		return nil
	}
	if err := p.processed.WriteCSV(items); err != nil {
		return err
	}
	if err := p.processed.WriteJSON(items); err != nil {
		return err
	}
	p.logger.Info("structured data saved",
		slog.String("csv_file", p.processed.CSVFilename),
		slog.String("json_file", p.processed.JSONFilename),
		slog.Int("product_count", len(items)),
	)
	return nil
}

// Finalize saves raw items, processes them into state.Processed, then saves
// the processed items and the failures. A failed write does not stop the
// later steps; all write errors are returned joined.
func Finalize(state *models.RunState, processor *Processor, persister *Persister) error {
	raw := state.RawItems()
	var errs []error

	persister.logger.Info("saving raw data")
	if err := persister.SaveRaw(raw); err != nil {
		errs = append(errs, err)
	}

	persister.logger.Info("processing raw data into structured data")
	state.Processed = processor.Process(raw)

	persister.logger.Info("saving processed data")
	if err := persister.SaveProcessed(state.Processed); err != nil {
		errs = append(errs, err)
	}
	if err := persister.SaveFailures(state.Failures()); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// SaveFailures writes the failures artifact.
func (p *Persister) SaveFailures(failures []models.ExtractionFailure) error {
	if len(failures) == 0 {
		p.logger.Info("no failed products to save")
		return nil
	}
	if err := WriteJSON(p.failed, failures); err != nil {
		return err
	}
	p.logger.Info("failed products saved to JSON file",
		slog.String("file_path", p.failed),
		slog.Int("failed_count", len(failures)),
	)
	return nil
}
