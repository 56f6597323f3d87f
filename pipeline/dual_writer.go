package pipeline

import (
	"errors"
	"fmt"
	"strings"

	"github.com/aluiziolira/go-scrape-themezer/models"
)

// DualWriter outputs the summary as both JSON and CSV.
type DualWriter struct {
	csvWriter  *CSVWriter
	jsonWriter *JSONWriter
}

// NewDualWriter creates a writer for both formats.
func NewDualWriter(csvFilename, jsonFilename string) (*DualWriter, error) {
	csvWriter, err := NewCSVWriter(csvFilename)
	if err != nil {
		return nil, fmt.Errorf("failed to create CSV writer: %w", err)
	}
	jsonWriter, err := NewJSONWriter(jsonFilename)
	if err != nil {
		return nil, fmt.Errorf("failed to create JSON writer: %w", err)
	}
	return &DualWriter{
		csvWriter:  csvWriter,
		jsonWriter: jsonWriter,
	}, nil
}

// Write forwards results to both writers.
func (dw *DualWriter) Write(results []*models.PackResult) error {
	if err := dw.csvWriter.Write(results); err != nil {
		return fmt.Errorf("CSV write failed: %w", err)
	}
	if err := dw.jsonWriter.Write(results); err != nil {
		return fmt.Errorf("JSON write failed: %w", err)
	}
	return nil
}

// Close writes both files.
func (dw *DualWriter) Close() error {
	var errs []error
	if err := dw.csvWriter.Close(); err != nil {
		errs = append(errs, fmt.Errorf("CSV close failed: %w", err))
	}
	if err := dw.jsonWriter.Close(); err != nil {
		errs = append(errs, fmt.Errorf("JSON close failed: %w", err))
	}
	return errors.Join(errs...)
}

// Validate validates both output files.
func (dw *DualWriter) Validate() error {
	var errs []error
	if err := dw.csvWriter.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("CSV validation failed: %w", err))
	}
	if err := dw.jsonWriter.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("JSON validation failed: %w", err))
	}
	return errors.Join(errs...)
}

// NewOutputWriter picks a writer for format. CSV output takes the summary's
// base name with a .csv extension.
func NewOutputWriter(format, filename string) (OutputWriter, error) {
	switch strings.ToLower(format) {
	case "", "json":
		return NewJSONWriter(filename)
	case "csv":
		return NewCSVWriter(csvName(filename))
	case "dual":
		return NewDualWriter(csvName(filename), filename)
	default:
		return nil, fmt.Errorf("unsupported summary format %q", format)
	}
}

// SummaryFiles lists the files NewOutputWriter writes for format.
func SummaryFiles(format, filename string) []string {
	switch strings.ToLower(format) {
	case "csv":
		return []string{csvName(filename)}
	case "dual":
		return []string{filename, csvName(filename)}
	default:
		return []string{filename}
	}
}

func csvName(filename string) string {
	if strings.HasSuffix(filename, ".csv") {
		return filename
	}
	if strings.HasSuffix(filename, ".json") {
		return strings.TrimSuffix(filename, ".json") + ".csv"
	}
	return filename + ".csv"
}
