package normalization

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/xuri/excelize/v2"

	"assetmatcher/database"
)

// ExportFormat формат экспорта результатов
type ExportFormat string

const (
	FormatJSON  ExportFormat = "json"
	FormatCSV   ExportFormat = "csv"
	FormatExcel ExportFormat = "excel"
)

var resultHeader = []string{"name", "ownership_name", "country", "potential_matches", "selected_company", "isin", "isin_valid"}

// CSVResultSink пишет результаты в CSV файл по мере обработки записей.
// Буфер сбрасывается после каждой записи, чтобы частичный вывод переживал
// аварийную остановку. По умолчанию файл дописывается; повторный прогон
// без truncate не идемпотентен — это явное решение вызывающей стороны.
type CSVResultSink struct {
	file   *os.File
	writer *csv.Writer
}

// NewCSVResultSink открывает CSV приемник результатов.
// При truncate существующий файл перезаписывается и пишется заголовок,
// иначе файл дописывается (заголовок пишется только в пустой файл).
func NewCSVResultSink(path string, truncate bool) (*CSVResultSink, error) {
	flags := os.O_CREATE | os.O_WRONLY | os.O_APPEND
	if truncate {
		flags = os.O_CREATE | os.O_WRONLY | os.O_TRUNC
	}

	file, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open result file %s: %w", path, err)
	}

	sink := &CSVResultSink{
		file:   file,
		writer: csv.NewWriter(file),
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to stat result file: %w", err)
	}
	if info.Size() == 0 {
		if err := sink.writer.Write(resultHeader); err != nil {
			file.Close()
			return nil, fmt.Errorf("failed to write result header: %w", err)
		}
		sink.writer.Flush()
	}

	return sink, nil
}

// WriteResult дописывает одну строку результата и сбрасывает буфер
func (s *CSVResultSink) WriteResult(result MatchResult) error {
	shortlistJSON, err := json.Marshal(result.Shortlist)
	if err != nil {
		return fmt.Errorf("failed to marshal shortlist: %w", err)
	}

	row := []string{
		result.Record.Name,
		result.Record.OwnershipName,
		result.Record.Country,
		string(shortlistJSON),
		result.SelectedCompany,
		result.ISIN,
		fmt.Sprintf("%t", result.ISINValid),
	}

	if err := s.writer.Write(row); err != nil {
		return fmt.Errorf("failed to write result row: %w", err)
	}

	s.writer.Flush()
	return s.writer.Error()
}

// Close закрывает файл результатов
func (s *CSVResultSink) Close() error {
	s.writer.Flush()
	if err := s.writer.Error(); err != nil {
		s.file.Close()
		return err
	}
	return s.file.Close()
}

// Exporter экспортирует сохраненные результаты сессии из сервисной БД
type Exporter struct {
	db *database.ServiceDB
}

// NewExporter создает новый экспортер
func NewExporter(db *database.ServiceDB) *Exporter {
	return &Exporter{db: db}
}

// ExportSessionToJSON экспортирует результаты сессии в JSON файл
func (e *Exporter) ExportSessionToJSON(sessionID int, filename string) error {
	results, err := e.db.GetSessionResults(sessionID)
	if err != nil {
		return fmt.Errorf("failed to fetch session results: %w", err)
	}

	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")

	payload := map[string]interface{}{
		"exported_at": time.Now().Format(time.RFC3339),
		"session_id":  sessionID,
		"total":       len(results),
		"results":     results,
	}

	if err := encoder.Encode(payload); err != nil {
		return fmt.Errorf("failed to encode results: %w", err)
	}
	return nil
}

// ExportSessionToCSV экспортирует результаты сессии в CSV файл
func (e *Exporter) ExportSessionToCSV(sessionID int, filename string) error {
	results, err := e.db.GetSessionResults(sessionID)
	if err != nil {
		return fmt.Errorf("failed to fetch session results: %w", err)
	}

	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	if err := writer.Write(resultHeader); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for _, r := range results {
		row := []string{
			r.AssetName,
			r.AssetOwnership,
			r.AssetCountry,
			r.Shortlist,
			r.SelectedCompany,
			r.ISIN,
			fmt.Sprintf("%t", r.ISINValid),
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
	}

	return nil
}

// ExportSessionToExcel экспортирует результаты сессии в Excel файл
func (e *Exporter) ExportSessionToExcel(sessionID int, filename string) error {
	results, err := e.db.GetSessionResults(sessionID)
	if err != nil {
		return fmt.Errorf("failed to fetch session results: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	sheet := "Matches"
	index, err := f.NewSheet(sheet)
	if err != nil {
		return fmt.Errorf("failed to create sheet: %w", err)
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return fmt.Errorf("failed to delete default sheet: %w", err)
	}

	for col, title := range resultHeader {
		cell, _ := excelize.CoordinatesToCellName(col+1, 1)
		f.SetCellValue(sheet, cell, title)
	}

	for i, r := range results {
		values := []interface{}{
			r.AssetName,
			r.AssetOwnership,
			r.AssetCountry,
			r.Shortlist,
			r.SelectedCompany,
			r.ISIN,
			r.ISINValid,
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, i+2)
			f.SetCellValue(sheet, cell, v)
		}
	}

	if err := f.SaveAs(filename); err != nil {
		return fmt.Errorf("failed to save excel file: %w", err)
	}
	return nil
}
