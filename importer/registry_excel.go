package importer

import (
	"fmt"
	"log"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"assetmatcher/database"
)

// ParseExcelFile читает реестр компаний из Excel файла (.xlsx).
// Используется первый лист книги.
func (p *RegistryParser) ParseExcelFile(path string) ([]database.Entity, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("Excel file has no sheets")
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheets[0], err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("sheet %q is empty", sheets[0])
	}

	header := rows[0]
	companyIdx := findColumn(header, p.columns.Company)
	isinIdx := findColumn(header, p.columns.ISIN)
	countryIdx := findColumn(header, p.columns.Country)

	if companyIdx < 0 {
		return nil, fmt.Errorf("column %q not found in header %v", p.columns.Company, header)
	}
	if isinIdx < 0 {
		return nil, fmt.Errorf("column %q not found in header %v", p.columns.ISIN, header)
	}

	sourceFile := filepath.Base(path)
	var entities []database.Entity
	for _, row := range rows[1:] {
		companyName := strings.TrimSpace(fieldAt(row, companyIdx))
		if companyName == "" {
			continue
		}

		entity := database.Entity{
			CompanyName: companyName,
			ISIN:        strings.TrimSpace(fieldAt(row, isinIdx)),
			SourceFile:  sourceFile,
		}
		if countryIdx >= 0 {
			entity.Country = strings.TrimSpace(fieldAt(row, countryIdx))
		}

		entities = append(entities, entity)
	}

	log.Printf("[Import] Parsed %d companies from %s (sheet %q)", len(entities), path, sheets[0])
	return entities, nil
}
