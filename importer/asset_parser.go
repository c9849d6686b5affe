package importer

import (
	"encoding/csv"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"assetmatcher/normalization"
)

// AssetColumns имена колонок в файле записей активов
type AssetColumns struct {
	Name          string
	OwnershipName string
	Country       string
}

// DefaultAssetColumns возвращает имена колонок по умолчанию
func DefaultAssetColumns() AssetColumns {
	return AssetColumns{
		Name:          "name",
		OwnershipName: "ownership_name",
		Country:       "country",
	}
}

// AssetParser парсит CSV файлы с записями активов
type AssetParser struct {
	columns AssetColumns
}

// NewAssetParser создает новый парсер активов
func NewAssetParser(columns AssetColumns) *AssetParser {
	if columns.Name == "" {
		columns.Name = "name"
	}
	if columns.OwnershipName == "" {
		columns.OwnershipName = "ownership_name"
	}
	if columns.Country == "" {
		columns.Country = "country"
	}
	return &AssetParser{columns: columns}
}

// ParseFile читает файл активов и возвращает список записей
func (p *AssetParser) ParseFile(path string) ([]normalization.AssetRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read asset file: %w", err)
	}

	decoded, err := decodeToUTF8(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode asset file: %w", err)
	}

	records, err := p.Parse(strings.NewReader(decoded))
	if err != nil {
		return nil, err
	}

	log.Printf("[Import] Parsed %d asset records from %s", len(records), path)
	return records, nil
}

// Parse читает CSV данные активов из reader.
// Пустые значения полей сохраняются как пустые строки,
// такие записи не отбрасываются.
func (p *AssetParser) Parse(r io.Reader) ([]normalization.AssetRecord, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	nameIdx := findColumn(header, p.columns.Name)
	ownershipIdx := findColumn(header, p.columns.OwnershipName)
	countryIdx := findColumn(header, p.columns.Country)

	if nameIdx < 0 {
		return nil, fmt.Errorf("column %q not found in header %v", p.columns.Name, header)
	}

	var records []normalization.AssetRecord
	line := 1
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			log.Printf("[Import] Skipping malformed row %d: %v", line, err)
			continue
		}

		records = append(records, normalization.AssetRecord{
			Name:          strings.TrimSpace(fieldAt(row, nameIdx)),
			OwnershipName: strings.TrimSpace(fieldAt(row, ownershipIdx)),
			Country:       strings.TrimSpace(fieldAt(row, countryIdx)),
		})
	}

	return records, nil
}
