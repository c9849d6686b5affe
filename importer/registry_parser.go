package importer

import (
	"encoding/csv"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"

	"assetmatcher/database"
)

// RegistryColumns имена колонок в файле реестра компаний
type RegistryColumns struct {
	Company string
	ISIN    string
	Country string
}

// DefaultRegistryColumns возвращает имена колонок по умолчанию
func DefaultRegistryColumns() RegistryColumns {
	return RegistryColumns{
		Company: "company_name",
		ISIN:    "isin",
		Country: "country",
	}
}

// RegistryParser парсит CSV файлы реестра компаний.
// Поддерживает файлы в UTF-8 и Windows-1252.
type RegistryParser struct {
	columns RegistryColumns
}

// NewRegistryParser создает новый парсер реестра
func NewRegistryParser(columns RegistryColumns) *RegistryParser {
	if columns.Company == "" {
		columns.Company = "company_name"
	}
	if columns.ISIN == "" {
		columns.ISIN = "isin"
	}
	return &RegistryParser{columns: columns}
}

// ParseFile читает файл реестра и возвращает список компаний
func (p *RegistryParser) ParseFile(path string) ([]database.Entity, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read registry file: %w", err)
	}

	decoded, err := decodeToUTF8(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode registry file: %w", err)
	}

	entities, err := p.Parse(strings.NewReader(decoded), filepath.Base(path))
	if err != nil {
		return nil, err
	}

	log.Printf("[Import] Parsed %d companies from %s", len(entities), path)
	return entities, nil
}

// Parse читает CSV данные реестра из reader
func (p *RegistryParser) Parse(r io.Reader, sourceFile string) ([]database.Entity, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	companyIdx := findColumn(header, p.columns.Company)
	isinIdx := findColumn(header, p.columns.ISIN)
	countryIdx := findColumn(header, p.columns.Country)

	if companyIdx < 0 {
		return nil, fmt.Errorf("column %q not found in header %v", p.columns.Company, header)
	}
	if isinIdx < 0 {
		return nil, fmt.Errorf("column %q not found in header %v", p.columns.ISIN, header)
	}

	var entities []database.Entity
	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			log.Printf("[Import] Skipping malformed row %d: %v", line, err)
			continue
		}

		companyName := strings.TrimSpace(fieldAt(record, companyIdx))
		if companyName == "" {
			continue
		}

		entity := database.Entity{
			CompanyName: companyName,
			ISIN:        strings.TrimSpace(fieldAt(record, isinIdx)),
			SourceFile:  sourceFile,
		}
		if countryIdx >= 0 {
			entity.Country = strings.TrimSpace(fieldAt(record, countryIdx))
		}

		entities = append(entities, entity)
	}

	return entities, nil
}

// findColumn ищет колонку в заголовке без учета регистра
func findColumn(header []string, name string) int {
	for i, col := range header {
		if strings.EqualFold(strings.TrimSpace(col), name) {
			return i
		}
	}
	return -1
}

func fieldAt(record []string, idx int) string {
	if idx < 0 || idx >= len(record) {
		return ""
	}
	return record[idx]
}

// decodeToUTF8 определяет кодировку данных и перекодирует в UTF-8.
// Если данные уже валидный UTF-8, возвращаются без изменений,
// иначе считаются Windows-1252.
func decodeToUTF8(data []byte) (string, error) {
	// Срезаем BOM, если есть
	if len(data) >= 3 && data[0] == 0xEF && data[1] == 0xBB && data[2] == 0xBF {
		data = data[3:]
	}

	if utf8.Valid(data) {
		return string(data), nil
	}

	decoder := charmap.Windows1252.NewDecoder()
	decoded, _, err := transform.Bytes(decoder, data)
	if err != nil {
		return "", fmt.Errorf("failed to decode as Windows-1252: %w", err)
	}

	return string(decoded), nil
}
