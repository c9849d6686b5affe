package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/brianvoe/gofakeit/v6"
)

// Генератор тестовых данных: синтетический реестр компаний и файл активов,
// в котором часть записей заведомо связана с компаниями реестра.
func main() {
	registryPath := flag.String("registry", "test_registry.csv", "Output path for the generated registry CSV")
	assetsPath := flag.String("assets", "test_assets.csv", "Output path for the generated assets CSV")
	companies := flag.Int("companies", 100, "Number of companies in the registry")
	assets := flag.Int("records", 50, "Number of asset records")
	seed := flag.Int64("seed", 0, "Random seed (0 for random)")
	flag.Parse()

	if *seed != 0 {
		gofakeit.Seed(*seed)
	}

	companyNames := make([]string, 0, *companies)
	countries := make([]string, 0, *companies)

	registryFile, err := os.Create(*registryPath)
	if err != nil {
		log.Fatalf("failed to create registry file: %v", err)
	}
	defer registryFile.Close()

	registryWriter := csv.NewWriter(registryFile)
	registryWriter.Write([]string{"company_name", "isin", "country", "sector"})
	for i := 0; i < *companies; i++ {
		name := gofakeit.Company()
		country := gofakeit.Country()
		companyNames = append(companyNames, name)
		countries = append(countries, country)

		registryWriter.Write([]string{
			name,
			generateISIN(),
			country,
			gofakeit.RandomString([]string{"Energy", "Materials", "Industrials", "Utilities", "Financials"}),
		})
	}
	registryWriter.Flush()
	if err := registryWriter.Error(); err != nil {
		log.Fatalf("failed to write registry: %v", err)
	}

	assetsFile, err := os.Create(*assetsPath)
	if err != nil {
		log.Fatalf("failed to create assets file: %v", err)
	}
	defer assetsFile.Close()

	assetsWriter := csv.NewWriter(assetsFile)
	assetsWriter.Write([]string{"name", "ownership_name", "country"})
	for i := 0; i < *assets; i++ {
		// Две трети записей привязаны к компаниям реестра
		if i%3 != 2 && len(companyNames) > 0 {
			idx := gofakeit.Number(0, len(companyNames)-1)
			assetsWriter.Write([]string{
				fmt.Sprintf("%s %s %s", companyNames[idx], gofakeit.NounConcrete(), gofakeit.LetterN(2)),
				companyNames[idx],
				countries[idx],
			})
			continue
		}

		assetsWriter.Write([]string{
			fmt.Sprintf("%s %s", gofakeit.Company(), gofakeit.NounConcrete()),
			gofakeit.Company(),
			gofakeit.Country(),
		})
	}
	assetsWriter.Flush()
	if err := assetsWriter.Error(); err != nil {
		log.Fatalf("failed to write assets: %v", err)
	}

	fmt.Println("\n--- Test Data Generation ---")
	fmt.Printf("Registry: %s (%d companies)\n", *registryPath, *companies)
	fmt.Printf("Assets: %s (%d records)\n", *assetsPath, *assets)
}

// generateISIN собирает синтетический ISIN с корректной контрольной цифрой
func generateISIN() string {
	country := gofakeit.RandomString([]string{"US", "GB", "DE", "FR", "JP"})
	body := gofakeit.LetterN(1) + gofakeit.DigitN(8)
	base := country + strings.ToUpper(body)
	return base + luhnCheckDigit(base)
}

// luhnCheckDigit вычисляет контрольную цифру ISIN по алгоритму Луна
func luhnCheckDigit(base string) string {
	var digits []int
	for _, r := range base {
		switch {
		case r >= '0' && r <= '9':
			digits = append(digits, int(r-'0'))
		case r >= 'A' && r <= 'Z':
			v := int(r-'A') + 10
			digits = append(digits, v/10, v%10)
		}
	}

	sum := 0
	double := true
	for i := len(digits) - 1; i >= 0; i-- {
		d := digits[i]
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}

	return fmt.Sprintf("%d", (10-sum%10)%10)
}
