package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"time"

	"assetmatcher/classification"
	"assetmatcher/database"
	"assetmatcher/importer"
	"assetmatcher/internal/config"
	"assetmatcher/internal/infrastructure/ai"
	"assetmatcher/normalization"
)

func main() {
	registryPath := flag.String("registry", "", "Path to the company registry CSV or xlsx file")
	assetsPath := flag.String("assets", "", "Path to the asset records CSV file")
	outPath := flag.String("out", "match_results.csv", "Path to the output CSV file")
	dbPath := flag.String("db", "", "Path to the service database (optional, enables session history)")
	threshold := flag.Int("threshold", 0, "Shortlist threshold 0-100 (0 uses configured default)")
	truncate := flag.Bool("truncate", false, "Truncate the output file instead of appending")
	flag.Parse()

	if *assetsPath == "" {
		log.Fatal("flag -assets is required")
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if *threshold == 0 {
		*threshold = cfg.MatchThreshold
	}

	// Сервисная БД опциональна: без нее прогон идет только в CSV
	var serviceDB *database.ServiceDB
	if *dbPath != "" {
		serviceDB, err = database.NewServiceDB(*dbPath)
		if err != nil {
			log.Fatalf("failed to open service database: %v", err)
		}
		defer serviceDB.Close()
	}

	entities := loadRegistry(cfg, serviceDB, *registryPath)
	if len(entities) == 0 {
		log.Fatal("company registry is empty: provide -registry or a populated -db")
	}

	assetParser := importer.NewAssetParser(importer.DefaultAssetColumns())
	records, err := assetParser.ParseFile(*assetsPath)
	if err != nil {
		log.Fatalf("failed to load assets: %v", err)
	}

	sink, err := normalization.NewCSVResultSink(*outPath, *truncate)
	if err != nil {
		log.Fatalf("failed to open output file: %v", err)
	}
	defer sink.Close()

	client := buildProviderClient(cfg)
	selector := classification.NewAssetDisambiguator(client, cfg.AITimeout, slog.Default())

	fuzzy := normalization.NewFuzzyAlgorithmsWithStemming(cfg.UseStemming)
	analyzer := normalization.NewAssetAnalyzerWithFuzzy(entities, fuzzy)

	pipeline, err := normalization.NewPipeline(analyzer, selector, normalization.PipelineConfig{
		Threshold: *threshold,
		Sink:      sink,
		ServiceDB: serviceDB,
		Source:    *assetsPath,
	})
	if err != nil {
		log.Fatalf("failed to create pipeline: %v", err)
	}

	summary, err := pipeline.Run(context.Background(), records)
	if err != nil {
		log.Fatalf("matching run failed: %v", err)
	}

	fmt.Println("\n--- Asset Matching ---")
	fmt.Printf("Session: %s\n", summary.SessionUID)
	fmt.Printf("Registry Size: %d\n", analyzer.EntityCount())
	fmt.Printf("Threshold: %d\n", *threshold)
	fmt.Printf("Total Records: %d\n", summary.TotalRecords)
	fmt.Printf("Resolved to ISIN: %d\n", summary.Resolved)
	fmt.Printf(" - Empty shortlists: %d\n", summary.EmptyShortlists)
	fmt.Printf(" - Selection failed: %d\n", summary.SelectionFailed)
	fmt.Printf(" - Resolution misses: %d\n", summary.ResolutionMisses)
	fmt.Printf("Output: %s\n", *outPath)
	fmt.Printf("Duration: %s\n", summary.Duration.Round(time.Millisecond))
}

// loadRegistry загружает реестр из файла или из сервисной БД
func loadRegistry(cfg *config.Config, serviceDB *database.ServiceDB, registryPath string) []database.Entity {
	if registryPath != "" {
		parser := importer.NewRegistryParser(importer.RegistryColumns{
			Company: cfg.RegistryCompanyColumn,
			ISIN:    cfg.RegistryISINColumn,
			Country: cfg.RegistryCountryColumn,
		})

		var entities []database.Entity
		var err error
		if isExcel(registryPath) {
			entities, err = parser.ParseExcelFile(registryPath)
		} else {
			entities, err = parser.ParseFile(registryPath)
		}
		if err != nil {
			log.Fatalf("failed to load registry: %v", err)
		}
		return entities
	}

	if serviceDB != nil {
		entities, err := serviceDB.GetEntities()
		if err != nil {
			log.Fatalf("failed to load registry from database: %v", err)
		}
		return entities
	}

	return nil
}

func isExcel(path string) bool {
	return len(path) > 5 && path[len(path)-5:] == ".xlsx"
}

func buildProviderClient(cfg *config.Config) ai.ProviderClient {
	switch cfg.Provider {
	case "openrouter":
		client := ai.NewOpenRouterClient(cfg.OpenRouterAPIKey, cfg.OpenRouterModel)
		client.SetRateLimit(cfg.AIRateLimit)
		client.SetMaxRetries(cfg.AIMaxRetries)
		return client
	default:
		client := ai.NewOpenAIClient(cfg.OpenAIAPIKey, cfg.OpenAIModel)
		client.SetRateLimit(cfg.AIRateLimit)
		client.SetMaxRetries(cfg.AIMaxRetries)
		return client
	}
}
