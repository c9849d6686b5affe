package main

import (
	"flag"
	"fmt"
	"log"
	"path/filepath"
	"strings"

	"assetmatcher/database"
	"assetmatcher/importer"
	"assetmatcher/internal/config"
)

func main() {
	filePath := flag.String("file", "", "Path to the company registry CSV or xlsx file")
	dbPath := flag.String("db", "assetmatcher.db", "Path to the service database")
	truncate := flag.Bool("truncate", false, "Clear existing registry before import")
	flag.Parse()

	if *filePath == "" {
		log.Fatal("flag -file is required")
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	serviceDB, err := database.NewServiceDB(*dbPath)
	if err != nil {
		log.Fatalf("failed to open service database: %v", err)
	}
	defer serviceDB.Close()

	parser := importer.NewRegistryParser(importer.RegistryColumns{
		Company: cfg.RegistryCompanyColumn,
		ISIN:    cfg.RegistryISINColumn,
		Country: cfg.RegistryCountryColumn,
	})

	var entities []database.Entity
	if strings.EqualFold(filepath.Ext(*filePath), ".xlsx") {
		entities, err = parser.ParseExcelFile(*filePath)
	} else {
		entities, err = parser.ParseFile(*filePath)
	}
	if err != nil {
		log.Fatalf("failed to parse registry: %v", err)
	}

	if *truncate {
		if err := serviceDB.ClearEntities(); err != nil {
			log.Fatalf("failed to clear registry: %v", err)
		}
	}

	inserted, err := serviceDB.InsertEntities(entities)
	if err != nil {
		log.Fatalf("failed to import registry: %v", err)
	}

	total, err := serviceDB.CountEntities()
	if err != nil {
		log.Fatalf("failed to count registry: %v", err)
	}

	fmt.Println("\n--- Registry Import ---")
	fmt.Printf("File: %s\n", *filePath)
	fmt.Printf("Imported: %d\n", inserted)
	fmt.Printf("Registry Total: %d\n", total)
}
