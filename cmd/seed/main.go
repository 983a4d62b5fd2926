package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/ikkim/storefront-backend/config"
	"github.com/ikkim/storefront-backend/internal/app/repository"
	"github.com/ikkim/storefront-backend/internal/app/service"
	"github.com/ikkim/storefront-backend/internal/db"
	"github.com/ikkim/storefront-backend/internal/importer"
	"github.com/ikkim/storefront-backend/pkg/logger"
)

const usage = `Usage:
  seed <catalog.xlsx> [--yes]   import categories, brands, products and variants
  seed template <out.xlsx>      write an empty workbook with the expected headers`

func main() {
	if len(os.Args) < 2 {
		log.Fatal(usage)
	}

	if os.Args[1] == "template" {
		if len(os.Args) < 3 {
			log.Fatal(usage)
		}
		writeTemplate(os.Args[2])
		return
	}

	filePath := os.Args[1]
	assumeYes := len(os.Args) > 2 && os.Args[2] == "--yes"

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	logger.Initialize(logger.Config{
		Level:  cfg.Log.Level,
		Format: "console",
	})

	if err := db.Initialize(&cfg.Database); err != nil {
		log.Fatal("Failed to connect to database:", err)
	}
	defer db.Close()
	db.ConfigureTx(&cfg.Database)

	if err := db.Migrate(); err != nil {
		log.Fatal("Failed to run migrations:", err)
	}

	if !assumeYes {
		fmt.Printf("Import catalog from %s? (yes/no): ", filePath)
		var confirm string
		fmt.Scanln(&confirm)
		if confirm != "yes" && confirm != "y" {
			fmt.Println("Import cancelled.")
			return
		}
	}

	conn := db.GetDB()
	catalogService := service.NewCatalogService(
		repository.NewCategoryRepository(conn),
		repository.NewBrandRepository(conn),
		repository.NewProductRepository(conn),
		repository.NewProductVariantRepository(conn),
		repository.NewProductImageRepository(conn),
		conn,
		cfg.Catalog.PageSize,
	)

	fmt.Printf("Reading XLSX file: %s\n", filePath)
	report, err := importer.NewCatalogImporter(catalogService).ImportFile(context.Background(), filePath)
	if err != nil {
		log.Fatal("Failed to import catalog:", err)
	}

	fmt.Println("\n=== Import Summary ===")
	fmt.Printf("Categories: %d\n", report.Categories)
	fmt.Printf("Brands:     %d\n", report.Brands)
	fmt.Printf("Products:   %d\n", report.Products)
	fmt.Printf("Variants:   %d\n", report.Variants)
	fmt.Printf("Rejected:   %d\n", len(report.Errors))
	for _, rowErr := range report.Errors {
		fmt.Printf("  %s row %d: %s\n", rowErr.Sheet, rowErr.Row, rowErr.Err)
	}
}

func writeTemplate(path string) {
	f, err := os.Create(path)
	if err != nil {
		log.Fatal("Failed to create file:", err)
	}
	defer f.Close()

	if err := importer.WriteTemplate(f); err != nil {
		log.Fatal("Failed to write template:", err)
	}
	fmt.Printf("Template written to %s\n", path)
}
