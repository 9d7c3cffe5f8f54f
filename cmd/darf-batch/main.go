package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/darfparse/darf-extractor/client"
	"github.com/darfparse/darf-extractor/config"
	"github.com/darfparse/darf-extractor/dto"
	"github.com/darfparse/darf-extractor/repository"
	"github.com/darfparse/darf-extractor/service"
)

// printError prints an error message to stderr, falling back to stdout if stderr fails
func printError(format string, args ...interface{}) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		fmt.Printf(format, args...)
	}
}

func main() {
	var (
		dir = flag.String("dir", "", "directory holding the DARF PDFs (required)")
		out = flag.String("out", "", "output XLSX path (defaults to <dir>/resultado_darfs.xlsx)")
		db  = flag.String("db", "", "rules database path (defaults to DATABASE_PATH or config.db)")
	)
	flag.Parse()

	if *dir == "" {
		printError("Error: --dir is required\n")
		os.Exit(1)
	}
	if *out == "" {
		*out = filepath.Join(*dir, "resultado_darfs.xlsx")
	}

	cfg := config.LoadConfig()
	if *db != "" {
		cfg.DatabasePath = *db
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	entries, err := os.ReadDir(*dir)
	if err != nil {
		printError("Error: cannot read %s: %v\n", *dir, err)
		os.Exit(1)
	}
	var pdfs []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.EqualFold(filepath.Ext(entry.Name()), ".pdf") {
			pdfs = append(pdfs, entry.Name())
		}
	}
	sort.Strings(pdfs)
	if len(pdfs) == 0 {
		printError("No PDF files found in %s\n", *dir)
		os.Exit(1)
	}

	ctx := context.Background()
	rules, err := repository.Open(ctx, cfg.DatabasePath, logger)
	if err != nil {
		printError("Error: open rule store: %v\n", err)
		os.Exit(1)
	}
	defer rules.Close()

	tesseractClient := client.NewTesseractClient(cfg.TesseractDataPath, cfg.OCRLanguages)
	defer tesseractClient.Close()

	darfService := service.NewDARFService(tesseractClient, cfg.MinTextLength, cfg.RasterDPI, cfg.PageWorkers)
	exportService := service.NewExportService(rules, logger)

	results := make([]dto.DocumentResult, 0, len(pdfs))
	for _, name := range pdfs {
		fmt.Printf("Processing: %s\n", name)
		results = append(results, processFile(darfService, filepath.Join(*dir, name), name))
	}

	workbook, err := exportService.BuildWorkbook(ctx, results)
	if err != nil {
		printError("Error: build workbook: %v\n", err)
		os.Exit(1)
	}
	if err := os.WriteFile(*out, workbook, 0o644); err != nil {
		printError("Error: write %s: %v\n", *out, err)
		os.Exit(1)
	}
	fmt.Printf("Workbook written to %s (%d documents)\n", *out, len(results))
}

// processFile degrades every per-document failure to a synthetic error
// record so one corrupt PDF never aborts the batch.
func processFile(darfService *service.DARFService, path, name string) dto.DocumentResult {
	unreadable := func(err error) dto.DocumentResult {
		printError("  %s: %v\n", name, err)
		return dto.DocumentResult{
			Filename: name,
			Records: []dto.PageRecord{
				dto.NewErrorRecord(fmt.Sprintf("%s - Página 1", name), service.ErrDocumentoIlegivel),
			},
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return unreadable(err)
	}
	doc, err := service.NewPDFDocument(data)
	if err != nil {
		return unreadable(err)
	}
	defer doc.Close()

	return darfService.ProcessDocument(name, doc)
}
