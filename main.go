package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"

	"github.com/darfparse/darf-extractor/client"
	"github.com/darfparse/darf-extractor/config"
	"github.com/darfparse/darf-extractor/handler"
	"github.com/darfparse/darf-extractor/repository"
	"github.com/darfparse/darf-extractor/service"
)

func main() {
	// run owns every deferred teardown; exiting from here keeps the
	// SQLite handle and the Tesseract engine from leaking on failure.
	if err := run(); err != nil {
		log.Printf("darf-extractor: %v", err)
		os.Exit(1)
	}
}

func run() error {
	cfg := config.LoadConfig()
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	// Rule store (creates and seeds the SQLite tables on first run)
	rules, err := repository.Open(context.Background(), cfg.DatabasePath, logger)
	if err != nil {
		return fmt.Errorf("open rule store: %w", err)
	}
	defer rules.Close()

	// Tesseract engine is lazy: nothing is constructed until the first
	// page actually needs OCR.
	tesseractClient := client.NewTesseractClient(cfg.TesseractDataPath, cfg.OCRLanguages)
	defer tesseractClient.Close()

	darfService := service.NewDARFService(tesseractClient, cfg.MinTextLength, cfg.RasterDPI, cfg.PageWorkers)
	exportService := service.NewExportService(rules, logger)

	darfHandler := handler.NewDARFHandler(darfService, exportService)
	rulesHandler := handler.NewRulesHandler(rules)

	router := gin.Default()
	router.MaxMultipartMemory = cfg.MaxFileSize

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": "DARF Extractor",
		})
	})

	api := router.Group("/api/v1")
	if cfg.APIToken != "" {
		api.Use(tokenAuth(cfg.APIToken))
	}
	{
		api.POST("/darf/process", darfHandler.ProcessDARFs)

		rulesGroup := api.Group("/rules")
		{
			rulesGroup.GET("/codes", rulesHandler.ListCodes)
			rulesGroup.POST("/codes", rulesHandler.AddCode)
			rulesGroup.DELETE("/codes/:codigo", rulesHandler.RemoveCode)
			rulesGroup.GET("/cnpjs", rulesHandler.ListCNPJs)
			rulesGroup.POST("/cnpjs", rulesHandler.AddCNPJ)
			rulesGroup.DELETE("/cnpjs/:cnpj", rulesHandler.RemoveCNPJ)
		}
	}

	log.Printf("Starting DARF Extractor on port %s", cfg.ServerPort)
	if err := router.Run(":" + cfg.ServerPort); err != nil {
		return fmt.Errorf("server: %w", err)
	}
	return nil
}

// tokenAuth guards the API with a shared token when one is configured.
func tokenAuth(token string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetHeader("X-API-Token") != token {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Next()
	}
}
