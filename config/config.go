package config

import (
	"os"
	"strconv"
)

type Config struct {
	ServerPort        string
	TesseractDataPath string
	OCRLanguages      string
	MinTextLength     int
	RasterDPI         float64
	DatabasePath      string
	PageWorkers       int
	APIToken          string
	MaxFileSize       int64
}

func LoadConfig() *Config {
	serverPort := os.Getenv("SERVER_PORT")
	if serverPort == "" {
		serverPort = "8080"
	}

	tessdataPath := os.Getenv("TESSDATA_PREFIX")
	if tessdataPath == "" {
		tessdataPath = "/usr/share/tesseract-ocr/5/tessdata/"
	}

	languages := os.Getenv("OCR_LANGUAGES")
	if languages == "" {
		languages = "por+eng"
	}

	dbPath := os.Getenv("DATABASE_PATH")
	if dbPath == "" {
		dbPath = "config.db"
	}

	return &Config{
		ServerPort:        serverPort,
		TesseractDataPath: tessdataPath,
		OCRLanguages:      languages,
		MinTextLength:     envInt("MIN_TEXT_LENGTH", 100),
		RasterDPI:         float64(envInt("RASTER_DPI", 400)),
		DatabasePath:      dbPath,
		PageWorkers:       envInt("PAGE_WORKERS", 1),
		APIToken:          os.Getenv("API_TOKEN"),
		MaxFileSize:       100 * 1024 * 1024, // 100 MB, matches the upload limit
	}
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}
