package client

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"log"
	"strings"
	"sync"

	"github.com/otiai10/gosseract/v2"
)

// TesseractClient wraps a process-wide Tesseract engine. The underlying
// gosseract client is expensive to construct, so it is initialized lazily
// exactly once and reused for every page. When initialization fails the
// client stays permanently disabled and every Recognize call reports that.
type TesseractClient struct {
	dataPath  string
	languages string

	once    sync.Once
	mu      sync.Mutex // gosseract clients are not safe for concurrent use
	engine  *gosseract.Client
	initErr error
}

// NewTesseractClient prepares a client for the given tessdata path and
// "+"-separated language list (e.g. "por+eng"). No engine is created yet.
func NewTesseractClient(dataPath, languages string) *TesseractClient {
	return &TesseractClient{
		dataPath:  dataPath,
		languages: languages,
	}
}

func (tc *TesseractClient) init() {
	engine := gosseract.NewClient()
	if tc.dataPath != "" {
		if err := engine.SetTessdataPrefix(tc.dataPath); err != nil {
			engine.Close()
			tc.initErr = fmt.Errorf("tessdata prefix %q: %w", tc.dataPath, err)
			return
		}
	}

	langs := strings.Split(tc.languages, "+")
	if err := engine.SetLanguage(langs...); err != nil {
		engine.Close()
		tc.initErr = fmt.Errorf("set languages %q: %w", tc.languages, err)
		return
	}

	tc.engine = engine
	log.Printf("Tesseract engine initialized (languages=%s)", tc.languages)
}

// Recognize runs OCR over one page image and returns the recognized text.
func (tc *TesseractClient) Recognize(img image.Image) (string, error) {
	tc.once.Do(tc.init)
	if tc.initErr != nil {
		return "", fmt.Errorf("ocr engine unavailable: %w", tc.initErr)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", fmt.Errorf("encode page image: %w", err)
	}

	tc.mu.Lock()
	defer tc.mu.Unlock()

	if err := tc.engine.SetImageFromBytes(buf.Bytes()); err != nil {
		return "", fmt.Errorf("set page image: %w", err)
	}
	text, err := tc.engine.Text()
	if err != nil {
		return "", fmt.Errorf("ocr text: %w", err)
	}
	return text, nil
}

// Close releases the engine if one was ever created.
func (tc *TesseractClient) Close() {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	if tc.engine != nil {
		tc.engine.Close()
		tc.engine = nil
	}
	log.Println("Tesseract client closed")
}
