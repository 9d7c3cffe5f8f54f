package service

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// DocumentReader is the acquisition contract of the pipeline: page count,
// native page text and a page raster for the OCR fallback. Pages are 1-based.
type DocumentReader interface {
	PageCount() int
	PageText(page int) (string, error)
	PageImage(page int, dpi float64) (image.Image, error)
	Close() error
}

type pdfDocument struct {
	data   []byte
	reader *pdf.Reader

	// Lazy temp copy for pdfcpu, shared by concurrent page workers.
	tmpOnce sync.Once
	tmpPath string
	tmpErr  error
}

// NewPDFDocument opens an in-memory PDF. An error here means the document
// is structurally unreadable; callers degrade it to a synthetic record.
func NewPDFDocument(data []byte) (DocumentReader, error) {
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	return &pdfDocument{data: data, reader: r}, nil
}

func (d *pdfDocument) PageCount() int {
	return d.reader.NumPage()
}

// PageText extracts the native text layer of one page, row by row.
func (d *pdfDocument) PageText(page int) (string, error) {
	if page < 1 || page > d.reader.NumPage() {
		return "", fmt.Errorf("page %d out of range", page)
	}

	p := d.reader.Page(page)
	if p.V.IsNull() {
		return "", nil
	}

	rows, err := p.GetTextByRow()
	if err != nil {
		return "", fmt.Errorf("page %d text: %w", page, err)
	}

	var b strings.Builder
	for _, row := range rows {
		for i, word := range row.Content {
			if i > 0 {
				b.WriteString(" ")
			}
			b.WriteString(word.S)
		}
		b.WriteString("\n")
	}
	return b.String(), nil
}

// PageImage returns the raster of one page. Scanned DARFs carry the whole
// page as a single embedded image, so extracting the largest image of the
// page is equivalent to rendering it. The dpi argument is part of the
// reader contract; embedded images come out at their scanned resolution.
func (d *pdfDocument) PageImage(page int, _ float64) (image.Image, error) {
	tmpPath, err := d.tempFile()
	if err != nil {
		return nil, err
	}

	outDir, err := os.MkdirTemp("", "darf-page")
	if err != nil {
		return nil, fmt.Errorf("create image dir: %w", err)
	}
	defer os.RemoveAll(outDir)

	conf := model.NewDefaultConfiguration()
	pages := []string{strconv.Itoa(page)}
	if err := api.ExtractImagesFile(tmpPath, outDir, pages, conf); err != nil {
		return nil, fmt.Errorf("extract page %d images: %w", page, err)
	}

	entries, err := os.ReadDir(outDir)
	if err != nil {
		return nil, fmt.Errorf("read image dir: %w", err)
	}

	var best image.Image
	bestArea := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		f, err := os.Open(filepath.Join(outDir, entry.Name()))
		if err != nil {
			continue
		}
		img, _, err := image.Decode(f)
		f.Close()
		if err != nil {
			continue
		}
		area := img.Bounds().Dx() * img.Bounds().Dy()
		if area > bestArea {
			best, bestArea = img, area
		}
	}
	if best == nil {
		return nil, fmt.Errorf("page %d has no decodable image", page)
	}
	return best, nil
}

// tempFile materializes the document on disk exactly once so concurrent
// page workers share a single copy.
func (d *pdfDocument) tempFile() (string, error) {
	d.tmpOnce.Do(func() {
		tmp, err := os.CreateTemp("", "darf-*.pdf")
		if err != nil {
			d.tmpErr = fmt.Errorf("create temp pdf: %w", err)
			return
		}
		if _, err := tmp.Write(d.data); err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
			d.tmpErr = fmt.Errorf("write temp pdf: %w", err)
			return
		}
		tmp.Close()
		d.tmpPath = tmp.Name()
	})
	return d.tmpPath, d.tmpErr
}

func (d *pdfDocument) Close() error {
	if d.tmpPath != "" {
		err := os.Remove(d.tmpPath)
		d.tmpPath = ""
		return err
	}
	return nil
}
