package service

import (
	"fmt"
	"image"
	"log"
	"sync"

	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/oned"

	"github.com/darfparse/darf-extractor/dto"
	"github.com/darfparse/darf-extractor/utils"
)

// ErrDocumentoIlegivel marks every field of the synthetic record produced
// for documents with no readable pages.
const ErrDocumentoIlegivel = "Documento ilegível ou sem páginas."

// OCREngine recognizes text in a page raster. Implemented by
// client.TesseractClient; stubbed in tests.
type OCREngine interface {
	Recognize(img image.Image) (string, error)
}

// DARFService runs the page and document pipelines.
type DARFService struct {
	ocr           OCREngine // nil disables the OCR fallback
	minTextLength int
	rasterDPI     float64
	pageWorkers   int
}

func NewDARFService(ocr OCREngine, minTextLength int, rasterDPI float64, pageWorkers int) *DARFService {
	if minTextLength <= 0 {
		minTextLength = 100
	}
	if pageWorkers <= 0 {
		pageWorkers = 1
	}
	return &DARFService{
		ocr:           ocr,
		minTextLength: minTextLength,
		rasterDPI:     rasterDPI,
		pageWorkers:   pageWorkers,
	}
}

// ProcessDocument extracts one record per page, in physical page order.
// A document with zero pages degrades to a single synthetic error record.
// This function never fails: every problem ends up as a field diagnostic.
func (s *DARFService) ProcessDocument(filename string, doc DocumentReader) dto.DocumentResult {
	total := doc.PageCount()
	if total == 0 {
		return dto.DocumentResult{
			Filename: filename,
			Records:  []dto.PageRecord{dto.NewErrorRecord(pageID(filename, 1), ErrDocumentoIlegivel)},
		}
	}

	records := make([]dto.PageRecord, total)
	if s.pageWorkers > 1 {
		// Pages are independent; fan out but collect back in page order.
		sem := make(chan struct{}, s.pageWorkers)
		var wg sync.WaitGroup
		for page := 1; page <= total; page++ {
			wg.Add(1)
			sem <- struct{}{}
			go func(page int) {
				defer wg.Done()
				defer func() { <-sem }()
				records[page-1] = s.ProcessPage(filename, doc, page)
			}(page)
		}
		wg.Wait()
	} else {
		for page := 1; page <= total; page++ {
			records[page-1] = s.ProcessPage(filename, doc, page)
		}
	}

	return dto.DocumentResult{Filename: filename, Records: records}
}

// ProcessPage runs acquisition, normalization and every extractor for a
// single page and assembles its record.
func (s *DARFService) ProcessPage(filename string, doc DocumentReader, page int) dto.PageRecord {
	text := s.acquireText(doc, page)
	lines := utils.NormalizeLines(text)
	fields := utils.ParseDARFPage(lines, text)

	// Every textual strategy failed; as a final tier, try to decode the
	// printed barcode itself from the page raster.
	if fields[dto.FieldLinhaDigitavel].Error != "" {
		if decoded := s.decodeBarcode(doc, page); decoded != "" {
			fields[dto.FieldLinhaDigitavel] = dto.ExtractedField{Value: decoded}
		}
	}

	return dto.PageRecord{Page: pageID(filename, page), Fields: fields}
}

// acquireText returns the normalized text block for one page. Native text
// is preferred; pages whose stripped text is below the threshold go through
// OCR. Acquisition never fails — the worst case is an empty block.
func (s *DARFService) acquireText(doc DocumentReader, page int) string {
	native, err := doc.PageText(page)
	if err != nil {
		log.Printf("page %d: native text extraction failed: %v", page, err)
		native = ""
	}
	native = utils.CollapseSpaces(native)

	if utils.StrippedLength(native) >= s.minTextLength || s.ocr == nil {
		return native
	}

	img, err := doc.PageImage(page, s.rasterDPI)
	if err != nil {
		log.Printf("page %d: raster unavailable, keeping native text: %v", page, err)
		return native
	}

	recognized, err := s.ocr.Recognize(img)
	if err != nil {
		log.Printf("page %d: ocr failed, keeping native text: %v", page, err)
		return native
	}
	if utils.StrippedLength(recognized) == 0 {
		return native
	}
	return utils.CollapseSpaces(recognized)
}

// decodeBarcode attempts an ITF decode of the page raster and returns the
// digit payload when it is long enough to be a typeable line.
func (s *DARFService) decodeBarcode(doc DocumentReader, page int) string {
	img, err := doc.PageImage(page, s.rasterDPI)
	if err != nil {
		return ""
	}
	bmp, err := gozxing.NewBinaryBitmapFromImage(img)
	if err != nil {
		return ""
	}
	result, err := oned.NewITFReader().Decode(bmp, nil)
	if err != nil {
		return ""
	}
	digits := utils.DigitsOnly(result.GetText())
	if len(digits) < 40 {
		return ""
	}
	return digits
}

func pageID(filename string, page int) string {
	return fmt.Sprintf("%s - Página %d", filename, page)
}
