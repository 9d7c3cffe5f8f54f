package handler

import (
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/darfparse/darf-extractor/dto"
	"github.com/darfparse/darf-extractor/service"
)

const xlsxMimeType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type DARFHandler struct {
	darfService   *service.DARFService
	exportService *service.ExportService
}

func NewDARFHandler(darfService *service.DARFService, exportService *service.ExportService) *DARFHandler {
	return &DARFHandler{
		darfService:   darfService,
		exportService: exportService,
	}
}

// ProcessDARFs receives one or more DARF PDFs under the "files" multipart
// field and returns the consolidated XLSX. A document that cannot be opened
// degrades to a synthetic error record instead of failing the batch.
func (h *DARFHandler) ProcessDARFs(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error: "invalid multipart form", Message: err.Error(), Code: http.StatusBadRequest,
		})
		return
	}

	var pdfs []*multipart.FileHeader
	for _, file := range form.File["files"] {
		if strings.EqualFold(filepath.Ext(file.Filename), ".pdf") {
			pdfs = append(pdfs, file)
		}
	}
	if len(pdfs) == 0 {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error: "nenhum arquivo PDF válido encontrado", Code: http.StatusBadRequest,
		})
		return
	}

	results := make([]dto.DocumentResult, 0, len(pdfs))
	for _, file := range pdfs {
		results = append(results, h.processUpload(file))
	}

	workbook, err := h.exportService.BuildWorkbook(c.Request.Context(), results)
	if err != nil {
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{
			Error: "falha ao gerar planilha", Message: err.Error(), Code: http.StatusInternalServerError,
		})
		return
	}

	name := fmt.Sprintf("resultado_darfs_%s.xlsx", time.Now().Format("20060102-150405"))
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, name))
	c.Data(http.StatusOK, xlsxMimeType, workbook)
}

func (h *DARFHandler) processUpload(file *multipart.FileHeader) dto.DocumentResult {
	name := filepath.Base(file.Filename)

	unreadable := func(err error) dto.DocumentResult {
		log.Printf("document %s unreadable: %v", name, err)
		return dto.DocumentResult{
			Filename: name,
			Records: []dto.PageRecord{
				dto.NewErrorRecord(fmt.Sprintf("%s - Página 1", name), service.ErrDocumentoIlegivel),
			},
		}
	}

	f, err := file.Open()
	if err != nil {
		return unreadable(err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return unreadable(err)
	}

	doc, err := service.NewPDFDocument(data)
	if err != nil {
		return unreadable(err)
	}
	defer doc.Close()

	return h.darfService.ProcessDocument(name, doc)
}
