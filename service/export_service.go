package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/darfparse/darf-extractor/dto"
	"github.com/darfparse/darf-extractor/utils"
)

// RuleLookup is the slice of the rule store the exporter needs.
type RuleLookup interface {
	SheetForCode(ctx context.Context, codigo string) (string, error)
	UOForCNPJ(ctx context.Context, cnpj string) (string, error)
}

// ExportService turns document results into the consolidated workbook:
// one sheet per revenue-code category plus an error-report sheet.
type ExportService struct {
	rules  RuleLookup
	logger *slog.Logger
}

func NewExportService(rules RuleLookup, logger *slog.Logger) *ExportService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ExportService{rules: rules, logger: logger}
}

var dataHeaders = []string{
	"Arquivo / Página",
	"CNPJ",
	"UO Contribuinte",
	"Razão Social",
	"Período de Apuração",
	"Mês de Referência",
	"Data de Vencimento",
	"Data de Pagamento",
	"Número do Documento",
	"Valor Total",
	"Código",
	"Denominação",
	"Linha Digitável",
}

var errorHeaders = []string{
	"Arquivo / Página",
	"Erro CNPJ",
	"Erro Razão Social",
	"Erro Período",
	"Erro Vencimento",
	"Erro Nº Documento",
	"Erro Valor",
	"Erro Código",
	"Erro Denominação",
	"Erro Linha Digitável",
}

var mesesPT = []string{
	"janeiro", "fevereiro", "março", "abril", "maio", "junho",
	"julho", "agosto", "setembro", "outubro", "novembro", "dezembro",
}

// BuildWorkbook assembles the XLSX bytes for a batch of documents. Records
// route to the sheet their revenue code maps to; unmapped codes are dropped
// from the data sheets. Any record carrying a diagnostic also lands on the
// error sheet.
func (s *ExportService) BuildWorkbook(ctx context.Context, results []dto.DocumentResult) ([]byte, error) {
	start := time.Now()

	f := excelize.NewFile()
	sheets := []string{"servidor", "patronal-gilrat", "erros"}
	for _, sheet := range sheets {
		if _, err := f.NewSheet(sheet); err != nil {
			return nil, fmt.Errorf("create sheet %s: %w", sheet, err)
		}
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, fmt.Errorf("drop default sheet: %w", err)
	}
	if idx, err := f.GetSheetIndex("servidor"); err == nil {
		f.SetActiveSheet(idx)
	}

	for _, sheet := range sheets[:2] {
		if err := writeHeaderRow(f, sheet, dataHeaders); err != nil {
			return nil, err
		}
	}
	if err := writeHeaderRow(f, "erros", errorHeaders); err != nil {
		return nil, err
	}

	nextRow := map[string]int{"servidor": 2, "patronal-gilrat": 2, "erros": 2}
	var routed, dropped int

	for _, result := range results {
		for _, rec := range result.Records {
			sheet, err := s.rules.SheetForCode(ctx, rec.Field(dto.FieldCodigo).Value)
			if err != nil {
				return nil, err
			}
			if sheet != "" {
				if err := s.writeDataRow(ctx, f, sheet, nextRow[sheet], rec); err != nil {
					return nil, err
				}
				nextRow[sheet]++
				routed++
			} else {
				dropped++
			}

			if rec.HasErrors() {
				if err := writeErrorRow(f, nextRow["erros"], rec); err != nil {
					return nil, err
				}
				nextRow["erros"]++
			}
		}
	}

	for _, sheet := range sheets[:2] {
		_ = f.SetColWidth(sheet, "A", "A", 32)
		_ = f.SetColWidth(sheet, "B", "D", 24)
		_ = f.SetColWidth(sheet, "E", "K", 16)
		_ = f.SetColWidth(sheet, "L", "L", 40)
		_ = f.SetColWidth(sheet, "M", "M", 56)
	}
	_ = f.SetColWidth("erros", "A", "A", 32)
	_ = f.SetColWidth("erros", "B", "J", 36)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"documents", len(results),
		"rows", routed,
		"dropped", dropped,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

func writeHeaderRow(f *excelize.File, sheet string, headers []string) error {
	for i, h := range headers {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return err
		}
	}
	return nil
}

func (s *ExportService) writeDataRow(ctx context.Context, f *excelize.File, sheet string, row int, rec dto.PageRecord) error {
	uo, err := s.rules.UOForCNPJ(ctx, rec.Field(dto.FieldCNPJ).Value)
	if err != nil {
		return err
	}

	values := []string{
		rec.Page,
		rec.Field(dto.FieldCNPJ).Value,
		uo,
		rec.Field(dto.FieldRazaoSocial).Value,
		rec.Field(dto.FieldPeriodoApuracao).Value,
		previousMonthLabel(rec.Field(dto.FieldPeriodoApuracao)),
		rec.Field(dto.FieldDataVencimento).Value,
		paymentDate(rec.Field(dto.FieldDataVencimento)),
		rec.Field(dto.FieldNumeroDocumento).Value,
		rec.Field(dto.FieldValorTotal).Value,
		rec.Field(dto.FieldCodigo).Value,
		rec.Field(dto.FieldDenominacao).Value,
		rec.Field(dto.FieldLinhaDigitavel).Value,
	}
	for i, v := range values {
		cell, err := excelize.CoordinatesToCellName(i+1, row)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, v); err != nil {
			return err
		}
	}
	return nil
}

func writeErrorRow(f *excelize.File, row int, rec dto.PageRecord) error {
	values := []string{rec.Page}
	for _, name := range dto.FieldNames {
		values = append(values, rec.Field(name).Error)
	}
	for i, v := range values {
		cell, err := excelize.CoordinatesToCellName(i+1, row)
		if err != nil {
			return err
		}
		if err := f.SetCellValue("erros", cell, v); err != nil {
			return err
		}
	}
	return nil
}

// previousMonthLabel derives the reference-month label from a validated
// assessment period: 30/09/2025 becomes "agosto/2025". Blank when the
// source date failed validation.
func previousMonthLabel(periodo dto.ExtractedField) string {
	if !periodo.OK() {
		return ""
	}
	t, ok := utils.ParseDateBR(periodo.Value)
	if !ok {
		return ""
	}
	prev := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, -1, 0)
	return fmt.Sprintf("%s/%d", mesesPT[prev.Month()-1], prev.Year())
}

// paymentDate is the business convention of paying one day before the due
// date. Blank when the due date failed validation.
func paymentDate(venc dto.ExtractedField) string {
	if !venc.OK() {
		return ""
	}
	t, ok := utils.ParseDateBR(venc.Value)
	if !ok {
		return ""
	}
	return t.AddDate(0, 0, -1).Format("02/01/2006")
}
