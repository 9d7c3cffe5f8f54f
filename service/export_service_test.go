package service

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/xuri/excelize/v2"

	"github.com/darfparse/darf-extractor/dto"
)

type stubRules struct{}

func (stubRules) SheetForCode(_ context.Context, codigo string) (string, error) {
	switch codigo {
	case "1082", "1099":
		return "servidor", nil
	case "1138", "1646":
		return "patronal-gilrat", nil
	}
	return "", nil
}

func (stubRules) UOForCNPJ(_ context.Context, cnpj string) (string, error) {
	if cnpj == "18.715.565/0001-10" {
		return "1071", nil
	}
	return "", nil
}

func validRecord(page, codigo string) dto.PageRecord {
	return dto.PageRecord{
		Page: page,
		Fields: map[string]dto.ExtractedField{
			dto.FieldCNPJ:            {Value: "18.715.565/0001-10"},
			dto.FieldRazaoSocial:     {Value: "MUNICIPIO DE TESTE"},
			dto.FieldPeriodoApuracao: {Value: "30/09/2025"},
			dto.FieldDataVencimento:  {Value: "20/10/2025"},
			dto.FieldNumeroDocumento: {Value: "07.01.25275.0746065-9"},
			dto.FieldValorTotal:      {Value: "1.386,00"},
			dto.FieldCodigo:          {Value: codigo},
			dto.FieldDenominacao:     {Value: "CP SEGURADO SERVIDOR PUBLICO"},
			dto.FieldLinhaDigitavel:  {Value: "898765432109 8 76543210987 6 54321098765 4 32109876543 2"},
		},
	}
}

func openWorkbook(t *testing.T, data []byte) *excelize.File {
	t.Helper()
	f, err := excelize.OpenReader(bytes.NewReader(data))
	assert.NoError(t, err)
	return f
}

func cell(t *testing.T, f *excelize.File, sheet, ref string) string {
	t.Helper()
	v, err := f.GetCellValue(sheet, ref)
	assert.NoError(t, err)
	return v
}

func TestBuildWorkbookRoutesByCode(t *testing.T) {
	svc := NewExportService(stubRules{}, nil)
	results := []dto.DocumentResult{{
		Filename: "darf.pdf",
		Records: []dto.PageRecord{
			validRecord("darf.pdf - Página 1", "1082"),
			validRecord("darf.pdf - Página 2", "1138"),
		},
	}}

	data, err := svc.BuildWorkbook(context.Background(), results)
	assert.NoError(t, err)

	f := openWorkbook(t, data)
	defer f.Close()

	assert.ElementsMatch(t, []string{"servidor", "patronal-gilrat", "erros"}, f.GetSheetList())

	assert.Equal(t, "Arquivo / Página", cell(t, f, "servidor", "A1"))
	assert.Equal(t, "darf.pdf - Página 1", cell(t, f, "servidor", "A2"))
	assert.Equal(t, "18.715.565/0001-10", cell(t, f, "servidor", "B2"))
	assert.Equal(t, "1071", cell(t, f, "servidor", "C2"))
	assert.Equal(t, "MUNICIPIO DE TESTE", cell(t, f, "servidor", "D2"))
	assert.Equal(t, "1082", cell(t, f, "servidor", "K2"))

	assert.Equal(t, "darf.pdf - Página 2", cell(t, f, "patronal-gilrat", "A2"))
	assert.Equal(t, "1138", cell(t, f, "patronal-gilrat", "K2"))

	// Each record landed on exactly one data sheet.
	assert.Empty(t, cell(t, f, "servidor", "A3"))
	assert.Empty(t, cell(t, f, "patronal-gilrat", "A3"))
	assert.Empty(t, cell(t, f, "erros", "A2"))
}

func TestBuildWorkbookDerivedColumns(t *testing.T) {
	svc := NewExportService(stubRules{}, nil)
	results := []dto.DocumentResult{{
		Filename: "darf.pdf",
		Records:  []dto.PageRecord{validRecord("darf.pdf - Página 1", "1082")},
	}}

	data, err := svc.BuildWorkbook(context.Background(), results)
	assert.NoError(t, err)

	f := openWorkbook(t, data)
	defer f.Close()

	// Reference month is the month before the assessment period.
	assert.Equal(t, "agosto/2025", cell(t, f, "servidor", "F2"))
	// Payment date is one day before the due date.
	assert.Equal(t, "19/10/2025", cell(t, f, "servidor", "H2"))
}

func TestBuildWorkbookDerivedColumnsBlankOnInvalidDates(t *testing.T) {
	svc := NewExportService(stubRules{}, nil)
	rec := validRecord("darf.pdf - Página 1", "1082")
	rec.Fields[dto.FieldPeriodoApuracao] = dto.ExtractedField{Value: "31/02/2025", Error: "Período de Apuração com formato inválido."}
	rec.Fields[dto.FieldDataVencimento] = dto.ExtractedField{Error: "Data de Vencimento não encontrada."}
	results := []dto.DocumentResult{{Filename: "darf.pdf", Records: []dto.PageRecord{rec}}}

	data, err := svc.BuildWorkbook(context.Background(), results)
	assert.NoError(t, err)

	f := openWorkbook(t, data)
	defer f.Close()

	assert.Equal(t, "31/02/2025", cell(t, f, "servidor", "E2"))
	assert.Empty(t, cell(t, f, "servidor", "F2"))
	assert.Empty(t, cell(t, f, "servidor", "G2"))
	assert.Empty(t, cell(t, f, "servidor", "H2"))
}

func TestBuildWorkbookDropsUnmappedCodes(t *testing.T) {
	svc := NewExportService(stubRules{}, nil)
	results := []dto.DocumentResult{{
		Filename: "darf.pdf",
		Records:  []dto.PageRecord{validRecord("darf.pdf - Página 1", "9999")},
	}}

	data, err := svc.BuildWorkbook(context.Background(), results)
	assert.NoError(t, err)

	f := openWorkbook(t, data)
	defer f.Close()

	assert.Empty(t, cell(t, f, "servidor", "A2"))
	assert.Empty(t, cell(t, f, "patronal-gilrat", "A2"))
	// Clean record, so nothing on the error sheet either.
	assert.Empty(t, cell(t, f, "erros", "A2"))
}

func TestBuildWorkbookErrorSheet(t *testing.T) {
	svc := NewExportService(stubRules{}, nil)
	results := []dto.DocumentResult{{
		Filename: "ruim.pdf",
		Records: []dto.PageRecord{
			dto.NewErrorRecord("ruim.pdf - Página 1", ErrDocumentoIlegivel),
		},
	}}

	data, err := svc.BuildWorkbook(context.Background(), results)
	assert.NoError(t, err)

	f := openWorkbook(t, data)
	defer f.Close()

	assert.Equal(t, "Erro CNPJ", cell(t, f, "erros", "B1"))
	assert.Equal(t, "ruim.pdf - Página 1", cell(t, f, "erros", "A2"))
	assert.Equal(t, ErrDocumentoIlegivel, cell(t, f, "erros", "B2"))
	assert.Equal(t, ErrDocumentoIlegivel, cell(t, f, "erros", "J2"))
}

func TestBuildWorkbookPartialErrorAlsoRouted(t *testing.T) {
	svc := NewExportService(stubRules{}, nil)
	rec := validRecord("darf.pdf - Página 1", "1082")
	rec.Fields[dto.FieldLinhaDigitavel] = dto.ExtractedField{Error: "Linha digitável não encontrada."}
	results := []dto.DocumentResult{{Filename: "darf.pdf", Records: []dto.PageRecord{rec}}}

	data, err := svc.BuildWorkbook(context.Background(), results)
	assert.NoError(t, err)

	f := openWorkbook(t, data)
	defer f.Close()

	// The record still routes to its data sheet and appears on the error
	// sheet with only the failing column filled.
	assert.Equal(t, "darf.pdf - Página 1", cell(t, f, "servidor", "A2"))
	assert.Equal(t, "darf.pdf - Página 1", cell(t, f, "erros", "A2"))
	assert.Empty(t, cell(t, f, "erros", "B2"))
	assert.Equal(t, "Linha digitável não encontrada.", cell(t, f, "erros", "J2"))
}
