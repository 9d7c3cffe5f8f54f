package dto

// Field names of a DARF page record, in spreadsheet column order.
const (
	FieldCNPJ            = "cnpj"
	FieldRazaoSocial     = "razao_social"
	FieldPeriodoApuracao = "periodo_apuracao"
	FieldDataVencimento  = "data_vencimento"
	FieldNumeroDocumento = "numero_documento"
	FieldValorTotal      = "valor_total_documento"
	FieldCodigo          = "codigo"
	FieldDenominacao     = "denominacao"
	FieldLinhaDigitavel  = "linha_digitavel"
)

// FieldNames lists all nine record fields in canonical order.
var FieldNames = []string{
	FieldCNPJ,
	FieldRazaoSocial,
	FieldPeriodoApuracao,
	FieldDataVencimento,
	FieldNumeroDocumento,
	FieldValorTotal,
	FieldCodigo,
	FieldDenominacao,
	FieldLinhaDigitavel,
}

// ExtractedField is the outcome of one field extraction: a value, a diagnostic,
// or both (value present but failed validation). Never both empty.
type ExtractedField struct {
	Value string `json:"value,omitempty"`
	Error string `json:"error,omitempty"`
}

// OK reports whether the field resolved to a valid value.
func (f ExtractedField) OK() bool {
	return f.Value != "" && f.Error == ""
}

// PageRecord holds the nine extracted fields of a single DARF page.
// Immutable after assembly by the page pipeline.
type PageRecord struct {
	Page   string                    `json:"pagina"` // "<filename> - Página <n>"
	Fields map[string]ExtractedField `json:"campos"`
}

// Field returns the named field, or a zero field if the name is unknown.
func (r PageRecord) Field(name string) ExtractedField {
	return r.Fields[name]
}

// HasErrors reports whether any of the nine fields carries a diagnostic.
func (r PageRecord) HasErrors() bool {
	for _, name := range FieldNames {
		if r.Fields[name].Error != "" {
			return true
		}
	}
	return false
}

// DocumentResult is the ordered per-page outcome for one PDF.
type DocumentResult struct {
	Filename string       `json:"arquivo"`
	Records  []PageRecord `json:"registros"`
}

// NewErrorRecord builds a record where every field carries the same diagnostic.
// Used when a document has no readable pages or fails before extraction.
func NewErrorRecord(page, message string) PageRecord {
	fields := make(map[string]ExtractedField, len(FieldNames))
	for _, name := range FieldNames {
		fields[name] = ExtractedField{Error: message}
	}
	return PageRecord{Page: page, Fields: fields}
}
