package utils

import (
	"regexp"
	"strings"

	"github.com/darfparse/darf-extractor/dto"
)

// Diagnostics carried in ExtractedField.Error, one set per field.
const (
	ErrCNPJNotFound     = "CNPJ não encontrado no texto."
	ErrCNPJInvalid      = "CNPJ encontrado, porém inválido pelos dígitos verificadores."
	ErrRazaoNotFound    = "Razão social não encontrada."
	ErrPeriodoNotFound  = "Período de apuração não encontrado."
	ErrPeriodoInvalid   = "Período de apuração com formato inválido."
	ErrVencNotFound     = "Data de vencimento não encontrada."
	ErrVencInvalid      = "Data de vencimento com formato inválido."
	ErrNumDocNotFound   = "Número do documento não encontrado."
	ErrValorNotFound    = "Valor total do documento não encontrado."
	ErrValorInvalid     = "Valor total do documento com formato inválido."
	ErrCodigoNotFound   = "Código não encontrado na composição do documento."
	ErrDenomNotFound    = "Denominação não encontrada ou vazia."
	ErrLinhaDigNotFound = "Linha digitável não encontrada."
)

var (
	cnpjRegex   = regexp.MustCompile(`\d{2}\.\d{3}\.\d{3}/\d{4}-\d{2}`)
	dateRegex   = regexp.MustCompile(`\d{2}/\d{2}/\d{4}`)
	docNumRegex = regexp.MustCompile(`\d{2}\.\d{2}\.\d{5}\.\d{7}-\d`)

	// Typeable line of a DARF: 5+7 digit header starting with 8 or 9, then a
	// check digit and three 11-digit groups with interleaved check digits.
	linhaDigitavelRegex = regexp.MustCompile(`\b([89]\d{4}\d{7}\s\d\s\d{11}\s\d\s\d{11}\s\d\s\d{11}\s\d)\b`)
	linhaDigStartRegex  = regexp.MustCompile(`^[89]\d{4}`)
	longDigitRunRegex   = regexp.MustCompile(`\d{10,}`)

	// Uppercase company-name run (accented letters included).
	upperNameRegex = regexp.MustCompile(`[A-ZÀ-Ü][A-ZÀ-Ü ]{9,}`)

	// A line that is only digits and punctuation, never a company name.
	numericLineRegex = regexp.MustCompile(`^[\d\s.,/\-]+$`)

	spaceRunRegex  = regexp.MustCompile(`[ \t]+`)
	allSpacesRegex = regexp.MustCompile(`\s+`)

	tripleRegex = regexp.MustCompile(`(\d{2}/\d{2}/\d{4})[\s|]+(\d{2}/\d{2}/\d{4})[\s|]+(\d{2}\.\d{2}\.\d{5}\.\d{7}-\d)`)

	labeledTripleRegex = regexp.MustCompile(`Período de Apuração[\s\S]{0,160}?(\d{2}/\d{2}/\d{4})[\s|]+(\d{2}/\d{2}/\d{4})[\s|]+(\d{2}\.\d{2}\.\d{5}\.\d{7}-\d)`)
	labeledValorRegex  = regexp.MustCompile(`Valor Total do Documento[\s\S]{0,80}?(\d{1,3}(?:\.\d{3})*,\d{2})`)
	labeledCodigoRegex = regexp.MustCompile(`Composição do Documento de Arrecadação[\s\S]{0,400}?(\d{4})\s+([A-ZÀ-Ü][A-ZÀ-Ü \-/]{9,})`)
	numeroLabelRegex   = regexp.MustCompile(`Número:\s*(\d{2}\.\d{2}\.\d{5}\.\d{7}-\d)`)

	codeLineRegex = regexp.MustCompile(`^(\d{4})\s+(.+)`)
)

// CollapseSpaces squeezes runs of spaces and tabs into single spaces while
// keeping line breaks intact.
func CollapseSpaces(text string) string {
	return spaceRunRegex.ReplaceAllString(text, " ")
}

// StrippedLength counts the characters left after removing all whitespace,
// including newlines. Used to decide whether native text is worth keeping.
func StrippedLength(text string) int {
	return len([]rune(allSpacesRegex.ReplaceAllString(text, "")))
}

// NormalizeLines splits a text block into trimmed, space-collapsed,
// non-empty lines in document order.
func NormalizeLines(text string) []string {
	var lines []string
	for _, raw := range strings.Split(text, "\n") {
		norm := strings.TrimSpace(allSpacesRegex.ReplaceAllString(raw, " "))
		if norm != "" {
			lines = append(lines, norm)
		}
	}
	return lines
}

// ParseDARFPage runs every field extractor over one page worth of text and
// assembles the nine-field record. Extractors are pure and independent:
// a failure in one never interrupts the others.
func ParseDARFPage(lines []string, text string) map[string]dto.ExtractedField {
	fields := make(map[string]dto.ExtractedField, len(dto.FieldNames))

	cnpj, razao := extractCNPJAndName(lines, text)
	fields[dto.FieldCNPJ] = cnpj
	fields[dto.FieldRazaoSocial] = razao

	periodo, venc, numDoc := extractPeriodTrio(lines, text)
	fields[dto.FieldPeriodoApuracao] = periodo
	fields[dto.FieldDataVencimento] = venc
	fields[dto.FieldNumeroDocumento] = numDoc

	fields[dto.FieldValorTotal] = extractTotalAmount(lines, text)

	codigo, denom := extractCodeAndDescription(lines, text)
	fields[dto.FieldCodigo] = codigo
	fields[dto.FieldDenominacao] = denom

	fields[dto.FieldLinhaDigitavel] = extractTypeableLine(lines, text)

	return fields
}

func firstLineContaining(lines []string, substr string) int {
	for i, line := range lines {
		if strings.Contains(line, substr) {
			return i
		}
	}
	return -1
}

// extractCNPJAndName finds the first CNPJ-shaped token and resolves the
// company name from the same line, neighbouring lines or the raw text.
func extractCNPJAndName(lines []string, text string) (dto.ExtractedField, dto.ExtractedField) {
	var cnpj, razao dto.ExtractedField

	idx := -1
	var loc []int
	for i, line := range lines {
		if m := cnpjRegex.FindStringIndex(line); m != nil {
			idx, loc = i, m
			break
		}
	}

	if idx == -1 {
		cnpj.Error = ErrCNPJNotFound
		razao.Error = ErrRazaoNotFound
		return cnpj, razao
	}

	line := lines[idx]
	cnpj.Value = line[loc[0]:loc[1]]
	if !ValidateCNPJ(cnpj.Value) {
		cnpj.Error = ErrCNPJInvalid
	}

	name := strings.TrimSpace(line[loc[1]:])

	// The issuer sometimes breaks the name onto the following line.
	if name == "" && idx+1 < len(lines) && !numericLineRegex.MatchString(lines[idx+1]) {
		name = lines[idx+1]
	}

	if len([]rune(name)) < 5 {
		if labeled := nameNearLabel(lines, idx); labeled != "" {
			name = labeled
		}
	}

	if len([]rune(name)) < 5 {
		if fallback := nameFromFullText(text); fallback != "" {
			name = fallback
		}
	}

	if name == "" {
		razao.Error = ErrRazaoNotFound
	} else {
		razao.Value = name
	}
	return cnpj, razao
}

// nameNearLabel scans a window around the CNPJ line for a "Razão Social"
// label and returns the text after it (or the whole next line).
func nameNearLabel(lines []string, idx int) string {
	lo := idx - 3
	if lo < 0 {
		lo = 0
	}
	hi := idx + 5
	if hi > len(lines)-1 {
		hi = len(lines) - 1
	}
	for j := lo; j <= hi; j++ {
		lower := strings.ToLower(lines[j])
		pos := strings.Index(lower, "razão social")
		if pos < 0 {
			continue
		}
		after := strings.TrimLeft(lines[j][pos+len("razão social"):], " :")
		after = strings.TrimSpace(after)
		if after != "" {
			return after
		}
		if j+1 < len(lines) && !numericLineRegex.MatchString(lines[j+1]) {
			return lines[j+1]
		}
	}
	return ""
}

// nameFromFullText takes a ~200 char window after the CNPJ match in the raw
// text and picks the first long uppercase run, rejecting implausible lengths.
func nameFromFullText(text string) string {
	loc := cnpjRegex.FindStringIndex(text)
	if loc == nil {
		return ""
	}
	window := text[loc[1]:]
	if runes := []rune(window); len(runes) > 200 {
		window = string(runes[:200])
	}
	candidate := strings.TrimSpace(upperNameRegex.FindString(window))
	if n := len([]rune(candidate)); n < 5 || n > 100 {
		return ""
	}
	return candidate
}

// extractPeriodTrio resolves assessment period, due date and document number.
// The primary strategy is the value line under the "Período de Apuração"
// label; each fallback tier loosens the anchoring.
func extractPeriodTrio(lines []string, text string) (periodo, venc, numDoc dto.ExtractedField) {
	var pv, vv, nv string

	// Tier 1: triple on the line after the label, the label line itself,
	// or the three lines following it.
	if idx := firstLineContaining(lines, "Período de Apuração"); idx != -1 {
		order := []int{idx + 1, idx, idx + 2, idx + 3}
		for _, j := range order {
			if j < 0 || j >= len(lines) {
				continue
			}
			if m := tripleRegex.FindStringSubmatch(lines[j]); m != nil {
				pv, vv, nv = m[1], m[2], m[3]
				break
			}
		}
	}

	// Tier 2: any line holding two dates; document number from that line.
	if pv == "" || vv == "" {
		for _, line := range lines {
			dates := dateRegex.FindAllString(line, -1)
			if len(dates) < 2 {
				continue
			}
			pv, vv = dates[0], dates[1]
			if nv == "" {
				nv = docNumRegex.FindString(line)
			}
			break
		}
	}

	// Tier 3: full text, label-anchored then label-free.
	if pv == "" || vv == "" || nv == "" {
		if m := labeledTripleRegex.FindStringSubmatch(text); m != nil {
			if pv == "" {
				pv = m[1]
			}
			if vv == "" {
				vv = m[2]
			}
			if nv == "" {
				nv = m[3]
			}
		}
	}
	if pv == "" || vv == "" || nv == "" {
		if m := tripleRegex.FindStringSubmatch(text); m != nil {
			if pv == "" {
				pv = m[1]
			}
			if vv == "" {
				vv = m[2]
			}
			if nv == "" {
				nv = m[3]
			}
		}
	}

	// Last resort for the dates: first two date tokens anywhere,
	// skipping the one already assigned to the period.
	if pv == "" || vv == "" {
		for _, d := range dateRegex.FindAllString(text, -1) {
			if pv == "" {
				pv = d
				continue
			}
			if vv == "" && d != pv {
				vv = d
				break
			}
		}
	}

	// Document number stragglers: "Número:" label, then anywhere.
	if nv == "" {
		if m := numeroLabelRegex.FindStringSubmatch(text); m != nil {
			nv = m[1]
		}
	}
	if nv == "" {
		nv = docNumRegex.FindString(text)
	}

	periodo = validatedDate(pv, ErrPeriodoNotFound, ErrPeriodoInvalid)
	venc = validatedDate(vv, ErrVencNotFound, ErrVencInvalid)
	if nv == "" {
		numDoc.Error = ErrNumDocNotFound
	} else {
		numDoc.Value = nv
	}
	return periodo, venc, numDoc
}

func validatedDate(value, notFound, invalid string) dto.ExtractedField {
	if value == "" {
		return dto.ExtractedField{Error: notFound}
	}
	if !ValidateDateBR(value) {
		return dto.ExtractedField{Value: value, Error: invalid}
	}
	return dto.ExtractedField{Value: value}
}

// extractTotalAmount resolves the document total. The first candidate that
// passes the currency grammar and decimal parse wins; when every candidate
// fails validation the first one is kept with an invalid-format diagnostic.
func extractTotalAmount(lines []string, text string) dto.ExtractedField {
	var firstCandidate string

	consider := func(candidate string) (string, bool) {
		if candidate == "" {
			return "", false
		}
		if firstCandidate == "" {
			firstCandidate = candidate
		}
		if ValidateCurrencyBR(candidate) {
			return candidate, true
		}
		return "", false
	}

	// Tier 1: label line itself, then up to four lines below it.
	if idx := firstLineContaining(lines, "Valor Total do Documento"); idx != -1 {
		for off := 0; off <= 4; off++ {
			if idx+off >= len(lines) {
				break
			}
			if v, ok := consider(currencyRegex.FindString(lines[idx+off])); ok {
				return dto.ExtractedField{Value: v}
			}
		}
	}

	// Tier 2: a "Valor:" summary line.
	for _, line := range lines {
		if !strings.Contains(line, "Valor:") {
			continue
		}
		if v, ok := consider(currencyRegex.FindString(line)); ok {
			return dto.ExtractedField{Value: v}
		}
	}

	// Tier 3: first positive currency token anywhere in the lines.
	for _, line := range lines {
		for _, tok := range currencyRegex.FindAllString(line, -1) {
			if parsed, ok := ParseCurrencyBR(tok); ok && parsed > 0 {
				return dto.ExtractedField{Value: tok}
			}
		}
	}

	// Tier 4: labeled search over the raw text, covering broken line splits.
	if m := labeledValorRegex.FindStringSubmatch(text); m != nil {
		if v, ok := consider(m[1]); ok {
			return dto.ExtractedField{Value: v}
		}
	}

	if firstCandidate != "" {
		return dto.ExtractedField{Value: firstCandidate, Error: ErrValorInvalid}
	}
	return dto.ExtractedField{Error: ErrValorNotFound}
}

// extractCodeAndDescription resolves the 4-digit revenue code and its
// description from the composition block.
func extractCodeAndDescription(lines []string, text string) (codigo, denom dto.ExtractedField) {
	var code, desc string

	if idx := firstLineContaining(lines, "Composição do Documento de Arrecadação"); idx != -1 {
		for j := idx + 1; j < len(lines) && j <= idx+10; j++ {
			m := codeLineRegex.FindStringSubmatch(lines[j])
			if m == nil {
				continue
			}
			code = m[1]
			rest := m[2]
			if vm := currencyRegex.FindStringIndex(rest); vm != nil {
				desc = strings.TrimSpace(rest[:vm[0]])
			} else {
				desc = strings.TrimSpace(rest)
			}
			// Short descriptions usually continue on the next line.
			if len([]rune(desc)) < 10 && j+1 < len(lines) {
				next := lines[j+1]
				if !numericLineRegex.MatchString(next) && currencyRegex.FindString(next) == "" {
					desc = strings.TrimSpace(desc + " " + next)
				}
			}
			break
		}
	}

	if code == "" {
		if m := labeledCodigoRegex.FindStringSubmatch(text); m != nil {
			code = m[1]
			desc = strings.TrimSpace(m[2])
			if runes := []rune(desc); len(runes) > 200 {
				desc = string(runes[:200])
			}
		}
	}

	if code == "" {
		codigo.Error = ErrCodigoNotFound
	} else {
		codigo.Value = code
	}
	desc = strings.TrimSpace(desc)
	if len([]rune(desc)) < 3 {
		// A too-short candidate is still retained for inspection.
		denom = dto.ExtractedField{Value: desc, Error: ErrDenomNotFound}
	} else {
		denom.Value = desc
	}
	return codigo, denom
}

// extractTypeableLine resolves the bank typeable line (linha digitável).
func extractTypeableLine(lines []string, text string) dto.ExtractedField {
	// Tier 1: strict grammar on a single line.
	for _, line := range lines {
		if m := linhaDigitavelRegex.FindStringSubmatch(line); m != nil {
			return dto.ExtractedField{Value: m[1]}
		}
	}

	// Tier 2: permissive — a line opening with 8 or 9 carrying 40+ digits.
	for _, line := range lines {
		if linhaDigStartRegex.MatchString(line) && len(DigitsOnly(line)) >= 40 {
			return dto.ExtractedField{Value: strings.TrimSpace(line)}
		}
	}

	// Tier 3: strict grammar across the raw text; catches mis-split lines.
	if m := linhaDigitavelRegex.FindStringSubmatch(text); m != nil {
		return dto.ExtractedField{Value: m[1]}
	}

	// Tier 4: stitch long digit runs together and accept if enough digits
	// survive. Truncation keeps OCR noise from inflating the line.
	joined := strings.Join(longDigitRunRegex.FindAllString(text, -1), "")
	if len(joined) > 60 {
		joined = joined[:60]
	}
	if len(DigitsOnly(joined)) >= 44 {
		return dto.ExtractedField{Value: joined}
	}

	return dto.ExtractedField{Error: ErrLinhaDigNotFound}
}
