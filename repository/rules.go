package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/darfparse/darf-extractor/dto"
	"github.com/darfparse/darf-extractor/utils"
)

// Sheet categories a revenue code may route to.
const (
	AbaServidor = "servidor"
	AbaPatronal = "patronal-gilrat"
)

var ErrRuleNotFound = errors.New("regra não encontrada")

var codigoRegex = regexp.MustCompile(`^\d{4}$`)
var uoRegex = regexp.MustCompile(`^\d+$`)

// Defaults inserted on first initialization, matching the rules the finance
// team operated with before the store existed.
var defaultCodigos = []dto.CodeRule{
	{Codigo: "1082", Aba: AbaServidor},
	{Codigo: "1099", Aba: AbaServidor},
	{Codigo: "1138", Aba: AbaPatronal},
	{Codigo: "1646", Aba: AbaPatronal},
}

var defaultCNPJs = []dto.CNPJRule{
	{CNPJ: "18.715.565/0001-10", UO: "1071"},
	{CNPJ: "16.745.465/0001-01", UO: "1081"},
	{CNPJ: "07.256.298/0001-44", UO: "1101"},
	{CNPJ: "16.907.746/0001-13", UO: "1191"},
	{CNPJ: "19.377.514/0001-99", UO: "1221"},
	{CNPJ: "18.715.573/0001-67", UO: "1231"},
	{CNPJ: "19.138.890/0001-20", UO: "1271"},
	{CNPJ: "18.715.581/0001-03", UO: "1301"},
	{CNPJ: "00.957.404/0001-78", UO: "1371"},
	{CNPJ: "05.487.631/0001-09", UO: "1451"},
	{CNPJ: "05.465.167/0001-41", UO: "1481"},
	{CNPJ: "05.475.103/0001-21", UO: "1491"},
	{CNPJ: "05.461.142/0001-70", UO: "1501"},
	{CNPJ: "18.715.532/0001-70", UO: "1511"},
	{CNPJ: "05.585.681/0001-10", UO: "1521"},
	{CNPJ: "08.715.327/0001-51", UO: "1541"},
	{CNPJ: "13.235.618/0001-82", UO: "1631"},
	{CNPJ: "50.629.390/0001-31", UO: "1711"},
	{CNPJ: "50.941.185/0001-07", UO: "1721"},
}

// RuleStore maps revenue codes to spreadsheet categories and CNPJs to
// contributing org units, backed by SQLite.
type RuleStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open connects to the SQLite database at dsn (a file path or ":memory:"),
// creating and seeding the rule tables on first use.
func Open(ctx context.Context, dsn string, logger *slog.Logger) (*RuleStore, error) {
	if logger == nil {
		logger = slog.Default()
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open rules db: %w", err)
	}
	// An in-memory database exists per connection; pin the pool to one.
	if strings.Contains(dsn, ":memory:") {
		db.SetMaxOpenConns(1)
	}

	s := &RuleStore{db: db, logger: logger}
	if err := s.init(ctx); err != nil {
		db.Close()
		return nil, err
	}
	logger.Info("rules.store.ready", "dsn", dsn)
	return s, nil
}

func (s *RuleStore) init(ctx context.Context) error {
	const schema = `
CREATE TABLE IF NOT EXISTS codigo_aba (
	codigo TEXT PRIMARY KEY,
	aba    TEXT NOT NULL CHECK (aba IN ('servidor', 'patronal-gilrat'))
);
CREATE TABLE IF NOT EXISTS cnpj_uo (
	cnpj            TEXT PRIMARY KEY,
	uo_contribuinte TEXT NOT NULL
);`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create rule tables: %w", err)
	}

	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM codigo_aba`).Scan(&count); err != nil {
		return fmt.Errorf("count codigo_aba: %w", err)
	}
	if count == 0 {
		for _, r := range defaultCodigos {
			if _, err := s.db.ExecContext(ctx,
				`INSERT INTO codigo_aba (codigo, aba) VALUES (?, ?)`, r.Codigo, r.Aba); err != nil {
				return fmt.Errorf("seed codigo_aba: %w", err)
			}
		}
	}

	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM cnpj_uo`).Scan(&count); err != nil {
		return fmt.Errorf("count cnpj_uo: %w", err)
	}
	if count == 0 {
		for _, r := range defaultCNPJs {
			if _, err := s.db.ExecContext(ctx,
				`INSERT INTO cnpj_uo (cnpj, uo_contribuinte) VALUES (?, ?)`, r.CNPJ, r.UO); err != nil {
				return fmt.Errorf("seed cnpj_uo: %w", err)
			}
		}
	}
	return nil
}

// SheetForCode returns the sheet category for a revenue code, or "" when
// the code is unmapped (callers drop those records silently).
func (s *RuleStore) SheetForCode(ctx context.Context, codigo string) (string, error) {
	if codigo == "" {
		return "", nil
	}
	var aba string
	err := s.db.QueryRowContext(ctx,
		`SELECT aba FROM codigo_aba WHERE codigo = ?`, codigo).Scan(&aba)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("lookup codigo %s: %w", codigo, err)
	}
	return aba, nil
}

// UOForCNPJ returns the contributing org unit for a CNPJ (formatted or
// not), or "" when unmapped.
func (s *RuleStore) UOForCNPJ(ctx context.Context, cnpj string) (string, error) {
	formatted := utils.FormatCNPJ(cnpj)
	if formatted == "" {
		return "", nil
	}
	var uo string
	err := s.db.QueryRowContext(ctx,
		`SELECT uo_contribuinte FROM cnpj_uo WHERE cnpj = ?`, formatted).Scan(&uo)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("lookup cnpj %s: %w", formatted, err)
	}
	return uo, nil
}

func (s *RuleStore) ListCodes(ctx context.Context) ([]dto.CodeRule, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT codigo, aba FROM codigo_aba ORDER BY codigo`)
	if err != nil {
		return nil, fmt.Errorf("list codigos: %w", err)
	}
	defer rows.Close()

	var out []dto.CodeRule
	for rows.Next() {
		var r dto.CodeRule
		if err := rows.Scan(&r.Codigo, &r.Aba); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *RuleStore) AddCode(ctx context.Context, codigo, aba string) error {
	if !codigoRegex.MatchString(codigo) {
		return errors.New("código deve ter exatamente 4 dígitos")
	}
	if aba != AbaServidor && aba != AbaPatronal {
		return fmt.Errorf("aba deve ser '%s' ou '%s'", AbaServidor, AbaPatronal)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO codigo_aba (codigo, aba) VALUES (?, ?)`, codigo, aba)
	if err != nil {
		return fmt.Errorf("inserir código %s: %w", codigo, err)
	}
	s.logger.Info("rules.code.added", "codigo", codigo, "aba", aba)
	return nil
}

func (s *RuleStore) RemoveCode(ctx context.Context, codigo string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM codigo_aba WHERE codigo = ?`, codigo)
	if err != nil {
		return fmt.Errorf("remover código %s: %w", codigo, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrRuleNotFound
	}
	s.logger.Info("rules.code.removed", "codigo", codigo)
	return nil
}

func (s *RuleStore) ListCNPJs(ctx context.Context) ([]dto.CNPJRule, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT cnpj, uo_contribuinte FROM cnpj_uo ORDER BY cnpj`)
	if err != nil {
		return nil, fmt.Errorf("list cnpjs: %w", err)
	}
	defer rows.Close()

	var out []dto.CNPJRule
	for rows.Next() {
		var r dto.CNPJRule
		if err := rows.Scan(&r.CNPJ, &r.UO); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *RuleStore) AddCNPJ(ctx context.Context, cnpj, uo string) error {
	if !utils.ValidateCNPJ(cnpj) {
		return errors.New("CNPJ inválido (formato ou dígitos verificadores incorretos)")
	}
	if !uoRegex.MatchString(uo) {
		return errors.New("UO Contribuinte deve ser um código numérico")
	}
	formatted := utils.FormatCNPJ(cnpj)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO cnpj_uo (cnpj, uo_contribuinte) VALUES (?, ?)`, formatted, uo)
	if err != nil {
		return fmt.Errorf("inserir CNPJ %s: %w", formatted, err)
	}
	s.logger.Info("rules.cnpj.added", "cnpj", formatted, "uo", uo)
	return nil
}

func (s *RuleStore) RemoveCNPJ(ctx context.Context, cnpj string) error {
	formatted := utils.FormatCNPJ(cnpj)
	if formatted == "" {
		return errors.New("CNPJ inválido (deve ter 14 dígitos)")
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM cnpj_uo WHERE cnpj = ?`, formatted)
	if err != nil {
		return fmt.Errorf("remover CNPJ %s: %w", formatted, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrRuleNotFound
	}
	s.logger.Info("rules.cnpj.removed", "cnpj", formatted)
	return nil
}

func (s *RuleStore) Close() error {
	return s.db.Close()
}
