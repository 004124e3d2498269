package parser

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	geometry "borehole-geometry/internal/geometry/domain"
)

const defaultMaxRows = 100000

// Parser reads survey files into validated rows.
type Parser struct {
	maxRows int
}

// Option configures the parser.
type Option func(*Parser)

// WithMaxRows caps the number of data rows accepted per file.
func WithMaxRows(maxRows int) Option {
	return func(p *Parser) {
		if maxRows > 0 {
			p.maxRows = maxRows
		}
	}
}

// New constructs a Parser.
func New(opts ...Option) *Parser {
	p := &Parser{maxRows: defaultMaxRows}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Parse reads and validates a survey file for the given format.
// Header problems are returned immediately; row problems are collected across
// the whole file and returned together as a *geometry.ValidationError.
// Row numbers count non-blank data records, starting at 1 below the header.
func (p *Parser) Parse(format geometry.SurveyFormat, filename string, data []byte) ([]geometry.SurveyRow, error) {
	if !format.IsValid() {
		return nil, fmt.Errorf("%w: %q", geometry.ErrInvalidFormat, string(format))
	}

	records, err := readTable(filename, data)
	if err != nil {
		verr := &geometry.ValidationError{}
		verr.AddHeader(fmt.Sprintf("unreadable file: %v", err))
		return nil, verr
	}

	headerAt := -1
	for i, record := range records {
		if !blankRecord(record) {
			headerAt = i
			break
		}
	}
	if headerAt < 0 {
		verr := &geometry.ValidationError{}
		verr.AddHeader("missing header row")
		return nil, verr
	}

	columns, verr := resolveHeader(format, records[headerAt])
	if verr != nil {
		return nil, verr
	}

	body := records[headerAt+1:]
	if len(body) > p.maxRows {
		verr := &geometry.ValidationError{}
		verr.AddHeader(fmt.Sprintf("file exceeds %d data rows", p.maxRows))
		return nil, verr
	}

	verr = &geometry.ValidationError{}
	rows := make([]geometry.SurveyRow, 0, len(body))
	line := 0
	for _, record := range body {
		if blankRecord(record) {
			continue
		}
		line++
		row, ok := parseRow(format, columns, record, line, verr)
		if ok {
			rows = append(rows, row)
		}
	}
	verr.Merge(geometry.DuplicateMD(rows))
	if !verr.Empty() {
		return nil, verr
	}
	return rows, nil
}

// resolveHeader maps each schema column to its index in the header record.
func resolveHeader(format geometry.SurveyFormat, header []string) (map[string]int, *geometry.ValidationError) {
	present := make(map[string]int, len(header))
	for i, name := range header {
		key := normalizeName(name)
		if _, dup := present[key]; !dup {
			present[key] = i
		}
	}

	var verr *geometry.ValidationError
	columns := make(map[string]int)
	for _, col := range format.Columns() {
		idx, ok := present[normalizeName(col.Name)]
		if ok {
			columns[col.Name] = idx
			continue
		}
		if !col.Required {
			continue
		}
		if verr == nil {
			verr = &geometry.ValidationError{}
		}
		verr.AddHeader(fmt.Sprintf("missing required column '%s' (position %d)", col.Name, col.Position))
	}
	return columns, verr
}

func parseRow(format geometry.SurveyFormat, columns map[string]int, record []string, line int, verr *geometry.ValidationError) (geometry.SurveyRow, bool) {
	row := geometry.SurveyRow{Line: line}
	ok := true
	required := func(name string, dst *float64) {
		v, err := cellValue(columns, record, name, true)
		if err != "" {
			verr.AddRow(line, err)
			ok = false
			return
		}
		*dst = *v
	}
	optional := func(name string) *float64 {
		v, err := cellValue(columns, record, name, false)
		if err != "" {
			verr.AddRow(line, err)
			ok = false
			return nil
		}
		return v
	}

	required(geometry.ColumnMD, &row.MD)
	switch format {
	case geometry.FormatXYZ:
		required(geometry.ColumnX, &row.X)
		required(geometry.ColumnY, &row.Y)
		required(geometry.ColumnZ, &row.Z)
		row.HAZI = optional(geometry.ColumnHAZI)
		row.DEVI = optional(geometry.ColumnDEVI)
	case geometry.FormatAzInc:
		var hazi, devi float64
		required(geometry.ColumnHAZI, &hazi)
		required(geometry.ColumnDEVI, &devi)
		row.HAZI, row.DEVI = &hazi, &devi
	case geometry.FormatPitchRoll:
		required(geometry.ColumnPitch, &row.Pitch)
		required(geometry.ColumnRoll, &row.Roll)
	}

	if row.DEVI != nil && (*row.DEVI < 0 || *row.DEVI > 180) {
		verr.AddRow(line, fmt.Sprintf("value %g in column '%s' is outside [0, 180]", *row.DEVI, geometry.ColumnDEVI))
		ok = false
	}
	return row, ok
}

// cellValue returns the parsed cell, nil for an absent optional cell, or an error message.
func cellValue(columns map[string]int, record []string, name string, required bool) (*float64, string) {
	idx, ok := columns[name]
	text := ""
	if ok && idx < len(record) {
		text = strings.TrimSpace(record[idx])
	}
	if text == "" {
		if required {
			return nil, fmt.Sprintf("missing value in column '%s'", name)
		}
		return nil, ""
	}
	v, err := strconv.ParseFloat(text, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil, fmt.Sprintf("invalid number '%s' in column '%s'", text, name)
	}
	return &v, ""
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
