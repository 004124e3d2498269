package geometry

import (
	"fmt"
	"strings"
)

// SurveyFormat identifies an accepted survey-file shape.
type SurveyFormat string

const (
	FormatXYZ       SurveyFormat = "XYZ"
	FormatAzInc     SurveyFormat = "AzInc"
	FormatPitchRoll SurveyFormat = "PitchRoll"
)

// Column names as they appear in survey file headers (matched case-insensitively).
const (
	ColumnMD    = "MD_m"
	ColumnX     = "X_m"
	ColumnY     = "Y_m"
	ColumnZ     = "Z_m"
	ColumnHAZI  = "HAZI"
	ColumnDEVI  = "DEVI"
	ColumnPitch = "Pitch"
	ColumnRoll  = "Roll"
)

// Column describes one column of a format's schema.
// Position is the 1-based declared position used in header error messages.
type Column struct {
	Name     string
	Position int
	Required bool
}

// SurveyRow is one validated data row of an uploaded survey.
// Only the fields belonging to the row's format are meaningful.
type SurveyRow struct {
	Line  int
	MD    float64
	X     float64
	Y     float64
	Z     float64
	HAZI  *float64
	DEVI  *float64
	Pitch float64
	Roll  float64
}

var supportedFormats = []SurveyFormat{FormatXYZ, FormatAzInc, FormatPitchRoll}

// SupportedFormats returns the fixed set of accepted formats.
func SupportedFormats() []SurveyFormat {
	out := make([]SurveyFormat, len(supportedFormats))
	copy(out, supportedFormats)
	return out
}

// ParseFormat resolves a format name, ignoring case.
func ParseFormat(name string) (SurveyFormat, error) {
	name = strings.TrimSpace(name)
	for _, f := range supportedFormats {
		if strings.EqualFold(string(f), name) {
			return f, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidFormat, name)
}

// IsValid reports whether the format is supported.
func (f SurveyFormat) IsValid() bool {
	for _, s := range supportedFormats {
		if s == f {
			return true
		}
	}
	return false
}

// Columns returns the format's column schema.
func (f SurveyFormat) Columns() []Column {
	switch f {
	case FormatXYZ:
		return []Column{
			{Name: ColumnMD, Position: 1, Required: true},
			{Name: ColumnX, Position: 2, Required: true},
			{Name: ColumnY, Position: 3, Required: true},
			{Name: ColumnZ, Position: 4, Required: true},
			{Name: ColumnHAZI, Position: 5},
			{Name: ColumnDEVI, Position: 6},
		}
	case FormatAzInc:
		return []Column{
			{Name: ColumnMD, Position: 1, Required: true},
			{Name: ColumnHAZI, Position: 2, Required: true},
			{Name: ColumnDEVI, Position: 3, Required: true},
		}
	case FormatPitchRoll:
		return []Column{
			{Name: ColumnMD, Position: 1, Required: true},
			{Name: ColumnPitch, Position: 2, Required: true},
			{Name: ColumnRoll, Position: 3, Required: true},
		}
	default:
		return nil
	}
}

// Stations turns validated rows into a station list.
// XYZ rows are taken as given; angular rows are integrated from the wellhead.
func (f SurveyFormat) Stations(rows []SurveyRow) ([]Station, error) {
	switch f {
	case FormatXYZ:
		return xyzStations(rows)
	case FormatAzInc:
		return BuildTrajectory(surveyPoints(rows))
	case FormatPitchRoll:
		points := make([]SurveyPoint, 0, len(rows))
		for _, row := range rows {
			hazi, devi := PitchRollToAzInc(row.Pitch, row.Roll)
			points = append(points, SurveyPoint{Line: row.Line, MD: row.MD, HAZI: hazi, DEVI: devi})
		}
		return BuildTrajectory(points)
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidFormat, string(f))
	}
}

func xyzStations(rows []SurveyRow) ([]Station, error) {
	sorted := make([]SurveyRow, len(rows))
	copy(sorted, rows)
	sortRows(sorted)
	if verr := duplicateMD(sorted); verr != nil {
		return nil, verr
	}
	stations := make([]Station, 0, len(sorted))
	for _, row := range sorted {
		stations = append(stations, Station{
			MD:   row.MD,
			X:    row.X,
			Y:    row.Y,
			Z:    row.Z,
			HAZI: row.HAZI,
			DEVI: row.DEVI,
		})
	}
	return stations, nil
}

func surveyPoints(rows []SurveyRow) []SurveyPoint {
	points := make([]SurveyPoint, 0, len(rows))
	for _, row := range rows {
		var hazi, devi float64
		if row.HAZI != nil {
			hazi = *row.HAZI
		}
		if row.DEVI != nil {
			devi = *row.DEVI
		}
		points = append(points, SurveyPoint{Line: row.Line, MD: row.MD, HAZI: hazi, DEVI: devi})
	}
	return points
}
