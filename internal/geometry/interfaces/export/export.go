package export

import (
	"bytes"
	"fmt"

	"github.com/jung-kurt/gofpdf"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/xuri/excelize/v2"

	geometry "borehole-geometry/internal/geometry/domain"
)

// Report holds what an export renders.
type Report struct {
	Title      string
	BoreholeID string
	Stations   []geometry.Station
}

var stationHeader = []string{geometry.ColumnMD, geometry.ColumnX, geometry.ColumnY, geometry.ColumnZ, geometry.ColumnHAZI, geometry.ColumnDEVI}

// BuildStationsXLSX renders the station list as a workbook in the XYZ upload layout,
// so an export can be uploaded again unchanged.
func BuildStationsXLSX(report Report) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()
	sheet := "stations"
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, err
	}

	for i, name := range stationHeader {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return nil, err
		}
		_ = f.SetCellValue(sheet, cell, name)
	}
	for i, station := range report.Stations {
		row := i + 2
		_ = f.SetCellValue(sheet, fmt.Sprintf("A%d", row), station.MD)
		_ = f.SetCellValue(sheet, fmt.Sprintf("B%d", row), station.X)
		_ = f.SetCellValue(sheet, fmt.Sprintf("C%d", row), station.Y)
		_ = f.SetCellValue(sheet, fmt.Sprintf("D%d", row), station.Z)
		if station.HAZI != nil {
			_ = f.SetCellValue(sheet, fmt.Sprintf("E%d", row), *station.HAZI)
		}
		if station.DEVI != nil {
			_ = f.SetCellValue(sheet, fmt.Sprintf("F%d", row), *station.DEVI)
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildStationsPDF renders a minimal trajectory report.
func BuildStationsPDF(report Report) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	title := report.Title
	if title == "" {
		title = "Borehole trajectory"
	}
	pdf.Cell(0, 8, title)
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Borehole: %s", report.BoreholeID))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Stations: %d", len(report.Stations)))
	pdf.Ln(5)
	if n := len(report.Stations); n > 0 {
		last := report.Stations[n-1]
		pdf.Cell(0, 6, fmt.Sprintf("Deepest station: MD %.2f m, TVD %.2f m", last.MD, last.Z))
		pdf.Ln(5)
	}
	pdf.Ln(4)

	widths := []float64{30, 30, 30, 30, 30, 30}
	pdf.SetFont("Arial", "B", 10)
	for i, name := range stationHeader {
		pdf.CellFormat(widths[i], 6, name, "1", 0, "C", false, 0, "")
	}
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 10)
	for _, station := range report.Stations {
		values := []string{
			fmt.Sprintf("%.2f", station.MD),
			fmt.Sprintf("%.2f", station.X),
			fmt.Sprintf("%.2f", station.Y),
			fmt.Sprintf("%.2f", station.Z),
			optional(station.HAZI),
			optional(station.DEVI),
		}
		for i, value := range values {
			pdf.CellFormat(widths[i], 6, value, "1", 0, "R", false, 0, "")
		}
		pdf.Ln(-1)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildStationsGeoJSON renders the plan view of the trajectory in local wellhead
// coordinates (x east, y north, metres). The path is one LineString feature followed
// by one Point feature per station carrying md, tvd, hazi and devi.
func BuildStationsGeoJSON(report Report) ([]byte, error) {
	fc := geojson.NewFeatureCollection()

	path := make(orb.LineString, 0, len(report.Stations))
	for _, station := range report.Stations {
		path = append(path, orb.Point{station.X, station.Y})
	}
	if len(path) >= 2 {
		feature := geojson.NewFeature(path)
		feature.Properties = geojson.Properties{
			"borehole_id": report.BoreholeID,
			"kind":        "trajectory",
		}
		fc.Append(feature)
	}

	for _, station := range report.Stations {
		feature := geojson.NewFeature(orb.Point{station.X, station.Y})
		props := geojson.Properties{
			"borehole_id": report.BoreholeID,
			"kind":        "station",
			"md":          station.MD,
			"tvd":         station.Z,
		}
		if station.HAZI != nil {
			props["hazi"] = *station.HAZI
		}
		if station.DEVI != nil {
			props["devi"] = *station.DEVI
		}
		feature.Properties = props
		fc.Append(feature)
	}
	return fc.MarshalJSON()
}

func optional(v *float64) string {
	if v == nil {
		return ""
	}
	return fmt.Sprintf("%.2f", *v)
}
