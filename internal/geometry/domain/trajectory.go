package geometry

import (
	"fmt"
	"math"
	"sort"
)

// doglegEpsilon is the dogleg angle (radians) below which a segment is treated as straight.
const doglegEpsilon = 1e-9

// SurveyPoint is a directional-survey observation in degrees.
type SurveyPoint struct {
	Line int
	MD   float64
	HAZI float64
	DEVI float64
}

// BuildTrajectory integrates survey points with the minimum curvature method.
// The shallowest point is anchored at (0, 0, 0); points are sorted by MD first.
func BuildTrajectory(points []SurveyPoint) ([]Station, error) {
	if len(points) == 0 {
		return []Station{}, nil
	}
	sorted := make([]SurveyPoint, len(points))
	copy(sorted, points)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].MD < sorted[j].MD })

	lines := make([]int, len(sorted))
	mds := make([]float64, len(sorted))
	for i, p := range sorted {
		lines[i], mds[i] = p.Line, p.MD
	}
	if verr := checkDuplicateMD(lines, mds); verr != nil {
		return nil, verr
	}

	stations := make([]Station, len(sorted))
	var x, y, z float64
	for i, p := range sorted {
		if i > 0 {
			dE, dN, dV := minimumCurvatureStep(sorted[i-1], p)
			x += dE
			y += dN
			z += dV
		}
		stations[i] = Station{
			MD:   p.MD,
			X:    x,
			Y:    y,
			Z:    z,
			HAZI: floatPtr(p.HAZI),
			DEVI: floatPtr(p.DEVI),
		}
	}
	return stations, nil
}

// DoglegAngle returns the angle (radians) between two survey directions.
func DoglegAngle(a, b SurveyPoint) float64 {
	i1, i2 := radians(a.DEVI), radians(b.DEVI)
	dA := radians(b.HAZI - a.HAZI)
	cosBeta := math.Cos(i2-i1) - math.Sin(i1)*math.Sin(i2)*(1-math.Cos(dA))
	return math.Acos(clamp(cosBeta, -1, 1))
}

// RatioFactor is the minimum curvature ratio factor for a dogleg angle.
func RatioFactor(beta float64) float64 {
	if beta <= doglegEpsilon {
		return 1
	}
	return 2 / beta * math.Tan(beta/2)
}

// minimumCurvatureStep returns east, north and vertical increments from a to b.
func minimumCurvatureStep(a, b SurveyPoint) (float64, float64, float64) {
	i1, i2 := radians(a.DEVI), radians(b.DEVI)
	a1, a2 := radians(a.HAZI), radians(b.HAZI)
	scale := (b.MD - a.MD) / 2 * RatioFactor(DoglegAngle(a, b))

	dN := scale * (math.Sin(i1)*math.Cos(a1) + math.Sin(i2)*math.Cos(a2))
	dE := scale * (math.Sin(i1)*math.Sin(a1) + math.Sin(i2)*math.Sin(a2))
	dV := scale * (math.Cos(i1) + math.Cos(i2))
	return dE, dN, dV
}

func sortRows(rows []SurveyRow) {
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].MD < rows[j].MD })
}

// DuplicateMD reports every row whose MD repeats an earlier one, in any order.
func DuplicateMD(rows []SurveyRow) *ValidationError {
	sorted := make([]SurveyRow, len(rows))
	copy(sorted, rows)
	sortRows(sorted)
	return duplicateMD(sorted)
}

func duplicateMD(rows []SurveyRow) *ValidationError {
	lines := make([]int, len(rows))
	mds := make([]float64, len(rows))
	for i, r := range rows {
		lines[i], mds[i] = r.Line, r.MD
	}
	return checkDuplicateMD(lines, mds)
}

// checkDuplicateMD expects mds sorted ascending.
func checkDuplicateMD(lines []int, mds []float64) *ValidationError {
	var verr *ValidationError
	for i := 1; i < len(mds); i++ {
		if mds[i] != mds[i-1] {
			continue
		}
		if verr == nil {
			verr = &ValidationError{}
		}
		verr.AddRow(lines[i], fmt.Sprintf("duplicate %s value %g (also on row %d)", ColumnMD, mds[i], lines[i-1]))
	}
	return verr
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}

func degrees(rad float64) float64 {
	return rad * 180 / math.Pi
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
