package geometry

import "math"

// PitchRollToAzInc converts tool-face pitch and roll (degrees) into azimuth and
// inclination (degrees). The tool axis is rotated by pitch about the tool y axis,
// then by roll about the tool x axis, into the north-east-down frame.
func PitchRollToAzInc(pitch, roll float64) (hazi, devi float64) {
	p, r := radians(pitch), radians(roll)
	north := math.Sin(p)
	east := -math.Cos(p) * math.Sin(r)
	down := math.Cos(p) * math.Cos(r)

	devi = degrees(math.Acos(clamp(down, -1, 1)))
	if math.Hypot(north, east) < 1e-12 {
		return 0, devi
	}
	hazi = math.Mod(degrees(math.Atan2(east, north))+360, 360)
	return hazi, devi
}
