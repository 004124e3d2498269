package geometry

// TVD returns the true vertical depth at md for an MD-sorted station list.
// Without stations the hole is treated as straight and vertical. Outside the
// surveyed range the nearest segment is extended linearly.
func TVD(stations []Station, md float64) float64 {
	switch len(stations) {
	case 0:
		return md
	case 1:
		return stations[0].Z + (md - stations[0].MD)
	}

	i := segmentIndex(stations, md)
	a, b := stations[i], stations[i+1]
	return a.Z + (md-a.MD)*(b.Z-a.Z)/(b.MD-a.MD)
}

// MASL returns the elevation above sea level at md, or nil when undefined.
// Depths above the wellhead (md < 0) never resolve to an elevation.
func MASL(stations []Station, referenceElevation *float64, md float64) *float64 {
	if md < 0 || referenceElevation == nil {
		return nil
	}
	v := *referenceElevation - TVD(stations, md)
	return &v
}

// MDFromMASL inverts MASL, or returns nil when no measured depth corresponds.
func MDFromMASL(stations []Station, referenceElevation *float64, masl float64) *float64 {
	if referenceElevation == nil || masl > *referenceElevation {
		return nil
	}
	target := *referenceElevation - masl
	if len(stations) == 0 {
		return &target
	}
	md, ok := mdAtTVD(stations, target)
	if !ok || md < 0 {
		return nil
	}
	return &md
}

// segmentIndex picks the segment [i, i+1] used to evaluate md; requires len >= 2.
func segmentIndex(stations []Station, md float64) int {
	last := len(stations) - 1
	if md <= stations[0].MD {
		return 0
	}
	if md >= stations[last].MD {
		return last - 1
	}
	lo, hi := 0, last
	for hi-lo > 1 {
		mid := (lo + hi) / 2
		if stations[mid].MD <= md {
			lo = mid
		} else {
			hi = mid
		}
	}
	return lo
}

func mdAtTVD(stations []Station, tvd float64) (float64, bool) {
	if len(stations) == 1 {
		return stations[0].MD + (tvd - stations[0].Z), true
	}

	for i := 0; i < len(stations)-1; i++ {
		a, b := stations[i], stations[i+1]
		lo, hi := a.Z, b.Z
		if lo > hi {
			lo, hi = hi, lo
		}
		if tvd < lo || tvd > hi {
			continue
		}
		if b.Z == a.Z {
			return a.MD, true
		}
		return a.MD + (tvd-a.Z)*(b.MD-a.MD)/(b.Z-a.Z), true
	}

	first, last := stations[0], stations[len(stations)-1]
	if tvd < first.Z {
		next := stations[1]
		if next.Z > first.Z {
			return first.MD + (tvd-first.Z)*(next.MD-first.MD)/(next.Z-first.Z), true
		}
		return 0, false
	}
	prev := stations[len(stations)-2]
	if tvd > last.Z && last.Z > prev.Z {
		return last.MD + (tvd-last.Z)*(last.MD-prev.MD)/(last.Z-prev.Z), true
	}
	return 0, false
}
