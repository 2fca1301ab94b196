package crs

import "fmt"

// epsgNames holds the names of commonly used EPSG codes. Codes missing from
// the table are still valid, they just render without a name.
var epsgNames = map[int]string{
	2056:  "CH1903+ / LV95",
	3035:  "ETRS89-extended / LAEA Europe",
	3857:  "WGS 84 / Pseudo-Mercator",
	4258:  "ETRS89",
	4269:  "NAD83",
	4326:  "WGS 84",
	4978:  "WGS 84",
	21781: "CH1903 / LV03",
	27700: "OSGB36 / British National Grid",
}

func epsgName(code int) string {
	if name, ok := epsgNames[code]; ok {
		return name
	}
	// WGS 84 / UTM zones
	switch {
	case code > 32600 && code <= 32660:
		return fmt.Sprintf("WGS 84 / UTM zone %dN", code-32600)
	case code > 32700 && code <= 32760:
		return fmt.Sprintf("WGS 84 / UTM zone %dS", code-32700)
	}
	return ""
}
