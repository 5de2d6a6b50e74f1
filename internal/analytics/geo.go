package analytics

import (
	"strings"

	"pride/internal/schema"
)

// GeoPoint is one project placed on the map, sized by its investment.
type GeoPoint struct {
	SubDistrict string  `json:"kecamatan"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	Amount      float64 `json:"amount"`
}

// GeoPoints are the mappable rows of a view. Unplaced counts rows whose
// coordinates are missing, not numbers or out of range.
type GeoPoints struct {
	Points   []GeoPoint `json:"points"`
	Unplaced int        `json:"unplaced"`
}

// Points returns the coordinates and investment amount of every selected
// row. A non-numeric amount is reported as zero.
func (v *View) Points() GeoPoints {
	t := v.table
	latIdx := t.Column(schema.FieldLatitude)
	lonIdx := t.Column(schema.FieldLongitude)
	amountIdx := t.Column(schema.FieldInvestment)
	districtIdx := t.Column(schema.FieldSubDistrict)

	out := GeoPoints{Points: []GeoPoint{}}
	for _, r := range v.rows {
		row := t.Rows[r]
		lat, latOK := coordinate(row, latIdx, 90)
		lon, lonOK := coordinate(row, lonIdx, 180)
		if !latOK || !lonOK {
			out.Unplaced++
			continue
		}

		p := GeoPoint{Latitude: lat, Longitude: lon}
		if amountIdx >= 0 {
			p.Amount, _ = ParseNumber(row[amountIdx])
		}
		if districtIdx >= 0 {
			p.SubDistrict = strings.TrimSpace(row[districtIdx])
		}
		out.Points = append(out.Points, p)
	}
	return out
}

func coordinate(row []string, idx int, limit float64) (float64, bool) {
	if idx < 0 {
		return 0, false
	}
	n, ok := ParseNumber(row[idx])
	if !ok || n < -limit || n > limit {
		return 0, false
	}
	return n, true
}
