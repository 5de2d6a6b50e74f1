package analytics

import (
	"fmt"
	"math"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Narratives are written in Indonesian with the locale's digit grouping, as
// the office reads them.
var printer = message.NewPrinter(language.Indonesian)

var monthNames = [...]string{
	"Januari", "Februari", "Maret", "April", "Mei", "Juni",
	"Juli", "Agustus", "September", "Oktober", "November", "Desember",
}

// FormatAmount renders a value with Indonesian digit grouping and at most two
// decimals.
func FormatAmount(v float64) string {
	if v == math.Trunc(v) && math.Abs(v) < 1e15 {
		return printer.Sprintf("%d", int64(v))
	}
	return printer.Sprintf("%.2f", v)
}

// MonthLabel turns "2023-08" into "Agustus 2023". Unknown input is returned
// unchanged.
func MonthLabel(month string) string {
	t, err := time.Parse("2006-01", month)
	if err != nil {
		return month
	}
	return fmt.Sprintf("%s %d", monthNames[t.Month()-1], t.Year())
}

func keyLabel(k string) string {
	if k == "" {
		return "(kosong)"
	}
	return k
}

// ExtremesInsight names the highest and lowest group. subject describes what
// was grouped ("Kecamatan"), metric what was measured ("jumlah proyek").
func ExtremesInsight(subject, metric string, groups []Group) (string, error) {
	if len(groups) == 0 {
		return "", ErrNoData
	}
	hi, lo := groups[0], groups[len(groups)-1]
	if len(groups) == 1 {
		return fmt.Sprintf("%s %s memiliki %s sebesar %s.",
			subject, keyLabel(hi.Key), metric, FormatAmount(hi.Value)), nil
	}
	return fmt.Sprintf("%s dengan %s tertinggi adalah %s dengan nilai %s. Sedangkan %s dengan %s terendah adalah %s dengan nilai %s.",
		subject, metric, keyLabel(hi.Key), FormatAmount(hi.Value),
		strings.ToLower(subject), metric, keyLabel(lo.Key), FormatAmount(lo.Value)), nil
}

// MonthlyInsight describes the highest and lowest month and the largest
// month-over-month increase and decrease.
func MonthlyInsight(metric string, s MonthlySeries) (string, error) {
	if len(s.Points) == 0 {
		return "", ErrNoData
	}

	hi, lo := s.Points[0], s.Points[0]
	for _, p := range s.Points[1:] {
		if p.Total > hi.Total {
			hi = p
		}
		if p.Total < lo.Total {
			lo = p
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s tertinggi terjadi pada bulan %s sebesar %s. %s terendah terjadi pada bulan %s dengan total %s.",
		capitalize(metric), MonthLabel(hi.Month), FormatAmount(hi.Total),
		capitalize(metric), MonthLabel(lo.Month), FormatAmount(lo.Total))

	if len(s.Points) < 2 {
		return b.String(), nil
	}

	up, down := s.Points[1], s.Points[1]
	for _, p := range s.Points[2:] {
		if p.Delta > up.Delta {
			up = p
		}
		if p.Delta < down.Delta {
			down = p
		}
	}
	if up.Delta > 0 {
		fmt.Fprintf(&b, " Kenaikan terbesar terjadi pada bulan %s dengan peningkatan sebesar %s.",
			MonthLabel(up.Month), FormatAmount(up.Delta))
	}
	if down.Delta < 0 {
		fmt.Fprintf(&b, " Penurunan terbesar terjadi pada bulan %s dengan penurunan sebesar %s.",
			MonthLabel(down.Month), FormatAmount(-down.Delta))
	}
	return b.String(), nil
}

// RankInsight is a numbered list under a heading.
func RankInsight(title string, groups []Group) (string, error) {
	if len(groups) == 0 {
		return "", ErrNoData
	}
	var b strings.Builder
	b.WriteString(title)
	b.WriteString(":")
	for i, g := range groups {
		fmt.Fprintf(&b, "\n%d. %s = %s", i+1, keyLabel(g.Key), FormatAmount(g.Value))
	}
	return b.String(), nil
}

// StatsInsight summarizes per-group means: the highest, the lowest, and the
// range they span.
func StatsInsight(subject, metric string, r StatsResult) (string, error) {
	if len(r.Groups) == 0 {
		return "", ErrNoData
	}
	hi, lo := r.Groups[0], r.Groups[0]
	for _, g := range r.Groups[1:] {
		if g.Mean > hi.Mean {
			hi = g
		}
		if g.Mean < lo.Mean {
			lo = g
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Distribusi rata-rata %s menunjukkan bahwa:", metric)
	fmt.Fprintf(&b, "\n- %s dengan rata-rata %s tertinggi adalah %s dengan nilai %s.", subject, metric, keyLabel(hi.Key), FormatAmount(hi.Mean))
	fmt.Fprintf(&b, "\n- %s dengan rata-rata %s terendah adalah %s dengan nilai %s.", subject, metric, keyLabel(lo.Key), FormatAmount(lo.Mean))
	fmt.Fprintf(&b, "\n- Rentang nilai rata-rata %s adalah dari %s hingga %s.", metric, FormatAmount(lo.Mean), FormatAmount(hi.Mean))
	return b.String(), nil
}

// ShareInsight states each category's count and percentage of the total.
func ShareInsight(metric string, counts []Group) (string, error) {
	total := 0.0
	for _, g := range counts {
		total += g.Value
	}
	if total == 0 {
		return "", ErrNoData
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Berdasarkan hasil prediksi %s:", metric)
	for _, g := range counts {
		fmt.Fprintf(&b, "\n- %s dengan kategori %s adalah %s dengan persentase (%.2f%%)",
			capitalize(metric), keyLabel(g.Key), FormatAmount(g.Value), g.Value/total*100)
	}
	return b.String(), nil
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
