package analytics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtremesInsight(t *testing.T) {
	got, err := ExtremesInsight("Kecamatan", "jumlah proyek", []Group{{"Mandau", 12}, {"Rupat", 3}, {"Siak", 1}})
	require.NoError(t, err)
	assert.Contains(t, got, "tertinggi adalah Mandau")
	assert.Contains(t, got, "terendah adalah Siak")
	assert.Contains(t, got, FormatAmount(12))

	_, err = ExtremesInsight("Kecamatan", "jumlah proyek", nil)
	assert.ErrorIs(t, err, ErrNoData)
}

func TestMonthlyInsight(t *testing.T) {
	s := MonthlySeries{Points: []MonthPoint{
		{Month: "2023-01", Total: 400},
		{Month: "2023-02", Total: 50, Delta: -350},
		{Month: "2023-03", Total: 1000, Delta: 950},
	}}

	got, err := MonthlyInsight("jumlah investasi", s)
	require.NoError(t, err)
	assert.Contains(t, got, "tertinggi terjadi pada bulan Maret 2023")
	assert.Contains(t, got, "terendah terjadi pada bulan Februari 2023")
	assert.Contains(t, got, "Kenaikan terbesar terjadi pada bulan Maret 2023")
	assert.Contains(t, got, "Penurunan terbesar terjadi pada bulan Februari 2023 dengan penurunan sebesar "+FormatAmount(350))
}

func TestMonthlyInsight_SingleMonth(t *testing.T) {
	got, err := MonthlyInsight("jumlah investasi", MonthlySeries{Points: []MonthPoint{{Month: "2023-01", Total: 5}}})
	require.NoError(t, err)
	assert.NotContains(t, got, "Kenaikan")
}

func TestRankInsight(t *testing.T) {
	got, err := RankInsight("10 KBLI teratas", []Group{{"Perdagangan", 9}, {"", 2}})
	require.NoError(t, err)
	assert.Equal(t, "10 KBLI teratas:\n1. Perdagangan = 9\n2. (kosong) = 2", got)
}

func TestStatsInsight(t *testing.T) {
	got, err := StatsInsight("Kecamatan", "jumlah investasi", StatsResult{Groups: []GroupStats{
		{Key: "A", Mean: 10}, {Key: "B", Mean: 40}, {Key: "C", Mean: 25},
	}})
	require.NoError(t, err)
	assert.Contains(t, got, "tertinggi adalah B")
	assert.Contains(t, got, "terendah adalah A")
	assert.Contains(t, got, "dari 10 hingga 40")
}

func TestShareInsight(t *testing.T) {
	got, err := ShareInsight("jumlah investasi", []Group{{"Tinggi", 1}, {"Rendah", 3}})
	require.NoError(t, err)
	assert.Contains(t, got, "kategori Tinggi adalah 1 dengan persentase (25.00%)")
	assert.Contains(t, got, "kategori Rendah adalah 3 dengan persentase (75.00%)")

	_, err = ShareInsight("jumlah investasi", nil)
	assert.ErrorIs(t, err, ErrNoData)
}

func TestMonthLabel(t *testing.T) {
	assert.Equal(t, "Agustus 2023", MonthLabel("2023-08"))
	assert.Equal(t, "bad", MonthLabel("bad"))
}
