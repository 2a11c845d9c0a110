package catalog

import (
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedDistricts() []District {
	return []District{
		{Name: "النرجس", NameEN: "Al Narjis", Aliases: []string{"نرجس"}, Fee: decimal.NewFromInt(15), ETA: "30-45 دقيقة", Active: true},
		{Name: "الصحافة", NameEN: "Al Sahafa", Fee: decimal.NewFromInt(12), Active: true},
		{Name: "الورود", NameEN: "Al Wurud", Fee: decimal.NewFromInt(10), Active: true},
		{Name: "العليا", NameEN: "Al Olaya", Fee: decimal.NewFromInt(10), Active: true},
		{Name: "الرمال", NameEN: "Al Rimal", Fee: decimal.NewFromInt(18), Active: false},
	}
}

// --- District tests ---

func TestMatchDistrict_Exact(t *testing.T) {
	cov := MatchDistrict(seedDistricts(), "النرجس")
	assert.True(t, cov.Covered)
	assert.Equal(t, "النرجس", cov.District)
	assert.True(t, cov.Fee.Equal(decimal.NewFromInt(15)))
	assert.Equal(t, "30-45 دقيقة", cov.ETA)
}

func TestMatchDistrict_PrefixAliasAndEnglish(t *testing.T) {
	for _, q := range []string{"حي النرجس", "نرجس", "al narjis", " AL NARJIS "} {
		cov := MatchDistrict(seedDistricts(), q)
		assert.True(t, cov.Covered, q)
		assert.Equal(t, "النرجس", cov.District, q)
	}
}

func TestMatchDistrict_TehMarbutaFolded(t *testing.T) {
	cov := MatchDistrict(seedDistricts(), "الصحافه")
	assert.True(t, cov.Covered)
	assert.Equal(t, "الصحافة", cov.District)
}

func TestMatchDistrict_InactiveNotCovered(t *testing.T) {
	cov := MatchDistrict(seedDistricts(), "الرمال")
	assert.False(t, cov.Covered)
	assert.Empty(t, cov.Suggestions)
}

func TestMatchDistrict_Suggestions(t *testing.T) {
	cov := MatchDistrict(seedDistricts(), "al")
	assert.False(t, cov.Covered)
	assert.Len(t, cov.Suggestions, MaxSuggestions)
	assert.Equal(t, "النرجس", cov.Suggestions[0])
}

func TestMatchDistrict_Unknown(t *testing.T) {
	cov := MatchDistrict(seedDistricts(), "الملقا")
	assert.False(t, cov.Covered)
	assert.Empty(t, cov.Suggestions)
	assert.False(t, MatchDistrict(seedDistricts(), "  ").Covered)
}

// --- Hours tests ---

func riyadh(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("Asia/Riyadh")
	require.NoError(t, err)
	return loc
}

func TestHours_CrossMidnight(t *testing.T) {
	loc := riyadh(t)
	h := Hours{Open: 9, Close: 3, Location: loc}

	tests := []struct {
		hour int
		open bool
	}{
		{0, true}, {2, true}, {3, false}, {8, false}, {9, true}, {15, true}, {23, true},
	}
	for _, tt := range tests {
		now := time.Date(2026, 3, 1, tt.hour, 30, 0, 0, loc)
		assert.Equal(t, tt.open, h.IsOpen(now), "hour %d", tt.hour)
	}
}

func TestHours_SameDay(t *testing.T) {
	h := Hours{Open: 10, Close: 22}
	assert.False(t, h.IsOpen(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)))
	assert.True(t, h.IsOpen(time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)))
	assert.False(t, h.IsOpen(time.Date(2026, 3, 1, 22, 0, 0, 0, time.UTC)))
}

func TestHours_Status(t *testing.T) {
	loc := riyadh(t)
	h := Hours{Open: 9, Close: 3, Location: loc}

	// 17:00 UTC is 20:00 in Riyadh
	st := h.Status(time.Date(2026, 3, 1, 17, 0, 0, 0, time.UTC))
	assert.True(t, st.Open)
	assert.Equal(t, "20:00", st.LocalTime)
	assert.Equal(t, time.Date(2026, 3, 2, 3, 0, 0, 0, loc), st.NextEvent)
	assert.Equal(t, "open until 03:00", st.Message)

	st = h.Status(time.Date(2026, 3, 1, 5, 0, 0, 0, loc))
	assert.False(t, st.Open)
	assert.Equal(t, time.Date(2026, 3, 1, 9, 0, 0, 0, loc), st.NextEvent)
}

func TestMenuItem_SearchText(t *testing.T) {
	m := MenuItem{Name: "برجر كلاسيك", NameEN: "Classic Burger", Category: "burgers", Description: "beef patty"}
	assert.Equal(t, "برجر كلاسيك Classic Burger burgers beef patty", m.SearchText())
}
