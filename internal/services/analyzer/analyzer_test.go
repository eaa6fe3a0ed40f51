package analyzer

import (
	"testing"
	"time"

	"r6market/internal/services/ubi"
)

func intPtr(v int) *int { return &v }

var now = time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)

func point(daysAgo float64, avg, low, high, count *int) ubi.PricePoint {
	return ubi.PricePoint{
		Date:         now.Add(-time.Duration(daysAgo * 24 * float64(time.Hour))).Format(time.RFC3339),
		AveragePrice: avg,
		LowestPrice:  low,
		HighestPrice: high,
		ItemsCount:   count,
	}
}

func TestAnalyzeWindowBoundaryIsStrict(t *testing.T) {
	raw := RawItem{
		Item: ubi.Item{ItemID: "id-1", Name: "Test Skin"},
		PriceHistory: []ubi.PricePoint{
			point(6.9, intPtr(100), nil, nil, nil),
			point(7.0, intPtr(200), nil, nil, nil), // exactly 7 days: outside the 7d window
			point(13.9, intPtr(300), nil, nil, nil),
			point(14.0, intPtr(400), nil, nil, nil), // outside both windows
		},
	}
	record := Analyze(raw, now)

	if record.AvgPrice7d == nil || *record.AvgPrice7d != 100 {
		t.Errorf("7d average should only include the 6.9-day point, got %v", record.AvgPrice7d)
	}
	// 14d window: (100 + 200 + 300) / 3 = 200
	if record.AvgPrice14d == nil || *record.AvgPrice14d != 200 {
		t.Errorf("14d average should be 200, got %v", record.AvgPrice14d)
	}
}

func TestAnalyzeNullPropagation(t *testing.T) {
	raw := RawItem{Item: ubi.Item{ItemID: "id-1"}}
	record := Analyze(raw, now)

	if record.CurrentLowestSellPrice != nil {
		t.Error("no sell stats must yield a null sell price")
	}
	if record.Spread != nil {
		t.Error("spread must be null when either side is missing")
	}
	if record.AvgPrice7d != nil || record.ActualLowest14d != nil {
		t.Error("empty history must yield null window stats")
	}
	if record.LastSoldAt != nil {
		t.Error("no sales must yield a null lastSoldAt")
	}
}

func TestAnalyzeAveragesSkipNullEntries(t *testing.T) {
	raw := RawItem{
		Item: ubi.Item{ItemID: "id-1"},
		PriceHistory: []ubi.PricePoint{
			point(1, intPtr(100), intPtr(90), intPtr(110), intPtr(5)),
			point(2, nil, nil, nil, nil), // day with no activity
			point(3, intPtr(201), intPtr(80), intPtr(250), intPtr(7)),
		},
	}
	record := Analyze(raw, now)

	// (100 + 201) / 2 = 150.5, rounded to 151
	if record.AvgPrice7d == nil || *record.AvgPrice7d != 151 {
		t.Errorf("expected rounded average 151, got %v", record.AvgPrice7d)
	}
	if record.ActualLowest7d == nil || *record.ActualLowest7d != 80 {
		t.Errorf("expected actual lowest 80, got %v", record.ActualLowest7d)
	}
	if record.ActualHighest7d == nil || *record.ActualHighest7d != 250 {
		t.Errorf("expected actual highest 250, got %v", record.ActualHighest7d)
	}
	if record.AvgItemsCount7d == nil || *record.AvgItemsCount7d != 6 {
		t.Errorf("expected average items count 6, got %v", record.AvgItemsCount7d)
	}
}

func TestAnalyzeSpreadAndLastSold(t *testing.T) {
	soldAt := now.Add(-2 * time.Hour)
	raw := RawItem{
		Item: ubi.Item{ItemID: "id-1"},
		MarketData: ubi.MarketData{
			SellStats:  []ubi.SellStats{{LowestPrice: intPtr(500)}},
			BuyStats:   []ubi.BuyStats{{HighestPrice: intPtr(420)}},
			LastSoldAt: []ubi.LastSold{{Price: 460, PerformedAt: soldAt}},
		},
	}
	record := Analyze(raw, now)

	if record.Spread == nil || *record.Spread != 80 {
		t.Errorf("expected spread 80, got %v", record.Spread)
	}
	if record.LastSoldAt == nil || !record.LastSoldAt.Equal(soldAt) {
		t.Errorf("expected lastSoldAt %v, got %v", soldAt, record.LastSoldAt)
	}
}

func TestUndervalue(t *testing.T) {
	// (1000 - 850) / 1000 * 100 = 15.0
	got := Undervalue(intPtr(1000), intPtr(850))
	if got == nil || *got != 15.0 {
		t.Errorf("expected 15.0, got %v", got)
	}

	// negative when the current price sits above the average
	got = Undervalue(intPtr(1000), intPtr(1100))
	if got == nil || *got != -10.0 {
		t.Errorf("expected -10.0, got %v", got)
	}

	if Undervalue(nil, intPtr(100)) != nil || Undervalue(intPtr(100), nil) != nil {
		t.Error("missing operand must yield null")
	}
	if Undervalue(intPtr(0), intPtr(100)) != nil {
		t.Error("zero average must yield null")
	}
}

func TestClassifyWeaponSkin(t *testing.T) {
	raw := RawItem{
		Item: ubi.Item{
			ItemID: "id-1",
			Type:   "WeaponSkin",
			Tags:   []string{"Y7S1", "rarity_superrare", "MP5", "Animated"},
		},
	}
	record := Analyze(raw, now)

	if record.ItemType == nil || *record.ItemType != "무기 스킨" {
		t.Errorf("expected translated type, got %v", record.ItemType)
	}
	if record.PrimaryTag == nil || *record.PrimaryTag != "MP5" {
		t.Errorf("expected weapon primary tag, got %v", record.PrimaryTag)
	}
	if record.SubTag == nil || *record.SubTag != "동적" {
		t.Errorf("expected translated sub tag, got %v", record.SubTag)
	}
	if record.Rarity == nil || *record.Rarity != "에픽" {
		t.Errorf("expected translated rarity, got %v", record.Rarity)
	}
	if record.Season == nil || *record.Season != "Y7S1" {
		t.Errorf("expected season Y7S1, got %v", record.Season)
	}
}

func TestClassifyWeaponNameNormalization(t *testing.T) {
	// Tag arrives underscored and without periods; display form restores
	// spaces.
	raw := RawItem{
		Item: ubi.Item{
			ItemID: "id-1",
			Type:   "WeaponSkin",
			Tags:   []string{"44_MAG_SEMI-AUTO"},
		},
	}
	record := Analyze(raw, now)
	if record.PrimaryTag == nil || *record.PrimaryTag != "44 MAG SEMI-AUTO" {
		t.Errorf("expected normalized weapon tag, got %v", record.PrimaryTag)
	}
}

func TestClassifyUniversalAndSeasonal(t *testing.T) {
	universal := Analyze(RawItem{Item: ubi.Item{Type: "WeaponSkin", Tags: []string{"Universal"}}}, now)
	if universal.PrimaryTag == nil || *universal.PrimaryTag != "공용" {
		t.Errorf("expected universal label, got %v", universal.PrimaryTag)
	}

	seasonal := Analyze(RawItem{Item: ubi.Item{Type: "WeaponSkin", Tags: []string{"Seasonal"}}}, now)
	if seasonal.PrimaryTag == nil || *seasonal.PrimaryTag != "시즌" {
		t.Errorf("expected seasonal label, got %v", seasonal.PrimaryTag)
	}
}

func TestClassifyCharacterItem(t *testing.T) {
	raw := RawItem{
		Item: ubi.Item{
			Type: "CharacterHeadgear",
			Tags: []string{"Character.Ash", "rarity_legendary", "esport", "Texture"},
		},
	}
	record := Analyze(raw, now)

	if record.PrimaryTag == nil || *record.PrimaryTag != "Ash" {
		t.Errorf("expected character name, got %v", record.PrimaryTag)
	}
	// esport wins over the texture sub tag
	if record.SubTag == nil || *record.SubTag != "e스포츠" {
		t.Errorf("expected esport sub tag override, got %v", record.SubTag)
	}
	if record.Rarity == nil || *record.Rarity != "전설" {
		t.Errorf("expected translated rarity, got %v", record.Rarity)
	}
}

func TestClassifyCharmHasNoTags(t *testing.T) {
	raw := RawItem{
		Item: ubi.Item{
			Type: "Charm",
			Tags: []string{"Y5S2", "rarity_rare"},
		},
	}
	record := Analyze(raw, now)

	if record.PrimaryTag != nil || record.SubTag != nil {
		t.Error("charms carry no primary/sub classification")
	}
	if record.Season == nil || *record.Season != "Y5S2" {
		t.Errorf("season extraction still applies, got %v", record.Season)
	}
}
