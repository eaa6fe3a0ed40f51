// Package analyzer turns one item's raw marketplace payloads into a flat
// analytics record. Everything here is pure: same input, same output, no IO.
package analyzer

import (
	"math"
	"regexp"
	"strings"
	"time"

	"r6market/internal/models"
	"r6market/internal/services/ubi"
)

// RawItem is the (price history, market data, item metadata) tuple for one
// item, as collected by the batched fetch.
type RawItem struct {
	PriceHistory []ubi.PricePoint
	MarketData   ubi.MarketData
	Item         ubi.Item
}

var seasonRe = regexp.MustCompile(`^Y(\d)S(\d)`)

// Analyze computes the market record for one item relative to now.
// Price-history entries land in the 7-day window when they are strictly
// less than 7 days old, and likewise for 14 days.
func Analyze(raw RawItem, now time.Time) models.MarketRecord {
	currentSell := lowestSell(raw.MarketData)
	currentBuy := highestBuy(raw.MarketData)

	var lastSoldAt *time.Time
	if len(raw.MarketData.LastSoldAt) > 0 {
		t := raw.MarketData.LastSoldAt[0].PerformedAt
		lastSoldAt = &t
	}

	prices7d := windowEntries(raw.PriceHistory, now, 7)
	prices14d := windowEntries(raw.PriceHistory, now, 14)

	low7, high7 := actualRange(prices7d)
	low14, high14 := actualRange(prices14d)

	itemType, primaryTag, subTag, rarity, season := classify(raw.Item)

	return models.MarketRecord{
		ItemID:   raw.Item.ItemID,
		Name:     raw.Item.Name,
		AssetURL: raw.Item.AssetURL,
		ItemType: itemType,

		PrimaryTag: primaryTag,
		SubTag:     subTag,
		Rarity:     rarity,
		Season:     season,

		CurrentLowestSellPrice: currentSell,
		CurrentHighestBuyPrice: currentBuy,
		Spread:                 spread(currentSell, currentBuy),
		LastSoldAt:             lastSoldAt,

		AvgPrice7d:        avgOf(prices7d, func(p ubi.PricePoint) *int { return p.AveragePrice }),
		AvgLowestPrice7d:  avgOf(prices7d, func(p ubi.PricePoint) *int { return p.LowestPrice }),
		AvgHighestPrice7d: avgOf(prices7d, func(p ubi.PricePoint) *int { return p.HighestPrice }),
		AvgItemsCount7d:   avgOf(prices7d, func(p ubi.PricePoint) *int { return p.ItemsCount }),
		ActualLowest7d:    low7,
		ActualHighest7d:   high7,

		AvgPrice14d:        avgOf(prices14d, func(p ubi.PricePoint) *int { return p.AveragePrice }),
		AvgLowestPrice14d:  avgOf(prices14d, func(p ubi.PricePoint) *int { return p.LowestPrice }),
		AvgHighestPrice14d: avgOf(prices14d, func(p ubi.PricePoint) *int { return p.HighestPrice }),
		AvgItemsCount14d:   avgOf(prices14d, func(p ubi.PricePoint) *int { return p.ItemsCount }),
		ActualLowest14d:    low14,
		ActualHighest14d:   high14,
	}
}

// Undervalue is the percentage the current sell price sits below a
// historical average, to one decimal. Null when either side is missing or
// the average is zero.
func Undervalue(avgPrice, currentSell *int) *float64 {
	if avgPrice == nil || currentSell == nil || *avgPrice == 0 {
		return nil
	}
	v := float64(*avgPrice-*currentSell) / float64(*avgPrice) * 100
	v = math.Round(v*10) / 10
	return &v
}

func lowestSell(md ubi.MarketData) *int {
	if len(md.SellStats) == 0 {
		return nil
	}
	return md.SellStats[0].LowestPrice
}

func highestBuy(md ubi.MarketData) *int {
	if len(md.BuyStats) == 0 {
		return nil
	}
	return md.BuyStats[0].HighestPrice
}

func spread(sell, buy *int) *int {
	if sell == nil || buy == nil {
		return nil
	}
	s := *sell - *buy
	return &s
}

func windowEntries(history []ubi.PricePoint, now time.Time, days float64) []ubi.PricePoint {
	var out []ubi.PricePoint
	for _, p := range history {
		t, ok := p.Time()
		if !ok {
			continue
		}
		if now.Sub(t).Hours()/24 < days {
			out = append(out, p)
		}
	}
	return out
}

// avgOf is the rounded arithmetic mean of one field across the window,
// ignoring null entries. Null when no entry carries the field.
func avgOf(entries []ubi.PricePoint, pick func(ubi.PricePoint) *int) *int {
	sum, count := 0, 0
	for _, e := range entries {
		if v := pick(e); v != nil {
			sum += *v
			count++
		}
	}
	if count == 0 {
		return nil
	}
	avg := int(math.Round(float64(sum) / float64(count)))
	return &avg
}

// actualRange is the true min of lowestPrice and max of highestPrice
// observed in the window, as opposed to the averaged values.
func actualRange(entries []ubi.PricePoint) (min, max *int) {
	for _, e := range entries {
		if e.LowestPrice != nil && (min == nil || *e.LowestPrice < *min) {
			v := *e.LowestPrice
			min = &v
		}
		if e.HighestPrice != nil && (max == nil || *e.HighestPrice > *max) {
			v := *e.HighestPrice
			max = &v
		}
	}
	return min, max
}

// classify derives the display classification from the item's fixed tag
// vocabulary: primary tag (weapon, universal/seasonal, or character),
// sub tag (with esport override), rarity and season codes.
func classify(item ubi.Item) (itemType, primaryTag, subTag, rarity, season *string) {
	if item.Type != "" {
		label := item.Type
		if translated, ok := typeMap[item.Type]; ok {
			label = translated
		}
		itemType = &label
	}

	if len(item.Tags) == 0 {
		return itemType, nil, nil, nil, nil
	}

	var foundWeaponTag, foundCharTag, foundSubTag string
	var isUniversal, isSeasonal, isEsport bool
	for _, tag := range item.Tags {
		if _, ok := weaponSet[normalizeTag(tag)]; ok {
			foundWeaponTag = tag
		}
		if strings.HasPrefix(tag, "Character") {
			parts := strings.Split(tag, ".")
			foundCharTag = parts[len(parts)-1]
		}
		if _, ok := subTagCandidates[tag]; ok {
			if translated, found := subTagTranslations[tag]; found {
				foundSubTag = translated
			} else {
				foundSubTag = tag
			}
		}
		switch tag {
		case "Universal":
			isUniversal = true
		case "Seasonal":
			isSeasonal = true
		case "esport":
			isEsport = true
		}
	}

	var primary, sub string
	switch item.Type {
	case "Charm":
		// charms carry no tag classification
	case "WeaponSkin", "WeaponAttachmentSkinSet", "GadgetSkin", "DroneSkin":
		switch {
		case foundWeaponTag != "":
			primary = foundWeaponTag
		case isUniversal:
			primary = "공용"
		case isSeasonal:
			primary = "시즌"
		}
		if isEsport {
			sub = "e스포츠"
		} else {
			sub = foundSubTag
		}
	case "CharacterHeadgear", "CharacterUniform", "OperatorCardPortrait":
		primary = foundCharTag
		if isEsport {
			sub = "e스포츠"
		} else {
			sub = foundSubTag
		}
	}
	if primary != "" {
		p := strings.ReplaceAll(primary, "_", " ")
		primaryTag = &p
	}
	if sub != "" {
		s := sub
		subTag = &s
	}

	for _, tag := range item.Tags {
		if strings.HasPrefix(tag, "rarity_") {
			code := strings.TrimPrefix(tag, "rarity_")
			label := code
			if translated, ok := rarityMap[code]; ok {
				label = translated
			}
			rarity = &label
		}
		if m := seasonRe.FindStringSubmatch(tag); m != nil {
			s := "Y" + m[1] + "S" + m[2]
			season = &s
		}
	}

	return itemType, primaryTag, subTag, rarity, season
}
