package ubi

import "time"

// Trade states as reported by the marketplace.
const (
	TradeSucceeded = "Succeeded"
	TradeFailed    = "Failed"
)

// Trade categories.
const (
	CategoryBuy  = "Buy"
	CategorySell = "Sell"
)

type GQLError struct {
	Message string `json:"message"`
}

// Envelope is one slot of a batched GraphQL response.
type Envelope struct {
	Data   *Data      `json:"data"`
	Errors []GQLError `json:"errors,omitempty"`
}

type Data struct {
	Game *Game `json:"game"`
}

type Game struct {
	ID             string          `json:"id"`
	Viewer         *Viewer         `json:"viewer,omitempty"`
	MarketableItem *MarketableItem `json:"marketableItem,omitempty"`
}

type Viewer struct {
	Meta Meta `json:"meta"`
}

type Meta struct {
	ID              string              `json:"id"`
	MarketableItems *MarketableItemList `json:"marketableItems,omitempty"`
	Trades          *TradeList          `json:"trades,omitempty"`
}

type MarketableItemList struct {
	Nodes []MarketableItem `json:"nodes"`
}

type TradeList struct {
	Nodes []Trade `json:"nodes"`
}

type MarketableItem struct {
	ID           string       `json:"id"`
	Item         Item         `json:"item"`
	MarketData   MarketData   `json:"marketData"`
	PriceHistory []PricePoint `json:"priceHistory,omitempty"`
}

type Item struct {
	ID       string   `json:"id"`
	ItemID   string   `json:"itemId"`
	Name     string   `json:"name"`
	AssetURL string   `json:"assetUrl"`
	Type     string   `json:"type,omitempty"`
	Tags     []string `json:"tags,omitempty"`
}

type MarketData struct {
	ID         string      `json:"id"`
	SellStats  []SellStats `json:"sellStats"`
	BuyStats   []BuyStats  `json:"buyStats"`
	LastSoldAt []LastSold  `json:"lastSoldAt"`
}

type SellStats struct {
	LowestPrice *int `json:"lowestPrice"`
	ActiveCount int  `json:"activeCount,omitempty"`
}

type BuyStats struct {
	HighestPrice *int `json:"highestPrice"`
	ActiveCount  int  `json:"activeCount,omitempty"`
}

type LastSold struct {
	Price       int       `json:"price"`
	PerformedAt time.Time `json:"performedAt"`
}

// PricePoint is one day of an item's price history. All stats can be null
// on days without activity.
type PricePoint struct {
	ID           string `json:"id"`
	Date         string `json:"date"`
	LowestPrice  *int   `json:"lowestPrice"`
	AveragePrice *int   `json:"averagePrice"`
	HighestPrice *int   `json:"highestPrice"`
	ItemsCount   *int   `json:"itemsCount"`
}

// Time parses the point's date, which the API reports either as a full
// timestamp or as a plain calendar date.
func (p PricePoint) Time() (time.Time, bool) {
	if p.Date == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(time.RFC3339, p.Date); err == nil {
		return t, true
	}
	if t, err := time.Parse("2006-01-02", p.Date); err == nil {
		return t, true
	}
	return time.Time{}, false
}

type Trade struct {
	ID             string      `json:"id"`
	State          string      `json:"state"`
	Category       string      `json:"category"`
	LastModifiedAt time.Time   `json:"lastModifiedAt"`
	TradeItems     []TradeItem `json:"tradeItems"`
	Payment        *Payment    `json:"payment"`
}

type TradeItem struct {
	Item Item `json:"item"`
}

type Payment struct {
	Price int `json:"price"`
}
