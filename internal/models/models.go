package models

import (
	"time"
)

// MarketRecord holds the computed market analytics for one marketplace item.
// It is replaced wholesale whenever the item is re-fetched; all derived
// metrics are pointers so a missing operand stays null instead of zero.
type MarketRecord struct {
	ItemID   string  `json:"itemId" gorm:"primaryKey;size:64"`
	Name     string  `json:"name"`
	AssetURL string  `json:"assetUrl"`
	ItemType *string `json:"itemType"`

	PrimaryTag *string `json:"primaryTag"`
	SubTag     *string `json:"subTag"`
	Rarity     *string `json:"rarity"`
	Season     *string `json:"season"`

	CurrentLowestSellPrice *int `json:"currentLowestSellPrice"`
	CurrentHighestBuyPrice *int `json:"currentHighestBuyPrice"`
	Spread                 *int `json:"spread"`

	LastSoldAt *time.Time `json:"lastSoldTime"`

	AvgPrice7d        *int `json:"avgPrice_7d"`
	AvgLowestPrice7d  *int `json:"avgLowestPrice_7d"`
	AvgHighestPrice7d *int `json:"avgHighestPrice_7d"`
	AvgItemsCount7d   *int `json:"avgItemsCount_7d"`
	ActualLowest7d    *int `json:"actualLowest_7d"`
	ActualHighest7d   *int `json:"actualHighest_7d"`

	AvgPrice14d        *int `json:"avgPrice_14d"`
	AvgLowestPrice14d  *int `json:"avgLowestPrice_14d"`
	AvgHighestPrice14d *int `json:"avgHighestPrice_14d"`
	AvgItemsCount14d   *int `json:"avgItemsCount_14d"`
	ActualLowest14d    *int `json:"actualLowest_14d"`
	ActualHighest14d   *int `json:"actualHighest_14d"`

	UpdatedAt time.Time `json:"updated_at"`
}

// PersonalRecord is the user's open position for one item: either a buy or a
// sell, never both. The most recent succeeded trade for the item wins.
type PersonalRecord struct {
	ItemID    string     `json:"itemId" gorm:"primaryKey;size:64"`
	BuyPrice  *int       `json:"myBuyPrice"`
	BuyDate   *time.Time `json:"buyDate"`
	SellPrice *int       `json:"mySellPrice"` // net of the 10% transaction fee
	SellDate  *time.Time `json:"sellDate"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// Favorite marks an item the user pinned; toggled explicitly from the UI.
type Favorite struct {
	ItemID    string    `json:"itemId" gorm:"primaryKey;size:64"`
	CreatedAt time.Time `json:"created_at"`
}

// PriceAlert is a one-shot threshold watch on an item's sell or buy side.
// It is deleted as soon as it triggers.
type PriceAlert struct {
	ItemID    string    `json:"itemId" gorm:"primaryKey;size:64"`
	Type      string    `json:"type"`      // sell | buy
	Condition string    `json:"condition"` // below | above
	Price     int       `json:"price"`
	CreatedAt time.Time `json:"created_at"`
}

// OwnedItem is one row of the materialized dashboard view: the full market
// record, personal position and profit metrics for an item currently listed
// for sale. The whole table is rebuilt on every dashboard refresh; readers
// never have to join back to the market records.
type OwnedItem struct {
	ID         uint    `json:"-" gorm:"primaryKey"`
	ItemID     string  `json:"itemId" gorm:"index;size:64"`
	Name       string  `json:"name"`
	AssetURL   string  `json:"assetUrl"`
	IsFavorite bool    `json:"isFavorite"`
	ItemType   *string `json:"itemType"`

	PrimaryTag *string `json:"primaryTag"`
	SubTag     *string `json:"subTag"`
	Rarity     *string `json:"rarity"`
	Season     *string `json:"season"`

	CurrentLowestSellPrice *int       `json:"currentLowestSellPrice"`
	CurrentHighestBuyPrice *int       `json:"currentHighestBuyPrice"`
	Spread                 *int       `json:"spread"`
	LastSoldAt             *time.Time `json:"lastSoldTime"`

	AvgPrice7d        *int `json:"avgPrice_7d"`
	AvgLowestPrice7d  *int `json:"avgLowestPrice_7d"`
	AvgHighestPrice7d *int `json:"avgHighestPrice_7d"`
	ActualLowest7d    *int `json:"actualLowest_7d"`
	ActualHighest7d   *int `json:"actualHighest_7d"`

	AvgPrice14d        *int `json:"avgPrice_14d"`
	AvgLowestPrice14d  *int `json:"avgLowestPrice_14d"`
	AvgHighestPrice14d *int `json:"avgHighestPrice_14d"`
	ActualLowest14d    *int `json:"actualLowest_14d"`
	ActualHighest14d   *int `json:"actualHighest_14d"`

	BuyPrice  *int       `json:"myBuyPrice"`
	BuyDate   *time.Time `json:"buyDate"`
	SellPrice *int       `json:"mySellPrice"`
	SellDate  *time.Time `json:"sellDate"`

	NetProfitCurrent   *int     `json:"netProfit_current"`
	ProfitRatioCurrent *float64 `json:"profitRatio_current"`
	NetProfit7d        *int     `json:"netProfit_7d"`
	ProfitRatio7d      *float64 `json:"profitRatio_7d"`
	NetProfit14d       *int     `json:"netProfit_14d"`
	ProfitRatio14d     *float64 `json:"profitRatio_14d"`

	CreatedAt time.Time `json:"-"`
}

// AppState is a small key/value table backing the non-tabular pieces of
// shared state: credential snapshot, settings, sync watermark, in-progress
// flags and last-updated timestamps. Values are JSON-encoded.
type AppState struct {
	Key       string    `gorm:"primaryKey;size:64"`
	Value     string    `gorm:"type:text"`
	UpdatedAt time.Time
}

// SortSettings is the persisted default sort of the dashboard tables.
type SortSettings struct {
	SortBy  string `json:"sortBy"`
	SortDir string `json:"sortDir"`
}

// Settings mirrors the options the UI surfaces read and write.
type Settings struct {
	UseOverlay       bool         `json:"useOverlay"`
	OverlayMode      string       `json:"overlayMode"` // none | simple | default | extended
	UseFavorites     bool         `json:"useFavorites"`
	ShowFavoritesTab bool         `json:"showFavoritesTab"`
	ShowOwnedTab     bool         `json:"showOwnedTab"`
	PopupMode        string       `json:"popupMode"`
	PopupLinkAction  string       `json:"popupLinkAction"` // navigate | newtab
	UsePriceAlerts   bool         `json:"usePriceAlerts"`
	AlertInterval    int          `json:"alertInterval"` // minutes
	Sort             SortSettings `json:"sort"`
}

// DefaultSettings are applied on first boot and fill gaps after updates.
func DefaultSettings() Settings {
	return Settings{
		UseOverlay:       true,
		OverlayMode:      "default",
		UseFavorites:     true,
		ShowFavoritesTab: true,
		ShowOwnedTab:     true,
		PopupMode:        "extended",
		PopupLinkAction:  "navigate",
		UsePriceAlerts:   false,
		AlertInterval:    5,
		Sort:             SortSettings{SortBy: "undervalueRatio_7d_calculated", SortDir: "desc"},
	}
}
