// Package tradesync reconciles the viewer's trade history against the
// persisted personal records, bounded by the sync watermark.
package tradesync

import (
	"context"
	"log"
	"math"
	"sort"

	"r6market/internal/models"
	"r6market/internal/services/ubi"
)

const (
	pageSize = 100
	// Fixed marketplace cut on a sale; personal sell prices are stored net.
	sellFee = 0.10
)

// Store is the slice of persisted state the synchronizer touches.
type Store interface {
	Credentials() (map[string]string, error)
	Watermark() (int64, error)
	SetWatermark(ts int64) error
	PersonalRecords() (map[string]models.PersonalRecord, error)
	UpsertPersonalRecords(records []models.PersonalRecord) error
}

// Client issues batched marketplace calls.
type Client interface {
	Call(ctx context.Context, reqs []ubi.Request, headers map[string]string) ([]ubi.Envelope, error)
}

type Syncer struct {
	store  Store
	client Client
}

func New(store Store, client Client) *Syncer {
	return &Syncer{store: store, client: client}
}

// SyncRecentTransactions pages trade history newest-first until it reaches
// the watermark, applies new succeeded trades in chronological order and
// persists the updated records together with the advanced watermark. It
// returns the ids of items whose personal record changed. Without captured
// credentials it is a no-op.
func (s *Syncer) SyncRecentTransactions(ctx context.Context) ([]string, error) {
	headers, err := s.store.Credentials()
	if err != nil {
		return nil, err
	}
	if headers == nil {
		return nil, nil
	}

	watermark, err := s.store.Watermark()
	if err != nil {
		return nil, err
	}

	var newTrades []ubi.Trade
	latest := watermark
	offset := 0
	keepFetching := true

	for keepFetching {
		envs, err := s.client.Call(ctx, []ubi.Request{ubi.TransactionsHistoryRequest(pageSize, offset)}, headers)
		if err != nil {
			return nil, err
		}
		trades := pageTrades(envs[0])
		if len(trades) == 0 {
			break
		}

		if offset == 0 {
			// Newest trade overall; candidate for the new watermark.
			first := trades[0].LastModifiedAt.UnixMilli()
			if first > latest {
				latest = first
			}
		}

		for _, trade := range trades {
			if watermark != 0 && trade.LastModifiedAt.UnixMilli() <= watermark {
				// Incremental boundary: the rest of this page is older.
				keepFetching = false
				break
			}
			newTrades = append(newTrades, trade)
		}

		if len(trades) < pageSize {
			keepFetching = false
		}
		offset += pageSize
	}

	if len(newTrades) == 0 {
		return nil, nil
	}

	// Apply oldest first so multiple trades on one item resolve to the most
	// recent one.
	sort.Slice(newTrades, func(i, j int) bool {
		return newTrades[i].LastModifiedAt.Before(newTrades[j].LastModifiedAt)
	})

	records, err := s.store.PersonalRecords()
	if err != nil {
		return nil, err
	}

	changed := make(map[string]struct{})
	for _, trade := range newTrades {
		if trade.State != ubi.TradeSucceeded {
			continue
		}
		itemID := tradeItemID(trade)
		if itemID == "" {
			continue
		}

		record := records[itemID]
		record.ItemID = itemID

		switch trade.Category {
		case ubi.CategoryBuy:
			record.BuyPrice = nil
			if trade.Payment != nil {
				price := trade.Payment.Price
				record.BuyPrice = &price
			}
			date := trade.LastModifiedAt
			record.BuyDate = &date
			record.SellPrice = nil
			record.SellDate = nil
		case ubi.CategorySell:
			record.SellPrice = nil
			if trade.Payment != nil {
				net := int(math.Round(float64(trade.Payment.Price) * (1 - sellFee)))
				record.SellPrice = &net
			}
			date := trade.LastModifiedAt
			record.SellDate = &date
			record.BuyPrice = nil
			record.BuyDate = nil
		}

		records[itemID] = record
		changed[itemID] = struct{}{}
	}

	updated := make([]models.PersonalRecord, 0, len(changed))
	changedIDs := make([]string, 0, len(changed))
	for id := range changed {
		updated = append(updated, records[id])
		changedIDs = append(changedIDs, id)
	}
	sort.Strings(changedIDs)

	if err := s.store.UpsertPersonalRecords(updated); err != nil {
		return nil, err
	}
	if err := s.store.SetWatermark(latest); err != nil {
		return nil, err
	}

	log.Printf("[SYNC] applied %d new trades across %d items, watermark=%d", len(newTrades), len(changedIDs), latest)
	return changedIDs, nil
}

func pageTrades(env ubi.Envelope) []ubi.Trade {
	if env.Data == nil || env.Data.Game == nil || env.Data.Game.Viewer == nil {
		return nil
	}
	trades := env.Data.Game.Viewer.Meta.Trades
	if trades == nil {
		return nil
	}
	return trades.Nodes
}

func tradeItemID(trade ubi.Trade) string {
	if len(trade.TradeItems) == 0 {
		return ""
	}
	return trade.TradeItems[0].Item.ItemID
}
