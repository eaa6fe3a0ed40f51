// Package refresher drives the two top-level refresh flows: favorites
// market data and the owned-items dashboard view.
package refresher

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"r6market/internal/models"
	"r6market/internal/services/analyzer"
	"r6market/internal/services/ubi"
	"r6market/internal/store"
)

const (
	marketBatchSize   = 10
	apiCallDelay      = 2 * time.Second
	sellablePageSize  = 50
	sellableItemLimit = 100
)

var (
	ErrAlreadyRunning = errors.New("refresh already in progress")
	ErrNoCredentials  = errors.New("no captured credentials")
)

// Store is the persisted state the orchestrators read and write.
type Store interface {
	Credentials() (map[string]string, error)
	BeginRefresh(flag string) (bool, error)
	EndRefresh(flag string) error
	SetLastUpdate(t time.Time) error
	SetLastDashboardUpdate(t time.Time) error
	FavoriteIDs() ([]string, error)
	MarketRecords() (map[string]models.MarketRecord, error)
	UpsertMarketRecords(records []models.MarketRecord) error
	PersonalRecords() (map[string]models.PersonalRecord, error)
	ReplaceOwnedItems(items []models.OwnedItem) error
}

type Client interface {
	Call(ctx context.Context, reqs []ubi.Request, headers map[string]string) ([]ubi.Envelope, error)
}

// Synchronizer reconciles trade history before a dashboard refresh.
type Synchronizer interface {
	SyncRecentTransactions(ctx context.Context) ([]string, error)
}

type Refresher struct {
	store  Store
	client Client
	syncer Synchronizer
	now    func() time.Time
	delay  time.Duration
}

func New(st Store, client Client, syncer Synchronizer) *Refresher {
	return &Refresher{
		store:  st,
		client: client,
		syncer: syncer,
		now:    time.Now,
		delay:  apiCallDelay,
	}
}

// RefreshFavorites re-fetches market data for every favorited item. With no
// favorites only the refresh timestamp moves.
func (r *Refresher) RefreshFavorites(ctx context.Context) error {
	ok, err := r.store.BeginRefresh(store.FlagFavorites)
	if err != nil {
		return err
	}
	if !ok {
		return ErrAlreadyRunning
	}
	defer func() {
		if err := r.store.EndRefresh(store.FlagFavorites); err != nil {
			log.Printf("[REFRESH] clearing favorites flag failed: %v", err)
		}
	}()

	headers, err := r.store.Credentials()
	if err != nil {
		return err
	}
	if headers == nil {
		return ErrNoCredentials
	}

	favoriteIDs, err := r.store.FavoriteIDs()
	if err != nil {
		return err
	}
	if len(favoriteIDs) == 0 {
		return r.store.SetLastUpdate(r.now())
	}

	raws := r.fetchAssetsMarketData(ctx, favoriteIDs, headers)
	records := make([]models.MarketRecord, 0, len(raws))
	for _, raw := range raws {
		records = append(records, analyzer.Analyze(raw, r.now()))
	}
	if err := r.store.UpsertMarketRecords(records); err != nil {
		return err
	}
	return r.store.SetLastUpdate(r.now())
}

// RefreshOwned synchronizes trade history, then rebuilds the owned-items
// view from the current sellable listings. Market data is fetched only for
// items missing from the cache.
func (r *Refresher) RefreshOwned(ctx context.Context) error {
	ok, err := r.store.BeginRefresh(store.FlagOwned)
	if err != nil {
		return err
	}
	if !ok {
		return ErrAlreadyRunning
	}
	defer func() {
		if err := r.store.EndRefresh(store.FlagOwned); err != nil {
			log.Printf("[REFRESH] clearing owned flag failed: %v", err)
		}
	}()

	changedIDs, err := r.syncer.SyncRecentTransactions(ctx)
	if err != nil {
		return err
	}

	headers, err := r.store.Credentials()
	if err != nil {
		return err
	}
	if headers == nil {
		return ErrNoCredentials
	}

	sellable := r.getSellableItems(ctx, headers)

	seen := make(map[string]struct{})
	var wanted []string
	for _, node := range sellable {
		if _, ok := seen[node.Item.ItemID]; !ok {
			seen[node.Item.ItemID] = struct{}{}
			wanted = append(wanted, node.Item.ItemID)
		}
	}
	for _, id := range changedIDs {
		if _, ok := seen[id]; !ok {
			seen[id] = struct{}{}
			wanted = append(wanted, id)
		}
	}

	cache, err := r.store.MarketRecords()
	if err != nil {
		return err
	}
	var missing []string
	for _, id := range wanted {
		if _, ok := cache[id]; !ok {
			missing = append(missing, id)
		}
	}

	if len(missing) > 0 {
		raws := r.fetchAssetsMarketData(ctx, missing, headers)
		records := make([]models.MarketRecord, 0, len(raws))
		for id, raw := range raws {
			record := analyzer.Analyze(raw, r.now())
			records = append(records, record)
			cache[id] = record
		}
		if err := r.store.UpsertMarketRecords(records); err != nil {
			return err
		}
	}

	favoriteIDs, err := r.store.FavoriteIDs()
	if err != nil {
		return err
	}
	favorites := make(map[string]struct{}, len(favoriteIDs))
	for _, id := range favoriteIDs {
		favorites[id] = struct{}{}
	}

	personal, err := r.store.PersonalRecords()
	if err != nil {
		return err
	}

	owned := make([]models.OwnedItem, 0, len(sellable))
	for _, node := range sellable {
		id := node.Item.ItemID
		market := cache[id]
		position := personal[id]
		_, isFavorite := favorites[id]

		owned = append(owned, models.OwnedItem{
			ItemID:     id,
			Name:       node.Item.Name,
			AssetURL:   node.Item.AssetURL,
			IsFavorite: isFavorite,
			ItemType:   market.ItemType,

			PrimaryTag: market.PrimaryTag,
			SubTag:     market.SubTag,
			Rarity:     market.Rarity,
			Season:     market.Season,

			CurrentLowestSellPrice: market.CurrentLowestSellPrice,
			CurrentHighestBuyPrice: market.CurrentHighestBuyPrice,
			Spread:                 market.Spread,
			LastSoldAt:             market.LastSoldAt,

			AvgPrice7d:        market.AvgPrice7d,
			AvgLowestPrice7d:  market.AvgLowestPrice7d,
			AvgHighestPrice7d: market.AvgHighestPrice7d,
			ActualLowest7d:    market.ActualLowest7d,
			ActualHighest7d:   market.ActualHighest7d,

			AvgPrice14d:        market.AvgPrice14d,
			AvgLowestPrice14d:  market.AvgLowestPrice14d,
			AvgHighestPrice14d: market.AvgHighestPrice14d,
			ActualLowest14d:    market.ActualLowest14d,
			ActualHighest14d:   market.ActualHighest14d,

			BuyPrice:  position.BuyPrice,
			BuyDate:   position.BuyDate,
			SellPrice: position.SellPrice,
			SellDate:  position.SellDate,

			NetProfitCurrent:   NetProfit(market.CurrentLowestSellPrice, position.BuyPrice),
			ProfitRatioCurrent: ProfitRatio(market.CurrentLowestSellPrice, position.BuyPrice),
			NetProfit7d:        NetProfit(market.AvgPrice7d, position.BuyPrice),
			ProfitRatio7d:      ProfitRatio(market.AvgPrice7d, position.BuyPrice),
			NetProfit14d:       NetProfit(market.AvgPrice14d, position.BuyPrice),
			ProfitRatio14d:     ProfitRatio(market.AvgPrice14d, position.BuyPrice),
		})
	}

	if err := r.store.ReplaceOwnedItems(owned); err != nil {
		return err
	}
	return r.store.SetLastDashboardUpdate(r.now())
}

// FetchSingleItem fetches, analyzes and caches one item on demand (panel
// lookups and the maintenance CLI).
func (r *Refresher) FetchSingleItem(ctx context.Context, itemID string) (*models.MarketRecord, error) {
	if itemID == "" {
		return nil, errors.New("item id was not provided")
	}
	headers, err := r.store.Credentials()
	if err != nil {
		return nil, err
	}
	if headers == nil {
		return nil, ErrNoCredentials
	}

	raws := r.fetchAssetsMarketData(ctx, []string{itemID}, headers)
	raw, ok := raws[itemID]
	if !ok {
		return nil, fmt.Errorf("no market data returned for item %s", itemID)
	}
	record := analyzer.Analyze(raw, r.now())
	if err := r.store.UpsertMarketRecords([]models.MarketRecord{record}); err != nil {
		return nil, err
	}
	return &record, nil
}

// fetchAssetsMarketData collects the raw (price history, details) tuple for
// each id, in batches of 10 with a fixed delay between calls to stay under
// the endpoint's rate limit. A failing batch is skipped; its items keep
// their stale records.
func (r *Refresher) fetchAssetsMarketData(ctx context.Context, itemIDs []string, headers map[string]string) map[string]analyzer.RawItem {
	out := make(map[string]analyzer.RawItem)

	for start := 0; start < len(itemIDs); start += marketBatchSize {
		end := start + marketBatchSize
		if end > len(itemIDs) {
			end = len(itemIDs)
		}
		batch := itemIDs[start:end]

		if err := r.fetchBatch(ctx, batch, headers, out); err != nil {
			log.Printf("[REFRESH] market-data batch failed, keeping stale records: %v", err)
		}

		if end < len(itemIDs) {
			if err := r.sleep(ctx); err != nil {
				break
			}
		}
	}
	return out
}

func (r *Refresher) fetchBatch(ctx context.Context, batch []string, headers map[string]string, out map[string]analyzer.RawItem) error {
	historyReqs := make([]ubi.Request, len(batch))
	for i, id := range batch {
		historyReqs[i] = ubi.ItemPriceHistoryRequest(id)
	}
	historyEnvs, err := r.client.Call(ctx, historyReqs, headers)
	if err != nil {
		return err
	}

	history := make(map[string][]ubi.PricePoint, len(batch))
	for i, id := range batch {
		if node := marketableItem(historyEnvs[i]); node != nil {
			history[id] = node.PriceHistory
		}
	}

	if err := r.sleep(ctx); err != nil {
		return err
	}

	detailReqs := make([]ubi.Request, len(batch))
	for i, id := range batch {
		detailReqs[i] = ubi.ItemDetailsRequest(id)
	}
	detailEnvs, err := r.client.Call(ctx, detailReqs, headers)
	if err != nil {
		return err
	}

	for i, id := range batch {
		node := marketableItem(detailEnvs[i])
		points, hasHistory := history[id]
		if node == nil || !hasHistory {
			continue
		}
		out[id] = analyzer.RawItem{
			PriceHistory: points,
			MarketData:   node.MarketData,
			Item:         node.Item,
		}
	}
	return nil
}

// getSellableItems pages the viewer's active sell listings, up to 100
// items. A page failure returns whatever was collected so far.
func (r *Refresher) getSellableItems(ctx context.Context, headers map[string]string) []ubi.MarketableItem {
	var all []ubi.MarketableItem
	offset := 0

	for len(all) < sellableItemLimit {
		envs, err := r.client.Call(ctx, []ubi.Request{ubi.SellableItemsRequest(sellablePageSize, offset)}, headers)
		if err != nil {
			log.Printf("[REFRESH] sellable-items page failed at offset %d: %v", offset, err)
			break
		}
		nodes := sellableNodes(envs[0])
		if len(nodes) == 0 {
			break
		}
		all = append(all, nodes...)
		if len(nodes) < sellablePageSize {
			break
		}
		offset += sellablePageSize
	}

	if len(all) > sellableItemLimit {
		all = all[:sellableItemLimit]
	}
	return all
}

func (r *Refresher) sleep(ctx context.Context) error {
	if r.delay <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(r.delay):
		return nil
	}
}

func marketableItem(env ubi.Envelope) *ubi.MarketableItem {
	if env.Data == nil || env.Data.Game == nil {
		return nil
	}
	return env.Data.Game.MarketableItem
}

func sellableNodes(env ubi.Envelope) []ubi.MarketableItem {
	if env.Data == nil || env.Data.Game == nil || env.Data.Game.Viewer == nil {
		return nil
	}
	items := env.Data.Game.Viewer.Meta.MarketableItems
	if items == nil {
		return nil
	}
	return items.Nodes
}
