// Package alerts periodically checks price alerts against live market data
// and fires notifications for the ones that trip.
package alerts

import (
	"context"
	"log"
	"sync"
	"time"

	"r6market/internal/models"
	"r6market/internal/services/ubi"
)

// Alert side against the order book.
const (
	TypeSell = "sell"
	TypeBuy  = "buy"
)

// Trigger direction relative to the threshold.
const (
	ConditionBelow = "below"
	ConditionAbove = "above"
)

// Store is the alert, settings and credential state the evaluator reads.
type Store interface {
	Credentials() (map[string]string, error)
	Settings() (models.Settings, error)
	Alerts() ([]models.PriceAlert, error)
	DeleteAlert(itemID string) error
}

type Client interface {
	Call(ctx context.Context, reqs []ubi.Request, headers map[string]string) ([]ubi.Envelope, error)
}

// Notifier delivers a fired alert to the user-facing surfaces.
type Notifier interface {
	Notify(v interface{})
}

// Notification is the payload sent when an alert trips. The alert is
// one-shot: it is removed after firing.
type Notification struct {
	ItemID    string `json:"itemId"`
	Name      string `json:"name"`
	Type      string `json:"type"`
	Condition string `json:"condition"`
	Threshold int    `json:"threshold"`
	Price     int    `json:"price"`
}

type Evaluator struct {
	store    Store
	client   Client
	notifier Notifier

	mu       sync.Mutex
	running  bool
	interval time.Duration
	stopCh   chan struct{}
}

func New(store Store, client Client, notifier Notifier) *Evaluator {
	return &Evaluator{store: store, client: client, notifier: notifier}
}

// Start begins periodic checking. A second Start replaces the previous
// interval.
func (e *Evaluator) Start(interval time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running {
		e.stopLocked()
	}
	if interval <= 0 {
		return
	}
	e.interval = interval
	e.stopCh = make(chan struct{})
	e.running = true
	go e.loop(e.stopCh, interval)
	log.Printf("[ALERTS] checker started, interval=%s", interval)
}

func (e *Evaluator) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stopLocked()
}

func (e *Evaluator) stopLocked() {
	if !e.running {
		return
	}
	close(e.stopCh)
	e.running = false
	log.Println("[ALERTS] checker stopped")
}

// Reset re-arms the ticker from the current settings: stopped when alerts
// are disabled, otherwise restarted at the configured interval.
func (e *Evaluator) Reset(settings models.Settings) {
	if !settings.UsePriceAlerts {
		e.Stop()
		return
	}
	interval := time.Duration(settings.AlertInterval) * time.Minute
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	e.Start(interval)
}

func (e *Evaluator) loop(stopCh chan struct{}, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			if err := e.CheckOnce(context.Background()); err != nil {
				log.Printf("[ALERTS] check failed: %v", err)
			}
		}
	}
}

// CheckOnce evaluates every stored alert against a fresh details snapshot.
// A no-op while the alerts setting is off. Tripped alerts notify and are
// deleted; items with no price on the watched side are skipped.
func (e *Evaluator) CheckOnce(ctx context.Context) error {
	settings, err := e.store.Settings()
	if err != nil {
		return err
	}
	if !settings.UsePriceAlerts {
		return nil
	}

	alerts, err := e.store.Alerts()
	if err != nil {
		return err
	}
	if len(alerts) == 0 {
		return nil
	}

	headers, err := e.store.Credentials()
	if err != nil {
		return err
	}
	if headers == nil {
		// Nothing to check against until a session is captured.
		return nil
	}

	reqs := make([]ubi.Request, len(alerts))
	for i, alert := range alerts {
		reqs[i] = ubi.ItemDetailsRequest(alert.ItemID)
	}
	envs, err := e.client.Call(ctx, reqs, headers)
	if err != nil {
		return err
	}

	for i, alert := range alerts {
		node := detailsNode(envs[i])
		if node == nil {
			continue
		}
		price := watchedPrice(alert, node.MarketData)
		if price == nil {
			continue
		}
		if !tripped(alert, *price) {
			continue
		}
		e.notifier.Notify(Notification{
			ItemID:    alert.ItemID,
			Name:      node.Item.Name,
			Type:      alert.Type,
			Condition: alert.Condition,
			Threshold: alert.Price,
			Price:     *price,
		})
		if err := e.store.DeleteAlert(alert.ItemID); err != nil {
			log.Printf("[ALERTS] removing fired alert %s failed: %v", alert.ItemID, err)
		}
	}
	return nil
}

func watchedPrice(alert models.PriceAlert, md ubi.MarketData) *int {
	switch alert.Type {
	case TypeBuy:
		if len(md.BuyStats) == 0 {
			return nil
		}
		return md.BuyStats[0].HighestPrice
	default:
		if len(md.SellStats) == 0 {
			return nil
		}
		return md.SellStats[0].LowestPrice
	}
}

func tripped(alert models.PriceAlert, price int) bool {
	if alert.Condition == ConditionAbove {
		return price >= alert.Price
	}
	return price <= alert.Price
}

func detailsNode(env ubi.Envelope) *ubi.MarketableItem {
	if env.Data == nil || env.Data.Game == nil {
		return nil
	}
	return env.Data.Game.MarketableItem
}
