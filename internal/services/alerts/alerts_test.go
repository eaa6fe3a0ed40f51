package alerts

import (
	"context"
	"fmt"
	"testing"

	"r6market/internal/models"
	"r6market/internal/services/ubi"
)

func intPtr(v int) *int { return &v }

type fakeStore struct {
	headers  map[string]string
	disabled bool
	alerts   []models.PriceAlert
	deleted  []string
}

func (f *fakeStore) Credentials() (map[string]string, error) { return f.headers, nil }
func (f *fakeStore) Alerts() ([]models.PriceAlert, error)    { return f.alerts, nil }

func (f *fakeStore) Settings() (models.Settings, error) {
	settings := models.DefaultSettings()
	settings.UsePriceAlerts = !f.disabled
	return settings, nil
}
func (f *fakeStore) DeleteAlert(itemID string) error {
	f.deleted = append(f.deleted, itemID)
	return nil
}

type fakeClient struct {
	prices map[string]ubi.MarketData
	calls  int
}

func (f *fakeClient) Call(ctx context.Context, reqs []ubi.Request, headers map[string]string) ([]ubi.Envelope, error) {
	f.calls++
	envs := make([]ubi.Envelope, len(reqs))
	for i, req := range reqs {
		id := req.Variables["itemId"].(string)
		md, ok := f.prices[id]
		if !ok {
			return nil, fmt.Errorf("unknown item %s", id)
		}
		envs[i] = ubi.Envelope{
			Data: &ubi.Data{
				Game: &ubi.Game{
					MarketableItem: &ubi.MarketableItem{
						Item:       ubi.Item{ItemID: id, Name: "item " + id},
						MarketData: md,
					},
				},
			},
		}
	}
	return envs, nil
}

type fakeNotifier struct {
	fired []Notification
}

func (f *fakeNotifier) Notify(v interface{}) {
	f.fired = append(f.fired, v.(Notification))
}

func sellAt(price int) ubi.MarketData {
	return ubi.MarketData{SellStats: []ubi.SellStats{{LowestPrice: intPtr(price)}}}
}

func buyAt(price int) ubi.MarketData {
	return ubi.MarketData{BuyStats: []ubi.BuyStats{{HighestPrice: intPtr(price)}}}
}

func TestCheckOnceFiresBelowAlert(t *testing.T) {
	st := &fakeStore{
		headers: map[string]string{"authorization": "ubi_v1 t=abc"},
		alerts: []models.PriceAlert{
			{ItemID: "cheap", Type: TypeSell, Condition: ConditionBelow, Price: 500},
			{ItemID: "steady", Type: TypeSell, Condition: ConditionBelow, Price: 500},
		},
	}
	client := &fakeClient{prices: map[string]ubi.MarketData{
		"cheap":  sellAt(500), // at the threshold counts as tripped
		"steady": sellAt(501),
	}}
	notifier := &fakeNotifier{}

	if err := New(st, client, notifier).CheckOnce(context.Background()); err != nil {
		t.Fatalf("check failed: %v", err)
	}
	if len(notifier.fired) != 1 {
		t.Fatalf("expected 1 notification, got %d", len(notifier.fired))
	}
	n := notifier.fired[0]
	if n.ItemID != "cheap" || n.Price != 500 || n.Threshold != 500 {
		t.Errorf("unexpected notification %+v", n)
	}
	if len(st.deleted) != 1 || st.deleted[0] != "cheap" {
		t.Errorf("fired alert must be removed, deleted=%v", st.deleted)
	}
}

func TestCheckOnceFiresAboveAlertOnBuySide(t *testing.T) {
	st := &fakeStore{
		headers: map[string]string{"authorization": "ubi_v1 t=abc"},
		alerts: []models.PriceAlert{
			{ItemID: "hot", Type: TypeBuy, Condition: ConditionAbove, Price: 900},
		},
	}
	client := &fakeClient{prices: map[string]ubi.MarketData{
		"hot": buyAt(950),
	}}
	notifier := &fakeNotifier{}

	if err := New(st, client, notifier).CheckOnce(context.Background()); err != nil {
		t.Fatalf("check failed: %v", err)
	}
	if len(notifier.fired) != 1 {
		t.Fatalf("expected 1 notification, got %d", len(notifier.fired))
	}
	if notifier.fired[0].Price != 950 {
		t.Errorf("expected observed price 950, got %d", notifier.fired[0].Price)
	}
}

func TestCheckOnceSkipsItemsWithoutPrice(t *testing.T) {
	st := &fakeStore{
		headers: map[string]string{"authorization": "ubi_v1 t=abc"},
		alerts: []models.PriceAlert{
			{ItemID: "empty", Type: TypeSell, Condition: ConditionBelow, Price: 500},
		},
	}
	client := &fakeClient{prices: map[string]ubi.MarketData{
		"empty": {}, // no listings on either side
	}}
	notifier := &fakeNotifier{}

	if err := New(st, client, notifier).CheckOnce(context.Background()); err != nil {
		t.Fatalf("check failed: %v", err)
	}
	if len(notifier.fired) != 0 {
		t.Error("an item without a watched price must not fire")
	}
	if len(st.deleted) != 0 {
		t.Error("a skipped alert must stay armed")
	}
}

func TestCheckOnceNoopWithoutCredentialsOrAlerts(t *testing.T) {
	client := &fakeClient{}
	notifier := &fakeNotifier{}

	st := &fakeStore{headers: nil, alerts: []models.PriceAlert{{ItemID: "x", Type: TypeSell, Condition: ConditionBelow, Price: 1}}}
	if err := New(st, client, notifier).CheckOnce(context.Background()); err != nil {
		t.Fatalf("check failed: %v", err)
	}
	if client.calls != 0 {
		t.Error("no calls expected without credentials")
	}

	st = &fakeStore{headers: map[string]string{"authorization": "x"}}
	if err := New(st, client, notifier).CheckOnce(context.Background()); err != nil {
		t.Fatalf("check failed: %v", err)
	}
	if client.calls != 0 {
		t.Error("no calls expected without alerts")
	}
}

func TestCheckOnceNoopWhenAlertsDisabled(t *testing.T) {
	st := &fakeStore{
		headers:  map[string]string{"authorization": "ubi_v1 t=abc"},
		disabled: true,
		alerts: []models.PriceAlert{
			{ItemID: "cheap", Type: TypeSell, Condition: ConditionBelow, Price: 500},
		},
	}
	client := &fakeClient{prices: map[string]ubi.MarketData{"cheap": sellAt(100)}}
	notifier := &fakeNotifier{}

	if err := New(st, client, notifier).CheckOnce(context.Background()); err != nil {
		t.Fatalf("check failed: %v", err)
	}
	if client.calls != 0 {
		t.Error("no calls expected while alerts are disabled")
	}
	if len(notifier.fired) != 0 || len(st.deleted) != 0 {
		t.Error("disabled alerts must stay armed and silent")
	}
}

func TestResetFollowsSettings(t *testing.T) {
	st := &fakeStore{}
	e := New(st, &fakeClient{}, &fakeNotifier{})

	e.Reset(models.Settings{UsePriceAlerts: true, AlertInterval: 5})
	e.mu.Lock()
	running := e.running
	e.mu.Unlock()
	if !running {
		t.Error("enabling alerts must start the checker")
	}

	e.Reset(models.Settings{UsePriceAlerts: false})
	e.mu.Lock()
	running = e.running
	e.mu.Unlock()
	if running {
		t.Error("disabling alerts must stop the checker")
	}
}
