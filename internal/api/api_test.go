package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"r6market/internal/models"
	"r6market/internal/services/alerts"
	"r6market/internal/services/refresher"
	"r6market/internal/services/tradesync"
	"r6market/internal/services/ubi"
	"r6market/internal/store"
	"r6market/internal/ws"

	"github.com/gin-gonic/gin"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// testRouter wires the full route tree against the database named by
// TEST_DATABASE_URL; tests are skipped when the variable is unset.
func testRouter(t *testing.T) (*gin.Engine, *store.Store) {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set; skipping API tests")
	}
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("opening test database: %v", err)
	}
	if err := db.AutoMigrate(
		&models.MarketRecord{},
		&models.PersonalRecord{},
		&models.Favorite{},
		&models.PriceAlert{},
		&models.OwnedItem{},
		&models.AppState{},
	); err != nil {
		t.Fatalf("migrating test database: %v", err)
	}
	for _, model := range []interface{}{
		&models.MarketRecord{}, &models.PersonalRecord{}, &models.Favorite{},
		&models.PriceAlert{}, &models.OwnedItem{}, &models.AppState{},
	} {
		if err := db.Where("1 = 1").Delete(model).Error; err != nil {
			t.Fatalf("cleaning test database: %v", err)
		}
	}

	st := store.New(db)
	client := ubi.NewClient("http://127.0.0.1:1/graphql") // never reached by these tests
	syncer := tradesync.New(st, client)
	rf := refresher.New(st, client, syncer)
	hub := ws.NewHub()
	go hub.Run()
	evaluator := alerts.New(st, client, hub)

	gin.SetMode(gin.TestMode)
	r := gin.New()
	SetupRoutes(r.Group("/api/v1"), st, rf, evaluator, hub)
	return r, st
}

func doJSON(t *testing.T, r *gin.Engine, method, path, body string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var parsed map[string]interface{}
	if w.Body.Len() > 0 {
		if err := json.Unmarshal(w.Body.Bytes(), &parsed); err != nil {
			t.Fatalf("%s %s: response is not JSON: %v", method, path, err)
		}
	}
	return w, parsed
}

func TestToggleFavoriteSymmetry(t *testing.T) {
	r, _ := testRouter(t)

	w, body := doJSON(t, r, http.MethodPost, "/api/v1/favorites/toggle", `{"itemId":"item-1"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %v", w.Code, body)
	}
	if body["isFavorite"] != true {
		t.Errorf("first toggle must favorite, got %v", body)
	}

	w, body = doJSON(t, r, http.MethodPost, "/api/v1/favorites/toggle", `{"itemId":"item-1"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %v", w.Code, body)
	}
	if body["isFavorite"] != false {
		t.Errorf("second toggle must unfavorite, got %v", body)
	}
}

func TestToggleFavoriteErrorShape(t *testing.T) {
	r, _ := testRouter(t)

	w, body := doJSON(t, r, http.MethodPost, "/api/v1/favorites/toggle", `{}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	if _, ok := body["error"]; !ok {
		t.Errorf("failures must carry an error field, got %v", body)
	}
}

func TestSettingsRoundTrip(t *testing.T) {
	r, _ := testRouter(t)

	w, body := doJSON(t, r, http.MethodGet, "/api/v1/settings", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if body["popupMode"] != "extended" {
		t.Errorf("expected default settings, got %v", body)
	}

	payload := `{"useOverlay":false,"overlayMode":"simple","useFavorites":true,` +
		`"showFavoritesTab":true,"showOwnedTab":true,"popupMode":"extended",` +
		`"popupLinkAction":"navigate","usePriceAlerts":false,"alertInterval":5,` +
		`"sort":{"sortBy":"spread","sortDir":"asc"}}`
	w, _ = doJSON(t, r, http.MethodPut, "/api/v1/settings", payload)
	if w.Code != http.StatusOK {
		t.Fatalf("saving settings: expected 200, got %d", w.Code)
	}

	_, body = doJSON(t, r, http.MethodGet, "/api/v1/settings", "")
	if body["useOverlay"] != false || body["overlayMode"] != "simple" {
		t.Errorf("saved settings lost: %v", body)
	}
}

func TestAlertLifecycle(t *testing.T) {
	r, _ := testRouter(t)

	w, body := doJSON(t, r, http.MethodPut, "/api/v1/alerts/item-1",
		`{"type":"sell","condition":"below","price":500}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %v", w.Code, body)
	}

	w, body = doJSON(t, r, http.MethodPut, "/api/v1/alerts/item-2",
		`{"type":"hold","condition":"below","price":500}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("invalid type must be rejected, got %d", w.Code)
	}
	if _, ok := body["error"]; !ok {
		t.Errorf("failures must carry an error field, got %v", body)
	}

	_, body = doJSON(t, r, http.MethodGet, "/api/v1/alerts", "")
	list, ok := body["alerts"].([]interface{})
	if !ok || len(list) != 1 {
		t.Fatalf("expected one stored alert, got %v", body)
	}

	w, _ = doJSON(t, r, http.MethodDelete, "/api/v1/alerts/item-1", "")
	if w.Code != http.StatusOK {
		t.Fatalf("delete: expected 200, got %d", w.Code)
	}
	_, body = doJSON(t, r, http.MethodGet, "/api/v1/alerts", "")
	if list, _ := body["alerts"].([]interface{}); len(list) != 0 {
		t.Errorf("expected no alerts after delete, got %v", body)
	}
}

func TestRefreshWithoutCredentials(t *testing.T) {
	r, _ := testRouter(t)

	w, body := doJSON(t, r, http.MethodPost, "/api/v1/refresh/favorites", "")
	if w.Code != http.StatusPreconditionFailed {
		t.Fatalf("expected 412 without credentials, got %d: %v", w.Code, body)
	}
	if _, ok := body["error"]; !ok {
		t.Errorf("failures must carry an error field, got %v", body)
	}

	// A failed run must release the flag for the next one.
	w, _ = doJSON(t, r, http.MethodPost, "/api/v1/refresh/favorites", "")
	if w.Code != http.StatusPreconditionFailed {
		t.Errorf("second attempt should fail the same way, got %d", w.Code)
	}
}

func TestStateSnapshot(t *testing.T) {
	r, st := testRouter(t)
	if _, err := st.ToggleFavorite("item-1"); err != nil {
		t.Fatalf("seeding favorite: %v", err)
	}

	w, body := doJSON(t, r, http.MethodGet, "/api/v1/state", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if body["hasCredentials"] != false {
		t.Errorf("expected no credentials, got %v", body["hasCredentials"])
	}
	favorites, ok := body["favorites"].([]interface{})
	if !ok || len(favorites) != 1 {
		t.Errorf("expected one favorite in the snapshot, got %v", body["favorites"])
	}
	if body["isUpdating"] != false || body["isDashboardUpdating"] != false {
		t.Errorf("expected idle flags, got %v", body)
	}
}
