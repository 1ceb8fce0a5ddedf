package dashboard

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mveloso/campo/internal/db"
	"github.com/mveloso/campo/internal/models"
	"github.com/mveloso/campo/internal/progress"
	"github.com/mveloso/campo/internal/reconcile"
	"gorm.io/gorm"
)

func setupRouter(t *testing.T) (*gin.Engine, *gorm.DB, *progress.Tracker) {
	t.Helper()
	gormDB, err := db.OpenMemory()
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := db.AutoMigrate(gormDB); err != nil {
		t.Fatalf("auto-migrate: %v", err)
	}
	tracker := progress.NewTracker()
	eng, err := reconcile.New(reconcile.Options{DB: gormDB, Reporter: tracker})
	if err != nil {
		t.Fatalf("engine: %v", err)
	}
	router, err := NewRouter(StartOpts{DB: gormDB, Engine: eng, Tracker: tracker})
	if err != nil {
		t.Fatalf("NewRouter: %v", err)
	}
	return router, gormDB, tracker
}

func doJSON(t *testing.T, router *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestNewRouter_Validation(t *testing.T) {
	if _, err := NewRouter(StartOpts{}); err == nil {
		t.Error("expected error without db")
	}
}

func TestSync_WaitRunsSynchronously(t *testing.T) {
	router, gormDB, _ := setupRouter(t)

	payload := `{"ordens":[{"ID":"os-1","OS":"OS-1","STATUS":"INICIAR"}],"caixas":[],"lancas":[],"equipes":[]}`
	w := doJSON(t, router, http.MethodPost, "/api/sync?wait=true", payload)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	var res reconcile.RunResult
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !res.Success || res.Stats.WorkOrders != 1 {
		t.Errorf("result = %+v", res)
	}

	var count int64
	gormDB.Model(&models.WorkOrder{}).Count(&count)
	if count != 1 {
		t.Errorf("work orders = %d, want 1", count)
	}
}

func TestSync_BackgroundRun(t *testing.T) {
	router, _, tracker := setupRouter(t)

	payload := `{"ordens":[{"ID":"os-1","STATUS":"INICIAR"}]}`
	w := doJSON(t, router, http.MethodPost, "/api/sync", payload)
	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	deadline := time.Now().Add(2 * time.Second)
	for tracker.Snapshot().Status != progress.Completed {
		if time.Now().After(deadline) {
			t.Fatalf("run did not complete; progress = %+v", tracker.Snapshot())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestSync_InvalidPayload(t *testing.T) {
	router, _, _ := setupRouter(t)
	w := doJSON(t, router, http.MethodPost, "/api/sync", "{not json")
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestProgress_SnapshotAndReset(t *testing.T) {
	router, _, tracker := setupRouter(t)

	tracker.Start(10, "Importando ordens")
	tracker.Advance("Importando ordens (1/10)")

	w := doJSON(t, router, http.MethodGet, "/api/progress", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var snap progress.Snapshot
	if err := json.Unmarshal(w.Body.Bytes(), &snap); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if snap.Status != progress.Running || snap.Current != 1 || snap.Total != 10 {
		t.Errorf("snapshot = %+v", snap)
	}

	w = doJSON(t, router, http.MethodPost, "/api/progress/reset", "")
	if w.Code != http.StatusOK {
		t.Fatalf("reset status = %d", w.Code)
	}
	if got := tracker.Snapshot(); got.Status != progress.Idle {
		t.Errorf("after reset = %+v", got)
	}
}

func TestSync_ConflictWhileRunning(t *testing.T) {
	router, _, tracker := setupRouter(t)
	tracker.Start(100, "Importando")

	w := doJSON(t, router, http.MethodPost, "/api/sync?wait=true", `{"ordens":[]}`)
	if w.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409", w.Code)
	}
}

func TestOSListAndDetail(t *testing.T) {
	router, gormDB, _ := setupRouter(t)

	os := models.WorkOrder{ID: "os-1", Code: "OS-1", Status: "EM EXECUÇÃO", EntryDate: "01/02/2024"}
	if err := gormDB.Create(&os).Error; err != nil {
		t.Fatalf("seed: %v", err)
	}
	cx := models.Caixa{ID: "cx-1", WorkOrderID: "os-1", Status: models.UnitStatusOK}
	if err := gormDB.Create(&cx).Error; err != nil {
		t.Fatalf("seed caixa: %v", err)
	}

	w := doJSON(t, router, http.MethodGet, "/api/os", "")
	if w.Code != http.StatusOK {
		t.Fatalf("list status = %d", w.Code)
	}
	var list []map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &list); err != nil {
		t.Fatalf("unmarshal list: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("list len = %d, want 1", len(list))
	}

	w = doJSON(t, router, http.MethodGet, "/api/os/os-1", "")
	if w.Code != http.StatusOK {
		t.Fatalf("detail status = %d", w.Code)
	}
	var detail struct {
		Badge struct {
			Label    string `json:"label"`
			Severity string `json:"severity"`
		} `json:"badge"`
		Aggregates struct {
			CaixaDone int `json:"caixaDone"`
		} `json:"aggregates"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &detail); err != nil {
		t.Fatalf("unmarshal detail: %v", err)
	}
	if detail.Badge.Label != "Em execução" || detail.Badge.Severity != "warning" {
		t.Errorf("badge = %+v", detail.Badge)
	}
	if detail.Aggregates.CaixaDone != 1 {
		t.Errorf("caixaDone = %d, want 1", detail.Aggregates.CaixaDone)
	}

	w = doJSON(t, router, http.MethodGet, "/api/os/os-missing", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("missing detail status = %d, want 404", w.Code)
	}
}

func TestNotificationEndpoints(t *testing.T) {
	router, gormDB, _ := setupRouter(t)

	seed := []models.Notification{
		{ID: "n-1", Type: "nova_os", Title: "Nova OS disponível", CrewID: "eq-1", WorkOrderID: "os-1"},
		{ID: "n-2", Type: "nova_os", Title: "Nova OS disponível", CrewID: "eq-2", WorkOrderID: "os-1"},
		{ID: "n-3", Type: "nova_os", Title: "Nova OS disponível", CrewID: "eq-1", WorkOrderID: "os-2", Archived: true},
	}
	for i := range seed {
		if err := gormDB.Create(&seed[i]).Error; err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	w := doJSON(t, router, http.MethodGet, "/api/notifications?crew=eq-1", "")
	if w.Code != http.StatusOK {
		t.Fatalf("list status = %d", w.Code)
	}
	var list []models.Notification
	if err := json.Unmarshal(w.Body.Bytes(), &list); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(list) != 1 || list[0].ID != "n-1" {
		t.Errorf("visible notifications for eq-1 = %+v", list)
	}

	w = doJSON(t, router, http.MethodPost, "/api/notifications/n-1/read", "")
	if w.Code != http.StatusOK {
		t.Fatalf("read status = %d", w.Code)
	}
	var n models.Notification
	if err := gormDB.First(&n, "id = ?", "n-1").Error; err != nil {
		t.Fatalf("load n-1: %v", err)
	}
	if !n.Read {
		t.Error("n-1 not marked read")
	}

	w = doJSON(t, router, http.MethodPost, "/api/notifications/n-2/archive", "")
	if w.Code != http.StatusOK {
		t.Fatalf("archive status = %d", w.Code)
	}

	w = doJSON(t, router, http.MethodPost, "/api/notifications/n-missing/read", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("missing notification status = %d, want 404", w.Code)
	}
}
