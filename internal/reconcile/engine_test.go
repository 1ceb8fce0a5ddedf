package reconcile

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/mveloso/campo/internal/db"
	"github.com/mveloso/campo/internal/models"
	"github.com/mveloso/campo/internal/notify"
	"github.com/mveloso/campo/internal/progress"
	"github.com/mveloso/campo/internal/sheet"
	"gorm.io/gorm"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	gormDB, err := db.OpenMemory()
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := db.AutoMigrate(gormDB); err != nil {
		t.Fatalf("auto-migrate: %v", err)
	}
	return gormDB
}

func newTestEngine(t *testing.T, gormDB *gorm.DB) *Engine {
	t.Helper()
	eng, err := New(Options{DB: gormDB})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return eng
}

func basicSheets() sheet.Sheets {
	return sheet.Sheets{
		WorkOrders: []sheet.Row{
			{"ID": "os-1", "OS": "OS-1", "STATUS": "INICIAR", "LOCALIDADE": "Setor Norte", "VALOR": float64(1200)},
			{"ID": "os-2", "OS": "OS-2", "STATUS": "EM EXECUÇÃO"},
		},
		Caixas: []sheet.Row{
			{"ID": "cx-1", "ID OS": "os-1", "CAIXA": "CX-01", "STATUS": ""},
			{"ID OS": "os-1", "CAIXA": "CX-02"},
		},
		Lancas: []sheet.Row{
			{"ID OS": "os-2", "DE": "P-1", "PARA": "P-2", "METRAGEM": float64(100)},
		},
		Crews: []sheet.Row{
			{"ID": "eq-1", "EQUIPE": "Equipe Alfa", "PERFIL": "admin"},
			{"ID": "eq-2", "EQUIPE": "Equipe Beta"},
		},
	}
}

func TestReconcile_InsertsAll(t *testing.T) {
	gormDB := openTestDB(t)
	eng := newTestEngine(t, gormDB)

	res, err := eng.Reconcile(context.Background(), basicSheets())
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if !res.Success {
		t.Fatalf("Success = false: %s", res.Message)
	}
	want := Stats{WorkOrders: 2, Caixas: 2, Lancas: 1, Crews: 2}
	if res.Stats != want {
		t.Errorf("Stats = %+v, want %+v", res.Stats, want)
	}

	var os models.WorkOrder
	if err := gormDB.First(&os, "id = ?", "os-1").Error; err != nil {
		t.Fatalf("load os-1: %v", err)
	}
	if os.Value != 1200 || os.Location != "Setor Norte" {
		t.Errorf("os-1 = %+v", os)
	}

	var crew models.Crew
	if err := gormDB.First(&crew, "id = ?", "eq-1").Error; err != nil {
		t.Fatalf("load eq-1: %v", err)
	}
	if crew.Login != "equipe.alfa" {
		t.Errorf("generated login = %q, want equipe.alfa", crew.Login)
	}
	if crew.PasswordHash == "" {
		t.Error("new crew is missing the default credential")
	}
	if !crew.Active {
		t.Error("new crew should be active")
	}
}

func TestReconcile_Idempotent(t *testing.T) {
	gormDB := openTestDB(t)
	eng := newTestEngine(t, gormDB)
	sheets := basicSheets()

	if _, err := eng.Reconcile(context.Background(), sheets); err != nil {
		t.Fatalf("first run: %v", err)
	}

	var before []models.Caixa
	if err := gormDB.Order("id ASC").Find(&before).Error; err != nil {
		t.Fatalf("load caixas: %v", err)
	}
	var osBefore models.WorkOrder
	if err := gormDB.First(&osBefore, "id = ?", "os-1").Error; err != nil {
		t.Fatalf("load os-1: %v", err)
	}

	time.Sleep(10 * time.Millisecond)
	if _, err := eng.Reconcile(context.Background(), sheets); err != nil {
		t.Fatalf("second run: %v", err)
	}

	var caixaCount int64
	gormDB.Model(&models.Caixa{}).Count(&caixaCount)
	if caixaCount != int64(len(before)) {
		t.Errorf("caixa count after rerun = %d, want %d", caixaCount, len(before))
	}

	var osAfter models.WorkOrder
	if err := gormDB.First(&osAfter, "id = ?", "os-1").Error; err != nil {
		t.Fatalf("reload os-1: %v", err)
	}
	if !osAfter.UpdatedAt.Equal(osBefore.UpdatedAt) {
		t.Errorf("UpdatedAt moved on unchanged rerun: %v -> %v", osBefore.UpdatedAt, osAfter.UpdatedAt)
	}
}

func TestReconcile_PreservesFieldCollectedState(t *testing.T) {
	gormDB := openTestDB(t)
	eng := newTestEngine(t, gormDB)
	sheets := basicSheets()

	if _, err := eng.Reconcile(context.Background(), sheets); err != nil {
		t.Fatalf("first run: %v", err)
	}

	// Technician marks cx-1 done in the field.
	if err := gormDB.Model(&models.Caixa{}).Where("id = ?", "cx-1").Updates(map[string]any{
		"status":    models.UnitStatusOK,
		"note":      "field note",
		"crew_id":   "eq-2",
		"crew_name": "Equipe Beta",
	}).Error; err != nil {
		t.Fatalf("mark caixa: %v", err)
	}

	// Re-import with the same blank status cell.
	if _, err := eng.Reconcile(context.Background(), sheets); err != nil {
		t.Fatalf("second run: %v", err)
	}

	var cx models.Caixa
	if err := gormDB.First(&cx, "id = ?", "cx-1").Error; err != nil {
		t.Fatalf("load cx-1: %v", err)
	}
	if cx.Status != models.UnitStatusOK || cx.Note != "field note" || cx.CrewID != "eq-2" {
		t.Errorf("field state clobbered: %+v", cx)
	}

	// An explicit contradicting status overwrites.
	sheets.Caixas[0]["STATUS"] = models.UnitStatusNOK
	if _, err := eng.Reconcile(context.Background(), sheets); err != nil {
		t.Fatalf("third run: %v", err)
	}
	if err := gormDB.First(&cx, "id = ?", "cx-1").Error; err != nil {
		t.Fatalf("reload cx-1: %v", err)
	}
	if cx.Status != models.UnitStatusNOK {
		t.Errorf("Status = %q, want explicit NOK to win", cx.Status)
	}
}

func TestReconcile_PromotesWorkedOrders(t *testing.T) {
	gormDB := openTestDB(t)
	eng := newTestEngine(t, gormDB)

	sheets := sheet.Sheets{
		WorkOrders: []sheet.Row{
			{"ID": "os-1", "STATUS": "INICIAR"},
			{"ID": "os-2", "STATUS": "CONCLUÍDO"},
		},
		Caixas: []sheet.Row{
			{"ID": "cx-1", "ID OS": "os-1", "STATUS": "OK"},
			{"ID": "cx-2", "ID OS": "os-2", "STATUS": "OK"},
		},
	}
	if _, err := eng.Reconcile(context.Background(), sheets); err != nil {
		t.Fatalf("Reconcile: %v", err)
	}

	var os1, os2 models.WorkOrder
	if err := gormDB.First(&os1, "id = ?", "os-1").Error; err != nil {
		t.Fatalf("load os-1: %v", err)
	}
	if os1.Status != models.OSStatusEmExecucao {
		t.Errorf("os-1 status = %q, want Em execução", os1.Status)
	}
	if err := gormDB.First(&os2, "id = ?", "os-2").Error; err != nil {
		t.Fatalf("load os-2: %v", err)
	}
	if os2.Status != "CONCLUÍDO" {
		t.Errorf("os-2 status = %q, terminal order must not be demoted", os2.Status)
	}
}

func TestReconcile_SkipsKeylessRows(t *testing.T) {
	gormDB := openTestDB(t)
	eng := newTestEngine(t, gormDB)

	sheets := sheet.Sheets{
		WorkOrders: []sheet.Row{
			{"STATUS": "INICIAR"}, // no key, skipped silently
			{"ID": "os-1", "STATUS": "INICIAR"},
		},
		Caixas: []sheet.Row{
			{"CAIXA": "CX-01"}, // no work order, skipped
		},
	}
	res, err := eng.Reconcile(context.Background(), sheets)
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if res.Stats.WorkOrders != 1 || res.Stats.Caixas != 0 {
		t.Errorf("Stats = %+v, want 1 work order and 0 caixas", res.Stats)
	}
}

func TestReconcile_ProgressAccounting(t *testing.T) {
	gormDB := openTestDB(t)
	tracker := progress.NewTracker()
	eng, err := New(Options{DB: gormDB, Reporter: tracker})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	sheets := basicSheets()
	if _, err := eng.Reconcile(context.Background(), sheets); err != nil {
		t.Fatalf("Reconcile: %v", err)
	}

	snap := tracker.Snapshot()
	if snap.Status != progress.Completed {
		t.Errorf("status = %s, want COMPLETED", snap.Status)
	}
	if snap.Total != sheets.TotalRows() || snap.Current != snap.Total {
		t.Errorf("counters = %d/%d, want %d/%d", snap.Current, snap.Total, sheets.TotalRows(), sheets.TotalRows())
	}
	if !strings.Contains(snap.Message, "Importação concluída") {
		t.Errorf("final message = %q", snap.Message)
	}
}

func TestReconcile_SingleFlight(t *testing.T) {
	gormDB := openTestDB(t)
	eng := newTestEngine(t, gormDB)

	// Hold the gate as a run in flight would.
	eng.gate.Lock()
	var wg sync.WaitGroup
	wg.Add(1)
	var runErr error
	go func() {
		defer wg.Done()
		_, runErr = eng.Reconcile(context.Background(), basicSheets())
	}()
	wg.Wait()
	eng.gate.Unlock()

	if !errors.Is(runErr, ErrRunInFlight) {
		t.Errorf("concurrent run error = %v, want ErrRunInFlight", runErr)
	}

	// After release the engine is usable again.
	if _, err := eng.Reconcile(context.Background(), basicSheets()); err != nil {
		t.Fatalf("run after release: %v", err)
	}
}

func TestReconcile_CrewLoginCollision(t *testing.T) {
	gormDB := openTestDB(t)
	eng := newTestEngine(t, gormDB)

	sheets := sheet.Sheets{Crews: []sheet.Row{
		{"ID": "eq-1", "EQUIPE": "Equipe Alfa"},
		{"ID": "eq-2", "EQUIPE": "Equipe Alfa"},
	}}
	if _, err := eng.Reconcile(context.Background(), sheets); err != nil {
		t.Fatalf("Reconcile: %v", err)
	}

	var crews []models.Crew
	if err := gormDB.Order("id ASC").Find(&crews).Error; err != nil {
		t.Fatalf("load crews: %v", err)
	}
	if len(crews) != 2 {
		t.Fatalf("crews = %d, want 2", len(crews))
	}
	if crews[0].Login == crews[1].Login {
		t.Errorf("logins collide: %q", crews[0].Login)
	}
	if !strings.HasPrefix(crews[1].Login, "equipe.alfa") {
		t.Errorf("second login = %q, want equipe.alfa prefix", crews[1].Login)
	}
}

func TestReconcile_CrewRefreshKeepsCredentials(t *testing.T) {
	gormDB := openTestDB(t)
	eng := newTestEngine(t, gormDB)

	sheets := sheet.Sheets{Crews: []sheet.Row{{"ID": "eq-1", "EQUIPE": "Equipe Alfa", "REGIAO": "Norte"}}}
	if _, err := eng.Reconcile(context.Background(), sheets); err != nil {
		t.Fatalf("first run: %v", err)
	}

	if err := gormDB.Model(&models.Crew{}).Where("id = ?", "eq-1").
		Update("password_hash", "custom-hash").Error; err != nil {
		t.Fatalf("set custom credential: %v", err)
	}

	sheets.Crews[0]["REGIAO"] = "Sul"
	if _, err := eng.Reconcile(context.Background(), sheets); err != nil {
		t.Fatalf("second run: %v", err)
	}

	var crew models.Crew
	if err := gormDB.First(&crew, "id = ?", "eq-1").Error; err != nil {
		t.Fatalf("load crew: %v", err)
	}
	if crew.Region != "Sul" {
		t.Errorf("Region = %q, want refreshed Sul", crew.Region)
	}
	if crew.PasswordHash != "custom-hash" {
		t.Errorf("PasswordHash = %q, importer must not touch credentials", crew.PasswordHash)
	}
}

func TestReconcile_RunsFanOutPostStep(t *testing.T) {
	gormDB := openTestDB(t)
	eng, err := New(Options{DB: gormDB, Notifier: notify.New()})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	sheets := sheet.Sheets{
		WorkOrders: []sheet.Row{{"ID": "os-1", "STATUS": "INICIAR"}},
		Crews:      []sheet.Row{{"ID": "eq-1", "EQUIPE": "Alfa", "PERFIL": "admin"}},
	}
	if _, err := eng.Reconcile(context.Background(), sheets); err != nil {
		t.Fatalf("Reconcile: %v", err)
	}

	var count int64
	gormDB.Model(&models.Notification{}).Where("work_order_id = ?", "os-1").Count(&count)
	if count != 1 {
		t.Errorf("notifications for os-1 = %d, want 1", count)
	}
}

func TestReconcile_DebounceSkipsFanOut(t *testing.T) {
	gormDB := openTestDB(t)
	eng, err := New(Options{DB: gormDB, Notifier: notify.New(), Debounce: time.Hour})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	first := sheet.Sheets{
		WorkOrders: []sheet.Row{{"ID": "os-1", "STATUS": "INICIAR"}},
		Crews:      []sheet.Row{{"ID": "eq-1", "EQUIPE": "Alfa"}},
	}
	if _, err := eng.Reconcile(context.Background(), first); err != nil {
		t.Fatalf("first run: %v", err)
	}

	// A stale read notification seeded between runs must still be purged
	// by the debounced run: only the fan-out is debounced, not cleanup.
	stale := models.Notification{
		ID:     "stale-1",
		Type:   models.NotificationNovaOS,
		CrewID: "eq-1",
		Read:   true,
	}
	if err := gormDB.Create(&stale).Error; err != nil {
		t.Fatalf("seed stale notification: %v", err)
	}
	if err := gormDB.Model(&models.Notification{}).Where("id = ?", "stale-1").
		Update("created_at", time.Now().AddDate(0, 0, -30)).Error; err != nil {
		t.Fatalf("age stale notification: %v", err)
	}

	second := first
	second.WorkOrders = append(second.WorkOrders, sheet.Row{"ID": "os-2", "STATUS": "INICIAR"})
	if _, err := eng.Reconcile(context.Background(), second); err != nil {
		t.Fatalf("second run: %v", err)
	}

	var count int64
	gormDB.Model(&models.Notification{}).Where("work_order_id = ?", "os-2").Count(&count)
	if count != 0 {
		t.Errorf("debounced run still fanned out: %d notifications for os-2", count)
	}
	gormDB.Model(&models.Notification{}).Where("id = ?", "stale-1").Count(&count)
	if count != 0 {
		t.Errorf("debounced run skipped retention cleanup: stale notification survived")
	}
}

func TestReconcile_EmptySheets(t *testing.T) {
	gormDB := openTestDB(t)
	eng := newTestEngine(t, gormDB)
	res, err := eng.Reconcile(context.Background(), sheet.Sheets{})
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if !res.Success || res.Stats != (Stats{}) {
		t.Errorf("empty run = %+v", res)
	}
}

func TestReconcile_FailureMarksProgressError(t *testing.T) {
	gormDB := openTestDB(t)
	tracker := progress.NewTracker()
	eng, err := New(Options{DB: gormDB, Reporter: tracker})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	// Drop the table under the engine to force a storage failure.
	if err := gormDB.Migrator().DropTable(&models.WorkOrder{}); err != nil {
		t.Fatalf("drop table: %v", err)
	}

	res, runErr := eng.Reconcile(context.Background(), basicSheets())
	if runErr == nil {
		t.Fatal("expected run failure")
	}
	if res.Success {
		t.Error("Success = true on failed run")
	}
	if snap := tracker.Snapshot(); snap.Status != progress.Error {
		t.Errorf("progress status = %s, want ERROR", snap.Status)
	}
}

func TestNew_RequiresDB(t *testing.T) {
	if _, err := New(Options{}); err == nil {
		t.Fatal("expected error without db")
	}
}

func TestStatsCounters(t *testing.T) {
	gormDB := openTestDB(t)
	eng := newTestEngine(t, gormDB)

	var rows []sheet.Row
	for i := 0; i < 7; i++ {
		rows = append(rows, sheet.Row{"ID": fmt.Sprintf("os-%d", i), "STATUS": "INICIAR"})
	}
	res, err := eng.Reconcile(context.Background(), sheet.Sheets{WorkOrders: rows})
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if res.Stats.WorkOrders != 7 {
		t.Errorf("WorkOrders = %d, want 7", res.Stats.WorkOrders)
	}
}
