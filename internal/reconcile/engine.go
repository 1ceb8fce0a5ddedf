package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mveloso/campo/internal/models"
	"github.com/mveloso/campo/internal/notify"
	"github.com/mveloso/campo/internal/progress"
	"github.com/mveloso/campo/internal/sheet"
	"github.com/mveloso/campo/internal/status"
	"gorm.io/gorm"
)

// ErrRunInFlight is returned when Reconcile is called while another run
// is still executing on the same engine.
var ErrRunInFlight = errors.New("reconcile: a run is already in flight")

// defaultCredential is hashed into newly created crew entries; the
// identity subsystem forces a change on first login.
const defaultCredential = "campo@2024"

// Stats counts the rows processed per sheet in one run.
type Stats struct {
	WorkOrders int `json:"workOrderCount"`
	Caixas     int `json:"subItemCount"`
	Lancas     int `json:"launchCount"`
	Crews      int `json:"crewCount"`
}

// RunResult is the outcome of one reconciliation run.
type RunResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Stats   Stats  `json:"stats"`
}

// Options configures an Engine.
type Options struct {
	DB       *gorm.DB
	Reporter progress.Reporter // defaults to progress.Discard
	Notifier *notify.Notifier  // optional; enables the fan-out post-step
	// RetentionDays is the horizon for the notification cleanup
	// post-step. Zero keeps the 7-day default.
	RetentionDays int
	// Debounce is the minimum interval between fan-out executions.
	// Zero fans out on every run.
	Debounce time.Duration
}

// Engine runs reconciliation passes. Safe for use from multiple
// goroutines: a second concurrent Reconcile returns ErrRunInFlight
// instead of interleaving upserts.
type Engine struct {
	db            *gorm.DB
	reporter      progress.Reporter
	notifier      *notify.Notifier
	retentionDays int
	debounce      time.Duration

	gate       sync.Mutex
	lastFanOut time.Time
}

// New creates an Engine.
func New(opts Options) (*Engine, error) {
	if opts.DB == nil {
		return nil, fmt.Errorf("reconcile: db is required")
	}
	reporter := opts.Reporter
	if reporter == nil {
		reporter = progress.Discard{}
	}
	retention := opts.RetentionDays
	if retention <= 0 {
		retention = 7
	}
	return &Engine{
		db:            opts.DB,
		reporter:      reporter,
		notifier:      opts.Notifier,
		retentionDays: retention,
		debounce:      opts.Debounce,
	}, nil
}

// Reconcile imports all four sheets: sequential per-row upserts with
// change suppression, then status promotion, then the notification
// post-steps. Safe to re-execute against the same source; partial writes
// from a failed run are self-healed by the next successful one.
func (e *Engine) Reconcile(ctx context.Context, sheets sheet.Sheets) (RunResult, error) {
	if !e.gate.TryLock() {
		return RunResult{Message: "importação já em andamento"}, ErrRunInFlight
	}
	defer e.gate.Unlock()

	total := sheets.TotalRows()
	e.reporter.Start(total, "Importando planilha")

	var stats Stats
	counter := 0
	db := e.db.WithContext(ctx)

	if err := e.syncWorkOrders(db, sheets.WorkOrders, total, &counter, &stats); err != nil {
		return e.fail(err)
	}
	touched, err := e.syncCaixas(db, sheets.Caixas, total, &counter, &stats)
	if err != nil {
		return e.fail(err)
	}
	if err := e.syncLancas(db, sheets.Lancas, total, &counter, &stats); err != nil {
		return e.fail(err)
	}
	if err := e.syncCrews(db, sheets.Crews, total, &counter, &stats); err != nil {
		return e.fail(err)
	}
	if err := e.promoteWorkOrders(db, touched); err != nil {
		return e.fail(err)
	}

	e.postSteps(db)

	msg := fmt.Sprintf("Importação concluída: %d ordens, %d caixas, %d lanças, %d equipes",
		stats.WorkOrders, stats.Caixas, stats.Lancas, stats.Crews)
	e.reporter.Done(msg)
	return RunResult{Success: true, Message: msg, Stats: stats}, nil
}

// fail marks the run errored with a generic user-facing message; the
// detailed cause goes to the server log and the returned error.
func (e *Engine) fail(err error) (RunResult, error) {
	log.Printf("reconcile: run failed: %v", err)
	e.reporter.Fail("Falha ao importar a planilha")
	return RunResult{Message: "Falha ao importar a planilha"}, err
}

// postSteps runs fan-out and retention cleanup. Failures here are logged
// and swallowed: the import itself succeeded and is reported as such.
// The debounce gates only the fan-out; cleanup runs on every run.
func (e *Engine) postSteps(db *gorm.DB) {
	if e.notifier != nil && (e.debounce <= 0 || time.Since(e.lastFanOut) >= e.debounce) {
		if err := e.notifier.FanOutNewWorkOrders(db); err != nil {
			log.Printf("reconcile: notification fan-out: %v", err)
		} else {
			e.lastFanOut = time.Now()
		}
	}
	if err := notify.CleanupOld(db, e.retentionDays); err != nil {
		log.Printf("reconcile: notification cleanup: %v", err)
	}
}

func (e *Engine) syncWorkOrders(db *gorm.DB, rows []sheet.Row, total int, counter *int, stats *Stats) error {
	for _, row := range rows {
		e.advance(counter, total, "ordens")

		incoming := sheet.DecodeWorkOrderRow(row)
		if incoming.ID == "" {
			continue
		}
		stats.WorkOrders++

		var existing models.WorkOrder
		err := db.Where("id = ?", incoming.ID).First(&existing).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			if err := db.Create(&incoming).Error; err != nil {
				return fmt.Errorf("reconcile: create work order %s: %w", incoming.ID, err)
			}
		case err != nil:
			return fmt.Errorf("reconcile: lookup work order %s: %w", incoming.ID, err)
		default:
			candidate := MergeWorkOrder(existing, incoming)
			if workOrderChanged(existing, candidate) {
				if err := db.Save(&candidate).Error; err != nil {
					return fmt.Errorf("reconcile: update work order %s: %w", incoming.ID, err)
				}
			}
		}
	}
	return nil
}

// syncCaixas upserts caixa rows and returns the set of work-order ids
// that carry at least one non-pending caixa, feeding the promotion step.
func (e *Engine) syncCaixas(db *gorm.DB, rows []sheet.Row, total int, counter *int, stats *Stats) (map[string]bool, error) {
	touched := make(map[string]bool)
	for pos, row := range rows {
		e.advance(counter, total, "caixas")

		decoded := sheet.DecodeCaixaRow(row, pos)
		incoming := decoded.Record
		if incoming.ID == "" {
			continue
		}
		if !decoded.HasExternalID {
			log.Printf("reconcile: caixa row %d of %s has no stable id, using position key", pos, incoming.WorkOrderID)
		}
		stats.Caixas++

		var existing models.Caixa
		err := db.Where("id = ?", incoming.ID).First(&existing).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			if err := db.Create(&incoming).Error; err != nil {
				return nil, fmt.Errorf("reconcile: create caixa %s: %w", incoming.ID, err)
			}
			if models.UnitStatusMarked(incoming.Status) {
				touched[incoming.WorkOrderID] = true
			}
		case err != nil:
			return nil, fmt.Errorf("reconcile: lookup caixa %s: %w", incoming.ID, err)
		default:
			candidate := MergeCaixa(existing, incoming)
			if caixaChanged(existing, candidate) {
				if err := db.Save(&candidate).Error; err != nil {
					return nil, fmt.Errorf("reconcile: update caixa %s: %w", incoming.ID, err)
				}
			}
			if models.UnitStatusMarked(candidate.Status) {
				touched[candidate.WorkOrderID] = true
			}
		}
	}
	return touched, nil
}

func (e *Engine) syncLancas(db *gorm.DB, rows []sheet.Row, total int, counter *int, stats *Stats) error {
	for pos, row := range rows {
		e.advance(counter, total, "lanças")

		decoded := sheet.DecodeLancaRow(row, pos)
		incoming := decoded.Record
		if incoming.ID == "" {
			continue
		}
		stats.Lancas++

		var existing models.Lanca
		err := db.Where("id = ?", incoming.ID).First(&existing).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			if err := db.Create(&incoming).Error; err != nil {
				return fmt.Errorf("reconcile: create lança %s: %w", incoming.ID, err)
			}
		case err != nil:
			return fmt.Errorf("reconcile: lookup lança %s: %w", incoming.ID, err)
		default:
			candidate := MergeLanca(existing, incoming)
			if lancaChanged(existing, candidate) {
				if err := db.Save(&candidate).Error; err != nil {
					return fmt.Errorf("reconcile: update lança %s: %w", incoming.ID, err)
				}
			}
		}
	}
	return nil
}

func (e *Engine) syncCrews(db *gorm.DB, rows []sheet.Row, total int, counter *int, stats *Stats) error {
	for _, row := range rows {
		e.advance(counter, total, "equipes")

		incoming := sheet.DecodeCrewRow(row)
		if incoming.ID == "" {
			continue
		}
		stats.Crews++

		var existing models.Crew
		err := db.Where("id = ?", incoming.ID).First(&existing).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			login, err := e.generateLogin(db, incoming.Name)
			if err != nil {
				return err
			}
			incoming.Login = login
			incoming.PasswordHash = models.HashPassword(defaultCredential)
			incoming.Active = true
			incoming.NotifyByEmail = true
			if err := db.Create(&incoming).Error; err != nil {
				return fmt.Errorf("reconcile: create crew %s: %w", incoming.ID, err)
			}
		case err != nil:
			return fmt.Errorf("reconcile: lookup crew %s: %w", incoming.ID, err)
		default:
			candidate := MergeCrew(existing, incoming)
			if crewChanged(existing, candidate) {
				if err := db.Save(&candidate).Error; err != nil {
					return fmt.Errorf("reconcile: update crew %s: %w", incoming.ID, err)
				}
			}
		}
	}
	return nil
}

// promoteWorkOrders moves orders with field-worked caixas to
// "Em execução" unless the sheet already says terminal. Subject to the
// same write suppression as every other upsert.
func (e *Engine) promoteWorkOrders(db *gorm.DB, touched map[string]bool) error {
	for osID := range touched {
		var os models.WorkOrder
		err := db.Where("id = ?", osID).First(&os).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			continue
		}
		if err != nil {
			return fmt.Errorf("reconcile: lookup work order %s for promotion: %w", osID, err)
		}
		if status.IsTerminal(os.Status) || os.Status == models.OSStatusEmExecucao {
			continue
		}
		os.Status = models.OSStatusEmExecucao
		if err := db.Save(&os).Error; err != nil {
			return fmt.Errorf("reconcile: promote work order %s: %w", osID, err)
		}
	}
	return nil
}

// advance bumps the run counter and publishes a human-readable phase
// message.
func (e *Engine) advance(counter *int, total int, sheetName string) {
	*counter++
	e.reporter.Advance(fmt.Sprintf("Importando %s (%d/%d)", sheetName, *counter, total))
}

// generateLogin derives a collision-resistant login from a crew name,
// appending a short random suffix when the natural form is taken.
func (e *Engine) generateLogin(db *gorm.DB, name string) (string, error) {
	base := loginSlug(name)
	if base == "" {
		base = "equipe"
	}
	login := base
	for attempt := 0; ; attempt++ {
		var count int64
		if err := db.Model(&models.Crew{}).Where("login = ?", login).Count(&count).Error; err != nil {
			return "", fmt.Errorf("reconcile: check login %q: %w", login, err)
		}
		if count == 0 {
			return login, nil
		}
		login = base + "." + uuid.NewString()[:4]
		if attempt > 10 {
			return "", fmt.Errorf("reconcile: could not find a free login for %q", name)
		}
	}
}

// loginSlug lowercases a crew name into login-safe form: accents folded,
// spaces collapsed to dots, everything else dropped.
func loginSlug(name string) string {
	folded := strings.ToLower(name)
	replacer := strings.NewReplacer(
		"á", "a", "â", "a", "ã", "a",
		"é", "e", "ê", "e",
		"í", "i",
		"ó", "o", "ô", "o", "õ", "o",
		"ú", "u",
		"ç", "c",
	)
	folded = replacer.Replace(folded)

	var b strings.Builder
	lastDot := true
	for _, r := range folded {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDot = false
		case r == ' ' && !lastDot:
			b.WriteByte('.')
			lastDot = true
		}
	}
	return strings.TrimSuffix(b.String(), ".")
}
