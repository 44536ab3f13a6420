/*
scheduler.go - Automated payroll refresh

PURPOSE:
  Attendance keeps arriving during the month (site registers, UI
  corrections). The scheduler periodically recalculates payroll for the
  current month so the figures HR sees are never far behind the ledger.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Skips the month entirely when it is locked
  - Never forces past a lock: a month locked mid-run makes the remaining
    employees fail with MONTH_LOCKED instead of overwriting frozen figures
  - Per-employee failures (no trade, no rate) are logged and counted

CONFIGURATION:
  - payroll.auto_recalculate_interval: 0 disables the scheduler

USAGE:
  scheduler := NewPayrollScheduler(handler, time.Hour)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - payroll.go: RecalculateMonth endpoint (manual, forced)
  - workforce/payroll.go: PayrollCalculator
*/
package api

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/warp/site-payroll/workforce"
)

// RefreshResult summarizes one scheduler pass.
type RefreshResult struct {
	Period  workforce.Period
	Skipped bool // month was locked
	workforce.BatchResult
}

// PayrollScheduler handles automated payroll recalculation.
type PayrollScheduler struct {
	Registry      *workforce.Registry
	Locks         *workforce.MonthLockRegistry
	Payroll       *workforce.PayrollCalculator
	CheckInterval time.Duration
	Enabled       bool
	Actor         string
	Clock         func() time.Time

	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewPayrollScheduler creates a scheduler over the handler's services.
// interval <= 0 leaves it disabled.
func NewPayrollScheduler(h *Handler, interval time.Duration) *PayrollScheduler {
	return &PayrollScheduler{
		Registry:      h.Registry,
		Locks:         h.Locks,
		Payroll:       h.Payroll,
		CheckInterval: interval,
		Enabled:       interval > 0,
		Actor:         "scheduler",
		Clock:         time.Now,
	}
}

// Start begins the scheduler.
func (ps *PayrollScheduler) Start() {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	if !ps.Enabled {
		log.Println("[Scheduler] Disabled, not starting")
		return
	}
	if ps.ticker != nil {
		return
	}

	ps.ticker = time.NewTicker(ps.CheckInterval)
	ps.stop = make(chan struct{})
	ps.wg.Add(1)

	go ps.run()

	log.Printf("[Scheduler] Started with check interval: %v", ps.CheckInterval)
}

// Stop stops the scheduler and waits for a pass in progress.
func (ps *PayrollScheduler) Stop() {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	if ps.ticker != nil {
		ps.ticker.Stop()
		close(ps.stop)
		ps.wg.Wait()
		ps.ticker = nil
		log.Println("[Scheduler] Stopped")
	}
}

func (ps *PayrollScheduler) run() {
	defer ps.wg.Done()

	// Run immediately on start
	ps.checkAndProcess()

	for {
		select {
		case <-ps.ticker.C:
			ps.checkAndProcess()
		case <-ps.stop:
			return
		}
	}
}

func (ps *PayrollScheduler) checkAndProcess() {
	if _, err := ps.RunNow(context.Background()); err != nil {
		log.Printf("[Scheduler] Error: %v", err)
	}
}

// RunNow recalculates the current month once.
func (ps *PayrollScheduler) RunNow(ctx context.Context) (RefreshResult, error) {
	p := workforce.PeriodOf(ps.Clock())
	res := RefreshResult{Period: p, BatchResult: workforce.BatchResult{Errors: []string{}}}

	locked, err := ps.Locks.IsLocked(ctx, p)
	if err != nil {
		return res, err
	}
	if locked {
		log.Printf("[Scheduler] Month %s is locked, skipping", p)
		res.Skipped = true
		return res, nil
	}

	employees, err := ps.Registry.ListEmployees(ctx)
	if err != nil {
		return res, err
	}
	for _, emp := range employees {
		if emp.Status != workforce.EmployeeActive {
			continue
		}
		_, err := ps.Payroll.Calculate(ctx, emp.ExternalID, p, workforce.CalculateOptions{CalculatedBy: ps.Actor})
		if err != nil {
			res.Errors = append(res.Errors, "Employee "+emp.ExternalID+": "+err.Error())
			continue
		}
		res.SuccessCount++
	}

	log.Printf("[Scheduler] Payroll %s refreshed: %d calculated, %d failed", p, res.SuccessCount, len(res.Errors))
	return res, nil
}

// GetNextRunTime returns when the next scheduled check will occur.
func (ps *PayrollScheduler) GetNextRunTime() time.Time {
	return ps.Clock().Add(ps.CheckInterval)
}
