package services

import (
	"context"
	"sync"
	"time"

	"astroconnect_go_backend/internal/metrics"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const walletBalanceKey = "astroconnect:wallet:balance"

// WalletConfig carries the tunables for the wallet ledger and its metering
// loop. TicksPerMinute of 10 with a 6s interval matches one minute of
// billing split into tenths.
type WalletConfig struct {
	InitialBalance decimal.Decimal
	LowBalanceMark decimal.Decimal
	TickInterval   time.Duration
	TicksPerMinute int64
	PersistTimeout time.Duration
}

func DefaultWalletConfig() WalletConfig {
	return WalletConfig{
		InitialBalance: decimal.NewFromInt(500),
		LowBalanceMark: decimal.NewFromInt(50),
		TickInterval:   6 * time.Second,
		TicksPerMinute: 10,
		PersistTimeout: 2 * time.Second,
	}
}

// WalletService holds the single wallet balance for this user context and
// runs at most one metering process against it at a time.
type WalletService struct {
	mu        sync.Mutex
	balance   decimal.Decimal
	cfg       WalletConfig
	kv        KeyValueStore
	scheduler Scheduler
	metrics   *metrics.Metrics
	log       zerolog.Logger

	metering *meteringRun
}

// meteringRun identifies one StartMetering invocation. The wallet compares
// run identity under its lock so a stale tick from a cancelled run can
// never deduct or fire the exhaustion callback.
type meteringRun struct {
	ticker      Ticker
	stop        chan struct{}
	amount      decimal.Decimal
	onExhausted func()
}

func NewWalletService(kv KeyValueStore, scheduler Scheduler, m *metrics.Metrics, logger zerolog.Logger, cfg WalletConfig) *WalletService {
	w := &WalletService{
		cfg:       cfg,
		kv:        kv,
		scheduler: scheduler,
		metrics:   m,
		log:       logger.With().Str("component", "wallet").Logger(),
	}
	w.balance = w.loadInitialBalance()
	return w
}

func (w *WalletService) loadInitialBalance() decimal.Decimal {
	ctx, cancel := context.WithTimeout(context.Background(), w.cfg.PersistTimeout)
	defer cancel()

	stored, ok, err := w.kv.Get(ctx, walletBalanceKey)
	if err != nil {
		w.log.Warn().Err(err).Msg("failed to load persisted balance, using default")
		return w.cfg.InitialBalance
	}
	if !ok {
		return w.cfg.InitialBalance
	}
	parsed, err := decimal.NewFromString(stored)
	if err != nil || parsed.IsNegative() {
		w.log.Warn().Str("stored", stored).Msg("invalid persisted balance, using default")
		return w.cfg.InitialBalance
	}
	return parsed.Round(2)
}

// Balance returns the current balance.
func (w *WalletService) Balance() decimal.Decimal {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.balance
}

// IsLow reports whether the balance is below the low-balance threshold.
func (w *WalletService) IsLow() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.balance.LessThan(w.cfg.LowBalanceMark)
}

// IsEmpty reports whether the balance is exactly zero.
func (w *WalletService) IsEmpty() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.balance.IsZero()
}

// Deduct reduces the balance by amount, clamped at zero. Over-deduction is
// clamped, not rejected.
func (w *WalletService) Deduct(amount decimal.Decimal) decimal.Decimal {
	w.mu.Lock()
	next := w.balance.Sub(amount)
	if next.IsNegative() {
		next = decimal.Zero
	}
	w.balance = next.Round(2)
	out := w.balance
	w.mu.Unlock()

	w.persist(out)
	return out
}

// Add increases the balance by amount. There is no upper bound.
func (w *WalletService) Add(amount decimal.Decimal) decimal.Decimal {
	w.mu.Lock()
	w.balance = w.balance.Add(amount).Round(2)
	out := w.balance
	w.mu.Unlock()

	w.persist(out)
	return out
}

// Reset restores the balance to the configured starting amount.
func (w *WalletService) Reset() decimal.Decimal {
	w.mu.Lock()
	w.balance = w.cfg.InitialBalance.Round(2)
	out := w.balance
	w.mu.Unlock()

	w.persist(out)
	return out
}

// persist writes the balance to the key-value store. Best-effort: a storage
// failure is logged and the in-memory balance stays authoritative.
func (w *WalletService) persist(balance decimal.Decimal) {
	ctx, cancel := context.WithTimeout(context.Background(), w.cfg.PersistTimeout)
	defer cancel()

	if err := w.kv.Set(ctx, walletBalanceKey, balance.StringFixed(2)); err != nil {
		w.log.Warn().Err(err).Str("balance", balance.StringFixed(2)).Msg("failed to persist balance")
	}
}

// StartMetering begins deducting ratePerMinute split across the configured
// ticks per minute. Any prior metering run is cancelled first, so two timers
// never run concurrently. onExhausted fires at most once per call, and never
// after StopMetering has returned.
func (w *WalletService) StartMetering(ratePerMinute decimal.Decimal, onExhausted func()) {
	amountPerTick := ratePerMinute.Div(decimal.NewFromInt(w.cfg.TicksPerMinute))

	w.mu.Lock()
	w.stopMeteringLocked()
	run := &meteringRun{
		ticker:      w.scheduler.NewTicker(w.cfg.TickInterval),
		stop:        make(chan struct{}),
		amount:      amountPerTick,
		onExhausted: onExhausted,
	}
	w.metering = run
	w.mu.Unlock()

	w.log.Info().
		Str("rate_per_minute", ratePerMinute.StringFixed(2)).
		Str("amount_per_tick", amountPerTick.String()).
		Msg("metering started")

	go w.runMetering(run)
}

// StopMetering cancels the active metering run, if any. Safe to call
// multiple times and from any exit path.
func (w *WalletService) StopMetering() {
	w.mu.Lock()
	w.stopMeteringLocked()
	w.mu.Unlock()
}

func (w *WalletService) stopMeteringLocked() {
	if w.metering == nil {
		return
	}
	close(w.metering.stop)
	w.metering.ticker.Stop()
	w.metering = nil
}

func (w *WalletService) runMetering(run *meteringRun) {
	for {
		select {
		case <-run.stop:
			return
		case <-run.ticker.C():
			if !w.applyTick(run) {
				return
			}
		}
	}
}

// applyTick deducts one tick's worth under the wallet lock. Returns false
// when the run should terminate, either because it was cancelled or because
// the balance hit zero. The exhaustion callback is invoked outside the lock,
// after the run has been detached, so it observes a wallet with no active
// metering process.
func (w *WalletService) applyTick(run *meteringRun) bool {
	w.mu.Lock()
	if w.metering != run {
		// Cancelled between the tick firing and the lock being taken.
		w.mu.Unlock()
		return false
	}

	next := w.balance.Sub(run.amount)
	exhausted := !next.IsPositive()
	if exhausted {
		next = decimal.Zero
		run.ticker.Stop()
		w.metering = nil
	}
	w.balance = next.Round(2)
	out := w.balance
	w.mu.Unlock()

	if w.metrics != nil {
		w.metrics.MeteringTicks.Inc()
		amt, _ := run.amount.Float64()
		w.metrics.AmountDeducted.Add(amt)
	}
	w.persist(out)

	if exhausted {
		if w.metrics != nil {
			w.metrics.WalletExhausted.Inc()
		}
		w.log.Info().Msg("balance exhausted, metering stopped")
		if run.onExhausted != nil {
			run.onExhausted()
		}
		return false
	}
	return true
}
