// Package reconcile drives a reconciliation run for one account and period:
// it loads both pools from the Store, runs the matching engine, computes the
// book balance and outstanding items, and moves the run through
// DRAFT -> CALCULATED -> FINALIZED.
package reconcile

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"golang.org/x/sync/errgroup"

	"babylon/reconciler/appcontext"
	"babylon/reconciler/match"
	"babylon/reconciler/model"
)

const (
	defaultWorkers       = 4
	defaultSuggestionTTL = 10 * time.Minute
)

// Matcher is the part of match.Engine the service depends on.
type Matcher interface {
	Run(bank []model.BankRecord, ledger []model.LedgerRecord) match.Result
	Manual(s match.State, bankID string, ledgerIDs []string) (match.State, model.MatchResult, error)
	Config() match.Config
}

// Request identifies one account and statement period.
type Request struct {
	AccountID   string
	PeriodStart time.Time
	PeriodEnd   time.Time
}

func (r Request) key() string {
	return r.AccountID + "|" + model.DateOnly(r.PeriodEnd).Format(time.DateOnly)
}

func (r Request) validate() error {
	switch {
	case r.AccountID == "":
		return model.InvalidRecordError("request", "missing account id")
	case r.PeriodEnd.IsZero():
		return model.InvalidRecordError(r.AccountID, "missing period end")
	case r.PeriodStart.After(r.PeriodEnd):
		return model.InvalidRecordError(r.AccountID, "period start is after period end")
	}
	return nil
}

// Service orchestrates reconciliation runs.
type Service struct {
	store   Store
	matcher Matcher
	now     func() time.Time
	newID   match.IDGenerator
	workers int
	locks   *keyedMutex
	// suggestions caches Suggest results by run id until the run changes.
	suggestions   *cache.Cache
	suggestionTTL time.Duration
}

// Option configures a Service.
type Option func(*Service)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithIDGenerator replaces the UUID generator used for runs and statements.
func WithIDGenerator(gen match.IDGenerator) Option {
	return func(s *Service) {
		if gen != nil {
			s.newID = gen
		}
	}
}

// WithWorkers bounds how many accounts ReconcileAll processes at once.
func WithWorkers(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.workers = n
		}
	}
}

// WithSuggestionTTL sets how long ranked suggestions for a run are reused.
func WithSuggestionTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.suggestionTTL = ttl
		}
	}
}

// NewService creates a Service.
func NewService(store Store, matcher Matcher, opts ...Option) *Service {
	s := &Service{
		store:         store,
		matcher:       matcher,
		now:           time.Now,
		newID:         uuid.NewString,
		workers:       defaultWorkers,
		locks:         newKeyedMutex(),
		suggestionTTL: defaultSuggestionTTL,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.suggestions = cache.New(s.suggestionTTL, 2*s.suggestionTTL)
	return s
}

// IngestStatement validates the statement lines and persists them with the
// statement header. Invalid lines are skipped and returned.
func (s *Service) IngestStatement(
	ctx context.Context,
	stmt model.Statement,
	records []model.BankRecord,
) ([]model.RecordError, error) {
	logger := appcontext.LoggerFromContext(ctx)

	if stmt.AccountID == "" {
		return nil, model.InvalidRecordError(stmt.ID, "statement has no account id")
	}
	if stmt.ID == "" {
		stmt.ID = s.newID()
	}
	if stmt.UploadedAt.IsZero() {
		stmt.UploadedAt = s.now()
	}

	var skipped []model.RecordError
	valid := make([]model.BankRecord, 0, len(records))
	for _, r := range records {
		if r.AccountID == "" {
			r.AccountID = stmt.AccountID
		}
		r.StatementID = stmt.ID

		err := r.Validate()
		if err == nil && r.AccountID != stmt.AccountID {
			err = model.InvalidRecordError(r.ID, fmt.Sprintf("belongs to account %s", r.AccountID))
		}
		if err != nil {
			logger.WarnContext(ctx, "skipping bank record", "id", r.ID, "error", err)
			skipped = append(skipped, model.RecordError{RecordID: r.ID, Reason: err.Error()})
			continue
		}
		valid = append(valid, r)
	}

	if err := s.store.SaveStatement(ctx, stmt, valid); err != nil {
		return skipped, fmt.Errorf("failed to save statement %s: %w", stmt.ID, err)
	}

	logger.InfoContext(ctx, "statement ingested",
		"statement", stmt.ID, "account", stmt.AccountID, "records", len(valid), "skipped", len(skipped))
	return skipped, nil
}

// IngestLedger validates and upserts ledger transactions.
func (s *Service) IngestLedger(ctx context.Context, records []model.LedgerRecord) ([]model.RecordError, error) {
	logger := appcontext.LoggerFromContext(ctx)

	var skipped []model.RecordError
	valid := make([]model.LedgerRecord, 0, len(records))
	for _, r := range records {
		if err := r.Validate(); err != nil {
			logger.WarnContext(ctx, "skipping ledger record", "id", r.ID, "error", err)
			skipped = append(skipped, model.RecordError{RecordID: r.ID, Reason: err.Error()})
			continue
		}
		valid = append(valid, r)
	}

	if err := s.store.UpsertLedgerRecords(ctx, valid); err != nil {
		return skipped, fmt.Errorf("failed to save ledger records: %w", err)
	}

	logger.InfoContext(ctx, "ledger records ingested", "records", len(valid), "skipped", len(skipped))
	return skipped, nil
}

// Reconcile builds and persists a CALCULATED run for the request. Calls for
// the same account and period end run one at a time.
func (s *Service) Reconcile(ctx context.Context, req Request) (model.Run, error) {
	if err := req.validate(); err != nil {
		return model.Run{}, err
	}

	unlock := s.locks.lock(req.key())
	defer unlock()

	logger := appcontext.LoggerFromContext(ctx).With("account", req.AccountID, "periodEnd", req.PeriodEnd.Format(time.DateOnly))

	stmt, err := s.store.LatestStatement(ctx, req.AccountID, req.PeriodEnd)
	if err != nil {
		return model.Run{}, fmt.Errorf("failed to load statement: %w", err)
	}
	bank, err := s.store.ListBankRecords(ctx, req.AccountID, req.PeriodStart, req.PeriodEnd)
	if err != nil {
		return model.Run{}, fmt.Errorf("failed to load bank records: %w", err)
	}
	ledger, err := s.store.ListLedgerRecords(ctx, req.AccountID, req.PeriodEnd)
	if err != nil {
		return model.Run{}, fmt.Errorf("failed to load ledger records: %w", err)
	}

	bankPool := slices.DeleteFunc(slices.Clone(bank), func(b model.BankRecord) bool { return b.Matched })
	ledgerPool := slices.DeleteFunc(slices.Clone(ledger), func(l model.LedgerRecord) bool {
		return l.Status != model.StatusCompleted || l.ReconStatus == model.ReconReconciled
	})

	run := model.Run{
		ID:               s.newID(),
		AccountID:        req.AccountID,
		StatementID:      stmt.ID,
		PeriodStart:      req.PeriodStart,
		PeriodEnd:        req.PeriodEnd,
		StatementBalance: stmt.ClosingBalance,
		BookBalance:      bookBalance(ledger),
		Status:           model.RunDraft,
		CreatedAt:        s.now(),
	}
	logger.DebugContext(ctx, "matching pools loaded", "run", run.ID, "bank", len(bankPool), "ledger", len(ledgerPool))

	result, err := s.runMatcher(bankPool, ledgerPool)
	if err != nil {
		logger.ErrorContext(ctx, "matching failed", "run", run.ID, "error", err)
		return model.Run{}, err
	}

	run.Matches = result.Matches
	run.UnmatchedBank = result.Bank
	run.UnmatchedLedger = result.Ledger
	run.Skipped = result.Skipped
	s.refreshOutstanding(&run, bank)

	if err := advance(&run, model.RunCalculated); err != nil {
		return model.Run{}, err
	}
	if err := s.store.SaveRun(ctx, run); err != nil {
		return model.Run{}, fmt.Errorf("failed to save run %s: %w", run.ID, err)
	}

	logger.InfoContext(ctx, "reconciliation calculated",
		"run", run.ID,
		"matches", len(run.Matches),
		"unmatchedBank", len(run.UnmatchedBank),
		"unmatchedLedger", len(run.UnmatchedLedger),
		"difference", run.Difference.StringFixed(2))
	return run, nil
}

// runMatcher turns a panic in the matching core into ErrComputation.
func (s *Service) runMatcher(bank []model.BankRecord, ledger []model.LedgerRecord) (result match.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = model.ComputationError(r)
		}
	}()
	return s.matcher.Run(bank, ledger), nil
}

func (s *Service) refreshOutstanding(run *model.Run, bank []model.BankRecord) {
	run.OutstandingChecks = outstandingChecks(run.UnmatchedLedger)
	run.DepositsInTransit = depositsInTransit(run.UnmatchedLedger, bank, s.matcher.Config().Tolerance)
	run.Recalculate()
}

// Outcome is the result of one request in ReconcileAll.
type Outcome struct {
	Request Request
	Run     model.Run
	Err     error
}

// ReconcileAll reconciles several requests concurrently. A failing request
// does not stop the others; its error is reported in its Outcome.
func (s *Service) ReconcileAll(ctx context.Context, reqs []Request) []Outcome {
	outcomes := make([]Outcome, len(reqs))

	var g errgroup.Group
	g.SetLimit(s.workers)
	for i, req := range reqs {
		i, req := i, req
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				outcomes[i] = Outcome{Request: req, Err: err}
				return nil
			}
			run, err := s.Reconcile(ctx, req)
			outcomes[i] = Outcome{Request: req, Run: run, Err: err}
			return nil
		})
	}
	_ = g.Wait()

	return outcomes
}

// ManualMatch links a bank line to ledger transactions inside a CALCULATED
// run and saves the run.
func (s *Service) ManualMatch(
	ctx context.Context,
	runID, bankID string,
	ledgerIDs []string,
) (model.Run, model.MatchResult, error) {
	var result model.MatchResult
	run, err := s.updateRun(ctx, runID, func(run *model.Run) error {
		if run.Status != model.RunCalculated {
			return model.InvalidTransitionError(run.Status, model.RunCalculated)
		}

		state := match.State{Matches: run.Matches, Bank: run.UnmatchedBank, Ledger: run.UnmatchedLedger}
		next, m, err := s.matcher.Manual(state, bankID, ledgerIDs)
		if err != nil {
			return err
		}
		if err := s.checkUnconsumed(ctx, *run, []model.MatchResult{m}); err != nil {
			return err
		}

		bank := allBank(*run)
		run.Matches = next.Matches
		run.UnmatchedBank = next.Bank
		run.UnmatchedLedger = next.Ledger
		s.refreshOutstanding(run, bank)
		result = m
		return nil
	})
	if err != nil {
		return model.Run{}, model.MatchResult{}, err
	}

	appcontext.LoggerFromContext(ctx).InfoContext(ctx, "manual match recorded",
		"run", runID, "bank", bankID, "ledger", ledgerIDs)
	return run, result, nil
}

// Finalize marks every matched ledger transaction RECONCILED, flags the
// matched statement lines and moves the run to FINALIZED. It fails with
// model.ErrConflict when another run has already consumed one of the
// records. The marks are written before the run, so a Finalize that fails
// part way leaves the run CALCULATED and can be retried.
func (s *Service) Finalize(ctx context.Context, runID string) (model.Run, error) {
	run, err := s.updateRun(ctx, runID, func(run *model.Run) error {
		if err := advance(run, model.RunFinalized); err != nil {
			return err
		}
		if err := s.checkUnconsumed(ctx, *run, run.Matches); err != nil {
			return err
		}

		var ledgerIDs, bankIDs []string
		for i, m := range run.Matches {
			bankIDs = append(bankIDs, m.Bank.ID)
			ledgerIDs = append(ledgerIDs, m.LedgerIDs()...)

			run.Matches[i].Bank.Matched = true
			run.Matches[i].Bank.MatchedBy = run.ID
			reconciled := slices.Clone(m.Ledger)
			for j := range reconciled {
				reconciled[j].ReconStatus = model.ReconReconciled
				reconciled[j].ReconciledBy = run.ID
			}
			run.Matches[i].Ledger = reconciled
		}

		if err := s.store.MarkLedgerReconciled(ctx, run.ID, ledgerIDs); err != nil {
			return fmt.Errorf("failed to mark ledger records reconciled: %w", err)
		}
		if err := s.store.MarkBankMatched(ctx, run.ID, bankIDs); err != nil {
			return fmt.Errorf("failed to mark bank records matched: %w", err)
		}
		run.FinalizedAt = s.now()
		return nil
	})
	if err != nil {
		return model.Run{}, err
	}

	appcontext.LoggerFromContext(ctx).InfoContext(ctx, "reconciliation finalized",
		"run", run.ID, "account", run.AccountID, "matches", len(run.Matches))
	return run, nil
}

// updateRun loads a run, applies fn under the run's account/period lock and
// saves it. The stored run is not rewritten when fn fails, but anything fn
// already wrote to the store stays written.
func (s *Service) updateRun(ctx context.Context, runID string, fn func(*model.Run) error) (model.Run, error) {
	run, err := s.store.GetRun(ctx, runID)
	if err != nil {
		return model.Run{}, fmt.Errorf("failed to load run: %w", err)
	}

	unlock := s.locks.lock(Request{AccountID: run.AccountID, PeriodEnd: run.PeriodEnd}.key())
	defer unlock()

	// Reload under the lock; another caller may have changed the run.
	run, err = s.store.GetRun(ctx, runID)
	if err != nil {
		return model.Run{}, fmt.Errorf("failed to load run: %w", err)
	}

	if err := fn(&run); err != nil {
		return model.Run{}, err
	}
	if err := s.store.SaveRun(ctx, run); err != nil {
		return model.Run{}, fmt.Errorf("failed to save run %s: %w", run.ID, err)
	}
	s.suggestions.Delete(run.ID)
	return run, nil
}

// Suggest ranks ledger candidates for every bank line still unmatched in
// the run. It never changes the run.
func (s *Service) Suggest(ctx context.Context, runID string) ([]model.Suggestion, error) {
	if cached, found := s.suggestions.Get(runID); found {
		appcontext.LoggerFromContext(ctx).DebugContext(ctx, "Serving suggestions from cache", "run", runID)
		return cloneSuggestions(cached.([]model.Suggestion)), nil
	}

	run, err := s.store.GetRun(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to load run: %w", err)
	}
	suggestions := match.Suggest(run.UnmatchedBank, run.UnmatchedLedger)
	s.suggestions.SetDefault(runID, suggestions)
	return cloneSuggestions(suggestions), nil
}

// cloneSuggestions copies the candidate lists so callers cannot reach the
// cached slices.
func cloneSuggestions(in []model.Suggestion) []model.Suggestion {
	if in == nil {
		return nil
	}
	out := make([]model.Suggestion, len(in))
	for i, sg := range in {
		sg.Candidates = slices.Clone(sg.Candidates)
		out[i] = sg
	}
	return out
}

// GetRun returns a stored run.
func (s *Service) GetRun(ctx context.Context, runID string) (model.Run, error) {
	run, err := s.store.GetRun(ctx, runID)
	if err != nil {
		return model.Run{}, fmt.Errorf("failed to load run: %w", err)
	}
	return run, nil
}

// checkUnconsumed reloads the records referenced by matches and rejects
// them with model.ErrConflict if a run other than run has already
// reconciled or matched any of them.
func (s *Service) checkUnconsumed(ctx context.Context, run model.Run, matches []model.MatchResult) error {
	if len(matches) == 0 {
		return nil
	}

	bank, err := s.store.ListBankRecords(ctx, run.AccountID, run.PeriodStart, run.PeriodEnd)
	if err != nil {
		return fmt.Errorf("failed to load bank records: %w", err)
	}
	ledger, err := s.store.ListLedgerRecords(ctx, run.AccountID, run.PeriodEnd)
	if err != nil {
		return fmt.Errorf("failed to load ledger records: %w", err)
	}

	bankByID := make(map[string]model.BankRecord, len(bank))
	for _, b := range bank {
		bankByID[b.ID] = b
	}
	ledgerByID := make(map[string]model.LedgerRecord, len(ledger))
	for _, l := range ledger {
		ledgerByID[l.ID] = l
	}

	for _, m := range matches {
		if b, ok := bankByID[m.Bank.ID]; ok && b.Matched && b.MatchedBy != run.ID {
			return model.ConflictError("bank record", b.ID)
		}
		for _, ref := range m.Ledger {
			l, ok := ledgerByID[ref.ID]
			if ok && l.ReconStatus == model.ReconReconciled && l.ReconciledBy != run.ID {
				return model.ConflictError("ledger record", l.ID)
			}
		}
	}
	return nil
}

func allBank(run model.Run) []model.BankRecord {
	bank := slices.Clone(run.UnmatchedBank)
	for _, m := range run.Matches {
		bank = append(bank, m.Bank)
	}
	return bank
}

var transitions = map[model.RunStatus]model.RunStatus{
	model.RunDraft:      model.RunCalculated,
	model.RunCalculated: model.RunFinalized,
}

// advance moves run to status if the state machine allows it.
func advance(run *model.Run, to model.RunStatus) error {
	if next, ok := transitions[run.Status]; !ok || next != to {
		return model.InvalidTransitionError(run.Status, to)
	}
	run.Status = to
	return nil
}
