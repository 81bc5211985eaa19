package pipeline

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/juju/errors"

	"github.com/bl4ckh401/chama/internal/model"
	"github.com/bl4ckh401/chama/internal/upstream"
)

// Dataset is everything the backend knows about one group.
type Dataset struct {
	Chama        model.ChamaData
	Members      []model.Member
	Transactions []model.Transaction
	Loans        []model.Loan
	Expenses     []model.Expense
	Fines        []model.Fine
	Changes      []model.SettingsChange
	Documents    []model.Document
	Policies     []model.Policy
	FetchedAt    time.Time
}

// Source is the part of upstream.Client the loader reads from.
type Source interface {
	Chama(ctx context.Context, chamaID string) (*model.ChamaData, error)
	Members(ctx context.Context, chamaID string) ([]model.Member, error)
	Transactions(ctx context.Context, chamaID string) ([]model.Transaction, error)
	Loans(ctx context.Context, chamaID string) ([]model.Loan, error)
	Expenses(ctx context.Context, chamaID string) ([]model.Expense, error)
	Fines(ctx context.Context, chamaID string) ([]model.Fine, error)
	SettingsChanges(ctx context.Context, chamaID string) ([]model.SettingsChange, error)
	Documents(ctx context.Context, chamaID string) ([]model.Document, error)
	Policies(ctx context.Context, chamaID string) ([]model.Policy, error)
}

var _ Source = (*upstream.Client)(nil)

// LoadResult holds the output of a load.
type LoadResult struct {
	Data *Dataset
	// Errors holds per-resource failures. The dataset is still usable; the
	// failed sections are empty.
	Errors map[string]error
}

// Err returns the first resource error, if any.
func (r *LoadResult) Err() error {
	for _, name := range resourceOrder {
		if err := r.Errors[name]; err != nil {
			return errors.Annotate(err, name)
		}
	}
	return nil
}

// ProgressFunc is called during loading to report progress.
// current is the number of resources fetched so far, total is the total count.
type ProgressFunc func(current, total int)

const maxParallel = 4

var resourceOrder = []string{
	"chama", "members", "transactions", "loans", "expenses",
	"fines", "settings changes", "documents", "policies",
}

// Load fetches every resource for chamaID with a bounded number of
// concurrent requests. Partial data is returned when some fetches fail;
// only an unauthorized answer or a missing group header fails the load.
func Load(ctx context.Context, src Source, chamaID string, progressFn ProgressFunc) (*LoadResult, error) {
	if chamaID == "" {
		return nil, errors.NotValidf("empty chama id")
	}

	data := &Dataset{}
	fetchers := map[string]func() error{
		"chama": func() error {
			c, err := src.Chama(ctx, chamaID)
			if err == nil {
				data.Chama = *c
			}
			return err
		},
		"members":          into(ctx, chamaID, src.Members, &data.Members),
		"transactions":     into(ctx, chamaID, src.Transactions, &data.Transactions),
		"loans":            into(ctx, chamaID, src.Loans, &data.Loans),
		"expenses":         into(ctx, chamaID, src.Expenses, &data.Expenses),
		"fines":            into(ctx, chamaID, src.Fines, &data.Fines),
		"settings changes": into(ctx, chamaID, src.SettingsChanges, &data.Changes),
		"documents":        into(ctx, chamaID, src.Documents, &data.Documents),
		"policies":         into(ctx, chamaID, src.Policies, &data.Policies),
	}

	work := make(chan string, len(resourceOrder))
	for _, name := range resourceOrder {
		work <- name
	}
	close(work)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		processed atomic.Int64
		errs      = make(map[string]error)
	)
	numWorkers := min(maxParallel, len(resourceOrder))
	wg.Add(numWorkers)
	for w := 0; w < numWorkers; w++ {
		go func() {
			defer wg.Done()
			for name := range work {
				if err := fetchers[name](); err != nil {
					mu.Lock()
					errs[name] = err
					mu.Unlock()
				}
				n := processed.Add(1)
				if progressFn != nil {
					progressFn(int(n), len(resourceOrder))
				}
			}
		}()
	}
	wg.Wait()

	for _, err := range errs {
		if errors.Is(err, errors.Unauthorized) {
			return nil, errors.Trace(err)
		}
	}
	if err := errs["chama"]; err != nil {
		return nil, errors.Annotatef(err, "loading chama %s", chamaID)
	}

	data.FetchedAt = time.Now()
	return &LoadResult{Data: data, Errors: errs}, nil
}

// into adapts a list fetcher so each goroutine writes only its own field.
func into[T any](ctx context.Context, chamaID string, fetch func(context.Context, string) ([]T, error), dst *[]T) func() error {
	return func() error {
		v, err := fetch(ctx, chamaID)
		if err != nil {
			return err
		}
		*dst = v
		return nil
	}
}
