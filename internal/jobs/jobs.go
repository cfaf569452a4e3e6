// Package jobs wires the marketplace client to the loader. Each job fetches
// one kind of seller data, shapes it into a schema.Batch and loads it into
// its table. Per-account work fans out over a bounded worker group; a failing
// account is logged and does not stop the others.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/vuvuzela92/waregouse-project/internal/marketplace"
	"github.com/vuvuzela92/waregouse-project/internal/metrics"
	"github.com/vuvuzela92/waregouse-project/internal/schema"
)

// Job names.
const (
	Acts        = "acts"
	Assembly    = "assembly"
	Supplies    = "supplies"
	Reshipments = "reshipments"
	Stock       = "stock"
)

// API is the subset of the marketplace client the jobs use.
type API interface {
	ListDocuments(ctx context.Context, acct marketplace.Account, category string, begin, end time.Time) ([]marketplace.Document, error)
	DownloadDocuments(ctx context.Context, acct marketplace.Account, serviceNames []string) ([]marketplace.Archive, error)
	ListOrders(ctx context.Context, acct marketplace.Account) ([]marketplace.Order, error)
	OrderStatuses(ctx context.Context, acct marketplace.Account, ids []int64) ([]marketplace.OrderStatus, error)
	ListSupplies(ctx context.Context, acct marketplace.Account) ([]marketplace.Supply, error)
	ReshipmentOrders(ctx context.Context, acct marketplace.Account) ([]marketplace.Reshipment, error)
	Balances(ctx context.Context) ([]marketplace.Balance, error)
	Reserves(ctx context.Context) ([]marketplace.Reserve, error)
}

// Loader writes a batch into a contract's table.
type Loader interface {
	Load(ctx context.Context, c *schema.Contract, batch schema.Batch) (int64, error)
}

// Options configures a Runner.
type Options struct {
	Accounts     []marketplace.Account
	Workers      int
	ActsDaysBack int
	Logger       *slog.Logger
	Now          func() time.Time
}

// Runner executes jobs.
type Runner struct {
	api    API
	loader Loader
	opts   Options
	logger *slog.Logger
	now    func() time.Time
}

// New returns a Runner. Workers and ActsDaysBack default to 1.
func New(api API, loader Loader, opts Options) *Runner {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.ActsDaysBack < 1 {
		opts.ActsDaysBack = 1
	}
	r := &Runner{api: api, loader: loader, opts: opts, logger: opts.Logger, now: opts.Now}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	if r.now == nil {
		r.now = time.Now
	}
	return r
}

// Names lists the known jobs in a stable order.
func Names() []string {
	return []string{Acts, Assembly, Reshipments, Stock, Supplies}
}

// Run executes the named job.
func (r *Runner) Run(ctx context.Context, name string) error {
	var fn func(context.Context) error
	switch name {
	case Acts:
		fn = r.RunActs
	case Assembly:
		fn = r.RunAssembly
	case Supplies:
		fn = r.RunSupplies
	case Reshipments:
		fn = r.RunReshipments
	case Stock:
		fn = r.RunStock
	default:
		return fmt.Errorf("jobs: unknown job %q", name)
	}

	start := r.now()
	r.logger.Info("job started", "job", name)
	err := fn(ctx)
	if err != nil {
		r.logger.Error("job failed", "job", name, "err", err, "elapsed", r.now().Sub(start))
	} else {
		r.logger.Info("job finished", "job", name, "elapsed", r.now().Sub(start))
	}
	if ferr := metrics.Flush(); ferr != nil {
		r.logger.Warn("metrics flush failed", "job", name, "err", ferr)
	}
	return err
}

// forEachAccount runs fn for every account with at most Workers in flight.
// Every account runs even when others fail; the failures are joined.
func (r *Runner) forEachAccount(ctx context.Context, job string, fn func(context.Context, marketplace.Account) error) error {
	if len(r.opts.Accounts) == 0 {
		return fmt.Errorf("jobs: %s: no accounts configured", job)
	}

	var (
		mu   sync.Mutex
		errs []error
		g    errgroup.Group
	)
	g.SetLimit(r.opts.Workers)
	for _, acct := range r.opts.Accounts {
		g.Go(func() error {
			if err := fn(ctx, acct); err != nil {
				r.logger.Error("account failed", "job", job, "account", acct.Name, "err", err)
				mu.Lock()
				errs = append(errs, fmt.Errorf("%s: %w", acct.Name, err))
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	return errors.Join(errs...)
}

// step times fn and records it under job/step.
func (r *Runner) step(job, name string, fn func() error) error {
	start := r.now()
	err := fn()
	metrics.RecordStep(job, name, err, r.now().Sub(start))
	return err
}

// load writes batch and logs the outcome for one account.
func (r *Runner) load(ctx context.Context, job, account string, c *schema.Contract, batch schema.Batch) error {
	return r.step(job, "load_"+c.Name(), func() error {
		n, err := r.loader.Load(ctx, c, batch)
		if err != nil {
			return err
		}
		r.logger.Info("rows loaded", "job", job, "account", account, "table", c.Name(), "rows", n)
		return nil
	})
}
