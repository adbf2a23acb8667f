// Package dispatch invokes the external tool a plan names and isolates its
// failures. Every tool call runs under a timeout and behind a panic
// boundary; the outcome is always a tagged Result, never a propagated fault.
// No tool is retried: one failed attempt degrades to a recovery reply.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Tanz2024/Zuschat-Rag-API-sub001/internal/catalog"
	"github.com/Tanz2024/Zuschat-Rag-API-sub001/internal/planner"
	"github.com/Tanz2024/Zuschat-Rag-API-sub001/internal/tools"
)

// ErrorKind tags the failure modes the composer knows how to recover from.
type ErrorKind string

const (
	ErrNone           ErrorKind = ""
	ErrTimeout        ErrorKind = "timeout"
	ErrEmptyResult    ErrorKind = "empty_result"
	ErrDivisionByZero ErrorKind = "division_by_zero"
	ErrBadExpression  ErrorKind = "bad_expression"
	ErrInternal       ErrorKind = "internal"
)

// Result is the normalized outcome of one tool call.
type Result struct {
	OK       bool
	Products []catalog.Product
	Outlets  []catalog.Outlet
	Number   float64
	// PartialCount is how many outlets the city filter alone matched when
	// the combined filters matched none, so the fallback reply can say so.
	PartialCount int
	Kind         ErrorKind
	Detail       string
}

// ProductSearcher finds products for a free-text query. Unmatched queries
// return an empty slice, not an error.
type ProductSearcher interface {
	Search(ctx context.Context, query string) ([]catalog.Product, error)
}

// OutletSearcher finds outlets for optional, combinable filters.
type OutletSearcher interface {
	Search(ctx context.Context, filters tools.OutletFilters) ([]catalog.Outlet, error)
}

// Evaluator computes an arithmetic expression, failing distinguishably for
// division by zero and for unparseable syntax.
type Evaluator interface {
	Evaluate(ctx context.Context, expr string) (float64, error)
}

// Dispatcher routes plans to tools.
type Dispatcher struct {
	products ProductSearcher
	outlets  OutletSearcher
	calc     Evaluator
	timeout  time.Duration
}

func New(products ProductSearcher, outlets OutletSearcher, calc Evaluator, timeout time.Duration) *Dispatcher {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Dispatcher{products: products, outlets: outlets, calc: calc, timeout: timeout}
}

// Dispatch runs the planned tool call. The passed context carries the
// caller's cancellation; the dispatcher layers its own timeout on top.
func (d *Dispatcher) Dispatch(ctx context.Context, plan planner.Plan) Result {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	switch plan.Tool {
	case planner.ToolProductSearch:
		return d.dispatchProducts(ctx, plan.Args.Query)
	case planner.ToolOutletSearch:
		return d.dispatchOutlets(ctx, plan.Args.Filters)
	case planner.ToolCalculator:
		return d.dispatchCalculator(ctx, plan.Args.Expression)
	default:
		return Result{Kind: ErrInternal, Detail: fmt.Sprintf("no tool named %q", plan.Tool)}
	}
}

func (d *Dispatcher) dispatchProducts(ctx context.Context, query string) Result {
	var products []catalog.Product
	err := d.run(ctx, func(ctx context.Context) error {
		var inner error
		products, inner = d.products.Search(ctx, query)
		return inner
	})
	if err != nil {
		return classify(err)
	}
	if len(products) == 0 {
		return Result{Kind: ErrEmptyResult, Detail: "no products matched"}
	}
	return Result{OK: true, Products: products}
}

func (d *Dispatcher) dispatchOutlets(ctx context.Context, filters tools.OutletFilters) Result {
	var outlets []catalog.Outlet
	err := d.run(ctx, func(ctx context.Context) error {
		var inner error
		outlets, inner = d.outlets.Search(ctx, filters)
		return inner
	})
	if err != nil {
		return classify(err)
	}
	if len(outlets) > 0 {
		return Result{OK: true, Outlets: outlets}
	}

	res := Result{Kind: ErrEmptyResult, Detail: "no outlets matched"}
	// When both filters were set, report how far the city filter alone got
	// so the fallback reply can name a partial count.
	if filters.City != "" && filters.Service != "" {
		var partial []catalog.Outlet
		probeErr := d.run(ctx, func(ctx context.Context) error {
			var inner error
			partial, inner = d.outlets.Search(ctx, tools.OutletFilters{City: filters.City})
			return inner
		})
		if probeErr == nil {
			res.PartialCount = len(partial)
		}
	}
	return res
}

func (d *Dispatcher) dispatchCalculator(ctx context.Context, expr string) Result {
	var number float64
	err := d.run(ctx, func(ctx context.Context) error {
		var inner error
		number, inner = d.calc.Evaluate(ctx, expr)
		return inner
	})
	if err != nil {
		return classify(err)
	}
	return Result{OK: true, Number: number}
}

// run executes fn in its own goroutine so a stuck tool cannot outlive the
// timeout, and converts a panic inside the tool into a plain error.
func (d *Dispatcher) run(ctx context.Context, fn func(context.Context) error) error {
	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("tool panic: %v", r)
			}
		}()
		done <- fn(ctx)
	}()

	select {
	case <-ctx.Done():
		// The goroutine is abandoned; its buffered send cannot block.
		return ctx.Err()
	case err := <-done:
		return err
	}
}

func classify(err error) Result {
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return Result{Kind: ErrTimeout, Detail: err.Error()}
	case errors.Is(err, tools.ErrDivisionByZero):
		return Result{Kind: ErrDivisionByZero, Detail: err.Error()}
	case errors.Is(err, tools.ErrBadExpression):
		return Result{Kind: ErrBadExpression, Detail: err.Error()}
	default:
		return Result{Kind: ErrInternal, Detail: err.Error()}
	}
}
