package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/lucasrosaalves/industrial-model/internal/engine"
	"github.com/lucasrosaalves/industrial-model/internal/ir"
	"github.com/lucasrosaalves/industrial-model/internal/model"
	"github.com/lucasrosaalves/industrial-model/internal/statement"
	"github.com/lucasrosaalves/industrial-model/internal/store"
	"github.com/lucasrosaalves/industrial-model/internal/testutil"
	"github.com/lucasrosaalves/industrial-model/internal/viewspec"
)

// Harness executes one scenario against its own store.
type Harness struct {
	store  *store.Store
	engine *engine.Engine
	views  *viewspec.Set
	seq    *testutil.Sequence
	logger *slog.Logger
}

// Run executes a scenario and returns the result.
//
// Each run uses a fresh in-memory database. Failed expectations and
// assertions are recorded in the result; the error return is reserved for
// scenarios that cannot run at all, such as unloadable views or a failing
// setup step.
func Run(scenario *Scenario) (*Result, error) {
	return RunWithLogger(scenario, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

// RunWithLogger is Run with engine and store logs sent to logger.
func RunWithLogger(scenario *Scenario, logger *slog.Logger) (*Result, error) {
	views, err := viewspec.Load(scenario.Views)
	if err != nil {
		return nil, fmt.Errorf("failed to load views: %w", err)
	}

	st, err := store.Open(":memory:", store.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	h := &Harness{
		store:  st,
		engine: engine.New(st, engine.WithLogger(logger)),
		views:  views,
		seq:    testutil.NewSequence(),
		logger: logger,
	}

	ctx := context.Background()
	result := NewResult()
	if err := h.executeSetup(ctx, scenario.Setup, result); err != nil {
		return nil, fmt.Errorf("failed to execute setup: %w", err)
	}
	h.executeFlow(ctx, scenario.Flow, result)

	actx := &AssertionContext{Ctx: ctx, Store: st, Views: views}
	for _, msg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(msg)
	}
	return result, nil
}

func (h *Harness) view(name string) (*model.Descriptor, error) {
	desc, ok := h.views.Descriptor(name)
	if !ok {
		return nil, fmt.Errorf("unknown view %q (declared: %v)", name, h.views.Names())
	}
	return desc, nil
}

func (h *Harness) executeSetup(ctx context.Context, setup []LoadStep, result *Result) error {
	for i, step := range setup {
		desc, err := h.view(step.View)
		if err != nil {
			return fmt.Errorf("setup step %d: %w", i, err)
		}
		docs := make([]engine.Document, len(step.Items))
		for j, item := range step.Items {
			docs[j] = engine.Document{Properties: item}
		}
		if err := h.engine.UpsertDocuments(ctx, desc, docs); err != nil {
			return fmt.Errorf("setup step %d: %w", i, err)
		}

		result.AddTrace(TraceEvent{Seq: h.seq.Next(), Type: EventLoad, View: desc.Name, Count: len(docs)})
		h.logger.Info("setup step completed", "step", i, "view", desc.Name, "count", len(docs))
	}
	return nil
}

// executeFlow runs every query step and checks its expect clause. A
// failing step does not stop the flow.
func (h *Harness) executeFlow(ctx context.Context, flow []QueryStep, result *Result) {
	for _, step := range flow {
		event := TraceEvent{Seq: h.seq.Next(), Type: EventQuery, Step: step.Name, View: step.View}
		err := h.runQuery(ctx, step, &event)
		if err != nil {
			event.Error = err.Error()
		}
		result.AddTrace(event)

		for _, msg := range checkExpect(step, event, err) {
			result.AddError(msg)
		}
		h.logger.Info("flow step completed",
			"step", step.Name,
			"view", step.View,
			"kind", event.Kind,
			"count", event.Count,
			"error", err,
		)
	}
}

func (h *Harness) runQuery(ctx context.Context, step QueryStep, event *TraceEvent) error {
	desc, err := h.view(step.View)
	if err != nil {
		return err
	}
	plan, err := step.Query.Plan(desc, statement.DefaultLimit)
	if err != nil {
		return err
	}
	event.Kind = plan.Kind
	if err := plan.Validate(); err != nil {
		return err
	}
	if event.Hash, err = ir.ContentHash(ir.DomainStatement, plan.Values()); err != nil {
		return err
	}

	res, err := plan.Run(ctx, h.engine)
	if err != nil {
		return err
	}
	event.Count = len(res.Items)
	event.HasNextPage = res.HasNextPage
	event.Items = res.Items
	return nil
}

// checkExpect compares a step's outcome with its expect clause.
func checkExpect(step QueryStep, event TraceEvent, err error) []string {
	exp := step.Expect
	if exp != nil && exp.Error != "" {
		if err == nil {
			return []string{fmt.Sprintf("step %s: expected error containing %q, got none", step.Name, exp.Error)}
		}
		if !strings.Contains(err.Error(), exp.Error) {
			return []string{fmt.Sprintf("step %s: expected error containing %q, got %q", step.Name, exp.Error, err.Error())}
		}
		return nil
	}
	if err != nil {
		return []string{fmt.Sprintf("step %s: %v", step.Name, err)}
	}
	if exp == nil {
		return nil
	}

	var errs []string
	if exp.Count != nil && *exp.Count != event.Count {
		errs = append(errs, fmt.Sprintf("step %s: expected %d item(s), got %d", step.Name, *exp.Count, event.Count))
	}
	if exp.HasNextPage != nil && *exp.HasNextPage != event.HasNextPage {
		errs = append(errs, fmt.Sprintf("step %s: expected hasNextPage %t, got %t", step.Name, *exp.HasNextPage, event.HasNextPage))
	}
	if len(exp.Items) > len(event.Items) {
		errs = append(errs, fmt.Sprintf("step %s: expected at least %d item(s), got %d", step.Name, len(exp.Items), len(event.Items)))
		return errs
	}
	for i, want := range exp.Items {
		if !matchSubset(event.Items[i], want) {
			errs = append(errs, fmt.Sprintf("step %s: item %d: expected %v, got %v", step.Name, i, want, event.Items[i]))
		}
	}
	return errs
}
