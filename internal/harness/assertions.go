package harness

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/lucasrosaalves/industrial-model/internal/ir"
	"github.com/lucasrosaalves/industrial-model/internal/model"
	"github.com/lucasrosaalves/industrial-model/internal/store"
	"github.com/lucasrosaalves/industrial-model/internal/viewspec"
)

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
	Trace    []TraceEvent
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, event := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s %s", event.Seq, event.Type, event.View)
			if event.Step != "" {
				fmt.Fprintf(&buf, " %s", event.Step)
			}
			fmt.Fprintf(&buf, " (%d item(s))\n", event.Count)
		}
	}
	return buf.String()
}

func stepEvent(trace []TraceEvent, assertion Assertion) (TraceEvent, error) {
	for _, event := range trace {
		if event.Type == EventQuery && event.Step == assertion.Step {
			return event, nil
		}
	}
	return TraceEvent{}, &AssertionError{
		Type:     assertion.Type,
		Expected: fmt.Sprintf("step %q in trace", assertion.Step),
		Actual:   "not found",
		Trace:    trace,
	}
}

// assertResultContains checks that some item of the step matches
// assertion.Match.
func assertResultContains(trace []TraceEvent, assertion Assertion) error {
	event, err := stepEvent(trace, assertion)
	if err != nil {
		return err
	}
	for _, item := range event.Items {
		if matchSubset(item, assertion.Match) {
			return nil
		}
	}
	return &AssertionError{
		Type:     AssertResultContains,
		Expected: fmt.Sprintf("step %s to return an item matching %v", assertion.Step, assertion.Match),
		Actual:   fmt.Sprintf("%d item(s), none matching", len(event.Items)),
		Trace:    trace,
	}
}

// assertResultOrder checks that items carrying assertion.Values in
// assertion.Property appear in that order. Other items may come between.
func assertResultOrder(trace []TraceEvent, assertion Assertion) error {
	event, err := stepEvent(trace, assertion)
	if err != nil {
		return err
	}

	positions := make([]int, len(assertion.Values))
	for i, want := range assertion.Values {
		positions[i] = -1
		for j, item := range event.Items {
			if valuesEqual(item[assertion.Property], want) {
				positions[i] = j
				break
			}
		}
		if positions[i] < 0 {
			return &AssertionError{
				Type:     AssertResultOrder,
				Expected: fmt.Sprintf("%s = %v in step %s", assertion.Property, want, assertion.Step),
				Actual:   "no such item",
				Trace:    trace,
			}
		}
	}

	for i := 1; i < len(positions); i++ {
		if positions[i-1] >= positions[i] {
			return &AssertionError{
				Type:     AssertResultOrder,
				Expected: fmt.Sprintf("%s in order %v", assertion.Property, assertion.Values),
				Actual: fmt.Sprintf("%v (pos %d) should be before %v (pos %d)",
					assertion.Values[i-1], positions[i-1], assertion.Values[i], positions[i]),
				Trace: trace,
			}
		}
	}
	return nil
}

// assertResultCount checks the number of items a step returned.
func assertResultCount(trace []TraceEvent, assertion Assertion) error {
	event, err := stepEvent(trace, assertion)
	if err != nil {
		return err
	}
	if event.Count != assertion.Count {
		return &AssertionError{
			Type:     AssertResultCount,
			Expected: fmt.Sprintf("%d item(s) from step %s", assertion.Count, assertion.Step),
			Actual:   fmt.Sprintf("%d item(s)", event.Count),
			Trace:    trace,
		}
	}
	return nil
}

// assertFinalState reads one instance from the store and checks its
// properties against assertion.Expect.
func assertFinalState(ctx context.Context, st *store.Store, views *viewspec.Set, assertion Assertion) error {
	if assertion.View == "" || assertion.ExternalID == "" || assertion.Space == "" {
		return fmt.Errorf("final_state assertion requires view, externalId and space")
	}
	desc, ok := views.Descriptor(assertion.View)
	if !ok {
		return fmt.Errorf("final_state assertion: unknown view %q", assertion.View)
	}

	id := model.InstanceID{ExternalID: assertion.ExternalID, Space: assertion.Space}
	docs, err := st.Get(ctx, desc, id)
	if err != nil {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("read %s %s", desc.Name, id),
			Actual:   fmt.Sprintf("store error: %v", err),
		}
	}
	if len(docs) == 0 {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("instance %s of %s", id, desc.Name),
			Actual:   "instance not found",
		}
	}

	props := docs[0].Properties
	for key, want := range assertion.Expect {
		got, exists := props[key]
		if !exists {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("property %q to exist", key),
				Actual:   fmt.Sprintf("property %q not stored", key),
			}
		}
		if !matchSubset(got, want) {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("property %q = %v", key, want),
				Actual:   fmt.Sprintf("property %q = %v", key, got),
			}
		}
	}
	return nil
}

// matchSubset reports whether actual contains expected. Maps match when
// every expected key matches; everything else compares by value.
func matchSubset(actual, expected any) bool {
	want, ok := expected.(map[string]any)
	if !ok {
		return valuesEqual(actual, expected)
	}
	got, ok := actual.(map[string]any)
	if !ok {
		return false
	}
	for key, v := range want {
		g, exists := got[key]
		if !exists || !matchSubset(g, v) {
			return false
		}
	}
	return true
}

// valuesEqual compares canonical encodings, so integers decoded from YAML
// match the floats decoded from stored JSON.
func valuesEqual(actual, expected any) bool {
	a, err := ir.MarshalCanonical(actual)
	if err != nil {
		return false
	}
	e, err := ir.MarshalCanonical(expected)
	if err != nil {
		return false
	}
	return bytes.Equal(a, e)
}

// AssertionContext provides store access for final_state assertions.
type AssertionContext struct {
	Ctx   context.Context
	Store *store.Store
	Views *viewspec.Set
}

// EvaluateAssertions evaluates all assertions against the result and
// returns the failure messages.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errs []string
	for i, assertion := range assertions {
		var err error
		switch assertion.Type {
		case AssertResultContains:
			err = assertResultContains(result.Trace, assertion)
		case AssertResultOrder:
			err = assertResultOrder(result.Trace, assertion)
		case AssertResultCount:
			err = assertResultCount(result.Trace, assertion)
		case AssertFinalState:
			if actx == nil || actx.Store == nil || actx.Views == nil {
				err = fmt.Errorf("assertion[%d]: final_state requires store context", i)
			} else {
				err = assertFinalState(actx.Ctx, actx.Store, actx.Views, assertion)
			}
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}
		if err != nil {
			errs = append(errs, err.Error())
		}
	}
	return errs
}
