// Package filter narrows a change list with an operator-supplied expr-lang
// expression, e.g.
//
//	district == "Wan Chai" && weekday in ["Sat", "Sun"] && current >= 2
package filter

import (
	"fmt"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/bassista/court_watch/internal/logger"
	"github.com/bassista/court_watch/internal/model"
)

// Env is what an expression can see about one change.
type Env struct {
	Kind      string `expr:"kind"`
	Venue     string `expr:"venue"`
	District  string `expr:"district"`
	Date      string `expr:"date"`
	Weekday   string `expr:"weekday"`
	Start     string `expr:"start"`
	End       string `expr:"end"`
	TimeRange string `expr:"timeRange"`
	Current   int    `expr:"current"`
	Previous  int    `expr:"previous"`
}

// Filter is a compiled expression. The zero value and nil keep everything.
type Filter struct {
	source  string
	program *vm.Program
}

// Compile parses expression. An empty expression yields a pass-through filter.
func Compile(expression string) (*Filter, error) {
	expression = strings.TrimSpace(expression)
	if expression == "" {
		return &Filter{}, nil
	}
	program, err := expr.Compile(expression, expr.Env(Env{}), expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("compile filter %q: %w", expression, err)
	}
	return &Filter{source: expression, program: program}, nil
}

// String returns the source expression.
func (f *Filter) String() string {
	if f == nil {
		return ""
	}
	return f.source
}

// Apply returns the changes matching the expression, preserving order.
// A change whose evaluation fails is kept.
func (f *Filter) Apply(changes []model.Change) []model.Change {
	if f == nil || f.program == nil {
		return changes
	}

	kept := make([]model.Change, 0, len(changes))
	for _, c := range changes {
		ok, err := f.match(c)
		if err != nil {
			logger.WithComponent("filter").Warnf("filter evaluation failed for %s %s %s, keeping change: %v", c.Venue, c.Date, c.TimeRange, err)
			kept = append(kept, c)
			continue
		}
		if ok {
			kept = append(kept, c)
		}
	}
	return kept
}

func (f *Filter) match(c model.Change) (bool, error) {
	out, err := expr.Run(f.program, envFor(c))
	if err != nil {
		return false, err
	}
	b, ok := out.(bool)
	if !ok {
		return false, fmt.Errorf("filter returned %T, want bool", out)
	}
	return b, nil
}

func envFor(c model.Change) Env {
	start, end, _ := strings.Cut(c.TimeRange, "-")
	return Env{
		Kind:      string(c.Kind),
		Venue:     c.Venue,
		District:  c.District,
		Date:      c.Date,
		Weekday:   model.Weekday(c.Date),
		Start:     start,
		End:       end,
		TimeRange: c.TimeRange,
		Current:   c.CurrentCount,
		Previous:  c.PreviousCount,
	}
}
