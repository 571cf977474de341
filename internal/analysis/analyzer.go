// Package analysis walks a JavaScript syntax tree once and records, for a
// whole source unit, the symbolic value of every binding and every call site.
package analysis

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/tavgar/endpointfinder/internal/symbolic"
	"github.com/tavgar/endpointfinder/internal/syntax"
)

// Analyzer builds a Result from a parsed source unit. It holds no per-unit
// state and may be shared between goroutines.
type Analyzer struct {
	logger *zap.Logger
}

// NewAnalyzer creates an Analyzer. A nil logger disables logging.
func NewAnalyzer(logger *zap.Logger) *Analyzer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Analyzer{logger: logger.Named("analysis")}
}

// Analyze runs the scope walk over tree. A node missing a child the grammar
// guarantees aborts the walk with a *syntax.MalformedNodeError.
func (a *Analyzer) Analyze(tree *syntax.Tree) (res *Result, err error) {
	if tree.HasError() {
		a.logger.Warn("source has syntax errors; analysis may be incomplete")
	}
	w := &walker{src: tree.Source(), result: NewResult(), logger: a.logger}

	defer recoverMalformed(&err)

	w.analyze(tree.Root(), nil, NewScope(), symbolic.GlobalScope, false)

	a.logger.Debug("analysis complete",
		zap.Int("bindings", w.result.Len()),
		zap.Int("invocations", len(w.result.Invocations())),
	)
	return w.result, nil
}

// recoverMalformed, deferred, turns a panic carrying a
// *syntax.MalformedNodeError into *err. Any other panic keeps unwinding.
func recoverMalformed(err *error) {
	r := recover()
	if r == nil {
		return
	}
	var malformed *syntax.MalformedNodeError
	if e, ok := r.(error); ok && errors.As(e, &malformed) {
		*err = malformed
		return
	}
	panic(r)
}

// AnalyzeSource parses src and analyzes it.
func (a *Analyzer) AnalyzeSource(ctx context.Context, src []byte) (*Result, error) {
	tree, err := syntax.Parse(ctx, src)
	if err != nil {
		return nil, err
	}
	defer tree.Close()

	res, err := a.Analyze(tree)
	if err != nil {
		return nil, fmt.Errorf("analyze: %w", err)
	}
	return res, nil
}
