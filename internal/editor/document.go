package editor

import (
	"time"

	"github.com/csicar/tables/internal/core/block"
	"github.com/csicar/tables/internal/core/blocks/document"
	"github.com/csicar/tables/internal/core/blocks/expr"
	"github.com/csicar/tables/internal/core/blocks/library"
	"github.com/csicar/tables/internal/core/blocks/selector"
	"github.com/csicar/tables/internal/core/env"
	"github.com/csicar/tables/internal/core/eval"
	"github.com/csicar/tables/internal/core/forest"
	"github.com/csicar/tables/internal/core/events/bus"
	"github.com/csicar/tables/internal/core/history"
	"github.com/csicar/tables/internal/core/observability/log"
	"github.com/csicar/tables/internal/core/storage"
)

// Document is what the editor hosts: a document whose pages each choose a
// block from the library.
type Document = document.State[selector.State]

// DocumentBlock is the history-wrapped document block.
type DocumentBlock = history.Block[Document]

type (
	DocumentSession   = Session[Document]
	DocumentWorkspace = Workspace[Document]
)

// NewDocumentBlock builds the document block over the blocks in reg. A nil
// clock uses time.Now.
func NewDocumentBlock(reg *block.Registry, ev eval.Evaluator, divisor int, clock func() time.Time) DocumentBlock {
	pages := document.New[selector.State](selector.New(reg.Env(), ev))
	b := history.Wrap[Document](pages, clock)
	if divisor > 0 {
		b.Divisor = float64(divisor)
	}
	return b
}

// Pages returns the document block inside b, for building page operations.
func Pages(b DocumentBlock) document.Block[selector.State] {
	return b.Inner.(document.Block[selector.State])
}

// NewDocumentWorkspace opens document sessions for keys in store.
func NewDocumentWorkspace(b DocumentBlock, store storage.Storage, events bus.EventBus, logger log.Log) *DocumentWorkspace {
	return NewWorkspace(store, logger, func(key string) *DocumentSession {
		return NewSession(key, b, store, events, logger)
	})
}

// FindPage returns the path of the top-level page called name.
func FindPage(d Document, name string) (forest.Path, bool) {
	for _, p := range d.Pages {
		if forest.EffectiveName(p) == name {
			return forest.Path{p.ID}, true
		}
	}
	return nil, false
}

// SetPage makes the top-level page called name an expression evaluating
// code and opens it. The page is appended if there is none. This is a single
// edit.
func SetPage(s *DocumentSession, b DocumentBlock, ev eval.Evaluator, name, code string) {
	pages := Pages(b)
	sel := pages.Inner.(selector.Block)
	exprs := expr.New(ev)
	s.Update(func(d Document) Document {
		scope, update := s.Scope(), s.Updater()
		path, ok := FindPage(d, name)
		if !ok {
			d = pages.AddPage(d, nil, scope, update)
			path = d.Open
			d = pages.RenamePage(d, path, name, scope, update)
		}
		d = document.OpenPage[selector.State](path)(d)
		return pages.UpdatePageWithEnv(d, path, func(st selector.State, e env.Env) selector.State {
			if st.Mode != selector.Run || st.Expr != library.ExprTag {
				st = sel.Choose(library.ExprTag, e, nil)(st)
			}
			return selector.UpdateInner(func(inner any) any {
				current, _ := inner.(expr.State)
				return exprs.Set(code, e)(current)
			})(st)
		}, scope, update)
	})
}
