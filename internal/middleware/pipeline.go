package middleware

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Stage is one named step of the request pipeline. A stage either answers the
// request itself or delegates to next.
type Stage struct {
	Name    string
	Handler func(next http.Handler) http.Handler
}

// Pipeline is an ordered list of stages, outermost first. It is assembled once
// at start-up and never reordered.
type Pipeline struct {
	stages []Stage
}

// NewPipeline creates a pipeline from stages in order. Stages with a nil
// handler are skipped so optional steps can be listed inline.
func NewPipeline(stages ...Stage) *Pipeline {
	p := &Pipeline{stages: make([]Stage, 0, len(stages))}
	for _, s := range stages {
		if s.Handler != nil {
			p.stages = append(p.stages, s)
		}
	}
	return p
}

// Names returns the stage names, outermost first
func (p *Pipeline) Names() []string {
	names := make([]string, len(p.stages))
	for i, s := range p.stages {
		names[i] = s.Name
	}
	return names
}

// Middlewares returns the stage handlers in order
func (p *Pipeline) Middlewares() chi.Middlewares {
	mws := make(chi.Middlewares, len(p.stages))
	for i, s := range p.stages {
		mws[i] = s.Handler
	}
	return mws
}

// Apply installs the pipeline on a router. It must run before any route is
// registered. Stages then see chi's route context, and unmatched routes still
// pass through every stage.
func (p *Pipeline) Apply(r chi.Router) {
	r.Use(p.Middlewares()...)
}
