// Package templates renders digest emails. Five layouts share one view model
// and differ in markup, summary length, and which actions they expose; the
// renderer picks among them with an image-aware weighted policy.
package templates

import (
	"embed"
	"fmt"
	"html/template"
	"math/rand/v2"
	"sync"
	"time"
)

//go:embed html/*.gohtml
var htmlFS embed.FS

// DefaultImageBias is the probability of choosing mobile_card when the
// digest carries at least one image.
const DefaultImageBias = 0.8

// Renderer owns the parsed layouts and the layout selection policy. It is
// safe for concurrent use.
type Renderer struct {
	layouts map[string]Layout
	names   []string
	tmpl    *template.Template
	bias    float64
	now     func() time.Time

	mu  sync.Mutex
	rng *rand.Rand
}

// Option configures a Renderer.
type Option func(*Renderer)

// WithRand sets the random source used by RenderRandom.
func WithRand(r *rand.Rand) Option {
	return func(rr *Renderer) {
		if r != nil {
			rr.rng = r
		}
	}
}

// WithImageBias overrides DefaultImageBias. Values outside [0,1] are ignored.
func WithImageBias(p float64) Option {
	return func(r *Renderer) {
		if p >= 0 && p <= 1 {
			r.bias = p
		}
	}
}

// WithClock sets the clock used when Data.GeneratedAt is zero.
func WithClock(now func() time.Time) Option {
	return func(r *Renderer) {
		if now != nil {
			r.now = now
		}
	}
}

// New parses the embedded templates and registers every layout.
func New(opts ...Option) (*Renderer, error) {
	tmpl, err := template.New("email").ParseFS(htmlFS, "html/*.gohtml")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	r := &Renderer{
		layouts: make(map[string]Layout, len(layoutSpecs)),
		tmpl:    tmpl,
		bias:    DefaultImageBias,
		now:     time.Now,
		rng:     rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0x9e3779b97f4a7c15)),
	}
	md := newSummaryHTML()
	for i := range layoutSpecs {
		s := &layoutSpecs[i]
		r.layouts[s.name] = &htmlLayout{spec: s, tmpl: tmpl, md: md}
		r.names = append(r.names, s.name)
	}
	for _, o := range opts {
		o(r)
	}
	return r, nil
}

// Names returns the registered layout names in a stable order.
func (r *Renderer) Names() []string {
	return append([]string(nil), r.names...)
}

// Layout returns the named layout.
func (r *Renderer) Layout(name string) (Layout, error) {
	l, ok := r.layouts[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTemplate, name)
	}
	return l, nil
}

// Validate returns the required fields of layout name that d lacks.
func (r *Renderer) Validate(name string, d *Data) ([]string, error) {
	l, err := r.Layout(name)
	if err != nil {
		return nil, err
	}
	return missingFields(l.RequiredFields(), d), nil
}

// Render produces the HTML for layout name. For a fixed name and fully
// populated Data (including GeneratedAt) the output is deterministic.
func (r *Renderer) Render(name string, d *Data) (string, error) {
	l, err := r.Layout(name)
	if err != nil {
		return "", err
	}
	if d != nil && d.GeneratedAt.IsZero() {
		cp := *d
		cp.GeneratedAt = r.now()
		d = &cp
	}
	return l.Render(d)
}

// RenderRandom picks a layout with Pick and renders it.
func (r *Renderer) RenderRandom(d *Data) (string, string, error) {
	name := r.Pick(d != nil && hasImages(d))
	out, err := r.Render(name, d)
	return name, out, err
}

// Pick chooses a layout name. With images, mobile_card wins outright with
// the image bias; otherwise, and always without images, every layout is
// equally likely.
func (r *Renderer) Pick(withImages bool) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if withImages && r.rng.Float64() < r.bias {
		return LayoutMobileCard
	}
	return r.names[r.rng.IntN(len(r.names))]
}

func hasImages(d *Data) bool {
	for _, s := range d.Categories {
		for _, a := range s.Articles {
			if a.HasImage() {
				return true
			}
		}
	}
	return false
}
