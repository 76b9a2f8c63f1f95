package splat

import (
	"fmt"
	"time"
)

// Pass names in execution order.
const (
	PassConversion   = "conversion"
	PassDepthPrepass = "depth_prepass"
	PassCompaction   = "compaction"
	PassRadixSort    = "radix_sort"
	PassComposite    = "composite"
	PassRelighting   = "relighting"
)

// RenderPass is one stage of the frame pipeline.
type RenderPass interface {
	// Name returns the pass name used by EnablePass and the timings.
	Name() string

	// Execute runs the pass against rc.
	Execute(rc *RenderContext) error
}

// PassState is the arming state of a pass.
type PassState int

const (
	// PassDisabled passes are skipped.
	PassDisabled PassState = iota

	// PassArmed passes run on the next Execute.
	PassArmed
)

// String returns the pass state name.
func (s PassState) String() string {
	switch s {
	case PassDisabled:
		return "Disabled"
	case PassArmed:
		return "Armed"
	default:
		return "Unknown"
	}
}

// RearmPolicy decides the state of a pass after it ran.
type RearmPolicy int

const (
	// RearmManual passes disarm after one run and wait for SetEnabled.
	RearmManual RearmPolicy = iota

	// RearmEveryFrame passes stay armed.
	RearmEveryFrame
)

// String returns the rearm policy name.
func (p RearmPolicy) String() string {
	switch p {
	case RearmManual:
		return "Manual"
	case RearmEveryFrame:
		return "EveryFrame"
	default:
		return "Unknown"
	}
}

type passEntry struct {
	pass   RenderPass
	state  PassState
	policy RearmPolicy
}

// Pipeline runs render passes in the order they were added.
type Pipeline struct {
	passes []passEntry
}

// Add appends a pass with its initial state and rearm policy. A pass with
// an existing name replaces the old entry in place.
func (p *Pipeline) Add(pass RenderPass, state PassState, policy RearmPolicy) {
	e := passEntry{pass: pass, state: state, policy: policy}
	if i := p.find(pass.Name()); i >= 0 {
		p.passes[i] = e
		return
	}
	p.passes = append(p.passes, e)
}

func (p *Pipeline) find(name string) int {
	for i := range p.passes {
		if p.passes[i].pass.Name() == name {
			return i
		}
	}
	return -1
}

// Names returns the pass names in execution order.
func (p *Pipeline) Names() []string {
	names := make([]string, len(p.passes))
	for i := range p.passes {
		names[i] = p.passes[i].pass.Name()
	}
	return names
}

// State returns the state of the named pass.
func (p *Pipeline) State(name string) (PassState, error) {
	i := p.find(name)
	if i < 0 {
		return PassDisabled, fmt.Errorf("%w: %q", ErrUnknownPass, name)
	}
	return p.passes[i].state, nil
}

// IsEnabled reports whether the named pass is armed. Unknown names report
// false.
func (p *Pipeline) IsEnabled(name string) bool {
	s, err := p.State(name)
	return err == nil && s == PassArmed
}

// SetEnabled arms or disarms the named pass.
func (p *Pipeline) SetEnabled(name string, enabled bool) error {
	i := p.find(name)
	if i < 0 {
		return fmt.Errorf("%w: %q", ErrUnknownPass, name)
	}
	if enabled {
		p.passes[i].state = PassArmed
	} else {
		p.passes[i].state = PassDisabled
	}
	return nil
}

// Execute runs every armed pass in order and records its duration into
// rc. The first error aborts the frame. Manual passes disarm after they
// ran, even when they failed.
func (p *Pipeline) Execute(rc *RenderContext) error {
	rc.timings = rc.timings[:0]
	for i := range p.passes {
		e := &p.passes[i]
		if e.state != PassArmed {
			continue
		}
		start := time.Now()
		err := e.pass.Execute(rc)
		rc.timings = append(rc.timings, PassTiming{Name: e.pass.Name(), Duration: time.Since(start)})
		if e.policy == RearmManual {
			e.state = PassDisabled
		}
		if err != nil {
			return fmt.Errorf("splat: pass %s: %w", e.pass.Name(), err)
		}
	}
	return nil
}
