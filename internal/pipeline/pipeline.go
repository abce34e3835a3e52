// Copyright 2025 James Ross
package pipeline

import "fmt"

// Pipeline is an ordered, mutable list of steps. Steps are instantiated
// once per job execution; any stateful intermediate fields a step keeps
// must be reset in Validate.
type Pipeline struct {
	steps []Step
}

func New() *Pipeline {
	return &Pipeline{}
}

func (p *Pipeline) AddStep(s Step) *Pipeline {
	p.steps = append(p.steps, s)
	return p
}

func (p *Pipeline) AddSteps(steps ...Step) *Pipeline {
	p.steps = append(p.steps, steps...)
	return p
}

func (p *Pipeline) InsertStep(index int, s Step) error {
	if index < 0 || index > len(p.steps) {
		return fmt.Errorf("insert step: index %d out of range [0,%d]", index, len(p.steps))
	}
	p.steps = append(p.steps, nil)
	copy(p.steps[index+1:], p.steps[index:])
	p.steps[index] = s
	return nil
}

func (p *Pipeline) RemoveStep(name string) error {
	for i, s := range p.steps {
		if s.Name() == name {
			p.steps = append(p.steps[:i], p.steps[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("remove step: %q not found", name)
}

func (p *Pipeline) ClearSteps() {
	p.steps = nil
}

func (p *Pipeline) StepCount() int {
	return len(p.steps)
}

func (p *Pipeline) Steps() []Step {
	out := make([]Step, len(p.steps))
	copy(out, p.steps)
	return out
}

// Default returns the spec.md §4.5 default composition in declared order.
func Default(steps ...Step) *Pipeline {
	return New().AddSteps(steps...)
}
