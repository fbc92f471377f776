package config

import (
	_ "embed"
	"fmt"
	"os"
	"sort"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"

	"github.com/roach88/podctl/internal/engine"
	"github.com/roach88/podctl/internal/pod"
)

//go:embed schema.cue
var schemaSource string

// Profile is a resolved run profile.
//
// The required-ready sets are effective values: on a bench run the
// bench-exempt modules have already been removed from them.
type Profile struct {
	Name        string `json:"name"`
	OfficialRun bool   `json:"official_run"`
	Source      string `json:"source,omitempty"`

	CyclePeriod     time.Duration `json:"cycle_period"`
	RunLength       float64       `json:"run_length"`
	BrakingMargin   float64       `json:"braking_margin"`
	CruiseVelocity  float64       `json:"cruise_velocity"`
	StoppedVelocity float64       `json:"stopped_velocity"`

	Subscribed       pod.ModuleSet `json:"subscribed"`
	CalibratingReady pod.ModuleSet `json:"calibrating_ready"`
	LaunchReady      pod.ModuleSet `json:"launch_ready"`
	BenchExempt      pod.ModuleSet `json:"bench_exempt"`

	Timeouts map[pod.Phase]engine.Timeout `json:"-"`

	RecorderPath string `json:"recorder_path,omitempty"`
}

// Policy returns the engine policy of the profile.
func (p *Profile) Policy() engine.Policy {
	timeouts := make(map[pod.Phase]engine.Timeout, len(p.Timeouts))
	for phase, t := range p.Timeouts {
		timeouts[phase] = t
	}
	return engine.Policy{
		Subscribed:       p.Subscribed,
		CalibratingReady: p.CalibratingReady,
		LaunchReady:      p.LaunchReady,
		RunLength:        p.RunLength,
		BrakingMargin:    p.BrakingMargin,
		CruiseVelocity:   p.CruiseVelocity,
		StoppedVelocity:  p.StoppedVelocity,
		CyclePeriod:      p.CyclePeriod,
		Timeouts:         timeouts,
	}
}

// TimeoutPhases returns the phases with a guard, in progression order.
func (p *Profile) TimeoutPhases() []pod.Phase {
	var phases []pod.Phase
	for _, phase := range pod.AllPhases {
		if _, ok := p.Timeouts[phase]; ok {
			phases = append(phases, phase)
		}
	}
	return phases
}

// Default returns the profile obtained from an empty source.
func Default() *Profile {
	p, err := Parse(nil, "default.cue")
	if err != nil {
		panic(fmt.Sprintf("config: embedded schema defaults invalid: %v", err))
	}
	return p
}

// Load reads a profile from a .cue file, or from the CUE package in a
// directory.
func Load(path string) (*Profile, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, &ProfileError{Field: "path", Message: err.Error()}
	}
	if !info.IsDir() {
		src, err := os.ReadFile(path)
		if err != nil {
			return nil, &ProfileError{Field: "path", Message: err.Error()}
		}
		return Parse(src, path)
	}

	ctx := cuecontext.New()
	instances := load.Instances([]string{"."}, &load.Config{Dir: path})
	if len(instances) == 0 {
		return nil, &ProfileError{Field: "path", Message: fmt.Sprintf("no CUE package in %s", path)}
	}
	if err := instances[0].Err; err != nil {
		return nil, formatCUEError(err)
	}
	user := ctx.BuildInstance(instances[0])
	return resolve(ctx, user, path)
}

// Parse resolves a profile from CUE source. filename is used in error
// positions only.
func Parse(src []byte, filename string) (*Profile, error) {
	ctx := cuecontext.New()
	user := ctx.CompileBytes(src, cue.Filename(filename))
	return resolve(ctx, user, filename)
}

func resolve(ctx *cue.Context, user cue.Value, source string) (*Profile, error) {
	if err := user.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	v := schema.LookupPath(cue.ParsePath("#Profile")).Unify(user)
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, formatCUEError(err)
	}

	var doc profileDoc
	if err := v.Decode(&doc); err != nil {
		return nil, formatCUEError(err)
	}

	p, err := doc.resolve(v)
	if err != nil {
		return nil, err
	}
	p.Source = source

	if err := p.Policy().Validate(); err != nil {
		return nil, &ProfileError{Field: "policy", Message: err.Error(), Pos: v.Pos()}
	}
	return p, nil
}

// profileDoc mirrors #Profile for decoding.
type profileDoc struct {
	Name            string  `json:"name"`
	OfficialRun     bool    `json:"official_run"`
	CyclePeriod     string  `json:"cycle_period"`
	RunLength       float64 `json:"run_length"`
	BrakingMargin   float64 `json:"braking_margin"`
	CruiseVelocity  float64 `json:"cruise_velocity"`
	StoppedVelocity float64 `json:"stopped_velocity"`

	Subscribed    []string `json:"subscribed"`
	RequiredReady struct {
		Calibrating []string `json:"calibrating"`
		Launch      []string `json:"launch"`
	} `json:"required_ready"`
	BenchExempt []string `json:"bench_exempt"`

	Timeouts *map[string]timeoutDoc `json:"timeouts"`

	Recorder struct {
		Path string `json:"path"`
	} `json:"recorder"`
}

type timeoutDoc struct {
	After      string `json:"after"`
	EscalateTo string `json:"escalate_to"`
}

func (d *profileDoc) resolve(v cue.Value) (*Profile, error) {
	fieldErr := func(field, msg string) error {
		return &ProfileError{Field: field, Message: msg, Pos: v.LookupPath(cue.ParsePath(field)).Pos()}
	}

	p := &Profile{
		Name:            d.Name,
		OfficialRun:     d.OfficialRun,
		RunLength:       d.RunLength,
		BrakingMargin:   d.BrakingMargin,
		CruiseVelocity:  d.CruiseVelocity,
		StoppedVelocity: d.StoppedVelocity,
		RecorderPath:    d.Recorder.Path,
	}

	var err error
	if p.CyclePeriod, err = time.ParseDuration(d.CyclePeriod); err != nil {
		return nil, fieldErr("cycle_period", err.Error())
	}

	sets := []struct {
		field string
		names []string
		dst   *pod.ModuleSet
	}{
		{"subscribed", d.Subscribed, &p.Subscribed},
		{"required_ready.calibrating", d.RequiredReady.Calibrating, &p.CalibratingReady},
		{"required_ready.launch", d.RequiredReady.Launch, &p.LaunchReady},
		{"bench_exempt", d.BenchExempt, &p.BenchExempt},
	}
	for _, s := range sets {
		if *s.dst, err = pod.ParseModuleSet(s.names); err != nil {
			return nil, fieldErr(s.field, err.Error())
		}
	}

	if !p.OfficialRun {
		p.CalibratingReady = p.CalibratingReady.Subtract(p.BenchExempt)
		p.LaunchReady = p.LaunchReady.Subtract(p.BenchExempt)
	}
	if extra := p.CalibratingReady.Subtract(p.Subscribed); !extra.Empty() {
		return nil, fieldErr("required_ready.calibrating", fmt.Sprintf("modules %s are not subscribed", extra))
	}
	if extra := p.LaunchReady.Subtract(p.Subscribed); !extra.Empty() {
		return nil, fieldErr("required_ready.launch", fmt.Sprintf("modules %s are not subscribed", extra))
	}

	if d.Timeouts == nil {
		p.Timeouts = engine.DefaultTimeouts()
		return p, nil
	}

	p.Timeouts = make(map[pod.Phase]engine.Timeout, len(*d.Timeouts))
	names := make([]string, 0, len(*d.Timeouts))
	for name := range *d.Timeouts {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		td := (*d.Timeouts)[name]
		field := "timeouts." + name

		phase, err := pod.ParsePhase(name)
		if err != nil {
			return nil, fieldErr(field, err.Error())
		}
		if phase.IsTerminal() {
			return nil, fieldErr(field, "terminal phases cannot time out")
		}
		after, err := time.ParseDuration(td.After)
		if err != nil {
			return nil, fieldErr(field+".after", err.Error())
		}
		if after <= 0 {
			return nil, fieldErr(field+".after", "timeout must be positive")
		}
		target, err := pod.ParsePhase(td.EscalateTo)
		if err != nil {
			return nil, fieldErr(field+".escalate_to", err.Error())
		}
		if !pod.CanTransition(phase, target) {
			return nil, fieldErr(field+".escalate_to", fmt.Sprintf("%s cannot escalate to %s", phase, target))
		}
		p.Timeouts[phase] = engine.Timeout{After: after, EscalateTo: target}
	}
	return p, nil
}
