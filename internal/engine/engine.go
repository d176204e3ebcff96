// Package engine computes per-bin fake-lepton fractions from the
// anti-isolated control region of a set of sample stores.
package engine

import (
	"context"
	"fmt"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"jetfakes/domain/core"
	"jetfakes/domain/fraction"
	"jetfakes/domain/histogram"
	"jetfakes/domain/region"
	"jetfakes/domain/sample"
	"jetfakes/domain/table"
	"jetfakes/internal"
	"jetfakes/ports"
)

// Engine runs the fraction computation for one channel/period at a time.
// It holds no per-run state and may be shared.
type Engine struct {
	source     ports.EventSource
	classifier *sample.Classifier
	logger     *internal.Logger
	xAxis      histogram.Axis
	yAxis      histogram.Axis
}

// Option configures an Engine
type Option func(*Engine)

// WithClassifier replaces the default sample registry
func WithClassifier(c *sample.Classifier) Option {
	return func(e *Engine) { e.classifier = c }
}

// WithLogger sets the engine logger
func WithLogger(l *internal.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithAxes overrides the (visible mass, jet count) binning
func WithAxes(x, y histogram.Axis) Option {
	return func(e *Engine) { e.xAxis, e.yAxis = x, y }
}

// New creates an engine reading from source
func New(source ports.EventSource, opts ...Option) *Engine {
	x, y := fraction.DefaultAxes()
	e := &Engine{
		source:     source,
		classifier: sample.DefaultClassifier(),
		logger:     internal.NopLogger(),
		xAxis:      x,
		yAxis:      y,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Request selects what to compute. An empty Samples list means every
// registered sample.
type Request struct {
	Channel string
	Period  string
	Samples []string
}

// Result is the complete output of one run. Nothing is persisted by the
// engine; callers write Fractions and PreFakes only after Run succeeds.
type Result struct {
	Fractions *fraction.Set
	PreFakes  *table.Table
	Stats     RunStats
}

// RunStats counts what the run touched
type RunStats struct {
	Samples   int                     `json:"samples"`
	Events    int                     `json:"events"`
	Dropped   int                     `json:"dropped"`
	Selected  region.Selection        `json:"selected"`
	PreFakes  int                     `json:"pre_fakes_rows"`
	Duration  time.Duration           `json:"duration"`
	PerSample map[string]SampleCounts `json:"per_sample"`
}

// SampleCounts is the per-sample share of RunStats
type SampleCounts struct {
	Group  sample.Group `json:"group"`
	Events int          `json:"events"`
	Yield  float64      `json:"yield"`
}

type groupHists map[sample.Group]map[sample.Category]*histogram.Accumulator

// loadOrder puts data first so that its schema seeds the pre-fakes table.
var loadOrder = []sample.Group{sample.GroupData, sample.GroupW, sample.GroupTT, sample.GroupReal}

// Run fills the control-region histograms of every sample, derives qcd,
// normalizes the fake groups per bin and assembles the pre-fakes table.
func (e *Engine) Run(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()

	var plan sample.Plan
	var err error
	if len(req.Samples) == 0 {
		plan, err = e.classifier.DefaultPlan()
	} else {
		plan, err = e.classifier.Plan(req.Samples)
	}
	if err != nil {
		return nil, err
	}

	tree, err := e.source.Tree(ctx)
	if err != nil {
		return nil, err
	}
	channel := table.ChannelPrefix(tree)
	if req.Channel != "" && req.Channel != channel {
		return nil, fmt.Errorf("%w: inputs hold %s, channel %s requested", core.ErrTreeNotFound, tree, req.Channel)
	}

	hists := e.newHists()
	stats := RunStats{Selected: region.Selection{}, PerSample: map[string]SampleCounts{}}
	var preFakes *table.Table

	for _, g := range loadOrder {
		for _, name := range plan[g] {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			tbl, err := e.source.Load(ctx, name)
			if err != nil {
				return nil, err
			}
			if err := tbl.Validate(); err != nil {
				return nil, err
			}
			counts, err := e.fill(hists[g], tbl, stats.Selected)
			if err != nil {
				return nil, err
			}
			counts.Group = g
			stats.PerSample[name] = counts
			stats.Samples++
			stats.Events += counts.Events

			if preFakes, err = extendPreFakes(preFakes, g, tbl, tree); err != nil {
				return nil, err
			}
			e.logger.Debug("filled %s (%s): %d events, yield %.4g", name, g, counts.Events, counts.Yield)
		}
	}

	if err := preFakes.Filter(antiIsoRow(preFakes)); err != nil {
		return nil, err
	}
	stats.PreFakes = preFakes.Len()

	set := fraction.NewSet(channel, req.Period, tree)
	for _, cat := range sample.AllCategories {
		if err := e.normalize(set, hists, cat); err != nil {
			return nil, fmt.Errorf("category %s: %w", cat, err)
		}
	}
	for _, g := range sample.FillGroups {
		for _, cat := range sample.AllCategories {
			stats.Dropped += hists[g][cat].Dropped()
		}
	}

	stats.Duration = time.Since(start)
	e.logger.Info("computed fractions for %s %s: %d samples, %d events, %d clamped bins, %d degenerate bins in %v",
		channel, req.Period, stats.Samples, stats.Events, len(set.Clamps), len(set.Degenerate), stats.Duration)

	return &Result{Fractions: set, PreFakes: preFakes, Stats: stats}, nil
}

func (e *Engine) newHists() groupHists {
	hists := make(groupHists, len(sample.FillGroups))
	for _, g := range sample.FillGroups {
		hists[g] = make(map[sample.Category]*histogram.Accumulator, len(sample.AllCategories))
		for _, cat := range sample.AllCategories {
			hists[g][cat] = histogram.NewAccumulator(fraction.HistName(g, cat), e.xAxis, e.yAxis)
		}
	}
	return hists
}

// fill adds every control-region event of tbl to the group's histograms.
// The inclusive category is its own selection, not a sum of the others.
func (e *Engine) fill(hists map[sample.Category]*histogram.Accumulator, tbl *table.Table, sel region.Selection) (SampleCounts, error) {
	events, err := tbl.Events()
	if err != nil {
		return SampleCounts{}, err
	}
	counts := SampleCounts{Events: len(events)}
	for _, cat := range sample.AllCategories {
		selected := region.Select(events, cat)
		for _, ev := range selected {
			if err := hists[cat].Fill(ev.VisMass, ev.NJets, ev.Weight); err != nil {
				return SampleCounts{}, err
			}
			if cat == sample.CategoryInclusive {
				counts.Yield += ev.Weight
			}
		}
		sel[cat] += len(selected)
	}
	return counts, nil
}

// extendPreFakes appends data rows as-is and real-sample rows with negated
// weights. Other groups do not contribute.
func extendPreFakes(pre *table.Table, g sample.Group, tbl *table.Table, tree string) (*table.Table, error) {
	switch g {
	case sample.GroupData:
		if pre == nil {
			seed := tbl.Clone()
			seed.Sample = "pre_jetFakes"
			seed.Tree = tree
			return seed, nil
		}
		return pre, pre.Append(tbl)
	case sample.GroupReal:
		neg, err := tbl.Negated(sample.ColumnWeight)
		if err != nil {
			return nil, err
		}
		return pre, pre.Append(neg)
	}
	return pre, nil
}

func antiIsoRow(t *table.Table) func(int) (bool, error) {
	col := t.Schema.Index(sample.ColumnAntiIso)
	return func(r int) (bool, error) {
		v, err := t.Float(r, col)
		if err != nil {
			return false, core.NewSchemaMismatchError(t.Sample, fmt.Sprintf("row %d column %s: %v", r, sample.ColumnAntiIso, err))
		}
		return v > 0, nil
	}
}

// normalize derives qcd for one category, records its summary and freezes the
// five surfaces into set. Raw real and data surfaces are kept unnormalized.
func (e *Engine) normalize(set *fraction.Set, hists groupHists, cat sample.Category) error {
	w := hists[sample.GroupW][cat]
	tt := hists[sample.GroupTT][cat]
	rl := hists[sample.GroupReal][cat]
	data := hists[sample.GroupData][cat]

	qcd := data.Clone(fraction.HistName(sample.GroupQCD, cat))
	for _, sub := range []*histogram.Accumulator{w, tt, rl} {
		if err := qcd.Subtract(sub); err != nil {
			return err
		}
	}
	clamps, err := qcd.ClampNegative()
	if err != nil {
		return err
	}
	for _, c := range clamps {
		e.logger.Warn("%s: qcd bin %s was %.4g, clamped to 0", cat, c.Bin, c.RawValue)
		set.Clamps = append(set.Clamps, fraction.ClampRecord{Category: cat, Clamp: c})
	}

	denom := qcd.Clone("denominator_" + string(cat))
	if err := denom.Add(w, 1); err != nil {
		return err
	}
	if err := denom.Add(tt, 1); err != nil {
		return err
	}

	summary := fraction.Summary{
		Category:    cat,
		Denominator: denom.Integral(),
		Integrals: map[sample.Group]float64{
			sample.GroupW:    w.Integral(),
			sample.GroupTT:   tt.Integral(),
			sample.GroupQCD:  qcd.Integral(),
			sample.GroupReal: rl.Integral(),
			sample.GroupData: data.Integral(),
		},
		Fractions: make(map[sample.Group]float64, len(sample.AllGroups)),
	}
	for g, v := range summary.Integrals {
		if summary.Denominator != 0 {
			summary.Fractions[g] = v / summary.Denominator
		} else {
			summary.Fractions[g] = 0
		}
	}
	if summary.Denominator == 0 {
		e.logger.Warn("%s: denominator integral is zero, all fractions reported as 0", cat)
	}
	e.logger.Info("%s: w %.4f  tt %.4f  qcd %.4f  real %.4f  (denominator %.4g)", cat,
		summary.Fractions[sample.GroupW], summary.Fractions[sample.GroupTT],
		summary.Fractions[sample.GroupQCD], summary.Fractions[sample.GroupReal], summary.Denominator)
	set.Summaries = append(set.Summaries, summary)

	var degenerate []histogram.Bin
	for _, h := range []*histogram.Accumulator{w, tt, qcd} {
		if degenerate, err = h.Divide(denom); err != nil {
			return err
		}
	}
	for _, b := range degenerate {
		e.logger.Warn("%s: bin %s has zero denominator, fractions set to %g", cat, b, histogram.DegenerateValue)
		set.Degenerate = append(set.Degenerate, fraction.DegenerateRecord{Category: cat, Bin: b})
	}

	set.Put(sample.GroupW, cat, w.Freeze())
	set.Put(sample.GroupTT, cat, tt.Freeze())
	set.Put(sample.GroupQCD, cat, qcd.Freeze())
	set.Put(sample.GroupReal, cat, rl.Freeze())
	set.Put(sample.GroupData, cat, data.Freeze())

	if e.logger.GetLevel() >= internal.LogLevelDebug {
		e.logMeans(set, cat, denom)
	}
	return nil
}

// logMeans reports denominator-weighted mean fractions over the populated bins.
func (e *Engine) logMeans(set *fraction.Set, cat sample.Category, denom *histogram.Accumulator) {
	weights := make([]float64, 0, e.xAxis.NBins()*e.yAxis.NBins())
	for ix := 0; ix < e.xAxis.NBins(); ix++ {
		for iy := 0; iy < e.yAxis.NBins(); iy++ {
			weights = append(weights, denom.Content(ix, iy))
		}
	}
	if floats.Sum(weights) <= 0 {
		return
	}
	for _, g := range sample.NormalizedGroups {
		surface, err := set.Surface(g, cat)
		if err != nil {
			continue
		}
		e.logger.Debug("%s: weighted mean %s = %.4f", cat, g, stat.Mean(surface.Values(), weights))
	}
}
