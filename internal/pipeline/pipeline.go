// Package pipeline wires note detection, deterministic extraction, the
// augmentation adapters, and validation into a single hybrid run. The
// pipeline always yields a result for non-empty input: adapters that fail
// fall back to their pure implementations and the run is tagged with the
// approach actually used.
package pipeline

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/openchart/scribe/internal/augment"
	"github.com/openchart/scribe/internal/extract"
	"github.com/openchart/scribe/internal/llm"
	"github.com/openchart/scribe/internal/notes"
	"github.com/openchart/scribe/internal/validate"
)

// Approach labels recorded in result metadata.
const (
	ApproachHybrid        = "hybrid"
	ApproachDeterministic = "deterministic-only"
)

// Stage status values.
const (
	StageCompleted = "completed"
	StageFallback  = "fallback"
	StageSkipped   = "skipped"
)

// DefaultAdapterTimeout bounds each LLM adapter call.
const DefaultAdapterTimeout = 45 * time.Second

// Config assembles an Orchestrator.
type Config struct {
	// Provider is the LLM used by the adapters; nil runs fully offline.
	Provider llm.Provider
	// Library overrides the built-in rule library when non-nil.
	Library *extract.Library
	// AdapterTimeout bounds each adapter call; zero means the default.
	AdapterTimeout time.Duration
	// Version is stamped into result metadata.
	Version string
}

// Metadata describes how a result was produced.
type Metadata struct {
	GeneratedAt time.Time `json:"generatedAt"`
	Approach    string    `json:"approach"`
	LLMProvider string    `json:"llmProvider,omitempty"`
	Version     string    `json:"version,omitempty"`
}

// Result is the full pipeline output envelope.
type Result struct {
	Record     *extract.Record    `json:"record"`
	Narrative  *augment.Narrative `json:"narrative"`
	Validation *validate.Report   `json:"validation"`
	// Stages maps stage name to its status.
	Stages map[string]string `json:"stages"`
	// Outcomes carries per-adapter provenance.
	Outcomes []augment.Outcome `json:"outcomes,omitempty"`
	Metadata Metadata          `json:"metadata"`
}

// Orchestrator runs the hybrid pipeline.
type Orchestrator struct {
	extractor     *extract.Extractor
	complications *augment.ComplicationDetector
	consultants   *augment.ConsultantParser
	synthesizer   *augment.NarrativeSynthesizer
	provider      llm.Provider
	timeout       time.Duration
	version       string
	log           zerolog.Logger
}

// New builds an Orchestrator from cfg.
func New(cfg Config, log zerolog.Logger) *Orchestrator {
	timeout := cfg.AdapterTimeout
	if timeout <= 0 {
		timeout = DefaultAdapterTimeout
	}
	return &Orchestrator{
		extractor:     extract.NewExtractor(cfg.Library, log),
		complications: augment.NewComplicationDetector(cfg.Provider, log),
		consultants:   augment.NewConsultantParser(cfg.Provider, log),
		synthesizer:   augment.NewNarrativeSynthesizer(cfg.Provider, log),
		provider:      cfg.Provider,
		timeout:       timeout,
		version:       cfg.Version,
		log:           log,
	}
}

// Detect exposes note segmentation for callers that only want the bundle.
func (o *Orchestrator) Detect(text string) *notes.Bundle {
	return notes.Detect(text)
}

// Generate runs the full pipeline over raw clinical text.
func (o *Orchestrator) Generate(ctx context.Context, text string) (*Result, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("empty input text")
	}

	start := time.Now()
	bundle := notes.Detect(text)
	rec := o.extractor.Extract(bundle)

	res := &Result{
		Record: rec,
		Stages: map[string]string{
			"detect":  StageCompleted,
			"extract": StageCompleted,
		},
	}

	// Complication detection and consultant parsing are independent of
	// each other; run them concurrently under per-adapter timeouts.
	var (
		wg       sync.WaitGroup
		comps    []extract.Complication
		compsOut augment.Outcome
		cons     []extract.Consultant
		recs     []extract.Recommendation
		consOut  augment.Outcome
	)

	wg.Add(1)
	go func() {
		defer wg.Done()
		actx, cancel := context.WithTimeout(ctx, o.timeout)
		defer cancel()
		comps, compsOut = o.complications.Detect(actx, bundle.Unique())
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		actx, cancel := context.WithTimeout(ctx, o.timeout)
		defer cancel()
		cons, recs, consOut = o.consultants.Parse(actx, bundle.Consultant)
	}()

	wg.Wait()

	mergeComplications(rec, comps)
	mergeConsultants(rec, cons, recs)
	res.Outcomes = append(res.Outcomes, compsOut, consOut)
	res.Stages["complications"] = stageFor(compsOut)
	res.Stages["consultants"] = stageFor(consOut)

	// Synthesis runs after the merge so its fallback sees the full record.
	sctx, cancel := context.WithTimeout(ctx, o.timeout)
	narrative, synthOut := o.synthesizer.Synthesize(sctx, bundle, rec)
	cancel()
	mergeNarrative(rec, narrative)
	res.Narrative = narrative
	res.Outcomes = append(res.Outcomes, synthOut)
	res.Stages["synthesis"] = stageFor(synthOut)

	res.Validation = validate.Validate(rec, text)
	res.Stages["validate"] = StageCompleted

	res.Metadata = Metadata{
		GeneratedAt: time.Now().UTC(),
		Approach:    approachFor(res.Outcomes),
		Version:     o.version,
	}
	if o.provider != nil {
		res.Metadata.LLMProvider = o.provider.Name()
	}

	o.log.Info().
		Str("approach", res.Metadata.Approach).
		Bool("valid", res.Validation.IsValid).
		Float64("completeness", res.Validation.Completeness).
		Dur("elapsed", time.Since(start)).
		Msg("pipeline run complete")

	return res, nil
}

func stageFor(out augment.Outcome) string {
	switch out.Source {
	case augment.SourceLLM:
		return StageCompleted
	case augment.SourceFallback:
		return StageFallback
	default:
		return StageSkipped
	}
}

func approachFor(outs []augment.Outcome) string {
	for _, o := range outs {
		if o.Source == augment.SourceLLM {
			return ApproachHybrid
		}
	}
	return ApproachDeterministic
}

// mergeComplications unions adapter findings with the deterministic list,
// keyed by lowercased label. Adapter entries are richer, so they replace
// deterministic entries with the same label.
func mergeComplications(rec *extract.Record, found []extract.Complication) {
	if len(found) == 0 {
		return
	}
	merged := make([]extract.Complication, 0, len(found)+len(rec.Complications))
	seen := make(map[string]bool)
	for _, c := range found {
		key := strings.ToLower(c.Label())
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		merged = append(merged, c)
	}
	for _, c := range rec.Complications {
		key := strings.ToLower(c.Label())
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		merged = append(merged, c)
	}
	rec.Complications = merged
	rec.SetSource("complications", "adapter:complications")
}

func mergeConsultants(rec *extract.Record, cons []extract.Consultant, recs []extract.Recommendation) {
	if len(cons) == 0 {
		return
	}
	rec.Consultants = cons
	// Adapter recommendations supersede the deterministic line scan.
	rec.ConsultantRecommendations = recs
	rec.SetSource("consultants", "adapter:consultants")
}

// mergeNarrative layers synthesized prose onto the record. Deterministic
// demographics, dates, and medications always win; narrative fields fill
// gaps, except the hospital course, where readable synthesized prose
// replaces the assembled fragment list.
func mergeNarrative(rec *extract.Record, n *augment.Narrative) {
	if n == nil {
		return
	}
	if rec.HistoryPresenting == "" && n.HistoryPresenting != "" {
		rec.HistoryPresenting = n.HistoryPresenting
		rec.SetSource("historyPresenting", "adapter:synthesis")
	}
	if n.HospitalCourse != "" {
		rec.HospitalCourse = n.HospitalCourse
		rec.SetSource("hospitalCourse", "adapter:synthesis")
	}
	if rec.PostOpProgress == "" && n.PostOpProgress != "" {
		rec.PostOpProgress = n.PostOpProgress
		rec.SetSource("postOpProgress", "adapter:synthesis")
	}
	if rec.DischargeExam == "" && n.CurrentStatus != "" {
		rec.DischargeExam = n.CurrentStatus
		rec.SetSource("dischargeExam", "adapter:synthesis")
	}

	existing := make(map[string]bool, len(rec.MajorEvents))
	for _, ev := range rec.MajorEvents {
		existing[strings.ToLower(ev.Event)] = true
	}
	for _, ev := range n.MajorEvents {
		if ev != "" && !existing[strings.ToLower(ev)] {
			rec.MajorEvents = append(rec.MajorEvents, extract.MajorEvent{Event: ev})
		}
	}
}
