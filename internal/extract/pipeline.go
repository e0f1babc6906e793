package extract

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/spendsense/finance-api/internal/failover"
	"github.com/spendsense/finance-api/internal/provider"
)

// Source labels for Result.Source.
const (
	SourceVision    = "vision"
	SourceHeuristic = "heuristic"
	SourceRefined   = "heuristic+refined"
)

const visionConfidenceDefault = 85

// PipelineConfig assembles a Pipeline. The zero value of every field is
// usable: a Pipeline with no caller and no engines still produces a
// heuristic-only, degraded result.
type PipelineConfig struct {
	// Caller issues model calls for the vision and refinement tiers. Nil
	// disables both tiers.
	Caller provider.Caller

	// VisionRoster and TextRoster default to the package rosters. They are
	// shuffled per parse so load spreads across free backends.
	VisionRoster provider.Roster
	TextRoster   provider.Roster

	// Engines is the local-then-remote OCR cascade, tried in order.
	Engines []TextEngine

	// Categories drives heuristic categorization. Defaults to
	// DefaultCategories.
	Categories []Category

	// VisionTimeout bounds one vision attempt; image payloads are slow on
	// free tiers. Default: 45s. TextTimeout bounds one refinement attempt.
	// Default: 15s.
	VisionTimeout time.Duration
	TextTimeout   time.Duration

	// RateLimitPause is handed to the failover layer; zero uses its default.
	RateLimitPause time.Duration

	// RefinementOverwrites controls the merge direction when the model
	// refinement tier succeeds: true (the default in config loading) lets
	// refined values replace heuristic ones, false only fills gaps.
	RefinementOverwrites bool

	// Now is injectable for tests. Defaults to time.Now.
	Now func() time.Time
}

// Pipeline runs the tiered receipt extraction: a vision model first, then an
// OCR cascade feeding heuristic structuring, then a text model refinement
// pass over the OCR output. Every tier may fail; the pipeline degrades
// instead of erroring.
type Pipeline struct {
	caller     provider.Caller
	vision     provider.Roster
	text       provider.Roster
	engines    []TextEngine
	categories []Category
	visionOrch *failover.Orchestrator
	textOrch   *failover.Orchestrator
	overwrite  bool
	now        func() time.Time
}

// NewPipeline builds a Pipeline from cfg.
func NewPipeline(cfg PipelineConfig) *Pipeline {
	if len(cfg.VisionRoster) == 0 {
		cfg.VisionRoster = provider.DefaultVisionModels
	}
	if len(cfg.TextRoster) == 0 {
		cfg.TextRoster = provider.DefaultFreeModels
	}
	if len(cfg.Categories) == 0 {
		cfg.Categories = DefaultCategories
	}
	if cfg.VisionTimeout <= 0 {
		cfg.VisionTimeout = 45 * time.Second
	}
	if cfg.TextTimeout <= 0 {
		cfg.TextTimeout = 15 * time.Second
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Pipeline{
		caller:     cfg.Caller,
		vision:     cfg.VisionRoster,
		text:       cfg.TextRoster,
		engines:    cfg.Engines,
		categories: cfg.Categories,
		visionOrch: failover.New(failover.Config{AttemptTimeout: cfg.VisionTimeout, RateLimitPause: cfg.RateLimitPause}),
		textOrch:   failover.New(failover.Config{AttemptTimeout: cfg.TextTimeout, RateLimitPause: cfg.RateLimitPause}),
		overwrite:  cfg.RefinementOverwrites,
		now:        cfg.Now,
	}
}

// Parse extracts structured fields from the receipt image at imagePath. The
// only hard failure is an unreadable image; every model or OCR failure
// degrades the result instead.
func (p *Pipeline) Parse(ctx context.Context, imagePath string) (*Result, error) {
	imageData, err := os.ReadFile(imagePath)
	if err != nil {
		return nil, eris.Wrapf(err, "extract: read image %s", imagePath)
	}

	degraded := false

	// Tier 1: a vision model reading the image directly. A usable answer
	// short-circuits the whole cascade.
	if p.caller != nil {
		if fields, ok := p.visionTier(ctx, imageData, mimeTypeFor(imagePath)); ok {
			return &Result{Fields: fields, Source: SourceVision}, nil
		}
		degraded = true
	}

	// Tier 2: local then remote OCR, first engine to produce text wins.
	rawText, engineName := p.ocrCascade(ctx, imagePath)
	if rawText == "" {
		degraded = true
	}

	// Tier 3 always runs, even over empty text, so the result has a
	// deterministic floor.
	fields := p.heuristicTier(rawText)
	source := SourceHeuristic

	// Tier 4: a text model re-reads the OCR output and corrects the
	// heuristic guesses.
	if p.caller != nil && rawText != "" {
		if refined, ok := p.refinementTier(ctx, rawText); ok {
			fields = p.mergeRefined(fields, refined)
			source = SourceRefined
		} else {
			degraded = true
		}
	}

	zap.L().Info("extract: parse complete",
		zap.String("image", filepath.Base(imagePath)),
		zap.String("engine", engineName),
		zap.String("source", source),
		zap.Bool("degraded", degraded),
	)

	return &Result{Fields: fields, RawText: rawText, Source: source, Degraded: degraded}, nil
}

// ParseText runs the structuring tiers over already-extracted text, skipping
// the image tiers entirely.
func (p *Pipeline) ParseText(ctx context.Context, rawText string) *Result {
	fields := p.heuristicTier(rawText)
	source := SourceHeuristic
	degraded := false

	if p.caller != nil && rawText != "" {
		if refined, ok := p.refinementTier(ctx, rawText); ok {
			fields = p.mergeRefined(fields, refined)
			source = SourceRefined
		} else {
			degraded = true
		}
	}
	return &Result{Fields: fields, RawText: rawText, Source: source, Degraded: degraded}
}

func (p *Pipeline) visionTier(ctx context.Context, imageData []byte, mimeType string) (Fields, bool) {
	prompt := buildVisionPrompt(p.categories)
	res, err := p.visionOrch.Run(ctx, p.vision.Shuffled(), func(ctx context.Context, model string) (int, []byte, error) {
		return p.caller.ChatCompletion(ctx, provider.ChatRequest{
			Model:       model,
			Messages:    []provider.Message{provider.VisionMessage(prompt, imageData, mimeType)},
			MaxTokens:   500,
			Temperature: zeroTemp(),
		})
	}, failover.Discard)
	if err != nil || !res.Completed {
		return Fields{}, false
	}

	fields, err := ParseModelFields(res.Payload)
	if err != nil {
		zap.L().Warn("extract: vision response rejected", zap.Error(err))
		return Fields{}, false
	}
	// A response naming neither merchant nor amount is not worth
	// short-circuiting for; the OCR cascade may still do better.
	if fields.Merchant == "" && fields.Amount == nil {
		return Fields{}, false
	}
	if fields.Confidence == 0 {
		fields.Confidence = visionConfidenceDefault
	}
	if fields.Date == "" {
		fields.Date = p.now().Format("2006-01-02")
	}
	return fields, true
}

func (p *Pipeline) ocrCascade(ctx context.Context, imagePath string) (string, string) {
	for _, eng := range p.engines {
		if !eng.Available() {
			continue
		}
		text, err := eng.ExtractText(ctx, imagePath)
		if err != nil {
			zap.L().Warn("extract: ocr engine failed",
				zap.String("engine", eng.Name()),
				zap.Error(err),
			)
			continue
		}
		if strings.TrimSpace(text) != "" {
			return text, eng.Name()
		}
	}
	return "", ""
}

func (p *Pipeline) heuristicTier(rawText string) Fields {
	merchant := ExtractMerchant(rawText)
	cat := Categorize(rawText, merchant, p.categories)
	return Fields{
		Merchant:   merchant,
		Amount:     ExtractAmount(rawText),
		Date:       ExtractDate(rawText, p.now()),
		CategoryID: cat.CategoryID,
		Confidence: cat.Confidence,
		Reasoning:  cat.Reasoning,
	}
}

func (p *Pipeline) refinementTier(ctx context.Context, rawText string) (Fields, bool) {
	prompt := buildRefinementPrompt(rawText, p.categories)
	res, err := p.textOrch.Run(ctx, p.text.Shuffled(), func(ctx context.Context, model string) (int, []byte, error) {
		return p.caller.ChatCompletion(ctx, provider.ChatRequest{
			Model:       model,
			Messages:    []provider.Message{provider.TextMessage("user", prompt)},
			MaxTokens:   500,
			Temperature: zeroTemp(),
		})
	}, failover.Discard)
	if err != nil || !res.Completed {
		return Fields{}, false
	}

	fields, err := ParseModelFields(res.Payload)
	if err != nil {
		zap.L().Warn("extract: refinement response rejected", zap.Error(err))
		return Fields{}, false
	}
	return fields, true
}

// mergeRefined combines the heuristic baseline with a successful model
// refinement. By default the refinement wins every field it determined;
// with overwriting disabled it only fills fields the heuristics left empty.
func (p *Pipeline) mergeRefined(base, refined Fields) Fields {
	if p.overwrite {
		base.MergeFrom(refined)
	} else {
		filled := refined
		filled.MergeFrom(base)
		base = filled
	}
	if refined.Confidence > 0 {
		base.Confidence = refined.Confidence
	}
	return base
}

func buildVisionPrompt(cats []Category) string {
	var b strings.Builder
	b.WriteString("Read this receipt image and return a single JSON object with these keys: ")
	b.WriteString(`"merchant" (string), "amount" (number, the grand total), "date" (YYYY-MM-DD), "category_id" (integer), "confidence" (0-100 integer), "reasoning" (string).`)
	b.WriteString(" Omit any key you cannot determine. Respond with JSON only, no prose.\n\nCategories:\n")
	writeCategoryLines(&b, cats)
	return b.String()
}

func buildRefinementPrompt(rawText string, cats []Category) string {
	var b strings.Builder
	b.WriteString("Below is OCR text from a purchase receipt. Extract a single JSON object with these keys: ")
	b.WriteString(`"merchant" (string), "amount" (number, the grand total), "date" (YYYY-MM-DD), "category_id" (integer), "confidence" (0-100 integer), "reasoning" (string).`)
	b.WriteString(" Omit any key you cannot determine. Respond with JSON only, no prose.\n\nCategories:\n")
	writeCategoryLines(&b, cats)
	b.WriteString("\nReceipt text:\n")
	b.WriteString(rawText)
	return b.String()
}

func writeCategoryLines(b *strings.Builder, cats []Category) {
	for _, c := range cats {
		fmt.Fprintf(b, "%d: %s\n", c.ID, c.Name)
	}
}

func mimeTypeFor(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		return "image/png"
	case ".webp":
		return "image/webp"
	case ".gif":
		return "image/gif"
	default:
		return "image/jpeg"
	}
}

func zeroTemp() *float64 {
	t := 0.0
	return &t
}
