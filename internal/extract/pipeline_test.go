package extract

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spendsense/finance-api/internal/provider"
)

// fakeCaller answers vision requests (multipart content) and plain text
// requests independently so each tier can be steered in tests.
type fakeCaller struct {
	visionStatus int
	visionReply  string
	textStatus   int
	textReply    string
	visionCalls  int
	textCalls    int
}

func (c *fakeCaller) ChatCompletion(_ context.Context, req provider.ChatRequest) (int, []byte, error) {
	isVision := false
	if len(req.Messages) > 0 {
		_, isVision = req.Messages[0].Content.([]provider.ContentPart)
	}
	if isVision {
		c.visionCalls++
		return c.visionStatus, completionBody(c.visionReply), nil
	}
	c.textCalls++
	return c.textStatus, completionBody(c.textReply), nil
}

func completionBody(content string) []byte {
	b, _ := json.Marshal(map[string]any{
		"choices": []map[string]any{{"message": map[string]any{"content": content}}},
	})
	return b
}

type fakeEngine struct {
	name  string
	text  string
	err   error
	avail bool
	calls int
}

func (e *fakeEngine) Name() string    { return e.name }
func (e *fakeEngine) Available() bool { return e.avail }
func (e *fakeEngine) ExtractText(context.Context, string) (string, error) {
	e.calls++
	return e.text, e.err
}

func writeTestImage(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "receipt.png")
	require.NoError(t, os.WriteFile(path, []byte{0x89, 0x50, 0x4e, 0x47}, 0o600))
	return path
}

func fixedNow() time.Time {
	return time.Date(2024, 6, 15, 10, 0, 0, 0, time.UTC)
}

func TestPipelineVisionShortCircuit(t *testing.T) {
	caller := &fakeCaller{
		visionStatus: 200,
		visionReply:  `{"merchant":"Corner Bakery","amount":8.72,"date":"2024-06-14","category_id":1,"confidence":92}`,
	}
	engine := &fakeEngine{name: "easyocr", avail: true, text: "should not be read"}

	p := NewPipeline(PipelineConfig{Caller: caller, Engines: []TextEngine{engine}, Now: fixedNow})
	res, err := p.Parse(context.Background(), writeTestImage(t))
	require.NoError(t, err)

	assert.Equal(t, SourceVision, res.Source)
	assert.False(t, res.Degraded)
	assert.Equal(t, "Corner Bakery", res.Merchant)
	require.NotNil(t, res.Amount)
	assert.InDelta(t, 8.72, *res.Amount, 0.001)
	assert.Equal(t, 92, res.Confidence)
	assert.Equal(t, 0, engine.calls, "vision success must skip the ocr cascade")
	assert.Equal(t, 0, caller.textCalls, "vision success must skip refinement")
}

func TestPipelineFallsBackToHeuristics(t *testing.T) {
	caller := &fakeCaller{visionStatus: 500, textStatus: 500}
	engine := &fakeEngine{name: "tesseract", avail: true,
		text: "CORNER BAKERY\ncoffee and cake\nTotal: $8.72\nDate: 06/14/2024"}

	p := NewPipeline(PipelineConfig{Caller: caller, Engines: []TextEngine{engine}, Now: fixedNow})
	res, err := p.Parse(context.Background(), writeTestImage(t))
	require.NoError(t, err)

	assert.Equal(t, SourceHeuristic, res.Source)
	assert.True(t, res.Degraded)
	assert.Equal(t, "CORNER BAKERY", res.Merchant)
	require.NotNil(t, res.Amount)
	assert.InDelta(t, 8.72, *res.Amount, 0.001)
	assert.Equal(t, "2024-06-14", res.Date)
	assert.Equal(t, 1, res.CategoryID)
	assert.Equal(t, engine.text, res.RawText)
}

func TestPipelineEngineCascadeOrder(t *testing.T) {
	unavailable := &fakeEngine{name: "easyocr", avail: false, text: "never"}
	failing := &fakeEngine{name: "tesseract", avail: true, err: os.ErrNotExist}
	working := &fakeEngine{name: "ocrspace", avail: true, text: "Total 500"}

	p := NewPipeline(PipelineConfig{Engines: []TextEngine{unavailable, failing, working}, Now: fixedNow})
	res, err := p.Parse(context.Background(), writeTestImage(t))
	require.NoError(t, err)

	assert.Equal(t, 0, unavailable.calls)
	assert.Equal(t, 1, failing.calls)
	assert.Equal(t, 1, working.calls)
	require.NotNil(t, res.Amount)
	assert.InDelta(t, 500.0, *res.Amount, 0.001)
}

func TestPipelineRefinementOverwrites(t *testing.T) {
	refined := `{"merchant":"Corner Bakery LLC","amount":9.50,"confidence":88,"reasoning":"total line reread"}`
	ocrText := "CORNER BAKERY\nTotal: $8.72"

	t.Run("overwrite enabled", func(t *testing.T) {
		caller := &fakeCaller{visionStatus: 500, textStatus: 200, textReply: refined}
		engine := &fakeEngine{name: "tesseract", avail: true, text: ocrText}
		p := NewPipeline(PipelineConfig{
			Caller: caller, Engines: []TextEngine{engine},
			RefinementOverwrites: true, Now: fixedNow,
		})
		res, err := p.Parse(context.Background(), writeTestImage(t))
		require.NoError(t, err)

		assert.Equal(t, SourceRefined, res.Source)
		assert.Equal(t, "Corner Bakery LLC", res.Merchant)
		require.NotNil(t, res.Amount)
		assert.InDelta(t, 9.50, *res.Amount, 0.001)
		assert.Equal(t, 88, res.Confidence)
	})

	t.Run("overwrite disabled fills gaps only", func(t *testing.T) {
		caller := &fakeCaller{visionStatus: 500, textStatus: 200, textReply: refined}
		engine := &fakeEngine{name: "tesseract", avail: true, text: ocrText}
		p := NewPipeline(PipelineConfig{
			Caller: caller, Engines: []TextEngine{engine},
			RefinementOverwrites: false, Now: fixedNow,
		})
		res, err := p.Parse(context.Background(), writeTestImage(t))
		require.NoError(t, err)

		assert.Equal(t, SourceRefined, res.Source)
		assert.Equal(t, "CORNER BAKERY", res.Merchant, "heuristic value must survive")
		require.NotNil(t, res.Amount)
		assert.InDelta(t, 8.72, *res.Amount, 0.001)
		assert.Equal(t, 88, res.Confidence, "confidence still follows the last tier")
	})
}

func TestPipelineNothingAvailable(t *testing.T) {
	p := NewPipeline(PipelineConfig{Now: fixedNow})
	res, err := p.Parse(context.Background(), writeTestImage(t))
	require.NoError(t, err)

	assert.Equal(t, SourceHeuristic, res.Source)
	assert.True(t, res.Degraded)
	assert.Equal(t, UnknownMerchant, res.Merchant)
	assert.Nil(t, res.Amount)
	assert.Equal(t, "2024-06-15", res.Date)
	assert.Equal(t, fallbackCategoryID, res.CategoryID)
}

func TestPipelineNoModelBackend(t *testing.T) {
	// No caller configured: the vision and refinement tiers are skipped
	// outright, never attempted, and the OCR path still works.
	engine := &fakeEngine{name: "easyocr", avail: true, text: "STARBUCKS\nTotal: $4.50"}
	p := NewPipeline(PipelineConfig{Engines: []TextEngine{engine}, Now: fixedNow})

	res, err := p.Parse(context.Background(), writeTestImage(t))
	require.NoError(t, err)
	assert.Equal(t, SourceHeuristic, res.Source)
	assert.Equal(t, "STARBUCKS", res.Merchant)
	assert.Equal(t, 1, engine.calls)
}

func TestPipelineMissingImage(t *testing.T) {
	p := NewPipeline(PipelineConfig{Now: fixedNow})
	_, err := p.Parse(context.Background(), filepath.Join(t.TempDir(), "missing.png"))
	assert.Error(t, err)
}

func TestParseText(t *testing.T) {
	p := NewPipeline(PipelineConfig{Now: fixedNow})
	res := p.ParseText(context.Background(), "STARBUCKS\ncoffee\nTotal: $4.50")
	assert.Equal(t, "STARBUCKS", res.Merchant)
	require.NotNil(t, res.Amount)
	assert.InDelta(t, 4.50, *res.Amount, 0.001)
	assert.Equal(t, 1, res.CategoryID)
	assert.False(t, res.Degraded)
}

func TestParseModelFields(t *testing.T) {
	t.Run("plain json", func(t *testing.T) {
		fl, err := ParseModelFields(`{"merchant":"A","amount":1.5}`)
		require.NoError(t, err)
		assert.Equal(t, "A", fl.Merchant)
		require.NotNil(t, fl.Amount)
		assert.InDelta(t, 1.5, *fl.Amount, 0.001)
	})

	t.Run("fenced json", func(t *testing.T) {
		fl, err := ParseModelFields("```json\n{\"merchant\":\"A\"}\n```")
		require.NoError(t, err)
		assert.Equal(t, "A", fl.Merchant)
	})

	t.Run("not json", func(t *testing.T) {
		_, err := ParseModelFields("I could not read the receipt, sorry.")
		assert.Error(t, err)
	})

	t.Run("schema violations", func(t *testing.T) {
		for _, payload := range []string{
			`{"amount":-3}`,
			`{"amount":"12.50"}`,
			`{"date":"14/06/2024"}`,
			`{"merchant":"A","surprise":true}`,
		} {
			_, err := ParseModelFields(payload)
			assert.Error(t, err, "payload %s", payload)
		}
	})
}

func TestMergeFrom(t *testing.T) {
	base := Fields{Merchant: "CORNER BAKERY", Amount: f(8.72), Date: "2024-06-14", CategoryID: 1}
	higher := Fields{Merchant: "Corner Bakery LLC", Reasoning: "reread"}
	base.MergeFrom(higher)

	assert.Equal(t, "Corner Bakery LLC", base.Merchant)
	require.NotNil(t, base.Amount)
	assert.InDelta(t, 8.72, *base.Amount, 0.001)
	assert.Equal(t, "2024-06-14", base.Date)
	assert.Equal(t, 1, base.CategoryID)
	assert.Equal(t, "reread", base.Reasoning)
}
