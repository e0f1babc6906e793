package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"
)

const defaultOCRSpaceEndpoint = "https://api.ocr.space/parse/image"

// OCRSpace extracts text through the ocr.space HTTP API, the remote fallback
// when no local engine works.
type OCRSpace struct {
	apiKey   string
	endpoint string
	client   *http.Client
}

// NewOCRSpace creates an OCRSpace engine. An empty apiKey marks the engine
// unavailable and the tier is skipped.
func NewOCRSpace(apiKey, endpoint string) *OCRSpace {
	if endpoint == "" {
		endpoint = defaultOCRSpaceEndpoint
	}
	return &OCRSpace{
		apiKey:   apiKey,
		endpoint: endpoint,
		client:   &http.Client{Timeout: 45 * time.Second},
	}
}

func (o *OCRSpace) Name() string { return "ocrspace" }

func (o *OCRSpace) Available() bool { return o.apiKey != "" }

type ocrSpaceResponse struct {
	ParsedResults []struct {
		ParsedText string `json:"ParsedText"`
	} `json:"ParsedResults"`
	IsErroredOnProcessing bool `json:"IsErroredOnProcessing"`
	ErrorMessage          any  `json:"ErrorMessage"`
}

// ExtractText uploads the image bytes as multipart form data and returns the
// parsed text of the first result.
func (o *OCRSpace) ExtractText(ctx context.Context, imagePath string) (string, error) {
	data, err := os.ReadFile(imagePath)
	if err != nil {
		return "", eris.Wrapf(err, "extract: read image %s", imagePath)
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("filename", filepath.Base(imagePath))
	if err != nil {
		return "", eris.Wrap(err, "extract: build multipart form")
	}
	if _, err := fw.Write(data); err != nil {
		return "", eris.Wrap(err, "extract: write image to form")
	}
	mw.WriteField("apikey", o.apiKey)   //nolint:errcheck
	mw.WriteField("language", "eng")    //nolint:errcheck
	if err := mw.Close(); err != nil {
		return "", eris.Wrap(err, "extract: close multipart form")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.endpoint, &buf)
	if err != nil {
		return "", eris.Wrap(err, "extract: create ocrspace request")
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := o.client.Do(req)
	if err != nil {
		return "", eris.Wrap(err, "extract: ocrspace call")
	}
	defer resp.Body.Close() //nolint:errcheck

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", eris.Wrap(err, "extract: read ocrspace response")
	}
	if resp.StatusCode != http.StatusOK {
		return "", eris.Errorf("extract: ocrspace returned %d: %s", resp.StatusCode, string(respBody))
	}

	var parsed ocrSpaceResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", eris.Wrap(err, "extract: unmarshal ocrspace response")
	}
	if parsed.IsErroredOnProcessing {
		return "", eris.Errorf("extract: ocrspace processing error: %v", parsed.ErrorMessage)
	}
	if len(parsed.ParsedResults) == 0 {
		return "", eris.New("extract: ocrspace returned no parsed results")
	}
	return parsed.ParsedResults[0].ParsedText, nil
}
