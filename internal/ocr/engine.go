// Package ocr recognizes the printed text on an extracted card image.
package ocr

import (
	"context"
	"fmt"
	"image"
	"strings"
	"sync"

	"card-scanner/internal/cvimage"
	"card-scanner/internal/scanerr"

	"github.com/otiai10/gosseract/v2"
	"gocv.io/x/gocv"
)

// Images narrower than this are upscaled before recognition; card text
// at 330px wide is too small for Tesseract.
const minOCRWidth = 660

// Word is one recognized word.
type Word struct {
	Text       string          `json:"text"`
	Confidence float64         `json:"confidence"` // 0-100
	Bounds     image.Rectangle `json:"bounds"`
}

// Text is the recognized text of one image.
type Text struct {
	Raw        string  `json:"raw"` // Multi-line, as returned by the engine
	Words      []Word  `json:"words,omitempty"`
	Confidence float64 `json:"confidence"` // Mean word confidence, 0-100
}

// Params configures the engine.
type Params struct {
	Language      string
	MinConfidence float64 // Mean word confidence below this is rejected
}

// DefaultParams returns English with a permissive confidence floor.
func DefaultParams() Params {
	return Params{
		Language:      "eng",
		MinConfidence: 30,
	}
}

// Engine wraps a Tesseract client. A gosseract client is not safe for
// concurrent use, so calls are serialized.
type Engine struct {
	mu     sync.Mutex
	client *gosseract.Client
	params Params
}

// NewEngine creates an engine. Failure to load the language data is
// reported as OCR_UNAVAILABLE.
func NewEngine(p Params) (*Engine, error) {
	if p.Language == "" {
		p.Language = "eng"
	}
	client := gosseract.NewClient()

	if err := client.SetLanguage(p.Language); err != nil {
		client.Close()
		return nil, scanerr.NewOCRError(scanerr.OCRUnavailable, fmt.Errorf("failed to set OCR language: %w", err))
	}
	// Card names are proper nouns; the dictionary only "corrects" them.
	_ = client.SetVariable("load_system_dawg", "false")
	_ = client.SetVariable("load_freq_dawg", "false")

	return &Engine{client: client, params: p}, nil
}

// Close releases OCR resources.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.client != nil {
		err := e.client.Close()
		e.client = nil
		return err
	}
	return nil
}

type recognition struct {
	text *Text
	err  error
}

// Recognize runs OCR over img. If ctx ends first it returns OCR_TIMEOUT;
// the Tesseract call itself cannot be interrupted and finishes in the
// background. Text with a mean confidence under the floor is returned
// together with an OCR_LOW_CONFIDENCE error.
func (e *Engine) Recognize(ctx context.Context, img image.Image) (*Text, error) {
	if err := ctx.Err(); err != nil {
		return nil, scanerr.NewOCRError(scanerr.OCRTimeout, err)
	}
	data, err := encodeForOCR(img)
	if err != nil {
		return nil, scanerr.NewOCRError(scanerr.OCRUnavailable, err)
	}

	ch := make(chan recognition, 1)
	go func() {
		t, err := e.recognize(data)
		ch <- recognition{t, err}
	}()

	select {
	case <-ctx.Done():
		return nil, scanerr.NewOCRError(scanerr.OCRTimeout, ctx.Err())
	case r := <-ch:
		if r.err != nil {
			return nil, scanerr.NewOCRError(scanerr.OCRUnavailable, r.err)
		}
		if len(r.text.Words) == 0 || r.text.Confidence < e.params.MinConfidence {
			return r.text, scanerr.NewOCRError(scanerr.OCRLowConfidence,
				fmt.Errorf("mean confidence %.1f over %d words", r.text.Confidence, len(r.text.Words)))
		}
		return r.text, nil
	}
}

func (e *Engine) recognize(data []byte) (*Text, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.client == nil {
		return nil, fmt.Errorf("engine closed")
	}

	if err := e.client.SetPageSegMode(gosseract.PSM_AUTO); err != nil {
		return nil, fmt.Errorf("failed to set PSM: %w", err)
	}
	if err := e.client.SetImageFromBytes(data); err != nil {
		return nil, fmt.Errorf("failed to set image: %w", err)
	}

	raw, err := e.client.Text()
	if err != nil {
		return nil, fmt.Errorf("OCR failed: %w", err)
	}

	boxes, err := e.client.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil {
		return nil, fmt.Errorf("failed to get boxes: %w", err)
	}

	t := &Text{Raw: strings.TrimSpace(raw)}
	var sum float64
	for _, box := range boxes {
		w := strings.TrimSpace(box.Word)
		if w == "" {
			continue
		}
		t.Words = append(t.Words, Word{Text: w, Confidence: box.Confidence, Bounds: box.Box})
		sum += box.Confidence
	}
	if len(t.Words) > 0 {
		t.Confidence = sum / float64(len(t.Words))
	}
	return t, nil
}

// encodeForOCR converts img to PNG bytes, upscaling narrow images.
func encodeForOCR(img image.Image) ([]byte, error) {
	mat, err := cvimage.ToMat(img)
	if err != nil {
		return nil, fmt.Errorf("failed to convert image: %w", err)
	}
	defer mat.Close()

	src := mat
	if w := mat.Cols(); w < minOCRWidth {
		scaled := gocv.NewMat()
		defer scaled.Close()
		scale := float64(minOCRWidth) / float64(w)
		gocv.Resize(mat, &scaled, image.Point{}, scale, scale, gocv.InterpolationCubic)
		src = scaled
	}

	buf, err := gocv.IMEncode(gocv.PNGFileExt, src)
	if err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	defer buf.Close()

	return buf.GetBytes(), nil
}
