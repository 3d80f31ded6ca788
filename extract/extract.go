// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


// Package extract turns document bytes into ordered raw text.
package extract

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/poiesic/furrow/core"
)

// Extractor produces the raw text of a document.
type Extractor interface {
	// Extract returns the document text in reading order.
	// Errors wrap core.ErrExtraction.
	Extract(ctx context.Context, data []byte) (string, error)
}

// PDFExtractor extracts text from PDF documents page by page.
type PDFExtractor struct {
	lineTolerance float64
	spaceFactor   float64
	logger        *slog.Logger
}

var _ Extractor = (*PDFExtractor)(nil)

// Option configures a PDFExtractor.
type Option func(*PDFExtractor) error

// WithLineTolerance sets how far apart, in points, two baselines may be
// and still belong to the same line.
func WithLineTolerance(points float64) Option {
	return func(e *PDFExtractor) error {
		if points < 0 {
			return fmt.Errorf("line tolerance must not be negative: %v", points)
		}
		e.lineTolerance = points
		return nil
	}
}

// WithSpaceFactor sets the horizontal gap, as a fraction of the font size,
// above which a space is inserted between two text items.
func WithSpaceFactor(factor float64) Option {
	return func(e *PDFExtractor) error {
		if factor <= 0 {
			return fmt.Errorf("space factor must be positive: %v", factor)
		}
		e.spaceFactor = factor
		return nil
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *PDFExtractor) error {
		e.logger = logger
		return nil
	}
}

// NewPDFExtractor creates a PDFExtractor.
func NewPDFExtractor(opts ...Option) (*PDFExtractor, error) {
	e := &PDFExtractor{
		lineTolerance: 2.0,
		spaceFactor:   0.25,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(e); err != nil {
			return nil, err
		}
	}
	e.logger = e.logger.With("component", "pdf-extractor")
	return e, nil
}

// Extract reads every page of the PDF in data. Pages that fail to decode are
// skipped. Fails when the document cannot be opened or holds no text.
func (e *PDFExtractor) Extract(ctx context.Context, data []byte) (text string, err error) {
	if len(data) == 0 {
		return "", fmt.Errorf("%w: empty document", core.ErrExtraction)
	}

	defer func() {
		if r := recover(); r != nil {
			text = ""
			err = fmt.Errorf("%w: malformed PDF: %v", core.ErrExtraction, r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("%w: %w", core.ErrExtraction, err)
	}

	numPages := reader.NumPage()
	pages := make([]string, 0, numPages)
	for i := 1; i <= numPages; i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		pageText, err := e.extractPage(reader, i)
		if err != nil {
			e.logger.Warn("skipping page", "page", i, "err", err)
			continue
		}
		if strings.TrimSpace(pageText) != "" {
			pages = append(pages, pageText)
		}
	}

	text = strings.Join(pages, "\n\n")
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("%w: no text found in %d pages", core.ErrExtraction, numPages)
	}

	e.logger.Debug("extracted text", "pages", numPages, "text_pages", len(pages), "length", len(text))
	return text, nil
}

// extractPage lays out one page, converting parser panics into errors.
func (e *PDFExtractor) extractPage(reader *pdf.Reader, num int) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("decoding page: %v", r)
		}
	}()

	page := reader.Page(num)
	if page.V.IsNull() {
		return "", nil
	}
	return layout(page.Content().Text, e.lineTolerance, e.spaceFactor), nil
}
