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


// Package clean canonicalizes raw extracted text before chunking.
//
// Cleaning is deterministic and idempotent: Clean(Clean(s)) == Clean(s).
package clean

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// DefaultPagePatterns match lines holding nothing but pagination.
var DefaultPagePatterns = []string{
	`(?i)^page\s+\d+(\s+of\s+\d+)?$`,
	`^[-–—]\s*\d+\s*[-–—]$`,
	`^\d{1,4}$`,
}

var (
	horizontalSpace = regexp.MustCompile(`[\t\f\v\p{Zs}]+`)
	lineEdgeSpace   = regexp.MustCompile(`(?m)^ +| +$`)
	extraNewlines   = regexp.MustCompile(`\n{3,}`)
	hyphenBreak     = regexp.MustCompile(`-[ \t]*\n[ \t]*`)
)

// Cleaner normalizes text. The zero value is not usable; call NewCleaner.
type Cleaner struct {
	pagePatterns []*regexp.Regexp
}

// Option configures a Cleaner.
type Option func(*Cleaner) error

// WithPagePatterns replaces the pagination artifact patterns.
// Each pattern is matched against a whole, trimmed line.
func WithPagePatterns(patterns ...string) Option {
	return func(c *Cleaner) error {
		compiled := make([]*regexp.Regexp, 0, len(patterns))
		for _, p := range patterns {
			re, err := regexp.Compile(p)
			if err != nil {
				return fmt.Errorf("invalid page pattern %q: %w", p, err)
			}
			compiled = append(compiled, re)
		}
		c.pagePatterns = compiled
		return nil
	}
}

// NewCleaner creates a Cleaner with the default page patterns unless overridden.
func NewCleaner(opts ...Option) (*Cleaner, error) {
	c := &Cleaner{}
	if err := WithPagePatterns(DefaultPagePatterns...)(c); err != nil {
		return nil, err
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

var defaultCleaner, _ = NewCleaner()

// Clean canonicalizes text with the default settings.
func Clean(text string) string {
	return defaultCleaner.Clean(text)
}

// Clean canonicalizes text:
// Unicode NFKC with LF line endings, horizontal whitespace collapsed and
// stripped at line edges, pagination lines dropped, end-of-line hyphenation
// rejoined, blank line runs capped at one, outer whitespace trimmed.
func (c *Cleaner) Clean(text string) string {
	// Rejoining a hyphen break can compose characters under NFKC, and
	// dropping a page line can expose a new break, so the whole pass
	// repeats until the text is stable.
	for {
		next := c.pass(text)
		if next == text {
			return next
		}
		text = next
	}
}

func (c *Cleaner) pass(text string) string {
	text = norm.NFKC.String(text)
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	text = horizontalSpace.ReplaceAllString(text, " ")
	text = lineEdgeSpace.ReplaceAllString(text, "")
	text = rejoinHyphens(c.dropPageLines(text))

	text = extraNewlines.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

func (c *Cleaner) dropPageLines(text string) string {
	lines := strings.Split(text, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if c.isPageLine(line) {
			continue
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n")
}

func (c *Cleaner) isPageLine(line string) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		return false
	}
	for _, re := range c.pagePatterns {
		if re.MatchString(line) {
			return true
		}
	}
	return false
}

// rejoinHyphens removes "-\n" between two letters: "fertil-\nizer" becomes "fertilizer".
func rejoinHyphens(text string) string {
	matches := hyphenBreak.FindAllStringIndex(text, -1)
	if len(matches) == 0 {
		return text
	}

	var b strings.Builder
	b.Grow(len(text))
	last := 0
	for _, m := range matches {
		before, _ := utf8.DecodeLastRuneInString(text[:m[0]])
		after, _ := utf8.DecodeRuneInString(text[m[1]:])
		if !unicode.IsLetter(before) || !unicode.IsLetter(after) {
			continue
		}
		b.WriteString(text[last:m[0]])
		last = m[1]
	}
	b.WriteString(text[last:])
	return b.String()
}
