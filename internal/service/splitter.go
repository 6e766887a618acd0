package service

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/jdkato/prose/v2"

	"github.com/cloo-solutions/agentkb/internal/domain"
)

// Splitter selects the natural unit a rule-based split breaks text on.
type Splitter string

const (
	SplitterParagraph Splitter = "paragraph"
	SplitterSentence  Splitter = "sentence"
)

// SplitConfig controls rule-based chunking. Lengths are in characters.
type SplitConfig struct {
	MinLength int      `json:"min_length"`
	MaxLength int      `json:"max_length"`
	Splitter  Splitter `json:"splitter"`
	Overlap   int      `json:"overlap"`
}

// DefaultSplitConfig provides the defaults used when a caller sends none.
func DefaultSplitConfig() SplitConfig {
	return SplitConfig{
		MinLength: 100,
		MaxLength: 1500,
		Splitter:  SplitterParagraph,
		Overlap:   50,
	}
}

// Validate checks the configuration for internal consistency.
func (c SplitConfig) Validate() error {
	if c.Splitter != SplitterParagraph && c.Splitter != SplitterSentence {
		return domain.ErrInvalidSplitter
	}
	if c.MaxLength <= 0 {
		return domain.ErrInvalidSplitConfig.WithCause(fmt.Errorf("max_length must be positive, got %d", c.MaxLength))
	}
	if c.MinLength < 0 || c.MinLength > c.MaxLength {
		return domain.ErrInvalidSplitConfig.WithCause(fmt.Errorf("min_length must be between 0 and max_length, got %d", c.MinLength))
	}
	if c.Overlap < 0 || c.Overlap >= c.MaxLength {
		return domain.ErrInvalidSplitConfig.WithCause(fmt.Errorf("overlap must be between 0 and max_length, got %d", c.Overlap))
	}
	return nil
}

func (c SplitConfig) separator() string {
	if c.Splitter == SplitterSentence {
		return " "
	}
	return "\n\n"
}

// SplitText breaks text into ordered chunks. Every chunk after the first
// starts with up to Overlap characters from the end of its predecessor, so
// no chunk is longer than MaxLength+Overlap. Chunks are at least MinLength
// long unless the text itself is shorter.
func SplitText(text string, cfg SplitConfig) ([]string, error) {
	if cfg.Splitter == "" {
		cfg.Splitter = SplitterParagraph
	}
	if cfg.MaxLength <= 0 {
		splitter := cfg.Splitter
		cfg = DefaultSplitConfig()
		cfg.Splitter = splitter
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var units []string
	switch cfg.Splitter {
	case SplitterSentence:
		units = sentenceUnits(text)
	default:
		units = paragraphUnits(text)
	}

	var pieces []string
	for _, u := range units {
		pieces = append(pieces, splitLong(u, cfg.MaxLength)...)
	}

	bodies := pack(pieces, cfg)
	return applyOverlap(bodies, cfg), nil
}

var paragraphBreak = regexp.MustCompile(`\n[ \t]*\n`)

func paragraphUnits(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	var units []string
	for _, p := range paragraphBreak.Split(text, -1) {
		if p = strings.TrimSpace(p); p != "" {
			units = append(units, p)
		}
	}
	return units
}

func sentenceUnits(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	doc, err := prose.NewDocument(text,
		prose.WithTagging(false),
		prose.WithExtraction(false),
		prose.WithTokenization(false),
	)
	if err != nil {
		return punctuationSentences(text)
	}

	var units []string
	for _, s := range doc.Sentences() {
		if t := strings.TrimSpace(s.Text); t != "" {
			units = append(units, t)
		}
	}
	if len(units) == 0 {
		return punctuationSentences(text)
	}
	return units
}

// punctuationSentences cuts after terminal punctuation followed by space.
func punctuationSentences(text string) []string {
	runes := []rune(text)
	var units []string
	start := 0
	for i := 0; i < len(runes); i++ {
		switch runes[i] {
		case '.', '!', '?':
			if i+1 == len(runes) || unicode.IsSpace(runes[i+1]) {
				if s := strings.TrimSpace(string(runes[start : i+1])); s != "" {
					units = append(units, s)
				}
				start = i + 1
			}
		}
	}
	if s := strings.TrimSpace(string(runes[start:])); s != "" {
		units = append(units, s)
	}
	return units
}

// splitLong cuts a unit longer than max at whitespace, falling back to a
// hard cut when a window has no whitespace in its second half.
func splitLong(unit string, max int) []string {
	runes := []rune(unit)
	if len(runes) <= max {
		return []string{unit}
	}

	var parts []string
	start := 0
	for start < len(runes) {
		end := start + max
		if end >= len(runes) {
			end = len(runes)
		} else {
			minCut := start + max/2
			for i := end; i > minCut; i-- {
				if unicode.IsSpace(runes[i-1]) {
					end = i
					break
				}
			}
		}

		if part := strings.TrimSpace(string(runes[start:end])); part != "" {
			parts = append(parts, part)
		}
		start = end
	}
	return parts
}

// pack joins pieces greedily up to MaxLength. A body that would be emitted
// shorter than MinLength borrows words from the next piece instead.
func pack(pieces []string, cfg SplitConfig) []string {
	sep := cfg.separator()
	sepLen := utf8.RuneCountInString(sep)

	var bodies []string
	cur := ""
	for _, piece := range pieces {
		if cur == "" {
			cur = piece
			continue
		}

		curLen := utf8.RuneCountInString(cur)
		if curLen+sepLen+utf8.RuneCountInString(piece) <= cfg.MaxLength {
			cur += sep + piece
			continue
		}

		if curLen < cfg.MinLength {
			head, rest := cutAtSpace(piece, cfg.MaxLength-curLen-sepLen)
			if head != "" {
				bodies = append(bodies, cur+sep+head)
				cur = rest
				continue
			}
		}

		bodies = append(bodies, cur)
		cur = piece
	}

	if cur != "" {
		n := len(bodies)
		if n > 0 && utf8.RuneCountInString(cur) < cfg.MinLength &&
			utf8.RuneCountInString(bodies[n-1])+sepLen+utf8.RuneCountInString(cur) <= cfg.MaxLength {
			bodies[n-1] += sep + cur
		} else {
			bodies = append(bodies, cur)
		}
	}

	return bodies
}

// cutAtSpace returns the longest whitespace-terminated prefix of s no
// longer than room, and the remainder.
func cutAtSpace(s string, room int) (string, string) {
	runes := []rune(s)
	if room <= 0 {
		return "", s
	}
	if len(runes) <= room {
		return s, ""
	}
	for i := room; i > 0; i-- {
		if unicode.IsSpace(runes[i]) {
			return strings.TrimSpace(string(runes[:i])), strings.TrimSpace(string(runes[i:]))
		}
	}
	return "", s
}

func applyOverlap(bodies []string, cfg SplitConfig) []string {
	if cfg.Overlap <= 0 || len(bodies) < 2 {
		return bodies
	}

	sep := cfg.separator()
	budget := cfg.Overlap - utf8.RuneCountInString(sep)

	chunks := make([]string, len(bodies))
	chunks[0] = bodies[0]
	for i := 1; i < len(bodies); i++ {
		tail := overlapTail(bodies[i-1], budget)
		if tail == "" {
			chunks[i] = bodies[i]
			continue
		}
		chunks[i] = tail + sep + bodies[i]
	}
	return chunks
}

// overlapTail returns at most n trailing characters of s, starting on a
// word boundary.
func overlapTail(s string, n int) string {
	if n <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= n {
		return strings.TrimSpace(s)
	}

	start := len(runes) - n
	if !unicode.IsSpace(runes[start-1]) {
		for start < len(runes) && !unicode.IsSpace(runes[start]) {
			start++
		}
	}
	return strings.TrimSpace(string(runes[start:]))
}
