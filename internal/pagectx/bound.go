package pagectx

import (
	"fmt"
	"unicode/utf8"
)

// Size budgets for externally captured page context. These are part of the
// external contract: producers must expect truncation at these bounds.
const (
	MaxVisibleTextChars  = 10000
	MaxSectionHTMLChars  = 500
	MaxTotalHTMLChars    = 5000
	MaxHeadings          = 50
	MaxErrors            = 20
	MaxConsoleLines      = 100
	MaxScreenshotBytes   = 1 << 20 // 1 MiB
	MaxSelectedTextChars = 5000
)

// RawPayload is an unbounded page-context snapshot as supplied by a producer
type RawPayload struct {
	URL          string   `json:"url,omitempty"`
	Title        string   `json:"title,omitempty"`
	VisibleText  string   `json:"visible_text,omitempty"`
	HTMLSections []string `json:"html_sections,omitempty"`
	Headings     []string `json:"headings,omitempty"`
	Errors       []string `json:"errors,omitempty"`
	ConsoleLines []string `json:"console_lines,omitempty"`
	Screenshot   []byte   `json:"screenshot,omitempty"`
	SelectedText string   `json:"selected_text,omitempty"`
}

// Payload is a bounded page-context snapshot safe to merge into a prompt
type Payload struct {
	URL          string   `json:"url,omitempty"`
	Title        string   `json:"title,omitempty"`
	VisibleText  string   `json:"visible_text,omitempty"`
	HTMLSections []string `json:"html_sections,omitempty"`
	Headings     []string `json:"headings,omitempty"`
	Errors       []string `json:"errors,omitempty"`
	ConsoleLines []string `json:"console_lines,omitempty"`
	Screenshot   []byte   `json:"screenshot,omitempty"`
	SelectedText string   `json:"selected_text,omitempty"`

	Truncated         bool     `json:"truncated"`
	TruncationReasons []string `json:"truncation_reasons,omitempty"`
}

// Bound applies every size budget field by field. It never rejects input:
// oversized fields are truncated and flagged, never dropped entirely.
func Bound(raw RawPayload) Payload {
	p := Payload{
		URL:        raw.URL,
		Title:      raw.Title,
		Screenshot: raw.Screenshot,
	}

	p.VisibleText = truncateString(raw.VisibleText, MaxVisibleTextChars, "visible_text", &p)
	p.SelectedText = truncateString(raw.SelectedText, MaxSelectedTextChars, "selected_text", &p)

	p.HTMLSections = make([]string, 0, len(raw.HTMLSections))
	totalHTML := 0
	for _, section := range raw.HTMLSections {
		if utf8.RuneCountInString(section) > MaxSectionHTMLChars {
			section = cutRunes(section, MaxSectionHTMLChars)
			p.flag("html_section exceeded %d chars", MaxSectionHTMLChars)
		}
		sectionChars := utf8.RuneCountInString(section)
		if totalHTML+sectionChars > MaxTotalHTMLChars {
			remaining := MaxTotalHTMLChars - totalHTML
			if remaining > 0 {
				p.HTMLSections = append(p.HTMLSections, cutRunes(section, remaining))
				totalHTML += remaining
			}
			p.flag("total html exceeded %d chars", MaxTotalHTMLChars)
			break
		}
		p.HTMLSections = append(p.HTMLSections, section)
		totalHTML += sectionChars
	}

	p.Headings = truncateList(raw.Headings, MaxHeadings, "headings", &p)
	p.Errors = truncateList(raw.Errors, MaxErrors, "errors", &p)
	p.ConsoleLines = truncateList(raw.ConsoleLines, MaxConsoleLines, "console_lines", &p)

	if len(raw.Screenshot) > MaxScreenshotBytes {
		p.Screenshot = raw.Screenshot[:MaxScreenshotBytes]
		p.flag("screenshot exceeded %d bytes", MaxScreenshotBytes)
	}

	return p
}

func (p *Payload) flag(format string, args ...any) {
	p.Truncated = true
	p.TruncationReasons = append(p.TruncationReasons, fmt.Sprintf(format, args...))
}

// Text budgets count characters, not bytes, so multibyte input is never
// truncated early and cuts always land on rune boundaries. Only the
// screenshot budget is byte-based.
func truncateString(s string, limit int, field string, p *Payload) string {
	if utf8.RuneCountInString(s) > limit {
		p.flag("%s exceeded %d chars", field, limit)
		return cutRunes(s, limit)
	}
	return s
}

// cutRunes returns the first limit runes of s, sliced on a rune boundary
func cutRunes(s string, limit int) string {
	seen := 0
	for i := range s {
		if seen == limit {
			return s[:i]
		}
		seen++
	}
	return s
}

func truncateList(items []string, limit int, field string, p *Payload) []string {
	if len(items) > limit {
		p.flag("%s exceeded %d entries", field, limit)
		return items[:limit]
	}
	return items
}
