package pagectx

import (
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/calderhq/sidechat/internal/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestBound_WithinBudgets(t *testing.T) {
	raw := RawPayload{
		URL:          "https://example.com/dashboard",
		Title:        "Dashboard",
		VisibleText:  "hello world",
		HTMLSections: []string{"<div>a</div>", "<div>b</div>"},
		Headings:     []string{"One", "Two"},
		Errors:       []string{"TypeError: x is undefined"},
		ConsoleLines: []string{"[info] ready"},
		SelectedText: "world",
	}

	p := Bound(raw)

	assert.False(t, p.Truncated)
	assert.Empty(t, p.TruncationReasons)
	assert.Equal(t, raw.VisibleText, p.VisibleText)
	assert.Equal(t, raw.HTMLSections, p.HTMLSections)
	assert.Equal(t, raw.Headings, p.Headings)
	assert.Equal(t, raw.SelectedText, p.SelectedText)
}

func TestBound_TruncatesOversizedFields(t *testing.T) {
	raw := RawPayload{
		VisibleText:  strings.Repeat("v", MaxVisibleTextChars+1),
		SelectedText: strings.Repeat("s", MaxSelectedTextChars+100),
		Screenshot:   make([]byte, MaxScreenshotBytes+1),
	}

	p := Bound(raw)

	assert.True(t, p.Truncated)
	assert.Len(t, p.VisibleText, MaxVisibleTextChars)
	assert.Len(t, p.SelectedText, MaxSelectedTextChars)
	assert.Len(t, p.Screenshot, MaxScreenshotBytes)
	assert.Len(t, p.TruncationReasons, 3)
}

func TestBound_CountsCharactersNotBytes(t *testing.T) {
	// 6000 two-byte runes: 12000 bytes but well under the 10000-char budget.
	under := strings.Repeat("é", 6000)
	p := Bound(RawPayload{VisibleText: under})

	assert.False(t, p.Truncated)
	assert.Equal(t, under, p.VisibleText)

	over := strings.Repeat("é", MaxVisibleTextChars+500)
	p = Bound(RawPayload{VisibleText: over})

	assert.True(t, p.Truncated)
	assert.Equal(t, MaxVisibleTextChars, utf8.RuneCountInString(p.VisibleText))
	assert.True(t, utf8.ValidString(p.VisibleText))
}

func TestBound_ListBudgets(t *testing.T) {
	raw := RawPayload{
		Headings:     make([]string, MaxHeadings+5),
		Errors:       make([]string, MaxErrors+1),
		ConsoleLines: make([]string, MaxConsoleLines+50),
	}

	p := Bound(raw)

	assert.True(t, p.Truncated)
	assert.Len(t, p.Headings, MaxHeadings)
	assert.Len(t, p.Errors, MaxErrors)
	assert.Len(t, p.ConsoleLines, MaxConsoleLines)
}

func TestBound_HTMLSectionAndTotalBudgets(t *testing.T) {
	// Each section is clipped to its own budget before the total applies.
	oversized := strings.Repeat("x", MaxSectionHTMLChars*2)
	raw := RawPayload{
		HTMLSections: []string{oversized, oversized, oversized, oversized,
			oversized, oversized, oversized, oversized, oversized, oversized,
			oversized, oversized},
	}

	p := Bound(raw)

	assert.True(t, p.Truncated)
	total := 0
	for _, s := range p.HTMLSections {
		assert.LessOrEqual(t, len(s), MaxSectionHTMLChars)
		total += len(s)
	}
	assert.LessOrEqual(t, total, MaxTotalHTMLChars)
}

func TestBound_NeverRejects(t *testing.T) {
	p := Bound(RawPayload{})
	assert.False(t, p.Truncated)
	assert.Empty(t, p.VisibleText)
}

func TestMergePrompt_SessionOverridesAndHistory(t *testing.T) {
	session := &domain.Session{
		ID:           uuid.New(),
		SystemPrompt: "You are a DevOps expert.",
		CustomAgent:  "Always answer with kubectl commands.",
	}
	payload := &Payload{URL: "https://example.com", Title: "Pods", Truncated: true}
	history := []domain.Message{
		{Role: domain.RoleAssistant, Content: "First reply", CreatedAt: time.Now()},
		{Role: domain.RoleAssistant, Content: "Second reply", CreatedAt: time.Now()},
	}

	prompt := MergePrompt(session, payload, history, 1)

	assert.True(t, strings.HasPrefix(prompt, "You are a DevOps expert."))
	assert.Contains(t, prompt, "Always answer with kubectl commands.")
	assert.Contains(t, prompt, "Page context (truncated):")
	assert.Contains(t, prompt, "https://example.com")
	assert.Contains(t, prompt, "Second reply")
	assert.NotContains(t, prompt, "First reply")
}

func TestMergePrompt_DefaultsWithoutOverrides(t *testing.T) {
	session := &domain.Session{ID: uuid.New()}

	prompt := MergePrompt(session, nil, nil, 5)

	assert.Equal(t, defaultSystemPrompt, prompt)
}
