package pagectx

import (
	"fmt"
	"strings"

	"github.com/calderhq/sidechat/internal/domain"
)

const defaultSystemPrompt = "You are a helpful assistant. Answer concisely and use the available tools when they help."

// MergePrompt builds the effective system prompt for a turn: the session's
// system prompt (or a default), an optional custom agent definition, the
// bounded page context, and the tail of the conversation history. Callers
// must pass a payload that already went through Bound; MergePrompt never
// re-checks budgets.
func MergePrompt(session *domain.Session, payload *Payload, history []domain.Message, lastN int) string {
	var b strings.Builder

	if session.SystemPrompt != "" {
		b.WriteString(session.SystemPrompt)
	} else {
		b.WriteString(defaultSystemPrompt)
	}

	if session.CustomAgent != "" {
		b.WriteString("\n\nAgent definition:\n")
		b.WriteString(session.CustomAgent)
	}

	if payload != nil {
		writeContext(&b, payload)
	}

	if lastN > 0 && len(history) > 0 {
		start := len(history) - lastN
		if start < 0 {
			start = 0
		}
		b.WriteString("\n\nRecent conversation:\n")
		for _, msg := range history[start:] {
			fmt.Fprintf(&b, "%s: %s\n", msg.Role, msg.Content)
		}
	}

	return b.String()
}

func writeContext(b *strings.Builder, p *Payload) {
	b.WriteString("\n\nPage context")
	if p.Truncated {
		b.WriteString(" (truncated)")
	}
	b.WriteString(":\n")

	if p.URL != "" {
		fmt.Fprintf(b, "URL: %s\n", p.URL)
	}
	if p.Title != "" {
		fmt.Fprintf(b, "Title: %s\n", p.Title)
	}
	if p.SelectedText != "" {
		fmt.Fprintf(b, "Selected text:\n%s\n", p.SelectedText)
	}
	if p.VisibleText != "" {
		fmt.Fprintf(b, "Visible text:\n%s\n", p.VisibleText)
	}
	if len(p.Headings) > 0 {
		fmt.Fprintf(b, "Headings: %s\n", strings.Join(p.Headings, " | "))
	}
	if len(p.Errors) > 0 {
		b.WriteString("Page errors:\n")
		for _, e := range p.Errors {
			fmt.Fprintf(b, "- %s\n", e)
		}
	}
	if len(p.ConsoleLines) > 0 {
		b.WriteString("Console output:\n")
		for _, line := range p.ConsoleLines {
			fmt.Fprintf(b, "%s\n", line)
		}
	}
	if len(p.HTMLSections) > 0 {
		b.WriteString("HTML excerpts:\n")
		for _, s := range p.HTMLSections {
			fmt.Fprintf(b, "%s\n", s)
		}
	}
}
