// internal/scheduler/render.go
package scheduler

import (
	"fmt"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"

	"github.com/user/secretary/internal/types"
)

const maxDescriptionChars = 200

// Render produces the notification text for an event reminder. A rule
// template may use {summary} and {when}; without one a default phrasing is
// used. The lead phrase reflects the rule's offset, not the actual delta,
// so a late tick still reads naturally.
func Render(event *types.Event, rule types.ReminderRule) string {
	when := leadPhrase(rule.OffsetMinutes)

	var text string
	if rule.Template != "" {
		text = strings.NewReplacer(
			"{summary}", event.Summary,
			"{when}", when,
		).Replace(rule.Template)
	} else {
		text = fmt.Sprintf("⏰ Reminder: %q starts %s", event.Summary, when)
	}

	var extra []string
	if event.Location != "" {
		extra = append(extra, "📍 "+event.Location)
	}
	if snippet := descriptionSnippet(event.Description); snippet != "" {
		extra = append(extra, snippet)
	}
	if len(extra) > 0 {
		text += "\n" + strings.Join(extra, "\n")
	}
	return text
}

// leadPhrase turns an offset into natural wording using the largest whole
// unit, matching how people say it: days, then hours, then minutes.
func leadPhrase(offsetMinutes int) string {
	switch {
	case offsetMinutes <= 0:
		return "now"
	case offsetMinutes >= 1440:
		days := offsetMinutes / 1440
		if days == 1 {
			return "in 1 day"
		}
		return fmt.Sprintf("in %d days", days)
	case offsetMinutes >= 60:
		hours := offsetMinutes / 60
		if hours == 1 {
			return "in 1 hour"
		}
		return fmt.Sprintf("in %d hours", hours)
	case offsetMinutes == 1:
		return "in 1 minute"
	default:
		return fmt.Sprintf("in %d minutes", offsetMinutes)
	}
}

// descriptionSnippet converts an event description (calendar backends
// commonly return HTML) to markdown and truncates it for chat transports.
func descriptionSnippet(description string) string {
	if description == "" {
		return ""
	}
	md, err := htmltomarkdown.ConvertString(description)
	if err != nil {
		md = description
	}
	md = strings.TrimSpace(md)
	if len(md) > maxDescriptionChars {
		md = md[:maxDescriptionChars] + "…"
	}
	return md
}
