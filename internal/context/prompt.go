package context

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/user/secretary/internal/types"
)

// systemPrompt is the fixed instruction block placed ahead of the dynamic
// context. The extractor's tool schemas carry the field-level detail; this
// sets the conversational contract.
const systemPrompt = `You are a personal secretary that manages the user's calendar and reminders through conversation.

## Behavior

- When the user mentions something schedulable (a test, a meeting, a flight), call the matching tool with every detail they gave. Do not invent details they did not say.
- If required details are missing, the application will ask the user for them one at a time. Pass along whatever new details the user supplies in follow-up messages by calling the same tool again with just the new fields.
- When the user changes their mind about a detail they already gave, call the tool again with the corrected value.
- If the user says "never mind", "cancel that", or similar, call the cancel tool.
- For questions about the schedule ("what do I have tomorrow?"), call search_events or list_events rather than answering from memory.
- Reminders for events are automatic. Only call create_reminder for standalone reminders ("remind me to call mom in 20 minutes").
- Answer plainly and briefly. No filler.`

// buildSystemPrompt appends the dynamic context: current time and the
// progress of any in-flight actions, so the model knows what has already
// been collected and does not re-request it.
func buildSystemPrompt(now time.Time, pending []*types.PendingAction) string {
	var b strings.Builder
	b.WriteString(systemPrompt)
	fmt.Fprintf(&b, "\n\n## Current Context\n\n- Time: %s (%s)\n", now.Format(time.RFC3339), now.Weekday())

	for _, action := range pending {
		fmt.Fprintf(&b, "\n## In progress: %s\n", action.Kind)
		if len(action.Collected) > 0 {
			b.WriteString("Collected so far:\n")
			for _, field := range sortedKeys(action.Collected) {
				fmt.Fprintf(&b, "- %s: %s\n", field, action.Collected[field])
			}
		}
		if len(action.Missing) > 0 {
			fmt.Fprintf(&b, "Still needed: %s. The user is being asked for %q; their next message is likely the answer.\n",
				strings.Join(action.Missing, ", "), action.NextMissing())
		}
	}
	return b.String()
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
