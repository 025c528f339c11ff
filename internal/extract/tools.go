package extract

import (
	"encoding/json"

	"github.com/user/secretary/pkg/llm"
)

// calendarTools are the tool schemas offered to the model. Every property
// is optional on the wire: the resolver tracks what is still missing and
// drives the follow-up questions, so the model is free to pass along
// partial information as the user reveals it.
var calendarTools = []llm.Tool{
	{
		Type: "function",
		Function: llm.ToolSpec{
			Name:        "create_event",
			Description: "Schedule a calendar event. Call with whatever details the user has given so far; missing details are collected in follow-up turns.",
			Parameters: json.RawMessage(`{
				"type": "object",
				"properties": {
					"summary": {"type": "string", "description": "What the event is, e.g. 'math test'"},
					"date": {"type": "string", "description": "Day of the event as the user said it: 'monday', 'tomorrow', '2026-09-07'"},
					"time": {"type": "string", "description": "Time of day as the user said it: '8 am', '14:30'"},
					"duration": {"type": "string", "description": "How long it lasts, e.g. '1 hour', '45 minutes'"},
					"location": {"type": "string"},
					"description": {"type": "string"},
					"attendees": {"type": "string", "description": "Comma-separated attendee emails"}
				}
			}`),
		},
	},
	{
		Type: "function",
		Function: llm.ToolSpec{
			Name:        "update_event",
			Description: "Change an existing event (reschedule, rename, move, cancel it). Needs the event id from an earlier search or listing.",
			Parameters: json.RawMessage(`{
				"type": "object",
				"properties": {
					"event_id": {"type": "string"},
					"summary": {"type": "string"},
					"date": {"type": "string"},
					"time": {"type": "string"},
					"location": {"type": "string"},
					"status": {"type": "string", "enum": ["confirmed", "tentative", "cancelled"]}
				}
			}`),
		},
	},
	{
		Type: "function",
		Function: llm.ToolSpec{
			Name:        "search_events",
			Description: "Find events matching a phrase ('when is my dentist appointment?').",
			Parameters: json.RawMessage(`{
				"type": "object",
				"properties": {
					"query": {"type": "string"}
				}
			}`),
		},
	},
	{
		Type: "function",
		Function: llm.ToolSpec{
			Name:        "list_events",
			Description: "List the events on a day ('what do I have tomorrow?'). Defaults to today.",
			Parameters: json.RawMessage(`{
				"type": "object",
				"properties": {
					"date": {"type": "string", "description": "'today', 'tomorrow', a weekday, or an explicit date"},
					"days": {"type": "string", "description": "Number of days to cover, default 1"}
				}
			}`),
		},
	},
	{
		Type: "function",
		Function: llm.ToolSpec{
			Name:        "create_reminder",
			Description: "Set a standalone reminder not tied to a calendar event ('remind me to call mom in 20 minutes').",
			Parameters: json.RawMessage(`{
				"type": "object",
				"properties": {
					"summary": {"type": "string", "description": "What to be reminded about"},
					"minutes_from_now": {"type": "string", "description": "Minutes until the reminder, when given relatively"},
					"remind_at": {"type": "string", "description": "Absolute or natural time ('5 pm', RFC 3339)"}
				}
			}`),
		},
	},
	{
		Type: "function",
		Function: llm.ToolSpec{
			Name:        "cancel",
			Description: "Abandon an in-progress request when the user says 'never mind' or similar.",
			Parameters: json.RawMessage(`{
				"type": "object",
				"properties": {
					"target": {"type": "string", "description": "Which in-progress request to abandon; omit for the most recent one"}
				}
			}`),
		},
	},
}
