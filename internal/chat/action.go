package chat

import (
	"encoding/json"
	"fmt"
	"strings"
)

type Kind string

const (
	KindSend    Kind = "send"
	KindList    Kind = "list"
	KindSummary Kind = "summary"
	KindSuggest Kind = "suggest"
	KindRead    Kind = "read"
	KindAutoOn  Kind = "auto_on"
	KindAutoOff Kind = "auto_off"
	KindStatus  Kind = "status"
	KindError   Kind = "error"
)

type QueryType string

const (
	QueryAll                 QueryType = "all"
	QueryLastFromContact     QueryType = "last_from_contact"
	QueryLastFromMe          QueryType = "last_from_me"
	QueryPositionFromContact QueryType = "position_from_contact"
)

const (
	DefaultReadCount    = 10
	DefaultSummaryCount = 20
	maxFetchCount       = 50
)

// Action is the structured form of one user command. Exactly one Kind is
// active; Contact/Message/Count/Query/Position are meaningful only for the
// kinds that use them.
type Action struct {
	Kind     Kind      `json:"action"`
	Contact  string    `json:"contact,omitempty"`
	Message  string    `json:"message,omitempty"`
	Count    int       `json:"count,omitempty"`
	Query    QueryType `json:"query_type,omitempty"`
	Position int       `json:"position,omitempty"`
}

func ErrorAction(message string) Action {
	return Action{Kind: KindError, Message: message}
}

// DecodeAction parses one brace-delimited action object and applies the
// documented defaults: count 10 (20 for summary), query_type "all",
// position 1.
func DecodeAction(data []byte) (Action, error) {
	var a Action
	if err := json.Unmarshal(data, &a); err != nil {
		return Action{}, fmt.Errorf("parse action: %w", err)
	}
	a.Kind = Kind(strings.ToLower(strings.TrimSpace(string(a.Kind))))
	switch a.Kind {
	case KindSend, KindList, KindSummary, KindSuggest, KindRead, KindAutoOn, KindAutoOff, KindStatus, KindError:
	case "":
		return Action{}, fmt.Errorf("action is required")
	default:
		return Action{}, fmt.Errorf("unknown action %q", a.Kind)
	}
	a.Contact = strings.TrimSpace(a.Contact)
	a.applyDefaults()
	return a, nil
}

func (a *Action) applyDefaults() {
	if a == nil {
		return
	}
	if a.Count <= 0 {
		if a.Kind == KindSummary {
			a.Count = DefaultSummaryCount
		} else {
			a.Count = DefaultReadCount
		}
	}
	if a.Count > maxFetchCount {
		a.Count = maxFetchCount
	}
	switch a.Query {
	case QueryAll, QueryLastFromContact, QueryLastFromMe, QueryPositionFromContact:
	default:
		a.Query = QueryAll
	}
	if a.Position <= 0 {
		a.Position = 1
	}
}

// ExtractJSONObject returns the first outermost balanced {...} object in
// free-form model text. A brace-depth scan is used instead of a regex so a
// nested object quoted inside a message field does not cut the match short.
// Braces inside JSON string literals are skipped.
func ExtractJSONObject(text string) (string, bool) {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return "", false
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[start : i+1], true
			}
		}
	}
	return "", false
}
