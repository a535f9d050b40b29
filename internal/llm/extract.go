package llm

import (
	"encoding/json"
	"regexp"
	"strings"
)

var (
	fencedJSONRe = regexp.MustCompile("(?s)```json\\s*(.*?)\\s*```")
	// A stray ``";`` before the closing brace, a common model slip when it
	// appends a SQL statement terminator inside the JSON value.
	semicolonBraceRe = regexp.MustCompile(`";\s*}`)
)

// ExtractJSON pulls a JSON object out of free-form model output. Models wrap
// objects in markdown fences, prepend commentary, or emit slightly broken
// JSON; this tries progressively more invasive repairs before giving up:
//
//  1. parse the contents of a ```json fence
//  2. parse the slice from the first '{' to the last '}'
//  3. rewrite a trailing `";` before '}' to `"` and reparse
//  4. insert a missing closing quote before the final '}' and reparse
func ExtractJSON(text string) (map[string]any, error) {
	candidate := text
	if m := fencedJSONRe.FindStringSubmatch(text); m != nil {
		candidate = m[1]
	} else {
		start := strings.Index(text, "{")
		end := strings.LastIndex(text, "}")
		if start >= 0 && end > start {
			candidate = text[start : end+1]
		}
	}

	var obj map[string]any
	if err := json.Unmarshal([]byte(candidate), &obj); err == nil {
		return obj, nil
	}

	repaired := semicolonBraceRe.ReplaceAllString(candidate, `"}`)
	if err := json.Unmarshal([]byte(repaired), &obj); err == nil {
		return obj, nil
	}

	if fixed, ok := closeUnterminatedString(repaired); ok {
		if err := json.Unmarshal([]byte(fixed), &obj); err == nil {
			return obj, nil
		}
	}

	return nil, &ExtractError{Text: text}
}

// closeUnterminatedString inserts a closing quote before the final '}' when
// the object ends with an unterminated string value.
func closeUnterminatedString(s string) (string, bool) {
	end := strings.LastIndex(s, "}")
	if end <= 0 {
		return "", false
	}
	body := strings.TrimRight(s[:end], " \t\r\n")
	if strings.HasSuffix(body, `"`) {
		return "", false
	}
	return body + `"` + s[end:], true
}

// ExtractError reports that no JSON object could be recovered from text.
type ExtractError struct {
	Text string
}

func (e *ExtractError) Error() string {
	preview := e.Text
	if len(preview) > 120 {
		preview = preview[:120] + "..."
	}
	return "no JSON object found in response: " + preview
}

// ExtractSQL recovers the "sql" field from a model response. Returns "" when
// the response carries no recoverable SQL; callers treat an empty string as a
// failed generation attempt rather than an error.
func ExtractSQL(text string) string {
	return ExtractField(text, "sql")
}

// ExtractField recovers a single string field from a model response.
func ExtractField(text, key string) string {
	obj, err := ExtractJSON(text)
	if err != nil {
		return ""
	}
	val, ok := obj[key].(string)
	if !ok {
		return ""
	}
	return strings.TrimSpace(val)
}
