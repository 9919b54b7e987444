package skills

import (
	"errors"
	"math"
	"strings"

	"github.com/tidwall/gjson"
)

// ErrNoJSON means the model reply held no parseable JSON object
var ErrNoJSON = errors.New("no JSON object in model reply")

// ExtractJSON pulls the JSON object out of a model reply. A ```json fenced
// block wins; otherwise the first balanced {...} span is used.
func ExtractJSON(text string) (string, error) {
	if block, ok := fenced(text); ok && gjson.Valid(block) {
		return block, nil
	}
	if obj, ok := balanced(text); ok && gjson.Valid(obj) {
		return obj, nil
	}
	return "", ErrNoJSON
}

func fenced(text string) (string, bool) {
	for _, marker := range []string{"```json", "```JSON", "```"} {
		start := strings.Index(text, marker)
		if start < 0 {
			continue
		}
		rest := text[start+len(marker):]
		end := strings.Index(rest, "```")
		if end < 0 {
			continue
		}
		block := strings.TrimSpace(rest[:end])
		if strings.HasPrefix(block, "{") {
			return block, true
		}
	}
	return "", false
}

// balanced scans for the first top level object, skipping braces inside strings
func balanced(text string) (string, bool) {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return "", false
	}
	depth := 0
	inString, escaped := false, false
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

// Number reads a finite JSON number. Strings, NaN and infinities are rejected.
func Number(r gjson.Result) (float64, bool) {
	if r.Type != gjson.Number {
		return 0, false
	}
	v := r.Float()
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// clamp bounds v to [lo, hi]; NaN maps to lo
func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) || v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// confidence reads a 0-1 confidence, falling back to def when absent or not a number
func confidence(r gjson.Result, def float64) float64 {
	v, ok := Number(r)
	if !ok {
		return def
	}
	return clamp(v, 0, 1)
}

// stringList returns the non-empty string members of a JSON array
func stringList(r gjson.Result) []string {
	out := []string{}
	for _, item := range r.Array() {
		if s := strings.TrimSpace(item.String()); s != "" {
			out = append(out, s)
		}
	}
	return out
}
