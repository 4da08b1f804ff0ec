package anthropic

import (
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"
)

// ExtractJSON strips markdown fences and surrounding prose from a model
// reply, returning the outermost JSON object. A reply whose first JSON value
// is an array yields "".
func ExtractJSON(text string) string {
	s := strings.TrimSpace(text)
	if strings.HasPrefix(s, "```") {
		if i := strings.Index(s, "\n"); i >= 0 {
			s = s[i+1:]
		}
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	start := strings.IndexAny(s, "{[")
	if start < 0 || s[start] != '{' {
		return ""
	}
	end := strings.LastIndex(s, "}")
	if end <= start {
		return ""
	}
	return s[start : end+1]
}

// DecodeJSONObject extracts and decodes a JSON object from a model reply.
// A reply without an object is an error.
func DecodeJSONObject(text string, out any) error {
	raw := ExtractJSON(text)
	if raw == "" {
		return eris.New("anthropic: reply contains no json object")
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return eris.Wrap(err, "anthropic: decode reply json")
	}
	return nil
}
