package mapper

import (
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/dealsync/internal/normalize"
	"github.com/sells-group/dealsync/internal/schema"
	"github.com/sells-group/dealsync/pkg/hubspot"
)

// SanitizeEnums rewrites enum-typed values to canonical option values and
// omits any enum property with no resolvable token. Properties that are not
// enums, or are absent from sc, pass through. The input map is not modified.
func SanitizeEnums(sc *schema.Schema, props map[string]string) map[string]string {
	out := make(map[string]string, len(props))
	for name, value := range props {
		p, ok := sc.Property(name)
		if !ok || !schema.IsEnum(p) {
			out[name] = value
			continue
		}
		resolved := resolveOptions(p, value)
		if len(resolved) == 0 {
			zap.L().Debug("mapper: dropping unresolved enum value",
				zap.String("object_type", sc.ObjectType),
				zap.String("property", name),
				zap.String("value", value),
			)
			continue
		}
		if schema.IsMultiSelect(p) {
			out[name] = strings.Join(resolved, ";")
		} else {
			out[name] = resolved[0]
		}
	}
	return out
}

func resolveOptions(p hubspot.Property, value string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, tok := range splitTokens(value) {
		v, ok := matchOption(p.Options, tok)
		if !ok || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}

func splitTokens(value string) []string {
	fields := strings.FieldsFunc(value, func(r rune) bool { return r == ',' || r == ';' })
	out := fields[:0]
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}

func matchOption(opts []hubspot.PropertyOption, token string) (string, bool) {
	want := normalize.Fold(token)
	for _, o := range opts {
		if normalize.Fold(o.Value) == want {
			return o.Value, true
		}
	}
	for _, o := range opts {
		if normalize.Fold(o.Label) == want {
			return o.Value, true
		}
	}
	return "", false
}
