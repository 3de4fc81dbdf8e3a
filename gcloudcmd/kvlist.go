package gcloudcmd

import (
	"fmt"
	"strings"
)

// gcloud list flags split on commas unless the value opens with ^DELIM^, in
// which case DELIM separates the items instead. altDelimiters are tried in
// order until one is absent from every item.
var altDelimiters = []string{"|", "@", "##", ":::"}

// EncodeKVList renders ordered name=value pairs as a gcloud list-flag value.
// Plain comma joining is used unless any value contains a comma, in which
// case the alternate-delimiter form keeps the value intact.
func EncodeKVList(pairs []EnvVar) string {
	items := make([]string, len(pairs))
	plain := true
	for i, p := range pairs {
		items[i] = p.Name + "=" + p.Value
		if strings.Contains(p.Value, ",") {
			plain = false
		}
	}
	if plain {
		return strings.Join(items, ",")
	}

	delim := pickDelimiter(items)
	return "^" + delim + "^" + strings.Join(items, delim)
}

func pickDelimiter(items []string) string {
	for _, d := range altDelimiters {
		clean := true
		for _, item := range items {
			if strings.Contains(item, d) {
				clean = false
				break
			}
		}
		if clean {
			return d
		}
	}
	// No single candidate works; stack the candidates until one combination
	// is absent. Values this hostile do not occur in practice, but the
	// encoder must never emit a value it cannot delimit.
	delim := altDelimiters[len(altDelimiters)-1]
	for {
		delim += altDelimiters[0]
		hit := false
		for _, item := range items {
			if strings.Contains(item, delim) {
				hit = true
				break
			}
		}
		if !hit {
			return delim
		}
	}
}

// DecodeKVList is the inverse of EncodeKVList. It exists so the encoding is
// verifiable: every encoded list must decode back to the same pairs.
func DecodeKVList(encoded string) ([]EnvVar, error) {
	if encoded == "" {
		return nil, nil
	}

	sep := ","
	if strings.HasPrefix(encoded, "^") {
		rest := encoded[1:]
		end := strings.Index(rest, "^")
		if end < 0 {
			return nil, fmt.Errorf("malformed alternate-delimiter prefix in %q", encoded)
		}
		sep = rest[:end]
		encoded = rest[end+1:]
	}

	items := strings.Split(encoded, sep)
	pairs := make([]EnvVar, 0, len(items))
	for _, item := range items {
		name, value, ok := strings.Cut(item, "=")
		if !ok {
			return nil, fmt.Errorf("list item %q has no '=' separator", item)
		}
		pairs = append(pairs, EnvVar{Name: name, Value: value})
	}
	return pairs, nil
}
