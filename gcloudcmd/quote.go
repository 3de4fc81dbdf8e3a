package gcloudcmd

import (
	"fmt"
	"regexp"
	"strings"
)

var safeWord = regexp.MustCompile(`^[a-zA-Z0-9_@%+=:,./-]+$`)

// Quote returns s as a single POSIX shell word. Safe words pass through
// untouched; everything else is single-quoted, with embedded single quotes
// spliced as '\''.
func Quote(s string) string {
	if s == "" {
		return "''"
	}
	if safeWord.MatchString(s) {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// Unquote inverts Quote. It only accepts the forms Quote produces, which is
// all the round-trip guarantee requires.
func Unquote(quoted string) (string, error) {
	if quoted == "" {
		return "", fmt.Errorf("empty shell word")
	}
	if !strings.HasPrefix(quoted, "'") {
		if !safeWord.MatchString(quoted) {
			return "", fmt.Errorf("unquoted word %q contains unsafe characters", quoted)
		}
		return quoted, nil
	}

	var b strings.Builder
	i := 0
	for i < len(quoted) {
		if quoted[i] != '\'' {
			return "", fmt.Errorf("unexpected byte %q at offset %d in %q", quoted[i], i, quoted)
		}
		end := strings.IndexByte(quoted[i+1:], '\'')
		if end < 0 {
			return "", fmt.Errorf("unterminated quote in %q", quoted)
		}
		b.WriteString(quoted[i+1 : i+1+end])
		i += end + 2
		if i < len(quoted) {
			if !strings.HasPrefix(quoted[i:], `\'`) {
				return "", fmt.Errorf("unexpected trailing content at offset %d in %q", i, quoted)
			}
			b.WriteByte('\'')
			i += 2
		}
	}
	return b.String(), nil
}
