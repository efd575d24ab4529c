package manifest

import (
	"fmt"

	"github.com/pmezard/go-difflib/difflib"
)

// Diff returns a unified diff from before to after, or "" when they encode
// identically. A nil before is treated as an empty document.
func Diff(before, after *Manifest, fromName, toName string) (string, error) {
	var a, b string
	if before != nil {
		raw, err := before.Marshal()
		if err != nil {
			return "", err
		}
		a = string(raw)
	}
	raw, err := after.Marshal()
	if err != nil {
		return "", err
	}
	b = string(raw)
	if a == b {
		return "", nil
	}

	ud := difflib.UnifiedDiff{
		A:        difflib.SplitLines(a),
		B:        difflib.SplitLines(b),
		FromFile: fromName,
		ToFile:   toName,
		Context:  3,
	}
	text, err := difflib.GetUnifiedDiffString(ud)
	if err != nil {
		return "", fmt.Errorf("diff compose files: %w", err)
	}
	return text, nil
}
