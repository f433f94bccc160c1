package protocol

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"
)

// NormalizeLanguage canonicalizes a caller-supplied language code ("en",
// "EN-us", "eng") into the base BCP 47 form subtitle providers expect.
func NormalizeLanguage(code string) (string, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return "", nil
	}
	tag, err := language.Parse(code)
	if err != nil {
		return "", fmt.Errorf("language %q: %w", code, err)
	}
	base, _ := tag.Base()
	return base.String(), nil
}

// NormalizeLanguages canonicalizes a list, dropping duplicates while keeping
// first-seen order.
func NormalizeLanguages(codes []string) ([]string, error) {
	if len(codes) == 0 {
		return nil, nil
	}
	out := make([]string, 0, len(codes))
	seen := make(map[string]struct{}, len(codes))
	for _, code := range codes {
		normalized, err := NormalizeLanguage(code)
		if err != nil {
			return nil, err
		}
		if normalized == "" {
			continue
		}
		if _, ok := seen[normalized]; ok {
			continue
		}
		seen[normalized] = struct{}{}
		out = append(out, normalized)
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out, nil
}
