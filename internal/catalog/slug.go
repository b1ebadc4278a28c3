// Package catalog holds product and category helpers shared by handlers,
// the cart and order placement.
package catalog

import (
	"context"
	"fmt"
	"strings"
	"unicode"
)

// Slugify lowercases title and joins its letter/digit runs with dashes.
func Slugify(title string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(strings.TrimSpace(title)) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			dash = false
		case b.Len() > 0 && !dash:
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

// UniqueSlug appends -1, -2, ... to the slug of title until exists reports false.
func UniqueSlug(ctx context.Context, title string, exists func(context.Context, string) (bool, error)) (string, error) {
	base := Slugify(title)
	if base == "" {
		base = "item"
	}
	slug := base
	for i := 1; ; i++ {
		taken, err := exists(ctx, slug)
		if err != nil {
			return "", err
		}
		if !taken {
			return slug, nil
		}
		slug = fmt.Sprintf("%s-%d", base, i)
	}
}
