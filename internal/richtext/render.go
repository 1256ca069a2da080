// Package richtext turns inline custom emoji placeholders into rich-text
// annotations addressed in UTF-16 code units.
//
// A placeholder looks like <ce:5368324170671202286>. The full-width forms
// ＜ce：5368324170671202286＞ are accepted too, as is any mix of the two, upper
// case CE and spaces, full-width ones included, inside the brackets.
package richtext

import (
	"regexp"
	"strings"
	"unicode/utf16"
)

// Joiner is the invisible glyph that stands in for each rendered placeholder.
const Joiner = "\u200d"

// space also matches Unicode separators such as the ideographic space U+3000.
const space = `[\s\p{Zs}]*`

var placeholder = regexp.MustCompile(`(?i)[<＜]` + space + `ce` + space + `[:：]` + space + `([0-9]+)` + space + `[>＞]`)

// Annotation marks one custom emoji over the rendered text.
// Offset and Length count UTF-16 code units.
type Annotation struct {
	Offset  int    `json:"offset"`
	Length  int    `json:"length"`
	EmojiID string `json:"emoji_id"`
}

// Render replaces every placeholder in src with Joiner and returns one
// annotation per placeholder, in order. When src holds no placeholder it is
// returned unchanged with a nil slice, meaning no rich-text parameters should
// be sent at all.
func Render(src string) (string, []Annotation) {
	matches := placeholder.FindAllStringSubmatchIndex(src, -1)
	if len(matches) == 0 {
		return src, nil
	}

	var (
		out   strings.Builder
		units int
		last  int
	)
	out.Grow(len(src))
	annotations := make([]Annotation, 0, len(matches))
	joinerUnits := UTF16Len(Joiner)

	for _, m := range matches {
		head := src[last:m[0]]
		out.WriteString(head)
		units += UTF16Len(head)

		annotations = append(annotations, Annotation{
			Offset:  units,
			Length:  joinerUnits,
			EmojiID: src[m[2]:m[3]],
		})
		out.WriteString(Joiner)
		units += joinerUnits
		last = m[1]
	}
	out.WriteString(src[last:])

	return out.String(), annotations
}

// UTF16Len returns the length of s in UTF-16 code units. Code points above
// U+FFFF count as two units; invalid bytes count as one (they decode to U+FFFD).
func UTF16Len(s string) int {
	n := 0
	for _, r := range s {
		n += utf16.RuneLen(r)
	}
	return n
}
