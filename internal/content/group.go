// Package content holds the pool of message groups a broadcast picks from.
package content

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"slices"
	"strings"
)

// MaxCallbackData is the Telegram limit for callback_data, in bytes.
const MaxCallbackData = 64

// Button is an inline keyboard button. Exactly one of URL and CallbackData is
// set on a sanitized button: a link button opens URL, an action button sends
// CallbackData back to the bot.
type Button struct {
	Text         string `json:"text"`
	URL          string `json:"url,omitempty"`
	CallbackData string `json:"callback_data,omitempty"`
}

// IsLink reports whether b opens a URL.
func (b Button) IsLink() bool { return b.URL != "" }

// Group is one message template: optional image, text and buttons.
type Group struct {
	ImageRef string   `json:"image,omitempty"`
	Text     string   `json:"message"`
	Buttons  []Button `json:"buttons"`
}

func (g Group) clone() Group {
	g.Buttons = slices.Clone(g.Buttons)
	if g.Buttons == nil {
		g.Buttons = []Button{}
	}
	return g
}

// Patch is a partial update; nil fields are left alone.
type Patch struct {
	Text     *string   `json:"message,omitempty"`
	ImageRef *string   `json:"image,omitempty"`
	Buttons  *[]Button `json:"buttons,omitempty"`
}

// Empty reports whether the patch changes nothing.
func (p Patch) Empty() bool {
	return p.Text == nil && p.ImageRef == nil && p.Buttons == nil
}

// SanitizeButtons trims every field, drops buttons without text, keeps the URL
// when present and the callback data otherwise, and drops buttons that have
// neither or whose callback data exceeds MaxCallbackData.
func SanitizeButtons(in []Button) []Button {
	out := make([]Button, 0, len(in))
	for _, b := range in {
		text := strings.TrimSpace(b.Text)
		if text == "" {
			continue
		}
		if url := strings.TrimSpace(b.URL); url != "" {
			out = append(out, Button{Text: text, URL: url})
			continue
		}
		data := strings.TrimSpace(b.CallbackData)
		if data == "" || len(data) > MaxCallbackData {
			continue
		}
		out = append(out, Button{Text: text, CallbackData: data})
	}
	return out
}

// ParseButtons reads buttons as typed in an admin form. It accepts either a
// JSON array of button objects or one button per line: "text|url" for a link,
// a bare "text" for an action whose callback data is the text itself.
func ParseButtons(raw string) []Button {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return []Button{}
	}

	var fromJSON []Button
	if err := json.Unmarshal([]byte(raw), &fromJSON); err == nil {
		return SanitizeButtons(fromJSON)
	}

	var lines []Button
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if text, url, ok := strings.Cut(line, "|"); ok {
			lines = append(lines, Button{Text: text, URL: url})
			continue
		}
		lines = append(lines, Button{Text: line, CallbackData: line})
	}
	return SanitizeButtons(lines)
}

// baseName keeps only the file name of an image reference.
func baseName(ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return ""
	}
	name := filepath.Base(filepath.Clean(ref))
	if name == "." || name == string(filepath.Separator) {
		return ""
	}
	return name
}

// normalize applies the invariants Add and Update enforce.
func normalize(g Group) Group {
	g.Text = strings.TrimSpace(g.Text)
	g.ImageRef = baseName(g.ImageRef)
	g.Buttons = SanitizeButtons(g.Buttons)
	return g
}

// document is the on-disk shape: {"groups": [...]}, or a bare array.
type document struct {
	Groups []entry `json:"groups"`
}

func (d *document) UnmarshalJSON(b []byte) error {
	if trimmed := bytes.TrimSpace(b); len(trimmed) > 0 && trimmed[0] == '[' {
		return json.Unmarshal(trimmed, &d.Groups)
	}
	type plain document
	return json.Unmarshal(b, (*plain)(d))
}

// entry decodes one stored group without failing the whole document.
type entry struct {
	Group
	bad string
}

func (e *entry) UnmarshalJSON(b []byte) error {
	var raw struct {
		Image   *string         `json:"image"`
		Message string          `json:"message"`
		Buttons json.RawMessage `json:"buttons"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		e.bad = err.Error()
		return nil
	}

	var buttons []Button
	if len(raw.Buttons) > 0 && string(raw.Buttons) != "null" {
		var items []json.RawMessage
		if err := json.Unmarshal(raw.Buttons, &items); err != nil {
			e.bad = "buttons: " + err.Error()
			return nil
		}
		for _, item := range items {
			var btn Button
			if json.Unmarshal(item, &btn) == nil {
				buttons = append(buttons, btn)
			}
		}
	}

	g := Group{Text: raw.Message, Buttons: buttons}
	if raw.Image != nil {
		g.ImageRef = *raw.Image
	}
	e.Group = normalize(g)
	if e.Text == "" {
		e.bad = "empty message"
	}
	return nil
}

func (e entry) MarshalJSON() ([]byte, error) {
	return json.Marshal(e.Group.clone())
}
