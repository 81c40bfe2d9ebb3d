package wpcompat

import (
	"bytes"
	"encoding/json"
	"errors"
	"regexp"
	"strings"
)

// RenderedText is the object form of a text field: {"raw": ..., "rendered": ...}.
type RenderedText struct {
	Raw      *string `json:"raw,omitempty"`
	Rendered *string `json:"rendered,omitempty"`
}

// TextField is either a plain JSON string or a RenderedText object. At most
// one of Plain and Object is set; both nil means the field was absent or null.
type TextField struct {
	Plain  *string
	Object *RenderedText
}

func (t *TextField) UnmarshalJSON(b []byte) error {
	*t = TextField{}
	b = bytes.TrimSpace(b)
	switch {
	case len(b) == 0 || bytes.Equal(b, []byte("null")):
		return nil
	case b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		t.Plain = &s
		return nil
	case b[0] == '{':
		var obj RenderedText
		if err := json.Unmarshal(b, &obj); err != nil {
			return err
		}
		t.Object = &obj
		return nil
	}
	return errors.New("text field must be a string or an object with raw/rendered")
}

func (t TextField) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// String coalesces the field to plain text. For the object form a non-empty
// raw value wins over rendered.
func (t TextField) String() string {
	switch {
	case t.Plain != nil:
		return *t.Plain
	case t.Object != nil:
		if t.Object.Raw != nil && *t.Object.Raw != "" {
			return *t.Object.Raw
		}
		if t.Object.Rendered != nil {
			return *t.Object.Rendered
		}
	}
	return ""
}

var (
	whitespaceRun = regexp.MustCompile(`\s+`)
	slugIllegal   = regexp.MustCompile(`[^a-z0-9-]`)
	hyphenRun     = regexp.MustCompile(`-{2,}`)
)

// Slugify lower-cases s, turns whitespace runs into hyphens and drops
// everything outside [a-z0-9-]. Repeated and edge hyphens are collapsed.
func Slugify(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = whitespaceRun.ReplaceAllString(s, "-")
	s = slugIllegal.ReplaceAllString(s, "")
	s = hyphenRun.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}
