package wpcompat

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/example/pressbridge/internal/store"
)

// TermRef is one entry of a post's tags or categories array: a numeric id,
// a term name, or an object {id} / {name, slug, description}.
type TermRef struct {
	ID          int64
	Name        string
	Slug        string
	Description string
}

func (r *TermRef) UnmarshalJSON(b []byte) error {
	*r = TermRef{}
	b = bytes.TrimSpace(b)
	if len(b) == 0 {
		return errors.New("empty term reference")
	}
	switch b[0] {
	case '"':
		return json.Unmarshal(b, &r.Name)
	case '{':
		var obj struct {
			ID          int64     `json:"id"`
			Name        TextField `json:"name"`
			Slug        string    `json:"slug"`
			Description TextField `json:"description"`
		}
		if err := json.Unmarshal(b, &obj); err != nil {
			return err
		}
		r.ID, r.Name, r.Slug, r.Description = obj.ID, obj.Name.String(), obj.Slug, obj.Description.String()
	default:
		if err := json.Unmarshal(b, &r.ID); err != nil {
			return fmt.Errorf("term id: %w", err)
		}
		if r.ID <= 0 {
			return fmt.Errorf("term id must be positive, got %d", r.ID)
		}
	}
	return nil
}

// resolveTerms turns refs into ids, upserting named terms in input order.
// Output position i always corresponds to refs[i].
func resolveTerms(ctx context.Context, st store.Store, kind store.Kind, refs []TermRef) ([]int64, error) {
	ids := make([]int64, 0, len(refs))
	for _, ref := range refs {
		if ref.ID > 0 {
			ids = append(ids, ref.ID)
			continue
		}
		slug := Slugify(ref.Slug)
		if slug == "" {
			slug = Slugify(ref.Name)
		}
		if slug == "" {
			return nil, errInvalidParam(fmt.Sprintf("Invalid %s reference %q.", kind, ref.Name))
		}
		name := ref.Name
		if name == "" {
			name = ref.Slug
		}
		term, _, err := st.UpsertTerm(ctx, kind, name, slug, ref.Description)
		if err != nil {
			return nil, err
		}
		ids = append(ids, term.ID)
	}
	return ids, nil
}
