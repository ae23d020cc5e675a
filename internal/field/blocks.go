package field

import (
	"fmt"
	"slices"
)

// Blocks is an ordered list of references to child blocks, stored as a
// list of uuids. Types restricts the child block types; empty allows any.
type Blocks struct {
	Types []string
	Min   int
	Max   int
}

var _ Referencer = Blocks{}

func (f Blocks) Clean(raw any) (any, error) {
	var items []any
	switch v := raw.(type) {
	case nil:
	case []any:
		items = v
	case []string:
		for _, s := range v {
			items = append(items, s)
		}
	default:
		return nil, Invalid("Enter a list of blocks.")
	}

	uuids := make([]string, 0, len(items))
	var errs ValidationError
	for i, item := range items {
		s, ok := item.(string)
		switch {
		case !ok || s == "":
			errs.Messages = append(errs.Messages, fmt.Sprintf("Item %d is not a block reference.", i))
		case slices.Contains(uuids, s):
			errs.Messages = append(errs.Messages, fmt.Sprintf("Block %s is referenced more than once.", s))
		default:
			uuids = append(uuids, s)
		}
	}
	if f.Min > 0 && len(uuids) < f.Min {
		errs.Messages = append(errs.Messages, fmt.Sprintf("Ensure this list has at least %d blocks.", f.Min))
	}
	if f.Max > 0 && len(uuids) > f.Max {
		errs.Messages = append(errs.Messages, fmt.Sprintf("Ensure this list has at most %d blocks.", f.Max))
	}
	if len(errs.Messages) > 0 {
		return nil, &errs
	}
	return uuids, nil
}

// ToNative resolves every referenced uuid.
func (f Blocks) ToNative(stored any, r Resolver) (any, error) {
	refs := f.References(stored)
	out := make([]Getter, 0, len(refs))
	for _, uuid := range refs {
		child, err := r.Resolve(uuid)
		if err != nil {
			return nil, err
		}
		out = append(out, child)
	}
	return out, nil
}

func (f Blocks) References(cleaned any) []string {
	switch v := cleaned.(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

func (f Blocks) Accepts(blockType string) bool {
	return len(f.Types) == 0 || slices.Contains(f.Types, blockType)
}
