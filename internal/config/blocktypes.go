package config

import (
	"awful/internal/domain"
	"awful/internal/schema"
)

// DefaultBlockTypes returns one root model per owner kind sharing a
// "blocks" field of paragraphs and headings.
func DefaultBlockTypes() []schema.Definition {
	one, six := 1.0, 6.0
	content := []string{"paragraph", "heading"}
	return []schema.Definition{
		{
			Name: "content",
			Fields: []schema.FieldDef{
				{Name: "blocks", Kind: schema.KindBlocks, Types: content},
			},
		},
		{
			Name:    "site",
			Types:   []string{domain.RootSite},
			Extends: "content",
			Fields: []schema.FieldDef{
				{Name: "tagline", Kind: schema.KindText, MaxLength: 200},
			},
		},
		{
			Name:    "user",
			Types:   []string{domain.RootUser},
			Extends: "content",
			Fields: []schema.FieldDef{
				{Name: "bio", Kind: schema.KindText, MaxLength: 2000},
			},
		},
		{
			Name:    "post",
			Types:   []string{domain.RootPost},
			Extends: "content",
			Fields: []schema.FieldDef{
				{Name: "subtitle", Kind: schema.KindText, MaxLength: 200},
			},
		},
		{
			Name:    "term",
			Types:   []string{domain.RootTerm},
			Extends: "content",
			Fields: []schema.FieldDef{
				{Name: "description", Kind: schema.KindText},
			},
		},
		{
			Name:    "comment",
			Types:   []string{domain.RootComment},
			Extends: "content",
		},
		{
			Name:  "paragraph",
			Types: []string{"paragraph"},
			Fields: []schema.FieldDef{
				{Name: "text", Kind: schema.KindText, Required: true},
			},
		},
		{
			Name:  "heading",
			Types: []string{"heading"},
			Fields: []schema.FieldDef{
				{Name: "text", Kind: schema.KindText, Required: true, MaxLength: 200},
				{Name: "level", Kind: schema.KindNumber, Integer: true, Min: &one, Max: &six},
			},
		},
	}
}
