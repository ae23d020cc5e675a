package schema

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"awful/internal/blocks"
	"awful/internal/domain"
	"awful/internal/field"
)

func TestBuild_Inheritance(t *testing.T) {
	tm, err := Build([]Definition{
		{Name: "base", Fields: []FieldDef{{Name: "title", Kind: KindText}, {Name: "body", Kind: KindText}}},
		{Name: "article", Types: []string{"article", "post-v1"}, Extends: "base",
			Fields: []FieldDef{{Name: "body", Kind: KindText, Required: true}, {Name: "tags", Kind: KindBlocks}}},
	})
	require.NoError(t, err)

	m, err := tm.ModelForType("post-v1")
	require.NoError(t, err)
	assert.Equal(t, []string{"title", "body", "tags"}, m.Fields().Names())
	body, _ := m.Fields().Get("body")
	assert.Equal(t, field.Text{Required: true}, body)

	base, err := tm.TypeForModel("article")
	require.NoError(t, err)
	assert.Equal(t, "article", base)

	_, err = tm.TypeForModel("base")
	var unregistered *domain.UnregisteredModelError
	require.ErrorAs(t, err, &unregistered)
}

func TestBuild_ParentFieldsUntouched(t *testing.T) {
	tm, err := Build([]Definition{
		{Name: "child", Types: []string{"child"}, Extends: "parent", Fields: []FieldDef{{Name: "extra"}}},
		{Name: "parent", Types: []string{"parent"}, Fields: []FieldDef{{Name: "a"}}},
	})
	require.NoError(t, err)
	parent, _ := tm.ModelForType("parent")
	assert.Equal(t, []string{"a"}, parent.Fields().Names())
	child, _ := tm.ModelForType("child")
	assert.Equal(t, []string{"a", "extra"}, child.Fields().Names())
}

func TestBuild_Cycle(t *testing.T) {
	_, err := Build([]Definition{
		{Name: "a", Extends: "b"},
		{Name: "b", Extends: "c"},
		{Name: "c", Extends: "a"},
	})
	var cycle *domain.CircularDependencyError
	require.ErrorAs(t, err, &cycle)
	assert.Equal(t, []string{"a", "b", "c", "a"}, cycle.Path)
}

func TestBuild_Duplicates(t *testing.T) {
	_, err := Build([]Definition{{Name: "a"}, {Name: "a"}})
	var already *domain.AlreadyRegisteredError
	require.ErrorAs(t, err, &already)

	_, err = Build([]Definition{{Name: "a", Types: []string{"x"}}, {Name: "b", Types: []string{"x"}}})
	var dup *domain.DuplicateTypeError
	require.ErrorAs(t, err, &dup)
}

func TestBuild_BadDefinitions(t *testing.T) {
	_, err := Build([]Definition{{Name: "a", Extends: "missing"}})
	require.Error(t, err)

	_, err = Build([]Definition{{Name: "a", Fields: []FieldDef{{Name: "x", Kind: "blob"}}}})
	require.Error(t, err)

	_, err = Build([]Definition{{Name: "a", Fields: []FieldDef{{Name: "$errors"}}}})
	require.Error(t, err)

	_, err = Build([]Definition{{Name: "a", RequireAny: []string{"ghost"}}})
	require.Error(t, err)

	_, err = Build([]Definition{{Name: "a", Fields: []FieldDef{{Name: "c", Kind: KindChoice}}}})
	require.Error(t, err)
}

func TestNewField_Kinds(t *testing.T) {
	lo := 1.0
	tests := []struct {
		def  FieldDef
		want field.Field
	}{
		{FieldDef{Name: "t"}, field.Text{}},
		{FieldDef{Name: "n", Kind: KindNumber, Integer: true, Min: &lo}, field.Number{Integer: true, Min: &lo}},
		{FieldDef{Name: "b", Kind: KindBool}, field.Bool{}},
		{FieldDef{Name: "c", Kind: KindChoice, Choices: []string{"x"}}, field.Choice{Choices: []string{"x"}}},
		{FieldDef{Name: "k", Kind: KindBlocks, Types: []string{"q"}, MaxItems: 2}, field.Blocks{Types: []string{"q"}, Max: 2}},
	}
	for _, tt := range tests {
		got, err := NewField(tt.def)
		require.NoError(t, err, tt.def.Name)
		assert.Equal(t, tt.want, got, tt.def.Name)
	}
}

func TestRequireAny(t *testing.T) {
	tm, err := Build([]Definition{{
		Name:       "card",
		Types:      []string{"card"},
		Fields:     []FieldDef{{Name: "title"}, {Name: "image"}},
		RequireAny: []string{"title", "image"},
	}})
	require.NoError(t, err)
	m, err := tm.ModelForType("card")
	require.NoError(t, err)

	owner := domain.PostOwner(0, 1)
	set := blocks.NewSet(owner, tm, nil, []domain.Block{
		{UUID: "empty", Owner: owner.Ref, Type: "card", Data: map[string]any{"title": " "}},
		{UUID: "full", Owner: owner.Ref, Type: "card", Data: map[string]any{"image": "a.png"}},
	})

	inst, err := set.Instance("empty")
	require.NoError(t, err)
	err = m.Validate(context.Background(), inst)
	var invalid *field.ValidationError
	require.ErrorAs(t, err, &invalid)

	inst, err = set.Instance("full")
	require.NoError(t, err)
	require.NoError(t, m.Validate(context.Background(), inst))
}
