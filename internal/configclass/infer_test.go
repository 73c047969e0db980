package configclass

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/flowgrid/internal/configtype"
	"github.com/vk/flowgrid/internal/errs"
)

func TestInferSchema_ScalarTable(t *testing.T) {
	class := New("Server",
		Field("host", Str()),
		Field("port", Int()),
		Field("secure", Bool()),
		Field("timeout", Float()),
	)

	field, err := InferSchema(class, nil)
	require.NoError(t, err)

	shape, ok := field.Type.(*configtype.Shape)
	require.True(t, ok)
	require.Len(t, shape.Fields, 4)

	assert.Same(t, configtype.StringSource, shape.Fields["host"].Type)
	assert.Same(t, configtype.IntSource, shape.Fields["port"].Type)
	assert.Same(t, configtype.BoolSource, shape.Fields["secure"].Type)
	assert.Same(t, configtype.Float, shape.Fields["timeout"].Type)
	assert.False(t, shape.Permissive)
}

func TestInferSchema_ConstrainedScalarsLowerToSources(t *testing.T) {
	class := New("Constrained",
		Field("name", StrMatching(`^[a-z]+$`)),
		Field("replicas", IntInRange(1, 16)),
		Field("ratio", FloatInRange(0, 1)),
	)

	field, err := InferSchema(class, nil)
	require.NoError(t, err)
	shape := field.Type.(*configtype.Shape)

	assert.Same(t, configtype.StringSource, shape.Fields["name"].Type)
	assert.Same(t, configtype.IntSource, shape.Fields["replicas"].Type)
	assert.Same(t, configtype.Float, shape.Fields["ratio"].Type)
}

func TestInferSchema_FieldModifiers(t *testing.T) {
	class := New("Mods",
		Field("required", Str()),
		Field("defaulted", Int(), Default(int64(8080))),
		Field("optional", Str(), Optional()),
		Field("nullable", Str(), AllowNone()),
		Field("documented", Str(), Doc("a doc string")),
	)

	field, err := InferSchema(class, nil)
	require.NoError(t, err)
	shape := field.Type.(*configtype.Shape)

	assert.True(t, shape.Fields["required"].Required)

	defaulted := shape.Fields["defaulted"]
	assert.False(t, defaulted.Required)
	assert.True(t, defaulted.HasDefault)
	assert.Equal(t, int64(8080), defaulted.DefaultValue)

	optional := shape.Fields["optional"]
	assert.False(t, optional.Required)
	assert.False(t, optional.HasDefault)

	_, isNoneable := shape.Fields["nullable"].Type.(*configtype.Noneable)
	assert.True(t, isNoneable)

	assert.Equal(t, "a doc string", shape.Fields["documented"].Description)
}

func TestInferSchema_NestedAndContainers(t *testing.T) {
	inner := New("Endpoint",
		Doc("one endpoint"),
		Field("url", Str()),
	)
	class := New("Outer",
		Field("primary", Nested(inner)),
		Field("mirrors", List(Nested(inner))),
		Field("weights", MapOf(Str(), Int())),
	)

	field, err := InferSchema(class, nil)
	require.NoError(t, err)
	shape := field.Type.(*configtype.Shape)

	primary, ok := shape.Fields["primary"].Type.(*configtype.Shape)
	require.True(t, ok)
	assert.Same(t, configtype.StringSource, primary.Fields["url"].Type)

	mirrors, ok := shape.Fields["mirrors"].Type.(*configtype.Array)
	require.True(t, ok)
	_, ok = mirrors.Elem.(*configtype.Shape)
	assert.True(t, ok)

	weights, ok := shape.Fields["weights"].Type.(*configtype.Map)
	require.True(t, ok)
	assert.Same(t, configtype.StringSource, weights.Key)
	assert.Same(t, configtype.IntSource, weights.Elem)
}

func TestInferSchema_Permissive(t *testing.T) {
	class := New("Open", Permissive(), Field("known", Str()))
	field, err := InferSchema(class, nil)
	require.NoError(t, err)
	assert.True(t, field.Type.(*configtype.Shape).Permissive)
}

func TestInferSchema_UnionBecomesSelector(t *testing.T) {
	cat := New("Cat",
		Field("pet_type", Literal("cat")),
		Field("meows", Int()),
	)
	dog := New("Dog",
		Field("pet_type", Literal("dog")),
		Field("barks", Float()),
	)
	class := New("Owner",
		Field("pet", UnionOf("pet_type", Nested(cat), Nested(dog))),
	)

	field, err := InferSchema(class, nil)
	require.NoError(t, err)
	shape := field.Type.(*configtype.Shape)

	sel, ok := shape.Fields["pet"].Type.(*configtype.Selector)
	require.True(t, ok)
	assert.Equal(t, "pet_type", sel.DiscriminatorKey)
	assert.ElementsMatch(t, []string{"cat", "dog"}, sel.BranchNames())

	// The discriminator field is stripped from each branch schema.
	catShape := sel.Branches["cat"].Type.(*configtype.Shape)
	_, hasDisc := catShape.Fields["pet_type"]
	assert.False(t, hasDisc)
	assert.Contains(t, catShape.Fields, "meows")
}

func TestInferSchema_UnionErrors(t *testing.T) {
	noDisc := New("NoDisc", Field("x", Int()))
	litless := New("Litless",
		Field("pet_type", Str()),
		Field("x", Int()),
	)

	testCases := []struct {
		name  string
		class *Class
	}{
		{
			name:  "non-class branch",
			class: New("A", Field("pet", UnionOf("pet_type", Str()))),
		},
		{
			name:  "branch missing discriminator",
			class: New("B", Field("pet", UnionOf("pet_type", Nested(noDisc)))),
		},
		{
			name:  "discriminator not a literal",
			class: New("C", Field("pet", UnionOf("pet_type", Nested(litless)))),
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := InferSchema(tc.class, nil)
			require.Error(t, err)
			var defErr *errs.DefinitionError
			assert.ErrorAs(t, err, &defErr)
		})
	}
}

func TestInferSchema_MapKeyRestriction(t *testing.T) {
	inner := New("Inner", Field("x", Int()))
	class := New("BadMap", Field("m", MapOf(Nested(inner), Int())))

	_, err := InferSchema(class, nil)
	require.Error(t, err)
	var defErr *errs.DefinitionError
	require.ErrorAs(t, err, &defErr)
	assert.True(t, defErr.NotImplemented)
}

func TestInferSchema_RejectsLegacyFields(t *testing.T) {
	class := New("Mixed",
		Field("ok", Str()),
		Field("raw", LegacyField(configtype.NewField(configtype.StringSource))),
	)

	_, err := InferSchema(class, nil)
	require.Error(t, err)
	var defErr *errs.DefinitionError
	assert.ErrorAs(t, err, &defErr)
}

func TestInferSchema_NilClass(t *testing.T) {
	_, err := InferSchema(nil, nil)
	require.Error(t, err)
}

func TestInferSchema_OmitsNamedFields(t *testing.T) {
	class := New("WithDep",
		Field("conn", Str()),
		Field("client", Str()),
	)

	field, err := InferSchema(class, map[string]struct{}{"client": {}})
	require.NoError(t, err)
	shape := field.Type.(*configtype.Shape)
	assert.Contains(t, shape.Fields, "conn")
	assert.NotContains(t, shape.Fields, "client")
}

func TestBuild_DuplicateField(t *testing.T) {
	_, err := Build("Dup", Field("a", Str()), Field("a", Int()))
	require.Error(t, err)

	assert.Panics(t, func() {
		New("Dup", Field("a", Str()), Field("a", Int()))
	})
}
