package configval

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/flowgrid/internal/configclass"
	"github.com/vk/flowgrid/internal/configtype"
	"github.com/vk/flowgrid/internal/errs"
)

func petSchema(t *testing.T) *configtype.Field {
	t.Helper()
	cat := configclass.New("Cat",
		configclass.Field("pet_type", configclass.Literal("cat")),
		configclass.Field("meows", configclass.Int()),
	)
	dog := configclass.New("Dog",
		configclass.Field("pet_type", configclass.Literal("dog")),
		configclass.Field("barks", configclass.Float()),
	)
	class := configclass.New("Owner",
		configclass.Field("pet", configclass.UnionOf("pet_type", configclass.Nested(cat), configclass.Nested(dog))),
	)
	field, err := configclass.InferSchema(class, nil)
	require.NoError(t, err)
	return field
}

func TestProcess_RoundTripAndDefaults(t *testing.T) {
	field := serverSchema(t)

	out, err := Process(field, map[string]any{"host": "db", "secure": true})
	require.NoError(t, err)

	cfg, ok := out.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "db", cfg["host"])
	assert.Equal(t, true, cfg["secure"])
	assert.Equal(t, int64(8080), cfg["port"], "declared default applied")
	_, present := cfg["weight"]
	assert.False(t, present, "optional entry without default stays absent")
}

func TestProcess_MissingRequiredNamesKey(t *testing.T) {
	field := serverSchema(t)

	_, err := Process(field, map[string]any{})
	require.Error(t, err)
	var vErr *errs.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.True(t, vErr.HasPathKey("host"))
	assert.Contains(t, err.Error(), "host")
}

func TestProcess_SelectorInjectsDiscriminator(t *testing.T) {
	field := petSchema(t)

	out, err := Process(field, map[string]any{
		"pet": map[string]any{"cat": map[string]any{"meows": int64(3)}},
	})
	require.NoError(t, err)

	cfg := out.(map[string]any)
	pet := cfg["pet"].(map[string]any)
	assert.Equal(t, "cat", pet["pet_type"])
	assert.Equal(t, int64(3), pet["meows"])
	_, branchKeyKept := pet["cat"]
	assert.False(t, branchKeyKept, "branch key is flattened away")
}

func TestProcess_EnumResolvesToValue(t *testing.T) {
	class := configclass.New("C",
		configclass.Field("level", configclass.EnumOf("Level",
			configtype.EnumValue{Name: "low", Value: 1},
			configtype.EnumValue{Name: "high", Value: 2},
		)),
	)
	field, err := configclass.InferSchema(class, nil)
	require.NoError(t, err)

	out, err := Process(field, map[string]any{"level": "high"})
	require.NoError(t, err)
	assert.Equal(t, 2, out.(map[string]any)["level"])
}

func TestProcess_EnvResolution(t *testing.T) {
	field := serverSchema(t)

	t.Run("set variable resolves and parses", func(t *testing.T) {
		t.Setenv("FLOWGRID_TEST_HOST", "db.internal")
		t.Setenv("FLOWGRID_TEST_PORT", "5432")

		out, err := Process(field, map[string]any{
			"host": EnvVar("FLOWGRID_TEST_HOST"),
			"port": EnvVar("FLOWGRID_TEST_PORT"),
		})
		require.NoError(t, err)
		cfg := out.(map[string]any)
		assert.Equal(t, "db.internal", cfg["host"])
		assert.Equal(t, int64(5432), cfg["port"])
	})

	t.Run("unset variable fails at process time only", func(t *testing.T) {
		raw := map[string]any{"host": EnvVar("FLOWGRID_TEST_UNSET")}
		require.NoError(t, Validate(field, raw))

		_, err := Process(field, raw)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "FLOWGRID_TEST_UNSET")
	})

	t.Run("unparseable variable value fails", func(t *testing.T) {
		t.Setenv("FLOWGRID_TEST_PORT", "eighty")
		_, err := Process(field, map[string]any{
			"host": "db",
			"port": EnvVar("FLOWGRID_TEST_PORT"),
		})
		assert.Error(t, err)
	})
}

func TestResolveDefaults_KeepsEnvReferencesIntact(t *testing.T) {
	field := serverSchema(t)

	out, err := ResolveDefaults(field, map[string]any{"host": EnvVar("LATER")})
	require.NoError(t, err)
	cfg := out.(map[string]any)
	assert.Equal(t, map[string]any{"env": "LATER"}, cfg["host"])
	assert.Equal(t, int64(8080), cfg["port"])
}

func TestApplyAdditionalDefaults_Layering(t *testing.T) {
	class := configclass.New("C",
		configclass.Field("a", configclass.Str(), configclass.Default("decl-a")),
		configclass.Field("b", configclass.Str(), configclass.Default("decl-b")),
		configclass.Field("c", configclass.Str(), configclass.Optional()),
	)
	field, err := configclass.InferSchema(class, nil)
	require.NoError(t, err)

	// First layer overrides a and supplies c.
	layered, err := ApplyAdditionalDefaults(field, map[string]any{"a": "layer1-a", "c": "layer1-c"})
	require.NoError(t, err)
	require.True(t, layered.HasDefault)
	assert.False(t, layered.Required)

	// Second layer overrides b only; earlier layers persist.
	layered, err = ApplyAdditionalDefaults(layered, map[string]any{"b": "layer2-b"})
	require.NoError(t, err)

	out, err := Process(layered, nil)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"a": "layer1-a",
		"b": "layer2-b",
		"c": "layer1-c",
	}, out)
}

func TestApplyAdditionalDefaults_ValidatesStandalone(t *testing.T) {
	field := serverSchema(t)

	_, err := ApplyAdditionalDefaults(field, map[string]any{"port": "not-a-number"})
	require.Error(t, err)
	var vErr *errs.ValidationError
	assert.ErrorAs(t, err, &vErr)
}

func TestApplyAdditionalDefaults_RequiredEntriesCheckedStandalone(t *testing.T) {
	field := serverSchema(t)

	layered, err := ApplyAdditionalDefaults(field, map[string]any{"host": "db"})
	require.NoError(t, err)

	// A later layer must validate on its own; the required host entry
	// already present in the layered default does not excuse it.
	_, err = ApplyAdditionalDefaults(layered, map[string]any{"port": int64(9)})
	require.Error(t, err)
	var vErr *errs.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.True(t, vErr.HasPathKey("host"))
}

func TestApplyAdditionalDefaults_NoExistingDefault(t *testing.T) {
	field := configtype.NewField(configtype.StringSource)
	layered, err := ApplyAdditionalDefaults(field, "hello")
	require.NoError(t, err)
	assert.False(t, layered.Required)
	assert.Equal(t, "hello", layered.DefaultValue)
}
