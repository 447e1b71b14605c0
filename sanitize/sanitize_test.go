package sanitize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simorgh/advanced-logger/models"
)

func TestApplyRedactsMatchingKeys(t *testing.T) {
	s := New(DefaultPatterns, "", true)

	out := s.Apply(models.Context{
		"username":  "alice",
		"password":  "hunter2",
		"api_token": "abc123",
		"amount":    42,
	})

	assert.Equal(t, "alice", out["username"])
	assert.Equal(t, DefaultMask, out["password"])
	assert.Equal(t, DefaultMask, out["api_token"])
	assert.Equal(t, 42, out["amount"])
}

func TestApplyRecursesIntoNestedMaps(t *testing.T) {
	s := New(DefaultPatterns, "", true)

	out := s.Apply(models.Context{
		"request": models.Context{
			"headers": map[string]any{
				"Authorization-Token": "Bearer xyz",
				"Accept":              "application/json",
			},
		},
	})

	headers := out["request"].(models.Context)["headers"].(models.Context)
	assert.Equal(t, DefaultMask, headers["Authorization-Token"])
	assert.Equal(t, "application/json", headers["Accept"])
}

func TestApplyIsCaseInsensitive(t *testing.T) {
	s := New(DefaultPatterns, "", true)

	out := s.Apply(models.Context{"PASSWORD": "x", "Secret_Value": "y"})

	assert.Equal(t, DefaultMask, out["PASSWORD"])
	assert.Equal(t, DefaultMask, out["Secret_Value"])
}

func TestApplyIsIdempotent(t *testing.T) {
	s := New(DefaultPatterns, "", true)

	once := s.Apply(models.Context{
		"password": "hunter2",
		"nested":   models.Context{"ssn": "123-45-6789", "name": "bob"},
	})
	twice := s.Apply(once)

	assert.Equal(t, once, twice)
}

func TestApplyDoesNotMutateInput(t *testing.T) {
	s := New(DefaultPatterns, "", true)

	in := models.Context{
		"password": "hunter2",
		"nested":   models.Context{"token": "abc"},
	}
	_ = s.Apply(in)

	assert.Equal(t, "hunter2", in["password"])
	assert.Equal(t, "abc", in["nested"].(models.Context)["token"])
}

func TestMalformedPatternsFallBackToDefaults(t *testing.T) {
	s := New([]string{"[invalid"}, "", true)

	out := s.Apply(models.Context{"password": "hunter2", "custom": "keep"})

	assert.Equal(t, DefaultMask, out["password"])
	assert.Equal(t, "keep", out["custom"])
}

func TestCustomMaskAndPatterns(t *testing.T) {
	s := New([]string{"pin"}, "***", true)

	out := s.Apply(models.Context{"card_pin": "0000", "password": "kept"})

	assert.Equal(t, "***", out["card_pin"])
	// Only the configured pattern applies when the set compiles.
	assert.Equal(t, "kept", out["password"])
}

func TestDisabledSanitizerPassesThrough(t *testing.T) {
	s := New(DefaultPatterns, "", false)

	out := s.Apply(models.Context{"password": "hunter2"})

	require.Equal(t, "hunter2", out["password"])
}

func TestScalarsAndListsPassThrough(t *testing.T) {
	s := New(DefaultPatterns, "", true)

	out := s.Apply(models.Context{
		"items": []any{"a", "b"},
		"count": 3,
		"ok":    true,
	})

	assert.Equal(t, []any{"a", "b"}, out["items"])
	assert.Equal(t, 3, out["count"])
	assert.Equal(t, true, out["ok"])
}
