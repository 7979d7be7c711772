package env

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetString(t *testing.T) {
	t.Setenv("GEOCLOCK_TEST_STR", "value")
	assert.Equal(t, "value", GetString("GEOCLOCK_TEST_STR", "fallback"))
	assert.Equal(t, "fallback", GetString("GEOCLOCK_TEST_MISSING", "fallback"))

	t.Setenv("GEOCLOCK_TEST_EMPTY", "")
	assert.Equal(t, "", GetString("GEOCLOCK_TEST_EMPTY", "fallback"))
}

func TestGetInt(t *testing.T) {
	t.Setenv("GEOCLOCK_TEST_INT", " 42 ")
	assert.Equal(t, 42, GetInt("GEOCLOCK_TEST_INT", 7))

	t.Setenv("GEOCLOCK_TEST_INT", "forty")
	assert.Equal(t, 7, GetInt("GEOCLOCK_TEST_INT", 7))
	assert.Equal(t, 7, GetInt("GEOCLOCK_TEST_MISSING", 7))
}

func TestGetBool(t *testing.T) {
	t.Setenv("GEOCLOCK_TEST_BOOL", "true")
	assert.True(t, GetBool("GEOCLOCK_TEST_BOOL", false))

	t.Setenv("GEOCLOCK_TEST_BOOL", "maybe")
	assert.False(t, GetBool("GEOCLOCK_TEST_BOOL", false))
	assert.True(t, GetBool("GEOCLOCK_TEST_MISSING", true))
}
