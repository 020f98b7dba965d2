package featureflags

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEnabled(t *testing.T) {
	t.Setenv("FLAG_LEGACY_VERIFICATION_GATE", "Yes")
	assert.True(t, Enabled(LegacyVerificationGate))

	t.Setenv("FLAG_LEGACY_VERIFICATION_GATE", "0")
	assert.False(t, Enabled(LegacyVerificationGate))
}

func TestEnabledIn(t *testing.T) {
	env := map[string]string{"FLAG_X": " on "}
	getenv := func(k string) string { return env[k] }

	assert.True(t, enabledIn(getenv, "x"))
	assert.False(t, enabledIn(getenv, "y"))
}
