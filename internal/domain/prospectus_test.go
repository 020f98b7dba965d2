package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNextStageFollowsFixedOrder(t *testing.T) {
	order := []Stage{
		StageOnboarding,
		StageAdminEmailActivation,
		StageAdminEmailVerification,
		StageInfrastructure,
	}

	for i := 0; i < len(order)-1; i++ {
		next, ok := NextStage(order[i])
		require.True(t, ok, "stage %s should have a successor", order[i])
		assert.Equal(t, order[i+1], next)
	}
}

func TestNextStageTerminalAndUnknown(t *testing.T) {
	_, ok := NextStage(StageInfrastructure)
	assert.False(t, ok)

	_, ok = NextStage(Stage("init.tenant.bogus"))
	assert.False(t, ok)

	_, ok = NextStage("")
	assert.False(t, ok)
}

func TestStageValid(t *testing.T) {
	assert.True(t, StageOnboarding.Valid())
	assert.True(t, StageInfrastructure.Valid())
	assert.False(t, Stage("onboarding").Valid())
}

func TestErrorIsMatchesByCode(t *testing.T) {
	wrapped := fmt.Errorf("advance: %w", WrapError(CodeNotFound, "missing", errors.New("no rows")))

	assert.True(t, errors.Is(wrapped, ErrNotFound))
	assert.False(t, errors.Is(wrapped, ErrWrongStage))
	assert.Equal(t, CodeNotFound, CodeOf(wrapped))
	assert.Equal(t, CodeInternal, CodeOf(errors.New("plain")))
	assert.Contains(t, wrapped.Error(), "no rows")
}

func TestIsDuplicate(t *testing.T) {
	assert.True(t, IsDuplicate(ErrDuplicateSlug))
	assert.True(t, IsDuplicate(fmt.Errorf("create: %w", ErrDuplicateEmail)))
	assert.False(t, IsDuplicate(ErrNotFound))
}
