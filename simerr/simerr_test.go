package simerr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"direct", ErrOverSell, "OVER_SELL"},
		{"wrapped", fmt.Errorf("close btc: %w", ErrNoSuchPosition), "NO_SUCH_POSITION"},
		{"double wrapped", fmt.Errorf("a: %w", fmt.Errorf("b: %w", ErrStaleMark)), "STALE_MARK"},
		{"unknown", errors.New("boom"), "INTERNAL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, Code(tt.err))
		})
	}
}

func TestExpected(t *testing.T) {
	t.Parallel()

	assert.True(t, Expected(fmt.Errorf("open: %w", ErrEntriesDisabled)))
	assert.True(t, Expected(ErrTradingLocked))
	assert.False(t, Expected(ErrInsufficientCash))
	assert.False(t, Expected(nil))
}
