package model

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLossBackward(t *testing.T) {
	calls := 0
	loss := NewLoss(1.5, func() error {
		calls++
		return nil
	})

	assert.True(t, loss.RequiresGrad())
	assert.NoError(t, loss.Backward())
	assert.NoError(t, loss.Backward())
	assert.Equal(t, 1, calls, "backward runs once per loss")
}

func TestLossWithoutGrad(t *testing.T) {
	loss := NewLoss(2.0, nil)

	assert.False(t, loss.RequiresGrad())
	assert.ErrorIs(t, loss.Backward(), ErrNoGrad)
	assert.Equal(t, 2.0, loss.Value)
}

func TestLossBackwardError(t *testing.T) {
	boom := errors.New("boom")
	loss := NewLoss(0, func() error { return boom })

	assert.ErrorIs(t, loss.Backward(), boom)
}

func TestModeString(t *testing.T) {
	assert.Equal(t, "train", Train.String())
	assert.Equal(t, "eval", Eval.String())
	assert.Equal(t, "Mode(7)", Mode(7).String())
}
