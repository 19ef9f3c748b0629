package shutdown

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRunReverseOrderOnce(t *testing.T) {
	h := New(zap.NewNop())

	var order []string
	h.Add("store", func() error { order = append(order, "store"); return nil })
	h.Add("limiter", func() error { order = append(order, "limiter"); return nil })
	h.Add("tracker", func() error { order = append(order, "tracker"); return nil })

	require.NoError(t, h.Run())
	require.NoError(t, h.Run())

	assert.Equal(t, []string{"tracker", "limiter", "store"}, order)
}

func TestRunCollectsErrors(t *testing.T) {
	h := New(zap.NewNop())

	ran := 0
	h.Add("ok", func() error { ran++; return nil })
	h.Add("broken", func() error { ran++; return errors.New("boom") })

	err := h.Run()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken: boom")
	assert.Equal(t, 2, ran)
}

func TestAddAfterRunExecutesImmediately(t *testing.T) {
	h := New(zap.NewNop())
	require.NoError(t, h.Run())

	called := false
	h.Add("late", func() error { called = true; return nil })
	assert.True(t, called)
}
