package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestNewRistrettoCache_Validation(t *testing.T) {
	_, err := NewRistrettoCache(&RistrettoConfig{Name: "x", MaxItems: 10})
	require.EqualError(t, err, "logger cannot be nil")

	_, err = NewRistrettoCache(&RistrettoConfig{Name: "x", Logger: zaptest.NewLogger(t)})
	require.Error(t, err)
}

func TestRistrettoCache(t *testing.T) {
	var c Cache
	c, err := NewRistrettoCache(&RistrettoConfig{
		Name:     "test",
		MaxItems: 100,
		Logger:   zaptest.NewLogger(t),
	})
	require.NoError(t, err)
	defer c.Close()

	t.Run("set-and-get", func(t *testing.T) {
		require.True(t, c.Set("wager-1", "settled"))
		c.Wait()

		v, found := c.Get("wager-1")
		require.True(t, found)
		assert.Equal(t, "settled", v)
	})

	t.Run("get-missing-key", func(t *testing.T) {
		_, found := c.Get("nonexistent")
		assert.False(t, found)
	})

	t.Run("delete", func(t *testing.T) {
		require.True(t, c.Set("wager-2", 42))
		c.Wait()

		c.Delete("wager-2")
		_, found := c.Get("wager-2")
		assert.False(t, found)
	})

	t.Run("clear", func(t *testing.T) {
		require.True(t, c.Set("wager-3", 1))
		c.Wait()

		c.Clear()
		_, found := c.Get("wager-3")
		assert.False(t, found)
	})
}
