package expr

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/csicar/tables/internal/core/block"
	"github.com/csicar/tables/internal/core/env"
)

func TestBlock(t *testing.T) {
	b := New(nil)
	scope := env.Empty().With("x", 20)

	s := b.Set("x + 1", scope)(b.Init())
	assert.Equal(t, 21, b.Result(s))

	t.Run("RecomputeFollowsEnv", func(t *testing.T) {
		s := b.Recompute(s, nil, env.Empty().With("x", 1))
		assert.Equal(t, 2, b.Result(s))
	})

	t.Run("RoundTrip", func(t *testing.T) {
		data, err := b.ToJSON(s)
		require.NoError(t, err)
		assert.JSONEq(t, `{"expr":"x + 1"}`, string(data))

		loaded, err := b.FromJSON(data, nil, scope)
		require.NoError(t, err)
		assert.Equal(t, b.Result(s), b.Result(loaded))
	})

	t.Run("MissingExpr", func(t *testing.T) {
		_, err := b.FromJSON(json.RawMessage(`{}`), nil, scope)
		var verr *block.ValidationError
		require.True(t, errors.As(err, &verr))
		assert.Equal(t, "expr", verr.Path)
	})

	t.Run("ErrorsAreValues", func(t *testing.T) {
		s := b.Set("nope", scope)(b.Init())
		assert.True(t, block.IsError(b.Result(s)))
	})
}
