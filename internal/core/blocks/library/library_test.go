package library

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/csicar/tables/internal/core/env"
)

func TestDefault(t *testing.T) {
	assert.Equal(t, []string{ExprTag, NoteTag, SheetTag}, Default.Tags())

	t.Run("SheetIsUsable", func(t *testing.T) {
		sheet, err := Default.Get(SheetTag)
		require.NoError(t, err)
		s, err := sheet.FromJSON(json.RawMessage(`{"lines":[
			{"id":0,"name":"n","state":{"expr":"21"}},
			{"id":1,"name":"","state":{"expr":"n * 2"}}
		]}`), nil, env.Empty())
		require.NoError(t, err)
		assert.Equal(t, 42, sheet.Result(s))
	})

	t.Run("NoteRoundTrip", func(t *testing.T) {
		n := Note{}
		s := SetText("hello")(n.Init())
		data, err := n.ToJSON(s)
		require.NoError(t, err)
		assert.JSONEq(t, `{"text":"hello"}`, string(data))
		loaded, err := n.FromJSON(data, nil, env.Empty())
		require.NoError(t, err)
		assert.Equal(t, n.Result(s), n.Result(loaded))
	})
}
