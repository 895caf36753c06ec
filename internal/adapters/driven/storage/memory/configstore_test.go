package memory

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigStore_SetGet(t *testing.T) {
	store := NewConfigStore()

	require.NoError(t, store.Set("vector.collection", "rag_chunks"))
	require.NoError(t, store.Set("vector.collection", "rapports"))

	val, ok := store.Get("vector.collection")
	assert.True(t, ok)
	assert.Equal(t, "rapports", val)

	_, ok = store.Get("missing")
	assert.False(t, ok)
}

func TestConfigStore_TypedGetters(t *testing.T) {
	store := NewConfigStore()
	require.NoError(t, store.Set("str", "value"))
	require.NoError(t, store.Set("int", 42))
	require.NoError(t, store.Set("int64", int64(7)))
	require.NoError(t, store.Set("float", 0.4))
	require.NoError(t, store.Set("bool", true))
	require.NoError(t, store.Set("dur", "24h"))
	require.NoError(t, store.Set("bad_dur", "soon"))
	require.NoError(t, store.Set("slice", []any{"a", 1, "b"}))

	tests := []struct {
		name string
		got  any
		want any
	}{
		{"string", store.GetString("str"), "value"},
		{"string of int", store.GetString("int"), ""},
		{"int", store.GetInt("int"), 42},
		{"int64", store.GetInt("int64"), 7},
		{"int of float", store.GetInt("float"), 0},
		{"float", store.GetFloat("float"), 0.4},
		{"float of int", store.GetFloat("int"), 42.0},
		{"bool", store.GetBool("bool"), true},
		{"bool missing", store.GetBool("missing"), false},
		{"duration", store.GetDuration("dur"), 24 * time.Hour},
		{"invalid duration", store.GetDuration("bad_dur"), time.Duration(0)},
		{"slice skips non-strings", store.GetStringSlice("slice"), []string{"a", "b"}},
		{"slice missing", store.GetStringSlice("missing"), []string(nil)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.got)
		})
	}
}

func TestConfigStore_Persistence(t *testing.T) {
	store := NewConfigStore()
	assert.NoError(t, store.Save())
	assert.NoError(t, store.Load())
	assert.Equal(t, ":memory:", store.Path())
}

func TestConfigStore_ConcurrentAccess(t *testing.T) {
	store := NewConfigStore()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			_ = store.Set("key", i)
		}(i)
		go func() {
			defer wg.Done()
			_ = store.GetInt("key")
		}()
	}
	wg.Wait()
	_, ok := store.Get("key")
	assert.True(t, ok)
}
