package file

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ihssane2002/chatbot-entreprise/internal/core/ports/driven"
)

func TestPromptStore_ImplementsInterface(t *testing.T) {
	var _ driven.PromptStore = (*PromptStore)(nil)
}

func TestNewPromptStore_Dirs(t *testing.T) {
	dir := t.TempDir()
	store, err := NewPromptStore(dir)
	require.NoError(t, err)
	assert.Equal(t, dir, store.Dir())

	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("cannot determine home directory")
	}
	store, err = NewPromptStore("")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".chatbot", "prompts"), store.Dir())
}

func TestPromptStore_Load_CreatesDefaultFiles(t *testing.T) {
	dir := t.TempDir()
	store, err := NewPromptStore(dir)
	require.NoError(t, err)

	// No I/O before the first Load.
	_, err = os.Stat(filepath.Join(dir, "system.txt"))
	assert.True(t, os.IsNotExist(err))

	_, err = store.Load(driven.PromptSystem)
	require.NoError(t, err)

	for name := range driven.DefaultPrompts {
		_, err := os.Stat(filepath.Join(dir, name+".txt"))
		assert.NoError(t, err, "expected %s.txt", name)
	}
	_, err = os.Stat(filepath.Join(dir, "README.md"))
	assert.NoError(t, err)
}

func TestPromptStore_Load(t *testing.T) {
	tests := []struct {
		name   string
		setup  func(t *testing.T, dir string)
		prompt string
		want   string
	}{
		{
			name:   "default",
			prompt: driven.PromptUnavailable,
			want:   driven.DefaultPrompts[driven.PromptUnavailable],
		},
		{
			name: "custom file trimmed",
			setup: func(t *testing.T, dir string) {
				require.NoError(t, os.WriteFile(filepath.Join(dir, "system.txt"), []byte("  Tu es un analyste.\n\n"), 0o600))
			},
			prompt: driven.PromptSystem,
			want:   "Tu es un analyste.",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			if tt.setup != nil {
				tt.setup(t, dir)
			}
			store, err := NewPromptStore(dir)
			require.NoError(t, err)

			got, err := store.Load(tt.prompt)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPromptStore_Load_UnknownPrompt(t *testing.T) {
	store, err := NewPromptStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.Load("nonexistent")
	assert.Error(t, err)
}

func TestPromptStore_FallsBackAfterDelete(t *testing.T) {
	dir := t.TempDir()
	store, err := NewPromptStore(dir)
	require.NoError(t, err)

	_, err = store.Load(driven.PromptPreamble)
	require.NoError(t, err)
	require.NoError(t, os.Remove(filepath.Join(dir, "preamble.txt")))
	store.Reload()

	got, err := store.Load(driven.PromptPreamble)
	require.NoError(t, err)
	assert.Equal(t, driven.DefaultPrompts[driven.PromptPreamble], got)
}

func TestPromptStore_CacheAndReload(t *testing.T) {
	dir := t.TempDir()
	store, err := NewPromptStore(dir)
	require.NoError(t, err)

	_, err = store.Load(driven.PromptComparative)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "comparative.txt"), []byte("edited"), 0o600))

	got, err := store.Load(driven.PromptComparative)
	require.NoError(t, err)
	assert.Equal(t, driven.DefaultPrompts[driven.PromptComparative], got, "served from cache")

	store.Reload()
	got, err = store.Load(driven.PromptComparative)
	require.NoError(t, err)
	assert.Equal(t, "edited", got)
}

func TestPromptStore_KeepsExistingFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "instructions.txt"), []byte("mine"), 0o600))

	store, err := NewPromptStore(dir)
	require.NoError(t, err)
	_, err = store.Load(driven.PromptSystem)
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dir, "instructions.txt"))
	require.NoError(t, err)
	assert.Equal(t, "mine", string(data))
}

func TestPromptStore_ConcurrentLoad(t *testing.T) {
	store, err := NewPromptStore(t.TempDir())
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := store.Load(driven.PromptSystem)
			assert.NoError(t, err)
			assert.Equal(t, driven.DefaultPrompts[driven.PromptSystem], got)
		}()
	}
	wg.Wait()
}
