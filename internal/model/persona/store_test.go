package persona

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreDefault(t *testing.T) {
	store := NewMemoryStore(Seed())

	got := store.Default()
	assert.Equal(t, DefaultID, got.ID)
	assert.Equal(t, "喵哥", got.Name)

	found, ok := store.FindByID(DefaultID)
	require.True(t, ok)
	assert.Equal(t, got.WelcomeMessage, found.WelcomeMessage)

	_, ok = store.FindByID("missing")
	assert.False(t, ok)
}

func TestEmptyStoreFallsBackToBuiltin(t *testing.T) {
	store := NewMemoryStore(nil)
	assert.Equal(t, DefaultID, store.Default().ID)
	assert.Empty(t, store.List())
}

func TestLoadFileMergesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "persona.yaml")
	content := `
id: tiger
name: 虎哥
welcomeMessage: 嗷～我是虎哥！
emotionalTraits:
  joyExpressions: ["嗷嗷嗷！"]
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	p, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, "tiger", p.ID)
	assert.Equal(t, "虎哥", p.Name)
	assert.Equal(t, "嗷～我是虎哥！", p.WelcomeMessage)
	assert.Equal(t, []string{"嗷嗷嗷！"}, p.EmotionalTraits.JoyExpressions)

	base := Default()
	assert.Equal(t, base.ClearedMessage, p.ClearedMessage)
	assert.Equal(t, base.SystemPrompt, p.SystemPrompt)
	assert.Equal(t, base.EmotionalTraits.SadExpressions, p.EmotionalTraits.SadExpressions)
}

func TestLoadFileErrors(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("name: [unterminated"), 0o600))
	_, err = LoadFile(path)
	assert.Error(t, err)
}
