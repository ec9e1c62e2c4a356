package plugins

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zpam/spamscan/pkg/email"
)

func TestLoaderLoad(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a_rules.yaml"), []byte(DefaultRules), 0644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "lua"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "lua", "b.lua"), []byte(luaRuleScript), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("ignored"), 0644))

	rules, closeFn, err := NewLoader(dir, time.Second, nil).Load()
	require.NoError(t, err)
	defer closeFn()

	require.Len(t, rules, 2)
	assert.Equal(t, filepath.Join(dir, "a_rules.yaml"), rules[0].Name())
	assert.Equal(t, "free_money", rules[1].Name())

	matches, err := rules[1].Evaluate(context.Background(), &email.Message{Subject: "free money"})
	require.NoError(t, err)
	assert.Len(t, matches, 1)
}

func TestLoaderMissingDir(t *testing.T) {
	rules, closeFn, err := NewLoader(filepath.Join(t.TempDir(), "none"), 0, nil).Load()
	require.NoError(t, err)
	closeFn()
	assert.Empty(t, rules)
}

func TestLoaderBadFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "good.lua"), []byte(luaRuleScript), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "z.yml"), []byte("rules: [unterminated"), 0644))

	_, closeFn, err := NewLoader(dir, 0, nil).Load()
	closeFn()
	assert.Error(t, err)
}
