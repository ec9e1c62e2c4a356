package plugins

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Loader collects rule sources from a directory. YAML files are rule sets,
// .lua files are Lua rules. Files are loaded in lexical path order.
type Loader struct {
	dir     string
	timeout time.Duration
	logger  *zap.Logger
}

// NewLoader creates a loader for dir
func NewLoader(dir string, luaTimeout time.Duration, logger *zap.Logger) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{dir: dir, timeout: luaTimeout, logger: logger}
}

// Load returns every rule found below the directory. A missing directory
// yields no rules. The returned close function releases Lua VMs and must be
// called even when an error is returned.
func (l *Loader) Load() ([]Evaluator, func(), error) {
	var (
		rules   []Evaluator
		closers []func()
	)
	closeAll := func() {
		for _, c := range closers {
			c()
		}
	}

	if _, err := os.Stat(l.dir); errors.Is(err, fs.ErrNotExist) {
		return nil, closeAll, nil
	}

	err := filepath.WalkDir(l.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		switch strings.ToLower(filepath.Ext(path)) {
		case ".yaml", ".yml":
			rs, err := LoadRuleFile(path)
			if err != nil {
				return err
			}
			l.logger.Debug("rule file loaded", zap.String("path", path), zap.Int("rules", rs.Len()))
			rules = append(rules, rs)
		case ".lua":
			lr, err := NewLuaRule(path, l.timeout, l.logger)
			if err != nil {
				return fmt.Errorf("failed to load Lua rule %s: %w", path, err)
			}
			l.logger.Debug("lua rule loaded", zap.String("path", path), zap.String("rule", lr.Name()))
			closers = append(closers, lr.Close)
			rules = append(rules, lr)
		}
		return nil
	})
	if err != nil {
		return nil, closeAll, fmt.Errorf("failed to load rules from %s: %w", l.dir, err)
	}
	return rules, closeAll, nil
}
