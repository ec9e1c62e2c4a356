package plugins

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	lua "github.com/yuin/gopher-lua"
	"github.com/zpam/spamscan/pkg/email"
	"go.uber.org/zap"
)

// luaEntryPoint is the global function every rule script must define
const luaEntryPoint = "evaluate"

// LuaRule is a rule written in Lua. The script defines
//
//	function evaluate(message) ... end
//
// and returns nil for no match, a string detail, true, or a table
// {rules = {"a", "b"}, detail = "..."}.
type LuaRule struct {
	name        string
	description string
	scriptPath  string
	timeout     time.Duration
	logger      *zap.Logger

	// Lua VM pool for concurrent execution
	vmPool chan *lua.LState
	maxVMs int

	reMu    sync.Mutex
	reCache map[string]*regexp.Regexp
}

// LuaMetadata is read from the leading comment block of a script
type LuaMetadata struct {
	Name        string
	Description string
}

// NewLuaRule loads a Lua rule script
func NewLuaRule(scriptPath string, timeout time.Duration, logger *zap.Logger) (*LuaRule, error) {
	metadata, err := extractLuaMetadata(scriptPath)
	if err != nil {
		return nil, fmt.Errorf("failed to extract metadata: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 2 * time.Second
	}

	lr := &LuaRule{
		name:        metadata.Name,
		description: metadata.Description,
		scriptPath:  scriptPath,
		timeout:     timeout,
		logger:      logger.With(zap.String("lua_rule", metadata.Name)),
		maxVMs:      4,
		reCache:     make(map[string]*regexp.Regexp),
	}
	lr.vmPool = make(chan *lua.LState, lr.maxVMs)

	// Load once up front so syntax errors and a missing entry point surface at startup
	vm, err := lr.createVM()
	if err != nil {
		return nil, err
	}
	lr.returnVM(vm)

	return lr, nil
}

// extractLuaMetadata parses @name and @description from leading comments
func extractLuaMetadata(scriptPath string) (*LuaMetadata, error) {
	content, err := os.ReadFile(scriptPath)
	if err != nil {
		return nil, err
	}

	metadata := &LuaMetadata{
		Name:        strings.TrimSuffix(filepath.Base(scriptPath), filepath.Ext(scriptPath)),
		Description: "Lua rule",
	}
	for _, line := range strings.Split(string(content), "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "--") {
			break
		}
		comment := strings.TrimSpace(strings.TrimPrefix(line, "--"))
		switch {
		case strings.HasPrefix(comment, "@name"):
			metadata.Name = strings.TrimSpace(strings.TrimPrefix(comment, "@name"))
		case strings.HasPrefix(comment, "@description"):
			metadata.Description = strings.TrimSpace(strings.TrimPrefix(comment, "@description"))
		}
	}
	return metadata, nil
}

// Name returns the rule name
func (lr *LuaRule) Name() string {
	return lr.name
}

// Description returns the rule description
func (lr *LuaRule) Description() string {
	return lr.description
}

// Close releases pooled VMs
func (lr *LuaRule) Close() {
	for {
		select {
		case vm := <-lr.vmPool:
			vm.Close()
		default:
			return
		}
	}
}

func (lr *LuaRule) createVM() (*lua.LState, error) {
	vm := lua.NewState()
	lr.registerAPI(vm)

	if err := vm.DoFile(lr.scriptPath); err != nil {
		vm.Close()
		return nil, fmt.Errorf("failed to load script %s: %w", lr.scriptPath, err)
	}
	if vm.GetGlobal(luaEntryPoint).Type() != lua.LTFunction {
		vm.Close()
		return nil, fmt.Errorf("script %s does not define %s(message)", lr.scriptPath, luaEntryPoint)
	}
	return vm, nil
}

func (lr *LuaRule) getVM() (*lua.LState, error) {
	select {
	case vm := <-lr.vmPool:
		return vm, nil
	default:
		return lr.createVM()
	}
}

func (lr *LuaRule) returnVM(vm *lua.LState) {
	select {
	case lr.vmPool <- vm:
	default:
		vm.Close()
	}
}

// registerAPI exposes the spamscan helper table to scripts
func (lr *LuaRule) registerAPI(vm *lua.LState) {
	api := vm.NewTable()
	vm.SetGlobal("spamscan", api)

	vm.SetField(api, "log", vm.NewFunction(lr.luaLog))
	vm.SetField(api, "contains", vm.NewFunction(luaContains))
	vm.SetField(api, "regex_match", vm.NewFunction(lr.luaRegexMatch))
	vm.SetField(api, "domain_from_email", vm.NewFunction(luaDomainFromEmail))
}

func (lr *LuaRule) luaLog(vm *lua.LState) int {
	lr.logger.Info(vm.CheckString(1))
	return 0
}

func luaContains(vm *lua.LState) int {
	haystack := vm.CheckString(1)
	needle := vm.CheckString(2)
	vm.Push(lua.LBool(strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))))
	return 1
}

func (lr *LuaRule) luaRegexMatch(vm *lua.LState) int {
	text := vm.CheckString(1)
	pattern := vm.CheckString(2)

	re, err := lr.compile(pattern)
	if err != nil {
		vm.RaiseError("invalid regex %q: %v", pattern, err)
		return 0
	}
	vm.Push(lua.LBool(re.MatchString(text)))
	return 1
}

func (lr *LuaRule) compile(pattern string) (*regexp.Regexp, error) {
	lr.reMu.Lock()
	defer lr.reMu.Unlock()

	if re, ok := lr.reCache[pattern]; ok {
		return re, nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}
	lr.reCache[pattern] = re
	return re, nil
}

func luaDomainFromEmail(vm *lua.LState) int {
	addr := vm.CheckString(1)
	at := strings.LastIndex(addr, "@")
	if at < 0 {
		vm.Push(lua.LString(""))
		return 1
	}
	vm.Push(lua.LString(strings.ToLower(strings.Trim(addr[at+1:], "<> "))))
	return 1
}

// messageTable converts a message to a Lua table
func messageTable(vm *lua.LState, msg *email.Message) *lua.LTable {
	t := vm.NewTable()
	vm.SetField(t, "from", lua.LString(msg.From))
	vm.SetField(t, "subject", lua.LString(msg.Subject))
	vm.SetField(t, "text", lua.LString(msg.Text))
	vm.SetField(t, "html", lua.LString(msg.HTML))

	headers := vm.NewTable()
	for _, line := range msg.HeaderLines {
		name, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		vm.SetField(headers, strings.ToLower(strings.TrimSpace(name)), lua.LString(strings.TrimSpace(value)))
	}
	vm.SetField(t, "headers", headers)

	attachments := vm.NewTable()
	for i, att := range msg.Attachments {
		at := vm.NewTable()
		vm.SetField(at, "filename", lua.LString(att.Filename))
		vm.SetField(at, "content_type", lua.LString(att.ContentType))
		vm.SetField(at, "size", lua.LNumber(att.Size()))
		vm.RawSetInt(attachments, i+1, at)
	}
	vm.SetField(t, "attachments", attachments)

	return t
}

// Evaluate runs the script's evaluate function against msg
func (lr *LuaRule) Evaluate(ctx context.Context, msg *email.Message) ([]Match, error) {
	vm, err := lr.getVM()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, lr.timeout)
	defer cancel()
	vm.SetContext(ctx)

	fn := vm.GetGlobal(luaEntryPoint)
	vm.Push(fn)
	vm.Push(messageTable(vm, msg))
	callErr := vm.PCall(1, 1, nil)

	vm.RemoveContext()
	if callErr != nil {
		// A cancelled VM may hold a half-unwound stack, never reuse it
		vm.Close()
		if ctx.Err() != nil {
			return nil, fmt.Errorf("lua rule %s: %w", lr.name, ctx.Err())
		}
		return nil, fmt.Errorf("lua rule %s failed: %w", lr.name, callErr)
	}

	ret := vm.Get(-1)
	vm.Pop(1)
	matches, err := lr.convertResult(ret)
	lr.returnVM(vm)
	return matches, err
}

// convertResult maps the script return value to matches
func (lr *LuaRule) convertResult(ret lua.LValue) ([]Match, error) {
	switch v := ret.(type) {
	case *lua.LNilType:
		return nil, nil
	case lua.LBool:
		if !bool(v) {
			return nil, nil
		}
		return []Match{{Rule: lr.name, Detail: lr.description}}, nil
	case lua.LString:
		return []Match{{Rule: lr.name, Detail: string(v)}}, nil
	case *lua.LTable:
		detail := lr.description
		if d, ok := v.RawGetString("detail").(lua.LString); ok {
			detail = string(d)
		}
		var matches []Match
		if rules, ok := v.RawGetString("rules").(*lua.LTable); ok {
			rules.ForEach(func(_, value lua.LValue) {
				if s, ok := value.(lua.LString); ok {
					matches = append(matches, Match{Rule: string(s), Detail: detail})
				}
			})
		}
		if len(matches) == 0 && v.RawGetString("detail") != lua.LNil {
			matches = append(matches, Match{Rule: lr.name, Detail: detail})
		}
		return matches, nil
	default:
		return nil, fmt.Errorf("lua rule %s returned unsupported %s", lr.name, ret.Type())
	}
}
