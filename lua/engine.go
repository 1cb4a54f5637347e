package lua

import (
	"crypto/sha1"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	lua "github.com/yuin/gopher-lua"

	"github.com/raniellyferreira/redis-lite/storage"
)

// maxExpireMillis is the largest PX value that fits in a time.Duration
const maxExpireMillis = math.MaxInt64 / int64(time.Millisecond)

// ErrNoScript is returned by EvalSHA for an unknown script hash
var ErrNoScript = errors.New("NOSCRIPT No matching script. Please use EVAL")

// Engine provides Redis-compatible Lua script execution over a Storage
type Engine struct {
	storage storage.Storage
	scripts sync.Map // map[string]string - SHA1 -> script content
	now     func() time.Time
}

// EngineOption configures an Engine
type EngineOption func(*Engine)

// WithClock sets the time source used to turn PX offsets into deadlines
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// NewEngine creates a new Lua execution engine
func NewEngine(storage storage.Storage, opts ...EngineOption) *Engine {
	e := &Engine{
		storage: storage,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Eval executes a Lua script with the given keys and arguments
func (e *Engine) Eval(script string, keys []string, args []string) (interface{}, error) {
	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	defer L.Close()

	if err := openLibs(L); err != nil {
		return nil, err
	}
	e.setupRedisAPI(L, keys, args)

	if err := L.DoString(script); err != nil {
		return nil, fmt.Errorf("script execution error: %w", err)
	}

	if L.GetTop() == 0 {
		return nil, nil
	}
	return e.convertLuaValue(L.Get(-1)), nil
}

// EvalSHA executes a previously loaded script by its SHA1 hash
func (e *Engine) EvalSHA(sha string, keys []string, args []string) (interface{}, error) {
	script, exists := e.scripts.Load(strings.ToLower(sha))
	if !exists {
		return nil, ErrNoScript
	}

	return e.Eval(script.(string), keys, args)
}

// LoadScript loads a script and returns its SHA1 hash
func (e *Engine) LoadScript(script string) string {
	hash := fmt.Sprintf("%x", sha1.Sum([]byte(script)))
	e.scripts.Store(hash, script)
	return hash
}

// ScriptExists checks if scripts with given SHA1 hashes exist
func (e *Engine) ScriptExists(hashes []string) []bool {
	results := make([]bool, len(hashes))
	for i, hash := range hashes {
		_, results[i] = e.scripts.Load(strings.ToLower(hash))
	}
	return results
}

// ScriptFlush removes all cached scripts
func (e *Engine) ScriptFlush() {
	e.scripts.Range(func(key, value interface{}) bool {
		e.scripts.Delete(key)
		return true
	})
}

// openLibs loads the subset of the standard library available to scripts
func openLibs(L *lua.LState) error {
	for _, lib := range []struct {
		name string
		fn   lua.LGFunction
	}{
		{lua.BaseLibName, lua.OpenBase},
		{lua.TabLibName, lua.OpenTable},
		{lua.StringLibName, lua.OpenString},
		{lua.MathLibName, lua.OpenMath},
	} {
		if err := L.CallByParam(lua.P{
			Fn:      L.NewFunction(lib.fn),
			NRet:    0,
			Protect: true,
		}, lua.LString(lib.name)); err != nil {
			return fmt.Errorf("failed to open lua library %s: %w", lib.name, err)
		}
	}
	return nil
}

// setupRedisAPI configures the Lua state with Redis-compatible functions
func (e *Engine) setupRedisAPI(L *lua.LState, keys []string, args []string) {
	keysTable := L.NewTable()
	for i, key := range keys {
		keysTable.RawSetInt(i+1, lua.LString(key))
	}
	L.SetGlobal("KEYS", keysTable)

	argvTable := L.NewTable()
	for i, arg := range args {
		argvTable.RawSetInt(i+1, lua.LString(arg))
	}
	L.SetGlobal("ARGV", argvTable)

	redisTable := L.NewTable()
	L.SetFuncs(redisTable, map[string]lua.LGFunction{
		"call":         e.redisCall,
		"pcall":        e.redisPCall,
		"status_reply": statusReply,
		"error_reply":  errorReply,
	})
	L.SetGlobal("redis", redisTable)
}

// redisCall implements redis.call(); command errors abort the script
func (e *Engine) redisCall(L *lua.LState) int {
	result, err := e.executeRedisCommand(L)
	if err != nil {
		L.RaiseError("%s", err.Error())
		return 0
	}
	L.Push(e.convertToLuaValue(L, result))
	return 1
}

// redisPCall implements redis.pcall(); command errors are returned as a
// table with an err field
func (e *Engine) redisPCall(L *lua.LState) int {
	result, err := e.executeRedisCommand(L)
	if err != nil {
		errTable := L.NewTable()
		errTable.RawSetString("err", lua.LString(err.Error()))
		L.Push(errTable)
		return 1
	}
	L.Push(e.convertToLuaValue(L, result))
	return 1
}

func statusReply(L *lua.LState) int {
	t := L.NewTable()
	t.RawSetString("ok", lua.LString(L.CheckString(1)))
	L.Push(t)
	return 1
}

func errorReply(L *lua.LState) int {
	t := L.NewTable()
	t.RawSetString("err", lua.LString(L.CheckString(1)))
	L.Push(t)
	return 1
}

// executeRedisCommand reads the command and arguments from the Lua stack
func (e *Engine) executeRedisCommand(L *lua.LState) (interface{}, error) {
	argc := L.GetTop()
	if argc == 0 {
		return nil, errors.New("ERR Please specify at least one argument for this redis lib call")
	}

	cmdName := L.ToString(1)
	if cmdName == "" {
		return nil, errors.New("ERR Lua redis lib command arguments must be strings or integers")
	}

	args := make([]string, argc-1)
	for i := 2; i <= argc; i++ {
		args[i-2] = L.ToString(i)
	}

	return e.executeCommand(strings.ToUpper(cmdName), args)
}

// executeCommand executes a Redis command against the storage
func (e *Engine) executeCommand(cmd string, args []string) (interface{}, error) {
	switch cmd {
	case "PING":
		if len(args) == 0 {
			return statusResult("PONG"), nil
		}
		return args[0], nil

	case "ECHO":
		if len(args) != 1 {
			return nil, wrongArgs(cmd)
		}
		return args[0], nil

	case "GET":
		if len(args) != 1 {
			return nil, wrongArgs(cmd)
		}
		value, exists := e.storage.Get(args[0])
		if !exists {
			return nil, nil
		}
		return string(value), nil

	case "SET":
		var deadline *time.Time
		switch {
		case len(args) == 2:
		case len(args) == 4 && strings.EqualFold(args[2], "PX"):
			ms, err := strconv.ParseInt(args[3], 10, 64)
			if err != nil || ms <= 0 || ms > maxExpireMillis {
				return nil, errors.New("ERR invalid expire time in 'set' command")
			}
			t := e.now().Add(time.Duration(ms) * time.Millisecond)
			deadline = &t
		case len(args) < 2:
			return nil, wrongArgs(cmd)
		default:
			return nil, errors.New("ERR syntax error")
		}
		if err := e.storage.Set(args[0], []byte(args[1]), deadline); err != nil {
			return nil, err
		}
		return statusResult("OK"), nil

	case "KEYS":
		if len(args) != 1 {
			return nil, wrongArgs(cmd)
		}
		keys, err := e.storage.Keys(args[0])
		if err != nil {
			return nil, fmt.Errorf("ERR %w", err)
		}
		result := make([]interface{}, len(keys))
		for i, key := range keys {
			result[i] = key
		}
		return result, nil

	default:
		return nil, fmt.Errorf("ERR Unknown Redis command called from script: %s", strings.ToLower(cmd))
	}
}

func wrongArgs(cmd string) error {
	return fmt.Errorf("ERR wrong number of arguments for '%s' command", strings.ToLower(cmd))
}

// statusResult marks a status reply so it converts to a Lua {ok=...} table
type statusResult string

// convertToLuaValue converts a Go value to a Lua value
func (e *Engine) convertToLuaValue(L *lua.LState, value interface{}) lua.LValue {
	if value == nil {
		return lua.LFalse // Redis nil becomes false in Lua
	}

	switch v := value.(type) {
	case statusResult:
		t := L.NewTable()
		t.RawSetString("ok", lua.LString(v))
		return t
	case string:
		return lua.LString(v)
	case int64:
		return lua.LNumber(float64(v))
	case []interface{}:
		table := L.NewTable()
		for i, item := range v {
			table.RawSetInt(i+1, e.convertToLuaValue(L, item))
		}
		return table
	default:
		return lua.LString(fmt.Sprintf("%v", v))
	}
}

// convertLuaValue converts a Lua value to a Go value. Array-like tables
// become []interface{}; other tables become map[string]interface{}.
func (e *Engine) convertLuaValue(lv lua.LValue) interface{} {
	switch v := lv.(type) {
	case lua.LBool:
		return bool(v)
	case lua.LString:
		return string(v)
	case lua.LNumber:
		f := float64(v)
		if f == float64(int64(f)) {
			return int64(f)
		}
		return f
	case *lua.LNilType:
		return nil
	case *lua.LTable:
		if e.isArrayLikeTable(v) {
			result := make([]interface{}, 0, v.Len())
			for i := 1; i <= v.Len(); i++ {
				result = append(result, e.convertLuaValue(v.RawGetInt(i)))
			}
			return result
		}
		result := make(map[string]interface{})
		v.ForEach(func(k, val lua.LValue) {
			result[k.String()] = e.convertLuaValue(val)
		})
		return result
	default:
		return lv.String()
	}
}

// isArrayLikeTable reports whether every key of table is an integer in
// 1..Len()
func (e *Engine) isArrayLikeTable(table *lua.LTable) bool {
	length := table.Len()
	arrayLike := true
	table.ForEach(func(k, _ lua.LValue) {
		num, ok := k.(lua.LNumber)
		if !ok {
			arrayLike = false
			return
		}
		idx := int(num)
		if float64(idx) != float64(num) || idx < 1 || idx > length {
			arrayLike = false
		}
	})
	return arrayLike
}
