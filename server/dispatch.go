package server

import (
	"errors"
	"fmt"
	"time"

	"github.com/raniellyferreira/redis-lite/lua"
	"github.com/raniellyferreira/redis-lite/protocol"
	"github.com/raniellyferreira/redis-lite/storage"
)

// Dispatcher executes resolved requests against the shared store and
// settings and encodes the replies
type Dispatcher struct {
	storage  storage.Storage
	settings *Settings
	scripts  *lua.Engine
	now      func() time.Time
}

// DispatcherOption configures a Dispatcher
type DispatcherOption func(*Dispatcher)

// WithClock sets the time source used to turn PX offsets into deadlines
func WithClock(now func() time.Time) DispatcherOption {
	return func(d *Dispatcher) {
		if now != nil {
			d.now = now
		}
	}
}

// WithScriptEngine sets the engine serving EVAL, EVALSHA and SCRIPT
func WithScriptEngine(engine *lua.Engine) DispatcherOption {
	return func(d *Dispatcher) {
		d.scripts = engine
	}
}

// NewDispatcher creates a Dispatcher over store and settings
func NewDispatcher(store storage.Storage, settings *Settings, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		storage:  store,
		settings: settings,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.settings == nil {
		d.settings = NewSettings(nil)
	}
	if d.scripts == nil {
		d.scripts = lua.NewEngine(store, lua.WithClock(d.now))
	}
	return d
}

// Dispatch executes req and writes its reply to w without flushing.
// Command failures become error replies; the returned error reports only
// failures to encode the reply.
func (d *Dispatcher) Dispatch(req Request, w *protocol.Writer) error {
	switch r := req.(type) {
	case PingRequest:
		if r.HasMessage {
			return w.WriteBulkStringFromString(r.Message)
		}
		return w.WritePONG()

	case EchoRequest:
		return w.WriteDeclaredArgs(r.Command)

	case SetRequest:
		var deadline *time.Time
		if r.TTL > 0 {
			t := d.now().Add(r.TTL)
			deadline = &t
		}
		if err := d.storage.Set(r.Key, []byte(r.Value), deadline); err != nil {
			return w.WriteError(fmt.Sprintf("ERR %v", err))
		}
		return w.WriteOK()

	case GetRequest:
		value, exists := d.storage.Get(r.Key)
		if !exists {
			return w.WriteNullBulkString()
		}
		return w.WriteBulkString(value)

	case ConfigGetRequest:
		value, _ := d.settings.Get(r.Param)
		return w.WriteStringArray([]string{r.Param, value})

	case ConfigSetRequest:
		return w.WriteOK()

	case KeysRequest:
		keys, err := d.storage.Keys(r.Pattern)
		if errors.Is(err, storage.ErrUnsupportedPattern) {
			return w.WriteError("ERR only the '*' pattern is supported")
		}
		if err != nil {
			return w.WriteError(fmt.Sprintf("ERR %v", err))
		}
		return w.WriteStringArray(keys)

	case InfoRequest:
		return w.WriteBulkStringFromString("role:" + d.settings.Role())

	case EvalRequest:
		result, err := d.scripts.Eval(r.Script, r.Keys, r.Args)
		return d.writeScriptResult(w, result, err)

	case EvalSHARequest:
		result, err := d.scripts.EvalSHA(r.SHA, r.Keys, r.Args)
		return d.writeScriptResult(w, result, err)

	case ScriptRequest:
		return d.dispatchScript(r, w)

	case UnknownRequest:
		return w.WriteError(fmt.Sprintf("ERR unknown command '%s'", r.Command))

	default:
		return fmt.Errorf("unhandled request type %T", req)
	}
}

func (d *Dispatcher) writeScriptResult(w *protocol.Writer, result interface{}, err error) error {
	switch {
	case errors.Is(err, lua.ErrNoScript):
		return w.WriteError(err.Error())
	case err != nil:
		return w.WriteError(fmt.Sprintf("ERR %v", err))
	}
	return w.WriteValue(lua.Reply(result))
}

func (d *Dispatcher) dispatchScript(r ScriptRequest, w *protocol.Writer) error {
	switch r.Subcommand {
	case "load":
		if len(r.Args) != 1 {
			return w.WriteError("ERR wrong number of arguments for 'script|load' command")
		}
		return w.WriteBulkStringFromString(d.scripts.LoadScript(r.Args[0]))

	case "exists":
		if len(r.Args) == 0 {
			return w.WriteError("ERR wrong number of arguments for 'script|exists' command")
		}
		results := d.scripts.ScriptExists(r.Args)
		values := make([]protocol.Value, len(results))
		for i, exists := range results {
			values[i] = protocol.Value{Type: protocol.TypeInteger}
			if exists {
				values[i].Integer = 1
			}
		}
		return w.WriteArray(values)

	case "flush":
		d.scripts.ScriptFlush()
		return w.WriteOK()

	default:
		return w.WriteError(fmt.Sprintf("ERR unknown subcommand '%s'", r.Subcommand))
	}
}
