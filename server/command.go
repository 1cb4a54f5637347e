package server

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/raniellyferreira/redis-lite/protocol"
)

// Request is a resolved client command. The set of implementations is
// closed; Dispatch handles each of them.
type Request interface {
	// Name returns the lower-cased command name
	Name() string

	request()
}

// PingRequest is PING [message]
type PingRequest struct {
	Message    string
	HasMessage bool
}

// EchoRequest is ECHO message. The reply repeats the declared argument
// lengths of Command.
type EchoRequest struct {
	Command *protocol.Command
}

// SetRequest is SET key value [PX milliseconds]. TTL is zero when no expiry
// was given.
type SetRequest struct {
	Key   string
	Value string
	TTL   time.Duration
}

// GetRequest is GET key
type GetRequest struct {
	Key string
}

// ConfigGetRequest is CONFIG GET parameter
type ConfigGetRequest struct {
	Param string
}

// ConfigSetRequest is CONFIG SET parameter value. It is accepted and
// ignored.
type ConfigSetRequest struct {
	Param string
	Value string
}

// KeysRequest is KEYS pattern
type KeysRequest struct {
	Pattern string
}

// InfoRequest is INFO [section]
type InfoRequest struct {
	Section string
}

// EvalRequest is EVAL script numkeys [key ...] [arg ...]
type EvalRequest struct {
	Script string
	Keys   []string
	Args   []string
}

// EvalSHARequest is EVALSHA sha1 numkeys [key ...] [arg ...]
type EvalSHARequest struct {
	SHA  string
	Keys []string
	Args []string
}

// ScriptRequest is SCRIPT LOAD|EXISTS|FLUSH [arg ...]
type ScriptRequest struct {
	Subcommand string
	Args       []string
}

// UnknownRequest is any command without a handler
type UnknownRequest struct {
	Command string
}

func (PingRequest) Name() string      { return "ping" }
func (EchoRequest) Name() string      { return "echo" }
func (SetRequest) Name() string       { return "set" }
func (GetRequest) Name() string       { return "get" }
func (ConfigGetRequest) Name() string { return "config" }
func (ConfigSetRequest) Name() string { return "config" }
func (KeysRequest) Name() string      { return "keys" }
func (InfoRequest) Name() string      { return "info" }
func (EvalRequest) Name() string      { return "eval" }
func (EvalSHARequest) Name() string   { return "evalsha" }
func (ScriptRequest) Name() string    { return "script" }
func (r UnknownRequest) Name() string { return r.Command }

func (PingRequest) request()      {}
func (EchoRequest) request()      {}
func (SetRequest) request()       {}
func (GetRequest) request()       {}
func (ConfigGetRequest) request() {}
func (ConfigSetRequest) request() {}
func (KeysRequest) request()      {}
func (InfoRequest) request()      {}
func (EvalRequest) request()      {}
func (EvalSHARequest) request()   {}
func (ScriptRequest) request()    {}
func (UnknownRequest) request()   {}

// CommandError is a command-level failure reported to the client as an
// error reply. The connection stays open.
type CommandError struct {
	Message string
}

// Error implements the error interface
func (e *CommandError) Error() string {
	return e.Message
}

func wrongArgs(name string) *CommandError {
	return &CommandError{Message: fmt.Sprintf("ERR wrong number of arguments for '%s' command", name)}
}

var (
	errSyntax      = &CommandError{Message: "ERR syntax error"}
	errNotInteger  = &CommandError{Message: "ERR value is not an integer or out of range"}
	errExpireTime  = &CommandError{Message: "ERR invalid expire time in 'set' command"}
	errNumKeys     = &CommandError{Message: "ERR Number of keys can't be negative or greater than args"}
	errConfigUsage = &CommandError{Message: "ERR unknown subcommand or wrong number of arguments for 'config' command"}
)

// Resolve maps a parsed frame onto its Request. Arity and option errors are
// returned as *CommandError.
func Resolve(cmd *protocol.Command) (Request, error) {
	args := cmd.Args
	name := cmd.Name()

	switch name {
	case "ping":
		switch len(args) {
		case 1:
			return PingRequest{}, nil
		case 2:
			return PingRequest{Message: args[1], HasMessage: true}, nil
		}
		return nil, wrongArgs(name)

	case "echo":
		if len(args) < 2 {
			return nil, wrongArgs(name)
		}
		return EchoRequest{Command: cmd}, nil

	case "set":
		return resolveSet(args)

	case "get":
		if len(args) != 2 {
			return nil, wrongArgs(name)
		}
		return GetRequest{Key: args[1]}, nil

	case "config":
		return resolveConfig(args)

	case "keys":
		if len(args) != 2 {
			return nil, wrongArgs(name)
		}
		return KeysRequest{Pattern: args[1]}, nil

	case "info":
		if len(args) > 2 {
			return nil, wrongArgs(name)
		}
		req := InfoRequest{}
		if len(args) == 2 {
			req.Section = args[1]
		}
		return req, nil

	case "eval", "evalsha":
		return resolveEval(name, cmd.Raw)

	case "script":
		if len(args) < 2 {
			return nil, wrongArgs(name)
		}
		// Script bodies must keep their case.
		return ScriptRequest{Subcommand: strings.ToLower(args[1]), Args: cmd.Raw[2:]}, nil

	default:
		return UnknownRequest{Command: name}, nil
	}
}

// maxExpireMillis is the largest PX value that fits in a time.Duration
const maxExpireMillis = math.MaxInt64 / int64(time.Millisecond)

func resolveSet(args []string) (Request, error) {
	switch {
	case len(args) < 3:
		return nil, wrongArgs("set")
	case len(args) == 3:
		return SetRequest{Key: args[1], Value: args[2]}, nil
	case len(args) == 5 && strings.EqualFold(args[3], "px"):
		ms, err := strconv.ParseInt(args[4], 10, 64)
		if err != nil {
			return nil, errNotInteger
		}
		if ms <= 0 || ms > maxExpireMillis {
			return nil, errExpireTime
		}
		return SetRequest{Key: args[1], Value: args[2], TTL: time.Duration(ms) * time.Millisecond}, nil
	default:
		return nil, errSyntax
	}
}

func resolveConfig(args []string) (Request, error) {
	if len(args) < 2 {
		return nil, wrongArgs("config")
	}

	switch strings.ToLower(args[1]) {
	case "get":
		if len(args) != 3 {
			return nil, wrongArgs("config|get")
		}
		return ConfigGetRequest{Param: strings.ToLower(args[2])}, nil
	case "set":
		if len(args) != 4 {
			return nil, wrongArgs("config|set")
		}
		return ConfigSetRequest{Param: strings.ToLower(args[2]), Value: args[3]}, nil
	default:
		return nil, errConfigUsage
	}
}

// resolveEval reads EVAL and EVALSHA arguments from the raw tokens so
// script bodies and arguments keep their case
func resolveEval(name string, raw []string) (Request, error) {
	if len(raw) < 3 {
		return nil, wrongArgs(name)
	}

	numKeys, err := strconv.Atoi(raw[2])
	if err != nil {
		return nil, errNotInteger
	}
	if numKeys < 0 || len(raw) < 3+numKeys {
		return nil, errNumKeys
	}

	keys := append([]string(nil), raw[3:3+numKeys]...)
	args := append([]string(nil), raw[3+numKeys:]...)

	if name == "evalsha" {
		return EvalSHARequest{SHA: raw[1], Keys: keys, Args: args}, nil
	}
	return EvalRequest{Script: raw[1], Keys: keys, Args: args}, nil
}
