package server

// Configuration parameter names answered by CONFIG GET
const (
	ParamDir        = "dir"
	ParamDBFilename = "dbfilename"
	ParamBind       = "bind"
	ParamPort       = "port"
	ParamReplicaOf  = "replicaof"
)

// Settings is the configuration instance shared by every connection. It is
// fixed at construction; CONFIG SET does not change it.
type Settings struct {
	values map[string]string
}

// NewSettings creates a Settings holding a copy of values
func NewSettings(values map[string]string) *Settings {
	s := &Settings{values: make(map[string]string, len(values))}
	for k, v := range values {
		s.values[k] = v
	}
	return s
}

// Get returns the value of a parameter
func (s *Settings) Get(name string) (string, bool) {
	v, ok := s.values[name]
	return v, ok
}

// Role returns "slave" when a replica-of peer is configured and "master"
// otherwise
func (s *Settings) Role() string {
	if peer, _ := s.Get(ParamReplicaOf); peer != "" {
		return "slave"
	}
	return "master"
}
