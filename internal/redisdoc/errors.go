package redisdoc

// Op constants name the Redis command that failed.
const (
	OpHSet    = "HSET"
	OpHDel    = "HDEL"
	OpHGetAll = "HGETALL"
	OpRPush   = "RPUSH"
	OpLRange  = "LRANGE"
)

// Error wraps a Redis failure with the command and key for diagnostics.
type Error struct {
	Op  string
	Key string
	Err error
}

func (e *Error) Error() string { return e.Op + " " + e.Key + ": " + e.Err.Error() }
func (e *Error) Unwrap() error { return e.Err }
