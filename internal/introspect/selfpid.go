package introspect

import "os"

func selfPID() int {
	return os.Getpid()
}
