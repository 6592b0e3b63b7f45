//go:build windows

package scheduler

import "os"

func terminateSignal() os.Signal { return os.Kill }
