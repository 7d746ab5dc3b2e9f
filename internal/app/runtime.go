package app

import (
	"os"
	"strconv"
	"sync"
	"sync/atomic"
)

// testModeEnv is set by the root testing package so that binaries built for
// tests never open Postgres, Redis or a listener.
const testModeEnv = "ODYSSEY_TEST_MODE"

var (
	testMode     atomic.Bool
	testModeInit sync.Once
)

func loadTestMode() {
	enabled, err := strconv.ParseBool(os.Getenv(testModeEnv))
	testMode.Store(err == nil && enabled)
}

// InTestMode reports whether main packages should return before startup.
func InTestMode() bool {
	testModeInit.Do(loadTestMode)
	return testMode.Load()
}

// RefreshTestMode rereads the environment, for tests that toggle the flag.
func RefreshTestMode() {
	testModeInit.Do(func() {})
	loadTestMode()
}
