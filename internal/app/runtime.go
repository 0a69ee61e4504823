package app

import (
	"os"
	"sync/atomic"
)

const testModeEnv = "CONSOLE_TEST_MODE"

var testMode atomic.Pointer[bool]

// InTestMode reports whether CONSOLE_TEST_MODE=1 was set when first asked.
func InTestMode() bool {
	if cached := testMode.Load(); cached != nil {
		return *cached
	}
	return RefreshTestMode()
}

// RefreshTestMode rereads CONSOLE_TEST_MODE and returns the new value.
func RefreshTestMode() bool {
	on := os.Getenv(testModeEnv) == "1"
	testMode.Store(&on)
	return on
}

// SkipSideEffects reports whether binaries should exit before dialing Redis or the billing
// API: under test mode or with APP_ENV=test.
func SkipSideEffects(cfg *Config) bool {
	return InTestMode() || (cfg != nil && cfg.AppEnv == "test")
}
