// Package guard switches binaries into test mode when imported by tests.
package guard

import (
	"os"
	"sync"
)

// Env names the variable checked by app.InTestMode.
const Env = "NACHWEIS_TEST_MODE"

var once sync.Once

func init() {
	once.Do(func() {
		if os.Getenv(Env) == "" {
			_ = os.Setenv(Env, "1")
		}
		if os.Getenv("GOTENBERG_URL") == "" {
			_ = os.Setenv("GOTENBERG_URL", "http://127.0.0.1:0")
		}
	})
}
