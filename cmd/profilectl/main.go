// Command profilectl scores and consolidates assessments offline, using the
// same engine and weighting policy as the server.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
