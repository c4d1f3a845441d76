// Command jobtrackd runs the job engine behind an HTTP API.
package main

import "os"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
