// esi-fetch is a command line front end for the ESI client library: it
// composes, dispatches and prints any catalogued endpoint, including
// paginated and fanned-out request families.
package main

import "os"

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
