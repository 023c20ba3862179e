// Command spk resolves and builds packages against a set of repositories.
package main

import (
	"log"
	"os"
)

func main() {
	out := log.New(os.Stdout, "", 0)
	errOut := log.New(os.Stderr, "", 0)
	os.Exit(run(os.Args, out, errOut))
}
