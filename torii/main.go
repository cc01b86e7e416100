// Torii is a command-line front end for the emulation core. It can run a
// scripted machine for a stretch of virtual time with tracing and
// inspection attached.
package main

import "github.com/emusim/torii/torii/cmd"

func main() {
	cmd.Execute()
}
