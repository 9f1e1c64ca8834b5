// Command logship is an interactive front end for the shipping pipeline: it
// asks for a number of messages, ships that many timestamps to the
// collector, and repeats until told to stop.
package main

import (
	"os"
)

func main() {
	os.Exit(Execute())
}
