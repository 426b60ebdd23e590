package logging

import (
	"log"
	"os"
)

func init() {
	// Route the standard library's global logger to standard output so that
	// anything logging outside this package's Logger hierarchy still lands
	// in the same stream.
	log.SetOutput(os.Stdout)
}
