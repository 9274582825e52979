// Command csopesy is the shell entrypoint: it reads the configuration
// path from -config (grounded on the teacher's -rom flag.String
// pattern), then hands stdin/stdout to internal/shell for the REPL.
package main

import (
	"flag"
	"os"
	"os/signal"

	"github.com/Subprograms/OpesyWithOppenheimer/internal/shell"
)

func main() {
	configPath := flag.String("config", "config.txt", "Path to the configuration file")
	flag.Parse()

	q := make(chan os.Signal, 1)
	signal.Notify(q, os.Interrupt)
	go func() {
		<-q
		os.Exit(0)
	}()

	s := shell.New(os.Stdin, os.Stdout, *configPath)
	s.Banner()
	s.Run()
}
