// Command sqllint checks that every inline SQL constant starts with a unique
// "--sql <uuid>" marker line, the form infra.SQLRunner relies on.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
)

func main() {
	flag.Parse()
	os.Exit(run(flag.Args(), os.Stderr))
}

func run(targets []string, stderr io.Writer) int {
	if len(targets) == 0 {
		targets = []string{"."}
	}
	l := newLinter()
	for _, target := range targets {
		if err := l.walk(target); err != nil {
			fmt.Fprintf(stderr, "sqllint: %v\n", err)
			return 2
		}
	}
	if len(l.findings) == 0 {
		return 0
	}
	fmt.Fprintln(stderr, "sqllint: SQL marker violations")
	for _, f := range l.findings {
		fmt.Fprintf(stderr, "  %s:%d %s (%s)\n", f.file, f.line, f.message, f.name)
	}
	return 1
}
