package main

import (
	"fmt"
	"os"

	"github.com/vnykmshr/settle/internal/cli"
)

var (
	version = "dev"
	commit  string
	date    string
)

func main() {
	err := cli.Execute(os.Args, os.Stdin, os.Stdout, os.Stderr, cli.BuildArgs{
		Version: version,
		Commit:  commit,
		Date:    date,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "settle: %s\n", err.Error())
		os.Exit(1)
	}
}
