// Package cli implements the settle command line: it replays events from
// stdin through a debounce or throttle policy and prints the invocations.
package cli

import (
	"fmt"
	"io"
	"runtime"

	"github.com/urfave/cli"
)

// BuildArgs carries version information set at build time.
type BuildArgs struct {
	Version string
	Commit  string
	Date    string
}

const description = `settle reads one event per line from stdin and feeds each line to a
debounced or throttled target. Every actual invocation is printed with its
offset from the start of the run, which makes it easy to see how a policy
shapes a stream of events:

    printf 'a\nb\nc\n' | settle run --mode debounce --wait 200ms
    tail -f access.log | settle run --config settle.yaml --policy search`

// Execute runs the command line with the given arguments and streams.
func Execute(args []string, stdin io.Reader, stdout, stderr io.Writer, bArgs BuildArgs) error {
	r := &runner{stdin: stdin, version: bArgs.Version}

	app := cli.App{
		Name:        "settle",
		HelpName:    "settle",
		Usage:       "debounce and throttle a stream of events",
		UsageText:   "settle <command> [arguments...]",
		Version:     bArgs.Version,
		Description: description,
		Writer:      stdout,
		ErrWriter:   stderr,
		Commands: []cli.Command{
			{
				Name:        "run",
				Aliases:     []string{"r"},
				Usage:       "feed stdin lines through a policy and print invocations",
				Description: runDescription,
				Flags:       runFlags,
				Action:      r.run,
			},
			{
				Name:        "validate",
				Usage:       "check a configuration file and list its policies",
				Description: validateDescription,
				Flags:       validateFlags,
				Action:      validate,
			},
			{
				Name:    "version",
				Aliases: []string{"v"},
				Usage:   "prints installed version of settle",
				Action: func(ctx *cli.Context) error {
					_, err := fmt.Fprintf(ctx.App.Writer, "%s %s (%s_%s)\nBuild: %s=%s\n",
						ctx.App.Name, bArgs.Version, runtime.GOOS, runtime.GOARCH, bArgs.Date, bArgs.Commit)
					return err
				},
			},
		},
		HideVersion: true,
	}
	return app.Run(args)
}
