package cli

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/urfave/cli"

	"github.com/vnykmshr/settle/pkg/config"
)

const validateDescription = `Loads the configuration file, applies SETTLE_* environment overrides,
validates every section and prints the resulting policies.`

var validateFlags = []cli.Flag{
	cli.StringFlag{
		Name:   "config, c",
		Usage:  "path to the YAML configuration file",
		EnvVar: "SETTLE_CONFIG",
	},
}

func validate(ctx *cli.Context) error {
	path := ctx.String("config")
	if path == "" {
		return errors.New("no configuration file provided, use --config")
	}

	cfg, err := config.Load(path)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(ctx.App.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "POLICY\tMODE\tWAIT\tMAX WAIT\tLEADING\tTRAILING")
	for _, name := range cfg.PolicyNames() {
		p := cfg.Policies[name]
		if p.Mode == config.ModeThrottle {
			tc := p.ThrottleConfig()
			fmt.Fprintf(w, "%s\t%s\t%v\t-\t%t\t%t\n", name, p.Mode, tc.Wait, tc.Leading, tc.Trailing)
			continue
		}
		dc := p.DebounceConfig()
		maxWait := "-"
		if dc.MaxWait > 0 {
			maxWait = dc.MaxWait.String()
		}
		fmt.Fprintf(w, "%s\t%s\t%v\t%s\t%t\t%t\n", name, p.Mode, dc.Wait, maxWait, dc.Leading, dc.Trailing)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	_, err = fmt.Fprintf(ctx.App.Writer, "%s: ok (%d policies)\n", path, len(cfg.Policies))
	return err
}
