package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"grene-storefront/internal/config"
)

var Version = "dev"

func main() {
	load := func() (config.Config, error) {
		cfg, err := config.Load()
		if err != nil {
			return config.Config{}, err
		}
		return *cfg, nil
	}
	if err := newRootCmd(load).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// newRootCmd builds the command tree. load is called lazily so commands that
// fail on flags never touch the environment.
func newRootCmd(load func() (config.Config, error)) *cobra.Command {
	root := &cobra.Command{
		Use:           "storectl",
		Short:         "Operator tooling for the Grenelectronic storefront",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(flowCmd(load))
	root.AddCommand(adminCmd(load))
	root.AddCommand(quotesCmd(load))
	root.AddCommand(reconcileCmd(load))
	return root
}
