package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/toursecure/digitalid-deployer/lib/cmd"
	"github.com/toursecure/digitalid-deployer/lib/cmd/deploy"
	"github.com/toursecure/digitalid-deployer/lib/cmd/inspect"
	"github.com/toursecure/digitalid-deployer/lib/cmd/signers"
	"github.com/toursecure/digitalid-deployer/lib/config"
)

func main() {
	if err := run(os.Stdout, os.Stderr, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(out, errOut io.Writer, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := newRootCmd(out, errOut)
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}

func newRootCmd(out, errOut io.Writer) *cobra.Command {
	env := cmd.NewEnv(out, errOut)
	deployCmd := deploy.NewCmd(env)

	root := &cobra.Command{
		Use:   "digitalid-deployer",
		Short: "Deploy the TourSecureDigitalID contract to an EVM network",
		Long: `Deploys a compiled contract with the first configured signer as its
initial owner, waits for the deployment to be mined and prints the address.
Without a subcommand it runs deploy.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return env.Load()
		},
		RunE: deployCmd.RunE,
	}
	root.SetOut(out)
	root.SetErr(errOut)

	config.RegisterFlags(root.PersistentFlags())
	// binding only fails on a nil flag
	_ = env.Viper.BindPFlags(root.PersistentFlags())

	root.AddCommand(deployCmd, signers.NewCmd(env), inspect.NewCmd(env))
	return root
}
