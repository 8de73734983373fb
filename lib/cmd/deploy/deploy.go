package deploy

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/toursecure/digitalid-deployer/lib"
	"github.com/toursecure/digitalid-deployer/lib/cmd"
)

func NewCmd(env *cmd.Env) *cobra.Command {
	return &cobra.Command{
		Use:   "deploy",
		Short: "Deploy the contract with the default signer as its initial owner",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, _ []string) error {
			return Deploy(c.Context(), env)
		},
	}
}

func Deploy(ctx context.Context, env *cmd.Env) error {
	cfg := env.Config
	lg := env.Log.With().
		Str("network", cfg.Network).
		Str("contract", cfg.ContractName).
		Logger()

	lg.Debug().Msg("starting deployment")

	address, err := lib.DeployContract(ctx, cfg, env.Out, lg)
	if err != nil {
		return err
	}

	lg.Debug().Str("address", address).Msg("deployment finished")
	return nil
}
