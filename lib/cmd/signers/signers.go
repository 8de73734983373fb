package signers

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/toursecure/digitalid-deployer/lib/account"
	"github.com/toursecure/digitalid-deployer/lib/cmd"
)

func NewCmd(env *cmd.Env) *cobra.Command {
	return &cobra.Command{
		Use:   "signers",
		Short: "List the configured signer addresses in order; the first one deploys",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			return List(env)
		},
	}
}

func List(env *cmd.Env) error {
	signers, err := account.NewProvider(env.Config).Signers()
	if err != nil {
		return err
	}
	if len(signers) == 0 {
		return account.ErrNoSignerAvailable
	}
	for i, s := range signers {
		fmt.Fprintf(env.Out, "%d %s\n", i, s.Address.Hex())
	}
	return nil
}
