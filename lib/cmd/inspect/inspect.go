package inspect

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/toursecure/digitalid-deployer/lib/artifact"
	"github.com/toursecure/digitalid-deployer/lib/cmd"
)

func NewCmd(env *cmd.Env) *cobra.Command {
	var all bool
	c := &cobra.Command{
		Use:   "artifact [name]",
		Short: "Resolve a compiled contract artifact without touching the network",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			store := artifact.NewStore(env.Config.ArtifactsDir)
			if all {
				return listAll(env, store)
			}
			name := env.Config.ContractName
			if len(args) == 1 {
				name = args[0]
			}
			return show(env, store, name)
		},
	}
	c.Flags().BoolVar(&all, "list", false, "list every contract artifact instead")
	return c
}

func show(env *cmd.Env, store *artifact.Store, name string) error {
	art, err := store.Resolve(name)
	if err != nil {
		return err
	}
	fmt.Fprintf(env.Out, "name:        %s\n", art.ContractName)
	if art.SourceName != "" {
		fmt.Fprintf(env.Out, "source:      %s\n", art.SourceName)
	}
	fmt.Fprintf(env.Out, "path:        %s\n", art.Path)
	fmt.Fprintf(env.Out, "constructor: %s\n", art.ConstructorSignature())
	fmt.Fprintf(env.Out, "bytecode:    %d bytes\n", len(art.Bytecode))
	return nil
}

func listAll(env *cmd.Env, store *artifact.Store) error {
	names, err := store.List()
	if err != nil {
		return err
	}
	for _, name := range names {
		fmt.Fprintln(env.Out, name)
	}
	return nil
}
