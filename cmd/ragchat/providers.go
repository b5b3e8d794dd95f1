package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/0xcro3dile/ragchat-go/internal/config"
)

func newProvidersCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "providers",
		Short: "List configured model providers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := flags.models
			if path == "" {
				cfg, err := config.Load(flags.config)
				if err != nil {
					return err
				}
				path = cfg.Models.Path
			}
			reg, err := config.LoadProviders(path)
			if err != nil {
				return err
			}
			return printProviders(cmd, reg)
		},
	}
}

func printProviders(cmd *cobra.Command, reg *config.Registry) error {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tVENDOR\tMODEL\tROLE")
	for _, name := range reg.Names() {
		p := reg.Providers[name]
		role := ""
		switch {
		case name == reg.DefaultProvider && name == reg.EmbeddingProvider:
			role = "chat, embeddings"
		case name == reg.DefaultProvider:
			role = "chat"
		case name == reg.EmbeddingProvider:
			role = "embeddings"
		}
		model := p.Model
		if p.ProviderName == config.HashingVendor && p.Dimensions > 0 {
			model = fmt.Sprintf("%d dims", p.Dimensions)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", name, p.ProviderName, model, role)
	}
	return w.Flush()
}
