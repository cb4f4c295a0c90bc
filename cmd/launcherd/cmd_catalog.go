package main

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/SerVas333/WindowsLauncher/backend/internal/domain/catalog"
	"github.com/SerVas333/WindowsLauncher/backend/internal/infrastructure/config"
)

// cmdCatalog validates and lists a catalog without starting the daemon.
type cmdCatalog struct {
	flagPath string
	flagRole string
}

func (c *cmdCatalog) command() *cobra.Command {
	cmd := &cobra.Command{}
	cmd.Use = "catalog"
	cmd.Short = "Validate and list application definitions"
	cmd.Args = cobra.NoArgs
	cmd.Flags().StringVar(&c.flagPath, "path", "", "Catalog file or directory (default from LAUNCHER_CATALOG)")
	cmd.Flags().StringVar(&c.flagRole, "role", "", "Only list what this role may launch")
	cmd.RunE = c.run
	return cmd
}

func (c *cmdCatalog) run(cmd *cobra.Command, _ []string) error {
	path := c.flagPath
	if path == "" {
		path = config.LoadOrDefault().Catalog.Path
	}

	provider, err := catalog.NewFileProvider(path, nil)
	if err != nil {
		return err
	}

	defs := provider.All()
	if c.flagRole != "" {
		role := catalog.Role(c.flagRole)
		if !role.Valid() {
			return fmt.Errorf("unknown role %q", c.flagRole)
		}
		defs, err = provider.Definitions(context.Background(), catalog.User{Role: role})
		if err != nil {
			return err
		}
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tKIND\tROLE\tNAME\tTARGET")
	for _, d := range defs {
		role := string(d.MinimumRole)
		if role == "" {
			role = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", d.ID, d.Kind, role, d.DisplayName(), d.Target)
	}
	return w.Flush()
}
