package main

import (
	"github.com/spf13/cobra"
)

// cmdGlobal holds flags shared by every subcommand.
type cmdGlobal struct {
	flagAddr string
}

func newRootCommand() *cobra.Command {
	global := &cmdGlobal{}

	cmd := &cobra.Command{}
	cmd.Use = "launcherd"
	cmd.Short = "Application lifecycle daemon"
	cmd.Long = "launcherd launches, tracks and closes applications on behalf of the desktop shell."
	cmd.SilenceUsage = true
	cmd.SilenceErrors = true
	cmd.PersistentFlags().StringVar(&global.flagAddr, "addr", "", "Control API address (default from LAUNCHER_HTTP_ADDR)")

	// Serve.
	serveCmd := cmdServe{global: global}
	cmd.AddCommand(serveCmd.command())

	// Catalog.
	catalogCmd := cmdCatalog{}
	cmd.AddCommand(catalogCmd.command())

	// Client commands talking to a running daemon.
	instancesCmd := cmdInstances{global: global}
	cmd.AddCommand(instancesCmd.command())

	closeUserCmd := cmdCloseUser{global: global}
	cmd.AddCommand(closeUserCmd.command())

	shutdownCmd := cmdShutdown{global: global}
	cmd.AddCommand(shutdownCmd.command())

	// Workaround for subcommand usage errors. See: https://github.com/spf13/cobra/issues/706.
	cmd.Args = cobra.NoArgs
	cmd.Run = func(cmd *cobra.Command, _ []string) { _ = cmd.Usage() }

	return cmd
}
