package main

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/spf13/cobra"

	"github.com/SerVas333/WindowsLauncher/backend/internal/infrastructure/config"
)

func (g *cmdGlobal) client() *resty.Client {
	addr := g.flagAddr
	if addr == "" {
		addr = config.LoadOrDefault().Server.Addr
	}
	return resty.New().
		SetBaseURL("http://"+addr).
		SetTimeout(time.Minute).
		SetHeader("Accept", "application/json")
}

// report writes the response body and turns non-2xx answers into errors.
func report(cmd *cobra.Command, resp *resty.Response, err error) error {
	if err != nil {
		return fmt.Errorf("launcherd unreachable: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), resp.String())
	switch {
	case resp.StatusCode() == http.StatusMultiStatus:
		return fmt.Errorf("some applications could not be closed")
	case resp.IsError():
		return fmt.Errorf("launcherd answered %s", resp.Status())
	}
	return nil
}

type cmdInstances struct {
	global *cmdGlobal

	flagUser string
}

func (c *cmdInstances) command() *cobra.Command {
	cmd := &cobra.Command{}
	cmd.Use = "instances"
	cmd.Short = "List running applications"
	cmd.Args = cobra.NoArgs
	cmd.Flags().StringVar(&c.flagUser, "user", "", "Only this user's applications")
	cmd.RunE = func(cmd *cobra.Command, _ []string) error {
		req := c.global.client().R().SetContext(cmd.Context())
		if c.flagUser != "" {
			req.SetQueryParam("user", c.flagUser)
		}
		resp, err := req.Get("/instances")
		return report(cmd, resp, err)
	}
	return cmd
}

// cmdCloseUser is what the session coordinator runs when a user logs out.
type cmdCloseUser struct {
	global *cmdGlobal

	flagTimeout time.Duration
}

func (c *cmdCloseUser) command() *cobra.Command {
	cmd := &cobra.Command{}
	cmd.Use = "close-user <user>"
	cmd.Short = "Close every application of a user"
	cmd.Args = cobra.ExactArgs(1)
	cmd.Flags().DurationVar(&c.flagTimeout, "timeout", 0, "Graceful close window (default from the daemon)")
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		req := c.global.client().R().SetContext(cmd.Context()).SetPathParam("user", args[0])
		if c.flagTimeout > 0 {
			req.SetQueryParam("timeout", c.flagTimeout.String())
		}
		resp, err := req.Post("/users/{user}/close")
		return report(cmd, resp, err)
	}
	return cmd
}

type cmdShutdown struct {
	global *cmdGlobal
}

func (c *cmdShutdown) command() *cobra.Command {
	cmd := &cobra.Command{}
	cmd.Use = "shutdown"
	cmd.Short = "Close every application and stop the daemon"
	cmd.Args = cobra.NoArgs
	cmd.RunE = func(cmd *cobra.Command, _ []string) error {
		resp, err := c.global.client().R().SetContext(cmd.Context()).Post("/shutdown")
		return report(cmd, resp, err)
	}
	return cmd
}
