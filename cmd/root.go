package cmd

import (
	"fmt"
	"os"

	"github.com/hakehuang/devlink/cmd/agent"
	"github.com/hakehuang/devlink/cmd/monitor"
	"github.com/hakehuang/devlink/cmd/serve"
	"github.com/hakehuang/devlink/cmd/util"
	"github.com/spf13/cobra"
)

const (
	Version = "0.3.1"
)

var (

	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "devlink",
		Short: "length-prefixed device messaging framework",
		Long: fmt.Sprintf(`devlink (v%s)

A messaging framework for device fleets built on a length-prefixed
binary TCP protocol, with a relay hub, device agents and monitors.`, Version),
	}
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of devlink",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("devlink v%s\n", Version)
		},
	}
)

func init() {
	// Add Commands
	RootCmd.AddCommand(serve.ServeCmd)
	RootCmd.AddCommand(agent.AgentCmd)
	RootCmd.AddCommand(monitor.MonitorCommands)
	RootCmd.AddCommand(versionCmd)

	// Add Flags
	key := "serializer"
	RootCmd.PersistentFlags().String(key, "json", util.WrapString("serializer to use (json, gob)"))
	key = "transport"
	RootCmd.PersistentFlags().String(key, "tcp", util.WrapString("transport to use (tcp, unix)"))
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
