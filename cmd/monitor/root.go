package monitor

import (
	"fmt"
	"time"

	"github.com/hakehuang/devlink/cmd/util"
	"github.com/hakehuang/devlink/link/client"
	"github.com/hakehuang/devlink/link/common"
	"github.com/hakehuang/devlink/link/serializer"
	"github.com/hakehuang/devlink/service/control"
	"github.com/hakehuang/devlink/service/devices"
	"github.com/hakehuang/devlink/service/telemetry"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	connector *client.Connector
	ser       serializer.ISerializer
	registry  *devices.Registry
	collector *telemetry.Collector
	invoker   *control.Invoker

	// MonitorCommands represents the monitor command group
	MonitorCommands = &cobra.Command{
		Use:               "monitor",
		Short:             "Observe and control devices through a hub",
		PersistentPreRunE: setupMonitorClient,
	}
)

func init() {
	// Initialize viper
	cobra.OnInitialize(util.InitClientConfig)

	// Add common hub connection flags to the monitor command
	util.SetupClientFlags(MonitorCommands)

	key := "poll-interval"
	MonitorCommands.PersistentFlags().Int(key, 5, util.WrapString("The interval between telemetry poll rounds (in seconds)"))

	// Add subcommands
	MonitorCommands.AddCommand(watchCmd)
	MonitorCommands.AddCommand(invokeCmd)
}

// setupMonitorClient connects to the hub and attaches the device services
func setupMonitorClient(cmd *cobra.Command, _ []string) error {
	// Bind command flags to viper
	if err := util.BindCommandFlags(cmd); err != nil {
		return err
	}

	config := util.GetClientConfig()
	common.InitLoggers(config.LogLevel)

	var err error
	if ser, err = util.GetSerializer(); err != nil {
		return err
	}

	if connector, err = util.GetConnector(*config); err != nil {
		return err
	}

	registry = devices.NewRegistry(ser)
	registry.Attach(connector)

	interval := time.Duration(viper.GetInt("poll-interval")) * time.Second
	collector = telemetry.NewCollector(ser, registry, connector, interval)
	collector.Attach(connector)

	if err := connector.Connect(); err != nil {
		return err
	}

	// The invoker needs the live endpoint for up-front id allocation
	ep := connector.Endpoint()
	if ep == nil {
		return fmt.Errorf("no endpoint after connect")
	}
	invoker = control.NewInvoker(ser, ep)
	invoker.Attach(connector)

	return nil
}
