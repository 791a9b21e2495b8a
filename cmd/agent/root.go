package agent

import (
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	cmdUtil "github.com/hakehuang/devlink/cmd/util"
	"github.com/hakehuang/devlink/link/client"
	"github.com/hakehuang/devlink/link/common"
	"github.com/hakehuang/devlink/link/endpoint"
	"github.com/hakehuang/devlink/link/serializer"
	"github.com/hakehuang/devlink/link/wire"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	// AgentCmd runs a simulated device against a hub
	AgentCmd = &cobra.Command{
		Use:   "agent [device-id]",
		Short: "Run a simulated device agent",
		Long:  `Run a simulated device agent that connects to a hub, announces itself, answers data requests with synthetic telemetry readings, executes remote commands and sends periodic status heartbeats.`,
		Args:  cobra.ExactArgs(1),
		RunE:  run,
	}
)

func init() {
	// Initialize viper
	cobra.OnInitialize(cmdUtil.InitClientConfig)

	// Add common hub connection flags
	cmdUtil.SetupClientFlags(AgentCmd)

	key := "heartbeat"
	AgentCmd.PersistentFlags().Int(key, 10, cmdUtil.WrapString("The interval between status heartbeats (in seconds)"))
}

// run connects the agent and serves requests until interrupted
func run(cmd *cobra.Command, args []string) error {
	if err := cmdUtil.BindCommandFlags(cmd); err != nil {
		return err
	}

	deviceID := args[0]
	config := cmdUtil.GetClientConfig()
	common.InitLoggers(config.LogLevel)

	ser, err := cmdUtil.GetSerializer()
	if err != nil {
		return err
	}

	connector, err := cmdUtil.GetConnector(*config)
	if err != nil {
		return err
	}
	registerHandlers(connector, ser, deviceID)

	if err := connector.Connect(); err != nil {
		return err
	}
	defer connector.Disconnect()

	// Announce the device
	announcement, err := ser.Serialize(*common.NewConnectEnvelope(deviceID, "online", map[string]string{
		"agent": "devlink-agent",
		"os":    runtime.GOOS,
	}))
	if err != nil {
		return err
	}
	if _, err := connector.Send(common.CmdConnect, announcement); err != nil {
		return err
	}
	client.Logger.Infof("device %s announced to %s", deviceID, config.Endpoint)

	// Heartbeat until interrupted
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	interval := time.Duration(viper.GetInt("heartbeat")) * time.Second
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			heartbeat, err := ser.Serialize(*common.NewStatusEnvelope(deviceID, "online"))
			if err != nil {
				client.Logger.Errorf("failed to serialize heartbeat: %v", err)
				continue
			}
			if _, err := connector.Send(common.CmdStatus, heartbeat); err != nil {
				client.Logger.Errorf("heartbeat failed: %v", err)
			}
		case <-sig:
			// Orderly sign-off
			if farewell, err := ser.Serialize(*common.NewDisconnectEnvelope(deviceID)); err == nil {
				_, _ = connector.Send(common.CmdDisconnect, farewell)
			}
			client.Logger.Infof("device %s signing off", deviceID)
			return nil
		}
	}
}

// registerHandlers installs the agent's handlers on the connector
func registerHandlers(connector *client.Connector, ser serializer.ISerializer, deviceID string) {
	// Connect acknowledgement from the hub
	connector.Register(common.CmdConnectAck, func(_ *endpoint.Endpoint, msg wire.Message) {
		var env common.Envelope
		if err := ser.Deserialize(msg.Payload, &env); err != nil {
			client.Logger.Errorf("malformed connect ack: %v", err)
			return
		}
		if env.Ok {
			client.Logger.Infof("announcement acknowledged")
		} else {
			client.Logger.Errorf("announcement rejected: %s", env.Err)
		}
	})

	// Data requests are answered with a synthetic reading
	connector.Register(common.CmdGetData, func(ep *endpoint.Endpoint, msg wire.Message) {
		var env common.Envelope
		if err := ser.Deserialize(msg.Payload, &env); err != nil {
			client.Logger.Errorf("malformed data request: %v", err)
			return
		}
		if env.DeviceID != deviceID {
			return // request targets another device
		}

		value := fmt.Sprintf("%.2f", 20+10*rand.Float64())
		reading, err := ser.Serialize(*common.NewTelemetryEnvelope(deviceID, time.Now().UnixNano(), []byte(value)))
		if err != nil {
			client.Logger.Errorf("failed to serialize reading: %v", err)
			return
		}
		if _, err := ep.Send(common.CmdTelemetry, reading); err != nil {
			client.Logger.Errorf("failed to send reading: %v", err)
		}
	})

	// Remote commands
	connector.Register(common.CmdCommand, func(ep *endpoint.Endpoint, msg wire.Message) {
		var env common.Envelope
		if err := ser.Deserialize(msg.Payload, &env); err != nil {
			client.Logger.Errorf("malformed command: %v", err)
			return
		}
		if env.DeviceID != deviceID {
			return // command targets another device
		}

		result := execute(env)
		payload, err := ser.Serialize(*result)
		if err != nil {
			client.Logger.Errorf("failed to serialize command result: %v", err)
			return
		}
		if _, err := ep.Send(common.CmdCmdResult, payload); err != nil {
			client.Logger.Errorf("failed to send command result: %v", err)
		}
	})
}

// execute runs one remote command and builds its response envelope
func execute(env common.Envelope) *common.Envelope {
	switch env.Code {
	case "ping":
		return common.NewCmdResultEnvelope(env.RequestID, env.DeviceID, true, []byte("pong"), nil)
	case "echo":
		return common.NewCmdResultEnvelope(env.RequestID, env.DeviceID, true, env.Params, nil)
	case "uptime":
		return common.NewCmdResultEnvelope(env.RequestID, env.DeviceID, true,
			[]byte(time.Since(startedAt).Round(time.Second).String()), nil)
	default:
		return common.NewCmdResultEnvelope(env.RequestID, env.DeviceID, false, nil,
			fmt.Errorf("unsupported command code %q", env.Code))
	}
}

var startedAt = time.Now()
