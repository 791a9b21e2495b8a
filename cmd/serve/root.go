package serve

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	cmdUtil "github.com/hakehuang/devlink/cmd/util"
	"github.com/hakehuang/devlink/link/common"
	"github.com/hakehuang/devlink/link/endpoint"
	"github.com/hakehuang/devlink/link/serializer"
	"github.com/hakehuang/devlink/link/server"
	"github.com/hakehuang/devlink/link/wire"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	serveCmdConfig = &common.ServerConfig{}
	ServeCmd       = &cobra.Command{
		Use:     "serve",
		Short:   "Start the devlink hub",
		Long:    `Start the devlink hub with the specified configuration. The configuration can be set via command line flags or environment variables. The format of the environment variables is DEVLINK_<flag> (e.g. DEVLINK_ENDPOINT=0.0.0.0:9000)`,
		PreRunE: processConfig,
		RunE:    run,
	}
)

func init() {
	// initialize viper
	cobra.OnInitialize(initConfig)

	// add flags
	key := "endpoint"
	ServeCmd.PersistentFlags().String(key, "0.0.0.0:9000", cmdUtil.WrapString("The address on which the hub will listen"))

	key = "tcp-nodelay"
	ServeCmd.PersistentFlags().Bool(key, true, cmdUtil.WrapString("Whether to enable TCP_NODELAY for accepted connections"))

	key = "tcp-keepalive"
	ServeCmd.PersistentFlags().Int(key, 0, cmdUtil.WrapString("The keepalive interval for accepted connections (in seconds)"))

	key = "tcp-linger"
	ServeCmd.PersistentFlags().Int(key, 0, cmdUtil.WrapString("The linger time for accepted connections (in seconds)"))

	key = "write-buffer"
	ServeCmd.PersistentFlags().Int(key, 512, cmdUtil.WrapString("The size of the socket write buffer (in KB)"))

	key = "read-buffer"
	ServeCmd.PersistentFlags().Int(key, 512, cmdUtil.WrapString("The size of the socket read buffer (in KB)"))

	key = "log-level"
	ServeCmd.PersistentFlags().String(key, "info", cmdUtil.WrapString("LogLevel is the level at which logs will be output (debug, info, warn, error)"))
}

// processConfig reads the configuration from the command line flags and environment variables and converts them to the server configuration
func processConfig(cmd *cobra.Command, _ []string) error {
	// bind the flags to viper
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	serveCmdConfig.Endpoint = viper.GetString("endpoint")
	serveCmdConfig.TCPNoDelay = viper.GetBool("tcp-nodelay")
	serveCmdConfig.TCPKeepAliveSec = viper.GetInt("tcp-keepalive")
	serveCmdConfig.TCPLingerSec = viper.GetInt("tcp-linger")
	serveCmdConfig.WriteBufferSize = viper.GetInt("write-buffer") * 1024
	serveCmdConfig.ReadBufferSize = viper.GetInt("read-buffer") * 1024
	serveCmdConfig.LogLevel = viper.GetString("log-level")

	return nil
}

// run starts the hub and installs the relay handlers
func run(_ *cobra.Command, _ []string) error {
	common.InitLoggers(serveCmdConfig.LogLevel)

	ser, err := cmdUtil.GetSerializer()
	if err != nil {
		return err
	}

	var hub *server.Server
	switch viper.GetString("transport") {
	case "tcp":
		hub = server.NewServer(*serveCmdConfig)
	case "unix":
		hub = server.NewUnixServer(*serveCmdConfig)
	default:
		return fmt.Errorf("invalid transport %s", viper.GetString("transport"))
	}

	// Connect announcements are acknowledged by the hub and relayed so
	// monitors can track the device
	hub.Register(common.CmdConnect, func(ep *endpoint.Endpoint, msg wire.Message) {
		ack(hub, ser, ep, msg)
		relay(hub, ep, msg.Cmd, msg.Payload)
	})

	// Telemetry readings fan out to everyone else as hub broadcasts
	hub.Register(common.CmdTelemetry, func(ep *endpoint.Endpoint, msg wire.Message) {
		relay(hub, ep, common.CmdBroadcast, msg.Payload)
	})

	// Everything else is relayed unchanged; the hub stays agnostic to the
	// payloads it forwards
	for _, cmd := range []common.Command{
		common.CmdDisconnect,
		common.CmdStatus,
		common.CmdCommand,
		common.CmdCmdResult,
		common.CmdGetData,
	} {
		cmd := cmd
		hub.Register(cmd, func(ep *endpoint.Endpoint, msg wire.Message) {
			relay(hub, ep, cmd, msg.Payload)
		})
	}

	if err := hub.Start(); err != nil {
		return err
	}
	server.Logger.Infof("hub ready on %s%s", hub.Addr(), serveCmdConfig.String())

	// Block until interrupted
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	hub.Stop()
	return nil
}

// ack replies to a connect announcement on the announcing connection
func ack(hub *server.Server, ser serializer.ISerializer, ep *endpoint.Endpoint, msg wire.Message) {
	var env common.Envelope
	if err := ser.Deserialize(msg.Payload, &env); err != nil {
		server.Logger.Errorf("malformed connect payload from %s: %v", ep.RemoteAddr(), err)
		return
	}

	payload, err := ser.Serialize(*common.NewConnectAckEnvelope(env.DeviceID, env.DeviceID != "", "missing device id"))
	if err != nil {
		server.Logger.Errorf("failed to serialize connect ack: %v", err)
		return
	}
	if _, err := ep.Send(common.CmdConnectAck, payload); err != nil {
		server.Logger.Errorf("failed to send connect ack to %s: %v", ep.RemoteAddr(), err)
	}
}

// relay forwards a payload to every connection except its origin
func relay(hub *server.Server, origin *endpoint.Endpoint, cmd common.Command, payload []byte) {
	for _, peer := range hub.Peers() {
		if peer == origin.RemoteAddr() {
			continue
		}
		if err := hub.Send(peer, cmd, payload); err != nil {
			server.Logger.Warningf("relay to %s failed: %v", peer, err)
		}
	}
}

// initConfig reads in serveCmdConfig file and ENV variables if set.
func initConfig() {
	// load env files
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	// initialize viper
	viper.SetEnvPrefix("devlink")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv() // read in environment variables that match
}
