package monitor

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hakehuang/devlink/link/common"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	watchCmd = &cobra.Command{
		Use:   "watch",
		Short: "Poll all known devices and print their readings",
		RunE: func(cmd *cobra.Command, args []string) error {
			defer connector.Disconnect()

			if err := collector.Start(); err != nil {
				return err
			}
			defer collector.Stop()

			sig := make(chan os.Signal, 1)
			signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

			interval := time.Duration(viper.GetInt("poll-interval")) * time.Second
			ticker := time.NewTicker(interval)
			defer ticker.Stop()

			fmt.Println("watching devices, press Ctrl-C to stop")
			for {
				select {
				case <-ticker.C:
					printSummary()
				case <-sig:
					return nil
				}
			}
		},
	}

	invokeCmd = &cobra.Command{
		Use:   "invoke [device-id] [code] [params...]",
		Short: "Invoke a remote command on a device and wait for its result",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			defer connector.Disconnect()

			deviceID := args[0]
			code := args[1]
			var params []byte
			if len(args) > 2 {
				params = []byte(args[2])
			}

			results := make(chan common.Envelope, 1)
			id, err := invoker.Invoke(deviceID, code, params, func(result common.Envelope) {
				results <- result
			})
			if err != nil {
				return err
			}

			timeout := time.Duration(viper.GetInt("invoke-timeout")) * time.Second
			select {
			case result := <-results:
				if result.Ok {
					fmt.Printf("id=%d, ok=true, result=%s\n", id, result.Value)
				} else {
					fmt.Printf("id=%d, ok=false, err=%s\n", id, result.Err)
				}
				return nil
			case <-time.After(timeout):
				return fmt.Errorf("no response for command %d within %s", id, timeout)
			}
		},
	}
)

func init() {
	key := "invoke-timeout"
	invokeCmd.Flags().Int(key, 10, "The time to wait for the command result (in seconds)")
}

// printSummary prints one line per known device with its latest reading
func printSummary() {
	list := registry.List()
	if len(list) == 0 {
		fmt.Println("no devices registered")
		return
	}
	for _, dev := range list {
		line := fmt.Sprintf("%-16s status=%-8s", dev.ID, dev.Status)
		if recent := collector.Recent(dev.ID, 1); len(recent) > 0 {
			line += fmt.Sprintf(" reading=%s (%s)", recent[0].Value,
				time.Unix(0, recent[0].Timestamp).Format(time.TimeOnly))
		}
		fmt.Println(line)
	}
}
