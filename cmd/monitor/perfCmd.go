package monitor

import (
	"encoding/csv"
	"fmt"
	"log"
	"math"
	"os"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/hakehuang/devlink/cmd/util"
	"github.com/hakehuang/devlink/link/common"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	perfTestCmd = &cobra.Command{
		Use:     "perf [device-id]",
		Short:   "Performance testing tool for devlink hubs",
		Long:    "Measures command round-trip throughput through a hub against one device agent.",
		Args:    cobra.ExactArgs(1),
		RunE:    runPerf,
		PreRunE: processPerfConfig,
	}
	perfLargeParamsKB = 100
	perfNumThreads    = 10
	perfSkip          = make([]string, 0)
)

func init() {
	// add flags
	key := "skip"
	perfTestCmd.Flags().String(key, "", util.WrapString("Benchmarks to skip (comma separated - e.g. ping,echo)"))
	key = "threads"
	perfTestCmd.Flags().Int(key, 10, util.WrapString("Number of threads to use for the benchmark"))
	key = "large-params-size"
	perfTestCmd.Flags().Int(key, 100, util.WrapString("How large the parameters for the echo-large test should be (in KB)"))
	key = "csv"
	perfTestCmd.Flags().String(key, "", util.WrapString("Optional path to save benchmark results as CSV"))

	MonitorCommands.AddCommand(perfTestCmd)
}

func processPerfConfig(cmd *cobra.Command, _ []string) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	// Read the configuration from the command line flags and environment variables
	perfLargeParamsKB = viper.GetInt("large-params-size")
	perfNumThreads = viper.GetInt("threads")
	perfSkip = strings.Split(viper.GetString("skip"), ",")

	return nil
}

func runPerf(_ *cobra.Command, args []string) error {
	deviceID := args[0]
	defer connector.Disconnect()

	fmt.Println("Performance testing tool for devlink hubs")

	// Print configuration
	fmt.Println()
	fmt.Println("Configuration:")
	fmt.Println(util.GetClientConfig().String())
	fmt.Printf("Threads: %d\n", perfNumThreads)
	fmt.Println()

	fmt.Println("starting tests...")

	// roundTrip invokes one command and blocks until its result arrives
	roundTrip := func(test, code string, params []byte) {
		done := make(chan struct{})
		if _, err := invoker.Invoke(deviceID, code, params, func(common.Envelope) {
			close(done)
		}); err != nil {
			log.Printf("(%s) - error invoking command: %v\n", test, err)
			return
		}
		select {
		case <-done:
		case <-time.After(10 * time.Second):
			log.Printf("(%s) - command timed out\n", test)
		}
	}

	// Create results map
	results := make(map[string]testing.BenchmarkResult)

	pingResult := testing.Benchmark(func(b *testing.B) {
		if shouldSkip("ping") {
			return
		}

		b.SetParallelism(perfNumThreads)
		b.ResetTimer()

		b.RunParallel(func(pb *testing.PB) {
			for pb.Next() {
				roundTrip("ping", "ping", nil)
			}
		})
	})

	results["ping"] = pingResult
	printResult("ping", pingResult)

	echoResult := testing.Benchmark(func(b *testing.B) {
		if shouldSkip("echo") {
			return
		}

		b.SetParallelism(perfNumThreads)
		b.ResetTimer()

		b.RunParallel(func(pb *testing.PB) {
			for pb.Next() {
				roundTrip("echo", "echo", []byte("benchmark"))
			}
		})
	})

	results["echo"] = echoResult
	printResult("echo", echoResult)

	echoLargeResult := testing.Benchmark(func(b *testing.B) {
		if shouldSkip("echo-large") {
			return
		}

		// prepare large parameters
		largeParams := make([]byte, perfLargeParamsKB*1024)

		b.SetParallelism(perfNumThreads)
		b.ResetTimer()

		b.RunParallel(func(pb *testing.PB) {
			for pb.Next() {
				roundTrip("echo-large", "echo", largeParams)
			}
		})
	})

	results["echo-large"] = echoLargeResult
	printResult("echo-large", echoLargeResult)

	// Write results to csv is specified
	if csvPath := viper.GetString("csv"); csvPath != "" {
		fmt.Printf("\nExporting results to CSV: %s\n", csvPath)
		if err := writeResultsToCSV(csvPath, results, util.GetClientConfig()); err != nil {
			return fmt.Errorf("failed to export results to CSV: %v", err)
		}
		fmt.Println("Export complete")
	}

	return nil
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

func shouldSkip(test string) bool {
	// Check if the test is in the skip list
	for _, skip := range perfSkip {
		if test == skip {
			return true
		}
	}
	return false
}

// printResult prints the result of a benchmark test in a formatted way
func printResult(test string, result testing.BenchmarkResult) {
	if result.NsPerOp() == 0 {
		fmt.Printf("%-20sskipped\n", test)
		return
	}

	nsPerOp := math.Max(float64(result.NsPerOp()), 1) // prevent division by zero
	opsPerSec := 1.0 / (nsPerOp / 1e9)

	// Print the formatted result
	fmt.Printf("%-20s%.0fns/op (%s/op)\t%.0f ops/sec\n", test, nsPerOp, time.Duration(nsPerOp), opsPerSec)
}

// writeResultsToCSV writes benchmark results to a CSV file
func writeResultsToCSV(csvPath string, results map[string]testing.BenchmarkResult, config *common.ClientConfig) error {
	file, err := os.Create(csvPath)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %v", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	// Write header
	header := []string{
		"Test", "NsPerOp", "DurationPerOp", "OpsPerSec", "Skipped",
		"Endpoint", "Retries", "RetryDelay", "Serializer",
		"Threads", "LargeParamsKB",
	}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %v", err)
	}

	// Write test results
	for test, result := range results {
		var nsPerOp float64
		var opsPerSec float64
		var skipped string

		if result.NsPerOp() == 0 {
			skipped = "true"
			nsPerOp = 0
			opsPerSec = 0
		} else {
			skipped = "false"
			nsPerOp = math.Max(float64(result.NsPerOp()), 1)
			opsPerSec = 1.0 / (nsPerOp / 1e9)
		}

		row := []string{
			test,
			fmt.Sprintf("%.0f", nsPerOp),
			time.Duration(nsPerOp).String(),
			fmt.Sprintf("%.0f", opsPerSec),
			skipped,
			config.Endpoint,
			strconv.Itoa(config.MaxRetries),
			config.RetryDelay.String(),
			viper.GetString("serializer"),
			strconv.Itoa(perfNumThreads),
			strconv.Itoa(perfLargeParamsKB),
		}

		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write row for test %s: %v", test, err)
		}
	}

	return nil
}
