package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/vectord/internal/devices"
)

var (
	devicesTargets string
	devicesJSON    bool
)

// devicesCmd shows what the device resolver would pick on this host
var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "Show resolved encoding devices",
	Long: `Probe the host for accelerators and show the devices encoding
would run on.

Accelerators are probed in priority order (cuda, npu, mps) and every
unit of the first available kind is used. A host with no accelerator
encodes on cpu. Explicit targets pass through unprobed.

Examples:
  # Show what this host resolves to
  vectorctl devices

  # Show how an explicit list passes through
  vectorctl devices --targets cuda:0,cuda:1

  # Machine-readable output
  vectorctl devices --json`,
	RunE: runDevices,
}

func init() {
	devicesCmd.Flags().StringVar(&devicesTargets, "targets", "", "comma-separated explicit device list")
	devicesCmd.Flags().BoolVar(&devicesJSON, "json", false, "output as JSON")
}

// deviceReport is the JSON output of the devices command.
type deviceReport struct {
	CUDADevices int      `json:"cuda_devices"`
	NPUDevices  int      `json:"npu_devices"`
	MPS         bool     `json:"mps"`
	Explicit    bool     `json:"explicit"`
	Targets     []string `json:"targets"`
}

func runDevices(cmd *cobra.Command, args []string) error {
	prober := devices.NewHostProber()
	resolver := devices.NewResolver(prober, nil)

	explicit := devices.ParseList(devicesTargets)
	report := deviceReport{
		CUDADevices: prober.CUDADevices(),
		NPUDevices:  prober.NPUDevices(),
		MPS:         prober.MPSAvailable(),
		Explicit:    len(explicit) > 0,
		Targets:     resolver.Resolve(explicit),
	}

	if devicesJSON {
		out, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal report: %w", err)
		}
		fmt.Println(string(out))
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
	fmt.Fprintln(w, "PROBE\tAVAILABLE")
	fmt.Fprintf(w, "cuda\t%d\n", report.CUDADevices)
	fmt.Fprintf(w, "npu\t%d\n", report.NPUDevices)
	fmt.Fprintf(w, "mps\t%s\n", yesNo(report.MPS))
	if err := w.Flush(); err != nil {
		return fmt.Errorf("failed to flush output: %w", err)
	}

	fmt.Println()
	if report.Explicit {
		fmt.Printf("Targets (explicit): %s\n", strings.Join(report.Targets, ", "))
	} else {
		fmt.Printf("Targets (probed):   %s\n", strings.Join(report.Targets, ", "))
	}

	return nil
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
