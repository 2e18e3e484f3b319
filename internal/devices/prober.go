package devices

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// Prober reports accelerator availability. The resolver queries it
// instead of touching the host directly so tests can inject a fake.
type Prober interface {
	// CUDADevices returns the number of visible NVIDIA GPUs.
	CUDADevices() int
	// NPUDevices returns the number of Ascend NPUs.
	NPUDevices() int
	// MPSAvailable reports whether Apple Metal is available.
	MPSAvailable() bool
}

// HostProber probes the local machine.
//
// NVIDIA GPUs are counted from /proc/driver/nvidia/gpus, with
// CUDA_VISIBLE_DEVICES taking precedence when set (the runtime honors
// it, so the resolver must too). Ascend NPUs appear as /dev/davinci<N>
// character devices. Metal is assumed present on darwin.
type HostProber struct {
	nvidiaGPUDir string
	davinciGlob  string
	goos         string
	getenv       func(string) string
}

// NewHostProber returns a prober wired to the real host.
func NewHostProber() *HostProber {
	return &HostProber{
		nvidiaGPUDir: "/proc/driver/nvidia/gpus",
		davinciGlob:  "/dev/davinci[0-9]*",
		goos:         runtime.GOOS,
		getenv:       os.Getenv,
	}
}

// CUDADevices counts visible NVIDIA GPUs.
func (p *HostProber) CUDADevices() int {
	if v, ok := p.lookupVisibleDevices(); ok {
		return v
	}

	entries, err := os.ReadDir(p.nvidiaGPUDir)
	if err != nil {
		return 0
	}
	return len(entries)
}

// lookupVisibleDevices interprets CUDA_VISIBLE_DEVICES when set.
// An empty value or "-1" hides all devices.
func (p *HostProber) lookupVisibleDevices() (int, bool) {
	v := p.getenv("CUDA_VISIBLE_DEVICES")
	if v == "" {
		// Unset and set-to-empty are indistinguishable here; both mean
		// "fall back to the driver" only when genuinely unset, so treat
		// empty as unset and count the proc entries.
		return 0, false
	}

	count := 0
	for _, part := range strings.Split(v, ",") {
		part = strings.TrimSpace(part)
		if part == "" || part == "-1" {
			continue
		}
		count++
	}
	return count, true
}

// NPUDevices counts Ascend NPU character devices.
func (p *HostProber) NPUDevices() int {
	matches, err := filepath.Glob(p.davinciGlob)
	if err != nil {
		return 0
	}
	return len(matches)
}

// MPSAvailable reports Metal availability.
func (p *HostProber) MPSAvailable() bool {
	return p.goos == "darwin"
}
