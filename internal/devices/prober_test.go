package devices

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestProber returns a HostProber pointed at fixture paths instead of
// the real host, with the environment empty by default.
func newTestProber(t *testing.T) (*HostProber, string) {
	t.Helper()

	root := t.TempDir()
	p := &HostProber{
		nvidiaGPUDir: filepath.Join(root, "proc", "driver", "nvidia", "gpus"),
		davinciGlob:  filepath.Join(root, "dev", "davinci[0-9]*"),
		goos:         "linux",
		getenv:       func(string) string { return "" },
	}
	return p, root
}

func TestHostProber_CUDAFromProcEntries(t *testing.T) {
	p, root := newTestProber(t)

	gpuDir := filepath.Join(root, "proc", "driver", "nvidia", "gpus")
	require.NoError(t, os.MkdirAll(filepath.Join(gpuDir, "0000:01:00.0"), 0755))
	require.NoError(t, os.MkdirAll(filepath.Join(gpuDir, "0000:02:00.0"), 0755))

	assert.Equal(t, 2, p.CUDADevices())
}

func TestHostProber_CUDAMissingDriver(t *testing.T) {
	p, _ := newTestProber(t)
	assert.Equal(t, 0, p.CUDADevices())
}

func TestHostProber_CUDAVisibleDevicesOverride(t *testing.T) {
	tests := []struct {
		name string
		env  string
		want int
	}{
		{name: "two visible", env: "0,1", want: 2},
		{name: "one visible", env: "2", want: 1},
		{name: "disabled via -1", env: "-1", want: 0},
		{name: "uuid style", env: "GPU-aaaa,GPU-bbbb,GPU-cccc", want: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, root := newTestProber(t)

			// Driver entries exist but the env override wins.
			gpuDir := filepath.Join(root, "proc", "driver", "nvidia", "gpus")
			require.NoError(t, os.MkdirAll(filepath.Join(gpuDir, "0000:01:00.0"), 0755))

			p.getenv = func(key string) string {
				if key == "CUDA_VISIBLE_DEVICES" {
					return tt.env
				}
				return ""
			}
			assert.Equal(t, tt.want, p.CUDADevices())
		})
	}
}

func TestHostProber_NPUDevices(t *testing.T) {
	p, root := newTestProber(t)

	devDir := filepath.Join(root, "dev")
	require.NoError(t, os.MkdirAll(devDir, 0755))
	for _, name := range []string{"davinci0", "davinci1", "davinci_manager"} {
		require.NoError(t, os.WriteFile(filepath.Join(devDir, name), nil, 0644))
	}

	// davinci_manager does not match the numbered-device glob.
	assert.Equal(t, 2, p.NPUDevices())
}

func TestHostProber_NPUNone(t *testing.T) {
	p, _ := newTestProber(t)
	assert.Equal(t, 0, p.NPUDevices())
}

func TestHostProber_MPS(t *testing.T) {
	p, _ := newTestProber(t)

	p.goos = "darwin"
	assert.True(t, p.MPSAvailable())

	p.goos = "linux"
	assert.False(t, p.MPSAvailable())
}

func TestNewHostProber_RealPaths(t *testing.T) {
	p := NewHostProber()
	assert.Equal(t, "/proc/driver/nvidia/gpus", p.nvidiaGPUDir)
	assert.Equal(t, "/dev/davinci[0-9]*", p.davinciGlob)
}
