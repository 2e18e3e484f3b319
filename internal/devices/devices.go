// Package devices resolves the compute targets encoding runs on.
//
// Explicit targets from config pass through untouched; when none are
// configured the host is probed for accelerators in a fixed priority
// order (cuda, npu, mps) and every unit of the first available kind is
// enumerated. A host with no accelerator encodes on cpu.
//
// Device identifiers are never validated here. A bad identifier
// surfaces later as an encode failure on the worker that drew it.
package devices

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// Resolver picks target devices, probing the host when none are given.
type Resolver struct {
	prober Prober
	logger *zap.Logger
}

// NewResolver creates a resolver. A nil prober uses the host prober,
// a nil logger discards output.
func NewResolver(prober Prober, logger *zap.Logger) *Resolver {
	if prober == nil {
		prober = NewHostProber()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{prober: prober, logger: logger}
}

// Resolve returns the list of target devices.
//
// A non-empty explicit list is returned unchanged: no deduplication, no
// validation. Otherwise accelerators are probed in priority order and
// every unit of the first available kind is returned as "{kind}:{index}".
// The result is never empty; a bare host resolves to ["cpu"].
func (r *Resolver) Resolve(explicit []string) []string {
	if len(explicit) > 0 {
		r.logger.Debug("using explicit devices", zap.Strings("devices", explicit))
		return explicit
	}

	if n := r.prober.CUDADevices(); n > 0 {
		targets := enumerate("cuda", n)
		r.logger.Debug("probed cuda devices", zap.Strings("devices", targets))
		return targets
	}

	if n := r.prober.NPUDevices(); n > 0 {
		targets := enumerate("npu", n)
		r.logger.Debug("probed npu devices", zap.Strings("devices", targets))
		return targets
	}

	if r.prober.MPSAvailable() {
		r.logger.Debug("probed mps device")
		return []string{"mps:0"}
	}

	r.logger.Debug("no accelerator available, falling back to cpu")
	return []string{"cpu"}
}

// ParseList splits comma-separated device identifiers from config text.
// Elements are whitespace-trimmed but otherwise kept as written, empty
// elements included. Blank input returns nil, which Resolve treats as
// "probe the host".
func ParseList(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, len(parts))
	for i, p := range parts {
		out[i] = strings.TrimSpace(p)
	}
	return out
}

func enumerate(kind string, n int) []string {
	targets := make([]string, n)
	for i := range targets {
		targets[i] = fmt.Sprintf("%s:%d", kind, i)
	}
	return targets
}
