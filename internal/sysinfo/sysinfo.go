// Package sysinfo renders host resource usage as plain text for operators.
package sysinfo

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/nrep-ug/mysql-monitor/pkg/cache"
	"github.com/nrep-ug/mysql-monitor/pkg/logging"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"
)

// ErrUnavailable is returned when no host statistic could be collected.
var ErrUnavailable = errors.New("host statistics unavailable")

const (
	collectTimeout = 5 * time.Second
	cpuSample      = 200 * time.Millisecond

	// DefaultCacheTTL is how long a rendered report is reused.
	DefaultCacheTTL = 5 * time.Second
)

// Collector gathers host statistics through gopsutil.
type Collector struct {
	diskPath string
	logger   logging.Logger
	reports  *cache.Cache[string]

	// Collection functions for mocking
	getHost    func(context.Context) (*host.InfoStat, error)
	getCPU     func(context.Context, time.Duration, bool) ([]float64, error)
	getLoadAvg func(context.Context) (*load.AvgStat, error)
	getMem     func(context.Context) (*mem.VirtualMemoryStat, error)
	getDisk    func(context.Context, string) (*disk.UsageStat, error)
	getCores   func() int
}

// NewCollector reports disk usage for diskPath ("/" when empty).
func NewCollector(diskPath string, logger logging.Logger) *Collector {
	if diskPath == "" {
		diskPath = "/"
	}
	return &Collector{
		diskPath:   diskPath,
		logger:     logger,
		reports:    cache.New[string](cache.Options{TTL: DefaultCacheTTL, MaxEntries: 1}),
		getHost:    host.InfoWithContext,
		getCPU:     cpu.PercentWithContext,
		getLoadAvg: load.AvgWithContext,
		getMem:     mem.VirtualMemoryWithContext,
		getDisk:    disk.UsageWithContext,
		getCores:   runtime.NumCPU,
	}
}

// Report returns one line per statistic. Statistics that fail are reported
// as unavailable; only a total failure is an error. Reports are reused for
// DefaultCacheTTL and concurrent callers share one collection.
func (c *Collector) Report(ctx context.Context) (string, error) {
	return c.reports.Get(ctx, c.diskPath, c.collect)
}

func (c *Collector) collect(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, collectTimeout)
	defer cancel()

	var (
		b      strings.Builder
		failed int
	)
	line := func(label string, value string, err error) {
		if err != nil {
			failed++
			c.logger.WithError(err).WithField("stat", label).Warn("Failed to collect host statistic")
			value = "unavailable"
		}
		fmt.Fprintf(&b, "%s: %s\n", label, value)
	}

	info, err := c.getHost(ctx)
	if err == nil {
		line("Hostname", info.Hostname, nil)
		line("OS", strings.TrimSpace(fmt.Sprintf("%s %s %s", info.OS, info.Platform, info.PlatformVersion)), nil)
		line("Uptime", (time.Duration(info.Uptime) * time.Second).String(), nil)
	} else {
		line("Host", "", err)
	}

	pct, err := c.getCPU(ctx, cpuSample, false)
	if err == nil && len(pct) == 0 {
		err = errors.New("no cpu samples")
	}
	if err == nil {
		line("CPU", fmt.Sprintf("%.1f%% of %d cores", pct[0], c.getCores()), nil)
	} else {
		line("CPU", "", err)
	}

	avg, err := c.getLoadAvg(ctx)
	if err == nil {
		line("Load average", fmt.Sprintf("%.2f %.2f %.2f", avg.Load1, avg.Load5, avg.Load15), nil)
	} else {
		line("Load average", "", err)
	}

	vm, err := c.getMem(ctx)
	if err == nil {
		line("Memory", fmt.Sprintf("%s used of %s (%.1f%%)", bytesIEC(vm.Used), bytesIEC(vm.Total), vm.UsedPercent), nil)
	} else {
		line("Memory", "", err)
	}

	du, err := c.getDisk(ctx, c.diskPath)
	if err == nil {
		line("Disk "+c.diskPath, fmt.Sprintf("%s used of %s (%.1f%%)", bytesIEC(du.Used), bytesIEC(du.Total), du.UsedPercent), nil)
	} else {
		line("Disk "+c.diskPath, "", err)
	}

	if failed == 5 {
		return "", ErrUnavailable
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

func bytesIEC(n uint64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := uint64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
