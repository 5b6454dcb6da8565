package sysinfo

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/nrep-ug/mysql-monitor/pkg/logging"

	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"
)

func fakeCollector() *Collector {
	c := NewCollector("/var/lib/mysql", logging.NewDiscardLogger())
	c.getHost = func(context.Context) (*host.InfoStat, error) {
		return &host.InfoStat{Hostname: "db01", OS: "linux", Platform: "ubuntu", PlatformVersion: "22.04", Uptime: 90061}, nil
	}
	c.getCPU = func(context.Context, time.Duration, bool) ([]float64, error) { return []float64{12.34}, nil }
	c.getLoadAvg = func(context.Context) (*load.AvgStat, error) {
		return &load.AvgStat{Load1: 0.5, Load5: 0.25, Load15: 0.75}, nil
	}
	c.getMem = func(context.Context) (*mem.VirtualMemoryStat, error) {
		return &mem.VirtualMemoryStat{Total: 8 << 30, Used: 2 << 30, UsedPercent: 25}, nil
	}
	c.getDisk = func(_ context.Context, path string) (*disk.UsageStat, error) {
		return &disk.UsageStat{Path: path, Total: 100 << 30, Used: 40 << 30, UsedPercent: 40}, nil
	}
	c.getCores = func() int { return 4 }
	return c
}

func TestReport(t *testing.T) {
	out, err := fakeCollector().Report(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, want := range []string{
		"Hostname: db01",
		"OS: linux ubuntu 22.04",
		"Uptime: 25h1m1s",
		"CPU: 12.3% of 4 cores",
		"Load average: 0.50 0.25 0.75",
		"Memory: 2.0 GiB used of 8.0 GiB (25.0%)",
		"Disk /var/lib/mysql: 40.0 GiB used of 100.0 GiB (40.0%)",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in report:\n%s", want, out)
		}
	}
}

func TestReportPartialFailure(t *testing.T) {
	c := fakeCollector()
	c.getLoadAvg = func(context.Context) (*load.AvgStat, error) { return nil, errors.New("not supported") }

	out, err := c.Report(context.Background())
	if err != nil {
		t.Fatalf("partial failure should not error: %v", err)
	}
	if !strings.Contains(out, "Load average: unavailable") {
		t.Fatalf("expected unavailable load average, got:\n%s", out)
	}
}

func TestReportTotalFailure(t *testing.T) {
	c := fakeCollector()
	boom := errors.New("boom")
	c.getHost = func(context.Context) (*host.InfoStat, error) { return nil, boom }
	c.getCPU = func(context.Context, time.Duration, bool) ([]float64, error) { return nil, nil }
	c.getLoadAvg = func(context.Context) (*load.AvgStat, error) { return nil, boom }
	c.getMem = func(context.Context) (*mem.VirtualMemoryStat, error) { return nil, boom }
	c.getDisk = func(context.Context, string) (*disk.UsageStat, error) { return nil, boom }

	if _, err := c.Report(context.Background()); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestBytesIEC(t *testing.T) {
	cases := map[uint64]string{
		512:     "512 B",
		1536:    "1.5 KiB",
		5 << 20: "5.0 MiB",
	}
	for in, want := range cases {
		if got := bytesIEC(in); got != want {
			t.Errorf("bytesIEC(%d) = %q, want %q", in, got, want)
		}
	}
}

func TestReportIsCached(t *testing.T) {
	c := fakeCollector()
	calls := 0
	c.getHost = func(context.Context) (*host.InfoStat, error) {
		calls++
		return &host.InfoStat{Hostname: "db01"}, nil
	}

	for i := 0; i < 3; i++ {
		if _, err := c.Report(context.Background()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if calls != 1 {
		t.Fatalf("expected one collection within the cache TTL, got %d", calls)
	}
}
