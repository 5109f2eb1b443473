package analytics

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/mem"
	"github.com/shirou/gopsutil/v4/net"

	"houstonintel/types"
)

// Collector periodically samples host metrics and records them as
// performance_metrics rows and the engine's current system sample.
type Collector struct {
	engine    *Engine
	db        *Database
	interval  time.Duration
	isRunning bool
	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}
	mutex     sync.Mutex
}

// NewCollector creates a new system metrics collector. db may be nil.
func NewCollector(engine *Engine, db *Database, interval time.Duration) *Collector {
	if interval == 0 {
		interval = 30 * time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Collector{
		engine:   engine,
		db:       db,
		interval: interval,
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
}

// Start starts the sampling loop.
func (c *Collector) Start() error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if c.isRunning {
		return fmt.Errorf("collector is already running")
	}

	go c.run()

	c.isRunning = true
	log.Printf("🖥️  System metrics collector started (interval=%s)", c.interval)
	return nil
}

// Stop stops the sampling loop.
func (c *Collector) Stop() error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if !c.isRunning {
		return nil
	}

	c.cancel()
	<-c.done

	c.isRunning = false
	return nil
}

func (c *Collector) run() {
	defer close(c.done)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	// Take one sample immediately so the dashboard isn't empty on startup.
	c.sample()

	for {
		select {
		case <-ticker.C:
			c.sample()
		case <-c.ctx.Done():
			return
		}
	}
}

// sample reads host metrics and records them.
func (c *Collector) sample() {
	ctx, cancel := context.WithTimeout(c.ctx, 10*time.Second)
	defer cancel()

	s, err := ReadSystemSample(ctx)
	if err != nil {
		log.Printf("⚠️  System sample failed: %v", err)
		return
	}

	if c.engine != nil {
		c.engine.RecordSystemSample(s)
	}

	if c.db != nil {
		now := s.Timestamp
		metrics := []types.MetricSample{
			{ID: uuid.New().String(), Name: "cpu_percent", Value: s.CPUPercent, Unit: "%", Timestamp: now},
			{ID: uuid.New().String(), Name: "memory_percent", Value: s.MemoryPercent, Unit: "%", Timestamp: now},
			{ID: uuid.New().String(), Name: "memory_used_mb", Value: s.MemoryUsedMB, Unit: "MB", Timestamp: now},
			{ID: uuid.New().String(), Name: "disk_percent", Value: s.DiskPercent, Unit: "%", Timestamp: now},
			{ID: uuid.New().String(), Name: "net_bytes_sent", Value: float64(s.NetBytesSent), Unit: "bytes", Timestamp: now},
			{ID: uuid.New().String(), Name: "net_bytes_recv", Value: float64(s.NetBytesRecv), Unit: "bytes", Timestamp: now},
		}
		for _, m := range metrics {
			if err := c.db.InsertMetric(m); err != nil {
				log.Printf("⚠️  Failed to persist metric %s: %v", m.Name, err)
			}
		}
	}
}

// ReadSystemSample reads one host metrics sample via gopsutil.
func ReadSystemSample(ctx context.Context) (*types.SystemSample, error) {
	sample := &types.SystemSample{Timestamp: time.Now()}

	cpuPercent, err := cpu.PercentWithContext(ctx, 0, false)
	if err != nil {
		return nil, fmt.Errorf("cpu sample failed: %w", err)
	}
	if len(cpuPercent) > 0 {
		sample.CPUPercent = cpuPercent[0]
	}

	memInfo, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("memory sample failed: %w", err)
	}
	sample.MemoryPercent = memInfo.UsedPercent
	sample.MemoryUsedMB = float64(memInfo.Used) / 1024 / 1024

	diskInfo, err := disk.UsageWithContext(ctx, "/")
	if err != nil {
		return nil, fmt.Errorf("disk sample failed: %w", err)
	}
	sample.DiskPercent = diskInfo.UsedPercent

	netInfo, err := net.IOCountersWithContext(ctx, false)
	if err != nil {
		return nil, fmt.Errorf("network sample failed: %w", err)
	}
	if len(netInfo) > 0 {
		sample.NetBytesSent = netInfo[0].BytesSent
		sample.NetBytesRecv = netInfo[0].BytesRecv
	}

	return sample, nil
}
