package agent

import (
	"context"
	"fmt"
	"sync"
	"time"

	"k8s.io/klog/v2"

	"github.com/zrs-products/hetero-devquery/pkg/devapi"
)

// Config Agent 配置
type Config struct {
	// NodeName Kubernetes 节点名称
	NodeName string

	// Namespace 清单 ConfigMap 所在命名空间
	Namespace string

	// CollectInterval 采集间隔
	CollectInterval time.Duration

	// ReportInterval 上报间隔
	ReportInterval time.Duration
}

// DefaultConfig 默认配置
func DefaultConfig(nodeName string) *Config {
	return &Config{
		NodeName:        nodeName,
		Namespace:       "kube-system",
		CollectInterval: 10 * time.Second,
		ReportInterval:  30 * time.Second,
	}
}

// Agent Node-Agent 核心结构
// 设备 API 在启动时选定后通过构造函数注入
type Agent struct {
	config   *Config
	api      devapi.Interface
	reporter *Reporter

	// 最新采集的数据
	latest *Inventory
	mu     sync.RWMutex

	// 控制
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// New 创建 Agent 并初始化设备 API
func New(config *Config, api devapi.Interface, reporter *Reporter) (*Agent, error) {
	if config.NodeName == "" {
		return nil, fmt.Errorf("node name is required")
	}
	if api == nil {
		return nil, fmt.Errorf("device API is required")
	}

	if err := api.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize %s device API: %w", api.Vendor(), err)
	}
	klog.Infof("Using %s device API", api.Vendor())

	return &Agent{
		config:   config,
		api:      api,
		reporter: reporter,
		stopCh:   make(chan struct{}),
	}, nil
}

// Start 启动 Agent
func (a *Agent) Start(ctx context.Context) error {
	klog.Infof("Starting Node-Agent for node: %s", a.config.NodeName)

	// 执行初始采集
	if err := a.collect(ctx); err != nil {
		klog.Warningf("Initial collection failed: %v", err)
	}

	// 执行初始上报
	if a.reporter != nil {
		if err := a.report(ctx); err != nil {
			klog.Warningf("Initial report failed: %v", err)
		}
	}

	a.wg.Add(1)
	go a.loop(ctx, a.config.CollectInterval, a.collect, "Collection")

	if a.reporter != nil {
		a.wg.Add(1)
		go a.loop(ctx, a.config.ReportInterval, a.report, "Report")
	}

	klog.Info("Node-Agent started successfully")
	return nil
}

// Stop 停止 Agent 并关闭设备 API
func (a *Agent) Stop() error {
	klog.Info("Stopping Node-Agent")
	a.stopOnce.Do(func() { close(a.stopCh) })
	a.wg.Wait()

	if err := a.api.Shutdown(); err != nil {
		klog.Warningf("Failed to shut down device API: %v", err)
	}

	klog.Info("Node-Agent stopped")
	return nil
}

// loop 按固定间隔执行 fn
func (a *Agent) loop(ctx context.Context, interval time.Duration, fn func(context.Context) error, what string) {
	defer a.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-a.stopCh:
			return
		case <-ticker.C:
			if err := fn(ctx); err != nil {
				klog.Warningf("%s failed: %v", what, err)
			}
		}
	}
}

// Collect 执行一次采集并返回结果
func (a *Agent) Collect(ctx context.Context) (*Inventory, error) {
	if err := a.collect(ctx); err != nil {
		return nil, err
	}
	return a.GetLatestInventory(), nil
}

// collect 执行一次采集
func (a *Agent) collect(ctx context.Context) error {
	inv, err := Snapshot(ctx, a.api)
	if err != nil {
		return fmt.Errorf("inventory snapshot failed: %w", err)
	}

	a.mu.Lock()
	a.latest = inv
	a.mu.Unlock()

	klog.V(2).Infof("Collected inventory: %d devices, memory total: %d GB",
		len(inv.Devices), inv.TotalMemory()/(1024*1024*1024))

	return nil
}

// report 执行一次上报
func (a *Agent) report(ctx context.Context) error {
	inv := a.GetLatestInventory()
	if inv == nil {
		return fmt.Errorf("no data to report")
	}

	return a.reporter.Report(ctx, a.config.Namespace, a.config.NodeName, inv)
}

// GetLatestInventory 获取最新的清单
func (a *Agent) GetLatestInventory() *Inventory {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.latest
}
