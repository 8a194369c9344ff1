package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"k8s.io/apimachinery/pkg/runtime"
	utilruntime "k8s.io/apimachinery/pkg/util/runtime"
	clientgoscheme "k8s.io/client-go/kubernetes/scheme"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
	"k8s.io/klog/v2"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/yaml"

	"github.com/zrs-products/hetero-devquery/pkg/agent"
	"github.com/zrs-products/hetero-devquery/pkg/config"
	"github.com/zrs-products/hetero-devquery/pkg/devapi"
	"github.com/zrs-products/hetero-devquery/pkg/install"
)

var (
	scheme = runtime.NewScheme()
)

func init() {
	utilruntime.Must(clientgoscheme.AddToScheme(scheme))
}

var (
	// NodeName is the name of the Kubernetes node
	NodeName string

	// Namespace overrides the namespace of the inventory ConfigMap
	Namespace string

	// ConfigPath is the optional YAML configuration file
	ConfigPath string

	// Kubeconfig path for out-of-cluster usage
	Kubeconfig string

	// Vendor forces the device API backend
	Vendor string

	// UseMock selects the mock ROCm library
	UseMock bool

	// Once prints one inventory snapshot and exits
	Once bool
)

func init() {
	flag.StringVar(&NodeName, "node-name", os.Getenv("NODE_NAME"), "Name of the Kubernetes node")
	flag.StringVar(&Namespace, "namespace", "", "Namespace of the inventory ConfigMap")
	flag.StringVar(&ConfigPath, "config", "", "Path to the YAML configuration file")
	flag.StringVar(&Kubeconfig, "kubeconfig", os.Getenv("KUBECONFIG"), "Path to kubeconfig file")
	flag.StringVar(&Vendor, "vendor", "", "Force the device API backend (amd, nvidia, mock)")
	flag.BoolVar(&UseMock, "mock", false, "Use the mock ROCm device library")
	flag.BoolVar(&Once, "once", false, "Print one inventory snapshot as YAML and exit")
}

func main() {
	klog.InitFlags(nil)
	flag.Parse()

	cfg, err := loadConfig()
	if err != nil {
		klog.Errorf("Failed to load configuration: %v", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 设备 API 必须在任何使用方构造之前选定
	if err := install.Configure(cfg.InstallConfig()); err != nil {
		klog.Errorf("Failed to configure device API: %v", err)
		os.Exit(1)
	}
	api, err := install.API(ctx)
	if err != nil {
		klog.Errorf("Failed to install device API: %v", err)
		os.Exit(1)
	}
	klog.Infof("Device API installed (vendor=%s, shim=%v)", api.Vendor(), install.Default().ShimInstalled())

	if Once {
		if err := printOnce(ctx, api); err != nil {
			klog.Errorf("Inventory failed: %v", err)
			os.Exit(1)
		}
		return
	}

	if NodeName == "" {
		klog.Error("NODE_NAME must be set")
		os.Exit(1)
	}

	k8sClient, err := createK8sClient()
	if err != nil {
		klog.Errorf("Failed to create Kubernetes client: %v", err)
		os.Exit(1)
	}

	agentConfig := &agent.Config{
		NodeName:        NodeName,
		Namespace:       cfg.Agent.Namespace,
		CollectInterval: cfg.Agent.CollectInterval.Duration,
		ReportInterval:  cfg.Agent.ReportInterval.Duration,
	}

	a, err := agent.New(agentConfig, api, agent.NewReporter(k8sClient))
	if err != nil {
		klog.Errorf("Failed to create Node-Agent: %v", err)
		os.Exit(1)
	}

	if err := a.Start(ctx); err != nil {
		klog.Errorf("Failed to start Node-Agent: %v", err)
		os.Exit(1)
	}

	// Set up signal handling
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// Wait for shutdown signal
	<-sigCh
	klog.Info("Shutting down Node-Agent")

	cancel()
	if err := a.Stop(); err != nil {
		klog.Errorf("Failed to stop Node-Agent: %v", err)
	}
}

// loadConfig 读取配置文件并应用命令行覆盖
func loadConfig() (*config.Config, error) {
	cfg := config.Default()
	if ConfigPath != "" {
		loaded, err := config.LoadFromFile(ConfigPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if Vendor != "" {
		cfg.Vendor = Vendor
	}
	if UseMock {
		cfg.Vendor = install.VendorMock
	}
	if Namespace != "" {
		cfg.Agent.Namespace = Namespace
	}

	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// printOnce 输出一次清单快照
func printOnce(ctx context.Context, api devapi.Interface) error {
	if err := api.Init(); err != nil {
		return err
	}
	defer func() {
		if err := api.Shutdown(); err != nil {
			klog.Warningf("Failed to shut down device API: %v", err)
		}
	}()

	inv, err := agent.Snapshot(ctx, api)
	if err != nil {
		return err
	}

	data, err := yaml.Marshal(inv)
	if err != nil {
		return err
	}
	fmt.Print(string(data))
	return nil
}

// createK8sClient 创建 Kubernetes 客户端
func createK8sClient() (client.Client, error) {
	var config *rest.Config
	var err error

	if Kubeconfig != "" {
		config, err = clientcmd.BuildConfigFromFlags("", Kubeconfig)
		if err != nil {
			return nil, err
		}
		klog.Info("Using kubeconfig for cluster access")
	} else {
		config, err = rest.InClusterConfig()
		if err != nil {
			return nil, err
		}
		klog.Info("Using in-cluster config")
	}

	return client.New(config, client.Options{Scheme: scheme})
}
