package rocm

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"k8s.io/klog/v2"
)

const (
	kfdDevice       = "dev/kfd"
	kfdTopologyPath = "sys/class/kfd/kfd/topology/nodes"
	drmPath         = "sys/class/drm"
)

// SysfsLibrary 通过 KFD 拓扑和 amdgpu sysfs 接口实现 Library
type SysfsLibrary struct {
	root string

	mu          sync.RWMutex
	initialized bool
	nodes       []gpuNode
}

// gpuNode KFD 拓扑中的一个 GPU 节点
type gpuNode struct {
	node        int
	uniqueID    uint64
	renderMinor int
	arch        string
}

// NewSysfsLibrary 创建基于 sysfs 的 ROCm 库，root 为文件系统根（通常为 "/"）
func NewSysfsLibrary(root string) *SysfsLibrary {
	if root == "" {
		root = "/"
	}
	return &SysfsLibrary{root: root}
}

// Initialize 检查 KFD 设备并枚举 GPU 节点
func (l *SysfsLibrary) Initialize() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.initialized {
		return nil
	}

	// 检查 KFD 设备是否存在
	if _, err := os.Stat(l.path(kfdDevice)); err != nil {
		return fmt.Errorf("KFD device not found: %w", err)
	}

	topologyPath := l.path(kfdTopologyPath)
	entries, err := os.ReadDir(topologyPath)
	if err != nil {
		return fmt.Errorf("failed to read topology nodes: %w", err)
	}

	nodes := make([]gpuNode, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		id, err := strconv.Atoi(entry.Name())
		if err != nil {
			continue
		}

		props, err := readProperties(filepath.Join(topologyPath, entry.Name(), "properties"))
		if err != nil {
			klog.V(2).Infof("Skipping KFD node %d: %v", id, err)
			continue
		}

		// CPU 节点的 simd_count 为 0
		if props["simd_count"] == 0 {
			continue
		}

		node := gpuNode{
			node:        id,
			uniqueID:    props["unique_id"],
			renderMinor: int(props["drm_render_minor"]),
		}
		if name, err := os.ReadFile(filepath.Join(topologyPath, entry.Name(), "name")); err == nil {
			node.arch = strings.TrimSpace(string(name))
		}
		nodes = append(nodes, node)
	}

	sort.Slice(nodes, func(i, j int) bool { return nodes[i].node < nodes[j].node })

	l.nodes = nodes
	l.initialized = true
	klog.V(2).Infof("ROCm sysfs library initialized with %d GPU(s)", len(nodes))
	return nil
}

// Shutdown 清除已枚举的设备
func (l *SysfsLibrary) Shutdown() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.initialized = false
	l.nodes = nil
	return nil
}

// DeviceCount 返回 GPU 数量
func (l *SysfsLibrary) DeviceCount() (int, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if !l.initialized {
		return 0, ErrNotInitialized
	}
	return len(l.nodes), nil
}

// MemoryUsed 读取 mem_info_vram_used
func (l *SysfsLibrary) MemoryUsed(dev int) (uint64, error) {
	return l.readDeviceUint64(dev, "mem_info_vram_used")
}

// MemoryTotal 读取 mem_info_vram_total
func (l *SysfsLibrary) MemoryTotal(dev int) (uint64, error) {
	return l.readDeviceUint64(dev, "mem_info_vram_total")
}

// UniqueID 返回 KFD unique_id 的 16 位十六进制文本
func (l *SysfsLibrary) UniqueID(dev int) ([]byte, error) {
	node, err := l.node(dev)
	if err != nil {
		return nil, err
	}
	if node.uniqueID == 0 {
		return nil, fmt.Errorf("device %d: unique_id: %w", dev, ErrNotSupported)
	}
	return []byte(fmt.Sprintf("%016x", node.uniqueID)), nil
}

// Name 返回 product_name，缺失时回退到 KFD 节点名（gfx 架构代号）
func (l *SysfsLibrary) Name(dev int) (string, error) {
	node, err := l.node(dev)
	if err != nil {
		return "", err
	}

	if name, err := l.readDeviceFile(node, "product_name"); err == nil && name != "" {
		return name, nil
	}
	if node.arch != "" {
		return node.arch, nil
	}
	return "", fmt.Errorf("device %d: product_name: %w", dev, ErrNotSupported)
}

// DriverVersion 读取 amdgpu 模块版本
func (l *SysfsLibrary) DriverVersion() (string, error) {
	if data, err := os.ReadFile(l.path("sys/module/amdgpu/version")); err == nil {
		return strings.TrimSpace(string(data)), nil
	}

	// 内核自带驱动没有 version 文件
	if data, err := os.ReadFile(l.path("proc/sys/kernel/osrelease")); err == nil {
		return strings.TrimSpace(string(data)), nil
	}

	return "", fmt.Errorf("driver version: %w", ErrNotSupported)
}

func (l *SysfsLibrary) node(dev int) (gpuNode, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if !l.initialized {
		return gpuNode{}, ErrNotInitialized
	}
	if dev < 0 || dev >= len(l.nodes) {
		return gpuNode{}, fmt.Errorf("device %d: %w", dev, ErrNoDevice)
	}
	return l.nodes[dev], nil
}

func (l *SysfsLibrary) readDeviceUint64(dev int, name string) (uint64, error) {
	node, err := l.node(dev)
	if err != nil {
		return 0, err
	}

	str, err := l.readDeviceFile(node, name)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, fmt.Errorf("device %d: %s: %w", dev, name, ErrNotSupported)
		}
		return 0, fmt.Errorf("device %d: %w", dev, err)
	}

	v, err := strconv.ParseUint(str, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("device %d: parse %s: %w", dev, name, err)
	}
	return v, nil
}

// readDeviceFile 读取 renderD<minor>/device 下的属性文件
func (l *SysfsLibrary) readDeviceFile(node gpuNode, name string) (string, error) {
	p := filepath.Join(l.path(drmPath), fmt.Sprintf("renderD%d", node.renderMinor), "device", name)
	data, err := os.ReadFile(p)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

func (l *SysfsLibrary) path(rel string) string {
	return filepath.Join(l.root, rel)
}

// readProperties 解析 KFD properties 文件（每行 "key value"）
func readProperties(path string) (map[string]uint64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	props := make(map[string]uint64)
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) != 2 {
			continue
		}
		v, err := strconv.ParseUint(fields[1], 10, 64)
		if err != nil {
			continue
		}
		props[fields[0]] = v
	}
	return props, scanner.Err()
}

// Ensure SysfsLibrary implements Library interface
var _ Library = (*SysfsLibrary)(nil)
