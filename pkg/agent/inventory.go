package agent

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/klog/v2"

	"github.com/zrs-products/hetero-devquery/pkg/devapi"
)

// Inventory 节点设备清单快照
type Inventory struct {
	Vendor        string         `json:"vendor"`
	DriverVersion string         `json:"driverVersion,omitempty"`
	CollectedAt   metav1.Time    `json:"collectedAt"`
	Devices       []DeviceRecord `json:"devices"`
}

// DeviceRecord 单个设备记录
type DeviceRecord struct {
	Index       int    `json:"index"`
	UUID        string `json:"uuid"`
	Name        string `json:"name,omitempty"`
	MemoryTotal uint64 `json:"memoryTotal"` // bytes
	MemoryUsed  uint64 `json:"memoryUsed"`  // bytes
	MemoryFree  uint64 `json:"memoryFree"`  // bytes
}

// Snapshot 通过设备 API 采集一次清单，各设备并行查询
func Snapshot(ctx context.Context, api devapi.Interface) (*Inventory, error) {
	count, err := api.DeviceGetCount()
	if err != nil {
		return nil, fmt.Errorf("get device count failed: %w", err)
	}

	inv := &Inventory{
		Vendor:      api.Vendor(),
		CollectedAt: metav1.NewTime(time.Now()),
		Devices:     make([]DeviceRecord, count),
	}

	if v, err := api.SystemGetDriverVersion(); err == nil {
		inv.DriverVersion = v
	} else {
		klog.V(2).Infof("Driver version unavailable: %v", err)
	}

	errs := make([]error, count)
	var wg sync.WaitGroup
	for i := 0; i < count; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			if ctx.Err() != nil {
				errs[idx] = ctx.Err()
				return
			}
			inv.Devices[idx], errs[idx] = queryDevice(api, idx)
		}(i)
	}
	wg.Wait()

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return inv, nil
}

// queryDevice 查询单个设备
func queryDevice(api devapi.Interface, index int) (DeviceRecord, error) {
	h, err := api.DeviceGetHandleByIndex(index)
	if err != nil {
		return DeviceRecord{}, fmt.Errorf("device %d: %w", index, err)
	}

	uuid, err := api.DeviceGetUUID(h)
	if err != nil {
		return DeviceRecord{}, fmt.Errorf("device %d: %w", index, err)
	}

	mem, err := api.DeviceGetMemoryInfo(h)
	if err != nil {
		return DeviceRecord{}, fmt.Errorf("device %d: %w", index, err)
	}

	record := DeviceRecord{
		Index:       index,
		UUID:        uuid,
		MemoryTotal: mem.Total,
		MemoryUsed:  mem.Used,
		MemoryFree:  mem.Free,
	}

	// 型号名称是可选信息
	name, err := api.DeviceGetName(h)
	switch {
	case err == nil:
		record.Name = name
	case errors.Is(err, devapi.ErrNotSupported):
	default:
		return DeviceRecord{}, fmt.Errorf("device %d: %w", index, err)
	}

	return record, nil
}

// TotalMemory 计算总显存
func (inv *Inventory) TotalMemory() uint64 {
	var total uint64
	for _, d := range inv.Devices {
		total += d.MemoryTotal
	}
	return total
}

// FreeMemory 计算总空闲显存
func (inv *Inventory) FreeMemory() uint64 {
	var total uint64
	for _, d := range inv.Devices {
		total += d.MemoryFree
	}
	return total
}

// Lookup 按 UUID 查找设备记录
func (inv *Inventory) Lookup(uuid string) (DeviceRecord, bool) {
	for _, d := range inv.Devices {
		if d.UUID == uuid {
			return d, true
		}
	}
	return DeviceRecord{}, false
}
