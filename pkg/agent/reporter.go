package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/klog/v2"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/yaml"
)

const (
	// InventoryKey ConfigMap 中清单数据的键
	InventoryKey = "inventory.yaml"

	// LabelNode 节点名称标签
	LabelNode = "hcs.io/node"
	// LabelVendor 厂商标签
	LabelVendor = "hcs.io/vendor"
	// LabelDeviceCount 设备数量标签
	LabelDeviceCount = "hcs.io/device-count"

	configMapPrefix = "devquery-"
)

// Reporter 以 ConfigMap 形式上报设备清单
type Reporter struct {
	client  client.Client
	backOff func() backoff.BackOff
}

// NewReporter 创建上报器
func NewReporter(c client.Client) *Reporter {
	return &Reporter{
		client:  c,
		backOff: defaultBackOff,
	}
}

func defaultBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 200 * time.Millisecond
	b.MaxInterval = 5 * time.Second
	b.MaxElapsedTime = 30 * time.Second
	return b
}

// ConfigMapName 返回节点对应的 ConfigMap 名称
func ConfigMapName(nodeName string) string {
	return configMapPrefix + nodeName
}

// Report 创建或更新节点的清单 ConfigMap，冲突和临时错误会重试
func (r *Reporter) Report(ctx context.Context, namespace, nodeName string, inv *Inventory) error {
	desired, err := r.buildConfigMap(namespace, nodeName, inv)
	if err != nil {
		return err
	}

	op := func() error {
		err := r.apply(ctx, desired)
		if err == nil {
			return nil
		}
		if apierrors.IsConflict(err) || apierrors.IsServerTimeout(err) ||
			apierrors.IsTooManyRequests(err) || apierrors.IsServiceUnavailable(err) {
			klog.V(2).Infof("Retrying inventory report for %s: %v", nodeName, err)
			return err
		}
		return backoff.Permanent(err)
	}

	return backoff.Retry(op, backoff.WithContext(r.backOff(), ctx))
}

func (r *Reporter) apply(ctx context.Context, desired *corev1.ConfigMap) error {
	existing := &corev1.ConfigMap{}
	err := r.client.Get(ctx, client.ObjectKeyFromObject(desired), existing)
	if err != nil {
		if apierrors.IsNotFound(err) {
			klog.Infof("Creating inventory ConfigMap: %s/%s", desired.Namespace, desired.Name)
			if err := r.client.Create(ctx, desired.DeepCopy()); err != nil {
				return fmt.Errorf("failed to create ConfigMap: %w", err)
			}
			return nil
		}
		return fmt.Errorf("failed to get ConfigMap: %w", err)
	}

	existing.Labels = desired.Labels
	existing.Data = desired.Data

	klog.V(2).Infof("Updating inventory ConfigMap: %s/%s", desired.Namespace, desired.Name)
	if err := r.client.Update(ctx, existing); err != nil {
		return fmt.Errorf("failed to update ConfigMap: %w", err)
	}
	return nil
}

// buildConfigMap 构建 ConfigMap 对象
func (r *Reporter) buildConfigMap(namespace, nodeName string, inv *Inventory) (*corev1.ConfigMap, error) {
	data, err := yaml.Marshal(inv)
	if err != nil {
		return nil, fmt.Errorf("failed to encode inventory: %w", err)
	}

	return &corev1.ConfigMap{
		ObjectMeta: metav1.ObjectMeta{
			Name:      ConfigMapName(nodeName),
			Namespace: namespace,
			Labels: map[string]string{
				LabelNode:        nodeName,
				LabelVendor:      inv.Vendor,
				LabelDeviceCount: fmt.Sprint(len(inv.Devices)),
			},
		},
		Data: map[string]string{
			InventoryKey: string(data),
		},
	}, nil
}

// Delete 删除节点的清单 ConfigMap
func (r *Reporter) Delete(ctx context.Context, namespace, nodeName string) error {
	cm := &corev1.ConfigMap{
		ObjectMeta: metav1.ObjectMeta{
			Name:      ConfigMapName(nodeName),
			Namespace: namespace,
		},
	}

	if err := r.client.Delete(ctx, cm); err != nil {
		if apierrors.IsNotFound(err) {
			return nil
		}
		return fmt.Errorf("failed to delete ConfigMap: %w", err)
	}

	return nil
}

// DecodeInventory 解析 ConfigMap 中的清单
func DecodeInventory(cm *corev1.ConfigMap) (*Inventory, error) {
	data, ok := cm.Data[InventoryKey]
	if !ok {
		return nil, fmt.Errorf("ConfigMap %s/%s has no %s", cm.Namespace, cm.Name, InventoryKey)
	}
	inv := &Inventory{}
	if err := yaml.Unmarshal([]byte(data), inv); err != nil {
		return nil, fmt.Errorf("failed to decode inventory: %w", err)
	}
	return inv, nil
}
