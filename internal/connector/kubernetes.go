package connector

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/amsen20/reconf/alg"
	"github.com/amsen20/reconf/internal/config"
	"github.com/amsen20/reconf/internal/constraint"
	"github.com/amsen20/reconf/internal/model"
	"github.com/amsen20/reconf/internal/plan"
	"github.com/amsen20/reconf/internal/utils"
	v1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
)

const (
	ResourceCPU    = "cpu"
	ResourceMemory = "mem"
)

// KubeConnector sees nodes as nodes and pods as VMs. A pod bound to a node
// is running there, a pending pod without node is ready and asked to run.
type KubeConnector struct {
	// Kubernetes official library client for
	// contacting API-server.
	clientset kubernetes.Interface
	namespace string
	// pods whose name starts with it are ignored
	self string

	// Mappings for getting pod and node
	// names from the model identifiers.
	mutex        sync.Mutex
	nodeIdToName map[model.NodeID]string
	podIdToName  map[model.VMID]string
}

// NewKubeConnector connects with a kubeconfig file, or with the in-cluster
// configuration when kubeconfig is empty.
func NewKubeConnector(kubeconfig string, cfg config.GeneralConfig) (*KubeConnector, error) {
	var restConfig *rest.Config
	var err error
	if kubeconfig == "" {
		restConfig, err = rest.InClusterConfig()
	} else {
		restConfig, err = clientcmd.BuildConfigFromFlags("", kubeconfig)
	}
	if err != nil {
		log.Err(err).Send()

		return nil, fmt.Errorf("can't connect to kubernetes cluster")
	}

	clientSet, err := kubernetes.NewForConfig(restConfig)
	if err != nil {
		log.Err(err).Send()

		return nil, fmt.Errorf("could not init clients")
	}

	return NewKubeConnectorWithClient(clientSet, cfg.Namespace, cfg.Name), nil
}

func NewKubeConnectorWithClient(clientset kubernetes.Interface, namespace, self string) *KubeConnector {
	return &KubeConnector{
		clientset:    clientset,
		namespace:    namespace,
		self:         self,
		nodeIdToName: make(map[model.NodeID]string),
		podIdToName:  make(map[model.VMID]string),
	}
}

func isReady(node *v1.Node) bool {
	for _, cond := range node.Status.Conditions {
		if cond.Type == v1.NodeReady {
			return cond.Status == v1.ConditionTrue
		}
	}
	return false
}

func podRequests(pod *v1.Pod) (cpu int, memory int) {
	for _, container := range pod.Spec.Containers {
		requests := container.Resources.Requests
		cpu += int(requests.Cpu().MilliValue())
		memory += int(requests.Memory().Value() / config.MB)
	}
	return cpu, memory
}

// Snapshot lists the nodes and the pods of the namespace. Capacities are in
// millicores and MiB. Unschedulable or not ready nodes are offline unless
// they still host pods.
func (kc *KubeConnector) Snapshot(ctx context.Context) (alg.Instance, error) {
	log.Info().Msg("taking a snapshot of the cluster...")

	nodeList, err := kc.clientset.CoreV1().Nodes().List(ctx, metav1.ListOptions{})
	if err != nil {
		log.Err(err).Send()

		return alg.Instance{}, fmt.Errorf("could not list nodes")
	}
	podList, err := kc.clientset.CoreV1().Pods(kc.namespace).List(ctx, metav1.ListOptions{})
	if err != nil {
		log.Err(err).Send()

		return alg.Instance{}, fmt.Errorf("could not get pods list")
	}

	kc.mutex.Lock()
	defer kc.mutex.Unlock()

	m := model.NewModel()
	cpu := model.NewShareableResource(ResourceCPU, 0, 0)
	mem := model.NewShareableResource(ResourceMemory, 0, 0)
	m.AddResource(cpu)
	m.AddResource(mem)
	mapping := m.Mapping()

	var down []model.NodeID
	for i := range nodeList.Items {
		node := &nodeList.Items[i]
		// "nodetype" label set to "ignore" hides a node from the planner.
		if node.GetLabels()["nodetype"] == "ignore" {
			continue
		}
		id := model.NodeID(utils.Hash(node.Name))
		if other, ok := kc.nodeIdToName[id]; ok && other != node.Name {
			return alg.Instance{}, fmt.Errorf("nodes %s and %s have the same id", other, node.Name)
		}
		kc.nodeIdToName[id] = node.Name

		mapping.AddOnlineNode(id)
		cpu.SetCapacity(id, int(node.Status.Allocatable.Cpu().MilliValue()))
		mem.SetCapacity(id, int(node.Status.Allocatable.Memory().Value()/config.MB))
		if node.Spec.Unschedulable || !isReady(node) {
			down = append(down, id)
		}
	}

	var pending []model.VMID
	for i := range podList.Items {
		pod := &podList.Items[i]
		if kc.self != "" && strings.HasPrefix(pod.Name, kc.self) {
			// ignore your pod
			continue
		}
		id := model.VMID(utils.Hash(pod.Name))
		podCpu, podMem := podRequests(pod)

		switch {
		case pod.Status.Phase == v1.PodSucceeded || pod.Status.Phase == v1.PodFailed:
			log.Debug().Msgf("ignoring a pod named %s due to its status", pod.Name)
			continue
		case pod.Spec.NodeName == "":
			mapping.AddReadyVM(id)
			pending = append(pending, id)
		default:
			nodeId := model.NodeID(utils.Hash(pod.Spec.NodeName))
			if !mapping.AddRunningVM(id, nodeId) {
				log.Warn().Msgf("pod %s is on an unknown node %s, ignoring it", pod.Name, pod.Spec.NodeName)
				continue
			}
		}
		m.DeclareVM(id)
		cpu.SetConsumption(id, podCpu)
		mem.SetConsumption(id, podMem)
		kc.podIdToName[id] = pod.Name
	}

	for _, id := range down {
		if !mapping.AddOfflineNode(id) {
			log.Info().Msgf("node %s is not schedulable but still hosts pods", kc.nodeIdToName[id])
		}
	}

	inst := alg.Instance{Model: m}
	if len(pending) > 0 {
		inst.Constraints = append(inst.Constraints, constraint.NewRunning(pending...))
	}
	for _, id := range utils.SortedKeys(kc.nodeIdToName) {
		log.Debug().Msgf("%s is node %s", id, kc.nodeIdToName[id])
	}
	log.Info().Msgf("found %d nodes, %d pods, %d pending", len(m.Nodes()), len(m.VMs()), len(pending))
	return inst, nil
}

func (kc *KubeConnector) names(action plan.Action) (pod, node, dst string) {
	kc.mutex.Lock()
	defer kc.mutex.Unlock()

	return kc.podIdToName[action.VM], kc.nodeIdToName[action.Node], kc.nodeIdToName[action.Dst]
}

// Execute performs an action. Pods do not migrate: a migrated or stopped
// pod is deleted and its controller recreates it, pending, for the next
// round.
func (kc *KubeConnector) Execute(ctx context.Context, action plan.Action) error {
	podName, nodeName, _ := kc.names(action)
	switch action.Kind {
	case plan.BootVM:
		if podName == "" || nodeName == "" {
			return fmt.Errorf("the pod or its node is not known: %s", action)
		}
		return kc.bind(ctx, podName, nodeName)
	case plan.MigrateVM, plan.ShutdownVM, plan.KillVM:
		if podName == "" {
			return fmt.Errorf("the pod is not known: %s", action)
		}
		return kc.deletePod(ctx, podName)
	case plan.BootNode:
		return kc.setUnschedulable(ctx, nodeName, false)
	case plan.ShutdownNode:
		return kc.setUnschedulable(ctx, nodeName, true)
	}
	return fmt.Errorf("%s is not supported on kubernetes", action.Kind)
}

func (kc *KubeConnector) bind(ctx context.Context, podName, nodeName string) error {
	log.Info().Msgf("binding pod %s to node %s", podName, nodeName)

	binding := &v1.Binding{
		ObjectMeta: metav1.ObjectMeta{
			Name:      podName,
			Namespace: kc.namespace,
		},
		Target: v1.ObjectReference{
			Kind:       "Node",
			APIVersion: "v1",
			Name:       nodeName,
		},
	}
	// A k8s binding is created for deploying a pod on a node.
	return kc.clientset.CoreV1().Pods(kc.namespace).Bind(ctx, binding, metav1.CreateOptions{})
}

func (kc *KubeConnector) deletePod(ctx context.Context, podName string) error {
	log.Info().Msgf("deleting pod %s", podName)

	return kc.clientset.CoreV1().Pods(kc.namespace).Delete(ctx, podName, *metav1.NewDeleteOptions(0))
}

// setUnschedulable cordons or uncordons a node, the closest kubernetes
// has to turning it off or on.
func (kc *KubeConnector) setUnschedulable(ctx context.Context, nodeName string, unschedulable bool) error {
	if nodeName == "" {
		return fmt.Errorf("the node is not known")
	}
	node, err := kc.clientset.CoreV1().Nodes().Get(ctx, nodeName, metav1.GetOptions{})
	if err != nil {
		return err
	}
	node.Spec.Unschedulable = unschedulable
	_, err = kc.clientset.CoreV1().Nodes().Update(ctx, node, metav1.UpdateOptions{})
	if err == nil {
		log.Info().Msgf("node %s unschedulable=%t", nodeName, unschedulable)
	}
	return err
}
