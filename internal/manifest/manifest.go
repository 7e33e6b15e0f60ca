// SPDX-License-Identifier:Apache-2.0

// Package manifest emits Kubernetes objects for deploying the built
// images: a sentinel Deployment monitoring the topology and a cluster
// StatefulSet holding the data nodes. The configuration files ship
// inside the images, so no ConfigMaps are involved; the sentinel
// rewrites its copy in the container filesystem during failovers.
package manifest

import (
	"bytes"

	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"sigs.k8s.io/yaml"

	"go.redpack.dev/redpack/internal/recipe"
)

const (
	sentinelName = "redis-sentinel"
	clusterName  = "redis-cluster"
)

// Options shape the generated objects.
type Options struct {
	// Namespace for every object.
	Namespace string
	// SentinelReplicas is the sentinel quorum pool size.
	SentinelReplicas int32
	// ClusterReplicas is the number of data nodes.
	ClusterReplicas int32
}

// Defaults returns the stock deployment shape: three sentinels (a
// failover vote needs an odd quorum) and six data nodes (three
// primaries, one replica each).
func Defaults() Options {
	return Options{
		Namespace:        "redis",
		SentinelReplicas: 3,
		ClusterReplicas:  6,
	}
}

// Objects returns the full object set for deploying sentinelImage and
// clusterImage.
func Objects(sentinelImage, clusterImage string, o Options) []interface{} {
	return []interface{}{
		sentinelService(o),
		sentinelDeployment(sentinelImage, o),
		clusterService(o),
		clusterStatefulSet(clusterImage, o),
	}
}

// Render serializes objects into one multi-document YAML stream.
func Render(objs []interface{}) ([]byte, error) {
	var buf bytes.Buffer
	for i, obj := range objs {
		if i > 0 {
			buf.WriteString("---\n")
		}
		bs, err := yaml.Marshal(obj)
		if err != nil {
			return nil, err
		}
		buf.Write(bs)
	}
	return buf.Bytes(), nil
}

func labels(app string) map[string]string {
	return map[string]string{"app": app}
}

func objectMeta(name string, o Options) metav1.ObjectMeta {
	return metav1.ObjectMeta{
		Name:      name,
		Namespace: o.Namespace,
		Labels:    labels(name),
	}
}

func sentinelService(o Options) *corev1.Service {
	return &corev1.Service{
		TypeMeta:   metav1.TypeMeta{APIVersion: "v1", Kind: "Service"},
		ObjectMeta: objectMeta(sentinelName, o),
		Spec: corev1.ServiceSpec{
			Selector: labels(sentinelName),
			Ports: []corev1.ServicePort{
				{Name: "sentinel", Port: recipe.SentinelPort},
			},
		},
	}
}

func sentinelDeployment(image string, o Options) *appsv1.Deployment {
	replicas := o.SentinelReplicas
	return &appsv1.Deployment{
		TypeMeta:   metav1.TypeMeta{APIVersion: "apps/v1", Kind: "Deployment"},
		ObjectMeta: objectMeta(sentinelName, o),
		Spec: appsv1.DeploymentSpec{
			Replicas: &replicas,
			Selector: &metav1.LabelSelector{MatchLabels: labels(sentinelName)},
			Template: corev1.PodTemplateSpec{
				ObjectMeta: metav1.ObjectMeta{Labels: labels(sentinelName)},
				Spec: corev1.PodSpec{
					Containers: []corev1.Container{
						{
							Name:  "sentinel",
							Image: image,
							Ports: []corev1.ContainerPort{
								{Name: "sentinel", ContainerPort: recipe.SentinelPort},
							},
						},
					},
				},
			},
		},
	}
}

// clusterService is headless: cluster clients discover nodes over the
// store's own slot map, not through a load balancer.
func clusterService(o Options) *corev1.Service {
	return &corev1.Service{
		TypeMeta:   metav1.TypeMeta{APIVersion: "v1", Kind: "Service"},
		ObjectMeta: objectMeta(clusterName, o),
		Spec: corev1.ServiceSpec{
			ClusterIP: corev1.ClusterIPNone,
			Selector:  labels(clusterName),
			Ports: []corev1.ServicePort{
				{Name: "client", Port: recipe.ClusterPort},
				{Name: "gossip", Port: recipe.ClusterBusPort},
			},
		},
	}
}

func clusterStatefulSet(image string, o Options) *appsv1.StatefulSet {
	replicas := o.ClusterReplicas
	return &appsv1.StatefulSet{
		TypeMeta:   metav1.TypeMeta{APIVersion: "apps/v1", Kind: "StatefulSet"},
		ObjectMeta: objectMeta(clusterName, o),
		Spec: appsv1.StatefulSetSpec{
			ServiceName: clusterName,
			Replicas:    &replicas,
			Selector:    &metav1.LabelSelector{MatchLabels: labels(clusterName)},
			Template: corev1.PodTemplateSpec{
				ObjectMeta: metav1.ObjectMeta{Labels: labels(clusterName)},
				Spec: corev1.PodSpec{
					Containers: []corev1.Container{
						{
							Name:  "redis",
							Image: image,
							Ports: []corev1.ContainerPort{
								{Name: "client", ContainerPort: recipe.ClusterPort},
								{Name: "gossip", ContainerPort: recipe.ClusterBusPort},
							},
						},
					},
				},
			},
		},
	}
}
