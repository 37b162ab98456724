package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	utilruntime "k8s.io/apimachinery/pkg/util/runtime"
	clientgoscheme "k8s.io/client-go/kubernetes/scheme"
	"k8s.io/client-go/tools/clientcmd"
	"k8s.io/client-go/util/homedir"
	"sigs.k8s.io/controller-runtime/pkg/client"

	depotv1alpha1 "github.com/anvil-platform/depot/api/v1alpha1"
)

var (
	scheme = runtime.NewScheme()
)

func init() {
	utilruntime.Must(clientgoscheme.AddToScheme(scheme))
	utilruntime.Must(depotv1alpha1.AddToScheme(scheme))
}

func main() {
	var kubeconfig string
	if home := homedir.HomeDir(); home != "" {
		kubeconfig = filepath.Join(home, ".kube", "config")
	} else {
		kubeconfig = os.Getenv("KUBECONFIG")
	}
	flag.StringVar(&kubeconfig, "kubeconfig", kubeconfig, "absolute path to the kubeconfig file")

	var numSets int
	var namespace string
	var coordinates string
	var timeout time.Duration

	flag.IntVar(&numSets, "sets", 10, "Number of DependencySets to create")
	flag.StringVar(&namespace, "namespace", "default", "Namespace to create DependencySets in")
	flag.StringVar(&coordinates, "coordinates", "com.google.guava:guava:33.0.0-jre", "Comma separated root coordinates")
	flag.DurationVar(&timeout, "timeout", 5*time.Minute, "How long to wait for each DependencySet")
	flag.Parse()

	config, err := clientcmd.BuildConfigFromFlags("", kubeconfig)
	if err != nil {
		log.Fatalf("Error building kubeconfig: %v", err)
	}

	k8sClient, err := client.New(config, client.Options{Scheme: scheme})
	if err != nil {
		log.Fatalf("Error creating client: %v", err)
	}

	roots := strings.Split(coordinates, ",")
	fmt.Printf("Starting load test: %d dependency sets in namespace %s\n", numSets, namespace)

	var wg sync.WaitGroup
	start := time.Now()
	latencies := make(chan time.Duration, numSets)

	for i := 0; i < numSets; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			name := fmt.Sprintf("load-test-%d-%d", time.Now().Unix(), id)

			set := &depotv1alpha1.DependencySet{
				ObjectMeta: metav1.ObjectMeta{
					Name:      name,
					Namespace: namespace,
				},
				Spec: depotv1alpha1.DependencySetSpec{
					Coordinates: roots,
				},
			}

			createStart := time.Now()
			fmt.Printf("Creating dependency set %s\n", name)
			if err := k8sClient.Create(context.Background(), set); err != nil {
				fmt.Printf("Error creating dependency set %s: %v\n", name, err)
				return
			}

			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()

			for {
				select {
				case <-ctx.Done():
					fmt.Printf("Timeout waiting for dependency set %s\n", name)
					return
				case <-time.After(1 * time.Second):
					var current depotv1alpha1.DependencySet
					if err := k8sClient.Get(ctx, client.ObjectKey{Name: name, Namespace: namespace}, &current); err != nil {
						continue
					}
					switch current.Status.Phase {
					case depotv1alpha1.DependencySetPhaseResolved, depotv1alpha1.DependencySetPhaseDegraded:
						latency := time.Since(createStart)
						latencies <- latency
						fmt.Printf("Dependency set %s %s in %v (%d artifacts)\n", name, current.Status.Phase, latency, current.Status.ArtifactCount)
						return
					case depotv1alpha1.DependencySetPhaseFailed:
						fmt.Printf("Dependency set %s failed: %s\n", name, current.Status.Message)
						return
					}
				}
			}
		}(i)
	}

	wg.Wait()
	close(latencies)
	totalDuration := time.Since(start)

	var totalLatency time.Duration
	count := 0
	for l := range latencies {
		totalLatency += l
		count++
	}

	if count > 0 {
		avgLatency := totalLatency / time.Duration(count)
		fmt.Printf("Load test completed in %v. Avg resolution latency: %v\n", totalDuration, avgLatency)
	} else {
		fmt.Printf("Load test completed in %v. No dependency sets resolved.\n", totalDuration)
	}
}
