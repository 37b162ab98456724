package controllers

import (
	"github.com/prometheus/client_golang/prometheus"
	"sigs.k8s.io/controller-runtime/pkg/metrics"
)

var (
	depotControllerReconcileTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "depot_controller_reconcile_total",
			Help: "Number of reconciliations by controller.",
		},
		[]string{"controller"},
	)
	depotControllerReconcileErrorTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "depot_controller_reconcile_error_total",
			Help: "Number of reconciliation errors by controller.",
		},
		[]string{"controller"},
	)

	dependencySetUnresolved = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "depot_dependencyset_unresolved",
			Help: "Number of per-dependency errors observed in the last reconcile of a DependencySet.",
		},
		[]string{"namespace", "name"},
	)
	dependencySetPhaseTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "depot_dependencyset_phase_transitions_total",
			Help: "Number of DependencySet phase changes by target phase.",
		},
		[]string{"phase"},
	)
)

func init() {
	metrics.Registry.MustRegister(
		depotControllerReconcileTotal,
		depotControllerReconcileErrorTotal,
		dependencySetUnresolved,
		dependencySetPhaseTransitionsTotal,
	)
}
