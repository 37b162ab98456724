package controllers

import (
	"context"
	"fmt"
	"time"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/client-go/tools/record"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/log"
	"sigs.k8s.io/controller-runtime/pkg/predicate"

	depotv1alpha1 "github.com/anvil-platform/depot/api/v1alpha1"
	"github.com/anvil-platform/depot/internal/coords"
	"github.com/anvil-platform/depot/internal/download"
	"github.com/anvil-platform/depot/internal/relocation"
	"github.com/anvil-platform/depot/internal/repository"
	"github.com/anvil-platform/depot/internal/resolver"
)

const (
	controllerName = "DependencySet"

	defaultRetryInterval = 5 * time.Minute
)

// DependencySetReconciler resolves DependencySets into the node-local artifact cache.
//
// RBAC:
// +kubebuilder:rbac:groups=depot.anvil.platform,resources=dependencysets,verbs=get;list;watch
// +kubebuilder:rbac:groups=depot.anvil.platform,resources=dependencysets/status,verbs=get;update;patch
// +kubebuilder:rbac:groups="",resources=events,verbs=create;patch;update
type DependencySetReconciler struct {
	client.Client
	Scheme   *runtime.Scheme
	Recorder record.EventRecorder

	CacheDir string
	// Repositories are used when a DependencySet lists none.
	Repositories []repository.Repository
	Download     download.Options
	Resolution   resolver.Options
	// RelocationTool runs relocation rules. Sets declaring rules fail without it.
	RelocationTool relocation.Tool
	// RetryInterval is how long a degraded set waits before the next attempt.
	RetryInterval time.Duration
}

func (r *DependencySetReconciler) Reconcile(ctx context.Context, req ctrl.Request) (ctrl.Result, error) {
	depotControllerReconcileTotal.WithLabelValues(controllerName).Inc()

	logger := log.FromContext(ctx).WithValues(
		"controller", controllerName,
		"namespace", req.Namespace,
		"dependencySet", req.Name,
	)

	var set depotv1alpha1.DependencySet
	if err := r.Get(ctx, req.NamespacedName, &set); err != nil {
		if client.IgnoreNotFound(err) == nil {
			dependencySetUnresolved.DeleteLabelValues(req.Namespace, req.Name)
			return ctrl.Result{}, nil
		}
		depotControllerReconcileErrorTotal.WithLabelValues(controllerName).Inc()
		return ctrl.Result{}, err
	}

	if set.Status.ObservedGeneration == set.Generation {
		switch set.Status.Phase {
		case depotv1alpha1.DependencySetPhaseResolved, depotv1alpha1.DependencySetPhaseFailed:
			return ctrl.Result{}, nil
		}
	}
	logger.Info("resolving dependency set", "coordinates", len(set.Spec.Coordinates))

	roots, err := parseCoordinates(set.Spec.Coordinates)
	if err != nil {
		return ctrl.Result{}, r.fail(ctx, &set, "InvalidCoordinate", err)
	}
	engine, err := r.engineFor(&set)
	if err != nil {
		return ctrl.Result{}, r.fail(ctx, &set, "InvalidSpec", err)
	}

	res, err := engine.Resolve(log.IntoContext(ctx, logger), roots)
	if err != nil {
		return ctrl.Result{}, r.fail(ctx, &set, "InvalidCoordinate", err)
	}

	errs := res.ErrorMessages()
	dependencySetUnresolved.WithLabelValues(req.Namespace, req.Name).Set(float64(len(errs)))

	phase := depotv1alpha1.DependencySetPhaseResolved
	cond := metav1.Condition{
		Type:    DependencySetConditionResolved,
		Status:  metav1.ConditionTrue,
		Reason:  "Resolved",
		Message: resolvedMessage(len(res.Resolved), 0),
	}
	if !res.OK() {
		phase = depotv1alpha1.DependencySetPhaseDegraded
		cond.Status = metav1.ConditionFalse
		cond.Reason = "DependenciesFailed"
		cond.Message = resolvedMessage(len(res.Resolved), len(errs))
	}

	before := set.DeepCopy()
	set.Status.ObservedGeneration = set.Generation
	r.setPhase(&set, phase)
	set.Status.Message = summarizeErrors(errs)
	set.Status.ArtifactCount = int32(len(res.Resolved))
	set.Status.Artifacts = make([]depotv1alpha1.ResolvedArtifact, 0, len(res.Resolved))
	for _, rd := range res.Resolved {
		set.Status.Artifacts = append(set.Status.Artifacts, depotv1alpha1.ResolvedArtifact{
			Coordinate: rd.Dependency.String(),
			Path:       rd.Path,
		})
	}
	set.Status.Errors = boundedErrors(errs)
	set.Status.Cycles = nil
	for _, c := range res.Cycles {
		set.Status.Cycles = append(set.Status.Cycles, c.String())
	}
	set.Status.Truncated = res.Truncated
	now := metav1.Now()
	set.Status.LastResolvedTime = &now
	setDependencySetCondition(&set, cond)

	if err := r.Status().Patch(ctx, &set, client.MergeFrom(before)); err != nil {
		logger.Error(err, "failed to patch dependency set status")
		depotControllerReconcileErrorTotal.WithLabelValues(controllerName).Inc()
		return ctrl.Result{}, err
	}

	if phase == depotv1alpha1.DependencySetPhaseResolved {
		r.recordEventf(&set, corev1.EventTypeNormal, "Resolved", "Resolved %d artifacts", len(res.Resolved))
		return ctrl.Result{}, nil
	}
	r.recordEventf(&set, corev1.EventTypeWarning, "DependenciesFailed", "%s", cond.Message)
	logger.Info("dependency set degraded", "errors", len(errs), "truncated", res.Truncated)
	return ctrl.Result{RequeueAfter: r.retryInterval()}, nil
}

func (r *DependencySetReconciler) engineFor(set *depotv1alpha1.DependencySet) (*resolver.Engine, error) {
	remotes := r.Repositories
	if len(set.Spec.Repositories) > 0 {
		remotes = make([]repository.Repository, 0, len(set.Spec.Repositories))
		for _, ref := range set.Spec.Repositories {
			remotes = append(remotes, repository.Repository{ID: ref.ID, URL: ref.URL})
		}
	}
	if len(remotes) == 0 {
		return nil, fmt.Errorf("no repositories configured")
	}

	opts := r.Resolution
	opts.ExcludeGroups = append(append([]string(nil), r.Resolution.ExcludeGroups...), set.Spec.ExcludeGroups...)
	opts.ExcludeArtifacts = append(append([]string(nil), r.Resolution.ExcludeArtifacts...), set.Spec.ExcludeArtifacts...)
	opts.MaxDepth = int(set.Spec.MaxDepth)
	opts.IncludeOptional = opts.IncludeOptional || set.Spec.IncludeOptional

	if len(set.Spec.Relocations) > 0 {
		rules := make([]relocation.Rule, 0, len(set.Spec.Relocations))
		for _, rr := range set.Spec.Relocations {
			rules = append(rules, relocation.Rule{Pattern: rr.Pattern, Relocated: rr.Relocated})
		}
		h, err := relocation.NewHandler(r.CacheDir, r.RelocationTool, rules)
		if err != nil {
			return nil, err
		}
		opts.Relocator = h
	}

	reg := repository.NewRegistry(r.CacheDir, remotes...)
	return resolver.NewEngine(download.New(reg, r.Download), opts)
}

func (r *DependencySetReconciler) fail(ctx context.Context, set *depotv1alpha1.DependencySet, reason string, cause error) error {
	logger := log.FromContext(ctx)
	before := set.DeepCopy()
	set.Status.ObservedGeneration = set.Generation
	r.setPhase(set, depotv1alpha1.DependencySetPhaseFailed)
	set.Status.Message = cause.Error()
	set.Status.Artifacts = nil
	set.Status.ArtifactCount = 0
	setDependencySetCondition(set, metav1.Condition{
		Type:    DependencySetConditionResolved,
		Status:  metav1.ConditionFalse,
		Reason:  reason,
		Message: cause.Error(),
	})
	r.recordEventf(set, corev1.EventTypeWarning, reason, "%v", cause)
	if err := r.Status().Patch(ctx, set, client.MergeFrom(before)); err != nil {
		logger.Error(err, "failed to patch dependency set status")
		depotControllerReconcileErrorTotal.WithLabelValues(controllerName).Inc()
		return err
	}
	// Spec errors need a spec change; do not requeue.
	return nil
}

func (r *DependencySetReconciler) setPhase(set *depotv1alpha1.DependencySet, phase depotv1alpha1.DependencySetPhase) {
	if set.Status.Phase != phase {
		dependencySetPhaseTransitionsTotal.WithLabelValues(string(phase)).Inc()
	}
	set.Status.Phase = phase
}

func (r *DependencySetReconciler) retryInterval() time.Duration {
	if r.RetryInterval > 0 {
		return r.RetryInterval
	}
	return defaultRetryInterval
}

func (r *DependencySetReconciler) recordEventf(obj client.Object, eventType, reason, messageFmt string, args ...any) {
	if r.Recorder == nil || obj == nil {
		return
	}
	r.Recorder.Eventf(obj, eventType, reason, messageFmt, args...)
}

func (r *DependencySetReconciler) SetupWithManager(mgr ctrl.Manager) error {
	return ctrl.NewControllerManagedBy(mgr).
		For(&depotv1alpha1.DependencySet{}).
		WithEventFilter(predicate.GenerationChangedPredicate{}).
		Complete(r)
}

func parseCoordinates(raw []string) ([]coords.Dependency, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: no coordinates listed", coords.ErrInvalidCoordinate)
	}
	out := make([]coords.Dependency, 0, len(raw))
	for _, s := range raw {
		c, err := coords.Parse(s)
		if err != nil {
			return nil, err
		}
		out = append(out, coords.NewDependency(c))
	}
	return out, nil
}
