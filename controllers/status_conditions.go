package controllers

import (
	"fmt"
	"strings"

	"k8s.io/apimachinery/pkg/api/meta"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	depotv1alpha1 "github.com/anvil-platform/depot/api/v1alpha1"
)

const (
	DependencySetConditionResolved = "Resolved"

	// maxStatusErrors bounds the error list copied into status.
	maxStatusErrors = 20
)

func setDependencySetCondition(set *depotv1alpha1.DependencySet, condition metav1.Condition) {
	if set == nil {
		return
	}
	condition.ObservedGeneration = set.Generation
	meta.SetStatusCondition(&set.Status.Conditions, condition)
}

func resolvedMessage(artifacts, failures int) string {
	if failures == 0 {
		return fmt.Sprintf("%d artifacts resolved", artifacts)
	}
	return fmt.Sprintf("%d artifacts resolved, %d dependencies failed", artifacts, failures)
}

func boundedErrors(errs []string) []string {
	if len(errs) <= maxStatusErrors {
		return errs
	}
	out := append([]string(nil), errs[:maxStatusErrors]...)
	return append(out, fmt.Sprintf("...and %d more", len(errs)-maxStatusErrors))
}

func summarizeErrors(errs []string) string {
	if len(errs) == 0 {
		return ""
	}
	max := 3
	parts := make([]string, 0, min(len(errs), max))
	for i := 0; i < len(errs) && i < max; i++ {
		parts = append(parts, errs[i])
	}
	if len(errs) > max {
		parts = append(parts, fmt.Sprintf("...and %d more", len(errs)-max))
	}
	return strings.Join(parts, "; ")
}
