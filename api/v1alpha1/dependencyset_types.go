package v1alpha1

import (
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

// DependencySet declares a set of package coordinates to resolve into the
// node-local artifact cache.
//
// The DependencySet controller resolves the transitive closure of the
// coordinates and publishes the resulting artifact paths in status.
//
// +kubebuilder:object:root=true
// +kubebuilder:subresource:status
// +kubebuilder:resource:scope=Namespaced,shortName=ds
// +kubebuilder:printcolumn:name="Phase",type=string,JSONPath=`.status.phase`
// +kubebuilder:printcolumn:name="Artifacts",type=integer,JSONPath=`.status.artifactCount`
// +kubebuilder:printcolumn:name="Age",type=date,JSONPath=`.metadata.creationTimestamp`
type DependencySet struct {
	metav1.TypeMeta   `json:",inline"`
	metav1.ObjectMeta `json:"metadata,omitempty"`

	Spec   DependencySetSpec   `json:"spec"`
	Status DependencySetStatus `json:"status,omitempty"`
}

type DependencySetSpec struct {
	// Coordinates are "group:artifact[:version[:classifier]]" strings.
	// +kubebuilder:validation:MinItems=1
	Coordinates []string `json:"coordinates"`

	// Repositories are tried in order. Empty uses the controller defaults.
	Repositories []RepositoryRef `json:"repositories,omitempty"`

	ExcludeGroups    []string `json:"excludeGroups,omitempty"`
	ExcludeArtifacts []string `json:"excludeArtifacts,omitempty"`

	// MaxDepth limits transitive hops. 0 means unlimited.
	// +kubebuilder:validation:Minimum=0
	MaxDepth int32 `json:"maxDepth,omitempty"`

	IncludeOptional bool `json:"includeOptional,omitempty"`

	// Relocations are applied to every resolved binary.
	Relocations []RelocationRule `json:"relocations,omitempty"`
}

type DependencySetStatus struct {
	ObservedGeneration int64              `json:"observedGeneration,omitempty"`
	Phase              DependencySetPhase `json:"phase,omitempty"`
	Message            string             `json:"message,omitempty"`

	ArtifactCount int32              `json:"artifactCount,omitempty"`
	Artifacts     []ResolvedArtifact `json:"artifacts,omitempty"`
	Errors        []string           `json:"errors,omitempty"`
	Cycles        []string           `json:"cycles,omitempty"`
	Truncated     bool               `json:"truncated,omitempty"`

	LastResolvedTime *metav1.Time `json:"lastResolvedTime,omitempty"`

	Conditions []metav1.Condition `json:"conditions,omitempty"`
}

// +kubebuilder:object:root=true
type DependencySetList struct {
	metav1.TypeMeta `json:",inline"`
	metav1.ListMeta `json:"metadata,omitempty"`
	Items           []DependencySet `json:"items"`
}

func init() {
	SchemeBuilder.Register(&DependencySet{}, &DependencySetList{})
}
