package v1alpha1

type DependencySetPhase string

const (
	DependencySetPhasePending  DependencySetPhase = "Pending"
	DependencySetPhaseResolved DependencySetPhase = "Resolved"
	// Degraded means some dependencies resolved and others failed.
	DependencySetPhaseDegraded DependencySetPhase = "Degraded"
	DependencySetPhaseFailed   DependencySetPhase = "Failed"
)

type RepositoryRef struct {
	ID  string `json:"id,omitempty"`
	URL string `json:"url"`
}

type RelocationRule struct {
	Pattern   string `json:"pattern"`
	Relocated string `json:"relocated"`
}

type ResolvedArtifact struct {
	Coordinate string `json:"coordinate"`
	Path       string `json:"path"`
}
