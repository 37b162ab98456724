package v1alpha1

import (
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
)

// DeepCopyInto copies the receiver, writing into out. in must be non-nil.
func (in *DependencySet) DeepCopyInto(out *DependencySet) {
	*out = *in
	out.TypeMeta = in.TypeMeta
	in.ObjectMeta.DeepCopyInto(&out.ObjectMeta)
	in.Spec.DeepCopyInto(&out.Spec)
	in.Status.DeepCopyInto(&out.Status)
}

// DeepCopy copies the receiver, creating a new DependencySet.
func (in *DependencySet) DeepCopy() *DependencySet {
	if in == nil {
		return nil
	}
	out := new(DependencySet)
	in.DeepCopyInto(out)
	return out
}

// DeepCopyObject copies the receiver, creating a new runtime.Object.
func (in *DependencySet) DeepCopyObject() runtime.Object {
	if c := in.DeepCopy(); c != nil {
		return c
	}
	return nil
}

// DeepCopyInto copies the receiver, writing into out. in must be non-nil.
func (in *DependencySetList) DeepCopyInto(out *DependencySetList) {
	*out = *in
	out.TypeMeta = in.TypeMeta
	in.ListMeta.DeepCopyInto(&out.ListMeta)
	if in.Items != nil {
		out.Items = make([]DependencySet, len(in.Items))
		for i := range in.Items {
			in.Items[i].DeepCopyInto(&out.Items[i])
		}
	}
}

// DeepCopy copies the receiver, creating a new DependencySetList.
func (in *DependencySetList) DeepCopy() *DependencySetList {
	if in == nil {
		return nil
	}
	out := new(DependencySetList)
	in.DeepCopyInto(out)
	return out
}

// DeepCopyObject copies the receiver, creating a new runtime.Object.
func (in *DependencySetList) DeepCopyObject() runtime.Object {
	if c := in.DeepCopy(); c != nil {
		return c
	}
	return nil
}

// DeepCopyInto copies the receiver, writing into out. in must be non-nil.
func (in *DependencySetSpec) DeepCopyInto(out *DependencySetSpec) {
	*out = *in
	out.Coordinates = copyStrings(in.Coordinates)
	if in.Repositories != nil {
		out.Repositories = make([]RepositoryRef, len(in.Repositories))
		copy(out.Repositories, in.Repositories)
	}
	out.ExcludeGroups = copyStrings(in.ExcludeGroups)
	out.ExcludeArtifacts = copyStrings(in.ExcludeArtifacts)
	if in.Relocations != nil {
		out.Relocations = make([]RelocationRule, len(in.Relocations))
		copy(out.Relocations, in.Relocations)
	}
}

// DeepCopyInto copies the receiver, writing into out. in must be non-nil.
func (in *DependencySetStatus) DeepCopyInto(out *DependencySetStatus) {
	*out = *in
	if in.Artifacts != nil {
		out.Artifacts = make([]ResolvedArtifact, len(in.Artifacts))
		copy(out.Artifacts, in.Artifacts)
	}
	out.Errors = copyStrings(in.Errors)
	out.Cycles = copyStrings(in.Cycles)
	if in.LastResolvedTime != nil {
		in, out := &in.LastResolvedTime, &out.LastResolvedTime
		*out = (*in).DeepCopy()
	}
	if in.Conditions != nil {
		out.Conditions = make([]metav1.Condition, len(in.Conditions))
		for i := range in.Conditions {
			in.Conditions[i].DeepCopyInto(&out.Conditions[i])
		}
	}
}

func copyStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}
