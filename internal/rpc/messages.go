package rpc

import (
	"google.golang.org/protobuf/types/known/structpb"
)

// Request asks for the transitive closure of Coordinates.
type Request struct {
	Coordinates   []string
	ExcludeGroups []string
	MaxDepth      int
}

// Artifact is one resolved file.
type Artifact struct {
	Coordinate string
	Path       string
}

// Response carries resolved artifacts and per-dependency errors.
type Response struct {
	Artifacts []Artifact
	Errors    []string
}

func (r Request) Struct() (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]interface{}{
		"coordinates":   toList(r.Coordinates),
		"excludeGroups": toList(r.ExcludeGroups),
		"maxDepth":      float64(r.MaxDepth),
	})
}

// RequestFromStruct decodes a request. Missing fields take zero values.
func RequestFromStruct(s *structpb.Struct) Request {
	fields := s.GetFields()
	return Request{
		Coordinates:   stringList(fields["coordinates"]),
		ExcludeGroups: stringList(fields["excludeGroups"]),
		MaxDepth:      int(fields["maxDepth"].GetNumberValue()),
	}
}

func (r Response) Struct() (*structpb.Struct, error) {
	artifacts := make([]interface{}, 0, len(r.Artifacts))
	for _, a := range r.Artifacts {
		artifacts = append(artifacts, map[string]interface{}{
			"coordinate": a.Coordinate,
			"path":       a.Path,
		})
	}
	return structpb.NewStruct(map[string]interface{}{
		"artifacts": artifacts,
		"errors":    toList(r.Errors),
	})
}

func ResponseFromStruct(s *structpb.Struct) *Response {
	fields := s.GetFields()
	resp := &Response{Errors: stringList(fields["errors"])}
	for _, v := range fields["artifacts"].GetListValue().GetValues() {
		a := v.GetStructValue().GetFields()
		resp.Artifacts = append(resp.Artifacts, Artifact{
			Coordinate: a["coordinate"].GetStringValue(),
			Path:       a["path"].GetStringValue(),
		})
	}
	return resp
}

func toList(in []string) []interface{} {
	out := make([]interface{}, 0, len(in))
	for _, s := range in {
		out = append(out, s)
	}
	return out
}

func stringList(v *structpb.Value) []string {
	var out []string
	for _, item := range v.GetListValue().GetValues() {
		if s := item.GetStringValue(); s != "" {
			out = append(out, s)
		}
	}
	return out
}
