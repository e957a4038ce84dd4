package peergrpc

import (
	"encoding/base64"
	"fmt"
	"maps"
	"slices"
	"time"

	"google.golang.org/protobuf/types/known/durationpb"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/i-melnichenko/ha-failover/internal/failover"
)

func newEmpty() *emptypb.Empty           { return &emptypb.Empty{} }
func newStruct() *structpb.Struct        { return &structpb.Struct{} }
func newString() *wrapperspb.StringValue { return &wrapperspb.StringValue{} }
func newBool() *wrapperspb.BoolValue     { return &wrapperspb.BoolValue{} }
func newDuration() *durationpb.Duration  { return &durationpb.Duration{} }
func newList() *structpb.ListValue       { return &structpb.ListValue{} }

func stringsToPB(values []string) *structpb.ListValue {
	out := &structpb.ListValue{Values: make([]*structpb.Value, 0, len(values))}
	for _, v := range values {
		out.Values = append(out.Values, structpb.NewStringValue(v))
	}
	return out
}

func stringsFromPB(list *structpb.ListValue) []string {
	out := make([]string, 0, len(list.GetValues()))
	for _, v := range list.GetValues() {
		out = append(out, v.GetStringValue())
	}
	return out
}

func stringMapToPB(m map[string]string) *structpb.Struct {
	out := &structpb.Struct{Fields: make(map[string]*structpb.Value, len(m))}
	for _, k := range slices.Sorted(maps.Keys(m)) {
		out.Fields[k] = structpb.NewStringValue(m[k])
	}
	return out
}

func stringMapFromPB(s *structpb.Struct) map[string]string {
	out := make(map[string]string, len(s.GetFields()))
	for k, v := range s.GetFields() {
		out[k] = v.GetStringValue()
	}
	return out
}

func vrrpStatesToPB(states map[string]failover.VRRPState) *structpb.Struct {
	m := make(map[string]string, len(states))
	for k, v := range states {
		m[k] = string(v)
	}
	return stringMapToPB(m)
}

func vrrpStatesFromPB(s *structpb.Struct) map[string]failover.VRRPState {
	out := make(map[string]failover.VRRPState, len(s.GetFields()))
	for k, v := range stringMapFromPB(s) {
		out[k] = failover.VRRPState(v)
	}
	return out
}

// File chunks travel as a Struct; data is base64 encoded.
func fileChunkToPB(c failover.FileChunk) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"path":   structpb.NewStringValue(c.Path),
		"data":   structpb.NewStringValue(base64.StdEncoding.EncodeToString(c.Data)),
		"mode":   structpb.NewNumberValue(float64(c.Mode)),
		"append": structpb.NewBoolValue(c.Append),
	}}
}

func fileChunkFromPB(s *structpb.Struct) (failover.FileChunk, error) {
	f := s.GetFields()
	data, err := base64.StdEncoding.DecodeString(f["data"].GetStringValue())
	if err != nil {
		return failover.FileChunk{}, fmt.Errorf("%w: file chunk data: %w", failover.ErrInvalidArgument, err)
	}
	return failover.FileChunk{
		Path:   f["path"].GetStringValue(),
		Data:   data,
		Mode:   uint32(f["mode"].GetNumberValue()),
		Append: f["append"].GetBoolValue(),
	}, nil
}

func serviceControlToPB(verb, service string) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"verb":    structpb.NewStringValue(verb),
		"service": structpb.NewStringValue(service),
	}}
}

func serviceControlFromPB(s *structpb.Struct) (verb, service string) {
	f := s.GetFields()
	return f["verb"].GetStringValue(), f["service"].GetStringValue()
}

func durationFromPB(d *durationpb.Duration) time.Duration {
	if d == nil {
		return 0
	}
	return d.AsDuration()
}
