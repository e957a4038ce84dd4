package admingrpc

import (
	"fmt"
	"maps"
	"slices"
	"time"

	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/i-melnichenko/ha-failover/internal/failover"
	"github.com/i-melnichenko/ha-failover/internal/job"
	"github.com/i-melnichenko/ha-failover/internal/notify"
)

func newEmpty() *emptypb.Empty       { return &emptypb.Empty{} }
func newStruct() *structpb.Struct    { return &structpb.Struct{} }
func newBool() *wrapperspb.BoolValue { return &wrapperspb.BoolValue{} }
func newList() *structpb.ListValue   { return &structpb.ListValue{} }

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

func timeToPB(t time.Time) *structpb.Value {
	if t.IsZero() {
		return structpb.NewStringValue("")
	}
	return structpb.NewStringValue(t.UTC().Format(time.RFC3339Nano))
}

func timeFromPB(v *structpb.Value) time.Time {
	t, err := time.Parse(time.RFC3339Nano, v.GetStringValue())
	if err != nil {
		return time.Time{}
	}
	return t
}

func configToPB(cfg failover.Config) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"disabled":    structpb.NewBoolValue(cfg.Disabled),
		"master_node": structpb.NewStringValue(string(cfg.MasterNode)),
		"timeout":     structpb.NewNumberValue(float64(cfg.Timeout)),
	}}
}

func configFromPB(s *structpb.Struct) failover.Config {
	f := s.GetFields()
	return failover.Config{
		Disabled:   f["disabled"].GetBoolValue(),
		MasterNode: failover.MasterNode(f["master_node"].GetStringValue()),
		Timeout:    int(f["timeout"].GetNumberValue()),
	}
}

// Unset patch fields are omitted from the Struct.
func patchToPB(p failover.ConfigPatch) *structpb.Struct {
	out := &structpb.Struct{Fields: make(map[string]*structpb.Value, 3)}
	if p.Disabled != nil {
		out.Fields["disabled"] = structpb.NewBoolValue(*p.Disabled)
	}
	if p.Master != nil {
		out.Fields["master"] = structpb.NewBoolValue(*p.Master)
	}
	if p.Timeout != nil {
		out.Fields["timeout"] = structpb.NewNumberValue(float64(*p.Timeout))
	}
	return out
}

func patchFromPB(s *structpb.Struct) failover.ConfigPatch {
	var p failover.ConfigPatch
	f := s.GetFields()
	if v, ok := f["disabled"]; ok {
		b := v.GetBoolValue()
		p.Disabled = &b
	}
	if v, ok := f["master"]; ok {
		b := v.GetBoolValue()
		p.Master = &b
	}
	if v, ok := f["timeout"]; ok {
		n := int(v.GetNumberValue())
		p.Timeout = &n
	}
	return p
}

func controlToPB(action failover.ControlAction, active *bool) *structpb.Struct {
	out := &structpb.Struct{Fields: map[string]*structpb.Value{
		"action": structpb.NewStringValue(string(action)),
	}}
	if active != nil {
		out.Fields["active"] = structpb.NewBoolValue(*active)
	}
	return out
}

func controlFromPB(s *structpb.Struct) (failover.ControlAction, *bool) {
	f := s.GetFields()
	action := failover.ControlAction(f["action"].GetStringValue())
	v, ok := f["active"]
	if !ok {
		return action, nil
	}
	active := v.GetBoolValue()
	return action, &active
}

func eventToPB(ifname string, kind failover.EventKind) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"ifname": structpb.NewStringValue(ifname),
		"event":  structpb.NewStringValue(string(kind)),
	}}
}

func eventFromPB(s *structpb.Struct) (string, failover.EventKind) {
	f := s.GetFields()
	return f["ifname"].GetStringValue(), failover.EventKind(f["event"].GetStringValue())
}

func jobToPB(s job.Snapshot) *structpb.Value {
	result := ""
	if s.Result != nil {
		result = fmt.Sprint(s.Result)
	}
	return structpb.NewStructValue(&structpb.Struct{Fields: map[string]*structpb.Value{
		"id":       structpb.NewStringValue(s.ID),
		"method":   structpb.NewStringValue(s.Method),
		"lock":     structpb.NewStringValue(s.Lock),
		"args":     structpb.NewListValue(stringsToPB(s.Args)),
		"state":    structpb.NewStringValue(string(s.State)),
		"progress": structpb.NewStringValue(s.Progress),
		"result":   structpb.NewStringValue(result),
		"error":    structpb.NewStringValue(s.Error),
		"created":  timeToPB(s.Created),
		"started":  timeToPB(s.Started),
		"finished": timeToPB(s.Finished),
	}})
}

// Client-side job results are rendered as strings.
func jobFromPB(v *structpb.Value) job.Snapshot {
	f := v.GetStructValue().GetFields()
	out := job.Snapshot{
		ID:       f["id"].GetStringValue(),
		Method:   f["method"].GetStringValue(),
		Lock:     f["lock"].GetStringValue(),
		Args:     stringsFromPB(f["args"].GetListValue()),
		State:    job.State(f["state"].GetStringValue()),
		Progress: f["progress"].GetStringValue(),
		Error:    f["error"].GetStringValue(),
		Created:  timeFromPB(f["created"]),
		Started:  timeFromPB(f["started"]),
		Finished: timeFromPB(f["finished"]),
	}
	if r := f["result"].GetStringValue(); r != "" {
		out.Result = r
	}
	return out
}

func jobsToPB(jobs []job.Snapshot) *structpb.Struct {
	list := &structpb.ListValue{Values: make([]*structpb.Value, 0, len(jobs))}
	for _, j := range jobs {
		list.Values = append(list.Values, jobToPB(j))
	}
	return &structpb.Struct{Fields: map[string]*structpb.Value{"jobs": structpb.NewListValue(list)}}
}

func jobsFromPB(s *structpb.Struct) []job.Snapshot {
	values := s.GetFields()["jobs"].GetListValue().GetValues()
	out := make([]job.Snapshot, 0, len(values))
	for _, v := range values {
		out = append(out, jobFromPB(v))
	}
	return out
}

func transitionToPB(rec failover.TransitionRecord, ok bool) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"present":   structpb.NewBoolValue(ok),
		"job_id":    structpb.NewStringValue(rec.JobID),
		"interface": structpb.NewStringValue(rec.Event.Interface),
		"event":     structpb.NewStringValue(string(rec.Event.Kind)),
		"result":    structpb.NewStringValue(string(rec.Result)),
		"error":     structpb.NewStringValue(rec.Error),
		"finished":  timeToPB(rec.Finished),
	}}
}

func transitionFromPB(s *structpb.Struct) (failover.TransitionRecord, bool) {
	f := s.GetFields()
	if !f["present"].GetBoolValue() {
		return failover.TransitionRecord{}, false
	}
	return failover.TransitionRecord{
		JobID: f["job_id"].GetStringValue(),
		Event: failover.Event{
			Interface: f["interface"].GetStringValue(),
			Kind:      failover.EventKind(f["event"].GetStringValue()),
		},
		Result:   failover.Result(f["result"].GetStringValue()),
		Error:    f["error"].GetStringValue(),
		Finished: timeFromPB(f["finished"]),
	}, true
}

func mismatchToPB(m failover.DiskMismatch) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"missing_local":  structpb.NewListValue(stringsToPB(m.MissingLocal)),
		"missing_remote": structpb.NewListValue(stringsToPB(m.MissingRemote)),
	}}
}

func mismatchFromPB(s *structpb.Struct) failover.DiskMismatch {
	f := s.GetFields()
	return failover.DiskMismatch{
		MissingLocal:  stringsFromPB(f["missing_local"].GetListValue()),
		MissingRemote: stringsFromPB(f["missing_remote"].GetListValue()),
	}
}

func notificationToPB(ev notify.Event) *structpb.Struct {
	fields := &structpb.Struct{Fields: make(map[string]*structpb.Value, len(ev.Fields))}
	for _, k := range slices.Sorted(maps.Keys(ev.Fields)) {
		fields.Fields[k] = fieldValue(ev.Fields[k])
	}
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"topic":  structpb.NewStringValue(ev.Topic),
		"action": structpb.NewStringValue(ev.Action),
		"time":   timeToPB(ev.Time),
		"fields": structpb.NewStructValue(fields),
	}}
}

func notificationFromPB(s *structpb.Struct) notify.Event {
	f := s.GetFields()
	return notify.Event{
		Topic:  f["topic"].GetStringValue(),
		Action: f["action"].GetStringValue(),
		Time:   timeFromPB(f["time"]),
		Fields: f["fields"].GetStructValue().AsMap(),
	}
}

// fieldValue converts a notification field, stringifying what structpb
// cannot represent.
func fieldValue(v any) *structpb.Value {
	switch x := v.(type) {
	case []string:
		return structpb.NewListValue(stringsToPB(x))
	case time.Time:
		return timeToPB(x)
	case time.Duration:
		return structpb.NewStringValue(x.String())
	case fmt.Stringer:
		return structpb.NewStringValue(x.String())
	}
	if pv, err := structpb.NewValue(v); err == nil {
		return pv
	}
	return structpb.NewStringValue(fmt.Sprint(v))
}
