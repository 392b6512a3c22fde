package realtime

import (
	"encoding/json"
	"fmt"

	"google.golang.org/protobuf/types/known/structpb"

	"droneSurveyManagement/internal/mission"
)

// Frames are google.protobuf.Struct envelopes of the form {event, data}.
const (
	fieldEvent = "event"
	fieldData  = "data"
)

// EncodeFrame builds an envelope. Data goes through its JSON form so struct
// tags decide the field names on the wire.
func EncodeFrame(event string, data any) (*structpb.Struct, error) {
	v, err := toValue(data)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", event, err)
	}
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		fieldEvent: structpb.NewStringValue(event),
		fieldData:  v,
	}}, nil
}

// DecodeFrame splits an envelope into its event name and plain Go data
// (maps, slices, strings, float64, bool or nil).
func DecodeFrame(f *structpb.Struct) (string, any) {
	if f == nil {
		return "", nil
	}
	event := f.GetFields()[fieldEvent].GetStringValue()
	data := f.GetFields()[fieldData]
	if data == nil {
		return event, nil
	}
	return event, data.AsInterface()
}

func toValue(data any) (*structpb.Value, error) {
	if data == nil {
		return structpb.NewNullValue(), nil
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	var plain any
	if err := json.Unmarshal(raw, &plain); err != nil {
		return nil, err
	}
	return structpb.NewValue(plain)
}

// decodeInto converts frame data into a typed payload.
func decodeInto(data any, dst any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("%w: %v", mission.ErrInvalidPayload, err)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("%w: %v", mission.ErrInvalidPayload, err)
	}
	return nil
}

// entityID accepts either a bare id string or an object carrying it under key.
func entityID(data any, key string) string {
	switch v := data.(type) {
	case string:
		return v
	case map[string]any:
		s, _ := v[key].(string)
		return s
	}
	return ""
}
