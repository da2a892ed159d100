// Package protocol defines the frames exchanged with bridge subscribers.
//
// Frames are protobuf google.protobuf.Struct documents. Binary WebSocket
// frames carry the wire encoding, text frames carry protojson.
package protocol

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// EventType represents the type of event
type EventType int

const (
	EventTypeKey EventType = iota
	EventTypeCommand
	EventTypeError
	EventTypeSend
	EventTypeConnected
)

// String returns the string representation of EventType
func (et EventType) String() string {
	switch et {
	case EventTypeKey:
		return "key"
	case EventTypeCommand:
		return "command"
	case EventTypeError:
		return "error"
	case EventTypeSend:
		return "send"
	case EventTypeConnected:
		return "connected"
	default:
		return "unknown"
	}
}

// ParseEventType is the inverse of EventType.String.
func ParseEventType(s string) (EventType, error) {
	switch s {
	case "key":
		return EventTypeKey, nil
	case "command":
		return EventTypeCommand, nil
	case "error":
		return EventTypeError, nil
	case "send":
		return EventTypeSend, nil
	case "connected":
		return EventTypeConnected, nil
	default:
		return 0, fmt.Errorf("unknown event type %q", s)
	}
}

// Event is one bridge frame. Which fields are set depends on Type:
//
//	key:       Code, Index, Key, Remote
//	command:   Command, Succeeded, Data
//	error:     Message
//	send:      Remote, Key (subscriber to bridge: SEND_ONCE request)
//	connected: no fields
type Event struct {
	Type      EventType
	Code      string
	Index     int
	Key       string
	Remote    string
	Command   string
	Succeeded bool
	Data      []string
	Message   string
}

// Encode encodes the event into protobuf bytes
func (e *Event) Encode() ([]byte, error) {
	data, err := proto.Marshal(e.toProto())
	if err != nil {
		return nil, fmt.Errorf("failed to encode event: %w", err)
	}
	return data, nil
}

// Decode decodes protobuf bytes into the event
func (e *Event) Decode(data []byte) error {
	pbEvent := &structpb.Struct{}
	if err := proto.Unmarshal(data, pbEvent); err != nil {
		return fmt.Errorf("failed to decode event: %w", err)
	}
	return e.fromProto(pbEvent)
}

// EncodeJSON encodes the event as protojson text.
func (e *Event) EncodeJSON() ([]byte, error) {
	data, err := protojson.Marshal(e.toProto())
	if err != nil {
		return nil, fmt.Errorf("failed to encode event: %w", err)
	}
	return data, nil
}

// DecodeJSON decodes protojson text into the event.
func (e *Event) DecodeJSON(data []byte) error {
	pbEvent := &structpb.Struct{}
	if err := protojson.Unmarshal(data, pbEvent); err != nil {
		return fmt.Errorf("failed to decode event: %w", err)
	}
	return e.fromProto(pbEvent)
}

// toProto converts the Event to a protobuf Struct. Empty fields are
// omitted so every event type stays compact.
func (e *Event) toProto() *structpb.Struct {
	fields := map[string]*structpb.Value{
		"type": structpb.NewStringValue(e.Type.String()),
	}
	setString := func(name, v string) {
		if v != "" {
			fields[name] = structpb.NewStringValue(v)
		}
	}

	switch e.Type {
	case EventTypeKey:
		setString("code", e.Code)
		fields["index"] = structpb.NewNumberValue(float64(e.Index))
		setString("key", e.Key)
		setString("remote", e.Remote)
	case EventTypeCommand:
		setString("command", e.Command)
		fields["succeeded"] = structpb.NewBoolValue(e.Succeeded)
		data := make([]*structpb.Value, len(e.Data))
		for i, line := range e.Data {
			data[i] = structpb.NewStringValue(line)
		}
		fields["data"] = structpb.NewListValue(&structpb.ListValue{Values: data})
	case EventTypeError:
		setString("message", e.Message)
	case EventTypeSend:
		setString("remote", e.Remote)
		setString("key", e.Key)
	}
	return &structpb.Struct{Fields: fields}
}

// fromProto populates the Event from a protobuf Struct.
func (e *Event) fromProto(pbEvent *structpb.Struct) error {
	fields := pbEvent.GetFields()
	eventType, err := ParseEventType(fields["type"].GetStringValue())
	if err != nil {
		return err
	}

	*e = Event{
		Type:      eventType,
		Code:      fields["code"].GetStringValue(),
		Index:     int(fields["index"].GetNumberValue()),
		Key:       fields["key"].GetStringValue(),
		Remote:    fields["remote"].GetStringValue(),
		Command:   fields["command"].GetStringValue(),
		Succeeded: fields["succeeded"].GetBoolValue(),
		Message:   fields["message"].GetStringValue(),
	}
	for _, v := range fields["data"].GetListValue().GetValues() {
		e.Data = append(e.Data, v.GetStringValue())
	}
	return nil
}
