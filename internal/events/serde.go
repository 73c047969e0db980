package events

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/vk/flowgrid/internal/errs"
)

// storageEvent is the on-disk envelope. The node handle is stored
// under its legacy solid_handle name.
type storageEvent struct {
	EventTypeValue    string            `json:"event_type_value"`
	RunID             string            `json:"run_id,omitempty"`
	PipelineName      string            `json:"pipeline_name"`
	SolidHandle       string            `json:"solid_handle,omitempty"`
	StepKindValue     string            `json:"step_kind_value,omitempty"`
	LoggingTags       map[string]string `json:"logging_tags,omitempty"`
	EventSpecificData json.RawMessage   `json:"event_specific_data,omitempty"`
	Message           string            `json:"message,omitempty"`
	PID               int               `json:"pid,omitempty"`
	StepKey           string            `json:"step_key,omitempty"`
}

func (e *Event) MarshalJSON() ([]byte, error) {
	se := storageEvent{
		EventTypeValue: string(e.Type),
		RunID:          e.RunID,
		PipelineName:   e.JobName,
		SolidHandle:    e.NodeHandle.String(),
		StepKindValue:  string(e.StepKind),
		LoggingTags:    e.LoggingTags,
		Message:        e.Message,
		PID:            e.PID,
		StepKey:        e.StepKey,
	}
	if e.Data != nil {
		raw, err := marshalPayload(e.Data)
		if err != nil {
			return nil, err
		}
		se.EventSpecificData = raw
	}
	return json.Marshal(se)
}

// marshalPayload tags the payload's JSON object with its storage class
// name.
func marshalPayload(p Payload) (json.RawMessage, error) {
	raw, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	m["__class__"] = p.className()
	return json.Marshal(m)
}

// Deserialize decodes one stored record, applying the
// backward-compatibility rewrites for retired event types first. A
// record of a completely unknown type degrades to an ENGINE_EVENT
// carrying the original type and message; only a malformed document is
// an error.
func Deserialize(raw []byte) (*Event, error) {
	var se storageEvent
	if err := json.Unmarshal(raw, &se); err != nil {
		return nil, &errs.DeserializationError{Message: "malformed event record", Cause: err}
	}

	var data map[string]any
	if len(se.EventSpecificData) > 0 {
		if err := json.Unmarshal(se.EventSpecificData, &data); err != nil {
			return nil, &errs.DeserializationError{Message: "malformed event_specific_data", Cause: err}
		}
	}

	t, data := handleBackCompat(se.EventTypeValue, data)

	message := se.Message
	if !t.Known() {
		message = fmt.Sprintf("Could not parse event of type %s. Original message: %s",
			se.EventTypeValue, se.Message)
		return buildEvent(se, EngineEvent, message,
			&EngineEventData{Error: &FailureInfo{Message: message}})
	}

	payload, err := decodePayload(t, data)
	if err != nil {
		// Payload shapes written by newer versions degrade the same way
		// unknown types do; only a known payload class paired with the
		// wrong event type fails loudly.
		if errors.Is(err, errUnknownPayloadShape) {
			message = fmt.Sprintf("Could not parse event of type %s. Original message: %s",
				se.EventTypeValue, se.Message)
			return buildEvent(se, EngineEvent, message,
				&EngineEventData{Error: &FailureInfo{Message: message}})
		}
		return nil, err
	}
	return buildEvent(se, t, message, payload)
}

func buildEvent(se storageEvent, t EventType, message string, payload Payload) (*Event, error) {
	e := &Event{
		Type:        t,
		RunID:       se.RunID,
		JobName:     se.PipelineName,
		StepKind:    StepKind(se.StepKindValue),
		LoggingTags: se.LoggingTags,
		Data:        payload,
		Message:     message,
		PID:         se.PID,
		StepKey:     se.StepKey,
	}
	if se.SolidHandle != "" {
		node, err := ParseNodeHandle(se.SolidHandle)
		if err != nil {
			return nil, &errs.DeserializationError{Message: "malformed solid_handle", Cause: err}
		}
		e.NodeHandle = node
		// Old records stored only the node handle; the step handle and
		// key are synthesized from it.
		e.StepHandle = NewStepHandle(node)
		if e.StepKey == "" {
			e.StepKey = e.StepHandle.Key
		}
	}
	return e, nil
}

// errUnknownPayloadShape marks payload decode failures that degrade to
// the generic engine event instead of aborting a replay.
var errUnknownPayloadShape = errors.New("unknown payload shape")

func decodePayload(t EventType, data map[string]any) (Payload, error) {
	if data == nil {
		return nil, nil
	}
	class, _ := data["__class__"].(string)
	factory, ok := payloadFactories[class]
	if !ok {
		return nil, fmt.Errorf("event_specific_data class %q: %w", class, errUnknownPayloadShape)
	}
	if expected := payloadClassFor[t]; expected != class {
		return nil, &errs.DeserializationError{
			Message: fmt.Sprintf("event type %s cannot carry payload %q", t.DisplayName(), class),
		}
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	payload := factory()
	if err := json.Unmarshal(raw, payload); err != nil {
		return nil, fmt.Errorf("decoding %s payload: %w", class, errUnknownPayloadShape)
	}
	return payload, nil
}

// handleBackCompat rewrites records stored by retired versions of the
// taxonomy into their modern equivalents.
func handleBackCompat(typeValue string, data map[string]any) (EventType, map[string]any) {
	switch typeValue {
	case "PIPELINE_PROCESS_START", "PIPELINE_PROCESS_STARTED", "PIPELINE_PROCESS_EXITED":
		return EngineEvent, map[string]any{"__class__": "EngineEventData"}

	case "ASSET_STORE_OPERATION":
		switch legacyOpName(data["op"]) {
		case "GET_ASSET", `{"__enum__": "AssetStoreOperationType.GET_ASSET"}`,
			"AssetStoreOperationType.GET_ASSET":
			return LoadedInput, map[string]any{
				"__class__":   "LoadedInputData",
				"input_name":  data["output_name"],
				"manager_key": data["asset_store_key"],
			}
		case "SET_ASSET", `{"__enum__": "AssetStoreOperationType.SET_ASSET"}`,
			"AssetStoreOperationType.SET_ASSET":
			return HandledOutput, map[string]any{
				"__class__":   "HandledOutputData",
				"output_name": data["output_name"],
				"manager_key": data["asset_store_key"],
			}
		}
		return EventType(typeValue), data

	case "STEP_MATERIALIZATION":
		rewritten := cloneWithClass(data, "StepMaterializationData")
		return AssetMaterialization, rewritten

	case "PIPELINE_INIT_FAILURE":
		rewritten := map[string]any{"__class__": "PipelineFailureData"}
		if data != nil {
			rewritten["error"] = data["error"]
		}
		return RunFailure, rewritten
	}
	return EventType(typeValue), data
}

// legacyOpName extracts the operation discriminator of an
// ASSET_STORE_OPERATION record, which old writers stored either as a
// plain string, as the serialized enum string, or as a decoded enum
// object.
func legacyOpName(op any) string {
	switch v := op.(type) {
	case string:
		return v
	case map[string]any:
		name, _ := v["__enum__"].(string)
		return name
	}
	return ""
}

func cloneWithClass(data map[string]any, class string) map[string]any {
	out := make(map[string]any, len(data)+1)
	for k, v := range data {
		out[k] = v
	}
	out["__class__"] = class
	return out
}
