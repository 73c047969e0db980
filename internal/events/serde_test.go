package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/flowgrid/internal/errs"
)

func TestSerde_StepSuccessRoundTrip(t *testing.T) {
	pc := NewPlanContext("etl")
	node, err := ParseNodeHandle("outer.transform")
	require.NoError(t, err)
	sc := pc.ForStep(node, KindCompute)

	original, err := StepSuccessEvent(context.Background(), sc, 42.5)
	require.NoError(t, err)

	raw, err := json.Marshal(original)
	require.NoError(t, err)

	// The stored envelope keeps the legacy field names.
	var envelope map[string]any
	require.NoError(t, json.Unmarshal(raw, &envelope))
	assert.Equal(t, "STEP_SUCCESS", envelope["event_type_value"])
	assert.Equal(t, "etl", envelope["pipeline_name"])
	assert.Equal(t, "outer.transform", envelope["solid_handle"])
	data := envelope["event_specific_data"].(map[string]any)
	assert.Equal(t, "StepSuccessData", data["__class__"])

	decoded, err := Deserialize(raw)
	require.NoError(t, err)
	assert.Equal(t, original.Type, decoded.Type)
	assert.Equal(t, original.RunID, decoded.RunID)
	assert.Equal(t, original.JobName, decoded.JobName)
	assert.Equal(t, original.StepKey, decoded.StepKey)
	assert.Equal(t, original.NodeHandle.Path, decoded.NodeHandle.Path)
	assert.Equal(t, original.StepKind, decoded.StepKind)
	require.IsType(t, &StepSuccessData{}, decoded.Data)
	assert.Equal(t, 42.5, decoded.Data.(*StepSuccessData).DurationMS)
}

func TestSerde_FailurePayloadRoundTrip(t *testing.T) {
	pc := NewPlanContext("etl")
	original, err := RunFailureEvent(context.Background(), pc, errors.New("disk full"))
	require.NoError(t, err)

	raw, err := json.Marshal(original)
	require.NoError(t, err)

	decoded, err := Deserialize(raw)
	require.NoError(t, err)
	require.IsType(t, &PipelineFailureData{}, decoded.Data)
	assert.Equal(t, "disk full", decoded.Data.(*PipelineFailureData).Error.Message)
	assert.Nil(t, decoded.NodeHandle)
}

func TestDeserialize_UnknownTypeDegradesToEngineEvent(t *testing.T) {
	raw := []byte(`{"event_type_value":"SOME_FUTURE_EVENT","run_id":"r1","pipeline_name":"etl","message":"original text"}`)

	e, err := Deserialize(raw)
	require.NoError(t, err)
	assert.Equal(t, EngineEvent, e.Type)
	assert.Equal(t, "r1", e.RunID)
	assert.Contains(t, e.Message, "SOME_FUTURE_EVENT")
	assert.Contains(t, e.Message, "original text")
	require.IsType(t, &EngineEventData{}, e.Data)
	assert.Contains(t, e.Data.(*EngineEventData).Error.Message, "SOME_FUTURE_EVENT")
}

func TestDeserialize_MalformedRecord(t *testing.T) {
	_, err := Deserialize([]byte(`{not json`))
	var desErr *errs.DeserializationError
	require.ErrorAs(t, err, &desErr)
	assert.Contains(t, desErr.Message, "malformed")
}

func TestDeserialize_UnknownPayloadClassDegrades(t *testing.T) {
	// A payload shape written by a newer version degrades the same way
	// an unknown type does instead of aborting a replay.
	raw := []byte(`{"event_type_value":"STEP_SUCCESS","run_id":"r1","pipeline_name":"etl",` +
		`"solid_handle":"transform","message":"done",` +
		`"event_specific_data":{"__class__":"FuturePayloadData","shiny":true}}`)

	e, err := Deserialize(raw)
	require.NoError(t, err)
	assert.Equal(t, EngineEvent, e.Type)
	assert.Equal(t, "r1", e.RunID)
	assert.Contains(t, e.Message, "STEP_SUCCESS")
	assert.Contains(t, e.Message, "done")
	require.IsType(t, &EngineEventData{}, e.Data)
}

func TestDeserialize_UndecodablePayloadDegrades(t *testing.T) {
	// Known class, field of the wrong shape.
	raw := []byte(`{"event_type_value":"STEP_SUCCESS","pipeline_name":"etl","solid_handle":"transform",` +
		`"event_specific_data":{"__class__":"StepSuccessData","duration_ms":"not-a-number"}}`)

	e, err := Deserialize(raw)
	require.NoError(t, err)
	assert.Equal(t, EngineEvent, e.Type)
	assert.Contains(t, e.Message, "STEP_SUCCESS")
}

func TestDeserialize_PayloadClassMismatch(t *testing.T) {
	raw := []byte(`{"event_type_value":"STEP_SUCCESS","pipeline_name":"etl","event_specific_data":{"__class__":"StepFailureData"}}`)

	_, err := Deserialize(raw)
	var desErr *errs.DeserializationError
	require.ErrorAs(t, err, &desErr)
	assert.Contains(t, desErr.Message, "STEP_SUCCESS")
}

func TestDeserialize_SynthesizesStepHandle(t *testing.T) {
	// Old records carried only the node handle.
	raw := []byte(`{"event_type_value":"STEP_START","pipeline_name":"etl","solid_handle":"outer.inner"}`)

	e, err := Deserialize(raw)
	require.NoError(t, err)
	require.NotNil(t, e.StepHandle)
	assert.Equal(t, "outer.inner", e.StepHandle.Key)
	assert.Equal(t, "outer.inner", e.StepKey)
}

func TestBackCompat_RetiredProcessEvents(t *testing.T) {
	for _, legacy := range []string{
		"PIPELINE_PROCESS_START", "PIPELINE_PROCESS_STARTED", "PIPELINE_PROCESS_EXITED",
	} {
		t.Run(legacy, func(t *testing.T) {
			raw := []byte(`{"event_type_value":"` + legacy + `","pipeline_name":"etl","message":"worker up"}`)

			e, err := Deserialize(raw)
			require.NoError(t, err)
			assert.Equal(t, EngineEvent, e.Type)
			assert.Equal(t, "worker up", e.Message)
			assert.IsType(t, &EngineEventData{}, e.Data)
		})
	}
}

func TestBackCompat_AssetStoreOperation(t *testing.T) {
	testCases := []struct {
		name string
		op   string
	}{
		{name: "plain string", op: `"GET_ASSET"`},
		{name: "serialized enum string", op: `"{\"__enum__\": \"AssetStoreOperationType.GET_ASSET\"}"`},
		{name: "decoded enum object", op: `{"__enum__":"AssetStoreOperationType.GET_ASSET"}`},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			raw := []byte(`{"event_type_value":"ASSET_STORE_OPERATION","pipeline_name":"etl","solid_handle":"load",` +
				`"event_specific_data":{"op":` + tc.op + `,"output_name":"result","asset_store_key":"fs_store"}}`)

			e, err := Deserialize(raw)
			require.NoError(t, err)
			assert.Equal(t, LoadedInput, e.Type)
			data := e.Data.(*LoadedInputData)
			assert.Equal(t, "result", data.InputName)
			assert.Equal(t, "fs_store", data.ManagerKey)
		})
	}

	t.Run("set rewrites to handled output", func(t *testing.T) {
		raw := []byte(`{"event_type_value":"ASSET_STORE_OPERATION","pipeline_name":"etl","solid_handle":"store",` +
			`"event_specific_data":{"op":"SET_ASSET","output_name":"result","asset_store_key":"fs_store"}}`)

		e, err := Deserialize(raw)
		require.NoError(t, err)
		assert.Equal(t, HandledOutput, e.Type)
		data := e.Data.(*HandledOutputData)
		assert.Equal(t, "result", data.OutputName)
		assert.Equal(t, "fs_store", data.ManagerKey)
	})
}

func TestBackCompat_StepMaterialization(t *testing.T) {
	raw := []byte(`{"event_type_value":"STEP_MATERIALIZATION","pipeline_name":"etl","solid_handle":"emit",` +
		`"event_specific_data":{"__class__":"StepMaterializationData","asset_key":"warehouse.users","partition":"2024-01-01"}}`)

	e, err := Deserialize(raw)
	require.NoError(t, err)
	assert.Equal(t, AssetMaterialization, e.Type)
	data := e.Data.(*StepMaterializationData)
	assert.Equal(t, "warehouse.users", data.AssetKey)
	assert.Equal(t, "2024-01-01", data.Partition)
}

func TestBackCompat_PipelineInitFailure(t *testing.T) {
	raw := []byte(`{"event_type_value":"PIPELINE_INIT_FAILURE","run_id":"r9","pipeline_name":"etl",` +
		`"event_specific_data":{"error":{"message":"resource exploded"}}}`)

	e, err := Deserialize(raw)
	require.NoError(t, err)
	assert.Equal(t, RunFailure, e.Type)
	data := e.Data.(*PipelineFailureData)
	require.NotNil(t, data.Error)
	assert.Equal(t, "resource exploded", data.Error.Message)
}
