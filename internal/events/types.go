// Package events defines the closed taxonomy of structured run events:
// the event types, their payload variants, constructors for each
// lifecycle point, and the storage serialization with its
// backward-compatibility rewrites.
package events

import "strings"

// EventType enumerates every event kind the system emits. The
// constant's value is the storage spelling; run-level events keep
// their legacy PIPELINE_* spelling on disk and display as RUN_*.
type EventType string

const (
	StepOutput         EventType = "STEP_OUTPUT"
	StepInput          EventType = "STEP_INPUT"
	StepFailure        EventType = "STEP_FAILURE"
	StepStart          EventType = "STEP_START"
	StepSuccess        EventType = "STEP_SUCCESS"
	StepSkipped        EventType = "STEP_SKIPPED"
	StepUpForRetry     EventType = "STEP_UP_FOR_RETRY"
	StepRestarted      EventType = "STEP_RESTARTED"
	StepWorkerStarting EventType = "STEP_WORKER_STARTING"
	StepWorkerStarted  EventType = "STEP_WORKER_STARTED"

	ResourceInitStarted EventType = "RESOURCE_INIT_STARTED"
	ResourceInitSuccess EventType = "RESOURCE_INIT_SUCCESS"
	ResourceInitFailure EventType = "RESOURCE_INIT_FAILURE"

	AssetMaterialization        EventType = "ASSET_MATERIALIZATION"
	AssetMaterializationPlanned EventType = "ASSET_MATERIALIZATION_PLANNED"
	AssetObservation            EventType = "ASSET_OBSERVATION"
	StepExpectationResult       EventType = "STEP_EXPECTATION_RESULT"

	RunEnqueued  EventType = "PIPELINE_ENQUEUED"
	RunDequeued  EventType = "PIPELINE_DEQUEUED"
	RunStarting  EventType = "PIPELINE_STARTING"
	RunStart     EventType = "PIPELINE_START"
	RunSuccess   EventType = "PIPELINE_SUCCESS"
	RunFailure   EventType = "PIPELINE_FAILURE"
	RunCanceling EventType = "PIPELINE_CANCELING"
	RunCanceled  EventType = "PIPELINE_CANCELED"

	ObjectStoreOperation EventType = "OBJECT_STORE_OPERATION"
	LoadedInput          EventType = "LOADED_INPUT"
	HandledOutput        EventType = "HANDLED_OUTPUT"

	EngineEvent EventType = "ENGINE_EVENT"

	HookCompleted EventType = "HOOK_COMPLETED"
	HookErrored   EventType = "HOOK_ERRORED"
	HookSkipped   EventType = "HOOK_SKIPPED"

	AlertStart   EventType = "ALERT_START"
	AlertSuccess EventType = "ALERT_SUCCESS"
	AlertFailure EventType = "ALERT_FAILURE"

	LogsCaptured EventType = "LOGS_CAPTURED"
)

// DisplayName is the user-facing spelling of the type; run-level
// events display with the RUN_ prefix regardless of how they are
// stored.
func (t EventType) DisplayName() string {
	if _, ok := runEvents[t]; ok {
		return "RUN_" + strings.TrimPrefix(string(t), "PIPELINE_")
	}
	return string(t)
}

// Known reports whether t is a member of the taxonomy.
func (t EventType) Known() bool {
	_, ok := allEvents[t]
	return ok
}

var allEvents = toSet(
	StepOutput, StepInput, StepFailure, StepStart, StepSuccess,
	StepSkipped, StepUpForRetry, StepRestarted, StepWorkerStarting,
	StepWorkerStarted, ResourceInitStarted, ResourceInitSuccess,
	ResourceInitFailure, AssetMaterialization,
	AssetMaterializationPlanned, AssetObservation,
	StepExpectationResult, RunEnqueued, RunDequeued, RunStarting,
	RunStart, RunSuccess, RunFailure, RunCanceling, RunCanceled,
	ObjectStoreOperation, LoadedInput, HandledOutput, EngineEvent,
	HookCompleted, HookErrored, HookSkipped, AlertStart, AlertSuccess,
	AlertFailure, LogsCaptured,
)

var stepEvents = toSet(
	StepOutput, StepInput, StepFailure, StepStart, StepSuccess,
	StepSkipped, StepUpForRetry, StepRestarted, AssetMaterialization,
	AssetObservation, StepExpectationResult, ObjectStoreOperation,
	HandledOutput, LoadedInput,
)

var failureEvents = toSet(RunFailure, RunCanceled, StepFailure)

var runEvents = toSet(
	RunEnqueued, RunDequeued, RunStarting, RunStart, RunSuccess,
	RunFailure, RunCanceling, RunCanceled,
)

var hookEvents = toSet(HookCompleted, HookErrored, HookSkipped)

var alertEvents = toSet(AlertStart, AlertSuccess, AlertFailure)

var markerEvents = toSet(
	EngineEvent, StepWorkerStarting, StepWorkerStarted,
	ResourceInitStarted, ResourceInitSuccess, ResourceInitFailure,
)

var assetEvents = toSet(
	AssetMaterialization, AssetObservation, AssetMaterializationPlanned,
)

func (t EventType) IsStepEvent() bool   { _, ok := stepEvents[t]; return ok }
func (t EventType) IsFailure() bool     { _, ok := failureEvents[t]; return ok }
func (t EventType) IsRunEvent() bool    { _, ok := runEvents[t]; return ok }
func (t EventType) IsHookEvent() bool   { _, ok := hookEvents[t]; return ok }
func (t EventType) IsAlertEvent() bool  { _, ok := alertEvents[t]; return ok }
func (t EventType) IsMarkerEvent() bool { _, ok := markerEvents[t]; return ok }
func (t EventType) IsAssetEvent() bool  { _, ok := assetEvents[t]; return ok }

func toSet(types ...EventType) map[EventType]struct{} {
	s := make(map[EventType]struct{}, len(types))
	for _, t := range types {
		s[t] = struct{}{}
	}
	return s
}

// RunStatus is the run-level status a run event projects to.
type RunStatus string

const (
	StatusNotStarted RunStatus = "NOT_STARTED"
	StatusQueued     RunStatus = "QUEUED"
	StatusStarting   RunStatus = "STARTING"
	StatusStarted    RunStatus = "STARTED"
	StatusSuccess    RunStatus = "SUCCESS"
	StatusFailure    RunStatus = "FAILURE"
	StatusCanceling  RunStatus = "CANCELING"
	StatusCanceled   RunStatus = "CANCELED"
)

var eventTypeToRunStatus = map[EventType]RunStatus{
	RunEnqueued:  StatusQueued,
	RunStarting:  StatusStarting,
	RunStart:     StatusStarted,
	RunSuccess:   StatusSuccess,
	RunFailure:   StatusFailure,
	RunCanceling: StatusCanceling,
	RunCanceled:  StatusCanceled,
}

// RunStatusFor projects a run event type onto the run status it
// implies; ok is false for types that do not change run status.
func RunStatusFor(t EventType) (RunStatus, bool) {
	s, ok := eventTypeToRunStatus[t]
	return s, ok
}
