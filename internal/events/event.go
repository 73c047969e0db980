package events

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"

	"github.com/vk/flowgrid/internal/ctxlog"
	"github.com/vk/flowgrid/internal/errs"
)

// Event is one structured record in a run's event stream.
type Event struct {
	Type        EventType
	RunID       string
	JobName     string
	NodeHandle  *NodeHandle
	StepHandle  *StepHandle
	StepKind    StepKind
	LoggingTags map[string]string
	Data        Payload
	Message     string
	PID         int
	// StepKey is kept alongside the step handle for old records that
	// stored only the key.
	StepKey string
}

// PlanContext scopes events to one run of a job.
type PlanContext struct {
	RunID       string
	JobName     string
	LoggingTags map[string]string
}

func NewPlanContext(jobName string) *PlanContext {
	return &PlanContext{RunID: uuid.NewString(), JobName: jobName}
}

// StepContext scopes events to one step of a run.
type StepContext struct {
	Plan *PlanContext
	Step *StepHandle
	Kind StepKind
}

func (pc *PlanContext) ForStep(node *NodeHandle, kind StepKind) *StepContext {
	return &StepContext{Plan: pc, Step: NewStepHandle(node), Kind: kind}
}

// checkPayload asserts the fixed event-type/payload pairing. A
// mismatched payload is a programming error and is never coerced.
func checkPayload(t EventType, data Payload) error {
	expected, wantsPayload := payloadClassFor[t]
	if data == nil {
		if wantsPayload {
			return errs.Invariantf("event type %s requires payload %s, got none", t.DisplayName(), expected)
		}
		return nil
	}
	if !wantsPayload {
		return errs.Invariantf("event type %s carries no payload, got %s", t.DisplayName(), data.className())
	}
	if data.className() != expected {
		return errs.Invariantf("event type %s requires payload %s, got %s",
			t.DisplayName(), expected, data.className())
	}
	return nil
}

func emit(ctx context.Context, e *Event) (*Event, error) {
	if err := checkPayload(e.Type, e.Data); err != nil {
		return nil, err
	}
	if e.PID == 0 {
		e.PID = os.Getpid()
	}
	if e.StepKey == "" && e.StepHandle != nil {
		e.StepKey = e.StepHandle.Key
	}

	log := ctxlog.FromContext(ctx)
	attrs := []any{"event", e.Type.DisplayName(), "run_id", e.RunID, "job", e.JobName}
	if e.StepKey != "" {
		attrs = append(attrs, "step", e.StepKey)
	}
	if e.Type.IsFailure() {
		log.Error(e.Message, attrs...)
	} else {
		log.Debug(e.Message, attrs...)
	}
	return e, nil
}

// FromStep builds an event scoped to a step.
func FromStep(ctx context.Context, t EventType, sc *StepContext, message string, data Payload) (*Event, error) {
	return emit(ctx, &Event{
		Type:        t,
		RunID:       sc.Plan.RunID,
		JobName:     sc.Plan.JobName,
		NodeHandle:  sc.Step.Node,
		StepHandle:  sc.Step,
		StepKind:    sc.Kind,
		LoggingTags: sc.Plan.LoggingTags,
		Data:        data,
		Message:     message,
	})
}

// FromPlan builds a run-scoped event with no step association.
func FromPlan(ctx context.Context, t EventType, pc *PlanContext, message string, data Payload) (*Event, error) {
	return emit(ctx, &Event{
		Type:        t,
		RunID:       pc.RunID,
		JobName:     pc.JobName,
		LoggingTags: pc.LoggingTags,
		Data:        data,
		Message:     message,
	})
}

// FromResource builds a resource-lifecycle marker event.
func FromResource(ctx context.Context, t EventType, pc *PlanContext, message string, data *EngineEventData) (*Event, error) {
	return FromPlan(ctx, t, pc, message, data)
}

func StepStartEvent(ctx context.Context, sc *StepContext) (*Event, error) {
	return FromStep(ctx, StepStart, sc, fmt.Sprintf("Started execution of step %q.", sc.Step.Key), nil)
}

func StepSuccessEvent(ctx context.Context, sc *StepContext, durationMS float64) (*Event, error) {
	return FromStep(ctx, StepSuccess, sc,
		fmt.Sprintf("Finished execution of step %q in %.0fms.", sc.Step.Key, durationMS),
		&StepSuccessData{DurationMS: durationMS})
}

func StepFailureEvent(ctx context.Context, sc *StepContext, err error, source string) (*Event, error) {
	return FromStep(ctx, StepFailure, sc,
		fmt.Sprintf("Execution of step %q failed.", sc.Step.Key),
		&StepFailureData{Error: FailureInfoFrom(err), ErrorSource: source})
}

func StepRetryEvent(ctx context.Context, sc *StepContext, err error, secondsToWait float64) (*Event, error) {
	return FromStep(ctx, StepUpForRetry, sc,
		fmt.Sprintf("Execution of step %q failed and has requested a retry.", sc.Step.Key),
		&StepRetryData{Error: FailureInfoFrom(err), SecondsToWait: secondsToWait})
}

func StepSkippedEvent(ctx context.Context, sc *StepContext) (*Event, error) {
	return FromStep(ctx, StepSkipped, sc, fmt.Sprintf("Skipped execution of step %q.", sc.Step.Key), nil)
}

func StepRestartedEvent(ctx context.Context, sc *StepContext) (*Event, error) {
	return FromStep(ctx, StepRestarted, sc, fmt.Sprintf("Started re-execution of step %q.", sc.Step.Key), nil)
}

func StepOutputEvent(ctx context.Context, sc *StepContext, outputName, mappingKey string) (*Event, error) {
	return FromStep(ctx, StepOutput, sc,
		fmt.Sprintf("Yielded output %q of step %q.", outputName, sc.Step.Key),
		&StepOutputData{OutputName: outputName, MappingKey: mappingKey})
}

func StepInputEvent(ctx context.Context, sc *StepContext, inputName string) (*Event, error) {
	return FromStep(ctx, StepInput, sc,
		fmt.Sprintf("Got input %q of step %q.", inputName, sc.Step.Key),
		&StepInputData{InputName: inputName})
}

func StepWorkerStartingEvent(ctx context.Context, sc *StepContext) (*Event, error) {
	return FromStep(ctx, StepWorkerStarting, sc,
		fmt.Sprintf("Launching a worker for step %q.", sc.Step.Key),
		&EngineEventData{MarkerStart: "step_process_start"})
}

func StepWorkerStartedEvent(ctx context.Context, sc *StepContext) (*Event, error) {
	return FromStep(ctx, StepWorkerStarted, sc,
		fmt.Sprintf("Worker for step %q started.", sc.Step.Key),
		&EngineEventData{MarkerEnd: "step_process_start"})
}

func RunEnqueuedEvent(ctx context.Context, pc *PlanContext) (*Event, error) {
	return FromPlan(ctx, RunEnqueued, pc, fmt.Sprintf("Run of %q enqueued.", pc.JobName), nil)
}

func RunDequeuedEvent(ctx context.Context, pc *PlanContext) (*Event, error) {
	return FromPlan(ctx, RunDequeued, pc, fmt.Sprintf("Run of %q dequeued.", pc.JobName), nil)
}

func RunStartingEvent(ctx context.Context, pc *PlanContext) (*Event, error) {
	return FromPlan(ctx, RunStarting, pc, fmt.Sprintf("Run of %q starting.", pc.JobName), nil)
}

func RunStartEvent(ctx context.Context, pc *PlanContext) (*Event, error) {
	return FromPlan(ctx, RunStart, pc, fmt.Sprintf("Started execution of run for %q.", pc.JobName), nil)
}

func RunSuccessEvent(ctx context.Context, pc *PlanContext) (*Event, error) {
	return FromPlan(ctx, RunSuccess, pc, fmt.Sprintf("Finished execution of run for %q.", pc.JobName), nil)
}

func RunFailureEvent(ctx context.Context, pc *PlanContext, err error) (*Event, error) {
	return FromPlan(ctx, RunFailure, pc,
		fmt.Sprintf("Execution of run for %q failed.", pc.JobName),
		&PipelineFailureData{Error: FailureInfoFrom(err)})
}

func RunCancelingEvent(ctx context.Context, pc *PlanContext) (*Event, error) {
	return FromPlan(ctx, RunCanceling, pc, fmt.Sprintf("Run of %q canceling.", pc.JobName), nil)
}

func RunCanceledEvent(ctx context.Context, pc *PlanContext, err error) (*Event, error) {
	return FromPlan(ctx, RunCanceled, pc,
		fmt.Sprintf("Execution of run for %q canceled.", pc.JobName),
		&PipelineCanceledData{Error: FailureInfoFrom(err)})
}

func ResourceInitStartedEvent(ctx context.Context, pc *PlanContext, keys []string) (*Event, error) {
	return FromResource(ctx, ResourceInitStarted, pc,
		fmt.Sprintf("Starting initialization of resources %v.", keys),
		&EngineEventData{MarkerStart: "resources"})
}

func ResourceInitSuccessEvent(ctx context.Context, pc *PlanContext, keys []string) (*Event, error) {
	return FromResource(ctx, ResourceInitSuccess, pc,
		fmt.Sprintf("Finished initialization of resources %v.", keys),
		&EngineEventData{MarkerEnd: "resources"})
}

func ResourceInitFailureEvent(ctx context.Context, pc *PlanContext, keys []string, err error) (*Event, error) {
	return FromResource(ctx, ResourceInitFailure, pc,
		fmt.Sprintf("Initialization of resources %v failed.", keys),
		&EngineEventData{Error: FailureInfoFrom(err), MarkerEnd: "resources"})
}

func ResourceTeardownFailureEvent(ctx context.Context, pc *PlanContext, err error) (*Event, error) {
	return FromPlan(ctx, EngineEvent, pc,
		"Teardown of resources failed.",
		&EngineEventData{Error: FailureInfoFrom(err)})
}

func NewEngineEvent(ctx context.Context, pc *PlanContext, message string, data *EngineEventData) (*Event, error) {
	if data == nil {
		data = &EngineEventData{}
	}
	return FromPlan(ctx, EngineEvent, pc, message, data)
}

func HandledOutputEvent(ctx context.Context, sc *StepContext, outputName, managerKey string) (*Event, error) {
	return FromStep(ctx, HandledOutput, sc,
		fmt.Sprintf("Handled output %q using IO manager %q.", outputName, managerKey),
		&HandledOutputData{OutputName: outputName, ManagerKey: managerKey})
}

func LoadedInputEvent(ctx context.Context, sc *StepContext, inputName, managerKey, upstreamOutputName, upstreamStepKey string) (*Event, error) {
	return FromStep(ctx, LoadedInput, sc,
		fmt.Sprintf("Loaded input %q using input manager %q.", inputName, managerKey),
		&LoadedInputData{
			InputName:          inputName,
			ManagerKey:         managerKey,
			UpstreamOutputName: upstreamOutputName,
			UpstreamStepKey:    upstreamStepKey,
		})
}

func HookCompletedEvent(ctx context.Context, sc *StepContext, hookName string) (*Event, error) {
	return FromStep(ctx, HookCompleted, sc,
		fmt.Sprintf("Finished the execution of hook %q triggered for %q.", hookName, sc.Step.Key), nil)
}

func HookErroredEvent(ctx context.Context, sc *StepContext, hookName string, err error) (*Event, error) {
	return FromStep(ctx, HookErrored, sc,
		fmt.Sprintf("Execution of hook %q triggered for %q failed.", hookName, sc.Step.Key),
		&HookErroredData{Error: FailureInfoFrom(err)})
}

func HookSkippedEvent(ctx context.Context, sc *StepContext, hookName string) (*Event, error) {
	return FromStep(ctx, HookSkipped, sc,
		fmt.Sprintf("Skipped the execution of hook %q for %q.", hookName, sc.Step.Key), nil)
}

func LogsCapturedEvent(ctx context.Context, pc *PlanContext, fileKey string, stepKeys []string) (*Event, error) {
	return FromPlan(ctx, LogsCaptured, pc,
		fmt.Sprintf("Started capturing logs in process (pid: %d).", os.Getpid()),
		&ComputeLogsCaptureData{FileKey: fileKey, StepKeys: stepKeys})
}

func MaterializationEvent(ctx context.Context, sc *StepContext, data *StepMaterializationData) (*Event, error) {
	return FromStep(ctx, AssetMaterialization, sc,
		fmt.Sprintf("Materialized value %s.", data.AssetKey), data)
}

func ObservationEvent(ctx context.Context, sc *StepContext, data *AssetObservationData) (*Event, error) {
	return FromStep(ctx, AssetObservation, sc,
		fmt.Sprintf("Observed value %s.", data.AssetKey), data)
}

func MaterializationPlannedEvent(ctx context.Context, pc *PlanContext, assetKey, partition string) (*Event, error) {
	return FromPlan(ctx, AssetMaterializationPlanned, pc,
		fmt.Sprintf("%s intends to materialize asset %s.", pc.JobName, assetKey),
		&AssetMaterializationPlannedData{AssetKey: assetKey, Partition: partition})
}

func ObjectStoreOperationEvent(ctx context.Context, sc *StepContext, data *ObjectStoreOperationResultData) (*Event, error) {
	return FromStep(ctx, ObjectStoreOperation, sc,
		fmt.Sprintf("Object store operation %s for step %q.", data.Op, sc.Step.Key), data)
}

func ExpectationResultEvent(ctx context.Context, sc *StepContext, data *StepExpectationResultData) (*Event, error) {
	return FromStep(ctx, StepExpectationResult, sc,
		fmt.Sprintf("Expectation %q %s.", data.Label, passFail(data.Success)), data)
}

func passFail(ok bool) string {
	if ok {
		return "passed"
	}
	return "failed"
}

func AlertStartEvent(ctx context.Context, pc *PlanContext, message string) (*Event, error) {
	return FromPlan(ctx, AlertStart, pc, message, nil)
}

func AlertSuccessEvent(ctx context.Context, pc *PlanContext, message string) (*Event, error) {
	return FromPlan(ctx, AlertSuccess, pc, message, nil)
}

func AlertFailureEvent(ctx context.Context, pc *PlanContext, message string) (*Event, error) {
	return FromPlan(ctx, AlertFailure, pc, message, nil)
}
