package events

// Payload is the closed set of event-specific data variants. Each
// event type pairs with exactly one payload kind (or none); the
// pairing is asserted at construction and re-checked on deserialize.
type Payload interface {
	eventPayload()
	className() string
}

// FailureInfo is a serializable description of an error, with optional
// nested cause.
type FailureInfo struct {
	Message string       `json:"message"`
	Stack   []string     `json:"stack,omitempty"`
	Cause   *FailureInfo `json:"cause,omitempty"`
}

// FailureInfoFrom captures an error value for storage.
func FailureInfoFrom(err error) *FailureInfo {
	if err == nil {
		return nil
	}
	return &FailureInfo{Message: err.Error()}
}

type StepOutputData struct {
	OutputName string         `json:"output_name"`
	MappingKey string         `json:"mapping_key,omitempty"`
	Metadata   map[string]any `json:"metadata_entries,omitempty"`
}

type StepInputData struct {
	InputName string `json:"input_name"`
}

type StepSuccessData struct {
	DurationMS float64 `json:"duration_ms"`
}

type StepFailureData struct {
	Error       *FailureInfo `json:"error,omitempty"`
	ErrorSource string       `json:"error_source,omitempty"`
}

type StepRetryData struct {
	Error         *FailureInfo `json:"error,omitempty"`
	SecondsToWait float64      `json:"seconds_to_wait,omitempty"`
}

type EngineEventData struct {
	Metadata    map[string]any `json:"metadata_entries,omitempty"`
	Error       *FailureInfo   `json:"error,omitempty"`
	MarkerStart string         `json:"marker_start,omitempty"`
	MarkerEnd   string         `json:"marker_end,omitempty"`
}

type PipelineFailureData struct {
	Error *FailureInfo `json:"error,omitempty"`
}

type PipelineCanceledData struct {
	Error *FailureInfo `json:"error,omitempty"`
}

type HookErroredData struct {
	Error *FailureInfo `json:"error,omitempty"`
}

type HandledOutputData struct {
	OutputName string         `json:"output_name"`
	ManagerKey string         `json:"manager_key"`
	Metadata   map[string]any `json:"metadata_entries,omitempty"`
}

type LoadedInputData struct {
	InputName          string `json:"input_name"`
	ManagerKey         string `json:"manager_key"`
	UpstreamOutputName string `json:"upstream_output_name,omitempty"`
	UpstreamStepKey    string `json:"upstream_step_key,omitempty"`
}

// ComputeLogsCaptureData stores its file key under the legacy log_key
// storage name.
type ComputeLogsCaptureData struct {
	FileKey     string   `json:"log_key"`
	StepKeys    []string `json:"step_keys,omitempty"`
	ExternalURL string   `json:"external_url,omitempty"`
}

type StepMaterializationData struct {
	AssetKey    string         `json:"asset_key"`
	Partition   string         `json:"partition,omitempty"`
	Description string         `json:"description,omitempty"`
	Metadata    map[string]any `json:"metadata_entries,omitempty"`
}

type AssetObservationData struct {
	AssetKey  string         `json:"asset_key"`
	Partition string         `json:"partition,omitempty"`
	Metadata  map[string]any `json:"metadata_entries,omitempty"`
}

type AssetMaterializationPlannedData struct {
	AssetKey  string `json:"asset_key"`
	Partition string `json:"partition,omitempty"`
}

type ObjectStoreOperationResultData struct {
	Op        string         `json:"op"`
	ValueName string         `json:"value_name,omitempty"`
	Address   string         `json:"address,omitempty"`
	Metadata  map[string]any `json:"metadata_entries,omitempty"`
}

type StepExpectationResultData struct {
	Success     bool           `json:"success"`
	Label       string         `json:"label,omitempty"`
	Description string         `json:"description,omitempty"`
	Metadata    map[string]any `json:"metadata_entries,omitempty"`
}

func (*StepOutputData) eventPayload()                  {}
func (*StepInputData) eventPayload()                   {}
func (*StepSuccessData) eventPayload()                 {}
func (*StepFailureData) eventPayload()                 {}
func (*StepRetryData) eventPayload()                   {}
func (*EngineEventData) eventPayload()                 {}
func (*PipelineFailureData) eventPayload()             {}
func (*PipelineCanceledData) eventPayload()            {}
func (*HookErroredData) eventPayload()                 {}
func (*HandledOutputData) eventPayload()               {}
func (*LoadedInputData) eventPayload()                 {}
func (*ComputeLogsCaptureData) eventPayload()          {}
func (*StepMaterializationData) eventPayload()         {}
func (*AssetObservationData) eventPayload()            {}
func (*AssetMaterializationPlannedData) eventPayload() {}
func (*ObjectStoreOperationResultData) eventPayload()  {}
func (*StepExpectationResultData) eventPayload()       {}

func (*StepOutputData) className() string                  { return "StepOutputData" }
func (*StepInputData) className() string                   { return "StepInputData" }
func (*StepSuccessData) className() string                 { return "StepSuccessData" }
func (*StepFailureData) className() string                 { return "StepFailureData" }
func (*StepRetryData) className() string                   { return "StepRetryData" }
func (*EngineEventData) className() string                 { return "EngineEventData" }
func (*PipelineFailureData) className() string             { return "PipelineFailureData" }
func (*PipelineCanceledData) className() string            { return "PipelineCanceledData" }
func (*HookErroredData) className() string                 { return "HookErroredData" }
func (*HandledOutputData) className() string               { return "HandledOutputData" }
func (*LoadedInputData) className() string                 { return "LoadedInputData" }
func (*ComputeLogsCaptureData) className() string          { return "ComputeLogsCaptureData" }
func (*StepMaterializationData) className() string         { return "StepMaterializationData" }
func (*AssetObservationData) className() string            { return "AssetObservationData" }
func (*AssetMaterializationPlannedData) className() string { return "AssetMaterializationPlannedData" }
func (*ObjectStoreOperationResultData) className() string  { return "ObjectStoreOperationResultData" }
func (*StepExpectationResultData) className() string       { return "StepExpectationResultData" }

// payloadFactories constructs an empty payload by its storage class
// name, for deserialization.
var payloadFactories = map[string]func() Payload{
	"StepOutputData":                  func() Payload { return &StepOutputData{} },
	"StepInputData":                   func() Payload { return &StepInputData{} },
	"StepSuccessData":                 func() Payload { return &StepSuccessData{} },
	"StepFailureData":                 func() Payload { return &StepFailureData{} },
	"StepRetryData":                   func() Payload { return &StepRetryData{} },
	"EngineEventData":                 func() Payload { return &EngineEventData{} },
	"PipelineFailureData":             func() Payload { return &PipelineFailureData{} },
	"PipelineCanceledData":            func() Payload { return &PipelineCanceledData{} },
	"HookErroredData":                 func() Payload { return &HookErroredData{} },
	"HandledOutputData":               func() Payload { return &HandledOutputData{} },
	"LoadedInputData":                 func() Payload { return &LoadedInputData{} },
	"ComputeLogsCaptureData":          func() Payload { return &ComputeLogsCaptureData{} },
	"StepMaterializationData":         func() Payload { return &StepMaterializationData{} },
	"AssetObservationData":            func() Payload { return &AssetObservationData{} },
	"AssetMaterializationPlannedData": func() Payload { return &AssetMaterializationPlannedData{} },
	"ObjectStoreOperationResultData":  func() Payload { return &ObjectStoreOperationResultData{} },
	"StepExpectationResultData":       func() Payload { return &StepExpectationResultData{} },
}

// payloadClassFor is the fixed pairing of event type to payload class.
// Types absent from the table carry no payload.
var payloadClassFor = map[EventType]string{
	StepOutput:                  "StepOutputData",
	StepInput:                   "StepInputData",
	StepSuccess:                 "StepSuccessData",
	StepFailure:                 "StepFailureData",
	StepUpForRetry:              "StepRetryData",
	StepWorkerStarting:          "EngineEventData",
	StepWorkerStarted:           "EngineEventData",
	ResourceInitStarted:         "EngineEventData",
	ResourceInitSuccess:         "EngineEventData",
	ResourceInitFailure:         "EngineEventData",
	EngineEvent:                 "EngineEventData",
	RunFailure:                  "PipelineFailureData",
	RunCanceled:                 "PipelineCanceledData",
	HookErrored:                 "HookErroredData",
	HandledOutput:               "HandledOutputData",
	LoadedInput:                 "LoadedInputData",
	LogsCaptured:                "ComputeLogsCaptureData",
	AssetMaterialization:        "StepMaterializationData",
	AssetObservation:            "AssetObservationData",
	AssetMaterializationPlanned: "AssetMaterializationPlannedData",
	ObjectStoreOperation:        "ObjectStoreOperationResultData",
	StepExpectationResult:       "StepExpectationResultData",
}
