// internal/events/handle.go
package events

import (
	"fmt"
	"regexp"
	"strings"
)

// nameRegex validates a single segment of a node path.
var nameRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// NodeHandle addresses a node inside a job, as a dot-separated path of
// names, e.g. `outer.inner.transform`.
type NodeHandle struct {
	Path []string
}

// ParseNodeHandle parses the canonical dotted representation.
func ParseNodeHandle(raw string) (*NodeHandle, error) {
	if raw == "" {
		return nil, fmt.Errorf("node handle cannot be empty")
	}
	parts := strings.Split(raw, ".")
	for _, part := range parts {
		if !nameRegex.MatchString(part) {
			return nil, fmt.Errorf("invalid node handle segment: %q", part)
		}
	}
	return &NodeHandle{Path: parts}, nil
}

func (h *NodeHandle) String() string {
	if h == nil {
		return ""
	}
	return strings.Join(h.Path, ".")
}

// Name is the leaf segment of the path.
func (h *NodeHandle) Name() string {
	if h == nil || len(h.Path) == 0 {
		return ""
	}
	return h.Path[len(h.Path)-1]
}

// StepHandle identifies one execution step. Its key defaults to the
// node handle's dotted path; old records that stored only a node
// handle synthesize their step handle from it.
type StepHandle struct {
	Node *NodeHandle
	Key  string
}

func NewStepHandle(node *NodeHandle) *StepHandle {
	return &StepHandle{Node: node, Key: node.String()}
}

// StepKind classifies what a step executes.
type StepKind string

const (
	KindCompute           StepKind = "COMPUTE"
	KindUnresolvedMapped  StepKind = "UNRESOLVED_MAPPED"
	KindUnresolvedCollect StepKind = "UNRESOLVED_COLLECT"
)
