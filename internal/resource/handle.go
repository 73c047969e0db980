package resource

import "sync/atomic"

// Handle identifies one resource declaration for the lifetime of the
// process. Nested references and init-time registries are keyed by
// handle, so two declarations built from identical inputs are still
// distinct resources.
type Handle int64

var handleSeq atomic.Int64

func newHandle() Handle { return Handle(handleSeq.Add(1)) }
