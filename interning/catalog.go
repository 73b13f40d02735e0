// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package interning // import "go.opentelemetry.io/profile-ingest/interning"

import (
	"fmt"
	"slices"
	"unique"

	"github.com/ianlancetaylor/demangle"

	"go.opentelemetry.io/profile-ingest/internal/orderedset"
	"go.opentelemetry.io/profile-ingest/libpf"
	"go.opentelemetry.io/profile-ingest/libpf/xsync"
)

// MaxCallstackDepth is the maximum number of frames of a callstack.
const MaxCallstackDepth = 1024

// Callsite is a node of the callsite tree. Root nodes have depth 0 and no parent.
type Callsite struct {
	Parent libpf.CallsiteID
	Frame  libpf.FrameID
	Depth  uint32
}

type catalogState struct {
	frameIDs orderedset.OrderedSet[unique.Handle[libpf.Frame]]
	frames   []unique.Handle[libpf.Frame]

	callsiteIDs orderedset.OrderedSet[Callsite]
	callsites   []Callsite
}

// Catalog deduplicates frames and callsites across all sequences of a trace.
// Identical frames interned by different sequences share one FrameID, and
// callstacks that share a prefix share the callsites of that prefix.
type Catalog struct {
	state    xsync.RWMutex[catalogState]
	demangle bool
}

// NewCatalog returns an empty Catalog. If demangleNames is set, function names
// are demangled before frames are interned.
func NewCatalog(demangleNames bool) *Catalog {
	return &Catalog{
		state: xsync.NewRWMutex(catalogState{
			frameIDs:    orderedset.OrderedSet[unique.Handle[libpf.Frame]]{},
			callsiteIDs: orderedset.OrderedSet[Callsite]{},
		}),
		demangle: demangleNames,
	}
}

// InternFrame returns the FrameID of frame.
func (c *Catalog) InternFrame(frame libpf.Frame) libpf.FrameID {
	if c.demangle {
		name := frame.FunctionName.String()
		if demangled := demangle.Filter(name); demangled != name {
			frame.FunctionName = libpf.Intern(demangled)
		}
	}
	handle := unique.Make(frame)

	state := c.state.WLock()
	defer c.state.WUnlock(&state)
	idx, exists := state.frameIDs.AddWithCheck(handle)
	if !exists {
		state.frames = append(state.frames, handle)
	}
	return libpf.FrameID(idx)
}

// InternCallstack returns the CallsiteID of the leaf of a callstack given by its
// frames, starting with the outermost frame.
func (c *Catalog) InternCallstack(frames []libpf.FrameID) (libpf.CallsiteID, error) {
	if len(frames) == 0 {
		return 0, ErrEmptyCallstack
	}
	if len(frames) > MaxCallstackDepth {
		return 0, fmt.Errorf("%d frames: %w", len(frames), ErrDepthLimit)
	}

	state := c.state.WLock()
	defer c.state.WUnlock(&state)

	var id uint32
	for depth, frame := range frames {
		node := Callsite{Frame: frame, Depth: uint32(depth)}
		if depth > 0 {
			node.Parent = libpf.CallsiteID(id)
		}
		var exists bool
		id, exists = state.callsiteIDs.AddWithCheck(node)
		if !exists {
			state.callsites = append(state.callsites, node)
		}
	}
	return libpf.CallsiteID(id), nil
}

// Frame returns the frame with the given id.
func (c *Catalog) Frame(id libpf.FrameID) (libpf.Frame, bool) {
	state := c.state.RLock()
	defer c.state.RUnlock(&state)
	if int(id) >= len(state.frames) {
		return libpf.Frame{}, false
	}
	return state.frames[id].Value(), true
}

// Callsite returns the callsite with the given id.
func (c *Catalog) Callsite(id libpf.CallsiteID) (Callsite, bool) {
	state := c.state.RLock()
	defer c.state.RUnlock(&state)
	if int(id) >= len(state.callsites) {
		return Callsite{}, false
	}
	return state.callsites[id], true
}

// Frames returns the frames of the callstack ending in the callsite id, starting
// with the outermost frame.
func (c *Catalog) Frames(id libpf.CallsiteID) (libpf.Frames, bool) {
	state := c.state.RLock()
	defer c.state.RUnlock(&state)
	if int(id) >= len(state.callsites) {
		return nil, false
	}

	node := state.callsites[id]
	frames := make(libpf.Frames, 0, node.Depth+1)
	for {
		frames = append(frames, state.frames[node.Frame])
		if node.Depth == 0 {
			break
		}
		node = state.callsites[node.Parent]
	}
	slices.Reverse(frames)
	return frames, true
}

// Len returns the number of frames and callsites in the Catalog.
func (c *Catalog) Len() (frames, callsites int) {
	state := c.state.RLock()
	defer c.state.RUnlock(&state)
	return len(state.frames), len(state.callsites)
}
