// Command ffi builds the C-ABI shared library embedders call into: an
// opaque Engine handle for predict, and an opaque Graph handle exposing
// forward/backward directly on a JSON-built graph for testing.
//
// Every exported function recovers from panics at its own boundary and
// returns a status code instead of unwinding into the C caller.
package main

/*
#include <stdint.h>

typedef struct {
	int64_t handle;
	int32_t status;
} graphrt_handle_result;
*/
import "C"

import (
	"runtime/cgo"
	"unsafe"

	"github.com/Hirogava/graphrt/pkg/engine"
	"github.com/Hirogava/graphrt/pkg/graph"
	"github.com/Hirogava/graphrt/pkg/tensor"
)

const (
	statusOK       C.int32_t = 0
	statusError    C.int32_t = 1
	statusBadShape C.int32_t = 2
	statusBadArg   C.int32_t = 3
)

// graphrt_create loads configPath (and, if non-empty, weightsPath) into an
// Engine and returns an opaque handle plus a status code.
//
//export graphrt_create
func graphrt_create(configPath, weightsPath *C.char) (result C.graphrt_handle_result) {
	result.status = statusError
	defer func() {
		if r := recover(); r != nil {
			result.status = statusError
		}
	}()

	e, err := engine.New(C.GoString(configPath), C.GoString(weightsPath))
	if err != nil {
		return result
	}
	h := cgo.NewHandle(e)
	result.handle = C.int64_t(h)
	result.status = statusOK
	return result
}

// graphrt_destroy releases the Engine behind handle.
//
//export graphrt_destroy
func graphrt_destroy(handle C.int64_t) {
	defer func() { recover() }()
	h := cgo.Handle(handle)
	if e, ok := h.Value().(*engine.Engine); ok {
		e.Close()
	}
	h.Delete()
}

// graphrt_input_size returns the Engine's graph input element count, or -1
// if handle is invalid.
//
//export graphrt_input_size
func graphrt_input_size(handle C.int64_t) (size C.int32_t) {
	defer func() {
		if r := recover(); r != nil {
			size = -1
		}
	}()
	e, ok := cgo.Handle(handle).Value().(*engine.Engine)
	if !ok {
		return -1
	}
	return C.int32_t(e.InputSize())
}

// graphrt_output_size returns the Engine's graph output element count, or -1
// if handle is invalid.
//
//export graphrt_output_size
func graphrt_output_size(handle C.int64_t) (size C.int32_t) {
	defer func() {
		if r := recover(); r != nil {
			size = -1
		}
	}()
	e, ok := cgo.Handle(handle).Value().(*engine.Engine)
	if !ok {
		return -1
	}
	return C.int32_t(e.OutputSize())
}

// graphrt_predict runs a forward pass over xLen floats at x and writes
// outLen floats to out, returning a status code. A shape mismatch between
// xLen/outLen and the graph's input/output sizes returns statusBadShape
// without touching out.
//
//export graphrt_predict
func graphrt_predict(handle C.int64_t, x *C.float, xLen C.int32_t, out *C.float, outLen C.int32_t) (status C.int32_t) {
	status = statusError
	defer func() {
		if r := recover(); r != nil {
			status = statusError
		}
	}()

	e, ok := cgo.Handle(handle).Value().(*engine.Engine)
	if !ok {
		return statusBadArg
	}
	if int(xLen) != e.InputSize() || int(outLen) != e.OutputSize() {
		return statusBadShape
	}

	in := cFloatSliceToGo(x, int(xLen))
	result, err := e.Predict(in)
	if err != nil {
		return statusError
	}

	goFloatSliceToC(result, out, int(outLen))
	return statusOK
}

// graphrt_graph_create builds a Graph handle directly from a JSON graph
// definition string, for exercising forward/backward without a full config.
//
//export graphrt_graph_create
func graphrt_graph_create(graphJSON *C.char) (result C.graphrt_handle_result) {
	result.status = statusError
	defer func() {
		if r := recover(); r != nil {
			result.status = statusError
		}
	}()

	g, err := graph.LoadFromJSON([]byte(C.GoString(graphJSON)), nil)
	if err != nil {
		return result
	}
	h := cgo.NewHandle(g)
	result.handle = C.int64_t(h)
	result.status = statusOK
	return result
}

// graphrt_graph_destroy releases the Graph behind handle.
//
//export graphrt_graph_destroy
func graphrt_graph_destroy(handle C.int64_t) {
	defer func() { recover() }()
	cgo.Handle(handle).Delete()
}

// graphrt_graph_forward sets the graph's input, runs forward, and writes the
// loss tensor's scalar value to out.
//
//export graphrt_graph_forward
func graphrt_graph_forward(handle C.int64_t, x *C.float, xLen C.int32_t, lossOut *C.float) (status C.int32_t) {
	status = statusError
	defer func() {
		if r := recover(); r != nil {
			status = statusError
		}
	}()

	g, ok := cgo.Handle(handle).Value().(*graph.Graph)
	if !ok {
		return statusBadArg
	}
	if int(xLen) != g.InputSize() {
		return statusBadShape
	}
	if err := g.SetInput(cFloatSliceToGo(x, int(xLen))); err != nil {
		return statusBadShape
	}
	if err := g.Forward(); err != nil {
		return statusError
	}
	*lossOut = C.float(g.GetLoss())
	return statusOK
}

// graphrt_graph_backward runs the graph's backward pass.
//
//export graphrt_graph_backward
func graphrt_graph_backward(handle C.int64_t) (status C.int32_t) {
	status = statusError
	defer func() {
		if r := recover(); r != nil {
			status = statusError
		}
	}()

	g, ok := cgo.Handle(handle).Value().(*graph.Graph)
	if !ok {
		return statusBadArg
	}
	if err := g.Backward(); err != nil {
		return statusError
	}
	return statusOK
}

func cFloatSliceToGo(p *C.float, n int) []tensor.Scalar {
	if n == 0 {
		return nil
	}
	src := unsafe.Slice((*C.float)(unsafe.Pointer(p)), n)
	out := make([]tensor.Scalar, n)
	for i := range src {
		out[i] = tensor.Scalar(src[i])
	}
	return out
}

func goFloatSliceToC(src []tensor.Scalar, p *C.float, n int) {
	dst := unsafe.Slice((*C.float)(unsafe.Pointer(p)), n)
	for i := 0; i < n && i < len(src); i++ {
		dst[i] = C.float(src[i])
	}
}

func main() {}
