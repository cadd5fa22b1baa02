package compiler

import "text/template"

// shimTemplate generates the materialized main.go: a package main, sharing
// its package with the user's handler.go, that imports the handler SDK,
// reads the request out of guest linear memory, calls the user's Handle
// function, and writes the JSON response
// back out through the exported handler_entry/allocate pair (§2's
// `//go:wasmexport` substitution for the native `handler_entry` symbol).
var shimTemplate = template.Must(template.New("shim").Parse(`// Code generated by the gateway's compilation pipeline. DO NOT EDIT.
package main

import (
	"encoding/json"
	"unsafe"

	"{{.SDKModulePath}}"
)

var responseBuf []byte

// live holds every buffer handed out by allocate, keyed by its own address,
// so the Go GC has a reachable reference to it for as long as the host still
// needs to write into it via Memory().Write. Without this, buf has no
// reachable reference once allocate returns and the GC is free to reclaim
// and reuse its backing array before the host's write lands, corrupting the
// request envelope.
var live = map[uint32][]byte{}

//go:wasmexport allocate
func allocate(size uint32) uint32 {
	buf := make([]byte, size)
	ptr := uint32(uintptr(unsafe.Pointer(&buf[0])))
	live[ptr] = buf
	return ptr
}

//go:wasmexport deallocate
func deallocate(ptr uint32) {
	delete(live, ptr)
}

//go:wasmexport handler_entry
func handlerEntry(reqPtr, reqLen uint32) (uint32, uint32) {
	reqBytes := unsafe.Slice((*byte)(unsafe.Pointer(uintptr(reqPtr))), reqLen)

	var req handlersdk.Request
	if err := json.Unmarshal(reqBytes, &req); err != nil {
		responseBuf, _ = json.Marshal(handlersdk.Response{
			Status: 500,
			Body:   "malformed request envelope: " + err.Error(),
		})
	} else {
		resp := Handle(handlersdk.Context{}, req)
		responseBuf, _ = json.Marshal(resp)
	}

	delete(live, reqPtr)
	return uint32(uintptr(unsafe.Pointer(&responseBuf[0]))), uint32(len(responseBuf))
}

func main() {}
`))

// shimData is the template input for shimTemplate.
type shimData struct {
	SDKModulePath string
}
