//go:build wasip1

package handlersdk

import "unsafe"

// hostServiceCall is the guest side of the registry's multiplexed
// service_call host import: one narrow host function instead of one import
// per command, per the frozen-ABI design goal. The host writes its reply
// into the SAME linear memory the request was read from and returns a
// packed (ptr, len); we slice it back out without copying.
//
//go:wasmimport gateway service_call
func hostServiceCallRaw(reqPtr, reqLen uint32) (respPtr, respLen uint32)

func hostServiceCall(envelope []byte) []byte {
	reqPtr := uint32(uintptr(unsafe.Pointer(&envelope[0])))
	respPtr, respLen := hostServiceCallRaw(reqPtr, uint32(len(envelope)))
	return unsafe.Slice((*byte)(unsafe.Pointer(uintptr(respPtr))), respLen)
}
