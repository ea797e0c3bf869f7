// Package main provides the FFI bridge for the mobile notification
// extensions. Build as shared library: libaircore.a (iOS NSE, c-archive)
// or libaircore.so (Android messaging service, c-shared).
//
// The exported names keep the ABI the shipped extension binaries already
// link against.
package main

/*
#cgo CFLAGS: -Wall -Wextra
#include <stdint.h>
#include <stdlib.h>
*/
import "C"
import (
	"sync"
	"unsafe"

	"github.com/airmsg/core/internal/background"
	"github.com/airmsg/core/internal/bridge"
	"github.com/airmsg/core/internal/logging"
)

var (
	once sync.Once
	proc *bridge.Processor
)

// processor lazily wires the production pipeline behind the boundary.
func processor() *bridge.Processor {
	once.Do(func() {
		proc = bridge.NewProcessor(background.NewTransformer())
	})
	return proc
}

//export process_new_messages
// process_new_messages runs one background execution for the host.
//
// content is a borrowed NUL-terminated UTF-8 JSON string; it is not
// retained past the call. The return value is a newly allocated
// NUL-terminated JSON string owned by the caller, who must release it with
// free_string exactly once. Returns NULL on null input, invalid UTF-8, or
// any internal failure.
func process_new_messages(content *C.char) *C.char {
	if content == nil {
		return nil
	}

	result := processor().Process(C.GoString(content))
	if result == bridge.Sentinel {
		return nil
	}
	return C.CString(result)
}

//export free_string
// free_string releases a string previously returned by
// process_new_messages. NULL is a no-op. Passing any other pointer, or the
// same pointer twice, is undefined behavior.
func free_string(s *C.char) {
	if s != nil {
		C.free(unsafe.Pointer(s))
	}
}

//export init_background_logger
// init_background_logger points background logging at the given file path
// (borrowed, NUL-terminated). The first call wins; repeats and failures
// are safe no-ops for the caller.
func init_background_logger(logFilePath *C.char) {
	if logFilePath == nil {
		return
	}
	logging.Init(C.GoString(logFilePath))
}

//export rust_log
// rust_log writes one log record forwarded from the host. level is a
// severity byte (0=trace .. 4=error, anything else logs as unknown);
// message is borrowed and NUL-terminated.
func rust_log(level C.uint8_t, message *C.char) {
	if message == nil {
		return
	}
	logging.Log(logging.LevelFromCode(uint8(level)), C.GoString(message))
}

func main() {
	// Required for c-shared/c-archive build modes; never executed when
	// loaded as a library.
}
