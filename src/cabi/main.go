// Command cabi builds the bridge as a C shared library:
//
//	go build -buildmode=c-shared -o libfpbridge.so ./src/cabi
//
// Callers own the returned string and must hand it back to free_fingerprint.
// Configuration is read from the file named by $FPBRIDGE_CONFIG, or the
// built-in defaults when it is unset.
package main

/*
#include <stdlib.h>
*/
import "C"

import (
	"context"
	"log/slog"
	"sync"
	"unsafe"

	"github.com/contre95/fpbridge/src/app"
	"github.com/contre95/fpbridge/src/features/config"
	"github.com/contre95/fpbridge/src/features/logging"
)

var (
	bridgeOnce sync.Once
	bridgeApp  *app.App
	bridgeErr  error
)

func bridge() (*app.App, error) {
	bridgeOnce.Do(func() {
		cfg, err := config.FromEnv()
		if err != nil {
			bridgeErr = err
			return
		}
		slog.SetDefault(logging.SetupLogger(cfg))
		bridgeApp, bridgeErr = app.Build(cfg)
		if bridgeErr != nil {
			slog.Error("Failed to build fingerprint bridge", "error", bridgeErr)
		}
	})
	return bridgeApp, bridgeErr
}

// fingerprintPath is the Go side of get_fingerprint_from_file.
func fingerprintPath(path string) (string, bool) {
	a, err := bridge()
	if err != nil {
		return "", false
	}
	return a.Fingerprints.Fingerprint(context.Background(), path)
}

//export get_fingerprint_from_file
func get_fingerprint_from_file(path *C.char) *C.char {
	if path == nil {
		return nil
	}
	fp, ok := fingerprintPath(C.GoString(path))
	if !ok {
		return nil
	}
	return C.CString(fp)
}

//export free_fingerprint
func free_fingerprint(fp *C.char) {
	if fp != nil {
		C.free(unsafe.Pointer(fp))
	}
}

func main() {}
