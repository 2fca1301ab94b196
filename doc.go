// Package xproj adds coordinate reference system awareness to labeled
// Datasets and DataArrays.
//
// A CRS is attached to an object through a scalar coordinate (usually
// "spatial_ref") indexed by a CRSIndex:
//
//	ds, err := xproj.Proj(ds).AssignCRS(map[string]any{"spatial_ref": "EPSG:4326"})
//	c, err := xproj.Proj(ds).CRS()
//
// Index types from other packages take part by implementing CRSAwareIndex
// and, optionally, CRSSettableIndex. Accessors that depend on the CRS are
// notified of new assignments once registered with RegisterGeoAccessor.
//
// xproj only tracks which CRS applies to which coordinates. It never
// transforms coordinates or resamples data.
package xproj

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/qri-io/xproj/config"
	"github.com/qri-io/xproj/logging"
)

// Version of the module, reported in log records.
const Version = "0.1.0"

var (
	logger        atomic.Pointer[slog.Logger]
	defaultLogger = sync.OnceValue(func() *slog.Logger {
		return logging.NewStructuredLogger("xproj", Version, config.Get().LogLevel)
	})
)

// SetLogger replaces the logger non-fatal warnings are written to. A nil
// logger restores the default stderr logger.
func SetLogger(l *slog.Logger) {
	logger.Store(l)
}

func getLogger() *slog.Logger {
	if l := logger.Load(); l != nil {
		return l
	}
	return defaultLogger()
}
