package config

import "time"

// HTTP server defaults
const (
	DefaultListenAddr = ":8080"
	HTTPReadTimeout   = 10 * time.Second
	HTTPWriteTimeout  = 10 * time.Second
	HTTPIdleTimeout   = 60 * time.Second
	ShutdownTimeout   = 10 * time.Second
)

// Series quota defaults, applied when a declared series omits them.
const (
	DefaultMaxLength    = uint64(0) // 0 = unbounded
	DefaultMaxSizeBytes = uint64(0)
)

// Cursor/scheduler timing. Every blocking suspension point in the
// filter runtime (wait_modification, fetch/push sleeps) is bounded by
// WorkerWaitTimeout so that clearing the scheduler's continue flag is
// observed promptly.
const (
	WorkerWaitTimeout       = 200 * time.Millisecond
	NonBlockingPollInterval = 50 * time.Millisecond
)

// Built-in filter defaults, per spec.md's §6 enumerated option sets.
const (
	CounterDefaultStart     = int64(0)
	CounterDefaultStop      = int64(100)
	CounterDefaultIncrement = int64(1)
	CounterDefaultDelay     = 100 * time.Millisecond

	CSVSinkDefaultAppend        = true
	CSVSinkDefaultHeader        = false
	CSVSinkDefaultBase64        = true
	CSVSinkDefaultReplayHistory = false
	CSVSinkDefaultPopInput      = false

	HTTPPostDefaultTimeout = 10 * time.Second

	MQTTDefaultServer = "127.0.0.1"
	MQTTDefaultPort   = 1883

	DefaultMaxPendingMessages = uint64(1000)
)

// Embedded SQL backend defaults.
const (
	SQLBusyTimeout        = 5 * time.Second
	SQLCheckpointInterval = 10 * time.Second
)

// LSM backend defaults.
const (
	LSMDefaultMaxMemoryMB = 48
	LSMGCInterval         = 10 * time.Minute
	LSMGCDiscardRatio     = 0.5
)

// REST/WebSocket server defaults, for the per-series notification
// channel exposed alongside the documented REST surface.
const (
	WSReadBufferSize  = 1024
	WSWriteBufferSize = 1024
	WSPingInterval    = 30 * time.Second
	WSWriteDeadline   = 10 * time.Second
	WSReadDeadline    = 60 * time.Second

	DefaultContentLimit = 100
)
