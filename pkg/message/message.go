// Package message defines the in-transit form of a time series item and
// the timestamp resolution policy applied when it is appended.
package message

import (
	"errors"
	"time"
)

// TimestampType selects how a Writer resolves the concrete timestamp of
// an appended Message.
type TimestampType int

const (
	// Default substitutes the series' declared policy and re-resolves.
	Default TimestampType = iota
	// Fixed uses Message.Timestamp verbatim.
	Fixed
	// Sequence uses last_timestamp+1, or 0 if the series is empty.
	Sequence
	// ClockNs uses the current wall clock in nanoseconds since epoch.
	ClockNs
	// ClockMs uses the current wall clock in milliseconds since epoch.
	ClockMs
	// ClockS uses the current wall clock in seconds since epoch.
	ClockS
)

func (t TimestampType) String() string {
	switch t {
	case Default:
		return "Default"
	case Fixed:
		return "Fixed"
	case Sequence:
		return "Sequence"
	case ClockNs:
		return "ClockNs"
	case ClockMs:
		return "ClockMs"
	case ClockS:
		return "ClockS"
	default:
		return "Unknown"
	}
}

// ErrDefaultPolicyLoop is returned if resolution of Default keeps
// yielding Default (a misconfigured series with no declared policy).
var ErrDefaultPolicyLoop = errors.New("message: series declared policy resolves to Default")

// Message is the in-transit form of an Item plus a resolution policy.
type Message struct {
	TimestampType TimestampType
	Timestamp     int64 // valid only when TimestampType == Fixed
	Metadata      string
	Value         []byte
}

// NowFunc returns the current time; overridable in tests.
var NowFunc = time.Now

// Resolve computes the concrete timestamp to append, given the series'
// declared default policy and its current last_timestamp (hasLast is
// false if the series has never been appended to).
//
// This mirrors TimeSeriesWriter::Transaction::Append's resolution
// switch: Fixed passes through, clock policies sample the wall clock,
// Sequence increments the high-water mark, and Default substitutes the
// series policy before re-resolving once.
func Resolve(policyType TimestampType, fixed int64, seriesPolicy TimestampType, lastTimestamp int64, hasLast bool) (int64, error) {
	switch policyType {
	case Fixed:
		return fixed, nil

	case ClockNs:
		return NowFunc().UnixNano(), nil

	case ClockMs:
		return NowFunc().UnixNano() / int64(time.Millisecond), nil

	case ClockS:
		return NowFunc().Unix(), nil

	case Sequence:
		if hasLast {
			return lastTimestamp + 1, nil
		}
		return 0, nil

	case Default:
		if seriesPolicy == Default {
			return 0, ErrDefaultPolicyLoop
		}
		return Resolve(seriesPolicy, fixed, seriesPolicy, lastTimestamp, hasLast)

	default:
		return 0, ErrDefaultPolicyLoop
	}
}

// ResolveTimestamp is a convenience wrapper for resolving a Message
// against a series' declared policy and current last_timestamp.
func (m Message) ResolveTimestamp(seriesPolicy TimestampType, lastTimestamp int64, hasLast bool) (int64, error) {
	return Resolve(m.TimestampType, m.Timestamp, seriesPolicy, lastTimestamp, hasLast)
}
