package types

import (
	"time"
	"unicode/utf8"
)

// Field bounds of a MatchRecord, in bytes. They leave room for four bytes
// per character of the corresponding table column.
const (
	MaxSignatureNameBytes = 4 * 100
	MaxUserBytes          = 4 * 32
	MaxHostBytes          = 4 * 255
	MaxEngineVersionBytes = 10
)

// NullInt is an integer that may be unknown.
type NullInt struct {
	Value int64 `json:"value"`
	Valid bool  `json:"valid"`
}

// Int returns a known NullInt.
func Int(v int64) NullInt { return NullInt{Value: v, Valid: true} }

// MatchRecord describes one positive detection: when it happened, which
// signature fired, who asked for the scan and which engine answered.
type MatchRecord struct {
	Timestamp     time.Time `json:"timestamp"`
	SignatureName string    `json:"signature_name"`
	User          string    `json:"user"`
	Host          string    `json:"host"`
	EngineVersion string    `json:"engine_version"`
	Signatures    NullInt   `json:"signatures"`
}

// NewMatchRecord builds a record stamped at ts (second resolution, UTC) with
// every string field clipped to its bound.
func NewMatchRecord(ts time.Time, name, user, host, engineVersion string, signatures NullInt) MatchRecord {
	return MatchRecord{
		Timestamp:     ts.UTC().Truncate(time.Second),
		SignatureName: Clip(name, MaxSignatureNameBytes),
		User:          Clip(user, MaxUserBytes),
		Host:          Clip(host, MaxHostBytes),
		EngineVersion: Clip(engineVersion, MaxEngineVersionBytes),
		Signatures:    signatures,
	}
}

// Clip shortens s to at most n bytes without splitting a UTF-8 sequence.
func Clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// ClipRunes shortens s to at most n characters.
func ClipRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}

// Verdict is the outcome of scanning a single buffer.
type Verdict int

const (
	VerdictClean Verdict = iota
	VerdictInfected
	VerdictDenied
	VerdictInternalError
)

func (v Verdict) String() string {
	switch v {
	case VerdictClean:
		return "clean"
	case VerdictInfected:
		return "infected"
	case VerdictDenied:
		return "denied"
	case VerdictInternalError:
		return "internal_error"
	default:
		return "unknown"
	}
}
