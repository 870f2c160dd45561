package model

import (
	"time"
)

// Records carry millisecond precision, matching the wire format of both stores.

func Now() time.Time {
	return FromMillis(time.Now().UnixMilli())
}

func FromMillis(ms int64) time.Time {
	return time.UnixMilli(ms)
}

func Millis(t time.Time) int64 {
	return t.UnixMilli()
}
