package mapping

import (
	"strconv"
	"time"

	"github.com/coachpo/shimmer/internal/domain/schema"
	"github.com/coachpo/shimmer/internal/jsonnode"
)

// SyntheticExternalID derives a stable id for records the vendor does not identify.
func SyntheticExternalID(qualifier string, start time.Time) string {
	return qualifier + "-" + strconv.FormatInt(start.Unix(), 10)
}

// ModalityFromFlag maps an "auto detected" style flag: true is sensed, anything else is unknown.
func ModalityFromFlag(flag *bool) schema.Modality {
	if flag != nil && *flag {
		return schema.ModalitySensed
	}
	return schema.ModalityUnset
}

// ModalityFromBool maps a "sensed" flag: true is sensed, false is self-reported, absent is unknown.
func ModalityFromBool(sensed *bool) schema.Modality {
	if sensed == nil {
		return schema.ModalityUnset
	}
	if *sensed {
		return schema.ModalitySensed
	}
	return schema.ModalitySelfReported
}

// IDString renders a vendor id that may arrive as a number or a string.
func IDString(node jsonnode.Node, path string) string {
	v, ok := node.Get(path).String()
	if !ok {
		return ""
	}
	return v
}

// Bool returns a pointer to b.
func Bool(b bool) *bool { return &b }

// Int64 returns a pointer to v.
func Int64(v int64) *int64 { return &v }

// Time returns a pointer to t.
func Time(t time.Time) *time.Time { return &t }
