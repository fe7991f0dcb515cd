package countdown

import (
	"encoding/json"
	"errors"
	"log"
	"strconv"
	"time"

	"restbell/internal/storage"
)

const metaSuffix = ":meta"

// metaRecord is the JSON shape persisted under "<key>:meta".
type metaRecord struct {
	TargetTimestamp *int64 `json:"targetTimestamp"`
	IsRunning       bool   `json:"isRunning"`
	LastUpdated     int64  `json:"lastUpdated"`
}

// Snapshot is countdown state reconstructed from persisted records.
type Snapshot struct {
	RemainingSeconds int
	Target           time.Time // zero when no live deadline was persisted
	Running          bool
	LastUpdated      time.Time
}

// ReadSnapshot reconstructs the countdown state persisted under key without
// mutating the store or starting any timer. A live target timestamp always
// wins over a stale remaining-seconds value: a future target yields a
// running snapshot with the remaining time recomputed from the clock, a past
// target yields a stopped snapshot at zero, and only when no target was
// persisted does the bare remaining value count, capped to the fallback
// duration.
func ReadSnapshot(store storage.Store, key string, fallbackDurationSeconds int, now time.Time) Snapshot {
	if fallbackDurationSeconds < 0 {
		fallbackDurationSeconds = 0
	}
	snapshot := Snapshot{RemainingSeconds: fallbackDurationSeconds}
	if store == nil || key == "" {
		return snapshot
	}

	meta, hasMeta := readMeta(store, key)
	if hasMeta {
		snapshot.LastUpdated = time.UnixMilli(meta.LastUpdated)
	}

	if hasMeta && meta.TargetTimestamp != nil {
		target := time.UnixMilli(*meta.TargetTimestamp)
		snapshot.Target = target
		if target.After(now) {
			snapshot.Running = true
			snapshot.RemainingSeconds = remainingSeconds(target, now, fallbackDurationSeconds)
		} else {
			snapshot.RemainingSeconds = 0
		}
		return snapshot
	}

	rawRemaining, err := store.Get(key)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			log.Printf("countdown: read %s: %v", key, err)
		}
		return snapshot
	}
	remaining, err := strconv.Atoi(rawRemaining)
	if err != nil || remaining < 0 {
		return snapshot
	}
	if remaining > fallbackDurationSeconds {
		remaining = fallbackDurationSeconds
	}
	snapshot.RemainingSeconds = remaining
	return snapshot
}

func readMeta(store storage.Store, key string) (metaRecord, bool) {
	rawMeta, err := store.Get(key + metaSuffix)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			log.Printf("countdown: read %s: %v", key+metaSuffix, err)
		}
		return metaRecord{}, false
	}

	var meta metaRecord
	if err := json.Unmarshal([]byte(rawMeta), &meta); err != nil {
		log.Printf("countdown: corrupt meta for %s: %v", key, err)
		return metaRecord{}, false
	}
	return meta, true
}

// remainingSeconds computes ceil((target-now)/1s) clamped to
// [0, maxSeconds]. Ceil, never floor, so the displayed number only reaches
// zero once true zero time has elapsed.
func remainingSeconds(target, now time.Time, maxSeconds int) int {
	delta := target.Sub(now)
	if delta <= 0 {
		return 0
	}
	seconds := int((delta + time.Second - 1) / time.Second)
	if seconds > maxSeconds {
		seconds = maxSeconds
	}
	return seconds
}
