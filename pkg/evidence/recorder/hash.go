package recorder

import (
	"cmp"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"slices"
	"time"
	"unicode/utf8"

	"mercator-hq/drivetwin/pkg/evidence"
)

// recordContent is the hashed subset of a record. Storage-assigned fields
// (ID, RecordedTime, ContentHash) are excluded. The chain fields are part
// of it, so a record cannot be moved to another position in its episode.
type recordContent struct {
	EpisodeID    string        `json:"episode_id"`
	Scenario     string        `json:"scenario"`
	EventTime    int64         `json:"event_time"`
	Tick         uint64        `json:"tick"`
	Kind         string        `json:"kind"`
	Program      string        `json:"program"`
	Message      string        `json:"message"`
	Lane         string        `json:"lane"`
	Error        string        `json:"error"`
	ErrorType    string        `json:"error_type"`
	Source       string        `json:"source"`
	Acceleration float64       `json:"acceleration"`
	Steering     float64       `json:"steering"`
	TickDuration time.Duration `json:"tick_duration"`
	Seq          uint64        `json:"seq"`
	PrevHash     string        `json:"prev_hash"`
}

// HashRecord returns the hex SHA-256 of the record's content fields.
func HashRecord(r *evidence.Record) string {
	data, _ := json.Marshal(recordContent{
		EpisodeID:    r.EpisodeID,
		Scenario:     r.Scenario,
		EventTime:    r.EventTime.UnixNano(),
		Tick:         r.Tick,
		Kind:         r.Kind,
		Program:      r.Program,
		Message:      r.Message,
		Lane:         r.Lane,
		Error:        r.Error,
		ErrorType:    r.ErrorType,
		Source:       r.Source,
		Acceleration: r.Acceleration,
		Steering:     r.Steering,
		TickDuration: r.TickDuration,
		Seq:          r.Seq,
		PrevHash:     r.PrevHash,
	})
	return HashContent(data)
}

// Verify reports whether the record's content still matches its hash.
func Verify(r *evidence.Record) bool {
	return r.ContentHash != "" && r.ContentHash == HashRecord(r)
}

// ChainFault is one broken link in an episode chain.
type ChainFault struct {
	RecordID string
	Seq      uint64
	Reason   string
}

// ChainReport is the outcome of VerifyEpisode.
type ChainReport struct {
	EpisodeID string
	Records   int

	// FirstSeq is the lowest sequence number present. It is above 1 when
	// the head of the episode was pruned.
	FirstSeq uint64

	Faults []ChainFault
}

// OK reports whether the episode verified without faults.
func (r *ChainReport) OK() bool { return len(r.Faults) == 0 }

// VerifyEpisode checks the records of one episode: every content hash, the
// sequence numbers for gaps and duplicates, and every PrevHash link. Records
// with Seq zero predate chaining and only get the content check.
func VerifyEpisode(records []*evidence.Record) ChainReport {
	report := ChainReport{Records: len(records)}
	if len(records) > 0 {
		report.EpisodeID = records[0].EpisodeID
	}
	sorted := slices.Clone(records)
	slices.SortStableFunc(sorted, func(a, b *evidence.Record) int { return cmp.Compare(a.Seq, b.Seq) })

	fault := func(r *evidence.Record, format string, args ...any) {
		report.Faults = append(report.Faults, ChainFault{RecordID: r.ID, Seq: r.Seq, Reason: fmt.Sprintf(format, args...)})
	}

	var prev *evidence.Record
	for _, r := range sorted {
		if !Verify(r) {
			fault(r, "content hash mismatch")
		}
		if r.Seq == 0 {
			continue
		}
		switch {
		case prev == nil:
			report.FirstSeq = r.Seq
			if r.Seq == 1 && r.PrevHash != "" {
				fault(r, "first record links to a predecessor")
			}
		case r.Seq == prev.Seq:
			fault(r, "duplicate sequence number")
		case r.Seq == prev.Seq+2:
			fault(r, "record %d missing", prev.Seq+1)
		case r.Seq != prev.Seq+1:
			fault(r, "records %d to %d missing", prev.Seq+1, r.Seq-1)
		case r.PrevHash != prev.ContentHash:
			fault(r, "previous hash does not match record %d", prev.Seq)
		}
		prev = r
	}
	return report
}

// HashContent computes the hex-encoded SHA-256 of content. Returns an empty
// string if content is empty.
func HashContent(content []byte) string {
	if len(content) == 0 {
		return ""
	}
	hash := sha256.Sum256(content)
	return hex.EncodeToString(hash[:])
}

// TruncateString shortens s to at most maxLen bytes without splitting a
// UTF-8 sequence, appending "..." when truncated. maxLen <= 0 disables it.
func TruncateString(s string, maxLen int) string {
	if maxLen <= 0 || len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	cut := maxLen - 3
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
