// Package types contains shared types used across the dynamic cleaner backend
package types

import (
	"time"
)

// CleanMode selects the deletion-eligibility policy for a run
type CleanMode string

const (
	ModeAuto    CleanMode = "auto"     // delete forwards whose origin is gone or whose giveaway concluded
	ModeUser    CleanMode = "user"     // delete forwards of operator-listed authors
	ModeDaysAgo CleanMode = "days_ago" // delete forwards older than N days (lottery-aware)
)

// RunState represents the lifecycle state of a cleanup run
type RunState string

const (
	StateIdle     RunState = "idle"
	StateRunning  RunState = "running"
	StatePaused   RunState = "paused"
	StateStopping RunState = "stopping"
	StateStopped  RunState = "stopped"
)

// Author identifies the author of an origin dynamic
type Author struct {
	Name      string `json:"name"`
	MID       int64  `json:"mid"`
	Following bool   `json:"following"`
	// Forward-date fallback fields reported on the forwarding item's author module
	PubTS   int64 `json:"pub_ts,omitempty"`
	PubTime int64 `json:"pubtime,omitempty"`
}

// Modules carries the nested module data the feed API attaches to an item
type Modules struct {
	ModuleAuthor *Author `json:"module_author,omitempty"`
}

// OriginDynamic is the original post referenced by a forward.
// IDStr is empty when the origin has been deleted upstream.
type OriginDynamic struct {
	IDStr        string   `json:"id_str"`
	Modules      *Modules `json:"modules,omitempty"`
	PubTimestamp int64    `json:"pub_ts,omitempty"`
	Content      string   `json:"content,omitempty"`
}

// AuthorInfo returns the origin author, or nil when the module data is missing
func (o *OriginDynamic) AuthorInfo() *Author {
	if o == nil || o.Modules == nil {
		return nil
	}
	return o.Modules.ModuleAuthor
}

// DynamicItem is a single feed post, possibly a forward of another post
type DynamicItem struct {
	IDStr   string         `json:"id_str"`
	Type    DynamicType    `json:"type"`
	Origin  *OriginDynamic `json:"orig,omitempty"`
	Modules *Modules       `json:"modules,omitempty"`
	// Top-level timestamp fallback fields; the most specific candidates live
	// in Modules.ModuleAuthor
	PubTS     int64 `json:"pub_ts,omitempty"`
	PubTime   int64 `json:"pubtime,omitempty"`
	CTime     int64 `json:"ctime,omitempty"`
	Timestamp int64 `json:"timestamp,omitempty"`
}

// PageResult is one page of the feed plus the cursor for the next page.
// An empty NextOffset signals the end of the feed.
type PageResult struct {
	Items      []DynamicItem `json:"items"`
	NextOffset string        `json:"next_offset"`
}

// LotteryStatus is the lifecycle status of a giveaway
type LotteryStatus int

const (
	LotteryPending   LotteryStatus = 0
	LotteryDrawing   LotteryStatus = 1
	LotteryConcluded LotteryStatus = 2
)

// LotteryErrorKind classifies why a lottery lookup could not be resolved
type LotteryErrorKind string

const (
	LotteryErrTimeout  LotteryErrorKind = "timeout"
	LotteryErrNetwork  LotteryErrorKind = "network"
	LotteryErrProtocol LotteryErrorKind = "protocol"
)

// LotteryOutcome is the tri-state result of a giveaway status lookup:
// resolved non-lottery, resolved lottery with a status, or unresolved
type LotteryOutcome struct {
	Resolved  bool             `json:"resolved"`
	IsLottery bool             `json:"is_lottery"`
	Status    LotteryStatus    `json:"status,omitempty"`
	ErrorKind LotteryErrorKind `json:"error_kind,omitempty"`
	Attempts  int              `json:"attempts"`
}

// Concluded reports whether the lookup resolved to a concluded giveaway
func (l LotteryOutcome) Concluded() bool {
	return l.Resolved && l.IsLottery && l.Status == LotteryConcluded
}

// ForwardDateOutcome is the result of resolving the date an item was forwarded
type ForwardDateOutcome struct {
	Resolved  bool   `json:"resolved"`
	Date      string `json:"date,omitempty"` // YYYY-MM-DD, process-local timezone
	Timestamp int64  `json:"timestamp,omitempty"`
	Attempts  int    `json:"attempts"`
}

// DeletionStatus classifies the remote response to a delete call
type DeletionStatus string

const (
	DeleteSucceeded   DeletionStatus = "succeeded"
	DeleteAlreadyGone DeletionStatus = "already_gone"
	DeleteAuthInvalid DeletionStatus = "auth_invalid"
	DeleteRateLimited DeletionStatus = "rate_limited"
	DeleteFailed      DeletionStatus = "failed"
)

// DeletionOutcome is the classified result of one deletion attempt sequence
type DeletionOutcome struct {
	Status   DeletionStatus `json:"status"`
	Message  string         `json:"message,omitempty"`
	Attempts int            `json:"attempts"`
}

// Deleted reports whether the item is gone, whether we removed it ourselves
// or it was already removed upstream
func (d DeletionOutcome) Deleted() bool {
	return d.Status == DeleteSucceeded || d.Status == DeleteAlreadyGone
}

// DeletionRecord is an append-only record of one deleted item
type DeletionRecord struct {
	Timestamp time.Time   `json:"timestamp"`
	ItemID    string      `json:"item_id"`
	Reason    string      `json:"reason"`
	ItemType  DynamicType `json:"item_type"`
	Content   string      `json:"content,omitempty"`
}

// UnfollowEntry is a queued author pending an unfollow call, deduplicated by MID
type UnfollowEntry struct {
	MID  int64  `json:"mid"`
	Name string `json:"name"`
}

// LogSeverity is the severity of a run journal event
type LogSeverity string

const (
	SeverityInfo    LogSeverity = "info"
	SeveritySuccess LogSeverity = "success"
	SeverityWarning LogSeverity = "warning"
	SeverityError   LogSeverity = "error"
)

// LogEvent is one entry in the run journal exposed to collaborators
type LogEvent struct {
	Seq       int64       `json:"seq"`
	Timestamp time.Time   `json:"timestamp"`
	Severity  LogSeverity `json:"severity"`
	Message   string      `json:"message"`
	ItemID    string      `json:"item_id,omitempty"`
}

// RunCounters are the aggregate counters maintained by the run controller
type RunCounters struct {
	PagesVisited    int `json:"pages_visited"`
	ItemsProcessed  int `json:"items_processed"`
	ItemsDeleted    int `json:"items_deleted"`
	ItemsFailed     int `json:"items_failed"`
	UsersUnfollowed int `json:"users_unfollowed"`
}

// RunSnapshot is a point-in-time view of the current (or last) run
type RunSnapshot struct {
	RunID         string      `json:"run_id,omitempty"`
	State         RunState    `json:"state"`
	Mode          CleanMode   `json:"mode,omitempty"`
	Counters      RunCounters `json:"counters"`
	CurrentOffset string      `json:"current_offset,omitempty"`
	StartedAt     *time.Time  `json:"started_at,omitempty"`
	EndedAt       *time.Time  `json:"ended_at,omitempty"`
	ElapsedMs     int64       `json:"elapsed_ms"`
	LastError     string      `json:"last_error,omitempty"`
}

// RunReport is the completed-run report value available after Stopped
type RunReport struct {
	RunID           string           `json:"run_id"`
	Mode            CleanMode        `json:"mode"`
	Counters        RunCounters      `json:"counters"`
	Duration        time.Duration    `json:"duration"`
	LotteryRetries  int              `json:"lottery_retries"`
	DeletionRecords []DeletionRecord `json:"deletion_records"`
	FailedUnfollows []int64          `json:"failed_unfollows,omitempty"`
	GeneratedAt     time.Time        `json:"generated_at"`
}
