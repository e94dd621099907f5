package saas

import (
	"strings"

	"github.com/spf13/cast"
)

type ProgressKind int

const (
	ProgressUnknown ProgressKind = iota
	ProgressNoSync
	ProgressInProgress
	ProgressCompleted
)

func (k ProgressKind) String() string {
	switch k {
	case ProgressNoSync:
		return "NO_SYNC"
	case ProgressInProgress:
		return "IN_PROGRESS"
	case ProgressCompleted:
		return "COMPLETED"
	default:
		return "UNKNOWN"
	}
}

// Progress is one observation of the remote sync job.
type Progress struct {
	Kind          ProgressKind `json:"kind"`
	IsSyncing     bool         `json:"is_syncing"`
	SyncStatus    string       `json:"sync_status"`
	Percent       float64      `json:"progress"`
	CurrentPage   int          `json:"current_page"`
	TotalPages    int          `json:"total_pages"`
	TotalProducts int          `json:"total_products"`
	StartedAt     string       `json:"started_at,omitempty"`
	LastSyncAt    string       `json:"last_sync_at,omitempty"`
	ETASeconds    *int         `json:"estimated_time_remaining_seconds,omitempty"`
	Message       string       `json:"message,omitempty"`
}

// ParseProgress reads the data object of a progress response. Values arrive
// as numbers, numeric strings or booleans depending on the upstream version.
func ParseProgress(data map[string]interface{}) Progress {
	status := cast.ToString(data["sync_status"])
	if status == "" {
		status = cast.ToString(data["status"])
	}
	status = strings.ToUpper(strings.TrimSpace(status))

	p := Progress{
		IsSyncing:     cast.ToBool(data["is_syncing"]),
		SyncStatus:    status,
		Percent:       clampPercent(cast.ToFloat64(data["progress"])),
		CurrentPage:   cast.ToInt(data["current_page"]),
		TotalPages:    cast.ToInt(data["total_pages"]),
		TotalProducts: cast.ToInt(data["total_products"]),
		StartedAt:     cast.ToString(data["started_at"]),
		LastSyncAt:    cast.ToString(data["last_sync_at"]),
		Message:       cast.ToString(data["message"]),
	}
	if raw, ok := data["estimated_time_remaining_seconds"]; ok && raw != nil {
		if eta, err := cast.ToIntE(raw); err == nil {
			p.ETASeconds = &eta
		}
	}
	p.Kind = classify(p.IsSyncing, p.SyncStatus)
	return p
}

func classify(syncing bool, status string) ProgressKind {
	switch {
	case !syncing && status == "NO_SYNC":
		return ProgressNoSync
	case syncing && status == "IN_PROGRESS":
		return ProgressInProgress
	case !syncing && status == "COMPLETED":
		return ProgressCompleted
	default:
		return ProgressUnknown
	}
}

func clampPercent(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

type TriggerReason int

const (
	TriggerRejected TriggerReason = iota
	TriggerStatusSuccess
	TriggerSuccessFlag
	TriggerSuccessMessage
	TriggerNonEmptyBody
	TriggerDefault
)

// TriggerResult is the outcome of a sync trigger. Reason records which
// acceptance rule matched.
type TriggerResult struct {
	Accepted bool
	Reason   TriggerReason
	Message  string
}

var failureStatuses = map[string]bool{
	"error":   true,
	"failed":  true,
	"failure": true,
	"fail":    true,
}

// ClassifyTrigger accepts nearly any 2xx body. The upstream contract is
// inconsistent, so only an explicit failure status or success=false rejects.
func ClassifyTrigger(body map[string]interface{}) TriggerResult {
	message := messageOf(body)

	status := strings.ToLower(cast.ToString(body["status"]))
	if failureStatuses[status] {
		return TriggerResult{Accepted: false, Reason: TriggerRejected, Message: message}
	}
	if raw, ok := body["success"]; ok && !cast.ToBool(raw) {
		return TriggerResult{Accepted: false, Reason: TriggerRejected, Message: message}
	}

	lowered := strings.ToLower(message)
	switch {
	case status == "success":
		return TriggerResult{Accepted: true, Reason: TriggerStatusSuccess, Message: message}
	case cast.ToBool(body["success"]):
		return TriggerResult{Accepted: true, Reason: TriggerSuccessFlag, Message: message}
	case strings.Contains(lowered, "success"),
		strings.Contains(lowered, "completed"),
		strings.Contains(lowered, "initiated"):
		return TriggerResult{Accepted: true, Reason: TriggerSuccessMessage, Message: message}
	case len(body) > 0:
		return TriggerResult{Accepted: true, Reason: TriggerNonEmptyBody, Message: message}
	default:
		return TriggerResult{Accepted: true, Reason: TriggerDefault, Message: message}
	}
}

// messageOf finds the human-readable message wherever the upstream put it.
func messageOf(body map[string]interface{}) string {
	if body == nil {
		return ""
	}
	if msg := cast.ToString(body["message"]); msg != "" {
		return msg
	}
	if data, ok := body["data"].(map[string]interface{}); ok {
		if msg := cast.ToString(data["message"]); msg != "" {
			return msg
		}
	}
	if msg := cast.ToString(body["error"]); msg != "" {
		return msg
	}
	return ""
}
