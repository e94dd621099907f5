package syncer

import (
	"fmt"
	"strings"

	"lazychat/internal/saas"
)

// Control is the state of the "sync now" control.
type Control int

const (
	ControlEnabled Control = iota
	ControlDisabled
	ControlHidden
)

func (c Control) String() string {
	switch c {
	case ControlEnabled:
		return "enabled"
	case ControlDisabled:
		return "disabled"
	case ControlHidden:
		return "hidden"
	default:
		return "unknown"
	}
}

// View renders orchestrator output. Methods are called with the orchestrator
// lock held and must not call back into it.
type View interface {
	ShowInitiating()
	ShowProgress(p saas.Progress)
	ShowCompleted(p saas.Progress)
	ShowNoSync(p saas.Progress)
	ShowUnknown(p saas.Progress)
	ShowError(message string)
	ShowLastSync(lastSyncAt string)
	ShowCooldown(remaining string)
	SetControl(c Control)
}

// Describe summarises an in-progress observation in one line.
func Describe(p saas.Progress) string {
	parts := []string{fmt.Sprintf("%.0f%%", p.Percent)}
	if p.TotalPages > 0 {
		parts = append(parts, fmt.Sprintf("page %d of %d", p.CurrentPage, p.TotalPages))
	}
	if p.TotalProducts > 0 {
		parts = append(parts, fmt.Sprintf("%d products", p.TotalProducts))
	}
	if p.ETASeconds != nil && *p.ETASeconds > 0 {
		parts = append(parts, "about "+formatETA(*p.ETASeconds)+" left")
	}
	return strings.Join(parts, ", ")
}

func formatETA(secs int) string {
	if secs < 60 {
		return fmt.Sprintf("%ds", secs)
	}
	return fmt.Sprintf("%dm %02ds", secs/60, secs%60)
}
