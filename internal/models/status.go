package models

// StatusDisplayInfo contains display information for a record state badge
type StatusDisplayInfo struct {
	DisplayName string
	BgColor     string
	TextColor   string
	BorderColor string
}

// Badge states shown across the visit, counselor and referral pages.
const (
	StatusCritical    = "critical"
	StatusRoutine     = "routine"
	StatusOpen        = "open"
	StatusCompleted   = "completed"
	StatusOutstanding = "outstanding"
	StatusReported    = "reported"
)

// GetStatusDisplayInfo returns display information for a given status
func GetStatusDisplayInfo(status string) StatusDisplayInfo {
	statusMap := map[string]StatusDisplayInfo{
		StatusCritical: {
			DisplayName: "Critical",
			BgColor:     "#FFE6E6",
			TextColor:   "#CC0000",
			BorderColor: "#dc3545",
		},
		StatusRoutine: {
			DisplayName: "Routine",
			BgColor:     "#E6E6E6",
			TextColor:   "#333",
			BorderColor: "#8C8C8C",
		},
		StatusOpen: {
			DisplayName: "Open",
			BgColor:     "#FFF4E6",
			TextColor:   "#8B6914",
			BorderColor: "#FFA500",
		},
		StatusCompleted: {
			DisplayName: "Completed",
			BgColor:     "#E6FFE6",
			TextColor:   "#006600",
			BorderColor: "#28a745",
		},
		StatusOutstanding: {
			DisplayName: "Awaiting student",
			BgColor:     "#FFF9E6",
			TextColor:   "#8B6914",
			BorderColor: "#FFA500",
		},
		StatusReported: {
			DisplayName: "Reported back",
			BgColor:     "#E6F3FF",
			TextColor:   "#0066CC",
			BorderColor: "#4EC6E0",
		},
	}

	if info, ok := statusMap[status]; ok {
		return info
	}

	return StatusDisplayInfo{
		DisplayName: status,
		BgColor:     "#E6E6E6",
		TextColor:   "#333",
		BorderColor: "#8C8C8C",
	}
}

// CriticalStatus maps a critical flag to its badge state.
func CriticalStatus(critical bool) string {
	if critical {
		return StatusCritical
	}
	return StatusRoutine
}

// FollowupStatus maps a followup's open flag to its badge state.
func FollowupStatus(open bool) string {
	if open {
		return StatusOpen
	}
	return StatusCompleted
}

// TrackedStatus maps a tracked item to its badge state.
func TrackedStatus(t Tracked) string {
	if t.Outstanding() {
		return StatusOutstanding
	}
	return StatusReported
}
