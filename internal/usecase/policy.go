package usecase

import (
	"fmt"
	"time"

	"telegram-video-courier/internal/domain/model"
)

// EvaluatePolicy gates a resolved descriptor against the configured
// ceilings. Duration is always known up front and cheap to check; byte
// size may be unknown before fetch, in which case the descriptor passes
// provisionally and the gate is re-applied to the on-disk size after
// download (EvaluateSize).
func EvaluatePolicy(desc *model.MediaDescriptor, limits model.Limits) model.PolicyVerdict {
	dur := time.Duration(desc.DurationSeconds) * time.Second
	if dur > limits.MaxDuration {
		return model.PolicyVerdict{
			Allowed: false,
			Reason: fmt.Sprintf("video is too long: %s (limit %s)",
				formatDuration(dur), formatDuration(limits.MaxDuration)),
		}
	}
	if desc.SizeKnown() && *desc.ByteSize > limits.MaxBytes {
		return model.PolicyVerdict{
			Allowed: false,
			Reason:  sizeReason(*desc.ByteSize, limits.MaxBytes),
		}
	}
	return model.PolicyVerdict{Allowed: true}
}

// EvaluateSize re-checks the ceiling once the actual byte count is known.
// A post-fetch rejection reports the same user-visible reason as a
// pre-fetch one.
func EvaluateSize(bytes int64, limits model.Limits) model.PolicyVerdict {
	if bytes > limits.MaxBytes {
		return model.PolicyVerdict{Allowed: false, Reason: sizeReason(bytes, limits.MaxBytes)}
	}
	return model.PolicyVerdict{Allowed: true}
}

func sizeReason(got, limit int64) string {
	return fmt.Sprintf("video is too large: %s (limit %s)", formatBytes(got), formatBytes(limit))
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	if d >= time.Hour {
		return fmt.Sprintf("%dh%02dm", int(d.Hours()), int(d.Minutes())%60)
	}
	return fmt.Sprintf("%dm%02ds", int(d.Minutes()), int(d.Seconds())%60)
}

func formatBytes(n int64) string {
	const mb = 1 << 20
	if n >= mb {
		return fmt.Sprintf("%.1fMB", float64(n)/float64(mb))
	}
	return fmt.Sprintf("%dKB", n>>10)
}
