package tasks

import (
	"fmt"

	"github.com/desertthunder/chordypi/internal/services"
)

// ProgressUpdate represents a progress event during a long-running operation.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Overall percentage for single extractions, item index for batches
	Total   int    // 100 for single extractions, item count for batches
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data for advanced UIs
}

// Operation phase enumeration
type Phase int

const (
	Download Phase = iota
	Compress
	Upload
	Batch
	Done
)

func (p Phase) String() string {
	switch p {
	case Download:
		return "download"
	case Compress:
		return "compress"
	case Upload:
		return "upload"
	case Batch:
		return "batch"
	case Done:
		return "done"
	default:
		return ""
	}
}

// scale maps a 0-100 sub-step percentage into the [from, to] window of the overall run.
func scale(percent, from, to int) int {
	percent = max(0, min(100, percent))
	return from + (to-from)*percent/100
}

func downloadUpdate(percent int, message string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Download,
		Step:    scale(percent, 0, 40),
		Total:   100,
		Message: message,
	}
}

func foundVideoUpdate(info *services.VideoInfo, format services.MediaFormat) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Download,
		Step:    2,
		Total:   100,
		Message: fmt.Sprintf("Found %q (%s, %s)", info.Title, format.Ext, format.ACodec),
		Data:    info,
	}
}

func compressUpdate(percent int, message string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Compress,
		Step:    scale(percent, 40, 50),
		Total:   100,
		Message: message,
	}
}

func uploadUpdate(percent int, message string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Upload,
		Step:    scale(percent, 50, 100),
		Total:   100,
		Message: message,
	}
}

func doneUpdate(res *ExtractResult) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Done,
		Step:    100,
		Total:   100,
		Message: fmt.Sprintf("Analysis complete: %d chords in %s", len(res.Analysis.Chords), res.Analysis.Key),
		Data:    res,
	}
}

func batchStartedUpdate(step, total int, url string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Batch,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Analyzing %s...", step, total, url),
	}
}

func batchCompletedUpdate(step, total int, item BatchItem) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Batch,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✓ %s (%d chords)", step, total, item.SongName, len(item.Result.Analysis.Chords)),
		Data:    item,
	}
}

func batchFailedUpdate(step, total int, item BatchItem) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Batch,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✗ %s: %v", step, total, item.URL, item.Err),
		Data:    item,
	}
}
