package watcher

import "fmt"

// ChangeAnalysis describes what changed and whether the model must be analyzed again
type ChangeAnalysis struct {
	Rerun        bool
	Reason       string
	ChangedFiles []string
}

// AnalyzeChanges decides how to react to a debounced change
func AnalyzeChanges(event ChangeEvent) *ChangeAnalysis {
	analysis := &ChangeAnalysis{
		ChangedFiles: event.Paths,
	}

	switch event.Type {
	case ChangeTypeModified:
		analysis.Rerun = true
		analysis.Reason = fmt.Sprintf("model changed (%d events)", len(event.Paths))

	case ChangeTypeRemoved:
		// The last report stays valid until the file comes back
		analysis.Reason = "model removed"
	}

	return analysis
}
