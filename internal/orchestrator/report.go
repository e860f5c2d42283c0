package orchestrator

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/ShayCichocki/crewscontrol/internal/fsutil"
	"github.com/ShayCichocki/crewscontrol/pkg/models"
)

// FileFailure lists the failed metrics of one artifact.
type FileFailure struct {
	File    string
	Reasons []string
}

// SuccessReport summarises the validation artifacts of a project.
type SuccessReport struct {
	Total      int
	Succeeded  int
	Percentage float64
	Failures   []FileFailure
}

// Report reads every .result artifact in dir. An artifact succeeds when all
// of its metrics passed; unreadable or malformed artifacts count as
// failures. With no artifacts the success rate is 100%.
func Report(dir string) (*SuccessReport, error) {
	files, err := fsutil.FindFilesByExtension(dir, ResultExt)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return &SuccessReport{Percentage: 100}, nil
		}
		return nil, err
	}

	report := &SuccessReport{}
	for _, path := range files {
		report.Total++
		name := filepath.Base(path)

		data, err := os.ReadFile(path)
		var outcome models.ValidationOutcome
		if err == nil {
			err = json.Unmarshal(data, &outcome)
		}
		if err != nil {
			report.Failures = append(report.Failures, FileFailure{File: name, Reasons: []string{"Error reading file"}})
			continue
		}

		if failures := outcome.Failures(); len(failures) > 0 {
			report.Failures = append(report.Failures, FileFailure{File: name, Reasons: failures})
			continue
		}
		report.Succeeded++
	}

	report.Percentage = 100
	if report.Total > 0 {
		report.Percentage = float64(report.Succeeded) / float64(report.Total) * 100
	}
	return report, nil
}
