package archive

// Status is the terminal state of one candidate file within a run.
type Status string

const (
	StatusArchived Status = "archived" // uploaded, verified, local copy deleted
	StatusKept     Status = "kept"     // still inside the retention window
	StatusSkipped  Status = "skipped"  // not processed, see Reason
	StatusFailed   Status = "failed"   // stopped at Stage, local copy left on disk
)

// Stage identifies where in the upload, verify, delete chain a file failed.
type Stage string

const (
	StageUpload Stage = "upload"
	StageVerify Stage = "verify"
	StageDelete Stage = "delete"
)

// Outcome records what happened to one candidate file.
type Outcome struct {
	Name   string // base filename
	Key    string // remote object key, when one was computed
	Bytes  int64  // file size in bytes
	Status Status
	Stage  Stage  // set only when Status is StatusFailed
	Reason string // skip reason or failure detail
}

// Summary aggregates a single run. It belongs to one Run invocation and is
// discarded after reporting; nothing persists between runs.
type Summary struct {
	Archived      int   // files uploaded, verified and deleted locally
	ArchivedBytes int64 // bytes freed from local disk
	Failed        int   // files that stopped at some stage
	Kept          int   // files still inside the retention window
	Skipped       int   // files without a usable date, or passed over in a dry run
	Outcomes      []Outcome
}

func (s *Summary) add(o Outcome) {
	s.Outcomes = append(s.Outcomes, o)
	switch o.Status {
	case StatusArchived:
		s.Archived++
		s.ArchivedBytes += o.Bytes
	case StatusFailed:
		s.Failed++
	case StatusKept:
		s.Kept++
	case StatusSkipped:
		s.Skipped++
	}
}
