package search

// Stage is the pipeline step a search is in. A failed search reports the
// stage it failed in together with its error kind.
type Stage int

// Pipeline stages in execution order.
const (
	StageValidating Stage = iota
	StageVerifyingPath
	StageEmbedding
	StageRetrieving
	StageVerifyingBoundary
	StageFormatting
	StageDone
)

var stageNames = [...]string{
	"VALIDATING",
	"VERIFYING_PATH",
	"EMBEDDING",
	"RETRIEVING",
	"VERIFYING_BOUNDARY",
	"FORMATTING",
	"DONE",
}

func (s Stage) String() string {
	if s < 0 || int(s) >= len(stageNames) {
		return "UNKNOWN"
	}
	return stageNames[s]
}
