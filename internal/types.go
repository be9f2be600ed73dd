package internal

// ProductRecord maps a platform-internal product id to its canonical code.
// Built once per workbook, read-only afterwards.
type ProductRecord struct {
	InternalID    string
	CanonicalCode string
}

// PhotoCandidate is one image reference row from the photo sheet. It may
// point at a product that has no ProductRecord (orphan).
type PhotoCandidate struct {
	ProductInternalID string
	SourceURL         string
	TypeLabel         string
	SequenceNumber    *int
	RowNo             int
}

// RankedCandidate carries the resolved ordering key. TypeRank 1 is the
// highest-priority category; unknown labels get RankUnknown. SeqRank is the
// parsed sequence number or SeqLast when absent or non-numeric.
type RankedCandidate struct {
	PhotoCandidate
	TypeRank int
	SeqRank  int
}

const (
	RankUnknown = 99
	SeqLast     = 1 << 30
)

// ProcessedImage is the canvas-normalized, re-encoded form of a fetched
// image. Derivation is deterministic: the same raw bytes always produce the
// same JPEGBytes, so ContentHash is a usable exact-duplicate key.
type ProcessedImage struct {
	JPEGBytes   []byte
	ContentHash [16]byte
	Fingerprint uint64
}

// AcceptedImage is a processed image that survived deduplication, tagged
// with its per-code archive counter.
type AcceptedImage struct {
	CanonicalCode string
	Counter       int
	JPEGBytes     []byte
}

// ProductPhotoSet is the ordered list of accepted images for one canonical
// code. It only grows within a run.
type ProductPhotoSet struct {
	CanonicalCode string
	Images        []AcceptedImage
}

type MissingReason string

const (
	ReasonNoCanonicalCode  MissingReason = "No canonical code"
	ReasonNoPhoto          MissingReason = "No photo"
	ReasonDownloadFailed   MissingReason = "Download failed"
	ReasonProcessingFailed MissingReason = "Processing failed"
)

// MissingEntry records a candidate that produced no archive entry. Appended
// during the run, exported afterwards for operator follow-up.
type MissingEntry struct {
	ProductInternalID string
	CanonicalCode     string
	SourceURL         string
	Reason            MissingReason
	Tag               string
}

type Stage string

const (
	StageIdle          Stage = "idle"
	StageExtracting    Stage = "extracting"
	StageRanking       Stage = "ranking"
	StageFetching      Stage = "fetching"
	StageNormalizing   Stage = "normalizing"
	StageDeduplicating Stage = "deduplicating"
	StageArchiving     Stage = "archiving"
	StageDone          Stage = "done"
	StageFailed        Stage = "failed"
)

// Progress is invoked as the run advances. done/total are per-stage counts;
// stages without a meaningful count report 0/0. Fetch workers call it
// concurrently, so implementations must be safe for concurrent use.
type Progress func(stage Stage, done, total int)

// RunCounts is the end-of-run summary.
type RunCounts struct {
	Products   int
	Candidates int
	Fetched    int
	Accepted   int
	Duplicates int
	Missing    int
}
