package upload

// Phase is the discrete lifecycle stage of the tracked upload record.
type Phase string

const (
	// PhaseIdle means no validated artifact is selected. A validation
	// failure also lands here, with ErrorMessage set.
	PhaseIdle Phase = "idle"
	// PhaseReady means a validated artifact is decoded and submittable.
	PhaseReady Phase = "ready"
	// PhaseSubmitting means the masking call is in flight.
	PhaseSubmitting Phase = "submitting"
	// PhaseSucceeded means the masked result is available.
	PhaseSucceeded Phase = "succeeded"
	// PhaseFailed means the masking call failed; the artifact is kept so
	// the user can submit again without re-selecting.
	PhaseFailed Phase = "failed"
)

// MaxArtifactSize is the byte ceiling for a candidate image.
const MaxArtifactSize = 10 << 20

// User-facing validation and failure messages.
const (
	MsgUnsupportedType  = "unsupported file type: choose a JPEG, PNG, or WebP image"
	MsgTooLarge         = "file too large: images must be 10 MiB or smaller"
	MsgSubmissionFailed = "masking failed, please try again"
)

var allowedContentTypes = map[string]bool{
	"image/jpeg": true,
	"image/jpg":  true,
	"image/png":  true,
	"image/webp": true,
}

// Candidate is a file offered by the user, either dropped or picked.
type Candidate struct {
	Name        string
	ContentType string
	Size        int64
	Data        []byte
}

// record is the single mutable entity tracked per session owner. All access
// goes through the Tracker's mutex; async completions compare generation
// before applying.
type record struct {
	artifactName  string
	artifact      []byte
	contentType   string
	preview       string
	phase         Phase
	resultPreview string
	regions       int
	requestID     string
	errorMessage  string
	generation    uint64
}

// Snapshot is a read-only copy of the record for the presentation layer.
// Every field is safe to read in any phase; presence rules follow the phase:
// Preview is set from Ready onward, ResultPreview only in Succeeded,
// ErrorMessage never alongside ResultPreview.
type Snapshot struct {
	Phase         Phase  `json:"phase"`
	HasArtifact   bool   `json:"has_artifact"`
	ArtifactName  string `json:"artifact_name,omitempty"`
	ContentType   string `json:"content_type,omitempty"`
	Preview       string `json:"preview,omitempty"`
	ResultPreview string `json:"result_preview,omitempty"`
	Regions       int    `json:"regions,omitempty"`
	RequestID     string `json:"request_id,omitempty"`
	ErrorMessage  string `json:"error_message,omitempty"`
}

func (r *record) snapshot() Snapshot {
	return Snapshot{
		Phase:         r.phase,
		HasArtifact:   len(r.artifact) > 0,
		ArtifactName:  r.artifactName,
		ContentType:   r.contentType,
		Preview:       r.preview,
		ResultPreview: r.resultPreview,
		Regions:       r.regions,
		RequestID:     r.requestID,
		ErrorMessage:  r.errorMessage,
	}
}
