package narrator

import (
	"time"

	"vibewalk/pkg/model"
)

// Stage is the position of the pipeline in a generation cycle.
type Stage string

const (
	StageIdle              Stage = "idle"
	StageGeneratingText    Stage = "generating_text"
	StageSynthesizingVoice Stage = "synthesizing_voice"
	StageDecodingAudio     Stage = "decoding_audio"
	StageReady             Stage = "ready"
	StageFailed            Stage = "failed"
)

// Settled reports whether no cycle is running in this stage.
func (s Stage) Settled() bool {
	return s == StageIdle || s == StageReady || s == StageFailed
}

// Snapshot is the observable pipeline state.
type Snapshot struct {
	Stage     Stage                  `json:"stage"`
	Error     string                 `json:"error,omitempty"`
	Narrative *model.NarrativeResult `json:"narrative,omitempty"`
	Seq       uint64                 `json:"seq"`
	CycleID   string                 `json:"cycle_id,omitempty"`
	UpdatedAt time.Time              `json:"updated_at"`
}

// Request carries the session context of one cycle.
type Request struct {
	// Coords is nil when the session has no location fix.
	Coords *model.Coordinates
	Bucket model.TimeBucket
	Vibe   model.Vibe
}
