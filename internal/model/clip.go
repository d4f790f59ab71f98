package model

import "time"

// ClipMode selects which analytics table a segment was derived from.
type ClipMode string

const (
	ClipModeEvent ClipMode = "event"
	ClipModeShift ClipMode = "shift"
)

// Clip duration bounds in seconds.
const (
	MaxClipDurationDefault = 120.0
	MaxClipDurationHardCap = 300.0
	MinClipDuration        = 0.1
)

// ClipSegment is a time-bounded descriptor into a source video, produced by
// the extractor. Start and End are period-relative seconds within the source
// file; AbsoluteTimecode is the game-clock position the segment was derived
// from.
type ClipSegment struct {
	ClipID           string   `json:"clip_id"`
	SourcePath       string   `json:"source_path"`
	StartSeconds     float64  `json:"start_seconds"`
	EndSeconds       float64  `json:"end_seconds"`
	AbsoluteTimecode float64  `json:"absolute_timecode"`
	Duration         float64  `json:"duration"`
	GameID           string   `json:"game_id"`
	GameDate         string   `json:"game_date,omitempty"`
	Season           string   `json:"season,omitempty"`
	Period           int      `json:"period"`
	Mode             ClipMode `json:"mode"`
	PlayerID         string   `json:"player_id"`
	PlayerName       string   `json:"player_name,omitempty"`
	TeammateIDs      []string `json:"teammate_ids,omitempty"`
	OpponentIDs      []string `json:"opponent_ids,omitempty"`
	TeamCode         string   `json:"team_code,omitempty"`
	OpponentCode     string   `json:"opponent_code,omitempty"`
	EventType        string   `json:"event_type,omitempty"`
	Outcome          string   `json:"outcome,omitempty"`
	Zone             string   `json:"zone,omitempty"`
	Strength         string   `json:"strength,omitempty"`
}

// ClipRecord is the persisted outcome of cutting a segment. Metadata
// carries the free-form map submitted alongside the cut request.
type ClipRecord struct {
	ClipSegment

	FilePath          string         `json:"file_path"`
	ThumbnailPath     string         `json:"thumbnail_path,omitempty"`
	HLSPath           string         `json:"hls_path,omitempty"`
	SizeBytes         int64          `json:"size_bytes"`
	ProcessingSeconds float64        `json:"processing_seconds"`
	Fingerprint       string         `json:"fingerprint"`
	Metadata          map[string]any `json:"metadata,omitempty"`
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`
}
