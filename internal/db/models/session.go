package models

import "time"

// Session is the persisted form of one annotation session's pointers.
type Session struct {
	ID             string    `json:"id"`
	VideoPath      string    `json:"video_path"`
	DisplayName    string    `json:"display_name"`
	AudioPath      string    `json:"audio_path"`
	TranscriptPath string    `json:"transcript_path"`
	LabeledPath    string    `json:"labeled_path"`
	Source         string    `json:"source"` // none, transcript, labeled
	UpdatedAt      time.Time `json:"updated_at"`
}
