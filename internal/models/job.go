package models

import "time"

// ChatMessage is one role/content turn of a conversation.
type ChatMessage struct {
	Role    string `json:"role"`    // "system" | "user" | "assistant"
	Content string `json:"content"`
}

// AvatarInput is either inline bytes (base64) or a remote URL.
type AvatarInput struct {
	Data     string `json:"avatar_data,omitempty"`
	Filename string `json:"avatar_filename,omitempty"`
	URL      string `json:"avatar_url,omitempty"`
}

func (a AvatarInput) Empty() bool { return a.Data == "" && a.URL == "" }

// Job is one end-to-end chat request. It lives only as long as its worker goroutine.
type Job struct {
	ID        string    `json:"id"`
	ClientID  string    `json:"client_id"`
	CreatedAt time.Time `json:"created_at"`

	AudioData string      `json:"-"`
	Avatar    AvatarInput `json:"-"`

	VoiceProvider string        `json:"voice_provider"`
	VoiceID       string        `json:"voice_id"`
	History       []ChatMessage `json:"conversation_history"`
	BBoxShift     int           `json:"bbox_shift"`
}

// Stamp is the filename suffix shared by every artifact of the job.
func (j *Job) Stamp() string {
	id := j.ID
	if len(id) > 8 {
		id = id[:8]
	}
	ts := j.CreatedAt.Format("20060102_150405")
	if id == "" {
		return ts
	}
	return ts + "_" + id
}

type ArtifactRole string

const (
	ArtifactUserAudio     ArtifactRole = "user_audio"
	ArtifactAvatar        ArtifactRole = "avatar"
	ArtifactTTSAudio      ArtifactRole = "tts_audio"
	ArtifactRenderedVideo ArtifactRole = "rendered_video"
)

// StagedArtifact is a file produced while running a job. It is owned by that job.
type StagedArtifact struct {
	Path      string       `json:"path"`
	Role      ArtifactRole `json:"role"`
	CreatedAt time.Time    `json:"created_at"`
}

// RenderResult points at the rendered video.
type RenderResult struct {
	LocalPath string `json:"local_path"`
	RelPath   string `json:"rel_path"` // relative to the results root, slash separated
	Filename  string `json:"filename"`
	PublicURL string `json:"public_url"`
}

// ChatResult is the terminal success payload of a job.
type ChatResult struct {
	Success        bool   `json:"success"`
	UserText       string `json:"user_text"`
	AIResponse     string `json:"ai_response"`
	AudioURL       string `json:"audio_url"`
	VideoURL       string `json:"video_url"`
	LocalVideoPath string `json:"local_video_path"`
	Filename       string `json:"filename"`
	DownloadURL    string `json:"download_url"`
	Delivered      bool   `json:"delivered"`
	Timestamp      string `json:"timestamp"`
}

const (
	DefaultVoiceProvider = "elevenlabs"
	DefaultVoiceID       = "EXAVITQu4vr4xnSDxMaL"
)

// ChatRequest is the payload of a chat_with_avatar message.
type ChatRequest struct {
	AudioData           string        `json:"audio_data"`
	AvatarData          string        `json:"avatar_data"`
	AvatarFilename      string        `json:"avatar_filename"`
	AvatarURL           string        `json:"avatar_url"`
	VoiceProvider       string        `json:"voice_provider"`
	VoiceID             string        `json:"voice_id"`
	ConversationHistory []ChatMessage `json:"conversation_history"`
	BBoxShift           int           `json:"bbox_shift"`
}

// NewJob applies request defaults.
func NewJob(id, clientID string, req ChatRequest, now time.Time) *Job {
	j := &Job{
		ID:        id,
		ClientID:  clientID,
		CreatedAt: now,
		AudioData: req.AudioData,
		Avatar: AvatarInput{
			Data:     req.AvatarData,
			Filename: req.AvatarFilename,
			URL:      req.AvatarURL,
		},
		VoiceProvider: req.VoiceProvider,
		VoiceID:       req.VoiceID,
		History:       req.ConversationHistory,
		BBoxShift:     req.BBoxShift,
	}
	if j.VoiceProvider == "" {
		j.VoiceProvider = DefaultVoiceProvider
	}
	if j.VoiceID == "" {
		j.VoiceID = DefaultVoiceID
	}
	return j
}
