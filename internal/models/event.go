package models

import "time"

// Realtime event names.
const (
	EventConnected     = "connected"
	EventStatus        = "status"
	EventTranscription = "transcription"
	EventAIResponse    = "ai_response"
	EventChatResult    = "chat_result"
	EventError         = "error"
	EventPong          = "pong"

	EventChatWithAvatar = "chat_with_avatar"
	EventPing           = "ping"
)

type Stage string

const (
	StageSavingAudio      Stage = "saving_audio"
	StageSavingAvatar     Stage = "saving_avatar"
	StageTranscription    Stage = "transcription"
	StageAIResponse       Stage = "ai_response"
	StageTTS              Stage = "tts"
	StageAvatarGeneration Stage = "avatar_generation"
	StageComplete         Stage = "complete"
)

// Stages in emission order.
var Stages = []Stage{
	StageSavingAudio,
	StageSavingAvatar,
	StageTranscription,
	StageAIResponse,
	StageTTS,
	StageAvatarGeneration,
	StageComplete,
}

var stageProgress = map[Stage]int{
	StageSavingAudio:      5,
	StageSavingAvatar:     10,
	StageTranscription:    20,
	StageAIResponse:       35,
	StageTTS:              50,
	StageAvatarGeneration: 65,
	StageComplete:         100,
}

var stageMessage = map[Stage]string{
	StageSavingAudio:      "Saving audio…",
	StageSavingAvatar:     "Saving avatar…",
	StageTranscription:    "Transcribing…",
	StageAIResponse:       "Generating reply…",
	StageTTS:              "Synthesizing speech…",
	StageAvatarGeneration: "Generating avatar video…",
	StageComplete:         "Reply ready!",
}

func (s Stage) Progress() int { return stageProgress[s] }

func (s Stage) Message() string { return stageMessage[s] }

type ProgressEvent struct {
	Stage    Stage  `json:"stage"`
	Message  string `json:"message"`
	Progress int    `json:"progress"`
}

func NewProgress(s Stage) ProgressEvent {
	return ProgressEvent{Stage: s, Message: s.Message(), Progress: s.Progress()}
}

type TextEvent struct {
	Text string `json:"text"`
}

type ErrorEvent struct {
	Message string `json:"message"`
	Kind    string `json:"kind"`
}

type ConnectedEvent struct {
	ClientID        string       `json:"client_id"`
	Message         string       `json:"message"`
	Timestamp       string       `json:"timestamp"`
	AvailableVoices VoiceCatalog `json:"available_voices"`
	MuseTalkLocal   bool         `json:"musetalk_local"`
}

// Envelope is the frame format of the realtime channel, both directions.
type Envelope struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// ConnectionRecord describes one live realtime session.
type ConnectionRecord struct {
	ClientID    string    `json:"client_id"`
	ConnectedAt time.Time `json:"connected_at"`
	Status      string    `json:"status"`
}
