package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const defaultSystemPrompt = "Tu es un assistant virtuel sympathique et serviable. " +
	"Réponds de manière naturelle et conversationnelle en français. " +
	"Sois concis (2-3 phrases maximum)."

type OpenAIConfig struct {
	APIKey    string
	BaseURL   string
	ChatModel string
	STTModel  string
	TTSModel  string
}

type ElevenLabsConfig struct {
	APIKey  string
	BaseURL string
	ModelID string
}

type GoogleConfig struct {
	ProjectID      string
	VertexLocation string
	VertexModel    string
}

type ReplyConfig struct {
	SystemPrompt string
	MaxTokens    int
	Temperature  float64
	HistoryLimit int
}

type MuseTalkConfig struct {
	Dir           string
	Command       string
	ResultsRoot   string // served under /results
	OutputSubdir  string // relative to ResultsRoot
	UNetModelPath string
	UNetConfig    string
	Version       string
	FPS           int
	BatchSize     int
	Float16       bool
	Timeout       time.Duration
	StaleAfter    time.Duration
}

type StagingConfig struct {
	OutputDir string
	UploadDir string
	AvatarDir string
	AudioDir  string
	WorkDir   string
	FFmpeg    string
	Retention time.Duration
	Schedule  string
}

type DeliveryConfig struct {
	Mode           string // scp | gcs | none
	Host           string
	Port           int
	User           string
	KeyFile        string
	KnownHostsFile string
	RemoteDir      string
	PublicBaseURL  string
	Bucket         string
	Timeout        time.Duration
}

type Config struct {
	Port              string
	PublicURL         string
	STTProvider       string // openai | google
	LLMProvider       string // openai | vertex
	Language          string
	MaxConcurrentJobs int

	OpenAI     OpenAIConfig
	ElevenLabs ElevenLabsConfig
	Google     GoogleConfig
	Reply      ReplyConfig
	MuseTalk   MuseTalkConfig
	Staging    StagingConfig
	Delivery   DeliveryConfig
}

// Load reads the process environment. Missing credentials are not an error here;
// the stage that needs them reports it.
func Load() Config {
	museDir := getenv("MUSETALK_DIR", "/app")
	resultsRoot := getenv("MUSETALK_RESULTS_ROOT", filepath.Join(museDir, "results"))

	return Config{
		Port:              getenv("PORT", "8000"),
		PublicURL:         strings.TrimRight(getenv("PUBLIC_URL", ""), "/"),
		STTProvider:       strings.ToLower(getenv("STT_PROVIDER", "openai")),
		LLMProvider:       strings.ToLower(getenv("LLM_PROVIDER", "openai")),
		Language:          getenv("TRANSCRIBE_LANGUAGE", "fr"),
		MaxConcurrentJobs: getInt("MAX_CONCURRENT_JOBS", 0),

		OpenAI: OpenAIConfig{
			APIKey:    getenv("OPENAI_API_KEY", ""),
			BaseURL:   strings.TrimRight(getenv("OPENAI_BASE_URL", "https://api.openai.com/v1"), "/"),
			ChatModel: getenv("OPENAI_CHAT_MODEL", "gpt-4o-mini"),
			STTModel:  getenv("OPENAI_STT_MODEL", "whisper-1"),
			TTSModel:  getenv("OPENAI_TTS_MODEL", "tts-1"),
		},
		ElevenLabs: ElevenLabsConfig{
			APIKey:  getenv("ELEVENLABS_API_KEY", ""),
			BaseURL: strings.TrimRight(getenv("ELEVENLABS_BASE_URL", "https://api.elevenlabs.io/v1"), "/"),
			ModelID: getenv("ELEVENLABS_MODEL", "eleven_multilingual_v2"),
		},
		Google: GoogleConfig{
			ProjectID:      getenv("GOOGLE_PROJECT_ID", ""),
			VertexLocation: getenv("VERTEX_LOCATION", "europe-west1"),
			VertexModel:    getenv("VERTEX_MODEL", "gemini-1.5-flash"),
		},
		Reply: ReplyConfig{
			SystemPrompt: getenv("SYSTEM_PROMPT", defaultSystemPrompt),
			MaxTokens:    getInt("REPLY_MAX_TOKENS", 100),
			Temperature:  getFloat("REPLY_TEMPERATURE", 0.7),
			HistoryLimit: getInt("REPLY_HISTORY_LIMIT", 10),
		},
		MuseTalk: MuseTalkConfig{
			Dir:           museDir,
			Command:       getenv("RENDER_COMMAND", "python3 -m scripts.inference"),
			ResultsRoot:   resultsRoot,
			OutputSubdir:  getenv("MUSETALK_OUTPUT_SUBDIR", "output/v15"),
			UNetModelPath: getenv("MUSETALK_UNET_MODEL", "models/musetalkV15/unet.pth"),
			UNetConfig:    getenv("MUSETALK_UNET_CONFIG", "models/musetalkV15/musetalk.json"),
			Version:       getenv("MUSETALK_VERSION", "v15"),
			FPS:           getInt("RENDER_FPS", 15),
			BatchSize:     getInt("RENDER_BATCH_SIZE", 2),
			Float16:       getBool("RENDER_FLOAT16", true),
			Timeout:       getDuration("RENDER_TIMEOUT", 2*time.Minute),
			StaleAfter:    getDuration("RENDER_STALE_AFTER", time.Hour),
		},
		Staging: StagingConfig{
			OutputDir: getenv("OUTPUT_DIR", "outputs"),
			UploadDir: getenv("UPLOAD_DIR", "uploads"),
			AvatarDir: getenv("AVATARS_DIR", "avatars"),
			AudioDir:  getenv("AUDIO_DIR", "audio_recordings"),
			WorkDir:   getenv("WORK_DIR", "work"),
			FFmpeg:    getenv("FFMPEG_PATH", "/usr/bin/ffmpeg"),
			Retention: getDuration("STAGING_RETENTION", 24*time.Hour),
			Schedule:  getenv("JANITOR_SCHEDULE", "@every 30m"),
		},
		Delivery: DeliveryConfig{
			Mode:           strings.ToLower(getenv("DELIVERY_MODE", "scp")),
			Host:           getenv("DELIVERY_HOST", ""),
			Port:           getInt("DELIVERY_PORT", 22),
			User:           getenv("DELIVERY_USER", "ubuntu"),
			KeyFile:        getenv("DELIVERY_KEY_FILE", "/root/.ssh/id_rsa"),
			KnownHostsFile: getenv("DELIVERY_KNOWN_HOSTS", ""),
			RemoteDir:      getenv("DELIVERY_REMOTE_DIR", ""),
			PublicBaseURL:  strings.TrimRight(getenv("DELIVERY_PUBLIC_BASE_URL", ""), "/"),
			Bucket:         getenv("GCS_BUCKET", ""),
			Timeout:        getDuration("DELIVERY_TIMEOUT", time.Minute),
		},
	}
}

// StagingDirs lists the directories created at start-up.
func (c Config) StagingDirs() []string {
	return []string{
		c.Staging.OutputDir,
		c.Staging.UploadDir,
		c.Staging.AvatarDir,
		c.Staging.AudioDir,
		c.Staging.WorkDir,
	}
}

func getenv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getInt(key string, def int) int {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getFloat(key string, def float64) float64 {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getBool(key string, def bool) bool {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

// getDuration accepts Go durations ("90s") or a bare number of seconds.
func getDuration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second
	}
	return def
}
