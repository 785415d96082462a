package config

import (
	"log"
	"os"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	HTTPAddress string

	// Remote intent classifier (chat-completions compatible).
	ClassifierAPIKey  string
	ClassifierBaseURL string
	ClassifierModelID string

	// Hand-position analysis backend.
	AnalysisBaseURL string

	// Photo persistence. Supabase is used when fully configured,
	// otherwise photos land in PhotosDir.
	SupabaseURL    string
	SupabaseKey    string
	SupabaseBucket string
	PhotosDir      string

	// On-device session journal.
	JournalDir string

	// Device profile with runtime settings (BPM, save toggle).
	ProfilePath string

	// Metronome tick sound.
	TickSoundURL string
	TickVolume   float64
}

// Load reads environment variables and returns Config with sane defaults.
func Load() Config {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file loaded")
	}

	classifierKey := os.Getenv("CLASSIFIER_API_KEY")
	if classifierKey == "" {
		log.Println("Warning: CLASSIFIER_API_KEY not set - intent classification will use local rules only")
	}
	analysisURL := os.Getenv("ANALYSIS_BASE_URL")
	if analysisURL == "" {
		log.Println("Warning: ANALYSIS_BASE_URL not set - hand-position checks will report failure")
	}

	cfg := Config{
		HTTPAddress:       getenv("HTTP_ADDRESS", ":8080"),
		ClassifierAPIKey:  classifierKey,
		ClassifierBaseURL: os.Getenv("CLASSIFIER_BASE_URL"),
		ClassifierModelID: getenv("CLASSIFIER_MODEL_ID", "gpt-4o-mini"),
		AnalysisBaseURL:   analysisURL,
		SupabaseURL:       os.Getenv("SUPABASE_URL"),
		SupabaseKey:       os.Getenv("SUPABASE_SERVICE_ROLE_KEY"),
		SupabaseBucket:    getenv("SUPABASE_BUCKET", "cpr-photos"),
		PhotosDir:         getenv("PHOTOS_DIR", "backend_photos"),
		JournalDir:        getenv("JOURNAL_DIR", "journal"),
		ProfilePath:       getenv("DEVICE_PROFILE", "profile.yaml"),
		TickSoundURL:      getenv("TICK_SOUND_URL", "asset://sounds/tick.wav"),
		TickVolume:        0.8,
	}
	log.Printf("config: HTTP_ADDRESS=%s", cfg.HTTPAddress)
	return cfg
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
