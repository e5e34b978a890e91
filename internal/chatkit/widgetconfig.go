package chatkit

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// WidgetConfig is the widget-configuration document sent with every
// session creation. Defaults aim for a minimal UI.
type WidgetConfig struct {
	AutomaticThreadTitling ThreadTitlingConfig `json:"automatic_thread_titling" yaml:"automatic_thread_titling"`
	History                HistoryConfig       `json:"history" yaml:"history"`
	FileUpload             FileUploadConfig    `json:"file_upload" yaml:"file_upload"`
	UserInterface          UIConfig            `json:"user_interface" yaml:"user_interface"`
	Behavior               BehaviorConfig      `json:"behavior" yaml:"behavior"`
	Advanced               AdvancedConfig      `json:"advanced" yaml:"advanced"`
}

type ThreadTitlingConfig struct {
	Enabled bool `json:"enabled" yaml:"enabled"`
}

type HistoryConfig struct {
	Enabled       bool `json:"enabled" yaml:"enabled"`
	RecentThreads int  `json:"recent_threads,omitempty" yaml:"recent_threads"`
}

type FileUploadConfig struct {
	Enabled     bool `json:"enabled" yaml:"enabled"`
	MaxFileSize int  `json:"max_file_size,omitempty" yaml:"max_file_size"`
	MaxFiles    int  `json:"max_files,omitempty" yaml:"max_files"`
}

type UIConfig struct {
	Theme        string `json:"theme,omitempty" yaml:"theme"`
	PrimaryColor string `json:"primary_color,omitempty" yaml:"primary_color"`
	ShowBranding bool   `json:"show_branding" yaml:"show_branding"`
}

type BehaviorConfig struct {
	AutoFocus       bool   `json:"auto_focus" yaml:"auto_focus"`
	PlaceholderText string `json:"placeholder_text,omitempty" yaml:"placeholder_text"`
	TypingIndicator bool   `json:"typing_indicator" yaml:"typing_indicator"`
	SoundEnabled    bool   `json:"sound_enabled" yaml:"sound_enabled"`
}

type AdvancedConfig struct {
	RateLimit  WidgetRateLimitConfig  `json:"rate_limit" yaml:"rate_limit"`
	Moderation WidgetModerationConfig `json:"moderation" yaml:"moderation"`
}

type WidgetRateLimitConfig struct {
	Enabled     bool `json:"enabled" yaml:"enabled"`
	MaxRequests int  `json:"max_requests,omitempty" yaml:"max_requests"`
	TimeWindow  int  `json:"time_window,omitempty" yaml:"time_window"`
}

type WidgetModerationConfig struct {
	Enabled         bool `json:"enabled" yaml:"enabled"`
	FilterProfanity bool `json:"filter_profanity" yaml:"filter_profanity"`
}

// DefaultWidgetConfig builds the configuration from CHATKIT_* env vars,
// then applies CHATKIT_CONFIG_FILE (YAML) over it when set.
func DefaultWidgetConfig() (*WidgetConfig, error) {
	cfg := widgetConfigFromEnv()

	if path := os.Getenv("CHATKIT_CONFIG_FILE"); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read widget config file: %w", err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("parse widget config file: %w", err)
		}
	}
	return cfg, nil
}

func widgetConfigFromEnv() *WidgetConfig {
	return &WidgetConfig{
		AutomaticThreadTitling: ThreadTitlingConfig{
			Enabled: envBool("CHATKIT_AUTOMATIC_THREAD_TITLING_ENABLED", false),
		},
		History: HistoryConfig{
			Enabled:       envBool("CHATKIT_HISTORY_ENABLED", false),
			RecentThreads: envInt("CHATKIT_HISTORY_RECENT_THREADS", 10),
		},
		FileUpload: FileUploadConfig{
			Enabled:     envBool("CHATKIT_FILE_UPLOAD_ENABLED", false),
			MaxFileSize: envInt("CHATKIT_FILE_UPLOAD_MAX_SIZE", 10485760),
			MaxFiles:    envInt("CHATKIT_FILE_UPLOAD_MAX_FILES", 5),
		},
		UserInterface: UIConfig{
			Theme:        envString("CHATKIT_UI_THEME", "light"),
			PrimaryColor: envString("CHATKIT_UI_PRIMARY_COLOR", "#2D8CFF"),
			ShowBranding: envBool("CHATKIT_UI_SHOW_BRANDING", true),
		},
		Behavior: BehaviorConfig{
			AutoFocus:       envBool("CHATKIT_BEHAVIOR_AUTO_FOCUS", true),
			PlaceholderText: envString("CHATKIT_BEHAVIOR_PLACEHOLDER", "Type a message..."),
			TypingIndicator: envBool("CHATKIT_BEHAVIOR_TYPING_INDICATOR", true),
			SoundEnabled:    envBool("CHATKIT_BEHAVIOR_SOUND", false),
		},
		Advanced: AdvancedConfig{
			RateLimit: WidgetRateLimitConfig{
				Enabled:     envBool("CHATKIT_RATE_LIMIT_ENABLED", false),
				MaxRequests: envInt("CHATKIT_RATE_LIMIT_MAX", 100),
				TimeWindow:  envInt("CHATKIT_RATE_LIMIT_WINDOW", 3600000),
			},
			Moderation: WidgetModerationConfig{
				Enabled:         envBool("CHATKIT_MODERATION_ENABLED", false),
				FilterProfanity: envBool("CHATKIT_MODERATION_PROFANITY", false),
			},
		},
	}
}

// Marshal serializes the document for the session request body.
func (c *WidgetConfig) Marshal() (json.RawMessage, error) {
	if c == nil {
		return nil, nil
	}
	return json.Marshal(c)
}

func envBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultVal
}

func envString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}
