package config

// Config is the top-level application configuration.
type Config struct {
	LLM         LLMConfig      `json:"llm"`
	FallbackLLM *LLMConfig     `json:"fallback_llm,omitempty"`
	Memory      MemoryConfig   `json:"memory"`
	Agents      AgentsConfig   `json:"agents"`
	Database    DatabaseConfig `json:"database"`
	Export      ExportConfig   `json:"export"`
	Channels    ChannelsConfig `json:"channels"`
}

type LLMConfig struct {
	Provider    string  `json:"provider"`
	Model       string  `json:"model"`
	APIKey      string  `json:"api_key,omitempty"`
	BaseURL     string  `json:"base_url,omitempty"`
	Temperature float64 `json:"temperature"`
	MaxTokens   int     `json:"max_tokens"`
	MaxRetries  int     `json:"max_retries"`
	TimeoutSecs int     `json:"timeout_secs"`
}

// MemoryConfig bounds the per-thread conversation state.
type MemoryConfig struct {
	MaxMessagesPerThread    int     `json:"max_messages_per_thread"`
	MaxConversationTokens   int     `json:"max_conversation_tokens"`
	CompressionTriggerRatio float64 `json:"compression_trigger_ratio"`
	KeepRecentMessages      int     `json:"keep_recent_messages"`
	MaxQueriesPerThread     int     `json:"max_queries_per_thread"`
}

type AgentsConfig struct {
	StepLimit          int `json:"step_limit"`
	MessageTimeoutSecs int `json:"message_timeout_secs"`
}

type DatabaseConfig struct {
	Path      string `json:"path"`
	TableName string `json:"table_name"`
	Seed      bool   `json:"seed"`
}

type ExportConfig struct {
	Dir string `json:"dir,omitempty"` // empty means the system temp dir
}

type ChannelsConfig struct {
	Telegram *TelegramConfig `json:"telegram,omitempty"`
	Console  bool            `json:"console"`
}

type TelegramConfig struct {
	Token      string  `json:"token,omitempty"`
	AllowedIDs []int64 `json:"allowed_ids,omitempty"`
}
