package config

// Defaults returns a Config with sensible default values.
func Defaults() *Config {
	return &Config{
		LLM: LLMConfig{
			Provider:    "openai",
			Model:       "gpt-4o-mini",
			Temperature: 0.1,
			MaxTokens:   2048,
			MaxRetries:  2,
			TimeoutSecs: 120,
		},
		Memory: MemoryConfig{
			MaxMessagesPerThread:    10,
			MaxConversationTokens:   4000,
			CompressionTriggerRatio: 0.8,
			KeepRecentMessages:      5,
			MaxQueriesPerThread:     10,
		},
		Agents: AgentsConfig{
			StepLimit:          10,
			MessageTimeoutSecs: 60,
		},
		Database: DatabaseConfig{
			Path:      "", // resolved to ~/.portfolio-bot/app_portfolio.db by the loader
			TableName: "app_portfolio",
			Seed:      true,
		},
		Export:   ExportConfig{},
		Channels: ChannelsConfig{Console: true},
	}
}
