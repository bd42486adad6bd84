package chefbot

// ModelConfig selects the provider and the models used by each stage.
type ModelConfig struct {
	Provider       string  `env:"LLM_PROVIDER,default=groq"`
	ModelID        string  `env:"MODEL_ID,default=llama-3.3-70b-versatile"`
	PlannerModelID string  `env:"PLANNER_MODEL_ID,default=openai/gpt-oss-120b"`
	JudgeModelID   string  `env:"JUDGE_MODEL_ID,default=llama-3.3-70b-versatile"`
	AgentModelID   string  `env:"AGENT_MODEL_ID,default=meta-llama/llama-4-scout-17b-16e-instruct"`
	MaxTokens      int32   `env:"MAX_TOKENS,default=1024"`
	Temperature    float64 `env:"TEMPERATURE,default=0.5"`
}

// ProviderConfig carries endpoints and credentials for the supported providers.
type ProviderConfig struct {
	GroqAPIKey         string `env:"GROQ_API_KEY"`
	GroqBaseURL        string `env:"GROQ_BASE_URL,default=https://api.groq.com/openai/v1"`
	AnthropicAPIKey    string `env:"ANTHROPIC_API_KEY"`
	BaseOllamaEndpoint string `env:"BASE_OLLAMA_ENDPOINT,default=http://localhost:11434"`
	AWSRegion          string `env:"AWS_REGION"`
	HTTPTimeoutSeconds int    `env:"HTTP_TIMEOUT_SECONDS,default=120"`
}

type AgentConfig struct {
	ArtifactsKitchenPath string `env:"ARTIFACTS_KITCHEN_PATH"`
	ArtifactsMenuPath    string `env:"ARTIFACTS_MENU_PATH"`
	ArtifactsBucket      string `env:"ARTIFACTS_S3_BUCKET"`
	KitchenS3Key         string `env:"ARTIFACTS_KITCHEN_S3_KEY,default=kitchen.json"`
	MenuS3Key            string `env:"ARTIFACTS_MENU_S3_KEY,default=menu.json"`
	MaxIterations        int    `env:"MAX_ITERATIONS,default=5"`
	PromptSet            string `env:"PROMPT_SET,default=weekly"`
	LogDir               string `env:"COORDINATION_LOG_DIR,default=./logs"`
	SlackWebhookURL      string `env:"SLACK_WEBHOOK_URL"`
	SlackChannel         string `env:"SLACK_CHANNEL,default=#chefbot"`
}

type EvalConfig struct {
	DatasetName string `env:"EVAL_DATASET,default=chefbot-menu-eval"`
	DBPath      string `env:"EVAL_DB_PATH,default=chefbot-eval.db"`
	Concurrency int    `env:"EVAL_CONCURRENCY,default=1"`
}
