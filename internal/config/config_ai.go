package config

// Operation names shared by config, AI and metrics.
const (
	OperationAnalyze = "analyze"
	OperationCompare = "compare"
	OperationEdit    = "edit"
)

// applyOperationDefaults applies global defaults to operation-specific configuration
func (c *Config) applyOperationDefaults(opCfg *OperationAIConfig) {
	if opCfg.Provider == "" {
		opCfg.Provider = c.AI.Provider
	}
	if opCfg.Model == "" {
		opCfg.Model = c.AI.Model
	}
	if opCfg.Timeout == nil {
		timeout := c.AI.Timeout
		opCfg.Timeout = &timeout
	}
	if opCfg.APIKey == "" {
		opCfg.APIKey = c.AI.APIKey
	}
	if opCfg.MaxRetries == nil {
		retries := c.AI.MaxRetries
		opCfg.MaxRetries = &retries
	}
	if opCfg.Temperature == nil {
		temperature := c.AI.Temperature
		opCfg.Temperature = &temperature
	}
	if opCfg.UseSystemPrompts == nil {
		use := c.AI.UseSystemPrompts
		opCfg.UseSystemPrompts = &use
	}
}

// inheritPrompt fills an operation prompt and its file path from the global set.
func inheritPrompt(text, file *string, globalText, globalFile string) {
	if *text == "" {
		*text = globalText
	}
	if *file == "" {
		*file = globalFile
	}
}

// GetAnalyzeConfig returns the AI configuration for résumé analysis with fallback to global config
func (c *Config) GetAnalyzeConfig() OperationAIConfig {
	config := c.AI.Analyze
	c.applyOperationDefaults(&config)

	g := c.AI.CustomPrompts
	inheritPrompt(&config.CustomPrompts.SystemPrompts.AnalyzeCV, &config.CustomPrompts.SystemPrompts.AnalyzeCVFile,
		g.SystemPrompts.AnalyzeCV, g.SystemPrompts.AnalyzeCVFile)
	inheritPrompt(&config.CustomPrompts.UserPrompts.AnalyzeCV, &config.CustomPrompts.UserPrompts.AnalyzeCVFile,
		g.UserPrompts.AnalyzeCV, g.UserPrompts.AnalyzeCVFile)

	return config
}

// GetCompareConfig returns the AI configuration for job comparison with fallback to global config
func (c *Config) GetCompareConfig() OperationAIConfig {
	config := c.AI.Compare
	c.applyOperationDefaults(&config)

	g := c.AI.CustomPrompts
	inheritPrompt(&config.CustomPrompts.SystemPrompts.CompareJob, &config.CustomPrompts.SystemPrompts.CompareJobFile,
		g.SystemPrompts.CompareJob, g.SystemPrompts.CompareJobFile)
	inheritPrompt(&config.CustomPrompts.UserPrompts.CompareJob, &config.CustomPrompts.UserPrompts.CompareJobFile,
		g.UserPrompts.CompareJob, g.UserPrompts.CompareJobFile)

	return config
}

// GetEditConfig returns the AI configuration for assisted résumé edits with fallback to global config
func (c *Config) GetEditConfig() OperationAIConfig {
	config := c.AI.Edit
	c.applyOperationDefaults(&config)

	g := c.AI.CustomPrompts
	inheritPrompt(&config.CustomPrompts.SystemPrompts.EditCV, &config.CustomPrompts.SystemPrompts.EditCVFile,
		g.SystemPrompts.EditCV, g.SystemPrompts.EditCVFile)
	inheritPrompt(&config.CustomPrompts.UserPrompts.EditCV, &config.CustomPrompts.UserPrompts.EditCVFile,
		g.UserPrompts.EditCV, g.UserPrompts.EditCVFile)

	return config
}

// GetOperationConfig dispatches on an operation name.
func (c *Config) GetOperationConfig(operation string) OperationAIConfig {
	switch operation {
	case OperationCompare:
		return c.GetCompareConfig()
	case OperationEdit:
		return c.GetEditConfig()
	default:
		return c.GetAnalyzeConfig()
	}
}

// Prompts returns the loaded prompt store, creating an empty one if the
// config was built by hand.
func (c *Config) Prompts() *PromptStore {
	if c.prompts == nil {
		c.prompts = NewPromptStore()
	}
	return c.prompts
}

// CostFor returns the token price of an operation.
func (c *Config) CostFor(operation string) int {
	switch operation {
	case OperationAnalyze:
		return c.Wallet.Costs.Analyze
	case OperationCompare:
		return c.Wallet.Costs.Compare
	case OperationEdit:
		return c.Wallet.Costs.Edit
	case "talent":
		return c.Wallet.Costs.Talent
	}
	return 0
}
