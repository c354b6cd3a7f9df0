// File path: internal/llm/llm.go
package llm

import (
	"os"
	"strings"
	"time"

	"github.com/openai/openai-go/v2/option"

	"github.com/coursekit/coursekit/internal/common"
	"github.com/coursekit/coursekit/internal/llm/providers"
)

type Message = providers.Message

type Provider = providers.Provider

// ErrUnavailable is returned by the fallback provider; collaborators treat it
// as a signal to use their deterministic paths.
var ErrUnavailable = providers.ErrUnavailable

// NewProvider selects the OpenAI-backed provider when OPENAI_API_KEY is set
// and the local fallback otherwise.
func NewProvider() Provider {
	logger := common.Logger()
	apiKey := strings.TrimSpace(os.Getenv("OPENAI_API_KEY"))
	if apiKey == "" {
		logger.Warn("llm: OPENAI_API_KEY not set; falling back to local provider")
		return providers.NewLocalProvider()
	}
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if endpoint := strings.TrimSpace(os.Getenv("OPENAI_ENDPOINT")); endpoint != "" {
		logger.Info("llm: using custom endpoint", "endpoint", endpoint)
		opts = append(opts, option.WithBaseURL(endpoint))
	}
	if timeoutStr := strings.TrimSpace(os.Getenv("OPENAI_HTTP_TIMEOUT")); timeoutStr != "" {
		timeout, err := time.ParseDuration(timeoutStr)
		if err != nil {
			logger.Warn("llm: invalid OPENAI_HTTP_TIMEOUT, using default", "value", timeoutStr, "error", err)
		} else {
			opts = append(opts, option.WithRequestTimeout(timeout))
		}
	}
	logger.Info("llm: OpenAI provider selected")
	return providers.NewOpenAIProvider(opts...)
}
