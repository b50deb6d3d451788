package review

import "context"

// Logger is the structured logging port for the orchestrator.
type Logger interface {
	LogDebug(ctx context.Context, message string, fields map[string]interface{})
	LogInfo(ctx context.Context, message string, fields map[string]interface{})
	LogWarning(ctx context.Context, message string, fields map[string]interface{})
	LogError(ctx context.Context, message string, fields map[string]interface{})
}

// nopLogger keeps the orchestrator's call sites unconditional.
type nopLogger struct{}

func (nopLogger) LogDebug(context.Context, string, map[string]interface{})   {}
func (nopLogger) LogInfo(context.Context, string, map[string]interface{})    {}
func (nopLogger) LogWarning(context.Context, string, map[string]interface{}) {}
func (nopLogger) LogError(context.Context, string, map[string]interface{})   {}
