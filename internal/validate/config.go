package validate

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/ppiankov/claimcheck/internal/model"
)

var structValidator = validator.New(validator.WithRequiredStructEnabled())

// Config validates a fully merged configuration. Every field error is
// reported, one per line.
func Config(cfg *model.Config) error {
	if cfg == nil {
		return errors.New("config: nil")
	}

	var msgs []string
	if err := structValidator.Struct(cfg); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return fmt.Errorf("config: %w", err)
		}
		for _, fe := range fieldErrs {
			msgs = append(msgs, describe(fe))
		}
	}

	if cfg.Quota.Timezone != "" {
		if _, err := time.LoadLocation(cfg.Quota.Timezone); err != nil {
			msgs = append(msgs, fmt.Sprintf("quota.timezone: unknown time zone %q", cfg.Quota.Timezone))
		}
	}
	if cfg.Quota.Burst > 0 && cfg.Quota.Burst > cfg.Quota.RequestsPerWindow {
		msgs = append(msgs, fmt.Sprintf("quota.burst: %d exceeds requests_per_window %d", cfg.Quota.Burst, cfg.Quota.RequestsPerWindow))
	}
	if cfg.LLM.Provider == "ollama" && cfg.LLM.Model == "" {
		msgs = append(msgs, "llm.model: required for ollama")
	}

	if len(msgs) > 0 {
		return fmt.Errorf("invalid config:\n  %s", strings.Join(msgs, "\n  "))
	}
	return nil
}

func describe(fe validator.FieldError) string {
	// Namespace is Config.Quota.MaxWorkers; report quota.maxworkers
	name := strings.ToLower(strings.TrimPrefix(fe.Namespace(), "Config."))
	switch fe.Tag() {
	case "oneof":
		return fmt.Sprintf("%s: %q must be one of [%s]", name, fmt.Sprint(fe.Value()), fe.Param())
	case "required", "required_if":
		return fmt.Sprintf("%s: required", name)
	case "url":
		return fmt.Sprintf("%s: %q is not a URL", name, fmt.Sprint(fe.Value()))
	default:
		return fmt.Sprintf("%s: %v violates %s=%s", name, fe.Value(), fe.Tag(), fe.Param())
	}
}
