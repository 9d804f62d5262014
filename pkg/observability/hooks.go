package observability

import (
	"context"
	"log/slog"

	"github.com/aretw0/itpbot/pkg/domain"
)

// LoggingHooks logs every lifecycle event at debug level, calculations at info.
func LoggingHooks(logger *slog.Logger) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnTransition: func(ctx context.Context, e *domain.TransitionEvent) {
			logger.DebugContext(ctx, "transition",
				"session_key", e.SessionKey,
				"from", e.From,
				"to", e.To,
				"ended", e.Ended)
		},
		OnCommand: func(ctx context.Context, e *domain.CommandEvent) {
			logger.DebugContext(ctx, "command", "session_key", e.SessionKey, "command", e.Command)
		},
		OnCalculation: func(ctx context.Context, e *domain.CalculationEvent) {
			logger.InfoContext(ctx, "calculation",
				"session_key", e.SessionKey,
				"vehicle_id", e.VehicleID,
				"region", e.Region,
				"rate", e.Rate,
				"tax", e.Tax,
				"duration", e.Duration,
				"is_error", e.IsError)
		},
		OnFailure: func(ctx context.Context, e *domain.FailureEvent) {
			logger.DebugContext(ctx, "soft failure",
				"session_key", e.SessionKey,
				"step", e.Step,
				"kind", e.Kind)
		},
	}
}

// Combine returns hooks that call each non-nil hook of every set, in order.
func Combine(sets ...domain.LifecycleHooks) domain.LifecycleHooks {
	var out domain.LifecycleHooks
	var transitions []func(context.Context, *domain.TransitionEvent)
	var commands []func(context.Context, *domain.CommandEvent)
	var calculations []func(context.Context, *domain.CalculationEvent)
	var failures []func(context.Context, *domain.FailureEvent)

	for _, s := range sets {
		if s.OnTransition != nil {
			transitions = append(transitions, s.OnTransition)
		}
		if s.OnCommand != nil {
			commands = append(commands, s.OnCommand)
		}
		if s.OnCalculation != nil {
			calculations = append(calculations, s.OnCalculation)
		}
		if s.OnFailure != nil {
			failures = append(failures, s.OnFailure)
		}
	}

	if len(transitions) > 0 {
		out.OnTransition = func(ctx context.Context, e *domain.TransitionEvent) {
			for _, fn := range transitions {
				fn(ctx, e)
			}
		}
	}
	if len(commands) > 0 {
		out.OnCommand = func(ctx context.Context, e *domain.CommandEvent) {
			for _, fn := range commands {
				fn(ctx, e)
			}
		}
	}
	if len(calculations) > 0 {
		out.OnCalculation = func(ctx context.Context, e *domain.CalculationEvent) {
			for _, fn := range calculations {
				fn(ctx, e)
			}
		}
	}
	if len(failures) > 0 {
		out.OnFailure = func(ctx context.Context, e *domain.FailureEvent) {
			for _, fn := range failures {
				fn(ctx, e)
			}
		}
	}
	return out
}
