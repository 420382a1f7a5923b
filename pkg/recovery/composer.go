// Package recovery maps failure conditions to structured, user-facing
// responses. Builders are pure and side-effect free; every other component
// routes failures through them for uniform presentation.
package recovery

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Category is the failure taxonomy shared across the core.
type Category string

const (
	CategoryValidation    Category = "VALIDATION"
	CategoryBusinessLogic Category = "BUSINESS_LOGIC"
	CategorySystem        Category = "SYSTEM"
	CategoryRateLimit     Category = "RATE_LIMIT"
	CategoryAuth          Category = "AUTH"
)

// Response is a structured, user-facing failure description. Suggestions are
// ordered by preference; presentation formatting is the host's concern.
type Response struct {
	Category    Category       `json:"category,omitempty"`
	Message     string         `json:"message"`
	Suggestions []string       `json:"suggestions,omitempty"`
	Details     map[string]any `json:"details,omitempty"`
	SupportRef  string         `json:"support_ref,omitempty"`
}

// InsufficientBalance composes the response for a transfer or payment that
// exceeds the available funds, including the computed shortfall.
func InsufficientBalance(accountType string, available, requested float64) Response {
	shortfall := requested - available
	return Response{
		Category: CategoryBusinessLogic,
		Message: fmt.Sprintf("your %s account has %.2f available, %.2f short of the requested %.2f",
			accountType, available, shortfall, requested),
		Suggestions: []string{
			fmt.Sprintf("reduce the amount to %.2f or less", available),
			"use another account",
			"contact support",
		},
		Details: map[string]any{
			"account_type": accountType,
			"available":    available,
			"requested":    requested,
			"shortfall":    shortfall,
		},
	}
}

// InvalidSlotValue composes a per-slot validation failure that re-prompts
// without advancing the dialogue.
func InvalidSlotValue(slot, reason string) Response {
	return Response{
		Category:    CategoryValidation,
		Message:     fmt.Sprintf("the value for %s is not valid: %s", slot, reason),
		Suggestions: []string{fmt.Sprintf("provide a new value for %s", slot)},
		Details:     map[string]any{"slot": slot},
	}
}

// SlotRetriesExhausted composes the terminal response after the re-prompt cap
// for a slot is reached.
func SlotRetriesExhausted(slot string, attempts int) Response {
	return Response{
		Category:    CategoryValidation,
		Message:     fmt.Sprintf("could not get a valid value for %s after %d attempts", slot, attempts),
		Suggestions: []string{"start over", "contact support"},
		Details:     map[string]any{"slot": slot, "attempts": attempts},
	}
}

// UnknownIntent composes the response for an unclassified or unregistered intent.
func UnknownIntent(intent string) Response {
	r := Response{
		Category:    CategoryValidation,
		Message:     "I could not work out what you want to do",
		Suggestions: []string{"try rephrasing", "ask for the list of things I can help with"},
	}
	if intent != "" {
		r.Message = fmt.Sprintf("%q is not something I can help with", intent)
		r.Details = map[string]any{"intent": intent}
	}
	return r
}

// NegationRejected composes the response for a negation that is incompatible
// with the active intent.
func NegationRejected(intent, reason string) Response {
	return Response{
		Category:    CategoryValidation,
		Message:     reason,
		Suggestions: []string{"rephrase without the exclusion", "start a different request"},
		Details:     map[string]any{"intent": intent},
	}
}

// RateLimited composes the response for a request gate rejection, with the
// seconds-to-reset estimate.
func RateLimited(retryAfter time.Duration) Response {
	seconds := int(retryAfter.Round(time.Second).Seconds())
	if seconds < 1 {
		seconds = 1
	}
	return Response{
		Category:    CategoryRateLimit,
		Message:     fmt.Sprintf("too many requests; try again in %d seconds", seconds),
		Suggestions: []string{"wait before retrying"},
		Details:     map[string]any{"retry_after_seconds": seconds},
	}
}

// MessageRejected composes the response for an invalid raw message.
func MessageRejected(err error) Response {
	return Response{
		Category:    CategoryValidation,
		Message:     fmt.Sprintf("message rejected: %v", err),
		Suggestions: []string{"send a shorter, plain-text message"},
	}
}

// ConfirmationDeclined composes the response when the user declines a pending
// side-effecting action.
func ConfirmationDeclined(intent string) Response {
	return Response{
		Category:    CategoryValidation,
		Message:     fmt.Sprintf("okay, I won't go ahead with %s", intent),
		Suggestions: []string{"start a new request"},
		Details:     map[string]any{"intent": intent},
	}
}

// DuplicateInFlight composes the response when an identical request is
// already being processed.
func DuplicateInFlight(intent string) Response {
	return Response{
		Category:    CategoryValidation,
		Message:     fmt.Sprintf("an identical %s request is already being processed", intent),
		Suggestions: []string{"wait for the first request to finish"},
		Details:     map[string]any{"intent": intent},
	}
}

// ExecutionFailed composes the response for an executor error captured by the
// transaction coordinator. Timeouts and panics are system failures; everything
// else is treated as a business-logic rejection.
func ExecutionFailed(intent, errMsg string, system bool) Response {
	category := CategoryBusinessLogic
	if system {
		category = CategorySystem
	}
	return Response{
		Category:    category,
		Message:     fmt.Sprintf("%s could not be completed: %s", intent, errMsg),
		Suggestions: []string{"try again", "contact support"},
		Details:     map[string]any{"intent": intent},
	}
}

// SystemFailure composes the response for an internal fault (e.g. audit store
// unreachable) with a fresh support reference for correlation.
func SystemFailure(err error) Response {
	return Response{
		Category:    CategorySystem,
		Message:     "something went wrong on our side; nothing was executed",
		Suggestions: []string{"try again shortly", "contact support with the reference"},
		Details:     map[string]any{"cause": fmt.Sprintf("%v", err)},
		SupportRef:  uuid.NewString(),
	}
}

// Unauthorized composes the response for an authentication/authorization failure.
func Unauthorized() Response {
	return Response{
		Category:    CategoryAuth,
		Message:     "you are not authorized to perform this action",
		Suggestions: []string{"sign in again", "contact support"},
	}
}
