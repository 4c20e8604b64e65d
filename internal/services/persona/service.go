// File: internal/services/persona/service.go
package persona

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/lunahq/luna/internal/domain"
	"github.com/lunahq/luna/internal/repository/persona"
)

// Built-in assistant versions. A custom persona, when selected, overrides
// both.
const (
	VersionClassic  = "1.0"
	VersionAdvanced = "2.0"

	classicInstruction = "You are Luna, a friendly and helpful AI assistant."

	advancedInstruction = "You are Luna 2.0, an advanced AI assistant and expert programmer. " +
		"Your responses should be highly detailed, structured, and nuanced. For any request, " +
		"break down the solution into clear, logical steps. Use Markdown for formatting, " +
		"including tables, lists, and multiple code blocks with language identifiers where " +
		"appropriate, to enhance clarity. When providing code, also provide a thorough " +
		"explanation of how it works. You are proactive in your assistance, anticipating user " +
		"needs and offering further suggestions or optimizations."
)

// BuiltinInstruction returns the system instruction for an assistant version.
func BuiltinInstruction(version string) string {
	if version == VersionAdvanced {
		return advancedInstruction
	}
	return classicInstruction
}

// Logger is the logging interface this service depends on.
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
	Debug(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
}

// Service manages user-defined personas and resolves the system instruction
// a conversation should open with.
type Service struct {
	repo   persona.PersonaRepository
	logger Logger
}

func NewService(repo persona.PersonaRepository, logger Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

// InstructionFor resolves the system instruction for an identity: the active
// custom persona's prompt when one is selected, the built-in instruction for
// the requested version otherwise.
func (s *Service) InstructionFor(ctx context.Context, identity, version string) string {
	activeID, err := s.repo.ActiveID(ctx, identity)
	if err != nil {
		s.logger.Warn("failed to resolve active persona", "identity", identity, "error", err)
		return BuiltinInstruction(version)
	}
	if activeID == "" {
		return BuiltinInstruction(version)
	}

	p, err := s.repo.FindByID(ctx, identity, activeID)
	if err != nil {
		return BuiltinInstruction(version)
	}
	return p.Prompt
}

// List returns the identity's personas.
func (s *Service) List(ctx context.Context, identity string) ([]domain.Persona, error) {
	return s.repo.FindByIdentity(ctx, identity)
}

// Add creates a persona.
func (s *Service) Add(ctx context.Context, identity, name, prompt string) (*domain.Persona, error) {
	p := &domain.Persona{
		ID:       "persona-" + uuid.NewString(),
		Identity: identity,
		Name:     strings.TrimSpace(name),
		Prompt:   prompt,
	}
	return s.repo.Create(ctx, p)
}

// Update renames or reprompts a persona.
func (s *Service) Update(ctx context.Context, identity, id, name, prompt string) error {
	return s.repo.Update(ctx, &domain.Persona{
		ID:       id,
		Identity: identity,
		Name:     strings.TrimSpace(name),
		Prompt:   prompt,
	})
}

// Delete removes a persona, deactivating it first when it is the selection.
func (s *Service) Delete(ctx context.Context, identity, id string) error {
	activeID, err := s.repo.ActiveID(ctx, identity)
	if err == nil && activeID == id {
		if err := s.repo.ClearActive(ctx, identity); err != nil {
			return err
		}
	}
	return s.repo.Delete(ctx, identity, id)
}

// SetActive selects a persona, or clears the selection when id is empty.
func (s *Service) SetActive(ctx context.Context, identity, id string) error {
	if id == "" {
		return s.repo.ClearActive(ctx, identity)
	}
	if _, err := s.repo.FindByID(ctx, identity, id); err != nil {
		return err
	}
	return s.repo.SetActive(ctx, identity, id)
}

// ActiveID returns the selected persona id, empty when none.
func (s *Service) ActiveID(ctx context.Context, identity string) (string, error) {
	return s.repo.ActiveID(ctx, identity)
}
