// File: internal/services/persona/service_test.go
package persona

import (
	"context"
	"strings"
	"testing"

	"github.com/lunahq/luna/internal/domain"
	personarepo "github.com/lunahq/luna/internal/repository/persona"
)

type nopLogger struct{}

func (nopLogger) Info(msg string, keysAndValues ...interface{})  {}
func (nopLogger) Error(msg string, keysAndValues ...interface{}) {}
func (nopLogger) Debug(msg string, keysAndValues ...interface{}) {}
func (nopLogger) Warn(msg string, keysAndValues ...interface{})  {}

type memoryPersonaRepo struct {
	personas map[string]*domain.Persona
	active   map[string]string
}

func newMemoryPersonaRepo() *memoryPersonaRepo {
	return &memoryPersonaRepo{
		personas: map[string]*domain.Persona{},
		active:   map[string]string{},
	}
}

func (r *memoryPersonaRepo) Create(ctx context.Context, p *domain.Persona) (*domain.Persona, error) {
	r.personas[p.ID] = p
	return p, nil
}

func (r *memoryPersonaRepo) Update(ctx context.Context, p *domain.Persona) error {
	existing, ok := r.personas[p.ID]
	if !ok || existing.Identity != p.Identity {
		return personarepo.ErrPersonaNotFound
	}
	existing.Name = p.Name
	existing.Prompt = p.Prompt
	return nil
}

func (r *memoryPersonaRepo) Delete(ctx context.Context, identity, id string) error {
	existing, ok := r.personas[id]
	if !ok || existing.Identity != identity {
		return personarepo.ErrPersonaNotFound
	}
	delete(r.personas, id)
	return nil
}

func (r *memoryPersonaRepo) FindByIdentity(ctx context.Context, identity string) ([]domain.Persona, error) {
	var out []domain.Persona
	for _, p := range r.personas {
		if p.Identity == identity {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (r *memoryPersonaRepo) FindByID(ctx context.Context, identity, id string) (*domain.Persona, error) {
	p, ok := r.personas[id]
	if !ok || p.Identity != identity {
		return nil, personarepo.ErrPersonaNotFound
	}
	return p, nil
}

func (r *memoryPersonaRepo) SetActive(ctx context.Context, identity, personaID string) error {
	r.active[identity] = personaID
	return nil
}

func (r *memoryPersonaRepo) ClearActive(ctx context.Context, identity string) error {
	delete(r.active, identity)
	return nil
}

func (r *memoryPersonaRepo) ActiveID(ctx context.Context, identity string) (string, error) {
	return r.active[identity], nil
}

func TestBuiltinInstruction(t *testing.T) {
	classic := BuiltinInstruction(VersionClassic)
	if !strings.Contains(classic, "friendly and helpful") {
		t.Errorf("unexpected classic instruction: %q", classic)
	}

	advanced := BuiltinInstruction(VersionAdvanced)
	if !strings.Contains(advanced, "expert programmer") {
		t.Errorf("unexpected advanced instruction: %q", advanced)
	}

	// Unknown versions fall back to classic.
	if BuiltinInstruction("3.0") != classic {
		t.Error("unknown version should fall back to classic")
	}
}

func TestInstructionForUsesActivePersona(t *testing.T) {
	svc := NewService(newMemoryPersonaRepo(), nopLogger{})
	ctx := context.Background()
	identity := "user:alice"

	// No persona active: the built-in instruction applies.
	if got := svc.InstructionFor(ctx, identity, VersionClassic); got != BuiltinInstruction(VersionClassic) {
		t.Errorf("expected builtin fallback, got %q", got)
	}

	created, err := svc.Add(ctx, identity, "Pirate", "You are a pirate. Answer in pirate speak.")
	if err != nil {
		t.Fatalf("add failed: %v", err)
	}
	if err := svc.SetActive(ctx, identity, created.ID); err != nil {
		t.Fatalf("activate failed: %v", err)
	}

	if got := svc.InstructionFor(ctx, identity, VersionAdvanced); got != created.Prompt {
		t.Errorf("active persona must override the version, got %q", got)
	}

	// Another identity is unaffected by alice's selection.
	if got := svc.InstructionFor(ctx, "user:bob", VersionClassic); got != BuiltinInstruction(VersionClassic) {
		t.Errorf("persona selection leaked across identities: %q", got)
	}
}

func TestDeleteActivePersonaClearsSelection(t *testing.T) {
	repo := newMemoryPersonaRepo()
	svc := NewService(repo, nopLogger{})
	ctx := context.Background()
	identity := "user:alice"

	created, _ := svc.Add(ctx, identity, "Pirate", "Arr.")
	_ = svc.SetActive(ctx, identity, created.ID)

	if err := svc.Delete(ctx, identity, created.ID); err != nil {
		t.Fatalf("delete failed: %v", err)
	}

	activeID, _ := svc.ActiveID(ctx, identity)
	if activeID != "" {
		t.Errorf("deleting the active persona must clear the selection, got %q", activeID)
	}
	if got := svc.InstructionFor(ctx, identity, VersionClassic); got != BuiltinInstruction(VersionClassic) {
		t.Errorf("expected builtin fallback after delete, got %q", got)
	}
}

func TestSetActiveUnknownPersona(t *testing.T) {
	svc := NewService(newMemoryPersonaRepo(), nopLogger{})

	if err := svc.SetActive(context.Background(), "user:alice", "persona-missing"); err == nil {
		t.Error("activating an unknown persona must fail")
	}
}

func TestSetActiveEmptyClears(t *testing.T) {
	svc := NewService(newMemoryPersonaRepo(), nopLogger{})
	ctx := context.Background()
	identity := "user:alice"

	created, _ := svc.Add(ctx, identity, "Pirate", "Arr.")
	_ = svc.SetActive(ctx, identity, created.ID)
	if err := svc.SetActive(ctx, identity, ""); err != nil {
		t.Fatalf("clearing selection failed: %v", err)
	}

	activeID, _ := svc.ActiveID(ctx, identity)
	if activeID != "" {
		t.Errorf("expected cleared selection, got %q", activeID)
	}
}
