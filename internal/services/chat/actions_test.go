// File: internal/services/chat/actions_test.go
package chat

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/lunahq/luna/internal/domain"
	"github.com/lunahq/luna/internal/services/ai"
)

type fakeImageProvider struct {
	imageURL   string
	err        error
	onGenerate func()
}

func (f *fakeImageProvider) GenerateImage(ctx context.Context, prompt string) (string, error) {
	if f.onGenerate != nil {
		f.onGenerate()
	}
	return f.imageURL, f.err
}

func (f *fakeImageProvider) EditImage(ctx context.Context, prompt string, att domain.Attachment) (string, error) {
	return f.imageURL, f.err
}

type fakeVideoProvider struct {
	startErr    error
	pollsNeeded int
	polled      int
	failed      bool
	videoURL    string
	fetchErr    error
}

func (f *fakeVideoProvider) StartVideoGeneration(ctx context.Context, prompt string) (ai.VideoOperation, error) {
	if f.startErr != nil {
		return ai.VideoOperation{}, f.startErr
	}
	return ai.VideoOperation{ID: "op-1", Done: f.pollsNeeded == 0}, nil
}

func (f *fakeVideoProvider) GetVideoOperation(ctx context.Context, id string) (ai.VideoOperation, error) {
	f.polled++
	done := f.polled >= f.pollsNeeded
	return ai.VideoOperation{ID: id, Done: done, Failed: done && f.failed}, nil
}

func (f *fakeVideoProvider) FetchVideo(ctx context.Context, op ai.VideoOperation) (string, error) {
	return f.videoURL, f.fetchErr
}

type fakeSearchProvider struct {
	text   string
	chunks []domain.GroundingChunk
	err    error
}

func (f *fakeSearchProvider) SearchGrounded(ctx context.Context, query string) (string, []domain.GroundingChunk, error) {
	return f.text, f.chunks, f.err
}

type actionFixture struct {
	svc    *ActionService
	store  *SessionStore
	images *fakeImageProvider
	videos *fakeVideoProvider
	search *fakeSearchProvider
	flight *Flight
	sleeps int
}

func newActionFixture(t *testing.T) *actionFixture {
	t.Helper()
	store, _ := newTestStore(t)
	f := &actionFixture{
		store:  store,
		images: &fakeImageProvider{},
		videos: &fakeVideoProvider{},
		search: &fakeSearchProvider{},
		flight: NewFlight(),
	}
	f.svc = NewActionService(DefaultConfig(), store, f.images, f.videos, f.search, nil, f.flight, nopLogger{})
	f.svc.SetSleeper(func(ctx context.Context, d time.Duration) error {
		f.sleeps++
		return nil
	})
	return f
}

func TestGenerateImageSettlesPlaceholder(t *testing.T) {
	f := newActionFixture(t)
	f.images.imageURL = "data:image/png;base64,aW1n"
	chatID := f.store.ActiveChatID()

	f.svc.GenerateImage(context.Background(), chatID, "a red fox")

	msgs := f.store.ActiveSession().Messages
	if len(msgs) != 2 {
		t.Fatalf("expected [user, model], got %d messages", len(msgs))
	}
	if msgs[0].Text != `Imagine: "a red fox"` {
		t.Errorf("unexpected action label: %q", msgs[0].Text)
	}
	if msgs[0].TitleHint != "a red fox" {
		t.Errorf("expected clean prompt as title hint, got %q", msgs[0].TitleHint)
	}
	if msgs[1].ImageURL != f.images.imageURL {
		t.Errorf("placeholder not overwritten with image, got %+v", msgs[1])
	}
	if f.flight.Active() {
		t.Error("flight must be released")
	}
}

func TestEditImageIncludesCaption(t *testing.T) {
	f := newActionFixture(t)
	f.images.imageURL = "data:image/png;base64,ZWRpdA=="
	chatID := f.store.ActiveChatID()

	f.svc.EditImage(context.Background(), chatID, "make it blue", domain.Attachment{MimeType: "image/png", Data: "aW1n"})

	msgs := f.store.ActiveSession().Messages
	last := msgs[len(msgs)-1]
	if last.Text != "Here is the edited image:" || last.ImageURL == "" {
		t.Errorf("unexpected edit result: %+v", last)
	}
}

func TestActionFailureOverwritesPlaceholder(t *testing.T) {
	f := newActionFixture(t)
	f.images.err = errors.New("quota exhausted")
	chatID := f.store.ActiveChatID()

	f.svc.GenerateImage(context.Background(), chatID, "a red fox")

	msgs := f.store.ActiveSession().Messages
	last := msgs[len(msgs)-1]
	if last.Role != domain.RoleModel {
		t.Fatalf("expected assistant failure message, got %+v", last)
	}
	if !strings.Contains(last.Text, "Sorry, something went wrong") || !strings.Contains(last.Text, "quota exhausted") {
		t.Errorf("failure text missing detail: %q", last.Text)
	}
	if f.flight.Active() {
		t.Error("flight must be released after a failure")
	}
}

func TestGenerateVideoPollsUntilDone(t *testing.T) {
	f := newActionFixture(t)
	f.videos.pollsNeeded = 3
	f.videos.videoURL = "data:video/mp4;base64,dmlk"
	chatID := f.store.ActiveChatID()

	f.svc.GenerateVideo(context.Background(), chatID, "waves at dawn")

	if f.videos.polled != 3 {
		t.Errorf("expected 3 polls, got %d", f.videos.polled)
	}
	if f.sleeps != 3 {
		t.Errorf("expected one wait per poll, got %d", f.sleeps)
	}

	msgs := f.store.ActiveSession().Messages
	last := msgs[len(msgs)-1]
	if last.VideoURL != f.videos.videoURL {
		t.Errorf("expected video URI materialized, got %+v", last)
	}
	if !strings.Contains(last.Text, `"waves at dawn"`) {
		t.Errorf("final text should reference the prompt, got %q", last.Text)
	}
}

func TestGenerateVideoSurvivesCallerCancel(t *testing.T) {
	f := newActionFixture(t)
	f.videos.pollsNeeded = 2
	f.videos.videoURL = "data:video/mp4;base64,dmlk"
	chatID := f.store.ActiveChatID()

	// The sleeper sees the context the poll loop runs on; a live Err means
	// the caller's cancellation leaked through.
	f.svc.SetSleeper(func(ctx context.Context, d time.Duration) error {
		f.sleeps++
		return ctx.Err()
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	f.svc.GenerateVideo(ctx, chatID, "a storm")

	if f.videos.polled != 2 {
		t.Errorf("expected polling to run to completion, got %d polls", f.videos.polled)
	}
	msgs := f.store.ActiveSession().Messages
	last := msgs[len(msgs)-1]
	if last.VideoURL != f.videos.videoURL {
		t.Errorf("issued action must settle despite caller cancel, got %+v", last)
	}
}

func TestGenerateVideoFailedOperation(t *testing.T) {
	f := newActionFixture(t)
	f.videos.pollsNeeded = 1
	f.videos.failed = true
	chatID := f.store.ActiveChatID()

	f.svc.GenerateVideo(context.Background(), chatID, "waves")

	msgs := f.store.ActiveSession().Messages
	last := msgs[len(msgs)-1]
	if !strings.Contains(last.Text, "Sorry, something went wrong") {
		t.Errorf("failed operation should settle as failure text, got %q", last.Text)
	}
	if last.VideoURL != "" {
		t.Error("failed operation must not carry a video URI")
	}
}

func TestSearchQuerySurfacesCitations(t *testing.T) {
	f := newActionFixture(t)
	f.search.text = "The answer is 42."
	f.search.chunks = []domain.GroundingChunk{
		{URI: "https://example.com/a", Title: "Source A"},
		{URI: "https://example.com/b", Title: "Source B"},
	}
	chatID := f.store.ActiveChatID()

	f.svc.SearchQuery(context.Background(), chatID, "meaning of life")

	msgs := f.store.ActiveSession().Messages
	last := msgs[len(msgs)-1]
	if last.Text != "The answer is 42." {
		t.Errorf("unexpected answer text: %q", last.Text)
	}
	if len(last.GroundingChunks) != 2 || last.GroundingChunks[0].URI != "https://example.com/a" {
		t.Errorf("citations not surfaced verbatim: %+v", last.GroundingChunks)
	}
}

func TestActionResultDroppedAfterSwitch(t *testing.T) {
	f := newActionFixture(t)
	ctx := context.Background()
	original := f.store.ActiveChatID()
	f.images.imageURL = "data:image/png;base64,aW1n"
	f.images.onGenerate = func() {
		// The user switches away while the remote call runs.
		f.store.CreateSession(ctx)
	}

	f.svc.GenerateImage(ctx, original, "a red fox")

	msgs := f.store.SessionByID(original).Messages
	if len(msgs) != 2 {
		t.Fatalf("expected label and placeholder to remain, got %d messages", len(msgs))
	}
	if msgs[1].ImageURL != "" || msgs[1].Text != "" {
		t.Errorf("stale result must not land, got %+v", msgs[1])
	}
	if n := len(f.store.ActiveSession().Messages); n != 0 {
		t.Errorf("new active session must stay untouched, got %d messages", n)
	}
}

func TestActionBusyFlightIsNoOp(t *testing.T) {
	f := newActionFixture(t)
	chatID := f.store.ActiveChatID()

	if !f.flight.begin() {
		t.Fatal("could not claim flight for test")
	}
	defer f.flight.end()

	f.svc.SearchQuery(context.Background(), chatID, "anything")

	if n := len(f.store.ActiveSession().Messages); n != 0 {
		t.Errorf("busy action must not mutate the session, got %d messages", n)
	}
}
