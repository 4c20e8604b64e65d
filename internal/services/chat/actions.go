// File: internal/services/chat/actions.go
package chat

import (
	"context"
	"fmt"
	"time"

	"github.com/lunahq/luna/internal/domain"
	"github.com/lunahq/luna/internal/services/ai"
)

const videoProgressNotice = "📹 Generating video... This can take a few minutes. I'll update this message when it's ready."

// Sleeper waits out one poll interval. Injectable so tests can simulate a
// long-running operation without real delays.
type Sleeper func(ctx context.Context, d time.Duration) error

func realSleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// actionResult is whatever subset of an assistant message a one-shot action
// produced.
type actionResult struct {
	Text            string
	ImageURL        string
	VideoURL        string
	GroundingChunks []domain.GroundingChunk
}

// ActionService runs non-conversational actions through one generic
// request/response pattern: append the labeled user turn plus a placeholder,
// invoke the remote call, then overwrite the placeholder with the result or
// a failure message. Actions are not cancellable once issued.
type ActionService struct {
	config *Config
	store  *SessionStore
	images ai.ImageProvider
	videos ai.VideoProvider
	search ai.SearchProvider
	titles *TitleService
	flight *Flight
	logger Logger
	sleep  Sleeper
}

func NewActionService(
	config *Config,
	store *SessionStore,
	images ai.ImageProvider,
	videos ai.VideoProvider,
	search ai.SearchProvider,
	titles *TitleService,
	fl *Flight,
	logger Logger,
) *ActionService {
	return &ActionService{
		config: config,
		store:  store,
		images: images,
		videos: videos,
		search: search,
		titles: titles,
		flight: fl,
		logger: logger,
		sleep:  realSleep,
	}
}

// SetSleeper replaces the poll-interval wait, for tests.
func (a *ActionService) SetSleeper(s Sleeper) { a.sleep = s }

func (a *ActionService) GenerateImage(ctx context.Context, chatID, prompt string) {
	a.run(ctx, chatID, fmt.Sprintf("Imagine: %q", prompt), prompt, func(ctx context.Context) (actionResult, error) {
		imageURL, err := a.images.GenerateImage(ctx, prompt)
		if err != nil {
			return actionResult{}, err
		}
		return actionResult{ImageURL: imageURL}, nil
	})
}

func (a *ActionService) EditImage(ctx context.Context, chatID, prompt string, att domain.Attachment) {
	a.run(ctx, chatID, fmt.Sprintf("Edit Image: %q", prompt), prompt, func(ctx context.Context) (actionResult, error) {
		imageURL, err := a.images.EditImage(ctx, prompt, att)
		if err != nil {
			return actionResult{}, err
		}
		return actionResult{Text: "Here is the edited image:", ImageURL: imageURL}, nil
	})
}

// GenerateVideo is the long-running action: submit, surface an in-progress
// notice in the placeholder, poll at a fixed interval until the operation
// settles, then materialize the media as a renderable URI.
func (a *ActionService) GenerateVideo(ctx context.Context, chatID, prompt string) {
	a.run(ctx, chatID, fmt.Sprintf("Create Video: %q", prompt), prompt, func(ctx context.Context) (actionResult, error) {
		op, err := a.videos.StartVideoGeneration(ctx, prompt)
		if err != nil {
			return actionResult{}, err
		}

		a.store.MutateActiveMessages(ctx, chatID, replaceTrailingModelText(videoProgressNotice))

		for !op.Done {
			if err := a.sleep(ctx, a.config.VideoPollInterval); err != nil {
				return actionResult{}, err
			}
			op, err = a.videos.GetVideoOperation(ctx, op.ID)
			if err != nil {
				return actionResult{}, err
			}
		}
		if op.Failed {
			return actionResult{}, ai.NewPayloadError("video", "video generation failed")
		}

		videoURL, err := a.videos.FetchVideo(ctx, op)
		if err != nil {
			return actionResult{}, err
		}
		return actionResult{
			Text:     fmt.Sprintf("Here is your generated video for: %q", prompt),
			VideoURL: videoURL,
		}, nil
	})
}

func (a *ActionService) SearchQuery(ctx context.Context, chatID, query string) {
	a.run(ctx, chatID, fmt.Sprintf("Search: %q", query), query, func(ctx context.Context) (actionResult, error) {
		text, chunks, err := a.search.SearchGrounded(ctx, query)
		if err != nil {
			return actionResult{}, err
		}
		return actionResult{Text: text, GroundingChunks: chunks}, nil
	})
}

// run is the shared message-bookkeeping contract for every action. The caller
// context is detached up front: once an action is issued it runs to
// completion, and a client disconnect must not settle the turn as a failure
// mid-poll.
func (a *ActionService) run(ctx context.Context, chatID, label, titleHint string, fn func(context.Context) (actionResult, error)) {
	if !a.flight.begin() {
		return
	}
	defer a.flight.end()

	ctx = context.WithoutCancel(ctx)

	session := a.store.SessionByID(chatID)
	if session == nil {
		return
	}
	isFirstTurn := len(session.Messages) == 0

	userMessage := domain.Message{Role: domain.RoleUser, Text: label, TitleHint: titleHint}
	a.store.MutateActiveMessages(ctx, chatID, func(prev []domain.Message) []domain.Message {
		return append(prev, userMessage, domain.Message{Role: domain.RoleModel})
	})

	if isFirstTurn && a.titles != nil {
		go a.titles.Generate(context.Background(), chatID, userMessage)
	}

	result, err := fn(ctx)
	if err != nil {
		a.logger.Error("action failed", "chat_id", chatID, "label", label, "error", err)
		a.store.MutateActiveMessages(ctx, chatID, replaceTrailingModelText(FailureText(label, err)))
		return
	}

	a.store.MutateActiveMessages(ctx, chatID, func(prev []domain.Message) []domain.Message {
		if len(prev) == 0 || prev[len(prev)-1].Role != domain.RoleModel {
			return prev
		}
		prev[len(prev)-1] = domain.Message{
			Role:            domain.RoleModel,
			Text:            result.Text,
			ImageURL:        result.ImageURL,
			VideoURL:        result.VideoURL,
			GroundingChunks: result.GroundingChunks,
		}
		return prev
	})
	a.logger.Info("action settled", "chat_id", chatID, "label", label)
}
