// File: internal/services/ai/media_client.go
package ai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/lunahq/luna/internal/domain"
)

// mediaClient speaks the media surface directly over REST: long-running
// video generation and search-grounded completions, neither of which has a
// client-library binding.
type mediaClient struct {
	apiKey      string
	baseURL     string
	videoModel  string
	searchModel string
	httpClient  *http.Client
}

func (c *mediaClient) configured() error {
	if c.baseURL == "" {
		return NewConfigError("MEDIA_BASE_URL is not configured")
	}
	if c.apiKey == "" {
		return NewConfigError("MEDIA_API_KEY is not configured")
	}
	return nil
}

func (c *mediaClient) doJSON(ctx context.Context, method, url string, payload, out interface{}) error {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return NewProviderError("media", "marshal request", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return NewProviderError("media", "create request", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return NewProviderError("media", "request failed", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return NewProviderError("media", "read response", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return NewProviderError("media",
			fmt.Sprintf("unexpected status %d", resp.StatusCode), nil)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return NewProviderError("media", "parse response", err)
	}
	return nil
}

type videoJobResponse struct {
	ID       string `json:"id"`
	Status   string `json:"status"`
	VideoURL string `json:"video_url"`
	Error    string `json:"error"`
}

func (r videoJobResponse) toOperation() VideoOperation {
	return VideoOperation{
		ID:       r.ID,
		Done:     r.Status == "succeeded" || r.Status == "failed",
		Failed:   r.Status == "failed",
		VideoURL: r.VideoURL,
	}
}

func (c *mediaClient) startVideo(ctx context.Context, prompt string) (VideoOperation, error) {
	if err := c.configured(); err != nil {
		return VideoOperation{}, err
	}

	var resp videoJobResponse
	err := c.doJSON(ctx, http.MethodPost, c.baseURL+"/videos/generations", map[string]string{
		"model":  c.videoModel,
		"prompt": prompt,
	}, &resp)
	if err != nil {
		return VideoOperation{}, err
	}
	if resp.ID == "" {
		return VideoOperation{}, NewPayloadError("video", "submission returned no operation id")
	}
	return resp.toOperation(), nil
}

func (c *mediaClient) getVideo(ctx context.Context, id string) (VideoOperation, error) {
	if err := c.configured(); err != nil {
		return VideoOperation{}, err
	}

	var resp videoJobResponse
	err := c.doJSON(ctx, http.MethodGet, c.baseURL+"/videos/generations/"+id, nil, &resp)
	if err != nil {
		return VideoOperation{}, err
	}
	return resp.toOperation(), nil
}

// downloadVideo materializes a finished operation's media as a renderable
// data URI.
func (c *mediaClient) downloadVideo(ctx context.Context, op VideoOperation) (string, error) {
	if op.VideoURL == "" {
		return "", NewPayloadError("video", "finished operation carried no video link")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, op.VideoURL, nil)
	if err != nil {
		return "", NewProviderError("video", "create download request", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", NewProviderError("video", "download failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", NewProviderError("video",
			fmt.Sprintf("download returned status %d", resp.StatusCode), nil)
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", NewProviderError("video", "read media", err)
	}

	mimeType := resp.Header.Get("Content-Type")
	if mimeType == "" {
		mimeType = "video/mp4"
	}
	return fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(raw)), nil
}

func (c *mediaClient) searchGrounded(ctx context.Context, query string) (string, []domain.GroundingChunk, error) {
	if err := c.configured(); err != nil {
		return "", nil, err
	}

	payload := map[string]interface{}{
		"model":    c.searchModel,
		"messages": []map[string]string{{"role": "user", "content": query}},
		"plugins":  []map[string]string{{"id": "web"}},
	}

	var resp struct {
		Choices []struct {
			Message struct {
				Content     string `json:"content"`
				Annotations []struct {
					Type        string `json:"type"`
					URLCitation struct {
						URL   string `json:"url"`
						Title string `json:"title"`
					} `json:"url_citation"`
				} `json:"annotations"`
			} `json:"message"`
		} `json:"choices"`
	}
	err := c.doJSON(ctx, http.MethodPost, c.baseURL+"/chat/completions", payload, &resp)
	if err != nil {
		return "", nil, err
	}
	if len(resp.Choices) == 0 {
		return "", nil, NewPayloadError("search", "empty search response")
	}

	message := resp.Choices[0].Message
	chunks := make([]domain.GroundingChunk, 0, len(message.Annotations))
	for _, a := range message.Annotations {
		if a.Type != "url_citation" || a.URLCitation.URL == "" {
			continue
		}
		chunks = append(chunks, domain.GroundingChunk{
			URI:   a.URLCitation.URL,
			Title: a.URLCitation.Title,
		})
	}
	return message.Content, chunks, nil
}
