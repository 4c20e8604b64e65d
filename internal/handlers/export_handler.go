// File: internal/handlers/export_handler.go
package handlers

import (
	"bytes"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"

	"github.com/lunahq/luna/internal/domain"
	"github.com/lunahq/luna/internal/middleware"
	"github.com/lunahq/luna/internal/services"
)

// ExportHandler renders a session transcript as a standalone HTML page.
// Assistant turns are markdown; goldmark renders them the same way the chat
// view does.
type ExportHandler struct {
	ChatService *services.ChatService
	markdown    goldmark.Markdown
}

func NewExportHandler(cs *services.ChatService) *ExportHandler {
	return &ExportHandler{
		ChatService: cs,
		markdown: goldmark.New(
			goldmark.WithExtensions(extension.GFM),
			goldmark.WithRendererOptions(html.WithHardWraps()),
		),
	}
}

func (h *ExportHandler) ExportChat(w http.ResponseWriter, r *http.Request) {
	identity := middleware.IdentityFrom(r.Context())
	session := h.ChatService.Session(r.Context(), identity, mux.Vars(r)["id"])
	if session == nil {
		writeError(w, "Unknown chat", http.StatusNotFound)
		return
	}

	var page bytes.Buffer
	page.WriteString("<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n")
	fmt.Fprintf(&page, "<title>%s</title>\n</head>\n<body>\n", htmlEscape(session.Title))
	fmt.Fprintf(&page, "<h1>%s</h1>\n", htmlEscape(session.Title))
	fmt.Fprintf(&page, "<p><em>Exported %s</em></p>\n", time.Now().Format("2006-01-02 15:04"))

	for _, msg := range session.Messages {
		h.renderMessage(&page, msg)
	}

	page.WriteString("</body>\n</html>\n")

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", exportFilename(session)))
	w.WriteHeader(http.StatusOK)
	w.Write(page.Bytes())
}

func (h *ExportHandler) renderMessage(page *bytes.Buffer, msg domain.Message) {
	speaker := "Luna"
	if msg.Role == domain.RoleUser {
		speaker = "You"
	}
	fmt.Fprintf(page, "<h3>%s</h3>\n", speaker)

	if msg.Text != "" {
		if msg.Role == domain.RoleModel {
			if err := h.markdown.Convert([]byte(msg.Text), page); err != nil {
				fmt.Fprintf(page, "<p>%s</p>\n", htmlEscape(msg.Text))
			}
		} else {
			fmt.Fprintf(page, "<p>%s</p>\n", htmlEscape(msg.Text))
		}
	}
	if msg.ImageURL != "" {
		fmt.Fprintf(page, "<p><img src=%q alt=\"attached image\" style=\"max-width:100%%\"></p>\n", msg.ImageURL)
	}
	if msg.VideoURL != "" {
		fmt.Fprintf(page, "<p><video src=%q controls style=\"max-width:100%%\"></video></p>\n", msg.VideoURL)
	}
	if len(msg.GroundingChunks) > 0 {
		page.WriteString("<p>Sources:</p>\n<ul>\n")
		for _, chunk := range msg.GroundingChunks {
			title := chunk.Title
			if title == "" {
				title = chunk.URI
			}
			fmt.Fprintf(page, "<li><a href=%q>%s</a></li>\n", chunk.URI, htmlEscape(title))
		}
		page.WriteString("</ul>\n")
	}
}

func exportFilename(session *domain.ChatSession) string {
	name := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		case r == ' ':
			return '-'
		}
		return -1
	}, session.Title)
	if name == "" {
		name = session.ID
	}
	return name + ".html"
}

func htmlEscape(s string) string {
	replacer := strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
		`"`, "&quot;",
	)
	return replacer.Replace(s)
}
