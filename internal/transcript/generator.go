package transcript

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-bot/internal/platform"
)

// Format selects the rendered document kind.
type Format string

const (
	FormatText Format = "text"
	FormatHTML Format = "html"
)

// Ext returns the file extension for the format.
func (f Format) Ext() string {
	if f == FormatHTML {
		return "html"
	}
	return "txt"
}

// Document is a rendered channel history ready to be archived.
type Document struct {
	ChannelID   int64
	ChannelName string
	Format      Format
	Content     string
	GeneratedAt time.Time
}

// HistorySource is the slice of the platform gateway the generator
// needs: channel metadata and the full message log.
type HistorySource interface {
	ChannelName(ctx context.Context, channelID int64) (string, error)
	History(ctx context.Context, channelID int64) ([]platform.Message, error)
}

// Generator renders channel histories into static transcripts.
type Generator struct {
	source HistorySource
	logger *zap.Logger
	now    func() time.Time
}

// NewGenerator constructs the generator.
func NewGenerator(source HistorySource, logger *zap.Logger) *Generator {
	return &Generator{source: source, logger: logger, now: time.Now}
}

// Generate fetches the full history of a channel and renders it. A
// permission failure on the history fetch produces an empty transcript,
// not an error; large channels produce large documents, which is an
// accepted cost.
func (g *Generator) Generate(ctx context.Context, channelID int64, format Format) (*Document, error) {
	name, err := g.source.ChannelName(ctx, channelID)
	if err != nil {
		name = fmt.Sprintf("channel-%d", channelID)
	}
	messages, err := g.source.History(ctx, channelID)
	if err != nil {
		return nil, err
	}

	doc := &Document{
		ChannelID:   channelID,
		ChannelName: name,
		Format:      format,
		GeneratedAt: g.now(),
	}
	if format == FormatHTML {
		content, err := renderHTML(doc, messages)
		if err != nil {
			return nil, err
		}
		doc.Content = content
	} else {
		doc.Content = renderText(doc, messages)
	}
	return doc, nil
}

// Save writes the document under dir using the archive naming scheme
// transcript_<channelID>_<YYYYMMDD_HHMMSS>.<ext>. The timestamp in the
// filename is what the search component later parses back into a date.
func (g *Generator) Save(doc *Document, dir string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	stamp := doc.GeneratedAt.Format("20060102_150405")
	name := fmt.Sprintf("transcript_%d_%s.%s", doc.ChannelID, stamp, doc.Format.Ext())
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(doc.Content), 0o644); err != nil {
		g.logger.Error("failed to write transcript", zap.String("path", path), zap.Error(err))
		return "", err
	}
	g.logger.Info("transcript saved", zap.String("path", path))
	return path, nil
}

func renderText(doc *Document, messages []platform.Message) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Transcript of #%s\n", doc.ChannelName)
	fmt.Fprintf(&b, "Generated on: %s\n", doc.GeneratedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, "Channel ID: %d\n\n", doc.ChannelID)
	b.WriteString("---\n\n")

	blocks := make([]string, 0, len(messages))
	for _, msg := range messages {
		blocks = append(blocks, formatTextMessage(msg))
	}
	b.WriteString(strings.Join(blocks, "\n\n"))
	return b.String()
}

func formatTextMessage(msg platform.Message) string {
	content := msg.Content
	if content == "" {
		content = "[No text content]"
	}
	var attachments string
	if len(msg.Attachments) > 0 {
		links := make([]string, 0, len(msg.Attachments))
		for _, a := range msg.Attachments {
			links = append(links, "  - "+a.URL)
		}
		attachments = "\nAttachments:\n" + strings.Join(links, "\n")
	}
	return fmt.Sprintf("[%s] %s:\n%s%s\n",
		msg.Timestamp.Format("2006-01-02 15:04:05"),
		msg.AuthorName,
		content,
		attachments)
}

var htmlTemplate = template.Must(template.New("transcript").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>Transcript of {{.ChannelName}}</title>
<style>
body { font-family: 'Segoe UI', Tahoma, Geneva, Verdana, sans-serif; margin: 0; padding: 20px; color: #2e3338; background-color: #f9f9f9; line-height: 1.5; }
.transcript-container { max-width: 900px; margin: 0 auto; background: white; border-radius: 8px; box-shadow: 0 2px 10px rgba(0,0,0,0.1); overflow: hidden; }
.transcript-header { background-color: #5865f2; color: white; padding: 20px; border-bottom: 1px solid #4752c4; }
.transcript-header h1 { margin: 0; font-size: 24px; }
.transcript-header .ticket-info { font-size: 14px; margin-top: 5px; }
.transcript-body { padding: 10px 20px; }
.message { padding: 10px 0; border-bottom: 1px solid #e3e5e8; }
.message:nth-child(odd) { background-color: #f6f7f9; }
.message-info { display: flex; align-items: center; margin-bottom: 5px; }
.avatar { width: 40px; height: 40px; border-radius: 50%; margin-right: 10px; }
.username { font-weight: bold; color: #5865f2; }
.timestamp { font-size: 12px; color: #8e9297; margin-left: 10px; }
.content { padding-left: 50px; overflow-wrap: break-word; }
.attachments { margin-top: 5px; padding-left: 50px; }
.attachment { display: block; margin: 5px 0; }
.attachment a { color: #00b0f4; text-decoration: none; }
.attachment a:hover { text-decoration: underline; }
</style>
</head>
<body>
<div class="transcript-container">
<div class="transcript-header">
<h1>Transcript of #{{.ChannelName}}</h1>
<div class="ticket-info">
<p>Generated on: {{.GeneratedOn}}</p>
<p>Channel ID: {{.ChannelID}}</p>
</div>
</div>
<div class="transcript-body">
{{range .Messages}}<div class="message">
<div class="message-info">
<img src="{{.AvatarURL}}" class="avatar" alt="Avatar">
<span class="username">{{.AuthorName}}</span>
<span class="timestamp">{{.Timestamp}}</span>
</div>
<div class="content">{{.Content}}</div>
{{if .Attachments}}<div class="attachments">
{{range .Attachments}}<div class="attachment"><a href="{{.URL}}" target="_blank">{{.FileName}}</a></div>
{{end}}</div>
{{end}}</div>
{{end}}</div>
</div>
</body>
</html>
`))

type htmlMessage struct {
	AuthorName  string
	AvatarURL   string
	Timestamp   string
	Content     string
	Attachments []platform.Attachment
}

const defaultAvatarURL = "https://cdn.discordapp.com/embed/avatars/0.png"

func renderHTML(doc *Document, messages []platform.Message) (string, error) {
	rendered := make([]htmlMessage, 0, len(messages))
	for _, msg := range messages {
		content := msg.Content
		if content == "" {
			content = "[No text content]"
		}
		avatar := msg.AvatarURL
		if avatar == "" {
			avatar = defaultAvatarURL
		}
		rendered = append(rendered, htmlMessage{
			AuthorName:  msg.AuthorName,
			AvatarURL:   avatar,
			Timestamp:   msg.Timestamp.Format("2006-01-02 15:04:05"),
			Content:     content,
			Attachments: msg.Attachments,
		})
	}

	data := struct {
		ChannelName string
		ChannelID   int64
		GeneratedOn string
		Messages    []htmlMessage
	}{
		ChannelName: doc.ChannelName,
		ChannelID:   doc.ChannelID,
		GeneratedOn: doc.GeneratedAt.Format("2006-01-02 15:04:05"),
		Messages:    rendered,
	}

	var buf bytes.Buffer
	if err := htmlTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
