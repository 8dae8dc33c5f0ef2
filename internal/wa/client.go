package wa

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"bot-ojek/internal/convo"
	"bot-ojek/internal/metrics"

	"go.mau.fi/whatsmeow"
	waProto "go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	waLog "go.mau.fi/whatsmeow/util/log"
	"google.golang.org/protobuf/proto"
	_ "modernc.org/sqlite"
)

// Config holds configuration to initialise the WhatsApp client.
type Config struct {
	StorePath string
	LogLevel  string
	Metrics   *metrics.Metrics
}

// Client wraps the WhatsMeow client and adapts its events to the
// conversation engine's transport-neutral surface.
type Client struct {
	client    *whatsmeow.Client
	logger    *slog.Logger
	metrics   *metrics.Metrics
	processor MessageProcessor
}

// MessageProcessor consumes flattened inbound messages.
type MessageProcessor interface {
	ProcessMessage(ctx context.Context, msg convo.Message)
}

// New creates a new WhatsApp client instance backed by an SQLite store.
func New(ctx context.Context, cfg Config, logger *slog.Logger) (*Client, error) {
	if cfg.StorePath == "" {
		return nil, errors.New("store path is required")
	}

	if err := ensureDir(filepath.Dir(cfg.StorePath)); err != nil {
		return nil, fmt.Errorf("ensure store dir: %w", err)
	}

	storeLogger := waLog.Stdout("whatsmeow/sqlstore", cfg.LogLevel, true)
	container, err := sqlstore.New(ctx, "sqlite", fmt.Sprintf("file:%s?_pragma=busy_timeout=10000&_pragma=foreign_keys(ON)", cfg.StorePath), storeLogger)
	if err != nil {
		return nil, fmt.Errorf("create sqlstore: %w", err)
	}

	deviceStore, err := container.GetFirstDevice(ctx)
	if err != nil {
		return nil, fmt.Errorf("get device: %w", err)
	}

	waLogger := waLog.Stdout("whatsmeow/client", cfg.LogLevel, true)
	client := whatsmeow.NewClient(deviceStore, waLogger)

	wc := &Client{
		client:  client,
		logger:  logger.With("component", "wa"),
		metrics: cfg.Metrics,
	}
	client.AddEventHandler(wc.handleEvent)

	return wc, nil
}

// Start connects the client and handles login/QR pairing flow.
func (c *Client) Start(ctx context.Context) error {
	if c.client.Store.ID == nil {
		c.logger.Info("pairing required, waiting for QR scan")
		qrChan, err := c.client.GetQRChannel(ctx)
		if err != nil {
			return fmt.Errorf("get qr channel: %w", err)
		}

		go func() {
			for evt := range qrChan {
				if evt.Event == "code" {
					c.logger.Info("scan the QR code with WhatsApp", "qr", evt.Code)
				} else {
					c.logger.Info("pairing event received", "event", evt.Event)
				}
			}
		}()
	}

	if err := c.client.Connect(); err != nil {
		return fmt.Errorf("connect wa client: %w", err)
	}

	c.logger.Info("whatsapp client connected")
	return nil
}

// Close disconnects the WhatsApp client.
func (c *Client) Close() {
	if c.client != nil {
		c.client.Disconnect()
	}
}

// SetMessageProcessor registers message processor callback.
func (c *Client) SetMessageProcessor(processor MessageProcessor) {
	c.processor = processor
}

func (c *Client) handleEvent(evt interface{}) {
	switch v := evt.(type) {
	case *events.Message:
		c.handleMessage(v)
	case *events.Connected:
		c.logger.Info("device connected")
	case *events.Disconnected:
		c.logger.Warn("device disconnected")
	}
}

// handleMessage flattens the event and hands it to the processor
// synchronously so arrival order is preserved per chat. The processor queues
// internally, so this does not block the event loop for long.
func (c *Client) handleMessage(evt *events.Message) {
	if evt.Message == nil || evt.Info.IsFromMe {
		return
	}

	body, forwarded := extractText(evt.Message)
	if body == "" {
		return
	}

	msg := convo.Message{
		ID:           string(evt.Info.ID),
		SenderJID:    evt.Info.Sender.ToNonAD().String(),
		SenderNumber: evt.Info.Sender.User,
		PushName:     evt.Info.PushName,
		ChatJID:      evt.Info.Chat.String(),
		IsGroup:      evt.Info.IsGroup,
		IsForwarded:  forwarded,
		Body:         body,
		Timestamp:    evt.Info.Timestamp,
	}

	c.logger.Debug("received message", "from", msg.SenderJID, "chat", msg.ChatJID, "group", msg.IsGroup)

	if c.processor != nil {
		c.processor.ProcessMessage(context.Background(), msg)
	}
}

// extractText pulls the text body and forwarded flag out of the supported
// message shapes. Media and other types yield an empty body.
func extractText(msg *waProto.Message) (string, bool) {
	if text := msg.GetConversation(); text != "" {
		return text, false
	}
	if ext := msg.GetExtendedTextMessage(); ext != nil {
		return ext.GetText(), ext.GetContextInfo().GetIsForwarded()
	}
	return "", false
}

// SendText sends a plain text message to the JID given as a string.
func (c *Client) SendText(ctx context.Context, jid, text string) error {
	to, err := types.ParseJID(jid)
	if err != nil {
		return fmt.Errorf("parse recipient jid: %w", err)
	}

	message := &waProto.Message{
		Conversation: proto.String(text),
	}
	if _, err := c.client.SendMessage(ctx, to, message); err != nil {
		return fmt.Errorf("send text: %w", err)
	}
	if c.metrics != nil {
		c.metrics.WAOutgoingMessages.WithLabelValues("text").Inc()
	}
	return nil
}

// SendTextWithMentions sends a text message tagging the given JIDs.
func (c *Client) SendTextWithMentions(ctx context.Context, jid, text string, mentionJIDs []string) error {
	to, err := types.ParseJID(jid)
	if err != nil {
		return fmt.Errorf("parse recipient jid: %w", err)
	}

	message := &waProto.Message{
		ExtendedTextMessage: &waProto.ExtendedTextMessage{
			Text: proto.String(text),
			ContextInfo: &waProto.ContextInfo{
				MentionedJID: mentionJIDs,
			},
		},
	}
	if _, err := c.client.SendMessage(ctx, to, message); err != nil {
		return fmt.Errorf("send text with mentions: %w", err)
	}
	if c.metrics != nil {
		c.metrics.WAOutgoingMessages.WithLabelValues("text").Inc()
	}
	return nil
}

// SendSticker uploads webp data and sends it as a sticker message.
func (c *Client) SendSticker(ctx context.Context, jid string, webpData []byte) error {
	if len(webpData) == 0 {
		return errors.New("send sticker: empty data")
	}
	to, err := types.ParseJID(jid)
	if err != nil {
		return fmt.Errorf("parse recipient jid: %w", err)
	}

	uploadResp, err := c.client.Upload(ctx, webpData, whatsmeow.MediaImage)
	if err != nil {
		return fmt.Errorf("upload sticker: %w", err)
	}

	message := &waProto.Message{
		StickerMessage: &waProto.StickerMessage{
			URL:           proto.String(uploadResp.URL),
			DirectPath:    proto.String(uploadResp.DirectPath),
			MediaKey:      uploadResp.MediaKey,
			FileEncSHA256: uploadResp.FileEncSHA256,
			FileSHA256:    uploadResp.FileSHA256,
			FileLength:    proto.Uint64(uploadResp.FileLength),
			Mimetype:      proto.String("image/webp"),
		},
	}
	if _, err := c.client.SendMessage(ctx, to, message); err != nil {
		return fmt.Errorf("send sticker: %w", err)
	}
	if c.metrics != nil {
		c.metrics.WAOutgoingMessages.WithLabelValues("sticker").Inc()
	}
	return nil
}

// GroupParticipantCount returns the member count of a group chat.
func (c *Client) GroupParticipantCount(ctx context.Context, jid string) (int, error) {
	gjid, err := types.ParseJID(jid)
	if err != nil {
		return 0, fmt.Errorf("parse group jid: %w", err)
	}
	info, err := c.client.GetGroupInfo(gjid)
	if err != nil {
		return 0, fmt.Errorf("get group info: %w", err)
	}
	return len(info.Participants), nil
}

func ensureDir(dir string) error {
	if dir == "." || dir == "" {
		return nil
	}
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return os.MkdirAll(dir, 0o755)
	}
	return nil
}
