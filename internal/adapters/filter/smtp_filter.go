package filter

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/mail"
	"time"

	"github.com/emersion/go-smtp"
	"github.com/google/uuid"
	"github.com/mikey/sms-spam-pipeline/internal/core"
	"github.com/mikey/sms-spam-pipeline/internal/ports"
	"go.uber.org/zap"
)

// SMTPFilterOptions configures the SMTP gateway
type SMTPFilterOptions struct {
	ListenAddress string
	NextHop       string
	Hostname      string
	BlockSpam     bool
	SpamHeader    string
	ScoreHeader   string
}

// relayFunc delivers a filtered message to the next hop
type relayFunc func(sender string, recipients []string, data []byte) error

// SMTPFilter is an SMTP content filter: it accepts mail, scores the text
// body, stamps the verdict headers and relays the message to the next hop.
type SMTPFilter struct {
	analyzer ports.Analyzer
	logger   *zap.Logger
	opts     SMTPFilterOptions
	server   *smtp.Server
	relay    relayFunc
}

// NewSMTPFilter creates a new SMTP gateway filter
func NewSMTPFilter(analyzer ports.Analyzer, logger *zap.Logger, opts SMTPFilterOptions) *SMTPFilter {
	if opts.SpamHeader == "" {
		opts.SpamHeader = "X-Spam-Status"
	}
	if opts.ScoreHeader == "" {
		opts.ScoreHeader = "X-Spam-Score"
	}
	if opts.Hostname == "" {
		opts.Hostname = "localhost"
	}
	f := &SMTPFilter{
		analyzer: analyzer,
		logger:   logger,
		opts:     opts,
	}
	f.relay = f.sendToNextHop
	return f
}

// Start starts listening in the background
func (f *SMTPFilter) Start() error {
	f.server = smtp.NewServer(&smtpBackend{filter: f})
	f.server.Addr = f.opts.ListenAddress
	f.server.Domain = f.opts.Hostname
	f.server.ReadTimeout = 30 * time.Second
	f.server.WriteTimeout = 30 * time.Second
	f.server.MaxMessageBytes = 1024 * 1024
	f.server.MaxRecipients = 50

	f.logger.Info("SMTP filter starting",
		zap.String("address", f.opts.ListenAddress),
		zap.String("next_hop", f.opts.NextHop))

	go func() {
		if err := f.server.ListenAndServe(); err != nil && !errors.Is(err, smtp.ErrServerClosed) {
			f.logger.Error("SMTP server error", zap.Error(err))
		}
	}()
	return nil
}

// Stop stops the SMTP server
func (f *SMTPFilter) Stop() error {
	if f.server != nil {
		return f.server.Close()
	}
	return nil
}

// ProcessMessage scores a message without the SMTP round trip
func (f *SMTPFilter) ProcessMessage(ctx context.Context, msg *core.Message) (*core.SpamAnalysisResult, error) {
	return f.analyzer.AnalyzeMessage(ctx, msg)
}

// sendToNextHop relays the filtered message with go-smtp's client
func (f *SMTPFilter) sendToNextHop(sender string, recipients []string, data []byte) error {
	conn, err := net.DialTimeout("tcp", f.opts.NextHop, 10*time.Second)
	if err != nil {
		return fmt.Errorf("failed to connect to next hop: %w", err)
	}
	if err := conn.SetDeadline(time.Now().Add(30 * time.Second)); err != nil {
		conn.Close()
		return fmt.Errorf("failed to set connection deadline: %w", err)
	}

	c := smtp.NewClient(conn)
	defer c.Close()

	if err := c.Hello(f.opts.Hostname); err != nil {
		return fmt.Errorf("EHLO failed: %w", err)
	}
	if err := c.Mail(sender, nil); err != nil {
		return fmt.Errorf("MAIL FROM failed: %w", err)
	}

	accepted := 0
	for _, rcpt := range recipients {
		if err := c.Rcpt(rcpt, nil); err != nil {
			f.logger.Warn("RCPT TO failed for recipient", zap.String("recipient", rcpt), zap.Error(err))
			continue
		}
		accepted++
	}
	if accepted == 0 {
		return fmt.Errorf("all recipients were rejected")
	}

	wc, err := c.Data()
	if err != nil {
		return fmt.Errorf("DATA command failed: %w", err)
	}
	if _, err := wc.Write(data); err != nil {
		wc.Close()
		return fmt.Errorf("failed to send message data: %w", err)
	}
	if err := wc.Close(); err != nil {
		return fmt.Errorf("failed to close data writer: %w", err)
	}

	if err := c.Quit(); err != nil {
		// already delivered
		f.logger.Warn("QUIT command failed", zap.Error(err))
	}
	return nil
}

// stamp prepends the verdict headers to the raw message
func (f *SMTPFilter) stamp(raw []byte, result *core.SpamAnalysisResult, analysisErr error) []byte {
	var out bytes.Buffer
	fmt.Fprintf(&out, "%s: %t\r\n", f.opts.SpamHeader, result.IsSpam)
	fmt.Fprintf(&out, "%s: %.4f\r\n", f.opts.ScoreHeader, result.Score)
	if analysisErr != nil {
		fmt.Fprintf(&out, "X-Spam-Analysis-Error: %s\r\n", analysisErr.Error())
	}
	out.Write(raw)
	return out.Bytes()
}

type smtpBackend struct {
	filter *SMTPFilter
}

// NewSession creates a new SMTP session
func (b *smtpBackend) NewSession(_ *smtp.Conn) (smtp.Session, error) {
	return &smtpSession{filter: b.filter}, nil
}

type smtpSession struct {
	filter     *SMTPFilter
	sender     string
	recipients []string
}

func (s *smtpSession) Reset() {
	s.sender = ""
	s.recipients = nil
}

func (s *smtpSession) Mail(from string, _ *smtp.MailOptions) error {
	s.sender = from
	return nil
}

func (s *smtpSession) Rcpt(to string, _ *smtp.RcptOptions) error {
	s.recipients = append(s.recipients, to)
	return nil
}

// Data scores the message body. Analysis failures let the message through unmarked as spam.
func (s *smtpSession) Data(r io.Reader) error {
	f := s.filter
	raw, err := io.ReadAll(r)
	if err != nil {
		f.logger.Error("Failed to read message data", zap.Error(err))
		return err
	}

	msg, err := mail.ReadMessage(bytes.NewReader(raw))
	if err != nil {
		f.logger.Error("Failed to parse message", zap.Error(err))
		return err
	}
	text, err := extractTextFromMessage(msg)
	if err != nil {
		f.logger.Warn("Failed to extract text content", zap.Error(err))
	}

	m := &core.Message{
		ID:      msg.Header.Get("Message-Id"),
		From:    s.sender,
		To:      s.recipients,
		Subject: decodeEncodedHeader(msg.Header.Get("Subject")),
		Text:    text,
		Headers: msg.Header,
	}
	if m.ID == "" {
		m.ID = uuid.NewString()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	result, analysisErr := f.analyzer.AnalyzeMessage(ctx, m)
	if analysisErr != nil {
		f.logger.Error("Failed to analyze message", zap.Error(analysisErr), zap.String("sender", m.From))
		result = &core.SpamAnalysisResult{
			Explanation: fmt.Sprintf("Error during analysis: %v", analysisErr),
			AnalyzedAt:  time.Now(),
		}
	}

	if result.IsSpam && f.opts.BlockSpam {
		f.logger.Info("Rejecting spam message",
			zap.String("from", m.From),
			zap.Float64("score", result.Score))
		return &smtp.SMTPError{
			Code:         550,
			EnhancedCode: smtp.EnhancedCode{5, 7, 1},
			Message:      fmt.Sprintf("Rejected as spam (score: %.2f)", result.Score),
		}
	}

	if err := f.relay(s.sender, s.recipients, f.stamp(raw, result, analysisErr)); err != nil {
		f.logger.Error("Failed to relay message", zap.Error(err), zap.String("sender", m.From))
		return err
	}

	f.logger.Info("Processed message",
		zap.String("id", m.ID),
		zap.String("from", m.From),
		zap.Bool("is_spam", result.IsSpam),
		zap.Float64("score", result.Score))
	return nil
}

func (s *smtpSession) Logout() error {
	return nil
}
