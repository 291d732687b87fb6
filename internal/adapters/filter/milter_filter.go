package filter

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"net/mail"
	"net/textproto"
	"strings"
	"time"

	"github.com/emersion/go-milter"
	"github.com/google/uuid"
	"github.com/mikey/sms-spam-pipeline/internal/core"
	"github.com/mikey/sms-spam-pipeline/internal/ports"
	"go.uber.org/zap"
)

// MilterFilterOptions configures the milter front end
type MilterFilterOptions struct {
	ListenAddress string
	BlockSpam     bool
	SpamHeader    string
	ScoreHeader   string
}

// headerField is a header the milter asks the MTA to add
type headerField struct {
	name  string
	value string
}

// MilterFilter scores messages handed over by an MTA through the milter
// protocol. Unlike the SMTP filter it never relays: the MTA keeps the message
// and applies the verdict headers or the rejection itself.
type MilterFilter struct {
	analyzer ports.Analyzer
	logger   *zap.Logger
	opts     MilterFilterOptions
	server   *milter.Server
}

// NewMilterFilter creates a new milter filter
func NewMilterFilter(analyzer ports.Analyzer, logger *zap.Logger, opts MilterFilterOptions) *MilterFilter {
	if opts.SpamHeader == "" {
		opts.SpamHeader = "X-Spam-Status"
	}
	if opts.ScoreHeader == "" {
		opts.ScoreHeader = "X-Spam-Score"
	}
	return &MilterFilter{
		analyzer: analyzer,
		logger:   logger,
		opts:     opts,
	}
}

// Start starts the milter server in the background
func (f *MilterFilter) Start() error {
	ln, err := net.Listen("tcp", f.opts.ListenAddress)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", f.opts.ListenAddress, err)
	}

	f.server = &milter.Server{
		NewMilter: func() milter.Milter { return &milterSession{filter: f} },
		Actions:   milter.OptAddHeader,
	}
	f.logger.Info("Milter filter started", zap.String("address", f.opts.ListenAddress))

	go func() {
		if err := f.server.Serve(ln); err != nil {
			f.logger.Debug("Milter server stopped", zap.Error(err))
		}
	}()
	return nil
}

// Stop stops the milter server
func (f *MilterFilter) Stop() error {
	if f.server != nil {
		return f.server.Close()
	}
	return nil
}

// ProcessMessage scores a message without the milter round trip
func (f *MilterFilter) ProcessMessage(ctx context.Context, msg *core.Message) (*core.SpamAnalysisResult, error) {
	return f.analyzer.AnalyzeMessage(ctx, msg)
}

// evaluate scores a collected message and returns the headers to add and the
// response for the MTA. Analysis errors accept the message.
func (f *MilterFilter) evaluate(msg *core.Message) ([]headerField, milter.Response) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	result, err := f.analyzer.AnalyzeMessage(ctx, msg)
	if err != nil {
		f.logger.Error("Failed to analyze message", zap.Error(err), zap.String("sender", msg.From))
		return []headerField{{name: "X-Spam-Analysis-Error", value: err.Error()}}, milter.RespAccept
	}

	f.logger.Info("Processed message",
		zap.String("id", msg.ID),
		zap.String("from", msg.From),
		zap.Bool("is_spam", result.IsSpam),
		zap.Float64("score", result.Score))

	if result.IsSpam && f.opts.BlockSpam {
		return nil, milter.RespReject
	}
	return []headerField{
		{name: f.opts.SpamHeader, value: fmt.Sprintf("%t", result.IsSpam)},
		{name: f.opts.ScoreHeader, value: fmt.Sprintf("%.4f", result.Score)},
	}, milter.RespAccept
}

// milterSession collects one message across the protocol callbacks
type milterSession struct {
	filter     *MilterFilter
	sender     string
	recipients []string
	header     bytes.Buffer
	body       bytes.Buffer
}

func (s *milterSession) Connect(_ string, _ string, _ uint16, _ net.IP, _ *milter.Modifier) (milter.Response, error) {
	return milter.RespContinue, nil
}

func (s *milterSession) Helo(_ string, _ *milter.Modifier) (milter.Response, error) {
	return milter.RespContinue, nil
}

func (s *milterSession) MailFrom(from string, _ *milter.Modifier) (milter.Response, error) {
	s.reset()
	s.sender = strings.Trim(from, "<>")
	return milter.RespContinue, nil
}

func (s *milterSession) RcptTo(rcptTo string, _ *milter.Modifier) (milter.Response, error) {
	s.recipients = append(s.recipients, strings.Trim(rcptTo, "<>"))
	return milter.RespContinue, nil
}

func (s *milterSession) Header(name string, value string, _ *milter.Modifier) (milter.Response, error) {
	fmt.Fprintf(&s.header, "%s: %s\r\n", name, value)
	return milter.RespContinue, nil
}

func (s *milterSession) Headers(_ textproto.MIMEHeader, _ *milter.Modifier) (milter.Response, error) {
	return milter.RespContinue, nil
}

func (s *milterSession) BodyChunk(chunk []byte, _ *milter.Modifier) (milter.Response, error) {
	s.body.Write(chunk)
	return milter.RespContinue, nil
}

// Body scores the collected message and stamps the verdict headers
func (s *milterSession) Body(m *milter.Modifier) (milter.Response, error) {
	defer s.reset()

	headers, resp := s.filter.evaluate(s.message())
	for _, h := range headers {
		if err := m.AddHeader(h.name, h.value); err != nil {
			return nil, fmt.Errorf("failed to add %s header: %w", h.name, err)
		}
	}
	return resp, nil
}

func (s *milterSession) Abort(_ *milter.Modifier) error {
	s.reset()
	return nil
}

func (s *milterSession) reset() {
	s.sender = ""
	s.recipients = nil
	s.header.Reset()
	s.body.Reset()
}

// message rebuilds the collected headers and body into a core.Message
func (s *milterSession) message() *core.Message {
	m := &core.Message{
		From: s.sender,
		To:   append([]string(nil), s.recipients...),
		Text: strings.TrimSpace(s.body.String()),
	}

	raw := append(append(append([]byte(nil), s.header.Bytes()...), "\r\n"...), s.body.Bytes()...)
	if parsed, err := mail.ReadMessage(bytes.NewReader(raw)); err == nil {
		m.ID = parsed.Header.Get("Message-Id")
		m.Subject = decodeEncodedHeader(parsed.Header.Get("Subject"))
		m.Headers = parsed.Header
		if text, err := extractTextFromMessage(parsed); err == nil {
			m.Text = text
		} else {
			s.filter.logger.Warn("Failed to extract text content", zap.Error(err))
		}
	}
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	return m
}
