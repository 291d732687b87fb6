package filter

import (
	"bytes"
	"context"
	"errors"
	"net/mail"
	"strings"
	"testing"

	"github.com/emersion/go-smtp"
	"github.com/mikey/sms-spam-pipeline/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeAnalyzer struct {
	err  error
	seen []*core.Message
}

func (a *fakeAnalyzer) AnalyzeMessage(_ context.Context, msg *core.Message) (*core.SpamAnalysisResult, error) {
	a.seen = append(a.seen, msg)
	if a.err != nil {
		return nil, a.err
	}
	spam := strings.Contains(msg.Text, "prize")
	score := 0.1
	if spam {
		score = 0.95
	}
	return &core.SpamAnalysisResult{IsSpam: spam, Score: score, ProcessingID: msg.ID}, nil
}

type captured struct {
	sender     string
	recipients []string
	data       []byte
}

func newTestSMTPFilter(analyzer *fakeAnalyzer, block bool) (*SMTPFilter, *captured) {
	f := NewSMTPFilter(analyzer, zap.NewNop(), SMTPFilterOptions{BlockSpam: block})
	c := &captured{}
	f.relay = func(sender string, recipients []string, data []byte) error {
		c.sender, c.recipients, c.data = sender, recipients, data
		return nil
	}
	return f, c
}

func deliver(t *testing.T, f *SMTPFilter, raw string) error {
	t.Helper()
	sess, err := (&smtpBackend{filter: f}).NewSession(nil)
	require.NoError(t, err)
	require.NoError(t, sess.Mail("gateway@example.com", nil))
	require.NoError(t, sess.Rcpt("+15550100@sms.example.com", nil))
	return sess.Data(strings.NewReader(raw))
}

const spamMessage = "Subject: hello\r\nMessage-Id: <1@example.com>\r\n\r\nYou won a prize, call now\r\n"

func TestSMTPFilter_StampsAndRelays(t *testing.T) {
	analyzer := &fakeAnalyzer{}
	f, c := newTestSMTPFilter(analyzer, false)

	require.NoError(t, deliver(t, f, spamMessage))
	require.Len(t, analyzer.seen, 1)
	assert.Equal(t, "You won a prize, call now", analyzer.seen[0].Text)
	assert.Equal(t, "<1@example.com>", analyzer.seen[0].ID)

	assert.Equal(t, "gateway@example.com", c.sender)
	assert.Equal(t, []string{"+15550100@sms.example.com"}, c.recipients)

	relayed, err := mail.ReadMessage(bytes.NewReader(c.data))
	require.NoError(t, err)
	assert.Equal(t, "true", relayed.Header.Get("X-Spam-Status"))
	assert.Equal(t, "0.9500", relayed.Header.Get("X-Spam-Score"))
	assert.Equal(t, "hello", relayed.Header.Get("Subject"))
}

func TestSMTPFilter_BlocksSpam(t *testing.T) {
	f, c := newTestSMTPFilter(&fakeAnalyzer{}, true)

	err := deliver(t, f, spamMessage)
	var smtpErr *smtp.SMTPError
	require.ErrorAs(t, err, &smtpErr)
	assert.Equal(t, 550, smtpErr.Code)
	assert.Nil(t, c.data)

	// ham is still relayed
	require.NoError(t, deliver(t, f, "Subject: lunch\r\n\r\nsee you at noon\r\n"))
	assert.NotNil(t, c.data)
}

func TestSMTPFilter_AnalysisErrorDoesNotDropMail(t *testing.T) {
	f, c := newTestSMTPFilter(&fakeAnalyzer{err: errors.New("model unavailable")}, true)

	require.NoError(t, deliver(t, f, spamMessage))
	relayed, err := mail.ReadMessage(bytes.NewReader(c.data))
	require.NoError(t, err)
	assert.Equal(t, "false", relayed.Header.Get("X-Spam-Status"))
	assert.Equal(t, "model unavailable", relayed.Header.Get("X-Spam-Analysis-Error"))
}

func TestSMTPFilter_RelayError(t *testing.T) {
	f, _ := newTestSMTPFilter(&fakeAnalyzer{}, false)
	boom := errors.New("next hop down")
	f.relay = func(string, []string, []byte) error { return boom }

	assert.ErrorIs(t, deliver(t, f, spamMessage), boom)
}

func TestExtractTextFromMessage(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{
			name: "plain",
			raw:  "Subject: x\r\n\r\nhello there\r\n",
			want: "hello there",
		},
		{
			name: "quoted printable",
			raw:  "Content-Type: text/plain; charset=utf-8\r\nContent-Transfer-Encoding: quoted-printable\r\n\r\nwin =3D cash\r\n",
			want: "win = cash",
		},
		{
			name: "multipart skips html",
			raw: "Content-Type: multipart/alternative; boundary=b1\r\n\r\n" +
				"--b1\r\nContent-Type: text/plain\r\n\r\nplain part\r\n" +
				"--b1\r\nContent-Type: text/html\r\n\r\n<p>html part</p>\r\n" +
				"--b1--\r\n",
			want: "plain part",
		},
		{
			name: "nested multipart",
			raw: "Content-Type: multipart/mixed; boundary=outer\r\n\r\n" +
				"--outer\r\nContent-Type: multipart/alternative; boundary=inner\r\n\r\n" +
				"--inner\r\nContent-Type: text/plain\r\n\r\ninner text\r\n" +
				"--inner--\r\n" +
				"--outer\r\nContent-Type: application/pdf\r\n\r\n%PDF\r\n" +
				"--outer--\r\n",
			want: "inner text",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := mail.ReadMessage(strings.NewReader(tt.raw))
			require.NoError(t, err)
			got, err := extractTextFromMessage(msg)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecodeEncodedHeader(t *testing.T) {
	assert.Equal(t, "¡Hola!", decodeEncodedHeader("=?UTF-8?Q?=C2=A1Hola!?="))
	assert.Equal(t, "plain", decodeEncodedHeader("plain"))
}

func TestCliFilter(t *testing.T) {
	var out bytes.Buffer
	f := NewCliFilter(&fakeAnalyzer{}, zap.NewNop(), false)
	f.SetOutput(&out)

	result, err := f.ProcessMessage(context.Background(), &core.Message{Text: "claim your prize"})
	require.NoError(t, err)
	assert.True(t, result.IsSpam)
	assert.Equal(t, "true\n", out.String())

	out.Reset()
	f.verbose = true
	_, err = f.ProcessMessage(context.Background(), &core.Message{Text: "see you soon"})
	require.NoError(t, err)
	assert.Contains(t, out.String(), "Spam score: 0.1000")
	assert.True(t, strings.HasSuffix(out.String(), "false\n"))

	require.NoError(t, f.Start())
	require.NoError(t, f.Stop())
}

func TestCliFilter_Error(t *testing.T) {
	var out bytes.Buffer
	f := NewCliFilter(&fakeAnalyzer{err: errors.New("boom")}, zap.NewNop(), false)
	f.SetOutput(&out)

	_, err := f.ProcessMessage(context.Background(), &core.Message{Text: "x"})
	assert.Error(t, err)
	assert.Contains(t, out.String(), "Error: boom")
}
