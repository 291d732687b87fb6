package loader

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mikey/sms-spam-pipeline/internal/session"
	"github.com/mikey/sms-spam-pipeline/internal/table"
	"github.com/mikey/sms-spam-pipeline/internal/utils"
	"go.uber.org/zap"
)

const maxLineSize = 1 << 20

// Loader reads tab-separated (label, text) records into a Table
type Loader struct {
	sess          *session.Session
	textProcessor *utils.TextProcessor
}

// New creates a new loader bound to a session
func New(sess *session.Session, textProcessor *utils.TextProcessor) *Loader {
	if textProcessor == nil {
		textProcessor = utils.NewTextProcessor(sess.Logger(), 0)
	}
	return &Loader{
		sess:          sess,
		textProcessor: textProcessor,
	}
}

// Load reads the file at path
func (l *Loader) Load(ctx context.Context, path string) (*table.Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open training data: %w", err)
	}
	defer f.Close()

	l.sess.Logger().Info("Loading training data", zap.String("path", path))
	return l.Read(ctx, f)
}

// Read parses records from r. Each line is split on its first tab; lines whose
// label is empty after trimming are discarded.
func (l *Loader) Read(ctx context.Context, r io.Reader) (*table.Table, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)

	var records []table.Record
	lines, discarded := 0, 0
	for scanner.Scan() {
		lines++
		if lines%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		label, text, _ := strings.Cut(scanner.Text(), "\t")
		label = strings.TrimSpace(label)
		if label == "" {
			discarded++
			continue
		}
		records = append(records, table.Record{
			Label: label,
			Text:  l.textProcessor.Clean(text),
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read training data: %w", err)
	}

	l.sess.Logger().Info("Loaded records",
		zap.Int("lines", lines),
		zap.Int("records", len(records)),
		zap.Int("discarded", discarded))

	return table.FromRecords(records), nil
}
