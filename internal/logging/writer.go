package logging

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/go-logfmt/logfmt"
)

// slogWriter decodes the logfmt output of slog.TextHandler and stores every
// record through the installed Service.
type slogWriter struct{}

func (sw *slogWriter) Write(p []byte) (n int, err error) {
	// time=2024-05-09T12:34:56.789-05:00 level=INFO msg="Created upstream session" session_id=xyz
	d := logfmt.NewDecoder(bytes.NewReader(p))
	for d.ScanRecord() {
		log := Log{Attributes: make(map[string]string)}

		for d.ScanKeyval() {
			key := string(d.Key())
			value := string(d.Value())

			switch key {
			case "time":
				parsed, err := time.Parse(time.RFC3339Nano, value)
				if err != nil {
					parsed = time.Now()
				}
				log.Timestamp = parsed.UnixMilli()
			case "level":
				log.Level = strings.ToLower(value)
			case "msg", "message":
				log.Message = value
			case "session_id":
				log.SessionID = value
			default:
				log.Attributes[key] = value
			}
		}
		if d.Err() != nil {
			return len(p), fmt.Errorf("logfmt.ScanRecord: %w", d.Err())
		}

		// Stored off the caller's goroutine so slog never waits on sqlite.
		go func(log Log) {
			if err := Create(context.Background(), log); err != nil {
				// A primitive sink avoids feeding the failure back into slog.
				fmt.Fprintf(os.Stderr, "ERROR [logging.slogWriter]: failed to persist log: %v\n", err)
			}
		}(log)
	}
	if d.Err() != nil {
		return len(p), fmt.Errorf("logfmt.ScanRecord final: %w", d.Err())
	}
	return len(p), nil
}

func NewSlogWriter() io.Writer {
	return &slogWriter{}
}
