// Command imapdecode decodes a captured IMAP server transcript and prints
// each response in canonical form, one per line.
//
// The input is raw server output, e.g. recorded with a proxy or taken from a
// protocol trace. It is replayed through the decoder the way a connection
// layer would: feed a chunk, and on incomplete input feed more bytes and
// decode the same unit again from the start.
package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/alecthomas/kong"
	"github.com/deverhof/imapresp"
)

var cli struct {
	Verbose bool   `short:"v" help:"Log decode progress to stderr."`
	Chunk   int    `default:"4096" help:"Feed the decoder this many bytes at a time, simulating partial reads."`
	Path    string `arg:"" optional:"" type:"existingfile" help:"Transcript file with raw server output. Reads stdin when absent."`
}

func main() {
	ctx := kong.Parse(&cli,
		kong.Name("imapdecode"),
		kong.Description("Decode a captured IMAP server transcript."),
		kong.UsageOnError(),
	)

	level := slog.LevelWarn
	if cli.Verbose {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	ctx.FatalIfErrorf(run(log))
}

func run(log *slog.Logger) error {
	var data []byte
	var err error
	if cli.Path != "" {
		data, err = os.ReadFile(cli.Path)
	} else {
		data, err = io.ReadAll(os.Stdin)
	}
	if err != nil {
		return fmt.Errorf("reading input: %w", err)
	}

	chunk := cli.Chunk
	if chunk <= 0 {
		chunk = len(data)
	}

	// Pending holds the bytes read but not yet decoded. Decode always starts
	// over at the beginning of the current unit, it keeps no state across
	// calls.
	var pending []byte
	off := 0
	count := 0
	for {
		resp, n, err := imapresp.Decode(pending)
		var incomplete imapresp.IncompleteError
		switch {
		case err == nil:
			count++
			fmt.Println(resp)
			log.Debug("decoded response", "unit", count, "bytes", n, "left", len(pending)-n)
			pending = pending[n:]
		case errors.As(err, &incomplete):
			if off >= len(data) {
				if len(pending) > 0 {
					return fmt.Errorf("input ends mid-response, %d bytes undecoded: %w", len(pending), err)
				}
				log.Debug("transcript decoded", "responses", count)
				return nil
			}
			take := chunk
			if incomplete.Need > take {
				take = incomplete.Need
			}
			if off+take > len(data) {
				take = len(data) - off
			}
			log.Debug("need more data", "hint", incomplete.Need, "reading", take)
			pending = append(pending, data[off:off+take]...)
			off += take
		default:
			return fmt.Errorf("at input byte %d: %w", off-len(pending), err)
		}
	}
}
