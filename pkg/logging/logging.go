package logging

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
)

type Logger struct {
	out     io.Writer
	err     io.Writer
	json    bool
	quiet   bool
	verbose bool
}

type ctxKey struct{}

var discard = &Logger{out: io.Discard, err: io.Discard, quiet: true}

// NewLogger builds a logger.
// In json mode human oriented output is kept off stdout, so stdout stays parseable.
// Quiet suppresses Info; verbose enables Debug.
func NewLogger(out, err io.Writer, json, quiet, verbose bool) *Logger {
	return &Logger{
		out:     out,
		err:     err,
		json:    json,
		quiet:   quiet,
		verbose: verbose,
	}
}

// WithContext returns a context carrying this logger.
func (l *Logger) WithContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// Ctx returns the logger carried by ctx.
// Without one, everything logged is dropped.
func Ctx(ctx context.Context) *Logger {
	if l, ok := ctx.Value(ctxKey{}).(*Logger); ok && l != nil {
		return l
	}
	return discard
}

func (l *Logger) IsVerbose() bool {
	return l.verbose
}

// Out writes a line of command output to stdout.
func (l *Logger) Out(f string, args ...interface{}) {
	if l.json {
		return
	}
	fmt.Fprintf(l.out, f+"\n", args...)
}

func (l *Logger) Info(tag string, f string, args ...interface{}) {
	if l.quiet {
		return
	}
	print(l.err, color.New(color.FgHiGreen), tag, f, args...)
}

func (l *Logger) Debug(tag string, f string, args ...interface{}) {
	if l.verbose {
		print(l.err, color.New(color.FgGreen), tag, f, args...)
	}
}

func print(w io.Writer, tagColor *color.Color, tag, f string, args ...interface{}) {
	str := fmt.Sprintf(f, args...)
	for _, line := range strings.Split(str, "\n") {
		fmt.Fprintf(w, "%s  %s\n",
			tagColor.Sprint(tag),
			color.WhiteString(line))
	}
}

type Writer struct {
	pipe io.Writer
	tag  string
}

// InfoWriter returns a writer that prefixes each line written to it with tag, on stderr.
func (l *Logger) InfoWriter(tag string) *Writer {
	return &Writer{
		pipe: l.err,
		tag:  tag,
	}
}

func (w *Writer) Write(data []byte) (n int, err error) {
	for _, line := range strings.Split(strings.TrimSpace(string(data)), "\n") {
		fmt.Fprintf(w.pipe, "%s  %s\n",
			color.HiYellowString(w.tag),
			color.HiWhiteString(line))
	}
	return len(data), nil
}
