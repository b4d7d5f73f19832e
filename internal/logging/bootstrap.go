package logging

import (
	"context"
	"sync"
	"time"
)

// BufferedLogSink is a Logger that records calls in memory until a real
// logger exists. Startup runs before logging configuration has been
// merged, so the earliest phases log into this sink; once the real
// logger is constructed, DrainTo replays the buffer into it and the
// sink forwards directly from then on.
type BufferedLogSink struct {
	mu      sync.Mutex
	records []bufferedRecord
	target  Logger
}

type bufferedRecord struct {
	at        time.Time
	level     LogLevel
	err       error
	msg       string
	component string
	fields    []interface{}
}

// NewBufferedLogSink creates an empty sink.
func NewBufferedLogSink() *BufferedLogSink {
	return &BufferedLogSink{}
}

// Len returns the number of buffered records.
func (s *BufferedLogSink) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// DrainTo replays every buffered record into real, in order and at the
// original level, each tagged with bootstrap=true and carrying its
// capture time as logged_at (the emitted record's own timestamp is the
// drain time). After draining the sink passes calls straight through
// to real.
func (s *BufferedLogSink) DrainTo(ctx context.Context, real Logger) {
	s.mu.Lock()
	records := s.records
	s.records = nil
	s.target = real
	s.mu.Unlock()

	tagged := real.With("bootstrap", true)
	for _, r := range records {
		out := tagged
		if r.component != "" {
			out = out.WithComponent(r.component)
		}
		fields := r.fields
		fields = append(fields[:len(fields):len(fields)],
			"logged_at", r.at.Format(time.RFC3339Nano))
		r.fields = fields
		switch r.level {
		case LevelDebug:
			out.Debug(ctx, r.msg, r.fields...)
		case LevelInfo:
			out.Info(ctx, r.msg, r.fields...)
		case LevelWarn:
			out.Warn(ctx, r.err, r.msg, r.fields...)
		case LevelError:
			out.Error(ctx, r.err, r.msg, r.fields...)
		case LevelFatal:
			out.Fatal(ctx, r.err, r.msg, r.fields...)
		}
	}
}

func (s *BufferedLogSink) append(ctx context.Context, level LogLevel, err error, msg, component string, fields []interface{}) {
	s.mu.Lock()
	target := s.target
	if target == nil {
		s.records = append(s.records, bufferedRecord{
			at:        time.Now(),
			level:     level,
			err:       err,
			msg:       msg,
			component: component,
			fields:    fields,
		})
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	if component != "" {
		target = target.WithComponent(component)
	}
	switch level {
	case LevelDebug:
		target.Debug(ctx, msg, fields...)
	case LevelInfo:
		target.Info(ctx, msg, fields...)
	case LevelWarn:
		target.Warn(ctx, err, msg, fields...)
	case LevelError:
		target.Error(ctx, err, msg, fields...)
	case LevelFatal:
		target.Fatal(ctx, err, msg, fields...)
	}
}

// Debug records a debug message
func (s *BufferedLogSink) Debug(ctx context.Context, msg string, fields ...interface{}) {
	s.append(ctx, LevelDebug, nil, msg, "", fields)
}

// Info records an info message
func (s *BufferedLogSink) Info(ctx context.Context, msg string, fields ...interface{}) {
	s.append(ctx, LevelInfo, nil, msg, "", fields)
}

// Warn records a warning message
func (s *BufferedLogSink) Warn(ctx context.Context, err error, msg string, fields ...interface{}) {
	s.append(ctx, LevelWarn, err, msg, "", fields)
}

// Error records an error message
func (s *BufferedLogSink) Error(ctx context.Context, err error, msg string, fields ...interface{}) {
	s.append(ctx, LevelError, err, msg, "", fields)
}

// Fatal records a fatal message
func (s *BufferedLogSink) Fatal(ctx context.Context, err error, msg string, fields ...interface{}) {
	s.append(ctx, LevelFatal, err, msg, "", fields)
}

// With returns a view of the sink that adds fields to every record
func (s *BufferedLogSink) With(fields ...interface{}) Logger {
	return &sinkView{sink: s, fields: fields}
}

// WithComponent returns a view of the sink with component context
func (s *BufferedLogSink) WithComponent(component string) Logger {
	return &sinkView{sink: s, component: component}
}

// sinkView shares the parent sink's buffer while carrying its own
// component and persistent fields.
type sinkView struct {
	sink      *BufferedLogSink
	component string
	fields    []interface{}
}

func (v *sinkView) merge(fields []interface{}) []interface{} {
	if len(v.fields) == 0 {
		return fields
	}
	merged := make([]interface{}, 0, len(v.fields)+len(fields))
	merged = append(merged, v.fields...)
	merged = append(merged, fields...)
	return merged
}

func (v *sinkView) Debug(ctx context.Context, msg string, fields ...interface{}) {
	v.sink.append(ctx, LevelDebug, nil, msg, v.component, v.merge(fields))
}

func (v *sinkView) Info(ctx context.Context, msg string, fields ...interface{}) {
	v.sink.append(ctx, LevelInfo, nil, msg, v.component, v.merge(fields))
}

func (v *sinkView) Warn(ctx context.Context, err error, msg string, fields ...interface{}) {
	v.sink.append(ctx, LevelWarn, err, msg, v.component, v.merge(fields))
}

func (v *sinkView) Error(ctx context.Context, err error, msg string, fields ...interface{}) {
	v.sink.append(ctx, LevelError, err, msg, v.component, v.merge(fields))
}

func (v *sinkView) Fatal(ctx context.Context, err error, msg string, fields ...interface{}) {
	v.sink.append(ctx, LevelFatal, err, msg, v.component, v.merge(fields))
}

func (v *sinkView) With(fields ...interface{}) Logger {
	return &sinkView{sink: v.sink, component: v.component, fields: v.merge(fields)}
}

func (v *sinkView) WithComponent(component string) Logger {
	return &sinkView{sink: v.sink, component: component, fields: v.fields}
}
