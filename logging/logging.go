// Package logging defines the Logger interface used throughout the consensus core.
// It also includes functions for setting the global log level and a per-package log level.
package logging

import (
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"
	"sync"

	"github.com/mattn/go-isatty"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	logLevel      zapcore.Level
	packageLevels = make(map[string]zapcore.Level)
	mut           sync.RWMutex
)

// ParseLevel parses a level name such as "debug" or "warn".
func ParseLevel(level string) (zapcore.Level, error) {
	var l zapcore.Level
	if err := l.UnmarshalText([]byte(strings.ToLower(level))); err != nil {
		return l, fmt.Errorf("invalid log level '%s'", level)
	}
	return l, nil
}

func mustParseLevel(level string) zapcore.Level {
	l, err := ParseLevel(level)
	if err != nil {
		panic(err)
	}
	return l
}

// SetLogLevel sets the global log level.
func SetLogLevel(levelStr string) {
	level := mustParseLevel(levelStr)
	mut.Lock()
	logLevel = level
	mut.Unlock()
}

// SetPackageLogLevel sets a log level for a package, overriding the global level.
func SetPackageLogLevel(packageName, levelStr string) {
	level := mustParseLevel(levelStr)
	mut.Lock()
	packageLevels[packageName] = level
	mut.Unlock()
}

// SetPackageLogLevels applies a list of "package=level" pairs.
func SetPackageLogLevels(pairs []string) error {
	for _, pair := range pairs {
		pkg, level, ok := strings.Cut(pair, "=")
		if !ok {
			return fmt.Errorf("invalid package log level '%s': expected package=level", pair)
		}
		if _, err := ParseLevel(level); err != nil {
			return err
		}
		SetPackageLogLevel(pkg, level)
	}
	return nil
}

// Logger is the logging interface used by consensus. It is based on zap.SugaredLogger
type Logger interface {
	DPanic(args ...any)
	DPanicf(template string, args ...any)
	Debug(args ...any)
	Debugf(template string, args ...any)
	Error(args ...any)
	Errorf(template string, args ...any)
	Info(args ...any)
	Infof(template string, args ...any)
	Panic(args ...any)
	Panicf(template string, args ...any)
	Warn(args ...any)
	Warnf(template string, args ...any)
}

type wrapper struct {
	inner *zap.SugaredLogger
	level zap.AtomicLevel
	mut   sync.Mutex
}

// log runs f with the level of the calling package applied.
func (wr *wrapper) log(f func(l *zap.SugaredLogger)) {
	wr.mut.Lock()
	defer wr.mut.Unlock()
	wr.updateLevel()
	f(wr.inner)
}

func (wr *wrapper) updateLevel() {
	mut.RLock()
	defer mut.RUnlock()

	if len(packageLevels) < 1 {
		wr.level.SetLevel(logLevel)
		return
	}

	// skip updateLevel, log, and the Logger method
	if _, file, _, ok := runtime.Caller(3); ok {
		for k, v := range packageLevels {
			if strings.Contains(file, k) {
				wr.level.SetLevel(v)
				return
			}
		}
	}

	wr.level.SetLevel(logLevel)
}

func (wr *wrapper) DPanic(args ...any) { wr.log(func(l *zap.SugaredLogger) { l.DPanic(args...) }) }

func (wr *wrapper) DPanicf(template string, args ...any) {
	wr.log(func(l *zap.SugaredLogger) { l.DPanicf(template, args...) })
}

func (wr *wrapper) Debug(args ...any) { wr.log(func(l *zap.SugaredLogger) { l.Debug(args...) }) }

func (wr *wrapper) Debugf(template string, args ...any) {
	wr.log(func(l *zap.SugaredLogger) { l.Debugf(template, args...) })
}

func (wr *wrapper) Error(args ...any) { wr.log(func(l *zap.SugaredLogger) { l.Error(args...) }) }

func (wr *wrapper) Errorf(template string, args ...any) {
	wr.log(func(l *zap.SugaredLogger) { l.Errorf(template, args...) })
}

func (wr *wrapper) Info(args ...any) { wr.log(func(l *zap.SugaredLogger) { l.Info(args...) }) }

func (wr *wrapper) Infof(template string, args ...any) {
	wr.log(func(l *zap.SugaredLogger) { l.Infof(template, args...) })
}

func (wr *wrapper) Panic(args ...any) { wr.log(func(l *zap.SugaredLogger) { l.Panic(args...) }) }

func (wr *wrapper) Panicf(template string, args ...any) {
	wr.log(func(l *zap.SugaredLogger) { l.Panicf(template, args...) })
}

func (wr *wrapper) Warn(args ...any) { wr.log(func(l *zap.SugaredLogger) { l.Warn(args...) }) }

func (wr *wrapper) Warnf(template string, args ...any) {
	wr.log(func(l *zap.SugaredLogger) { l.Warnf(template, args...) })
}

func currentLevel() zap.AtomicLevel {
	mut.RLock()
	defer mut.RUnlock()
	return zap.NewAtomicLevelAt(logLevel)
}

// New returns a new logger for stderr with the given name.
// Setting BFT_LOG_TYPE=json selects the JSON production encoder.
func New(name string) Logger {
	var config zap.Config
	if strings.ToLower(os.Getenv("BFT_LOG_TYPE")) == "json" {
		config = zap.NewProductionConfig()
	} else {
		config = zap.NewDevelopmentConfig()
		if isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd()) {
			config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		}
	}
	config.Level = currentLevel()
	// skip the closure, log, and the Logger method
	l, err := config.Build(zap.AddCallerSkip(3))
	if err != nil {
		panic(err)
	}
	return &wrapper{inner: l.Sugar().Named(name), level: config.Level}
}

// NewWithDest returns a new logger for the given destination with the given name.
func NewWithDest(dest io.Writer, name string) Logger {
	atom := currentLevel()
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig()), zapcore.AddSync(dest), atom)
	l := zap.New(core, zap.AddCallerSkip(3))
	return &wrapper{inner: l.Sugar().Named(name), level: atom}
}

// FileOptions controls rotation of log files written by NewWithFile.
type FileOptions struct {
	// MaxSizeMB is the size in megabytes at which the file is rotated.
	MaxSizeMB int
	// MaxBackups is the number of rotated files to keep.
	MaxBackups int
	// Compress enables gzip compression of rotated files.
	Compress bool
}

// NewWithFile returns a new JSON logger that writes to a rotated file.
func NewWithFile(path string, opts FileOptions, name string) Logger {
	atom := currentLevel()
	sink := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    opts.MaxSizeMB,
		MaxBackups: opts.MaxBackups,
		Compress:   opts.Compress,
	}
	core := zapcore.NewCore(zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()), zapcore.AddSync(sink), atom)
	l := zap.New(core, zap.AddCallerSkip(3))
	return &wrapper{inner: l.Sugar().Named(name), level: atom}
}
