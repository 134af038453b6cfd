package utils

import (
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	InfoLogger  *logrus.Logger
	ErrorLogger *logrus.Logger
)

type LogOptions struct {
	Level      string
	Format     string
	FilePath   string
	MaxSize    int
	MaxBackups int
	MaxAge     int
	Compress   bool
}

func init() {
	// usable before InitLogger runs, e.g. in tests
	InitLogger(LogOptions{Level: "info"})
}

func InitLogger(opts LogOptions) error {
	info := logrus.New()
	errLog := logrus.New()

	level, err := logrus.ParseLevel(opts.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	info.SetLevel(level)
	errLog.SetLevel(logrus.WarnLevel)

	var formatter logrus.Formatter = &logrus.TextFormatter{FullTimestamp: true}
	if opts.Format == "json" {
		formatter = &logrus.JSONFormatter{}
	}
	info.SetFormatter(formatter)
	errLog.SetFormatter(formatter)

	var infoOut io.Writer = os.Stdout
	var errOut io.Writer = os.Stderr
	if opts.FilePath != "" {
		if err := os.MkdirAll(filepath.Dir(opts.FilePath), 0755); err != nil {
			return err
		}
		rotate := &lumberjack.Logger{
			Filename:   opts.FilePath,
			MaxSize:    opts.MaxSize,
			MaxBackups: opts.MaxBackups,
			MaxAge:     opts.MaxAge,
			Compress:   opts.Compress,
		}
		infoOut = io.MultiWriter(os.Stdout, rotate)
		errOut = io.MultiWriter(os.Stderr, rotate)
	}
	info.SetOutput(infoOut)
	errLog.SetOutput(errOut)

	InfoLogger = info
	ErrorLogger = errLog
	return nil
}
