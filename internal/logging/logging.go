package logging

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

const (
	permission = 0664
)

// LogBuild assembles a zerolog.Logger.
type LogBuild struct {
	writer  io.Writer
	path    string
	level   string
	console bool
}

// LogData is the result of Make. LogFile is set when logging to a file and
// must be closed by the caller.
type LogData struct {
	LogFile *os.File
	Logger  zerolog.Logger
}

func New() *LogBuild {
	return &LogBuild{}
}

func (build *LogBuild) FromPath(path string) *LogBuild {
	build.path = path
	return build
}

func (build *LogBuild) FromWriter(w io.Writer) *LogBuild {
	build.writer = w
	return build
}

func (build *LogBuild) WithLevel(level string) *LogBuild {
	build.level = level
	return build
}

// Console switches to human-readable output.
func (build *LogBuild) Console(on bool) *LogBuild {
	build.console = on
	return build
}

func (build *LogBuild) Make() (logData *LogData, err error) {
	logData = new(LogData)
	var w io.Writer = os.Stderr
	if build.writer != nil {
		w = build.writer
	}
	if build.path != "" {
		logData.LogFile, err = os.OpenFile(build.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, permission)
		if err != nil {
			return nil, err
		}
		w = zerolog.SyncWriter(logData.LogFile)
	}
	if build.console {
		w = zerolog.ConsoleWriter{Out: w, NoColor: build.path != ""}
	}

	level := zerolog.InfoLevel
	if build.level != "" {
		level, err = zerolog.ParseLevel(strings.ToLower(build.level))
		if err != nil {
			if logData.LogFile != nil {
				logData.LogFile.Close()
			}
			return nil, err
		}
	}
	logData.Logger = zerolog.New(w).Level(level).With().Timestamp().Logger()
	return logData, nil
}
