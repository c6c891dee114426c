// Package log provides structured logging with filesystem-based persistence.
package log

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/samber/lo"
	logrus "github.com/sirupsen/logrus"
	"github.com/spf13/viper"
	"github.com/subplay/subplay/filesystem"
	"github.com/subplay/subplay/key"
	"github.com/subplay/subplay/where"
)

// enabled indicates the persistent logging state for the active application instance.
var enabled bool

// Setup initializes the logging subsystem, including file handles, formatting, and severity levels based on global configuration.
// If logging is disabled, all subsequent log emissions are silently discarded.
func Setup() error {
	enabled = viper.GetBool(key.LogsWrite)
	if !enabled {
		return nil
	}

	dir := where.Logs()
	if dir == "" {
		return errors.New("log directory path is empty")
	}

	filename := fmt.Sprintf("%s.log", time.Now().Format("2006-01-02"))
	path := filepath.Join(dir, filename)

	if exists := lo.Must(filesystem.API().Exists(path)); !exists {
		lo.Must(filesystem.API().Create(path))
	}

	f, err := filesystem.API().OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	logrus.SetOutput(f)

	if viper.GetBool(key.LogsJson) {
		logrus.SetFormatter(&logrus.JSONFormatter{PrettyPrint: true})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{})
	}

	parsed, err := logrus.ParseLevel(viper.GetString(key.LogsLevel))
	if err != nil {
		parsed = logrus.InfoLevel
	}
	logrus.SetLevel(parsed)

	return nil
}

// Enabled reports whether log output is being written.
func Enabled() bool {
	return enabled
}

// Component is a logger bound to one part of the application, e.g. a playback backend.
// Every record it writes carries a "component" field.
type Component struct {
	name string
}

// For returns a Component logger for the named part of the application.
func For(name string) Component {
	return Component{name: name}
}

func (c Component) entry() *logrus.Entry {
	return logrus.WithField("component", c.name)
}

func (c Component) Errorf(format string, args ...any) {
	if enabled {
		c.entry().Errorf(format, args...)
	}
}

func (c Component) Warnf(format string, args ...any) {
	if enabled {
		c.entry().Warnf(format, args...)
	}
}

func (c Component) Infof(format string, args ...any) {
	if enabled {
		c.entry().Infof(format, args...)
	}
}

func (c Component) Debugf(format string, args ...any) {
	if enabled {
		c.entry().Debugf(format, args...)
	}
}

func (c Component) Tracef(format string, args ...any) {
	if enabled {
		c.entry().Tracef(format, args...)
	}
}

// Package-level emissions - these proxy messages to logrus when logging is enabled.

func Error(args ...any) {
	if enabled {
		logrus.Error(args...)
	}
}
func Errorf(format string, args ...any) {
	if enabled {
		logrus.Errorf(format, args...)
	}
}
func Warn(args ...any) {
	if enabled {
		logrus.Warn(args...)
	}
}
func Warnf(format string, args ...any) {
	if enabled {
		logrus.Warnf(format, args...)
	}
}
func Info(args ...any) {
	if enabled {
		logrus.Info(args...)
	}
}
func Infof(format string, args ...any) {
	if enabled {
		logrus.Infof(format, args...)
	}
}
func Debugf(format string, args ...any) {
	if enabled {
		logrus.Debugf(format, args...)
	}
}
