// Package status gives the user terminal feedback about dataset changes,
// separate from the machine-readable zerolog output.
package status

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/pterm/pterm"
	"github.com/rs/zerolog"
)

// 📢 UserLogger provides user-friendly feedback about dataset changes
type UserLogger struct {
	log zerolog.Logger // for debug/error logging
}

// 🎨 FileChangeType represents the type of change made to a file
type FileChangeType int

const (
	FileMoved FileChangeType = iota
	FileConverted
	FileDeleted
	FileSkipped
	FileError
)

// 🖼️ FileChange represents a change to a file in the dataset
type FileChange struct {
	Type        FileChangeType
	Path        string
	Description string
	Error       error
}

// 🎯 NewUserLogger creates a new user logger
func NewUserLogger(ctx context.Context) *UserLogger {
	return &UserLogger{
		log: *zerolog.Ctx(ctx),
	}
}

// 📝 LogFileChange logs a file change with appropriate emoji and formatting
func (u *UserLogger) LogFileChange(change FileChange) {
	relPath := filepath.Base(change.Path)

	var prefix, action string
	var printer *pterm.PrefixPrinter
	switch change.Type {
	case FileMoved:
		prefix = "🚚"
		action = "Moved"
		printer = pterm.Success.WithPrefix(pterm.Prefix{Text: prefix})
	case FileConverted:
		prefix = "🔄"
		action = "Converted"
		printer = pterm.Success.WithPrefix(pterm.Prefix{Text: prefix})
	case FileDeleted:
		prefix = "🗑️"
		action = "Deleted"
		printer = pterm.Info.WithPrefix(pterm.Prefix{Text: prefix})
	case FileSkipped:
		prefix = "⏭️"
		action = "Skipped"
		printer = pterm.Warning.WithPrefix(pterm.Prefix{Text: prefix})
	case FileError:
		prefix = "❌"
		action = "Failed"
		printer = pterm.Error.WithPrefix(pterm.Prefix{Text: prefix})
	default:
		prefix = "ℹ️"
		action = "Changed"
		printer = pterm.Info.WithPrefix(pterm.Prefix{Text: prefix})
	}

	msg := fmt.Sprintf("%s %s", action, relPath)
	if change.Description != "" {
		msg += " " + pterm.Gray("("+change.Description+")")
	}
	printer.Println(msg)

	if change.Error != nil {
		pterm.Error.Println(change.Error)
	}

	u.log.Debug().
		Str("path", change.Path).
		Str("action", action).
		Msg("file change")
}

// 📊 LogSummary prints a batch summary line
func (u *UserLogger) LogSummary(succeeded, failed int) {
	printer := pterm.Info.WithPrefix(pterm.Prefix{Text: "📦"})
	if failed > 0 {
		printer = pterm.Warning.WithPrefix(pterm.Prefix{Text: "📦"})
	}
	printer.Println(fmt.Sprintf("%d succeeded, %d failed", succeeded, failed))

	u.log.Debug().
		Int("succeeded", succeeded).
		Int("failed", failed).
		Msg("batch summary")
}
