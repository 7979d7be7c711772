package logger

import (
	"io"
	"log"

	"github.com/rollbar/rollbar-go"
	"github.com/rollbar/rollbar-go/errors"

	"github.com/paincake00/geoclock/internal/entity"
)

// Logger журнал приложения. args: error, map[string]interface{}, entity.User.
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
}

// New возвращает RollbarLogger, если задан токен, иначе StdLogger.
func New(std *log.Logger, rollbarToken, environment string) Logger {
	if rollbarToken == "" {
		return StdLogger{std: std}
	}
	return NewRollbarLogger(std, rollbarToken, environment)
}

// Discard журнал, который ничего не пишет.
func Discard() Logger {
	return StdLogger{std: log.New(io.Discard, "", 0)}
}

// StdLogger пишет только в стандартный log.
type StdLogger struct {
	std *log.Logger
}

var _ Logger = StdLogger{}

func (l StdLogger) print(level, msg string, args []interface{}) {
	l.std.Printf("[%s] %s", level, msg)
	for _, arg := range args {
		l.std.Printf("%+v", arg)
	}
}

func (l StdLogger) Debug(msg string, args ...interface{}) { l.print("DEBUG", msg, args) }
func (l StdLogger) Info(msg string, args ...interface{})  { l.print("INFO", msg, args) }
func (l StdLogger) Warn(msg string, args ...interface{})  { l.print("WARN", msg, args) }
func (l StdLogger) Error(msg string, args ...interface{}) { l.print("ERROR", msg, args) }

// RollbarLogger дублирует записи в Rollbar.
type RollbarLogger struct {
	StdLogger
}

var _ Logger = RollbarLogger{}

func NewRollbarLogger(std *log.Logger, token, environment string) RollbarLogger {
	rollbar.SetToken(token)
	rollbar.SetEnvironment(environment)
	rollbar.SetServerRoot("github.com/paincake00/geoclock")
	rollbar.SetStackTracer(errors.StackTracer)
	return RollbarLogger{StdLogger{std: std}}
}

// Close дожидается отправки накопленных событий.
func (l RollbarLogger) Close() {
	rollbar.Wait()
}

// prepare выделяет пользователя из args и передаёт его как person.
func (l RollbarLogger) prepare(msg string, args []interface{}) []interface{} {
	var usrSet bool
	out := make([]interface{}, 0, len(args)+1)
	out = append(out, msg)
	for _, arg := range args {
		if usr, ok := arg.(entity.User); ok {
			if !usrSet {
				rollbar.SetPerson(usr.ID, usr.Name, "")
				usrSet = true
			}
			continue
		}
		out = append(out, arg)
	}
	if !usrSet {
		rollbar.ClearPerson()
	}
	return out
}

func (l RollbarLogger) Debug(msg string, args ...interface{}) {
	rollbar.Debug(l.prepare(msg, args)...)
	l.print("DEBUG", msg, args)
}

func (l RollbarLogger) Info(msg string, args ...interface{}) {
	rollbar.Info(l.prepare(msg, args)...)
	l.print("INFO", msg, args)
}

func (l RollbarLogger) Warn(msg string, args ...interface{}) {
	rollbar.Warning(l.prepare(msg, args)...)
	l.print("WARN", msg, args)
}

func (l RollbarLogger) Error(msg string, args ...interface{}) {
	rollbar.Error(l.prepare(msg, args)...)
	l.print("ERROR", msg, args)
}
