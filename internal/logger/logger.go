package logger

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/fatih/color"
)

// Logger writes timestamped, category-tagged lines to stdout with colored levels.
type Logger struct {
	mu      sync.Mutex
	debug   bool
	infoC   *color.Color
	warnC   *color.Color
	errorC  *color.Color
	debugC  *color.Color
	labelC  *color.Color
}

func NewLogger() *Logger {
	return &Logger{
		debug:  os.Getenv("LOG_DEBUG") == "true",
		infoC:  color.New(color.FgGreen),
		warnC:  color.New(color.FgYellow),
		errorC: color.New(color.FgRed, color.Bold),
		debugC: color.New(color.FgCyan),
		labelC: color.New(color.FgWhite, color.Bold),
	}
}

func (l *Logger) Close() {
	// Nothing to flush; kept so callers can defer log.Close() uniformly.
}

func (l *Logger) write(levelC *color.Color, level, category, message string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	ts := time.Now().Format("2006-01-02 15:04:05.000")
	fmt.Printf("%s %s %s %s\n",
		ts,
		levelC.Sprintf("[%s]", level),
		l.labelC.Sprintf("[%s]", category),
		message)
}

func (l *Logger) Info(category, message string) {
	l.write(l.infoC, "INFO", category, message)
}

func (l *Logger) Warn(category, message string) {
	l.write(l.warnC, "WARN", category, message)
}

func (l *Logger) Error(category, message string) {
	l.write(l.errorC, "ERROR", category, message)
}

func (l *Logger) Debug(category, message string) {
	if !l.debug {
		return
	}
	l.write(l.debugC, "DEBUG", category, message)
}

func (l *Logger) Fatal(category, message string) {
	l.write(l.errorC, "FATAL", category, message)
	os.Exit(1)
}

// LogProcess marks a lifecycle stage (startup, wiring, shutdown).
func (l *Logger) LogProcess(stage, message string) {
	l.Info(stage, message)
}

func (l *Logger) LogAPI(method, path, status, duration string) {
	l.Info("API", fmt.Sprintf("%s %s - %s (%s)", method, path, status, duration))
}

func (l *Logger) LogDatabase(operation, table, message string) {
	l.Info("DATABASE", fmt.Sprintf("[%s:%s] %s", operation, table, message))
}

func (l *Logger) LogKafka(operation, topic, message string) {
	l.Info("KAFKA", fmt.Sprintf("[%s:%s] %s", operation, topic, message))
}

func (l *Logger) LogTable(action, tableID, message string) {
	l.Info("TABLE", fmt.Sprintf("[%s:%s] %s", action, tableID, message))
}

func (l *Logger) LogOrder(action, orderID, message string) {
	l.Info("ORDER", fmt.Sprintf("[%s:%s] %s", action, orderID, message))
}

func (l *Logger) LogSecurity(event, message string) {
	l.Warn("SECURITY", fmt.Sprintf("[%s] %s", event, message))
}
