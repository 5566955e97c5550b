package notify

import (
	"go.uber.org/zap"
)

// Log renders notifications as structured log entries. The daemon uses it.
type Log struct {
	logger *zap.SugaredLogger
}

func NewLog(logger *zap.SugaredLogger) *Log {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Log{logger: logger.With("component", "notify")}
}

func (l *Log) Info(msg string)  { l.logger.Infow(msg) }
func (l *Log) Warn(msg string)  { l.logger.Warnw(msg) }
func (l *Log) Error(msg string) { l.logger.Errorw(msg) }

func (l *Log) Progress(title string) Progress {
	l.logger.Debugw("progress started", "title", title)
	return &logProgress{logger: l.logger, title: title}
}

type logProgress struct {
	logger  *zap.SugaredLogger
	title   string
	percent float64
}

func (p *logProgress) Report(increment float64, message string) {
	p.percent += increment
	p.logger.Debugw("progress", "title", p.title, "percent", p.percent, "message", message)
}

func (p *logProgress) Done() {
	p.logger.Debugw("progress finished", "title", p.title)
}

var _ Notifier = (*Log)(nil)
