package logger

import (
	"go.uber.org/zap"
)

// Badger adapts zap to badger.Logger.
type Badger struct {
	log *zap.SugaredLogger
}

func NewBadger(l *zap.Logger) *Badger {
	return &Badger{l.Named("badger").Sugar()}
}

func (b *Badger) Errorf(template string, args ...interface{}) {
	b.log.Errorf(template, args...)
}

func (b *Badger) Warningf(template string, args ...interface{}) {
	b.log.Warnf(template, args...)
}

// badger is chatty at info, so it is demoted to debug
func (b *Badger) Infof(template string, args ...interface{}) {
	b.log.Debugf(template, args...)
}

func (b *Badger) Debugf(template string, args ...interface{}) {
	b.log.Debugf(template, args...)
}

// Cron adapts zap to cron.Logger.
type Cron struct {
	log *zap.SugaredLogger
}

func NewCron(l *zap.Logger) *Cron {
	return &Cron{l.Sugar()}
}

func (c *Cron) Info(msg string, keysAndValues ...interface{}) {
	c.log.Debugw(msg, keysAndValues...)
}

func (c *Cron) Error(err error, msg string, keysAndValues ...interface{}) {
	c.log.Errorw(msg, append(keysAndValues, "error", err)...)
}
