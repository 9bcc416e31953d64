// Package logger provides a flat f-suffixed logging API (Debugf/Infof/
// Errorf, SetLevel) over github.com/sirupsen/logrus.
package logger

import (
	"os"
	"sync"

	"github.com/sirupsen/logrus"
)

var (
	mu   sync.Mutex
	base = logrus.New()
)

func init() {
	base.SetOutput(os.Stdout)
	base.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	applyLevel("info")
}

func applyLevel(lvl string) {
	parsed, err := logrus.ParseLevel(lvl)
	if err != nil {
		parsed = logrus.InfoLevel
	}
	base.SetLevel(parsed)
}

// SetLevel sets the effective logrus level; an empty string means debug.
func SetLevel(lvl string) {
	mu.Lock()
	defer mu.Unlock()
	if lvl == "" {
		lvl = "debug"
	}
	applyLevel(lvl)
}

func Debugf(template string, args ...interface{}) { base.Debugf(template, args...) }
func Infof(template string, args ...interface{})  { base.Infof(template, args...) }
func Errorf(template string, args ...interface{}) { base.Errorf(template, args...) }
