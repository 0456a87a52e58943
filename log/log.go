package log

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"

	"github.com/kjk/diary/filerotate"
)

var (
	mu        sync.Mutex
	log       *filerotate.File
	errorsLog *filerotate.File
	eventsLog *filerotate.File

	// if true, Verbosef() will log messages
	Verbose bool

	// where Logf() prints, in addition to log files
	Output io.Writer = os.Stdout
)

type Config struct {
	// directory where log files are stored
	// each log type (regular, error, event) has its own subdirectory
	Dir string
	// how many daily files of each type to keep, 0 means all
	Keep int
	// called for every Logf() call
	// allows sending logs to other places
	OnLog func(s string)
}

var onLog func(s string)

// Init initializes the logging system
// log files are stored in config.Dir
// Before Init (or if it fails) we only log to Output
func Init(config *Config) error {
	Close()
	dir := config.Dir
	newDaily := func(name string) (*filerotate.File, error) {
		return filerotate.NewDaily(filepath.Join(dir, name), "", config.Keep, nil)
	}
	l, err := newDaily("log")
	if err != nil {
		return err
	}
	el, err := newDaily("errors")
	if err != nil {
		l.Close()
		return err
	}
	evl, err := newDaily("events")
	if err != nil {
		l.Close()
		el.Close()
		return err
	}
	mu.Lock()
	log, errorsLog, eventsLog = l, el, evl
	onLog = config.OnLog
	mu.Unlock()
	return nil
}

func closeFile(f **filerotate.File) {
	if *f == nil {
		return
	}
	(*f).Flush()
	(*f).Close()
	*f = nil
}

// Close closes log files
func Close() {
	mu.Lock()
	defer mu.Unlock()
	closeFile(&log)
	closeFile(&errorsLog)
	closeFile(&eventsLog)
	onLog = nil
}

func writeTo(f *filerotate.File, s string) {
	if f == nil {
		return
	}
	_, _ = f.Write([]byte(s))
}

func Logf(s string, args ...any) {
	if len(args) > 0 {
		s = fmt.Sprintf(s, args...)
	}
	mu.Lock()
	defer mu.Unlock()
	fmt.Fprint(Output, s)
	writeTo(log, s)
	if onLog != nil {
		onLog(s)
	}
}

func Verbosef(format string, args ...any) {
	if !Verbose {
		return
	}
	Logf(format, args...)
}

func GetCallstackFrames(skip int) []string {
	var callers [32]uintptr
	n := runtime.Callers(skip+1, callers[:])
	frames := runtime.CallersFrames(callers[:n])
	var cs []string
	for {
		frame, more := frames.Next()
		if !more {
			break
		}
		s := frame.File + ":" + strconv.Itoa(frame.Line)
		cs = append(cs, s)
	}
	return cs
}

func GetCallstack(skip int) string {
	frames := GetCallstackFrames(skip + 1)
	return strings.Join(frames, "\n")
}

// Errorf logs an error message along with the callstack
// It goes to both regular and errors log
func Errorf(s string, args ...any) {
	if len(args) > 0 {
		s = fmt.Sprintf(s, args...)
	}
	cs := GetCallstack(2)
	msg := fmt.Sprintf("%s\n%s\n", strings.TrimSuffix(s, "\n"), cs)
	Logf("%s", msg)
	mu.Lock()
	writeTo(errorsLog, msg)
	mu.Unlock()
}

// if err != nil, log and return true
// IfErrf(err) => logs err.Error()
// IfErrf(err, "error is: %v", err) => logs message formatted
func IfErrf(err error, a ...any) bool {
	if err == nil {
		return false
	}
	if len(a) == 0 {
		Errorf("%s", err.Error())
		return true
	}
	s, ok := a[0].(string)
	if !ok {
		// shouldn't happen but just in case
		s = fmt.Sprintf("%s", a[0])
	}
	if len(a) > 1 {
		s = fmt.Sprintf(s, a[1:]...)
	}
	Errorf("%s", s)
	return true
}
