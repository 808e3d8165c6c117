package library

import (
	"fmt"
	"runtime/debug"
	"sync/atomic"

	"github.com/mborders/logmatic"
)

var verbosity int32 = 4

// SetLogLevel sets the highest level that LogCLI will print.
func SetLogLevel(level int) {
	atomic.StoreInt32(&verbosity, int32(level))
}

// Logs to the terminal. Level options are: 0 fatal error (stack dump), 1 serious error (stack dump), 2 warning, 3 debug, 4 info, 5 trace (stack dump).
func LogCLI(message interface{}, level int) {
	if int32(level) > atomic.LoadInt32(&verbosity) {
		return
	}
	l := logmatic.NewLogger()
	l.SetLevel(logmatic.TRACE)
	l.ExitOnFatal = true
	message = fmt.Sprint(message)
	switch level {
	case 5:
		debug.PrintStack()
		l.Trace("%v", message)
	case 4:
		l.Info("%v", message)
	case 3:
		l.Debug("%v", message)
	case 2:
		l.Warn("%v", message)
	case 1:
		debug.PrintStack()
		l.Error("%v", message)
	case 0:
		debug.PrintStack()
		l.Error("%v", message)
	}
}
