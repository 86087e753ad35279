package mqtt

import (
	"fmt"
	"strings"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
)

// pahoLogger adapts a leveled logging function to paho's Logger interface.
type pahoLogger struct {
	log func(msg string, args ...any)
}

func (l pahoLogger) Println(v ...any) {
	l.log(strings.TrimSpace(fmt.Sprintln(v...)), "source", "paho")
}

func (l pahoLogger) Printf(format string, v ...any) {
	l.log(strings.TrimSpace(fmt.Sprintf(format, v...)), "source", "paho")
}

// RouteLibraryLogs sends paho's internal log output to logger.
// Critical and error output maps to Error, warnings to Warn. The very chatty
// debug stream is only routed when debug is true.
//
// paho keeps these loggers in package variables, so this affects every
// client in the process. Call it once during startup.
func RouteLibraryLogs(logger Logger, debug bool) {
	pahomqtt.CRITICAL = pahoLogger{log: logger.Error}
	pahomqtt.ERROR = pahoLogger{log: logger.Error}
	pahomqtt.WARN = pahoLogger{log: logger.Warn}
	if debug {
		pahomqtt.DEBUG = pahoLogger{log: logger.Debug}
	}
}
