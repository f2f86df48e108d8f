package logger

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/pkg/errors"
)

// BackendLog is the logging backend used to create all subsystem loggers.
var BackendLog = NewBackend()

var (
	// loggersMutex protects the loggers map below.
	loggersMutex sync.Mutex
	loggers      = make(map[string]*Logger)
)

// RegisterSubSystem registers a new subsystem logger, should be called in a
// global variable. Returns the existing logger if the subsystem is already
// registered.
func RegisterSubSystem(subsystem string) *Logger {
	loggersMutex.Lock()
	defer loggersMutex.Unlock()
	logger, ok := loggers[subsystem]
	if !ok {
		logger = BackendLog.Logger(subsystem)
		loggers[subsystem] = logger
	}
	return logger
}

// InitLog attaches log file and error log file to the backend log and starts
// it.
func InitLog(logFile, errLogFile string) {
	// 250 MB (MB=1000^2 bytes)
	err := BackendLog.AddLogFileWithCustomRotator(logFile, LevelTrace, 1000*250, 64)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error adding log file %s as log rotator for level %s: %s\n", logFile, LevelTrace, err)
		os.Exit(1)
	}
	err = BackendLog.AddLogFile(errLogFile, LevelWarn)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error adding log file %s as log rotator for level %s: %s\n", errLogFile, LevelWarn, err)
		os.Exit(1)
	}
	err = BackendLog.AddLogWriter(os.Stdout, LevelInfo)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error adding stdout to the loggerfor level %s: %s\n", LevelInfo, err)
		os.Exit(1)
	}
	err = BackendLog.Run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error starting the logger: %s\n", err)
		os.Exit(1)
	}
}

// SetLogLevel sets the logging level of the logger associated with the given
// subsystem to the given level.
func SetLogLevel(subsystemID string, logLevel string) error {
	level, ok := LevelFromString(logLevel)
	if !ok {
		return errors.Errorf("invalid log level %s", logLevel)
	}

	loggersMutex.Lock()
	defer loggersMutex.Unlock()
	logger, ok := loggers[subsystemID]
	if !ok {
		return errors.Errorf("sub-system %s doesn't exist", subsystemID)
	}
	logger.SetLevel(level)
	return nil
}

// SetLogLevels sets the logging level of all registered subsystems to the
// given level.
func SetLogLevels(logLevel string) error {
	level, ok := LevelFromString(logLevel)
	if !ok {
		return errors.Errorf("invalid log level %s", logLevel)
	}

	loggersMutex.Lock()
	defer loggersMutex.Unlock()
	for _, logger := range loggers {
		logger.SetLevel(level)
	}
	return nil
}

// SupportedSubsystems returns a sorted slice of the registered subsystems.
func SupportedSubsystems() []string {
	loggersMutex.Lock()
	defer loggersMutex.Unlock()

	subsystems := make([]string, 0, len(loggers))
	for subsystem := range loggers {
		subsystems = append(subsystems, subsystem)
	}
	sort.Strings(subsystems)
	return subsystems
}

// ParseAndSetLogLevels attempts to parse the specified debug level and set
// the levels accordingly. An appropriate error is returned if anything is
// invalid.
func ParseAndSetLogLevels(logLevel string) error {
	// When the specified string doesn't have any delimiters, treat it as
	// the log level for all subsystems.
	if !strings.Contains(logLevel, ",") && !strings.Contains(logLevel, "=") {
		// Validate debug log level.
		if _, ok := LevelFromString(logLevel); !ok {
			return errors.Errorf("the specified debug level [%s] is invalid", logLevel)
		}

		// Change the logging level for all subsystems.
		return SetLogLevels(logLevel)
	}

	// Split the specified string into subsystem/level pairs while detecting
	// issues and update the log levels accordingly.
	for _, logLevelPair := range strings.Split(logLevel, ",") {
		if !strings.Contains(logLevelPair, "=") {
			return errors.Errorf("the specified debug level contains an "+
				"invalid subsystem/level pair [%s]", logLevelPair)
		}

		// Extract the specified subsystem and log level.
		fields := strings.Split(logLevelPair, "=")
		if len(fields) != 2 {
			return errors.Errorf("the specified debug level has an invalid "+
				"format [%s] -- use format subsystem1=level1,subsystem2=level2",
				logLevelPair)
		}
		subsystemID, level := fields[0], fields[1]

		// Validate subsystem.
		loggersMutex.Lock()
		_, exists := loggers[subsystemID]
		loggersMutex.Unlock()
		if !exists {
			return errors.Errorf("the specified subsystem [%s] is invalid -- "+
				"supported subsystems %v", subsystemID, SupportedSubsystems())
		}

		err := SetLogLevel(subsystemID, level)
		if err != nil {
			return err
		}
	}

	return nil
}
