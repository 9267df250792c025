package directors

import (
	"fmt"
	"path/filepath"
	"time"

	"ssashelper/src/engine"
	"ssashelper/src/helpers"
	"ssashelper/src/settings"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// LogFileName returns the log file a run started at t writes to in dir.
func LogFileName(dir string, t time.Time) string {
	return filepath.Join(dir, fmt.Sprintf("%s_ssashelper.log", t.Format("2006-01-02_15-04-05")))
}

// InitLogger builds the process logger from config and installs it as the
// zap global logger.
func InitLogger(config *settings.Arguments) (*zap.Logger, error) {
	var outputs []string
	if config.PrintToScreen {
		outputs = append(outputs, "stdout")
	}
	if config.LogDir != "" {
		outputs = append(outputs, LogFileName(config.LogDir, time.Now()))
	}

	var z zap.Config
	if config.Debug {
		// Development configuration with more verbose output
		z = zap.NewDevelopmentConfig()
	} else {
		z = zap.NewProductionConfig()
		if config.Verbose {
			z.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
		}
	}
	z.OutputPaths = outputs

	logger, err := z.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	zap.ReplaceGlobals(logger)
	return logger, nil
}

// InitServices creates the logger and the project services described by
// config and registers them with a fresh ServiceManager. The returned function
// releases the journal and flushes the logger. A nil config uses the process
// wide settings.
func InitServices(config *settings.Arguments) (*ServiceManager, func() error, error) {
	if config == nil {
		config = settings.GetSettings()
	}
	logger, err := InitLogger(config)
	if err != nil {
		return nil, nil, err
	}
	sugar := logger.Sugar()

	var journal *engine.Journal
	if config.JournalDir != "" {
		journal, err = engine.NewJournal(config.JournalDir, config.JournalRetentionDays)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open journal: %w", err)
		}
		if removed, err := journal.CleanupOldJournals(); err != nil {
			sugar.Warnf("Failed to remove old journals: %v", err)
		} else if removed > 0 {
			sugar.Infof("Removed %d old journal files", removed)
		}
	}

	ns := helpers.NewNamespaces()
	service := NewProjectService(
		engine.NewProjectStore(ns, sugar),
		engine.NewDirectoryCleaner(ns, sugar),
		engine.NewValidator(sugar),
		journal,
		sugar,
	)

	closer := func() error {
		var errs error
		if journal != nil {
			errs = multierr.Append(errs, journal.Close())
		}
		// Sync errors on stdout are ignored.
		_ = logger.Sync()
		return errs
	}

	ResetServiceManager()
	return InitServiceManager(service, sugar), closer, nil
}
