package settings

import (
	"log/slog"
	"os"
	"sync"
)

type action interface{ isAction() }

type setTheme struct{ theme Theme }
type setModel struct{ model string }
type setAPIKey struct{ apiKey string }
type setSystemMessage struct{ message string }

func (setTheme) isAction()         {}
func (setModel) isAction()         {}
func (setAPIKey) isAction()        {}
func (setSystemMessage) isAction() {}

func reduce(state Settings, a action) Settings {
	switch a := a.(type) {
	case setTheme:
		state.Theme = a.theme
	case setModel:
		state.Model = a.model
	case setAPIKey:
		state.APIKey = a.apiKey
	case setSystemMessage:
		state.SystemMessage = a.message
	}
	return state
}

// Service is the single writer of user settings. Every mutation is persisted and
// announced to subscribers.
type Service struct {
	mu   sync.RWMutex
	path string
	cur  Settings
	subs []func(Settings)

	// key stored in the file, kept when the in-memory key came from the environment
	fileAPIKey string
	envAPIKey  bool
}

// NewService loads path and applies environment overrides. Load problems fall back
// to the defaults and are logged.
func NewService(path string) *Service {
	cfg, err := Load(path)
	if err != nil {
		slog.Warn("settings file unusable, using defaults", "path", path, "error", err)
	}
	fileKey := cfg.APIKey
	cfg.ApplyEnvOverrides()

	return &Service{
		path:       path,
		cur:        cfg,
		fileAPIKey: fileKey,
		envAPIKey:  os.Getenv(EnvAPIKey) != "",
	}
}

func (s *Service) Get() Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cur
}

// Subscribe registers fn to receive the settings after every change.
func (s *Service) Subscribe(fn func(Settings)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs = append(s.subs, fn)
}

func (s *Service) SetTheme(theme Theme) error {
	return s.dispatch(setTheme{theme})
}

func (s *Service) SetModel(model string) error {
	return s.dispatch(setModel{model})
}

func (s *Service) SetAPIKey(apiKey string) error {
	return s.dispatch(setAPIKey{apiKey})
}

func (s *Service) SetSystemMessage(message string) error {
	return s.dispatch(setSystemMessage{message})
}

// dispatch applies a, persists the result and notifies subscribers. The in-memory
// value changes even when the write fails.
func (s *Service) dispatch(a action) error {
	s.mu.Lock()
	s.cur = reduce(s.cur, a)
	if _, ok := a.(setAPIKey); ok {
		s.envAPIKey = false
		s.fileAPIKey = s.cur.APIKey
	}
	toSave := s.cur
	if s.envAPIKey {
		toSave.APIKey = s.fileAPIKey
	}
	next := s.cur
	subs := append([]func(Settings){}, s.subs...)
	err := SaveTOML(toSave, s.path)
	s.mu.Unlock()

	if err != nil {
		slog.Error("failed to persist settings", "path", s.path, "error", err)
	}
	for _, fn := range subs {
		fn(next)
	}
	return err
}
