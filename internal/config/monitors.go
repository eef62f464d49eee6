package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/hamed0406/statuspulse/internal/domain"
)

// MonitorFile is the declarative monitor set, e.g.
//
//	monitors:
//	  - name: shop
//	    url: https://shop.example.com
//	    alerts:
//	      - channel: email
//	        destination: ops@example.com
type MonitorFile struct {
	Monitors []MonitorSpec `yaml:"monitors"`
}

type MonitorSpec struct {
	Name            string      `yaml:"name"`
	URL             string      `yaml:"url"`
	Method          string      `yaml:"method"`
	ExpectedStatus  int         `yaml:"expected_status"`
	IntervalSeconds int         `yaml:"check_interval_seconds"`
	TimeoutSeconds  int         `yaml:"timeout_seconds"`
	Kind            string      `yaml:"check_kind"`
	Active          *bool       `yaml:"active"`
	Alerts          []AlertSpec `yaml:"alerts"`
}

type AlertSpec struct {
	Channel     string `yaml:"channel"`
	Destination string `yaml:"destination"`
	Active      *bool  `yaml:"active"`
}

// LoadMonitors reads and validates path.
func LoadMonitors(path string) (*MonitorFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return ParseMonitors(data)
}

func ParseMonitors(data []byte) (*MonitorFile, error) {
	var f MonitorFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("config: parse monitors: %w", err)
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

// Monitor converts the entry to a domain monitor with defaults applied.
func (s MonitorSpec) Monitor() domain.Monitor {
	m := domain.Monitor{
		Name:            s.Name,
		URL:             s.URL,
		Method:          s.Method,
		ExpectedStatus:  s.ExpectedStatus,
		IntervalSeconds: s.IntervalSeconds,
		TimeoutSeconds:  s.TimeoutSeconds,
		Kind:            domain.CheckKind(s.Kind),
		IsActive:        s.Active == nil || *s.Active,
	}
	m.ApplyDefaults()
	return m
}

func (a AlertSpec) IsActive() bool { return a.Active == nil || *a.Active }

func (f *MonitorFile) Validate() error {
	var errs []error
	seen := make(map[string]bool)
	for i, s := range f.Monitors {
		m := s.Monitor()
		if err := m.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("monitors[%d]: %w", i, err))
			continue
		}
		if seen[m.URL] {
			errs = append(errs, fmt.Errorf("monitors[%d]: duplicate url %s", i, m.URL))
		}
		seen[m.URL] = true
		for j, a := range s.Alerts {
			switch domain.Channel(a.Channel) {
			case domain.ChannelEmail, domain.ChannelWebhook:
			default:
				errs = append(errs, fmt.Errorf("monitors[%d].alerts[%d]: unknown channel %q", i, j, a.Channel))
			}
			if a.Destination == "" {
				errs = append(errs, fmt.Errorf("monitors[%d].alerts[%d]: destination is required", i, j))
			}
		}
	}
	return errors.Join(errs...)
}
