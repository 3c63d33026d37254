package config

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// Wizard provides an interactive configuration wizard
type Wizard struct {
	reader *bufio.Reader
	out    io.Writer
}

// NewWizard creates a new configuration wizard
func NewWizard() *Wizard {
	return NewWizardWithIO(os.Stdin, os.Stdout)
}

// NewWizardWithIO creates a wizard reading answers from in.
func NewWizardWithIO(in io.Reader, out io.Writer) *Wizard {
	return &Wizard{
		reader: bufio.NewReader(in),
		out:    out,
	}
}

// Run runs the interactive configuration wizard
func (w *Wizard) Run() (*Config, error) {
	fmt.Fprintln(w.out, "=== JobSync Chat Gateway Configuration ===")
	fmt.Fprintln(w.out)

	cfg := DefaultConfig()
	validator := NewValidator()

	fmt.Fprintln(w.out, "API Keys (at least one is required; keys can also come from the environment):")
	fmt.Fprintln(w.out)

	providers := []struct {
		name     string
		provider string
	}{
		{"Gemini", "gemini"},
		{"OpenAI", "openai"},
		{"Anthropic", "anthropic"},
	}

	for _, p := range providers {
		for {
			fmt.Fprintf(w.out, "%s API Key (press Enter to skip): ", p.name)
			key, err := w.readLine()
			if err != nil {
				return nil, err
			}

			if key == "" {
				break
			}

			if err := validator.ValidateAPIKey(key, p.provider); err != nil {
				fmt.Fprintf(w.out, "Error: %v\n", err)
				continue
			}

			cfg.AI.Profiles = append(cfg.AI.Profiles, AIProfile{
				ID:       p.provider,
				Provider: p.provider,
				APIKey:   key,
				Priority: len(cfg.AI.Profiles),
			})
			break
		}
	}

	if len(cfg.AI.Profiles) == 0 {
		return nil, fmt.Errorf("at least one API key is required")
	}

	fmt.Fprintln(w.out)

	// Gateway
	fmt.Fprintln(w.out, "Gateway:")
	fmt.Fprintf(w.out, "Port [%d]: ", cfg.Gateway.Port)
	port, err := w.readInt(cfg.Gateway.Port)
	if err != nil {
		return nil, err
	}
	if port > 0 && port <= 65535 {
		cfg.Gateway.Port = port
	} else {
		fmt.Fprintf(w.out, "Warning: invalid port, using default (%d)\n", cfg.Gateway.Port)
	}

	fmt.Fprintf(w.out, "Chat messages per minute per client [%d]: ", cfg.RateLimit.ChatPerMinute)
	perMinute, err := w.readInt(cfg.RateLimit.ChatPerMinute)
	if err != nil {
		return nil, err
	}
	if perMinute > 0 {
		cfg.RateLimit.ChatPerMinute = perMinute
	} else {
		fmt.Fprintf(w.out, "Warning: limit must be positive, using default (%d)\n", cfg.RateLimit.ChatPerMinute)
	}

	fmt.Fprintln(w.out)

	// Log Level
	fmt.Fprintln(w.out, "Logging:")
	fmt.Fprint(w.out, "Log level (debug/info/warn/error) [info]: ")
	level, err := w.readLine()
	if err != nil {
		return nil, err
	}

	if level != "" {
		if err := validator.ValidateLogLevel(level); err != nil {
			fmt.Fprintf(w.out, "Warning: %v, using default (info)\n", err)
		} else {
			cfg.Logging.Level = level
		}
	}

	fmt.Fprintln(w.out)
	fmt.Fprintln(w.out, "Configuration complete!")

	return cfg, nil
}

func (w *Wizard) readInt(def int) (int, error) {
	line, err := w.readLine()
	if err != nil {
		return 0, err
	}
	if line == "" {
		return def, nil
	}
	n, err := strconv.Atoi(line)
	if err != nil {
		return -1, nil
	}
	return n, nil
}

func (w *Wizard) readLine() (string, error) {
	line, err := w.reader.ReadString('\n')
	if err != nil {
		if err == io.EOF && line != "" {
			return strings.TrimSpace(line), nil
		}
		return "", err
	}
	return strings.TrimSpace(line), nil
}
