package usecase

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
)

// ParamGetter fetches one named parameter from the parameter store.
type ParamGetter interface {
	GetParameter(ctx context.Context, name string) (string, error)
}

// Catalog resolves outbound message bodies: the localized initial
// notification, the per-stage follow-up questions, and the closing text.
// All texts live in the parameter store under a common prefix and are
// loaded once per process on first use.
type Catalog struct {
	params        ParamGetter
	prefix        string
	stages        int
	locales       []string
	defaultLocale string

	mu            sync.RWMutex
	loaded        bool
	notifications map[string]string
	questions     map[int]string
	closing       string
}

// NewCatalog creates a Catalog for the locales and stage count in cfg.
func NewCatalog(params ParamGetter, cfg Config) (*Catalog, error) {
	if params == nil {
		return nil, errors.New("usecase: param getter must not be nil")
	}
	cfg = cfg.withDefaults()
	if cfg.ParamPrefix == "" {
		return nil, errors.New("usecase: parameter prefix must not be empty")
	}
	found := false
	for _, locale := range cfg.Locales {
		if locale == cfg.DefaultLocale {
			found = true
			break
		}
	}
	if !found {
		return nil, fmt.Errorf("usecase: default locale %q not in configured locales", cfg.DefaultLocale)
	}
	return &Catalog{
		params:        params,
		prefix:        cfg.ParamPrefix,
		stages:        cfg.Stages,
		locales:       cfg.Locales,
		defaultLocale: cfg.DefaultLocale,
	}, nil
}

// Notification returns the initial notification body for a locale. An
// unknown or empty locale falls back to the default locale.
func (c *Catalog) Notification(ctx context.Context, locale string) (string, error) {
	if err := c.ensure(ctx); err != nil {
		return "", err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	if body, ok := c.notifications[normalizeLocale(locale)]; ok {
		return body, nil
	}
	return c.notifications[c.defaultLocale], nil
}

// Question returns the follow-up question asked when the conversation
// reaches the given stage (2..stages).
func (c *Catalog) Question(ctx context.Context, stage int) (string, error) {
	if stage < 2 || stage > c.stages {
		return "", fmt.Errorf("usecase: no question for stage %d", stage)
	}
	if err := c.ensure(ctx); err != nil {
		return "", err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.questions[stage], nil
}

// Closing returns the text sent after the final stage's reply.
func (c *Catalog) Closing(ctx context.Context) (string, error) {
	if err := c.ensure(ctx); err != nil {
		return "", err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.closing, nil
}

func (c *Catalog) ensure(ctx context.Context) error {
	c.mu.RLock()
	if c.loaded {
		c.mu.RUnlock()
		return nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.loaded {
		return nil
	}

	notifications := make(map[string]string, len(c.locales))
	for _, locale := range c.locales {
		body, err := c.params.GetParameter(ctx, c.prefix+"/notification/"+locale)
		if err != nil {
			return fmt.Errorf("usecase: load notification body (%s): %w", locale, err)
		}
		notifications[locale] = body
	}

	questions := make(map[int]string, c.stages-1)
	for stage := 2; stage <= c.stages; stage++ {
		text, err := c.params.GetParameter(ctx, c.prefix+"/question/"+strconv.Itoa(stage))
		if err != nil {
			return fmt.Errorf("usecase: load stage %d question: %w", stage, err)
		}
		questions[stage] = text
	}

	closing, err := c.params.GetParameter(ctx, c.prefix+"/closing")
	if err != nil {
		return fmt.Errorf("usecase: load closing text: %w", err)
	}

	c.notifications = notifications
	c.questions = questions
	c.closing = closing
	c.loaded = true
	return nil
}

func normalizeLocale(locale string) string {
	return strings.ToLower(strings.TrimSpace(locale))
}
