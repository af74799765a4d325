package usecase

import "strings"

const (
	defaultStages      = 4
	defaultParallelism = 5
	defaultLocale      = "english"
)

var defaultLocales = []string{"english", "spanish", "amharic"}

// Config carries the deployment-specific knobs shared by both services.
type Config struct {
	// ParamPrefix is the parameter-store prefix holding message texts.
	ParamPrefix string
	// Stages is the number of survey questions in the conversation.
	Stages int
	// Locales are the languages an initial notification exists for.
	Locales []string
	// DefaultLocale is used when a subject's locale is unknown.
	DefaultLocale string
	// Parallelism bounds concurrent dispatches in one batch pass.
	Parallelism int
}

func (c Config) withDefaults() Config {
	c.ParamPrefix = strings.TrimRight(strings.TrimSpace(c.ParamPrefix), "/")
	if c.Stages <= 0 {
		c.Stages = defaultStages
	}
	if c.Parallelism <= 0 {
		c.Parallelism = defaultParallelism
	}
	if len(c.Locales) == 0 {
		c.Locales = defaultLocales
	}
	locales := make([]string, len(c.Locales))
	for i, locale := range c.Locales {
		locales[i] = normalizeLocale(locale)
	}
	c.Locales = locales
	if c.DefaultLocale == "" {
		c.DefaultLocale = defaultLocale
	}
	c.DefaultLocale = normalizeLocale(c.DefaultLocale)
	return c
}
