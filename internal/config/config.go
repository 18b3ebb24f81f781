package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/rohmanhakim/pyq-crawler/internal/build"
	"github.com/rohmanhakim/pyq-crawler/pkg/fileutil"
	"github.com/rohmanhakim/pyq-crawler/pkg/urlutil"
	"gopkg.in/yaml.v3"
)

const (
	appName = "pyq-crawler"

	// TokenEnvVar holds the bearer token for the question bank API.
	TokenEnvVar = "PYQ_API_TOKEN"
	// LegacyTokenEnvVar is read when TokenEnvVar is unset.
	LegacyTokenEnvVar = "MARKS_APP_API_KEY"

	DefaultAPIBaseURL          = "https://web.getmarks.app/api/v3/cpyqb"
	DefaultQuestionsBaseURL    = "https://web.getmarks.app/api/v2"
	DefaultQuestionLinkBaseURL = "https://web.getmarks.app/cpyqb/question"
)

type Config struct {
	//===============
	// Remote API
	//===============
	// Base of the chapter listing and chapter detail endpoints
	apiBaseURL url.URL
	// Base of the question detail endpoint
	questionsBaseURL url.URL
	// Base of the human-facing question links in reports
	questionLinkBaseURL url.URL
	// Bearer token sent with every request
	apiToken string
	// User agent that will be used in the request header. In raw string
	userAgent string

	//===============
	// Catalog
	//===============
	subjects []Subject

	//===============
	// Politeness
	//===============
	// Maximum number of chapters processed concurrently
	concurrency int
	// Minimum spacing between two requests to the same host; 0 disables pacing
	baseDelay time.Duration
	// Randomized variation added on top of the base delay and backoff
	jitter time.Duration
	// Controls the random number generator
	randomSeed int64
	// Maximum attempts per request while rate limited; 0 retries until success
	maxAttempt int
	// initial delay for backoff
	backoffInitialDuration time.Duration
	// multiplier during exponential backoff
	backoffMultiplier float64
	// capped maximum delay for backoff to stop exponential multiplication
	backoffMaxDuration time.Duration

	//===============
	// Fetch
	//===============
	// Total time allowed for one HTTP attempt
	timeout time.Duration

	//===============
	// Cache
	//===============
	// Primary cache file; backup, lock and temp files are derived from it
	cacheFile string
	// Maximum wait for the cross-process cache lock
	lockTimeout time.Duration
	// Interval of the periodic background persist
	autosaveInterval time.Duration

	//===============
	// Output
	//===============
	// Directory receiving the per-chapter match files
	outputDir string
	// Remove and recreate outputDir before a search
	cleanOutput bool
	// zerolog level name
	logLevel string
}

type configDTO struct {
	APIBaseURL             string    `json:"apiBaseUrl,omitempty" yaml:"apiBaseUrl,omitempty"`
	QuestionsBaseURL       string    `json:"questionsBaseUrl,omitempty" yaml:"questionsBaseUrl,omitempty"`
	QuestionLinkBaseURL    string    `json:"questionLinkBaseUrl,omitempty" yaml:"questionLinkBaseUrl,omitempty"`
	APIToken               string    `json:"apiToken,omitempty" yaml:"apiToken,omitempty"`
	UserAgent              string    `json:"userAgent,omitempty" yaml:"userAgent,omitempty"`
	Subjects               []Subject `json:"subjects,omitempty" yaml:"subjects,omitempty"`
	Concurrency            int       `json:"concurrency,omitempty" yaml:"concurrency,omitempty"`
	BaseDelay              string    `json:"baseDelay,omitempty" yaml:"baseDelay,omitempty"`
	Jitter                 string    `json:"jitter,omitempty" yaml:"jitter,omitempty"`
	RandomSeed             int64     `json:"randomSeed,omitempty" yaml:"randomSeed,omitempty"`
	MaxAttempt             int       `json:"maxAttempt,omitempty" yaml:"maxAttempt,omitempty"`
	BackoffInitialDuration string    `json:"backoffInitialDuration,omitempty" yaml:"backoffInitialDuration,omitempty"`
	BackoffMultiplier      float64   `json:"backoffMultiplier,omitempty" yaml:"backoffMultiplier,omitempty"`
	BackoffMaxDuration     string    `json:"backoffMaxDuration,omitempty" yaml:"backoffMaxDuration,omitempty"`
	Timeout                string    `json:"timeout,omitempty" yaml:"timeout,omitempty"`
	CacheFile              string    `json:"cacheFile,omitempty" yaml:"cacheFile,omitempty"`
	LockTimeout            string    `json:"lockTimeout,omitempty" yaml:"lockTimeout,omitempty"`
	AutosaveInterval       string    `json:"autosaveInterval,omitempty" yaml:"autosaveInterval,omitempty"`
	OutputDir              string    `json:"outputDir,omitempty" yaml:"outputDir,omitempty"`
	CleanOutput            bool      `json:"cleanOutput,omitempty" yaml:"cleanOutput,omitempty"`
	LogLevel               string    `json:"logLevel,omitempty" yaml:"logLevel,omitempty"`
}

func newConfigFromDTO(dto configDTO) (Config, error) {
	cfg := WithDefault()

	urls := []struct {
		raw  string
		dest *url.URL
		name string
	}{
		{dto.APIBaseURL, &cfg.apiBaseURL, "apiBaseUrl"},
		{dto.QuestionsBaseURL, &cfg.questionsBaseURL, "questionsBaseUrl"},
		{dto.QuestionLinkBaseURL, &cfg.questionLinkBaseURL, "questionLinkBaseUrl"},
	}
	for _, u := range urls {
		if u.raw == "" {
			continue
		}
		parsed, err := urlutil.ParseBase(u.raw)
		if err != nil {
			return Config{}, fmt.Errorf("%w: %s: %v", ErrInvalidConfig, u.name, err)
		}
		*u.dest = parsed
	}

	durations := []struct {
		raw  string
		dest *time.Duration
		name string
	}{
		{dto.BaseDelay, &cfg.baseDelay, "baseDelay"},
		{dto.Jitter, &cfg.jitter, "jitter"},
		{dto.BackoffInitialDuration, &cfg.backoffInitialDuration, "backoffInitialDuration"},
		{dto.BackoffMaxDuration, &cfg.backoffMaxDuration, "backoffMaxDuration"},
		{dto.Timeout, &cfg.timeout, "timeout"},
		{dto.LockTimeout, &cfg.lockTimeout, "lockTimeout"},
		{dto.AutosaveInterval, &cfg.autosaveInterval, "autosaveInterval"},
	}
	for _, d := range durations {
		if d.raw == "" {
			continue
		}
		parsed, err := time.ParseDuration(d.raw)
		if err != nil {
			return Config{}, fmt.Errorf("%w: %s: %v", ErrConfigParsingFail, d.name, err)
		}
		*d.dest = parsed
	}

	// For other fields, only override if non-zero value is provided
	if dto.APIToken != "" {
		cfg.apiToken = dto.APIToken
	}
	if dto.UserAgent != "" {
		cfg.userAgent = dto.UserAgent
	}
	if len(dto.Subjects) > 0 {
		cfg.subjects = dto.Subjects
	}
	if dto.Concurrency != 0 {
		cfg.concurrency = dto.Concurrency
	}
	if dto.RandomSeed != 0 {
		cfg.randomSeed = dto.RandomSeed
	}
	if dto.MaxAttempt != 0 {
		cfg.maxAttempt = dto.MaxAttempt
	}
	if dto.BackoffMultiplier != 0 {
		cfg.backoffMultiplier = dto.BackoffMultiplier
	}
	if dto.CacheFile != "" {
		cfg.cacheFile = dto.CacheFile
	}
	if dto.OutputDir != "" {
		cfg.outputDir = dto.OutputDir
	}
	cfg.cleanOutput = dto.CleanOutput
	if dto.LogLevel != "" {
		cfg.logLevel = dto.LogLevel
	}

	return cfg.Build()
}

// WithConfigFile loads a JSON (.json) or YAML (.yaml, .yml) file on top of
// the defaults.
func WithConfigFile(path string) (Config, error) {
	_, err := os.Stat(path)
	if err != nil {
		return Config{}, fmt.Errorf("%w: %s", ErrFileDoesNotExist, err.Error())
	}
	configContent, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("%w: %s", ErrReadConfigFail, err.Error())
	}

	cfgDTO := configDTO{}
	switch ext := strings.ToLower(fileutil.GetFileExtension(path)); ext {
	case "json":
		err = json.Unmarshal(configContent, &cfgDTO)
	case "yaml", "yml":
		err = yaml.Unmarshal(configContent, &cfgDTO)
	default:
		return Config{}, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
	if err != nil {
		return Config{}, fmt.Errorf("%w: %s", ErrConfigParsingFail, err.Error())
	}

	return newConfigFromDTO(cfgDTO)
}

// DefaultCacheFile is the cache location under the XDG cache directory.
func DefaultCacheFile() string {
	return filepath.Join(xdg.CacheHome, appName, "cache.json")
}

// DefaultOutputDir is the match output location under the XDG data directory.
func DefaultOutputDir() string {
	return filepath.Join(xdg.DataHome, appName, "matching_questions")
}

// TokenFromEnv reads the API token from the environment.
func TokenFromEnv() string {
	if token := os.Getenv(TokenEnvVar); token != "" {
		return token
	}
	return os.Getenv(LegacyTokenEnvVar)
}

func mustParseBase(raw string) url.URL {
	u, err := urlutil.ParseBase(raw)
	if err != nil {
		panic(err)
	}
	return u
}

// WithDefault creates a new Config with default values for all fields.
func WithDefault() *Config {
	defaultConfig := Config{
		apiBaseURL:             mustParseBase(DefaultAPIBaseURL),
		questionsBaseURL:       mustParseBase(DefaultQuestionsBaseURL),
		questionLinkBaseURL:    mustParseBase(DefaultQuestionLinkBaseURL),
		apiToken:               TokenFromEnv(),
		userAgent:              build.UserAgent(),
		subjects:               DefaultSubjects(),
		concurrency:            5,
		baseDelay:              0,
		jitter:                 0,
		randomSeed:             time.Now().UnixNano(),
		maxAttempt:             0,
		backoffInitialDuration: time.Second,
		backoffMultiplier:      2.0,
		backoffMaxDuration:     60 * time.Second,
		timeout:                60 * time.Second,
		cacheFile:              DefaultCacheFile(),
		lockTimeout:            10 * time.Second,
		autosaveInterval:       60 * time.Second,
		outputDir:              DefaultOutputDir(),
		cleanOutput:            false,
		logLevel:               "info",
	}
	return &defaultConfig
}

func (c *Config) WithAPIBaseURL(u url.URL) *Config {
	c.apiBaseURL = u
	return c
}

func (c *Config) WithQuestionsBaseURL(u url.URL) *Config {
	c.questionsBaseURL = u
	return c
}

func (c *Config) WithQuestionLinkBaseURL(u url.URL) *Config {
	c.questionLinkBaseURL = u
	return c
}

func (c *Config) WithAPIToken(token string) *Config {
	c.apiToken = token
	return c
}

func (c *Config) WithUserAgent(agent string) *Config {
	c.userAgent = agent
	return c
}

func (c *Config) WithSubjects(subjects []Subject) *Config {
	c.subjects = subjects
	return c
}

func (c *Config) WithConcurrency(concurrency int) *Config {
	c.concurrency = concurrency
	return c
}

func (c *Config) WithBaseDelay(delay time.Duration) *Config {
	c.baseDelay = delay
	return c
}

func (c *Config) WithJitter(jitter time.Duration) *Config {
	c.jitter = jitter
	return c
}

func (c *Config) WithRandomSeed(seed int64) *Config {
	c.randomSeed = seed
	return c
}

func (c *Config) WithMaxAttempt(attempts int) *Config {
	c.maxAttempt = attempts
	return c
}

func (c *Config) WithBackoffInitialDuration(duration time.Duration) *Config {
	c.backoffInitialDuration = duration
	return c
}

func (c *Config) WithBackoffMultiplier(multiplier float64) *Config {
	c.backoffMultiplier = multiplier
	return c
}

func (c *Config) WithBackoffMaxDuration(duration time.Duration) *Config {
	c.backoffMaxDuration = duration
	return c
}

func (c *Config) WithTimeout(timeout time.Duration) *Config {
	c.timeout = timeout
	return c
}

func (c *Config) WithCacheFile(path string) *Config {
	c.cacheFile = path
	return c
}

func (c *Config) WithLockTimeout(timeout time.Duration) *Config {
	c.lockTimeout = timeout
	return c
}

func (c *Config) WithAutosaveInterval(interval time.Duration) *Config {
	c.autosaveInterval = interval
	return c
}

func (c *Config) WithOutputDir(outputDir string) *Config {
	c.outputDir = outputDir
	return c
}

func (c *Config) WithCleanOutput(clean bool) *Config {
	c.cleanOutput = clean
	return c
}

func (c *Config) WithLogLevel(level string) *Config {
	c.logLevel = level
	return c
}

func (c *Config) Build() (Config, error) {
	switch {
	case c.concurrency < 1:
		return Config{}, fmt.Errorf("%w: concurrency must be at least 1, got %d", ErrInvalidConfig, c.concurrency)
	case c.maxAttempt < 0:
		return Config{}, fmt.Errorf("%w: maxAttempt must not be negative", ErrInvalidConfig)
	case c.timeout <= 0:
		return Config{}, fmt.Errorf("%w: timeout must be positive", ErrInvalidConfig)
	case c.lockTimeout <= 0:
		return Config{}, fmt.Errorf("%w: lockTimeout must be positive", ErrInvalidConfig)
	case c.autosaveInterval < 0:
		return Config{}, fmt.Errorf("%w: autosaveInterval must not be negative", ErrInvalidConfig)
	case c.baseDelay < 0 || c.jitter < 0:
		return Config{}, fmt.Errorf("%w: baseDelay and jitter must not be negative", ErrInvalidConfig)
	case c.backoffInitialDuration <= 0:
		return Config{}, fmt.Errorf("%w: backoffInitialDuration must be positive", ErrInvalidConfig)
	case c.backoffMultiplier < 1:
		return Config{}, fmt.Errorf("%w: backoffMultiplier must be at least 1", ErrInvalidConfig)
	case c.backoffMaxDuration < c.backoffInitialDuration:
		return Config{}, fmt.Errorf("%w: backoffMaxDuration must not be below backoffInitialDuration", ErrInvalidConfig)
	case c.cacheFile == "":
		return Config{}, fmt.Errorf("%w: cacheFile cannot be empty", ErrInvalidConfig)
	case c.outputDir == "":
		return Config{}, fmt.Errorf("%w: outputDir cannot be empty", ErrInvalidConfig)
	case c.apiBaseURL.Host == "" || c.questionsBaseURL.Host == "":
		return Config{}, fmt.Errorf("%w: api base urls cannot be empty", ErrInvalidConfig)
	}
	if err := validateSubjects(c.subjects); err != nil {
		return Config{}, err
	}
	return *c, nil
}

func (c Config) APIBaseURL() url.URL {
	return c.apiBaseURL
}

func (c Config) QuestionsBaseURL() url.URL {
	return c.questionsBaseURL
}

func (c Config) QuestionLinkBaseURL() url.URL {
	return c.questionLinkBaseURL
}

func (c Config) APIToken() string {
	return c.apiToken
}

func (c Config) UserAgent() string {
	return c.userAgent
}

func (c Config) Subjects() []Subject {
	subjects := make([]Subject, len(c.subjects))
	copy(subjects, c.subjects)
	return subjects
}

func (c Config) Concurrency() int {
	return c.concurrency
}

func (c Config) BaseDelay() time.Duration {
	return c.baseDelay
}

func (c Config) Jitter() time.Duration {
	return c.jitter
}

func (c Config) RandomSeed() int64 {
	return c.randomSeed
}

func (c Config) MaxAttempt() int {
	return c.maxAttempt
}

func (c Config) BackoffInitialDuration() time.Duration {
	return c.backoffInitialDuration
}

func (c Config) BackoffMultiplier() float64 {
	return c.backoffMultiplier
}

func (c Config) BackoffMaxDuration() time.Duration {
	return c.backoffMaxDuration
}

func (c Config) Timeout() time.Duration {
	return c.timeout
}

func (c Config) CacheFile() string {
	return c.cacheFile
}

func (c Config) LockTimeout() time.Duration {
	return c.lockTimeout
}

func (c Config) AutosaveInterval() time.Duration {
	return c.autosaveInterval
}

func (c Config) OutputDir() string {
	return c.outputDir
}

func (c Config) CleanOutput() bool {
	return c.cleanOutput
}

func (c Config) LogLevel() string {
	return c.logLevel
}
