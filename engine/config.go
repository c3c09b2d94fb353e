package engine

import (
	"errors"
	"fmt"
	"io"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
	"gopkg.in/yaml.v3"
)

const (
	minChunkSize = 512
	maxChunkSize = 4 << 20 // 4MB
)

// Config is the file-friendly form of the engine options.
type Config struct {
	Timeout             time.Duration   `yaml:"timeout" validate:"gte=0s"`
	UserAgent           string          `yaml:"user_agent" validate:"omitempty,printascii"`
	NoFollowRedirects   bool            `yaml:"no_follow_redirects"`
	MaxIdleConnsPerHost int             `yaml:"max_idle_conns_per_host" validate:"gte=0"`
	ChunkSize           int             `yaml:"chunk_size" validate:"omitempty,min=512,max=4194304"`
	Throttle            *ThrottleConfig `yaml:"throttle"`
}

// ThrottleConfig enables token bucket rate limiting.
type ThrottleConfig struct {
	RPS     int  `yaml:"rps" validate:"required,gt=0"`
	Burst   int  `yaml:"burst" validate:"required,gt=0"`
	PerHost bool `yaml:"per_host"`
}

// LoadConfig decodes a YAML document into a validated Config. Unknown keys
// are rejected; an empty document yields the zero Config.
func LoadConfig(r io.Reader) (Config, error) {
	var cfg Config

	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("decoding config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Validate checks cfg against its declared tags.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		verrors, ok := err.(validator.ValidationErrors)
		if !ok {
			return err
		}

		fields := make(FieldErrors, 0, len(verrors))
		for _, verror := range verrors {
			fields = append(fields, FieldError{
				Field: verror.Namespace(),
				Err:   verror.Translate(translator),
			})
		}
		return fields
	}

	return nil
}

// FieldError is a single invalid config field.
type FieldError struct {
	Field string
	Err   string
}

// FieldErrors collects every invalid config field.
type FieldErrors []FieldError

func (fe FieldErrors) Error() string {
	parts := make([]string, len(fe))
	for i, f := range fe {
		parts[i] = f.Field + ": " + f.Err
	}
	return strings.Join(parts, "; ")
}

var (
	validate   *validator.Validate
	translator ut.Translator
)

func init() {
	validate = validator.New()

	var ok bool
	translator, ok = ut.New(en.New(), en.New()).GetTranslator("en")
	if !ok {
		panic("engine: failed to get 'en' translator")
	}

	if err := en_translations.RegisterDefaultTranslations(validate, translator); err != nil {
		panic(err)
	}

	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
}
