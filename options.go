package skill

import (
	"runtime"

	"github.com/skill-lang/skillrt/internal/stream"
)

// config collects every constructor-time setting. Following the teacher's
// options.go idiom, Option wraps a private apply func rather than being an
// interface, avoiding an interface indirection on every call to Open.
type config struct {
	parallelism int
	checkRestrictions bool
	opener      stream.Opener
}

func defaultConfig() *config {
	return &config{
		parallelism:       runtime.GOMAXPROCS(0),
		checkRestrictions: true,
		opener:            stream.OpenFile,
	}
}

// Option configures SkillState construction (SPEC_FULL.md §A.2).
type Option struct{ apply func(*config) }

// WithParallelism bounds the number of concurrent field-chunk jobs used for
// both parsing (spec §4.4 finish) and serialization (spec §4.6
// writeFieldData). n <= 0 means "one worker per job", i.e. unbounded.
func WithParallelism(n int) Option {
	return Option{func(c *config) { c.parallelism = n }}
}

// WithRestrictionChecks toggles whether field restrictions (spec §4.4) are
// evaluated after parse. Default true.
func WithRestrictionChecks(enabled bool) Option {
	return Option{func(c *config) { c.checkRestrictions = enabled }}
}

// WithFileStream overrides how SkillState opens the backing file, e.g. to
// substitute an in-memory stream.MemStream in tests.
func WithFileStream(opener stream.Opener) Option {
	return Option{func(c *config) { c.opener = opener }}
}

func applyOptions(opts []Option) *config {
	c := defaultConfig()
	for _, o := range opts {
		o.apply(c)
	}
	return c
}
