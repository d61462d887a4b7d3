package sync

import "fmt"

// Strategy decides how combined sync treats revision conflicts.
type Strategy string

const (
	StrategyPreferLocal  Strategy = "prefer-local"
	StrategyPreferRemote Strategy = "prefer-remote"
	StrategyManual       Strategy = "manual"
)

// ParseStrategy validates a strategy name. An empty name means manual.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case "":
		return StrategyManual, nil
	case StrategyPreferLocal, StrategyPreferRemote, StrategyManual:
		return Strategy(s), nil
	}
	return "", fmt.Errorf("unknown conflict strategy %q (want prefer-local, prefer-remote or manual)", s)
}

// Defaults are applied to unset fields of items being created.
type Defaults struct {
	AreaPath      string `mapstructure:"area_path"`
	IterationPath string `mapstructure:"iteration_path"`
	State         string `mapstructure:"state"`
	Priority      int    `mapstructure:"priority"`
}

// PushOptions controls Push.
type PushOptions struct {
	DryRun     bool
	Force      bool
	CreateOnly bool
	UpdateOnly bool
	Filter     string // glob over local ids
}

// PullOptions controls Pull.
type PullOptions struct {
	IncludeComments bool
	IncludePRs      bool
	Filter          string
}

// SyncOptions controls the combined pull-then-push run.
type SyncOptions struct {
	DryRun          bool
	Strategy        Strategy
	IncludeComments bool
	IncludePRs      bool
	Filter          string
}
