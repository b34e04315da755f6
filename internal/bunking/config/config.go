package config

import (
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// Weights holds the confidence weight mix for one of the two resolution
// targets (bunk_with / not_bunk_with) in the BUNK_WITH confidence formula.
type Weights struct {
	NameMatch       float64 `mapstructure:"name_match"`
	AIParsing       float64 `mapstructure:"ai_parsing"`
	Context         float64 `mapstructure:"context"`
	ReciprocalBonus float64 `mapstructure:"reciprocal_bonus"`
}

// ContextScores holds the context-signal point values folded into the
// confidence formula's context term.
type ContextScores struct {
	Base               float64 `mapstructure:"base"`
	CurrentYear        float64 `mapstructure:"current_year"`
	PreviousYearOnly    float64 `mapstructure:"previous_year_only"`
	SocialSignalBonus  float64 `mapstructure:"social_signal_bonus"`
}

// TargetConfidence groups the weights and context scores used for one
// target kind (bunk_with or not_bunk_with).
type TargetConfidence struct {
	Weights       Weights       `mapstructure:"weights"`
	ContextScores ContextScores `mapstructure:"context_scores"`
	Social        struct {
		MaxDistanceForBonus int `mapstructure:"max_distance_for_bonus"`
	} `mapstructure:"social"`
}

// ConfidenceScoring is the top-level confidence_scoring config tree.
type ConfidenceScoring struct {
	BunkWith    TargetConfidence `mapstructure:"bunk_with"`
	NotBunkWith TargetConfidence `mapstructure:"not_bunk_with"`
	AIBoost     float64          `mapstructure:"ai_boost"`
}

// StrategyConfidence holds the per-strategy base confidences and session
// adjustment constants shared across the resolution strategy chain.
type StrategyConfidence struct {
	NicknameBase             float64 `mapstructure:"nickname_base"`
	SpellingBase             float64 `mapstructure:"spelling_base"`
	NormalizedBase           float64 `mapstructure:"normalized_base"`
	SoundexBase              float64 `mapstructure:"soundex_base"`
	MetaphoneBase            float64 `mapstructure:"metaphone_base"`
	DefaultBase              float64 `mapstructure:"default_base"`
	ParentSurnameBase        float64 `mapstructure:"parent_surname_base"`
	SessionMatch             float64 `mapstructure:"session_match"`
	SameSessionBoost         float64 `mapstructure:"same_session_boost"`
	DifferentSessionPenalty  float64 `mapstructure:"different_session_penalty"`
	NotEnrolledPenalty       float64 `mapstructure:"not_enrolled_penalty"`
}

// SmartResolution holds the social-graph-assisted auto-resolution knobs
// consumed by the SmartResolver (spec §4.5).
type SmartResolution struct {
	Enabled                        bool    `mapstructure:"enabled"`
	SignificantConnectionThreshold float64 `mapstructure:"significant_connection_threshold"`
	MinConnectionsForAutoResolve   float64 `mapstructure:"min_connections_for_auto_resolve"`
	MinConfidenceForAutoResolve    float64 `mapstructure:"min_confidence_for_auto_resolve"`
	MutualRequestBonus             float64 `mapstructure:"mutual_request_bonus"`
	CommonFriendsWeight            float64 `mapstructure:"common_friends_weight"`
	HistoricalBunkingWeight        float64 `mapstructure:"historical_bunking_weight"`
	ConnectionScoreWeight          float64 `mapstructure:"connection_score_weight"`
}

// NameMatching holds overrides layered on top of the built-in nickname
// groups and spelling-variation tables.
type NameMatching struct {
	CommonNicknames map[string][]string `mapstructure:"common_nicknames"`
}

// ContextBuilding holds knobs for RelationshipContext construction.
type ContextBuilding struct {
	MaxAgeDifferenceMonths int `mapstructure:"max_age_difference_months"`
}

// Config is the fully-resolved, immutable configuration tree for the
// resolution core. Every field has a documented fallback applied by
// applyDefaults so a caller may supply a partial (or nil) config file.
type Config struct {
	ConfidenceScoring ConfidenceScoring   `mapstructure:"confidence_scoring"`
	Strategy          StrategyConfidence  `mapstructure:"strategy"`
	SmartResolution   SmartResolution     `mapstructure:"smart_resolution"`
	NameMatching      NameMatching        `mapstructure:"name_matching"`
	ContextBuilding   ContextBuilding     `mapstructure:"context_building"`
}

// Load reads configuration from the given YAML file path (if non-empty)
// and environment variables prefixed BUNKING_, merging over the built-in
// defaults. An empty path yields the all-defaults configuration, which is
// a valid and complete configuration on its own.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("bunking")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	applyDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "read config file %s", path)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "unmarshal configuration")
	}

	return &cfg, nil
}

// applyDefaults seeds viper with every fallback value named in the
// specification so that Unmarshal always produces a usable Config even
// when the caller supplies no file at all.
func applyDefaults(v *viper.Viper) {
	v.SetDefault("confidence_scoring.bunk_with.weights.name_match", 0.70)
	v.SetDefault("confidence_scoring.bunk_with.weights.ai_parsing", 0.15)
	v.SetDefault("confidence_scoring.bunk_with.weights.context", 0.10)
	v.SetDefault("confidence_scoring.bunk_with.weights.reciprocal_bonus", 0.05)
	v.SetDefault("confidence_scoring.bunk_with.context_scores.base", 0.5)
	v.SetDefault("confidence_scoring.bunk_with.context_scores.current_year", 0.8)
	v.SetDefault("confidence_scoring.bunk_with.context_scores.previous_year_only", 0.4)
	v.SetDefault("confidence_scoring.bunk_with.context_scores.social_signal_bonus", 0.1)
	v.SetDefault("confidence_scoring.bunk_with.social.max_distance_for_bonus", 2)

	v.SetDefault("confidence_scoring.not_bunk_with.weights.name_match", 0.75)
	v.SetDefault("confidence_scoring.not_bunk_with.weights.ai_parsing", 0.20)
	v.SetDefault("confidence_scoring.not_bunk_with.weights.context", 0.05)
	v.SetDefault("confidence_scoring.not_bunk_with.weights.reciprocal_bonus", 0.0)
	v.SetDefault("confidence_scoring.not_bunk_with.context_scores.base", 0.5)
	v.SetDefault("confidence_scoring.not_bunk_with.context_scores.current_year", 0.7)
	v.SetDefault("confidence_scoring.not_bunk_with.context_scores.previous_year_only", 0.3)
	v.SetDefault("confidence_scoring.not_bunk_with.context_scores.social_signal_bonus", 0.1)
	v.SetDefault("confidence_scoring.not_bunk_with.social.max_distance_for_bonus", 2)

	v.SetDefault("confidence_scoring.ai_boost", 0.15)

	v.SetDefault("strategy.nickname_base", 0.85)
	v.SetDefault("strategy.spelling_base", 0.85)
	v.SetDefault("strategy.normalized_base", 0.80)
	v.SetDefault("strategy.soundex_base", 0.70)
	v.SetDefault("strategy.metaphone_base", 0.65)
	v.SetDefault("strategy.default_base", 0.75)
	v.SetDefault("strategy.parent_surname_base", 0.70)
	v.SetDefault("strategy.session_match", 0.75)
	v.SetDefault("strategy.same_session_boost", 0.05)
	v.SetDefault("strategy.different_session_penalty", -0.10)
	v.SetDefault("strategy.not_enrolled_penalty", -0.10)

	v.SetDefault("smart_resolution.enabled", true)
	v.SetDefault("smart_resolution.significant_connection_threshold", 5.0)
	v.SetDefault("smart_resolution.min_connections_for_auto_resolve", 3)
	v.SetDefault("smart_resolution.min_confidence_for_auto_resolve", 0.85)
	v.SetDefault("smart_resolution.mutual_request_bonus", 10.0)
	v.SetDefault("smart_resolution.common_friends_weight", 1.0)
	v.SetDefault("smart_resolution.historical_bunking_weight", 0.8)
	v.SetDefault("smart_resolution.connection_score_weight", 0.7)

	v.SetDefault("context_building.max_age_difference_months", 18)
}
