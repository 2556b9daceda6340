// Package profile defines named parameter bundles that steer the query
// pipeline end to end.
package profile

import (
	"sort"

	vmcperrors "github.com/vaultmcp/vaultmcp/internal/errors"
)

// Dedup modes.
const (
	DedupBest = "best"
	DedupAll  = "all"
)

// TimeDecay configures recency boosting: boost = MaxBoost * 0.5^(age/HalfLife).
type TimeDecay struct {
	HalfLifeDays float64 `yaml:"half_life_days" json:"half_life_days"`
	MaxBoost     float64 `yaml:"max_boost" json:"max_boost"`
}

// Profile is an immutable bundle of query-pipeline parameters. Callers
// receive copies; nothing mutates a registered profile.
type Profile struct {
	Name string `yaml:"-" json:"name"`

	// Retrieval blend. A zero weight disables that retrieval arm.
	SemanticWeight float64 `yaml:"semantic_weight" json:"semantic_weight"`
	LexicalWeight  float64 `yaml:"lexical_weight" json:"lexical_weight"`

	// LexicalMultiplier is the tag-boost multiplier applied by the lexical
	// index when query tokens match front-matter tags.
	LexicalMultiplier float64 `yaml:"lexical_multiplier" json:"lexical_multiplier"`

	// TagBoostFloor and TagBoostSlope calibrate the fusion-stage tag
	// amplification: boosted rrf = max_rrf * (floor + slope * bm25_ratio).
	TagBoostFloor float64 `yaml:"tag_boost_floor" json:"tag_boost_floor"`
	TagBoostSlope float64 `yaml:"tag_boost_slope" json:"tag_boost_slope"`

	// TimeDecay, when set, multiplies scores by 1 + decay boost.
	TimeDecay *TimeDecay `yaml:"time_decay,omitempty" json:"time_decay,omitempty"`

	// MaxAgeDays discards candidates older than this before decay.
	// Zero means no cutoff.
	MaxAgeDays int `yaml:"max_age_days" json:"max_age_days"`

	// CrossEncoderEnabled turns on the reranker stage.
	CrossEncoderEnabled bool `yaml:"cross_encoder_enabled" json:"cross_encoder_enabled"`

	// QueryExpansionEnabled reserves the expansion stage toggle.
	QueryExpansionEnabled bool `yaml:"query_expansion_enabled" json:"query_expansion_enabled"`

	// IncludeTypes/ExcludeTypes filter on frontmatter.type.
	IncludeTypes []string `yaml:"include_types,omitempty" json:"include_types,omitempty"`
	ExcludeTypes []string `yaml:"exclude_types,omitempty" json:"exclude_types,omitempty"`

	// Chunking parameters used when this profile drives an index build.
	ChunkingEnabled bool `yaml:"chunking_enabled" json:"chunking_enabled"`
	ChunkSize       int  `yaml:"chunk_size" json:"chunk_size"`
	ChunkOverlap    int  `yaml:"chunk_overlap" json:"chunk_overlap"`

	// ShowChunkContext includes neighboring chunk text in results.
	ShowChunkContext bool `yaml:"show_chunk_context" json:"show_chunk_context"`

	// DedupMode is "best" (one chunk per file) or "all" (up to
	// MaxResultsPerFile chunks).
	DedupMode         string `yaml:"dedup_mode" json:"dedup_mode"`
	MaxResultsPerFile int    `yaml:"max_results_per_file" json:"max_results_per_file"`
}

// withDefaults fills zero values so custom profiles only need to override
// what they care about.
func (p Profile) withDefaults() Profile {
	if p.SemanticWeight == 0 && p.LexicalWeight == 0 {
		p.SemanticWeight = 0.7
		p.LexicalWeight = 0.3
	}
	if p.LexicalMultiplier == 0 {
		p.LexicalMultiplier = 5.0
	}
	if p.TagBoostFloor == 0 {
		p.TagBoostFloor = 1.5
	}
	if p.TagBoostSlope == 0 {
		p.TagBoostSlope = 0.5
	}
	if p.ChunkSize == 0 {
		p.ChunkSize = 2000
	}
	if p.ChunkOverlap == 0 {
		p.ChunkOverlap = 200
	}
	if p.DedupMode == "" {
		p.DedupMode = DedupBest
	}
	if p.MaxResultsPerFile == 0 {
		p.MaxResultsPerFile = 3
	}
	return p
}

// builtins returns the required built-in profiles.
func builtins() map[string]Profile {
	base := Profile{
		Name:            "default",
		SemanticWeight:  0.7,
		LexicalWeight:   0.3,
		ChunkingEnabled: true,
	}.withDefaults()

	repos := base
	repos.Name = "repos"
	repos.IncludeTypes = []string{"repo", "project"}

	recent := base
	recent.Name = "recent"
	recent.TimeDecay = &TimeDecay{HalfLifeDays: 30, MaxBoost: 1.0}
	recent.MaxAgeDays = 90

	deep := base
	deep.Name = "deep"
	deep.SemanticWeight = 0.8
	deep.LexicalWeight = 0.2
	deep.CrossEncoderEnabled = true
	deep.ShowChunkContext = true
	deep.DedupMode = DedupAll

	keywords := base
	keywords.Name = "keywords"
	keywords.SemanticWeight = 0.3
	keywords.LexicalWeight = 0.7

	return map[string]Profile{
		"default":  base,
		"repos":    repos,
		"recent":   recent,
		"deep":     deep,
		"keywords": keywords,
	}
}

// Registry holds the built-in profiles plus any custom ones loaded from
// configuration. Read-only after construction.
type Registry struct {
	profiles map[string]Profile
}

// NewRegistry creates a registry with the built-in profiles.
func NewRegistry() *Registry {
	return &Registry{profiles: builtins()}
}

// LoadCustom registers custom profiles. Names colliding with built-ins are
// rejected so configuration cannot silently change default behavior.
func (r *Registry) LoadCustom(custom map[string]Profile) error {
	built := builtins()
	for name, p := range custom {
		if _, exists := built[name]; exists {
			return vmcperrors.ConfigError(
				"custom profile name collides with built-in: "+name, nil)
		}
		p.Name = name
		r.profiles[name] = p.withDefaults()
	}
	return nil
}

// Get returns the profile by name, or the default profile for an empty name.
func (r *Registry) Get(name string) (Profile, error) {
	if name == "" {
		name = "default"
	}
	p, ok := r.profiles[name]
	if !ok {
		return Profile{}, vmcperrors.ConfigError("unknown profile: "+name, nil).
			WithDetail("available", r.nameList())
	}
	return p, nil
}

// Names returns the registered profile names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.profiles))
	for name := range r.profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *Registry) nameList() string {
	names := r.Names()
	out := ""
	for i, n := range names {
		if i > 0 {
			out += ", "
		}
		out += n
	}
	return out
}
