package config

import (
	"os"
	"strconv"
	"strings"
)

// Defaults for the pipeline tunables. The sentiment cutoffs follow the
// standard VADER convention; the similarity threshold is deliberately high
// so fuzzy merges only fire on near-identical names.
const (
	DEFAULT_POSITIVE_THRESHOLD   = 0.05
	DEFAULT_NEGATIVE_THRESHOLD   = -0.05
	DEFAULT_SIMILARITY_THRESHOLD = 0.85
	DEFAULT_SNAPSHOT_LIMIT       = 250
	DEFAULT_TOP_ENTITY_LIMIT     = 10

	BACKEND_MEMORY = "memory"
	BACKEND_NEO4J  = "neo4j"
)

// Settings holds every tunable the pipeline reads. Built once at startup
// from the environment; zero magic numbers elsewhere.
type Settings struct {
	PositiveThreshold   float64
	NegativeThreshold   float64
	SimilarityThreshold float64
	SnapshotLimit       int
	TopEntityLimit      int
	GraphBackend        string // memory | neo4j
}

func FromEnv() Settings {
	return Settings{
		PositiveThreshold:   envFloat("SENTIMENT_POSITIVE_THRESHOLD", DEFAULT_POSITIVE_THRESHOLD),
		NegativeThreshold:   envFloat("SENTIMENT_NEGATIVE_THRESHOLD", DEFAULT_NEGATIVE_THRESHOLD),
		SimilarityThreshold: envFloat("ENTITY_SIMILARITY_THRESHOLD", DEFAULT_SIMILARITY_THRESHOLD),
		SnapshotLimit:       envInt("GRAPH_SNAPSHOT_LIMIT", DEFAULT_SNAPSHOT_LIMIT),
		TopEntityLimit:      envInt("GRAPH_TOP_ENTITY_LIMIT", DEFAULT_TOP_ENTITY_LIMIT),
		GraphBackend:        envString("GRAPH_BACKEND", BACKEND_MEMORY),
	}
}

func envString(name, def string) string {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return def
	}
	return v
}

func envInt(name string, def int) int {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

func envFloat(name string, def float64) float64 {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}
