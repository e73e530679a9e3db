package extraction

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/knights-analytics/hugot"
	"github.com/knights-analytics/hugot/pipelines"

	"github.com/spacesedan/sentigraph/internal/models"
)

const (
	modelDir     = "./internal/transformers/models"
	nerModelName = "dslim/bert-base-NER"
)

// modelExtractor runs a transformer token-classification pipeline. Its
// construction is the capability probe: when the ONNX runtime or the model
// is missing the constructor fails and the caller switches to the pattern
// extractor for the rest of the run.
type modelExtractor struct {
	session  *hugot.Session
	pipeline nerPipeline
}

type nerPipeline interface {
	RunPipeline(inputs []string) (*pipelines.TokenClassificationOutput, error)
}

func newModelExtractor() (*modelExtractor, error) {
	dir := modelDir
	if v := strings.TrimSpace(os.Getenv("NER_MODEL_DIR")); v != "" {
		dir = v
	}
	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		return nil, fmt.Errorf("failed to create model directory: %w", err)
	}

	modelPath, err := resolveModel(dir)
	if err != nil {
		return nil, err
	}

	session, err := hugot.NewORTSession()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize hugot session: %w", err)
	}

	config := hugot.TokenClassificationConfig{
		ModelPath: modelPath,
		Name:      "nerPipeline",
	}
	pipeline, err := hugot.NewPipeline(session, config)
	if err != nil {
		session.Destroy()
		return nil, fmt.Errorf("failed to initialize NER pipeline: %w", err)
	}

	return &modelExtractor{session: session, pipeline: pipeline}, nil
}

func resolveModel(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err == nil && len(entries) > 0 {
		slog.Info("[ModelExtractor] Using existing model", slog.String("dir", dir))
		return dir, nil
	}

	slog.Info("[ModelExtractor] Model not found, downloading...",
		slog.String("model", nerModelName))
	modelPath, err := hugot.DownloadModel(nerModelName, dir, hugot.NewDownloadOptions())
	if err != nil {
		return "", fmt.Errorf("failed to download NER model: %w", err)
	}
	slog.Info("[ModelExtractor] Model downloaded successfully", slog.String("path", modelPath))
	return modelPath, nil
}

func (m *modelExtractor) Source() string { return "model" }

func (m *modelExtractor) Extract(text string) []models.CandidateEntity {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	output, err := m.pipeline.RunPipeline([]string{text})
	if err != nil {
		slog.Error("[ModelExtractor] Pipeline run failed",
			slog.String("error", err.Error()))
		return nil
	}
	if len(output.Entities) == 0 {
		return nil
	}

	candidates := make([]models.CandidateEntity, 0, len(output.Entities[0]))
	for _, ent := range output.Entities[0] {
		word := strings.TrimSpace(ent.Word)
		if word == "" {
			continue
		}
		candidates = append(candidates, models.CandidateEntity{
			Text:       word,
			Type:       mapModelLabel(ent.Entity),
			Start:      int(ent.Start),
			End:        int(ent.End),
			Source:     m.Source(),
			Confidence: float64(ent.Score),
		})
	}

	return mergeDuplicates(candidates)
}

// mapModelLabel converts BIO-style model labels to entity types.
func mapModelLabel(label string) models.EntityType {
	label = strings.ToUpper(strings.TrimSpace(label))
	label = strings.TrimPrefix(label, "B-")
	label = strings.TrimPrefix(label, "I-")

	switch label {
	case "PER", "PERSON":
		return models.EntityPerson
	case "ORG", "ORGANIZATION":
		return models.EntityOrganization
	case "LOC", "GPE", "LOCATION":
		return models.EntityLocation
	default:
		return models.EntityMisc
	}
}
