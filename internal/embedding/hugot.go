package embedding

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/knights-analytics/hugot"
	"github.com/knights-analytics/hugot/pipelines"
)

// HugotEncoder runs a sentence-transformers model in-process through a hugot Go session.
// The model is loaded once; its weights are read-only and shared by all requests.
type HugotEncoder struct {
	session   *hugot.Session
	pipeline  *pipelines.FeatureExtractionPipeline
	dimension int
	model     string
}

// NewHugotEncoder prepares modelName under modelDir (downloading it on first use)
// and loads it into a feature-extraction pipeline.
func NewHugotEncoder(modelName, modelDir string, dimension int) (*HugotEncoder, error) {
	modelPath, err := prepareModel(modelName, modelDir)
	if err != nil {
		return nil, err
	}

	session, err := hugot.NewGoSession()
	if err != nil {
		return nil, fmt.Errorf("failed to create hugot session: %w", err)
	}

	config := hugot.FeatureExtractionConfig{
		ModelPath: modelPath,
		Name:      "docqa-encoder",
	}
	pipeline, err := hugot.NewPipeline(session, config)
	if err != nil {
		if destroyErr := session.Destroy(); destroyErr != nil {
			return nil, fmt.Errorf("failed to create embedding pipeline: %w (cleanup error: %v)", err, destroyErr)
		}
		return nil, fmt.Errorf("failed to create embedding pipeline: %w", err)
	}

	return &HugotEncoder{
		session:   session,
		pipeline:  pipeline,
		dimension: dimension,
		model:     modelName,
	}, nil
}

// prepareModel downloads the model if it is not already present and returns its path.
func prepareModel(modelName, modelDir string) (string, error) {
	modelPath := filepath.Join(modelDir, strings.ReplaceAll(modelName, "/", "_"))
	if _, err := os.Stat(modelPath); err == nil {
		return modelPath, nil
	} else if !os.IsNotExist(err) {
		return "", fmt.Errorf("failed to stat model directory: %w", err)
	}

	if err := os.MkdirAll(modelDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create model directory: %w", err)
	}
	options := hugot.NewDownloadOptions()
	options.OnnxFilePath = "onnx/model.onnx"
	downloaded, err := hugot.DownloadModel(modelName, modelDir, options)
	if err != nil {
		return "", fmt.Errorf("failed to download model %s: %w", modelName, err)
	}
	return downloaded, nil
}

// Dimension implements Encoder.
func (e *HugotEncoder) Dimension() int { return e.dimension }

// EncodeQuery implements Encoder.
func (e *HugotEncoder) EncodeQuery(ctx context.Context, text string) ([]float32, error) {
	return encodeOne(ctx, e, text)
}

// Encode implements Encoder. Inference is local, so ctx is only checked before the run.
func (e *HugotEncoder) Encode(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("empty input array")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result, err := e.pipeline.RunPipeline(texts)
	if err != nil {
		return nil, fmt.Errorf("failed to generate embeddings: %w", err)
	}
	if len(result.Embeddings) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(result.Embeddings))
	}
	for i, vec := range result.Embeddings {
		if len(vec) != e.dimension {
			return nil, fmt.Errorf("%w: embedding %d from %s has size %d, expected %d", ErrDimensionMismatch, i, e.model, len(vec), e.dimension)
		}
	}
	return result.Embeddings, nil
}

// Close releases the hugot session.
func (e *HugotEncoder) Close() error {
	if e.session == nil {
		return nil
	}
	return e.session.Destroy()
}
