// Package artifacts loads the offline-trained vectorizer and model from disk.
// Artifacts are stored as JSON or MessagePack, chosen by file extension.
package artifacts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/vmihailenco/msgpack/v5"
	"golang.org/x/sync/errgroup"

	"github.com/spacesedan/reviewscope/internal/classifier"
	"github.com/spacesedan/reviewscope/internal/vectorizer"
)

var ErrUnsupportedFormat = errors.New("unsupported artifact format")

const (
	FORMAT_JSON    = "json"
	FORMAT_MSGPACK = "msgpack"
)

// Format reports the encoding implied by the extension of path.
func Format(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FORMAT_JSON, nil
	case ".msgpack", ".mpk", ".mp":
		return FORMAT_MSGPACK, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
}

func Decode(path string, v any) error {
	format, err := Format(path)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read artifact %s: %w", path, err)
	}

	switch format {
	case FORMAT_MSGPACK:
		err = msgpack.Unmarshal(data, v)
	default:
		err = json.Unmarshal(data, v)
	}
	if err != nil {
		return fmt.Errorf("failed to decode artifact %s: %w", path, err)
	}
	return nil
}

func Encode(path string, v any) error {
	format, err := Format(path)
	if err != nil {
		return err
	}

	var data []byte
	switch format {
	case FORMAT_MSGPACK:
		data, err = msgpack.Marshal(v)
	default:
		data, err = json.Marshal(v)
	}
	if err != nil {
		return fmt.Errorf("failed to encode artifact %s: %w", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write artifact %s: %w", path, err)
	}
	return nil
}

func LoadVectorizer(path string) (*vectorizer.Vectorizer, error) {
	var spec vectorizer.Spec
	if err := Decode(path, &spec); err != nil {
		return nil, err
	}
	v, err := vectorizer.New(spec)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return v, nil
}

func LoadModel(path string) (classifier.Predictor, error) {
	var spec classifier.Spec
	if err := Decode(path, &spec); err != nil {
		return nil, err
	}
	m, err := classifier.New(spec)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// Bundle is the pair of artifacts the detector needs.
type Bundle struct {
	Vectorizer *vectorizer.Vectorizer
	Model      classifier.Predictor
}

// LoadAll reads both artifacts concurrently and checks that the model was
// fitted on the vectorizer's feature space.
func LoadAll(ctx context.Context, vectorizerPath, modelPath string) (*Bundle, error) {
	start := time.Now()
	var b Bundle

	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error {
		v, err := LoadVectorizer(vectorizerPath)
		b.Vectorizer = v
		return err
	})
	g.Go(func() error {
		m, err := LoadModel(modelPath)
		b.Model = m
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if b.Model.Features() != b.Vectorizer.Features() {
		return nil, fmt.Errorf("%w: model expects %d features, vectorizer produces %d",
			classifier.ErrDimension, b.Model.Features(), b.Vectorizer.Features())
	}

	slog.Info("[Artifacts] Loaded model artifacts",
		slog.String("vectorizer", vectorizerPath),
		slog.String("vectorizer_kind", b.Vectorizer.Kind()),
		slog.String("model", modelPath),
		slog.String("model_kind", b.Model.Kind()),
		slog.Int("features", b.Vectorizer.Features()),
		slog.Duration("elapsed", time.Since(start)))
	return &b, nil
}
