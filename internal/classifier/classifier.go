// Package classifier scores vectorized reviews with a binary model fitted
// offline. Linear models (logistic regression, linear SVM, SGD) and
// multinomial naive Bayes are supported.
package classifier

import (
	"errors"
	"fmt"
	"strings"

	"gonum.org/v1/gonum/floats"

	"github.com/spacesedan/reviewscope/internal/vectorizer"
)

const (
	KIND_LINEAR         = "linear"
	KIND_MULTINOMIAL_NB = "multinomial_nb"
)

var (
	ErrInvalid   = errors.New("invalid model artifact")
	ErrDimension = errors.New("feature dimension mismatch")
)

// Spec is the serialized form of a fitted model.
type Spec struct {
	Kind           string      `json:"kind" msgpack:"kind"`
	Classes        []int       `json:"classes" msgpack:"classes"`
	Coef           []float64   `json:"coef,omitempty" msgpack:"coef,omitempty"`
	Intercept      float64     `json:"intercept,omitempty" msgpack:"intercept,omitempty"`
	ClassLogPrior  []float64   `json:"class_log_prior,omitempty" msgpack:"class_log_prior,omitempty"`
	FeatureLogProb [][]float64 `json:"feature_log_prob,omitempty" msgpack:"feature_log_prob,omitempty"`
}

// Predictor maps feature rows to class labels. Implementations are
// immutable and safe for concurrent use.
type Predictor interface {
	Predict(rows []vectorizer.SparseVector) ([]int, error)
	Features() int
	Classes() []int
	Kind() string
}

// New builds the predictor described by spec.
func New(spec Spec) (Predictor, error) {
	if len(spec.Classes) != 2 {
		return nil, fmt.Errorf("%w: expected 2 classes, got %d", ErrInvalid, len(spec.Classes))
	}

	switch strings.ToLower(strings.TrimSpace(spec.Kind)) {
	case KIND_LINEAR, "logistic_regression", "linear_svc", "sgd":
		if len(spec.Coef) == 0 {
			return nil, fmt.Errorf("%w: linear model without coefficients", ErrInvalid)
		}
		return &Linear{classes: spec.Classes, coef: spec.Coef, intercept: spec.Intercept}, nil
	case KIND_MULTINOMIAL_NB:
		nb, err := newMultinomialNB(spec)
		if err != nil {
			return nil, err
		}
		return nb, nil
	default:
		return nil, fmt.Errorf("%w: unknown kind %q", ErrInvalid, spec.Kind)
	}
}

// Linear predicts classes[1] when w·x + b > 0 and classes[0] otherwise.
type Linear struct {
	classes   []int
	coef      []float64
	intercept float64
}

func (l *Linear) Kind() string { return KIND_LINEAR }
func (l *Linear) Features() int { return len(l.coef) }
func (l *Linear) Classes() []int { return l.classes }

// DecisionFunction returns the signed distance of row to the hyperplane.
func (l *Linear) DecisionFunction(row vectorizer.SparseVector) (float64, error) {
	if err := checkRow(row, len(l.coef)); err != nil {
		return 0, err
	}
	return dot(l.coef, row) + l.intercept, nil
}

func (l *Linear) Predict(rows []vectorizer.SparseVector) ([]int, error) {
	out := make([]int, len(rows))
	for i, row := range rows {
		score, err := l.DecisionFunction(row)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		if score > 0 {
			out[i] = l.classes[1]
		} else {
			out[i] = l.classes[0]
		}
	}
	return out, nil
}

// MultinomialNB picks the class with the highest joint log likelihood.
// Ties resolve to the first class.
type MultinomialNB struct {
	classes        []int
	classLogPrior  []float64
	featureLogProb [][]float64
}

func newMultinomialNB(spec Spec) (*MultinomialNB, error) {
	if len(spec.ClassLogPrior) != 2 || len(spec.FeatureLogProb) != 2 {
		return nil, fmt.Errorf("%w: naive Bayes needs priors and feature log probabilities for 2 classes", ErrInvalid)
	}
	if len(spec.FeatureLogProb[0]) == 0 || len(spec.FeatureLogProb[0]) != len(spec.FeatureLogProb[1]) {
		return nil, fmt.Errorf("%w: feature log probability rows differ in length", ErrInvalid)
	}
	return &MultinomialNB{
		classes:        spec.Classes,
		classLogPrior:  spec.ClassLogPrior,
		featureLogProb: spec.FeatureLogProb,
	}, nil
}

func (m *MultinomialNB) Kind() string { return KIND_MULTINOMIAL_NB }
func (m *MultinomialNB) Features() int { return len(m.featureLogProb[0]) }
func (m *MultinomialNB) Classes() []int { return m.classes }

// JointLogLikelihood returns one score per class for row.
func (m *MultinomialNB) JointLogLikelihood(row vectorizer.SparseVector) ([]float64, error) {
	if err := checkRow(row, m.Features()); err != nil {
		return nil, err
	}
	jll := make([]float64, len(m.classes))
	for c := range jll {
		jll[c] = m.classLogPrior[c] + dot(m.featureLogProb[c], row)
	}
	return jll, nil
}

func (m *MultinomialNB) Predict(rows []vectorizer.SparseVector) ([]int, error) {
	out := make([]int, len(rows))
	for i, row := range rows {
		jll, err := m.JointLogLikelihood(row)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		// floats.MaxIdx returns the first index on ties
		out[i] = m.classes[floats.MaxIdx(jll)]
	}
	return out, nil
}

func checkRow(row vectorizer.SparseVector, features int) error {
	if len(row.Indices) != len(row.Values) {
		return fmt.Errorf("%w: %d indices for %d values", ErrDimension, len(row.Indices), len(row.Values))
	}
	for _, idx := range row.Indices {
		if idx < 0 || idx >= features {
			return fmt.Errorf("%w: column %d outside %d features", ErrDimension, idx, features)
		}
	}
	return nil
}

// dot multiplies a sparse row with a dense weight vector. Rows must pass
// checkRow first; out of range columns contribute nothing.
func dot(weights []float64, row vectorizer.SparseVector) float64 {
	if len(row.Indices) == 0 || len(row.Indices) != len(row.Values) {
		return 0
	}
	gathered := make([]float64, len(row.Indices))
	for i, idx := range row.Indices {
		if idx >= 0 && idx < len(weights) {
			gathered[i] = weights[idx]
		}
	}
	return floats.Dot(gathered, row.Values)
}
