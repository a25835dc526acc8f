package picker

import (
	"github.com/quakeflow/quakeflow/internal/conf"
	"github.com/quakeflow/quakeflow/internal/errors"
	"github.com/quakeflow/quakeflow/internal/waveform"
)

// Classifier is the single capability a phase-picking model exposes.
type Classifier interface {
	Classify(stream waveform.Stream, pThreshold, sThreshold float64) ([]RawPick, error)
}

// ModelKind enumerates the supported classifier kinds.
type ModelKind string

const (
	ModelEQTransformer  ModelKind = "EQTransformer"
	ModelPhaseNet       ModelKind = "PhaseNet"
	ModelPickBlue       ModelKind = "PickBlue"
	ModelOBSTransformer ModelKind = "OBSTransformer"
)

// modelVariant carries the per-kind load parameters. PickBlue ships its own
// weights and has no pretrained-set name.
type modelVariant struct {
	kind    ModelKind
	weights string
}

var modelVariants = map[ModelKind]modelVariant{
	ModelEQTransformer:  {kind: ModelEQTransformer, weights: "original"},
	ModelPhaseNet:       {kind: ModelPhaseNet, weights: "geofon"},
	ModelPickBlue:       {kind: ModelPickBlue, weights: ""},
	ModelOBSTransformer: {kind: ModelOBSTransformer, weights: "obst2024"},
}

// Model is a loaded classifier together with its identity.
type Model struct {
	Kind       ModelKind
	Weights    string
	classifier Classifier
}

// Classify implements the Classifier interface by delegating to the loaded
// implementation.
func (m *Model) Classify(stream waveform.Stream, pThreshold, sThreshold float64) ([]RawPick, error) {
	return m.classifier.Classify(stream, pThreshold, sThreshold)
}

// LoadModel resolves a model name to a loaded classifier. An unknown name is
// a configuration error: the caller keeps running with detection disabled.
//
// The native network runtimes are external to this repository; every variant
// currently binds the recursive STA/LTA reference picker, parameterized from
// settings. The variant table keeps the per-kind weights names so a native
// backend can be dropped in without touching callers.
func LoadModel(name string, settings *conf.PickerSettings) (*Model, error) {
	variant, ok := modelVariants[ModelKind(name)]
	if !ok {
		return nil, errors.Newf("unsupported model: %s", name).
			Component("picker").
			Category(errors.CategoryModelLoad).
			Context("model", name).
			Build()
	}

	reference, err := NewSTALTA(settings)
	if err != nil {
		return nil, err
	}

	return &Model{
		Kind:       variant.kind,
		Weights:    variant.weights,
		classifier: reference,
	}, nil
}
