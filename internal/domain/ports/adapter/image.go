package adapter

import "context"

// ModelOutput is the polymorphic result of a model run. Exactly one field is
// set, mirroring the three JSON shapes hosted models return: a bare string, a
// list, or a keyed object.
type ModelOutput struct {
	Text   string
	List   []any
	Object map[string]any
}

func (o ModelOutput) IsText() bool   { return o.Text != "" }
func (o ModelOutput) IsList() bool   { return o.List != nil }
func (o ModelOutput) IsObject() bool { return o.Object != nil }

// ImageModelAdapter is the hex port for the hosted image model service.
type ImageModelAdapter interface {
	Name() string

	// Run executes the given model with the given input parameters and
	// returns its raw output. Model-reported failures surface as errors whose
	// message preserves the model's own wording, so callers can match known
	// failure signatures.
	Run(ctx context.Context, modelID string, input map[string]any) (ModelOutput, error)

	// Download fetches the bytes behind a model-produced asset URL.
	Download(ctx context.Context, url string) ([]byte, error)
}
