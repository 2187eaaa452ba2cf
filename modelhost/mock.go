package modelhost

import "context"

// Mock is a deterministic Host used in tests and, as the cloud host, in
// deployments with CLOUD_PROVIDER=mock or no CLOUD_API_KEY, where no real
// cloud calls should happen.
type Mock struct {
	// LocalCaption and CloudCaption are returned verbatim by the
	// corresponding methods. LocalErr/CloudErr, if set, are returned
	// instead, to let tests exercise the executor's fallback chain.
	LocalCaption CaptionOutcome
	CloudCaption CaptionOutcome
	LocalErr     error
	CloudErr     error

	// EmbedDim controls the length of vectors returned by EmbedImage and
	// EmbedText; every element is 0.1 so cosine comparisons are stable.
	EmbedDim int

	Model string
}

// NewMock returns a Mock with reasonable non-empty defaults.
func NewMock() *Mock {
	return &Mock{
		LocalCaption: CaptionOutcome{Caption: "a mock local caption"},
		CloudCaption: CaptionOutcome{Caption: "a mock cloud caption", TokensIn: 258, TokensOut: 12},
		EmbedDim:     8,
		Model:        "mock",
	}
}

func (m *Mock) CaptionLocal(ctx context.Context, imageBytes []byte) (CaptionOutcome, error) {
	if m.LocalErr != nil {
		return CaptionOutcome{}, m.LocalErr
	}
	return m.LocalCaption, nil
}

func (m *Mock) CaptionCloud(ctx context.Context, imageBytes []byte) (CaptionOutcome, error) {
	if m.CloudErr != nil {
		return CaptionOutcome{}, m.CloudErr
	}
	return m.CloudCaption, nil
}

func (m *Mock) EmbedImage(ctx context.Context, imageBytes []byte) ([]float32, error) {
	return m.vector(), nil
}

func (m *Mock) EmbedText(ctx context.Context, text string) ([]float32, error) {
	return m.vector(), nil
}

func (m *Mock) ModelName() string {
	return m.Model
}

func (m *Mock) vector() []float32 {
	dim := m.EmbedDim
	if dim <= 0 {
		dim = 8
	}
	v := make([]float32, dim)
	for i := range v {
		v[i] = 0.1
	}
	return v
}

var (
	_ Host = (*Mock)(nil)
	_ Host = (*Local)(nil)
	_ Host = (*Cloud)(nil)
)
