package cache

// Keyer derives cache keys. Implementations must be deterministic.
type Keyer interface {
	// ResultKey identifies a final stylized image.
	ResultKey(inputs InputHashes, opts ResultKeyOpts) string
}

// InputHashes are content hashes of the tensors entering the pipeline.
// Saliency is empty when no saliency map takes part.
type InputHashes struct {
	Content  string `json:"content"`
	Style    string `json:"style"`
	Saliency string `json:"saliency,omitempty"`
}

// ResultKeyOpts lists every option that changes the stylized output.
type ResultKeyOpts struct {
	Model           string   `json:"model"`
	Method          string   `json:"method"`
	Targets         []string `json:"targets"`
	Gamma           float64  `json:"gamma"`
	Delta           float64  `json:"delta"`
	Mode            string   `json:"mode"`
	ReverseSchedule bool     `json:"reverse_schedule,omitempty"`
}

// DefaultKeyer hashes inputs and options into "result:<sha256>" keys.
type DefaultKeyer struct{}

// NewDefaultKeyer returns the default keyer.
func NewDefaultKeyer() Keyer {
	return DefaultKeyer{}
}

// ResultKey implements Keyer.
func (DefaultKeyer) ResultKey(inputs InputHashes, opts ResultKeyOpts) string {
	return hashKey("result", inputs, opts)
}
