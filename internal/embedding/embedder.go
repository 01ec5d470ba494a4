package embedding

// Embedder converts free text into a fixed-width numeric vector.
// Implementations build corpus statistics once and are then queried per text.
type Embedder interface {
	Name() string
	// BuildVocabulary replaces any previous corpus statistics.
	BuildVocabulary(corpus []string)
	// Fit returns a new embedder of the same kind and dimension with statistics
	// built over corpus. The receiver is not modified.
	Fit(corpus []string) Embedder
	Dimension() int
	// Embed never fails; text with no known tokens yields a zero vector.
	Embed(text string) []float64
	EmbedBatch(texts []string) [][]float64
}
