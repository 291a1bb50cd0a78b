package knowledge

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"math"
	"strings"
	"unicode"

	"github.com/openai/openai-go"
	"golang.org/x/sync/errgroup"

	openaimodel "github.com/hupe1980/assistants/model/openai"
)

// DefaultHashingDimensions is the vector size of the HashingEmbedder.
const DefaultHashingDimensions = 512

// HashingEmbedder maps texts to bag-of-words vectors with the hashing trick.
// It needs no network access and is deterministic, which makes it the
// default for local use and tests. It matches shared words, not meaning.
type HashingEmbedder struct {
	Dimensions int
}

// NewHashingEmbedder returns an embedder with DefaultHashingDimensions.
func NewHashingEmbedder() *HashingEmbedder {
	return &HashingEmbedder{Dimensions: DefaultHashingDimensions}
}

// Embed implements Embedder.
func (e *HashingEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	dim := e.Dimensions
	if dim <= 0 {
		dim = DefaultHashingDimensions
	}

	out := make([][]float32, len(texts))

	for i, text := range texts {
		vec := make([]float32, dim)

		for _, tok := range Tokenize(text) {
			h := fnv.New32a()
			_, _ = h.Write([]byte(tok))
			sum := h.Sum32()

			sign := float32(1)
			if sum&(1<<31) != 0 {
				sign = -1
			}

			vec[int(sum%uint32(dim))] += sign
		}

		normalize(vec)
		out[i] = vec
	}

	return out, nil
}

var stopWords = map[string]bool{
	"a": true, "an": true, "and": true, "are": true, "as": true, "at": true, "be": true, "by": true,
	"can": true, "do": true, "does": true, "for": true, "from": true, "how": true, "i": true, "in": true,
	"is": true, "it": true, "me": true, "my": true, "of": true, "on": true, "or": true, "the": true,
	"to": true, "what": true, "when": true, "where": true, "with": true, "you": true, "your": true,
}

// Words lowercases text, splits it into words and drops stop words.
func Words(text string) []string {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	kept := words[:0]

	for _, w := range words {
		if !stopWords[w] {
			kept = append(kept, w)
		}
	}

	return kept
}

// Tokenize returns the Words of text with common English suffixes stripped.
func Tokenize(text string) []string {
	tokens := Words(text)
	for i, w := range tokens {
		tokens[i] = stem(w)
	}

	return tokens
}

func stem(w string) string {
	for _, suffix := range []string{"ing", "ed", "es", "s"} {
		if len(w) > len(suffix)+3 && strings.HasSuffix(w, suffix) {
			return strings.TrimSuffix(w, suffix)
		}
	}

	return w
}

func normalize(v []float32) {
	n := norm(v)
	if n == 0 {
		return
	}

	for i := range v {
		v[i] /= n
	}
}

// OpenAIEmbedderOptions configures an OpenAIEmbedder.
type OpenAIEmbedderOptions struct {
	Model   string
	APIKey  string
	BaseURL string
	// BatchSize is the number of texts per API request.
	BatchSize int
	// Concurrency bounds parallel requests.
	Concurrency int
}

// OpenAIEmbedder calls the OpenAI embeddings endpoint.
type OpenAIEmbedder struct {
	client *openai.Client
	opts   OpenAIEmbedderOptions
}

// NewOpenAIEmbedder creates an embedder with its own client.
func NewOpenAIEmbedder(optFns ...func(o *OpenAIEmbedderOptions)) *OpenAIEmbedder {
	opts := OpenAIEmbedderOptions{
		Model:       string(openai.EmbeddingModelTextEmbedding3Small),
		BatchSize:   64,
		Concurrency: 4,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	client := openai.NewClient(openaimodel.ClientOptions(opts.APIKey, opts.BaseURL, 2)...)

	return &OpenAIEmbedder{client: &client, opts: opts}
}

// Embed implements Embedder. Texts are sent in batches, several at once.
func (e *OpenAIEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	size := max(e.opts.BatchSize, 1)
	out := make([][]float32, len(texts))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(e.opts.Concurrency, 1))

	for start := 0; start < len(texts); start += size {
		end := min(start+size, len(texts))

		g.Go(func() error {
			resp, err := e.client.Embeddings.New(gctx, openai.EmbeddingNewParams{
				Model: openai.EmbeddingModel(e.opts.Model),
				Input: openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts[start:end]},
			})
			if err != nil {
				return fmt.Errorf("embedding batch %d-%d: %w", start, end, err)
			}

			if len(resp.Data) != end-start {
				return fmt.Errorf("embedding batch %d-%d: got %d vectors", start, end, len(resp.Data))
			}

			for _, d := range resp.Data {
				idx := start + int(d.Index)
				if idx < start || idx >= end {
					return fmt.Errorf("embedding batch %d-%d: index %d out of range", start, end, d.Index)
				}

				vec := make([]float32, len(d.Embedding))
				for i, f := range d.Embedding {
					vec[i] = float32(f)
				}

				out[idx] = vec
			}

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	for i, v := range out {
		if v == nil {
			return nil, errors.New("missing embedding for text " + fmt.Sprint(i))
		}
	}

	return out, nil
}

// norm returns the L2 norm of a vector.
func norm(v []float32) float32 {
	var sum float64
	for _, f := range v {
		sum += float64(f) * float64(f)
	}

	return float32(math.Sqrt(sum))
}

// cosine computes dot(a,b) / (aNorm * |b|).
func cosine(a, b []float32, aNorm float32) float32 {
	if len(a) != len(b) || aNorm == 0 {
		return 0
	}

	var dot, bNormSq float64

	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		bNormSq += float64(b[i]) * float64(b[i])
	}

	if bNormSq == 0 {
		return 0
	}

	return float32(dot / (float64(aNorm) * math.Sqrt(bNormSq)))
}
