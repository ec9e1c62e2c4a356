package learning

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"sync"
)

// ModelVersion is the blob schema version written by this package
const ModelVersion = 1

// TokenizeFunc splits text into classifier tokens
type TokenizeFunc func(text string) []string

// Options holds model hyperparameters
type Options struct {
	Alpha float64 `json:"alpha"`
}

// model is the serialized form of a NaiveBayes classifier
type model struct {
	Version            int                       `json:"version"`
	Options            Options                   `json:"options"`
	Categories         []string                  `json:"categories"`
	DocCount           map[string]int            `json:"doc_count"`
	TotalDocuments     int                       `json:"total_documents"`
	Vocabulary         []string                  `json:"vocabulary"`
	WordCount          map[string]int            `json:"word_count"`
	WordFrequencyCount map[string]map[string]int `json:"word_frequency_count"`
}

// NaiveBayes is a multinomial naive Bayes text classifier with additive
// smoothing. A loaded model is only read by Categorize.
type NaiveBayes struct {
	mu       sync.RWMutex
	tokenize TokenizeFunc
	alpha    float64

	categories     map[string]bool
	docCount       map[string]int
	totalDocuments int
	vocabulary     map[string]bool
	wordCount      map[string]int
	wordFrequency  map[string]map[string]int
}

// NewNaiveBayes creates an empty classifier
func NewNaiveBayes(tokenize TokenizeFunc, opts Options) *NaiveBayes {
	if opts.Alpha <= 0 {
		opts.Alpha = 1
	}
	return &NaiveBayes{
		tokenize:      tokenize,
		alpha:         opts.Alpha,
		categories:    make(map[string]bool),
		docCount:      make(map[string]int),
		vocabulary:    make(map[string]bool),
		wordCount:     make(map[string]int),
		wordFrequency: make(map[string]map[string]int),
	}
}

// Learn adds one labelled document
func (nb *NaiveBayes) Learn(text, category string) {
	tokens := nb.tokenize(text)

	nb.mu.Lock()
	defer nb.mu.Unlock()

	nb.categories[category] = true
	nb.docCount[category]++
	nb.totalDocuments++

	freq := nb.wordFrequency[category]
	if freq == nil {
		freq = make(map[string]int)
		nb.wordFrequency[category] = freq
	}
	for _, tok := range tokens {
		nb.vocabulary[tok] = true
		freq[tok]++
		nb.wordCount[category]++
	}
}

// Categorize returns the most likely category for text and its posterior
// probability. An empty model returns "" and 0.
func (nb *NaiveBayes) Categorize(text string) (string, float64) {
	probs := nb.Probabilities(text)
	best, bestP := "", 0.0
	for _, cat := range sortedCategories(probs) {
		if p := probs[cat]; best == "" || p > bestP {
			best, bestP = cat, p
		}
	}
	return best, bestP
}

// Probabilities returns the posterior of every category
func (nb *NaiveBayes) Probabilities(text string) map[string]float64 {
	tokens := nb.tokenize(text)

	nb.mu.RLock()
	defer nb.mu.RUnlock()

	if nb.totalDocuments == 0 {
		return map[string]float64{}
	}

	counts := make(map[string]int, len(tokens))
	for _, tok := range tokens {
		counts[tok]++
	}

	vocab := float64(len(nb.vocabulary))
	logs := make(map[string]float64, len(nb.categories))
	maxLog := math.Inf(-1)
	for cat := range nb.categories {
		lp := math.Log(float64(nb.docCount[cat]) / float64(nb.totalDocuments))
		denom := float64(nb.wordCount[cat]) + nb.alpha*vocab
		for tok, n := range counts {
			num := float64(nb.wordFrequency[cat][tok]) + nb.alpha
			lp += float64(n) * math.Log(num/denom)
		}
		logs[cat] = lp
		maxLog = math.Max(maxLog, lp)
	}

	// normalize in log space to avoid underflow
	var sum float64
	probs := make(map[string]float64, len(logs))
	for cat, lp := range logs {
		p := math.Exp(lp - maxLog)
		probs[cat] = p
		sum += p
	}
	for cat := range probs {
		probs[cat] /= sum
	}
	return probs
}

// ModelInfo summarizes a model
type ModelInfo struct {
	Version        int            `json:"version"`
	Alpha          float64        `json:"alpha"`
	Categories     []string       `json:"categories"`
	DocCount       map[string]int `json:"doc_count"`
	TotalDocuments int            `json:"total_documents"`
	VocabularySize int            `json:"vocabulary_size"`
}

// Info returns model statistics
func (nb *NaiveBayes) Info() ModelInfo {
	nb.mu.RLock()
	defer nb.mu.RUnlock()

	docs := make(map[string]int, len(nb.docCount))
	for k, v := range nb.docCount {
		docs[k] = v
	}
	return ModelInfo{
		Version:        ModelVersion,
		Alpha:          nb.alpha,
		Categories:     sortedKeys(nb.categories),
		DocCount:       docs,
		TotalDocuments: nb.totalDocuments,
		VocabularySize: len(nb.vocabulary),
	}
}

// MarshalModel encodes the model blob
func (nb *NaiveBayes) MarshalModel() ([]byte, error) {
	nb.mu.RLock()
	defer nb.mu.RUnlock()

	m := model{
		Version:            ModelVersion,
		Options:            Options{Alpha: nb.alpha},
		Categories:         sortedKeys(nb.categories),
		DocCount:           nb.docCount,
		TotalDocuments:     nb.totalDocuments,
		Vocabulary:         sortedKeys(nb.vocabulary),
		WordCount:          nb.wordCount,
		WordFrequencyCount: nb.wordFrequency,
	}
	return json.MarshalIndent(m, "", "  ")
}

// UnmarshalModel decodes a model blob produced by MarshalModel
func UnmarshalModel(data []byte, tokenize TokenizeFunc) (*NaiveBayes, error) {
	var m model
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to decode model: %w", err)
	}
	if m.Version != ModelVersion {
		return nil, fmt.Errorf("unsupported model version %d (want %d)", m.Version, ModelVersion)
	}

	nb := NewNaiveBayes(tokenize, m.Options)
	for _, c := range m.Categories {
		nb.categories[c] = true
	}
	for _, w := range m.Vocabulary {
		nb.vocabulary[w] = true
	}
	if m.DocCount != nil {
		nb.docCount = m.DocCount
	}
	if m.WordCount != nil {
		nb.wordCount = m.WordCount
	}
	if m.WordFrequencyCount != nil {
		nb.wordFrequency = m.WordFrequencyCount
	}
	nb.totalDocuments = m.TotalDocuments
	return nb, nil
}

// SaveModel writes the model blob to path
func (nb *NaiveBayes) SaveModel(path string) error {
	data, err := nb.MarshalModel()
	if err != nil {
		return fmt.Errorf("failed to encode model: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write model file: %w", err)
	}
	return nil
}

// LoadModel reads a model blob from path
func LoadModel(path string, tokenize TokenizeFunc) (*NaiveBayes, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read model file: %w", err)
	}
	return UnmarshalModel(data, tokenize)
}

// PrintStats prints model statistics
func (nb *NaiveBayes) PrintStats(w io.Writer) {
	info := nb.Info()

	fmt.Fprintf(w, "Naive Bayes model (version %d)\n", info.Version)
	fmt.Fprintf(w, "  Documents: %d\n", info.TotalDocuments)
	fmt.Fprintf(w, "  Vocabulary size: %d\n", info.VocabularySize)
	fmt.Fprintf(w, "  Smoothing alpha: %.2f\n", info.Alpha)
	for _, c := range info.Categories {
		fmt.Fprintf(w, "  %-12s %d documents\n", c+":", info.DocCount[c])
	}
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func sortedCategories(m map[string]float64) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
