// Package aggregate merges per-image classification results into run totals.
//
// Every function here is pure except Tally, which guards its state with a
// mutex. The invariant maintained everywhere is that the sum of ClassCounts
// equals the total number of labels across ImageClassifications.
package aggregate

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrInconsistent is returned when counts and classifications disagree.
var ErrInconsistent = errors.New("class counts do not match classifications")

// ClassCounts maps a label to the number of images it was assigned to.
type ClassCounts map[string]int

// ImageClassification is the set of labels assigned to one image, keyed by
// the image's base name.
type ImageClassification struct {
	Image   string   `json:"image"`
	Classes []string `json:"classes"`
}

// Result is one batch (or run) worth of output.
type Result struct {
	ClassCounts          ClassCounts           `json:"class_counts"`
	ImageClassifications []ImageClassification `json:"image_classifications"`
}

// Total returns the sum of all counts.
func (c ClassCounts) Total() int {
	n := 0
	for _, v := range c {
		n += v
	}
	return n
}

// Labels returns the labels in c sorted by descending count, then by name.
func (c ClassCounts) Labels() []string {
	labels := make([]string, 0, len(c))
	for k := range c {
		labels = append(labels, k)
	}
	sort.Slice(labels, func(i, j int) bool {
		if c[labels[i]] != c[labels[j]] {
			return c[labels[i]] > c[labels[j]]
		}
		return labels[i] < labels[j]
	})
	return labels
}

// Clone returns an independent copy of c. A nil map clones to an empty one.
func (c ClassCounts) Clone() ClassCounts {
	out := make(ClassCounts, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}

// Merge returns a new map holding the union of keys in a and b with their
// values summed. Neither input is modified.
func Merge(a, b ClassCounts) ClassCounts {
	out := a.Clone()
	for k, v := range b {
		out[k] += v
	}
	return out
}

// Extend returns a followed by b as a new slice.
func Extend(a, b []ImageClassification) []ImageClassification {
	out := make([]ImageClassification, 0, len(a)+len(b))
	out = append(out, cloneClassifications(a)...)
	return append(out, cloneClassifications(b)...)
}

// Combine returns a followed by b. Neither input is modified.
func Combine(a, b Result) Result {
	return Result{
		ClassCounts:          Merge(a.ClassCounts, b.ClassCounts),
		ImageClassifications: Extend(a.ImageClassifications, b.ImageClassifications),
	}
}

// CountsOf derives class counts from a list of classifications.
func CountsOf(list []ImageClassification) ClassCounts {
	counts := ClassCounts{}
	for _, ic := range list {
		for _, label := range ic.Classes {
			counts[label]++
		}
	}
	return counts
}

// NewResult returns an empty result with non-nil collections.
func NewResult() Result {
	return Result{
		ClassCounts:          ClassCounts{},
		ImageClassifications: []ImageClassification{},
	}
}

// Verify checks that the counts are exactly those derived from the
// classifications.
func (r Result) Verify() error {
	derived := CountsOf(r.ImageClassifications)
	if len(derived) != len(nonZero(r.ClassCounts)) {
		return fmt.Errorf("%w: %d labels counted, %d labels assigned", ErrInconsistent, len(nonZero(r.ClassCounts)), len(derived))
	}
	for label, n := range derived {
		if r.ClassCounts[label] != n {
			return fmt.Errorf("%w: %q counted %d times, assigned %d times", ErrInconsistent, label, r.ClassCounts[label], n)
		}
	}
	return nil
}

// Empty reports whether r has no counted labels.
func (r Result) Empty() bool {
	return r.ClassCounts.Total() == 0
}

// Clone returns a deep copy of r.
func (r Result) Clone() Result {
	return Result{
		ClassCounts:          r.ClassCounts.Clone(),
		ImageClassifications: cloneClassifications(r.ImageClassifications),
	}
}

// Tally accumulates batch results for one run. It is safe for concurrent use.
type Tally struct {
	mu     sync.Mutex
	result Result
}

// NewTally returns an empty Tally.
func NewTally() *Tally {
	return &Tally{result: NewResult()}
}

// Add merges batch into the running total. A batch that fails Verify is
// rejected and the tally is left unchanged.
func (t *Tally) Add(batch Result) error {
	if err := batch.Verify(); err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.result = Combine(t.result, batch)
	return nil
}

// Snapshot returns a deep copy of the running total.
func (t *Tally) Snapshot() Result {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.result.Clone()
}

func nonZero(c ClassCounts) ClassCounts {
	out := ClassCounts{}
	for k, v := range c {
		if v != 0 {
			out[k] = v
		}
	}
	return out
}

func cloneClassification(ic ImageClassification) ImageClassification {
	classes := make([]string, len(ic.Classes))
	copy(classes, ic.Classes)
	return ImageClassification{Image: ic.Image, Classes: classes}
}

func cloneClassifications(list []ImageClassification) []ImageClassification {
	out := make([]ImageClassification, len(list))
	for i, ic := range list {
		out[i] = cloneClassification(ic)
	}
	return out
}
