// Package abtest implements the variant-selection and analysis harness
// around whole graph invocations: deterministic assignment of a run to one
// of several named variants, and the summary statistics needed to tell
// whether one variant is actually winning.
package abtest

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"math"
	"sort"
	"sync"
)

// Variant is one named configuration receiving a fraction of traffic.
type Variant struct {
	Name    string
	Traffic float64

	mu     sync.Mutex
	values []float64
}

// Record appends one metric observation to the variant.
func (v *Variant) Record(value float64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.values = append(v.values, value)
}

// SampleSize returns the number of recorded observations.
func (v *Variant) SampleSize() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.values)
}

// Mean returns the arithmetic mean of recorded observations.
func (v *Variant) Mean() float64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return mean(v.values)
}

// StdDev returns the sample standard deviation of recorded observations.
func (v *Variant) StdDev() float64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return stddev(v.values)
}

func (v *Variant) snapshot() []float64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]float64, len(v.values))
	copy(out, v.values)
	return out
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func stddev(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	m := mean(xs)
	var sumSq float64
	for _, x := range xs {
		d := x - m
		sumSq += d * d
	}
	return math.Sqrt(sumSq / float64(len(xs)-1))
}

// ConfidenceInterval is a two-sided interval around a variant's mean.
type ConfidenceInterval struct {
	Mean  float64
	Lower float64
	Upper float64
	Level float64
}

// TTestResult is the outcome of a Welch's t-test between two variants.
type TTestResult struct {
	MeanDifference   float64
	PValue           float64
	DegreesOfFreedom float64
	IsSignificant    bool
}

// Verdict is the analysis outcome for a two-variant test.
type Verdict struct {
	Winner                  string // "" when NoSignificantDifference
	Recommendation          string
	NoSignificantDifference bool
}

// VariantReport summarizes one variant's recorded metric.
type VariantReport struct {
	Name               string
	SampleSize         int
	Mean               float64
	StdDev             float64
	ConfidenceInterval ConfidenceInterval
}

// Report is the full analysis output of ABTest.Analyze.
type Report struct {
	Name     string
	Variants []VariantReport
	TTest    *TTestResult
	Verdict  Verdict
}

// ErrInsufficientSampleSize is returned by Analyze when a variant has not
// yet reached the configured minimum sample size.
type ErrInsufficientSampleSize struct {
	Variant string
	Need    int
	Got     int
}

func (e *ErrInsufficientSampleSize) Error() string {
	return fmt.Sprintf("abtest: variant %q needs %d samples, has %d", e.Variant, e.Need, e.Got)
}

// ErrVariantNotFound is returned by RecordResult for an unregistered
// variant name.
type ErrVariantNotFound struct{ Name string }

func (e *ErrVariantNotFound) Error() string {
	return fmt.Sprintf("abtest: unknown variant %q", e.Name)
}

// ABTest coordinates variant assignment, metric recording, and analysis
// for a whole-run experiment.
type ABTest struct {
	name              string
	minimumSampleSize int
	significanceLevel float64

	mu       sync.RWMutex
	variants map[string]*Variant
	order    []string
}

// New creates an ABTest with the default minimum sample size (100) and
// significance level (0.05).
func New(name string) *ABTest {
	return &ABTest{
		name:              name,
		minimumSampleSize: 100,
		significanceLevel: 0.05,
		variants:          make(map[string]*Variant),
	}
}

// WithMinimumSampleSize overrides the default minimum sample size and
// returns the receiver for chaining.
func (t *ABTest) WithMinimumSampleSize(n int) *ABTest {
	t.minimumSampleSize = n
	return t
}

// WithSignificanceLevel overrides the default significance level and
// returns the receiver for chaining.
func (t *ABTest) WithSignificanceLevel(level float64) *ABTest {
	t.significanceLevel = level
	return t
}

// AddVariant registers a variant with its traffic allocation. Traffic
// weights across all variants are expected to sum to 1.0; this is not
// enforced here since partial configuration during setup is common.
func (t *ABTest) AddVariant(name string, traffic float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, exists := t.variants[name]; !exists {
		t.order = append(t.order, name)
	}
	t.variants[name] = &Variant{Name: name, Traffic: traffic}
}

// AssignVariant deterministically assigns id to a variant by hashing id
// into the declared traffic weights: the same id always resolves to the
// same variant for a fixed variant configuration.
func (t *ABTest) AssignVariant(id string) (string, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if len(t.order) == 0 {
		return "", fmt.Errorf("abtest: no variants configured")
	}

	names := make([]string, len(t.order))
	copy(names, t.order)
	sort.Strings(names)

	var total float64
	for _, name := range names {
		total += t.variants[name].Traffic
	}
	if total <= 0 {
		total = float64(len(names))
	}

	h := sha256.Sum256([]byte(id))
	bucket := float64(binary.BigEndian.Uint64(h[:8])%1_000_000) / 1_000_000 * total

	var cursor float64
	for _, name := range names {
		weight := t.variants[name].Traffic
		if weight <= 0 {
			weight = total / float64(len(names))
		}
		cursor += weight
		if bucket < cursor {
			return name, nil
		}
	}
	return names[len(names)-1], nil
}

// RecordResult appends one metric observation to the named variant.
func (t *ABTest) RecordResult(variantName string, value float64) error {
	t.mu.RLock()
	v, ok := t.variants[variantName]
	t.mu.RUnlock()
	if !ok {
		return &ErrVariantNotFound{Name: variantName}
	}
	v.Record(value)
	return nil
}

// HasMinimumSamples reports whether every registered variant has reached
// the configured minimum sample size.
func (t *ABTest) HasMinimumSamples() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for _, v := range t.variants {
		if v.SampleSize() < t.minimumSampleSize {
			return false
		}
	}
	return true
}

// TotalObservations returns the sum of sample sizes across all variants.
func (t *ABTest) TotalObservations() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	total := 0
	for _, v := range t.variants {
		total += v.SampleSize()
	}
	return total
}

// ConfidenceInterval95 computes a 95% confidence interval around a
// variant's mean using the Student-t critical value for n-1 degrees of
// freedom scaled by the standard error, matching StatisticalAnalysis::confidence_interval(variant, 0.95).
func ConfidenceInterval95(v *Variant) ConfidenceInterval {
	return confidenceInterval(v, 0.95)
}

func confidenceInterval(v *Variant, level float64) ConfidenceInterval {
	n := v.SampleSize()
	m := v.Mean()
	if n < 2 {
		return ConfidenceInterval{Mean: m, Lower: m, Upper: m, Level: level}
	}

	se := v.StdDev() / math.Sqrt(float64(n))
	df := float64(n - 1)
	tCrit := criticalT(level, df)

	return ConfidenceInterval{
		Mean:  m,
		Lower: m - tCrit*se,
		Upper: m + tCrit*se,
		Level: level,
	}
}

// criticalT finds the t value t* such that twoTailedPValue(t*, df) equals
// 1-level, via bisection over studentTCDF. Good enough precision for
// reporting without a lookup table.
func criticalT(level, df float64) float64 {
	target := (1 + level) / 2
	lo, hi := 0.0, 100.0
	for i := 0; i < 100; i++ {
		mid := (lo + hi) / 2
		if studentTCDF(mid, df) < target {
			lo = mid
		} else {
			hi = mid
		}
	}
	return (lo + hi) / 2
}

// WelchTTest runs Welch's t-test between two variants at the given
// significance level, matching StatisticalAnalysis::welch_t_test.
func WelchTTest(a, b *Variant, alpha float64) (TTestResult, error) {
	na, nb := a.SampleSize(), b.SampleSize()
	if na < 2 || nb < 2 {
		return TTestResult{}, fmt.Errorf("abtest: welch t-test requires at least 2 samples per variant")
	}

	ma, mb := a.Mean(), b.Mean()
	va, vb := variance(a.snapshot()), variance(b.snapshot())

	se := math.Sqrt(va/float64(na) + vb/float64(nb))
	if se == 0 {
		// Both samples are constant: equal means are indistinguishable,
		// different means differ with certainty.
		p := 1.0
		if ma != mb {
			p = 0
		}
		return TTestResult{MeanDifference: ma - mb, PValue: p, IsSignificant: p < alpha}, nil
	}

	t := (ma - mb) / se

	df := math.Pow(va/float64(na)+vb/float64(nb), 2) /
		(math.Pow(va/float64(na), 2)/float64(na-1) + math.Pow(vb/float64(nb), 2)/float64(nb-1))

	p := twoTailedPValue(t, df)

	return TTestResult{
		MeanDifference:   ma - mb,
		PValue:           p,
		DegreesOfFreedom: df,
		IsSignificant:    p < alpha,
	}, nil
}

func variance(xs []float64) float64 {
	s := stddev(xs)
	return s * s
}

// Analyze produces per-variant summary reports plus, for exactly two
// variants, a Welch t-test and a Winner/NoSignificantDifference verdict. It
// fails with *ErrInsufficientSampleSize if any variant has not reached the
// configured minimum.
func (t *ABTest) Analyze() (Report, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	report := Report{Name: t.name}

	for _, name := range t.order {
		v := t.variants[name]
		if v.SampleSize() < t.minimumSampleSize {
			return Report{}, &ErrInsufficientSampleSize{Variant: name, Need: t.minimumSampleSize, Got: v.SampleSize()}
		}
	}

	for _, name := range t.order {
		v := t.variants[name]
		ci := confidenceInterval(v, 0.95)
		report.Variants = append(report.Variants, VariantReport{
			Name:               name,
			SampleSize:         v.SampleSize(),
			Mean:               v.Mean(),
			StdDev:             v.StdDev(),
			ConfidenceInterval: ci,
		})
	}

	if len(t.order) == 2 {
		va := t.variants[t.order[0]]
		vb := t.variants[t.order[1]]

		tt, err := WelchTTest(va, vb, t.significanceLevel)
		if err != nil {
			return Report{}, err
		}
		report.TTest = &tt

		if tt.IsSignificant {
			winner := t.order[0]
			if tt.MeanDifference < 0 {
				winner = t.order[1]
			}
			report.Verdict = Verdict{
				Winner:         winner,
				Recommendation: fmt.Sprintf("deploy %s variant (p < %.3f)", winner, t.significanceLevel),
			}
		} else {
			report.Verdict = Verdict{
				NoSignificantDifference: true,
				Recommendation:          fmt.Sprintf("continue testing or decide on other criteria (p = %.3f)", tt.PValue),
			}
		}
	}

	return report, nil
}
