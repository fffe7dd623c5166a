package abtest

import (
	"math"
	"testing"
)

func TestNew_Defaults(t *testing.T) {
	ab := New("checkpoint-format")
	if ab.minimumSampleSize != 100 {
		t.Fatalf("default minimum sample size = %d, want 100", ab.minimumSampleSize)
	}
	if ab.significanceLevel != 0.05 {
		t.Fatalf("default significance level = %v, want 0.05", ab.significanceLevel)
	}
}

func TestAddVariant(t *testing.T) {
	ab := New("t")
	ab.AddVariant("control", 0.5)
	ab.AddVariant("treatment", 0.5)

	if len(ab.order) != 2 {
		t.Fatalf("expected 2 variants, got %d", len(ab.order))
	}
	if _, ok := ab.variants["control"]; !ok {
		t.Fatalf("expected control variant registered")
	}
}

func TestAssignVariant_Deterministic(t *testing.T) {
	ab := New("t")
	ab.AddVariant("control", 0.5)
	ab.AddVariant("treatment", 0.5)

	first, err := ab.AssignVariant("user-42")
	if err != nil {
		t.Fatalf("AssignVariant: %v", err)
	}
	for i := 0; i < 10; i++ {
		again, err := ab.AssignVariant("user-42")
		if err != nil {
			t.Fatalf("AssignVariant: %v", err)
		}
		if again != first {
			t.Fatalf("assignment not deterministic: got %q then %q", first, again)
		}
	}
}

func TestAssignVariant_NoVariants(t *testing.T) {
	ab := New("t")
	if _, err := ab.AssignVariant("anyone"); err == nil {
		t.Fatalf("expected error with no variants configured")
	}
}

func TestRecordResult(t *testing.T) {
	ab := New("t")
	ab.AddVariant("control", 1.0)

	if err := ab.RecordResult("control", 1.5); err != nil {
		t.Fatalf("RecordResult: %v", err)
	}
	if ab.variants["control"].SampleSize() != 1 {
		t.Fatalf("expected 1 sample recorded")
	}
}

func TestRecordResult_InvalidVariant(t *testing.T) {
	ab := New("t")
	ab.AddVariant("control", 1.0)

	var notFound *ErrVariantNotFound
	err := ab.RecordResult("nonexistent", 1.0)
	if err == nil {
		t.Fatalf("expected error for unknown variant")
	}
	if !asErrVariantNotFound(err, &notFound) {
		t.Fatalf("expected *ErrVariantNotFound, got %T", err)
	}
}

func asErrVariantNotFound(err error, target **ErrVariantNotFound) bool {
	e, ok := err.(*ErrVariantNotFound)
	if !ok {
		return false
	}
	*target = e
	return true
}

func TestHasMinimumSamples(t *testing.T) {
	ab := New("t").WithMinimumSampleSize(3)
	ab.AddVariant("a", 0.5)
	ab.AddVariant("b", 0.5)

	if ab.HasMinimumSamples() {
		t.Fatalf("expected false before any samples recorded")
	}

	for i := 0; i < 3; i++ {
		ab.RecordResult("a", 1.0)
		ab.RecordResult("b", 1.0)
	}
	if !ab.HasMinimumSamples() {
		t.Fatalf("expected true once both variants reach the minimum")
	}
}

func TestAnalyze_InsufficientSamples(t *testing.T) {
	ab := New("t").WithMinimumSampleSize(5)
	ab.AddVariant("a", 0.5)
	ab.AddVariant("b", 0.5)
	ab.RecordResult("a", 1.0)

	_, err := ab.Analyze()
	if err == nil {
		t.Fatalf("expected insufficient-sample-size error")
	}
	if _, ok := err.(*ErrInsufficientSampleSize); !ok {
		t.Fatalf("expected *ErrInsufficientSampleSize, got %T", err)
	}
}

func TestAnalyze_SignificantDifference(t *testing.T) {
	ab := New("t").WithMinimumSampleSize(20)
	ab.AddVariant("control", 0.5)
	ab.AddVariant("treatment", 0.5)

	for i := 0; i < 30; i++ {
		ab.RecordResult("control", 1.0)
		ab.RecordResult("treatment", 5.0)
	}

	report, err := ab.Analyze()
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if report.TTest == nil {
		t.Fatalf("expected a t-test result for two variants")
	}
	if !report.TTest.IsSignificant {
		t.Fatalf("expected a significant difference, p=%v", report.TTest.PValue)
	}
	if report.Verdict.NoSignificantDifference {
		t.Fatalf("expected a Winner verdict, got NoSignificantDifference")
	}
	if report.Verdict.Winner != "treatment" {
		t.Fatalf("expected treatment to win, got %q", report.Verdict.Winner)
	}
}

func TestAnalyze_NoSignificantDifference(t *testing.T) {
	ab := New("t").WithMinimumSampleSize(20)
	ab.AddVariant("control", 0.5)
	ab.AddVariant("treatment", 0.5)

	values := []float64{1.0, 1.1, 0.9, 1.05, 0.95, 1.02, 0.98, 1.01, 0.99, 1.03,
		0.97, 1.04, 0.96, 1.0, 1.1, 0.9, 1.05, 0.95, 1.02, 0.98}
	for _, v := range values {
		ab.RecordResult("control", v)
		ab.RecordResult("treatment", v)
	}

	report, err := ab.Analyze()
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if !report.Verdict.NoSignificantDifference {
		t.Fatalf("expected NoSignificantDifference, got winner %q (p=%v)", report.Verdict.Winner, report.TTest.PValue)
	}
}

func TestTotalObservations(t *testing.T) {
	ab := New("t")
	ab.AddVariant("a", 0.5)
	ab.AddVariant("b", 0.5)
	ab.RecordResult("a", 1.0)
	ab.RecordResult("a", 2.0)
	ab.RecordResult("b", 3.0)

	if got := ab.TotalObservations(); got != 3 {
		t.Fatalf("TotalObservations() = %d, want 3", got)
	}
}

func TestConfidenceInterval95_ContainsMean(t *testing.T) {
	v := &Variant{Name: "a"}
	for _, x := range []float64{1, 2, 3, 4, 5, 4, 3, 2, 1, 3} {
		v.Record(x)
	}

	ci := ConfidenceInterval95(v)
	if ci.Lower > ci.Mean || ci.Upper < ci.Mean {
		t.Fatalf("confidence interval [%v,%v] does not contain mean %v", ci.Lower, ci.Upper, ci.Mean)
	}
	if ci.Lower >= ci.Upper {
		t.Fatalf("expected a nondegenerate interval, got [%v,%v]", ci.Lower, ci.Upper)
	}
}

func TestWelchTTest_IdenticalSamplesNotSignificant(t *testing.T) {
	a := &Variant{Name: "a"}
	b := &Variant{Name: "b"}
	for _, x := range []float64{1, 2, 3, 4, 5} {
		a.Record(x)
		b.Record(x)
	}

	result, err := WelchTTest(a, b, 0.05)
	if err != nil {
		t.Fatalf("WelchTTest: %v", err)
	}
	if result.IsSignificant {
		t.Fatalf("expected no significant difference for identical samples")
	}
	if math.Abs(result.MeanDifference) > 1e-9 {
		t.Fatalf("expected zero mean difference, got %v", result.MeanDifference)
	}
}

func TestWelchTTest_RequiresMinimumSamples(t *testing.T) {
	a := &Variant{Name: "a"}
	b := &Variant{Name: "b"}
	a.Record(1.0)
	b.Record(1.0)

	if _, err := WelchTTest(a, b, 0.05); err == nil {
		t.Fatalf("expected error with fewer than 2 samples per variant")
	}
}
