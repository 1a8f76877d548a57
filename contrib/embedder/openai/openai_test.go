package openai

import "testing"

func TestConvertVectorPadsAndTruncates(t *testing.T) {
	got := convertVector([]float64{0.1, 0.2, 0.3}, 2)
	if len(got) != 2 {
		t.Fatalf("expected truncation to 2 dims, got %d", len(got))
	}
	if got[0] != 0.1 || got[1] != 0.2 {
		t.Errorf("unexpected values: %v", got)
	}

	got = convertVector([]float64{0.5}, 3)
	if len(got) != 3 {
		t.Fatalf("expected padding to 3 dims, got %d", len(got))
	}
	if got[0] != 0.5 || got[1] != 0 || got[2] != 0 {
		t.Errorf("expected zero padding, got %v", got)
	}
}

func TestBatchWindowBounds(t *testing.T) {
	// Window arithmetic used by EmbedBatch: every index covered once.
	for _, total := range []int{1, maxBatchSize, maxBatchSize + 1, 3*maxBatchSize - 1} {
		covered := 0
		for start := 0; start < total; start += maxBatchSize {
			end := start + maxBatchSize
			if end > total {
				end = total
			}
			if end-start > maxBatchSize {
				t.Fatalf("window [%d:%d] exceeds cap for total %d", start, end, total)
			}
			covered += end - start
		}
		if covered != total {
			t.Errorf("total %d: covered %d texts", total, covered)
		}
	}
}
