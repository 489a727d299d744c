package queue

import (
	"reflect"
	"testing"
	"time"
)

func TestParseQueueWeights(t *testing.T) {
	tests := []struct {
		in   string
		want map[string]int
	}{
		{"streaks=2,default=1", map[string]int{"streaks": 2, "default": 1}},
		{" streaks , default=0 ", map[string]int{"streaks": 1, "default": 1}},
		{"=3,,low=x", map[string]int{"low": 1}},
		{"", map[string]int{}},
	}

	for _, tt := range tests {
		if got := parseQueueWeights(tt.in); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("parseQueueWeights(%q): expected %v, got %v", tt.in, tt.want, got)
		}
	}
}

func TestAsynqOptions(t *testing.T) {
	if got := asynqOptions(EnqueueOptions{}); len(got) != 0 {
		t.Errorf("Expected no options for zero value, got %d", len(got))
	}

	got := asynqOptions(EnqueueOptions{
		Queue:     "streaks",
		ProcessAt: time.Date(2025, 3, 1, 18, 0, 0, 0, time.UTC),
		MaxRetry:  3,
		TaskID:    "recheck:abc",
	})
	if len(got) != 4 {
		t.Errorf("Expected 4 options, got %d", len(got))
	}
}

func TestParseRedisRejectsEmpty(t *testing.T) {
	if _, err := NewAsynqClient(""); err == nil {
		t.Error("Expected error for empty redis url")
	}
}
