package scoring

import "testing"

func TestNewClassifierValidation(t *testing.T) {
	tests := []struct {
		name      string
		bands     []ThresholdBand
		expectErr bool
	}{
		{name: "default bands", bands: DefaultThresholdBands(), expectErr: false},
		{name: "no bands", bands: []ThresholdBand{}, expectErr: true},
		{
			name: "single band covering everything",
			bands: []ThresholdBand{
				{Level: RiskLevelLow, Action: ActionAllow, UpTo: 1.0},
			},
			expectErr: false,
		},
		{
			name: "bounds not increasing",
			bands: []ThresholdBand{
				{Level: RiskLevelLow, Action: ActionAllow, UpTo: 0.6},
				{Level: RiskLevelMedium, Action: ActionChallenge, UpTo: 0.3},
				{Level: RiskLevelCritical, Action: ActionBlock, UpTo: 1.0},
			},
			expectErr: true,
		},
		{
			name: "bands not covering up to 1.0",
			bands: []ThresholdBand{
				{Level: RiskLevelLow, Action: ActionAllow, UpTo: 0.3},
				{Level: RiskLevelCritical, Action: ActionBlock, UpTo: 0.9},
			},
			expectErr: true,
		},
		{
			name: "bound above 1.0",
			bands: []ThresholdBand{
				{Level: RiskLevelLow, Action: ActionAllow, UpTo: 0.3},
				{Level: RiskLevelCritical, Action: ActionBlock, UpTo: 1.2},
			},
			expectErr: true,
		},
		{
			name: "duplicate level",
			bands: []ThresholdBand{
				{Level: RiskLevelLow, Action: ActionAllow, UpTo: 0.3},
				{Level: RiskLevelLow, Action: ActionChallenge, UpTo: 1.0},
			},
			expectErr: true,
		},
		{
			name: "levels out of severity order",
			bands: []ThresholdBand{
				{Level: RiskLevelCritical, Action: ActionBlock, UpTo: 0.3},
				{Level: RiskLevelLow, Action: ActionAllow, UpTo: 1.0},
			},
			expectErr: true,
		},
		{
			name: "actions out of severity order",
			bands: []ThresholdBand{
				{Level: RiskLevelLow, Action: ActionChallenge, UpTo: 0.3},
				{Level: RiskLevelMedium, Action: ActionAllow, UpTo: 1.0},
			},
			expectErr: true,
		},
		{
			name: "unknown level",
			bands: []ThresholdBand{
				{Level: "severe", Action: ActionBlock, UpTo: 1.0},
			},
			expectErr: true,
		},
		{
			name: "unknown action",
			bands: []ThresholdBand{
				{Level: RiskLevelCritical, Action: "reject", UpTo: 1.0},
			},
			expectErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewClassifier(tt.bands)
			if tt.expectErr && err == nil {
				t.Errorf("expected validation error")
			}
			if !tt.expectErr && err != nil {
				t.Errorf("unexpected validation error: %v", err)
			}
		})
	}
}

func TestClassifyDefaults(t *testing.T) {
	classifier, err := NewClassifier(DefaultThresholdBands())
	if err != nil {
		t.Fatalf("failed to create classifier: %v", err)
	}

	tests := []struct {
		name           string
		total          float64
		expectedLevel  RiskLevel
		expectedAction EnforcementAction
	}{
		{name: "zero score", total: 0.0, expectedLevel: RiskLevelLow, expectedAction: ActionAllow},
		{name: "just below medium", total: 0.299, expectedLevel: RiskLevelLow, expectedAction: ActionAllow},
		{name: "medium lower bound", total: 0.30, expectedLevel: RiskLevelMedium, expectedAction: ActionChallenge},
		{name: "within medium", total: 0.445, expectedLevel: RiskLevelMedium, expectedAction: ActionChallenge},
		{name: "high lower bound", total: 0.60, expectedLevel: RiskLevelHigh, expectedAction: ActionStepUp},
		{name: "critical lower bound", total: 0.80, expectedLevel: RiskLevelCritical, expectedAction: ActionBlock},
		{name: "maximum score", total: 1.0, expectedLevel: RiskLevelCritical, expectedAction: ActionBlock},
		{name: "below range is clamped", total: -0.5, expectedLevel: RiskLevelLow, expectedAction: ActionAllow},
		{name: "above range is clamped", total: 1.5, expectedLevel: RiskLevelCritical, expectedAction: ActionBlock},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			level, action := classifier.Classify(tt.total)
			if level != tt.expectedLevel || action != tt.expectedAction {
				t.Errorf("Classify(%v) = %s/%s, want %s/%s", tt.total, level, action, tt.expectedLevel, tt.expectedAction)
			}
		})
	}
}

func TestClassifyIsMonotonic(t *testing.T) {
	classifier, err := NewClassifier(DefaultThresholdBands())
	if err != nil {
		t.Fatalf("failed to create classifier: %v", err)
	}

	severity := map[RiskLevel]int{
		RiskLevelLow:      0,
		RiskLevelMedium:   1,
		RiskLevelHigh:     2,
		RiskLevelCritical: 3,
	}

	prev := -1
	for i := 0; i <= 1000; i++ {
		level, _ := classifier.Classify(float64(i) / 1000)
		if severity[level] < prev {
			t.Fatalf("risk level decreased at score %f", float64(i)/1000)
		}
		prev = severity[level]
	}
}

func TestStricterAction(t *testing.T) {
	tests := []struct {
		name     string
		a        EnforcementAction
		b        EnforcementAction
		expected EnforcementAction
	}{
		{name: "challenge beats allow", a: ActionAllow, b: ActionChallenge, expected: ActionChallenge},
		{name: "order does not matter", a: ActionChallenge, b: ActionAllow, expected: ActionChallenge},
		{name: "block beats step up", a: ActionStepUp, b: ActionBlock, expected: ActionBlock},
		{name: "equal actions", a: ActionChallenge, b: ActionChallenge, expected: ActionChallenge},
		{name: "block beats allow", a: ActionBlock, b: ActionAllow, expected: ActionBlock},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StricterAction(tt.a, tt.b); got != tt.expected {
				t.Errorf("StricterAction(%s, %s) = %s, want %s", tt.a, tt.b, got, tt.expected)
			}
		})
	}
}
