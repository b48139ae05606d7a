package scoring

import (
	"reflect"
	"testing"
)

func TestWeightsValidate(t *testing.T) {
	tests := []struct {
		name      string
		weights   Weights
		expectErr bool
	}{
		{name: "default weights", weights: DefaultWeights(), expectErr: false},
		{
			name:      "alternative weights summing to one",
			weights:   Weights{Bot: 0.2, Address: 0.2, EmailDomain: 0.2, Behavioral: 0.2, Device: 0.2},
			expectErr: false,
		},
		{
			name:      "sum below one",
			weights:   Weights{Bot: 0.3, Address: 0.25, EmailDomain: 0.2, Behavioral: 0.15, Device: 0.05},
			expectErr: true,
		},
		{
			name:      "sum above one",
			weights:   Weights{Bot: 0.35, Address: 0.25, EmailDomain: 0.2, Behavioral: 0.15, Device: 0.1},
			expectErr: true,
		},
		{
			name:      "negative weight",
			weights:   Weights{Bot: 1.1, Address: 0.1, EmailDomain: -0.2, Behavioral: 0.0, Device: 0.0},
			expectErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.weights.Validate()
			if tt.expectErr && err == nil {
				t.Errorf("expected validation error")
			}
			if !tt.expectErr && err != nil {
				t.Errorf("unexpected validation error: %v", err)
			}
		})
	}
}

func TestNewCombinerRejectsInvalidWeights(t *testing.T) {
	_, err := NewCombiner(Weights{Bot: 1, Address: 1, EmailDomain: 1, Behavioral: 1, Device: 1})
	if err == nil {
		t.Errorf("expected error for weights not summing to 1.0")
	}
}

func mustNewCombiner(t *testing.T) *Combiner {
	t.Helper()
	combiner, err := NewCombiner(DefaultWeights())
	if err != nil {
		t.Fatalf("failed to create combiner: %v", err)
	}
	return combiner
}

func TestCombineIsDeterministic(t *testing.T) {
	combiner := mustNewCombiner(t)

	signals := SignalSet{
		Bot:         SignalResult{Risk: 0.6},
		Address:     SignalResult{Risk: 0.4},
		EmailDomain: SignalResult{Risk: 0.2},
		Behavioral:  SignalResult{Risk: 0.3},
		Device:      SignalResult{Risk: 0.1},
	}

	first := combiner.Combine(signals)
	for i := 0; i < 50; i++ {
		again := combiner.Combine(signals)
		if again.Total != first.Total {
			t.Fatalf("total changed between runs: %f vs %f", again.Total, first.Total)
		}
		if !reflect.DeepEqual(again.Contributions, first.Contributions) {
			t.Fatalf("contributions changed between runs")
		}
	}
}

func TestCombineBoundsAndRounding(t *testing.T) {
	combiner := mustNewCombiner(t)

	tests := []struct {
		name          string
		signals       SignalSet
		expectedTotal float64
	}{
		{
			name:          "all zero",
			signals:       SignalSet{},
			expectedTotal: 0.0,
		},
		{
			name: "all maxed",
			signals: SignalSet{
				Bot:         SignalResult{Risk: 1},
				Address:     SignalResult{Risk: 1},
				EmailDomain: SignalResult{Risk: 1},
				Behavioral:  SignalResult{Risk: 1},
				Device:      SignalResult{Risk: 1},
			},
			expectedTotal: 1.0,
		},
		{
			name: "sub-scores outside range are clamped",
			signals: SignalSet{
				Bot:         SignalResult{Risk: 7},
				Address:     SignalResult{Risk: -3},
				EmailDomain: SignalResult{Risk: 1},
				Behavioral:  SignalResult{Risk: 0},
				Device:      SignalResult{Risk: 0},
			},
			expectedTotal: 0.5,
		},
		{
			name: "result is rounded to three decimals",
			signals: SignalSet{
				Bot:         SignalResult{Risk: 0.333},
				Address:     SignalResult{Risk: 0.333},
				EmailDomain: SignalResult{Risk: 0.333},
				Behavioral:  SignalResult{Risk: 0.333},
				Device:      SignalResult{Risk: 0.333},
			},
			expectedTotal: 0.333,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			score := combiner.Combine(tt.signals)
			if score.Total != tt.expectedTotal {
				t.Errorf("unexpected total %v, want %v", score.Total, tt.expectedTotal)
			}
			if score.Total < 0 || score.Total > 1 {
				t.Errorf("total %f outside [0,1]", score.Total)
			}
		})
	}
}

func TestCombineContributions(t *testing.T) {
	combiner := mustNewCombiner(t)

	score := combiner.Combine(SignalSet{
		Bot:         SignalResult{Risk: 1.0},
		Address:     SignalResult{Risk: 0.8},
		EmailDomain: SignalResult{Risk: 0.5},
		Behavioral:  SignalResult{Risk: 0.2},
		Device:      SignalResult{Risk: 0.0},
	})

	expected := map[string]float64{
		SIGNAL_BOT:          0.3,
		SIGNAL_ADDRESS:      0.2,
		SIGNAL_EMAIL_DOMAIN: 0.1,
		SIGNAL_BEHAVIORAL:   0.03,
		SIGNAL_DEVICE:       0.0,
	}
	for signal, want := range expected {
		if got := score.Contributions[signal]; !almostEqual(got, want) {
			t.Errorf("contribution for %s = %v, want %v", signal, got, want)
		}
	}
	if score.Total != 0.63 {
		t.Errorf("unexpected total %v, want 0.63", score.Total)
	}
}

func TestCombineTracksDegradedSignals(t *testing.T) {
	combiner := mustNewCombiner(t)

	score := combiner.Combine(SignalSet{
		Bot:         ScoreBotSignal(nil),
		Address:     ScoreAddressSignal(&AddressReputation{FraudScore: 10}),
		EmailDomain: ScoreEmailDomainSignal(DomainClassEstablished),
		Behavioral:  ScoreBehavioralSignal(nil),
		Device:      ScoreDeviceSignal(&DeviceFingerprint{Components: cleanFingerprintComponents()}),
	})

	expected := []string{SIGNAL_BOT, SIGNAL_BEHAVIORAL}
	if !reflect.DeepEqual(score.DegradedSignals, expected) {
		t.Errorf("unexpected degraded signals %v, want %v", score.DegradedSignals, expected)
	}
	if score.Total != 0.225 {
		t.Errorf("unexpected total %v, want 0.225", score.Total)
	}
}

func TestScoringScenarios(t *testing.T) {
	combiner := mustNewCombiner(t)
	classifier, err := NewClassifier(DefaultThresholdBands())
	if err != nil {
		t.Fatalf("failed to create classifier: %v", err)
	}

	t.Run("legitimate user", func(t *testing.T) {
		signals := SignalSet{
			Bot:     ScoreBotSignal(floatPtr(0.9)),
			Address: ScoreAddressSignal(&AddressReputation{FraudScore: 5}),
			// common free-mail provider
			EmailDomain: ScoreEmailDomainSignal(DomainClassCommonFree),
			Behavioral: ScoreBehavioralSignal(&BehavioralTelemetry{
				CompletionSeconds: floatPtr(45),
				FocusEvents:       intPtr(8),
				PointerMoved:      boolPtr(true),
				KeystrokeVariance: floatPtr(60),
			}),
			Device: ScoreDeviceSignal(&DeviceFingerprint{Components: cleanFingerprintComponents()}),
		}

		score := combiner.Combine(signals)
		if score.Total != 0.02 {
			t.Errorf("unexpected total %v, want 0.02", score.Total)
		}
		level, action := classifier.Classify(score.Total)
		if level != RiskLevelLow || action != ActionAllow {
			t.Errorf("unexpected classification %s/%s", level, action)
		}
	})

	t.Run("suspicious user", func(t *testing.T) {
		signals := SignalSet{
			Bot:         ScoreBotSignal(floatPtr(0.6)),
			Address:     ScoreAddressSignal(&AddressReputation{FraudScore: 60}),
			EmailDomain: ScoreEmailDomainSignal(DomainClassDisposable),
			Behavioral: ScoreBehavioralSignal(&BehavioralTelemetry{
				CompletionSeconds: floatPtr(4),
				FocusEvents:       intPtr(5),
				PointerMoved:      boolPtr(true),
				KeystrokeVariance: floatPtr(35),
			}),
			Device: ScoreDeviceSignal(&DeviceFingerprint{Components: cleanFingerprintComponents()}),
		}

		score := combiner.Combine(signals)
		if score.Total != 0.445 {
			t.Errorf("unexpected total %v, want 0.445", score.Total)
		}
		level, action := classifier.Classify(score.Total)
		if level != RiskLevelMedium || action != ActionChallenge {
			t.Errorf("unexpected classification %s/%s", level, action)
		}
	})

	t.Run("bot attack", func(t *testing.T) {
		signals := SignalSet{
			Bot: ScoreBotSignal(floatPtr(0.2)),
			// datacenter address with a high fraud score
			Address:     SignalResult{Risk: 0.9},
			EmailDomain: ScoreEmailDomainSignal(DomainClassDisposable),
			Behavioral: ScoreBehavioralSignal(&BehavioralTelemetry{
				CompletionSeconds: floatPtr(0.8),
				FocusEvents:       intPtr(0),
				PointerMoved:      boolPtr(true),
				KeystrokeVariance: floatPtr(30),
			}),
			Device: ScoreDeviceSignal(&DeviceFingerprint{Components: map[string]interface{}{
				"userAgent": "Mozilla/5.0 (X11; Linux x86_64) HeadlessChrome/119.0",
				"platform":  "Linux x86_64",
				"languages": []interface{}{"en-US"},
				"timezone":  "UTC",
				"screen":    map[string]interface{}{"width": 1920.0, "height": 1080.0},
				"canvas":    "c29tZS1jYW52YXMtaGFzaA",
				"webgl":     "U3dpZnRTaGFkZXI",
				"audio":     "124.04347527516074",
			}}),
		}

		score := combiner.Combine(signals)
		if score.Total != 0.91 {
			t.Errorf("unexpected total %v, want 0.91", score.Total)
		}
		level, action := classifier.Classify(score.Total)
		if level != RiskLevelCritical || action != ActionBlock {
			t.Errorf("unexpected classification %s/%s", level, action)
		}
	})
}
