package usecase_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dreiseu/ai-weather-insights-agent/internal/domain"
	"github.com/dreiseu/ai-weather-insights-agent/internal/usecase"
)

type mockAdviceClient struct {
	mock.Mock
}

func (m *mockAdviceClient) Generate(ctx context.Context, messages []domain.Message, maxTokens int) (*domain.LLMResponse, error) {
	args := m.Called(ctx, messages, maxTokens)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.LLMResponse), args.Error(1)
}

func (m *mockAdviceClient) Version() string { return "advice:test" }

func (m *mockAdviceClient) Ping(ctx context.Context) error { return nil }

func newSynthesizer(generator, summarizer domain.LLMClient) usecase.AdviceSynthesizer {
	return usecase.NewAdviceSynthesizer(
		generator,
		summarizer,
		usecase.NewXMLAdvicePromptBuilder(),
		usecase.NewAdviceValidator(),
		512,
		nil,
	)
}

const stormAdviceJSON = `{
  "recommendations": [
    {
      "title": "Secure the roof and windows",
      "action": "Tie down loose roofing sheets and brace shutters before the storm arrives.",
      "reason": "Strong winds can turn loose material into projectiles.",
      "priority": "critical",
      "timing": "immediate",
      "resources_needed": ["rope", "plywood"]
    },
    {
      "title": "Charge phones and lights",
      "action": "Top up power banks and battery lamps while electricity is stable.",
      "reason": "Outages are likely once the storm makes landfall.",
      "priority": "high",
      "timing": "today",
      "resources_needed": []
    }
  ],
  "note": ""
}`

const stormSummaryJSON = `{"summary": "A severe storm is approaching: secure the roof and windows immediately, then charge phones and lights while power holds. Stay indoors once conditions deteriorate."}`

func TestAdviceSynthesizer_Execute_GeneratesPerSignal(t *testing.T) {
	generator := new(mockAdviceClient)
	summarizer := new(mockAdviceClient)
	signal := stormSignal()

	generator.On("Generate", mock.Anything, mock.Anything, 512).
		Return(&domain.LLMResponse{Text: stormAdviceJSON, Done: true}, nil).Once()
	summarizer.On("Generate", mock.Anything, mock.Anything, 512).
		Return(&domain.LLMResponse{Text: stormSummaryJSON, Done: true}, nil).Once()

	out, err := newSynthesizer(generator, summarizer).Execute(context.Background(), usecase.SynthesizeInput{
		Location: "San Miguel",
		Audience: "general",
		Signals:  []domain.RiskSignal{signal},
		Passages: [][]domain.KnowledgePassage{{
			{Text: "Secure loose roofing before high winds.", RelevanceScore: 0.9, SourceTag: "storm-prep"},
		}},
	})

	require.NoError(t, err)
	require.Len(t, out.Recommendations, 2)

	first := out.Recommendations[0]
	assert.Equal(t, "Secure the roof and windows", first.Title)
	assert.Equal(t, domain.PriorityHigh, first.Priority, "critical proposal must clamp to the high-severity ceiling")
	assert.Equal(t, domain.TimingImmediate, first.Timing)
	assert.Equal(t, "general", first.TargetAudience)

	second := out.Recommendations[1]
	assert.Equal(t, domain.PriorityHigh, second.Priority)
	assert.Equal(t, "general", second.TargetAudience)

	assert.Contains(t, out.Summary, "secure the roof and windows")
	require.Len(t, out.RiskAlerts, 1)
	assert.Equal(t, signal.Alert(), out.RiskAlerts[0])

	generator.AssertExpectations(t)
	summarizer.AssertExpectations(t)
}

func TestAdviceSynthesizer_Execute_TemplateOnSchemaViolation(t *testing.T) {
	generator := new(mockAdviceClient)
	summarizer := new(mockAdviceClient)
	signal := stormSignal()

	generator.On("Generate", mock.Anything, mock.Anything, 512).
		Return(&domain.LLMResponse{Text: "I cannot help with that request.", Done: true}, nil).Once()
	summarizer.On("Generate", mock.Anything, mock.Anything, 512).
		Return(nil, errors.New("read timeout")).Twice()

	out, err := newSynthesizer(generator, summarizer).Execute(context.Background(), usecase.SynthesizeInput{
		Location: "San Miguel",
		Audience: "farmers",
		Signals:  []domain.RiskSignal{signal},
		Passages: [][]domain.KnowledgePassage{nil},
	})

	require.NoError(t, err)
	require.Len(t, out.Recommendations, 1)

	rec := out.Recommendations[0]
	assert.Equal(t, "Protect crops and livestock before the storm", rec.Title)
	assert.Equal(t, signal.Evidence, rec.Reason)
	assert.Equal(t, domain.PriorityHigh, rec.Priority)
	assert.Equal(t, domain.TimingToday, rec.Timing)
	assert.Equal(t, "farmers", rec.TargetAudience)
	assert.NotEmpty(t, rec.ResourcesNeeded)

	assert.Contains(t, out.Summary, "storm (high)")
	assert.Contains(t, out.Summary, rec.Title)

	generator.AssertExpectations(t)
	summarizer.AssertExpectations(t)
}

func TestAdviceSynthesizer_Execute_ProviderUnavailableAborts(t *testing.T) {
	generator := new(mockAdviceClient)
	summarizer := new(mockAdviceClient)

	generator.On("Generate", mock.Anything, mock.Anything, 512).
		Return(nil, &domain.ProviderUnavailableError{Provider: "ollama", Cause: errors.New("connection refused")}).Once()

	out, err := newSynthesizer(generator, summarizer).Execute(context.Background(), usecase.SynthesizeInput{
		Location: "San Miguel",
		Audience: "general",
		Signals:  []domain.RiskSignal{stormSignal()},
	})

	require.Error(t, err)
	assert.Nil(t, out)
	assert.True(t, domain.IsProviderUnavailable(err))
	summarizer.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything, mock.Anything)
}

func TestAdviceSynthesizer_Execute_BaselineWhenNoSignals(t *testing.T) {
	t.Run("generated baseline is forced to low priority", func(t *testing.T) {
		generator := new(mockAdviceClient)
		summarizer := new(mockAdviceClient)

		baselineJSON := `{"recommendations": [{"title": "Air out stored grain", "action": "Use the dry spell to sun-dry stored grain and restock supplies.", "reason": "Stable conditions ahead.", "priority": "medium", "timing": "this_week", "resources_needed": []}]}`
		generator.On("Generate", mock.Anything, mock.Anything, 512).
			Return(&domain.LLMResponse{Text: baselineJSON, Done: true}, nil).Once()
		summarizer.On("Generate", mock.Anything, mock.Anything, 512).
			Return(&domain.LLMResponse{Text: `{"summary": "Calm days ahead: air out stored grain and restock supplies this week while conditions stay dry."}`, Done: true}, nil).Once()

		out, err := newSynthesizer(generator, summarizer).Execute(context.Background(), usecase.SynthesizeInput{
			Location: "San Miguel",
			Audience: "farmers",
		})

		require.NoError(t, err)
		require.Len(t, out.Recommendations, 1)
		assert.Equal(t, "Air out stored grain", out.Recommendations[0].Title)
		assert.Equal(t, domain.PriorityLow, out.Recommendations[0].Priority)
		assert.Equal(t, "farmers", out.Recommendations[0].TargetAudience)
		assert.Empty(t, out.RiskAlerts)
	})

	t.Run("transport failure falls back to template without aborting", func(t *testing.T) {
		generator := new(mockAdviceClient)
		summarizer := new(mockAdviceClient)

		generator.On("Generate", mock.Anything, mock.Anything, 512).
			Return(nil, &domain.ProviderUnavailableError{Provider: "ollama", Cause: errors.New("connection refused")}).Once()
		summarizer.On("Generate", mock.Anything, mock.Anything, 512).
			Return(nil, errors.New("connection refused")).Twice()

		out, err := newSynthesizer(generator, summarizer).Execute(context.Background(), usecase.SynthesizeInput{
			Location: "San Miguel",
			Audience: "general",
		})

		require.NoError(t, err)
		require.Len(t, out.Recommendations, 1)
		assert.Equal(t, "No weather hazards expected", out.Recommendations[0].Title)
		assert.Equal(t, domain.PriorityLow, out.Recommendations[0].Priority)
		assert.Contains(t, out.Summary, "look stable")
	})
}

func TestAdviceSynthesizer_Execute_SummaryRegeneratedWhenInconsistent(t *testing.T) {
	generator := new(mockAdviceClient)
	summarizer := new(mockAdviceClient)

	generator.On("Generate", mock.Anything, mock.Anything, 512).
		Return(&domain.LLMResponse{Text: stormAdviceJSON, Done: true}, nil).Once()

	// First summary names flooding, a hazard the analysis never raised.
	summarizer.On("Generate", mock.Anything, mock.Anything, 512).
		Return(&domain.LLMResponse{Text: `{"summary": "Flooding is expected; secure the roof and windows and charge phones and lights."}`, Done: true}, nil).Once()
	summarizer.On("Generate", mock.Anything, mock.Anything, 512).
		Return(&domain.LLMResponse{Text: stormSummaryJSON, Done: true}, nil).Once()

	out, err := newSynthesizer(generator, summarizer).Execute(context.Background(), usecase.SynthesizeInput{
		Location: "San Miguel",
		Audience: "general",
		Signals:  []domain.RiskSignal{stormSignal()},
	})

	require.NoError(t, err)
	assert.Contains(t, out.Summary, "Stay indoors")
	assert.NotContains(t, out.Summary, "Flooding")
	summarizer.AssertNumberOfCalls(t, "Generate", 2)
}

func TestAdviceSynthesizer_Execute_MixedSignalsKeepValidAndSubstitute(t *testing.T) {
	generator := new(mockAdviceClient)
	summarizer := new(mockAdviceClient)

	floodSignal := domain.RiskSignal{
		Kind:      domain.RiskFlood,
		Severity:  domain.SeverityMedium,
		Evidence:  "rainfall at or above 15 mm per 3 hours for 2 consecutive steps",
		Timeframe: domain.TimeframeToday,
	}

	generator.On("Generate", mock.Anything, mock.Anything, 512).
		Return(&domain.LLMResponse{Text: stormAdviceJSON, Done: true}, nil).Once()
	generator.On("Generate", mock.Anything, mock.Anything, 512).
		Return(&domain.LLMResponse{Text: `{"recommendations": []}`, Done: true}, nil).Once()
	summarizer.On("Generate", mock.Anything, mock.Anything, 512).
		Return(&domain.LLMResponse{Text: `{"summary": "A storm with flooding risk is coming: secure the roof and windows, charge phones and lights, and prepare for possible flooding in low-lying areas."}`, Done: true}, nil).Once()

	// Passages deliberately shorter than the signal list.
	out, err := newSynthesizer(generator, summarizer).Execute(context.Background(), usecase.SynthesizeInput{
		Location: "San Miguel",
		Audience: "general",
		Signals:  []domain.RiskSignal{stormSignal(), floodSignal},
		Passages: [][]domain.KnowledgePassage{{
			{Text: "Secure loose roofing before high winds.", RelevanceScore: 0.9, SourceTag: "storm-prep"},
		}},
	})

	require.NoError(t, err)
	require.Len(t, out.Recommendations, 3)
	assert.Equal(t, "Secure the roof and windows", out.Recommendations[0].Title)
	assert.Equal(t, "Charge phones and lights", out.Recommendations[1].Title)
	assert.Equal(t, "Prepare for possible flooding", out.Recommendations[2].Title)
	assert.Equal(t, domain.PriorityMedium, out.Recommendations[2].Priority)

	require.Len(t, out.RiskAlerts, 2)
	assert.Contains(t, out.RiskAlerts[0], "HIGH: storm risk")
	assert.Contains(t, out.RiskAlerts[1], "MEDIUM: flood risk")

	generator.AssertExpectations(t)
	summarizer.AssertExpectations(t)
}
