package browser

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultOptions(t *testing.T) {
	opts := DefaultOptions()

	assert.True(t, opts.Headless)
	assert.Equal(t, 30*time.Second, opts.Timeout)
	assert.Equal(t, 1920, opts.ViewportWidth)
	assert.Equal(t, 1080, opts.ViewportHeight)
	assert.Equal(t, "de-CH", opts.Locale)
	assert.Equal(t, EnginePlaywright, opts.Engine)
	assert.Equal(t, SettleIdle, opts.Settle)
}

func TestParseEngine(t *testing.T) {
	tests := []struct {
		input    string
		expected Engine
		wantErr  bool
	}{
		{"", EnginePlaywright, false},
		{"playwright", EnginePlaywright, false},
		{" ROD ", EngineRod, false},
		{"selenium", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			engine, err := ParseEngine(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, engine)
		})
	}
}

func TestParseSettleStrategy(t *testing.T) {
	s, err := ParseSettleStrategy("fixed")
	require.NoError(t, err)
	assert.Equal(t, SettleFixed, s)

	s, err = ParseSettleStrategy("")
	require.NoError(t, err)
	assert.Equal(t, SettleIdle, s)

	_, err = ParseSettleStrategy("forever")
	assert.Error(t, err)
}

func TestNewLauncher(t *testing.T) {
	logger := slog.Default()

	l, err := NewLauncher(&Options{Engine: EnginePlaywright}, logger)
	require.NoError(t, err)
	assert.IsType(t, &PlaywrightLauncher{}, l)

	l, err = NewLauncher(&Options{Engine: EngineRod}, logger)
	require.NoError(t, err)
	assert.IsType(t, &RodLauncher{}, l)

	_, err = NewLauncher(&Options{Engine: "lynx"}, logger)
	assert.Error(t, err)
}

func TestSleepCtx(t *testing.T) {
	assert.NoError(t, sleepCtx(context.Background(), 5*time.Millisecond))
	assert.NoError(t, sleepCtx(context.Background(), -time.Second))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	start := time.Now()
	err := sleepCtx(ctx, time.Minute)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), time.Second)
}

func TestBoundedTimeout(t *testing.T) {
	assert.Equal(t, time.Minute, boundedTimeout(context.Background(), time.Minute))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	assert.LessOrEqual(t, boundedTimeout(ctx, time.Minute), 50*time.Millisecond)
	assert.Equal(t, time.Millisecond, boundedTimeout(ctx, time.Millisecond))

	expired, cancel2 := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel2()
	assert.Equal(t, time.Duration(0), boundedTimeout(expired, time.Minute))
}

func TestLaunchHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewPlaywrightLauncher(DefaultOptions(), slog.Default()).Launch(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestOptionIndex(t *testing.T) {
	values := []string{"", "12", `Mango\Ice`, "Grüner Apfel"}

	assert.Equal(t, 2, optionIndex(values, `Mango\Ice`))
	assert.Equal(t, 3, optionIndex(values, "Grüner Apfel"))
	assert.Equal(t, 0, optionIndex(values, ""))
	assert.Equal(t, -1, optionIndex(values, "6"))
}
