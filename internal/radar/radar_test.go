package radar

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"hik-access-bridge/internal/device"
	"hik-access-bridge/internal/device/devicetest"
	"hik-access-bridge/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// scriptedSearcher answers call i with script[i], repeating the last entry.
type scriptedSearcher struct {
	mu     sync.Mutex
	script []searchResult
	calls  int
}

type searchResult struct {
	events []models.DeviceEvent
	err    error
}

func (s *scriptedSearcher) SearchEvents(ctx context.Context, _ device.EventQuery) ([]models.DeviceEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.calls
	s.calls++
	if i >= len(s.script) {
		i = len(s.script) - 1
	}
	return s.script[i].events, s.script[i].err
}

func (s *scriptedSearcher) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func ev(minor int, at, picture string) models.DeviceEvent {
	return models.DeviceEvent{Major: 5, Minor: minor, RawTime: at, PictureURL: picture}
}

var errNetwork = errors.New("device event.search: device unreachable")

func fastOptions() Options {
	return Options{Attempts: 5, Delay: 20 * time.Millisecond}
}

func TestWait_TimesOutAfterBudget(t *testing.T) {
	searcher := &scriptedSearcher{script: []searchResult{
		{events: []models.DeviceEvent{ev(75, "t1", "pic1")}},
	}}
	r := New(searcher, fastOptions(), zap.NewNop())

	start := time.Now()
	_, err := r.Wait(context.Background())
	elapsed := time.Since(start)

	require.ErrorIs(t, err, ErrTimeout)
	assert.GreaterOrEqual(t, elapsed, r.Budget())
	assert.Less(t, elapsed, r.Budget()+time.Second)
	assert.Equal(t, 1+5, searcher.Calls())
}

func TestWait_ReturnsFirstNewEvent(t *testing.T) {
	old := ev(75, "2024-01-01T08:00:00", "pic1")
	fresh := ev(76, "2024-01-01T08:00:05", "pic2")
	searcher := &scriptedSearcher{script: []searchResult{
		{events: []models.DeviceEvent{old}},
		{events: []models.DeviceEvent{old}},
		{events: []models.DeviceEvent{fresh, old}},
	}}
	r := New(searcher, fastOptions(), zap.NewNop())

	got, err := r.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, fresh, got)
	assert.Equal(t, 3, searcher.Calls())
}

func TestWait_EmptyLogThenFirstEvent(t *testing.T) {
	fresh := ev(9, "2024-01-01T08:00:05", "")
	searcher := &scriptedSearcher{script: []searchResult{
		{events: nil},
		{events: []models.DeviceEvent{fresh}},
	}}
	r := New(searcher, fastOptions(), zap.NewNop())

	got, err := r.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 9, got.Minor)
}

func TestWait_CodeMatchIgnoresOtherEvents(t *testing.T) {
	base := ev(76, "t0", "pic0")
	searcher := &scriptedSearcher{script: []searchResult{
		{events: []models.DeviceEvent{base}},
		{events: []models.DeviceEvent{ev(75, "t1", "pic1"), base}},
		{events: []models.DeviceEvent{ev(76, "t2", "pic2"), ev(75, "t1", "pic1"), base}},
	}}
	opts := fastOptions()
	opts.Match = MatchCode(76)
	r := New(searcher, opts, zap.NewNop())

	got, err := r.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "pic2", got.PictureURL)
}

func TestWait_NetworkErrorsAreSkipped(t *testing.T) {
	base := ev(75, "t0", "pic0")
	searcher := &scriptedSearcher{script: []searchResult{
		{events: []models.DeviceEvent{base}},
		{err: errNetwork},
		{err: errNetwork},
		{events: []models.DeviceEvent{ev(75, "t1", "pic1"), base}},
	}}
	r := New(searcher, fastOptions(), zap.NewNop())

	got, err := r.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "pic1", got.PictureURL)
}

func TestWait_FailedBaselineIsTakenFromFirstGoodAnswer(t *testing.T) {
	base := ev(75, "t0", "pic0")
	searcher := &scriptedSearcher{script: []searchResult{
		{err: errNetwork},
		{events: []models.DeviceEvent{base}},
		{events: []models.DeviceEvent{base}},
		{events: []models.DeviceEvent{ev(75, "t1", "pic1"), base}},
	}}
	r := New(searcher, fastOptions(), zap.NewNop())

	got, err := r.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "pic1", got.PictureURL, "an event that predates the wait is not reported")
}

func TestWait_CancellationStopsPolling(t *testing.T) {
	searcher := &scriptedSearcher{script: []searchResult{{events: nil}}}
	opts := Options{Attempts: 100, Delay: 20 * time.Millisecond}
	r := New(searcher, opts, zap.NewNop())

	ctx, cancel := context.WithTimeout(context.Background(), 70*time.Millisecond)
	defer cancel()

	_, err := r.Wait(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.NotErrorIs(t, err, ErrTimeout)

	calls := searcher.Calls()
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, calls, searcher.Calls(), "no queries after cancellation")
	assert.Less(t, calls, 10)
}

func TestWait_IdentifierWithoutPicture(t *testing.T) {
	assert.Equal(t, "76@2024-01-01T08:00:00", identify(ev(76, "2024-01-01T08:00:00", "")))
	assert.Equal(t, "http://dev/pic", identify(ev(76, "2024-01-01T08:00:00", "http://dev/pic")))

	withSerial := ev(76, "2024-01-01T08:00:00", "")
	withSerial.SerialNo = 101
	assert.Equal(t, "serial:101", identify(withSerial))
}

func TestWait_AgainstFakeDevice(t *testing.T) {
	fake := devicetest.NewServer()
	defer fake.Close()
	fake.AddEvent(devicetest.Event{Major: 5, Minor: 76, Time: "2024-01-01T08:00:00-05:00", PictureURL: "http://dev/pic/1"})

	client := device.NewClient(device.Options{BaseURL: fake.URL}, zap.NewNop())
	opts := fastOptions()
	opts.Attempts = 50
	opts.Match = MatchCode(76)
	r := New(client, opts, zap.NewNop())

	go func() {
		time.Sleep(60 * time.Millisecond)
		fake.AddEvent(devicetest.Event{Major: 5, Minor: 75, Time: "2024-01-01T08:00:10-05:00", PictureURL: "http://dev/pic/2"})
		fake.AddEvent(devicetest.Event{Major: 5, Minor: 76, Time: "2024-01-01T08:00:20-05:00", PictureURL: "http://dev/pic/3"})
	}()

	got, err := r.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "http://dev/pic/3", got.PictureURL)
	assert.Equal(t, 76, got.Minor)
}

func TestWait_NewEventInBaselineSecond(t *testing.T) {
	fake := devicetest.NewServer()
	defer fake.Close()
	fake.AddEvent(devicetest.Event{Major: 5, Minor: 1, Time: "2024-01-01T08:00:00-05:00", PictureURL: "pic-door", SerialNo: 100})

	client := device.NewClient(device.Options{BaseURL: fake.URL}, zap.NewNop())
	opts := fastOptions()
	opts.Attempts = 50
	r := New(client, opts, zap.NewNop())

	go func() {
		time.Sleep(60 * time.Millisecond)
		fake.AddEvent(devicetest.Event{Major: 5, Minor: 76, Time: "2024-01-01T08:00:00-05:00", PictureURL: "pic-face", SerialNo: 101})
	}()

	got, err := r.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "pic-face", got.PictureURL)
	assert.Equal(t, 76, got.Minor)
	assert.Equal(t, int64(101), got.SerialNo)
}
