package broadcast

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dailysender/internal/content"
	"dailysender/internal/richtext"
)

type fixedGroups struct {
	group content.Group
	ok    bool
}

func (f fixedGroups) SelectRandom() (content.Group, bool) { return f.group, f.ok }

type staticRecipients struct {
	ids []int64
	err error
}

func (s staticRecipients) ListAll(context.Context) ([]int64, error) { return s.ids, s.err }

type sent struct {
	chatID  int64
	image   string
	payload Payload
}

type stubTransport struct {
	mu     sync.Mutex
	sent   []sent
	fail   map[int64]error
	panics map[int64]bool
}

func (s *stubTransport) SendText(_ context.Context, chatID int64, p Payload) error {
	return s.record(chatID, "", p)
}

func (s *stubTransport) SendImage(_ context.Context, chatID int64, path string, p Payload) error {
	return s.record(chatID, path, p)
}

func (s *stubTransport) record(chatID int64, image string, p Payload) error {
	if s.panics[chatID] {
		panic("nil map write")
	}
	if err := s.fail[chatID]; err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, sent{chatID: chatID, image: image, payload: p})
	return nil
}

func (s *stubTransport) chatIDs() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]int64, len(s.sent))
	for i, m := range s.sent {
		ids[i] = m.chatID
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func testConfig() Config {
	return Config{Location: time.UTC, Workers: 4}
}

func TestRun_FailureIsolation(t *testing.T) {
	tr := &stubTransport{
		fail:   map[int64]error{2: errors.New("Forbidden: bot was blocked by the user")},
		panics: map[int64]bool{4: true},
	}
	e := NewExecutor(
		fixedGroups{group: content.Group{Text: "hello"}, ok: true},
		staticRecipients{ids: []int64{1, 2, 3, 4, 5}},
		tr, testConfig(), nil)

	report := e.Run(context.Background())

	assert.NotEmpty(t, report.RunID)
	assert.Equal(t, 5, report.Total)
	assert.Equal(t, 3, report.Delivered)
	assert.Equal(t, 2, report.Failed)
	assert.Equal(t, 1, report.Faults)
	assert.Equal(t, []int64{1, 3, 5}, tr.chatIDs())
}

func TestRun_RendersPlaceholdersAndButtons(t *testing.T) {
	tr := &stubTransport{}
	buttons := []content.Button{{Text: "Go", URL: "https://example.com"}}
	e := NewExecutor(
		fixedGroups{group: content.Group{Text: "Hi <ce:123> there", Buttons: buttons}, ok: true},
		staticRecipients{ids: []int64{10}},
		tr, testConfig(), nil)

	e.Run(context.Background())

	require.Len(t, tr.sent, 1)
	got := tr.sent[0].payload
	assert.Equal(t, "Hi "+richtext.Joiner+" there", got.Text)
	assert.Equal(t, []richtext.Annotation{{Offset: 3, Length: 1, EmojiID: "123"}}, got.Annotations)
	assert.Equal(t, buttons, got.Buttons)
	assert.Empty(t, tr.sent[0].image)
}

func TestRun_FallbackTemplate(t *testing.T) {
	tests := []struct {
		name   string
		groups fixedGroups
	}{
		{name: "empty pool", groups: fixedGroups{}},
		{name: "blank text", groups: fixedGroups{group: content.Group{Text: "  "}, ok: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := &stubTransport{}
			cfg := testConfig()
			cfg.Template = "now {time}, again {time}"
			cfg.Location = time.FixedZone("UTC+8", 8*3600)
			e := NewExecutor(tt.groups, staticRecipients{ids: []int64{1}}, tr, cfg, nil)
			e.now = func() time.Time { return time.Date(2024, 1, 1, 1, 5, 0, 0, time.UTC) }

			e.Run(context.Background())

			require.Len(t, tr.sent, 1)
			assert.Equal(t, "now 09:05, again 09:05", tr.sent[0].payload.Text)
			assert.Nil(t, tr.sent[0].payload.Annotations)
		})
	}
}

func TestRun_DefaultTemplate(t *testing.T) {
	e := NewExecutor(fixedGroups{}, staticRecipients{}, &stubTransport{}, Config{Location: time.UTC}, nil)
	e.now = func() time.Time { return time.Date(2024, 1, 1, 15, 0, 0, 0, time.UTC) }

	p, image := e.Compose()
	assert.Equal(t, "🌞 每日提醒：现在是 15:00", p.Text)
	assert.Empty(t, image)
	assert.Empty(t, p.Buttons)
}

func TestRun_ImageResolution(t *testing.T) {
	media := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(media, "promo.jpg"), []byte("jpeg"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(media, "dir.jpg"), 0o755))

	tests := []struct {
		ref  string
		want string
	}{
		{ref: "promo.jpg", want: filepath.Join(media, "promo.jpg")},
		{ref: "../elsewhere/promo.jpg", want: filepath.Join(media, "promo.jpg")},
		{ref: "missing.jpg", want: ""},
		{ref: "dir.jpg", want: ""},
		{ref: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.ref, func(t *testing.T) {
			tr := &stubTransport{}
			cfg := testConfig()
			cfg.MediaDir = media
			e := NewExecutor(
				fixedGroups{group: content.Group{Text: "pic", ImageRef: tt.ref}, ok: true},
				staticRecipients{ids: []int64{1}},
				tr, cfg, nil)

			e.Run(context.Background())

			require.Len(t, tr.sent, 1)
			assert.Equal(t, tt.want, tr.sent[0].image)
		})
	}
}

func TestRun_ListFailureYieldsEmptyReport(t *testing.T) {
	tr := &stubTransport{}
	e := NewExecutor(fixedGroups{}, staticRecipients{err: errors.New("db down")}, tr, testConfig(), nil)

	report := e.Run(context.Background())

	assert.Zero(t, report.Total)
	assert.Zero(t, report.Delivered)
	assert.Empty(t, tr.sent)
}

func TestRun_NoRecipients(t *testing.T) {
	tr := &stubTransport{}
	e := NewExecutor(fixedGroups{}, staticRecipients{ids: []int64{}}, tr, testConfig(), nil)

	report := e.Run(context.Background())
	assert.Zero(t, report.Total)
	assert.Empty(t, tr.sent)
}

func TestRun_Sequential(t *testing.T) {
	var (
		mu       sync.Mutex
		inFlight int
		maxSeen  int
	)
	tr := &funcTransport{send: func() {
		mu.Lock()
		inFlight++
		if inFlight > maxSeen {
			maxSeen = inFlight
		}
		mu.Unlock()
		time.Sleep(2 * time.Millisecond)
		mu.Lock()
		inFlight--
		mu.Unlock()
	}}
	cfg := testConfig()
	cfg.Workers = 1
	e := NewExecutor(fixedGroups{group: content.Group{Text: "x"}, ok: true},
		staticRecipients{ids: []int64{1, 2, 3, 4, 5, 6}}, tr, cfg, nil)

	report := e.Run(context.Background())
	assert.Equal(t, 6, report.Delivered)
	assert.Equal(t, 1, maxSeen)
}

func TestRun_RateLimited(t *testing.T) {
	tr := &stubTransport{}
	cfg := testConfig()
	cfg.Rate = 100
	e := NewExecutor(fixedGroups{group: content.Group{Text: "x"}, ok: true},
		staticRecipients{ids: []int64{1, 2, 3, 4, 5, 6}}, tr, cfg, nil)

	start := time.Now()
	report := e.Run(context.Background())

	assert.Equal(t, 6, report.Delivered)
	assert.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond)
}

func TestRun_CanceledStopsDispatch(t *testing.T) {
	tr := &stubTransport{}
	cfg := testConfig()
	cfg.Rate = 1
	e := NewExecutor(fixedGroups{group: content.Group{Text: "x"}, ok: true},
		staticRecipients{ids: []int64{1, 2, 3}}, tr, cfg, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	report := e.Run(ctx)

	assert.Equal(t, 3, report.Total)
	assert.Equal(t, 1, report.Delivered, "only the burst token is spent before cancel")
}

type funcTransport struct{ send func() }

func (f *funcTransport) SendText(context.Context, int64, Payload) error {
	f.send()
	return nil
}

func (f *funcTransport) SendImage(context.Context, int64, string, Payload) error {
	f.send()
	return nil
}
