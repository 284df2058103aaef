package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/dokzlo13/gixiebright/internal/clock"
	"github.com/dokzlo13/gixiebright/internal/config"
	"github.com/dokzlo13/gixiebright/internal/geo"
)

// fakeDevice is an in-memory clock
type fakeDevice struct {
	level    uint8
	getErr   error
	rejectAt int // 1-based Set call the device refuses

	sets   []uint8
	closed bool
}

func (d *fakeDevice) Get(ctx context.Context) (uint8, error) {
	if d.getErr != nil {
		return 0, d.getErr
	}
	return d.level, nil
}

func (d *fakeDevice) Set(ctx context.Context, value uint8) (bool, error) {
	d.sets = append(d.sets, value)
	if d.rejectAt > 0 && len(d.sets) == d.rejectAt {
		return false, nil
	}
	d.level = value
	return true, nil
}

func (d *fakeDevice) Close() error {
	d.closed = true
	return nil
}

func testConfig() *config.Config {
	return &config.Config{
		Coord: config.CoordConfig{Latitude: 52.37, Longitude: 4.89, Provider: config.ProviderSunrise},
		Clock: config.ClockConfig{
			Timezone: 2,
			Server:   "ws://clock.invalid:81",
			DateFmt:  config.DefaultDateFmt,
			Timeout:  config.Duration(time.Second),
		},
		Brightness: config.BrightnessConfig{Min: 10, Max: 200, Step: 50, Num: 0},
	}
}

// Amsterdam, midsummer, at the given local (UTC+2) hour
func midsummer(hour int) func() time.Time {
	return func() time.Time {
		return time.Date(2024, time.June, 21, hour, 0, 0, 0, time.FixedZone("", 2*3600))
	}
}

func newTestApp(t *testing.T, cfg *config.Config, now func() time.Time, dev *fakeDevice) (*App, *bytes.Buffer) {
	t.Helper()
	var out bytes.Buffer
	a, err := NewWithClock(cfg, &out, now)
	if err != nil {
		t.Fatalf("NewWithClock() error = %v", err)
	}
	a.dial = func(ctx context.Context, cfg *config.Config) (Device, error) {
		if dev == nil {
			return nil, errors.New("dial should not happen")
		}
		return dev, nil
	}
	return a, &out
}

func TestGet(t *testing.T) {
	dev := &fakeDevice{level: 77}
	a, out := newTestApp(t, testConfig(), midsummer(12), dev)

	if err := a.Get(context.Background()); err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got := out.String(); got != "77\n" {
		t.Errorf("output = %q, want %q", got, "77\n")
	}
	if !dev.closed {
		t.Error("connection was not closed")
	}
}

func TestGet_ErrorClosesConnection(t *testing.T) {
	dev := &fakeDevice{getErr: clock.ErrMissingData}
	a, out := newTestApp(t, testConfig(), midsummer(12), dev)

	if err := a.Get(context.Background()); !errors.Is(err, clock.ErrMissingData) {
		t.Fatalf("Get() error = %v, want ErrMissingData", err)
	}
	if out.Len() != 0 {
		t.Errorf("output = %q, want nothing", out.String())
	}
	if !dev.closed {
		t.Error("connection was not closed")
	}
}

func TestSet(t *testing.T) {
	tests := []struct {
		name     string
		start    uint8
		value    uint8
		smooth   bool
		rejectAt int
		wantSets []uint8
	}{
		{"direct", 10, 150, false, 0, []uint8{150}},
		{"direct_rejected", 10, 150, false, 1, []uint8{150}},
		{"smooth_up", 10, 150, true, 0, []uint8{10, 60, 110, 150}},
		{"smooth_down", 200, 0, true, 0, []uint8{200, 150, 100, 50, 0}},
		{"smooth_unchanged", 80, 80, true, 0, nil},
		{"smooth_rejected", 10, 150, true, 2, []uint8{10, 60}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dev := &fakeDevice{level: tt.start, rejectAt: tt.rejectAt}
			a, _ := newTestApp(t, testConfig(), midsummer(12), dev)

			if err := a.Set(context.Background(), tt.value, tt.smooth); err != nil {
				t.Fatalf("Set() error = %v, want nil", err)
			}
			if !slices.Equal(dev.sets, tt.wantSets) {
				t.Errorf("device writes = %v, want %v", dev.sets, tt.wantSets)
			}
			if !dev.closed {
				t.Error("connection was not closed")
			}
		})
	}
}

func TestSunInfo(t *testing.T) {
	cfg := testConfig()
	cfg.Clock.DateFmt = "%Y-%m-%d"
	a, out := newTestApp(t, cfg, midsummer(12), nil)

	if err := a.SunInfo(context.Background()); err != nil {
		t.Fatalf("SunInfo() error = %v", err)
	}
	want := "sunrise: 2024-06-21\n sunset: 2024-06-21\n"
	if got := out.String(); got != want {
		t.Errorf("output = %q, want %q", got, want)
	}
}

func TestSunInfo_DefaultFormat(t *testing.T) {
	a, out := newTestApp(t, testConfig(), midsummer(12), nil)

	if err := a.SunInfo(context.Background()); err != nil {
		t.Fatalf("SunInfo() error = %v", err)
	}
	lines := strings.Split(strings.TrimSuffix(out.String(), "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("output = %q, want two lines", out.String())
	}
	for i, prefix := range []string{"sunrise: 2024-06-21 0", " sunset: 2024-06-21 2"} {
		if !strings.HasPrefix(lines[i], prefix) {
			t.Errorf("line %d = %q, want prefix %q", i, lines[i], prefix)
		}
	}
}

func TestAuto(t *testing.T) {
	tests := []struct {
		name     string
		hour     int
		start    uint8
		wantSets []uint8
		wantEnd  uint8
	}{
		{"night_dims", 2, 200, []uint8{160, 110, 60, 10}, 10},
		{"day_brightens", 13, 10, []uint8{10, 60, 110, 160, 200}, 200},
		{"evening_dims", 23, 200, []uint8{160, 110, 60, 10}, 10},
		{"already_there", 13, 200, nil, 200},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dev := &fakeDevice{level: tt.start}
			a, _ := newTestApp(t, testConfig(), midsummer(tt.hour), dev)

			if err := a.Auto(context.Background()); err != nil {
				t.Fatalf("Auto() error = %v", err)
			}
			if !slices.Equal(dev.sets, tt.wantSets) {
				t.Errorf("device writes = %v, want %v", dev.sets, tt.wantSets)
			}
			if dev.level != tt.wantEnd {
				t.Errorf("final brightness = %d, want %d", dev.level, tt.wantEnd)
			}
			if !dev.closed {
				t.Error("connection was not closed")
			}
		})
	}
}

func TestAuto_SunErrorBeforeConnecting(t *testing.T) {
	cfg := testConfig()
	cfg.Clock.Timezone = 40
	a, _ := newTestApp(t, cfg, midsummer(12), nil)

	if err := a.Auto(context.Background()); !errors.Is(err, geo.ErrTimezone) {
		t.Errorf("Auto() error = %v, want ErrTimezone", err)
	}
}

func TestNew_UnknownProvider(t *testing.T) {
	cfg := testConfig()
	cfg.Coord.Provider = "moon"
	if _, err := New(cfg, &bytes.Buffer{}); err == nil {
		t.Error("New() error = nil, want unknown provider error")
	}
}

// TestAuto_OverWebSocket drives the real clock connection against a fake display.
func TestAuto_OverWebSocket(t *testing.T) {
	var (
		mu    sync.Mutex
		level uint8 = 200
		sets  []uint8
	)

	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		_ = conn.WriteMessage(websocket.TextMessage, []byte(""))
		_ = conn.WriteMessage(websocket.TextMessage, []byte("Connected"))

		for {
			var req clock.Request
			if err := conn.ReadJSON(&req); err != nil {
				return
			}
			resp := map[string]any{"resCode": 200, "cmdType": req.CmdType, "cmdNum": req.CmdNum, "data": nil}
			mu.Lock()
			switch req.CmdType {
			case clock.CmdGet:
				resp["data"] = level
			case clock.CmdSet:
				level = req.CmdCtx.Value
				sets = append(sets, level)
			}
			mu.Unlock()
			b, _ := json.Marshal(resp)
			if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	cfg := testConfig()
	cfg.Clock.Server = "ws" + strings.TrimPrefix(srv.URL, "http")
	var out bytes.Buffer
	a, err := NewWithClock(cfg, &out, midsummer(2))
	if err != nil {
		t.Fatalf("NewWithClock() error = %v", err)
	}

	if err := a.Auto(context.Background()); err != nil {
		t.Fatalf("Auto() error = %v", err)
	}
	// Auto returns after the last reply was read, so the handler has recorded every write
	mu.Lock()
	defer mu.Unlock()
	if want := []uint8{160, 110, 60, 10}; !slices.Equal(sets, want) {
		t.Errorf("device writes = %v, want %v", sets, want)
	}
}
