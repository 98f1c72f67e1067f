package app

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/ayusman/mingshan/internal/capture"
	"github.com/ayusman/mingshan/internal/detector"
	"github.com/ayusman/mingshan/internal/gesture"
	"github.com/ayusman/mingshan/internal/session"
	"github.com/ayusman/mingshan/internal/store"
)

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func frames(n int) []capture.MockFrame {
	ts := make([]int64, n)
	for i := range ts {
		ts[i] = int64(i+1) * 33
	}
	return capture.Timestamps(ts...)
}

func TestApp_GesturePipeline(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	s := testStore(t)
	cam := capture.NewMockCamera(frames(1000), false)
	det := detector.NewMockDetector()
	det.SetHands([]detector.HandLandmarks{detector.OpenHandLandmarks(0.25)})

	a := newTestApp(t, Config{Store: s, Camera: cam, Detector: det, CaptureFPS: 200})

	var mu sync.Mutex
	var statuses []string
	var kinds []gesture.Kind
	a.OnStatus(func(_ session.State, status string) {
		mu.Lock()
		defer mu.Unlock()
		statuses = append(statuses, status)
	})
	a.OnGesture(func(k gesture.Kind) {
		mu.Lock()
		defer mu.Unlock()
		kinds = append(kinds, k)
	})

	if err := a.SetGestureEnabled(true); err != nil {
		t.Fatalf("SetGestureEnabled(true) error = %v", err)
	}
	if !s.Settings().GetBool(store.SettingGestureEnabled, false) {
		t.Error("enabling should be persisted")
	}

	waitFor(t, "OPEN targets", func() bool {
		tg := a.Controller().Targets()
		return tg.Disperse && tg.HasRotation
	})
	if rot := a.Controller().Targets().Rotation; math.Abs(rot-1.5) > 1e-9 {
		t.Errorf("rotation target = %v, want 1.5", rot)
	}

	snap := a.Step(time.Second / 60)
	if snap.Status != "Ready" || snap.State != session.Running || !snap.GestureEnabled {
		t.Errorf("snapshot = %+v", snap)
	}
	if snap.Gesture != gesture.KindOpen || snap.MarkersVisible {
		t.Errorf("snapshot gesture = %v, markers = %v", snap.Gesture, snap.MarkersVisible)
	}

	if err := a.SetGestureEnabled(false); err != nil {
		t.Fatalf("SetGestureEnabled(false) error = %v", err)
	}
	if cam.IsOpen() {
		t.Error("camera should be closed after disabling")
	}
	if tg := a.Controller().Targets(); tg.Disperse || tg.HasRotation {
		t.Errorf("targets after disable = %+v, want idle", tg)
	}
	if s.Settings().GetBool(store.SettingGestureEnabled, true) {
		t.Error("disabling should be persisted")
	}

	mu.Lock()
	defer mu.Unlock()
	want := []string{"Loading AI Model…", "Accessing Camera…", "Ready", "Stopped"}
	if len(statuses) != len(want) {
		t.Fatalf("statuses = %v, want %v", statuses, want)
	}
	for i := range want {
		if statuses[i] != want[i] {
			t.Errorf("statuses[%d] = %q, want %q", i, statuses[i], want[i])
		}
	}
	if len(kinds) != 1 || kinds[0] != gesture.KindOpen {
		t.Errorf("gesture changes = %v, want [OPEN]", kinds)
	}
}

func TestApp_CameraError(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	cam := capture.NewMockCamera(frames(10), false)
	cam.SetOpenError(errors.New("no device"))
	det := detector.NewMockDetector()

	a := newTestApp(t, Config{Camera: cam, Detector: det})

	err := a.SetGestureEnabled(true)
	var rerr *session.ResourceError
	if !errors.As(err, &rerr) || rerr.Kind != session.KindCamera {
		t.Fatalf("SetGestureEnabled() error = %v, want camera ResourceError", err)
	}

	// The scene keeps rendering.
	snap := a.Step(time.Second / 60)
	if snap.Status != "Camera Error" {
		t.Errorf("Status = %q, want Camera Error", snap.Status)
	}
	if snap.Frame != 1 {
		t.Errorf("Frame = %d, want 1", snap.Frame)
	}
}

func TestApp_Run(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	cam := capture.NewMockCamera(frames(1000), false)
	det := detector.NewMockDetector()
	det.SetHands([]detector.HandLandmarks{detector.FistLandmarks(0.5)})

	a := newTestApp(t, Config{Camera: cam, Detector: det, CaptureFPS: 200, RenderFPS: 200, GestureEnabled: true})

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- a.Run(ctx) }()

	waitFor(t, "session running", func() bool { return a.Session().State() == session.Running })
	waitFor(t, "frames rendered", func() bool { return a.Snapshot().Frame > 5 })
	waitFor(t, "fist recognised", func() bool { return a.Snapshot().Gesture == gesture.KindFist })

	cancel()
	select {
	case err := <-errc:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Run() error = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run() did not return after cancel")
	}

	a.Close()
	if cam.IsOpen() {
		t.Error("camera should be closed after Close")
	}
	if det.Closes() == 0 {
		t.Error("detector should be closed after Close")
	}
}
