package detector

import (
	"bufio"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"sync"

	"gocv.io/x/gocv"
)

var (
	// ErrNotLoaded is returned by Detect before Load has succeeded.
	ErrNotLoaded = errors.New("hand landmark model is not loaded")
	// ErrServiceKilled is returned by Detect after a cancelled call killed
	// the service. Close and Load again to restart it.
	ErrServiceKilled = errors.New("mediapipe service was killed")
)

// MediaPipeDetector implements Detector using a Python MediaPipe subprocess
// running the hand landmarker in video mode.
//
// Wire protocol on stdin: 4-byte big-endian payload length, 8-byte big-endian
// frame timestamp in milliseconds, JPEG bytes. The service answers each frame
// with one JSON line on stdout. On startup it prints a single JSON line
// reporting whether the model loaded.
type MediaPipeDetector struct {
	config Config
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout *bufio.Reader
	mu     sync.Mutex
	loaded bool
	killed bool
}

// NewMediaPipeDetector creates a detector. The Python process is not started
// until Load is called.
func NewMediaPipeDetector(config Config) *MediaPipeDetector {
	if config.MaxHands <= 0 {
		config.MaxHands = 1
	}
	return &MediaPipeDetector{config: config}
}

// Load starts the MediaPipe service and waits for it to report that the
// hand landmarker model is ready.
func (d *MediaPipeDetector) Load(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.loaded {
		return nil
	}

	scriptPath := d.config.Script
	if scriptPath == "" {
		scriptPath = findMediaPipeScript()
	}
	if scriptPath == "" {
		return fmt.Errorf("mediapipe_service.py not found")
	}

	pythonPath := d.config.Python
	if pythonPath == "" {
		pythonPath = findVenvPython()
	}
	if pythonPath == "" {
		pythonPath = "python3"
	}

	cmd := exec.Command(pythonPath, scriptPath,
		"--max-hands", strconv.Itoa(d.config.MaxHands),
		"--min-confidence", strconv.FormatFloat(d.config.MinConfidence, 'f', -1, 64),
		"--min-tracking", strconv.FormatFloat(d.config.MinTrackingConf, 'f', -1, 64),
	)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("create stdin pipe: %w", err)
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("create stdout pipe: %w", err)
	}

	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start mediapipe service: %w", err)
	}

	reader := bufio.NewReader(stdout)
	if err := awaitReady(ctx, reader); err != nil {
		stdin.Close()
		cmd.Process.Kill()
		cmd.Wait()
		return err
	}

	d.cmd = cmd
	d.stdin = stdin
	d.stdout = reader
	d.loaded = true
	d.killed = false

	return nil
}

// awaitReady reads the startup line, giving up when ctx is cancelled.
func awaitReady(ctx context.Context, r *bufio.Reader) error {
	type result struct {
		line string
		err  error
	}
	done := make(chan result, 1)
	go func() {
		line, err := r.ReadString('\n')
		done <- result{line, err}
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("load hand landmarker: %w", ctx.Err())
	case res := <-done:
		if res.err != nil {
			return fmt.Errorf("read startup line: %w", res.err)
		}
		var ready struct {
			Ready bool   `json:"ready"`
			Error string `json:"error"`
		}
		if err := json.Unmarshal([]byte(res.line), &ready); err != nil {
			return fmt.Errorf("parse startup line: %w", err)
		}
		if !ready.Ready {
			return fmt.Errorf("hand landmarker failed to load: %s", ready.Error)
		}
		return nil
	}
}

// Detect analyzes a frame and returns detected hand landmarks. The pipe
// round trip has no deadline of its own, so cancelling ctx kills the service
// to unblock it.
func (d *MediaPipeDetector) Detect(ctx context.Context, frame *gocv.Mat, timestampMs int64) ([]HandLandmarks, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.loaded {
		return nil, ErrNotLoaded
	}
	if d.killed {
		return nil, ErrServiceKilled
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if frame == nil || frame.Empty() {
		return nil, nil
	}

	buf, err := gocv.IMEncode(".jpg", *frame)
	if err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	defer buf.Close()

	proc := d.cmd.Process
	stop := context.AfterFunc(ctx, func() { proc.Kill() })
	hands, err := d.roundTrip(buf.GetBytes(), timestampMs)
	if !stop() {
		d.killed = true
		return nil, fmt.Errorf("detect: %w", ctx.Err())
	}
	return hands, err
}

// roundTrip sends one frame and reads its response line. d.mu must be held.
func (d *MediaPipeDetector) roundTrip(data []byte, timestampMs int64) ([]HandLandmarks, error) {
	header := make([]byte, 12)
	binary.BigEndian.PutUint32(header[:4], uint32(len(data)))
	binary.BigEndian.PutUint64(header[4:], uint64(timestampMs))

	if _, err := d.stdin.Write(header); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}
	if _, err := d.stdin.Write(data); err != nil {
		return nil, fmt.Errorf("write data: %w", err)
	}

	line, err := d.stdout.ReadString('\n')
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	return parseResponse([]byte(line))
}

// Close shuts down the Python process.
func (d *MediaPipeDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.loaded {
		return nil
	}

	if d.stdin != nil {
		d.stdin.Close()
	}

	err := d.cmd.Wait()
	if d.killed {
		// Exit status of a process we killed ourselves.
		err = nil
	}
	d.loaded = false
	d.killed = false
	d.cmd = nil
	d.stdin = nil
	d.stdout = nil

	return err
}

// parseResponse decodes one service response line.
func parseResponse(line []byte) ([]HandLandmarks, error) {
	var response struct {
		Hands []jsonHand `json:"hands"`
		Error string     `json:"error"`
	}
	if err := json.Unmarshal(line, &response); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	if response.Error != "" {
		return nil, fmt.Errorf("mediapipe: %s", response.Error)
	}

	result := make([]HandLandmarks, len(response.Hands))
	for i, h := range response.Hands {
		result[i] = h.toHandLandmarks()
	}
	return result, nil
}

func findMediaPipeScript() string {
	execPath, err := os.Executable()
	var execDir string
	if err == nil {
		execDir = filepath.Dir(execPath)
	}

	candidates := []string{
		"scripts/mediapipe_service.py",
		"../scripts/mediapipe_service.py",
		filepath.Join(execDir, "scripts/mediapipe_service.py"),
		filepath.Join(os.Getenv("HOME"), ".mingshan/scripts/mediapipe_service.py"),
	}

	return firstExisting(candidates)
}

// findVenvPython looks for a Python interpreter in a virtual environment
// next to the working directory, the executable, or ~/.mingshan.
func findVenvPython() string {
	execPath, err := os.Executable()
	if err != nil {
		return ""
	}
	execDir := filepath.Dir(execPath)

	candidates := []string{
		"venv/bin/python",
		"../venv/bin/python",
		filepath.Join(execDir, "venv/bin/python"),
		filepath.Join(os.Getenv("HOME"), ".mingshan/venv/bin/python"),
	}

	return firstExisting(candidates)
}

func firstExisting(paths []string) string {
	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			if abs, err := filepath.Abs(path); err == nil {
				return abs
			}
			return path
		}
	}
	return ""
}

// jsonHand represents the JSON structure from the Python service.
type jsonHand struct {
	Points     []Point3D `json:"points"`
	Handedness string    `json:"handedness"`
	Score      float64   `json:"score"`
}

func (h jsonHand) toHandLandmarks() HandLandmarks {
	lm := HandLandmarks{
		Handedness: h.Handedness,
		Score:      h.Score,
	}
	copy(lm.Points[:], h.Points)
	return lm
}
