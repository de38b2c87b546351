package commands

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	"github.com/antoniostano/bootcamp/internal/audio"
	"github.com/antoniostano/bootcamp/internal/protocol"
)

type probeOptions struct {
	baseURL     string
	userID      string
	voice       string
	input       string
	turns       int
	chunkMS     int
	realtime    float64
	binary      bool
	turnTimeout time.Duration
	verbose     bool
}

type createSessionResponse struct {
	SessionID string `json:"session_id"`
}

type wsEnvelope struct {
	Type   string `json:"type"`
	State  string `json:"state,omitempty"`
	Code   string `json:"code,omitempty"`
	Detail string `json:"detail,omitempty"`
	Role   string `json:"role,omitempty"`
	Text   string `json:"text,omitempty"`
	Final  bool   `json:"final,omitempty"`
}

type probeClip struct {
	Samples    []float32
	SampleRate int
}

var probeOpts probeOptions

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Replay microphone audio against a running server",
	Long: `Open a voice session on a running server, stream a WAV file (or a test tone)
over the websocket and report first-audio latency per turn.

Example:
  bootcamp probe --base-url http://127.0.0.1:8080 -i question.wav --turns 3`,
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := probeOpts
		opts.baseURL = strings.TrimRight(strings.TrimSpace(opts.baseURL), "/")
		if opts.baseURL == "" {
			return fmt.Errorf("base-url is required")
		}
		if opts.turns <= 0 {
			return fmt.Errorf("turns must be > 0")
		}
		if opts.chunkMS < 10 || opts.chunkMS > 2000 {
			return fmt.Errorf("chunk-ms must be in [10,2000]")
		}
		if opts.realtime <= 0 {
			return fmt.Errorf("realtime must be > 0")
		}
		if opts.turnTimeout < time.Second {
			opts.turnTimeout = time.Second
		}
		return runProbe(cmd.Context(), opts)
	},
}

func init() {
	f := probeCmd.Flags()
	f.StringVar(&probeOpts.baseURL, "base-url", "http://127.0.0.1:8080", "server base URL")
	f.StringVar(&probeOpts.userID, "user-id", "probe", "user_id for the session")
	f.StringVar(&probeOpts.voice, "voice", "", "live voice for the session")
	f.StringVarP(&probeOpts.input, "input", "i", "", "16-bit WAV file to replay (default: 1s test tone)")
	f.IntVar(&probeOpts.turns, "turns", 3, "number of turns to replay")
	f.IntVar(&probeOpts.chunkMS, "chunk-ms", 256, "audio frame size in milliseconds")
	f.Float64Var(&probeOpts.realtime, "realtime", 1.0, "frame pacing multiplier (1.0=realtime, 2.0=2x)")
	f.BoolVar(&probeOpts.binary, "binary", true, "send float32 binary frames instead of client_audio_chunk JSON")
	f.DurationVar(&probeOpts.turnTimeout, "turn-timeout", 15*time.Second, "timeout waiting for assistant_turn_end per turn")
	f.BoolVar(&probeOpts.verbose, "verbose", true, "print replay progress")
	rootCmd.AddCommand(probeCmd)
}

func runProbe(parent context.Context, opts probeOptions) error {
	ctx, cancel := context.WithTimeout(parent, 8*time.Minute)
	defer cancel()

	clip, err := loadProbeClip(opts.input)
	if err != nil {
		return err
	}

	httpClient := &http.Client{Timeout: 45 * time.Second}
	sessionID, err := createSession(ctx, httpClient, opts)
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	defer func() {
		_ = endSession(context.Background(), httpClient, opts.baseURL, sessionID)
	}()

	wsURL, err := wsURLForSession(opts.baseURL, sessionID)
	if err != nil {
		return fmt.Errorf("build ws URL: %w", err)
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return fmt.Errorf("open websocket: %w", err)
	}
	defer conn.Close()

	events := probeEvents{
		open:    make(chan struct{}, 4),
		audio:   make(chan time.Time, 256),
		turnEnd: make(chan struct{}, 32),
		readErr: make(chan error, 1),
	}
	go probeReadLoop(conn, events, opts.verbose)

	if err := sendControl(conn, protocol.ClientControl{Action: protocol.ActionMicrophone, Granted: true, SampleRate: clip.SampleRate}, sessionID); err != nil {
		return err
	}
	if err := sendControl(conn, protocol.ClientControl{Action: protocol.ActionStart}, sessionID); err != nil {
		return err
	}
	if err := awaitSignal(events.open, events.readErr, opts.turnTimeout); err != nil {
		return fmt.Errorf("await open: %w", err)
	}
	if opts.verbose {
		fmt.Printf("probe: session=%s turns=%d chunk_ms=%d sample_rate=%dHz\n", sessionID, opts.turns, opts.chunkMS, clip.SampleRate)
	}

	for i := 0; i < opts.turns; i++ {
		drainAudio(events.audio)
		began := time.Now()
		if err := sendClip(conn, sessionID, clip, opts); err != nil {
			return fmt.Errorf("turn %d send audio: %w", i+1, err)
		}
		if err := awaitSignal(events.turnEnd, events.readErr, opts.turnTimeout); err != nil {
			return fmt.Errorf("turn %d await assistant_turn_end: %w", i+1, err)
		}
		select {
		case first := <-events.audio:
			fmt.Printf("probe: turn %d first_audio_ms=%d\n", i+1, first.Sub(began).Milliseconds())
		default:
			fmt.Printf("probe: turn %d produced no audio\n", i+1)
		}
	}

	if err := sendControl(conn, protocol.ClientControl{Action: protocol.ActionStop, Reason: "probe_done"}, sessionID); err != nil {
		return err
	}
	if opts.verbose {
		fmt.Println("probe: replay completed")
	}
	return nil
}

func loadProbeClip(path string) (probeClip, error) {
	if path == "" {
		return probeClip{Samples: tone(440, audio.CaptureSampleRate, time.Second), SampleRate: audio.CaptureSampleRate}, nil
	}
	wav, err := audio.ReadWAVPCM16File(path)
	if err != nil {
		return probeClip{}, fmt.Errorf("read %s: %w", path, err)
	}
	if len(wav.Samples) == 0 {
		return probeClip{}, fmt.Errorf("%s has no samples", path)
	}
	return probeClip{Samples: wav.Samples, SampleRate: wav.SampleRate}, nil
}

func tone(freq float64, sampleRate int, d time.Duration) []float32 {
	n := int(int64(sampleRate) * int64(d) / int64(time.Second))
	out := make([]float32, n)
	for i := range out {
		out[i] = float32(0.3 * math.Sin(2*math.Pi*freq*float64(i)/float64(sampleRate)))
	}
	return out
}

func createSession(ctx context.Context, client *http.Client, opts probeOptions) (string, error) {
	payload, err := json.Marshal(map[string]string{"user_id": opts.userID, "voice": opts.voice})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, opts.baseURL+"/v1/voice/session", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer res.Body.Close()
	body, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return "", err
	}
	if res.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("HTTP %d: %s", res.StatusCode, strings.TrimSpace(string(body)))
	}

	var out createSessionResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", err
	}
	if strings.TrimSpace(out.SessionID) == "" {
		return "", fmt.Errorf("missing session_id in response")
	}
	return out.SessionID, nil
}

func endSession(ctx context.Context, client *http.Client, baseURL, sessionID string) error {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/v1/voice/session/"+url.PathEscape(sessionID)+"/end", nil)
	if err != nil {
		return err
	}
	res, err := client.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(res.Body, 1<<20))
	return nil
}

func wsURLForSession(baseURL, sessionID string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil {
		return "", err
	}
	switch strings.ToLower(u.Scheme) {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported base-url scheme %q", u.Scheme)
	}
	if strings.TrimSpace(u.Host) == "" {
		return "", fmt.Errorf("base-url host is required")
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/v1/voice/session/ws"
	q := u.Query()
	q.Set("session_id", sessionID)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

type probeEvents struct {
	open    chan struct{}
	audio   chan time.Time
	turnEnd chan struct{}
	readErr chan error
}

func probeReadLoop(conn *websocket.Conn, ev probeEvents, verbose bool) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			select {
			case ev.readErr <- err:
			default:
			}
			return
		}

		var env wsEnvelope
		if err := json.Unmarshal(data, &env); err != nil {
			continue
		}
		switch protocol.MessageType(env.Type) {
		case protocol.TypeSessionState:
			if env.State == "open" {
				notify(ev.open)
			}
		case protocol.TypeAssistantAudio:
			select {
			case ev.audio <- time.Now():
			default:
			}
		case protocol.TypeAssistantTurnEnd:
			notify(ev.turnEnd)
		case protocol.TypeTranscript:
			if verbose && env.Final {
				fmt.Printf("probe: %s: %s\n", env.Role, env.Text)
			}
		case protocol.TypeErrorEvent:
			if verbose {
				fmt.Fprintf(os.Stderr, "probe: error_event code=%s detail=%s\n", env.Code, env.Detail)
			}
		}
	}
}

func notify(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}

func drainAudio(ch chan time.Time) {
	for {
		select {
		case <-ch:
		default:
			return
		}
	}
}

func sendControl(conn *websocket.Conn, msg protocol.ClientControl, sessionID string) error {
	msg.Type = protocol.TypeClientControl
	msg.SessionID = sessionID
	msg.TSMs = time.Now().UnixMilli()
	return conn.WriteJSON(msg)
}

// splitFrames cuts samples into frames of chunkMS, the last one possibly
// shorter.
func splitFrames(samples []float32, sampleRate, chunkMS int) [][]float32 {
	size := sampleRate * chunkMS / 1000
	if size <= 0 {
		size = 1
	}
	var frames [][]float32
	for off := 0; off < len(samples); off += size {
		frames = append(frames, samples[off:min(off+size, len(samples))])
	}
	return frames
}

func encodeFloat32LE(samples []float32) []byte {
	b := make([]byte, 4*len(samples))
	for i, s := range samples {
		binary.LittleEndian.PutUint32(b[4*i:], math.Float32bits(s))
	}
	return b
}

func sendClip(conn *websocket.Conn, sessionID string, clip probeClip, opts probeOptions) error {
	for seq, frame := range splitFrames(clip.Samples, clip.SampleRate, opts.chunkMS) {
		var err error
		if opts.binary {
			err = conn.WriteMessage(websocket.BinaryMessage, encodeFloat32LE(frame))
		} else {
			err = conn.WriteJSON(protocol.ClientAudioChunk{
				Type:        protocol.TypeClientAudioChunk,
				SessionID:   sessionID,
				Seq:         seq + 1,
				PCM16Base64: audio.EncodeBase64(frame),
				SampleRate:  clip.SampleRate,
				TSMs:        time.Now().UnixMilli(),
			})
		}
		if err != nil {
			return err
		}

		pace := time.Duration(float64(time.Duration(len(frame))*time.Second/time.Duration(clip.SampleRate)) / opts.realtime)
		if pace <= 0 {
			pace = 10 * time.Millisecond
		}
		time.Sleep(pace)
	}
	return nil
}

func awaitSignal(ch <-chan struct{}, readErr <-chan error, timeout time.Duration) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-ch:
		return nil
	case err := <-readErr:
		return err
	case <-timer.C:
		return fmt.Errorf("timeout after %s", timeout)
	}
}
