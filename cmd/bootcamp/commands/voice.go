package commands

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/antoniostano/bootcamp/internal/audio"
	"github.com/antoniostano/bootcamp/internal/capture"
	"github.com/antoniostano/bootcamp/internal/live"
	"github.com/antoniostano/bootcamp/internal/playback"
)

var voiceCmd = &cobra.Command{
	Use:   "voice",
	Short: "Run one live voice session from a WAV file",
	Long: `Stream a 16-bit WAV file to the live model as microphone input and render
the assistant's reply onto a WAV track, gaps and interruptions included.

Without GEMINI_API_KEY (or with --mock) a synthetic remote answers with tones.

Example:
  bootcamp voice -i question.wav -o reply.wav --turns 1`,
	RunE: func(cmd *cobra.Command, args []string) error {
		input, _ := cmd.Flags().GetString("input")
		output, _ := cmd.Flags().GetString("output")
		useMock, _ := cmd.Flags().GetBool("mock")
		realtime, _ := cmd.Flags().GetBool("realtime")
		turns, _ := cmd.Flags().GetInt("turns")
		timeout, _ := cmd.Flags().GetDuration("timeout")
		if input == "" {
			return fmt.Errorf("input file is required, use -i flag")
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		var remote live.Remote = live.NewGeminiRemote(cfg.GeminiAPIKey)
		if useMock || cfg.ResolvedVoiceProvider() == "mock" {
			remote = live.NewMockRemote()
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
		defer cancel()

		clock := playback.NewMonotonicClock()
		timeline := playback.NewTimeline(clock, audio.PlaybackSampleRate)
		closed := make(chan struct{})
		var closeOnce sync.Once
		completed := make(chan struct{}, 16)

		ctrl := live.NewController(remote, capture.FileMicrophone{
			Path:      input,
			FrameSize: audio.FrameSize,
			Realtime:  realtime,
		}, timeline, live.Options{
			Config: live.Config{
				Model:      cfg.LiveModel,
				Voice:      cfg.LiveVoice,
				Transcribe: true,
			},
			QueueFrames: cfg.CaptureQueueFrames,
			Clock:       clock,
			Hooks: live.Hooks{
				OnState: func(s live.State) {
					fmt.Fprintf(os.Stderr, "[%s] state %s\n", clock.Now().Truncate(time.Millisecond), s)
					if s == live.StateClosed {
						closeOnce.Do(func() { close(closed) })
					}
				},
				OnError: func(err error) {
					fmt.Fprintf(os.Stderr, "error: %v\n", err)
				},
				OnTranscript: func(t live.Transcript) {
					if t.Final {
						fmt.Printf("%s: %s\n", t.Role, t.Text)
					}
				},
				OnInterrupted: func(stopped []playback.Item) {
					fmt.Fprintf(os.Stderr, "interrupted, %d chunks stopped\n", len(stopped))
				},
				OnTurnComplete: func() {
					completed <- struct{}{}
				},
			},
		})

		if err := ctrl.Start(ctx); err != nil {
			return err
		}

	wait:
		for done := 0; turns <= 0 || done < turns; {
			select {
			case <-completed:
				done++
			case <-closed:
				break wait
			case <-ctx.Done():
				fmt.Fprintln(os.Stderr, "timeout reached")
				break wait
			}
		}
		st := ctrl.Stats()
		ctrl.Stop()

		fmt.Fprintf(os.Stderr, "capture: %d chunks sent, %d dropped; playback: %d scheduled, %d stopped\n",
			st.Capture.Sent, st.Capture.DroppedNotReady+st.Capture.DroppedQueueFull, st.Playback.Scheduled, st.Playback.Stopped)

		if output == "" {
			return nil
		}
		f, err := os.Create(output)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", output, err)
		}
		defer f.Close()
		if err := timeline.WriteWAV(f); err != nil {
			return fmt.Errorf("failed to write %s: %w", output, err)
		}
		fmt.Printf("Reply audio saved to %s\n", output)
		return nil
	},
}

func init() {
	voiceCmd.Flags().StringP("input", "i", "", "16-bit PCM WAV file used as microphone input")
	voiceCmd.Flags().StringP("output", "o", "", "WAV file for the rendered reply")
	voiceCmd.Flags().Bool("mock", false, "use the synthetic remote")
	voiceCmd.Flags().Bool("realtime", true, "pace input frames at their natural duration")
	voiceCmd.Flags().Int("turns", 1, "stop after this many completed assistant turns (0 waits for timeout)")
	voiceCmd.Flags().Duration("timeout", 60*time.Second, "overall session timeout")
	rootCmd.AddCommand(voiceCmd)
}
