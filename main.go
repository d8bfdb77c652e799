package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"acid-looper/config"
	"acid-looper/debug"
	"acid-looper/engine"
	"acid-looper/library"
	"acid-looper/midi"
	"acid-looper/tempo"
	"acid-looper/theme"
	"acid-looper/tui"
)

var version = "0.1.0"

var (
	flagPatches  string
	flagPort     string
	flagBPM      int
	flagChBass   uint8
	flagChRhythm uint8
	flagPalette  string
	flagDebug    bool
)

var rootCmd = &cobra.Command{
	Use:   "acid-looper",
	Short: "Loop acid bassline patches on a Roland T-8",
	Long: `acid-looper plays JSON bassline patches over MIDI, switching
patterns only at loop boundaries so the groove never stumbles.

Patches are plain files in the patch directory; edit one while it plays
and the change lands on the next loop.`,
	Version: version,
	RunE:    runLooper,
}

var listPortsCmd = &cobra.Command{
	Use:   "list-ports",
	Short: "List available MIDI output ports",
	RunE: func(cmd *cobra.Command, args []string) error {
		ports, err := midi.Ports()
		if err != nil {
			return fault.Wrap(err, fmsg.With("cannot scan midi ports"))
		}
		if len(ports) == 0 {
			fmt.Println("no MIDI output ports found")
			return nil
		}
		for _, p := range ports {
			fmt.Println(p)
		}
		return nil
	},
}

func init() {
	rootCmd.Flags().StringVar(&flagPatches, "patches", "", "patch directory (default from config)")
	rootCmd.Flags().StringVar(&flagPort, "port", "", "MIDI output port substring (default from config)")
	rootCmd.Flags().IntVar(&flagBPM, "bpm", tempo.DefaultBPM, "starting tempo")
	rootCmd.Flags().Uint8Var(&flagChBass, "channel-bass", 1, "MIDI channel for bass")
	rootCmd.Flags().Uint8Var(&flagChRhythm, "channel-rhythm", 9, "MIDI channel for drums")
	rootCmd.Flags().StringVar(&flagPalette, "palette", "", "GIMP palette file for the UI theme")
	rootCmd.Flags().BoolVar(&flagDebug, "debug", false, "write a debug log to the config directory")
	rootCmd.AddCommand(listPortsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runLooper(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fault.Wrap(err, fmsg.With("cannot load config"))
	}
	if cmd.Flags().Changed("patches") {
		cfg.PatchesDir = flagPatches
	}
	if cmd.Flags().Changed("port") {
		cfg.Port = flagPort
	}
	if cmd.Flags().Changed("channel-bass") {
		cfg.BassChannel = flagChBass
	}
	if cmd.Flags().Changed("channel-rhythm") {
		cfg.RhythmChannel = flagChRhythm
	}
	if cmd.Flags().Changed("bpm") {
		cfg.UI.LastTempo = flagBPM
	}

	if flagDebug {
		if err := debug.Enable(); err != nil {
			return fault.Wrap(err, fmsg.With("cannot open debug log"))
		}
		defer debug.Disable()
	}

	out, err := midi.Open(cfg.Port)
	if err != nil {
		if errors.Is(err, midi.ErrNoPort) {
			if ports, perr := midi.Ports(); perr == nil && len(ports) > 0 {
				fmt.Fprintln(os.Stderr, "available ports:")
				for _, p := range ports {
					fmt.Fprintf(os.Stderr, "  %s\n", p)
				}
			}
		}
		return fault.Wrap(err, fmsg.WithDesc("cannot open midi output",
			fmt.Sprintf("No MIDI output port matches %q. Connect the T-8 or pass --port.", cfg.Port)))
	}
	defer out.Close()

	lib := library.New(cfg.PatchesDir)
	if _, err := lib.Scan(); err != nil {
		return fault.Wrap(err, fmsg.WithDesc("cannot read patch directory",
			fmt.Sprintf("Cannot read %s", cfg.PatchesDir)))
	}

	pal := theme.Default()
	if flagPalette != "" {
		pal, err = theme.LoadGPL(flagPalette)
		if err != nil {
			return fault.Wrap(err, fmsg.With("cannot load palette"))
		}
	}

	clock := tempo.New(cfg.UI.LastTempo)
	eng := engine.New(out, lib, clock, engine.Channels{Bass: cfg.BassChannel, Rhythm: cfg.RhythmChannel})

	watcher := library.NewWatcher(lib, 0)
	watcher.SetOnChange(eng.NotifyLibraryChanged)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go eng.Run(ctx)
	go watcher.Run(ctx)

	if key, id, ok := lib.First(); ok {
		debug.Log("engine", "auto-selecting %s", id)
		eng.SelectPatch(key)
	}

	prog := tea.NewProgram(
		tui.NewModel(eng, lib, watcher.Events(), theme.New(pal), out.PortName()),
		tea.WithAltScreen(),
	)
	if _, err := prog.Run(); err != nil {
		return fault.Wrap(err, fmsg.With("terminal ui failed"))
	}

	cfg.UI.LastTempo = clock.BPM()
	if err := cfg.Save(); err != nil {
		debug.Log("engine", "save config: %v", err)
	}
	return nil
}
